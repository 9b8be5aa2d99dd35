package report

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// PublishConfig holds the object storage settings for report uploads.
type PublishConfig struct {
	Enabled        bool   `mapstructure:"enabled" json:"enabled"`
	Endpoint       string `mapstructure:"endpoint" json:"endpoint" validate:"required_if=Enabled true"`
	Bucket         string `mapstructure:"bucket" json:"bucket" validate:"required_if=Enabled true"`
	AccessKey      string `mapstructure:"access_key" json:"-"`
	SecretKey      string `mapstructure:"secret_key" json:"-"`
	UseSSL         bool   `mapstructure:"use_ssl" json:"use_ssl"`
	Region         string `mapstructure:"region" json:"region"`
	Prefix         string `mapstructure:"prefix" json:"prefix"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" json:"timeout_seconds"`
}

// ObjectStore is the subset of the minio client used for uploads.
type ObjectStore interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Publisher uploads report files to an S3-compatible bucket.
type Publisher struct {
	store  ObjectStore
	bucket string
	prefix string
	region string
}

// NewPublisher creates a publisher backed by a minio client.
func NewPublisher(cfg PublishConfig) (*Publisher, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("publish bucket is required")
	}
	// Minio expects endpoint without scheme
	endpoint := strings.TrimPrefix(cfg.Endpoint, "http://")
	endpoint = strings.TrimPrefix(endpoint, "https://")

	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = 30
	}
	timeoutDuration := time.Duration(timeout) * time.Second

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   timeoutDuration,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   timeoutDuration,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: timeoutDuration,
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return NewPublisherWithStore(client, cfg.Bucket, cfg.Prefix, cfg.Region), nil
}

// NewPublisherWithStore creates a publisher over an existing object store.
func NewPublisherWithStore(store ObjectStore, bucket, prefix, region string) *Publisher {
	return &Publisher{store: store, bucket: bucket, prefix: strings.Trim(prefix, "/"), region: region}
}

// Publish uploads each file and returns the object names in order.
// The bucket is created when it does not exist.
func (p *Publisher) Publish(ctx context.Context, files []string) ([]string, error) {
	exists, err := p.store.BucketExists(ctx, p.bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", p.bucket, err)
	}
	if !exists {
		if err := p.store.MakeBucket(ctx, p.bucket, minio.MakeBucketOptions{Region: p.region}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", p.bucket, err)
		}
	}

	var objects []string
	for _, file := range files {
		name, err := p.upload(ctx, file)
		if err != nil {
			return objects, err
		}
		objects = append(objects, name)
	}
	return objects, nil
}

func (p *Publisher) upload(ctx context.Context, file string) (string, error) {
	f, err := os.Open(file)
	if err != nil {
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}

	name := path.Join(p.prefix, filepath.Base(file))
	_, err = p.store.PutObject(ctx, p.bucket, name, f, info.Size(), minio.PutObjectOptions{
		ContentType: contentType(file),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", name, err)
	}
	return name, nil
}

func contentType(file string) string {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".json":
		return "application/json"
	case ".html":
		return "text/html; charset=utf-8"
	case ".csv":
		return "text/csv"
	case ".parquet":
		return "application/vnd.apache.parquet"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "application/octet-stream"
}
