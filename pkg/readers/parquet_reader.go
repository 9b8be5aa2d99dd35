package readers

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/TFMV/recon/pkg/core"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
)

// ParquetSource reads a Parquet file.
type ParquetSource struct {
	config core.SourceConfig
	alloc  memory.Allocator
}

// NewParquetSource creates a new Parquet source.
func NewParquetSource(config core.SourceConfig) (core.DatasetSource, error) {
	if config.Path == "" {
		return nil, errors.New("path is required for Parquet source")
	}
	return &ParquetSource{
		config: config,
		alloc:  memory.NewGoAllocator(),
	}, nil
}

// Load reads the whole file.
func (s *ParquetSource) Load(ctx context.Context) (*core.Dataset, error) {
	f, err := os.Open(s.config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Parquet file: %w", err)
	}
	defer f.Close()

	batch := s.config.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}

	table, err := pqarrow.ReadTable(ctx, f,
		parquet.NewReaderProperties(s.alloc),
		pqarrow.ArrowReadProperties{Parallel: true, BatchSize: batch},
		s.alloc)
	if err != nil {
		return nil, fmt.Errorf("failed to read Parquet file %s: %w", s.config.Path, err)
	}
	defer table.Release()

	tr := array.NewTableReader(table, batch)
	defer tr.Release()

	ds, err := datasetFromReader(ctx, datasetName(s.config), tr, s.config.Columns)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.config.Path, err)
	}
	return ds, nil
}

// Close releases resources held by the source.
func (s *ParquetSource) Close() error {
	return nil
}
