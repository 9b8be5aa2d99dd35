package readers

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/TFMV/recon/pkg/core"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// ArrowSource reads an Arrow IPC file.
type ArrowSource struct {
	config core.SourceConfig
	alloc  memory.Allocator
}

// NewArrowSource creates a new Arrow IPC source.
func NewArrowSource(config core.SourceConfig) (core.DatasetSource, error) {
	if config.Path == "" {
		return nil, errors.New("path is required for Arrow source")
	}
	return &ArrowSource{
		config: config,
		alloc:  memory.NewGoAllocator(),
	}, nil
}

// Load reads every record batch of the file.
func (s *ArrowSource) Load(ctx context.Context) (*core.Dataset, error) {
	f, err := os.Open(s.config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Arrow file: %w", err)
	}
	defer f.Close()

	reader, err := ipc.NewFileReader(f, ipc.WithAllocator(s.alloc))
	if err != nil {
		return nil, fmt.Errorf("failed to create Arrow file reader: %w", err)
	}
	defer reader.Close()

	builder, err := newRecordBuilder(datasetName(s.config), reader.Schema(), s.config.Columns, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.config.Path, err)
	}

	for i := 0; i < reader.NumRecords(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := reader.Record(i)
		if err != nil {
			return nil, fmt.Errorf("failed to read record batch %d: %w", i, err)
		}
		builder.append(rec)
	}
	return builder.ds, nil
}

// Close releases resources held by the source.
func (s *ArrowSource) Close() error {
	return nil
}
