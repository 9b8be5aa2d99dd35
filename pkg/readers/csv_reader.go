package readers

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	stdcsv "encoding/csv"

	"github.com/TFMV/recon/pkg/core"
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/csv"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// defaultBatchSize is the number of rows per Arrow record batch.
const defaultBatchSize = 10000

// CSVSource reads a delimited text file. Column types are inferred from every
// row before the file is parsed into typed Arrow batches.
type CSVSource struct {
	config core.SourceConfig
	comma  rune
	alloc  memory.Allocator
}

// NewCSVSource creates a new CSV source.
func NewCSVSource(config core.SourceConfig) (core.DatasetSource, error) {
	if config.Path == "" {
		return nil, errors.New("path is required for CSV source")
	}
	if config.SkipRows < 0 {
		return nil, fmt.Errorf("skip_rows must not be negative, got %d", config.SkipRows)
	}
	comma, err := parseDelimiter(config.Delimiter)
	if err != nil {
		return nil, err
	}
	return &CSVSource{
		config: config,
		comma:  comma,
		alloc:  memory.NewGoAllocator(),
	}, nil
}

// Load reads the whole file.
func (s *CSVSource) Load(ctx context.Context) (*core.Dataset, error) {
	header, types, err := s.scan(ctx)
	if err != nil {
		return nil, err
	}
	name := datasetName(s.config)
	if len(types) == 0 {
		return &core.Dataset{Name: name}, nil
	}

	names := columnNames(header, len(types))
	fields := make([]arrow.Field, len(types))
	for i, typ := range types {
		fields[i] = arrow.Field{Name: names[i], Type: arrowType(typ), Nullable: true}
	}
	schema := arrow.NewSchema(fields, nil)

	builder, err := newRecordBuilder(name, schema, s.config.Columns, names)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.config.Path, err)
	}
	// Column types come from inference rather than the Arrow field types.
	for i, idx := range builder.fields {
		builder.ds.Schema.Columns[i].Type = types[idx]
	}

	f, rd, err := s.open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	batch := int(s.config.BatchSize)
	if batch <= 0 {
		batch = defaultBatchSize
	}

	reader := csv.NewReader(rd, schema,
		csv.WithComma(s.comma),
		csv.WithHeader(s.config.Header()),
		csv.WithNullReader(false, ""),
		csv.WithChunk(batch),
		csv.WithAllocator(s.alloc),
	)
	defer reader.Release()

	for reader.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		builder.append(reader.Record())
	}
	if err := reader.Err(); err != nil {
		return nil, fmt.Errorf("failed to read CSV %s: %w", s.config.Path, err)
	}

	return builder.ds, nil
}

// scan reads the header and infers a type for every column.
func (s *CSVSource) scan(ctx context.Context) ([]string, []core.DataType, error) {
	f, rd, err := s.open()
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r := stdcsv.NewReader(rd)
	r.Comma = s.comma
	r.ReuseRecord = true

	var (
		header []string
		cols   []columnInference
	)
	for line := 0; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to scan CSV %s: %w", s.config.Path, err)
		}
		if line%defaultBatchSize == 0 {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
		}
		if cols == nil {
			cols = make([]columnInference, len(rec))
			if s.config.Header() {
				header = append([]string(nil), rec...)
				continue
			}
		}
		for i := 0; i < len(cols) && i < len(rec); i++ {
			cols[i].observe(rec[i])
		}
	}

	types := make([]core.DataType, len(cols))
	for i := range cols {
		types[i] = cols[i].result()
	}
	return header, types, nil
}

// open opens the file and skips the configured leading rows.
func (s *CSVSource) open() (*os.File, io.Reader, error) {
	f, err := os.Open(s.config.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	br := bufio.NewReader(f)
	for i := 0; i < s.config.SkipRows; i++ {
		if _, err := br.ReadString('\n'); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			f.Close()
			return nil, nil, fmt.Errorf("failed to skip rows: %w", err)
		}
	}
	return f, br, nil
}

// Close releases resources held by the source.
func (s *CSVSource) Close() error {
	return nil
}

func parseDelimiter(d string) (rune, error) {
	switch d {
	case "":
		return ',', nil
	case `\t`, "tab":
		return '\t', nil
	}
	if utf8.RuneCountInString(d) != 1 {
		return 0, fmt.Errorf("delimiter must be a single character, got %q", d)
	}
	r, _ := utf8.DecodeRuneInString(d)
	if r == '"' || r == '\r' || r == '\n' {
		return 0, fmt.Errorf("invalid delimiter %q", d)
	}
	return r, nil
}
