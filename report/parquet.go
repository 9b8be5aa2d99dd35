package report

import (
	"bytes"
	"fmt"

	"github.com/TFMV/recon/pkg/core"
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
)

// ParquetDetailsGenerator writes the column-level mismatch details as a
// Snappy-compressed Parquet file, one row per mismatching column.
type ParquetDetailsGenerator struct {
	Options
}

func (p *ParquetDetailsGenerator) Extension() string { return "parquet" }

var detailsSchema = arrow.NewSchema([]arrow.Field{
	{Name: "comparison", Type: arrow.BinaryTypes.String},
	{Name: "key", Type: arrow.BinaryTypes.String},
	{Name: "column", Type: arrow.BinaryTypes.String},
	{Name: "source_value", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "target_value", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "kind", Type: arrow.BinaryTypes.String},
}, nil)

// GenerateReport renders the mismatch details. Null values stay null in the file.
func (p *ParquetDetailsGenerator) GenerateReport(run Run) ([]byte, error) {
	details := run.Result.MismatchDetails()
	details = details[:p.limit(len(details))]

	b := array.NewRecordBuilder(memory.DefaultAllocator, detailsSchema)
	defer b.Release()

	cmp := b.Field(0).(*array.StringBuilder)
	key := b.Field(1).(*array.StringBuilder)
	col := b.Field(2).(*array.StringBuilder)
	src := b.Field(3).(*array.StringBuilder)
	tgt := b.Field(4).(*array.StringBuilder)
	kind := b.Field(5).(*array.StringBuilder)
	for _, d := range details {
		cmp.Append(run.Name)
		key.Append(d.Key.String())
		col.Append(d.Column)
		appendValue(src, d.SourceValue)
		appendValue(tgt, d.TargetValue)
		kind.Append(string(d.Kind))
	}

	rec := b.NewRecord()
	defer rec.Release()

	var buf bytes.Buffer
	writeProps := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Snappy),
		parquet.WithDictionaryDefault(false),
	)
	writer, err := pqarrow.NewFileWriter(detailsSchema, &buf, writeProps, pqarrow.NewArrowWriterProperties())
	if err != nil {
		return nil, fmt.Errorf("failed to create Parquet writer: %w", err)
	}
	if err := writer.Write(rec); err != nil {
		writer.Close()
		return nil, fmt.Errorf("failed to write record: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close Parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}

func appendValue(b *array.StringBuilder, v any) {
	if v == nil {
		b.AppendNull()
		return
	}
	b.Append(core.FormatValue(v))
}
