package report

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/csv"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// CSVSummaryGenerator writes a one-row CSV summary of a run.
type CSVSummaryGenerator struct{}

func (c *CSVSummaryGenerator) Extension() string { return "csv" }

var summarySchema = arrow.NewSchema([]arrow.Field{
	{Name: "run_id", Type: arrow.BinaryTypes.String},
	{Name: "comparison", Type: arrow.BinaryTypes.String},
	{Name: "source_name", Type: arrow.BinaryTypes.String},
	{Name: "target_name", Type: arrow.BinaryTypes.String},
	{Name: "primary_keys", Type: arrow.BinaryTypes.String},
	{Name: "status", Type: arrow.BinaryTypes.String},
	{Name: "reason", Type: arrow.BinaryTypes.String},
	{Name: "total_source_records", Type: arrow.PrimitiveTypes.Int64},
	{Name: "total_target_records", Type: arrow.PrimitiveTypes.Int64},
	{Name: "matched_records", Type: arrow.PrimitiveTypes.Int64},
	{Name: "mismatched_records", Type: arrow.PrimitiveTypes.Int64},
	{Name: "missing_records", Type: arrow.PrimitiveTypes.Int64},
	{Name: "extra_records", Type: arrow.PrimitiveTypes.Int64},
	{Name: "total_compared", Type: arrow.PrimitiveTypes.Int64},
	{Name: "match_percentage", Type: arrow.PrimitiveTypes.Float64},
	{Name: "mismatch_percentage", Type: arrow.PrimitiveTypes.Float64},
	{Name: "record_diff_percentage", Type: arrow.PrimitiveTypes.Float64},
	{Name: "missing_percentage", Type: arrow.PrimitiveTypes.Float64},
	{Name: "duration_ms", Type: arrow.PrimitiveTypes.Int64},
	{Name: "execution_timestamp", Type: arrow.BinaryTypes.String},
	{Name: "version", Type: arrow.BinaryTypes.String},
}, nil)

// GenerateReport renders the summary through the Arrow CSV writer.
func (c *CSVSummaryGenerator) GenerateReport(run Run) ([]byte, error) {
	res := run.Result
	counts := res.Counts()
	m := res.Metrics()

	b := array.NewRecordBuilder(memory.DefaultAllocator, summarySchema)
	defer b.Release()

	values := []any{
		run.ID,
		run.Name,
		res.SourceName(),
		res.TargetName(),
		strings.Join(res.PrimaryKeys(), ";"),
		string(res.Status()),
		res.Reason(),
		int64(counts.SourceRecords),
		int64(counts.TargetRecords),
		int64(counts.Matched),
		int64(counts.Mismatched),
		int64(counts.Missing),
		int64(counts.Extra),
		int64(m.TotalCompared),
		m.MatchPercentage,
		m.MismatchPercentage,
		m.RecordDiffPercentage,
		m.MissingPercentage,
		res.Duration().Milliseconds(),
		run.StartedAt.Format(time.RFC3339),
		run.Version,
	}
	for i, v := range values {
		switch fb := b.Field(i).(type) {
		case *array.StringBuilder:
			fb.Append(v.(string))
		case *array.Int64Builder:
			fb.Append(v.(int64))
		case *array.Float64Builder:
			fb.Append(v.(float64))
		default:
			return nil, fmt.Errorf("unexpected builder %T for column %s", fb, summarySchema.Field(i).Name)
		}
	}

	rec := b.NewRecord()
	defer rec.Release()

	var buf bytes.Buffer
	w := csv.NewWriter(&buf, summarySchema, csv.WithHeader(true))
	if err := w.Write(rec); err != nil {
		return nil, fmt.Errorf("failed to write csv summary: %w", err)
	}
	if err := w.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
