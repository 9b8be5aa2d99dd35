// Package report renders comparison results as JSON, HTML, Excel, CSV and
// Parquet files and optionally publishes them to S3-compatible object storage.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/TFMV/recon/pkg/core"
	"github.com/TFMV/recon/pkg/reconcile"
	"github.com/TFMV/recon/version"
	"github.com/google/uuid"
)

// Report formats.
const (
	FormatJSON    = "json"
	FormatHTML    = "html"
	FormatExcel   = "excel"
	FormatCSV     = "csv"
	FormatParquet = "parquet"
)

// Formats lists every supported report format.
var Formats = []string{FormatJSON, FormatHTML, FormatExcel, FormatCSV, FormatParquet}

// Run is one executed comparison together with its metadata.
// Source and Target are optional; when set, record sheets carry full rows
// instead of bare keys.
type Run struct {
	ID        string
	Name      string
	StartedAt time.Time
	Version   string
	Result    *reconcile.ComparisonResult
	Source    *core.Dataset
	Target    *core.Dataset
}

// NewRun wraps a result with a fresh run ID.
func NewRun(name string, result *reconcile.ComparisonResult, startedAt time.Time) Run {
	return Run{
		ID:        uuid.NewString(),
		Name:      name,
		StartedAt: startedAt,
		Version:   version.GetVersion(),
		Result:    result,
	}
}

// Metadata describes a run in rendered reports.
type Metadata struct {
	RunID       string    `json:"run_id"`
	Comparison  string    `json:"comparison"`
	Source      string    `json:"source"`
	Target      string    `json:"target"`
	PrimaryKeys []string  `json:"primary_keys"`
	StartedAt   time.Time `json:"started_at"`
	DurationMS  int64     `json:"duration_ms"`
	Version     string    `json:"version"`
}

// Metadata returns the run metadata.
func (r Run) Metadata() Metadata {
	return Metadata{
		RunID:       r.ID,
		Comparison:  r.Name,
		Source:      r.Result.SourceName(),
		Target:      r.Result.TargetName(),
		PrimaryKeys: r.Result.PrimaryKeys(),
		StartedAt:   r.StartedAt,
		DurationMS:  r.Result.Duration().Milliseconds(),
		Version:     r.Version,
	}
}

// Options control report rendering.
type Options struct {
	// MaxRows caps the rows of each detail table. Zero means no cap.
	MaxRows int
}

func (o Options) limit(n int) int {
	if o.MaxRows > 0 && n > o.MaxRows {
		return o.MaxRows
	}
	return n
}

// ReportGenerator renders a run in one format.
type ReportGenerator interface {
	GenerateReport(run Run) ([]byte, error)
	Extension() string
}

// NewGenerator returns the generator for a format.
func NewGenerator(format string, opts Options) (ReportGenerator, error) {
	switch strings.ToLower(format) {
	case FormatJSON:
		return &JSONReportGenerator{}, nil
	case FormatHTML:
		return &HTMLReportGenerator{Options: opts}, nil
	case FormatExcel, "xlsx":
		return &ExcelReportGenerator{Options: opts}, nil
	case FormatCSV:
		return &CSVSummaryGenerator{}, nil
	case FormatParquet:
		return &ParquetDetailsGenerator{Options: opts}, nil
	}
	return nil, fmt.Errorf("unsupported report format: %s", format)
}

// SaveReportToFile renders the run and writes it to filePath.
func SaveReportToFile(gen ReportGenerator, run Run, filePath string) error {
	if run.Result == nil {
		return fmt.Errorf("run %q has no result", run.Name)
	}
	data, err := gen.GenerateReport(run)
	if err != nil {
		return err
	}
	return os.WriteFile(filePath, data, 0644)
}

// SaveReports writes one report per format into dir and returns the file paths.
func SaveReports(run Run, dir string, formats []string, opts Options) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}

	var paths []string
	for _, format := range formats {
		gen, err := NewGenerator(format, opts)
		if err != nil {
			return paths, err
		}
		path := filepath.Join(dir, FileStem(run)+"."+gen.Extension())
		if err := SaveReportToFile(gen, run, path); err != nil {
			return paths, fmt.Errorf("failed to write %s report: %w", format, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// FileStem is the base file name shared by all reports of a run.
func FileStem(run Run) string {
	name := unsafeChars.ReplaceAllString(run.Name, "_")
	if name == "" {
		name = "comparison"
	}
	return fmt.Sprintf("%s_%s", name, run.StartedAt.UTC().Format("20060102_150405"))
}
