// Package core provides the core types and interfaces for the recon dataset reconciliation tool.
package core

import (
	"context"
)

// DataType is the declared type of a dataset column.
type DataType string

const (
	TypeString  DataType = "string"
	TypeInteger DataType = "integer"
	TypeFloat   DataType = "float"
	TypeBoolean DataType = "boolean"
	TypeUnknown DataType = "unknown"
)

// Column describes one column of a dataset schema.
type Column struct {
	Name string   `json:"name"`
	Type DataType `json:"type"`
}

// Schema is the ordered list of columns shared by every record of a dataset.
type Schema struct {
	Columns []Column `json:"columns"`
}

// NewSchema builds a schema from column names with unknown types.
func NewSchema(names ...string) Schema {
	cols := make([]Column, len(names))
	for i, name := range names {
		cols[i] = Column{Name: name, Type: TypeUnknown}
	}
	return Schema{Columns: cols}
}

// Names returns the column names in schema order.
func (s Schema) Names() []string {
	names := make([]string, len(s.Columns))
	for i, col := range s.Columns {
		names[i] = col.Name
	}
	return names
}

// Index returns the position of the named column, or -1 if it is absent.
func (s Schema) Index(name string) int {
	for i, col := range s.Columns {
		if col.Name == name {
			return i
		}
	}
	return -1
}

// Has reports whether the schema contains the named column.
func (s Schema) Has(name string) bool {
	return s.Index(name) >= 0
}

// Record maps a column name to a scalar value. Values are nil, string,
// int64, float64 or bool once normalized with NormalizeValue.
type Record map[string]any

// Dataset is an ordered sequence of records sharing a schema.
// It is produced by a DatasetSource and treated as read-only by the engine.
type Dataset struct {
	// Name identifies where the dataset came from (file name, table, ...).
	Name string `json:"name"`

	// Schema lists the columns in source order.
	Schema Schema `json:"schema"`

	// Records holds the rows in source order.
	Records []Record `json:"records"`
}

// Len returns the number of records in the dataset.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Records)
}

// Thresholds are the inclusive upper bounds used to decide a verdict.
type Thresholds struct {
	MaxMismatchPercentage   float64 `json:"max_mismatch_percentage" mapstructure:"max_mismatch_percentage"`
	MaxRecordDiffPercentage float64 `json:"max_record_diff_percentage" mapstructure:"max_record_diff_percentage"`
	MaxMissingRecords       int     `json:"max_missing_records" mapstructure:"max_missing_records"`
}

// ComparisonConfig holds the fully resolved rules for one comparison.
type ComparisonConfig struct {
	// PrimaryKeys are the ordered columns identifying a record.
	PrimaryKeys []string `json:"primary_keys" mapstructure:"primary_keys"`

	// ExcludeColumns are skipped during value comparison, never during key computation.
	ExcludeColumns []string `json:"exclude_columns" mapstructure:"exclude_columns"`

	// NumericTolerance is the absolute difference still counted as equal.
	NumericTolerance float64 `json:"numeric_tolerance" mapstructure:"numeric_tolerance"`

	CaseSensitive       bool `json:"case_sensitive" mapstructure:"case_sensitive"`
	StripWhitespace     bool `json:"strip_whitespace" mapstructure:"strip_whitespace"`
	TreatEmptyAsNull    bool `json:"treat_empty_as_null" mapstructure:"treat_empty_as_null"`
	NullVsEmptyMismatch bool `json:"null_vs_empty_mismatch" mapstructure:"null_vs_empty_mismatch"`

	Thresholds Thresholds `json:"thresholds" mapstructure:"thresholds"`
}

// DefaultThresholds returns the thresholds used when none are configured.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MaxMismatchPercentage:   5.0,
		MaxRecordDiffPercentage: 1.0,
		MaxMissingRecords:       10,
	}
}

// DefaultComparisonConfig returns a config with the framework defaults and the given keys.
func DefaultComparisonConfig(primaryKeys ...string) ComparisonConfig {
	return ComparisonConfig{
		PrimaryKeys:         primaryKeys,
		NumericTolerance:    0.01,
		CaseSensitive:       false,
		StripWhitespace:     true,
		TreatEmptyAsNull:    false,
		NullVsEmptyMismatch: true,
		Thresholds:          DefaultThresholds(),
	}
}

// SourceConfig describes where a dataset comes from.
type SourceConfig struct {
	// Type selects the source variant (csv, excel, parquet, arrow, postgres, mysql, sqlserver, oracle, adbc, auto).
	Type string `json:"type" mapstructure:"type"`

	// Name overrides the derived dataset name.
	Name string `json:"name" mapstructure:"name"`

	// Path is the path to a file source.
	Path string `json:"path" mapstructure:"path"`

	// Delimiter is the CSV field separator. Defaults to ','.
	Delimiter string `json:"delimiter" mapstructure:"delimiter"`

	// HasHeader reports whether the first row of a file holds column names.
	HasHeader *bool `json:"has_header" mapstructure:"has_header"`

	// SkipRows is the number of leading rows skipped before the header.
	SkipRows int `json:"skip_rows" mapstructure:"skip_rows"`

	// SheetName is the Excel sheet to read. Defaults to the first sheet.
	SheetName string `json:"sheet_name" mapstructure:"sheet_name"`

	// SheetNames reads several Excel sheets and concatenates their rows.
	SheetNames []string `json:"sheet_names" mapstructure:"sheet_names"`

	// Columns restricts the columns read from the source.
	Columns []string `json:"columns" mapstructure:"columns"`

	// Host, Port, Database, Username, Password, SSLMode describe a database connection.
	Host     string `json:"host" mapstructure:"host"`
	Port     int    `json:"port" mapstructure:"port"`
	Database string `json:"database" mapstructure:"database"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"-" mapstructure:"password"`
	SSLMode  string `json:"sslmode" mapstructure:"sslmode"`

	// ConnectionString overrides the connection built from the fields above.
	ConnectionString string `json:"-" mapstructure:"connection_string"`

	// Table is the table to read.
	Table string `json:"table" mapstructure:"table"`

	// Query is a raw query; it takes precedence over Table.
	Query string `json:"query" mapstructure:"query"`

	// Limit caps the number of rows read from a table. Zero means no limit.
	Limit int `json:"limit" mapstructure:"limit"`

	// DriverPath is the shared library used by the ADBC source.
	DriverPath string `json:"driver_path" mapstructure:"driver_path"`

	// DriverOptions are extra ADBC database options.
	DriverOptions map[string]string `json:"driver_options" mapstructure:"driver_options"`

	// TimeoutSeconds bounds connection setup. Defaults to 30.
	TimeoutSeconds int `json:"timeout_seconds" mapstructure:"timeout_seconds"`

	// BatchSize is the size of batches read from columnar sources.
	BatchSize int64 `json:"batch_size" mapstructure:"batch_size"`
}

// Header reports whether the source has a header row (default true).
func (c SourceConfig) Header() bool {
	return c.HasHeader == nil || *c.HasHeader
}

// DatasetSource produces a Dataset from a source descriptor.
type DatasetSource interface {
	// Load materializes the whole dataset.
	Load(ctx context.Context) (*Dataset, error)

	// Close releases connections and file handles.
	Close() error
}
