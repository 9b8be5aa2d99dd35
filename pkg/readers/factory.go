// Package readers provides dataset sources for flat files, columnar files and databases.
package readers

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/TFMV/recon/pkg/core"
)

// Source type names.
const (
	TypeAuto      = "auto"
	TypeCSV       = "csv"
	TypeExcel     = "excel"
	TypeParquet   = "parquet"
	TypeArrow     = "arrow"
	TypePostgres  = "postgres"
	TypeMySQL     = "mysql"
	TypeSQLServer = "sqlserver"
	TypeOracle    = "oracle"
	TypeADBC      = "adbc"
)

// Factory creates dataset sources based on the source type.
type Factory struct {
	mu      sync.RWMutex
	sources map[string]Creator
}

// Creator is a function that creates a source from a configuration.
type Creator func(config core.SourceConfig) (core.DatasetSource, error)

// NewFactory creates a new, empty source factory.
func NewFactory() *Factory {
	return &Factory{
		sources: make(map[string]Creator),
	}
}

// Register registers a creator for a source type.
func (f *Factory) Register(typ string, creator Creator) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sources[strings.ToLower(typ)] = creator
}

// Types returns the registered source types in sorted order.
func (f *Factory) Types() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	types := make([]string, 0, len(f.sources))
	for typ := range f.sources {
		types = append(types, typ)
	}
	sort.Strings(types)
	return types
}

// Supports reports whether typ can be created, counting "auto" as supported.
func (f *Factory) Supports(typ string) bool {
	typ = strings.ToLower(typ)
	if typ == TypeAuto || typ == "" {
		return true
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.sources[typ]
	return ok
}

// Create creates a source based on the given configuration. An empty or "auto"
// type is resolved from the file extension of the path.
func (f *Factory) Create(config core.SourceConfig) (core.DatasetSource, error) {
	typ := strings.ToLower(config.Type)
	if typ == "" || typ == TypeAuto {
		detected, err := DetectType(config.Path)
		if err != nil {
			return nil, err
		}
		typ = detected
	}
	config.Type = typ

	f.mu.RLock()
	creator, ok := f.sources[typ]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported source type: %s", config.Type)
	}
	return creator(config)
}

// DetectType maps a file extension to a source type.
func DetectType(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("cannot detect source type: path is empty")
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".tsv", ".txt":
		return TypeCSV, nil
	case ".xlsx", ".xlsm", ".xls":
		return TypeExcel, nil
	case ".parquet", ".pq":
		return TypeParquet, nil
	case ".arrow", ".ipc", ".feather":
		return TypeArrow, nil
	}
	return "", fmt.Errorf("cannot detect source type from extension of %q", path)
}

// DefaultFactory is the default source factory with built-in source types.
var DefaultFactory = NewFactory()

// Open creates a source from the default factory.
func Open(config core.SourceConfig) (core.DatasetSource, error) {
	return DefaultFactory.Create(config)
}

// init registers built-in source types.
func init() {
	DefaultFactory.Register(TypeCSV, NewCSVSource)
	DefaultFactory.Register(TypeExcel, NewExcelSource)
	DefaultFactory.Register(TypeParquet, NewParquetSource)
	DefaultFactory.Register(TypeArrow, NewArrowSource)
	DefaultFactory.Register(TypePostgres, NewPostgresSource)
	DefaultFactory.Register(TypeSQLServer, NewSQLServerSource)
	DefaultFactory.Register(TypeOracle, NewOracleSource)
	DefaultFactory.Register(TypeMySQL, NewMySQLSource)
	DefaultFactory.Register(TypeADBC, NewADBCSource)
}

// datasetName returns the configured name or one derived from the source.
func datasetName(config core.SourceConfig) string {
	switch {
	case config.Name != "":
		return config.Name
	case config.Path != "":
		return filepath.Base(config.Path)
	case config.Table != "" && config.Database != "":
		return config.Database + "." + config.Table
	case config.Table != "":
		return config.Table
	}
	return config.Type + " query"
}

// projectQuery restricts the result of a raw query to the configured columns.
// Table reads select their columns in SQL and are returned unchanged.
func projectQuery(ds *core.Dataset, config core.SourceConfig) (*core.Dataset, error) {
	if config.Query == "" || len(config.Columns) == 0 {
		return ds, nil
	}
	selected, err := selectColumns(ds.Schema.Names(), config.Columns)
	if err != nil {
		return nil, err
	}
	out := &core.Dataset{Name: ds.Name}
	for _, idx := range selected {
		out.Schema.Columns = append(out.Schema.Columns, ds.Schema.Columns[idx])
	}
	for _, rec := range ds.Records {
		r := make(core.Record, len(selected))
		for _, col := range out.Schema.Columns {
			r[col.Name] = rec[col.Name]
		}
		out.Records = append(out.Records, r)
	}
	return out, nil
}
