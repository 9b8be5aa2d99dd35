package readers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/TFMV/recon/pkg/core"
	"github.com/apache/arrow-adbc/go/adbc"
	"github.com/apache/arrow-adbc/go/adbc/drivermgr"
)

// ADBCSource reads a query result through an ADBC driver library, e.g. DuckDB,
// PostgreSQL or Snowflake drivers. Results arrive as Arrow record batches.
type ADBCSource struct {
	config core.SourceConfig
}

// NewADBCSource creates a new ADBC source.
func NewADBCSource(config core.SourceConfig) (core.DatasetSource, error) {
	if _, err := buildQuery(config, adbcLimit); err != nil {
		return nil, err
	}
	if config.DriverPath == "" {
		config.DriverPath = defaultDriverPath()
	}
	if config.DriverPath == "" {
		return nil, errors.New("driver_path is required for ADBC source")
	}
	return &ADBCSource{config: config}, nil
}

// Load opens the database, runs the query and reads every batch.
func (s *ADBCSource) Load(ctx context.Context) (*core.Dataset, error) {
	opts := map[string]string{
		"driver": s.config.DriverPath,
	}
	if s.config.ConnectionString != "" {
		opts[adbc.OptionKeyURI] = s.config.ConnectionString
	} else if s.config.Path != "" {
		opts["path"] = s.config.Path
	}
	if strings.Contains(strings.ToLower(s.config.DriverPath), "duckdb") {
		opts["entrypoint"] = "duckdb_adbc_init"
	}
	for k, v := range s.config.DriverOptions {
		opts[k] = v
	}

	var drv drivermgr.Driver
	db, err := drv.NewDatabase(opts)
	if err != nil {
		return nil, fmt.Errorf("error creating ADBC database: %w", err)
	}
	defer db.Close()

	conn, err := db.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection: %w", err)
	}
	defer conn.Close()

	stmt, err := conn.NewStatement()
	if err != nil {
		return nil, fmt.Errorf("failed to create statement: %w", err)
	}
	defer stmt.Close()

	query, _ := buildQuery(s.config, adbcLimit)
	if err := stmt.SetSqlQuery(query); err != nil {
		return nil, fmt.Errorf("failed to set SQL query: %w", err)
	}

	rr, _, err := stmt.ExecuteQuery(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rr.Release()

	var columns []string
	if s.config.Query != "" {
		columns = s.config.Columns
	}
	return datasetFromReader(ctx, datasetName(s.config), rr, columns)
}

// Close releases resources held by the source.
func (s *ADBCSource) Close() error {
	return nil
}

// defaultDriverPath returns the conventional DuckDB library location.
func defaultDriverPath() string {
	var candidates []string
	switch runtime.GOOS {
	case "darwin":
		candidates = []string{"/usr/local/lib/libduckdb.dylib", "/opt/homebrew/lib/libduckdb.dylib"}
	case "linux":
		candidates = []string{"/usr/local/lib/libduckdb.so", "/usr/lib/libduckdb.so"}
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func adbcLimit(columns, table string, limit int) string {
	return fmt.Sprintf("SELECT %s FROM %s LIMIT %d", columns, table, limit)
}
