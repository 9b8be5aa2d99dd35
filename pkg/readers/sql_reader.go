package readers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/TFMV/recon/pkg/core"
	go_ora "github.com/sijms/go-ora/v2"

	_ "github.com/lib/pq"
	_ "github.com/microsoft/go-mssqldb"
)

const defaultTimeout = 30 * time.Second

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*(\.[A-Za-z_][A-Za-z0-9_$]*)*$`)

// Dialect describes how to reach and query one database engine.
type Dialect struct {
	// Name is the source type.
	Name string

	// Driver is the database/sql driver name.
	Driver string

	// DSN builds a connection string from the source fields.
	DSN func(config core.SourceConfig) string

	// Limit wraps a column list and table into a row-limited SELECT.
	Limit func(columns, table string, limit int) string
}

// Postgres is the PostgreSQL dialect, using lib/pq.
var Postgres = Dialect{
	Name:   TypePostgres,
	Driver: "postgres",
	DSN: func(c core.SourceConfig) string {
		sslmode := c.SSLMode
		if sslmode == "" {
			sslmode = "disable"
		}
		port := c.Port
		if port == 0 {
			port = 5432
		}
		return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s connect_timeout=%d",
			pqQuote(c.Host), port, pqQuote(c.Database), pqQuote(c.Username), pqQuote(c.Password),
			sslmode, int(timeout(c).Seconds()))
	},
	Limit: func(columns, table string, limit int) string {
		return fmt.Sprintf("SELECT %s FROM %s LIMIT %d", columns, table, limit)
	},
}

// SQLServer is the Microsoft SQL Server dialect, using go-mssqldb.
var SQLServer = Dialect{
	Name:   TypeSQLServer,
	Driver: "sqlserver",
	DSN: func(c core.SourceConfig) string {
		port := c.Port
		if port == 0 {
			port = 1433
		}
		q := url.Values{}
		q.Set("database", c.Database)
		q.Set("connection timeout", strconv.Itoa(int(timeout(c).Seconds())))
		u := url.URL{
			Scheme:   "sqlserver",
			User:     url.UserPassword(c.Username, c.Password),
			Host:     fmt.Sprintf("%s:%d", c.Host, port),
			RawQuery: q.Encode(),
		}
		return u.String()
	},
	Limit: func(columns, table string, limit int) string {
		return fmt.Sprintf("SELECT TOP %d %s FROM %s", limit, columns, table)
	},
}

// Oracle is the Oracle dialect, using go-ora. Database holds the service name.
var Oracle = Dialect{
	Name:   TypeOracle,
	Driver: "oracle",
	DSN: func(c core.SourceConfig) string {
		port := c.Port
		if port == 0 {
			port = 1521
		}
		return go_ora.BuildUrl(c.Host, port, c.Database, c.Username, c.Password, map[string]string{
			"CONNECTION TIMEOUT": strconv.Itoa(int(timeout(c).Seconds())),
		})
	},
	Limit: func(columns, table string, limit int) string {
		return fmt.Sprintf("SELECT %s FROM %s FETCH FIRST %d ROWS ONLY", columns, table, limit)
	},
}

// SQLSource reads a table or query result through database/sql.
type SQLSource struct {
	config  core.SourceConfig
	dialect Dialect

	mu sync.Mutex
	db *sql.DB
}

// NewPostgresSource creates a PostgreSQL source.
func NewPostgresSource(config core.SourceConfig) (core.DatasetSource, error) {
	return newDialectSource(config, Postgres)
}

// NewSQLServerSource creates a SQL Server source.
func NewSQLServerSource(config core.SourceConfig) (core.DatasetSource, error) {
	return newDialectSource(config, SQLServer)
}

// NewOracleSource creates an Oracle source.
func NewOracleSource(config core.SourceConfig) (core.DatasetSource, error) {
	return newDialectSource(config, Oracle)
}

func newDialectSource(config core.SourceConfig, dialect Dialect) (core.DatasetSource, error) {
	src, err := NewSQLSource(config, dialect)
	if err != nil {
		return nil, err
	}
	return src, nil
}

// NewSQLSource creates a source for the given dialect. The connection is opened on Load.
func NewSQLSource(config core.SourceConfig, dialect Dialect) (*SQLSource, error) {
	if _, err := buildQuery(config, dialect.Limit); err != nil {
		return nil, err
	}
	if config.ConnectionString == "" && config.Host == "" {
		return nil, fmt.Errorf("%s source requires host or connection_string", dialect.Name)
	}
	return &SQLSource{config: config, dialect: dialect}, nil
}

// NewSQLSourceWithDB creates a source reading from an already opened database.
func NewSQLSourceWithDB(config core.SourceConfig, dialect Dialect, db *sql.DB) (*SQLSource, error) {
	if _, err := buildQuery(config, dialect.Limit); err != nil {
		return nil, err
	}
	return &SQLSource{config: config, dialect: dialect, db: db}, nil
}

// Load runs the query and reads every row.
func (s *SQLSource) Load(ctx context.Context) (*core.Dataset, error) {
	db, err := s.open(ctx)
	if err != nil {
		return nil, err
	}

	query, _ := buildQuery(s.config, s.dialect.Limit)
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", s.dialect.Name, err)
	}
	defer rows.Close()

	ds, err := scanRows(ctx, datasetName(s.config), rows)
	if err != nil {
		return nil, err
	}
	return projectQuery(ds, s.config)
}

func (s *SQLSource) open(ctx context.Context) (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db, nil
	}

	dsn := s.config.ConnectionString
	if dsn == "" {
		dsn = s.dialect.DSN(s.config)
	}
	db, err := sql.Open(s.dialect.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", s.dialect.Name, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout(s.config))
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", s.dialect.Name, err)
	}
	s.db = db
	return db, nil
}

// Close closes the database connection.
func (s *SQLSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// buildQuery returns the configured query, or a SELECT over the configured table.
func buildQuery(config core.SourceConfig, limit func(columns, table string, limit int) string) (string, error) {
	if strings.TrimSpace(config.Query) != "" {
		return config.Query, nil
	}
	if config.Table == "" {
		return "", errors.New("either query or table is required for database source")
	}
	if !identifierPattern.MatchString(config.Table) {
		return "", fmt.Errorf("invalid table name %q", config.Table)
	}
	if config.Limit < 0 {
		return "", fmt.Errorf("limit must not be negative, got %d", config.Limit)
	}

	columns := "*"
	if len(config.Columns) > 0 {
		for _, col := range config.Columns {
			if !identifierPattern.MatchString(col) {
				return "", fmt.Errorf("invalid column name %q", col)
			}
		}
		columns = strings.Join(config.Columns, ", ")
	}

	if config.Limit > 0 {
		return limit(columns, config.Table, config.Limit), nil
	}
	return fmt.Sprintf("SELECT %s FROM %s", columns, config.Table), nil
}

// scanRows reads every row into a Dataset, normalizing driver values.
func scanRows(ctx context.Context, name string, rows *sql.Rows) (*core.Dataset, error) {
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to get column types: %w", err)
	}

	ds := &core.Dataset{Name: name}
	numeric := make([]bool, len(colTypes))
	for i, ct := range colTypes {
		typ := sqlDataType(ct.DatabaseTypeName())
		numeric[i] = isDecimalType(ct.DatabaseTypeName())
		ds.Schema.Columns = append(ds.Schema.Columns, core.Column{Name: ct.Name(), Type: typ})
	}

	values := make([]any, len(colTypes))
	ptrs := make([]any, len(colTypes))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		rec := make(core.Record, len(values))
		for i, col := range ds.Schema.Columns {
			v := core.NormalizeValue(values[i])
			if s, ok := v.(string); ok && numeric[i] {
				if f, err := strconv.ParseFloat(s, 64); err == nil {
					v = f
				}
			}
			rec[col.Name] = v
		}
		ds.Records = append(ds.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	inferUnknownTypes(ds)
	return ds, nil
}

// inferUnknownTypes types columns the driver reported no type name for from
// their first non-null value.
func inferUnknownTypes(ds *core.Dataset) {
	for i, col := range ds.Schema.Columns {
		if col.Type != core.TypeUnknown {
			continue
		}
		for _, rec := range ds.Records {
			if v := rec[col.Name]; v != nil {
				ds.Schema.Columns[i].Type = core.TypeOf(v)
				break
			}
		}
	}
}

// sqlDataType maps a database type name to the dataset column type.
func sqlDataType(typeName string) core.DataType {
	switch strings.ToUpper(typeName) {
	case "INTEGER", "INT", "INT2", "INT4", "INT8", "BIGINT", "SMALLINT", "TINYINT", "MEDIUMINT":
		return core.TypeInteger
	case "REAL", "FLOAT", "FLOAT4", "FLOAT8", "DOUBLE", "BINARY_FLOAT", "BINARY_DOUBLE",
		"NUMERIC", "DECIMAL", "NUMBER", "MONEY", "SMALLMONEY":
		return core.TypeFloat
	case "BOOL", "BOOLEAN", "BIT":
		return core.TypeBoolean
	case "":
		return core.TypeUnknown
	}
	return core.TypeString
}

func isDecimalType(typeName string) bool {
	switch strings.ToUpper(typeName) {
	case "NUMERIC", "DECIMAL", "NUMBER", "MONEY", "SMALLMONEY":
		return true
	}
	return false
}

func timeout(config core.SourceConfig) time.Duration {
	if config.TimeoutSeconds > 0 {
		return time.Duration(config.TimeoutSeconds) * time.Second
	}
	return defaultTimeout
}

// pqQuote quotes a lib/pq keyword/value connection parameter.
func pqQuote(v string) string {
	if v == "" {
		return "''"
	}
	if !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}
