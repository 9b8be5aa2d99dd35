package readers

import (
	"context"
	"fmt"
	"sync"

	"github.com/TFMV/recon/pkg/core"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MySQLSource reads a MySQL table or query result through gorm.
type MySQLSource struct {
	config core.SourceConfig

	mu sync.Mutex
	db *gorm.DB
}

// NewMySQLSource creates a MySQL source. The connection is opened on Load.
func NewMySQLSource(config core.SourceConfig) (core.DatasetSource, error) {
	if _, err := buildQuery(config, mysqlLimit); err != nil {
		return nil, err
	}
	if config.ConnectionString == "" && config.Host == "" {
		return nil, fmt.Errorf("mysql source requires host or connection_string")
	}
	return &MySQLSource{config: config}, nil
}

// NewMySQLSourceWithDB creates a source reading from an already opened gorm database.
func NewMySQLSourceWithDB(config core.SourceConfig, db *gorm.DB) (*MySQLSource, error) {
	if _, err := buildQuery(config, mysqlLimit); err != nil {
		return nil, err
	}
	return &MySQLSource{config: config, db: db}, nil
}

// Load runs the query and reads every row.
func (s *MySQLSource) Load(ctx context.Context) (*core.Dataset, error) {
	db, err := s.open(ctx)
	if err != nil {
		return nil, err
	}

	query, _ := buildQuery(s.config, mysqlLimit)
	rows, err := db.WithContext(ctx).Raw(query).Rows()
	if err != nil {
		return nil, fmt.Errorf("failed to query mysql: %w", err)
	}
	defer rows.Close()

	ds, err := scanRows(ctx, datasetName(s.config), rows)
	if err != nil {
		return nil, err
	}
	return projectQuery(ds, s.config)
}

func (s *MySQLSource) open(ctx context.Context) (*gorm.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db, nil
	}

	db, err := gorm.Open(mysql.Open(mysqlDSN(s.config)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mysql: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get mysql connection: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout(s.config))
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to mysql: %w", err)
	}

	s.db = db
	return db, nil
}

// Close closes the database connection.
func (s *MySQLSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	s.db = nil
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func mysqlDSN(c core.SourceConfig) string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	port := c.Port
	if port == 0 {
		port = 3306
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&timeout=%ds",
		c.Username, c.Password, c.Host, port, c.Database, int(timeout(c).Seconds()))
}

func mysqlLimit(columns, table string, limit int) string {
	return fmt.Sprintf("SELECT %s FROM %s LIMIT %d", columns, table, limit)
}
