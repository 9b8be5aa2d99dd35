package reconcile

import (
	"math"
	"time"

	"github.com/TFMV/recon/pkg/core"
	"go.uber.org/zap"
)

// Engine reconciles two in-memory datasets. It holds no state between calls and
// is safe for concurrent use.
type Engine struct {
	logger  *zap.Logger
	workers int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for progress messages. The default discards them.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithWorkers sets the number of goroutines comparing common keys.
// Values below 2 compare sequentially.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = n
	}
}

// NewEngine creates an engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		logger:  zap.NewNop(),
		workers: 1,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Compare reconciles source against target with a sequential engine.
func Compare(source, target *core.Dataset, cfg core.ComparisonConfig) (*ComparisonResult, error) {
	return NewEngine().Compare(source, target, cfg)
}

// Compare reconciles source against target. Configuration, null key and duplicate
// key errors abort the comparison before any record is compared; no partial result
// is returned with an error.
func (e *Engine) Compare(source, target *core.Dataset, cfg core.ComparisonConfig) (*ComparisonResult, error) {
	if source == nil || target == nil {
		return nil, configError("dataset", "source and target datasets are required")
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if err := checkKeyColumns(source, RoleSource, cfg.PrimaryKeys); err != nil {
		return nil, err
	}
	if err := checkKeyColumns(target, RoleTarget, cfg.PrimaryKeys); err != nil {
		return nil, err
	}

	start := time.Now()
	e.logger.Info("starting comparison",
		zap.String("source", source.Name),
		zap.String("target", target.Name),
		zap.Int("source_records", source.Len()),
		zap.Int("target_records", target.Len()),
		zap.Strings("primary_keys", cfg.PrimaryKeys))

	if source.Len() != target.Len() {
		e.logger.Warn("record counts differ",
			zap.Int("source_records", source.Len()),
			zap.Int("target_records", target.Len()))
	}

	srcIdx, err := BuildIndex(source, cfg.PrimaryKeys, RoleSource)
	if err != nil {
		return nil, err
	}
	tgtIdx, err := BuildIndex(target, cfg.PrimaryKeys, RoleTarget)
	if err != nil {
		return nil, err
	}

	columns := ComparedColumns(source.Schema, target.Schema, cfg)
	parts := partition(srcIdx, tgtIdx)
	e.logger.Debug("partitioned keys",
		zap.Int("common", len(parts.common)),
		zap.Int("missing", len(parts.missing)),
		zap.Int("extra", len(parts.extra)),
		zap.Strings("columns", columns))

	outcome := matchCommon(parts.common, cfg, columns, e.workers)

	result := aggregate(source.Name, target.Name, cfg.PrimaryKeys, columns, parts, outcome,
		source.Len(), target.Len(), cfg.Thresholds, time.Since(start))

	e.logger.Info("comparison complete",
		zap.String("status", string(result.Status())),
		zap.Int("matched", result.MatchedRecords()),
		zap.Int("mismatched", result.MismatchedRecords()),
		zap.Int("missing", result.MissingRecords()),
		zap.Int("extra", result.ExtraRecords()),
		zap.Duration("duration", result.Duration()))
	if reason := result.Reason(); reason != "" {
		e.logger.Info("comparison failed thresholds", zap.String("reason", reason))
	}

	return result, nil
}

func checkKeyColumns(ds *core.Dataset, role Role, primaryKeys []string) error {
	for _, col := range primaryKeys {
		if !ds.Schema.Has(col) {
			return &MissingKeyColumnError{Column: col, Role: role}
		}
	}
	return nil
}

// ValidateConfig checks a configuration before any dataset is touched.
func ValidateConfig(cfg core.ComparisonConfig) error {
	if len(cfg.PrimaryKeys) == 0 {
		return configError("primary_keys", "at least one primary key column is required")
	}
	seen := make(map[string]struct{}, len(cfg.PrimaryKeys))
	for _, col := range cfg.PrimaryKeys {
		if col == "" {
			return configError("primary_keys", "column names must not be empty")
		}
		if _, ok := seen[col]; ok {
			return configError("primary_keys", "column %q listed twice", col)
		}
		seen[col] = struct{}{}
	}

	if err := nonNegative("numeric_tolerance", cfg.NumericTolerance); err != nil {
		return err
	}
	if err := nonNegative("thresholds.max_mismatch_percentage", cfg.Thresholds.MaxMismatchPercentage); err != nil {
		return err
	}
	if err := nonNegative("thresholds.max_record_diff_percentage", cfg.Thresholds.MaxRecordDiffPercentage); err != nil {
		return err
	}
	if cfg.Thresholds.MaxMissingRecords < 0 {
		return configError("thresholds.max_missing_records", "must not be negative, got %d", cfg.Thresholds.MaxMissingRecords)
	}
	return nil
}

func nonNegative(field string, v float64) error {
	if math.IsNaN(v) || v < 0 {
		return configError(field, "must be a non-negative number, got %v", v)
	}
	return nil
}
