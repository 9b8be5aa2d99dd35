package reconcile

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/TFMV/recon/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// newDataset builds a dataset from column names and positional rows.
func newDataset(name string, columns []string, rows ...[]any) *core.Dataset {
	ds := &core.Dataset{Name: name, Schema: core.NewSchema(columns...)}
	for _, row := range rows {
		rec := make(core.Record, len(columns))
		for i, col := range columns {
			rec[col] = row[i]
		}
		ds.Records = append(ds.Records, rec)
	}
	return ds
}

var peopleColumns = []string{"id", "name", "amt"}

func TestCompareEndToEnd(t *testing.T) {
	source := newDataset("source", peopleColumns,
		[]any{1, "Alice", 100.00},
		[]any{2, "Bob", 200.00},
	)
	target := newDataset("target", peopleColumns,
		[]any{1, "alice", 100.004},
		[]any{3, "Carol", 50.00},
	)

	cfg := core.DefaultComparisonConfig("id")
	cfg.NumericTolerance = 0.01
	cfg.CaseSensitive = false

	result, err := Compare(source, target, cfg)
	require.NoError(t, err)

	assert.Equal(t, []Key{{int64(2)}}, result.MissingKeys())
	assert.Equal(t, []Key{{int64(3)}}, result.ExtraKeys())
	assert.Equal(t, []Key{{int64(1)}}, result.MatchedKeys())
	assert.Equal(t, 1, result.MatchedRecords())
	assert.Equal(t, 0, result.MismatchedRecords())
	assert.Equal(t, 1, result.MissingRecords())
	assert.Equal(t, 1, result.ExtraRecords())
	assert.Empty(t, result.MismatchDetails())
	assert.Equal(t, []string{"name", "amt"}, result.ComparedColumns())

	cfg.Thresholds.MaxMissingRecords = 0
	result, err = Compare(source, target, cfg)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, result.Status())
	require.NotEmpty(t, result.Violations())
	assert.Equal(t, CheckMissingRecords, result.Violations()[0].Check)
	assert.Contains(t, result.Reason(), "missing records 1")
}

func TestCompareDisjointKeys(t *testing.T) {
	source := newDataset("a", peopleColumns,
		[]any{1, "a", 1.0},
		[]any{2, "b", 2.0},
		[]any{3, "c", 3.0},
	)
	target := newDataset("b", peopleColumns,
		[]any{10, "a", 1.0},
		[]any{11, "b", 2.0},
	)

	result, err := Compare(source, target, core.DefaultComparisonConfig("id"))
	require.NoError(t, err)

	assert.Equal(t, source.Len(), result.MissingRecords())
	assert.Equal(t, target.Len(), result.ExtraRecords())
	assert.Zero(t, result.MatchedRecords())
	assert.Zero(t, result.MismatchedRecords())
	assert.Zero(t, result.Metrics().TotalCompared)
	assert.Zero(t, result.Metrics().MismatchPercentage)
}

func TestCompareReflexiveAnyOrder(t *testing.T) {
	source := newDataset("a", peopleColumns,
		[]any{1, "Alice", 10.5},
		[]any{2, "Bob", nil},
		[]any{3, "", 7},
	)
	shuffled := newDataset("a", peopleColumns,
		[]any{3, "", 7},
		[]any{1, "Alice", 10.5},
		[]any{2, "Bob", nil},
	)

	result, err := Compare(source, shuffled, core.DefaultComparisonConfig("id"))
	require.NoError(t, err)

	assert.Equal(t, source.Len(), result.MatchedRecords())
	assert.Zero(t, result.MismatchedRecords())
	assert.Zero(t, result.MissingRecords())
	assert.Zero(t, result.ExtraRecords())
	assert.Equal(t, StatusPassed, result.Status())
	assert.True(t, result.Passed())
	assert.Empty(t, result.Reason())
}

func TestCompareSymmetry(t *testing.T) {
	a := newDataset("a", peopleColumns,
		[]any{1, "x", 1.0},
		[]any{2, "y", 2.0},
		[]any{4, "z", 4.0},
	)
	b := newDataset("b", peopleColumns,
		[]any{2, "y", 2.0},
		[]any{5, "v", 5.0},
		[]any{6, "w", 6.0},
	)
	cfg := core.DefaultComparisonConfig("id")

	ab, err := Compare(a, b, cfg)
	require.NoError(t, err)
	ba, err := Compare(b, a, cfg)
	require.NoError(t, err)

	assert.Equal(t, ab.MissingKeys(), ba.ExtraKeys())
	assert.Equal(t, ab.ExtraKeys(), ba.MissingKeys())
}

func TestCompareCompositeKeyAndOrdering(t *testing.T) {
	cols := []string{"region", "id", "qty", "note"}
	source := newDataset("src", cols,
		[]any{"eu", 1, 5, "a"},
		[]any{"us", 1, 6, "b"},
		[]any{"eu", 2, 7, "c"},
	)
	target := newDataset("tgt", cols,
		[]any{"eu", 2, 8, "C!"},
		[]any{"us", 1, 6, "b"},
		[]any{"eu", 1, 9, "z"},
	)

	result, err := Compare(source, target, core.DefaultComparisonConfig("region", "id"))
	require.NoError(t, err)

	assert.Equal(t, 1, result.MatchedRecords())
	assert.Equal(t, 2, result.MismatchedRecords())

	details := result.MismatchDetails()
	require.Len(t, details, 4)
	// Details follow source key order, then column order.
	assert.Equal(t, Key{"eu", int64(1)}, details[0].Key)
	assert.Equal(t, "qty", details[0].Column)
	assert.Equal(t, Key{"eu", int64(1)}, details[1].Key)
	assert.Equal(t, "note", details[1].Column)
	assert.Equal(t, Key{"eu", int64(2)}, details[2].Key)
	assert.Equal(t, "qty", details[2].Column)
	assert.Equal(t, "note", details[3].Column)

	assert.Equal(t, []Key{{"eu", int64(1)}, {"eu", int64(2)}}, result.MismatchedKeys())
	assert.Equal(t, "(eu, 1)", details[0].Key.String())
}

func TestCompareExcludeColumnsOnlyAffectsValues(t *testing.T) {
	source := newDataset("a", peopleColumns, []any{1, "Alice", 1.0})
	target := newDataset("b", peopleColumns, []any{1, "Alicia", 1.0})

	cfg := core.DefaultComparisonConfig("id")
	cfg.ExcludeColumns = []string{"name", "id"}

	result, err := Compare(source, target, cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, result.MatchedRecords())
	assert.Equal(t, []string{"amt"}, result.ComparedColumns())
}

func TestCompareOnlySharedColumns(t *testing.T) {
	source := newDataset("a", []string{"id", "name", "source_only"}, []any{1, "x", "s"})
	target := newDataset("b", []string{"id", "target_only", "name"}, []any{1, "t", "x"})

	result, err := Compare(source, target, core.DefaultComparisonConfig("id"))
	require.NoError(t, err)
	assert.Equal(t, []string{"name"}, result.ComparedColumns())
	assert.Equal(t, 1, result.MatchedRecords())
}

func TestCompareThresholdBoundary(t *testing.T) {
	cols := []string{"id", "v"}
	var srcRows, tgtRows [][]any
	for i := 0; i < 20; i++ {
		srcRows = append(srcRows, []any{i, "same"})
		if i == 0 {
			tgtRows = append(tgtRows, []any{i, "different"})
		} else {
			tgtRows = append(tgtRows, []any{i, "same"})
		}
	}
	source := newDataset("a", cols, srcRows...)
	target := newDataset("b", cols, tgtRows...)

	cfg := core.DefaultComparisonConfig("id")
	cfg.Thresholds.MaxMismatchPercentage = 5.0

	result, err := Compare(source, target, cfg)
	require.NoError(t, err)
	assert.Equal(t, 5.0, result.Metrics().MismatchPercentage)
	assert.Equal(t, StatusPassed, result.Status())

	cfg.Thresholds.MaxMismatchPercentage = 4.99
	result, err = Compare(source, target, cfg)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, result.Status())
	require.Len(t, result.Violations(), 1)
	assert.Equal(t, CheckMismatchPercentage, result.Violations()[0].Check)
}

func TestCompareRetainsAllViolations(t *testing.T) {
	source := newDataset("a", []string{"id", "v"},
		[]any{1, "x"},
		[]any{2, "y"},
		[]any{3, "z"},
	)
	target := newDataset("b", []string{"id", "v"},
		[]any{1, "changed"},
	)

	cfg := core.DefaultComparisonConfig("id")
	cfg.Thresholds = core.Thresholds{}

	result, err := Compare(source, target, cfg)
	require.NoError(t, err)

	violations := result.Violations()
	require.Len(t, violations, 3)
	assert.Equal(t, CheckMissingRecords, violations[0].Check)
	assert.Equal(t, CheckRecordDiffPercentage, violations[1].Check)
	assert.Equal(t, CheckMismatchPercentage, violations[2].Check)
	assert.InDelta(t, 66.666, violations[1].Actual, 0.01)
}

func TestCompareDuplicateKey(t *testing.T) {
	source := newDataset("a", peopleColumns,
		[]any{1, "Alice", 1.0},
		[]any{1, "Again", 2.0},
	)
	target := newDataset("b", peopleColumns, []any{1, "Alice", 1.0})

	result, err := Compare(source, target, core.DefaultComparisonConfig("id"))
	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrDuplicateKey)
	assert.NotErrorIs(t, err, ErrConfiguration)

	var dup *DuplicateKeyError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, RoleSource, dup.Role)
	assert.Equal(t, 0, dup.FirstRow)
	assert.Equal(t, 1, dup.SecondRow)
	assert.Equal(t, Key{int64(1)}, dup.Key)
}

func TestCompareDuplicateKeyInTarget(t *testing.T) {
	source := newDataset("a", peopleColumns, []any{1, "Alice", 1.0})
	target := newDataset("b", peopleColumns,
		[]any{1.0, "Alice", 1.0},
		[]any{1, "Alice", 1.0},
	)

	_, err := Compare(source, target, core.DefaultComparisonConfig("id"))
	var dup *DuplicateKeyError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, RoleTarget, dup.Role)
}

func TestCompareMissingKeyColumn(t *testing.T) {
	source := newDataset("a", peopleColumns, []any{1, "Alice", 1.0})
	target := newDataset("b", []string{"name", "amt"}, []any{"Alice", 1.0})

	_, err := Compare(source, target, core.DefaultComparisonConfig("id"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingKeyColumn)
	assert.ErrorIs(t, err, ErrConfiguration)

	var missing *MissingKeyColumnError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "id", missing.Column)
	assert.Equal(t, RoleTarget, missing.Role)
}

func TestCompareMissingKeyColumnBeforeDuplicates(t *testing.T) {
	source := newDataset("a", peopleColumns,
		[]any{1, "Alice", 1.0},
		[]any{1, "Alice", 1.0},
	)
	target := newDataset("b", []string{"name", "amt"}, []any{"Alice", 1.0})

	_, err := Compare(source, target, core.DefaultComparisonConfig("id"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.False(t, errors.Is(err, ErrDuplicateKey))

	var missing *MissingKeyColumnError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, RoleTarget, missing.Role)
}

func TestCompareNullKey(t *testing.T) {
	source := newDataset("a", peopleColumns, []any{nil, "Alice", 1.0})
	target := newDataset("b", peopleColumns, []any{1, "Alice", 1.0})

	_, err := Compare(source, target, core.DefaultComparisonConfig("id"))
	assert.ErrorIs(t, err, ErrNullKey)

	var nullKey *NullKeyError
	require.ErrorAs(t, err, &nullKey)
	assert.Equal(t, 0, nullKey.Row)
	assert.Equal(t, RoleSource, nullKey.Role)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*core.ComparisonConfig)
		field  string
	}{
		{"no keys", func(c *core.ComparisonConfig) { c.PrimaryKeys = nil }, "primary_keys"},
		{"blank key", func(c *core.ComparisonConfig) { c.PrimaryKeys = []string{""} }, "primary_keys"},
		{"repeated key", func(c *core.ComparisonConfig) { c.PrimaryKeys = []string{"id", "id"} }, "primary_keys"},
		{"negative tolerance", func(c *core.ComparisonConfig) { c.NumericTolerance = -0.1 }, "numeric_tolerance"},
		{"negative mismatch", func(c *core.ComparisonConfig) { c.Thresholds.MaxMismatchPercentage = -1 }, "thresholds.max_mismatch_percentage"},
		{"negative diff", func(c *core.ComparisonConfig) { c.Thresholds.MaxRecordDiffPercentage = -1 }, "thresholds.max_record_diff_percentage"},
		{"negative missing", func(c *core.ComparisonConfig) { c.Thresholds.MaxMissingRecords = -1 }, "thresholds.max_missing_records"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := core.DefaultComparisonConfig("id")
			tt.mutate(&cfg)

			err := ValidateConfig(cfg)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrConfiguration)

			var cfgErr *ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}

	assert.NoError(t, ValidateConfig(core.DefaultComparisonConfig("id")))
}

func TestCompareNilDataset(t *testing.T) {
	_, err := Compare(nil, newDataset("b", peopleColumns), core.DefaultComparisonConfig("id"))
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestCompareEmptyDatasets(t *testing.T) {
	result, err := Compare(newDataset("a", peopleColumns), newDataset("b", peopleColumns), core.DefaultComparisonConfig("id"))
	require.NoError(t, err)
	assert.Equal(t, StatusPassed, result.Status())
	assert.Zero(t, result.Metrics().RecordDiffPercentage)
	assert.Empty(t, result.MissingKeys())
}

func TestParallelMatchesSequential(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	cols := []string{"id", "name", "amount", "active"}

	var srcRows, tgtRows [][]any
	for i := 0; i < 5000; i++ {
		srcRows = append(srcRows, []any{i, fmt.Sprintf("name-%d", i), float64(i) * 1.5, i%2 == 0})
		if i%7 == 0 {
			continue
		}
		amount := float64(i) * 1.5
		if rng.Intn(10) == 0 {
			amount += 1
		}
		name := fmt.Sprintf("NAME-%d", i)
		if i%13 == 0 {
			name = "renamed"
		}
		tgtRows = append(tgtRows, []any{i, name, amount, i%2 == 0})
	}
	for i := 5000; i < 5100; i++ {
		tgtRows = append(tgtRows, []any{i, "extra", 0.0, false})
	}

	source := newDataset("a", cols, srcRows...)
	target := newDataset("b", cols, tgtRows...)
	cfg := core.DefaultComparisonConfig("id")

	sequential, err := NewEngine().Compare(source, target, cfg)
	require.NoError(t, err)
	parallel, err := NewEngine(WithWorkers(4)).Compare(source, target, cfg)
	require.NoError(t, err)

	assert.Equal(t, sequential.Counts(), parallel.Counts())
	assert.Equal(t, sequential.MismatchDetails(), parallel.MismatchDetails())
	assert.Equal(t, sequential.MissingKeys(), parallel.MissingKeys())
	assert.Equal(t, sequential.ExtraKeys(), parallel.ExtraKeys())
	assert.Equal(t, sequential.Violations(), parallel.Violations())
	assert.NotZero(t, parallel.MismatchedRecords())
}

func TestResultIsImmutable(t *testing.T) {
	source := newDataset("a", peopleColumns, []any{1, "Alice", 1.0}, []any{2, "Bob", 2.0})
	target := newDataset("b", peopleColumns, []any{1, "Alicia", 1.0})

	result, err := Compare(source, target, core.DefaultComparisonConfig("id"))
	require.NoError(t, err)

	details := result.MismatchDetails()
	require.Len(t, details, 1)
	details[0].Key[0] = int64(99)
	details[0].Column = "changed"

	missing := result.MissingKeys()
	missing[0][0] = int64(99)

	assert.Equal(t, Key{int64(1)}, result.MismatchDetails()[0].Key)
	assert.Equal(t, "name", result.MismatchDetails()[0].Column)
	assert.Equal(t, []Key{{int64(2)}}, result.MissingKeys())

	// Source records are left untouched.
	assert.Equal(t, "Alice", source.Records[0]["name"])
}

func TestResultMarshalJSON(t *testing.T) {
	source := newDataset("a", peopleColumns, []any{1, "Alice", 1.0})
	target := newDataset("b", peopleColumns, []any{1, "Alice", 2.0})

	result, err := Compare(source, target, core.DefaultComparisonConfig("id"))
	require.NoError(t, err)

	data, err := json.Marshal(result)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "FAILED", decoded["status"])
	assert.Equal(t, []any{}, decoded["missing_keys"])

	details := decoded["mismatch_details"].([]any)
	require.Len(t, details, 1)
	detail := details[0].(map[string]any)
	assert.Equal(t, "amt", detail["column"])
	assert.Equal(t, "VALUE_DIFFERENT", detail["kind"])
	assert.Equal(t, []any{float64(1)}, detail["key"])
}

func TestEngineLogs(t *testing.T) {
	observed, logs := observer.New(zap.DebugLevel)
	engine := NewEngine(WithLogger(zap.New(observed)))

	source := newDataset("a", peopleColumns, []any{1, "Alice", 1.0})
	target := newDataset("b", peopleColumns, []any{1, "Alice", 1.0}, []any{2, "Bob", 1.0})

	_, err := engine.Compare(source, target, core.DefaultComparisonConfig("id"))
	require.NoError(t, err)

	assert.Equal(t, 1, logs.FilterMessage("starting comparison").Len())
	assert.Equal(t, 1, logs.FilterMessage("record counts differ").Len())
	assert.Equal(t, 1, logs.FilterMessage("comparison complete").Len())
}
