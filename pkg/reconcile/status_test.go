package reconcile

import (
	"testing"

	"github.com/TFMV/recon/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeMetrics(t *testing.T) {
	m := ComputeMetrics(Counts{Matched: 3, Mismatched: 1, Missing: 2, SourceRecords: 6, TargetRecords: 4})

	assert.Equal(t, 4, m.TotalCompared)
	assert.Equal(t, 25.0, m.MismatchPercentage)
	assert.Equal(t, 75.0, m.MatchPercentage)
	assert.InDelta(t, 33.333, m.RecordDiffPercentage, 0.001)
	assert.InDelta(t, 33.333, m.MissingPercentage, 0.001)

	empty := ComputeMetrics(Counts{})
	assert.Zero(t, empty.MismatchPercentage)
	assert.Zero(t, empty.RecordDiffPercentage)
	assert.Zero(t, empty.MissingPercentage)
}

func TestEvaluateStatusBoundaries(t *testing.T) {
	thresholds := core.Thresholds{
		MaxMismatchPercentage:   25,
		MaxRecordDiffPercentage: 50,
		MaxMissingRecords:       2,
	}

	status, _, violations := EvaluateStatus(Counts{Matched: 3, Mismatched: 1, Missing: 2, SourceRecords: 4, TargetRecords: 2}, thresholds)
	assert.Equal(t, StatusPassed, status)
	assert.Empty(t, violations)

	status, _, violations = EvaluateStatus(Counts{Matched: 3, Mismatched: 1, Missing: 3, SourceRecords: 4, TargetRecords: 2}, thresholds)
	assert.Equal(t, StatusFailed, status)
	require.Len(t, violations, 1)
	assert.Equal(t, Violation{Check: CheckMissingRecords, Actual: 3, Limit: 2}, violations[0])
	assert.Equal(t, "missing records 3 exceed threshold 2", violations[0].String())
}

func TestEvaluateStatusRecordDiff(t *testing.T) {
	status, m, violations := EvaluateStatus(
		Counts{Matched: 100, SourceRecords: 100, TargetRecords: 102, Extra: 2},
		core.DefaultThresholds(),
	)
	assert.Equal(t, StatusFailed, status)
	assert.InDelta(t, 1.96, m.RecordDiffPercentage, 0.01)
	require.Len(t, violations, 1)
	assert.Equal(t, CheckRecordDiffPercentage, violations[0].Check)
	assert.Contains(t, violations[0].String(), "record count difference 1.96%")
}
