package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/TFMV/recon/pkg/core"
	"github.com/TFMV/recon/pkg/reconcile"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compare(t *testing.T) *reconcile.ComparisonResult {
	t.Helper()
	cols := []string{"id", "a", "b"}
	source := &core.Dataset{Name: "src", Schema: core.NewSchema(cols...), Records: []core.Record{
		{"id": 1, "a": "x", "b": 1},
		{"id": 2, "a": "y", "b": 2},
		{"id": 3, "a": "z", "b": 3},
		{"id": 4, "a": "w", "b": 4},
	}}
	target := &core.Dataset{Name: "tgt", Schema: core.NewSchema(cols...), Records: []core.Record{
		{"id": 1, "a": "x", "b": 1},
		{"id": 2, "a": "Y!", "b": 5},
		{"id": 3, "a": "Z!", "b": 3},
		{"id": 9, "a": "q", "b": 9},
	}}
	result, err := reconcile.Compare(source, target, core.DefaultComparisonConfig("id"))
	require.NoError(t, err)
	return result
}

func TestCollectorObserve(t *testing.T) {
	c := NewCollector()
	result := compare(t)

	c.Observe("customers", result)
	c.Observe("customers", result)
	c.ObserveError(time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.ComparisonsTotal.WithLabelValues("FAILED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ComparisonsTotal.WithLabelValues("ERROR")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.RecordsTotal.WithLabelValues(OutcomeMatched)))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.RecordsTotal.WithLabelValues(OutcomeMismatched)))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.RecordsTotal.WithLabelValues(OutcomeMissing)))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.RecordsTotal.WithLabelValues(OutcomeExtra)))
	assert.InDelta(t, 66.67, testutil.ToFloat64(c.MismatchPercentage.WithLabelValues("customers")), 0.01)
}

func TestCollectorRegistry(t *testing.T) {
	c := NewCollector()
	c.Observe("orders", compare(t))

	expected := `
# HELP recon_comparisons_total Total comparisons by final status
# TYPE recon_comparisons_total counter
recon_comparisons_total{status="FAILED"} 1
`
	err := testutil.GatherAndCompare(c.Registry(), strings.NewReader(expected), "recon_comparisons_total")
	assert.NoError(t, err)
}

func TestSummarize(t *testing.T) {
	s := Summarize(compare(t))

	assert.Equal(t, SummaryCounts{
		TotalSourceRecords: 4,
		TotalTargetRecords: 4,
		MatchedRecords:     1,
		MismatchedRecords:  2,
		MissingRecords:     1,
		ExtraRecords:       1,
		OverallStatus:      reconcile.StatusFailed,
	}, s.Summary)
	assert.InDelta(t, 33.33, s.Statistics.MatchPercentage, 0.01)
	assert.InDelta(t, 66.67, s.Statistics.MismatchPercentage, 0.01)
	assert.Equal(t, 25.0, s.Statistics.MissingPercentage)
	assert.Equal(t, []ColumnCount{{Column: "a", Count: 2}, {Column: "b", Count: 1}}, s.Statistics.ColumnMismatches)
	assert.Equal(t, map[string]int{"VALUE_DIFFERENT": 3}, s.Statistics.KindMismatches)
}
