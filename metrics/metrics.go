// Package metrics records comparison runs as Prometheus metrics and derives
// summary statistics from a result.
package metrics

import (
	"sort"
	"time"

	"github.com/TFMV/recon/pkg/reconcile"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "recon"

// Record outcome label values.
const (
	OutcomeMatched    = "matched"
	OutcomeMismatched = "mismatched"
	OutcomeMissing    = "missing"
	OutcomeExtra      = "extra"
)

// Collector holds the comparison metrics on its own registry.
type Collector struct {
	registry *prometheus.Registry

	// ComparisonsTotal counts finished comparisons.
	// Labels: status (PASSED, FAILED, ERROR)
	ComparisonsTotal *prometheus.CounterVec

	// RecordsTotal counts reconciled records.
	// Labels: outcome (matched, mismatched, missing, extra)
	RecordsTotal *prometheus.CounterVec

	// ComparisonDuration measures engine time per comparison.
	ComparisonDuration prometheus.Histogram

	// MismatchPercentage is the mismatch percentage of the latest run.
	// Labels: comparison
	MismatchPercentage *prometheus.GaugeVec
}

// NewCollector creates a collector and registers its metrics together with the
// Go runtime and process collectors.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		ComparisonsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "comparisons_total",
			Help:      "Total comparisons by final status",
		}, []string{"status"}),
		RecordsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Total reconciled records by outcome",
		}, []string{"outcome"}),
		ComparisonDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "comparison_duration_seconds",
			Help:      "Engine time per comparison in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		MismatchPercentage: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mismatch_percentage",
			Help:      "Mismatch percentage of the most recent run per comparison",
		}, []string{"comparison"}),
	}
	reg.MustRegister(
		c.ComparisonsTotal,
		c.RecordsTotal,
		c.ComparisonDuration,
		c.MismatchPercentage,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the registry backing the collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Observe records a finished comparison.
func (c *Collector) Observe(name string, result *reconcile.ComparisonResult) {
	counts := result.Counts()
	c.ComparisonsTotal.WithLabelValues(string(result.Status())).Inc()
	c.RecordsTotal.WithLabelValues(OutcomeMatched).Add(float64(counts.Matched))
	c.RecordsTotal.WithLabelValues(OutcomeMismatched).Add(float64(counts.Mismatched))
	c.RecordsTotal.WithLabelValues(OutcomeMissing).Add(float64(counts.Missing))
	c.RecordsTotal.WithLabelValues(OutcomeExtra).Add(float64(counts.Extra))
	c.ComparisonDuration.Observe(result.Duration().Seconds())
	c.MismatchPercentage.WithLabelValues(name).Set(result.Metrics().MismatchPercentage)
}

// ObserveError records a comparison that did not produce a result.
func (c *Collector) ObserveError(elapsed time.Duration) {
	c.ComparisonsTotal.WithLabelValues("ERROR").Inc()
	c.ComparisonDuration.Observe(elapsed.Seconds())
}

// Summary is the summary and statistics block of a result.
type Summary struct {
	Summary    SummaryCounts `json:"summary"`
	Statistics Statistics    `json:"statistics"`
}

// SummaryCounts are the record tallies and verdict.
type SummaryCounts struct {
	TotalSourceRecords int              `json:"total_source_records"`
	TotalTargetRecords int              `json:"total_target_records"`
	MatchedRecords     int              `json:"matched_records"`
	MismatchedRecords  int              `json:"mismatched_records"`
	MissingRecords     int              `json:"missing_records"`
	ExtraRecords       int              `json:"extra_records"`
	OverallStatus      reconcile.Status `json:"overall_status"`
}

// Statistics are the derived percentages plus per-column mismatch counts.
type Statistics struct {
	MatchPercentage      float64        `json:"match_percentage"`
	MismatchPercentage   float64        `json:"mismatch_percentage"`
	MissingPercentage    float64        `json:"missing_percentage"`
	RecordDiffPercentage float64        `json:"record_diff_percentage"`
	ColumnMismatches     []ColumnCount  `json:"column_mismatches"`
	KindMismatches       map[string]int `json:"kind_mismatches"`
}

// ColumnCount is the number of mismatching values in one column.
type ColumnCount struct {
	Column string `json:"column"`
	Count  int    `json:"count"`
}

// Summarize derives the summary of a result. Column counts are ordered by
// descending count, then by column name.
func Summarize(result *reconcile.ComparisonResult) Summary {
	counts := result.Counts()
	m := result.Metrics()

	byColumn := make(map[string]int)
	byKind := make(map[string]int)
	for _, d := range result.MismatchDetails() {
		byColumn[d.Column]++
		byKind[string(d.Kind)]++
	}
	columns := make([]ColumnCount, 0, len(byColumn))
	for col, n := range byColumn {
		columns = append(columns, ColumnCount{Column: col, Count: n})
	}
	sort.Slice(columns, func(i, j int) bool {
		if columns[i].Count != columns[j].Count {
			return columns[i].Count > columns[j].Count
		}
		return columns[i].Column < columns[j].Column
	})

	return Summary{
		Summary: SummaryCounts{
			TotalSourceRecords: counts.SourceRecords,
			TotalTargetRecords: counts.TargetRecords,
			MatchedRecords:     counts.Matched,
			MismatchedRecords:  counts.Mismatched,
			MissingRecords:     counts.Missing,
			ExtraRecords:       counts.Extra,
			OverallStatus:      result.Status(),
		},
		Statistics: Statistics{
			MatchPercentage:      m.MatchPercentage,
			MismatchPercentage:   m.MismatchPercentage,
			MissingPercentage:    m.MissingPercentage,
			RecordDiffPercentage: m.RecordDiffPercentage,
			ColumnMismatches:     columns,
			KindMismatches:       byKind,
		},
	}
}
