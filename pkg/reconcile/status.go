package reconcile

import (
	"fmt"
	"math"

	"github.com/TFMV/recon/pkg/core"
)

// Status is the verdict of a comparison.
type Status string

const (
	StatusPassed Status = "PASSED"
	StatusFailed Status = "FAILED"
)

// Check names a threshold check.
type Check string

const (
	CheckMissingRecords       Check = "max_missing_records"
	CheckRecordDiffPercentage Check = "max_record_diff_percentage"
	CheckMismatchPercentage   Check = "max_mismatch_percentage"
)

// Violation records a metric that exceeded its threshold.
type Violation struct {
	Check  Check   `json:"check"`
	Actual float64 `json:"actual"`
	Limit  float64 `json:"limit"`
}

func (v Violation) String() string {
	switch v.Check {
	case CheckMissingRecords:
		return fmt.Sprintf("missing records %d exceed threshold %d", int(v.Actual), int(v.Limit))
	case CheckRecordDiffPercentage:
		return fmt.Sprintf("record count difference %.2f%% exceeds threshold %.2f%%", v.Actual, v.Limit)
	case CheckMismatchPercentage:
		return fmt.Sprintf("mismatch percentage %.2f%% exceeds threshold %.2f%%", v.Actual, v.Limit)
	}
	return fmt.Sprintf("%s: %v exceeds %v", v.Check, v.Actual, v.Limit)
}

// Counts are the raw tallies of a comparison.
type Counts struct {
	Matched       int `json:"matched_records"`
	Mismatched    int `json:"mismatched_records"`
	Missing       int `json:"missing_records"`
	Extra         int `json:"extra_records"`
	SourceRecords int `json:"total_source_records"`
	TargetRecords int `json:"total_target_records"`
}

// Metrics are the percentages derived from Counts.
type Metrics struct {
	TotalCompared        int     `json:"total_compared"`
	MismatchPercentage   float64 `json:"mismatch_percentage"`
	MatchPercentage      float64 `json:"match_percentage"`
	RecordDiffPercentage float64 `json:"record_diff_percentage"`
	MissingPercentage    float64 `json:"missing_percentage"`
}

// ComputeMetrics derives the percentages used by the verdict and the summary.
func ComputeMetrics(c Counts) Metrics {
	m := Metrics{TotalCompared: c.Matched + c.Mismatched}
	if m.TotalCompared > 0 {
		m.MismatchPercentage = 100 * float64(c.Mismatched) / float64(m.TotalCompared)
		m.MatchPercentage = 100 * float64(c.Matched) / float64(m.TotalCompared)
	}
	if larger := max(c.SourceRecords, c.TargetRecords); larger > 0 {
		diff := math.Abs(float64(c.SourceRecords - c.TargetRecords))
		m.RecordDiffPercentage = 100 * diff / float64(larger)
	}
	if c.SourceRecords > 0 {
		m.MissingPercentage = 100 * float64(c.Missing) / float64(c.SourceRecords)
	}
	return m
}

// EvaluateStatus applies the thresholds to the counts. Every violated check is
// returned, in the order missing records, record difference, mismatch percentage.
// A metric equal to its threshold passes.
func EvaluateStatus(c Counts, thresholds core.Thresholds) (Status, Metrics, []Violation) {
	m := ComputeMetrics(c)

	var violations []Violation
	if c.Missing > thresholds.MaxMissingRecords {
		violations = append(violations, Violation{
			Check:  CheckMissingRecords,
			Actual: float64(c.Missing),
			Limit:  float64(thresholds.MaxMissingRecords),
		})
	}
	if m.RecordDiffPercentage > thresholds.MaxRecordDiffPercentage {
		violations = append(violations, Violation{
			Check:  CheckRecordDiffPercentage,
			Actual: m.RecordDiffPercentage,
			Limit:  thresholds.MaxRecordDiffPercentage,
		})
	}
	if m.MismatchPercentage > thresholds.MaxMismatchPercentage {
		violations = append(violations, Violation{
			Check:  CheckMismatchPercentage,
			Actual: m.MismatchPercentage,
			Limit:  thresholds.MaxMismatchPercentage,
		})
	}

	if len(violations) > 0 {
		return StatusFailed, m, violations
	}
	return StatusPassed, m, nil
}
