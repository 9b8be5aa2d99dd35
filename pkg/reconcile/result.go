package reconcile

import (
	"encoding/json"
	"time"

	"github.com/TFMV/recon/pkg/core"
)

// ComparisonResult is the immutable outcome of one comparison.
// Accessors return copies; nothing reachable from a result can change it.
type ComparisonResult struct {
	sourceName  string
	targetName  string
	primaryKeys []string
	columns     []string

	counts     Counts
	metrics    Metrics
	status     Status
	violations []Violation

	details     []MismatchDetail
	matchedKeys []Key
	missingKeys []Key
	extraKeys   []Key

	duration time.Duration
}

// aggregate assembles the result once every common key has been compared.
func aggregate(source, target string, primaryKeys, columns []string, p partitions, out matchOutcome, sourceLen, targetLen int, thresholds core.Thresholds, elapsed time.Duration) *ComparisonResult {
	counts := Counts{
		Matched:       out.matched,
		Mismatched:    out.mismatched,
		Missing:       len(p.missing),
		Extra:         len(p.extra),
		SourceRecords: sourceLen,
		TargetRecords: targetLen,
	}
	status, metrics, violations := EvaluateStatus(counts, thresholds)

	return &ComparisonResult{
		sourceName:  source,
		targetName:  target,
		primaryKeys: append([]string(nil), primaryKeys...),
		columns:     append([]string(nil), columns...),
		counts:      counts,
		metrics:     metrics,
		status:      status,
		violations:  violations,
		details:     out.details,
		matchedKeys: out.matchedKeys,
		missingKeys: p.missing,
		extraKeys:   p.extra,
		duration:    elapsed,
	}
}

func (r *ComparisonResult) SourceName() string { return r.sourceName }
func (r *ComparisonResult) TargetName() string { return r.targetName }

// PrimaryKeys returns the key columns the datasets were matched on.
func (r *ComparisonResult) PrimaryKeys() []string {
	return append([]string(nil), r.primaryKeys...)
}

// ComparedColumns returns the columns compared for every common key.
func (r *ComparisonResult) ComparedColumns() []string {
	return append([]string(nil), r.columns...)
}

func (r *ComparisonResult) MatchedRecords() int     { return r.counts.Matched }
func (r *ComparisonResult) MismatchedRecords() int  { return r.counts.Mismatched }
func (r *ComparisonResult) MissingRecords() int     { return r.counts.Missing }
func (r *ComparisonResult) ExtraRecords() int       { return r.counts.Extra }
func (r *ComparisonResult) TotalSourceRecords() int { return r.counts.SourceRecords }
func (r *ComparisonResult) TotalTargetRecords() int { return r.counts.TargetRecords }

// Counts returns all raw tallies.
func (r *ComparisonResult) Counts() Counts { return r.counts }

// Metrics returns the derived percentages.
func (r *ComparisonResult) Metrics() Metrics { return r.metrics }

func (r *ComparisonResult) Status() Status { return r.status }

// Passed reports whether the verdict is PASSED.
func (r *ComparisonResult) Passed() bool { return r.status == StatusPassed }

// Duration is the time spent comparing, excluding data acquisition.
func (r *ComparisonResult) Duration() time.Duration { return r.duration }

// Violations returns every threshold the comparison exceeded.
func (r *ComparisonResult) Violations() []Violation {
	return append([]Violation(nil), r.violations...)
}

// Reason describes the first violated threshold, or "" when the comparison passed.
func (r *ComparisonResult) Reason() string {
	if len(r.violations) == 0 {
		return ""
	}
	return r.violations[0].String()
}

// MismatchDetails returns every column-level mismatch ordered by key then column.
func (r *ComparisonResult) MismatchDetails() []MismatchDetail {
	out := make([]MismatchDetail, len(r.details))
	for i, d := range r.details {
		out[i] = d.clone()
	}
	return out
}

// MatchedKeys returns the common keys whose compared values all agree, in source order.
func (r *ComparisonResult) MatchedKeys() []Key {
	return cloneKeys(r.matchedKeys)
}

// MissingKeys returns the keys present in the source only, in source order.
func (r *ComparisonResult) MissingKeys() []Key {
	return cloneKeys(r.missingKeys)
}

// ExtraKeys returns the keys present in the target only, in target order.
func (r *ComparisonResult) ExtraKeys() []Key {
	return cloneKeys(r.extraKeys)
}

// MismatchedKeys returns the distinct keys with at least one mismatch, in detail order.
func (r *ComparisonResult) MismatchedKeys() []Key {
	var keys []Key
	seen := make(map[string]struct{})
	for _, d := range r.details {
		enc := encodeKey(d.Key)
		if _, ok := seen[enc]; ok {
			continue
		}
		seen[enc] = struct{}{}
		keys = append(keys, d.Key.clone())
	}
	return keys
}

func cloneKeys(keys []Key) []Key {
	out := make([]Key, len(keys))
	for i, k := range keys {
		out[i] = k.clone()
	}
	return out
}

type resultJSON struct {
	SourceName      string           `json:"source_name"`
	TargetName      string           `json:"target_name"`
	PrimaryKeys     []string         `json:"primary_keys"`
	ComparedColumns []string         `json:"compared_columns"`
	Status          Status           `json:"status"`
	Reason          string           `json:"reason,omitempty"`
	Counts          Counts           `json:"counts"`
	Metrics         Metrics          `json:"metrics"`
	Violations      []Violation      `json:"violations"`
	MismatchDetails []MismatchDetail `json:"mismatch_details"`
	MissingKeys     []Key            `json:"missing_keys"`
	ExtraKeys       []Key            `json:"extra_keys"`
	DurationMS      int64            `json:"duration_ms"`
}

// MarshalJSON implements json.Marshaler.
func (r *ComparisonResult) MarshalJSON() ([]byte, error) {
	out := resultJSON{
		SourceName:      r.sourceName,
		TargetName:      r.targetName,
		PrimaryKeys:     r.primaryKeys,
		ComparedColumns: r.columns,
		Status:          r.status,
		Reason:          r.Reason(),
		Counts:          r.counts,
		Metrics:         r.metrics,
		Violations:      r.violations,
		MismatchDetails: r.details,
		MissingKeys:     r.missingKeys,
		ExtraKeys:       r.extraKeys,
		DurationMS:      r.duration.Milliseconds(),
	}
	if out.Violations == nil {
		out.Violations = []Violation{}
	}
	if out.MismatchDetails == nil {
		out.MismatchDetails = []MismatchDetail{}
	}
	if out.MissingKeys == nil {
		out.MissingKeys = []Key{}
	}
	if out.ExtraKeys == nil {
		out.ExtraKeys = []Key{}
	}
	return json.Marshal(out)
}
