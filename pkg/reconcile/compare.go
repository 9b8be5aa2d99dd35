package reconcile

import (
	"math"
	"strings"

	"github.com/TFMV/recon/pkg/core"
	"golang.org/x/text/cases"
)

// MismatchKind classifies a column-level difference.
type MismatchKind string

const (
	// KindValueDifferent marks comparable values that differ.
	KindValueDifferent MismatchKind = "VALUE_DIFFERENT"
	// KindTypeDifferent marks values of incompatible types, e.g. a number against a string.
	KindTypeDifferent MismatchKind = "TYPE_DIFFERENT"
	// KindNullVsEmpty marks a null compared against a non-null value.
	KindNullVsEmpty MismatchKind = "NULL_VS_EMPTY"
)

// MismatchDetail describes one differing column of a common-key record pair.
// Values are reported as they appear in the records.
type MismatchDetail struct {
	Key         Key          `json:"key"`
	Column      string       `json:"column"`
	SourceValue any          `json:"source_value"`
	TargetValue any          `json:"target_value"`
	Kind        MismatchKind `json:"kind"`
}

func (d MismatchDetail) clone() MismatchDetail {
	d.Key = d.Key.clone()
	return d
}

// ComparedColumns returns the columns present in both schemas, minus the primary
// keys and the excluded columns, in source schema order.
func ComparedColumns(source, target core.Schema, cfg core.ComparisonConfig) []string {
	skip := make(map[string]struct{}, len(cfg.PrimaryKeys)+len(cfg.ExcludeColumns))
	for _, col := range cfg.PrimaryKeys {
		skip[col] = struct{}{}
	}
	for _, col := range cfg.ExcludeColumns {
		skip[col] = struct{}{}
	}

	var columns []string
	for _, col := range source.Columns {
		if _, ok := skip[col.Name]; ok {
			continue
		}
		if target.Has(col.Name) {
			columns = append(columns, col.Name)
		}
	}
	return columns
}

// valueComparator applies the normalization rules of one comparison.
// A cases.Caser is stateful, so each worker owns its own comparator.
type valueComparator struct {
	cfg     core.ComparisonConfig
	columns []string
	folder  cases.Caser
}

func newValueComparator(cfg core.ComparisonConfig, columns []string) *valueComparator {
	return &valueComparator{
		cfg:     cfg,
		columns: columns,
		folder:  cases.Fold(),
	}
}

// CompareRecords returns the column-level mismatches between two records for the
// given columns. It never fails: every difference is reported as data.
func CompareRecords(source, target core.Record, columns []string, cfg core.ComparisonConfig) []MismatchDetail {
	return newValueComparator(cfg, columns).compare(nil, source, target)
}

func (c *valueComparator) compare(key Key, source, target core.Record) []MismatchDetail {
	var details []MismatchDetail
	for _, col := range c.columns {
		sv := core.NormalizeValue(source[col])
		tv := core.NormalizeValue(target[col])
		kind, ok := c.compareValue(sv, tv)
		if ok {
			continue
		}
		details = append(details, MismatchDetail{
			Key:         key,
			Column:      col,
			SourceValue: sv,
			TargetValue: tv,
			Kind:        kind,
		})
	}
	return details
}

// compareValue reports whether two values match and, if not, how they differ.
func (c *valueComparator) compareValue(sv, tv any) (MismatchKind, bool) {
	sv = c.clean(sv)
	tv = c.clean(tv)

	switch {
	case sv == nil && tv == nil:
		return "", true
	case sv == nil || tv == nil:
		other := sv
		if other == nil {
			other = tv
		}
		if s, ok := other.(string); ok && s == "" && !c.cfg.NullVsEmptyMismatch {
			return "", true
		}
		return KindNullVsEmpty, false
	}

	if core.IsNumeric(sv) && core.IsNumeric(tv) {
		if numericEqual(sv, tv, c.cfg.NumericTolerance) {
			return "", true
		}
		return KindValueDifferent, false
	}

	switch a := sv.(type) {
	case string:
		b, ok := tv.(string)
		if !ok {
			return KindTypeDifferent, false
		}
		if !c.cfg.CaseSensitive {
			a = c.folder.String(a)
			b = c.folder.String(b)
		}
		if a == b {
			return "", true
		}
		return KindValueDifferent, false
	case bool:
		b, ok := tv.(bool)
		if !ok {
			return KindTypeDifferent, false
		}
		if a == b {
			return "", true
		}
		return KindValueDifferent, false
	}

	return KindTypeDifferent, false
}

// clean strips whitespace, then coerces the empty string to null when configured.
func (c *valueComparator) clean(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	if c.cfg.StripWhitespace {
		s = strings.TrimSpace(s)
	}
	if s == "" && c.cfg.TreatEmptyAsNull {
		return nil
	}
	return s
}

// numericEqual compares two int64/float64 values with an inclusive absolute tolerance.
// A non-zero bound is widened by a relative 1e-9 of the tolerance itself so that
// decimal inputs such as 100.01 and 100.00 still match at 0.01 despite binary
// rounding. A zero tolerance requires equality.
func numericEqual(a, b any, tolerance float64) bool {
	ai, aInt := a.(int64)
	bi, bInt := b.(int64)
	if aInt && bInt {
		if ai == bi {
			return true
		}
		var diff uint64
		if ai > bi {
			diff = uint64(ai) - uint64(bi)
		} else {
			diff = uint64(bi) - uint64(ai)
		}
		return float64(diff) <= tolerance
	}

	af, _ := core.AsFloat(a)
	bf, _ := core.AsFloat(b)

	if math.IsNaN(af) || math.IsNaN(bf) {
		return math.IsNaN(af) && math.IsNaN(bf)
	}
	if math.IsInf(af, 0) || math.IsInf(bf, 0) {
		return af == bf
	}
	if af == bf {
		return true
	}

	if tolerance == 0 {
		return false
	}
	return math.Abs(af-bf) <= tolerance*(1+toleranceSlack)
}

const toleranceSlack = 1e-9
