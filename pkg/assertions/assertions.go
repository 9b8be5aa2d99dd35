// Package assertions checks a comparison result against named expectations.
package assertions

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/TFMV/recon/pkg/reconcile"
)

// ErrAssertionFailed is matched by every assertion failure.
var ErrAssertionFailed = errors.New("assertion failed")

// ErrUnknownAssertion is returned for an assertion name that is not registered.
var ErrUnknownAssertion = errors.New("unknown assertion")

// AssertionError describes one failed assertion.
type AssertionError struct {
	Name     string
	Expected any
	Actual   any
	Message  string
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("%s: %s (expected %v, got %v)", e.Name, e.Message, e.Expected, e.Actual)
}

func (e *AssertionError) Is(target error) bool {
	return target == ErrAssertionFailed
}

// Assertion checks a result and returns nil or an *AssertionError.
type Assertion func(result *reconcile.ComparisonResult) error

// Assertion names usable in configuration.
const (
	NamePassed            = "passed"
	NameNoMismatches      = "no_mismatches"
	NameNoMissingRecords  = "no_missing_records"
	NameNoExtraRecords    = "no_extra_records"
	NameRecordCountsMatch = "record_counts_match"
	// NameMaxMismatchPrefix takes the limit as a suffix, e.g. "max_mismatch_percentage:2.5".
	NameMaxMismatchPrefix = "max_mismatch_percentage"
)

// Passed asserts the comparison status is PASSED.
func Passed(result *reconcile.ComparisonResult) error {
	if result.Passed() {
		return nil
	}
	return &AssertionError{
		Name:     NamePassed,
		Expected: reconcile.StatusPassed,
		Actual:   result.Status(),
		Message:  "comparison failed: " + result.Reason(),
	}
}

// NoMismatches asserts no common record differs.
func NoMismatches(result *reconcile.ComparisonResult) error {
	return zero(NameNoMismatches, "found mismatched records", result.MismatchedRecords())
}

// NoMissingRecords asserts every source key exists in the target.
func NoMissingRecords(result *reconcile.ComparisonResult) error {
	return zero(NameNoMissingRecords, "found records missing in target", result.MissingRecords())
}

// NoExtraRecords asserts every target key exists in the source.
func NoExtraRecords(result *reconcile.ComparisonResult) error {
	return zero(NameNoExtraRecords, "found extra records in target", result.ExtraRecords())
}

// RecordCountsMatch asserts both datasets hold the same number of records.
func RecordCountsMatch(result *reconcile.ComparisonResult) error {
	if result.TotalSourceRecords() == result.TotalTargetRecords() {
		return nil
	}
	return &AssertionError{
		Name:     NameRecordCountsMatch,
		Expected: result.TotalSourceRecords(),
		Actual:   result.TotalTargetRecords(),
		Message:  "record counts differ",
	}
}

// MaxMismatchPercentage asserts the mismatch percentage does not exceed limit.
func MaxMismatchPercentage(limit float64) Assertion {
	return func(result *reconcile.ComparisonResult) error {
		pct := result.Metrics().MismatchPercentage
		if pct <= limit {
			return nil
		}
		return &AssertionError{
			Name:     NameMaxMismatchPrefix,
			Expected: fmt.Sprintf("<= %.2f%%", limit),
			Actual:   fmt.Sprintf("%.2f%%", pct),
			Message:  "mismatch percentage too high",
		}
	}
}

func zero(name, message string, n int) error {
	if n == 0 {
		return nil
	}
	return &AssertionError{Name: name, Expected: 0, Actual: n, Message: message}
}

var registry = map[string]Assertion{
	NamePassed:            Passed,
	NameNoMismatches:      NoMismatches,
	NameNoMissingRecords:  NoMissingRecords,
	NameNoExtraRecords:    NoExtraRecords,
	NameRecordCountsMatch: RecordCountsMatch,
}

// Names returns the registered assertion names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry)+1)
	for name := range registry {
		names = append(names, name)
	}
	names = append(names, NameMaxMismatchPrefix+":<limit>")
	sort.Strings(names)
	return names
}

// Lookup resolves an assertion by name.
func Lookup(name string) (Assertion, error) {
	name = strings.TrimSpace(strings.ToLower(name))
	if a, ok := registry[name]; ok {
		return a, nil
	}
	if arg, ok := strings.CutPrefix(name, NameMaxMismatchPrefix+":"); ok {
		limit, err := strconv.ParseFloat(arg, 64)
		if err != nil || limit < 0 {
			return nil, fmt.Errorf("%w: invalid limit in %q", ErrUnknownAssertion, name)
		}
		return MaxMismatchPercentage(limit), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownAssertion, name)
}

// Validate reports the first name that does not resolve to an assertion.
func Validate(names []string) error {
	for _, name := range names {
		if _, err := Lookup(name); err != nil {
			return err
		}
	}
	return nil
}

// Evaluate runs the named assertions and joins every failure. It returns nil
// when all pass. Unknown names fail before any assertion runs.
func Evaluate(result *reconcile.ComparisonResult, names ...string) error {
	checks := make([]Assertion, 0, len(names))
	for _, name := range names {
		a, err := Lookup(name)
		if err != nil {
			return err
		}
		checks = append(checks, a)
	}
	return Run(result, checks...)
}

// Run applies assertions in order and joins every failure.
func Run(result *reconcile.ComparisonResult, checks ...Assertion) error {
	var errs []error
	for _, check := range checks {
		if err := check(result); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
