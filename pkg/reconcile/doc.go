// Package reconcile matches two in-memory datasets on a primary key and reports
// matched, mismatched, missing and extra records along with a threshold verdict.
//
// A comparison runs in four steps: each dataset is indexed by key (duplicate and
// null keys are fatal), the key sets are split into common, source-only and
// target-only partitions, every common pair is compared column by column, and the
// counts are reduced to percentages and checked against the thresholds.
//
// Column differences never raise errors; they are recorded as MismatchDetail values.
// Errors are reserved for configurations the engine cannot apply and are matched
// with errors.Is against ErrConfiguration, ErrMissingKeyColumn, ErrNullKey and
// ErrDuplicateKey.
package reconcile
