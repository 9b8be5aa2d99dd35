package reconcile

import (
	"errors"
	"fmt"
)

// Sentinel errors for the fatal error kinds raised before any comparison work starts.
var (
	// ErrConfiguration indicates that the comparison configuration cannot be applied
	ErrConfiguration = errors.New("invalid comparison configuration")

	// ErrMissingKeyColumn indicates that a primary key column is absent from a dataset schema
	ErrMissingKeyColumn = errors.New("primary key column missing")

	// ErrDuplicateKey indicates that a primary key does not uniquely identify the rows of a dataset
	ErrDuplicateKey = errors.New("duplicate primary key")

	// ErrNullKey indicates that a primary key column holds a null value
	ErrNullKey = errors.New("null primary key value")
)

// Role names the side of a comparison a dataset plays.
type Role string

const (
	RoleSource Role = "source"
	RoleTarget Role = "target"
)

// ConfigurationError reports an invalid ComparisonConfig field.
type ConfigurationError struct {
	Field   string
	Message string
}

// Error implements the error interface
func (e *ConfigurationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid configuration for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("invalid configuration: %s", e.Message)
}

// Is implements errors.Is support
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// MissingKeyColumnError reports a primary key column absent from a dataset schema.
// It is a configuration error and matches both ErrMissingKeyColumn and ErrConfiguration.
type MissingKeyColumnError struct {
	Column string
	Role   Role
}

// Error implements the error interface
func (e *MissingKeyColumnError) Error() string {
	return fmt.Sprintf("primary key column %q not found in %s dataset", e.Column, e.Role)
}

// Is implements errors.Is support
func (e *MissingKeyColumnError) Is(target error) bool {
	return target == ErrMissingKeyColumn || target == ErrConfiguration
}

// DuplicateKeyError reports two records of one dataset sharing a key tuple.
// Rows are zero-based positions in the dataset.
type DuplicateKeyError struct {
	Key       Key
	Role      Role
	FirstRow  int
	SecondRow int
}

// Error implements the error interface
func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate primary key %s in %s dataset (rows %d and %d)",
		e.Key, e.Role, e.FirstRow, e.SecondRow)
}

// Is implements errors.Is support
func (e *DuplicateKeyError) Is(target error) bool {
	return target == ErrDuplicateKey
}

// NullKeyError reports a record whose primary key column is null.
type NullKeyError struct {
	Column string
	Role   Role
	Row    int
}

// Error implements the error interface
func (e *NullKeyError) Error() string {
	return fmt.Sprintf("null value in primary key column %q of %s dataset (row %d)", e.Column, e.Role, e.Row)
}

// Is implements errors.Is support
func (e *NullKeyError) Is(target error) bool {
	return target == ErrNullKey || target == ErrConfiguration
}

func configError(field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
