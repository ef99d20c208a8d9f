package analytics

import "errors"

var (
	// ErrSchemaMismatch indicates a raw table whose shape does not fit the canonical schema.
	ErrSchemaMismatch = errors.New("analytics: schema mismatch")
	// ErrEmptyTable indicates a raw table without data rows.
	ErrEmptyTable = errors.New("analytics: empty table")
	// ErrNoMatchingCustomer indicates a selection without receivables rows.
	ErrNoMatchingCustomer = errors.New("analytics: no matching customer")
)
