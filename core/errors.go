// Package core provides the fundamental building blocks of the loam
// persistence layer. This file defines the error taxonomy shared by the
// façade and the drivers.
package core

import (
	"errors"
	"fmt"
)

// Sentinel errors raised by the façade and the query engines.
var (
	// ErrMissingFieldName is returned when a scalar-field operation is
	// requested without naming the field to project.
	ErrMissingFieldName = errors.New("loam: field name is required")

	// ErrMissingIdentityField is returned when an identity-keyed operation
	// (Load, Update, Delete by id) is requested on a schema that declares
	// no identity field.
	ErrMissingIdentityField = errors.New("loam: schema declares no identity field")

	// ErrIdentityMissingInStorage is returned when a fetched row lacks a
	// populated identity value.
	ErrIdentityMissingInStorage = errors.New("loam: fetched row has no identity value")

	// ErrAggregateEmpty is returned when AVG is requested without null
	// coalescing and every value in the column is null: the divisor would
	// be zero, which is a failure rather than a silent zero result.
	ErrAggregateEmpty = errors.New("loam: aggregate over empty or all-null column")
)

// UnsupportedOperatorError is returned when a condition carries an operator
// no engine knows how to evaluate or compile. The offending operator string
// is preserved for diagnostics.
type UnsupportedOperatorError struct {
	Operator string
}

func (e *UnsupportedOperatorError) Error() string {
	return fmt.Sprintf("loam: unsupported operator %q", e.Operator)
}

// UnsupportedAggregateError is returned when an aggregate operation names a
// function outside SUM, AVG, MIN, MAX.
type UnsupportedAggregateError struct {
	Func string
}

func (e *UnsupportedAggregateError) Error() string {
	return fmt.Sprintf("loam: unsupported aggregate function %q", e.Func)
}

// InvalidConditionError is returned when a condition node is malformed:
// a leaf without a field reference, or a group whose logical mode is not
// AND, OR, or NOT.
type InvalidConditionError struct {
	Reason string
}

func (e *InvalidConditionError) Error() string {
	return fmt.Sprintf("loam: invalid condition: %s", e.Reason)
}

// RecordNotFoundError is returned by Load when no row matches the requested
// identity under the model's active scope.
type RecordNotFoundError struct {
	Table string
	ID    any
}

func (e *RecordNotFoundError) Error() string {
	return fmt.Sprintf("loam: record %v not found in %q", e.ID, e.Table)
}

// QueryExecutionError wraps a backend-native failure together with the
// rendered statement that triggered it. Backend error types never cross the
// engine boundary directly; they are always rewrapped at the execution seam.
type QueryExecutionError struct {
	Query string
	Err   error
}

func (e *QueryExecutionError) Error() string {
	return fmt.Sprintf("loam: query execution failed: %v (query: %s)", e.Err, e.Query)
}

// Unwrap exposes the underlying backend error for errors.Is/As inspection.
func (e *QueryExecutionError) Unwrap() error { return e.Err }
