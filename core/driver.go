// Package core provides the fundamental building blocks of the loam
// persistence layer. It defines abstractions for conditions, queries,
// schemas, records, and drivers.
package core

import (
	"context"
	"strings"
)

// Row is the wire-level representation of a single record: a mapping from
// field name to scalar value. A missing key and a nil value are equivalent
// for filtering purposes.
type Row map[string]any

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	clone := make(Row, len(r))
	for k, v := range r {
		clone[k] = v
	}
	return clone
}

// Changes represents a set of field updates, mapping field names to new
// values. It is typically used in Update operations.
type Changes map[string]any

// Sort represents an ordering rule used in queries.
//
// FieldName specifies which field to sort by.
// Order determines the direction: 1 for ascending (ASC), -1 for descending (DESC).
type Sort struct {
	FieldName string
	Order     int // 1 = ASC, -1 = DESC
}

// Where encapsulates projection, filtering, ordering, and pagination options
// for queries.
//
// It contains:
//   - Fields: the projection list (empty means all fields).
//   - Condition: the root filter condition.
//   - Sort: ordering rules, applied as one composite multi-key sort.
//   - Limit / Offset: the result window. HasLimit distinguishes an explicit
//     zero-row window from "no limit".
//   - WithDeleted / OnlyDeleted: soft-delete visibility toggles.
type Where struct {
	Fields      []string
	Condition   *Condition
	Sort        []Sort
	Limit       int
	Offset      int
	HasLimit    bool
	WithDeleted bool
	OnlyDeleted bool
}

// AggregateFunc names a column aggregate computed by the engines.
type AggregateFunc string

// Supported aggregate functions.
const (
	AggregateSum AggregateFunc = "SUM"
	AggregateAvg AggregateFunc = "AVG"
	AggregateMin AggregateFunc = "MIN"
	AggregateMax AggregateFunc = "MAX"
)

// NormalizeAggregate canonicalizes an aggregate function name and reports
// whether it is one of the supported functions.
func NormalizeAggregate(fn string) (AggregateFunc, bool) {
	normalized := AggregateFunc(strings.ToUpper(strings.TrimSpace(fn)))
	switch normalized {
	case AggregateSum, AggregateAvg, AggregateMin, AggregateMax:
		return normalized, true
	}
	return normalized, false
}

// Transaction defines the contract for backend transaction management.
//
// Implementations must provide atomic commit and rollback semantics. The
// persistence layer only passes these calls through; it implements no
// concurrency control of its own.
type Transaction interface {
	// Commit finalizes the transaction and makes all changes permanent.
	Commit(ctx context.Context) error
	// Rollback reverts the transaction, discarding all changes.
	Rollback(ctx context.Context) error
}

// Driver defines the contract for storage backends.
//
// Each driver (memory, postgres, sqlite, mongo) interprets the same logical
// operation set against its own engine: the memory driver evaluates
// conditions row by row, the relational drivers compile them to statements,
// the document driver translates them to native filters. All drivers must
// produce equivalent logical results for the same query.
type Driver interface {
	// Connect establishes a new connection or validates connectivity.
	Connect(ctx context.Context) error
	// Ping checks if the underlying backend is reachable.
	Ping(ctx context.Context) error
	// Close terminates the connection and releases resources.
	Close(ctx context.Context) error

	// Transaction starts a new backend transaction.
	Transaction(ctx context.Context) (Transaction, error)

	// Insert persists a single row and returns its identity value. When the
	// row carries no identity value the backend assigns one.
	Insert(ctx context.Context, schema *Schema, row Row) (any, error)
	// Select retrieves every row matching the given options.
	Select(ctx context.Context, schema *Schema, options *Where) ([]Row, error)
	// SelectOne retrieves the first row matching the given options, or nil
	// when nothing matches.
	SelectOne(ctx context.Context, schema *Schema, options *Where) (Row, error)
	// Update modifies rows matching the condition and returns the number of
	// rows affected.
	Update(ctx context.Context, schema *Schema, condition *Condition, changes Changes) (int64, error)
	// Delete removes rows matching the condition and returns the number of
	// rows removed.
	Delete(ctx context.Context, schema *Schema, condition *Condition) (int64, error)

	// Count returns the number of rows matching the given options. The
	// memory driver counts the limited window when a limit is set; the
	// relational drivers count the full filtered set.
	Count(ctx context.Context, schema *Schema, options *Where) (int64, error)
	// Exists reports whether any row matches the given options.
	Exists(ctx context.Context, schema *Schema, options *Where) (bool, error)
	// Aggregate computes fn over the named field of the matching rows.
	// With coalesce set, null values participate as zero; otherwise they
	// are excluded.
	Aggregate(ctx context.Context, schema *Schema, fn AggregateFunc, field string, coalesce bool, options *Where) (any, error)
	// FieldValue returns the named field of the first matching row.
	FieldValue(ctx context.Context, schema *Schema, field string, options *Where) (any, error)
}
