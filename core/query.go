// Package core provides the fundamental building blocks of the loam
// persistence layer. This file defines the fluent query builder, which
// allows expressive construction of queries.
package core

// Query represents a fluent query builder bound to a schema.
//
// It allows chaining of projection, filtering, ordering, pagination, and
// soft-delete options. A query is configured via chained calls, executed
// once through a Model operation, and discarded; it owns no long-lived
// resources.
//
// Example:
//
//	rows, _ := userModel.FindMany(ctx, core.NewQuery(users).
//		Filter(
//			core.Field("email").Like("%@example.com"),
//			core.Field("active").Eq(true),
//		).
//		OrderBy("created_at", -1).
//		Limit(10).
//		Offset(0))
type Query struct {
	schema *Schema
	where  *Where
}

// NewQuery creates a new Query instance for the given schema.
func NewQuery(schema *Schema) *Query {
	return &Query{
		schema: schema,
		where:  &Where{},
	}
}

// Schema returns the schema this query is bound to.
func (q *Query) Schema() *Schema { return q.schema }

// Select restricts the output columns to the named fields. Without a call
// to Select every field is returned. Requested fields a row does not carry
// are silently absent from the output rather than erroring.
//
// Filtering is unaffected by projection: conditions are always evaluated
// against the full row, even when the projection discards the fields they
// reference.
func (q *Query) Select(fields ...string) *Query {
	q.where.Fields = append(q.where.Fields, fields...)
	return q
}

// Where sets the root condition of the query.
func (q *Query) Where(condition *Condition) *Query {
	q.where.Condition = condition
	return q
}

// Filter adds conditions to the query, combined with AND by default.
//
// Example:
//
//	q.Filter(
//		core.Field("age").Gt(18),
//		core.Field("active").Eq(true),
//	)
func (q *Query) Filter(conditions ...*Condition) *Query {
	if q.where.Condition != nil {
		conditions = append([]*Condition{q.where.Condition}, conditions...)
	}
	q.where.Condition = foldConditionsAnd(conditions...)
	return q
}

// OrderBy adds an ordering rule to the query.
//
// Field is the field name, and order is 1 (ASC) or -1 (DESC). Multiple
// rules form a single composite sort: the first rule is the primary key,
// later rules break ties. The sort is stable; full ties preserve the
// original row order.
func (q *Query) OrderBy(field string, order int) *Query {
	q.where.Sort = append(q.where.Sort, Sort{FieldName: field, Order: order})
	return q
}

// Limit sets the maximum number of results to return. An explicit limit of
// zero yields an empty result.
func (q *Query) Limit(limit int) *Query {
	q.where.Limit = limit
	q.where.HasLimit = true
	return q
}

// Offset sets the number of rows to skip before starting to return results.
func (q *Query) Offset(offset int) *Query {
	q.where.Offset = offset
	return q
}

// WithDeleted includes soft-deleted rows in the query results.
func (q *Query) WithDeleted() *Query {
	q.where.WithDeleted = true
	return q
}

// OnlyDeleted restricts the query results to soft-deleted rows only.
func (q *Query) OnlyDeleted() *Query {
	q.where.OnlyDeleted = true
	return q
}
