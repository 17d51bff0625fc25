// Package memory implements the in-memory driver of the loam persistence
// layer. This file defines the action: a lazy chain of transformations
// (filter, sort, limit, projection) over a table's row slice, mirroring
// relational semantics without a query planner.
package memory

import (
	"sort"

	"github.com/loamdb/loam/core"
)

// action interprets a query's options over a snapshot reference of the
// backing rows. Nothing is computed until the first terminal call; the
// window is then materialized once, so every terminal read is idempotent.
//
// The window is built in a fixed order: filter, then one composite
// multi-key stable sort, then offset/limit. Filtering always sees the
// full, unprojected rows; projection is applied only when rows leave the
// action through All or Row.
type action struct {
	source  []core.Row
	options *core.Where

	window       []core.Row
	materialized bool
}

func newAction(source []core.Row, options *core.Where) *action {
	if options == nil {
		options = &core.Where{}
	}
	return &action{source: source, options: options}
}

// materialize computes the filter/sort/limit window on first use.
func (a *action) materialize() error {
	if a.materialized {
		return nil
	}

	rows := a.source
	if !a.options.Condition.IsEmpty() {
		filtered := make([]core.Row, 0, len(rows))
		for _, row := range rows {
			matched, err := Matches(row, a.options.Condition)
			if err != nil {
				return err
			}
			if matched {
				filtered = append(filtered, row)
			}
		}
		rows = filtered
	}

	if len(a.options.Sort) > 0 {
		sorted := make([]core.Row, len(rows))
		copy(sorted, rows)
		rules := a.options.Sort
		sort.SliceStable(sorted, func(i, j int) bool {
			for _, rule := range rules {
				cmp, ok := compareValues(sorted[i][rule.FieldName], sorted[j][rule.FieldName])
				if !ok || cmp == 0 {
					continue // tie on this key, defer to the next
				}
				if rule.Order < 0 {
					return cmp > 0
				}
				return cmp < 0
			}
			return false
		})
		rows = sorted
	}

	if a.options.Offset > 0 {
		if a.options.Offset >= len(rows) {
			rows = nil
		} else {
			rows = rows[a.options.Offset:]
		}
	}
	if a.options.HasLimit {
		if a.options.Limit < len(rows) {
			rows = rows[:max(a.options.Limit, 0)]
		}
	}

	a.window = rows
	a.materialized = true
	return nil
}

// project restricts a row to the requested output fields. Requested fields
// the row does not carry are silently absent.
func (a *action) project(row core.Row) core.Row {
	if len(a.options.Fields) == 0 {
		return row.Clone()
	}
	projected := make(core.Row, len(a.options.Fields))
	for _, field := range a.options.Fields {
		if value, ok := row[field]; ok {
			projected[field] = value
		}
	}
	return projected
}

// All materializes every row of the window, projected.
func (a *action) All() ([]core.Row, error) {
	if err := a.materialize(); err != nil {
		return nil, err
	}
	results := make([]core.Row, len(a.window))
	for i, row := range a.window {
		results[i] = a.project(row)
	}
	return results, nil
}

// Row returns the first row of the window, projected, or nil when the
// window is empty.
func (a *action) Row() (core.Row, error) {
	if err := a.materialize(); err != nil {
		return nil, err
	}
	if len(a.window) == 0 {
		return nil, nil
	}
	return a.project(a.window[0]), nil
}

// Count returns the number of rows in the window. The window is taken
// after limit/offset, so a limited query counts at most its limit. This
// diverges from a relational COUNT(*), which ignores the window; the
// behavior is kept for compatibility with the rest of the engine.
func (a *action) Count() (int64, error) {
	if err := a.materialize(); err != nil {
		return 0, err
	}
	return int64(len(a.window)), nil
}

// Exists reports whether any row remains in the window.
func (a *action) Exists() (bool, error) {
	if err := a.materialize(); err != nil {
		return false, err
	}
	return len(a.window) > 0, nil
}

// FieldValue returns the named field of the first row of the window, or
// nil when the window is empty.
func (a *action) FieldValue(field string) (any, error) {
	if field == "" {
		return nil, core.ErrMissingFieldName
	}
	if err := a.materialize(); err != nil {
		return nil, err
	}
	if len(a.window) == 0 {
		return nil, nil
	}
	return a.window[0][field], nil
}

// Aggregate computes fn over the named column of the window.
//
// Null entries are excluded unless coalesce is set, in which case they
// participate as zero. AVG divides by the number of participating entries;
// when that count is zero the aggregate fails with ErrAggregateEmpty
// rather than silently returning zero. SUM, MIN, and MAX over an empty
// column yield nil, matching their relational counterparts.
func (a *action) Aggregate(fn core.AggregateFunc, field string, coalesce bool) (any, error) {
	normalized, ok := core.NormalizeAggregate(string(fn))
	if !ok {
		return nil, &core.UnsupportedAggregateError{Func: string(fn)}
	}
	if field == "" {
		return nil, core.ErrMissingFieldName
	}
	if err := a.materialize(); err != nil {
		return nil, err
	}

	var column []any
	for _, row := range a.window {
		value := row[field]
		if value == nil {
			if !coalesce {
				continue
			}
			value = 0
		}
		column = append(column, value)
	}

	switch normalized {
	case core.AggregateSum, core.AggregateAvg:
		if len(column) == 0 {
			if normalized == core.AggregateAvg {
				return nil, core.ErrAggregateEmpty
			}
			return nil, nil
		}
		var sum float64
		wholeNumbers := true
		for _, value := range column {
			f, ok := asFloat(value)
			if !ok {
				return nil, &core.InvalidConditionError{Reason: "aggregate over non-numeric column"}
			}
			if _, isFloat := value.(float64); isFloat {
				wholeNumbers = false
			}
			if _, isFloat32 := value.(float32); isFloat32 {
				wholeNumbers = false
			}
			sum += f
		}
		if normalized == core.AggregateAvg {
			return sum / float64(len(column)), nil
		}
		if wholeNumbers {
			return int64(sum), nil
		}
		return sum, nil

	default: // MIN, MAX
		var best any
		for _, value := range column {
			if best == nil {
				best = value
				continue
			}
			cmp, ok := compareValues(value, best)
			if !ok {
				continue
			}
			if (normalized == core.AggregateMin && cmp < 0) || (normalized == core.AggregateMax && cmp > 0) {
				best = value
			}
		}
		return best, nil
	}
}
