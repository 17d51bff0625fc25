// Package core provides the fundamental building blocks of the loam
// persistence layer. This file defines the Model, the persistence façade
// bound to a schema and a driver. A Model handles loads, saves, queries,
// typecasting, scopes, hooks, soft-deletes, and event emission.
package core

import (
	"context"
	"time"
)

// Model represents a repository-like abstraction for a schema.
//
// It wraps a Schema and a Driver, exposing high-level operations such as
// Load, Insert, Update, Delete, FindOne, FindMany, Count, Exists, and
// Aggregate. Every row written or read passes through the schema's
// typecasting hooks; the model never interprets field semantics itself.
type Model struct {
	schema *Schema
	driver Driver
}

// NewModel creates a new Model instance bound to a schema and driver.
//
// Example:
//
//	userModel := core.NewModel(userSchema, postgresDriver)
func NewModel(schema *Schema, driver Driver) *Model {
	return &Model{schema: schema, driver: driver}
}

// Schema returns the schema this model is bound to.
func (m *Model) Schema() *Schema { return m.schema }

// Driver returns the driver this model is bound to.
func (m *Model) Driver() Driver { return m.driver }

// withScope folds the schema's active filter scope and soft-delete
// visibility rules into a query's options. The original options are not
// modified.
func (m *Model) withScope(where *Where) *Where {
	eff := *whereOrEmpty(where) // shallow copy

	if m.schema.scope != nil {
		eff.Condition = foldConditionsAnd(m.schema.scope, eff.Condition)
	}

	if m.schema.deletedAtField != nil {
		deletedAt := m.schema.deletedAtField.Name
		switch {
		case eff.OnlyDeleted:
			eff.Condition = foldConditionsAnd(eff.Condition, Field(deletedAt).NotEq(nil))
		case !eff.WithDeleted:
			eff.Condition = foldConditionsAnd(eff.Condition, Field(deletedAt).Eq(nil))
		}
	}
	return &eff
}

// scopedCondition folds the schema's active filter scope into a mutation
// condition.
func (m *Model) scopedCondition(condition *Condition) *Condition {
	return foldConditionsAnd(m.schema.scope, condition)
}

// identityCondition builds the condition that selects a single row by its
// identity value.
func (m *Model) identityCondition(id any) (*Condition, error) {
	idField, ok := m.schema.IdentityField()
	if !ok {
		return nil, ErrMissingIdentityField
	}
	return Field(idField).Eq(id), nil
}

// runPre executes all registered PreHooks for the given operation.
func (m *Model) runPre(hook PreHook, row Row) error {
	for _, fn := range m.schema.PreHookList[hook] {
		if err := fn(row); err != nil {
			return err
		}
	}
	return nil
}

// runPost executes all registered PostHooks for the given operation.
func (m *Model) runPost(hook PostHook, row Row) error {
	for _, fn := range m.schema.PostHookList[hook] {
		if err := fn(row); err != nil {
			return err
		}
	}
	return nil
}

// loadCast applies the schema's load-bound casts to a fetched row.
func (m *Model) loadCast(row Row) (Row, error) {
	if row == nil {
		return nil, nil
	}
	return m.schema.CastFromStorage(row)
}

// Load fetches the row with the given identity value.
//
// It fails with ErrMissingIdentityField when the schema declares no
// identity field, with RecordNotFoundError when no row matches under the
// model's active scope, and with ErrIdentityMissingInStorage when the
// fetched row lacks a populated identity value.
func (m *Model) Load(ctx context.Context, id any) (Row, error) {
	row, err := m.TryLoad(ctx, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, &RecordNotFoundError{Table: m.schema.Table, ID: id}
	}
	return row, nil
}

// TryLoad fetches the row with the given identity value, returning nil
// instead of an error when no row matches.
func (m *Model) TryLoad(ctx context.Context, id any) (Row, error) {
	condition, err := m.identityCondition(id)
	if err != nil {
		return nil, err
	}
	return m.fetchOne(ctx, &Where{Condition: condition})
}

// LoadAny fetches the first row under the model's active scope, without an
// identity filter. It fails with RecordNotFoundError when the scope matches
// nothing.
func (m *Model) LoadAny(ctx context.Context) (Row, error) {
	row, err := m.TryLoadAny(ctx)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, &RecordNotFoundError{Table: m.schema.Table}
	}
	return row, nil
}

// TryLoadAny fetches the first row under the model's active scope,
// returning nil when the scope matches nothing.
func (m *Model) TryLoadAny(ctx context.Context) (Row, error) {
	return m.fetchOne(ctx, &Where{})
}

// fetchOne is the shared retrieval path of the identity-keyed loads: it
// applies scope and hooks, verifies identity presence, and casts the row.
func (m *Model) fetchOne(ctx context.Context, options *Where) (Row, error) {
	_ = m.runPre(PreFind, nil)
	where := m.withScope(options)

	var result Row
	err := dispatchOperation(ctx, OperationFind, where, func() error {
		raw, err := m.driver.SelectOne(ctx, m.schema, where)
		if err != nil || raw == nil {
			return err
		}
		if idField, ok := m.schema.IdentityField(); ok {
			if idValue, present := raw[idField]; !present || idValue == nil {
				return ErrIdentityMissingInStorage
			}
		}
		row, err := m.loadCast(raw)
		if err != nil {
			return err
		}
		_ = m.runPost(PostFind, row)
		Emit(EventFind, FindPayload{Schema: m.schema, Where: where, Rows: []Row{row}})
		result = row
		return nil
	})
	return result, err
}

// Insert persists a new row and returns the identity value assigned to it.
//
// Timestamps declared on the schema are stamped automatically. Values pass
// through the schema's storage-bound casts. An identity field explicitly
// set to nil is omitted from the write, so the backend assigns the
// identity.
func (m *Model) Insert(ctx context.Context, row Row) (any, error) {
	var id any
	err := dispatchOperation(ctx, OperationInsert, row, func() error {
		now := time.Now()
		write := row.Clone()

		if m.schema.createdAtField != nil {
			write[m.schema.createdAtField.Name] = now
		}
		if m.schema.updatedAtField != nil {
			write[m.schema.updatedAtField.Name] = now
		}

		if err := m.runPre(PreInsert, write); err != nil {
			return err
		}

		cast, err := m.schema.CastForStorage(write)
		if err != nil {
			return err
		}
		if idField, ok := m.schema.IdentityField(); ok {
			if idValue, present := cast[idField]; present && idValue == nil {
				delete(cast, idField)
			}
		}

		id, err = m.driver.Insert(ctx, m.schema, cast)
		if err != nil {
			return err
		}
		if err := m.runPost(PostInsert, cast); err != nil {
			return err
		}
		Emit(EventInsert, InsertPayload{Schema: m.schema, Row: cast, ID: id})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return id, nil
}

// Update applies changes to the row with the given identity value.
//
// When the schema is configured with ReloadAfterSave and at least one row
// was affected, the row is re-fetched and returned, so fields changed by
// server-side computation (triggers, default expressions) are surfaced.
// Otherwise the returned row is nil.
func (m *Model) Update(ctx context.Context, id any, changes Changes) (Row, error) {
	condition, err := m.identityCondition(id)
	if err != nil {
		return nil, err
	}
	affected, err := m.UpdateWhere(ctx, condition, changes)
	if err != nil {
		return nil, err
	}
	if affected > 0 && m.schema.reloadAfterSave {
		return m.Load(ctx, id)
	}
	return nil, nil
}

// UpdateWhere applies changes to every row matching the condition under the
// model's active scope, returning the number of rows affected.
func (m *Model) UpdateWhere(ctx context.Context, condition *Condition, changes Changes) (int64, error) {
	var affected int64
	err := dispatchOperation(ctx, OperationUpdate, changes, func() error {
		if err := m.runPre(PreUpdate, nil); err != nil {
			return err
		}
		write := changes
		if m.schema.updatedAtField != nil {
			write = Changes(Row(changes).Clone())
			write[m.schema.updatedAtField.Name] = time.Now()
		}
		cast, err := m.schema.CastForStorage(Row(write))
		if err != nil {
			return err
		}

		scoped := m.scopedCondition(condition)
		affected, err = m.driver.Update(ctx, m.schema, scoped, Changes(cast))
		if err != nil {
			return err
		}
		if err := m.runPost(PostUpdate, nil); err != nil {
			return err
		}
		Emit(EventUpdate, UpdatePayload{Schema: m.schema, Condition: scoped, Changes: Changes(cast), Affected: affected})
		return nil
	})
	return affected, err
}

// Delete removes the row with the given identity value.
func (m *Model) Delete(ctx context.Context, id any) error {
	condition, err := m.identityCondition(id)
	if err != nil {
		return err
	}
	_, err = m.DeleteWhere(ctx, condition)
	return err
}

// DeleteWhere removes every row matching the condition under the model's
// active scope, returning the number of rows removed.
//
// If soft-delete is enabled (a DeletedAt field exists), the deletion
// timestamp is set instead of physically removing the rows.
func (m *Model) DeleteWhere(ctx context.Context, condition *Condition) (int64, error) {
	var affected int64
	err := dispatchOperation(ctx, OperationDelete, condition, func() error {
		if err := m.runPre(PreDelete, nil); err != nil {
			return err
		}
		scoped := m.scopedCondition(condition)

		if m.schema.deletedAtField != nil {
			changes := Changes{m.schema.deletedAtField.Name: time.Now()}
			var err error
			affected, err = m.driver.Update(ctx, m.schema, scoped, changes)
			if err != nil {
				return err
			}
			_ = m.runPost(PostDelete, nil)
			Emit(EventUpdate, UpdatePayload{Schema: m.schema, Condition: scoped, Changes: changes, Affected: affected})
			return nil
		}

		var err error
		affected, err = m.driver.Delete(ctx, m.schema, scoped)
		if err != nil {
			return err
		}
		_ = m.runPost(PostDelete, nil)
		Emit(EventDelete, DeletePayload{Schema: m.schema, Condition: scoped, Affected: affected})
		return nil
	})
	return affected, err
}

// FindOne retrieves the first row matching the query, or nil when nothing
// matches.
func (m *Model) FindOne(ctx context.Context, q *Query) (Row, error) {
	_ = m.runPre(PreFind, nil)
	where := m.withScope(q.where)

	var result Row
	err := dispatchOperation(ctx, OperationFind, where, func() error {
		raw, err := m.driver.SelectOne(ctx, m.schema, where)
		if err != nil || raw == nil {
			return err
		}
		row, err := m.loadCast(raw)
		if err != nil {
			return err
		}
		_ = m.runPost(PostFind, row)
		Emit(EventFind, FindPayload{Schema: m.schema, Where: where, Rows: []Row{row}})
		result = row
		return nil
	})
	return result, err
}

// FindMany retrieves every row matching the query.
func (m *Model) FindMany(ctx context.Context, q *Query) ([]Row, error) {
	_ = m.runPre(PreFind, nil)
	where := m.withScope(q.where)

	var results []Row
	err := dispatchOperation(ctx, OperationFind, where, func() error {
		raw, err := m.driver.Select(ctx, m.schema, where)
		if err != nil {
			return err
		}
		for _, r := range raw {
			row, err := m.loadCast(r)
			if err != nil {
				return err
			}
			_ = m.runPost(PostFind, row)
			results = append(results, row)
		}
		Emit(EventFind, FindPayload{Schema: m.schema, Where: where, Rows: results})
		return nil
	})
	return results, err
}

// Count returns the number of rows matching the query under the model's
// active scope.
func (m *Model) Count(ctx context.Context, q *Query) (int64, error) {
	where := m.withScope(q.where)
	var count int64
	err := dispatchOperation(ctx, OperationFind, where, func() error {
		var err error
		count, err = m.driver.Count(ctx, m.schema, where)
		return err
	})
	return count, err
}

// Exists reports whether any row matches the query under the model's
// active scope.
func (m *Model) Exists(ctx context.Context, q *Query) (bool, error) {
	where := m.withScope(q.where)
	var exists bool
	err := dispatchOperation(ctx, OperationFind, where, func() error {
		var err error
		exists, err = m.driver.Exists(ctx, m.schema, where)
		return err
	})
	return exists, err
}

// Aggregate computes fn (SUM, AVG, MIN, MAX; case-insensitive) over the
// named field of the rows matching the query. With coalesce set, null
// values participate as zero; otherwise they are excluded, and an all-null
// AVG fails with ErrAggregateEmpty rather than silently dividing by zero.
func (m *Model) Aggregate(ctx context.Context, q *Query, fn string, field string, coalesce bool) (any, error) {
	normalized, ok := NormalizeAggregate(fn)
	if !ok {
		return nil, &UnsupportedAggregateError{Func: fn}
	}
	if field == "" {
		return nil, ErrMissingFieldName
	}
	where := m.withScope(q.where)
	var result any
	err := dispatchOperation(ctx, OperationFind, where, func() error {
		var err error
		result, err = m.driver.Aggregate(ctx, m.schema, normalized, field, coalesce, where)
		return err
	})
	return result, err
}

// FieldValue returns the named field of the first row matching the query.
// It fails with ErrMissingFieldName when no field is named.
func (m *Model) FieldValue(ctx context.Context, q *Query, field string) (any, error) {
	if field == "" {
		return nil, ErrMissingFieldName
	}
	where := m.withScope(q.where)
	var result any
	err := dispatchOperation(ctx, OperationFind, where, func() error {
		var err error
		result, err = m.driver.FieldValue(ctx, m.schema, field, where)
		return err
	})
	return result, err
}
