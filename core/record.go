// Package core provides the fundamental building blocks of the loam
// persistence layer. This file defines the Record, a row wrapper with
// dirty-field tracking used to reconcile post-save reloads.
package core

import "context"

// Record wraps a single row of a model and tracks which fields changed
// since the last load or save. Save writes only the dirty fields, and on
// schemas configured with ReloadAfterSave it reconciles the re-fetched row
// so server-side computed values surface without clobbering edits made in
// the meantime.
//
// Example:
//
//	rec := userModel.NewRecord()
//	rec.Set("name", "Ann").Set("age", 30)
//	_ = rec.Save(ctx)
type Record struct {
	model  *Model
	data   Row
	dirty  map[string]struct{}
	loaded bool
}

// NewRecord creates an empty, unsaved record. The first Save inserts it.
func (m *Model) NewRecord() *Record {
	return &Record{
		model: m,
		data:  Row{},
		dirty: make(map[string]struct{}),
	}
}

// LoadRecord fetches the row with the given identity value and wraps it in
// a Record. It shares Load's failure contract.
func (m *Model) LoadRecord(ctx context.Context, id any) (*Record, error) {
	row, err := m.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Record{
		model:  m,
		data:   row,
		dirty:  make(map[string]struct{}),
		loaded: true,
	}, nil
}

// Get returns the current value of a field, or nil when unset.
func (r *Record) Get(field string) any { return r.data[field] }

// Set changes a field value and marks it dirty. Setting a field to the
// value it already holds still marks it dirty; only a load or save resets
// the tracking.
func (r *Record) Set(field string, value any) *Record {
	r.data[field] = value
	r.dirty[field] = struct{}{}
	return r
}

// IsDirty reports whether the field changed since the last load or save.
func (r *Record) IsDirty(field string) bool {
	_, ok := r.dirty[field]
	return ok
}

// IsLoaded reports whether the record is backed by a stored row.
func (r *Record) IsLoaded() bool { return r.loaded }

// Data returns the record's current row. The returned map is the record's
// own state; callers should treat it as read-only.
func (r *Record) Data() Row { return r.data }

// ID returns the record's identity value, or nil when the schema declares
// no identity field or the record was never saved.
func (r *Record) ID() any {
	idField, ok := r.model.schema.IdentityField()
	if !ok {
		return nil
	}
	return r.data[idField]
}

// Save persists the record: an insert for a new record, an update of the
// dirty fields for a loaded one. A save with no dirty fields on a loaded
// record is a no-op.
func (r *Record) Save(ctx context.Context) error {
	if !r.loaded {
		id, err := r.model.Insert(ctx, r.data)
		if err != nil {
			return err
		}
		if idField, ok := r.model.schema.IdentityField(); ok && id != nil {
			r.data[idField] = id
		}
		r.loaded = true
		r.resetDirty()
		return nil
	}

	if len(r.dirty) == 0 {
		return nil
	}
	changes := make(Changes, len(r.dirty))
	for field := range r.dirty {
		changes[field] = r.data[field]
	}
	reloaded, err := r.model.Update(ctx, r.ID(), changes)
	if err != nil {
		return err
	}
	r.resetDirty()
	// Reconcile the post-save reload: fields the backend computed during
	// the write (triggers, defaults) overwrite stale local state, but any
	// field dirtied again since the write is left alone.
	for field, value := range reloaded {
		if !r.IsDirty(field) {
			r.data[field] = value
		}
	}
	return nil
}

// Reload replaces the record's state with the stored row, discarding local
// edits and dirty tracking.
func (r *Record) Reload(ctx context.Context) error {
	row, err := r.model.Load(ctx, r.ID())
	if err != nil {
		return err
	}
	r.data = row
	r.loaded = true
	r.resetDirty()
	return nil
}

// Delete removes the stored row backing this record. The record keeps its
// local state but is no longer loaded.
func (r *Record) Delete(ctx context.Context) error {
	if err := r.model.Delete(ctx, r.ID()); err != nil {
		return err
	}
	r.loaded = false
	return nil
}

func (r *Record) resetDirty() {
	r.dirty = make(map[string]struct{})
}
