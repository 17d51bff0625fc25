// Package memory implements the in-memory driver of the loam persistence
// layer: a table-keyed row store with the same logical operation set as the
// relational drivers, evaluated directly over Go slices.
//
// The store provides no locking and no snapshot isolation. Queries hold a
// live reference to the backing rows; mutating a table between building a
// query and executing it changes what the query observes, and mutating it
// concurrently with an execution is a precondition violation. Callers are
// expected to keep single-writer discipline.
package memory

import (
	"context"

	"github.com/google/uuid"

	"github.com/loamdb/loam/core"
)

// Option configures the memory driver.
type Option func(*Driver)

// WithUUIDKeys makes tables assign string UUIDs instead of autoincrement
// integers when an inserted row carries no identity value.
func WithUUIDKeys() Option {
	return func(d *Driver) { d.uuidKeys = true }
}

// Driver is the in-memory storage backend.
type Driver struct {
	tables   map[string]*Table
	uuidKeys bool
}

var _ core.Driver = (*Driver)(nil)

// New creates an empty in-memory driver.
func New(options ...Option) *Driver {
	driver := &Driver{tables: make(map[string]*Table)}
	for _, option := range options {
		option(driver)
	}
	return driver
}

// Table returns the named table, creating it on first use. The table can
// be seeded directly; the query pipeline never mutates it.
func (d *Driver) Table(name string) *Table {
	if table, ok := d.tables[name]; ok {
		return table
	}
	table := &Table{uuidKeys: d.uuidKeys}
	d.tables[name] = table
	return table
}

// Table owns the ordered row slice backing one named collection. Row order
// is insertion order; the in-memory engine preserves it for deterministic
// output.
type Table struct {
	rows     []core.Row
	nextID   int64
	uuidKeys bool
}

// Seed appends rows to the table, cloning each one so later edits to the
// caller's maps do not leak into the store.
func (t *Table) Seed(rows ...core.Row) {
	for _, row := range rows {
		t.rows = append(t.rows, row.Clone())
	}
}

// Len returns the number of stored rows.
func (t *Table) Len() int { return len(t.rows) }

// Rows returns the live backing slice. Mutating it while queries are in
// flight is the caller's responsibility to avoid.
func (t *Table) Rows() []core.Row { return t.rows }

// generateID assigns the next identity value for the table.
func (t *Table) generateID() any {
	if t.uuidKeys {
		return uuid.NewString()
	}
	t.nextID++
	return t.nextID
}

// memoryTransaction satisfies the transaction contract without providing
// atomicity: the in-memory store applies every mutation immediately.
type memoryTransaction struct{}

func (memoryTransaction) Commit(ctx context.Context) error   { return nil }
func (memoryTransaction) Rollback(ctx context.Context) error { return nil }

func (d *Driver) Connect(ctx context.Context) error { return nil }
func (d *Driver) Ping(ctx context.Context) error    { return nil }
func (d *Driver) Close(ctx context.Context) error   { return nil }

func (d *Driver) Transaction(ctx context.Context) (core.Transaction, error) {
	return memoryTransaction{}, nil
}

func (d *Driver) Insert(ctx context.Context, schema *core.Schema, row core.Row) (any, error) {
	table := d.Table(schema.Table)
	stored := row.Clone()

	var id any
	if idField, ok := schema.IdentityField(); ok {
		if value, present := stored[idField]; present && value != nil {
			id = value
		} else {
			id = table.generateID()
			stored[idField] = id
		}
	}
	table.rows = append(table.rows, stored)
	return id, nil
}

func (d *Driver) Select(ctx context.Context, schema *core.Schema, options *core.Where) ([]core.Row, error) {
	return newAction(d.Table(schema.Table).rows, options).All()
}

func (d *Driver) SelectOne(ctx context.Context, schema *core.Schema, options *core.Where) (core.Row, error) {
	return newAction(d.Table(schema.Table).rows, options).Row()
}

func (d *Driver) Update(ctx context.Context, schema *core.Schema, condition *core.Condition, changes core.Changes) (int64, error) {
	table := d.Table(schema.Table)
	var affected int64
	for _, row := range table.rows {
		matched, err := Matches(row, condition)
		if err != nil {
			return 0, err
		}
		if !matched {
			continue
		}
		for field, value := range changes {
			row[field] = value
		}
		affected++
	}
	return affected, nil
}

func (d *Driver) Delete(ctx context.Context, schema *core.Schema, condition *core.Condition) (int64, error) {
	table := d.Table(schema.Table)
	kept := table.rows[:0]
	var removed int64
	for _, row := range table.rows {
		matched, err := Matches(row, condition)
		if err != nil {
			return 0, err
		}
		if matched {
			removed++
			continue
		}
		kept = append(kept, row)
	}
	table.rows = kept
	return removed, nil
}

// Count counts the rows in the query window. Because the window is taken
// after limit/offset, a limited query counts at most its limit; see
// action.Count.
func (d *Driver) Count(ctx context.Context, schema *core.Schema, options *core.Where) (int64, error) {
	return newAction(d.Table(schema.Table).rows, options).Count()
}

func (d *Driver) Exists(ctx context.Context, schema *core.Schema, options *core.Where) (bool, error) {
	return newAction(d.Table(schema.Table).rows, options).Exists()
}

func (d *Driver) Aggregate(ctx context.Context, schema *core.Schema, fn core.AggregateFunc, field string, coalesce bool, options *core.Where) (any, error) {
	return newAction(d.Table(schema.Table).rows, options).Aggregate(fn, field, coalesce)
}

func (d *Driver) FieldValue(ctx context.Context, schema *core.Schema, field string, options *core.Where) (any, error) {
	return newAction(d.Table(schema.Table).rows, options).FieldValue(field)
}
