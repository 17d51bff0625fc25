package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/loamdb/loam/core"
)

// Driver is the PostgreSQL storage backend, connected through a pgx pool.
type Driver struct {
	dsn  string
	pool *pgxpool.Pool
}

var _ core.Driver = (*Driver)(nil)

// New creates a driver for the given connection string. No connection is
// opened until Connect.
func New(dsn string) *Driver {
	return &Driver{dsn: dsn}
}

// Connect opens the connection pool and verifies it with a ping.
func (d *Driver) Connect(ctx context.Context) error {
	pool, err := pgxpool.New(ctx, d.dsn)
	if err != nil {
		return err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return err
	}
	d.pool = pool
	return nil
}

// Ping verifies the pool is reachable.
func (d *Driver) Ping(ctx context.Context) error {
	return d.pool.Ping(ctx)
}

// Close releases the connection pool.
func (d *Driver) Close(ctx context.Context) error {
	if d.pool != nil {
		d.pool.Close()
	}
	return nil
}

// Transaction begins a new transaction. Pair it with core.WithTransaction
// so subsequent statements on the derived context run inside it.
func (d *Driver) Transaction(ctx context.Context) (core.Transaction, error) {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &Transaction{tx: tx}, nil
}

// exec runs a statement, preferring the transaction carried by the context.
func (d *Driver) exec(ctx context.Context, sqlQuery string, argList []any) (pgconn.CommandTag, error) {
	if tx, ok := core.TransactionFrom(ctx).(*Transaction); ok {
		return tx.tx.Exec(ctx, sqlQuery, argList...)
	}
	return d.pool.Exec(ctx, sqlQuery, argList...)
}

func (d *Driver) query(ctx context.Context, sqlQuery string, argList []any) (pgx.Rows, error) {
	if tx, ok := core.TransactionFrom(ctx).(*Transaction); ok {
		return tx.tx.Query(ctx, sqlQuery, argList...)
	}
	return d.pool.Query(ctx, sqlQuery, argList...)
}

func (d *Driver) queryRow(ctx context.Context, sqlQuery string, argList []any) pgx.Row {
	if tx, ok := core.TransactionFrom(ctx).(*Transaction); ok {
		return tx.tx.QueryRow(ctx, sqlQuery, argList...)
	}
	return d.pool.QueryRow(ctx, sqlQuery, argList...)
}

// scanRows reads a result set into rows keyed by application-level field
// names, mapping storage columns back through the schema.
func scanRows(schema *core.Schema, rows pgx.Rows) ([]core.Row, error) {
	defer rows.Close()

	descriptions := rows.FieldDescriptions()
	var results []core.Row
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(core.Row, len(values))
		for i, description := range descriptions {
			row[schema.NameOfColumn(string(description.Name))] = values[i]
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

// Insert stores a row and returns the generated identity value, or nil when
// the schema declares no identity field.
func (d *Driver) Insert(ctx context.Context, schema *core.Schema, row core.Row) (any, error) {
	sqlQuery, argList := renderInsert(schema, row)

	if _, ok := schema.IdentityField(); !ok {
		if _, err := d.exec(ctx, sqlQuery, argList); err != nil {
			return nil, &core.QueryExecutionError{Query: sqlQuery, Err: err}
		}
		return nil, nil
	}

	var id any
	if err := d.queryRow(ctx, sqlQuery, argList).Scan(&id); err != nil {
		return nil, &core.QueryExecutionError{Query: sqlQuery, Err: err}
	}
	return id, nil
}

// Select fetches every row matching the options.
func (d *Driver) Select(ctx context.Context, schema *core.Schema, options *core.Where) ([]core.Row, error) {
	sqlQuery, argList, err := renderSelect(schema, options)
	if err != nil {
		return nil, err
	}
	rows, err := d.query(ctx, sqlQuery, argList)
	if err != nil {
		return nil, &core.QueryExecutionError{Query: sqlQuery, Err: err}
	}
	results, err := scanRows(schema, rows)
	if err != nil {
		return nil, &core.QueryExecutionError{Query: sqlQuery, Err: err}
	}
	return results, nil
}

// SelectOne fetches the first row matching the options, or nil when none
// matches.
func (d *Driver) SelectOne(ctx context.Context, schema *core.Schema, options *core.Where) (core.Row, error) {
	limited := *options
	limited.Limit = 1
	limited.HasLimit = true
	results, err := d.Select(ctx, schema, &limited)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results[0], nil
}

// Update applies changes to every row matching the condition and returns
// the affected row count.
func (d *Driver) Update(ctx context.Context, schema *core.Schema, condition *core.Condition, changes core.Changes) (int64, error) {
	sqlQuery, argList, err := renderUpdate(schema, condition, changes)
	if err != nil {
		return 0, err
	}
	tag, err := d.exec(ctx, sqlQuery, argList)
	if err != nil {
		return 0, &core.QueryExecutionError{Query: sqlQuery, Err: err}
	}
	return tag.RowsAffected(), nil
}

// Delete removes every row matching the condition and returns the removed
// row count.
func (d *Driver) Delete(ctx context.Context, schema *core.Schema, condition *core.Condition) (int64, error) {
	sqlQuery, argList, err := renderDelete(schema, condition)
	if err != nil {
		return 0, err
	}
	tag, err := d.exec(ctx, sqlQuery, argList)
	if err != nil {
		return 0, &core.QueryExecutionError{Query: sqlQuery, Err: err}
	}
	return tag.RowsAffected(), nil
}

// Count counts the rows matching the options' condition. The backend's
// COUNT covers the whole filtered set; the limit window is not applied.
func (d *Driver) Count(ctx context.Context, schema *core.Schema, options *core.Where) (int64, error) {
	sqlQuery, argList, err := renderCount(schema, options)
	if err != nil {
		return 0, err
	}
	var count int64
	if err := d.queryRow(ctx, sqlQuery, argList).Scan(&count); err != nil {
		return 0, &core.QueryExecutionError{Query: sqlQuery, Err: err}
	}
	return count, nil
}

// Exists reports whether any row matches the options' condition.
func (d *Driver) Exists(ctx context.Context, schema *core.Schema, options *core.Where) (bool, error) {
	sqlQuery, argList, err := renderExists(schema, options)
	if err != nil {
		return false, err
	}
	var exists bool
	if err := d.queryRow(ctx, sqlQuery, argList).Scan(&exists); err != nil {
		return false, &core.QueryExecutionError{Query: sqlQuery, Err: err}
	}
	return exists, nil
}

// Aggregate computes fn over the named field of the filtered set. A NULL
// result from AVG means no row participated; without coalesce that is
// reported as ErrAggregateEmpty instead of a fabricated zero.
func (d *Driver) Aggregate(ctx context.Context, schema *core.Schema, fn core.AggregateFunc, field string, coalesce bool, options *core.Where) (any, error) {
	sqlQuery, argList, err := renderAggregate(schema, fn, field, coalesce, options)
	if err != nil {
		return nil, err
	}
	var result any
	if err := d.queryRow(ctx, sqlQuery, argList).Scan(&result); err != nil {
		return nil, &core.QueryExecutionError{Query: sqlQuery, Err: err}
	}
	normalized, _ := core.NormalizeAggregate(string(fn))
	if result == nil && normalized == core.AggregateAvg && !coalesce {
		return nil, core.ErrAggregateEmpty
	}
	return result, nil
}

// FieldValue returns the named field of the first matching row, or nil
// when no row matches.
func (d *Driver) FieldValue(ctx context.Context, schema *core.Schema, field string, options *core.Where) (any, error) {
	sqlQuery, argList, err := renderFieldValue(schema, field, options)
	if err != nil {
		return nil, err
	}
	var value any
	if err := d.queryRow(ctx, sqlQuery, argList).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, &core.QueryExecutionError{Query: sqlQuery, Err: err}
	}
	return value, nil
}
