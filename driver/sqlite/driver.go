package sqlite

import (
	"context"
	"database/sql"
	"regexp"
	"sync"

	"github.com/mattn/go-sqlite3"

	"github.com/loamdb/loam/core"
)

const driverName = "loam_sqlite3"

// registerDriver installs a sqlite3 driver variant whose connections carry
// a Go-backed regexp(pattern, value) function and case-sensitive LIKE, so
// the REGEXP and LIKE operators behave the same as on the other backends.
var registerDriver = sync.OnceFunc(func() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			if err := conn.RegisterFunc("regexp", func(pattern, value string) (bool, error) {
				re, err := regexp.Compile(pattern)
				if err != nil {
					return false, err
				}
				return re.MatchString(value), nil
			}, true); err != nil {
				return err
			}
			_, err := conn.Exec("PRAGMA case_sensitive_like = ON", nil)
			return err
		},
	})
})

// Driver is the embedded SQLite storage backend.
type Driver struct {
	dsn string
	db  *sql.DB
}

var _ core.Driver = (*Driver)(nil)

// New creates a driver for the given data source name. Use ":memory:" for
// a throwaway database. No connection is opened until Connect.
func New(dsn string) *Driver {
	return &Driver{dsn: dsn}
}

// Connect opens the database and verifies it with a ping.
func (d *Driver) Connect(ctx context.Context) error {
	registerDriver()
	db, err := sql.Open(driverName, d.dsn)
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}
	d.db = db
	return nil
}

// Ping verifies the database is reachable.
func (d *Driver) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Close releases the database handle.
func (d *Driver) Close(ctx context.Context) error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

// DB exposes the underlying handle for schema setup in tests and tooling.
func (d *Driver) DB() *sql.DB { return d.db }

// Transaction begins a new transaction. Pair it with core.WithTransaction
// so subsequent statements on the derived context run inside it.
func (d *Driver) Transaction(ctx context.Context) (core.Transaction, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &Transaction{tx: tx}, nil
}

func (d *Driver) exec(ctx context.Context, sqlQuery string, argList []any) (sql.Result, error) {
	if tx, ok := core.TransactionFrom(ctx).(*Transaction); ok {
		return tx.tx.ExecContext(ctx, sqlQuery, argList...)
	}
	return d.db.ExecContext(ctx, sqlQuery, argList...)
}

func (d *Driver) query(ctx context.Context, sqlQuery string, argList []any) (*sql.Rows, error) {
	if tx, ok := core.TransactionFrom(ctx).(*Transaction); ok {
		return tx.tx.QueryContext(ctx, sqlQuery, argList...)
	}
	return d.db.QueryContext(ctx, sqlQuery, argList...)
}

func (d *Driver) queryRow(ctx context.Context, sqlQuery string, argList []any) *sql.Row {
	if tx, ok := core.TransactionFrom(ctx).(*Transaction); ok {
		return tx.tx.QueryRowContext(ctx, sqlQuery, argList...)
	}
	return d.db.QueryRowContext(ctx, sqlQuery, argList...)
}

// normalizeValue undoes database/sql's []byte representation of text so
// rows read back with the same types they were written with.
func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

func scanRows(schema *core.Schema, rows *sql.Rows) ([]core.Row, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var results []core.Row
	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, err
		}
		row := make(core.Row, len(columns))
		for i, column := range columns {
			row[schema.NameOfColumn(column)] = normalizeValue(values[i])
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

// Insert stores a row. When the schema declares an identity field and the
// row does not carry one, the rowid assigned by SQLite is returned.
func (d *Driver) Insert(ctx context.Context, schema *core.Schema, row core.Row) (any, error) {
	sqlQuery, argList := renderInsert(schema, row)
	result, err := d.exec(ctx, sqlQuery, argList)
	if err != nil {
		return nil, &core.QueryExecutionError{Query: sqlQuery, Err: err}
	}

	idField, ok := schema.IdentityField()
	if !ok {
		return nil, nil
	}
	if value, present := row[idField]; present && value != nil {
		return value, nil
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, &core.QueryExecutionError{Query: sqlQuery, Err: err}
	}
	return id, nil
}

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

func (d *Driver) Update(ctx context.Context, schema *core.Schema, condition *core.Condition, changes core.Changes) (int64, error) {
	sqlQuery, argList, err := renderUpdate(schema, condition, changes)
	if err != nil {
		return 0, err
	}
	result, err := d.exec(ctx, sqlQuery, argList)
	if err != nil {
		return 0, &core.QueryExecutionError{Query: sqlQuery, Err: err}
	}
	return result.RowsAffected()
}

func (d *Driver) Delete(ctx context.Context, schema *core.Schema, condition *core.Condition) (int64, error) {
	sqlQuery, argList, err := renderDelete(schema, condition)
	if err != nil {
		return 0, err
	}
	result, err := d.exec(ctx, sqlQuery, argList)
	if err != nil {
		return 0, &core.QueryExecutionError{Query: sqlQuery, Err: err}
	}
	return result.RowsAffected()
}

// Count counts the rows matching the options' condition over the whole
// filtered set, like any relational COUNT.
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

func (d *Driver) Exists(ctx context.Context, schema *core.Schema, options *core.Where) (bool, error) {
	sqlQuery, argList, err := renderExists(schema, options)
	if err != nil {
		return false, err
	}
	var exists int64
	if err := d.queryRow(ctx, sqlQuery, argList).Scan(&exists); err != nil {
		return false, &core.QueryExecutionError{Query: sqlQuery, Err: err}
	}
	return exists != 0, nil
}

// Aggregate computes fn over the named field of the filtered set. A NULL
// AVG without coalesce is reported as ErrAggregateEmpty.
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
	return normalizeValue(result), nil
}

func (d *Driver) FieldValue(ctx context.Context, schema *core.Schema, field string, options *core.Where) (any, error) {
	sqlQuery, argList, err := renderFieldValue(schema, field, options)
	if err != nil {
		return nil, err
	}
	var value any
	if err := d.queryRow(ctx, sqlQuery, argList).Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, &core.QueryExecutionError{Query: sqlQuery, Err: err}
	}
	return normalizeValue(value), nil
}
