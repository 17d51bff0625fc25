package sqlite

import (
	"context"
	"database/sql"
)

// Transaction wraps a database/sql transaction so statements issued
// through a context carrying it share one atomic block.
type Transaction struct {
	tx *sql.Tx
}

// Commit commits the underlying transaction.
func (t *Transaction) Commit(ctx context.Context) error { return t.tx.Commit() }

// Rollback aborts the underlying transaction.
func (t *Transaction) Rollback(ctx context.Context) error { return t.tx.Rollback() }
