package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Transaction wraps a pgx transaction so statements issued through a
// context carrying it share one atomic block.
type Transaction struct {
	tx pgx.Tx
}

// Commit commits the underlying transaction.
func (t *Transaction) Commit(ctx context.Context) error { return t.tx.Commit(ctx) }

// Rollback aborts the underlying transaction.
func (t *Transaction) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }
