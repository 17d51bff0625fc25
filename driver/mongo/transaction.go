package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
)

// Transaction wraps a MongoDB session with an open transaction. Operations
// issued through a context carrying it run inside that transaction.
type Transaction struct {
	session mongo.Session
}

// Commit commits the transaction and ends the session.
func (t *Transaction) Commit(ctx context.Context) error {
	defer t.session.EndSession(ctx)
	return t.session.CommitTransaction(ctx)
}

// Rollback aborts the transaction and ends the session.
func (t *Transaction) Rollback(ctx context.Context) error {
	defer t.session.EndSession(ctx)
	return t.session.AbortTransaction(ctx)
}
