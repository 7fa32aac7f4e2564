// Package tx provides the transactional boundary shared by every audited write.
//
// A Runner executes a function inside one atomic unit of work. Stores discover the
// active unit through the context: SQL stores pick up the *sql.Tx placed there by
// SQLRunner, in-memory stores stage their writes on the unit placed there by
// MemoryRunner and publish them on commit. Either way a failed or cancelled
// unit leaves no partial state behind, and no reader outside the unit observes
// its writes before commit.
package tx

import (
	"context"
	"database/sql"
)

// Runner executes fn inside a single transaction. fn must use the context it is
// given for every store call that belongs to the transaction.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type ctxKey struct{}

var txKey = ctxKey{}

// WithTx stores a SQL transaction in context for downstream store usage.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extracts a SQL transaction from context if present.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}

// Executor is the query surface shared by *sql.DB and *sql.Tx.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ExecutorFrom returns the transaction in ctx, falling back to db.
func ExecutorFrom(ctx context.Context, db *sql.DB) Executor {
	if tx, ok := From(ctx); ok {
		return tx
	}
	return db
}

type shardKey struct{}

// WithShardKey tags ctx with the entity a unit of work will mutate. MemoryRunner
// serializes units that share a key; SQLRunner ignores it.
func WithShardKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, shardKey{}, key)
}

func shardKeyFrom(ctx context.Context) string {
	key, _ := ctx.Value(shardKey{}).(string)
	return key
}
