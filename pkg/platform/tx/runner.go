package tx

import (
	"context"
	"database/sql"
	"fmt"
)

// Runner wraps a unit of work in a transaction boundary. Services depend on
// this interface so the in-memory wiring can run without a database.
type Runner interface {
	InTx(ctx context.Context, fn func(context.Context) error) error
}

// SQLRunner begins a database transaction, stores it in context for
// participating stores, and commits only if fn succeeds.
type SQLRunner struct {
	db *sql.DB
}

func NewSQLRunner(db *sql.DB) *SQLRunner {
	return &SQLRunner{db: db}
}

func (r *SQLRunner) InTx(ctx context.Context, fn func(context.Context) error) error {
	if _, ok := From(ctx); ok {
		// Already inside a transaction; join it.
		return fn(ctx)
	}
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(WithTx(ctx, dbTx)); err != nil {
		dbTx.Rollback()
		return err
	}
	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// PassthroughRunner runs fn directly. In-memory stores provide their own
// atomicity, so no transaction is needed.
type PassthroughRunner struct{}

func (PassthroughRunner) InTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}
