package tx

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const defaultTxTimeout = 5 * time.Second

// Runner executes fn inside a transaction. Stores called from fn pick the
// transaction up from ctx via From.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// SQLRunner is a Runner backed by a *sql.DB.
type SQLRunner struct {
	db      *sql.DB
	timeout time.Duration
}

// NewSQLRunner creates a Runner. A zero timeout falls back to a 5s default,
// applied only when ctx has no deadline of its own.
func NewSQLRunner(db *sql.DB, timeout time.Duration) *SQLRunner {
	if timeout <= 0 {
		timeout = defaultTxTimeout
	}
	return &SQLRunner{db: db, timeout: timeout}
}

// RunInTx begins a transaction, runs fn and commits. A transaction already
// present in ctx is reused so nested calls join the outer unit of work.
func (r *SQLRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("transaction aborted: %w", err)
	}
	if _, ok := From(ctx); ok {
		return fn(ctx)
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(WithTx(ctx, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
