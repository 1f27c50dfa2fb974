package database

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/lib/pq"
)

const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeUniqueViolation      = "23505"
)

// IsRetryable reports whether err is a transient conflict that a fresh
// transaction may not hit again.
func IsRetryable(err error) bool {
	var pqErr *pq.Error
	if !stderrors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == codeSerializationFailure || pqErr.Code == codeDeadlockDetected
}

// IsUniqueViolation reports whether err is a unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return stderrors.As(err, &pqErr) && pqErr.Code == codeUniqueViolation
}

// NewTxRetryPolicy retries only transient conflicts, at most maxRetries times.
func NewTxRetryPolicy(maxRetries int) retrypolicy.RetryPolicy[any] {
	return retrypolicy.NewBuilder[any]().
		HandleIf(func(_ any, err error) bool {
			return IsRetryable(err)
		}).
		WithBackoff(10*time.Millisecond, 250*time.Millisecond).
		WithMaxRetries(maxRetries).
		WithJitterFactor(0.1).
		OnRetry(func(e failsafe.ExecutionEvent[any]) {
			slog.Warn("retrying transaction after transient conflict", "method", "WithTx", "attempt", e.Attempts(), "error", e.LastError())
		}).
		Build()
}

// WithTx runs fn inside a READ COMMITTED transaction, retrying the whole
// unit according to policy. It commits if fn returns nil, otherwise it rolls back.
func WithTx(ctx context.Context, db *sql.DB, policy retrypolicy.RetryPolicy[any], fn func(*sql.Tx) error) error {
	return failsafe.With[any](policy).WithContext(ctx).Run(func() error {
		return runTx(ctx, db, fn)
	})
}

func runTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		slog.Error("failed to begin transaction", "method", "WithTx", "error", err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err = fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.Error("rollback failed", "method", "WithTx", "error", rbErr)
			return fmt.Errorf("rollback failed: %v; original error: %w", rbErr, err)
		}
		return err
	}

	if err = tx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "method", "WithTx", "error", err)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
