package database

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"time"
)

type TxOptions struct {
	IsolationLevel sql.IsolationLevel
	ReadOnly       bool
	MaxRetries     int
	// Backoff is the first retry delay; it doubles per attempt.
	Backoff time.Duration
}

func DefaultTxOptions() TxOptions {
	return TxOptions{
		IsolationLevel: sql.LevelReadCommitted,
		MaxRetries:     3,
		Backoff:        50 * time.Millisecond,
	}
}

func begin(ctx context.Context, db *sql.DB, opts TxOptions) (*sql.Tx, error) {
	tx, err := db.BeginTx(ctx, &sql.TxOptions{
		Isolation: opts.IsolationLevel,
		ReadOnly:  opts.ReadOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return tx, nil
}

// runOnce executes fn in one transaction and reports which step failed.
func runOnce(ctx context.Context, db *sql.DB, opts TxOptions, fn func(*sql.Tx) error) (step string, err error) {
	tx, err := begin(ctx, db, opts)
	if err != nil {
		return "begin", err
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return "rollback", fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return "fn", err
	}

	if err := tx.Commit(); err != nil {
		return "commit", fmt.Errorf("commit transaction: %w", err)
	}
	return "", nil
}

func WithTransaction(ctx context.Context, db *sql.DB, opts TxOptions, fn func(*sql.Tx) error) error {
	_, err := runOnce(ctx, db, opts, fn)
	return err
}

// WithRetry reruns fn in a fresh transaction while the failure is a
// serialization, deadlock or transient error, with jittered exponential
// backoff. Begin and rollback failures are not retried.
func WithRetry(ctx context.Context, db *sql.DB, opts TxOptions, fn func(*sql.Tx) error) error {
	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = 50 * time.Millisecond
	}

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		step, err := runOnce(ctx, db, opts, fn)
		if err == nil {
			return nil
		}
		if step == "begin" || step == "rollback" || !IsRetryable(err) {
			return err
		}
		if attempt == opts.MaxRetries {
			return fmt.Errorf("max retries (%d) exceeded in %s: %w", opts.MaxRetries, step, err)
		}

		jitter := time.Duration(rand.Int63n(int64(backoff/4) + 1))
		timer := time.NewTimer(backoff + jitter)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
		backoff *= 2
	}
}
