package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const defaultTxTimeout = 15 * time.Second

// Querier is the subset of *sql.DB and *sql.Tx used by repositories.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txContextKey struct{}

// TxFromContext returns the transaction bound to ctx by RunInTx, if any.
func TxFromContext(ctx context.Context) (*sql.Tx, bool) {
	if ctx == nil {
		return nil, false
	}
	tx, ok := ctx.Value(txContextKey{}).(*sql.Tx)
	return tx, ok && tx != nil
}

// TxOption customises transaction behaviour.
type TxOption func(*txConfig)

type txConfig struct {
	timeout   time.Duration
	isolation sql.IsolationLevel
}

// WithTxTimeout sets a timeout for the transaction context.
func WithTxTimeout(timeout time.Duration) TxOption {
	return func(cfg *txConfig) {
		if timeout > 0 {
			cfg.timeout = timeout
		}
	}
}

// WithIsolation overrides the isolation level requested from the driver.
func WithIsolation(level sql.IsolationLevel) TxOption {
	return func(cfg *txConfig) {
		cfg.isolation = level
	}
}

// RunTransaction executes fn inside a transaction on db. The transaction is stored in the context handed to fn
// so repositories resolve it through Querier. Nested calls join the outer transaction.
// Errors returned by fn are propagated unchanged after rollback.
func RunTransaction(ctx context.Context, db *sql.DB, fn func(ctx context.Context) error, opts ...TxOption) (err error) {
	if db == nil {
		return WrapError("transaction", errors.New("sqldb: database is nil"))
	}
	if fn == nil {
		return WrapError("transaction", errors.New("sqldb: transaction function is nil"))
	}
	if _, ok := TxFromContext(ctx); ok {
		return fn(ctx)
	}

	cfg := txConfig{timeout: defaultTxTimeout, isolation: sql.LevelDefault}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	txnCtx := ctx
	var cancel context.CancelFunc
	if cfg.timeout > 0 {
		deadline, hasDeadline := ctx.Deadline()
		if !hasDeadline || time.Until(deadline) > cfg.timeout {
			txnCtx, cancel = context.WithTimeout(ctx, cfg.timeout)
		}
	}
	if cancel != nil {
		defer cancel()
	}

	tx, err := db.BeginTx(txnCtx, &sql.TxOptions{Isolation: cfg.isolation})
	if err != nil {
		return WrapError("transaction.begin", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(context.WithValue(txnCtx, txContextKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return WrapError("transaction.commit", err)
	}
	return nil
}
