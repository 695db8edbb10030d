package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/mxcache/internal/errs"
)

// Txn is a scoped transaction. Writes become visible only after Commit; a
// transaction that is rolled back, or never committed, leaves the store as
// it was.
type Txn struct {
	tx       *sql.Tx
	readOnly bool
}

// Begin starts a transaction. Read-only transactions run concurrently with
// each other and with the writer; write transactions are serialized.
func (e *Env) Begin(ctx context.Context, readOnly bool) (*Txn, error) {
	db := e.writer
	if readOnly {
		db = e.reader
	}
	if db == nil {
		return nil, errs.ErrClosed
	}

	tx, err := db.BeginTx(ctx, &sql.TxOptions{ReadOnly: readOnly})
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &Txn{tx: tx, readOnly: readOnly}, nil
}

// Update runs fn in a write transaction and commits it when fn succeeds.
func (e *Env) Update(ctx context.Context, fn func(tx *Txn) error) error {
	tx, err := e.Begin(ctx, false)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// View runs fn in a read-only transaction.
func (e *Env) View(ctx context.Context, fn func(tx *Txn) error) error {
	tx, err := e.Begin(ctx, true)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	return fn(tx)
}

// ReadOnly reports whether the transaction was opened read-only.
func (t *Txn) ReadOnly() bool {
	return t.readOnly
}

// Commit makes the transaction's writes durable.
func (t *Txn) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Rollback discards the transaction. Rolling back a finished transaction is
// a no-op.
func (t *Txn) Rollback() error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

func (t *Txn) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, query, args...)
}

func (t *Txn) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, query, args...)
}

func (t *Txn) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, query, args...)
}

// Count returns the number of rows in table whose column equals value.
// table and column must be constants.
func (t *Txn) Count(ctx context.Context, table, column, value string) (int, error) {
	var n int
	err := t.tx.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = ?", table, column), value,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}
