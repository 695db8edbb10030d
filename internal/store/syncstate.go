package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Keys of the sync_state scalars.
const (
	KeyNextBatch     = "next_batch"
	KeyOlmAccount    = "olm_account"
	KeyFormatVersion = "cache_format_version"
)

// GetSyncState reads a scalar. ok is false when the key is absent.
func (t *Txn) GetSyncState(ctx context.Context, key string) (value []byte, ok bool, err error) {
	err = t.QueryRow(ctx, "SELECT value FROM sync_state WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get sync state %s: %w", key, err)
	}
	return value, true, nil
}

// PutSyncState writes a scalar, replacing any previous value.
func (t *Txn) PutSyncState(ctx context.Context, key string, value []byte) error {
	_, err := t.Exec(ctx, `
		INSERT INTO sync_state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("put sync state %s: %w", key, err)
	}
	return nil
}

// SetNextBatchToken records the token the next sync should start from.
func (t *Txn) SetNextBatchToken(ctx context.Context, token string) error {
	return t.PutSyncState(ctx, KeyNextBatch, []byte(token))
}

// NextBatchToken returns the stored sync token, or "" if none.
func (e *Env) NextBatchToken(ctx context.Context) string {
	var token string
	err := e.View(ctx, func(tx *Txn) error {
		v, _, err := tx.GetSyncState(ctx, KeyNextBatch)
		token = string(v)
		return err
	})
	if err != nil {
		e.log.Error("next batch token", zap.Error(err))
		return ""
	}
	return token
}

// IsInitialized reports whether an initial sync has been stored.
func (e *Env) IsInitialized(ctx context.Context) bool {
	var ok bool
	err := e.View(ctx, func(tx *Txn) error {
		var err error
		_, ok, err = tx.GetSyncState(ctx, KeyNextBatch)
		return err
	})
	if err != nil {
		e.log.Error("is initialized", zap.Error(err))
		return false
	}
	return ok
}

// StoredFormatVersion returns the format version recorded in the store.
func (e *Env) StoredFormatVersion(ctx context.Context) string {
	var version string
	err := e.View(ctx, func(tx *Txn) error {
		v, _, err := tx.GetSyncState(ctx, KeyFormatVersion)
		version = string(v)
		return err
	})
	if err != nil {
		e.log.Error("format version", zap.Error(err))
		return ""
	}
	return version
}
