package session

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/mxcache/internal/store"
)

// SaveOlm stores an Olm session with the device identified by curve25519.
func (s *Store) SaveOlm(ctx context.Context, curve25519 string, sess OlmSession) error {
	data, err := s.pickler.PickleOlm(sess)
	if err != nil {
		return fmt.Errorf("pickle olm session: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err = s.env.Update(ctx, func(tx *store.Txn) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO olm_sessions (curve25519, session_id, pickle) VALUES (?, ?, ?)
			ON CONFLICT(curve25519, session_id) DO UPDATE SET pickle = excluded.pickle
		`, curve25519, sess.SessionID(), data)
		return err
	})
	if err != nil {
		return fmt.Errorf("save olm session %s: %w", sess.SessionID(), err)
	}
	return nil
}

// Olm loads one Olm session from disk.
func (s *Store) Olm(ctx context.Context, curve25519, sessionID string) (OlmSession, bool) {
	var data []byte
	err := s.env.View(ctx, func(tx *store.Txn) error {
		return tx.QueryRow(ctx,
			"SELECT pickle FROM olm_sessions WHERE curve25519 = ? AND session_id = ?",
			curve25519, sessionID,
		).Scan(&data)
	})
	if isNoRows(err) {
		return nil, false
	}
	if err != nil {
		s.log.Error("read olm session", zap.String("session_id", sessionID), zap.Error(err))
		return nil, false
	}

	sess, err := s.pickler.UnpickleOlm(data)
	if err != nil {
		s.log.Warn("unpickle olm session", zap.String("session_id", sessionID), zap.Error(err))
		return nil, false
	}
	return sess, true
}

// OlmSessions lists the session ids stored for a device in ascending order.
func (s *Store) OlmSessions(ctx context.Context, curve25519 string) []string {
	ids := []string{}
	err := s.env.View(ctx, func(tx *store.Txn) error {
		rows, err := tx.Query(ctx,
			"SELECT session_id FROM olm_sessions WHERE curve25519 = ? ORDER BY session_id COLLATE BINARY",
			curve25519,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return rows.Err()
	})
	if err != nil {
		s.log.Error("list olm sessions", zap.String("curve25519", curve25519), zap.Error(err))
		return []string{}
	}
	return ids
}
