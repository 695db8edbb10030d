package session

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/mxcache/internal/store"
)

// SaveInbound stores an inbound group session under the fingerprint of
// index. A session already stored for the same index is replaced.
func (s *Store) SaveInbound(ctx context.Context, index MegolmSessionIndex, sess InboundGroupSession) error {
	data, err := s.pickler.PickleInbound(sess)
	if err != nil {
		return fmt.Errorf("pickle inbound session: %w", err)
	}
	key := index.Fingerprint()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err = s.env.Update(ctx, func(tx *store.Txn) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO inbound_megolm_sessions (session_key, pickle) VALUES (?, ?)
			ON CONFLICT(session_key) DO UPDATE SET pickle = excluded.pickle
		`, key, data)
		return err
	})
	if err != nil {
		return fmt.Errorf("save inbound session %s: %w", index.SessionID, err)
	}

	s.mirror.putInbound(key, sess)
	return nil
}

// Inbound returns the inbound group session for index from memory.
func (s *Store) Inbound(index MegolmSessionIndex) (InboundGroupSession, bool) {
	return s.mirror.getInbound(index.Fingerprint())
}

// InboundExists reports whether an inbound group session is known for index.
func (s *Store) InboundExists(index MegolmSessionIndex) bool {
	_, ok := s.Inbound(index)
	return ok
}

// SaveOutbound stores the outbound group session of a room, replacing the
// previous one.
func (s *Store) SaveOutbound(ctx context.Context, roomID string, data OutboundGroupSessionData, sess OutboundGroupSession) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	g := OutboundGroup{Data: data, Session: sess}
	if err := s.writeOutbound(ctx, roomID, g); err != nil {
		return err
	}
	s.mirror.putOutbound(roomID, g)
	return nil
}

// UpdateOutboundIndex records that the room's outbound session has advanced
// to messageIndex. The session is pickled again with its data. Nothing
// happens if the room has no outbound session.
func (s *Store) UpdateOutboundIndex(ctx context.Context, roomID string, messageIndex uint32) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	g, ok := s.mirror.getOutbound(roomID)
	if !ok {
		s.log.Debug("no outbound session to update", zap.String("room_id", roomID))
		return nil
	}
	g.Data.MessageIndex = messageIndex

	if err := s.writeOutbound(ctx, roomID, g); err != nil {
		return err
	}
	s.mirror.putOutbound(roomID, g)
	return nil
}

func (s *Store) writeOutbound(ctx context.Context, roomID string, g OutboundGroup) error {
	pickled, err := s.pickler.PickleOutbound(g.Session)
	if err != nil {
		return fmt.Errorf("pickle outbound session: %w", err)
	}
	raw, err := json.Marshal(outboundEnvelope{Data: g.Data, Session: pickled})
	if err != nil {
		return fmt.Errorf("encode outbound session: %w", err)
	}

	err = s.env.Update(ctx, func(tx *store.Txn) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO outbound_megolm_sessions (room_id, envelope) VALUES (?, ?)
			ON CONFLICT(room_id) DO UPDATE SET envelope = excluded.envelope
		`, roomID, string(raw))
		return err
	})
	if err != nil {
		return fmt.Errorf("save outbound session %s: %w", roomID, err)
	}
	return nil
}

// Outbound returns the outbound group session of a room from memory.
func (s *Store) Outbound(roomID string) (OutboundGroup, bool) {
	return s.mirror.getOutbound(roomID)
}

// OutboundExists reports whether the room has an outbound group session.
func (s *Store) OutboundExists(roomID string) bool {
	_, ok := s.mirror.getOutbound(roomID)
	return ok
}
