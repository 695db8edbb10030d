package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/roach88/mxcache/internal/errs"
	"github.com/roach88/mxcache/internal/store"
)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. The default is the environment's logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// mirror holds the restored Megolm sessions.
type mirror struct {
	mu       sync.RWMutex
	inbound  map[string]InboundGroupSession
	outbound map[string]OutboundGroup
}

func newMirror() *mirror {
	return &mirror{
		inbound:  make(map[string]InboundGroupSession),
		outbound: make(map[string]OutboundGroup),
	}
}

func (m *mirror) getInbound(key string) (InboundGroupSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.inbound[key]
	return s, ok
}

func (m *mirror) putInbound(key string, s InboundGroupSession) {
	m.mu.Lock()
	m.inbound[key] = s
	m.mu.Unlock()
}

func (m *mirror) getOutbound(roomID string) (OutboundGroup, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.outbound[roomID]
	return g, ok
}

func (m *mirror) putOutbound(roomID string, g OutboundGroup) {
	m.mu.Lock()
	m.outbound[roomID] = g
	m.mu.Unlock()
}

func (m *mirror) replace(inbound map[string]InboundGroupSession, outbound map[string]OutboundGroup) {
	m.mu.Lock()
	m.inbound = inbound
	m.outbound = outbound
	m.mu.Unlock()
}

func (m *mirror) sizes() (int, int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.inbound), len(m.outbound)
}

// Store persists encryption sessions in an environment and mirrors the
// Megolm sessions in memory.
type Store struct {
	env     *store.Env
	pickler Pickler
	log     *zap.Logger

	// writeMu serializes mutations so the disk record and the mirror are
	// updated as one step.
	writeMu sync.Mutex
	mirror  *mirror
}

// New returns a session store over env. Call RestoreAll before serving
// lookups from a previously populated environment.
func New(env *store.Env, pickler Pickler, opts ...Option) *Store {
	s := &Store{
		env:     env,
		pickler: pickler,
		log:     env.Logger().Named("session"),
		mirror:  newMirror(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MirrorSize returns the number of inbound and outbound sessions held in
// memory.
func (s *Store) MirrorSize() (inbound, outbound int) {
	return s.mirror.sizes()
}

// RestoreAll loads every inbound and outbound Megolm session into the
// mirror. Records that cannot be decoded are logged and skipped.
func (s *Store) RestoreAll(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	inbound := make(map[string]InboundGroupSession)
	outbound := make(map[string]OutboundGroup)

	err := s.env.View(ctx, func(tx *store.Txn) error {
		if err := s.restoreInbound(ctx, tx, inbound); err != nil {
			return err
		}
		return s.restoreOutbound(ctx, tx, outbound)
	})
	if err != nil {
		return fmt.Errorf("restore sessions: %w", err)
	}

	s.mirror.replace(inbound, outbound)
	s.log.Info("restored sessions",
		zap.Int("inbound", len(inbound)),
		zap.Int("outbound", len(outbound)),
	)
	return nil
}

func (s *Store) restoreInbound(ctx context.Context, tx *store.Txn, into map[string]InboundGroupSession) error {
	rows, err := tx.Query(ctx, "SELECT session_key, pickle FROM inbound_megolm_sessions")
	if err != nil {
		return fmt.Errorf("query inbound sessions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var data []byte
		if err := rows.Scan(&key, &data); err != nil {
			return fmt.Errorf("scan inbound session: %w", err)
		}
		sess, err := s.pickler.UnpickleInbound(data)
		if err != nil {
			s.log.Warn("skipping inbound session", zap.String("session_key", key), zap.Error(err))
			continue
		}
		into[key] = sess
	}
	return rows.Err()
}

func (s *Store) restoreOutbound(ctx context.Context, tx *store.Txn, into map[string]OutboundGroup) error {
	rows, err := tx.Query(ctx, "SELECT room_id, envelope FROM outbound_megolm_sessions")
	if err != nil {
		return fmt.Errorf("query outbound sessions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var roomID, raw string
		if err := rows.Scan(&roomID, &raw); err != nil {
			return fmt.Errorf("scan outbound session: %w", err)
		}
		g, err := s.decodeOutbound(raw)
		if err != nil {
			s.log.Warn("skipping outbound session", zap.String("room_id", roomID), zap.Error(err))
			continue
		}
		into[roomID] = g
	}
	return rows.Err()
}

func (s *Store) decodeOutbound(raw string) (OutboundGroup, error) {
	var env outboundEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return OutboundGroup{}, fmt.Errorf("decode envelope: %w", err)
	}
	sess, err := s.pickler.UnpickleOutbound(env.Session)
	if err != nil {
		return OutboundGroup{}, err
	}
	return OutboundGroup{Data: env.Data, Session: sess}, nil
}

// SaveAccount stores the pickled account of the local device.
func (s *Store) SaveAccount(ctx context.Context, pickled []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return s.env.Update(ctx, func(tx *store.Txn) error {
		return tx.PutSyncState(ctx, store.KeyOlmAccount, pickled)
	})
}

// RestoreAccount returns the pickled account, or ErrNoSession if none has
// been saved.
func (s *Store) RestoreAccount(ctx context.Context) ([]byte, error) {
	var data []byte
	var ok bool
	err := s.env.View(ctx, func(tx *store.Txn) error {
		var err error
		data, ok, err = tx.GetSyncState(ctx, store.KeyOlmAccount)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("restore account: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("restore account: %w", errs.ErrNoSession)
	}
	return data, nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
