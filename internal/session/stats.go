package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roach88/mxcache/internal/store"
)

// OutboundSummary describes a stored outbound session without its key.
type OutboundSummary struct {
	RoomID       string `json:"room_id"`
	SessionID    string `json:"session_id"`
	MessageIndex uint32 `json:"message_index"`
}

// Stats summarises the sessions stored in an environment.
type Stats struct {
	Account  bool              `json:"account"`
	Olm      int               `json:"olm_sessions"`
	Inbound  int               `json:"inbound_sessions"`
	Outbound []OutboundSummary `json:"outbound_sessions"`
}

// ReadStats reads session counts straight from disk. No pickles are
// opened, so no Pickler is needed. Outbound records whose envelope cannot
// be decoded are left out of the summary.
func ReadStats(ctx context.Context, env *store.Env) (Stats, error) {
	st := Stats{Outbound: []OutboundSummary{}}
	err := env.View(ctx, func(tx *store.Txn) error {
		_, ok, err := tx.GetSyncState(ctx, store.KeyOlmAccount)
		if err != nil {
			return err
		}
		st.Account = ok

		if err := tx.QueryRow(ctx, "SELECT COUNT(*) FROM olm_sessions").Scan(&st.Olm); err != nil {
			return err
		}
		if err := tx.QueryRow(ctx, "SELECT COUNT(*) FROM inbound_megolm_sessions").Scan(&st.Inbound); err != nil {
			return err
		}

		rows, err := tx.Query(ctx, "SELECT room_id, envelope FROM outbound_megolm_sessions ORDER BY room_id COLLATE BINARY")
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var roomID, raw string
			if err := rows.Scan(&roomID, &raw); err != nil {
				return err
			}
			var env outboundEnvelope
			if json.Unmarshal([]byte(raw), &env) != nil {
				continue
			}
			st.Outbound = append(st.Outbound, OutboundSummary{
				RoomID:       roomID,
				SessionID:    env.Data.SessionID,
				MessageIndex: env.Data.MessageIndex,
			})
		}
		return rows.Err()
	})
	if err != nil {
		return Stats{}, fmt.Errorf("read session stats: %w", err)
	}
	return st, nil
}
