// Package testutil holds helpers shared by package tests: a deterministic
// clock, event builders, sync fixtures and throwaway environments.
package testutil

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/roach88/mxcache/internal/event"
	"github.com/roach88/mxcache/internal/store"
)

// LocalUser is the identity test environments are opened for.
const LocalUser = "@alice:example.org"

// OpenEnv opens a fresh environment for LocalUser under t.TempDir() and
// closes it when the test ends.
func OpenEnv(t *testing.T) *store.Env {
	t.Helper()
	env, err := store.Open(context.Background(), store.Options{
		Dir:    t.TempDir(),
		UserID: LocalUser,
		Logger: zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	t.Cleanup(func() { env.Close() })
	return env
}

// LoadSyncDelta reads a YAML or JSON sync batch fixture.
func LoadSyncDelta(t *testing.T, path string) event.SyncDelta {
	t.Helper()
	delta, err := event.LoadSyncDelta(path)
	require.NoError(t, err)
	return delta
}

func content(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

// StateEvent builds a state event with the given content.
func StateEvent(t *testing.T, eventType, stateKey string, c any) event.Event {
	return event.Event{
		Type:     eventType,
		EventID:  "$" + eventType + ":" + stateKey,
		Sender:   LocalUser,
		StateKey: event.StateKey(stateKey),
		Content:  content(t, c),
	}
}

// Member builds an m.room.member event for userID.
func Member(t *testing.T, userID, membership, displayName string) event.Event {
	e := StateEvent(t, event.TypeRoomMember, userID, event.Member{
		Membership:  membership,
		DisplayName: displayName,
	})
	e.Sender = userID
	return e
}

// Text builds an m.text message.
func Text(t *testing.T, eventID, sender string, ts int64, body string) event.Event {
	return event.Event{
		Type:           event.TypeRoomMessage,
		EventID:        eventID,
		Sender:         sender,
		OriginServerTS: ts,
		Content:        content(t, map[string]string{"msgtype": "m.text", "body": body}),
	}
}

// JoinedBatch builds a batch for a single joined room.
func JoinedBatch(nextBatch, roomID string, room event.JoinedRoom) event.SyncDelta {
	return event.SyncDelta{
		NextBatch: nextBatch,
		Rooms: event.Rooms{
			Join: map[string]event.JoinedRoom{roomID: room},
		},
	}
}
