package cache

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/roach88/mxcache/internal/event"
	"github.com/roach88/mxcache/internal/store"
	"github.com/roach88/mxcache/internal/testutil"
)

const local = testutil.LocalUser

// now is 2024-03-15 12:00 UTC, an hour after the newest fixture message.
var now = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

// createTestCache opens a fresh environment with a cache reading a fixed
// clock.
func createTestCache(t *testing.T, opts ...Option) (*Cache, *store.Env) {
	t.Helper()
	env := testutil.OpenEnv(t)
	clock := testutil.NewDeterministicClock(now)
	opts = append([]Option{WithNow(clock.Now), WithLogger(zaptest.NewLogger(t))}, opts...)
	return New(env, opts...), env
}

func applyFixture(t *testing.T, c *Cache, name string) {
	t.Helper()
	delta := testutil.LoadSyncDelta(t, filepath.Join("testdata", "sync", name))
	require.NoError(t, c.ApplySyncDelta(context.Background(), delta))
}

func apply(t *testing.T, c *Cache, delta event.SyncDelta) {
	t.Helper()
	require.NoError(t, c.ApplySyncDelta(context.Background(), delta))
}

func assertGolden(t *testing.T, name string, v any) {
	t.Helper()
	data, err := json.MarshalIndent(v, "", "  ")
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
}

// joinRoom applies a batch joining roomID with the given state events.
func joinRoom(t *testing.T, c *Cache, roomID string, state ...event.Event) {
	t.Helper()
	apply(t, c, testutil.JoinedBatch("s", roomID, event.JoinedRoom{
		State: event.StateEvents{Events: state},
	}))
}
