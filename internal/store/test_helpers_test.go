package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testUser = "@alice:example.org"

// createTestEnv opens a fresh environment under t.TempDir().
func createTestEnv(t *testing.T) (*Env, Options) {
	t.Helper()
	opts := Options{
		Dir:    t.TempDir(),
		UserID: testUser,
		Logger: zaptest.NewLogger(t),
	}
	env, err := Open(context.Background(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { env.Close() })
	return env, opts
}
