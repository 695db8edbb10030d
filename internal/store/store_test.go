package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_CreatesEnvironment(t *testing.T) {
	env, opts := createTestEnv(t)

	assert.Equal(t, filepath.Join(opts.Dir, PathForUser(testUser)), env.Dir())
	assert.Equal(t, testUser, env.UserID())

	for _, name := range []string{sqliteFile, mediaFile} {
		info, err := os.Stat(filepath.Join(env.Dir(), name))
		require.NoError(t, err, name)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm(), name)
	}

	dirInfo, err := os.Stat(env.Dir())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o700), dirInfo.Mode().Perm())
}

func TestOpen_CreatesAllSubStores(t *testing.T) {
	env, _ := createTestEnv(t)
	ctx := context.Background()

	tables := []string{
		"sync_state", "rooms", "invites", "room_states", "room_members",
		"room_messages", "invite_states", "invite_members", "read_receipts",
		"pending_receipts", "sent_notifications", "encrypted_rooms", "devices",
		"device_keys", "inbound_megolm_sessions", "outbound_megolm_sessions",
		"olm_sessions",
	}
	err := env.View(ctx, func(tx *Txn) error {
		for _, table := range tables {
			var name string
			err := tx.QueryRow(ctx,
				"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
			).Scan(&name)
			assert.NoError(t, err, "table %q", table)
		}
		return nil
	})
	require.NoError(t, err)
}

func TestOpen_WritesFormatVersion(t *testing.T) {
	env, _ := createTestEnv(t)
	assert.Equal(t, FormatVersion, env.StoredFormatVersion(context.Background()))
}

func TestOpen_Reopen_KeepsData(t *testing.T) {
	ctx := context.Background()
	env, opts := createTestEnv(t)

	require.NoError(t, env.Update(ctx, func(tx *Txn) error {
		return tx.SetNextBatchToken(ctx, "s72594_4483_1934")
	}))
	require.NoError(t, env.Close())

	env2, err := Open(ctx, opts)
	require.NoError(t, err)
	defer env2.Close()

	assert.Equal(t, "s72594_4483_1934", env2.NextBatchToken(ctx))
	assert.True(t, env2.IsInitialized(ctx))
}

func TestOpen_VersionMismatch_ResetsStore(t *testing.T) {
	ctx := context.Background()
	env, opts := createTestEnv(t)

	require.NoError(t, env.Update(ctx, func(tx *Txn) error {
		if err := tx.SetNextBatchToken(ctx, "token"); err != nil {
			return err
		}
		return tx.PutSyncState(ctx, KeyFormatVersion, []byte("2017.01.01"))
	}))
	env.SaveImage("mxc://example.org/abc", []byte("png"))
	require.NoError(t, env.Close())

	env2, err := Open(ctx, opts)
	require.NoError(t, err)
	defer env2.Close()

	assert.False(t, env2.IsInitialized(ctx))
	assert.Equal(t, "", env2.NextBatchToken(ctx))
	assert.Nil(t, env2.Image("mxc://example.org/abc"))
	assert.Equal(t, FormatVersion, env2.StoredFormatVersion(ctx))
}

func TestOpen_CorruptDatabase_ResetsStore(t *testing.T) {
	ctx := context.Background()
	opts := Options{Dir: t.TempDir(), UserID: testUser}

	dir := filepath.Join(opts.Dir, PathForUser(testUser))
	require.NoError(t, os.MkdirAll(dir, 0o700))
	garbage := make([]byte, 8192)
	for i := range garbage {
		garbage[i] = byte(i % 251)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, sqliteFile), garbage, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stale.lock"), []byte("x"), 0o600))

	env, err := Open(ctx, opts)
	require.NoError(t, err)
	defer env.Close()

	assert.False(t, env.IsInitialized(ctx))
	_, err = os.Stat(filepath.Join(dir, "stale.lock"))
	assert.True(t, os.IsNotExist(err), "reset should remove every file in the directory")
}

func TestOpen_CorruptMedia_ResetsStore(t *testing.T) {
	ctx := context.Background()
	opts := Options{Dir: t.TempDir(), UserID: testUser}

	dir := filepath.Join(opts.Dir, PathForUser(testUser))
	require.NoError(t, os.MkdirAll(dir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, mediaFile), make([]byte, 16384), 0o600))

	env, err := Open(ctx, opts)
	require.NoError(t, err)
	defer env.Close()

	env.SaveImage("mxc://a/b", []byte{1, 2, 3})
	assert.Equal(t, []byte{1, 2, 3}, env.Image("mxc://a/b"))
}

func TestOpen_InvalidArguments(t *testing.T) {
	ctx := context.Background()

	_, err := Open(ctx, Options{Dir: t.TempDir()})
	assert.Error(t, err)

	_, err = Open(ctx, Options{UserID: testUser})
	assert.Error(t, err)
}

func TestOpen_UnwritableParent(t *testing.T) {
	parent := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(parent, []byte("not a dir"), 0o600))

	_, err := Open(context.Background(), Options{Dir: parent, UserID: testUser})
	assert.Error(t, err)
}

func TestPathForUser_Deterministic(t *testing.T) {
	a := PathForUser("@alice:example.org")
	assert.Equal(t, a, PathForUser("@alice:example.org"))
	assert.NotEqual(t, a, PathForUser("@bob:example.org"))
	assert.Len(t, a, 64)
}

func TestHashWithDomain_SeparatesParts(t *testing.T) {
	assert.NotEqual(t,
		HashWithDomain("d", "ab", "c"),
		HashWithDomain("d", "a", "bc"))
}

func TestClose_MultipleCalls(t *testing.T) {
	env, _ := createTestEnv(t)
	require.NoError(t, env.Close())
	assert.NoError(t, env.Close())

	_, err := env.Begin(context.Background(), true)
	assert.Error(t, err)
}

func TestDeleteData(t *testing.T) {
	env, _ := createTestEnv(t)
	dir := env.Dir()

	require.NoError(t, env.DeleteData())
	_, err := os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}
