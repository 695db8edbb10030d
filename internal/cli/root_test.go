package cli

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "mxcache", cmd.Use)
	assert.Contains(t, cmd.Long, "Matrix client")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"rooms"}, {"invites"}, {"members"}, {"timeline"},
		{"search", "rooms"}, {"search", "users"},
		{"apply"}, {"prune"}, {"notifications"}, {"sessions"}, {"info"},
	}

	for _, path := range commands {
		t.Run(path[len(path)-1], func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err, "Command %v should exist", path)
			require.NotNil(t, subCmd)
			assert.Equal(t, path[len(path)-1], subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	for _, name := range []string{"config", "dir", "user"} {
		f := cmd.PersistentFlags().Lookup(name)
		require.NotNil(t, f, name)
		assert.Equal(t, "", f.DefValue)
	}
}

func TestMembersCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	membersCmd, _, err := cmd.Find([]string{"members"})
	require.NoError(t, err)

	assert.Equal(t, "0", membersCmd.Flags().Lookup("offset").DefValue)
	assert.Equal(t, "30", membersCmd.Flags().Lookup("limit").DefValue)
}

func TestSearchCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	usersCmd, _, err := cmd.Find([]string{"search", "users"})
	require.NoError(t, err)

	maxFlag := usersCmd.InheritedFlags().Lookup("max")
	require.NotNil(t, maxFlag)
	assert.Equal(t, "10", maxFlag.DefValue)
}

func TestInvalidFormat(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"info", "--format", "yaml"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}
