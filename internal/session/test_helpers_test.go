package session

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/roach88/mxcache/internal/store"
	"github.com/roach88/mxcache/internal/testutil"
)

// fakeSession stands in for every session kind.
type fakeSession struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

func (s *fakeSession) SessionID() string { return s.ID }

var errBadPickle = errors.New("bad pickle")

// jsonPickler pickles fakeSessions as JSON.
type jsonPickler struct{}

func (jsonPickler) pickle(s any) ([]byte, error) {
	fs, ok := s.(*fakeSession)
	if !ok {
		return nil, errBadPickle
	}
	return json.Marshal(fs)
}

func (jsonPickler) unpickle(data []byte) (*fakeSession, error) {
	var fs fakeSession
	if err := json.Unmarshal(data, &fs); err != nil || fs.ID == "" {
		return nil, errBadPickle
	}
	return &fs, nil
}

func (p jsonPickler) PickleOlm(s OlmSession) ([]byte, error) {
	return p.pickle(s)
}

func (p jsonPickler) PickleInbound(s InboundGroupSession) ([]byte, error) {
	return p.pickle(s)
}

func (p jsonPickler) PickleOutbound(s OutboundGroupSession) ([]byte, error) {
	return p.pickle(s)
}

func (p jsonPickler) UnpickleOlm(data []byte) (OlmSession, error) {
	return p.unpickle(data)
}

func (p jsonPickler) UnpickleInbound(data []byte) (InboundGroupSession, error) {
	return p.unpickle(data)
}

func (p jsonPickler) UnpickleOutbound(data []byte) (OutboundGroupSession, error) {
	return p.unpickle(data)
}

func createTestStore(t *testing.T) (*Store, *store.Env) {
	t.Helper()
	env := testutil.OpenEnv(t)
	return New(env, jsonPickler{}, WithLogger(zaptest.NewLogger(t))), env
}

func reopen(t *testing.T, env *store.Env, p Pickler) *Store {
	t.Helper()
	s := New(env, p, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, s.RestoreAll(context.Background()))
	return s
}

var testIndex = MegolmSessionIndex{
	RoomID:    "!room:example.org",
	SessionID: "megolm-in-1",
	SenderKey: "curve-bob",
}
