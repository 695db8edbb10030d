package session

import (
	"github.com/roach88/mxcache/internal/store"
)

// OlmSession is a 1:1 session with a remote device.
type OlmSession interface {
	SessionID() string
}

// InboundGroupSession decrypts a room's messages from one sender.
type InboundGroupSession interface {
	SessionID() string
}

// OutboundGroupSession encrypts the local user's messages in a room.
type OutboundGroupSession interface {
	SessionID() string
}

// Pickler turns sessions into opaque bytes and back. Implementations are
// expected to encrypt; see Sealed.
type Pickler interface {
	PickleOlm(OlmSession) ([]byte, error)
	UnpickleOlm([]byte) (OlmSession, error)
	PickleInbound(InboundGroupSession) ([]byte, error)
	UnpickleInbound([]byte) (InboundGroupSession, error)
	PickleOutbound(OutboundGroupSession) ([]byte, error)
	UnpickleOutbound([]byte) (OutboundGroupSession, error)
}

// MegolmSessionIndex identifies an inbound group session.
type MegolmSessionIndex struct {
	RoomID    string `json:"room_id"`
	SessionID string `json:"session_id"`
	SenderKey string `json:"sender_key"`
}

// Fingerprint is the storage key of the index.
func (i MegolmSessionIndex) Fingerprint() string {
	return store.HashWithDomain(store.DomainMegolmSession, i.RoomID, i.SessionID, i.SenderKey)
}

// OutboundGroupSessionData is the shareable state of an outbound session.
type OutboundGroupSessionData struct {
	SessionID    string `json:"session_id"`
	SessionKey   string `json:"session_key"`
	MessageIndex uint32 `json:"message_index"`
}

// OutboundGroup pairs an outbound session with its data.
type OutboundGroup struct {
	Data    OutboundGroupSessionData
	Session OutboundGroupSession
}

// outboundEnvelope is the on-disk record of an outbound session.
type outboundEnvelope struct {
	Data    OutboundGroupSessionData `json:"data"`
	Session []byte                   `json:"session"`
}
