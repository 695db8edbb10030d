package event

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Event types the cache treats specially.
const (
	TypeRoomName           = "m.room.name"
	TypeRoomTopic          = "m.room.topic"
	TypeRoomAvatar         = "m.room.avatar"
	TypeRoomCanonicalAlias = "m.room.canonical_alias"
	TypeRoomJoinRules      = "m.room.join_rules"
	TypeRoomGuestAccess    = "m.room.guest_access"
	TypeRoomPowerLevels    = "m.room.power_levels"
	TypeRoomMember         = "m.room.member"
	TypeRoomEncryption     = "m.room.encryption"
	TypeRoomCreate         = "m.room.create"
	TypeRoomRedaction      = "m.room.redaction"
	TypeRoomMessage        = "m.room.message"
	TypeRoomEncrypted      = "m.room.encrypted"
	TypeSticker            = "m.sticker"
	TypeReceipt            = "m.receipt"
)

// Event is a single room event as delivered by sync. Stripped invite state
// uses the same shape with only type, state_key, sender and content set.
type Event struct {
	Type           string          `json:"type"`
	EventID        string          `json:"event_id,omitempty"`
	Sender         string          `json:"sender,omitempty"`
	StateKey       *string         `json:"state_key,omitempty"`
	OriginServerTS int64           `json:"origin_server_ts,omitempty"`
	Redacts        string          `json:"redacts,omitempty"`
	Content        json.RawMessage `json:"content,omitempty"`
	Unsigned       json.RawMessage `json:"unsigned,omitempty"`
}

// IsState reports whether the event carries a state key.
func (e Event) IsState() bool {
	return e.StateKey != nil
}

// IsRedaction reports whether the event redacts another event.
func (e Event) IsRedaction() bool {
	return e.Type == TypeRoomRedaction
}

// Key returns the state key, or "" for non-state events.
func (e Event) Key() string {
	if e.StateKey == nil {
		return ""
	}
	return *e.StateKey
}

// StateKey returns a pointer suitable for Event.StateKey.
func StateKey(key string) *string {
	return &key
}

// yamlEvent mirrors Event with a free-form content map, since YAML has no
// notion of raw JSON.
type yamlEvent struct {
	Type           string         `yaml:"type"`
	EventID        string         `yaml:"event_id"`
	Sender         string         `yaml:"sender"`
	StateKey       *string        `yaml:"state_key"`
	OriginServerTS int64          `yaml:"origin_server_ts"`
	Redacts        string         `yaml:"redacts"`
	Content        map[string]any `yaml:"content"`
	Unsigned       map[string]any `yaml:"unsigned"`
}

// UnmarshalYAML decodes an event from YAML, re-encoding content as JSON.
func (e *Event) UnmarshalYAML(node *yaml.Node) error {
	var raw yamlEvent
	if err := node.Decode(&raw); err != nil {
		return err
	}

	*e = Event{
		Type:           raw.Type,
		EventID:        raw.EventID,
		Sender:         raw.Sender,
		StateKey:       raw.StateKey,
		OriginServerTS: raw.OriginServerTS,
		Redacts:        raw.Redacts,
	}

	if raw.Content != nil {
		content, err := json.Marshal(raw.Content)
		if err != nil {
			return fmt.Errorf("event %s: encode content: %w", raw.Type, err)
		}
		e.Content = content
	}
	if raw.Unsigned != nil {
		unsigned, err := json.Marshal(raw.Unsigned)
		if err != nil {
			return fmt.Errorf("event %s: encode unsigned: %w", raw.Type, err)
		}
		e.Unsigned = unsigned
	}
	return nil
}
