package event

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// SyncDelta is one batch produced by the sync collaborator.
type SyncDelta struct {
	NextBatch string `json:"next_batch" yaml:"next_batch"`
	Rooms     Rooms  `json:"rooms" yaml:"rooms"`
}

// Rooms groups room deltas by membership.
type Rooms struct {
	Join   map[string]JoinedRoom  `json:"join,omitempty" yaml:"join"`
	Invite map[string]InvitedRoom `json:"invite,omitempty" yaml:"invite"`
	Leave  map[string]LeftRoom    `json:"leave,omitempty" yaml:"leave"`
}

type JoinedRoom struct {
	State     StateEvents `json:"state" yaml:"state"`
	Timeline  Timeline    `json:"timeline" yaml:"timeline"`
	Ephemeral Ephemeral   `json:"ephemeral" yaml:"ephemeral"`
}

type InvitedRoom struct {
	InviteState StateEvents `json:"invite_state" yaml:"invite_state"`
}

type LeftRoom struct {
	State    StateEvents `json:"state" yaml:"state"`
	Timeline Timeline    `json:"timeline" yaml:"timeline"`
}

type StateEvents struct {
	Events []Event `json:"events" yaml:"events"`
}

// Timeline is a slice of the room timeline together with the token that
// paginates backwards from its first event.
type Timeline struct {
	Events    []Event `json:"events" yaml:"events"`
	PrevBatch string  `json:"prev_batch,omitempty" yaml:"prev_batch"`
	Limited   bool    `json:"limited,omitempty" yaml:"limited"`
}

type Ephemeral struct {
	Events []Event `json:"events" yaml:"events"`
}

// Receipts maps event id -> user id -> timestamp.
type Receipts map[string]map[string]uint64

type receiptTS struct {
	TS uint64 `json:"ts"`
}

// receiptContent is event id -> receipt type -> user id -> timestamp.
type receiptContent map[string]map[string]map[string]receiptTS

// Receipts collects the m.read receipts carried by the ephemeral events.
// Later events overwrite earlier ones for the same (event, user).
func (e Ephemeral) Receipts() (Receipts, error) {
	receipts := make(Receipts)
	for _, ev := range e.Events {
		if ev.Type != TypeReceipt {
			continue
		}
		var content receiptContent
		if err := json.Unmarshal(ev.Content, &content); err != nil {
			return nil, fmt.Errorf("parse %s: %w", TypeReceipt, err)
		}
		for eventID, kinds := range content {
			for kind, users := range kinds {
				if kind != "m.read" {
					continue
				}
				for userID, r := range users {
					if receipts[eventID] == nil {
						receipts[eventID] = make(map[string]uint64)
					}
					receipts[eventID][userID] = r.TS
				}
			}
		}
	}
	return receipts, nil
}

// ReceiptEvent builds an m.receipt ephemeral event from a receipt map.
func ReceiptEvent(receipts Receipts) Event {
	content := make(receiptContent, len(receipts))
	for eventID, users := range receipts {
		read := make(map[string]receiptTS, len(users))
		for userID, ts := range users {
			read[userID] = receiptTS{TS: ts}
		}
		content[eventID] = map[string]map[string]receiptTS{"m.read": read}
	}
	raw, _ := json.Marshal(content)
	return Event{Type: TypeReceipt, Content: raw}
}

// ParseSyncDelta decodes a batch. YAML is accepted when isYAML is set,
// otherwise the input must be /sync JSON.
func ParseSyncDelta(data []byte, isYAML bool) (SyncDelta, error) {
	var delta SyncDelta
	if isYAML {
		if err := yaml.Unmarshal(data, &delta); err != nil {
			return SyncDelta{}, fmt.Errorf("parse sync delta: %w", err)
		}
		return delta, nil
	}
	if err := json.Unmarshal(data, &delta); err != nil {
		return SyncDelta{}, fmt.Errorf("parse sync delta: %w", err)
	}
	return delta, nil
}

// LoadSyncDelta reads a batch from disk, choosing the decoder by extension.
func LoadSyncDelta(path string) (SyncDelta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SyncDelta{}, fmt.Errorf("read sync delta: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	return ParseSyncDelta(data, ext == ".yaml" || ext == ".yml")
}

// RoomsWithStateUpdates lists the joined and invited rooms whose batch
// touches room state.
func RoomsWithStateUpdates(delta SyncDelta) []string {
	var rooms []string
	for roomID, room := range delta.Rooms.Join {
		if containsState(room.State.Events) || containsState(room.Timeline.Events) {
			rooms = append(rooms, roomID)
		}
	}
	for roomID, room := range delta.Rooms.Invite {
		if containsState(room.InviteState.Events) {
			rooms = append(rooms, roomID)
		}
	}
	return rooms
}

func containsState(events []Event) bool {
	for _, e := range events {
		if e.IsState() {
			return true
		}
	}
	return false
}
