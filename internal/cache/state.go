package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/mxcache/internal/event"
	"github.com/roach88/mxcache/internal/store"
)

// roomTables names the state and member tables of a room scope. Joined
// rooms and invites keep separate copies.
type roomTables struct {
	states  string
	members string
}

var (
	joinedTables = roomTables{states: "room_states", members: "room_members"}
	inviteTables = roomTables{states: "invite_states", members: "invite_members"}
)

func (c *Cache) saveStateEvents(ctx context.Context, tx *store.Txn, log *zap.Logger, t roomTables, roomID string, events []event.Event) error {
	for _, e := range events {
		if !e.IsState() {
			continue
		}
		if err := c.saveStateEvent(ctx, tx, log, t, roomID, e); err != nil {
			return err
		}
	}
	return nil
}

// saveStateEvent stores e, last write per type wins. Member events go to the
// member table instead of the state table.
func (c *Cache) saveStateEvent(ctx context.Context, tx *store.Txn, log *zap.Logger, t roomTables, roomID string, e event.Event) error {
	content, err := event.ParseState(e)
	if err != nil {
		log.Warn("skipping malformed state event",
			zap.String("room_id", roomID),
			zap.String("event_id", e.EventID),
			zap.Error(err))
		return nil
	}

	switch content := content.(type) {
	case event.Member:
		return saveMember(ctx, tx, t, roomID, e.Key(), content)
	case event.Encryption:
		if t == joinedTables {
			if err := setEncryptedRoom(ctx, tx, roomID); err != nil {
				return err
			}
		}
	case event.Name, event.Topic, event.Avatar, event.CanonicalAlias,
		event.JoinRules, event.GuestAccess, event.PowerLevels, event.Unknown:
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode %s: %w", e.Type, err)
	}
	_, err = tx.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (room_id, event_type, event) VALUES (?, ?, ?)
		ON CONFLICT(room_id, event_type) DO UPDATE SET event = excluded.event
	`, t.states), roomID, e.Type, string(data))
	if err != nil {
		return fmt.Errorf("save state %s: %w", e.Type, err)
	}
	return nil
}

// saveMember records a joined or invited member and forgets any other.
func saveMember(ctx context.Context, tx *store.Txn, t roomTables, roomID, userID string, m event.Member) error {
	switch m.Membership {
	case event.MembershipJoin, event.MembershipInvite:
	default:
		_, err := tx.Exec(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE room_id = ? AND user_id = ?", t.members),
			roomID, userID)
		if err != nil {
			return fmt.Errorf("remove member %s: %w", userID, err)
		}
		return nil
	}

	name := m.DisplayName
	if name == "" {
		name = userID
	}
	_, err := tx.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (room_id, user_id, display_name, avatar_url) VALUES (?, ?, ?, ?)
		ON CONFLICT(room_id, user_id) DO UPDATE SET
			display_name = excluded.display_name,
			avatar_url = excluded.avatar_url
	`, t.members), roomID, userID, name, m.AvatarURL)
	if err != nil {
		return fmt.Errorf("save member %s: %w", userID, err)
	}
	return nil
}

// roomState holds the decoded state a projection reads.
type roomState struct {
	name        *event.Name
	alias       *event.CanonicalAlias
	topic       *event.Topic
	avatar      *event.Avatar
	joinRules   *event.JoinRules
	guestAccess *event.GuestAccess
	powerLevels *event.PowerLevels
}

func (s *roomState) apply(content event.StateContent) {
	switch c := content.(type) {
	case event.Name:
		s.name = &c
	case event.CanonicalAlias:
		s.alias = &c
	case event.Topic:
		s.topic = &c
	case event.Avatar:
		s.avatar = &c
	case event.JoinRules:
		s.joinRules = &c
	case event.GuestAccess:
		s.guestAccess = &c
	case event.PowerLevels:
		s.powerLevels = &c
	case event.Member, event.Encryption, event.Unknown:
	}
}

func (s *roomState) joinRule() event.JoinRule {
	if s.joinRules == nil || s.joinRules.JoinRule == "" {
		return event.JoinRuleKnock
	}
	return s.joinRules.JoinRule
}

func (s *roomState) guestAccessAllowed() bool {
	return s.guestAccess != nil && s.guestAccess.GuestAccess == event.GuestAccessCanJoin
}

func (s *roomState) topicText() string {
	if s.topic == nil {
		return ""
	}
	return s.topic.Topic
}

// loadState reads and decodes a room's state table. Records that fail to
// decode are logged and skipped.
func loadState(ctx context.Context, tx *store.Txn, log *zap.Logger, t roomTables, roomID string) (*roomState, error) {
	rows, err := tx.Query(ctx,
		fmt.Sprintf("SELECT event_type, event FROM %s WHERE room_id = ? ORDER BY event_type", t.states),
		roomID)
	if err != nil {
		return nil, fmt.Errorf("query state: %w", err)
	}
	defer rows.Close()

	state := &roomState{}
	for rows.Next() {
		var eventType, data string
		if err := rows.Scan(&eventType, &data); err != nil {
			return nil, fmt.Errorf("scan state: %w", err)
		}

		var e event.Event
		if err := json.Unmarshal([]byte(data), &e); err != nil {
			log.Warn("failed to parse state event", zap.String("room_id", roomID),
				zap.String("type", eventType), zap.Error(err))
			continue
		}
		content, err := event.ParseState(e)
		if err != nil {
			log.Warn("failed to parse state event", zap.String("room_id", roomID),
				zap.String("type", eventType), zap.Error(err))
			continue
		}
		state.apply(content)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate state: %w", err)
	}
	return state, nil
}

// member is one row of a member table.
type member struct {
	UserID    string
	Name      string
	AvatarURL string
}

// listMembers returns members in user id order. A negative limit means all.
func listMembers(ctx context.Context, tx *store.Txn, t roomTables, roomID string, offset, limit int) ([]member, error) {
	rows, err := tx.Query(ctx, fmt.Sprintf(`
		SELECT user_id, display_name, avatar_url FROM %s
		WHERE room_id = ?
		ORDER BY user_id COLLATE BINARY ASC
		LIMIT ? OFFSET ?
	`, t.members), roomID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	members := []member{}
	for rows.Next() {
		var m member
		if err := rows.Scan(&m.UserID, &m.Name, &m.AvatarURL); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}
	return members, nil
}

// getMember reads one member row. ok is false when the user has none.
func getMember(ctx context.Context, tx *store.Txn, t roomTables, roomID, userID string) (m member, ok bool, err error) {
	err = tx.QueryRow(ctx,
		fmt.Sprintf("SELECT user_id, display_name, avatar_url FROM %s WHERE room_id = ? AND user_id = ?", t.members),
		roomID, userID,
	).Scan(&m.UserID, &m.Name, &m.AvatarURL)
	if isNoRows(err) {
		return member{}, false, nil
	}
	if err != nil {
		return member{}, false, fmt.Errorf("get member %s: %w", userID, err)
	}
	return m, true, nil
}

// dropRoomState removes a room's state and member rows in scope t.
func dropRoomState(ctx context.Context, tx *store.Txn, t roomTables, roomID string) error {
	for _, table := range []string{t.states, t.members} {
		if _, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE room_id = ?", table), roomID); err != nil {
			return fmt.Errorf("drop %s: %w", table, err)
		}
	}
	return nil
}
