package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/mxcache/internal/event"
	"github.com/roach88/mxcache/internal/store"
)

// EmptyRoomName is the name of a room with nothing better to show.
const EmptyRoomName = "Empty Room"

// RoomInfo is the room list summary derived from a room's state.
type RoomInfo struct {
	Name        string          `json:"name"`
	Topic       string          `json:"topic"`
	AvatarURL   string          `json:"avatar_url"`
	JoinRule    event.JoinRule  `json:"join_rule"`
	GuestAccess bool            `json:"guest_access"`
	MemberCount int             `json:"member_count"`
	IsInvite    bool            `json:"is_invite"`
	MsgInfo     *event.DescInfo `json:"msg_info,omitempty"`
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// projectRoom derives the RoomInfo of a joined room from its stored state
// and members.
func (c *Cache) projectRoom(ctx context.Context, tx *store.Txn, log *zap.Logger, roomID string) (RoomInfo, error) {
	state, err := loadState(ctx, tx, log, joinedTables, roomID)
	if err != nil {
		return RoomInfo{}, err
	}
	first, err := listMembers(ctx, tx, joinedTables, roomID, 0, 3)
	if err != nil {
		return RoomInfo{}, err
	}
	total, err := tx.Count(ctx, joinedTables.members, "room_id", roomID)
	if err != nil {
		return RoomInfo{}, err
	}

	avatar, err := c.roomAvatarURL(ctx, tx, roomID, state, first, total)
	if err != nil {
		return RoomInfo{}, err
	}

	return RoomInfo{
		Name:        c.roomName(state, first, total),
		Topic:       state.topicText(),
		AvatarURL:   avatar,
		JoinRule:    state.joinRule(),
		GuestAccess: state.guestAccessAllowed(),
		MemberCount: total,
	}, nil
}

// roomName picks the display name of a joined room. first holds at most the
// first three members in key order, total the member count.
func (c *Cache) roomName(state *roomState, first []member, total int) string {
	if state.name != nil && state.name.Name != "" {
		return state.name.Name
	}
	if state.alias != nil && state.alias.Alias != "" {
		return state.alias.Alias
	}

	if total == 1 && len(first) > 0 {
		return first[0].Name
	}

	other := c.localUser
	if m, ok := c.firstOther(first); ok {
		other = m.Name
	}

	switch {
	case total == 2:
		return other
	case total > 2:
		return fmt.Sprintf("%s and %d others", other, total)
	}
	return EmptyRoomName
}

func (c *Cache) roomAvatarURL(ctx context.Context, tx *store.Txn, roomID string, state *roomState, first []member, total int) (string, error) {
	if state.avatar != nil {
		return state.avatar.URL, nil
	}
	// Group chats have no implicit avatar.
	if total > 2 {
		return "", nil
	}
	if m, ok := c.firstOther(first); ok {
		return m.AvatarURL, nil
	}

	local, _, err := getMember(ctx, tx, joinedTables, roomID, c.localUser)
	if err != nil {
		return "", err
	}
	return local.AvatarURL, nil
}

func (c *Cache) firstOther(members []member) (member, bool) {
	for _, m := range members {
		if m.UserID != c.localUser {
			return m, true
		}
	}
	return member{}, false
}

func putRoomInfo(ctx context.Context, tx *store.Txn, table, roomID string, info RoomInfo) error {
	info.MsgInfo = nil
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("encode room info: %w", err)
	}
	_, err = tx.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (room_id, info) VALUES (?, ?)
		ON CONFLICT(room_id) DO UPDATE SET info = excluded.info
	`, table), roomID, string(data))
	if err != nil {
		return fmt.Errorf("save room info: %w", err)
	}
	return nil
}

// getRoomInfo reads a stored RoomInfo from table. ok is false when the room
// has no row.
func getRoomInfo(ctx context.Context, tx *store.Txn, table, roomID string) (info RoomInfo, ok bool, err error) {
	var data string
	err = tx.QueryRow(ctx, fmt.Sprintf("SELECT info FROM %s WHERE room_id = ?", table), roomID).Scan(&data)
	if isNoRows(err) {
		return RoomInfo{}, false, nil
	}
	if err != nil {
		return RoomInfo{}, false, fmt.Errorf("get room info: %w", err)
	}
	if err := json.Unmarshal([]byte(data), &info); err != nil {
		return RoomInfo{}, false, fmt.Errorf("failed to parse room info %s: %w", roomID, err)
	}
	return info, true, nil
}

// joinedRoomInfo reads a joined room's info and refreshes the fields that
// change without a projection: member count, join rule and guest access.
func (c *Cache) joinedRoomInfo(ctx context.Context, tx *store.Txn, roomID string) (RoomInfo, bool, error) {
	info, ok, err := getRoomInfo(ctx, tx, "rooms", roomID)
	if err != nil || !ok {
		return RoomInfo{}, false, err
	}

	state, err := loadState(ctx, tx, c.log, joinedTables, roomID)
	if err != nil {
		return RoomInfo{}, false, err
	}
	info.JoinRule = state.joinRule()
	info.GuestAccess = state.guestAccessAllowed()

	info.MemberCount, err = tx.Count(ctx, joinedTables.members, "room_id", roomID)
	if err != nil {
		return RoomInfo{}, false, err
	}
	return info, true, nil
}

func inviteRoomInfo(ctx context.Context, tx *store.Txn, roomID string) (RoomInfo, bool, error) {
	info, ok, err := getRoomInfo(ctx, tx, "invites", roomID)
	if err != nil || !ok {
		return RoomInfo{}, false, err
	}
	info.MemberCount, err = tx.Count(ctx, inviteTables.members, "room_id", roomID)
	if err != nil {
		return RoomInfo{}, false, err
	}
	return info, true, nil
}

// SingleRoomInfo returns the info of a joined room.
func (c *Cache) SingleRoomInfo(ctx context.Context, roomID string) (RoomInfo, bool) {
	var (
		info RoomInfo
		ok   bool
	)
	err := c.env.View(ctx, func(tx *store.Txn) error {
		var err error
		info, ok, err = c.joinedRoomInfo(ctx, tx, roomID)
		return err
	})
	if err != nil {
		c.log.Warn("single room info", zap.String("room_id", roomID), zap.Error(err))
		return RoomInfo{}, false
	}
	return info, ok
}

// RoomInfos returns the info of every listed room that is joined or
// invited. A joined room wins over an invite with the same id.
func (c *Cache) RoomInfos(ctx context.Context, roomIDs []string) map[string]RoomInfo {
	result := make(map[string]RoomInfo, len(roomIDs))
	err := c.env.View(ctx, func(tx *store.Txn) error {
		for _, roomID := range roomIDs {
			info, ok, err := c.joinedRoomInfo(ctx, tx, roomID)
			if err != nil {
				c.log.Warn("failed to read room info", zap.String("room_id", roomID), zap.Error(err))
				continue
			}
			if ok {
				result[roomID] = info
				continue
			}

			info, ok, err = inviteRoomInfo(ctx, tx, roomID)
			if err != nil {
				c.log.Warn("failed to read invite info", zap.String("room_id", roomID), zap.Error(err))
				continue
			}
			if ok {
				result[roomID] = info
			}
		}
		return nil
	})
	if err != nil {
		c.log.Error("room infos", zap.Error(err))
		return map[string]RoomInfo{}
	}
	return result
}

// AllRoomInfo returns every joined room with its last message preview, and
// every invite when withInvites is set.
func (c *Cache) AllRoomInfo(ctx context.Context, withInvites bool) map[string]RoomInfo {
	result := map[string]RoomInfo{}
	err := c.env.View(ctx, func(tx *store.Txn) error {
		joined, err := roomIDs(ctx, tx, "rooms")
		if err != nil {
			return err
		}
		for _, roomID := range joined {
			info, ok, err := getRoomInfo(ctx, tx, "rooms", roomID)
			if err != nil {
				c.log.Warn("skipping room", zap.String("room_id", roomID), zap.Error(err))
				continue
			}
			if !ok {
				continue
			}
			info.MemberCount, err = tx.Count(ctx, joinedTables.members, "room_id", roomID)
			if err != nil {
				return err
			}
			desc, err := c.lastMessageInfo(ctx, tx, roomID)
			if err != nil {
				return err
			}
			if desc != (event.DescInfo{}) {
				info.MsgInfo = &desc
			}
			result[roomID] = info
		}

		if !withInvites {
			return nil
		}
		invites, err := roomIDs(ctx, tx, "invites")
		if err != nil {
			return err
		}
		for _, roomID := range invites {
			info, ok, err := inviteRoomInfo(ctx, tx, roomID)
			if err != nil {
				c.log.Warn("skipping invite", zap.String("room_id", roomID), zap.Error(err))
				continue
			}
			if ok {
				result[roomID] = info
			}
		}
		return nil
	})
	if err != nil {
		c.log.Error("all room info", zap.Error(err))
		return map[string]RoomInfo{}
	}
	return result
}

// roomIDs lists the ids of a rooms index table in key order.
func roomIDs(ctx context.Context, tx *store.Txn, table string) ([]string, error) {
	rows, err := tx.Query(ctx, fmt.Sprintf("SELECT room_id FROM %s ORDER BY room_id COLLATE BINARY ASC", table))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", table, err)
	}
	return ids, nil
}

// JoinedRooms lists the joined room ids in key order.
func (c *Cache) JoinedRooms(ctx context.Context) []string {
	var ids []string
	err := c.env.View(ctx, func(tx *store.Txn) error {
		var err error
		ids, err = roomIDs(ctx, tx, "rooms")
		return err
	})
	if err != nil {
		c.log.Error("joined rooms", zap.Error(err))
		return []string{}
	}
	return ids
}

// RoomAvatar returns the cached image of the room's avatar, or nil.
func (c *Cache) RoomAvatar(ctx context.Context, roomID string) []byte {
	info, ok := c.SingleRoomInfo(ctx, roomID)
	if !ok || info.AvatarURL == "" {
		return nil
	}
	return c.env.Image(info.AvatarURL)
}

// RemoveRoom forgets a joined room.
func (c *Cache) RemoveRoom(ctx context.Context, roomID string) error {
	err := c.env.Update(ctx, func(tx *store.Txn) error {
		return removeRoom(ctx, tx, roomID)
	})
	if err != nil {
		return fmt.Errorf("remove room %s: %w", roomID, err)
	}
	return nil
}

// removeRoom deletes a room's index entry, state, members and messages.
func removeRoom(ctx context.Context, tx *store.Txn, roomID string) error {
	if _, err := tx.Exec(ctx, "DELETE FROM rooms WHERE room_id = ?", roomID); err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	if err := dropRoomState(ctx, tx, joinedTables, roomID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, "DELETE FROM room_messages WHERE room_id = ?", roomID); err != nil {
		return fmt.Errorf("drop messages: %w", err)
	}
	return nil
}
