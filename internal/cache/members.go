package cache

import (
	"context"

	"go.uber.org/zap"

	"github.com/roach88/mxcache/internal/store"
)

// RoomMember is a page entry of Members.
type RoomMember struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	Avatar      []byte `json:"-"`
}

// Members returns up to length members of a joined room starting at index
// start, in user id order, with their cached avatar images.
func (c *Cache) Members(ctx context.Context, roomID string, start, length int) []RoomMember {
	if start < 0 || length <= 0 {
		return []RoomMember{}
	}

	var page []member
	err := c.env.View(ctx, func(tx *store.Txn) error {
		var err error
		page, err = listMembers(ctx, tx, joinedTables, roomID, start, length)
		return err
	})
	if err != nil {
		c.log.Warn("members", zap.String("room_id", roomID), zap.Error(err))
		return []RoomMember{}
	}

	members := make([]RoomMember, 0, len(page))
	for _, m := range page {
		members = append(members, RoomMember{
			UserID:      m.UserID,
			DisplayName: m.Name,
			AvatarURL:   m.AvatarURL,
			Avatar:      c.env.Image(m.AvatarURL),
		})
	}
	return members
}

// RoomMembers lists the user ids of a joined room in key order.
func (c *Cache) RoomMembers(ctx context.Context, roomID string) []string {
	var all []member
	err := c.env.View(ctx, func(tx *store.Txn) error {
		var err error
		all, err = listMembers(ctx, tx, joinedTables, roomID, 0, -1)
		return err
	})
	if err != nil {
		c.log.Warn("room members", zap.String("room_id", roomID), zap.Error(err))
		return []string{}
	}

	ids := make([]string, 0, len(all))
	for _, m := range all {
		ids = append(ids, m.UserID)
	}
	return ids
}

// IsRoomMember reports whether userID has a membership record in roomID.
func (c *Cache) IsRoomMember(ctx context.Context, userID, roomID string) bool {
	_, ok := c.member(ctx, roomID, userID)
	return ok
}

// DisplayName returns the user's name in the room, or the user id when the
// room has no record of them.
func (c *Cache) DisplayName(ctx context.Context, roomID, userID string) string {
	m, ok := c.member(ctx, roomID, userID)
	if !ok {
		return userID
	}
	return m.Name
}

// AvatarURL returns the user's avatar url in the room, or "".
func (c *Cache) AvatarURL(ctx context.Context, roomID, userID string) string {
	m, _ := c.member(ctx, roomID, userID)
	return m.AvatarURL
}

func (c *Cache) member(ctx context.Context, roomID, userID string) (member, bool) {
	var (
		m  member
		ok bool
	)
	err := c.env.View(ctx, func(tx *store.Txn) error {
		var err error
		m, ok, err = getMember(ctx, tx, joinedTables, roomID, userID)
		return err
	})
	if err != nil {
		c.log.Warn("member", zap.String("room_id", roomID), zap.String("user_id", userID), zap.Error(err))
		return member{}, false
	}
	return m, ok
}
