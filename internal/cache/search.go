package cache

import (
	"context"

	"go.uber.org/zap"

	"github.com/roach88/mxcache/internal/fuzzy"
	"github.com/roach88/mxcache/internal/store"
)

// RoomSearchResult is a joined room matched by SearchRooms.
type RoomSearchResult struct {
	RoomID string   `json:"room_id"`
	Info   RoomInfo `json:"info"`
	Score  int      `json:"score"`
	Avatar []byte   `json:"-"`
}

// UserSearchResult is a room member matched by SearchUsers.
type UserSearchResult struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Score       int    `json:"score"`
}

// SearchRooms ranks joined rooms by how well their name matches query,
// best first, and keeps at most max results.
func (c *Cache) SearchRooms(ctx context.Context, query string, max int) []RoomSearchResult {
	type candidate struct {
		id   string
		info RoomInfo
	}

	var candidates []candidate
	err := c.env.View(ctx, func(tx *store.Txn) error {
		ids, err := roomIDs(ctx, tx, "rooms")
		if err != nil {
			return err
		}
		for _, id := range ids {
			info, ok, err := getRoomInfo(ctx, tx, "rooms", id)
			if err != nil {
				c.log.Warn("skipping room", zap.String("room_id", id), zap.Error(err))
				continue
			}
			if ok {
				candidates = append(candidates, candidate{id: id, info: info})
			}
		}
		return nil
	})
	if err != nil {
		c.log.Error("search rooms", zap.Error(err))
		return []RoomSearchResult{}
	}

	matches := fuzzy.Rank(query, candidates, func(cd candidate) string { return cd.info.Name }, max)

	results := make([]RoomSearchResult, 0, len(matches))
	for _, m := range matches {
		results = append(results, RoomSearchResult{
			RoomID: m.Item.id,
			Info:   m.Item.info,
			Score:  m.Score,
			Avatar: c.env.Image(m.Item.info.AvatarURL),
		})
	}
	return results
}

// SearchUsers ranks the members of a joined room by how well their display
// name matches query, best first, and keeps at most max results.
func (c *Cache) SearchUsers(ctx context.Context, roomID, query string, max int) []UserSearchResult {
	var members []member
	err := c.env.View(ctx, func(tx *store.Txn) error {
		var err error
		members, err = listMembers(ctx, tx, joinedTables, roomID, 0, -1)
		return err
	})
	if err != nil {
		c.log.Error("search users", zap.String("room_id", roomID), zap.Error(err))
		return []UserSearchResult{}
	}

	matches := fuzzy.Rank(query, members, func(m member) string { return m.Name }, max)

	results := make([]UserSearchResult, 0, len(matches))
	for _, m := range matches {
		results = append(results, UserSearchResult{
			UserID:      m.Item.UserID,
			DisplayName: m.Item.Name,
			Score:       m.Score,
		})
	}
	return results
}
