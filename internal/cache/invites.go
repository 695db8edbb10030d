package cache

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"go.uber.org/zap"

	"github.com/roach88/mxcache/internal/event"
	"github.com/roach88/mxcache/internal/store"
)

func (c *Cache) saveInvites(ctx context.Context, tx *store.Txn, log *zap.Logger, rooms map[string]event.InvitedRoom) error {
	for _, roomID := range slices.Sorted(maps.Keys(rooms)) {
		room := rooms[roomID]
		if err := c.saveStateEvents(ctx, tx, log, inviteTables, roomID, room.InviteState.Events); err != nil {
			return fmt.Errorf("invite %s: %w", roomID, err)
		}

		info, err := c.projectInvite(ctx, tx, log, roomID)
		if err != nil {
			return fmt.Errorf("invite %s: %w", roomID, err)
		}
		if err := putRoomInfo(ctx, tx, "invites", roomID, info); err != nil {
			return fmt.Errorf("invite %s: %w", roomID, err)
		}
	}
	return nil
}

// projectInvite derives the RoomInfo of an invite from its stripped state.
// Unlike joined rooms there is no alias step and no member-count rule.
func (c *Cache) projectInvite(ctx context.Context, tx *store.Txn, log *zap.Logger, roomID string) (RoomInfo, error) {
	state, err := loadState(ctx, tx, log, inviteTables, roomID)
	if err != nil {
		return RoomInfo{}, err
	}
	members, err := listMembers(ctx, tx, inviteTables, roomID, 0, -1)
	if err != nil {
		return RoomInfo{}, err
	}
	other, hasOther := c.firstOther(members)

	info := RoomInfo{
		Name:        EmptyRoomName,
		Topic:       state.topicText(),
		JoinRule:    state.joinRule(),
		GuestAccess: state.guestAccessAllowed(),
		MemberCount: len(members),
		IsInvite:    true,
	}

	switch {
	case state.name != nil:
		info.Name = state.name.Name
	case hasOther:
		info.Name = other.Name
	}

	switch {
	case state.avatar != nil:
		info.AvatarURL = state.avatar.URL
	case hasOther:
		info.AvatarURL = other.AvatarURL
	}
	return info, nil
}

// removeInvite deletes an invite and its stripped state.
func removeInvite(ctx context.Context, tx *store.Txn, roomID string) error {
	if _, err := tx.Exec(ctx, "DELETE FROM invites WHERE room_id = ?", roomID); err != nil {
		return fmt.Errorf("delete invite: %w", err)
	}
	return dropRoomState(ctx, tx, inviteTables, roomID)
}

// RemoveInvite forgets an invite, e.g. after it was declined.
func (c *Cache) RemoveInvite(ctx context.Context, roomID string) error {
	err := c.env.Update(ctx, func(tx *store.Txn) error {
		return removeInvite(ctx, tx, roomID)
	})
	if err != nil {
		return fmt.Errorf("remove invite %s: %w", roomID, err)
	}
	return nil
}

// Invites lists the invited room ids in key order.
func (c *Cache) Invites(ctx context.Context) []string {
	var ids []string
	err := c.env.View(ctx, func(tx *store.Txn) error {
		var err error
		ids, err = roomIDs(ctx, tx, "invites")
		return err
	})
	if err != nil {
		c.log.Error("invites", zap.Error(err))
		return []string{}
	}
	return ids
}

// InviteInfo returns the stored info of one invite.
func (c *Cache) InviteInfo(ctx context.Context, roomID string) (RoomInfo, bool) {
	var (
		info RoomInfo
		ok   bool
	)
	err := c.env.View(ctx, func(tx *store.Txn) error {
		var err error
		info, ok, err = inviteRoomInfo(ctx, tx, roomID)
		return err
	})
	if err != nil {
		c.log.Warn("invite info", zap.String("room_id", roomID), zap.Error(err))
		return RoomInfo{}, false
	}
	return info, ok
}
