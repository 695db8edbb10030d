package cache

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/roach88/mxcache/internal/event"
	"github.com/roach88/mxcache/internal/store"
)

// ReceiptHandler is told which pending events of a room are now confirmed
// read.
type ReceiptHandler func(roomID string, eventIDs []string)

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger. The default is the environment's logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *Cache) {
		if log != nil {
			c.log = log
		}
	}
}

// WithReceiptHandler registers the "new read receipts" callback.
func WithReceiptHandler(h ReceiptHandler) Option {
	return func(c *Cache) {
		c.onReceipts = h
	}
}

// WithNow overrides the clock used for message timestamps.
func WithNow(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// Cache is the room, timeline and receipt view over one environment.
type Cache struct {
	env        *store.Env
	localUser  string
	log        *zap.Logger
	onReceipts ReceiptHandler
	now        func() time.Time
}

// New returns a Cache over env. The local user is the environment's owner.
func New(env *store.Env, opts ...Option) *Cache {
	c := &Cache{
		env:       env,
		localUser: env.UserID(),
		log:       env.Logger().Named("cache"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LocalUser returns the user id the cache belongs to.
func (c *Cache) LocalUser() string {
	return c.localUser
}

// ApplySyncDelta persists one sync batch atomically. Either the whole batch
// is stored, including its next batch token, or nothing is.
func (c *Cache) ApplySyncDelta(ctx context.Context, delta event.SyncDelta) error {
	batchID, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("apply sync delta: batch id: %w", err)
	}
	log := c.log.With(zap.String("batch_id", batchID.String()))

	joined := slices.Sorted(maps.Keys(delta.Rooms.Join))

	err = c.env.Update(ctx, func(tx *store.Txn) error {
		if delta.NextBatch != "" {
			if err := tx.SetNextBatchToken(ctx, delta.NextBatch); err != nil {
				return err
			}
		}

		for _, roomID := range joined {
			if err := c.saveJoinedRoom(ctx, tx, log, roomID, delta.Rooms.Join[roomID]); err != nil {
				return fmt.Errorf("room %s: %w", roomID, err)
			}
		}

		if err := c.saveInvites(ctx, tx, log, delta.Rooms.Invite); err != nil {
			return err
		}

		for _, roomID := range slices.Sorted(maps.Keys(delta.Rooms.Leave)) {
			if err := removeRoom(ctx, tx, roomID); err != nil {
				return fmt.Errorf("left room %s: %w", roomID, err)
			}
		}
		return nil
	})
	if err != nil {
		log.Error("failed to save sync batch", zap.Error(err))
		return fmt.Errorf("apply sync delta: %w", err)
	}

	log.Debug("saved sync batch",
		zap.String("next_batch", delta.NextBatch),
		zap.Int("joined", len(delta.Rooms.Join)),
		zap.Int("invited", len(delta.Rooms.Invite)),
		zap.Int("left", len(delta.Rooms.Leave)))

	for _, roomID := range joined {
		if _, err := c.Reconcile(ctx, roomID); err != nil {
			log.Error("reconcile receipts", zap.String("room_id", roomID), zap.Error(err))
		}
	}
	return nil
}

func (c *Cache) saveJoinedRoom(ctx context.Context, tx *store.Txn, log *zap.Logger, roomID string, room event.JoinedRoom) error {
	if err := c.saveStateEvents(ctx, tx, log, joinedTables, roomID, room.State.Events); err != nil {
		return err
	}
	if err := c.saveStateEvents(ctx, tx, log, joinedTables, roomID, room.Timeline.Events); err != nil {
		return err
	}

	if err := appendTimeline(ctx, tx, roomID, room.Timeline); err != nil {
		return err
	}

	info, err := c.projectRoom(ctx, tx, log, roomID)
	if err != nil {
		return err
	}
	if err := putRoomInfo(ctx, tx, "rooms", roomID, info); err != nil {
		return err
	}

	receipts, err := room.Ephemeral.Receipts()
	if err != nil {
		log.Warn("skipping malformed receipts", zap.String("room_id", roomID), zap.Error(err))
	} else if err := mergeReceipts(ctx, tx, roomID, receipts); err != nil {
		return err
	}

	return removeInvite(ctx, tx, roomID)
}

// RoomsWithStateUpdates lists the rooms of a batch whose state changes, in
// sorted order.
func RoomsWithStateUpdates(delta event.SyncDelta) []string {
	rooms := event.RoomsWithStateUpdates(delta)
	slices.Sort(rooms)
	return rooms
}
