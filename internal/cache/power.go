package cache

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/roach88/mxcache/internal/store"
)

// HasEnoughPowerLevel reports whether userID may send at least one of
// eventTypes in roomID. A room without power levels authorizes nobody.
func (c *Cache) HasEnoughPowerLevel(ctx context.Context, eventTypes []string, roomID, userID string) bool {
	var (
		required  int64 = math.MaxInt64
		userLevel int64 = math.MinInt64
	)

	err := c.env.View(ctx, func(tx *store.Txn) error {
		state, err := loadState(ctx, tx, c.log, joinedTables, roomID)
		if err != nil {
			return err
		}
		if state.powerLevels == nil {
			return nil
		}

		userLevel = state.powerLevels.UserLevel(userID)
		for _, t := range eventTypes {
			required = min(required, state.powerLevels.StateLevel(t))
		}
		return nil
	})
	if err != nil {
		c.log.Error("power levels", zap.String("room_id", roomID), zap.Error(err))
		return false
	}
	return userLevel >= required
}
