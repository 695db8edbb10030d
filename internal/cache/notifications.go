package cache

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/mxcache/internal/store"
)

// MarkSentNotification records that a notification for eventID was shown.
func (c *Cache) MarkSentNotification(ctx context.Context, eventID string) error {
	err := c.env.Update(ctx, func(tx *store.Txn) error {
		_, err := tx.Exec(ctx,
			"INSERT INTO sent_notifications (event_id) VALUES (?) ON CONFLICT DO NOTHING", eventID)
		return err
	})
	if err != nil {
		return fmt.Errorf("mark sent notification: %w", err)
	}
	return nil
}

// RemoveReadNotification forgets eventID once its notification is read.
func (c *Cache) RemoveReadNotification(ctx context.Context, eventID string) error {
	err := c.env.Update(ctx, func(tx *store.Txn) error {
		_, err := tx.Exec(ctx, "DELETE FROM sent_notifications WHERE event_id = ?", eventID)
		return err
	})
	if err != nil {
		return fmt.Errorf("remove read notification: %w", err)
	}
	return nil
}

// IsNotificationSent reports whether eventID was already notified.
func (c *Cache) IsNotificationSent(ctx context.Context, eventID string) bool {
	var n int
	err := c.env.View(ctx, func(tx *store.Txn) error {
		var err error
		n, err = tx.Count(ctx, "sent_notifications", "event_id", eventID)
		return err
	})
	if err != nil {
		c.log.Error("is notification sent", zap.String("event_id", eventID), zap.Error(err))
		return false
	}
	return n > 0
}

// SentNotifications lists the notified event ids in key order.
func (c *Cache) SentNotifications(ctx context.Context) []string {
	ids := []string{}
	err := c.env.View(ctx, func(tx *store.Txn) error {
		rows, err := tx.Query(ctx, "SELECT event_id FROM sent_notifications ORDER BY event_id COLLATE BINARY ASC")
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return rows.Err()
	})
	if err != nil {
		c.log.Error("sent notifications", zap.Error(err))
		return []string{}
	}
	return ids
}
