package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"sort"

	"go.uber.org/zap"

	"github.com/roach88/mxcache/internal/event"
	"github.com/roach88/mxcache/internal/store"
)

// Receipt is one user's read receipt for an event.
type Receipt struct {
	UserID    string `json:"user_id"`
	Timestamp uint64 `json:"ts"`
}

// loadReceipts reads the user -> timestamp map of an event. A missing
// record yields an empty map.
func loadReceipts(ctx context.Context, tx *store.Txn, roomID, eventID string) (map[string]uint64, error) {
	var data string
	err := tx.QueryRow(ctx,
		"SELECT receipts FROM read_receipts WHERE room_id = ? AND event_id = ?",
		roomID, eventID,
	).Scan(&data)
	if isNoRows(err) {
		return map[string]uint64{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get receipts %s: %w", eventID, err)
	}

	receipts := map[string]uint64{}
	if err := json.Unmarshal([]byte(data), &receipts); err != nil {
		return nil, fmt.Errorf("failed to parse receipts %s: %w", eventID, err)
	}
	return receipts, nil
}

// mergeReceipts folds new receipts into the stored ones. A user's newer
// receipt replaces their old one; other users' receipts are kept.
func mergeReceipts(ctx context.Context, tx *store.Txn, roomID string, receipts event.Receipts) error {
	for _, eventID := range slices.Sorted(maps.Keys(receipts)) {
		saved, err := loadReceipts(ctx, tx, roomID, eventID)
		if err != nil {
			return err
		}
		maps.Copy(saved, receipts[eventID])

		data, err := json.Marshal(saved)
		if err != nil {
			return fmt.Errorf("encode receipts %s: %w", eventID, err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO read_receipts (room_id, event_id, receipts) VALUES (?, ?, ?)
			ON CONFLICT(room_id, event_id) DO UPDATE SET receipts = excluded.receipts
		`, roomID, eventID, string(data))
		if err != nil {
			return fmt.Errorf("update read receipts %s: %w", eventID, err)
		}
	}
	return nil
}

// ReadReceipts returns the receipts of an event, newest first.
func (c *Cache) ReadReceipts(ctx context.Context, eventID, roomID string) []Receipt {
	var saved map[string]uint64
	err := c.env.View(ctx, func(tx *store.Txn) error {
		var err error
		saved, err = loadReceipts(ctx, tx, roomID, eventID)
		return err
	})
	if err != nil {
		c.log.Error("read receipts", zap.String("room_id", roomID), zap.String("event_id", eventID), zap.Error(err))
		return []Receipt{}
	}
	return sortReceipts(saved)
}

func sortReceipts(saved map[string]uint64) []Receipt {
	receipts := make([]Receipt, 0, len(saved))
	for userID, ts := range saved {
		receipts = append(receipts, Receipt{UserID: userID, Timestamp: ts})
	}
	sort.Slice(receipts, func(i, j int) bool {
		if receipts[i].Timestamp != receipts[j].Timestamp {
			return receipts[i].Timestamp > receipts[j].Timestamp
		}
		return receipts[i].UserID < receipts[j].UserID
	})
	return receipts
}

// AddPendingReceipt marks an event the local user is waiting to see read.
func (c *Cache) AddPendingReceipt(ctx context.Context, roomID, eventID string) error {
	err := c.env.Update(ctx, func(tx *store.Txn) error {
		_, err := tx.Exec(ctx,
			"INSERT INTO pending_receipts (room_id, event_id) VALUES (?, ?) ON CONFLICT DO NOTHING",
			roomID, eventID)
		return err
	})
	if err != nil {
		return fmt.Errorf("add pending receipt: %w", err)
	}
	return nil
}

func pendingReceipts(ctx context.Context, tx *store.Txn, roomID string) ([]string, error) {
	rows, err := tx.Query(ctx,
		"SELECT event_id FROM pending_receipts WHERE room_id = ? ORDER BY event_id COLLATE BINARY ASC",
		roomID)
	if err != nil {
		return nil, fmt.Errorf("query pending receipts: %w", err)
	}
	defer rows.Close()

	pending := []string{}
	for rows.Next() {
		var eventID string
		if err := rows.Scan(&eventID); err != nil {
			return nil, fmt.Errorf("scan pending receipt: %w", err)
		}
		pending = append(pending, eventID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending receipts: %w", err)
	}
	return pending, nil
}

// PendingReceipts lists the pending events of a room.
func (c *Cache) PendingReceipts(ctx context.Context, roomID string) []string {
	var pending []string
	err := c.env.View(ctx, func(tx *store.Txn) error {
		var err error
		pending, err = pendingReceipts(ctx, tx, roomID)
		return err
	})
	if err != nil {
		c.log.Error("pending receipts", zap.String("room_id", roomID), zap.Error(err))
		return []string{}
	}
	return pending
}

// readBySomeoneElse reports whether receipts confirm an event as read: at
// least one receipt, and not only the local user's own.
func (c *Cache) readBySomeoneElse(receipts map[string]uint64) bool {
	if len(receipts) == 0 {
		return false
	}
	if len(receipts) == 1 {
		_, own := receipts[c.localUser]
		return !own
	}
	return true
}

// Reconcile removes the pending events of a room that are now confirmed
// read and reports them to the receipt handler. It returns the confirmed
// event ids.
func (c *Cache) Reconcile(ctx context.Context, roomID string) ([]string, error) {
	var confirmed []string
	err := c.env.Update(ctx, func(tx *store.Txn) error {
		pending, err := pendingReceipts(ctx, tx, roomID)
		if err != nil {
			return err
		}

		for _, eventID := range pending {
			receipts, err := loadReceipts(ctx, tx, roomID, eventID)
			if err != nil {
				c.log.Warn("skipping pending receipt", zap.String("room_id", roomID),
					zap.String("event_id", eventID), zap.Error(err))
				continue
			}
			if !c.readBySomeoneElse(receipts) {
				continue
			}

			_, err = tx.Exec(ctx,
				"DELETE FROM pending_receipts WHERE room_id = ? AND event_id = ?",
				roomID, eventID)
			if err != nil {
				return fmt.Errorf("remove pending receipt %s: %w", eventID, err)
			}
			confirmed = append(confirmed, eventID)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reconcile %s: %w", roomID, err)
	}

	if len(confirmed) > 0 && c.onReceipts != nil {
		c.onReceipts(roomID, confirmed)
	}
	return confirmed, nil
}
