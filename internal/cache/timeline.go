package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/roach88/mxcache/internal/event"
	"github.com/roach88/mxcache/internal/store"
)

const (
	// MaxRestoredMessages is how many messages a room replays on startup
	// and keeps after pruning.
	MaxRestoredMessages = 30

	// PruneThreshold is the message count above which Prune cuts a room
	// back to MaxRestoredMessages.
	PruneThreshold = 3 * MaxRestoredMessages
)

type timelineRecord struct {
	Event json.RawMessage `json:"event"`
	Token string          `json:"token"`
}

// timestampKey renders ts so that lexical order is numeric order.
func timestampKey(ts int64) string {
	if ts < 0 {
		ts = 0
	}
	return fmt.Sprintf("%020d", ts)
}

// appendTimeline stores the message events of a timeline slice with its
// pagination token. State and redaction events are not messages.
func appendTimeline(ctx context.Context, tx *store.Txn, roomID string, tl event.Timeline) error {
	for _, e := range tl.Events {
		if e.IsState() || e.IsRedaction() {
			continue
		}

		raw, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encode message %s: %w", e.EventID, err)
		}
		record, err := json.Marshal(timelineRecord{Event: raw, Token: tl.PrevBatch})
		if err != nil {
			return fmt.Errorf("encode message %s: %w", e.EventID, err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO room_messages (room_id, ts, record) VALUES (?, ?, ?)
			ON CONFLICT(room_id, ts) DO UPDATE SET record = excluded.record
		`, roomID, timestampKey(e.OriginServerTS), string(record))
		if err != nil {
			return fmt.Errorf("save message %s: %w", e.EventID, err)
		}
	}
	return nil
}

// newestRecords reads up to limit records of a room, newest first.
// Malformed records are logged and skipped.
func (c *Cache) newestRecords(ctx context.Context, tx *store.Txn, roomID string, limit int) ([]event.Event, []string, error) {
	rows, err := tx.Query(ctx, `
		SELECT ts, record FROM room_messages
		WHERE room_id = ?
		ORDER BY ts DESC
		LIMIT ?
	`, roomID, limit)
	if err != nil {
		return nil, nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var (
		events []event.Event
		tokens []string
	)
	for rows.Next() {
		var ts, data string
		if err := rows.Scan(&ts, &data); err != nil {
			return nil, nil, fmt.Errorf("scan message: %w", err)
		}

		var rec timelineRecord
		var e event.Event
		if err := json.Unmarshal([]byte(data), &rec); err != nil || len(rec.Event) == 0 {
			c.log.Warn("skipping malformed message", zap.String("room_id", roomID), zap.String("ts", ts), zap.Error(err))
			continue
		}
		if err := json.Unmarshal(rec.Event, &e); err != nil {
			c.log.Warn("skipping malformed message", zap.String("room_id", roomID), zap.String("ts", ts), zap.Error(err))
			continue
		}
		events = append(events, e)
		tokens = append(tokens, rec.Token)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate messages: %w", err)
	}
	return events, tokens, nil
}

func (c *Cache) replay(ctx context.Context, tx *store.Txn, roomID string) (event.Timeline, error) {
	events, tokens, err := c.newestRecords(ctx, tx, roomID, MaxRestoredMessages)
	if err != nil {
		return event.Timeline{}, err
	}

	tl := event.Timeline{Events: []event.Event{}}
	if len(events) == 0 {
		return tl, nil
	}
	slices.Reverse(events)
	tl.Events = events
	tl.PrevBatch = tokens[0]
	return tl, nil
}

// Timeline returns the newest messages of a room, oldest first, together
// with the pagination token stored with the newest of them.
func (c *Cache) Timeline(ctx context.Context, roomID string) ([]event.Event, string) {
	var tl event.Timeline
	err := c.env.View(ctx, func(tx *store.Txn) error {
		var err error
		tl, err = c.replay(ctx, tx, roomID)
		return err
	})
	if err != nil {
		c.log.Error("timeline", zap.String("room_id", roomID), zap.Error(err))
		return []event.Event{}, ""
	}
	return tl.Events, tl.PrevBatch
}

// AllTimelines replays every joined room from one snapshot.
func (c *Cache) AllTimelines(ctx context.Context) map[string]event.Timeline {
	result := map[string]event.Timeline{}
	err := c.env.View(ctx, func(tx *store.Txn) error {
		rooms, err := roomIDs(ctx, tx, "rooms")
		if err != nil {
			return err
		}
		for _, roomID := range rooms {
			tl, err := c.replay(ctx, tx, roomID)
			if err != nil {
				return err
			}
			result[roomID] = tl
		}
		return nil
	})
	if err != nil {
		c.log.Error("all timelines", zap.Error(err))
		return map[string]event.Timeline{}
	}
	return result
}

// Prune cuts every joined room holding more than PruneThreshold messages
// back to its newest MaxRestoredMessages. It returns the number of messages
// deleted.
func (c *Cache) Prune(ctx context.Context) (int, error) {
	deleted := 0
	err := c.env.Update(ctx, func(tx *store.Txn) error {
		rooms, err := roomIDs(ctx, tx, "rooms")
		if err != nil {
			return err
		}
		for _, roomID := range rooms {
			before, err := tx.Count(ctx, "room_messages", "room_id", roomID)
			if err != nil {
				return err
			}
			if before <= PruneThreshold {
				continue
			}
			c.log.Info("message count", zap.String("room_id", roomID), zap.Int("count", before))

			res, err := tx.Exec(ctx, `
				DELETE FROM room_messages
				WHERE room_id = ? AND ts NOT IN (
					SELECT ts FROM room_messages
					WHERE room_id = ?
					ORDER BY ts DESC
					LIMIT ?
				)
			`, roomID, roomID, MaxRestoredMessages)
			if err != nil {
				return fmt.Errorf("prune %s: %w", roomID, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("prune %s: %w", roomID, err)
			}
			deleted += int(n)

			c.log.Info("updated message count", zap.String("room_id", roomID), zap.Int("count", before-int(n)))
		}
		return nil
	})
	if err != nil {
		c.log.Error("failed to delete old messages", zap.Error(err))
		return 0, fmt.Errorf("prune: %w", err)
	}
	return deleted, nil
}

// lastMessageInfo describes the newest stored message of a room.
func (c *Cache) lastMessageInfo(ctx context.Context, tx *store.Txn, roomID string) (event.DescInfo, error) {
	events, _, err := c.newestRecords(ctx, tx, roomID, 1)
	if err != nil || len(events) == 0 {
		return event.DescInfo{}, err
	}
	e := events[0]

	name := e.Sender
	m, ok, err := getMember(ctx, tx, joinedTables, roomID, e.Sender)
	if err != nil {
		return event.DescInfo{}, err
	}
	if ok {
		name = m.Name
	}
	return event.Describe(e, c.localUser, name, c.now()), nil
}

// LastMessageInfo returns the list preview of a room's newest message. The
// zero DescInfo means there is nothing to show.
func (c *Cache) LastMessageInfo(ctx context.Context, roomID string) event.DescInfo {
	var desc event.DescInfo
	err := c.env.View(ctx, func(tx *store.Txn) error {
		var err error
		desc, err = c.lastMessageInfo(ctx, tx, roomID)
		return err
	})
	if err != nil {
		c.log.Error("last message info", zap.String("room_id", roomID), zap.Error(err))
		return event.DescInfo{}
	}
	return desc
}
