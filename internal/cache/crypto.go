package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/mxcache/internal/store"
)

func setEncryptedRoom(ctx context.Context, tx *store.Txn, roomID string) error {
	_, err := tx.Exec(ctx, "INSERT INTO encrypted_rooms (room_id) VALUES (?) ON CONFLICT DO NOTHING", roomID)
	if err != nil {
		return fmt.Errorf("set encrypted room: %w", err)
	}
	return nil
}

// SetEncryptedRoom flags roomID as end-to-end encrypted.
func (c *Cache) SetEncryptedRoom(ctx context.Context, roomID string) error {
	return c.env.Update(ctx, func(tx *store.Txn) error {
		return setEncryptedRoom(ctx, tx, roomID)
	})
}

// IsRoomEncrypted reports whether roomID is flagged as encrypted.
func (c *Cache) IsRoomEncrypted(ctx context.Context, roomID string) bool {
	var n int
	err := c.env.View(ctx, func(tx *store.Txn) error {
		var err error
		n, err = tx.Count(ctx, "encrypted_rooms", "room_id", roomID)
		return err
	})
	if err != nil {
		c.log.Error("is room encrypted", zap.String("room_id", roomID), zap.Error(err))
		return false
	}
	return n > 0
}

// SaveDevices stores the device list of a user as returned by the key
// query API.
func (c *Cache) SaveDevices(ctx context.Context, userID string, devices json.RawMessage) error {
	return c.putJSON(ctx, "devices", "user_id", "devices", userID, devices)
}

// Devices returns the stored device list of a user.
func (c *Cache) Devices(ctx context.Context, userID string) (json.RawMessage, bool) {
	return c.getJSON(ctx, "devices", "user_id", "devices", userID)
}

// SaveDeviceKeys stores the identity keys of a device.
func (c *Cache) SaveDeviceKeys(ctx context.Context, deviceID string, keys json.RawMessage) error {
	return c.putJSON(ctx, "device_keys", "device_id", "keys", deviceID, keys)
}

// DeviceKeys returns the stored identity keys of a device.
func (c *Cache) DeviceKeys(ctx context.Context, deviceID string) (json.RawMessage, bool) {
	return c.getJSON(ctx, "device_keys", "device_id", "keys", deviceID)
}

func (c *Cache) putJSON(ctx context.Context, table, keyCol, valueCol, key string, value json.RawMessage) error {
	if !json.Valid(value) {
		return fmt.Errorf("save %s %s: invalid json", table, key)
	}
	err := c.env.Update(ctx, func(tx *store.Txn) error {
		_, err := tx.Exec(ctx, fmt.Sprintf(`
			INSERT INTO %[1]s (%[2]s, %[3]s) VALUES (?, ?)
			ON CONFLICT(%[2]s) DO UPDATE SET %[3]s = excluded.%[3]s
		`, table, keyCol, valueCol), key, string(value))
		return err
	})
	if err != nil {
		return fmt.Errorf("save %s %s: %w", table, key, err)
	}
	return nil
}

func (c *Cache) getJSON(ctx context.Context, table, keyCol, valueCol, key string) (json.RawMessage, bool) {
	var data string
	err := c.env.View(ctx, func(tx *store.Txn) error {
		return tx.QueryRow(ctx,
			fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?", valueCol, table, keyCol), key,
		).Scan(&data)
	})
	if isNoRows(err) {
		return nil, false
	}
	if err != nil {
		c.log.Error("read "+table, zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return json.RawMessage(data), true
}
