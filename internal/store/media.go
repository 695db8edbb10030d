package store

import (
	"fmt"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
)

var mediaBucket = []byte("media")

func (e *Env) createMediaBucket() error {
	return e.media.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(mediaBucket); err != nil {
			return fmt.Errorf("creating bucket %s: %w", mediaBucket, err)
		}
		return nil
	})
}

// SaveImage caches downloaded media under its url. Empty urls or payloads
// are ignored.
func (e *Env) SaveImage(url string, data []byte) {
	if url == "" || len(data) == 0 || e.media == nil {
		return
	}
	err := e.media.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(mediaBucket).Put([]byte(url), data)
	})
	if err != nil {
		e.log.Error("save image", zap.String("url", url), zap.Error(err))
	}
}

// Image returns the cached media for url, or nil.
func (e *Env) Image(url string) []byte {
	if url == "" || e.media == nil {
		return nil
	}
	var data []byte
	err := e.media.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(mediaBucket).Get([]byte(url)); v != nil {
			// bbolt memory is only valid inside the transaction.
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		e.log.Error("image", zap.String("url", url), zap.Error(err))
		return nil
	}
	return data
}
