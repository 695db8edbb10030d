package store

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"sync"

	"github.com/mattn/go-sqlite3"
	berrors "go.etcd.io/bbolt/errors"

	"github.com/roach88/mxcache/internal/errs"
)

// pageSize is SQLite's default page size, used to turn a byte cap into
// max_page_count.
const pageSize = 4096

var (
	driversMu sync.Mutex
	drivers   = map[int64]string{}
)

// driverFor returns the name of a sqlite3 driver whose connections are
// capped at mapSize bytes, registering it on first use.
func driverFor(mapSize int64) string {
	driversMu.Lock()
	defer driversMu.Unlock()

	if name, ok := drivers[mapSize]; ok {
		return name
	}

	pages := mapSize / pageSize
	if pages < 1 {
		pages = 1
	}
	name := fmt.Sprintf("sqlite3_mxcache_%d", mapSize)
	sql.Register(name, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			_, err := conn.Exec(fmt.Sprintf("PRAGMA max_page_count = %d", pages), []driver.Value{})
			return err
		},
	})
	drivers[mapSize] = name
	return name
}

func writerDSN(path string) string {
	return path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_txlock=immediate"
}

func readerDSN(path string) string {
	return path + "?_busy_timeout=5000&_query_only=1"
}

// classify maps engine errors that mean "this file is not ours" to
// errs.ErrIncompatibleFormat.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var se sqlite3.Error
	if errors.As(err, &se) {
		switch se.Code {
		case sqlite3.ErrNotADB, sqlite3.ErrCorrupt:
			return fmt.Errorf("%w: %v", errs.ErrIncompatibleFormat, err)
		}
	}

	if errors.Is(err, berrors.ErrInvalid) ||
		errors.Is(err, berrors.ErrVersionMismatch) ||
		errors.Is(err, berrors.ErrChecksum) {
		return fmt.Errorf("%w: %v", errs.ErrIncompatibleFormat, err)
	}
	return err
}
