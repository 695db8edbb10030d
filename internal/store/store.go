package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/roach88/mxcache/internal/errs"
)

// FormatVersion identifies the on-disk layout. Any change that existing
// files cannot be read with must bump it; stores carrying another value are
// wiped on Open.
const FormatVersion = "2018.06.10"

// DefaultMapSize caps the SQLite file at 512 MiB.
const DefaultMapSize int64 = 512 * 1024 * 1024

const (
	sqliteFile = "cache.db"
	mediaFile  = "media.db"
)

// Options configures Open.
type Options struct {
	// Dir is the parent directory; the environment lives in a per-user
	// subdirectory of it.
	Dir string

	// UserID is the local Matrix user the environment belongs to.
	UserID string

	// MapSize caps the database size in bytes. Zero means DefaultMapSize.
	MapSize int64

	// Logger receives store diagnostics. Nil disables logging.
	Logger *zap.Logger
}

// Env is the process handle to the on-disk store of one user.
type Env struct {
	dir    string
	userID string

	writer *sql.DB
	reader *sql.DB
	media  *bolt.DB

	log *zap.Logger
}

// Open opens or creates the environment for opts.UserID under opts.Dir.
//
// A store written in an incompatible format is deleted and recreated; every
// other failure is returned and the caller cannot proceed without a store.
func Open(ctx context.Context, opts Options) (*Env, error) {
	if opts.UserID == "" {
		return nil, errors.New("open store: empty user id")
	}
	if opts.Dir == "" {
		return nil, errors.New("open store: empty directory")
	}
	if opts.MapSize <= 0 {
		opts.MapSize = DefaultMapSize
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	dir := filepath.Join(opts.Dir, PathForUser(opts.UserID))
	log := opts.Logger.With(zap.String("dir", dir))

	env, err := open(ctx, dir, opts, log)
	if err == nil {
		return env, nil
	}
	if !errors.Is(err, errs.ErrIncompatibleFormat) {
		return nil, err
	}

	log.Warn("resetting cache due to incompatible format", zap.Error(err))
	if err := wipeDir(dir); err != nil {
		return nil, fmt.Errorf("reset store: %w", err)
	}

	env, err = open(ctx, dir, opts, log)
	if err != nil {
		return nil, fmt.Errorf("reopen store after reset: %w", err)
	}
	return env, nil
}

func open(ctx context.Context, dir string, opts Options, log *zap.Logger) (*Env, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		log.Info("initializing cache")
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	env := &Env{dir: dir, userID: opts.UserID, log: log}

	if err := env.openSQLite(ctx, opts.MapSize); err != nil {
		env.Close()
		return nil, err
	}

	media, err := bolt.Open(filepath.Join(dir, mediaFile), 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		env.Close()
		return nil, classify(fmt.Errorf("open media store: %w", err))
	}
	env.media = media

	if err := env.createMediaBucket(); err != nil {
		env.Close()
		return nil, err
	}

	if err := env.checkFormat(ctx); err != nil {
		env.Close()
		return nil, err
	}

	return env, nil
}

func (e *Env) openSQLite(ctx context.Context, mapSize int64) error {
	path := filepath.Join(e.dir, sqliteFile)
	driverName := driverFor(mapSize)

	writer, err := sql.Open(driverName, writerDSN(path))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	// SQLite allows one writer; a single connection keeps BEGIN IMMEDIATE
	// from contending with itself.
	writer.SetMaxOpenConns(1)
	writer.SetMaxIdleConns(1)
	e.writer = writer

	if err := writer.PingContext(ctx); err != nil {
		return classify(fmt.Errorf("connect database: %w", err))
	}

	var n int
	if err := writer.QueryRowContext(ctx, "SELECT count(*) FROM sqlite_master").Scan(&n); err != nil {
		return classify(fmt.Errorf("read schema: %w", err))
	}

	if err := os.Chmod(path, 0o600); err != nil {
		return fmt.Errorf("set database permissions: %w", err)
	}

	if err := applySchema(ctx, writer); err != nil {
		return classify(err)
	}

	reader, err := sql.Open(driverName, readerDSN(path))
	if err != nil {
		return fmt.Errorf("open read pool: %w", err)
	}
	e.reader = reader

	if err := reader.PingContext(ctx); err != nil {
		return classify(fmt.Errorf("connect read pool: %w", err))
	}
	return nil
}

// checkFormat records FormatVersion in a new store and rejects a store
// written with another one.
func (e *Env) checkFormat(ctx context.Context) error {
	return e.Update(ctx, func(tx *Txn) error {
		stored, ok, err := tx.GetSyncState(ctx, KeyFormatVersion)
		if err != nil {
			return classify(err)
		}
		if !ok {
			return tx.PutSyncState(ctx, KeyFormatVersion, []byte(FormatVersion))
		}
		if string(stored) != FormatVersion {
			e.log.Warn("breaking changes in the cache format",
				zap.String("stored", string(stored)),
				zap.String("current", FormatVersion))
			return fmt.Errorf("%w: stored version %q, current %q",
				errs.ErrIncompatibleFormat, stored, FormatVersion)
		}
		return nil
	})
}

// Dir returns the environment directory.
func (e *Env) Dir() string {
	return e.dir
}

// UserID returns the local user the environment belongs to.
func (e *Env) UserID() string {
	return e.userID
}

// Logger returns the environment logger.
func (e *Env) Logger() *zap.Logger {
	return e.log
}

// Close releases all handles. It is safe to call more than once.
func (e *Env) Close() error {
	var errList []error
	if e.reader != nil {
		errList = append(errList, e.reader.Close())
		e.reader = nil
	}
	if e.writer != nil {
		errList = append(errList, e.writer.Close())
		e.writer = nil
	}
	if e.media != nil {
		errList = append(errList, e.media.Close())
		e.media = nil
	}
	return errors.Join(errList...)
}

// DeleteData closes the environment and removes its directory.
func (e *Env) DeleteData() error {
	if err := e.Close(); err != nil {
		e.log.Warn("close before delete", zap.Error(err))
	}
	if err := os.RemoveAll(e.dir); err != nil {
		return fmt.Errorf("delete cache files: %w", err)
	}
	e.log.Info("deleted cache files from disk")
	return nil
}

// wipeDir removes every entry of dir, keeping dir itself.
func wipeDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return fmt.Errorf("unable to delete file %s: %w", entry.Name(), err)
		}
	}
	return nil
}
