// Package cache persists generated thumbnails and the local play history in
// SQLite so they survive restarts.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // registers "sqlite3"
	"github.com/rs/zerolog/log"
)

// Row caps used unless overridden with options.
const (
	DefaultMaxThumbnails = 500
	DefaultMaxPlays      = 1000

	openTimeout = 10 * time.Second
)

// ErrClosed is returned when the database is used before Open or after Close.
var ErrClosed = errors.New("cache: database not open")

// DB is the jukebox's local SQLite store. Both tables are trimmed to a
// fixed number of rows on write.
type DB struct {
	path          string
	maxThumbnails int
	maxPlays      int

	mu sync.RWMutex
	db *sql.DB
}

// Option configures a DB.
type Option func(*DB)

// WithMaxThumbnails caps the thumbnails table.
func WithMaxThumbnails(n int) Option {
	return func(d *DB) { d.maxThumbnails = n }
}

// WithMaxPlays caps the play history.
func WithMaxPlays(n int) Option {
	return func(d *DB) { d.maxPlays = n }
}

// NewDB describes a store at path. Nothing touches the disk until Open.
func NewDB(path string, opts ...Option) *DB {
	d := &DB{path: path, maxThumbnails: DefaultMaxThumbnails, maxPlays: DefaultMaxPlays}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *DB) dsn() string {
	q := url.Values{}
	q.Set("_journal", "WAL")
	q.Set("_busy_timeout", "5000")
	return d.path + "?" + q.Encode()
}

// Open creates the parent directory if needed, opens the file and brings
// the schema up to date.
func (d *DB) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(d.path), 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite3", d.dsn())
	if err != nil {
		return fmt.Errorf("open %s: %w", d.path, err)
	}
	// One connection serializes writers; the driver's busy timeout covers
	// other processes.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
	defer cancel()

	if err := migrate(ctx, db); err != nil {
		db.Close()
		return fmt.Errorf("open %s: %w", d.path, err)
	}

	d.db = db
	log.Info().Str("path", d.path).Int("schema", CurrentSchemaVersion).Msg("Cache database opened")
	return nil
}

// Close releases the file. Closing twice is a no-op.
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db == nil {
		return nil
	}
	err := d.db.Close()
	d.db = nil
	return err
}

// SchemaVersion reports the migration level of the open file.
func (d *DB) SchemaVersion() (int, error) {
	var v int
	err := d.with(func(db *sql.DB) (err error) {
		v, err = schemaVersion(context.Background(), db)
		return err
	})
	return v, err
}

// with runs fn while the handle is guaranteed to stay open. Writers share
// the read lock: the single connection already serializes them.
func (d *DB) with(fn func(*sql.DB) error) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.db == nil {
		return ErrClosed
	}
	return fn(d.db)
}

// inTx runs fn in a transaction that commits only if fn succeeds.
func (d *DB) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	return d.with(func(db *sql.DB) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if err := fn(tx); err != nil {
			return err
		}
		return tx.Commit()
	})
}
