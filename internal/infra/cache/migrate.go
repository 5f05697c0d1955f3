package cache

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"
)

// migrations[i] moves the schema from version i to i+1. Append only.
var migrations = []string{
	`CREATE TABLE thumbnails (
		key TEXT PRIMARY KEY,
		source_url TEXT NOT NULL,
		data BLOB NOT NULL,
		created_at TEXT DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE play_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		song_id INTEGER NOT NULL,
		youtube_id TEXT NOT NULL,
		title TEXT NOT NULL,
		artist TEXT NOT NULL,
		played_at TEXT NOT NULL
	);
	CREATE INDEX idx_play_history_played ON play_history(played_at DESC)`,
}

// CurrentSchemaVersion is the version a freshly opened database reports.
var CurrentSchemaVersion = len(migrations)

func schemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var v int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}

// migrate applies the pending migrations, each in its own transaction
// together with the version bump.
func migrate(ctx context.Context, db *sql.DB) error {
	from, err := schemaVersion(ctx, db)
	if err != nil {
		return err
	}
	if from > len(migrations) {
		return fmt.Errorf("schema version %d is newer than this build (%d)", from, len(migrations))
	}

	for v := from; v < len(migrations); v++ {
		if err := step(ctx, db, v); err != nil {
			return fmt.Errorf("migrate to version %d: %w", v+1, err)
		}
	}
	if from < len(migrations) {
		log.Info().Int("from", from).Int("to", len(migrations)).Msg("Cache schema migrated")
	}
	return nil
}

func step(ctx context.Context, db *sql.DB, v int) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, migrations[v]); err != nil {
		return err
	}
	// PRAGMA takes no bind parameters.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", v+1)); err != nil {
		return err
	}
	return tx.Commit()
}
