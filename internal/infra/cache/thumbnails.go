package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// LoadThumbnail returns the stored thumbnail for key. A thumbnail generated
// from a different source URL counts as missing.
func (d *DB) LoadThumbnail(ctx context.Context, key, sourceURL string) (data []byte, ok bool, err error) {
	err = d.with(func(db *sql.DB) error {
		return db.QueryRowContext(ctx,
			`SELECT data FROM thumbnails WHERE key = ? AND source_url = ?`, key, sourceURL,
		).Scan(&data)
	})
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, false, nil
	case err != nil:
		return nil, false, fmt.Errorf("load thumbnail %s: %w", key, err)
	}
	return data, true, nil
}

// SaveThumbnail stores data for key, replacing any previous entry, and
// evicts the oldest rows beyond the cap.
func (d *DB) SaveThumbnail(ctx context.Context, key, sourceURL string, data []byte) error {
	err := d.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO thumbnails (key, source_url, data) VALUES (?, ?, ?)`,
			key, sourceURL, data,
		); err != nil {
			return err
		}
		// REPLACE deletes and reinserts, so a refreshed key gets a new rowid.
		_, err := tx.ExecContext(ctx,
			`DELETE FROM thumbnails WHERE rowid <= (
				SELECT rowid FROM thumbnails ORDER BY rowid DESC LIMIT 1 OFFSET ?
			)`, d.maxThumbnails,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("save thumbnail %s: %w", key, err)
	}
	return nil
}

// ThumbnailCount returns the number of stored thumbnails.
func (d *DB) ThumbnailCount(ctx context.Context) (n int, err error) {
	err = d.with(func(db *sql.DB) error {
		return db.QueryRowContext(ctx, `SELECT COUNT(*) FROM thumbnails`).Scan(&n)
	})
	return n, err
}
