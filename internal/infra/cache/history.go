package cache

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Play is one history entry.
type Play struct {
	SongID    int64     `json:"songId"`
	YouTubeID string    `json:"youtubeId"`
	Title     string    `json:"title"`
	Artist    string    `json:"artist"`
	PlayedAt  time.Time `json:"playedAt"`
}

// RecordPlay appends p and trims the history to the cap.
func (d *DB) RecordPlay(ctx context.Context, p Play) error {
	err := d.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO play_history (song_id, youtube_id, title, artist, played_at) VALUES (?, ?, ?, ?, ?)`,
			p.SongID, p.YouTubeID, p.Title, p.Artist, p.PlayedAt.UTC().Format(time.RFC3339Nano),
		); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`DELETE FROM play_history WHERE id <= (
				SELECT id FROM play_history ORDER BY id DESC LIMIT 1 OFFSET ?
			)`, d.maxPlays,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("record play %s: %w", p.YouTubeID, err)
	}
	return nil
}

// RecentPlays returns up to limit entries, newest first.
func (d *DB) RecentPlays(ctx context.Context, limit int) ([]Play, error) {
	plays := []Play{}
	err := d.with(func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx,
			`SELECT song_id, youtube_id, title, artist, played_at FROM play_history ORDER BY id DESC LIMIT ?`,
			limit,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var p Play
			var playedAt string
			if err := rows.Scan(&p.SongID, &p.YouTubeID, &p.Title, &p.Artist, &playedAt); err != nil {
				return err
			}
			p.PlayedAt, _ = time.Parse(time.RFC3339Nano, playedAt)
			plays = append(plays, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("query play history: %w", err)
	}
	return plays, nil
}
