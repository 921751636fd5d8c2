package cache

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/waves-sync/waves-sync/internal/cachekey"
	"github.com/waves-sync/waves-sync/internal/db"
	"github.com/waves-sync/waves-sync/internal/pending"
)

// PendingIndex is a derived, queryable SQLite index rebuilt from the
// pending-verification store's entries. The JSON file remains the
// authoritative, atomically-written persistence. The verify_pending
// command is its only user (Rebuild, then Stats); the pending store's
// own due-entry scan (C6) and the batched existence sweep (C13) do not
// read it. Grounded on the teacher's internal/radio/cache.go TTL-table
// pattern.
type PendingIndex struct {
	db *sql.DB
}

// OpenPendingIndex opens (creating if necessary) an in-process SQLite
// database at path and prepares its schema.
func OpenPendingIndex(path string) (*PendingIndex, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open pending index: %w", err)
	}
	idx := &PendingIndex{db: conn}
	if err := idx.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return idx, nil
}

func (i *PendingIndex) migrate() error {
	_, err := i.db.Exec(`
		CREATE TABLE IF NOT EXISTS pending_albums (
			album_key       TEXT PRIMARY KEY,
			artist          TEXT NOT NULL,
			album           TEXT NOT NULL,
			reason          TEXT NOT NULL,
			first_marked_at INTEGER NOT NULL,
			last_checked_at INTEGER NOT NULL,
			next_check_at   INTEGER NOT NULL,
			attempts        INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_pending_albums_next_check
			ON pending_albums(next_check_at);
	`)
	if err != nil {
		return fmt.Errorf("migrate pending index: %w", err)
	}
	return nil
}

// Rebuild replaces the index's contents with entries, inside a single
// transaction so readers never observe a half-rebuilt table.
func (i *PendingIndex) Rebuild(entries []pending.Entry) error {
	return db.WithTx(i.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM pending_albums`); err != nil {
			return err
		}
		stmt, err := tx.Prepare(`
			INSERT INTO pending_albums
				(album_key, artist, album, reason, first_marked_at, last_checked_at, next_check_at, attempts)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, e := range entries {
			key := cachekey.AlbumKey(e.Artist, e.Album)
			if _, err := stmt.Exec(
				key, e.Artist, e.Album, e.Reason,
				e.FirstMarkedAt.Unix(), e.LastCheckedAt.Unix(), e.NextCheckAt.Unix(), e.Attempts,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

// DueEntries returns every entry whose next_check_at has arrived, ordered
// by next_check_at so the oldest-due album is processed first.
func (i *PendingIndex) DueEntries(ctx context.Context, now time.Time) ([]pending.Entry, error) {
	rows, err := i.db.QueryContext(ctx, `
		SELECT artist, album, reason, first_marked_at, last_checked_at, next_check_at, attempts
		FROM pending_albums
		WHERE next_check_at <= ?
		ORDER BY next_check_at ASC
	`, now.Unix())
	if err != nil {
		return nil, fmt.Errorf("query due entries: %w", err)
	}
	defer rows.Close()

	var out []pending.Entry
	for rows.Next() {
		var e pending.Entry
		var first, last, next int64
		if err := rows.Scan(&e.Artist, &e.Album, &e.Reason, &first, &last, &next, &e.Attempts); err != nil {
			return nil, fmt.Errorf("scan due entry: %w", err)
		}
		e.FirstMarkedAt = time.Unix(first, 0).UTC()
		e.LastCheckedAt = time.Unix(last, 0).UTC()
		e.NextCheckAt = time.Unix(next, 0).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// Stats is the aggregate view over the pending queue's current state.
type Stats struct {
	Total        int
	Due          int
	TotalAttempts int
}

// Stats runs a single aggregate query over the index rather than summing
// in Go after a full table scan.
func (i *PendingIndex) Stats(ctx context.Context, now time.Time) (Stats, error) {
	var s Stats
	err := i.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE next_check_at <= ?),
			COALESCE(SUM(attempts), 0)
		FROM pending_albums
	`, now.Unix()).Scan(&s.Total, &s.Due, &s.TotalAttempts)
	if err != nil {
		return Stats{}, fmt.Errorf("query pending stats: %w", err)
	}
	return s, nil
}

// Close releases the underlying SQLite connection.
func (i *PendingIndex) Close() error {
	return i.db.Close()
}
