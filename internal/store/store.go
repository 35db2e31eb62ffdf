// Package store provides the sqlite persistence layer for the playback
// service: playing queue, playback positions, history, most-played counters,
// last-played lists, favorites and the per-category sort preferences.
package store

import (
	"database/sql"
	"fmt"

	// sqlite driver
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

const schema = `
CREATE TABLE IF NOT EXISTS playing_queue (
	progressive     INTEGER PRIMARY KEY AUTOINCREMENT,
	song_id         INTEGER NOT NULL,
	category        TEXT    NOT NULL,
	category_value  TEXT    NOT NULL,
	id_in_playlist  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS playback_position (
	song_id    INTEGER PRIMARY KEY,
	offset_ms  INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS history (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	song_id    INTEGER NOT NULL,
	is_podcast INTEGER NOT NULL,
	played_at  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS most_played (
	song_id         INTEGER NOT NULL,
	parent_media_id TEXT    NOT NULL,
	plays           INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (song_id, parent_media_id)
);

CREATE TABLE IF NOT EXISTS last_played (
	media_id  TEXT NOT NULL,
	kind      TEXT NOT NULL,
	played_at INTEGER NOT NULL,
	PRIMARY KEY (media_id, kind)
);

CREATE TABLE IF NOT EXISTS favorites (
	song_id  INTEGER NOT NULL,
	fav_type TEXT    NOT NULL,
	added_at INTEGER NOT NULL,
	PRIMARY KEY (song_id, fav_type)
);

CREATE TABLE IF NOT EXISTS playback_prefs (
	id           INTEGER PRIMARY KEY CHECK (id = 1),
	title        TEXT    NOT NULL DEFAULT '',
	artist       TEXT    NOT NULL DEFAULT '',
	song_id      INTEGER NOT NULL DEFAULT 0,
	repeat_mode  INTEGER NOT NULL DEFAULT 0,
	shuffle_mode INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS sort_prefs (
	category   TEXT PRIMARY KEY,
	sort_order TEXT NOT NULL
);
`

// Open opens (creating if needed) the service database and applies the schema.
func Open(path string, logger *zap.Logger) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on", path)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}

	// sqlite handles one writer at a time; a single connection avoids
	// SQLITE_BUSY churn under concurrent readers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	logger.Info("Database ready", zap.String("path", path))
	return db, nil
}
