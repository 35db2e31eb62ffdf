package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"jukeboxd/internal/core"
)

// HistoryStore records finished listens: the rolling history list, per-parent
// play counters and the last-played container lists.
type HistoryStore struct {
	db            *sql.DB
	logger        *zap.Logger
	historyCap    int
	lastPlayedCap int
}

func NewHistoryStore(db *sql.DB, historyCap, lastPlayedCap int, logger *zap.Logger) *HistoryStore {
	return &HistoryStore{
		db:            db,
		logger:        logger.Named("historystore"),
		historyCap:    historyCap,
		lastPlayedCap: lastPlayedCap,
	}
}

// RecordListen appends a history row for item and trims the list to its cap.
// Songs and podcasts share the table but are flagged, so the two history
// views stay independent.
func (s *HistoryStore) RecordListen(ctx context.Context, item core.PlayingItem) error {
	isPodcast := 0
	if item.Track.IsPodcast {
		isPodcast = 1
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO history (song_id, is_podcast, played_at)
		VALUES (?, ?, ?)`,
		item.Track.ID, isPodcast, time.Now().Unix()); err != nil {
		return fmt.Errorf("failed to record listen for song %d: %w", item.Track.ID, err)
	}

	// Keep only the newest rows per kind.
	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM history
		WHERE is_podcast = ?
		  AND id NOT IN (
			SELECT id FROM history
			WHERE is_podcast = ?
			ORDER BY id DESC
			LIMIT ?)`,
		isPodcast, isPodcast, s.historyCap); err != nil {
		return fmt.Errorf("failed to trim history: %w", err)
	}
	return nil
}

// IncrementPlays bumps the play counter of item under its parent container.
func (s *HistoryStore) IncrementPlays(ctx context.Context, item core.PlayingItem) error {
	parent := item.Entry.ParentMediaID().String()
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO most_played (song_id, parent_media_id, plays)
		VALUES (?, ?, 1)
		ON CONFLICT(song_id, parent_media_id) DO UPDATE SET
			plays = plays + 1`,
		item.Track.ID, parent); err != nil {
		return fmt.Errorf("failed to bump plays for song %d: %w", item.Track.ID, err)
	}
	return nil
}

// TouchLastPlayed marks the parent container of item as most recently played
// for its kind (album, artist, folder) and trims each kind to its cap.
func (s *HistoryStore) TouchLastPlayed(ctx context.Context, item core.PlayingItem) error {
	kind := string(item.Entry.Category)
	mediaID := item.Entry.ParentMediaID().String()

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO last_played (media_id, kind, played_at)
		VALUES (?, ?, ?)
		ON CONFLICT(media_id, kind) DO UPDATE SET
			played_at = excluded.played_at`,
		mediaID, kind, time.Now().Unix()); err != nil {
		return fmt.Errorf("failed to touch last played %s: %w", mediaID, err)
	}

	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM last_played
		WHERE kind = ?
		  AND media_id NOT IN (
			SELECT media_id FROM last_played
			WHERE kind = ?
			ORDER BY played_at DESC
			LIMIT ?)`,
		kind, kind, s.lastPlayedCap); err != nil {
		return fmt.Errorf("failed to trim last played: %w", err)
	}
	return nil
}

// History returns the newest listens of the given kind, newest first.
func (s *HistoryStore) History(ctx context.Context, podcasts bool, limit int) ([]int64, error) {
	isPodcast := 0
	if podcasts {
		isPodcast = 1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT song_id FROM history
		WHERE is_podcast = ?
		ORDER BY id DESC
		LIMIT ?`, isPodcast, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// MostPlayed returns song ids under parent ordered by play count.
func (s *HistoryStore) MostPlayed(ctx context.Context, parent core.MediaID, limit int) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT song_id FROM most_played
		WHERE parent_media_id = ?
		ORDER BY plays DESC
		LIMIT ?`, parent.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load most played: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan most played row: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// LastPlayed returns the most recently played container media ids of kind.
func (s *HistoryStore) LastPlayed(ctx context.Context, kind core.Category) ([]core.MediaID, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT media_id FROM last_played
		WHERE kind = ?
		ORDER BY played_at DESC`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to load last played: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []core.MediaID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan last played row: %w", err)
		}
		id, err := core.ParseMediaID(raw)
		if err != nil {
			s.logger.Warn("Dropping unparsable last played entry", zap.String("mediaID", raw))
			continue
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
