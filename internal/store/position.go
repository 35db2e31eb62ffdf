package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// nearEndWindow is the tail of a track within which a saved position is
// treated as finished, so the next playback starts from the beginning.
const nearEndWindow = 5 * time.Second

// PositionStore persists per-song playback offsets, used to resume podcasts
// and long tracks where they were left.
type PositionStore struct {
	db *sql.DB
}

func NewPositionStore(db *sql.DB) *PositionStore {
	return &PositionStore{db: db}
}

// Set upserts the saved offset for songID.
func (s *PositionStore) Set(ctx context.Context, songID int64, offset time.Duration) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO playback_position (song_id, offset_ms, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(song_id) DO UPDATE SET
			offset_ms  = excluded.offset_ms,
			updated_at = excluded.updated_at`,
		songID, offset.Milliseconds(), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save position for song %d: %w", songID, err)
	}
	return nil
}

// Get returns the resume offset for songID. Unknown songs resume from zero.
// A saved offset within the final stretch of duration also resolves to zero,
// so a track played to (nearly) the end restarts instead of resuming at the
// last seconds.
func (s *PositionStore) Get(ctx context.Context, songID int64, duration time.Duration) (time.Duration, error) {
	var offsetMs int64
	err := s.db.QueryRowContext(ctx,
		`SELECT offset_ms FROM playback_position WHERE song_id = ?`, songID).
		Scan(&offsetMs)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load position for song %d: %w", songID, err)
	}

	offset := time.Duration(offsetMs) * time.Millisecond
	if duration > 0 && offset >= duration-nearEndWindow {
		return 0, nil
	}
	return offset, nil
}

// Clear removes the saved offset for songID.
func (s *PositionStore) Clear(ctx context.Context, songID int64) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM playback_position WHERE song_id = ?`, songID); err != nil {
		return fmt.Errorf("failed to clear position for song %d: %w", songID, err)
	}
	return nil
}
