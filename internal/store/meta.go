package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"jukeboxd/internal/core"
)

// MetaStore persists the small bits of playback state that survive restarts:
// the last shown metadata and the repeat and shuffle modes.
type MetaStore struct {
	db *sql.DB
}

func NewMetaStore(db *sql.DB) *MetaStore {
	return &MetaStore{db: db}
}

func (s *MetaStore) ensureRow(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO playback_prefs (id) VALUES (1) ON CONFLICT(id) DO NOTHING`)
	return err
}

// SetLastMetadata saves the metadata of the most recently played item.
func (s *MetaStore) SetLastMetadata(ctx context.Context, meta core.LastMetadata) error {
	if err := s.ensureRow(ctx); err != nil {
		return fmt.Errorf("failed to init playback prefs: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `
		UPDATE playback_prefs SET title = ?, artist = ?, song_id = ? WHERE id = 1`,
		meta.Title, meta.Artist, meta.SongID); err != nil {
		return fmt.Errorf("failed to save last metadata: %w", err)
	}
	return nil
}

// LastMetadata returns the saved metadata, or ok=false when nothing was saved.
func (s *MetaStore) LastMetadata(ctx context.Context) (core.LastMetadata, bool, error) {
	var meta core.LastMetadata
	err := s.db.QueryRowContext(ctx,
		`SELECT title, artist, song_id FROM playback_prefs WHERE id = 1`).
		Scan(&meta.Title, &meta.Artist, &meta.SongID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.LastMetadata{}, false, nil
	}
	if err != nil {
		return core.LastMetadata{}, false, fmt.Errorf("failed to load last metadata: %w", err)
	}
	if meta.SongID == 0 {
		return core.LastMetadata{}, false, nil
	}
	return meta, true, nil
}

// SetModes saves the repeat and shuffle modes.
func (s *MetaStore) SetModes(ctx context.Context, repeat core.RepeatMode, shuffle core.ShuffleMode) error {
	if err := s.ensureRow(ctx); err != nil {
		return fmt.Errorf("failed to init playback prefs: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `
		UPDATE playback_prefs SET repeat_mode = ?, shuffle_mode = ? WHERE id = 1`,
		int(repeat), int(shuffle)); err != nil {
		return fmt.Errorf("failed to save playback modes: %w", err)
	}
	return nil
}

// Modes returns the saved repeat and shuffle modes, defaulting to off.
func (s *MetaStore) Modes(ctx context.Context) (core.RepeatMode, core.ShuffleMode, error) {
	var repeat, shuffle int
	err := s.db.QueryRowContext(ctx,
		`SELECT repeat_mode, shuffle_mode FROM playback_prefs WHERE id = 1`).
		Scan(&repeat, &shuffle)
	if errors.Is(err, sql.ErrNoRows) {
		return core.RepeatOff, core.ShuffleOff, nil
	}
	if err != nil {
		return core.RepeatOff, core.ShuffleOff, fmt.Errorf("failed to load playback modes: %w", err)
	}
	return core.RepeatMode(repeat), core.ShuffleMode(shuffle), nil
}
