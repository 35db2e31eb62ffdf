package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"jukeboxd/internal/core"
)

// favoriteCacheSize bounds the in-memory favorite cache. Libraries with more
// favorites than this still get exact answers for the cached hot set and a
// database fallback is not needed because Toggle keeps cache and table in
// lockstep from Warm onwards.
const (
	favoriteCacheSize = 10000
	favoriteBloomFPR  = 0.01
)

// FavoriteStore persists favorite songs and podcasts and serves membership
// checks from an in-memory cache.
type FavoriteStore struct {
	db     *sql.DB
	cache  *FavoriteCache
	logger *zap.Logger
}

var _ core.FavoriteGateway = (*FavoriteStore)(nil)

func NewFavoriteStore(db *sql.DB, logger *zap.Logger) *FavoriteStore {
	return &FavoriteStore{
		db:     db,
		cache:  NewFavoriteCache(favoriteCacheSize, favoriteBloomFPR),
		logger: logger.Named("favstore"),
	}
}

// Warm seeds the cache from the favorites table. Call once on startup.
func (s *FavoriteStore) Warm(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT song_id, fav_type FROM favorites`)
	if err != nil {
		return fmt.Errorf("failed to load favorites: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var states []core.FavoriteState
	for rows.Next() {
		var songID int64
		var favType string
		if err := rows.Scan(&songID, &favType); err != nil {
			return fmt.Errorf("failed to scan favorite row: %w", err)
		}
		kind := core.FavoriteTrack
		if favType == core.FavoritePodcast.String() {
			kind = core.FavoritePodcast
		}
		states = append(states, core.FavoriteState{
			SongID:   songID,
			Favorite: true,
			Type:     kind,
		})
	}
	if err := rows.Err(); err != nil {
		return err
	}

	s.cache.Load(states)
	s.logger.Info("Favorite cache warmed", zap.Int("favorites", s.cache.Size()))
	return nil
}

// IsFavorite reports whether songID is a favorite of the given type.
func (s *FavoriteStore) IsFavorite(ctx context.Context, favType core.FavoriteType, songID int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return s.cache.Has(songID, favType), nil
}

// Toggle flips the favorite flag for songID and returns the new state.
func (s *FavoriteStore) Toggle(ctx context.Context, favType core.FavoriteType, songID int64) (bool, error) {
	if s.cache.Has(songID, favType) {
		if _, err := s.db.ExecContext(ctx,
			`DELETE FROM favorites WHERE song_id = ? AND fav_type = ?`,
			songID, favType.String()); err != nil {
			return true, fmt.Errorf("failed to unfavorite song %d: %w", songID, err)
		}
		s.cache.Remove(songID, favType)
		return false, nil
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO favorites (song_id, fav_type, added_at)
		VALUES (?, ?, ?)
		ON CONFLICT(song_id, fav_type) DO NOTHING`,
		songID, favType.String(), time.Now().Unix()); err != nil {
		return false, fmt.Errorf("failed to favorite song %d: %w", songID, err)
	}
	s.cache.Add(songID, favType)
	return true, nil
}

// All returns the ids of all favorites of the given type.
func (s *FavoriteStore) All(ctx context.Context, favType core.FavoriteType) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT song_id FROM favorites
		WHERE fav_type = ?
		ORDER BY added_at DESC`, favType.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list favorites: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan favorite row: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
