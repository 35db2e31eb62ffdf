package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"jukeboxd/internal/core"
)

// QueueStore persists the playing queue. A Replace swaps the whole queue in
// one transaction so a crash can never leave a half-written queue behind.
type QueueStore struct {
	db     *sql.DB
	logger *zap.Logger

	observersMutex sync.RWMutex
	observers      map[int]chan []core.QueueEntry
	nextObserver   int
}

func NewQueueStore(db *sql.DB, logger *zap.Logger) *QueueStore {
	return &QueueStore{
		db:        db,
		logger:    logger.Named("queuestore"),
		observers: make(map[int]chan []core.QueueEntry),
	}
}

// Replace atomically replaces the persisted queue with entries, in order.
// Observers are notified only after the transaction commits.
func (s *QueueStore) Replace(ctx context.Context, entries []core.QueueEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin queue transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM playing_queue`); err != nil {
		return fmt.Errorf("failed to clear queue: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO playing_queue (song_id, category, category_value, id_in_playlist)
		VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare queue insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.SongID, string(e.Category), e.CategoryValue, e.IDInPlaylist); err != nil {
			return fmt.Errorf("failed to insert queue entry %d: %w", e.SongID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit queue: %w", err)
	}

	s.logger.Debug("Queue replaced", zap.Int("entries", len(entries)))
	s.notify(entries)
	return nil
}

// Load returns the persisted queue in insertion order.
func (s *QueueStore) Load(ctx context.Context) ([]core.QueueEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT song_id, category, category_value, id_in_playlist
		FROM playing_queue
		ORDER BY progressive`)
	if err != nil {
		return nil, fmt.Errorf("failed to load queue: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []core.QueueEntry
	for rows.Next() {
		var e core.QueueEntry
		var category string
		if err := rows.Scan(&e.SongID, &category, &e.CategoryValue, &e.IDInPlaylist); err != nil {
			return nil, fmt.Errorf("failed to scan queue entry: %w", err)
		}
		e.Category = core.Category(category)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Observe returns a channel receiving the full queue snapshot after every
// replace. The channel is buffered with capacity one and sends never block:
// when an observer lags, older snapshots are dropped so only the latest one
// stays pending.
func (s *QueueStore) Observe() (id int, ch <-chan []core.QueueEntry) {
	c := make(chan []core.QueueEntry, 1)
	s.observersMutex.Lock()
	id = s.nextObserver
	s.nextObserver++
	s.observers[id] = c
	s.observersMutex.Unlock()
	return id, c
}

// Unobserve detaches a channel handed out by Observe. Unknown ids are
// ignored.
func (s *QueueStore) Unobserve(id int) {
	s.observersMutex.Lock()
	delete(s.observers, id)
	s.observersMutex.Unlock()
}

func (s *QueueStore) notify(entries []core.QueueEntry) {
	snapshot := make([]core.QueueEntry, len(entries))
	copy(snapshot, entries)

	s.observersMutex.RLock()
	defer s.observersMutex.RUnlock()
	for _, ch := range s.observers {
		select {
		case ch <- snapshot:
			continue
		default:
		}
		// Drop the stale pending snapshot, then retry once.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snapshot:
		default:
		}
	}
}
