package store

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"jukeboxd/internal/core"
)

// Stores bundles the persistence pieces the playback controller needs behind
// one façade.
type Stores struct {
	Queue     *QueueStore
	Positions *PositionStore
	Meta      *MetaStore
}

func NewStores(db *sql.DB, logger *zap.Logger) *Stores {
	return &Stores{
		Queue:     NewQueueStore(db, logger),
		Positions: NewPositionStore(db),
		Meta:      NewMetaStore(db),
	}
}

func (s *Stores) ReplaceQueue(ctx context.Context, entries []core.QueueEntry) error {
	return s.Queue.Replace(ctx, entries)
}

func (s *Stores) LoadQueue(ctx context.Context) ([]core.QueueEntry, error) {
	return s.Queue.Load(ctx)
}

func (s *Stores) SavePosition(ctx context.Context, songID int64, offset time.Duration) error {
	return s.Positions.Set(ctx, songID, offset)
}

func (s *Stores) ResumePosition(ctx context.Context, songID int64, duration time.Duration) (time.Duration, error) {
	return s.Positions.Get(ctx, songID, duration)
}

func (s *Stores) SaveLastMetadata(ctx context.Context, meta core.LastMetadata) error {
	return s.Meta.SetLastMetadata(ctx, meta)
}

func (s *Stores) LastMetadata(ctx context.Context) (core.LastMetadata, bool, error) {
	return s.Meta.LastMetadata(ctx)
}

func (s *Stores) SaveModes(ctx context.Context, repeat core.RepeatMode, shuffle core.ShuffleMode) error {
	return s.Meta.SetModes(ctx, repeat, shuffle)
}

func (s *Stores) Modes(ctx context.Context) (core.RepeatMode, core.ShuffleMode, error) {
	return s.Meta.Modes(ctx)
}
