// Package tracker consumes now-playing transitions and applies their side
// effects: history rows, play counters, last-played lists and the favorite
// state of the new item.
package tracker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"jukeboxd/internal/core"
	"jukeboxd/internal/lifecycle"
)

// HistoryRecorder is the persistence surface the tracker writes through.
type HistoryRecorder interface {
	RecordListen(ctx context.Context, item core.PlayingItem) error
	IncrementPlays(ctx context.Context, item core.PlayingItem) error
	TouchLastPlayed(ctx context.Context, item core.PlayingItem) error
}

// Tracker buffers metadata events on an unbounded queue and applies their
// side effects on a single consumer goroutine. Producers never block, and
// every transition is recorded exactly once, in order, no matter how fast
// the user skips.
//
// Favorite lookups are advisory: each new transition cancels the lookup of
// the previous one, so only the latest item's favorite state is published.
type Tracker struct {
	logger    *zap.Logger
	history   HistoryRecorder
	favorites core.FavoriteGateway

	// onFavorite, when set, receives the favorite state of each new item.
	onFavorite func(core.FavoriteState)

	mutex   sync.Mutex
	cond    *sync.Cond
	pending []core.MetadataEvent
	stopped bool

	favMutex  sync.Mutex
	favCancel context.CancelFunc

	subID lifecycle.SubscriptionID
	hub   *lifecycle.Hub
}

func New(hub *lifecycle.Hub, history HistoryRecorder, favorites core.FavoriteGateway, logger *zap.Logger) *Tracker {
	t := &Tracker{
		logger:    logger.Named("tracker"),
		history:   history,
		favorites: favorites,
		hub:       hub,
	}
	t.cond = sync.NewCond(&t.mutex)
	t.subID = hub.Subscribe(lifecycle.EventMetadata, t.onMetadata)
	return t
}

// SetFavoriteListener registers the callback receiving favorite states.
// Call before Run.
func (t *Tracker) SetFavoriteListener(fn func(core.FavoriteState)) {
	t.onFavorite = fn
}

func (t *Tracker) onMetadata(e lifecycle.Event) {
	t.mutex.Lock()
	if t.stopped {
		t.mutex.Unlock()
		return
	}
	t.pending = append(t.pending, e.Metadata)
	t.mutex.Unlock()
	t.cond.Signal()
}

// Run consumes buffered transitions until ctx is cancelled. Events already
// buffered at cancellation are still applied, so rapid skips right before
// shutdown are not lost.
func (t *Tracker) Run(ctx context.Context) error {
	t.logger.Info("Starting side-effect tracker")

	go func() {
		<-ctx.Done()
		t.mutex.Lock()
		t.stopped = true
		t.mutex.Unlock()
		t.cond.Broadcast()
	}()

	for {
		t.mutex.Lock()
		for len(t.pending) == 0 && !t.stopped {
			t.cond.Wait()
		}
		if len(t.pending) == 0 && t.stopped {
			t.mutex.Unlock()
			break
		}
		event := t.pending[0]
		t.pending = t.pending[1:]
		t.mutex.Unlock()

		t.apply(event)
	}

	t.cancelFavoriteLookup()
	t.hub.Unsubscribe(t.subID)
	t.logger.Info("Side-effect tracker stopped")
	return nil
}

func (t *Tracker) apply(event core.MetadataEvent) {
	// Side effects use their own context: the run context may already be
	// cancelled while draining.
	ctx := context.Background()
	item := event.Item

	if err := t.history.RecordListen(ctx, item); err != nil {
		// One immediate retry; history rows matter more than counters.
		if err := t.history.RecordListen(ctx, item); err != nil {
			t.logger.Error("Failed to record listen",
				zap.Int64("songID", item.Track.ID),
				zap.Error(err))
		}
	}
	if err := t.history.IncrementPlays(ctx, item); err != nil {
		t.logger.Error("Failed to increment play count",
			zap.Int64("songID", item.Track.ID),
			zap.Error(err))
	}
	if err := t.history.TouchLastPlayed(ctx, item); err != nil {
		t.logger.Error("Failed to touch last played",
			zap.Int64("songID", item.Track.ID),
			zap.Error(err))
	}

	t.logger.Debug("Transition recorded",
		zap.Int64("songID", item.Track.ID),
		zap.String("skip", event.Skip.String()))

	t.recomputeFavorite(item)
}

// recomputeFavorite publishes the favorite state of item, cancelling any
// lookup still running for the previous item.
func (t *Tracker) recomputeFavorite(item core.PlayingItem) {
	if t.onFavorite == nil {
		return
	}

	t.favMutex.Lock()
	if t.favCancel != nil {
		t.favCancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.favCancel = cancel
	t.favMutex.Unlock()

	go func() {
		defer cancel()
		favType := core.FavoriteTypeFor(item.Track.IsPodcast)
		favorite, err := t.favorites.IsFavorite(ctx, favType, item.Track.ID)
		if err != nil {
			if ctx.Err() == nil {
				t.logger.Warn("Favorite lookup failed",
					zap.Int64("songID", item.Track.ID),
					zap.Error(err))
			}
			return
		}
		if ctx.Err() != nil {
			// A newer transition superseded this lookup.
			return
		}
		t.onFavorite(core.FavoriteState{
			SongID:   item.Track.ID,
			Favorite: favorite,
			Type:     favType,
		})
	}()
}

func (t *Tracker) cancelFavoriteLookup() {
	t.favMutex.Lock()
	defer t.favMutex.Unlock()
	if t.favCancel != nil {
		t.favCancel()
		t.favCancel = nil
	}
}
