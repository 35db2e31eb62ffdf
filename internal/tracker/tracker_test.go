package tracker

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"jukeboxd/internal/core"
	"jukeboxd/internal/lifecycle"
)

type recordedCall struct {
	songID int64
	kind   string
}

// mockRecorder captures history writes in order.
type mockRecorder struct {
	mutex sync.Mutex
	calls []recordedCall
}

func (m *mockRecorder) record(kind string, item core.PlayingItem) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.calls = append(m.calls, recordedCall{songID: item.Track.ID, kind: kind})
}

func (m *mockRecorder) RecordListen(_ context.Context, item core.PlayingItem) error {
	m.record("listen", item)
	return nil
}

func (m *mockRecorder) IncrementPlays(_ context.Context, item core.PlayingItem) error {
	m.record("plays", item)
	return nil
}

func (m *mockRecorder) TouchLastPlayed(_ context.Context, item core.PlayingItem) error {
	m.record("lastPlayed", item)
	return nil
}

func (m *mockRecorder) listens() []int64 {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	var out []int64
	for _, call := range m.calls {
		if call.kind == "listen" {
			out = append(out, call.songID)
		}
	}
	return out
}

// slowFavorites blocks lookups until released, recording cancellations.
type slowFavorites struct {
	mutex     sync.Mutex
	delay     time.Duration
	favs      map[int64]bool
	cancelled []int64
}

func (s *slowFavorites) IsFavorite(ctx context.Context, _ core.FavoriteType, songID int64) (bool, error) {
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		s.mutex.Lock()
		s.cancelled = append(s.cancelled, songID)
		s.mutex.Unlock()
		return false, ctx.Err()
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.favs[songID], nil
}

func (s *slowFavorites) Toggle(_ context.Context, _ core.FavoriteType, songID int64) (bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.favs == nil {
		s.favs = make(map[int64]bool)
	}
	s.favs[songID] = !s.favs[songID]
	return s.favs[songID], nil
}

func metaEvent(songID int64, skip core.SkipType) lifecycle.Event {
	return lifecycle.Event{
		Type: lifecycle.EventMetadata,
		Metadata: core.MetadataEvent{
			Item: core.PlayingItem{
				Entry: core.QueueEntry{SongID: songID, Category: core.CategoryAlbums, CategoryValue: "1"},
				Track: core.Track{ID: songID},
			},
			Skip: skip,
		},
	}
}

type trackerFixture struct {
	tracker  *Tracker
	hub      *lifecycle.Hub
	recorder *mockRecorder
	cancel   context.CancelFunc
	done     chan struct{}
}

func startTracker(t *testing.T, favorites core.FavoriteGateway) *trackerFixture {
	t.Helper()
	hub := lifecycle.NewHub(zap.NewNop())
	recorder := &mockRecorder{}
	tr := New(hub, recorder, favorites, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	f := &trackerFixture{tracker: tr, hub: hub, recorder: recorder, cancel: cancel, done: done}
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("Tracker did not stop")
		}
	})

	go func() {
		defer close(done)
		_ = tr.Run(ctx)
	}()
	return f
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

func TestTracker_RecordsEveryTransitionInOrder(t *testing.T) {
	f := startTracker(t, &slowFavorites{})

	// Rapid skips: every transition must produce exactly one history row,
	// in dispatch order.
	for i := int64(1); i <= 20; i++ {
		f.hub.Dispatch(metaEvent(i, core.SkipNext))
	}

	waitFor(t, "all transitions to be recorded", func() bool {
		return len(f.recorder.listens()) == 20
	})

	listens := f.recorder.listens()
	for i, songID := range listens {
		if songID != int64(i+1) {
			t.Errorf("Listen %d: expected song %d, got %d", i, i+1, songID)
		}
	}
}

func TestTracker_AllSideEffectsPerTransition(t *testing.T) {
	f := startTracker(t, &slowFavorites{})

	f.hub.Dispatch(metaEvent(7, core.SkipNone))

	waitFor(t, "side effects to land", func() bool {
		f.recorder.mutex.Lock()
		defer f.recorder.mutex.Unlock()
		return len(f.recorder.calls) == 3
	})

	f.recorder.mutex.Lock()
	defer f.recorder.mutex.Unlock()
	expected := []string{"listen", "plays", "lastPlayed"}
	for i, call := range f.recorder.calls {
		if call.kind != expected[i] {
			t.Errorf("Call %d: expected %s, got %s", i, expected[i], call.kind)
		}
		if call.songID != 7 {
			t.Errorf("Call %d: expected song 7, got %d", i, call.songID)
		}
	}
}

func TestTracker_FavoritePublished(t *testing.T) {
	favorites := &slowFavorites{favs: map[int64]bool{5: true}}
	hub := lifecycle.NewHub(zap.NewNop())
	recorder := &mockRecorder{}
	tr := New(hub, recorder, favorites, zap.NewNop())

	var mutex sync.Mutex
	var published []core.FavoriteState
	tr.SetFavoriteListener(func(state core.FavoriteState) {
		mutex.Lock()
		published = append(published, state)
		mutex.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = tr.Run(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	hub.Dispatch(metaEvent(5, core.SkipNone))

	waitFor(t, "favorite state to publish", func() bool {
		mutex.Lock()
		defer mutex.Unlock()
		return len(published) == 1
	})

	mutex.Lock()
	defer mutex.Unlock()
	if published[0].SongID != 5 || !published[0].Favorite {
		t.Errorf("Expected favorite state for song 5, got %+v", published[0])
	}
}

func TestTracker_StaleFavoriteLookupCancelled(t *testing.T) {
	favorites := &slowFavorites{delay: 500 * time.Millisecond, favs: map[int64]bool{2: true}}
	hub := lifecycle.NewHub(zap.NewNop())
	recorder := &mockRecorder{}
	tr := New(hub, recorder, favorites, zap.NewNop())

	var mutex sync.Mutex
	var published []core.FavoriteState
	tr.SetFavoriteListener(func(state core.FavoriteState) {
		mutex.Lock()
		published = append(published, state)
		mutex.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = tr.Run(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	// The second transition lands while the first lookup is still blocked.
	hub.Dispatch(metaEvent(1, core.SkipNext))
	hub.Dispatch(metaEvent(2, core.SkipNext))

	waitFor(t, "first lookup to be cancelled", func() bool {
		favorites.mutex.Lock()
		defer favorites.mutex.Unlock()
		return len(favorites.cancelled) >= 1
	})

	favorites.mutex.Lock()
	if favorites.cancelled[0] != 1 {
		t.Errorf("Expected lookup for song 1 to be cancelled, got %d", favorites.cancelled[0])
	}
	favorites.mutex.Unlock()

	// Only the latest item's favorite state arrives.
	favorites.mutex.Lock()
	favorites.delay = 0
	favorites.mutex.Unlock()

	waitFor(t, "latest favorite state", func() bool {
		mutex.Lock()
		defer mutex.Unlock()
		return len(published) == 1 && published[0].SongID == 2
	})
}

func TestTracker_DrainsBufferedEventsOnShutdown(t *testing.T) {
	hub := lifecycle.NewHub(zap.NewNop())
	recorder := &mockRecorder{}
	tr := New(hub, recorder, &slowFavorites{}, zap.NewNop())

	// Buffer events before the consumer starts, then cancel immediately.
	for i := int64(1); i <= 5; i++ {
		hub.Dispatch(metaEvent(i, core.SkipNext))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = tr.Run(ctx)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Tracker did not stop")
	}

	if got := len(recorder.listens()); got != 5 {
		t.Errorf("Expected all 5 buffered transitions recorded, got %d", got)
	}
}
