package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"jukeboxd/internal/core"
	"jukeboxd/internal/engine"
	"jukeboxd/internal/input"
	"jukeboxd/internal/lifecycle"
	"jukeboxd/internal/session"
	"jukeboxd/internal/store"
)

type stubRepo struct {
	tracks []core.Track
}

func (r *stubRepo) GetByParam(_ context.Context, id core.MediaID, _ core.SortOrder) ([]core.Track, error) {
	out := make([]core.Track, 0, len(r.tracks))
	for _, t := range r.tracks {
		if t.IsPodcast != id.IsPodcast() {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (r *stubRepo) GetAll(context.Context) ([]core.Track, error) {
	return append([]core.Track(nil), r.tracks...), nil
}

func (r *stubRepo) GetByID(_ context.Context, songID int64) (core.Track, bool) {
	for _, t := range r.tracks {
		if t.ID == songID {
			return t, true
		}
	}
	return core.Track{}, false
}

type serverFixture struct {
	ts         *httptest.Server
	controller *session.Controller
	commands   []input.ButtonCommand
	mutex      sync.Mutex
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()

	logger := zap.NewNop()
	db, err := store.Open(filepath.Join(t.TempDir(), "jukeboxd.db"), logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	repo := &stubRepo{tracks: []core.Track{
		{ID: 1, Title: "Alpha", Artist: "Ann", Album: "First", Duration: 30 * time.Second},
		{ID: 2, Title: "Beta", Artist: "Bob", Album: "First", Duration: 30 * time.Second},
		{ID: 3, Title: "Gamma", Artist: "Cat", Album: "Second", Duration: 30 * time.Second},
	}}

	hub := lifecycle.NewHub(logger)
	stores := store.NewStores(db, logger)
	cfg := core.PlaybackConfig{
		PositionSaveInterval: time.Hour,
		HistoryCap:           100,
		LastPlayedCap:        10,
		MediaButtonDelay:     20 * time.Millisecond,
		SkipJumpSmall:        10 * time.Second,
		SkipJumpLarge:        30 * time.Second,
	}
	controller := session.NewController(
		cfg,
		repo,
		store.NewSortStore(db),
		store.NewFavoriteStore(db, logger),
		stores,
		engine.NewClockEngine(logger),
		hub,
		logger,
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		controller.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		hub.Close()
	})

	f := &serverFixture{controller: controller}
	button := input.NewMediaButton(cfg.MediaButtonDelay, func(cmd input.ButtonCommand) {
		f.mutex.Lock()
		f.commands = append(f.commands, cmd)
		f.mutex.Unlock()
	}, logger)
	t.Cleanup(button.Close)

	bridge := session.NewBridge(hub, controller, logger)
	t.Cleanup(bridge.Close)

	srv := NewServer(
		&core.ServerConfig{Host: "127.0.0.1", Port: 0},
		bridge, controller, button, repo, hub, logger,
	)

	f.ts = httptest.NewServer(srv.server.Handler)
	t.Cleanup(f.ts.Close)
	return f
}

func (f *serverFixture) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(f.ts.URL + path)
	if err != nil {
		t.Fatalf("GET %s failed: %v", path, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func (f *serverFixture) post(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Post(f.ts.URL+path, "application/json", nil)
	if err != nil {
		t.Fatalf("POST %s failed: %v", path, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached within deadline")
}

func TestHealthEndpoints(t *testing.T) {
	f := newServerFixture(t)

	resp, body := f.get(t, "/healthz")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(body, `"status":"ok"`) {
		t.Errorf("Expected ok status in body, got %s", body)
	}

	resp, body = f.get(t, "/readyz")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(body, `"status":"ready"`) {
		t.Errorf("Expected ready status in body, got %s", body)
	}
}

func TestHomePage(t *testing.T) {
	f := newServerFixture(t)

	resp, body := f.get(t, "/")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(body, "jukeboxd") {
		t.Error("Expected home page to mention the service name")
	}
}

func TestStateWhileIdle(t *testing.T) {
	f := newServerFixture(t)

	resp, body := f.get(t, "/state")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var state struct {
		Status     string           `json:"status"`
		NowPlaying *json.RawMessage `json:"now_playing"`
	}
	if err := json.Unmarshal([]byte(body), &state); err != nil {
		t.Fatalf("Failed to decode state: %v", err)
	}
	if state.Status != "idle" {
		t.Errorf("Expected idle status, got %s", state.Status)
	}
	if state.NowPlaying != nil {
		t.Error("Expected no now_playing while idle")
	}
}

func TestPlayFromMedia(t *testing.T) {
	f := newServerFixture(t)

	media := url.QueryEscape("songs/|2")
	resp, _ := f.post(t, "/play?media="+media)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d", resp.StatusCode)
	}

	waitFor(t, func() bool {
		snap := f.controller.Snapshot()
		return snap.HasItem && snap.Current.Track.ID == 2 && snap.Status == core.StatusPlaying
	})

	_, body := f.get(t, "/state")
	if !strings.Contains(body, `"title":"Beta"`) {
		t.Errorf("Expected Beta as now playing, got %s", body)
	}

	_, body = f.get(t, "/queue")
	var queue struct {
		Items []queueItemResponse `json:"items"`
		Index int                 `json:"index"`
	}
	if err := json.Unmarshal([]byte(body), &queue); err != nil {
		t.Fatalf("Failed to decode queue: %v", err)
	}
	if len(queue.Items) != 3 {
		t.Errorf("Expected 3 queue items, got %d", len(queue.Items))
	}
	if queue.Index != 1 {
		t.Errorf("Expected index 1, got %d", queue.Index)
	}
}

func TestTransportCommands(t *testing.T) {
	f := newServerFixture(t)

	f.post(t, "/play?media="+url.QueryEscape("songs/|1"))
	waitFor(t, func() bool {
		return f.controller.Snapshot().Status == core.StatusPlaying
	})

	f.post(t, "/pause")
	waitFor(t, func() bool {
		return f.controller.Snapshot().Status == core.StatusPaused
	})

	f.post(t, "/next")
	waitFor(t, func() bool {
		snap := f.controller.Snapshot()
		return snap.HasItem && snap.Current.Track.ID == 2
	})

	f.post(t, "/seek?ms=5000")
	waitFor(t, func() bool {
		return f.controller.Snapshot().Position >= 5*time.Second
	})
}

func TestCommandRejectsGet(t *testing.T) {
	f := newServerFixture(t)

	resp, _ := f.get(t, "/play")
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", resp.StatusCode)
	}
}

func TestSeekRejectsBadInput(t *testing.T) {
	f := newServerFixture(t)

	resp, _ := f.post(t, "/seek?ms=soon")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newServerFixture(t)

	f.post(t, "/toggle")

	resp, body := f.get(t, "/metrics")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(body, "jukeboxd_commands_total") {
		t.Error("Expected command counter in metrics output")
	}
	if !strings.Contains(body, "jukeboxd_queue_size") {
		t.Error("Expected queue size gauge in metrics output")
	}
}

func TestButtonClickEndpoint(t *testing.T) {
	f := newServerFixture(t)

	resp, _ := f.post(t, "/button/click")
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d", resp.StatusCode)
	}

	waitFor(t, func() bool {
		f.mutex.Lock()
		defer f.mutex.Unlock()
		return len(f.commands) == 1 && f.commands[0] == input.CommandPlayPause
	})
}

func TestVoiceSearchResolvesTitle(t *testing.T) {
	f := newServerFixture(t)

	resp, body := f.post(t, "/voice?q=gamma")
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d: %s", resp.StatusCode, body)
	}
	if !strings.Contains(body, "songs/|3") {
		t.Errorf("Expected Gamma to resolve, got %s", body)
	}

	waitFor(t, func() bool {
		snap := f.controller.Snapshot()
		return snap.HasItem && snap.Current.Track.ID == 3
	})
}

func TestVoiceSearchEmptyQueryPlaysAnything(t *testing.T) {
	f := newServerFixture(t)

	resp, _ := f.post(t, "/voice?q=")
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d", resp.StatusCode)
	}

	waitFor(t, func() bool {
		return f.controller.Snapshot().HasItem
	})
}

func TestVoiceSearchNoMatch(t *testing.T) {
	f := newServerFixture(t)

	resp, _ := f.post(t, "/voice?q=doesnotexist")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", resp.StatusCode)
	}
}
