// Package http exposes the daemon's control and observability surface:
// playback state and queue as JSON, transport and queue commands, voice
// search, media button input and prometheus metrics.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"jukeboxd/internal/core"
	"jukeboxd/internal/input"
	"jukeboxd/internal/lifecycle"
	"jukeboxd/internal/session"
)

type Server struct {
	config  *core.ServerConfig
	logger  *zap.Logger
	server  *http.Server
	metrics *Metrics

	bridge     *session.Bridge
	controller *session.Controller
	button     *input.MediaButton
	repo       core.TrackRepository
}

type Metrics struct {
	CommandsTotal    *prometheus.CounterVec
	TransitionsTotal *prometheus.CounterVec
	ErrorsTotal      *prometheus.CounterVec
	QueueSize        prometheus.Gauge
	Playing          prometheus.Gauge
	LibrarySize      prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	metrics := &Metrics{
		CommandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jukeboxd_commands_total",
				Help: "Total number of playback commands received",
			},
			[]string{"command"},
		),
		TransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jukeboxd_transitions_total",
				Help: "Total number of now-playing transitions",
			},
			[]string{"skip"},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jukeboxd_errors_total",
				Help: "Total number of errors",
			},
			[]string{"component", "type"},
		),
		QueueSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "jukeboxd_queue_size",
				Help: "Current number of items in the playing queue",
			},
		),
		Playing: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "jukeboxd_playing",
				Help: "Whether playback is active (1) or not (0)",
			},
		),
		LibrarySize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "jukeboxd_library_size",
				Help: "Number of tracks in the library index",
			},
		),
	}

	reg.MustRegister(
		metrics.CommandsTotal,
		metrics.TransitionsTotal,
		metrics.ErrorsTotal,
		metrics.QueueSize,
		metrics.Playing,
		metrics.LibrarySize,
	)
	return metrics
}

func NewServer(
	config *core.ServerConfig,
	bridge *session.Bridge,
	controller *session.Controller,
	button *input.MediaButton,
	repo core.TrackRepository,
	hub *lifecycle.Hub,
	logger *zap.Logger,
) *Server {
	registry := prometheus.NewRegistry()
	metrics := newMetrics(registry)

	s := &Server{
		config:     config,
		logger:     logger.Named("http"),
		metrics:    metrics,
		bridge:     bridge,
		controller: controller,
		button:     button,
		repo:       repo,
	}

	// Mirror lifecycle events into the metrics.
	hub.Subscribe(lifecycle.EventMetadata, func(e lifecycle.Event) {
		metrics.TransitionsTotal.WithLabelValues(e.Metadata.Skip.String()).Inc()
	})
	hub.Subscribe(lifecycle.EventState, func(e lifecycle.Event) {
		if e.State.Status == core.StatusPlaying {
			metrics.Playing.Set(1)
		} else {
			metrics.Playing.Set(0)
		}
	})
	hub.Subscribe(lifecycle.EventQueue, func(lifecycle.Event) {
		metrics.QueueSize.Set(float64(len(controller.Snapshot().Items)))
	})

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      s.routes(registry),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}
	return s
}

func (s *Server) routes(registry *prometheus.Registry) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok","service":"jukeboxd"}`))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ready","service":"jukeboxd"}`))
	})

	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	mux.HandleFunc("/state", s.handleState)
	mux.HandleFunc("/queue", s.handleQueue)

	mux.HandleFunc("/play", s.command("play", func(r *http.Request) error {
		if media := r.URL.Query().Get("media"); media != "" {
			id, err := core.ParseMediaID(media)
			if err != nil {
				return err
			}
			if r.URL.Query().Get("shuffle") == "true" {
				s.controller.PlayShuffled(id)
				return nil
			}
			s.controller.PlayFromMediaID(id)
			return nil
		}
		s.controller.Play()
		return nil
	}))
	mux.HandleFunc("/pause", s.command("pause", func(*http.Request) error {
		s.controller.Pause()
		return nil
	}))
	mux.HandleFunc("/toggle", s.command("toggle", func(*http.Request) error {
		s.controller.TogglePlayPause()
		return nil
	}))
	mux.HandleFunc("/stop", s.command("stop", func(*http.Request) error {
		s.controller.Stop()
		return nil
	}))
	mux.HandleFunc("/next", s.command("next", func(*http.Request) error {
		s.controller.SkipNext()
		return nil
	}))
	mux.HandleFunc("/previous", s.command("previous", func(*http.Request) error {
		s.controller.SkipPrevious()
		return nil
	}))
	mux.HandleFunc("/seek", s.command("seek", func(r *http.Request) error {
		ms, err := strconv.ParseInt(r.URL.Query().Get("ms"), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid ms parameter: %w", err)
		}
		s.controller.SeekTo(time.Duration(ms) * time.Millisecond)
		return nil
	}))
	mux.HandleFunc("/replay", s.command("replay", func(r *http.Request) error {
		if r.URL.Query().Get("long") == "true" {
			s.controller.ReplayLong()
			return nil
		}
		s.controller.Replay()
		return nil
	}))
	mux.HandleFunc("/forward", s.command("forward", func(r *http.Request) error {
		if r.URL.Query().Get("long") == "true" {
			s.controller.FastForwardLong()
			return nil
		}
		s.controller.FastForward()
		return nil
	}))
	mux.HandleFunc("/repeat", s.command("repeat", func(*http.Request) error {
		s.controller.CycleRepeat()
		return nil
	}))
	mux.HandleFunc("/shuffle", s.command("shuffle", func(*http.Request) error {
		s.controller.ToggleShuffle()
		return nil
	}))
	mux.HandleFunc("/favorite", s.command("favorite", func(*http.Request) error {
		s.controller.ToggleFavorite()
		return nil
	}))
	mux.HandleFunc("/queue/jump", s.command("jump", func(r *http.Request) error {
		index, err := strconv.Atoi(r.URL.Query().Get("index"))
		if err != nil {
			return fmt.Errorf("invalid index parameter: %w", err)
		}
		s.controller.JumpTo(index)
		return nil
	}))
	mux.HandleFunc("/queue/swap", s.command("swap", func(r *http.Request) error {
		i, err := strconv.Atoi(r.URL.Query().Get("i"))
		if err != nil {
			return fmt.Errorf("invalid i parameter: %w", err)
		}
		j, err := strconv.Atoi(r.URL.Query().Get("j"))
		if err != nil {
			return fmt.Errorf("invalid j parameter: %w", err)
		}
		s.controller.SwapQueueItems(i, j)
		return nil
	}))
	mux.HandleFunc("/queue/playnext", s.command("playnext", func(r *http.Request) error {
		id, err := core.ParseMediaID(r.URL.Query().Get("media"))
		if err != nil {
			return err
		}
		s.controller.AddToPlayNext(id)
		return nil
	}))
	mux.HandleFunc("/queue/move", s.command("move", func(r *http.Request) error {
		index, err := strconv.Atoi(r.URL.Query().Get("index"))
		if err != nil {
			return fmt.Errorf("invalid index parameter: %w", err)
		}
		s.controller.MoveToPlayNext(index)
		return nil
	}))
	mux.HandleFunc("/queue/remove", s.command("remove", func(r *http.Request) error {
		index, err := strconv.Atoi(r.URL.Query().Get("index"))
		if err != nil {
			return fmt.Errorf("invalid index parameter: %w", err)
		}
		s.controller.RemoveQueueItem(index)
		return nil
	}))
	mux.HandleFunc("/sleep", s.command("sleep", func(r *http.Request) error {
		raw := r.URL.Query().Get("after")
		if raw == "" {
			s.controller.CancelSleepTimer()
			return nil
		}
		after, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid after parameter: %w", err)
		}
		s.controller.SetSleepTimer(after)
		return nil
	}))

	mux.HandleFunc("/button/click", s.command("button", func(*http.Request) error {
		s.button.Click()
		return nil
	}))

	mux.HandleFunc("/voice", s.handleVoiceSearch)

	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`<!DOCTYPE html>
<html>
<head>
    <title>jukeboxd</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 40px; }
        .header { color: #333; }
        .endpoint { margin: 10px 0; }
        .endpoint a { text-decoration: none; color: #0066cc; }
        .endpoint a:hover { text-decoration: underline; }
    </style>
</head>
<body>
    <h1 class="header">&#127925; jukeboxd</h1>
    <p>Headless playback queue daemon</p>

    <h2>Endpoints</h2>
    <div class="endpoint">&#127911; <a href="/state">State</a> - Now playing and playback state</div>
    <div class="endpoint">&#128203; <a href="/queue">Queue</a> - Playing queue contents</div>
    <div class="endpoint">&#128202; <a href="/metrics">Metrics</a> - Prometheus metrics</div>
    <div class="endpoint">&#128154; <a href="/healthz">Health</a> - Health check</div>
    <div class="endpoint">&#9989; <a href="/readyz">Ready</a> - Readiness check</div>
</body>
</html>`))
	})

	return mux
}

// command wraps a playback command handler with method checks and metrics.
func (s *Server) command(name string, fn func(*http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := fn(r); err != nil {
			s.metrics.ErrorsTotal.WithLabelValues("http", "bad_request").Inc()
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.metrics.CommandsTotal.WithLabelValues(name).Inc()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"status":"accepted"}`))
	}
}

type stateResponse struct {
	Status     string `json:"status"`
	PositionMs int64  `json:"position_ms"`
	DurationMs int64  `json:"duration_ms"`
	Repeat     string `json:"repeat"`
	Shuffle    string `json:"shuffle"`
	Favorite   bool   `json:"favorite"`
	NowPlaying *struct {
		SongID  int64  `json:"song_id"`
		Title   string `json:"title"`
		Artist  string `json:"artist"`
		Album   string `json:"album"`
		MediaID string `json:"media_id"`
		Podcast bool   `json:"podcast"`
	} `json:"now_playing,omitempty"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap := s.bridge.Snapshot()
	resp := stateResponse{
		Status:     snap.Status.String(),
		PositionMs: snap.Position.Milliseconds(),
		DurationMs: snap.Duration.Milliseconds(),
		Repeat:     snap.Repeat.String(),
		Shuffle:    snap.Shuffle.String(),
		Favorite:   snap.Favorite,
	}
	if snap.HasItem {
		resp.NowPlaying = &struct {
			SongID  int64  `json:"song_id"`
			Title   string `json:"title"`
			Artist  string `json:"artist"`
			Album   string `json:"album"`
			MediaID string `json:"media_id"`
			Podcast bool   `json:"podcast"`
		}{
			SongID:  snap.Current.Track.ID,
			Title:   snap.Current.Track.Title,
			Artist:  snap.Current.Track.Artist,
			Album:   snap.Current.Track.Album,
			MediaID: snap.Current.MediaID().String(),
			Podcast: snap.Current.Track.IsPodcast,
		}
	}

	s.writeJSON(w, resp)
}

type queueItemResponse struct {
	Index   int    `json:"index"`
	SongID  int64  `json:"song_id"`
	Title   string `json:"title"`
	Artist  string `json:"artist"`
	MediaID string `json:"media_id"`
	Current bool   `json:"current"`
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap := s.bridge.Snapshot()
	items := make([]queueItemResponse, len(snap.Items))
	for i, item := range snap.Items {
		items[i] = queueItemResponse{
			Index:   i,
			SongID:  item.Track.ID,
			Title:   item.Track.Title,
			Artist:  item.Track.Artist,
			MediaID: item.MediaID().String(),
			Current: i == snap.Index,
		}
	}

	s.writeJSON(w, map[string]any{
		"items": items,
		"index": snap.Index,
	})
}

// handleVoiceSearch decodes an assistant-style query and starts playback of
// whatever it resolves to.
func (s *Server) handleVoiceSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()
	var extras *input.SearchExtras
	if query.Has("focus") || query.Has("genre") || query.Has("artist") ||
		query.Has("album") || query.Has("title") {
		extras = &input.SearchExtras{
			Focus:  query.Get("focus"),
			Genre:  query.Get("genre"),
			Artist: query.Get("artist"),
			Album:  query.Get("album"),
			Title:  query.Get("title"),
		}
	}

	vs := input.ParseVoiceSearch(query.Get("q"), extras)
	id, ok := s.resolveVoiceSearch(r.Context(), vs)
	if !ok {
		s.metrics.ErrorsTotal.WithLabelValues("http", "no_match").Inc()
		http.Error(w, "nothing matched the query", http.StatusNotFound)
		return
	}

	s.controller.PlayFromMediaID(id)
	s.metrics.CommandsTotal.WithLabelValues("voice").Inc()

	s.logger.Info("Voice search resolved",
		zap.String("query", vs.Query),
		zap.String("focus", vs.Focus.String()),
		zap.String("mediaID", id.String()))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_, _ = fmt.Fprintf(w, `{"status":"accepted","media_id":%q}`, id.String())
}

func (s *Server) resolveVoiceSearch(ctx context.Context, vs input.VoiceSearch) (core.MediaID, bool) {
	if vs.Any {
		return core.CategoryID(core.CategorySongs, ""), true
	}

	switch vs.Focus {
	case input.FocusGenre:
		return core.CategoryID(core.CategoryGenres, vs.Genre), true
	case input.FocusArtist:
		if input.IsSet(vs.Artist) {
			return core.CategoryID(core.CategoryArtists, vs.Artist), true
		}
	case input.FocusAlbum:
		if input.IsSet(vs.Album) {
			return core.CategoryID(core.CategoryAlbums, vs.Album), true
		}
	case input.FocusSong:
		if input.IsSet(vs.Song) {
			return s.findSong(ctx, vs.Song)
		}
	}

	// Unstructured or incomplete: free-text title match.
	return s.findSong(ctx, vs.Query)
}

func (s *Server) findSong(ctx context.Context, text string) (core.MediaID, bool) {
	tracks, err := s.repo.GetAll(ctx)
	if err != nil {
		s.logger.Warn("Library lookup for voice search failed", zap.Error(err))
		return core.MediaID{}, false
	}
	for _, track := range tracks {
		if containsFold(track.Title, text) {
			parent := core.CategoryID(core.CategorySongs, "")
			return core.PlayableItem(parent, track.ID), true
		}
	}
	return core.MediaID{}, false
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting HTTP server",
		zap.String("addr", s.server.Addr))

	go func() {
		<-ctx.Done()
		s.logger.Info("Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Failed to shutdown HTTP server gracefully", zap.Error(err))
		}
	}()

	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	return nil
}

// SetLibrarySize updates the library gauge after a scan.
func (s *Server) SetLibrarySize(size int) {
	s.metrics.LibrarySize.Set(float64(size))
}
