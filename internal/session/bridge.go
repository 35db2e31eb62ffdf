package session

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"jukeboxd/internal/core"
	"jukeboxd/internal/lifecycle"
)

// MetadataPublisher receives now-playing transitions and playback state
// changes as owned values. Implementations render them elsewhere, such as a
// notification or a widget; they must not block.
type MetadataPublisher interface {
	PublishMetadata(event core.MetadataEvent)
	PublishState(state core.PlaybackState)
}

// Bridge mirrors controller transitions into a read surface for session
// observers. It subscribes to the lifecycle hub, keeps the latest metadata
// and state so readers never have to wait on the command loop, and fans
// transitions out to registered publishers.
type Bridge struct {
	logger     *zap.Logger
	controller *Controller

	mutex      sync.RWMutex
	now        core.MetadataEvent
	hasNow     bool
	state      core.PlaybackState
	lastSeek   time.Duration
	publishers []MetadataPublisher

	subIDs []lifecycle.SubscriptionID
	hub    *lifecycle.Hub
}

func NewBridge(hub *lifecycle.Hub, controller *Controller, logger *zap.Logger) *Bridge {
	b := &Bridge{
		logger:     logger.Named("bridge"),
		controller: controller,
		hub:        hub,
	}
	b.subIDs = append(b.subIDs,
		hub.Subscribe(lifecycle.EventMetadata, b.onMetadata),
		hub.Subscribe(lifecycle.EventState, b.onState),
		hub.Subscribe(lifecycle.EventSeek, b.onSeek),
	)
	return b
}

// AddPublisher registers a publisher for all future transitions.
func (b *Bridge) AddPublisher(p MetadataPublisher) {
	b.mutex.Lock()
	b.publishers = append(b.publishers, p)
	b.mutex.Unlock()
}

func (b *Bridge) onMetadata(e lifecycle.Event) {
	b.mutex.Lock()
	b.now = e.Metadata
	b.hasNow = true
	publishers := append([]MetadataPublisher(nil), b.publishers...)
	b.mutex.Unlock()

	for _, p := range publishers {
		p.PublishMetadata(e.Metadata)
	}

	b.logger.Debug("Now playing changed",
		zap.Int64("songID", e.Metadata.Item.Track.ID),
		zap.String("title", e.Metadata.Item.Track.Title),
		zap.String("skip", e.Metadata.Skip.String()))
}

func (b *Bridge) onState(e lifecycle.Event) {
	b.mutex.Lock()
	b.state = e.State
	publishers := append([]MetadataPublisher(nil), b.publishers...)
	b.mutex.Unlock()

	for _, p := range publishers {
		p.PublishState(e.State)
	}
}

func (b *Bridge) onSeek(e lifecycle.Event) {
	b.mutex.Lock()
	b.lastSeek = e.Position
	b.mutex.Unlock()
}

// NowPlaying returns the latest metadata transition.
func (b *Bridge) NowPlaying() (core.MetadataEvent, bool) {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return b.now, b.hasNow
}

// State returns the latest published playback state.
func (b *Bridge) State() core.PlaybackState {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return b.state
}

// Snapshot returns the full controller snapshot with live position.
func (b *Bridge) Snapshot() Snapshot {
	return b.controller.Snapshot()
}

// Close detaches the bridge from the hub.
func (b *Bridge) Close() {
	for _, id := range b.subIDs {
		b.hub.Unsubscribe(id)
	}
	b.subIDs = nil
}
