// Package lifecycle is the event hub connecting the playback controller to
// its observers: the session bridge, the side-effect tracker and anything
// else interested in now-playing transitions.
package lifecycle

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"jukeboxd/internal/core"
)

// EventType tags the lifecycle events the hub can carry.
type EventType string

const (
	// EventPrepare fires before a new item is loaded into the engine.
	EventPrepare EventType = "prepare"
	// EventMetadata fires once per now-playing transition.
	EventMetadata EventType = "metadata"
	// EventState fires on play/pause/buffer/error transitions.
	EventState EventType = "state"
	// EventSeek fires after an explicit position change.
	EventSeek EventType = "seek"
	// EventQueue fires after the queue contents changed.
	EventQueue EventType = "queue"
)

// Event is the payload union delivered to handlers. Only the fields matching
// Type are populated.
type Event struct {
	Type     EventType
	Metadata core.MetadataEvent
	State    core.PlaybackState
	Position time.Duration
}

// Handler receives dispatched events. Handlers run synchronously on the
// dispatching goroutine, so they must return quickly or hand off.
type Handler func(Event)

// SubscriptionID identifies one registered handler.
type SubscriptionID uint64

type subscription struct {
	id      SubscriptionID
	handler Handler
}

// Hub fans lifecycle events out to registered handlers. Delivery is
// synchronous and ordered per dispatcher; handler panics are recovered so one
// broken observer cannot take down playback.
type Hub struct {
	logger *zap.Logger

	mutex       sync.RWMutex
	subscribers map[EventType][]subscription
	all         []subscription
	nextID      SubscriptionID
	closed      bool
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger:      logger.Named("lifecycle"),
		subscribers: make(map[EventType][]subscription),
	}
}

// Subscribe registers handler for events of the given type and returns the id
// to unsubscribe with.
func (h *Hub) Subscribe(eventType EventType, handler Handler) SubscriptionID {
	if handler == nil {
		panic("lifecycle handler cannot be nil")
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.nextID++
	h.subscribers[eventType] = append(h.subscribers[eventType], subscription{
		id:      h.nextID,
		handler: handler,
	})
	return h.nextID
}

// SubscribeAll registers handler for every event type.
func (h *Hub) SubscribeAll(handler Handler) SubscriptionID {
	if handler == nil {
		panic("lifecycle handler cannot be nil")
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.nextID++
	h.all = append(h.all, subscription{id: h.nextID, handler: handler})
	return h.nextID
}

// Unsubscribe removes the handler registered under id. Unknown ids are a
// no-op.
func (h *Hub) Unsubscribe(id SubscriptionID) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for eventType, subs := range h.subscribers {
		h.subscribers[eventType] = removeSubscription(subs, id)
	}
	h.all = removeSubscription(h.all, id)
}

func removeSubscription(subs []subscription, id SubscriptionID) []subscription {
	for i, sub := range subs {
		if sub.id == id {
			return append(subs[:i], subs[i+1:]...)
		}
	}
	return subs
}

// Dispatch delivers event to all matching handlers in subscription order,
// type-specific handlers first.
func (h *Hub) Dispatch(event Event) {
	h.mutex.RLock()
	if h.closed {
		h.mutex.RUnlock()
		return
	}
	typed := make([]subscription, len(h.subscribers[event.Type]))
	copy(typed, h.subscribers[event.Type])
	wildcard := make([]subscription, len(h.all))
	copy(wildcard, h.all)
	h.mutex.RUnlock()

	for _, sub := range typed {
		h.call(sub.handler, event)
	}
	for _, sub := range wildcard {
		h.call(sub.handler, event)
	}
}

func (h *Hub) call(handler Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("Lifecycle handler panicked",
				zap.Any("panic", r),
				zap.String("eventType", string(event.Type)))
		}
	}()
	handler(event)
}

// Close stops delivery. Dispatches after Close are dropped.
func (h *Hub) Close() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.closed = true
	h.subscribers = make(map[EventType][]subscription)
	h.all = nil
}

// DispatchPrepare is a convenience wrapper for EventPrepare.
func (h *Hub) DispatchPrepare() {
	h.Dispatch(Event{Type: EventPrepare})
}

// DispatchMetadata is a convenience wrapper for EventMetadata.
func (h *Hub) DispatchMetadata(meta core.MetadataEvent) {
	h.Dispatch(Event{Type: EventMetadata, Metadata: meta})
}

// DispatchState is a convenience wrapper for EventState.
func (h *Hub) DispatchState(state core.PlaybackState) {
	h.Dispatch(Event{Type: EventState, State: state})
}

// DispatchSeek is a convenience wrapper for EventSeek.
func (h *Hub) DispatchSeek(position time.Duration) {
	h.Dispatch(Event{Type: EventSeek, Position: position})
}

// DispatchQueue is a convenience wrapper for EventQueue.
func (h *Hub) DispatchQueue() {
	h.Dispatch(Event{Type: EventQueue})
}
