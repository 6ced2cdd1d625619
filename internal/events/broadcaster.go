// Package events carries reconciliation run events to their consumers: an
// in-process broadcaster feeding SSE subscribers, and an optional Kafka
// publisher for the terminal completion event.
package events

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/openshelf/bibsync-service/internal/domain"
)

// subscriberBuffer is the per-subscriber channel capacity. A subscriber
// that falls further behind than this loses events rather than stalling
// the run.
const subscriberBuffer = 64

// Event is the envelope delivered to subscribers.
type Event struct {
	Type       string                  `json:"type"`
	Progress   *domain.ProgressEvent   `json:"progress,omitempty"`
	Completion *domain.CompletionEvent `json:"completion,omitempty"`
}

// Sink receives run events. It mirrors the engine's event surface so any
// implementation here can be handed to the engine directly.
type Sink interface {
	SyncProgress(event domain.ProgressEvent)
	SyncCompleted(event domain.CompletionEvent)
}

// Broadcaster fans run events out to any number of in-process subscribers.
// Publishing never blocks: a full subscriber buffer drops the event.
type Broadcaster struct {
	logger zerolog.Logger

	mu     sync.Mutex
	nextID int
	subs   map[int]chan Event
}

var _ Sink = (*Broadcaster)(nil)

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster(logger zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		logger: logger.With().Str("component", "broadcaster").Logger(),
		subs:   map[int]chan Event{},
	}
}

// Subscribe registers a new subscriber. The returned cancel function must
// be called when the subscriber goes away; it closes the channel.
func (b *Broadcaster) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Event, subscriberBuffer)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if ch, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

// Subscribers returns the current subscriber count.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// SyncProgress broadcasts an incremental progress event.
func (b *Broadcaster) SyncProgress(event domain.ProgressEvent) {
	b.publish(Event{Type: domain.EventTypeSyncProgress, Progress: &event})
}

// SyncCompleted broadcasts the terminal event of a run.
func (b *Broadcaster) SyncCompleted(event domain.CompletionEvent) {
	eventType := domain.EventTypeSyncCompleted
	if event.Cancelled {
		eventType = domain.EventTypeSyncCancelled
	}
	b.publish(Event{Type: eventType, Completion: &event})
}

func (b *Broadcaster) publish(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		select {
		case ch <- event:
		default:
			b.logger.Debug().Int("subscriber", id).Str("type", event.Type).Msg("subscriber buffer full, dropping event")
		}
	}
}

// Multi fans events out to several sinks in order.
type Multi []Sink

var _ Sink = Multi(nil)

// SyncProgress forwards the progress event to every sink.
func (m Multi) SyncProgress(event domain.ProgressEvent) {
	for _, sink := range m {
		sink.SyncProgress(event)
	}
}

// SyncCompleted forwards the completion event to every sink.
func (m Multi) SyncCompleted(event domain.CompletionEvent) {
	for _, sink := range m {
		sink.SyncCompleted(event)
	}
}
