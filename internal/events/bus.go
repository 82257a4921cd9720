// Package events provides an in-process publish/subscribe bus. Treasury
// mutations publish events after their state is committed; subscribers
// (the websocket stream, alert evaluation) receive them asynchronously.
package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Event is one published notification.
type Event struct {
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
}

// Bus fans published events out to all current subscribers. Publishing
// never blocks: a subscriber whose buffer is full misses the event.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
	log    zerolog.Logger
}

// NewBus creates a new event bus
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		subs: make(map[int]chan Event),
		log:  log.With().Str("service", "events").Logger(),
	}
}

// Publish implements treasury.EventPublisher.
func (b *Bus) Publish(eventType string, data map[string]interface{}) {
	event := Event{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subs {
		select {
		case ch <- event:
		default:
			b.log.Warn().
				Int("subscriber", id).
				Str("event", eventType).
				Msg("Subscriber buffer full, event dropped")
		}
	}

	b.log.Debug().Str("event", eventType).Int("subscribers", len(b.subs)).Msg("Event published")
}

// Subscribe registers a new subscriber and returns its channel together
// with an unsubscribe function. The caller must invoke the unsubscribe
// function when done, after which the channel is closed.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	ch := make(chan Event, buffer)
	b.subs[id] = ch
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		if _, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
		b.mu.Unlock()
	}

	return ch, unsubscribe
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
