// Package events provides an in-process, best-effort publish/subscribe bus
// for General Manager pipeline activity.
package events

import (
	"sync"

	"github.com/ShayCichocki/gm/pkg/models"
)

// defaultBufferSize is the per-subscriber channel capacity. A subscriber that
// falls behind by more than this many events starts missing them rather than
// stalling the publisher.
const defaultBufferSize = 256

// Bus fans out published events to any number of subscribers. Publishing
// never blocks: a subscriber whose channel is full simply misses the event.
// Events for a single project are always delivered to a given subscriber in
// publish order; there is no ordering guarantee across projects.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[int]chan models.Event
	nextID      int
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{subscribers: make(map[int]chan models.Event)}
}

// Subscription is a live feed of events plus a handle to stop receiving them.
type Subscription struct {
	id     int
	bus    *Bus
	Events <-chan models.Event
}

// Subscribe registers a new subscriber and returns its feed. Call
// Unsubscribe (or Close the bus) when the subscriber is done to release its
// channel.
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan models.Event, defaultBufferSize)
	id := b.nextID
	b.nextID++
	b.subscribers[id] = ch

	return &Subscription{id: id, bus: b, Events: ch}
}

// Unsubscribe stops delivery to sub and closes its channel.
func (sub *Subscription) Unsubscribe() {
	sub.bus.mu.Lock()
	defer sub.bus.mu.Unlock()
	if ch, ok := sub.bus.subscribers[sub.id]; ok {
		delete(sub.bus.subscribers, sub.id)
		close(ch)
	}
}

// Publish delivers event to every current subscriber, dropping it for any
// subscriber whose buffer is full.
func (b *Bus) Publish(event models.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

// Close shuts down every subscriber's channel. The bus must not be published
// to afterward.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subscribers {
		delete(b.subscribers, id)
		close(ch)
	}
}
