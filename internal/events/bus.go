// Package events fans named events out to the command surfaces.
package events

import (
	"sync"
	"sync/atomic"
)

// Event names emitted by the daemon
const (
	CoverArt        = "mp3_cover"
	PresenceChanged = "presence_changed"
	SessionChanged  = "session_changed"
	MediaCommand    = "media_command"
)

const subscriberBuffer = 16

// Event is a named payload pushed to subscribers
type Event struct {
	Name    string `json:"type"`
	Payload any    `json:"data,omitempty"`
}

// Emitter is anything that can publish an event
type Emitter interface {
	Emit(name string, payload any)
}

// EmitterFunc is a function adapter for Emitter
type EmitterFunc func(name string, payload any)

// Emit calls f(name, payload)
func (f EmitterFunc) Emit(name string, payload any) {
	f(name, payload)
}

// Bus delivers events to every subscriber. A subscriber whose buffer is
// full misses the event; publishing never blocks.
type Bus struct {
	mu      sync.RWMutex
	nextID  int
	subs    map[int]chan Event
	dropped atomic.Uint64
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{
		subs: make(map[int]chan Event),
	}
}

// Subscribe registers a subscriber. The returned cancel func closes the
// channel and is safe to call more than once.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Event, subscriberBuffer)
	b.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Emit publishes an event to all current subscribers
func (b *Bus) Emit(name string, payload any) {
	evt := Event{Name: name, Payload: payload}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs {
		select {
		case ch <- evt:
		default:
			b.dropped.Add(1)
		}
	}
}

// Subscribers returns the number of active subscribers
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped returns how many deliveries were skipped because a subscriber was full
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}
