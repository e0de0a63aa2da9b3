package events

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// DefaultBuffer is the subscription buffer used when none is given
const DefaultBuffer = 64

// Bus fans events out to subscribers. Publish never blocks: a subscriber whose
// buffer is full misses the event.
type Bus struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	closed bool
}

// Subscription receives published events on C until it is closed
type Subscription struct {
	C <-chan Event

	ch      chan Event
	filter  func(Event) bool
	bus     *Bus
	once    sync.Once
	dropped atomic.Int64
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers a subscriber. A nil filter accepts every event.
func (b *Bus) Subscribe(buffer int, filter func(Event) bool) *Subscription {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	ch := make(chan Event, buffer)
	sub := &Subscription{C: ch, ch: ch, filter: filter, bus: b}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return sub
	}
	b.subs[sub] = struct{}{}
	return sub
}

// Publish delivers e to every matching subscriber
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs {
		if sub.filter != nil && !sub.filter(e) {
			continue
		}
		select {
		case sub.ch <- e:
		default:
			sub.dropped.Add(1)
			slog.Warn("event dropped for slow subscriber", "kind", e.Kind, "session_id", e.SessionID)
		}
	}
}

// Close closes every subscription. Later subscriptions are closed immediately.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		sub.once.Do(func() { close(sub.ch) })
		delete(b.subs, sub)
	}
}

// Close unsubscribes and closes C
func (s *Subscription) Close() {
	s.bus.mu.Lock()
	delete(s.bus.subs, s)
	s.bus.mu.Unlock()

	s.once.Do(func() { close(s.ch) })
}

// Dropped returns how many events the subscriber missed
func (s *Subscription) Dropped() int64 {
	return s.dropped.Load()
}

// ForSession returns a filter matching one session, or everything for an empty id
func ForSession(id string) func(Event) bool {
	if id == "" {
		return nil
	}
	return func(e Event) bool { return e.SessionID == id }
}
