// Package hub fans out entity snapshots to live observers, keyed by entity id.
//
// Each id owns one broadcaster holding its current subscribers and a reference count.
// The broadcaster is created by the first Subscribe and discarded when the last
// subscriber leaves. Nothing is buffered for future subscribers.
//
// Delivery is at most once per subscriber: a subscriber that is not draining its buffer
// misses snapshots instead of stalling the publisher. Each miss is counted by Dropped.
package hub

import "sync"

const defaultBuffer = 8

type Subscription[T any] struct {
	id   string
	ch   chan T
	hub  *Hub[T]
	once sync.Once
}

// C delivers snapshots published after the subscription was made. It is closed on unsubscribe.
func (s *Subscription[T]) C() <-chan T {
	return s.ch
}

func (s *Subscription[T]) ID() string {
	return s.id
}

// Close is Unsubscribe. Calling it more than once is a no-op.
func (s *Subscription[T]) Close() {
	s.hub.Unsubscribe(s)
}

type broadcaster[T any] struct {
	subscribers map[*Subscription[T]]struct{}
	refs        int
}

type Hub[T any] struct {
	mu      sync.Mutex
	topics  map[string]*broadcaster[T]
	buffer  int
	closed  bool
	dropped uint64
}

func New[T any](buffer int) *Hub[T] {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Hub[T]{
		topics: map[string]*broadcaster[T]{},
		buffer: buffer,
	}
}

func (h *Hub[T]) Subscribe(id string) *Subscription[T] {
	sub := &Subscription[T]{id: id, ch: make(chan T, h.buffer), hub: h}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		sub.once.Do(func() { close(sub.ch) })
		return sub
	}

	b, ok := h.topics[id]
	if !ok {
		b = &broadcaster[T]{subscribers: map[*Subscription[T]]struct{}{}}
		h.topics[id] = b
	}
	b.subscribers[sub] = struct{}{}
	b.refs++

	return sub
}

func (h *Hub[T]) Unsubscribe(sub *Subscription[T]) {
	if sub == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	b, ok := h.topics[sub.id]
	if ok {
		if _, member := b.subscribers[sub]; member {
			delete(b.subscribers, sub)
			b.refs--
			if b.refs <= 0 {
				delete(h.topics, sub.id)
			}
		}
	}
	sub.once.Do(func() { close(sub.ch) })
}

// Publish hands snapshot to every current subscriber of id and returns how many received it.
// A subscriber whose buffer is full misses this snapshot and the miss is added to Dropped.
func (h *Hub[T]) Publish(id string, snapshot T) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	b, ok := h.topics[id]
	if !ok {
		return 0
	}

	delivered := 0
	for sub := range b.subscribers {
		select {
		case sub.ch <- snapshot:
			delivered++
		default:
			h.dropped++
		}
	}
	return delivered
}

// Subscribers returns the reference count held for id.
func (h *Hub[T]) Subscribers(id string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	if b, ok := h.topics[id]; ok {
		return b.refs
	}
	return 0
}

// Stats returns the number of live ids and the total subscriber count.
func (h *Hub[T]) Stats() (topics int, subscribers int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, b := range h.topics {
		subscribers += b.refs
	}
	return len(h.topics), subscribers
}

// Dropped returns how many snapshots were skipped for subscribers with a full buffer.
func (h *Hub[T]) Dropped() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.dropped
}

// Close ends every subscription and rejects new ones.
func (h *Hub[T]) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for id, b := range h.topics {
		for sub := range b.subscribers {
			sub.once.Do(func() { close(sub.ch) })
		}
		delete(h.topics, id)
	}
}
