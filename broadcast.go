package workshop

import (
	"sort"
	"sync"
)

// Broadcaster is an ordered observer registry. Backends use it to publish
// SessionChange values; the Store uses the same shape for state watchers.
type Broadcaster[T any] struct {
	mu        sync.RWMutex
	next      uint64
	listeners map[uint64]func(T)
}

// NewBroadcaster creates an empty registry.
func NewBroadcaster[T any]() *Broadcaster[T] {
	return &Broadcaster[T]{listeners: make(map[uint64]func(T))}
}

// Subscribe registers fn. The returned handle is idempotent.
func (b *Broadcaster[T]) Subscribe(fn func(T)) Subscription {
	if fn == nil {
		return SubscriptionFunc(nil)
	}

	b.mu.Lock()
	if b.listeners == nil {
		b.listeners = make(map[uint64]func(T))
	}
	b.next++
	id := b.next
	b.listeners[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return SubscriptionFunc(func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.listeners, id)
			b.mu.Unlock()
		})
	})
}

// Publish calls every listener in registration order. Listeners run
// synchronously on the caller's goroutine and without the registry lock, so
// they may subscribe or unsubscribe.
func (b *Broadcaster[T]) Publish(value T) {
	for _, fn := range b.snapshot() {
		fn(value)
	}
}

// Len returns the number of live listeners.
func (b *Broadcaster[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

func (b *Broadcaster[T]) snapshot() []func(T) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ids := make([]uint64, 0, len(b.listeners))
	for id := range b.listeners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	fns := make([]func(T), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, b.listeners[id])
	}
	return fns
}
