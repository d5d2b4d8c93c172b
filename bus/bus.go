// Package bus provides a typed in-process publish/subscribe registry.
// Each Topic carries one concrete payload type, so subscriptions are
// checked at compile time rather than routed through untyped payloads.
package bus

import (
	"sync"

	"go.uber.org/zap"
)

// Handler consumes a published payload. Handlers run on the publisher's
// goroutine; a handler that panics is isolated and logged, and remaining
// handlers for the same publication still run.
type Handler[T any] func(T)

// Topic is a named publish/subscribe channel for payloads of type T.
// The zero value is not usable; construct with NewTopic.
type Topic[T any] struct {
	name   string
	logger *zap.SugaredLogger

	mu   sync.RWMutex
	subs map[uint64]Handler[T]
	next uint64
}

// NewTopic creates a topic. The name is used only for diagnostics.
func NewTopic[T any](name string, logger *zap.SugaredLogger) *Topic[T] {
	return &Topic[T]{
		name:   name,
		logger: logger,
		subs:   make(map[uint64]Handler[T]),
	}
}

// Subscribe registers a handler and returns its unsubscribe function.
// Calling the returned function more than once is a no-op.
func (t *Topic[T]) Subscribe(h Handler[T]) func() {
	t.mu.Lock()
	id := t.next
	t.next++
	t.subs[id] = h
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		delete(t.subs, id)
		t.mu.Unlock()
	}
}

// Publish delivers the payload to every registered handler. A failing
// handler never prevents the others from running, and the failure is
// reported to the topic's logger rather than propagated to the publisher.
func (t *Topic[T]) Publish(payload T) {
	t.mu.RLock()
	handlers := make([]Handler[T], 0, len(t.subs))
	for _, h := range t.subs {
		handlers = append(handlers, h)
	}
	t.mu.RUnlock()

	for _, h := range handlers {
		t.invoke(h, payload)
	}
}

func (t *Topic[T]) invoke(h Handler[T], payload T) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Errorw("Subscriber panicked",
				"topic", t.name,
				"panic", r)
		}
	}()
	h(payload)
}

// Len returns the number of registered handlers.
func (t *Topic[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.subs)
}
