package common

import (
	"log/slog"
	"sync"
)

// Event is a list of subscribers invoked with a value of type T. The zero value is ready to use.
// Subscribe and unsubscribe are safe from any goroutine; Invoke runs on the caller's goroutine.
type Event[T any] struct {
	mu     sync.Mutex
	subs   []eventSub[T]
	nextID uint64
}

type eventSub[T any] struct {
	id uint64
	fn func(T)
}

// Subscribe adds fn to the event.
//
// Parameters:
//   - fn: the subscriber
//
// Returns:
//   - func(): removes fn again; safe to call more than once
func (e *Event[T]) Subscribe(fn func(T)) func() {
	if fn == nil {
		return func() {}
	}
	e.mu.Lock()
	e.nextID++
	id := e.nextID
	subs := make([]eventSub[T], len(e.subs), len(e.subs)+1)
	copy(subs, e.subs)
	e.subs = append(subs, eventSub[T]{id: id, fn: fn})
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			subs := make([]eventSub[T], 0, len(e.subs))
			for _, s := range e.subs {
				if s.id != id {
					subs = append(subs, s)
				}
			}
			e.subs = subs
		})
	}
}

// Len returns the number of subscribers.
func (e *Event[T]) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subs)
}

// Invoke calls every subscriber with v, in subscription order. A panicking subscriber is logged
// through Guard and does not stop the others.
func (e *Event[T]) Invoke(logger *slog.Logger, phase string, v T) {
	e.mu.Lock()
	subs := e.subs
	e.mu.Unlock()
	for _, s := range subs {
		Guard(logger, phase, func() { s.fn(v) })
	}
}

// Clear removes every subscriber.
func (e *Event[T]) Clear() {
	e.mu.Lock()
	e.subs = nil
	e.mu.Unlock()
}
