package scene

import (
	"slices"
	"sync"
)

// Subscriptions collects unsubscribe funcs and disposers so they can be released together.
// A FrameObject disposes its bag when it dies. The zero value is ready to use.
type Subscriptions struct {
	mu       sync.Mutex
	items    []func()
	disposed bool
}

// Add registers fn to run on Dispose. If the bag is already disposed, fn runs immediately.
//
// Parameters:
//   - fn: typically the unsubscribe func returned by an event Subscribe
func (s *Subscriptions) Add(fn func()) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		fn()
		return
	}
	s.items = append(s.items, fn)
	s.mu.Unlock()
}

// Len returns the number of registered items.
func (s *Subscriptions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Dispose runs every registered func once, newest first.
func (s *Subscriptions) Dispose() {
	s.mu.Lock()
	items := s.items
	s.items = nil
	s.disposed = true
	s.mu.Unlock()
	for _, fn := range slices.Backward(items) {
		fn()
	}
}
