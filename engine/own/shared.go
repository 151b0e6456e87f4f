package own

import "sync/atomic"

type sharedState[T any] struct {
	value   T
	release func(T)
	refs    atomic.Int64
}

// Shared is a reference-counted owner for resources with a proven need for shared ownership,
// such as one sampler bound by many bind groups. Every handle returned by NewShared or Clone must be
// disposed; the release function runs when the last handle is disposed.
type Shared[T any] struct {
	state    *sharedState[T]
	disposed *atomic.Bool
}

// NewShared creates the first handle of a shared resource with a reference count of one.
//
// Parameters:
//   - value: the resource handle
//   - release: invoked once when the reference count reaches zero
//
// Returns:
//   - Shared[T]: the first handle
func NewShared[T any](value T, release func(T)) Shared[T] {
	st := &sharedState[T]{value: value, release: release}
	st.refs.Store(1)
	return Shared[T]{state: st, disposed: &atomic.Bool{}}
}

// Clone returns a new handle to the same resource and increments the reference count.
// Cloning a disposed or empty handle returns an empty handle.
func (s Shared[T]) Clone() Shared[T] {
	if s.state == nil || s.disposed.Load() {
		return Shared[T]{}
	}
	for {
		n := s.state.refs.Load()
		if n <= 0 {
			return Shared[T]{}
		}
		if s.state.refs.CompareAndSwap(n, n+1) {
			return Shared[T]{state: s.state, disposed: &atomic.Bool{}}
		}
	}
}

// AsValue returns the shared value.
//
// Returns:
//   - T: the value
//   - error: ErrInvalidState if this handle was disposed or is empty
func (s Shared[T]) AsValue() (T, error) {
	if s.state == nil || s.disposed.Load() {
		var zero T
		return zero, ErrInvalidState
	}
	return s.state.value, nil
}

// Refs returns the number of live handles.
func (s Shared[T]) Refs() int64 {
	if s.state == nil {
		return 0
	}
	return s.state.refs.Load()
}

// Dispose drops this handle. Disposing the same handle twice has no further effect.
func (s Shared[T]) Dispose() {
	if s.state == nil || !s.disposed.CompareAndSwap(false, true) {
		return
	}
	if s.state.refs.Add(-1) == 0 && s.state.release != nil {
		s.state.release(s.state.value)
	}
}
