// Package own provides ownership cells for native resources that are not managed by the garbage collector.
//
// An Own holds exactly one value together with the function that releases it. Copies of an Own share the
// same slot, so the release function runs at most once no matter how many copies call Dispose or from which
// goroutine. A plain value of T held outside of a cell is a borrowed reference and carries no release duty.
package own

import (
	"errors"
	"sync/atomic"
)

// ErrInvalidState is returned when a value is requested from a cell that holds nothing,
// either because it was created as None or because it has already been disposed or taken.
var ErrInvalidState = errors.New("own: cell holds no value")

type cell[T any] struct {
	value   T
	release func(T)
}

// Own is an exclusive, transferable capability over a value of type T and its release function.
// The zero value is equivalent to None.
type Own[T any] struct {
	slot *atomic.Pointer[cell[T]]
}

// New wraps value and its release function in a fresh ownership cell.
// A nil release function is allowed and makes Dispose a plain invalidation.
//
// Parameters:
//   - value: the resource handle to own
//   - release: the function invoked exactly once when the cell is disposed
//
// Returns:
//   - Own[T]: the new cell
func New[T any](value T, release func(T)) Own[T] {
	slot := &atomic.Pointer[cell[T]]{}
	slot.Store(&cell[T]{value: value, release: release})
	return Own[T]{slot: slot}
}

// None returns a cell that holds no value. Disposing it is a no-op.
func None[T any]() Own[T] {
	return Own[T]{}
}

// IsNone reports whether the cell currently holds no value.
func (o Own[T]) IsNone() bool {
	return o.slot == nil || o.slot.Load() == nil
}

// AsValue returns the owned value without transferring ownership.
//
// Returns:
//   - T: the owned value
//   - error: ErrInvalidState if the cell holds no value
func (o Own[T]) AsValue() (T, error) {
	if o.slot != nil {
		if c := o.slot.Load(); c != nil {
			return c.value, nil
		}
	}
	var zero T
	return zero, ErrInvalidState
}

// MustValue is like AsValue but panics when the cell holds no value.
func (o Own[T]) MustValue() T {
	v, err := o.AsValue()
	if err != nil {
		panic(err)
	}
	return v
}

// TryAsValue returns the owned value and true, or the zero value and false if the cell is empty.
func (o Own[T]) TryAsValue() (T, bool) {
	v, err := o.AsValue()
	return v, err == nil
}

// Dispose releases the owned value. The release function runs at most once across all copies of
// the cell and all goroutines; subsequent calls are no-ops.
func (o Own[T]) Dispose() {
	if o.slot == nil {
		return
	}
	c := o.slot.Swap(nil)
	if c == nil || c.release == nil {
		return
	}
	c.release(c.value)
}

// Take moves ownership out of this cell into a new one. The receiver (and every copy of it) is left
// empty without running the release function. Taking from an empty cell returns None.
//
// Returns:
//   - Own[T]: a cell now solely responsible for releasing the value
func (o Own[T]) Take() Own[T] {
	if o.slot == nil {
		return None[T]()
	}
	c := o.slot.Swap(nil)
	if c == nil {
		return None[T]()
	}
	slot := &atomic.Pointer[cell[T]]{}
	slot.Store(c)
	return Own[T]{slot: slot}
}
