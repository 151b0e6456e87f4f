package own

// Maybe holds a value that is either owned (released on Dispose) or borrowed (never released by this holder).
// It lets an API accept both a resource it should take over and one that lives elsewhere.
type Maybe[T any] struct {
	inner Own[T]
	owned bool
}

// FromOwn wraps an owned cell. Disposing the Maybe disposes the cell.
func FromOwn[T any](o Own[T]) Maybe[T] {
	return Maybe[T]{inner: o, owned: !o.IsNone()}
}

// Borrowed wraps a value owned elsewhere. Disposing the Maybe only drops the reference.
func Borrowed[T any](value T) Maybe[T] {
	return Maybe[T]{inner: New[T](value, nil), owned: false}
}

// IsNone reports whether the Maybe holds no value.
func (m Maybe[T]) IsNone() bool {
	return m.inner.IsNone()
}

// IsOwn returns the underlying ownership cell when the value is owned.
//
// Returns:
//   - Own[T]: the owned cell, or None when borrowed or empty
//   - bool: true if the value is owned and still present
func (m Maybe[T]) IsOwn() (Own[T], bool) {
	if !m.owned || m.inner.IsNone() {
		return None[T](), false
	}
	return m.inner, true
}

// AsValue returns the held value, owned or borrowed.
func (m Maybe[T]) AsValue() (T, error) {
	return m.inner.AsValue()
}

// TryAsValue returns the held value and whether one was present.
func (m Maybe[T]) TryAsValue() (T, bool) {
	return m.inner.TryAsValue()
}

// Dispose releases the value if it is owned and drops the reference either way.
func (m Maybe[T]) Dispose() {
	m.inner.Dispose()
}
