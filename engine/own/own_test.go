package own

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisposeReleasesOnce(t *testing.T) {
	var released atomic.Int32
	o := New(42, func(v int) {
		assert.Equal(t, 42, v)
		released.Add(1)
	})

	for i := 0; i < 5; i++ {
		o.Dispose()
	}
	assert.Equal(t, int32(1), released.Load())
	assert.True(t, o.IsNone())
}

func TestDisposeConcurrentReleasesOnce(t *testing.T) {
	var released atomic.Int32
	o := New("buffer", func(string) { released.Add(1) })

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(c Own[string]) {
			defer wg.Done()
			<-start
			c.Dispose()
		}(o)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), released.Load())
}

func TestNoneIsSafe(t *testing.T) {
	o := None[*int]()
	assert.True(t, o.IsNone())
	assert.NotPanics(t, o.Dispose)

	_, err := o.AsValue()
	assert.ErrorIs(t, err, ErrInvalidState)

	_, ok := o.TryAsValue()
	assert.False(t, ok)

	var zero Own[int]
	assert.True(t, zero.IsNone())
	assert.NotPanics(t, zero.Dispose)
	assert.Panics(t, func() { zero.MustValue() })
}

func TestAsValueAfterDispose(t *testing.T) {
	o := New(7, nil)
	v, err := o.AsValue()
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	o.Dispose()
	_, err = o.AsValue()
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestTakeTransfersOwnership(t *testing.T) {
	var released atomic.Int32
	src := New(3, func(int) { released.Add(1) })

	dst := src.Take()
	assert.True(t, src.IsNone())
	assert.False(t, dst.IsNone())

	src.Dispose()
	assert.Equal(t, int32(0), released.Load(), "disposing the moved-from cell must not release")

	dst.Dispose()
	assert.Equal(t, int32(1), released.Load())

	assert.True(t, src.Take().IsNone())
}

func TestMaybeBorrowedNeverReleases(t *testing.T) {
	var released atomic.Int32
	owner := New(9, func(int) { released.Add(1) })

	m := Borrowed(owner.MustValue())
	_, isOwn := m.IsOwn()
	assert.False(t, isOwn)

	m.Dispose()
	assert.Equal(t, int32(0), released.Load())
	assert.True(t, m.IsNone())

	owner.Dispose()
	assert.Equal(t, int32(1), released.Load())
}

func TestMaybeOwnedReleases(t *testing.T) {
	var released atomic.Int32
	m := FromOwn(New(1, func(int) { released.Add(1) }))

	inner, isOwn := m.IsOwn()
	require.True(t, isOwn)
	assert.False(t, inner.IsNone())

	m.Dispose()
	m.Dispose()
	assert.Equal(t, int32(1), released.Load())

	_, isOwn = m.IsOwn()
	assert.False(t, isOwn)
}

func TestSharedReleasesWithLastHandle(t *testing.T) {
	var released atomic.Int32
	a := NewShared("sampler", func(string) { released.Add(1) })
	b := a.Clone()
	c := b.Clone()
	assert.Equal(t, int64(3), a.Refs())

	a.Dispose()
	a.Dispose()
	b.Dispose()
	assert.Equal(t, int32(0), released.Load())
	assert.Equal(t, int64(1), c.Refs())

	_, err := a.AsValue()
	assert.ErrorIs(t, err, ErrInvalidState)
	v, err := c.AsValue()
	require.NoError(t, err)
	assert.Equal(t, "sampler", v)

	c.Dispose()
	assert.Equal(t, int32(1), released.Load())

	assert.Equal(t, int64(0), a.Clone().Refs())
}
