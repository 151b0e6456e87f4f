package common_test

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/Carmen-Shannon/hikari/common"
	"github.com/stretchr/testify/assert"
)

func TestEventInvokesInSubscriptionOrder(t *testing.T) {
	var e common.Event[int]
	var got []string
	e.Subscribe(func(v int) { got = append(got, "a") })
	unsub := e.Subscribe(func(v int) { got = append(got, "b") })
	e.Subscribe(func(v int) { got = append(got, "c") })

	e.Invoke(slog.Default(), "test", 1)
	assert.Equal(t, []string{"a", "b", "c"}, got)

	unsub()
	unsub()
	got = nil
	e.Invoke(slog.Default(), "test", 2)
	assert.Equal(t, []string{"a", "c"}, got)
	assert.Equal(t, 2, e.Len())

	e.Clear()
	assert.Zero(t, e.Len())
}

func TestEventUnsubscribeDuringInvoke(t *testing.T) {
	var e common.Event[struct{}]
	calls := 0
	var unsub func()
	unsub = e.Subscribe(func(struct{}) {
		calls++
		unsub()
	})
	e.Subscribe(func(struct{}) { calls++ })

	e.Invoke(slog.Default(), "test", struct{}{})
	e.Invoke(slog.Default(), "test", struct{}{})

	assert.Equal(t, 3, calls)
}

func TestEventSuppressesPanics(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	var e common.Event[string]
	reached := false
	e.Subscribe(func(string) { panic("boom") })
	e.Subscribe(func(string) { reached = true })

	e.Invoke(logger, "closing", "x")

	assert.True(t, reached)
	assert.Contains(t, buf.String(), "phase=closing")
	assert.Contains(t, buf.String(), "panic=boom")
}

func TestGuard(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	assert.True(t, common.Guard(logger, "update", func() {}))
	assert.Empty(t, buf.String())
	assert.False(t, common.Guard(logger, "update", func() { panic(42) }))
	assert.Contains(t, buf.String(), "level=ERROR")
}

func TestCoalesce(t *testing.T) {
	assert.Equal(t, 3, common.Coalesce(0, 3, 4))
	assert.Equal(t, "", common.Coalesce[string]())
	assert.Equal(t, uint32(2048), common.Coalesce(uint32(0), uint32(2048)))
}
