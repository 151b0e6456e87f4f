package operation_test

import (
	"bytes"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/Carmen-Shannon/hikari/engine/operation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	r.calls = append(r.calls, s)
	r.mu.Unlock()
}

func (r *recorder) get() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func names(ops []operation.Operation) []string {
	out := make([]string, len(ops))
	for i, op := range ops {
		out[i] = op.Name()
	}
	return out
}

func tracked(rec *recorder, name string, order int, extra ...operation.OperationBuilderOption) operation.Operation {
	opts := []operation.OperationBuilderOption{
		operation.WithSortOrder(order),
		operation.WithEarlyUpdate(func(operation.Operation) { rec.add(name + ".early") }),
		operation.WithUpdate(func(operation.Operation) { rec.add(name + ".update") }),
		operation.WithLateUpdate(func(operation.Operation) { rec.add(name + ".late") }),
		operation.WithExecute(func(operation.Operation, *operation.Context) { rec.add(name + ".execute") }),
		operation.WithRelease(func(operation.Operation) { rec.add(name + ".release") }),
	}
	return operation.NewOperation(name, append(opts, extra...)...)
}

func TestApplyAddSortsStably(t *testing.T) {
	reg := operation.NewRegistry()
	for _, tc := range []struct {
		name  string
		order int
	}{{"a", 1}, {"b", 0}, {"c", 1}, {"d", 0}, {"e", 2}} {
		require.NoError(t, reg.Add(operation.NewOperation(tc.name, operation.WithSortOrder(tc.order))))
	}
	reg.ApplyAdd()
	assert.Equal(t, []string{"b", "d", "a", "c", "e"}, names(reg.Live()))

	require.NoError(t, reg.Add(operation.NewOperation("f", operation.WithSortOrder(1))))
	reg.ApplyAdd()
	assert.Equal(t, []string{"b", "d", "a", "c", "f", "e"}, names(reg.Live()))

	for _, op := range reg.Live() {
		assert.Equal(t, operation.LifeStateAlive, op.LifeState())
	}
}

func TestApplyWithEmptyQueuesIsNoop(t *testing.T) {
	reg := operation.NewRegistry()
	require.NoError(t, reg.Add(operation.NewOperation("a")))
	reg.ApplyAdd()
	before := reg.Live()

	events := 0
	reg.OnAdded(func([]operation.Operation) { events++ })
	reg.OnRemoved(func([]operation.Operation) { events++ })

	reg.ApplyAdd()
	reg.ApplyRemove()
	reg.ApplyAdd()

	assert.Zero(t, events)
	assert.Equal(t, before, reg.Live())
}

func TestAddedAndRemovedEvents(t *testing.T) {
	reg := operation.NewRegistry()
	var added, removed []string
	reg.OnAdded(func(ops []operation.Operation) { added = append(added, names(ops)...) })
	reg.OnRemoved(func(ops []operation.Operation) { removed = append(removed, names(ops)...) })

	op := operation.NewOperation("a")
	require.NoError(t, reg.Add(op))
	reg.ApplyAdd()
	assert.Equal(t, []string{"a"}, added)

	require.True(t, reg.Terminate(op))
	reg.ApplyRemove()
	assert.Equal(t, []string{"a"}, removed)
	assert.Equal(t, operation.LifeStateDead, op.LifeState())
	assert.Empty(t, reg.Live())
}

func TestAddRejectsNonNew(t *testing.T) {
	reg := operation.NewRegistry()
	op := operation.NewOperation("a")
	require.NoError(t, reg.Add(op))
	assert.ErrorIs(t, reg.Add(op), operation.ErrAlreadyAdded)

	reg.ApplyAdd()
	assert.ErrorIs(t, reg.Add(op), operation.ErrNotNew)
}

func TestAddThenTerminateNeverRuns(t *testing.T) {
	rec := &recorder{}
	reg := operation.NewRegistry()
	op := tracked(rec, "x", 0)

	require.NoError(t, reg.Add(op))
	require.True(t, reg.Terminate(op))
	assert.Equal(t, operation.LifeStateTerminating, op.LifeState())

	reg.ApplyAdd()
	reg.EarlyUpdate()
	reg.Update()
	reg.LateUpdate()
	reg.Execute(&operation.Context{})
	reg.ApplyRemove()

	reg.ApplyAdd()
	reg.ApplyRemove()

	assert.Equal(t, []string{"x.release"}, rec.get())
	assert.Equal(t, operation.LifeStateDead, op.LifeState())
	assert.Empty(t, reg.Live())
}

func TestAddThenTerminateAfterMerge(t *testing.T) {
	rec := &recorder{}
	reg := operation.NewRegistry()
	reg.ApplyAdd()

	op := tracked(rec, "x", 0)
	require.NoError(t, reg.Add(op))
	require.True(t, reg.Terminate(op))
	reg.ApplyRemove()
	reg.ApplyAdd()
	reg.Update()
	reg.ApplyRemove()

	assert.Equal(t, []string{"x.release"}, rec.get())
}

func TestTerminateIsOnce(t *testing.T) {
	reg := operation.NewRegistry()
	var releases atomic.Int32
	op := operation.NewOperation("x", operation.WithRelease(func(operation.Operation) { releases.Add(1) }))
	require.NoError(t, reg.Add(op))
	reg.ApplyAdd()

	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if reg.Terminate(op) {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())

	assert.False(t, reg.Remove(operation.NewOperation("other")))
	assert.True(t, reg.Remove(op))

	reg.ApplyRemove()
	reg.ApplyRemove()
	assert.Equal(t, int32(1), releases.Load())
}

func TestTerminatingSkipsHooks(t *testing.T) {
	rec := &recorder{}
	reg := operation.NewRegistry()
	a := tracked(rec, "a", 0)
	b := tracked(rec, "b", 1)
	require.NoError(t, reg.Add(a))
	require.NoError(t, reg.Add(b))
	reg.ApplyAdd()

	reg.Terminate(a)
	reg.Update()
	reg.Execute(&operation.Context{})
	assert.Equal(t, []string{"b.update", "b.execute"}, rec.get())
}

func TestFrozenSkipsUpdatesOnly(t *testing.T) {
	rec := &recorder{}
	reg := operation.NewRegistry()
	op := tracked(rec, "f", 0,
		operation.WithFrozen(true),
		operation.WithShadowCaster(func(_ operation.Operation, ctx *operation.ShadowContext) {
			rec.add("f.shadow")
		}),
	)
	require.NoError(t, reg.Add(op))
	reg.ApplyAdd()

	reg.EarlyUpdate()
	reg.Update()
	reg.LateUpdate()
	reg.RenderShadowMap(&operation.ShadowContext{Cascade: 0})
	reg.Execute(&operation.Context{})
	assert.Equal(t, []string{"f.shadow", "f.execute"}, rec.get())

	op.SetFrozen(false)
	reg.Update()
	assert.Equal(t, "f.update", rec.get()[2])
}

func TestShadowOnlyForCasters(t *testing.T) {
	rec := &recorder{}
	reg := operation.NewRegistry()
	caster := operation.NewOperation("caster", operation.WithShadowCaster(func(_ operation.Operation, ctx *operation.ShadowContext) {
		rec.add("caster")
	}))
	plain := operation.NewOperation("plain")
	require.NoError(t, reg.Add(caster))
	require.NoError(t, reg.Add(plain))
	reg.ApplyAdd()

	reg.RenderShadowMap(&operation.ShadowContext{Cascade: 0})
	reg.RenderShadowMap(&operation.ShadowContext{Cascade: 1})
	assert.Equal(t, []string{"caster", "caster"}, rec.get())
	assert.True(t, caster.IsShadowCaster())
	assert.False(t, plain.IsShadowCaster())
}

func TestHookPanicIsSuppressed(t *testing.T) {
	var buf bytes.Buffer
	rec := &recorder{}
	reg := operation.NewRegistry(operation.WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
	bad := operation.NewOperation("bad", operation.WithUpdate(func(operation.Operation) { panic("broken update") }))
	good := tracked(rec, "good", 1)
	require.NoError(t, reg.Add(bad))
	require.NoError(t, reg.Add(good))
	reg.ApplyAdd()

	assert.NotPanics(t, reg.Update)
	reg.Execute(&operation.Context{})
	assert.Equal(t, []string{"good.update", "good.execute"}, rec.get())
	assert.Contains(t, buf.String(), "broken update")
	assert.Contains(t, buf.String(), "operation=bad")
}

func TestFrameInitAndFrameEnd(t *testing.T) {
	rec := &recorder{}
	reg := operation.NewRegistry()
	op := operation.NewOperation("a",
		operation.WithFrameInit(func(operation.Operation) { rec.add("init") }),
		operation.WithFrameEnd(func(operation.Operation) { rec.add("end") }),
	)
	require.NoError(t, reg.Add(op))
	reg.ApplyAdd()
	reg.ApplyRemove()
	reg.ApplyAdd()
	assert.Equal(t, []string{"init", "end", "init"}, rec.get())
}

type disposer struct{ n *atomic.Int32 }

func (d disposer) Dispose() { d.n.Add(1) }

func TestReleaseDisposesOwned(t *testing.T) {
	reg := operation.NewRegistry()
	var n atomic.Int32
	var dead []string
	op := operation.NewOperation("a")
	op.Own(disposer{&n})
	op.Own(disposer{&n})
	op.OnDead(func(op operation.Operation) { dead = append(dead, op.Name()) })
	require.NoError(t, reg.Add(op))
	reg.ApplyAdd()

	reg.TerminateAll()
	reg.ApplyRemove()
	assert.Equal(t, int32(2), n.Load())
	assert.Equal(t, []string{"a"}, dead)

	op.Own(disposer{&n})
	assert.Equal(t, int32(3), n.Load())
}

func TestTerminateAllIncludesPending(t *testing.T) {
	reg := operation.NewRegistry()
	require.NoError(t, reg.Add(operation.NewOperation("live")))
	reg.ApplyAdd()
	require.NoError(t, reg.Add(operation.NewOperation("pending")))

	assert.Equal(t, 2, reg.TerminateAll())
	adds, removes := reg.Pending()
	assert.Equal(t, 1, adds)
	assert.Equal(t, 2, removes)

	reg.ApplyRemove()
	reg.ApplyAdd()
	assert.Empty(t, reg.Live())
}
