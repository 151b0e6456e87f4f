package screen_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Carmen-Shannon/hikari/common"
	"github.com/Carmen-Shannon/hikari/engine/deferred"
	"github.com/Carmen-Shannon/hikari/engine/light"
	"github.com/Carmen-Shannon/hikari/engine/operation"
	"github.com/Carmen-Shannon/hikari/engine/own"
	"github.com/Carmen-Shannon/hikari/engine/renderer"
	"github.com/Carmen-Shannon/hikari/engine/renderer/renderertest"
	"github.com/Carmen-Shannon/hikari/engine/scene"
	"github.com/Carmen-Shannon/hikari/engine/screen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances by step on every read.
type fakeClock struct {
	t    time.Time
	step time.Duration
}

func (c *fakeClock) now() time.Time {
	c.t = c.t.Add(c.step)
	return c.t
}

func newScreen(t *testing.T, opts ...screen.ScreenBuilderOption) (screen.Screen, renderer.Renderer, *renderertest.Backend) {
	t.Helper()
	backend := renderertest.NewBackend()
	r, err := renderer.NewRenderer(backend, renderer.WithSurfaceSize(64, 64))
	require.NoError(t, err)
	t.Cleanup(r.Close)

	clock := &fakeClock{t: time.Unix(0, 0), step: 20 * time.Millisecond}
	opts = append([]screen.ScreenBuilderOption{
		screen.WithClock(clock.now),
		screen.WithLight(light.NewDirectionalLight(light.WithShadowMap(2, 64))),
		screen.WithCascadeOptions(light.WithWorkers(1)),
	}, opts...)
	s, err := screen.NewScreen(r, opts...)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s, r, backend
}

func cube(t *testing.T, s screen.Screen) scene.FrameObject {
	t.Helper()
	vertices, indices := scene.CubeGeometry()
	mesh, err := scene.NewMesh(s.Renderer(), "cube", vertices, indices)
	require.NoError(t, err)
	obj, err := s.Store().Create(own.FromOwn(mesh))
	require.NoError(t, err)
	return obj
}

func TestRunFrameOrder(t *testing.T) {
	s, _, backend := newScreen(t)
	var order []string
	record := func(name string) func() { return func() { order = append(order, name) } }

	obj := cube(t, s)
	obj.OnEarlyUpdate(func(scene.FrameObject) { order = append(order, "object.early") })
	obj.OnUpdate(func(scene.FrameObject) { order = append(order, "object.update") })
	obj.OnLateUpdate(func(scene.FrameObject) { order = append(order, "object.late") })

	late := operation.NewOperation("late",
		operation.WithFrameInit(func(operation.Operation) { order = append(order, "late.init") }),
		operation.WithUpdate(func(operation.Operation) { order = append(order, "late.update") }),
		operation.WithExecute(func(operation.Operation, *operation.Context) { order = append(order, "late.execute") }),
	)
	added := false
	op := operation.NewOperation("recorder",
		operation.WithEarlyUpdate(func(operation.Operation) { order = append(order, "op.early") }),
		operation.WithUpdate(func(operation.Operation) {
			order = append(order, "op.update")
			if !added {
				added = true
				assert.NoError(t, s.Registry().Add(late))
			}
		}),
		operation.WithLateUpdate(func(operation.Operation) { order = append(order, "op.late") }),
		operation.WithShadowCaster(func(operation.Operation, *operation.ShadowContext) { order = append(order, "op.shadow") }),
		operation.WithExecute(func(operation.Operation, *operation.Context) { order = append(order, "op.execute") }),
	)
	require.NoError(t, s.Registry().Add(op))

	s.Created().Post(record(screen.QueueCreated))
	s.EarlyUpdate().Post(record(screen.QueueEarlyUpdate))
	s.Update().Post(record(screen.QueueUpdate))
	s.LateUpdate().Post(record(screen.QueueLateUpdate))
	s.PrepareForRender().Post(record(screen.QueuePrepareForRender))
	s.Destroyed().Post(record(screen.QueueDestroyed))

	require.NoError(t, s.RunFrame(context.Background()))

	// the operation added during update waits for the next frame
	assert.Equal(t, []string{
		"created",
		"early_update", "object.early", "op.early",
		"update", "object.update", "op.update",
		"late_update", "object.late", "op.late",
		"prepare_for_render",
		"op.shadow", "op.shadow",
		"op.execute",
		"destroyed",
	}, order)
	assert.Equal(t, operation.LifeStateNew, late.LifeState())
	assert.Equal(t, []string{"shadow_0", "shadow_1"}, backend.PassLabels())
	_, presented := backend.Frames()
	assert.Equal(t, 1, presented)
	assert.Equal(t, uint64(1), s.FrameNumber())

	order = nil
	s.PrepareForRender().Post(record(screen.QueuePrepareForRender))
	require.NoError(t, s.RunFrame(context.Background()))

	assert.Equal(t, []string{
		"late.init",
		"object.early", "op.early",
		"object.update", "op.update", "late.update",
		"object.late", "op.late",
		"prepare_for_render",
		"op.shadow", "op.shadow",
		"op.execute", "late.execute",
	}, order)
	assert.Equal(t, operation.LifeStateAlive, late.LifeState())
	assert.Equal(t, uint64(2), s.FrameNumber())
}

func TestDeltaTime(t *testing.T) {
	s, _, _ := newScreen(t)
	var deltas []time.Duration
	var frames []uint64
	require.NoError(t, s.Registry().Add(operation.NewOperation("recorder",
		operation.WithExecute(func(_ operation.Operation, ctx *operation.Context) {
			deltas = append(deltas, ctx.DeltaTime)
			frames = append(frames, ctx.FrameNumber)
		}),
	)))

	for range 3 {
		require.NoError(t, s.RunFrame(context.Background()))
	}

	assert.Equal(t, []time.Duration{time.Second / 60, 20 * time.Millisecond, 20 * time.Millisecond}, deltas)
	assert.Equal(t, []uint64{0, 1, 2}, frames)
	assert.Equal(t, 20*time.Millisecond, s.DeltaTime())
}

func TestCloseVetoIsHonouredOnce(t *testing.T) {
	s, r, _ := newScreen(t)
	asked := 0
	s.OnClosing(func() bool {
		asked++
		return true
	})
	var closed []screen.CloseState
	s.OnClosed(func(sc screen.Screen) { closed = append(closed, sc.State()) })

	op := operation.NewOperation("recorder")
	require.NoError(t, s.Registry().Add(op))
	obj := cube(t, s)

	s.RequestClose()
	require.NoError(t, s.RunFrame(context.Background()))
	assert.Equal(t, screen.Running, s.State())
	assert.Equal(t, 1, asked)

	s.RequestClose()
	require.NoError(t, s.RunFrame(context.Background()))
	assert.Equal(t, screen.Closed, s.State())
	assert.Equal(t, 1, asked, "no second veto")
	assert.Equal(t, []screen.CloseState{screen.Closed}, closed)

	assert.Equal(t, operation.LifeStateDead, op.LifeState())
	assert.Equal(t, operation.LifeStateDead, obj.LifeState())
	assert.Zero(t, r.LiveResources())
	assert.ErrorIs(t, s.RunFrame(context.Background()), screen.ErrClosed)

	s.Close()
	assert.Len(t, closed, 1)
}

func TestRequestCloseFromAnotherGoroutine(t *testing.T) {
	s, _, _ := newScreen(t)

	var wg sync.WaitGroup
	for range 4 {
		wg.Go(s.RequestClose)
	}
	wg.Wait()
	assert.Equal(t, 1, s.Update().Len())
	assert.Equal(t, screen.Running, s.State())

	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, screen.Closed, s.State())
	assert.Equal(t, uint64(1), s.FrameNumber())
}

func TestSurfaceUnavailableSkipsFrame(t *testing.T) {
	s, _, backend := newScreen(t)
	ran := false
	s.Update().Post(func() { ran = true })

	backend.SetSurfaceError(renderer.ErrSurfaceUnavailable)
	require.NoError(t, s.RunFrame(context.Background()))
	assert.False(t, ran)
	assert.Zero(t, s.FrameNumber())
	assert.Equal(t, 1, s.Update().Len())

	backend.SetSurfaceError(nil)
	require.NoError(t, s.RunFrame(context.Background()))
	assert.True(t, ran)
	assert.Equal(t, uint64(1), s.FrameNumber())
}

func TestDeviceLostIsFatal(t *testing.T) {
	s, r, backend := newScreen(t)
	closed := 0
	s.OnClosed(func(screen.Screen) { closed++ })
	require.NoError(t, s.RunFrame(context.Background()))

	backend.SetSurfaceError(renderer.ErrDeviceLost)
	err := s.Run(context.Background())

	assert.ErrorIs(t, err, renderer.ErrDeviceLost)
	assert.Equal(t, screen.Closed, s.State())
	assert.Equal(t, 1, closed)
	assert.Zero(t, r.LiveResources())
}

func TestRunStopsOnCancel(t *testing.T) {
	s, _, _ := newScreen(t)
	ctx, cancel := context.WithCancel(context.Background())
	frames := 0
	require.NoError(t, s.Registry().Add(operation.NewOperation("recorder",
		operation.WithExecute(func(operation.Operation, *operation.Context) {
			frames++
			if frames == 3 {
				cancel()
			}
		}),
	)))

	err := s.Run(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3, frames)
	assert.Equal(t, screen.Closed, s.State())
}

func TestResizeAppliesAtNextFrame(t *testing.T) {
	s, _, backend := newScreen(t)
	before := s.DepthTexture()

	s.Resize(128, 32)
	s.Resize(0, 10)
	assert.Same(t, before, s.DepthTexture())
	assert.Equal(t, common.Size{Width: 64, Height: 64}, s.GBuffer().Size())

	require.NoError(t, s.RunFrame(context.Background()))

	depth := s.DepthTexture()
	assert.Equal(t, uint32(128), depth.Width())
	assert.Equal(t, uint32(32), depth.Height())
	assert.ErrorIs(t, before.Validate(), renderer.ErrUseAfterFree)
	assert.Equal(t, common.Size{Width: 128, Height: 32}, s.GBuffer().Size())
	assert.InDelta(t, 4, s.Camera().Camera().Aspect(), 1e-6)
	w, h, _ := backend.SurfaceSize()
	assert.Equal(t, uint32(128), w)
	assert.Equal(t, uint32(32), h)
}

func TestHookPanicsDoNotStopTheFrame(t *testing.T) {
	s, _, _ := newScreen(t)
	obj := cube(t, s)
	obj.OnUpdate(func(scene.FrameObject) { panic("object") })
	s.Update().Post(func() { panic("queue") })
	require.NoError(t, s.Registry().Add(operation.NewOperation("recorder",
		operation.WithLateUpdate(func(operation.Operation) { panic("operation") }),
	)))

	require.NoError(t, s.RunFrame(context.Background()))
	require.NoError(t, s.RunFrame(context.Background()))
	assert.Equal(t, uint64(2), s.FrameNumber())
}

func TestDeferredPipelineFrame(t *testing.T) {
	s, _, backend := newScreen(t)
	cube(t, s)

	geometry, err := deferred.NewGeometryOperation(s)
	require.NoError(t, err)
	lighting, err := deferred.NewLightingOperation(s)
	require.NoError(t, err)
	overlay, err := deferred.NewOverlay(s.Renderer())
	require.NoError(t, err)
	overlay.SetRects([]deferred.Rect{{Width: 0.5, Height: 0.5, Color: [4]float32{0, 0, 0, 0.5}}})
	// registered out of order; the registry sorts by band
	for _, op := range []operation.Operation{overlay.Operation(), lighting, geometry, deferred.NewShadowCasterOperation(s)} {
		require.NoError(t, s.Registry().Add(op))
	}

	require.NoError(t, s.RunFrame(context.Background()))

	assert.Equal(t, []string{"shadow_0", "shadow_1", "geometry", "lighting", "overlay"}, backend.PassLabels())
	var geometryDraws int
	for _, c := range backend.Commands() {
		if c.Pass == "geometry" && c.Op == "drawindexed" {
			geometryDraws++
		}
	}
	assert.Equal(t, 1, geometryDraws)
}

func TestShadowPassesFollowTheLight(t *testing.T) {
	s, _, backend := newScreen(t, screen.WithLight(light.NewDirectionalLight(light.WithCastsShadows(false))))
	require.NoError(t, s.RunFrame(context.Background()))
	assert.Empty(t, backend.PassLabels())
}

func TestCloseStateString(t *testing.T) {
	assert.Equal(t, "CloseRequested", screen.CloseRequested.String())
}
