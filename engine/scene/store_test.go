package scene_test

import (
	"sync"
	"testing"

	"github.com/Carmen-Shannon/hikari/common"
	"github.com/Carmen-Shannon/hikari/engine/operation"
	"github.com/Carmen-Shannon/hikari/engine/own"
	"github.com/Carmen-Shannon/hikari/engine/renderer"
	"github.com/Carmen-Shannon/hikari/engine/renderer/renderertest"
	"github.com/Carmen-Shannon/hikari/engine/scene"
	"github.com/Carmen-Shannon/hikari/engine/timing"
	"github.com/gogpu/gputypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, opts ...scene.StoreBuilderOption) (scene.Store, renderer.Renderer, *renderertest.Backend) {
	t.Helper()
	backend := renderertest.NewBackend()
	r, err := renderer.NewRenderer(backend)
	require.NoError(t, err)
	t.Cleanup(r.Close)

	s, err := scene.NewStore(r, opts...)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s, r, backend
}

func cube(t *testing.T, r renderer.Renderer) own.Own[*scene.Mesh] {
	t.Helper()
	vertices, indices := scene.CubeGeometry()
	m, err := scene.NewMesh(r, "cube", vertices, indices)
	require.NoError(t, err)
	return m
}

func TestCreateIsPendingUntilApplyAdd(t *testing.T) {
	s, r, _ := newStore(t)
	alive := 0
	obj, err := s.Create(own.FromOwn(cube(t, r)), scene.WithName("a"))
	require.NoError(t, err)
	obj.OnAlive(func(scene.FrameObject) { alive++ })

	assert.Equal(t, operation.LifeStateNew, obj.LifeState())
	assert.Zero(t, s.Len())
	adds, _ := s.Pending()
	assert.Equal(t, 1, adds)

	s.ApplyAdd()
	assert.Equal(t, operation.LifeStateAlive, obj.LifeState())
	assert.Equal(t, 1, alive)
	assert.Same(t, obj, s.Get(obj.ID()))

	// empty merges fire nothing
	fired := false
	s.OnAdded(func([]scene.FrameObject) { fired = true })
	s.OnRemoved(func([]scene.FrameObject) { fired = true })
	s.ApplyAdd()
	s.ApplyRemove()
	assert.False(t, fired)
	assert.Equal(t, 1, s.Len())
}

func TestTerminateReleasesOnApplyRemove(t *testing.T) {
	s, r, backend := newStore(t)
	base := r.LiveResources()
	obj, err := s.Create(own.FromOwn(cube(t, r)))
	require.NoError(t, err)
	s.ApplyAdd()

	var order []string
	obj.OnTerminated(func(scene.FrameObject) { order = append(order, "terminated") })
	obj.OnDead(func(scene.FrameObject) { order = append(order, "dead") })
	obj.Subscriptions().Add(func() { order = append(order, "bag") })

	assert.True(t, obj.Terminate())
	assert.False(t, obj.Terminate())
	assert.Equal(t, operation.LifeStateTerminating, obj.LifeState())
	assert.Equal(t, 1, s.Len(), "still live until the merge")

	s.ApplyRemove()
	assert.Equal(t, operation.LifeStateDead, obj.LifeState())
	assert.Zero(t, s.Len())
	assert.Equal(t, []string{"terminated", "bag", "dead"}, order)
	assert.Equal(t, base, r.LiveResources())
	assert.Empty(t, backend.DoubleDestroys())
}

func TestBorrowedMeshOutlivesObjects(t *testing.T) {
	s, r, backend := newStore(t)
	mesh := cube(t, r)
	t.Cleanup(mesh.Dispose)

	a, err := s.Create(own.Borrowed(mesh.MustValue()))
	require.NoError(t, err)
	b, err := s.Create(own.Borrowed(mesh.MustValue()))
	require.NoError(t, err)
	s.ApplyAdd()

	a.Terminate()
	b.Terminate()
	s.ApplyRemove()

	assert.NoError(t, mesh.MustValue().VertexBuffer().Validate())
	mesh.Dispose()
	assert.Equal(t, 0, backend.Live(renderer.KindBuffer))
}

func TestAddThenTerminateNeverRuns(t *testing.T) {
	s, r, backend := newStore(t)
	obj, err := s.Create(own.FromOwn(cube(t, r)))
	require.NoError(t, err)
	alive, updates := 0, 0
	obj.OnAlive(func(scene.FrameObject) { alive++ })
	obj.OnUpdate(func(scene.FrameObject) { updates++ })

	require.True(t, obj.Terminate())
	s.ApplyAdd()
	s.Update()
	s.ApplyRemove()

	assert.Zero(t, alive)
	assert.Zero(t, updates)
	assert.Equal(t, operation.LifeStateDead, obj.LifeState())
	assert.Zero(t, s.Len())
	assert.Zero(t, backend.Live(renderer.KindBindGroup))
	assert.Empty(t, backend.DoubleDestroys())
}

func TestFrozenSkipsUpdatesButStillDraws(t *testing.T) {
	s, r, _ := newStore(t)
	obj, err := s.Create(own.FromOwn(cube(t, r)), scene.WithFrozen(true))
	require.NoError(t, err)
	s.ApplyAdd()

	calls := 0
	obj.OnEarlyUpdate(func(scene.FrameObject) { calls++ })
	obj.OnUpdate(func(scene.FrameObject) { calls++ })
	obj.OnLateUpdate(func(scene.FrameObject) { calls++ })
	s.EarlyUpdate()
	s.Update()
	s.LateUpdate()
	assert.Zero(t, calls)
	assert.Len(t, s.Drawable(), 1)
	assert.Len(t, s.ShadowCasters(), 1)

	obj.SetFrozen(false)
	s.EarlyUpdate()
	s.Update()
	s.LateUpdate()
	assert.Equal(t, 3, calls)
}

func TestUpdatePanicIsSuppressed(t *testing.T) {
	s, r, _ := newStore(t)
	bad, err := s.Create(own.FromOwn(cube(t, r)))
	require.NoError(t, err)
	good, err := s.Create(own.FromOwn(cube(t, r)))
	require.NoError(t, err)
	s.ApplyAdd()

	bad.OnUpdate(func(scene.FrameObject) { panic("boom") })
	ran := false
	good.OnUpdate(func(scene.FrameObject) { ran = true })

	assert.NotPanics(t, s.Update)
	assert.True(t, ran)
}

func TestPrepareForRenderWritesOnlyChanges(t *testing.T) {
	s, r, backend := newStore(t)
	obj, err := s.Create(own.FromOwn(cube(t, r)))
	require.NoError(t, err)
	s.ApplyAdd()

	group := obj.BindGroup()
	buffer := group.Buffers()[0]
	require.Len(t, backend.Written(buffer.Handle()), 96)

	obj.SetPosition(common.Vec3{1, 2, 3})
	obj.SetAlbedo([4]float32{1, 0, 0, 1})
	require.NoError(t, s.PrepareForRender())

	m := obj.ModelMatrix()
	assert.Equal(t, float32(1), m[12])
	assert.Equal(t, float32(3), m[14])
	written := backend.Written(buffer.Handle())
	assert.Equal(t, (&scene.GPUObjectUniform{
		Model:    obj.ModelMatrix(),
		Albedo:   [4]float32{1, 0, 0, 1},
		Material: [4]float32{0, 0.5, 1, 0},
	}).Marshal(), written)

	// an unchanged setter does not dirty the object
	obj.SetPosition(common.Vec3{1, 2, 3})
	require.NoError(t, buffer.Write(0, make([]byte, 96)))
	require.NoError(t, s.PrepareForRender())
	assert.Equal(t, make([]byte, 96), backend.Written(buffer.Handle()))
}

func TestShadowLayoutAddsShadowGroup(t *testing.T) {
	backend := renderertest.NewBackend()
	r, err := renderer.NewRenderer(backend)
	require.NoError(t, err)
	t.Cleanup(r.Close)

	layout, err := r.CreateBindGroupLayout(renderer.BindGroupLayoutDescriptor{
		Label: "model",
		Entries: []gputypes.BindGroupLayoutEntry{{
			Binding:    0,
			Visibility: gputypes.ShaderStageVertex,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
		}},
	})
	require.NoError(t, err)
	t.Cleanup(layout.Dispose)

	s, err := scene.NewStore(r, scene.WithShadowLayout(layout.MustValue()))
	require.NoError(t, err)
	t.Cleanup(s.Close)

	obj, err := s.Create(own.Maybe[*scene.Mesh]{})
	require.NoError(t, err)
	require.NotNil(t, obj.ShadowBindGroup())
	assert.Same(t, obj.BindGroup().Buffers()[0], obj.ShadowBindGroup().Buffers()[0])

	s.ApplyAdd()
	assert.Empty(t, s.ShadowCasters(), "objects without a mesh are never drawn")
}

func TestCreateFailureReleasesOwnedMesh(t *testing.T) {
	s, r, backend := newStore(t)
	mesh := cube(t, r)

	backend.FailNext(renderer.KindBindGroup, 1)
	_, err := s.Create(own.FromOwn(mesh))

	var ce *renderer.CreationError
	require.ErrorAs(t, err, &ce)
	assert.True(t, mesh.IsNone())
	assert.Zero(t, backend.Live(renderer.KindBuffer))
	adds, _ := s.Pending()
	assert.Zero(t, adds)
}

func TestQueuesDriveMerges(t *testing.T) {
	created := timing.NewQueue("created")
	destroyed := timing.NewQueue("destroyed")
	s, r, _ := newStore(t, scene.WithQueues(created, destroyed))

	obj, err := s.Create(own.FromOwn(cube(t, r)))
	require.NoError(t, err)
	created.DoQueuedEvents()
	assert.Equal(t, operation.LifeStateAlive, obj.LifeState())

	obj.Terminate()
	destroyed.DoQueuedEvents()
	assert.Equal(t, operation.LifeStateDead, obj.LifeState())
}

func TestConcurrentCreateAndTerminate(t *testing.T) {
	s, r, backend := newStore(t)
	mesh := cube(t, r)
	t.Cleanup(mesh.Dispose)

	var wg sync.WaitGroup
	for range 16 {
		wg.Go(func() {
			obj, err := s.Create(own.Borrowed(mesh.MustValue()))
			if assert.NoError(t, err) {
				obj.Terminate()
			}
		})
	}
	wg.Wait()

	s.ApplyAdd()
	s.ApplyRemove()
	assert.Zero(t, s.Len())
	adds, removes := s.Pending()
	assert.Zero(t, adds)
	assert.Zero(t, removes)
	assert.Zero(t, backend.Live(renderer.KindBindGroup))
}

func TestCloseTerminatesEverything(t *testing.T) {
	s, r, backend := newStore(t)
	dead := 0
	for range 3 {
		obj, err := s.Create(own.FromOwn(cube(t, r)))
		require.NoError(t, err)
		obj.OnDead(func(scene.FrameObject) { dead++ })
	}
	s.ApplyAdd()

	s.Close()
	s.Close()

	assert.Equal(t, 3, dead)
	assert.Zero(t, r.LiveResources())
	assert.Empty(t, backend.DoubleDestroys())
	_, err := s.Create(own.Maybe[*scene.Mesh]{})
	assert.ErrorIs(t, err, scene.ErrStoreClosed)
}
