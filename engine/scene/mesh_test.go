package scene_test

import (
	"testing"

	"github.com/Carmen-Shannon/hikari/common"
	"github.com/Carmen-Shannon/hikari/engine/own"
	"github.com/Carmen-Shannon/hikari/engine/renderer"
	"github.com/Carmen-Shannon/hikari/engine/renderer/renderertest"
	"github.com/Carmen-Shannon/hikari/engine/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMeshUploadsAndBounds(t *testing.T) {
	backend := renderertest.NewBackend()
	r, err := renderer.NewRenderer(backend)
	require.NoError(t, err)
	t.Cleanup(r.Close)

	vertices, indices := scene.CubeGeometry()
	require.Len(t, vertices, 24)
	require.Len(t, indices, 36)

	m, err := scene.NewMesh(r, "cube", vertices, indices)
	require.NoError(t, err)
	mesh := m.MustValue()

	assert.Equal(t, uint32(36), mesh.IndexCount())
	assert.Equal(t, uint64(24*32), mesh.VertexBuffer().Size())
	assert.Equal(t, scene.MarshalIndices(indices), backend.Written(mesh.IndexBuffer().Handle()))
	assert.InDelta(t, 0, mesh.Bounds().Center.Length(), 1e-6)
	assert.InDelta(t, 0.8660254, mesh.Bounds().Radius, 1e-5)

	m.Dispose()
	m.Dispose()
	assert.Zero(t, r.LiveResources())
	assert.Empty(t, backend.DoubleDestroys())
}

func TestNewMeshRejectsBadInput(t *testing.T) {
	backend := renderertest.NewBackend()
	r, err := renderer.NewRenderer(backend)
	require.NoError(t, err)
	t.Cleanup(r.Close)

	_, err = scene.NewMesh(r, "empty", nil, nil)
	assert.ErrorIs(t, err, scene.ErrEmptyMesh)

	vertices, _ := scene.PlaneGeometry(2)
	_, err = scene.NewMesh(r, "bad", vertices, []uint32{0, 1, 9})
	assert.Error(t, err)

	backend.FailNext(renderer.KindBuffer, 1)
	vertices, indices := scene.PlaneGeometry(2)
	m, err := scene.NewMesh(r, "plane", vertices, indices)
	assert.Error(t, err)
	assert.True(t, m.IsNone())
	assert.Zero(t, r.LiveResources())
}

func TestObjectBoundsFollowTransform(t *testing.T) {
	s, r, _ := newStore(t)
	obj, err := s.Create(own.FromOwn(cube(t, r)),
		scene.WithPosition(common.Vec3{10, 0, 0}),
		scene.WithScale(common.Vec3{1, 4, 1}),
	)
	require.NoError(t, err)

	b := obj.Bounds()
	assert.InDelta(t, 10, b.Center[0], 1e-5)
	assert.InDelta(t, 4*0.8660254, b.Radius, 1e-4)

	obj.SetScale(common.Vec3{2, 2, 2})
	assert.InDelta(t, 2*0.8660254, obj.Bounds().Radius, 1e-4)
}

func TestGPUObjectUniformLayout(t *testing.T) {
	u := scene.GPUObjectUniform{Albedo: [4]float32{1, 2, 3, 4}}
	assert.Equal(t, 96, u.Size())
	assert.Len(t, u.Marshal(), 96)
	v := scene.GPUVertex{}
	assert.Equal(t, 32, v.Size())
	assert.EqualValues(t, 32, scene.VertexLayout().ArrayStride)
	assert.Equal(t, scene.VertexLayout().ArrayStride, scene.PositionLayout().ArrayStride)
	assert.Contains(t, scene.GPUObjectSource, "struct ObjectUniform")
}
