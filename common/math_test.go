package common_test

import (
	"testing"

	"github.com/Carmen-Shannon/hikari/common"
	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertVec(t *testing.T, want, got common.Vec3) {
	t.Helper()
	for i := range 3 {
		assert.InDelta(t, want[i], got[i], 1e-4, "component %d of %v", i, got)
	}
}

func TestPerspectiveMapsDepthToUnitRange(t *testing.T) {
	p := common.Perspective(math32.Pi/3, 16.0/9.0, 0.5, 50)

	assert.InDelta(t, 0, p.TransformPoint(common.Vec3{0, 0, -0.5})[2], 1e-5)
	assert.InDelta(t, 1, p.TransformPoint(common.Vec3{0, 0, -50})[2], 1e-5)
	mid := p.TransformPoint(common.Vec3{0, 0, -5})[2]
	assert.Greater(t, mid, float32(0))
	assert.Less(t, mid, float32(1))
}

func TestOrthoMapsBoxToClipSpace(t *testing.T) {
	o := common.Ortho(-2, 2, -1, 1, 1, 11)

	assertVec(t, common.Vec3{-1, -1, 0}, o.TransformPoint(common.Vec3{-2, -1, -1}))
	assertVec(t, common.Vec3{1, 1, 1}, o.TransformPoint(common.Vec3{2, 1, -11}))
}

func TestLookAtMovesTargetOntoNegativeZ(t *testing.T) {
	v := common.LookAt(common.Vec3{0, 0, 5}, common.Vec3{}, common.Vec3{0, 1, 0})
	assertVec(t, common.Vec3{0, 0, -5}, v.TransformPoint(common.Vec3{}))

	// an up vector parallel to the view direction still yields a usable matrix
	straightDown := common.LookAt(common.Vec3{0, 10, 0}, common.Vec3{}, common.Vec3{0, 1, 0})
	assertVec(t, common.Vec3{0, 0, -10}, straightDown.TransformPoint(common.Vec3{}))
}

func TestInverseOfModelMatrix(t *testing.T) {
	m := common.ModelMatrix(common.Vec3{1, 2, 3}, common.Vec3{0.3, 1.1, -0.4}, common.Vec3{2, 2, 2})

	inv, ok := m.Inverse()
	require.True(t, ok)
	id := m.Mul(inv)
	for i, want := range common.Identity() {
		assert.InDelta(t, want, id[i], 1e-4, "element %d", i)
	}

	_, ok = common.Mat4{}.Inverse()
	assert.False(t, ok)
}

func TestModelMatrixTranslatesThenScales(t *testing.T) {
	m := common.ModelMatrix(common.Vec3{1, 0, 0}, common.Vec3{}, common.Vec3{2, 3, 4})
	assertVec(t, common.Vec3{3, 3, 4}, m.TransformPoint(common.Vec3{1, 1, 1}))
}

func TestVec3(t *testing.T) {
	a := common.Vec3{1, 0, 0}
	b := common.Vec3{0, 1, 0}

	assert.Equal(t, common.Vec3{0, 0, 1}, a.Cross(b))
	assert.Equal(t, float32(0), a.Dot(b))
	assert.Equal(t, common.Vec3{1, 1, 0}, a.Add(b))
	assert.Equal(t, common.Vec3{}, common.Vec3{}.Normalize())
	assert.InDelta(t, 1, common.Vec3{3, 4, 0}.Normalize().Length(), 1e-6)
}

func TestFrustumSphereCulling(t *testing.T) {
	f := common.ExtractFrustum(common.Ortho(-1, 1, -1, 1, 0.1, 10))

	assert.True(t, f.IntersectsSphere(common.Sphere{Center: common.Vec3{0, 0, -5}, Radius: 0.1}))
	assert.True(t, f.IntersectsSphere(common.Sphere{Center: common.Vec3{1.5, 0, -5}, Radius: 1}), "straddles the right plane")
	assert.False(t, f.IntersectsSphere(common.Sphere{Center: common.Vec3{5, 0, -5}, Radius: 1}))
	assert.False(t, f.IntersectsSphere(common.Sphere{Center: common.Vec3{0, 0, 2}, Radius: 1}), "behind the near plane")
	assert.False(t, f.IntersectsSphere(common.Sphere{Center: common.Vec3{0, 0, -20}, Radius: 1}), "beyond the far plane")
}

func TestFrustumCornersAndBounds(t *testing.T) {
	inv, ok := common.Ortho(-1, 1, -2, 2, 1, 9).Inverse()
	require.True(t, ok)

	corners := common.FrustumCorners(inv)
	for _, c := range corners[:4] {
		assert.InDelta(t, -1, c[2], 1e-4)
	}
	for _, c := range corners[4:] {
		assert.InDelta(t, -9, c[2], 1e-4)
	}

	lo, hi := common.Bounds(corners[:])
	assertVec(t, common.Vec3{-1, -2, -9}, lo)
	assertVec(t, common.Vec3{1, 2, -1}, hi)

	lo, hi = common.Bounds(nil)
	assert.Equal(t, common.Vec3{}, lo)
	assert.Equal(t, common.Vec3{}, hi)
}

func TestSize(t *testing.T) {
	assert.True(t, common.Size{Width: 0, Height: 10}.IsZero())
	assert.Equal(t, float32(1), common.Size{}.Aspect())
	assert.Equal(t, float32(2), common.Size{Width: 20, Height: 10}.Aspect())
}
