package light

import (
	"github.com/Carmen-Shannon/hikari/common"
	"github.com/chewxy/math32"
	"github.com/gogpu/gputypes"
)

// ShadowMapResolution is the default width and height in texels of each cascade's
// depth texture. Lights use this as their initial value but can override it
// via the WithShadowMap builder option.
const ShadowMapResolution = 2048

// DefaultCascadeCount is the number of cascades a new light splits the view into.
const DefaultCascadeCount = 4

// MaxCascadeCount bounds the cascade count so that the lighting bind group stays
// under the per-stage sampled texture limit.
const MaxCascadeCount = 8

// DefaultMaxShadowDistance is the default view distance at which the last cascade ends.
// Fragments farther away are always lit.
const DefaultMaxShadowDistance float32 = 100.0

// DefaultAmbient is the default ambient strength of a directional light.
const DefaultAmbient float32 = 0.1

// DefaultShadowBias is the constant depth bias applied to shadow comparisons
// to reduce shadow acne artifacts. It is divided by the cascade number, since
// nearer cascades have smaller texels.
const DefaultShadowBias float32 = 0.001

// DefaultMaxSlopeBiasScale caps the slope term of the comparison bias for
// surfaces nearly parallel to the light.
const DefaultMaxSlopeBiasScale float32 = 10.0

// DefaultDepthBias and DefaultDepthBiasSlopeScale are the rasterizer bias of the
// cascade depth pipelines.
const (
	DefaultDepthBias           int32   = 2
	DefaultDepthBiasSlopeScale float32 = 2.0
)

// DefaultCasterPullback extends each cascade's light-space depth range toward the
// light by this multiple of the range, so that casters outside the camera
// sub-frustum still land in the shadow map.
const DefaultCasterPullback float32 = 5.0

// ShadowDepthFormat is the format of every cascade depth texture.
const ShadowDepthFormat = gputypes.TextureFormatDepth32Float

// PCFKernelSize is the width of the percentage-closer filter footprint in texels.
const PCFKernelSize = 4

// SplitDistances returns the far distance of each cascade, spaced logarithmically
// between near and far. The last entry equals far and the values are strictly increasing.
//
// Parameters:
//   - near: the camera near plane distance (> 0)
//   - far: the distance at which the last cascade ends (> near)
//   - count: the number of cascades
//
// Returns:
//   - []float32: count far distances
func SplitDistances(near, far float32, count int) []float32 {
	fars := make([]float32, count)
	ratio := far / near
	for i := range count {
		fars[i] = near * math32.Pow(ratio, float32(i+1)/float32(count))
	}
	fars[count-1] = far
	return fars
}

// FitCascade fits an orthographic light projection around one camera sub-frustum.
//
// The sub-frustum between near and far is transformed into the light's view, its
// axis-aligned bounds become the ortho volume, and the near plane is pulled back
// toward the light by pullback times the depth extent.
//
// Parameters:
//   - view: the camera view matrix
//   - fovY: the camera vertical field of view in radians
//   - aspect: the camera aspect ratio
//   - near: the cascade's near distance
//   - far: the cascade's far distance
//   - direction: the normalized light direction
//   - pullback: the caster pullback factor
//
// Returns:
//   - common.Mat4: the light view-projection matrix of the cascade
//   - float32: the light-space depth range covered by the matrix
func FitCascade(view common.Mat4, fovY, aspect, near, far float32, direction common.Vec3, pullback float32) (common.Mat4, float32) {
	sub := common.Perspective(fovY, aspect, near, far).Mul(view)
	inv, ok := sub.Inverse()
	if !ok {
		return common.Identity(), 0
	}
	corners := common.FrustumCorners(inv)

	var center common.Vec3
	for _, c := range corners {
		center = center.Add(c)
	}
	center = center.Scale(1.0 / float32(len(corners)))

	up := common.Vec3{0, 1, 0}
	if math32.Abs(direction.Dot(up)) > 0.99 {
		up = common.Vec3{0, 0, 1}
	}
	lightView := common.LookAt(center.Sub(direction), center, up)

	var local [8]common.Vec3
	for i, c := range corners {
		local[i] = lightView.TransformPoint(c)
	}
	lo, hi := common.Bounds(local[:])
	extent := hi.Sub(lo)

	depthNear := -hi[2] - extent[2]*pullback
	depthFar := -lo[2]
	proj := common.Ortho(lo[0], hi[0], lo[1], hi[1], depthNear, depthFar)
	return proj.Mul(lightView), depthFar - depthNear
}

// CascadeIndex returns the first cascade whose far distance is beyond distance.
// Distances are view-space depths measured along the camera's forward axis, the same
// measure as the near and far planes SplitDistances divides.
//
// Returns:
//   - int: the cascade index, or -1 when distance is past every cascade
func CascadeIndex(distance float32, fars []float32) int {
	for i, f := range fars {
		if distance < f {
			return i
		}
	}
	return -1
}

// CascadeVisibility resolves the shadow visibility of a fragment at a view distance.
// It is the CPU reference of the lighting shader's cascade selection.
//
// Fragments past the last cascade are fully lit. Inside the last cascade the result
// blends the last two cascades by the fractional distance through the last span, so
// shadows fade into the previous cascade's lower resolution instead of popping.
//
// Parameters:
//   - distance: the fragment's view-space depth along the camera's forward axis, not its euclidean distance from the eye
//   - fars: the cascade far distances, strictly increasing
//   - sample: returns the raw visibility in [0, 1] of the fragment in cascade i
//
// Returns:
//   - float32: the visibility in [0, 1]
func CascadeVisibility(distance float32, fars []float32, sample func(cascade int) float32) float32 {
	i := CascadeIndex(distance, fars)
	if i < 0 {
		return 1
	}
	n := len(fars)
	if i < n-1 || n == 1 {
		return sample(i)
	}
	t := (distance - fars[n-2]) / (fars[n-1] - fars[n-2])
	t = min(max(t, 0), 1)
	return (1-t)*sample(n-2) + t*sample(n-1)
}

// ComparisonBias returns the depth comparison bias for a surface in a cascade.
// The bias grows with the slope of the surface relative to the light and shrinks
// with the cascade number.
//
// Parameters:
//   - nDotL: the cosine between the surface normal and the direction to the light
//   - cascade: the cascade index
//
// Returns:
//   - float32: the bias to subtract from the fragment's light-space depth
func ComparisonBias(nDotL float32, cascade int) float32 {
	c := min(max(nDotL, 0.01), 1)
	slope := min(math32.Sqrt(1-c*c)/c, DefaultMaxSlopeBiasScale)
	return DefaultShadowBias * (1 + slope) / float32(cascade+1)
}

// ShadowUV maps a light clip-space position to shadow map coordinates. Y is flipped
// since texture rows grow downward.
func ShadowUV(clip common.Vec3) (u, v, depth float32) {
	return clip[0]*0.5 + 0.5, -clip[1]*0.5 + 0.5, clip[2]
}

// PCF filters PCFKernelSize x PCFKernelSize depth comparisons around (u, v) with
// bilinear edge weights. The lighting shader performs the same computation.
//
// Coordinates outside [0, 1] and depths outside the cascade's depth range are lit.
//
// Parameters:
//   - depthAt: reads the stored depth at texel (x, y)
//   - size: the shadow map resolution
//   - u, v: the shadow map coordinates
//   - refZ: the biased fragment depth
//
// Returns:
//   - float32: the lit fraction in [0, 1]
func PCF(depthAt func(x, y int) float32, size int, u, v, refZ float32) float32 {
	if u < 0 || u > 1 || v < 0 || v > 1 || refZ < 0 || refZ > 1 {
		return 1
	}
	px, py := u*float32(size), v*float32(size)
	fx, fy := math32.Floor(px), math32.Floor(py)
	dx, dy := px-fx, py-fy
	wx := [PCFKernelSize]float32{1 - dx, 1, 1, dx}
	wy := [PCFKernelSize]float32{1 - dy, 1, 1, dy}

	var lit float32
	for j := range PCFKernelSize {
		y := min(max(int(fy)-1+j, 0), size-1)
		for i := range PCFKernelSize {
			x := min(max(int(fx)-1+i, 0), size-1)
			if refZ <= depthAt(x, y) {
				lit += wx[i] * wy[j]
			}
		}
	}
	return lit / 9
}
