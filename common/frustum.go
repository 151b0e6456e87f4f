package common

import "github.com/chewxy/math32"

// Plane is the plane Normal·p + Distance = 0.
type Plane struct {
	Normal   Vec3
	Distance float32
}

// Frustum holds the six planes of a view frustum, oriented so that the positive half-space is inside.
type Frustum struct {
	Planes [6]Plane // Left, Right, Bottom, Top, Near, Far
}

const (
	FrustumLeft = iota
	FrustumRight
	FrustumBottom
	FrustumTop
	FrustumNear
	FrustumFar
)

// Sphere is a bounding sphere.
type Sphere struct {
	Center Vec3
	Radius float32
}

// ExtractFrustum extracts normalized frustum planes from a view-projection matrix
// (Gribb/Hartmann, WebGPU [0, 1] depth so the near plane is row 2 alone).
//
// Parameters:
//   - viewProj: the combined projection * view matrix
//
// Returns:
//   - Frustum: the extracted frustum
func ExtractFrustum(viewProj Mat4) Frustum {
	row := func(r int) [4]float32 {
		return [4]float32{viewProj[r], viewProj[4+r], viewProj[8+r], viewProj[12+r]}
	}
	r0, r1, r2, r3 := row(0), row(1), row(2), row(3)
	plane := func(a [4]float32, b [4]float32, sign float32) Plane {
		return Plane{
			Normal:   Vec3{a[0] + sign*b[0], a[1] + sign*b[1], a[2] + sign*b[2]},
			Distance: a[3] + sign*b[3],
		}
	}

	var f Frustum
	f.Planes[FrustumLeft] = plane(r3, r0, 1)
	f.Planes[FrustumRight] = plane(r3, r0, -1)
	f.Planes[FrustumBottom] = plane(r3, r1, 1)
	f.Planes[FrustumTop] = plane(r3, r1, -1)
	f.Planes[FrustumNear] = Plane{Normal: Vec3{r2[0], r2[1], r2[2]}, Distance: r2[3]}
	f.Planes[FrustumFar] = plane(r3, r2, -1)

	for i := range f.Planes {
		p := &f.Planes[i]
		if l := p.Normal.Length(); l > 0 {
			p.Normal = p.Normal.Scale(1 / l)
			p.Distance /= l
		}
	}
	return f
}

// IntersectsSphere reports whether any part of s is inside the frustum.
func (f Frustum) IntersectsSphere(s Sphere) bool {
	for _, p := range f.Planes {
		if p.Normal.Dot(s.Center)+p.Distance < -s.Radius {
			return false
		}
	}
	return true
}

// FrustumCorners returns the eight world-space corners of the frustum described by the inverse of a
// view-projection matrix. The first four are on the near plane, the last four on the far plane.
func FrustumCorners(invViewProj Mat4) [8]Vec3 {
	var out [8]Vec3
	i := 0
	for _, z := range [2]float32{0, 1} {
		for _, y := range [2]float32{-1, 1} {
			for _, x := range [2]float32{-1, 1} {
				out[i] = invViewProj.TransformPoint(Vec3{x, y, z})
				i++
			}
		}
	}
	return out
}

// Bounds returns the axis-aligned min and max of points.
func Bounds(points []Vec3) (min, max Vec3) {
	if len(points) == 0 {
		return
	}
	min, max = points[0], points[0]
	for _, p := range points[1:] {
		for k := 0; k < 3; k++ {
			min[k] = math32.Min(min[k], p[k])
			max[k] = math32.Max(max[k], p[k])
		}
	}
	return min, max
}
