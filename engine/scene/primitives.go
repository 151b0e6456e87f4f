package scene

import "github.com/Carmen-Shannon/hikari/common"

// CubeGeometry returns a unit cube centered at the origin with per-face normals.
//
// Returns:
//   - []GPUVertex: 24 vertices, four per face
//   - []uint32: 36 indices, counter-clockwise front faces
func CubeGeometry() ([]GPUVertex, []uint32) {
	faces := [6]struct {
		normal, u, v common.Vec3
	}{
		{common.Vec3{0, 0, 1}, common.Vec3{1, 0, 0}, common.Vec3{0, 1, 0}},
		{common.Vec3{0, 0, -1}, common.Vec3{-1, 0, 0}, common.Vec3{0, 1, 0}},
		{common.Vec3{1, 0, 0}, common.Vec3{0, 0, -1}, common.Vec3{0, 1, 0}},
		{common.Vec3{-1, 0, 0}, common.Vec3{0, 0, 1}, common.Vec3{0, 1, 0}},
		{common.Vec3{0, 1, 0}, common.Vec3{1, 0, 0}, common.Vec3{0, 0, -1}},
		{common.Vec3{0, -1, 0}, common.Vec3{1, 0, 0}, common.Vec3{0, 0, 1}},
	}
	corners := [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}

	vertices := make([]GPUVertex, 0, 24)
	indices := make([]uint32, 0, 36)
	for _, f := range faces {
		base := uint32(len(vertices))
		for _, c := range corners {
			p := f.normal.Add(f.u.Scale(c[0])).Add(f.v.Scale(c[1])).Scale(0.5)
			vertices = append(vertices, GPUVertex{
				Position: p,
				Normal:   f.normal,
				TexCoord: [2]float32{(c[0] + 1) / 2, (1 - c[1]) / 2},
			})
		}
		indices = append(indices, base, base+1, base+2, base, base+2, base+3)
	}
	return vertices, indices
}

// PlaneGeometry returns a square on the XZ plane facing +Y.
//
// Parameters:
//   - size: the edge length
//
// Returns:
//   - []GPUVertex: 4 vertices
//   - []uint32: 6 indices
func PlaneGeometry(size float32) ([]GPUVertex, []uint32) {
	h := size / 2
	up := common.Vec3{0, 1, 0}
	vertices := []GPUVertex{
		{Position: common.Vec3{-h, 0, h}, Normal: up, TexCoord: [2]float32{0, 1}},
		{Position: common.Vec3{h, 0, h}, Normal: up, TexCoord: [2]float32{1, 1}},
		{Position: common.Vec3{h, 0, -h}, Normal: up, TexCoord: [2]float32{1, 0}},
		{Position: common.Vec3{-h, 0, -h}, Normal: up, TexCoord: [2]float32{0, 0}},
	}
	return vertices, []uint32{0, 1, 2, 0, 2, 3}
}
