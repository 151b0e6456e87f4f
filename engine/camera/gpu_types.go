package camera

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/Carmen-Shannon/hikari/common"
)

// GPUCameraUniformSource is the canonical WGSL definition of the CameraUniform struct.
// Matches GPUCameraUniform layout exactly (272 bytes).
//
//go:embed assets/camera_uniform.wgsl
var GPUCameraUniformSource string

// GPUCameraUniform is the GPU-aligned representation of the camera uniform buffer.
// Matches the WGSL CameraUniform struct layout exactly (see GPUCameraUniformSource).
// Size: 272 bytes.
type GPUCameraUniform struct {
	ViewProj [16]float32 // offset   0
	View     [16]float32 // offset  64
	Proj     [16]float32 // offset 128
	InvView  [16]float32 // offset 192
	Position common.Vec3 // offset 256: world-space eye position
	Near     float32     // offset 268
}

// Size returns the size of the GPUCameraUniform struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (272)
func (g *GPUCameraUniform) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUCameraUniform struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: the serialized byte buffer
func (g *GPUCameraUniform) Marshal() []byte {
	buf := make([]byte, g.Size())
	off := 0
	for _, m := range [...]*[16]float32{&g.ViewProj, &g.View, &g.Proj, &g.InvView} {
		for i := range 16 {
			binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(m[i]))
			off += 4
		}
	}
	for i := range 3 {
		binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(g.Position[i]))
		off += 4
	}
	binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(g.Near))
	return buf
}

// ToGPUCamera snapshots a Camera into its uniform representation.
func ToGPUCamera(c Camera) GPUCameraUniform {
	return GPUCameraUniform{
		ViewProj: c.ViewProjectionMatrix(),
		View:     c.ViewMatrix(),
		Proj:     c.ProjectionMatrix(),
		InvView:  c.InverseViewMatrix(),
		Position: c.Position(),
		Near:     c.Near(),
	}
}
