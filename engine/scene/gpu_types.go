package scene

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/Carmen-Shannon/hikari/common"
	"github.com/gogpu/gputypes"
)

// GPUObjectSource is the canonical WGSL definition of the VertexInput and ObjectUniform structs.
// Matches GPUVertex and GPUObjectUniform exactly.
//
//go:embed assets/object.wgsl
var GPUObjectSource string

// GPUVertex is the GPU-aligned representation of a single mesh vertex.
// Matches the WGSL VertexInput struct (see GPUObjectSource).
// Size: 32 bytes.
type GPUVertex struct {
	Position common.Vec3 // offset  0: model-space position
	Normal   common.Vec3 // offset 12: model-space normal
	TexCoord [2]float32  // offset 24: UV coordinate
}

// Size returns the size of the GPUVertex struct in bytes.
//
// Returns:
//   - int: the size of the struct in bytes (32)
func (g *GPUVertex) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUVertex struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 32-byte buffer ready for GPU upload
func (g *GPUVertex) Marshal() []byte {
	buf := make([]byte, 32)
	putFloats(buf[0:], g.Position[:])
	putFloats(buf[12:], g.Normal[:])
	putFloats(buf[24:], g.TexCoord[:])
	return buf
}

// VertexLayout returns the vertex buffer layout of GPUVertex for the geometry pipeline.
func VertexLayout() gputypes.VertexBufferLayout {
	return gputypes.VertexBufferLayout{
		ArrayStride: 32,
		StepMode:    gputypes.VertexStepModeVertex,
		Attributes: []gputypes.VertexAttribute{
			{Format: gputypes.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
			{Format: gputypes.VertexFormatFloat32x3, Offset: 12, ShaderLocation: 1},
			{Format: gputypes.VertexFormatFloat32x2, Offset: 24, ShaderLocation: 2},
		},
	}
}

// PositionLayout returns a layout over the same vertex buffers that exposes only the position at location 0.
// Depth-only pipelines use it to read mesh vertex buffers directly.
func PositionLayout() gputypes.VertexBufferLayout {
	return gputypes.VertexBufferLayout{
		ArrayStride: 32,
		StepMode:    gputypes.VertexStepModeVertex,
		Attributes: []gputypes.VertexAttribute{
			{Format: gputypes.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
		},
	}
}

// GPUObjectUniform is the per-object uniform read by the geometry and shadow pipelines.
// The model matrix comes first so the shadow pipeline can bind the same buffer as a bare mat4x4.
// Size: 96 bytes.
type GPUObjectUniform struct {
	Model    common.Mat4 // offset  0
	Albedo   [4]float32  // offset 64: RGBA base color
	Material [4]float32  // offset 80: metallic, roughness, ambient occlusion, unused
}

// Size returns the size of the GPUObjectUniform struct in bytes.
func (g *GPUObjectUniform) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUObjectUniform struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 96-byte buffer ready for GPU upload
func (g *GPUObjectUniform) Marshal() []byte {
	buf := make([]byte, 96)
	putFloats(buf[0:], g.Model[:])
	putFloats(buf[64:], g.Albedo[:])
	putFloats(buf[80:], g.Material[:])
	return buf
}

// MarshalVertices serializes a vertex slice for upload.
func MarshalVertices(vertices []GPUVertex) []byte {
	buf := make([]byte, 0, 32*len(vertices))
	for i := range vertices {
		buf = append(buf, vertices[i].Marshal()...)
	}
	return buf
}

// MarshalIndices serializes uint32 indices for upload.
func MarshalIndices(indices []uint32) []byte {
	buf := make([]byte, 4*len(indices))
	for i, idx := range indices {
		binary.LittleEndian.PutUint32(buf[i*4:], idx)
	}
	return buf
}

func putFloats(buf []byte, values []float32) {
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
}
