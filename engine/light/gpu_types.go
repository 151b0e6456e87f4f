package light

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/Carmen-Shannon/hikari/common"
)

// GPUDirectionalLightSource is the canonical WGSL definition of the DirectionalLight struct.
// Matches GPUDirectionalLight layout exactly (48 bytes, uniform aligned).
//
//go:embed assets/directional_light.wgsl
var GPUDirectionalLightSource string

// GPUDirectionalLight is the GPU-aligned representation of the directional light.
// Matches the WGSL DirectionalLight struct layout exactly (see GPUDirectionalLightSource).
// Size: 48 bytes.
type GPUDirectionalLight struct {
	Direction    common.Vec3 // offset  0: normalized travel direction
	Intensity    float32     // offset 12: scalar multiplier
	Color        common.Vec3 // offset 16: RGB color
	Ambient      float32     // offset 28: ambient strength
	CascadeCount uint32      // offset 32: number of cascades bound
	PCF          uint32      // offset 36: 1 = 4x4 PCF, 0 = single comparison
	CastsShadows uint32      // offset 40: 1 = shadow lookups enabled
	ShadowBias   float32     // offset 44: constant comparison bias
}

// Size returns the size of the GPUDirectionalLight struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (48)
func (g *GPUDirectionalLight) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUDirectionalLight struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 48-byte buffer ready for GPU upload
func (g *GPUDirectionalLight) Marshal() []byte {
	buf := make([]byte, 48)
	putVec3(buf[0:], g.Direction)
	binary.LittleEndian.PutUint32(buf[12:16], math.Float32bits(g.Intensity))
	putVec3(buf[16:], g.Color)
	binary.LittleEndian.PutUint32(buf[28:32], math.Float32bits(g.Ambient))
	binary.LittleEndian.PutUint32(buf[32:36], g.CascadeCount)
	binary.LittleEndian.PutUint32(buf[36:40], g.PCF)
	binary.LittleEndian.PutUint32(buf[40:44], g.CastsShadows)
	binary.LittleEndian.PutUint32(buf[44:48], math.Float32bits(g.ShadowBias))
	return buf
}

// ToGPUDirectionalLight snapshots a DirectionalLight into its uniform representation.
//
// Parameters:
//   - l: the light
//   - cascades: the number of cascades currently allocated
//
// Returns:
//   - GPUDirectionalLight: the uniform data
func ToGPUDirectionalLight(l DirectionalLight, cascades int) GPUDirectionalLight {
	return GPUDirectionalLight{
		Direction:    l.Direction(),
		Intensity:    l.Intensity(),
		Color:        l.Color(),
		Ambient:      l.Ambient(),
		CascadeCount: uint32(cascades),
		PCF:          boolToU32(l.PCF()),
		CastsShadows: boolToU32(l.CastsShadows()),
		ShadowBias:   DefaultShadowBias,
	}
}

// GPUCascadeIndex is the per-cascade uniform telling the depth pipeline which matrix to use.
// Size: 16 bytes (padded to the uniform alignment).
type GPUCascadeIndex struct {
	Index uint32
	_pad  [3]uint32
}

// Marshal serializes the GPUCascadeIndex into a 16-byte buffer.
func (g *GPUCascadeIndex) Marshal() []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[0:4], g.Index)
	return buf
}

// MarshalMatrices serializes cascade light matrices for the matrices storage buffer (64 bytes each).
//
// Parameters:
//   - matrices: the per-cascade light view-projection matrices
//
// Returns:
//   - []byte: the serialized array<mat4x4<f32>>
func MarshalMatrices(matrices []common.Mat4) []byte {
	buf := make([]byte, 64*len(matrices))
	for i, m := range matrices {
		for k := range 16 {
			binary.LittleEndian.PutUint32(buf[i*64+k*4:], math.Float32bits(m[k]))
		}
	}
	return buf
}

// MarshalFars serializes the fars storage buffer: the cascade far distances followed by the
// light-space depth range of each cascade.
//
// Parameters:
//   - fars: the cascade far distances
//   - depthRanges: the per-cascade light-space depth ranges, same length as fars
//
// Returns:
//   - []byte: the serialized array<f32> of length 2 * len(fars)
func MarshalFars(fars, depthRanges []float32) []byte {
	buf := make([]byte, 4*(len(fars)+len(depthRanges)))
	for i, f := range fars {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	off := 4 * len(fars)
	for i, r := range depthRanges {
		binary.LittleEndian.PutUint32(buf[off+i*4:], math.Float32bits(r))
	}
	return buf
}

func putVec3(buf []byte, v common.Vec3) {
	for i := range 3 {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v[i]))
	}
}

func boolToU32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
