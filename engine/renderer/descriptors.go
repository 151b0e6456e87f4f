package renderer

import (
	"github.com/Carmen-Shannon/hikari/common"
	"github.com/gogpu/gputypes"
)

// bufferAlignment is the alignment WebGPU requires for buffer sizes and write offsets.
const bufferAlignment = 4

// BufferDescriptor describes a GPU buffer.
type BufferDescriptor struct {
	// Label names the buffer in backend diagnostics.
	Label string
	// Size in bytes. Must be a non-zero multiple of 4. May be left 0 when Contents is set,
	// in which case the size is len(Contents) rounded up to 4.
	Size uint64
	// Usage is the set of buffer usages.
	Usage gputypes.BufferUsage
	// Contents is optional initial data uploaded right after creation.
	Contents []byte
}

func (d *BufferDescriptor) normalize() error {
	if d.Size == 0 && len(d.Contents) > 0 {
		d.Size = alignUp(uint64(len(d.Contents)), bufferAlignment)
		if uint64(len(d.Contents)) != d.Size {
			padded := make([]byte, d.Size)
			copy(padded, d.Contents)
			d.Contents = padded
		}
	}
	if d.Size == 0 {
		return invalid(KindBuffer, d.Label, "size must be non-zero")
	}
	if d.Size%bufferAlignment != 0 {
		return invalid(KindBuffer, d.Label, "size %d is not a multiple of %d", d.Size, bufferAlignment)
	}
	if uint64(len(d.Contents)) > d.Size {
		return invalid(KindBuffer, d.Label, "contents (%d bytes) exceed size %d", len(d.Contents), d.Size)
	}
	if d.Usage == 0 {
		return invalid(KindBuffer, d.Label, "usage must be set")
	}
	return nil
}

// TextureDescriptor describes a 2D texture (optionally layered).
type TextureDescriptor struct {
	Label string
	// Size is the texel extent. DepthOrArrayLayers defaults to 1.
	Size gputypes.Extent3D
	// MipLevelCount defaults to 1.
	MipLevelCount uint32
	// SampleCount defaults to 1.
	SampleCount uint32
	Format      gputypes.TextureFormat
	Usage       gputypes.TextureUsage
}

func (d *TextureDescriptor) normalize() error {
	d.Size.DepthOrArrayLayers = common.Coalesce(d.Size.DepthOrArrayLayers, 1)
	d.MipLevelCount = common.Coalesce(d.MipLevelCount, 1)
	d.SampleCount = common.Coalesce(d.SampleCount, 1)
	if d.Size.Width == 0 || d.Size.Height == 0 {
		return invalid(KindTexture, d.Label, "zero-sized dimension %dx%d", d.Size.Width, d.Size.Height)
	}
	if d.Format == gputypes.TextureFormatUndefined {
		return invalid(KindTexture, d.Label, "format must be set")
	}
	if d.Usage == 0 {
		return invalid(KindTexture, d.Label, "usage must be set")
	}
	switch d.SampleCount {
	case 1, 4:
	default:
		return invalid(KindTexture, d.Label, "unsupported sample count %d", d.SampleCount)
	}
	return nil
}

// SamplerDescriptor describes a sampler. Zero fields fall back to clamp-to-edge addressing and linear filtering.
type SamplerDescriptor struct {
	Label        string
	AddressModeU gputypes.AddressMode
	AddressModeV gputypes.AddressMode
	MagFilter    gputypes.FilterMode
	MinFilter    gputypes.FilterMode
	// Compare makes this a comparison sampler when non-zero (shadow map lookups).
	Compare gputypes.CompareFunction
}

func (d *SamplerDescriptor) normalize() error {
	d.AddressModeU = common.Coalesce(d.AddressModeU, gputypes.AddressModeClampToEdge)
	d.AddressModeV = common.Coalesce(d.AddressModeV, gputypes.AddressModeClampToEdge)
	d.MagFilter = common.Coalesce(d.MagFilter, gputypes.FilterModeLinear)
	d.MinFilter = common.Coalesce(d.MinFilter, gputypes.FilterModeLinear)
	return nil
}

// ShaderModuleDescriptor describes a WGSL shader module.
type ShaderModuleDescriptor struct {
	Label string
	Code  string
}

func (d *ShaderModuleDescriptor) normalize() error {
	if d.Code == "" {
		return invalid(KindShaderModule, d.Label, "empty WGSL source")
	}
	return nil
}

// BindGroupLayoutDescriptor describes a bind group layout.
type BindGroupLayoutDescriptor struct {
	Label   string
	Entries []gputypes.BindGroupLayoutEntry
}

func (d *BindGroupLayoutDescriptor) normalize() error {
	if len(d.Entries) == 0 {
		return invalid(KindBindGroupLayout, d.Label, "no entries")
	}
	seen := make(map[uint32]bool, len(d.Entries))
	for _, e := range d.Entries {
		if seen[e.Binding] {
			return invalid(KindBindGroupLayout, d.Label, "duplicate binding %d", e.Binding)
		}
		seen[e.Binding] = true
		n := 0
		if e.Buffer != nil {
			n++
		}
		if e.Texture != nil {
			n++
		}
		if e.Sampler != nil {
			n++
		}
		if n != 1 {
			return invalid(KindBindGroupLayout, d.Label, "binding %d must describe exactly one resource", e.Binding)
		}
	}
	return nil
}

// BindGroupEntry binds one resource. Exactly one of Buffer, Texture or Sampler must be set.
// The referenced resources are borrowed: the bind group does not release them unless they are also
// listed in BindGroupDescriptor.Owned.
type BindGroupEntry struct {
	Binding uint32
	Buffer  *Buffer
	// Offset and Size select a buffer range. Size 0 binds the rest of the buffer.
	Offset  uint64
	Size    uint64
	Texture *Texture
	Sampler *Sampler
}

// Disposer is anything whose ownership can be handed to a bind group, typically an own.Own cell.
type Disposer interface {
	Dispose()
}

// BindGroupDescriptor describes a bind group.
type BindGroupDescriptor struct {
	Label   string
	Layout  *BindGroupLayout
	Entries []BindGroupEntry
	// Owned lists ownership cells the bind group takes over. They are disposed right after the
	// bind group itself is released.
	Owned []Disposer
}

func (d *BindGroupDescriptor) normalize() error {
	if d.Layout == nil {
		return invalid(KindBindGroup, d.Label, "layout must be set")
	}
	if err := d.Layout.Validate(); err != nil {
		return &CreationError{Kind: KindBindGroup, Label: d.Label, Err: err}
	}
	if len(d.Entries) == 0 {
		return invalid(KindBindGroup, d.Label, "no entries")
	}
	for _, e := range d.Entries {
		if !d.Layout.hasBinding(e.Binding) {
			return invalid(KindBindGroup, d.Label, "binding %d is not part of layout %q", e.Binding, d.Layout.Label())
		}
		var res interface{ Validate() error }
		n := 0
		if e.Buffer != nil {
			n++
			res = e.Buffer
		}
		if e.Texture != nil {
			n++
			res = e.Texture
		}
		if e.Sampler != nil {
			n++
			res = e.Sampler
		}
		if n != 1 {
			return invalid(KindBindGroup, d.Label, "binding %d must reference exactly one resource", e.Binding)
		}
		if err := res.Validate(); err != nil {
			return &CreationError{Kind: KindBindGroup, Label: d.Label, Err: err}
		}
	}
	return nil
}

// VertexStage is the vertex stage of a render pipeline.
type VertexStage struct {
	Module     *ShaderModule
	EntryPoint string
	Buffers    []gputypes.VertexBufferLayout
}

// FragmentStage is the fragment stage of a render pipeline. Depth-only pipelines leave it nil.
type FragmentStage struct {
	Module     *ShaderModule
	EntryPoint string
	Targets    []gputypes.ColorTargetState
}

// DepthStencilState configures depth testing. DepthBias and DepthBiasSlopeScale implement slope-scaled bias.
type DepthStencilState struct {
	Format              gputypes.TextureFormat
	DepthWriteEnabled   bool
	DepthCompare        gputypes.CompareFunction
	DepthBias           int32
	DepthBiasSlopeScale float32
}

// RenderPipelineDescriptor describes a render pipeline. The pipeline layout is derived from BindGroupLayouts
// and owned by the pipeline.
type RenderPipelineDescriptor struct {
	Label            string
	BindGroupLayouts []*BindGroupLayout
	Vertex           VertexStage
	Fragment         *FragmentStage
	Primitive        gputypes.PrimitiveState
	DepthStencil     *DepthStencilState
	// SampleCount defaults to 1.
	SampleCount uint32
}

func (d *RenderPipelineDescriptor) normalize() error {
	d.SampleCount = common.Coalesce(d.SampleCount, 1)
	d.Vertex.EntryPoint = common.Coalesce(d.Vertex.EntryPoint, "vs_main")
	if d.Vertex.Module == nil {
		return invalid(KindRenderPipeline, d.Label, "vertex module must be set")
	}
	if err := d.Vertex.Module.Validate(); err != nil {
		return &CreationError{Kind: KindRenderPipeline, Label: d.Label, Err: err}
	}
	if d.Fragment != nil {
		d.Fragment.EntryPoint = common.Coalesce(d.Fragment.EntryPoint, "fs_main")
		if d.Fragment.Module == nil {
			return invalid(KindRenderPipeline, d.Label, "fragment module must be set")
		}
		if err := d.Fragment.Module.Validate(); err != nil {
			return &CreationError{Kind: KindRenderPipeline, Label: d.Label, Err: err}
		}
		if len(d.Fragment.Targets) == 0 {
			return invalid(KindRenderPipeline, d.Label, "fragment stage has no color targets")
		}
	} else if d.DepthStencil == nil {
		return invalid(KindRenderPipeline, d.Label, "pipeline writes neither color nor depth")
	}
	for i, layout := range d.BindGroupLayouts {
		if layout == nil {
			return invalid(KindRenderPipeline, d.Label, "bind group layout %d is nil", i)
		}
		if err := layout.Validate(); err != nil {
			return &CreationError{Kind: KindRenderPipeline, Label: d.Label, Err: err}
		}
	}
	for _, b := range d.Vertex.Buffers {
		if b.ArrayStride%bufferAlignment != 0 {
			return invalid(KindRenderPipeline, d.Label, "vertex stride %d is not a multiple of %d", b.ArrayStride, bufferAlignment)
		}
	}
	return nil
}

// ColorAttachment is one color target of a render pass. A nil Target renders into the surface texture.
type ColorAttachment struct {
	Target *Texture
	// Load defaults to clearing with Clear.
	Load  gputypes.LoadOp
	Store gputypes.StoreOp
	Clear gputypes.Color
}

// DepthAttachment is the depth target of a render pass.
type DepthAttachment struct {
	Target     *Texture
	Load       gputypes.LoadOp
	Store      gputypes.StoreOp
	ClearDepth float32
}

// PassDescriptor describes a render pass.
type PassDescriptor struct {
	Label  string
	Colors []ColorAttachment
	Depth  *DepthAttachment
}

func (d *PassDescriptor) validate() error {
	for _, c := range d.Colors {
		if c.Target != nil {
			if err := c.Target.Validate(); err != nil {
				return err
			}
		}
	}
	if d.Depth != nil {
		if d.Depth.Target == nil {
			return invalid(KindTexture, d.Label, "depth attachment without target")
		}
		if err := d.Depth.Target.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func alignUp(n, a uint64) uint64 {
	return (n + a - 1) / a * a
}
