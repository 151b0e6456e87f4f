package renderer

import "github.com/gogpu/gputypes"

// RendererBackendType identifies the GPU backend implementation used by the Renderer.
type RendererBackendType int

const (
	// BackendTypeWGPU selects the WebGPU-based rendering backend.
	BackendTypeWGPU RendererBackendType = iota
)

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped
)

// Handle is an opaque reference to a native GPU object owned by a Backend.
// The zero Handle never refers to a live object.
type Handle uint64

// ResourceKind names the class of a native GPU object.
type ResourceKind int

const (
	KindBuffer ResourceKind = iota
	KindTexture
	KindSampler
	KindShaderModule
	KindBindGroupLayout
	KindBindGroup
	KindRenderPipeline
)

func (k ResourceKind) String() string {
	switch k {
	case KindBuffer:
		return "buffer"
	case KindTexture:
		return "texture"
	case KindSampler:
		return "sampler"
	case KindShaderModule:
		return "shader module"
	case KindBindGroupLayout:
		return "bind group layout"
	case KindBindGroup:
		return "bind group"
	case KindRenderPipeline:
		return "render pipeline"
	default:
		return "resource"
	}
}

// Backend is the native GPU boundary. Every create call either returns a fresh Handle or an error; every
// Handle must be passed to Destroy exactly once. Backends are not required to tolerate a double Destroy,
// which is why handles only ever reach Destroy through an ownership cell.
//
// Create calls receive descriptors that have already been validated and defaulted by the Renderer.
type Backend interface {
	// CreateBuffer allocates a GPU buffer. When desc.Contents is set it is uploaded after creation.
	CreateBuffer(desc *BufferDescriptor) (Handle, error)

	// CreateTexture allocates a texture together with its default full view.
	CreateTexture(desc *TextureDescriptor) (Handle, error)

	// CreateSampler allocates a sampler. A non-zero desc.Compare makes it a comparison sampler.
	CreateSampler(desc *SamplerDescriptor) (Handle, error)

	// CreateShaderModule compiles WGSL source into a shader module.
	CreateShaderModule(desc *ShaderModuleDescriptor) (Handle, error)

	// CreateBindGroupLayout creates a bind group layout.
	CreateBindGroupLayout(desc *BindGroupLayoutDescriptor) (Handle, error)

	// CreateBindGroup creates a bind group. Resource handles are read from the descriptor's wrappers.
	CreateBindGroup(desc *BindGroupDescriptor) (Handle, error)

	// CreateRenderPipeline creates a render pipeline and the pipeline layout it needs.
	// Destroying the pipeline handle also destroys that layout.
	CreateRenderPipeline(desc *RenderPipelineDescriptor) (Handle, error)

	// Destroy releases the native object behind h.
	//
	// Parameters:
	//   - kind: the kind the handle was created as
	//   - h: the handle to release
	Destroy(kind ResourceKind, h Handle)

	// WriteBuffer queues a write of data into the buffer at offset.
	WriteBuffer(buffer Handle, offset uint64, data []byte) error

	// ConfigureSurface (re)configures the presentable surface for a new size.
	ConfigureSurface(width, height uint32) error

	// SetPresentMode selects how frames are delivered. Takes effect on the next ConfigureSurface.
	SetPresentMode(mode PresentMode)

	// SurfaceFormat returns the texture format of the presentable surface.
	SurfaceFormat() gputypes.TextureFormat

	// AcquireFrame acquires the next surface texture and opens a command encoder for it.
	//
	// Returns:
	//   - BackendFrame: the frame being recorded
	//   - error: ErrSurfaceUnavailable to skip the frame, ErrDeviceLost when the device is gone
	AcquireFrame() (BackendFrame, error)

	// Release tears down the device, surface and every object still alive.
	Release()
}

// BackendFrame records the command buffer for one frame.
type BackendFrame interface {
	// BeginPass begins a render pass. Attachments with a nil Target render to the surface texture.
	BeginPass(desc *PassDescriptor) (BackendPass, error)

	// Submit finishes the command encoder and submits it to the queue.
	Submit() error

	// Present presents the surface texture and releases the frame's transient objects.
	Present() error
}

// BackendPass encodes draw commands within one render pass.
type BackendPass interface {
	SetPipeline(pipeline Handle)
	SetBindGroup(index uint32, group Handle)
	SetVertexBuffer(slot uint32, buffer Handle)
	SetIndexBuffer(buffer Handle)
	Draw(vertexCount, instanceCount uint32)
	DrawIndexed(indexCount, instanceCount uint32)
	End() error
}
