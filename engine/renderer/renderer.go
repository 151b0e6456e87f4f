package renderer

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/hikari/common"
	"github.com/Carmen-Shannon/hikari/engine/own"
	"github.com/gogpu/gputypes"
)

// active guards the one-renderer-per-process rule. The native backend owns process-global state
// (instance, adapter, device) that cannot be shared between two contexts.
var active atomic.Bool

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	backend Backend
	logger  *slog.Logger

	debug           bool
	validateShaders bool
	presentMode     *PresentMode

	size       common.Size
	needConfig bool
	live       atomic.Int64
	closed     atomic.Bool
}

// Renderer is the GPU context. It creates every native resource, wraps each one in an ownership cell,
// and drives frame acquisition against the Backend.
//
// Creation calls may be made from any goroutine. Frames are acquired and recorded on the main goroutine only.
type Renderer interface {
	// Backend returns the native backend the renderer was created with.
	Backend() Backend

	// Logger returns the renderer's structured logger.
	Logger() *slog.Logger

	// Debug reports whether debug validation is enabled.
	// In debug mode MustValidate panics, bind groups validate their bound resources, and passes panic on
	// the first use of a released resource.
	Debug() bool

	// CreateBuffer validates desc and creates a buffer.
	//
	// Parameters:
	//   - desc: the buffer descriptor
	//
	// Returns:
	//   - own.Own[*Buffer]: the owned buffer
	//   - error: a *CreationError on failure
	CreateBuffer(desc BufferDescriptor) (own.Own[*Buffer], error)

	// CreateTexture validates desc and creates a texture with its default view.
	//
	// Parameters:
	//   - desc: the texture descriptor
	//
	// Returns:
	//   - own.Own[*Texture]: the owned texture
	//   - error: a *CreationError on failure
	CreateTexture(desc TextureDescriptor) (own.Own[*Texture], error)

	// CreateSampler creates a sampler.
	CreateSampler(desc SamplerDescriptor) (own.Own[*Sampler], error)

	// CreateSharedSampler creates a sampler with reference-counted ownership.
	CreateSharedSampler(desc SamplerDescriptor) (own.Shared[*Sampler], error)

	// CreateShaderModule creates a shader module. When shader validation is enabled the source is compiled
	// with naga first and a compile error is returned as a *CreationError.
	CreateShaderModule(desc ShaderModuleDescriptor) (own.Own[*ShaderModule], error)

	// CreateBindGroupLayout creates a bind group layout.
	CreateBindGroupLayout(desc BindGroupLayoutDescriptor) (own.Own[*BindGroupLayout], error)

	// CreateBindGroup creates a bind group. Resources in desc.Entries are borrowed; cells in desc.Owned are
	// disposed after the bind group is released.
	CreateBindGroup(desc BindGroupDescriptor) (own.Own[*BindGroup], error)

	// CreateRenderPipeline creates a render pipeline and its internal pipeline layout.
	CreateRenderPipeline(desc RenderPipelineDescriptor) (own.Own[*RenderPipeline], error)

	// Resize reconfigures the surface. Zero sizes are ignored (minimized window).
	//
	// Parameters:
	//   - width: the new surface width in pixels
	//   - height: the new surface height in pixels
	//
	// Returns:
	//   - error: the backend configuration error, if any
	Resize(width, height uint32) error

	// SurfaceSize returns the last configured surface size.
	SurfaceSize() common.Size

	// SurfaceFormat returns the format of the presentable surface.
	SurfaceFormat() gputypes.TextureFormat

	// SetPresentMode sets the surface present mode. A call to Resize is required for it to take effect.
	SetPresentMode(mode PresentMode)

	// AcquireFrame acquires the next surface texture.
	//
	// Returns:
	//   - *Frame: the frame to record into
	//   - error: ErrSurfaceUnavailable to skip the frame, ErrDeviceLost when fatal
	AcquireFrame() (*Frame, error)

	// LiveResources returns the number of resources created and not yet released.
	LiveResources() int64

	// Close releases the backend and frees the process-wide renderer slot. Resources still alive are
	// logged and then destroyed by the backend teardown.
	Close()
}

var _ Renderer = &renderer{}

// NewRenderer creates the renderer context over backend. Only one renderer may be open per process.
//
// Parameters:
//   - backend: the native backend
//   - options: variadic list of RendererBuilderOption functions to configure the Renderer
//
// Returns:
//   - Renderer: the renderer context
//   - error: ErrRendererActive if another renderer is still open
func NewRenderer(backend Backend, options ...RendererBuilderOption) (Renderer, error) {
	if backend == nil {
		return nil, errors.New("renderer: nil backend")
	}
	if !active.CompareAndSwap(false, true) {
		return nil, ErrRendererActive
	}
	r := &renderer{
		mu:      &sync.Mutex{},
		backend: backend,
		logger:  slog.Default(),
	}
	for _, opt := range options {
		opt(r)
	}
	r.logger = r.logger.With("component", "renderer")

	if r.presentMode != nil {
		r.backend.SetPresentMode(*r.presentMode)
	}
	if r.size.Width > 0 && r.size.Height > 0 {
		if err := r.backend.ConfigureSurface(r.size.Width, r.size.Height); err != nil {
			active.Store(false)
			return nil, fmt.Errorf("renderer: configure surface: %w", err)
		}
	}
	return r, nil
}

func (r *renderer) Backend() Backend {
	return r.backend
}

func (r *renderer) Logger() *slog.Logger {
	return r.logger
}

func (r *renderer) Debug() bool {
	return r.debug
}

func (r *renderer) checkOpen(kind ResourceKind, label string) error {
	if r.closed.Load() {
		return &CreationError{Kind: kind, Label: label, Err: ErrRendererClosed}
	}
	return nil
}

func (r *renderer) Resize(width, height uint32) error {
	if width == 0 || height == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.size.Width == width && r.size.Height == height && !r.needConfig {
		return nil
	}
	if err := r.backend.ConfigureSurface(width, height); err != nil {
		return err
	}
	r.size = common.Size{Width: width, Height: height}
	r.needConfig = false
	return nil
}

func (r *renderer) SurfaceSize() common.Size {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

func (r *renderer) SurfaceFormat() gputypes.TextureFormat {
	return r.backend.SurfaceFormat()
}

func (r *renderer) SetPresentMode(mode PresentMode) {
	r.backend.SetPresentMode(mode)
	r.mu.Lock()
	r.needConfig = true
	r.mu.Unlock()
}

func (r *renderer) AcquireFrame() (*Frame, error) {
	if r.closed.Load() {
		return nil, ErrRendererClosed
	}
	bf, err := r.backend.AcquireFrame()
	if err != nil {
		return nil, err
	}
	return &Frame{r: r, backend: bf}, nil
}

func (r *renderer) LiveResources() int64 {
	return r.live.Load()
}

func (r *renderer) Close() {
	if !r.closed.CompareAndSwap(false, true) {
		return
	}
	if n := r.live.Load(); n > 0 {
		r.logger.Warn("closing with live resources", "count", n)
	}
	r.backend.Release()
	active.Store(false)
}
