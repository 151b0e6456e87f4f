package camera

import (
	"log/slog"

	"github.com/Carmen-Shannon/hikari/common"
	"github.com/Carmen-Shannon/hikari/engine/own"
	"github.com/Carmen-Shannon/hikari/engine/renderer"
	"github.com/gogpu/gputypes"
)

// uniformImpl is the implementation of the Uniform interface.
type uniformImpl struct {
	camera    Camera
	buffer    own.Own[*renderer.Buffer]
	layout    own.Own[*renderer.BindGroupLayout]
	bindGroup own.Own[*renderer.BindGroup]

	// flushed is the camera version last written to the buffer; 0 means never.
	flushed uint64
	changed common.Event[Camera]
	logger  *slog.Logger
}

// Uniform mirrors a Camera into a GPU uniform buffer, writing only when the camera changed.
type Uniform interface {
	// Camera returns the mirrored camera.
	Camera() Camera

	// Flush writes the camera uniform if the camera's version moved since the last flush and then notifies
	// OnChanged subscribers. Called once per frame by the frame loop before any pass is encoded.
	//
	// Returns:
	//   - bool: true if a write happened
	//   - error: the buffer write error
	Flush() (bool, error)

	// Buffer returns the uniform buffer.
	Buffer() *renderer.Buffer

	// BindGroupLayout returns the layout of BindGroup: one uniform buffer at binding 0, visible to the vertex
	// and fragment stages.
	BindGroupLayout() *renderer.BindGroupLayout

	// BindGroup returns the bind group exposing the uniform buffer.
	BindGroup() *renderer.BindGroup

	// OnChanged subscribes to flushed camera changes.
	OnChanged(fn func(Camera)) func()

	// Close releases the GPU resources.
	Close()
}

var _ Uniform = &uniformImpl{}

// NewUniform creates the GPU side of a camera.
//
// Parameters:
//   - r: the renderer context
//   - c: the camera to mirror
//
// Returns:
//   - Uniform: the new uniform
//   - error: a *renderer.CreationError if a resource could not be created
func NewUniform(r renderer.Renderer, c Camera) (Uniform, error) {
	u := &uniformImpl{camera: c, logger: slog.Default().With("component", "camera")}
	size := uint64((&GPUCameraUniform{}).Size())

	buffer, err := r.CreateBuffer(renderer.BufferDescriptor{
		Label: "camera",
		Size:  size,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	u.buffer = buffer

	layout, err := r.CreateBindGroupLayout(renderer.BindGroupLayoutDescriptor{
		Label: "camera",
		Entries: []gputypes.BindGroupLayoutEntry{{
			Binding:    0,
			Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
		}},
	})
	if err != nil {
		u.Close()
		return nil, err
	}
	u.layout = layout

	bindGroup, err := r.CreateBindGroup(renderer.BindGroupDescriptor{
		Label:   "camera",
		Layout:  layout.MustValue(),
		Entries: []renderer.BindGroupEntry{{Binding: 0, Buffer: buffer.MustValue()}},
	})
	if err != nil {
		u.Close()
		return nil, err
	}
	u.bindGroup = bindGroup
	return u, nil
}

func (u *uniformImpl) Camera() Camera {
	return u.camera
}

func (u *uniformImpl) Flush() (bool, error) {
	version := u.camera.Version()
	if version == u.flushed {
		return false, nil
	}
	data := ToGPUCamera(u.camera)
	buffer, err := u.buffer.AsValue()
	if err != nil {
		return false, err
	}
	if err := buffer.Write(0, data.Marshal()); err != nil {
		return false, err
	}
	u.flushed = version
	u.changed.Invoke(u.logger, "camera_changed", u.camera)
	return true, nil
}

func (u *uniformImpl) Buffer() *renderer.Buffer {
	return u.buffer.MustValue()
}

func (u *uniformImpl) BindGroupLayout() *renderer.BindGroupLayout {
	return u.layout.MustValue()
}

func (u *uniformImpl) BindGroup() *renderer.BindGroup {
	return u.bindGroup.MustValue()
}

func (u *uniformImpl) OnChanged(fn func(Camera)) func() {
	return u.changed.Subscribe(fn)
}

func (u *uniformImpl) Close() {
	u.bindGroup.Dispose()
	u.layout.Dispose()
	u.buffer.Dispose()
	u.changed.Clear()
}
