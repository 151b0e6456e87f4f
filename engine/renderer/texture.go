package renderer

import (
	"github.com/Carmen-Shannon/hikari/engine/own"
	"github.com/gogpu/gputypes"
)

// Texture wraps a GPU texture handle and its default view. The descriptor is cached at construction.
type Texture struct {
	resource
	desc TextureDescriptor
}

// Width returns the texture width in texels.
func (t *Texture) Width() uint32 {
	return t.desc.Size.Width
}

// Height returns the texture height in texels.
func (t *Texture) Height() uint32 {
	return t.desc.Size.Height
}

// Layers returns the depth or array layer count.
func (t *Texture) Layers() uint32 {
	return t.desc.Size.DepthOrArrayLayers
}

// Format returns the texel format.
func (t *Texture) Format() gputypes.TextureFormat {
	return t.desc.Format
}

// Usage returns the usage flags the texture was created with.
func (t *Texture) Usage() gputypes.TextureUsage {
	return t.desc.Usage
}

// SampleCount returns the multisample count.
func (t *Texture) SampleCount() uint32 {
	return t.desc.SampleCount
}

// Descriptor returns a copy of the normalized creation descriptor.
func (t *Texture) Descriptor() TextureDescriptor {
	return t.desc
}

func (r *renderer) CreateTexture(desc TextureDescriptor) (own.Own[*Texture], error) {
	if err := r.checkOpen(KindTexture, desc.Label); err != nil {
		return own.None[*Texture](), err
	}
	if err := desc.normalize(); err != nil {
		return own.None[*Texture](), err
	}
	h, err := r.backend.CreateTexture(&desc)
	if err != nil {
		return own.None[*Texture](), &CreationError{Kind: KindTexture, Label: desc.Label, Err: err}
	}
	t := &Texture{
		resource: newResource(r, KindTexture, desc.Label, h),
		desc:     desc,
	}
	return own.New(t, func(t *Texture) { t.destroy() }), nil
}
