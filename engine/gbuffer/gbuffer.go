// Package gbuffer owns the render targets of the deferred geometry pass.
package gbuffer

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/hikari/common"
	"github.com/Carmen-Shannon/hikari/engine/own"
	"github.com/Carmen-Shannon/hikari/engine/renderer"
	"github.com/gogpu/gputypes"
)

// Usage is the texture usage of every G-buffer target.
const Usage = gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopySrc

// Target indices of the default scheme.
const (
	TargetPosition = iota
	TargetNormal
	TargetAlbedo
	TargetMaterial // metallic, roughness, ambient occlusion
)

// DefaultFormats is the default four-target scheme: world position, normal, albedo and material parameters.
var DefaultFormats = []gputypes.TextureFormat{
	gputypes.TextureFormatRGBA32Float,
	gputypes.TextureFormatRGBA16Float,
	gputypes.TextureFormatRGBA8Unorm,
	gputypes.TextureFormatRGBA8Unorm,
}

// GBuffer is one complete set of render targets at one size plus the bind group exposing them to the lighting
// pass. Target i is bound at binding i.
type GBuffer struct {
	size      common.Size
	colors    []own.Own[*renderer.Texture]
	bindGroup own.Own[*renderer.BindGroup]
}

// Size returns the extent of every target.
func (g *GBuffer) Size() common.Size {
	return g.size
}

// ColorAttachmentCount returns the number of targets, which always equals the number of formats.
func (g *GBuffer) ColorAttachmentCount() int {
	return len(g.colors)
}

// ColorAttachment returns target i. It panics if i is out of range or the G-buffer was released.
func (g *GBuffer) ColorAttachment(i int) *renderer.Texture {
	return g.colors[i].MustValue()
}

// BindGroup returns the bind group exposing the targets to the lighting pass.
func (g *GBuffer) BindGroup() *renderer.BindGroup {
	return g.bindGroup.MustValue()
}

// ColorAttachments returns pass attachments for every target, cleared to transparent black.
func (g *GBuffer) ColorAttachments() []renderer.ColorAttachment {
	out := make([]renderer.ColorAttachment, len(g.colors))
	for i := range g.colors {
		out[i] = renderer.ColorAttachment{
			Target: g.ColorAttachment(i),
			Load:   gputypes.LoadOpClear,
			Store:  gputypes.StoreOpStore,
		}
	}
	return out
}

// Validate reports ErrUseAfterFree once any part of the G-buffer has been released.
func (g *GBuffer) Validate() error {
	var errs []error
	for i := range g.colors {
		t, ok := g.colors[i].TryAsValue()
		if !ok {
			return fmt.Errorf("gbuffer target %d: %w", i, renderer.ErrUseAfterFree)
		}
		errs = append(errs, t.Validate())
	}
	bg, ok := g.bindGroup.TryAsValue()
	if !ok {
		return fmt.Errorf("gbuffer bind group: %w", renderer.ErrUseAfterFree)
	}
	errs = append(errs, bg.Validate())
	return errors.Join(errs...)
}

func (g *GBuffer) release() {
	g.bindGroup.Dispose()
	for _, c := range g.colors {
		c.Dispose()
	}
}

// LayoutDescriptor returns the bind group layout matching a G-buffer with the given formats.
//
// Parameters:
//   - formats: the target formats
//
// Returns:
//   - renderer.BindGroupLayoutDescriptor: one fragment-visible unfilterable texture per target
func LayoutDescriptor(formats []gputypes.TextureFormat) renderer.BindGroupLayoutDescriptor {
	entries := make([]gputypes.BindGroupLayoutEntry, len(formats))
	for i := range formats {
		entries[i] = gputypes.BindGroupLayoutEntry{
			Binding:    uint32(i),
			Visibility: gputypes.ShaderStageFragment,
			Texture: &gputypes.TextureBindingLayout{
				SampleType:    gputypes.TextureSampleTypeUnfilterableFloat,
				ViewDimension: gputypes.TextureViewDimension2D,
			},
		}
	}
	return renderer.BindGroupLayoutDescriptor{Label: "gbuffer", Entries: entries}
}

// Create allocates a G-buffer. Nothing is left allocated if any step fails.
//
// Parameters:
//   - r: the renderer context
//   - size: the target extent
//   - formats: one format per target; must not be empty
//   - layout: a layout built from LayoutDescriptor(formats)
//
// Returns:
//   - own.Own[*GBuffer]: the owned G-buffer
//   - error: a *renderer.CreationError if any allocation failed
func Create(r renderer.Renderer, size common.Size, formats []gputypes.TextureFormat, layout *renderer.BindGroupLayout) (own.Own[*GBuffer], error) {
	if len(formats) == 0 {
		return own.None[*GBuffer](), &renderer.CreationError{
			Kind:  renderer.KindTexture,
			Label: "gbuffer",
			Err:   fmt.Errorf("no formats: %w", renderer.ErrInvalidDescriptor),
		}
	}
	g := &GBuffer{size: size, colors: make([]own.Own[*renderer.Texture], 0, len(formats))}
	fail := func(err error) (own.Own[*GBuffer], error) {
		g.release()
		return own.None[*GBuffer](), err
	}

	entries := make([]renderer.BindGroupEntry, len(formats))
	for i, format := range formats {
		tex, err := r.CreateTexture(renderer.TextureDescriptor{
			Label:  fmt.Sprintf("gbuffer[%d]", i),
			Size:   gputypes.Extent3D{Width: size.Width, Height: size.Height, DepthOrArrayLayers: 1},
			Format: format,
			Usage:  Usage,
		})
		if err != nil {
			return fail(err)
		}
		g.colors = append(g.colors, tex)
		entries[i] = renderer.BindGroupEntry{Binding: uint32(i), Texture: tex.MustValue()}
	}

	bg, err := r.CreateBindGroup(renderer.BindGroupDescriptor{
		Label:   "gbuffer",
		Layout:  layout,
		Entries: entries,
	})
	if err != nil {
		return fail(err)
	}
	g.bindGroup = bg
	return own.New(g, (*GBuffer).release), nil
}
