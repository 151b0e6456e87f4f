package renderer

import (
	"errors"
	"slices"

	"github.com/Carmen-Shannon/hikari/engine/own"
)

// BindGroup wraps a bind group. It keeps borrowed references to everything it binds so that debug
// builds can detect a bound resource released underneath it.
type BindGroup struct {
	resource
	layout   *BindGroupLayout
	buffers  []*Buffer
	textures []*Texture
	samplers []*Sampler
	owned    []Disposer
}

// Layout returns the layout the bind group was created against.
func (g *BindGroup) Layout() *BindGroupLayout {
	return g.layout
}

// Buffers returns the buffers bound by the group, in entry order.
func (g *BindGroup) Buffers() []*Buffer {
	return slices.Clone(g.buffers)
}

// Textures returns the textures bound by the group, in entry order.
func (g *BindGroup) Textures() []*Texture {
	return slices.Clone(g.textures)
}

// Validate reports ErrUseAfterFree for the bind group itself and, in debug mode, for every resource it binds.
//
// Returns:
//   - error: the joined use-after-free errors, or nil
func (g *BindGroup) Validate() error {
	if err := g.resource.Validate(); err != nil {
		return err
	}
	if !g.r.debug {
		return nil
	}
	var errs []error
	for _, b := range g.buffers {
		errs = append(errs, b.Validate())
	}
	for _, t := range g.textures {
		errs = append(errs, t.Validate())
	}
	for _, s := range g.samplers {
		errs = append(errs, s.Validate())
	}
	return errors.Join(errs...)
}

// MustValidate panics in debug mode when Validate fails, otherwise logs.
func (g *BindGroup) MustValidate() {
	err := g.Validate()
	if err == nil {
		return
	}
	if g.r.debug {
		panic(err)
	}
	g.r.logger.Error("bind group used after release", "label", g.label, "error", err)
}

func (g *BindGroup) release() {
	g.destroy()
	owned := g.owned
	g.owned = nil
	for _, d := range owned {
		d.Dispose()
	}
}

func (r *renderer) CreateBindGroup(desc BindGroupDescriptor) (own.Own[*BindGroup], error) {
	if err := r.checkOpen(KindBindGroup, desc.Label); err != nil {
		return own.None[*BindGroup](), err
	}
	if err := desc.normalize(); err != nil {
		return own.None[*BindGroup](), err
	}
	h, err := r.backend.CreateBindGroup(&desc)
	if err != nil {
		return own.None[*BindGroup](), &CreationError{Kind: KindBindGroup, Label: desc.Label, Err: err}
	}
	g := &BindGroup{
		resource: newResource(r, KindBindGroup, desc.Label, h),
		layout:   desc.Layout,
		owned:    desc.Owned,
	}
	for _, e := range desc.Entries {
		switch {
		case e.Buffer != nil:
			g.buffers = append(g.buffers, e.Buffer)
		case e.Texture != nil:
			g.textures = append(g.textures, e.Texture)
		case e.Sampler != nil:
			g.samplers = append(g.samplers, e.Sampler)
		}
	}
	return own.New(g, func(g *BindGroup) { g.release() }), nil
}
