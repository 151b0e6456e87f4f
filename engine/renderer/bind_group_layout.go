package renderer

import (
	"slices"

	"github.com/Carmen-Shannon/hikari/engine/own"
	"github.com/gogpu/gputypes"
)

// BindGroupLayout wraps a bind group layout and keeps its entries for bind group validation.
type BindGroupLayout struct {
	resource
	entries []gputypes.BindGroupLayoutEntry
}

// Entries returns a copy of the layout entries.
func (l *BindGroupLayout) Entries() []gputypes.BindGroupLayoutEntry {
	return slices.Clone(l.entries)
}

func (l *BindGroupLayout) hasBinding(binding uint32) bool {
	return slices.ContainsFunc(l.entries, func(e gputypes.BindGroupLayoutEntry) bool {
		return e.Binding == binding
	})
}

func (r *renderer) CreateBindGroupLayout(desc BindGroupLayoutDescriptor) (own.Own[*BindGroupLayout], error) {
	if err := r.checkOpen(KindBindGroupLayout, desc.Label); err != nil {
		return own.None[*BindGroupLayout](), err
	}
	if err := desc.normalize(); err != nil {
		return own.None[*BindGroupLayout](), err
	}
	h, err := r.backend.CreateBindGroupLayout(&desc)
	if err != nil {
		return own.None[*BindGroupLayout](), &CreationError{Kind: KindBindGroupLayout, Label: desc.Label, Err: err}
	}
	l := &BindGroupLayout{
		resource: newResource(r, KindBindGroupLayout, desc.Label, h),
		entries:  slices.Clone(desc.Entries),
	}
	return own.New(l, func(l *BindGroupLayout) { l.destroy() }), nil
}
