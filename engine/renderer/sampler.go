package renderer

import (
	"github.com/Carmen-Shannon/hikari/engine/own"
	"github.com/gogpu/gputypes"
)

// Sampler wraps a GPU sampler handle.
type Sampler struct {
	resource
	compare gputypes.CompareFunction
}

// IsComparison reports whether this is a comparison sampler.
func (s *Sampler) IsComparison() bool {
	return s.compare != 0
}

func (r *renderer) CreateSampler(desc SamplerDescriptor) (own.Own[*Sampler], error) {
	if err := r.checkOpen(KindSampler, desc.Label); err != nil {
		return own.None[*Sampler](), err
	}
	if err := desc.normalize(); err != nil {
		return own.None[*Sampler](), err
	}
	h, err := r.backend.CreateSampler(&desc)
	if err != nil {
		return own.None[*Sampler](), &CreationError{Kind: KindSampler, Label: desc.Label, Err: err}
	}
	s := &Sampler{
		resource: newResource(r, KindSampler, desc.Label, h),
		compare:  desc.Compare,
	}
	return own.New(s, func(s *Sampler) { s.destroy() }), nil
}

// CreateSharedSampler creates a sampler whose ownership is reference-counted, for samplers bound by many
// bind groups with unrelated lifetimes.
//
// Parameters:
//   - desc: the sampler descriptor
//
// Returns:
//   - own.Shared[*Sampler]: the first shared handle
//   - error: a CreationError if the sampler could not be created
func (r *renderer) CreateSharedSampler(desc SamplerDescriptor) (own.Shared[*Sampler], error) {
	o, err := r.CreateSampler(desc)
	if err != nil {
		return own.Shared[*Sampler]{}, err
	}
	s := o.Take().MustValue()
	return own.NewShared(s, func(s *Sampler) { s.destroy() }), nil
}
