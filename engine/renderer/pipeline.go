package renderer

import (
	"slices"

	"github.com/Carmen-Shannon/hikari/engine/own"
)

// RenderPipeline wraps a render pipeline and the pipeline layout derived from its bind group layouts.
type RenderPipeline struct {
	resource
	layouts     []*BindGroupLayout
	sampleCount uint32
	depthOnly   bool
}

// BindGroupLayouts returns the bind group layouts the pipeline was created with.
func (p *RenderPipeline) BindGroupLayouts() []*BindGroupLayout {
	return slices.Clone(p.layouts)
}

// SampleCount returns the pipeline's multisample count.
func (p *RenderPipeline) SampleCount() uint32 {
	return p.sampleCount
}

// DepthOnly reports whether the pipeline has no fragment stage.
func (p *RenderPipeline) DepthOnly() bool {
	return p.depthOnly
}

func (r *renderer) CreateRenderPipeline(desc RenderPipelineDescriptor) (own.Own[*RenderPipeline], error) {
	if err := r.checkOpen(KindRenderPipeline, desc.Label); err != nil {
		return own.None[*RenderPipeline](), err
	}
	if err := desc.normalize(); err != nil {
		return own.None[*RenderPipeline](), err
	}
	h, err := r.backend.CreateRenderPipeline(&desc)
	if err != nil {
		return own.None[*RenderPipeline](), &CreationError{Kind: KindRenderPipeline, Label: desc.Label, Err: err}
	}
	p := &RenderPipeline{
		resource:    newResource(r, KindRenderPipeline, desc.Label, h),
		layouts:     slices.Clone(desc.BindGroupLayouts),
		sampleCount: desc.SampleCount,
		depthOnly:   desc.Fragment == nil,
	}
	return own.New(p, func(p *RenderPipeline) { p.destroy() }), nil
}
