package renderer

import (
	"github.com/Carmen-Shannon/hikari/engine/own"
	"github.com/gogpu/naga"
)

// ShaderModule wraps a compiled WGSL shader module.
type ShaderModule struct {
	resource
}

func (r *renderer) CreateShaderModule(desc ShaderModuleDescriptor) (own.Own[*ShaderModule], error) {
	if err := r.checkOpen(KindShaderModule, desc.Label); err != nil {
		return own.None[*ShaderModule](), err
	}
	if err := desc.normalize(); err != nil {
		return own.None[*ShaderModule](), err
	}
	if r.validateShaders {
		if _, err := naga.Compile(desc.Code); err != nil {
			return own.None[*ShaderModule](), &CreationError{Kind: KindShaderModule, Label: desc.Label, Err: err}
		}
	}
	h, err := r.backend.CreateShaderModule(&desc)
	if err != nil {
		return own.None[*ShaderModule](), &CreationError{Kind: KindShaderModule, Label: desc.Label, Err: err}
	}
	m := &ShaderModule{resource: newResource(r, KindShaderModule, desc.Label, h)}
	return own.New(m, func(m *ShaderModule) { m.destroy() }), nil
}
