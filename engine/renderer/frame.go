package renderer

import (
	"errors"
	"fmt"
)

// Frame is one acquired surface texture plus the command buffer recorded against it.
// A Frame is used from the main goroutine only.
type Frame struct {
	r       *renderer
	backend BackendFrame
	open    *RenderPass
	done    bool
}

// BeginPass begins a render pass. Only one pass may be open at a time.
//
// Parameters:
//   - desc: the pass attachments
//
// Returns:
//   - *RenderPass: the pass to record draws into
//   - error: ErrUseAfterFree if an attachment was released, or a backend error
func (f *Frame) BeginPass(desc PassDescriptor) (*RenderPass, error) {
	if f.done {
		return nil, fmt.Errorf("frame: begin pass %q after submit", desc.Label)
	}
	if f.open != nil {
		return nil, fmt.Errorf("frame: pass %q still open", f.open.label)
	}
	if err := desc.validate(); err != nil {
		return nil, err
	}
	bp, err := f.backend.BeginPass(&desc)
	if err != nil {
		return nil, err
	}
	f.open = &RenderPass{frame: f, backend: bp, label: desc.Label}
	return f.open, nil
}

// Submit ends any pass left open and submits the recorded commands.
func (f *Frame) Submit() error {
	if f.done {
		return nil
	}
	var errs []error
	if f.open != nil {
		errs = append(errs, f.open.End())
	}
	f.done = true
	errs = append(errs, f.backend.Submit())
	return errors.Join(errs...)
}

// Present presents the surface texture. Submit is called first if it was not already.
func (f *Frame) Present() error {
	if err := f.Submit(); err != nil {
		return err
	}
	return f.backend.Present()
}

// RenderPass records draw commands. The first validation failure is kept and returned by End; commands after
// it are dropped.
type RenderPass struct {
	frame   *Frame
	backend BackendPass
	label   string
	err     error
	ended   bool
}

func (p *RenderPass) check(v interface{ Validate() error }) bool {
	if p.err != nil || p.ended {
		return false
	}
	if err := v.Validate(); err != nil {
		if p.frame.r.debug {
			panic(err)
		}
		p.err = fmt.Errorf("pass %q: %w", p.label, err)
		return false
	}
	return true
}

// SetPipeline binds a render pipeline.
func (p *RenderPass) SetPipeline(pipeline *RenderPipeline) {
	if p.check(pipeline) {
		p.backend.SetPipeline(pipeline.handle)
	}
}

// SetBindGroup binds a bind group at index.
func (p *RenderPass) SetBindGroup(index uint32, group *BindGroup) {
	if p.check(group) {
		p.backend.SetBindGroup(index, group.handle)
	}
}

// SetVertexBuffer binds a vertex buffer at slot.
func (p *RenderPass) SetVertexBuffer(slot uint32, buffer *Buffer) {
	if p.check(buffer) {
		p.backend.SetVertexBuffer(slot, buffer.handle)
	}
}

// SetIndexBuffer binds a uint32 index buffer.
func (p *RenderPass) SetIndexBuffer(buffer *Buffer) {
	if p.check(buffer) {
		p.backend.SetIndexBuffer(buffer.handle)
	}
}

// Draw records a non-indexed draw.
func (p *RenderPass) Draw(vertexCount, instanceCount uint32) {
	if p.err == nil && !p.ended {
		p.backend.Draw(vertexCount, instanceCount)
	}
}

// DrawIndexed records an indexed draw.
func (p *RenderPass) DrawIndexed(indexCount, instanceCount uint32) {
	if p.err == nil && !p.ended {
		p.backend.DrawIndexed(indexCount, instanceCount)
	}
}

// Err returns the first recorded validation error.
func (p *RenderPass) Err() error {
	return p.err
}

// End closes the pass.
//
// Returns:
//   - error: the first validation error recorded in the pass, or the backend error
func (p *RenderPass) End() error {
	if p.ended {
		return p.err
	}
	p.ended = true
	if p.frame.open == p {
		p.frame.open = nil
	}
	if err := p.backend.End(); err != nil && p.err == nil {
		p.err = err
	}
	return p.err
}
