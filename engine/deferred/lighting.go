package deferred

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/hikari/engine/camera"
	"github.com/Carmen-Shannon/hikari/engine/gbuffer"
	"github.com/Carmen-Shannon/hikari/engine/light"
	"github.com/Carmen-Shannon/hikari/engine/operation"
	"github.com/Carmen-Shannon/hikari/engine/own"
	"github.com/Carmen-Shannon/hikari/engine/renderer"
	"github.com/gogpu/gputypes"
)

// LightingGroup is the bind group index of the cascade lighting group in the lighting pass.
const LightingGroup = 2

// ErrUnsupportedGBuffer is returned when the G-buffer does not carry the position, normal, albedo and
// material targets the lighting pass reads.
var ErrUnsupportedGBuffer = errors.New("deferred: lighting needs the four default gbuffer targets")

//go:embed assets/lighting.wgsl
var lightingSource string

// LightingSource returns the full WGSL of the lighting pass for the current cascade configuration.
//
// Parameters:
//   - cascades: the cascade set whose shadow lookups are included
//
// Returns:
//   - string: the WGSL source
//   - error: an error if the shadow source could not be generated
func LightingSource(cascades light.CascadeSet) (string, error) {
	shadow, err := cascades.ShaderSource(LightingGroup)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, part := range []string{camera.GPUCameraUniformSource, light.GPUDirectionalLightSource, shadow, lightingSource} {
		b.WriteString(part)
		b.WriteString("\n")
	}
	return b.String(), nil
}

type lighting struct {
	host Host
	opts *options

	mu       sync.Mutex
	module   own.Own[*renderer.ShaderModule]
	pipeline own.Own[*renderer.RenderPipeline]
}

// NewLightingOperation creates the fullscreen pass resolving the G-buffer into the surface. Each texel the
// geometry pass wrote is shaded with the directional light and its cascaded shadows; the rest keep the clear
// color. The pipeline is rebuilt whenever the cascades are reconfigured.
//
// Parameters:
//   - h: the render host
//   - opts: variadic list of DeferredBuilderOption functions
//
// Returns:
//   - operation.Operation: the operation, ready to be added to a Registry
//   - error: ErrUnsupportedGBuffer or a *renderer.CreationError
func NewLightingOperation(h Host, opts ...DeferredBuilderOption) (operation.Operation, error) {
	if len(h.GBuffer().Formats()) < len(gbuffer.DefaultFormats) {
		return nil, ErrUnsupportedGBuffer
	}
	l := &lighting{host: h, opts: newOptions("lighting", OffsetLighting, opts)}
	if err := l.rebuild(h.Cascades()); err != nil {
		return nil, err
	}

	op := operation.NewOperation("lighting",
		operation.WithSortOrder(SortOrder(PassKindDeferred, l.opts.sortOffset)),
		operation.WithOperationLogger(l.opts.logger),
		operation.WithExecute(l.execute),
	)
	op.Own(l)
	op.Own(unsubscriber(h.Cascades().OnChanged(func(cs light.CascadeSet) {
		if err := l.rebuild(cs); err != nil {
			l.opts.logger.Error("rebuild lighting pipeline", "error", err)
		}
	})))
	return op, nil
}

// rebuild creates a pipeline against the current cascade layout. The previous pipeline is kept on failure.
func (l *lighting) rebuild(cascades light.CascadeSet) error {
	r := l.host.Renderer()
	src, err := LightingSource(cascades)
	if err != nil {
		return fmt.Errorf("lighting source: %w", err)
	}
	module, err := r.CreateShaderModule(renderer.ShaderModuleDescriptor{Label: "lighting", Code: src})
	if err != nil {
		return err
	}
	pipeline, err := r.CreateRenderPipeline(renderer.RenderPipelineDescriptor{
		Label: "lighting",
		BindGroupLayouts: []*renderer.BindGroupLayout{
			l.host.Camera().BindGroupLayout(),
			l.host.GBuffer().Layout(),
			cascades.LightingLayout(),
		},
		Vertex: renderer.VertexStage{Module: module.MustValue()},
		Fragment: &renderer.FragmentStage{
			Module: module.MustValue(),
			Targets: []gputypes.ColorTargetState{{
				Format:    r.SurfaceFormat(),
				WriteMask: gputypes.ColorWriteMaskAll,
			}},
		},
		Primitive: gputypes.PrimitiveState{Topology: gputypes.PrimitiveTopologyTriangleList},
	})
	if err != nil {
		module.Dispose()
		return err
	}

	l.mu.Lock()
	oldModule, oldPipeline := l.module, l.pipeline
	l.module, l.pipeline = module, pipeline
	l.mu.Unlock()
	oldPipeline.Dispose()
	oldModule.Dispose()
	return nil
}

func (l *lighting) current() (*renderer.RenderPipeline, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pipeline.TryAsValue()
}

func (l *lighting) execute(_ operation.Operation, ctx *operation.Context) {
	pipeline, ok := l.current()
	if !ok {
		return
	}
	gb, err := l.host.GBuffer().GBuffer()
	if err != nil {
		l.opts.logger.Error("gbuffer unavailable", "error", err)
		return
	}
	pass, err := ctx.Frame.BeginPass(renderer.PassDescriptor{
		Label: "lighting",
		Colors: []renderer.ColorAttachment{{
			Load:  gputypes.LoadOpClear,
			Store: gputypes.StoreOpStore,
			Clear: l.opts.clearColor,
		}},
	})
	if err != nil {
		l.opts.logger.Error("begin lighting pass", "error", err)
		return
	}
	pass.SetPipeline(pipeline)
	pass.SetBindGroup(0, l.host.Camera().BindGroup())
	pass.SetBindGroup(1, gb.BindGroup())
	pass.SetBindGroup(LightingGroup, l.host.Cascades().LightingBindGroup())
	pass.Draw(3, 1)
	if err := pass.End(); err != nil {
		l.opts.logger.Error("lighting pass", "error", err)
	}
}

// Dispose releases the current pipeline and module.
func (l *lighting) Dispose() {
	l.mu.Lock()
	module, pipeline := l.module, l.pipeline
	l.module, l.pipeline = own.None[*renderer.ShaderModule](), own.None[*renderer.RenderPipeline]()
	l.mu.Unlock()
	pipeline.Dispose()
	module.Dispose()
}
