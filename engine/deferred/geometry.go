package deferred

import (
	_ "embed"

	"github.com/Carmen-Shannon/hikari/engine/camera"
	"github.com/Carmen-Shannon/hikari/engine/operation"
	"github.com/Carmen-Shannon/hikari/engine/renderer"
	"github.com/Carmen-Shannon/hikari/engine/scene"
	"github.com/gogpu/gputypes"
)

//go:embed assets/geometry.wgsl
var geometrySource string

// GeometrySource returns the full WGSL of the geometry pass: the camera and object structs followed by the
// pass entry points.
func GeometrySource() string {
	return camera.GPUCameraUniformSource + "\n" + scene.GPUObjectSource + "\n" + geometrySource
}

type geometry struct {
	host     Host
	opts     *options
	pipeline *renderer.RenderPipeline
}

// NewGeometryOperation creates the operation filling the G-buffer. Every drawable object of the host's store
// is drawn with the camera at group 0 and its object group at group 1, writing one color target per
// G-buffer format plus the host's depth texture. The shader module and pipeline are owned by the operation.
//
// Parameters:
//   - h: the render host
//   - opts: variadic list of DeferredBuilderOption functions
//
// Returns:
//   - operation.Operation: the operation, ready to be added to a Registry
//   - error: a *renderer.CreationError if the pipeline could not be created
func NewGeometryOperation(h Host, opts ...DeferredBuilderOption) (operation.Operation, error) {
	g := &geometry{host: h, opts: newOptions("geometry", OffsetGeometry, opts)}
	r := h.Renderer()

	module, err := r.CreateShaderModule(renderer.ShaderModuleDescriptor{Label: "geometry", Code: GeometrySource()})
	if err != nil {
		return nil, err
	}
	formats := h.GBuffer().Formats()
	targets := make([]gputypes.ColorTargetState, len(formats))
	for i, f := range formats {
		targets[i] = gputypes.ColorTargetState{Format: f, WriteMask: gputypes.ColorWriteMaskAll}
	}
	pipeline, err := r.CreateRenderPipeline(renderer.RenderPipelineDescriptor{
		Label:            "geometry",
		BindGroupLayouts: []*renderer.BindGroupLayout{h.Camera().BindGroupLayout(), h.Store().ObjectLayout()},
		Vertex: renderer.VertexStage{
			Module:  module.MustValue(),
			Buffers: []gputypes.VertexBufferLayout{scene.VertexLayout()},
		},
		Fragment: &renderer.FragmentStage{
			Module:  module.MustValue(),
			Targets: targets,
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeBack,
		},
		DepthStencil: &renderer.DepthStencilState{
			Format:            h.DepthTexture().Format(),
			DepthWriteEnabled: true,
			DepthCompare:      gputypes.CompareFunctionLess,
		},
	})
	if err != nil {
		module.Dispose()
		return nil, err
	}
	g.pipeline = pipeline.MustValue()

	op := operation.NewOperation("geometry",
		operation.WithSortOrder(SortOrder(PassKindDeferred, g.opts.sortOffset)),
		operation.WithOperationLogger(g.opts.logger),
		operation.WithExecute(g.execute),
	)
	op.Own(module)
	op.Own(pipeline)
	return op, nil
}

func (g *geometry) execute(_ operation.Operation, ctx *operation.Context) {
	gb, err := g.host.GBuffer().GBuffer()
	if err != nil {
		g.opts.logger.Error("gbuffer unavailable", "error", err)
		return
	}
	pass, err := ctx.Frame.BeginPass(renderer.PassDescriptor{
		Label:  "geometry",
		Colors: gb.ColorAttachments(),
		Depth: &renderer.DepthAttachment{
			Target:     g.host.DepthTexture(),
			Load:       gputypes.LoadOpClear,
			Store:      gputypes.StoreOpStore,
			ClearDepth: 1,
		},
	})
	if err != nil {
		g.opts.logger.Error("begin geometry pass", "error", err)
		return
	}
	pass.SetPipeline(g.pipeline)
	pass.SetBindGroup(0, g.host.Camera().BindGroup())
	for _, obj := range g.host.Store().Drawable() {
		pass.SetBindGroup(1, obj.BindGroup())
		obj.Mesh().Draw(pass)
	}
	if err := pass.End(); err != nil {
		g.opts.logger.Error("geometry pass", "error", err)
	}
}
