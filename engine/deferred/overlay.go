package deferred

import (
	_ "embed"
	"encoding/binary"
	"math"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/hikari/engine/operation"
	"github.com/Carmen-Shannon/hikari/engine/own"
	"github.com/Carmen-Shannon/hikari/engine/renderer"
	"github.com/gogpu/gputypes"
)

//go:embed assets/overlay.wgsl
var overlaySource string

// rectStride is the size of one rect instance: rect vec4 followed by color vec4.
const rectStride = 32

// minRectCapacity is the smallest instance buffer the overlay allocates, in rects.
const minRectCapacity = 16

// Rect is a filled rectangle in normalized screen coordinates, (0, 0) top-left and (1, 1) bottom-right.
// Color is straight (not premultiplied) RGBA.
type Rect struct {
	X, Y, Width, Height float32
	Color               [4]float32
}

// MarshalRects serializes rects into instance data for the overlay pipeline.
func MarshalRects(rects []Rect) []byte {
	buf := make([]byte, rectStride*len(rects))
	for i, r := range rects {
		off := i * rectStride
		for k, f := range [8]float32{r.X, r.Y, r.Width, r.Height, r.Color[0], r.Color[1], r.Color[2], r.Color[3]} {
			binary.LittleEndian.PutUint32(buf[off+k*4:], math.Float32bits(f))
		}
	}
	return buf
}

// Overlay draws screen-space rectangles over the lit surface.
type Overlay interface {
	// Operation returns the render operation to add to a Registry.
	Operation() operation.Operation

	// SetRects replaces the rectangles drawn from the next frame on. Safe from any goroutine.
	//
	// Parameters:
	//   - rects: the rectangles, drawn in order
	SetRects(rects []Rect)

	// Rects returns a copy of the current rectangles.
	Rects() []Rect
}

type overlay struct {
	r    renderer.Renderer
	opts *options
	op   operation.Operation

	pipeline *renderer.RenderPipeline

	mu        sync.Mutex
	rects     []Rect
	dirty     bool
	instances own.Own[*renderer.Buffer]
	capacity  int
}

var _ Overlay = &overlay{}

// NewOverlay creates the overlay operation in the Overlay band. It loads the surface written by earlier passes
// and alpha-blends its rectangles on top.
//
// Parameters:
//   - r: the renderer context
//   - opts: variadic list of DeferredBuilderOption functions
//
// Returns:
//   - Overlay: the overlay
//   - error: a *renderer.CreationError if the pipeline could not be created
func NewOverlay(r renderer.Renderer, opts ...DeferredBuilderOption) (Overlay, error) {
	o := &overlay{r: r, opts: newOptions("overlay", 0, opts)}

	module, err := r.CreateShaderModule(renderer.ShaderModuleDescriptor{Label: "overlay", Code: overlaySource})
	if err != nil {
		return nil, err
	}
	blend := gputypes.BlendStatePremultiplied()
	pipeline, err := r.CreateRenderPipeline(renderer.RenderPipelineDescriptor{
		Label: "overlay",
		Vertex: renderer.VertexStage{
			Module: module.MustValue(),
			Buffers: []gputypes.VertexBufferLayout{{
				ArrayStride: rectStride,
				StepMode:    gputypes.VertexStepModeInstance,
				Attributes: []gputypes.VertexAttribute{
					{Format: gputypes.VertexFormatFloat32x4, Offset: 0, ShaderLocation: 0},
					{Format: gputypes.VertexFormatFloat32x4, Offset: 16, ShaderLocation: 1},
				},
			}},
		},
		Fragment: &renderer.FragmentStage{
			Module: module.MustValue(),
			Targets: []gputypes.ColorTargetState{{
				Format:    r.SurfaceFormat(),
				Blend:     &blend,
				WriteMask: gputypes.ColorWriteMaskAll,
			}},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
	})
	if err != nil {
		module.Dispose()
		return nil, err
	}
	o.pipeline = pipeline.MustValue()

	o.op = operation.NewOperation("overlay",
		operation.WithSortOrder(SortOrder(PassKindOverlay, o.opts.sortOffset)),
		operation.WithOperationLogger(o.opts.logger),
		operation.WithExecute(o.execute),
	)
	o.op.Own(module)
	o.op.Own(pipeline)
	o.op.Own(o)
	return o, nil
}

func (o *overlay) Operation() operation.Operation {
	return o.op
}

func (o *overlay) SetRects(rects []Rect) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rects = slices.Clone(rects)
	o.dirty = true
}

func (o *overlay) Rects() []Rect {
	o.mu.Lock()
	defer o.mu.Unlock()
	return slices.Clone(o.rects)
}

// upload writes dirty rects into the instance buffer, growing it when needed.
func (o *overlay) upload() (*renderer.Buffer, int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := len(o.rects)
	if !o.dirty {
		buf, _ := o.instances.TryAsValue()
		return buf, n, nil
	}
	if n == 0 {
		o.dirty = false
		return nil, 0, nil
	}
	if n > o.capacity {
		capacity := max(n, 2*o.capacity, minRectCapacity)
		buf, err := o.r.CreateBuffer(renderer.BufferDescriptor{
			Label: "overlay_rects",
			Size:  uint64(capacity * rectStride),
			Usage: gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			return nil, 0, err
		}
		o.instances.Dispose()
		o.instances, o.capacity = buf, capacity
	}
	buf := o.instances.MustValue()
	if err := buf.Write(0, MarshalRects(o.rects)); err != nil {
		return nil, 0, err
	}
	o.dirty = false
	return buf, n, nil
}

func (o *overlay) execute(_ operation.Operation, ctx *operation.Context) {
	buf, n, err := o.upload()
	if err != nil {
		o.opts.logger.Error("upload overlay rects", "error", err)
		return
	}
	if n == 0 {
		return
	}
	pass, err := ctx.Frame.BeginPass(renderer.PassDescriptor{
		Label: "overlay",
		Colors: []renderer.ColorAttachment{{
			Load:  gputypes.LoadOpLoad,
			Store: gputypes.StoreOpStore,
		}},
	})
	if err != nil {
		o.opts.logger.Error("begin overlay pass", "error", err)
		return
	}
	pass.SetPipeline(o.pipeline)
	pass.SetVertexBuffer(0, buf)
	pass.Draw(6, uint32(n))
	if err := pass.End(); err != nil {
		o.opts.logger.Error("overlay pass", "error", err)
	}
}

// Dispose releases the instance buffer.
func (o *overlay) Dispose() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.instances.Dispose()
	o.capacity = 0
	o.dirty = len(o.rects) > 0
}
