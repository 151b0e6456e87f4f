package renderer

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/gputypes"
)

type wgpuTexture struct {
	texture *wgpu.Texture
	view    *wgpu.TextureView
}

type wgpuPipeline struct {
	pipeline *wgpu.RenderPipeline
	layout   *wgpu.PipelineLayout
}

// wgpuBackend implements Backend over cogentcore/webgpu. Native objects live in a handle table so that
// the rest of the engine never touches a *wgpu type.
type wgpuBackend struct {
	mu     *sync.Mutex
	device *wgpu.Device
	queue  *wgpu.Queue

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	surface  *wgpu.Surface

	surfaceFormat wgpu.TextureFormat
	presentMode   wgpu.PresentMode
	configured    bool

	next    Handle
	objects map[Handle]any
}

var _ Backend = &wgpuBackend{}

// NewWGPUBackend creates the WebGPU instance, surface, adapter and device. The calling goroutine is locked to its
// OS thread since the native surface must be driven from the thread that created it.
//
// Device creation failures panic: nothing in the engine can run without a device.
//
// Parameters:
//   - surfaceDescriptor: the platform surface descriptor, typically from window.Window.SurfaceDescriptor
//   - forceFallbackAdapter: true to request a software adapter
//
// Returns:
//   - Backend: the WebGPU backend
func NewWGPUBackend(surfaceDescriptor *wgpu.SurfaceDescriptor, forceFallbackAdapter bool) Backend {
	runtime.LockOSThread()
	b := &wgpuBackend{
		mu:          &sync.Mutex{},
		instance:    wgpu.CreateInstance(nil),
		presentMode: wgpu.PresentModeImmediate,
		objects:     make(map[Handle]any),
	}
	b.surface = b.instance.CreateSurface(surfaceDescriptor)

	a, err := b.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: forceFallbackAdapter,
		CompatibleSurface:    b.surface,
	})
	if err != nil {
		panic(err)
	}
	b.adapter = a

	// Cascade lighting binds up to six groups; raise the default of four.
	limits := wgpu.DefaultLimits()
	limits.MaxBindGroups = 8

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "hikari device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: limits,
		},
	})
	if err != nil {
		panic(err)
	}
	b.device = d
	b.queue = d.GetQueue()

	capabilities := b.surface.GetCapabilities(b.adapter)
	b.surfaceFormat = capabilities.Formats[0]
	return b
}

func (b *wgpuBackend) store(obj any) Handle {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	b.objects[b.next] = obj
	return b.next
}

func lookup[T any](b *wgpuBackend, h Handle) (T, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	obj, ok := b.objects[h].(T)
	if !ok {
		return obj, fmt.Errorf("wgpu backend: unknown handle %d", h)
	}
	return obj, nil
}

func (b *wgpuBackend) CreateBuffer(desc *BufferDescriptor) (Handle, error) {
	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            desc.Label,
		Size:             desc.Size,
		Usage:            toBufferUsage(desc.Usage),
		MappedAtCreation: false,
	})
	if err != nil {
		return 0, err
	}
	if len(desc.Contents) > 0 {
		b.queue.WriteBuffer(buf, 0, desc.Contents)
	}
	return b.store(buf), nil
}

func (b *wgpuBackend) CreateTexture(desc *TextureDescriptor) (Handle, error) {
	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: desc.Label,
		Size: wgpu.Extent3D{
			Width:              desc.Size.Width,
			Height:             desc.Size.Height,
			DepthOrArrayLayers: desc.Size.DepthOrArrayLayers,
		},
		MipLevelCount: desc.MipLevelCount,
		SampleCount:   desc.SampleCount,
		Dimension:     wgpu.TextureDimension2D,
		Format:        textureFormats[desc.Format],
		Usage:         toTextureUsage(desc.Usage),
	})
	if err != nil {
		return 0, err
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return 0, err
	}
	return b.store(&wgpuTexture{texture: tex, view: view}), nil
}

func (b *wgpuBackend) CreateSampler(desc *SamplerDescriptor) (Handle, error) {
	sd := &wgpu.SamplerDescriptor{
		Label:         desc.Label,
		AddressModeU:  addressModes[desc.AddressModeU],
		AddressModeV:  addressModes[desc.AddressModeV],
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MagFilter:     filterModes[desc.MagFilter],
		MinFilter:     filterModes[desc.MinFilter],
		MipmapFilter:  wgpu.MipmapFilterModeNearest,
		LodMaxClamp:   32.0,
		MaxAnisotropy: 1,
	}
	if desc.Compare != 0 {
		sd.Compare = compareFunctions[desc.Compare]
	}
	s, err := b.device.CreateSampler(sd)
	if err != nil {
		return 0, err
	}
	return b.store(s), nil
}

func (b *wgpuBackend) CreateShaderModule(desc *ShaderModuleDescriptor) (Handle, error) {
	m, err := b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: desc.Label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: desc.Code,
		},
	})
	if err != nil {
		return 0, err
	}
	return b.store(m), nil
}

func (b *wgpuBackend) CreateBindGroupLayout(desc *BindGroupLayoutDescriptor) (Handle, error) {
	entries := make([]wgpu.BindGroupLayoutEntry, 0, len(desc.Entries))
	for _, e := range desc.Entries {
		entries = append(entries, toLayoutEntry(e))
	}
	l, err := b.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   desc.Label,
		Entries: entries,
	})
	if err != nil {
		return 0, err
	}
	return b.store(l), nil
}

func (b *wgpuBackend) CreateBindGroup(desc *BindGroupDescriptor) (Handle, error) {
	layout, err := lookup[*wgpu.BindGroupLayout](b, desc.Layout.Handle())
	if err != nil {
		return 0, err
	}
	entries := make([]wgpu.BindGroupEntry, 0, len(desc.Entries))
	for _, e := range desc.Entries {
		switch {
		case e.Buffer != nil:
			buf, err := lookup[*wgpu.Buffer](b, e.Buffer.Handle())
			if err != nil {
				return 0, err
			}
			size := e.Size
			if size == 0 {
				size = wgpu.WholeSize
			}
			entries = append(entries, wgpu.BindGroupEntry{Binding: e.Binding, Buffer: buf, Offset: e.Offset, Size: size})
		case e.Texture != nil:
			tex, err := lookup[*wgpuTexture](b, e.Texture.Handle())
			if err != nil {
				return 0, err
			}
			entries = append(entries, wgpu.BindGroupEntry{Binding: e.Binding, TextureView: tex.view})
		case e.Sampler != nil:
			s, err := lookup[*wgpu.Sampler](b, e.Sampler.Handle())
			if err != nil {
				return 0, err
			}
			entries = append(entries, wgpu.BindGroupEntry{Binding: e.Binding, Sampler: s})
		}
	}
	g, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   desc.Label,
		Layout:  layout,
		Entries: entries,
	})
	if err != nil {
		return 0, err
	}
	return b.store(g), nil
}

func (b *wgpuBackend) CreateRenderPipeline(desc *RenderPipelineDescriptor) (Handle, error) {
	layouts := make([]*wgpu.BindGroupLayout, 0, len(desc.BindGroupLayouts))
	for _, l := range desc.BindGroupLayouts {
		native, err := lookup[*wgpu.BindGroupLayout](b, l.Handle())
		if err != nil {
			return 0, err
		}
		layouts = append(layouts, native)
	}
	pipelineLayout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            desc.Label + " layout",
		BindGroupLayouts: layouts,
	})
	if err != nil {
		return 0, err
	}

	vs, err := lookup[*wgpu.ShaderModule](b, desc.Vertex.Module.Handle())
	if err != nil {
		pipelineLayout.Release()
		return 0, err
	}

	rpd := &wgpu.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     vs,
			EntryPoint: desc.Vertex.EntryPoint,
			Buffers:    toVertexLayouts(desc.Vertex.Buffers),
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  topologies[desc.Primitive.Topology],
			FrontFace: toFrontFace(desc.Primitive.FrontFace),
			CullMode:  cullModes[desc.Primitive.CullMode],
		},
		Multisample: wgpu.MultisampleState{
			Count: desc.SampleCount,
			Mask:  0xFFFFFFFF,
		},
	}
	if desc.Fragment != nil {
		fs, err := lookup[*wgpu.ShaderModule](b, desc.Fragment.Module.Handle())
		if err != nil {
			pipelineLayout.Release()
			return 0, err
		}
		targets := make([]wgpu.ColorTargetState, 0, len(desc.Fragment.Targets))
		for _, t := range desc.Fragment.Targets {
			format := textureFormats[t.Format]
			if t.Format == gputypes.TextureFormatUndefined {
				format = b.surfaceFormat
			}
			targets = append(targets, wgpu.ColorTargetState{
				Format:    format,
				Blend:     toBlendState(t.Blend),
				WriteMask: toWriteMask(t.WriteMask),
			})
		}
		rpd.Fragment = &wgpu.FragmentState{
			Module:     fs,
			EntryPoint: desc.Fragment.EntryPoint,
			Targets:    targets,
		}
	}
	if ds := desc.DepthStencil; ds != nil {
		rpd.DepthStencil = &wgpu.DepthStencilState{
			Format:              textureFormats[ds.Format],
			DepthWriteEnabled:   ds.DepthWriteEnabled,
			DepthCompare:        compareFunctions[ds.DepthCompare],
			DepthBias:           ds.DepthBias,
			DepthBiasSlopeScale: ds.DepthBiasSlopeScale,
			StencilFront: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
			StencilBack: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
		}
	}

	created, err := b.device.CreateRenderPipeline(rpd)
	if err != nil {
		pipelineLayout.Release()
		return 0, err
	}
	return b.store(&wgpuPipeline{pipeline: created, layout: pipelineLayout}), nil
}

func (b *wgpuBackend) Destroy(kind ResourceKind, h Handle) {
	b.mu.Lock()
	obj, ok := b.objects[h]
	delete(b.objects, h)
	b.mu.Unlock()
	if !ok {
		return
	}
	releaseObject(obj)
}

func releaseObject(obj any) {
	switch o := obj.(type) {
	case *wgpu.Buffer:
		o.Release()
	case *wgpuTexture:
		o.view.Release()
		o.texture.Release()
	case *wgpu.Sampler:
		o.Release()
	case *wgpu.ShaderModule:
		o.Release()
	case *wgpu.BindGroupLayout:
		o.Release()
	case *wgpu.BindGroup:
		o.Release()
	case *wgpuPipeline:
		o.pipeline.Release()
		o.layout.Release()
	}
}

func (b *wgpuBackend) WriteBuffer(h Handle, offset uint64, data []byte) error {
	buf, err := lookup[*wgpu.Buffer](b, h)
	if err != nil {
		return err
	}
	b.queue.WriteBuffer(buf, offset, data)
	return nil
}

func (b *wgpuBackend) ConfigureSurface(width, height uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	capabilities := b.surface.GetCapabilities(b.adapter)
	if len(capabilities.Formats) == 0 {
		return ErrSurfaceUnavailable
	}
	b.surfaceFormat = capabilities.Formats[0]
	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      b.surfaceFormat,
		Width:       width,
		Height:      height,
		PresentMode: b.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})
	b.configured = true
	return nil
}

func (b *wgpuBackend) SetPresentMode(mode PresentMode) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch mode {
	case PresentModeVSync:
		b.presentMode = wgpu.PresentModeFifo
	case PresentModeUncapped:
		fallthrough
	default:
		b.presentMode = wgpu.PresentModeImmediate
	}
}

func (b *wgpuBackend) SurfaceFormat() gputypes.TextureFormat {
	b.mu.Lock()
	defer b.mu.Unlock()
	return fromTextureFormat(b.surfaceFormat)
}

func (b *wgpuBackend) AcquireFrame() (BackendFrame, error) {
	b.mu.Lock()
	configured := b.configured
	b.mu.Unlock()
	if !configured {
		return nil, ErrSurfaceUnavailable
	}

	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSurfaceUnavailable, err)
	}
	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return nil, fmt.Errorf("%w: %v", ErrSurfaceUnavailable, err)
	}
	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		view.Release()
		surfaceTexture.Release()
		return nil, fmt.Errorf("%w: %v", ErrDeviceLost, err)
	}
	return &wgpuFrame{b: b, encoder: encoder, surfaceTexture: surfaceTexture, surfaceView: view}, nil
}

func (b *wgpuBackend) Release() {
	b.mu.Lock()
	objects := b.objects
	b.objects = make(map[Handle]any)
	b.mu.Unlock()

	for _, obj := range objects {
		releaseObject(obj)
	}
	if b.queue != nil {
		b.queue.Release()
	}
	if b.device != nil {
		b.device.Release()
	}
	if b.adapter != nil {
		b.adapter.Release()
	}
	if b.surface != nil {
		b.surface.Release()
	}
	if b.instance != nil {
		b.instance.Release()
	}
}

type wgpuFrame struct {
	b              *wgpuBackend
	encoder        *wgpu.CommandEncoder
	surfaceTexture *wgpu.Texture
	surfaceView    *wgpu.TextureView
	submitted      bool
}

func (f *wgpuFrame) BeginPass(desc *PassDescriptor) (BackendPass, error) {
	rpd := &wgpu.RenderPassDescriptor{Label: desc.Label}
	for _, c := range desc.Colors {
		view := f.surfaceView
		if c.Target != nil {
			tex, err := lookup[*wgpuTexture](f.b, c.Target.Handle())
			if err != nil {
				return nil, err
			}
			view = tex.view
		}
		rpd.ColorAttachments = append(rpd.ColorAttachments, wgpu.RenderPassColorAttachment{
			View:       view,
			LoadOp:     toLoadOp(c.Load),
			StoreOp:    toStoreOp(c.Store),
			ClearValue: wgpu.Color{R: c.Clear.R, G: c.Clear.G, B: c.Clear.B, A: c.Clear.A},
		})
	}
	if d := desc.Depth; d != nil {
		tex, err := lookup[*wgpuTexture](f.b, d.Target.Handle())
		if err != nil {
			return nil, err
		}
		rpd.DepthStencilAttachment = &wgpu.RenderPassDepthStencilAttachment{
			View:            tex.view,
			DepthLoadOp:     toLoadOp(d.Load),
			DepthStoreOp:    toStoreOp(d.Store),
			DepthClearValue: d.ClearDepth,
		}
	}
	return &wgpuPass{b: f.b, pass: f.encoder.BeginRenderPass(rpd)}, nil
}

func (f *wgpuFrame) Submit() error {
	if f.submitted {
		return nil
	}
	f.submitted = true
	commandBuffer, err := f.encoder.Finish(nil)
	f.encoder.Release()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceLost, err)
	}
	f.b.queue.Submit(commandBuffer)
	commandBuffer.Release()
	return nil
}

func (f *wgpuFrame) Present() error {
	if f.surfaceTexture == nil {
		return errors.New("wgpu backend: frame already presented")
	}
	f.b.surface.Present()
	f.surfaceView.Release()
	f.surfaceTexture.Release()
	f.surfaceView = nil
	f.surfaceTexture = nil
	return nil
}

type wgpuPass struct {
	b    *wgpuBackend
	pass *wgpu.RenderPassEncoder
	err  error
}

func (p *wgpuPass) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}

func (p *wgpuPass) SetPipeline(h Handle) {
	pl, err := lookup[*wgpuPipeline](p.b, h)
	if err != nil {
		p.fail(err)
		return
	}
	p.pass.SetPipeline(pl.pipeline)
}

func (p *wgpuPass) SetBindGroup(index uint32, h Handle) {
	g, err := lookup[*wgpu.BindGroup](p.b, h)
	if err != nil {
		p.fail(err)
		return
	}
	p.pass.SetBindGroup(index, g, nil)
}

func (p *wgpuPass) SetVertexBuffer(slot uint32, h Handle) {
	buf, err := lookup[*wgpu.Buffer](p.b, h)
	if err != nil {
		p.fail(err)
		return
	}
	p.pass.SetVertexBuffer(slot, buf, 0, wgpu.WholeSize)
}

func (p *wgpuPass) SetIndexBuffer(h Handle) {
	buf, err := lookup[*wgpu.Buffer](p.b, h)
	if err != nil {
		p.fail(err)
		return
	}
	p.pass.SetIndexBuffer(buf, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
}

func (p *wgpuPass) Draw(vertexCount, instanceCount uint32) {
	p.pass.Draw(vertexCount, instanceCount, 0, 0)
}

func (p *wgpuPass) DrawIndexed(indexCount, instanceCount uint32) {
	p.pass.DrawIndexed(indexCount, instanceCount, 0, 0, 0)
}

func (p *wgpuPass) End() error {
	p.pass.End()
	p.pass.Release()
	return p.err
}
