package renderer

import (
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/gputypes"
)

// The descriptors speak gputypes; cogentcore/webgpu has its own enum values for the same WebGPU concepts.
// The tables below cover the subset the engine uses. Unmapped values fall back to the zero wgpu value,
// which the native layer rejects with a validation error naming the field.

var textureFormats = map[gputypes.TextureFormat]wgpu.TextureFormat{
	gputypes.TextureFormatR8Unorm:             wgpu.TextureFormatR8Unorm,
	gputypes.TextureFormatRGBA8Unorm:          wgpu.TextureFormatRGBA8Unorm,
	gputypes.TextureFormatRGBA8UnormSrgb:      wgpu.TextureFormatRGBA8UnormSrgb,
	gputypes.TextureFormatBGRA8Unorm:          wgpu.TextureFormatBGRA8Unorm,
	gputypes.TextureFormatBGRA8UnormSrgb:      wgpu.TextureFormatBGRA8UnormSrgb,
	gputypes.TextureFormatRGBA16Float:         wgpu.TextureFormatRGBA16Float,
	gputypes.TextureFormatRGBA32Float:         wgpu.TextureFormatRGBA32Float,
	gputypes.TextureFormatDepth24Plus:         wgpu.TextureFormatDepth24Plus,
	gputypes.TextureFormatDepth24PlusStencil8: wgpu.TextureFormatDepth24PlusStencil8,
	gputypes.TextureFormatDepth32Float:        wgpu.TextureFormatDepth32Float,
}

var vertexFormats = map[gputypes.VertexFormat]wgpu.VertexFormat{
	gputypes.VertexFormatFloat32:   wgpu.VertexFormatFloat32,
	gputypes.VertexFormatFloat32x2: wgpu.VertexFormatFloat32x2,
	gputypes.VertexFormatFloat32x3: wgpu.VertexFormatFloat32x3,
	gputypes.VertexFormatFloat32x4: wgpu.VertexFormatFloat32x4,
	gputypes.VertexFormatUint32:    wgpu.VertexFormatUint32,
	gputypes.VertexFormatSint32:    wgpu.VertexFormatSint32,
}

var compareFunctions = map[gputypes.CompareFunction]wgpu.CompareFunction{
	gputypes.CompareFunctionNever:        wgpu.CompareFunctionNever,
	gputypes.CompareFunctionLess:         wgpu.CompareFunctionLess,
	gputypes.CompareFunctionEqual:        wgpu.CompareFunctionEqual,
	gputypes.CompareFunctionLessEqual:    wgpu.CompareFunctionLessEqual,
	gputypes.CompareFunctionGreater:      wgpu.CompareFunctionGreater,
	gputypes.CompareFunctionNotEqual:     wgpu.CompareFunctionNotEqual,
	gputypes.CompareFunctionGreaterEqual: wgpu.CompareFunctionGreaterEqual,
	gputypes.CompareFunctionAlways:       wgpu.CompareFunctionAlways,
}

var addressModes = map[gputypes.AddressMode]wgpu.AddressMode{
	gputypes.AddressModeClampToEdge:  wgpu.AddressModeClampToEdge,
	gputypes.AddressModeRepeat:       wgpu.AddressModeRepeat,
	gputypes.AddressModeMirrorRepeat: wgpu.AddressModeMirrorRepeat,
}

var filterModes = map[gputypes.FilterMode]wgpu.FilterMode{
	gputypes.FilterModeNearest: wgpu.FilterModeNearest,
	gputypes.FilterModeLinear:  wgpu.FilterModeLinear,
}

var topologies = map[gputypes.PrimitiveTopology]wgpu.PrimitiveTopology{
	gputypes.PrimitiveTopologyPointList:     wgpu.PrimitiveTopologyPointList,
	gputypes.PrimitiveTopologyLineList:      wgpu.PrimitiveTopologyLineList,
	gputypes.PrimitiveTopologyTriangleList:  wgpu.PrimitiveTopologyTriangleList,
	gputypes.PrimitiveTopologyTriangleStrip: wgpu.PrimitiveTopologyTriangleStrip,
}

var cullModes = map[gputypes.CullMode]wgpu.CullMode{
	gputypes.CullModeNone:  wgpu.CullModeNone,
	gputypes.CullModeFront: wgpu.CullModeFront,
	gputypes.CullModeBack:  wgpu.CullModeBack,
}

var bufferBindingTypes = map[gputypes.BufferBindingType]wgpu.BufferBindingType{
	gputypes.BufferBindingTypeUniform:         wgpu.BufferBindingTypeUniform,
	gputypes.BufferBindingTypeStorage:         wgpu.BufferBindingTypeStorage,
	gputypes.BufferBindingTypeReadOnlyStorage: wgpu.BufferBindingTypeReadOnlyStorage,
}

var samplerBindingTypes = map[gputypes.SamplerBindingType]wgpu.SamplerBindingType{
	gputypes.SamplerBindingTypeFiltering:    wgpu.SamplerBindingTypeFiltering,
	gputypes.SamplerBindingTypeNonFiltering: wgpu.SamplerBindingTypeNonFiltering,
	gputypes.SamplerBindingTypeComparison:   wgpu.SamplerBindingTypeComparison,
}

var sampleTypes = map[gputypes.TextureSampleType]wgpu.TextureSampleType{
	gputypes.TextureSampleTypeFloat:             wgpu.TextureSampleTypeFloat,
	gputypes.TextureSampleTypeUnfilterableFloat: wgpu.TextureSampleTypeUnfilterableFloat,
	gputypes.TextureSampleTypeDepth:             wgpu.TextureSampleTypeDepth,
	gputypes.TextureSampleTypeSint:             wgpu.TextureSampleTypeSint,
	gputypes.TextureSampleTypeUint:             wgpu.TextureSampleTypeUint,
}

var viewDimensions = map[gputypes.TextureViewDimension]wgpu.TextureViewDimension{
	gputypes.TextureViewDimension2D:      wgpu.TextureViewDimension2D,
	gputypes.TextureViewDimension2DArray: wgpu.TextureViewDimension2DArray,
	gputypes.TextureViewDimension3D:      wgpu.TextureViewDimension3D,
}

var blendFactors = map[gputypes.BlendFactor]wgpu.BlendFactor{
	gputypes.BlendFactorZero:             wgpu.BlendFactorZero,
	gputypes.BlendFactorOne:              wgpu.BlendFactorOne,
	gputypes.BlendFactorSrcAlpha:         wgpu.BlendFactorSrcAlpha,
	gputypes.BlendFactorOneMinusSrcAlpha: wgpu.BlendFactorOneMinusSrcAlpha,
}

func toBufferUsage(u gputypes.BufferUsage) wgpu.BufferUsage {
	var out wgpu.BufferUsage
	for _, m := range []struct {
		from gputypes.BufferUsage
		to   wgpu.BufferUsage
	}{
		{gputypes.BufferUsageMapRead, wgpu.BufferUsageMapRead},
		{gputypes.BufferUsageMapWrite, wgpu.BufferUsageMapWrite},
		{gputypes.BufferUsageCopySrc, wgpu.BufferUsageCopySrc},
		{gputypes.BufferUsageCopyDst, wgpu.BufferUsageCopyDst},
		{gputypes.BufferUsageIndex, wgpu.BufferUsageIndex},
		{gputypes.BufferUsageVertex, wgpu.BufferUsageVertex},
		{gputypes.BufferUsageUniform, wgpu.BufferUsageUniform},
		{gputypes.BufferUsageStorage, wgpu.BufferUsageStorage},
		{gputypes.BufferUsageIndirect, wgpu.BufferUsageIndirect},
	} {
		if u&m.from != 0 {
			out |= m.to
		}
	}
	return out
}

func toTextureUsage(u gputypes.TextureUsage) wgpu.TextureUsage {
	var out wgpu.TextureUsage
	for _, m := range []struct {
		from gputypes.TextureUsage
		to   wgpu.TextureUsage
	}{
		{gputypes.TextureUsageCopySrc, wgpu.TextureUsageCopySrc},
		{gputypes.TextureUsageCopyDst, wgpu.TextureUsageCopyDst},
		{gputypes.TextureUsageTextureBinding, wgpu.TextureUsageTextureBinding},
		{gputypes.TextureUsageStorageBinding, wgpu.TextureUsageStorageBinding},
		{gputypes.TextureUsageRenderAttachment, wgpu.TextureUsageRenderAttachment},
	} {
		if u&m.from != 0 {
			out |= m.to
		}
	}
	return out
}

func toShaderStage(s gputypes.ShaderStage) wgpu.ShaderStage {
	out := wgpu.ShaderStageNone
	if s&gputypes.ShaderStageVertex != 0 {
		out |= wgpu.ShaderStageVertex
	}
	if s&gputypes.ShaderStageFragment != 0 {
		out |= wgpu.ShaderStageFragment
	}
	if s&gputypes.ShaderStageCompute != 0 {
		out |= wgpu.ShaderStageCompute
	}
	return out
}

func toWriteMask(m gputypes.ColorWriteMask) wgpu.ColorWriteMask {
	if m == gputypes.ColorWriteMaskAll {
		return wgpu.ColorWriteMaskAll
	}
	var out wgpu.ColorWriteMask
	for _, c := range []struct {
		from gputypes.ColorWriteMask
		to   wgpu.ColorWriteMask
	}{
		{gputypes.ColorWriteMaskRed, wgpu.ColorWriteMaskRed},
		{gputypes.ColorWriteMaskGreen, wgpu.ColorWriteMaskGreen},
		{gputypes.ColorWriteMaskBlue, wgpu.ColorWriteMaskBlue},
		{gputypes.ColorWriteMaskAlpha, wgpu.ColorWriteMaskAlpha},
	} {
		if m&c.from != 0 {
			out |= c.to
		}
	}
	return out
}

func toFrontFace(f gputypes.FrontFace) wgpu.FrontFace {
	if f == gputypes.FrontFaceCW {
		return wgpu.FrontFaceCW
	}
	return wgpu.FrontFaceCCW
}

func toLoadOp(op gputypes.LoadOp) wgpu.LoadOp {
	if op == gputypes.LoadOpLoad {
		return wgpu.LoadOpLoad
	}
	return wgpu.LoadOpClear
}

func toStoreOp(op gputypes.StoreOp) wgpu.StoreOp {
	if op == gputypes.StoreOpDiscard {
		return wgpu.StoreOpDiscard
	}
	return wgpu.StoreOpStore
}

func toBlendState(b *gputypes.BlendState) *wgpu.BlendState {
	if b == nil {
		return nil
	}
	component := func(c gputypes.BlendComponent) wgpu.BlendComponent {
		return wgpu.BlendComponent{
			SrcFactor: blendFactors[c.SrcFactor],
			DstFactor: blendFactors[c.DstFactor],
			Operation: wgpu.BlendOperationAdd,
		}
	}
	return &wgpu.BlendState{Color: component(b.Color), Alpha: component(b.Alpha)}
}

func toLayoutEntry(e gputypes.BindGroupLayoutEntry) wgpu.BindGroupLayoutEntry {
	out := wgpu.BindGroupLayoutEntry{
		Binding:    e.Binding,
		Visibility: toShaderStage(e.Visibility),
	}
	switch {
	case e.Buffer != nil:
		out.Buffer.Type = bufferBindingTypes[e.Buffer.Type]
		out.Buffer.HasDynamicOffset = e.Buffer.HasDynamicOffset
		out.Buffer.MinBindingSize = e.Buffer.MinBindingSize
	case e.Sampler != nil:
		out.Sampler.Type = samplerBindingTypes[e.Sampler.Type]
	case e.Texture != nil:
		out.Texture.SampleType = sampleTypes[e.Texture.SampleType]
		out.Texture.ViewDimension = viewDimensions[e.Texture.ViewDimension]
		out.Texture.Multisampled = e.Texture.Multisampled
	}
	return out
}

func toVertexLayouts(layouts []gputypes.VertexBufferLayout) []wgpu.VertexBufferLayout {
	out := make([]wgpu.VertexBufferLayout, 0, len(layouts))
	for _, l := range layouts {
		attrs := make([]wgpu.VertexAttribute, 0, len(l.Attributes))
		for _, a := range l.Attributes {
			attrs = append(attrs, wgpu.VertexAttribute{
				Format:         vertexFormats[a.Format],
				Offset:         a.Offset,
				ShaderLocation: a.ShaderLocation,
			})
		}
		step := wgpu.VertexStepModeVertex
		if l.StepMode == gputypes.VertexStepModeInstance {
			step = wgpu.VertexStepModeInstance
		}
		out = append(out, wgpu.VertexBufferLayout{
			ArrayStride: l.ArrayStride,
			StepMode:    step,
			Attributes:  attrs,
		})
	}
	return out
}

func fromTextureFormat(f wgpu.TextureFormat) gputypes.TextureFormat {
	for k, v := range textureFormats {
		if v == f {
			return k
		}
	}
	return gputypes.TextureFormatUndefined
}
