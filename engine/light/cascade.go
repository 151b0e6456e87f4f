package light

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/hikari/common"
	"github.com/Carmen-Shannon/hikari/engine/camera"
	"github.com/Carmen-Shannon/hikari/engine/own"
	"github.com/Carmen-Shannon/hikari/engine/renderer"
	"github.com/gogpu/gputypes"
)

// ErrClosed is returned by a CascadeSet after Close.
var ErrClosed = errors.New("light: cascade set closed")

// Lighting bind group layout: the light uniform, the matrices and fars storage buffers and the
// comparison sampler come first, then one depth texture per cascade.
const (
	BindingLightData    = 0
	BindingMatrices     = 1
	BindingFars         = 2
	BindingSampler      = 3
	BindingFirstCascade = 4
)

// cascadeResources is everything whose shape depends on the cascade count or resolution.
// It is created and released as a unit.
type cascadeResources struct {
	count      int
	resolution uint32

	textures   []own.Own[*renderer.Texture]
	pipelines  []own.Own[*renderer.RenderPipeline]
	passGroups []own.Own[*renderer.BindGroup]

	matrices  own.Own[*renderer.Buffer]
	fars      own.Own[*renderer.Buffer]
	lightData own.Own[*renderer.Buffer]

	lightingLayout own.Own[*renderer.BindGroupLayout]
	lightingGroup  own.Own[*renderer.BindGroup]
}

func (res *cascadeResources) release() {
	res.lightingGroup.Dispose()
	res.lightingLayout.Dispose()
	for _, g := range slices.Backward(res.passGroups) {
		g.Dispose()
	}
	for _, p := range slices.Backward(res.pipelines) {
		p.Dispose()
	}
	for _, t := range slices.Backward(res.textures) {
		t.Dispose()
	}
	res.lightData.Dispose()
	res.fars.Dispose()
	res.matrices.Dispose()
}

// cascadeState is the CPU result of the last Update.
type cascadeState struct {
	fars     []float32
	ranges   []float32
	matrices []common.Mat4
	frusta   []common.Frustum
}

// fitted is one cascade's result from the worker pool.
type fitted struct {
	matrix     common.Mat4
	depthRange float32
}

// cascadeSet is the implementation of the CascadeSet interface.
type cascadeSet struct {
	mu *sync.Mutex

	r      renderer.Renderer
	light  DirectionalLight
	logger *slog.Logger

	pool    worker.DynamicWorkerPool
	workers int

	casterVertexLayout gputypes.VertexBufferLayout
	depthBias          int32
	depthBiasSlope     float32
	pullback           float32

	module      own.Own[*renderer.ShaderModule]
	passLayout  own.Own[*renderer.BindGroupLayout]
	modelLayout own.Own[*renderer.BindGroupLayout]
	sampler     own.Own[*renderer.Sampler]

	res   own.Own[*cascadeResources]
	state cascadeState

	// the inputs of the last successful Update; valid is false until then or after a reconfigure
	camera        camera.Camera
	cameraVersion uint64
	lightVersion  uint64
	valid         bool

	changed common.Event[CascadeSet]
	closed  bool
}

// CascadeSet owns the GPU resources of cascaded shadow mapping for one directional light.
//
// Each cascade has a depth texture, a depth-only pipeline with slope-scaled rasterizer bias, and a pass
// bind group selecting its matrix. The set also owns the matrices and fars storage buffers, a comparison
// sampler, and the lighting bind group that exposes all of them to the deferred lighting shader.
//
// Update, Reconfigure and Close are called from the main goroutine. Accessors may be called from any goroutine.
type CascadeSet interface {
	// Light returns the light the cascades are fitted for.
	Light() DirectionalLight

	// CascadeCount returns the number of allocated cascades.
	CascadeCount() int

	// Resolution returns the size in texels of each cascade's depth texture.
	Resolution() uint32

	// Fars returns a copy of the cascade far distances computed by the last Update.
	//
	// Returns:
	//   - []float32: strictly increasing far distances, nil before the first Update
	Fars() []float32

	// DepthRanges returns a copy of the light-space depth range of each cascade.
	DepthRanges() []float32

	// Matrix returns the light view-projection matrix of cascade i.
	Matrix(i int) common.Mat4

	// Frustum returns the light frustum of cascade i, for culling shadow casters.
	Frustum(i int) common.Frustum

	// DepthTexture returns the depth texture of cascade i.
	DepthTexture(i int) *renderer.Texture

	// Pipeline returns the depth pipeline of cascade i.
	Pipeline(i int) *renderer.RenderPipeline

	// PassBindGroup returns the group 0 bind group of cascade i's depth pipeline.
	PassBindGroup(i int) *renderer.BindGroup

	// ModelLayout returns the layout casters use for their group 1 bind group: one mat4x4 model uniform at
	// binding 0, visible to the vertex stage.
	ModelLayout() *renderer.BindGroupLayout

	// CasterVertexLayout returns the vertex layout the depth pipelines expect at slot 0.
	CasterVertexLayout() gputypes.VertexBufferLayout

	// LightingLayout returns the layout of LightingBindGroup.
	LightingLayout() *renderer.BindGroupLayout

	// LightingBindGroup returns the bind group sampled by the deferred lighting pass.
	LightingBindGroup() *renderer.BindGroup

	// ShaderSource returns the WGSL declarations and functions the lighting shader needs to sample the
	// cascades, with every binding placed in group.
	//
	// Parameters:
	//   - group: the bind group index LightingBindGroup is bound at
	//
	// Returns:
	//   - string: WGSL source defining shadow_visibility(distance, world_pos, n_dot_l)
	//   - error: a template execution error
	ShaderSource(group uint32) (string, error)

	// Reconfigure recreates every cascade resource when the count or resolution changes and then notifies
	// OnChanged subscribers. It is a no-op when both are unchanged. On failure the previous resources stay
	// in place.
	//
	// Parameters:
	//   - count: the cascade count, clamped to [1, MaxCascadeCount]
	//   - resolution: the depth texture size in texels, 0 keeps ShadowMapResolution
	//
	// Returns:
	//   - error: a *renderer.CreationError or ErrClosed
	Reconfigure(count int, resolution uint32) error

	// Update fits the cascades to the camera and writes the matrices, fars and light data. It recomputes only
	// when the camera or the light changed since the last call. The per-cascade fitting runs in parallel.
	//
	// Parameters:
	//   - c: the camera
	//
	// Returns:
	//   - bool: true if the buffers were rewritten
	//   - error: a buffer write error or ErrClosed
	Update(c camera.Camera) (bool, error)

	// OnChanged subscribes to reconfiguration. Consumers holding the lighting bind group or shader source
	// rebuild them here.
	OnChanged(fn func(CascadeSet)) func()

	// Close releases every GPU resource. Safe to call more than once.
	Close()
}

var _ CascadeSet = &cascadeSet{}

// NewCascadeSet creates the cascade resources for light, using the light's cascade count and shadow map
// resolution.
//
// Parameters:
//   - r: the renderer context
//   - l: the directional light
//   - options: variadic list of CascadeSetBuilderOption functions to configure the set
//
// Returns:
//   - CascadeSet: the new set
//   - error: a *renderer.CreationError if a resource could not be created
func NewCascadeSet(r renderer.Renderer, l DirectionalLight, options ...CascadeSetBuilderOption) (CascadeSet, error) {
	s := &cascadeSet{
		mu:      &sync.Mutex{},
		r:       r,
		light:   l,
		logger:  slog.Default(),
		workers: max(runtime.NumCPU()-1, 1),
		casterVertexLayout: gputypes.VertexBufferLayout{
			ArrayStride: 12,
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
			},
		},
		depthBias:      DefaultDepthBias,
		depthBiasSlope: DefaultDepthBiasSlopeScale,
		pullback:       DefaultCasterPullback,
	}
	for _, option := range options {
		option(s)
	}
	s.logger = s.logger.With("component", "cascades")
	s.pool = worker.NewDynamicWorkerPool(s.workers, 64, 1*time.Second)

	if err := s.createShared(); err != nil {
		s.Close()
		return nil, err
	}
	res, err := s.createResources(clampCascadeCount(l.CascadeCount()), common.Coalesce(l.ShadowMapResolution(), ShadowMapResolution))
	if err != nil {
		s.Close()
		return nil, err
	}
	s.res = res
	return s, nil
}

// createShared creates the resources that do not depend on the cascade count.
func (s *cascadeSet) createShared() error {
	module, err := s.r.CreateShaderModule(renderer.ShaderModuleDescriptor{
		Label: "cascade_depth",
		Code:  shadowDepthSource,
	})
	if err != nil {
		return err
	}
	s.module = module

	passLayout, err := s.r.CreateBindGroupLayout(renderer.BindGroupLayoutDescriptor{
		Label: "cascade_pass",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageVertex,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageVertex,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
		},
	})
	if err != nil {
		return err
	}
	s.passLayout = passLayout

	modelLayout, err := s.r.CreateBindGroupLayout(renderer.BindGroupLayoutDescriptor{
		Label: "cascade_model",
		Entries: []gputypes.BindGroupLayoutEntry{{
			Binding:    0,
			Visibility: gputypes.ShaderStageVertex,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
		}},
	})
	if err != nil {
		return err
	}
	s.modelLayout = modelLayout

	sampler, err := s.r.CreateSampler(renderer.SamplerDescriptor{
		Label:   "cascade_compare",
		Compare: gputypes.CompareFunctionLessEqual,
	})
	if err != nil {
		return err
	}
	s.sampler = sampler
	return nil
}

// createResources allocates a complete cascadeResources. On failure everything created so far is released.
func (s *cascadeSet) createResources(count int, resolution uint32) (res own.Own[*cascadeResources], err error) {
	c := &cascadeResources{count: count, resolution: resolution}
	defer func() {
		if err != nil {
			c.release()
		}
	}()

	if c.matrices, err = s.r.CreateBuffer(renderer.BufferDescriptor{
		Label: "cascade_matrices",
		Size:  uint64(64 * count),
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst,
	}); err != nil {
		return res, err
	}
	if c.fars, err = s.r.CreateBuffer(renderer.BufferDescriptor{
		Label: "cascade_fars",
		Size:  uint64(8 * count),
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst,
	}); err != nil {
		return res, err
	}
	if c.lightData, err = s.r.CreateBuffer(renderer.BufferDescriptor{
		Label: "directional_light",
		Size:  uint64((&GPUDirectionalLight{}).Size()),
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	}); err != nil {
		return res, err
	}
	matrices := c.matrices.MustValue()

	for i := range count {
		label := fmt.Sprintf("cascade_%d", i)
		tex, err := s.r.CreateTexture(renderer.TextureDescriptor{
			Label:  label,
			Size:   gputypes.Extent3D{Width: resolution, Height: resolution},
			Format: ShadowDepthFormat,
			Usage:  gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageTextureBinding,
		})
		if err != nil {
			return res, err
		}
		c.textures = append(c.textures, tex)

		pipeline, err := s.r.CreateRenderPipeline(renderer.RenderPipelineDescriptor{
			Label:            label,
			BindGroupLayouts: []*renderer.BindGroupLayout{s.passLayout.MustValue(), s.modelLayout.MustValue()},
			Vertex: renderer.VertexStage{
				Module:  s.module.MustValue(),
				Buffers: []gputypes.VertexBufferLayout{s.casterVertexLayout},
			},
			Primitive: gputypes.PrimitiveState{
				Topology: gputypes.PrimitiveTopologyTriangleList,
				CullMode: gputypes.CullModeBack,
			},
			DepthStencil: &renderer.DepthStencilState{
				Format:              ShadowDepthFormat,
				DepthWriteEnabled:   true,
				DepthCompare:        gputypes.CompareFunctionLess,
				DepthBias:           s.depthBias,
				DepthBiasSlopeScale: s.depthBiasSlope,
			},
		})
		if err != nil {
			return res, err
		}
		c.pipelines = append(c.pipelines, pipeline)

		index := GPUCascadeIndex{Index: uint32(i)}
		indexBuffer, err := s.r.CreateBuffer(renderer.BufferDescriptor{
			Label:    label + "_index",
			Usage:    gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
			Contents: index.Marshal(),
		})
		if err != nil {
			return res, err
		}
		group, err := s.r.CreateBindGroup(renderer.BindGroupDescriptor{
			Label:  label,
			Layout: s.passLayout.MustValue(),
			Entries: []renderer.BindGroupEntry{
				{Binding: 0, Buffer: matrices},
				{Binding: 1, Buffer: indexBuffer.MustValue()},
			},
			Owned: []renderer.Disposer{indexBuffer},
		})
		if err != nil {
			indexBuffer.Dispose()
			return res, err
		}
		c.passGroups = append(c.passGroups, group)
	}

	entries := []gputypes.BindGroupLayoutEntry{
		{
			Binding:    BindingLightData,
			Visibility: gputypes.ShaderStageFragment,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
		},
		{
			Binding:    BindingMatrices,
			Visibility: gputypes.ShaderStageFragment,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage},
		},
		{
			Binding:    BindingFars,
			Visibility: gputypes.ShaderStageFragment,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage},
		},
		{
			Binding:    BindingSampler,
			Visibility: gputypes.ShaderStageFragment,
			Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeComparison},
		},
	}
	for i := range count {
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding:    uint32(BindingFirstCascade + i),
			Visibility: gputypes.ShaderStageFragment,
			Texture: &gputypes.TextureBindingLayout{
				SampleType:    gputypes.TextureSampleTypeDepth,
				ViewDimension: gputypes.TextureViewDimension2D,
			},
		})
	}
	if c.lightingLayout, err = s.r.CreateBindGroupLayout(renderer.BindGroupLayoutDescriptor{
		Label:   "cascade_lighting",
		Entries: entries,
	}); err != nil {
		return res, err
	}

	bindings := []renderer.BindGroupEntry{
		{Binding: BindingLightData, Buffer: c.lightData.MustValue()},
		{Binding: BindingMatrices, Buffer: matrices},
		{Binding: BindingFars, Buffer: c.fars.MustValue()},
		{Binding: BindingSampler, Sampler: s.sampler.MustValue()},
	}
	for i, tex := range c.textures {
		bindings = append(bindings, renderer.BindGroupEntry{Binding: uint32(BindingFirstCascade + i), Texture: tex.MustValue()})
	}
	if c.lightingGroup, err = s.r.CreateBindGroup(renderer.BindGroupDescriptor{
		Label:   "cascade_lighting",
		Layout:  c.lightingLayout.MustValue(),
		Entries: bindings,
	}); err != nil {
		return res, err
	}

	return own.New(c, (*cascadeResources).release), nil
}

// current returns the live resources. Must be called with s.mu held.
func (s *cascadeSet) current() *cascadeResources {
	res, err := s.res.AsValue()
	if err != nil {
		panic(fmt.Errorf("light: cascade set used after close: %w", err))
	}
	return res
}

func (s *cascadeSet) Light() DirectionalLight {
	return s.light
}

func (s *cascadeSet) CascadeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current().count
}

func (s *cascadeSet) Resolution() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current().resolution
}

func (s *cascadeSet) Fars() []float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.state.fars)
}

func (s *cascadeSet) DepthRanges() []float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.state.ranges)
}

func (s *cascadeSet) Matrix(i int) common.Mat4 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.state.matrices) {
		return common.Identity()
	}
	return s.state.matrices[i]
}

func (s *cascadeSet) Frustum(i int) common.Frustum {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.state.frusta) {
		return common.ExtractFrustum(common.Identity())
	}
	return s.state.frusta[i]
}

func (s *cascadeSet) DepthTexture(i int) *renderer.Texture {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current().textures[i].MustValue()
}

func (s *cascadeSet) Pipeline(i int) *renderer.RenderPipeline {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current().pipelines[i].MustValue()
}

func (s *cascadeSet) PassBindGroup(i int) *renderer.BindGroup {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current().passGroups[i].MustValue()
}

func (s *cascadeSet) ModelLayout() *renderer.BindGroupLayout {
	return s.modelLayout.MustValue()
}

func (s *cascadeSet) CasterVertexLayout() gputypes.VertexBufferLayout {
	return s.casterVertexLayout
}

func (s *cascadeSet) LightingLayout() *renderer.BindGroupLayout {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current().lightingLayout.MustValue()
}

func (s *cascadeSet) LightingBindGroup() *renderer.BindGroup {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current().lightingGroup.MustValue()
}

func (s *cascadeSet) ShaderSource(group uint32) (string, error) {
	s.mu.Lock()
	res := s.current()
	count, resolution := res.count, res.resolution
	s.mu.Unlock()
	return ShadowShaderSource(group, count, resolution)
}

func (s *cascadeSet) Reconfigure(count int, resolution uint32) error {
	count = clampCascadeCount(count)
	resolution = common.Coalesce(resolution, ShadowMapResolution)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	res := s.current()
	if res.count == count && res.resolution == resolution {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	next, err := s.createResources(count, resolution)
	if err != nil {
		s.logger.Error("cascade reconfigure failed, keeping previous cascades", "cascades", count, "resolution", resolution, "error", err)
		return err
	}

	s.mu.Lock()
	previous := s.res.Take()
	s.res = next
	s.state = cascadeState{}
	s.valid = false
	s.mu.Unlock()

	previous.Dispose()
	s.logger.Debug("cascades reconfigured", "cascades", count, "resolution", resolution)
	s.changed.Invoke(s.logger, "cascades_changed", s)
	return nil
}

func (s *cascadeSet) Update(c camera.Camera) (bool, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false, ErrClosed
	}
	res := s.current()
	cameraVersion, lightVersion := c.Version(), s.light.Version()
	if s.valid && s.camera == c && s.cameraVersion == cameraVersion && s.lightVersion == lightVersion {
		s.mu.Unlock()
		return false, nil
	}
	count, pool := res.count, s.pool
	s.mu.Unlock()

	near := c.Near()
	far := min(s.light.MaxShadowDistance(), c.Far())
	if far <= near {
		far = c.Far()
	}
	fars := SplitDistances(near, far, count)
	view, fov, aspect := c.ViewMatrix(), c.Fov(), c.Aspect()
	direction := s.light.Direction()

	results := make([]fitted, count)
	var wg sync.WaitGroup
	for i := range count {
		wg.Add(1)
		cascadeNear := near
		if i > 0 {
			cascadeNear = fars[i-1]
		}
		pool.SubmitTask(worker.Task{
			ID: i,
			Do: func() (any, error) {
				defer wg.Done()
				m, r := FitCascade(view, fov, aspect, cascadeNear, fars[i], direction, s.pullback)
				results[i] = fitted{matrix: m, depthRange: r}
				return nil, nil
			},
		})
	}
	wg.Wait()

	state := cascadeState{
		fars:     fars,
		ranges:   make([]float32, count),
		matrices: make([]common.Mat4, count),
		frusta:   make([]common.Frustum, count),
	}
	for i, f := range results {
		state.ranges[i] = f.depthRange
		state.matrices[i] = f.matrix
		state.frusta[i] = common.ExtractFrustum(f.matrix)
	}

	lightData := ToGPUDirectionalLight(s.light, count)
	if err := res.matrices.MustValue().Write(0, MarshalMatrices(state.matrices)); err != nil {
		return false, err
	}
	if err := res.fars.MustValue().Write(0, MarshalFars(state.fars, state.ranges)); err != nil {
		return false, err
	}
	if err := res.lightData.MustValue().Write(0, lightData.Marshal()); err != nil {
		return false, err
	}

	s.mu.Lock()
	s.state = state
	s.camera = c
	s.cameraVersion = cameraVersion
	s.lightVersion = lightVersion
	s.valid = true
	s.mu.Unlock()
	return true, nil
}

func (s *cascadeSet) OnChanged(fn func(CascadeSet)) func() {
	return s.changed.Subscribe(fn)
}

func (s *cascadeSet) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	res := s.res.Take()
	s.mu.Unlock()

	res.Dispose()
	s.sampler.Dispose()
	s.modelLayout.Dispose()
	s.passLayout.Dispose()
	s.module.Dispose()
	s.changed.Clear()
	s.stopPool()
}

// stopPool ends every worker goroutine. The pool's Stop signals workers over a shared channel that any
// worker may consume, so each worker is first retired with a task that ends its goroutine.
func (s *cascadeSet) stopPool() {
	if s.pool == nil {
		return
	}
	var wg sync.WaitGroup
	for i := range s.pool.GetMaxWorkers() {
		wg.Add(1)
		s.pool.SubmitTask(worker.Task{
			ID: -1 - i,
			Do: func() (any, error) {
				defer wg.Done()
				runtime.Goexit()
				return nil, nil
			},
		})
	}
	wg.Wait()
	s.pool.Stop()
	s.pool = nil
}
