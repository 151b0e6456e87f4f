// Package screen drives the frame loop: it owns the per-phase timing queues, the operation registry, the
// scene store and the render targets every operation draws into, and it runs one frame at a time on the
// main goroutine.
package screen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/hikari/common"
	"github.com/Carmen-Shannon/hikari/engine/camera"
	"github.com/Carmen-Shannon/hikari/engine/deferred"
	"github.com/Carmen-Shannon/hikari/engine/gbuffer"
	"github.com/Carmen-Shannon/hikari/engine/light"
	"github.com/Carmen-Shannon/hikari/engine/operation"
	"github.com/Carmen-Shannon/hikari/engine/own"
	"github.com/Carmen-Shannon/hikari/engine/profiler"
	"github.com/Carmen-Shannon/hikari/engine/renderer"
	"github.com/Carmen-Shannon/hikari/engine/scene"
	"github.com/Carmen-Shannon/hikari/engine/timing"
	"github.com/gogpu/gputypes"
)

// DefaultDepthFormat is the format of the main depth target.
const DefaultDepthFormat = gputypes.TextureFormatDepth32Float

// firstFrameDelta is the delta time reported for the first frame, which has no predecessor.
const firstFrameDelta = time.Second / 60

// ErrClosed is returned by RunFrame once the screen has been torn down.
var ErrClosed = errors.New("screen: closed")

// Queue names, in drain order.
const (
	QueueCreated          = "created"
	QueueEarlyUpdate      = "early_update"
	QueueUpdate           = "update"
	QueueLateUpdate       = "late_update"
	QueuePrepareForRender = "prepare_for_render"
	QueueDestroyed        = "destroyed"
)

// CloseState is the state of the close handshake.
type CloseState int32

const (
	Running CloseState = iota
	CloseRequested
	Closed
)

func (s CloseState) String() string {
	switch s {
	case Running:
		return "Running"
	case CloseRequested:
		return "CloseRequested"
	case Closed:
		return "Closed"
	}
	return fmt.Sprintf("CloseState(%d)", int32(s))
}

type closingEvent struct {
	cancel bool
}

// screen is the implementation of the Screen interface.
type screen struct {
	r        renderer.Renderer
	registry operation.Registry
	store    scene.Store
	uniform  camera.Uniform
	gb       gbuffer.Provider
	cascades light.CascadeSet
	depth    own.Own[*renderer.Texture]

	created, earlyUpdate, update, lateUpdate, prepare, destroyed timing.Queue

	camera         camera.Camera
	light          light.DirectionalLight
	formats        []gputypes.TextureFormat
	depthFormat    gputypes.TextureFormat
	cascadeOptions []light.CascadeSetBuilderOption
	profiler       *profiler.Profiler

	state      atomic.Int32
	requested  atomic.Bool
	vetoUsed   bool
	tearDown   bool
	closing    common.Event[*closingEvent]
	closed     common.Event[Screen]
	closeOnce  sync.Once
	resizeMu   sync.Mutex
	resize     *common.Size
	now        func() time.Time
	last       time.Time
	delta      time.Duration
	frameCount atomic.Uint64

	logger *slog.Logger
}

// Screen runs the frame loop against one renderer and owns everything drawn into it.
// RunFrame, Run and Close must be called from the main goroutine; RequestClose and Resize are safe from any
// goroutine.
type Screen interface {
	deferred.Host

	// Registry returns the registry of render operations.
	Registry() operation.Registry

	// Created returns the queue drained first in every frame, right before pending objects and operations
	// become live.
	Created() timing.Queue

	// EarlyUpdate returns the queue drained before the early update hooks.
	EarlyUpdate() timing.Queue

	// Update returns the queue drained before the update hooks.
	Update() timing.Queue

	// LateUpdate returns the queue drained before the late update hooks.
	LateUpdate() timing.Queue

	// PrepareForRender returns the queue drained before object uniforms are flushed.
	PrepareForRender() timing.Queue

	// Destroyed returns the queue drained after rendering, right before terminated objects and operations
	// are released.
	Destroyed() timing.Queue

	// FrameNumber returns the number of frames presented so far.
	FrameNumber() uint64

	// DeltaTime returns the delta time of the current or last frame.
	DeltaTime() time.Duration

	// State returns the close state.
	State() CloseState

	// RequestClose asks the screen to close. The request is handled on the main goroutine at the next
	// Update drain, where OnClosing subscribers may veto it.
	RequestClose()

	// OnClosing subscribes to close requests. A subscriber returning true cancels the request. Only the
	// first veto is honoured; later requests always close.
	//
	// Parameters:
	//   - fn: the subscriber
	//
	// Returns:
	//   - func(): unsubscribes fn
	OnClosing(fn func() bool) func()

	// OnClosed subscribes to the end of teardown, after every operation, object and render target was
	// released.
	OnClosed(fn func(Screen)) func()

	// Resize records a new surface size. It is applied at the start of the next frame, before anything is
	// drawn. A zero size is ignored.
	//
	// Parameters:
	//   - width: the surface width in pixels
	//   - height: the surface height in pixels
	Resize(width, height uint32)

	// RunFrame runs one frame. A frame whose surface is unavailable is skipped without error.
	//
	// Parameters:
	//   - ctx: checked before the frame starts
	//
	// Returns:
	//   - error: ErrClosed after teardown, renderer.ErrDeviceLost (after tearing down), or ctx.Err()
	RunFrame(ctx context.Context) error

	// Run runs frames until the screen closes or ctx is cancelled.
	//
	// Parameters:
	//   - ctx: cancellation closes the screen without consulting OnClosing
	//
	// Returns:
	//   - error: nil after a regular close, otherwise the fatal error or ctx.Err()
	Run(ctx context.Context) error

	// Close tears the screen down immediately without consulting OnClosing. Safe to call more than once.
	Close()
}

var _ Screen = &screen{}

// NewScreen creates a Screen on r. The renderer is borrowed and must outlive the screen.
//
// Parameters:
//   - r: the renderer context
//   - options: variadic list of ScreenBuilderOption functions to configure the Screen
//
// Returns:
//   - Screen: the new screen in state Running
//   - error: a *renderer.CreationError if any render target could not be created
func NewScreen(r renderer.Renderer, options ...ScreenBuilderOption) (_ Screen, err error) {
	s := &screen{
		r:           r,
		formats:     gbuffer.DefaultFormats,
		depthFormat: DefaultDepthFormat,
		now:         time.Now,
		logger:      slog.Default(),
	}
	for _, opt := range options {
		opt(s)
	}
	s.logger = s.logger.With("component", "screen")
	if s.camera == nil {
		s.camera = camera.NewCamera()
	}
	if s.light == nil {
		s.light = light.NewDirectionalLight()
	}

	deltaTime := timing.WithDeltaTime(func() time.Duration { return s.delta })
	queueLogger := timing.WithLogger(s.logger)
	s.created = timing.NewQueue(QueueCreated, queueLogger, deltaTime)
	s.earlyUpdate = timing.NewQueue(QueueEarlyUpdate, queueLogger, deltaTime)
	s.update = timing.NewQueue(QueueUpdate, queueLogger, deltaTime)
	s.lateUpdate = timing.NewQueue(QueueLateUpdate, queueLogger, deltaTime)
	s.prepare = timing.NewQueue(QueuePrepareForRender, queueLogger, deltaTime)
	s.destroyed = timing.NewQueue(QueueDestroyed, queueLogger, deltaTime)
	s.registry = operation.NewRegistry(operation.WithLogger(s.logger))

	defer func() {
		if err != nil {
			s.release()
		}
	}()

	size := r.SurfaceSize()
	if size.IsZero() {
		size = common.Size{Width: 1, Height: 1}
	} else {
		s.camera.SetAspect(size.Aspect())
	}
	if s.uniform, err = camera.NewUniform(r, s.camera); err != nil {
		return nil, err
	}
	if s.depth, err = s.createDepth(size); err != nil {
		return nil, err
	}
	if s.gb, err = gbuffer.NewProvider(r, size, s.formats, gbuffer.WithLogger(s.logger)); err != nil {
		return nil, err
	}
	cascadeOptions := append([]light.CascadeSetBuilderOption{
		light.WithLogger(s.logger),
		light.WithCasterVertexLayout(scene.PositionLayout()),
	}, s.cascadeOptions...)
	if s.cascades, err = light.NewCascadeSet(r, s.light, cascadeOptions...); err != nil {
		return nil, err
	}
	if s.store, err = scene.NewStore(r,
		scene.WithLogger(s.logger),
		scene.WithShadowLayout(s.cascades.ModelLayout()),
		scene.WithQueues(s.created, s.destroyed),
	); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *screen) createDepth(size common.Size) (own.Own[*renderer.Texture], error) {
	return s.r.CreateTexture(renderer.TextureDescriptor{
		Label:  "depth",
		Size:   gputypes.Extent3D{Width: size.Width, Height: size.Height},
		Format: s.depthFormat,
		Usage:  gputypes.TextureUsageRenderAttachment,
	})
}

func (s *screen) Renderer() renderer.Renderer {
	return s.r
}

func (s *screen) Store() scene.Store {
	return s.store
}

func (s *screen) Camera() camera.Uniform {
	return s.uniform
}

func (s *screen) GBuffer() gbuffer.Provider {
	return s.gb
}

func (s *screen) DepthTexture() *renderer.Texture {
	return s.depth.MustValue()
}

func (s *screen) Cascades() light.CascadeSet {
	return s.cascades
}

func (s *screen) Registry() operation.Registry {
	return s.registry
}

func (s *screen) Created() timing.Queue {
	return s.created
}

func (s *screen) EarlyUpdate() timing.Queue {
	return s.earlyUpdate
}

func (s *screen) Update() timing.Queue {
	return s.update
}

func (s *screen) LateUpdate() timing.Queue {
	return s.lateUpdate
}

func (s *screen) PrepareForRender() timing.Queue {
	return s.prepare
}

func (s *screen) Destroyed() timing.Queue {
	return s.destroyed
}

func (s *screen) FrameNumber() uint64 {
	return s.frameCount.Load()
}

func (s *screen) DeltaTime() time.Duration {
	return s.delta
}

func (s *screen) State() CloseState {
	return CloseState(s.state.Load())
}

func (s *screen) OnClosing(fn func() bool) func() {
	return s.closing.Subscribe(func(e *closingEvent) {
		if fn() {
			e.cancel = true
		}
	})
}

func (s *screen) OnClosed(fn func(Screen)) func() {
	return s.closed.Subscribe(fn)
}

func (s *screen) RequestClose() {
	if s.State() != Running || !s.requested.CompareAndSwap(false, true) {
		return
	}
	s.update.Post(s.handleCloseRequest)
}

// handleCloseRequest runs on the main goroutine. An accepted request tears the screen down at the end of
// the current frame.
func (s *screen) handleCloseRequest() {
	s.requested.Store(false)
	if !s.state.CompareAndSwap(int32(Running), int32(CloseRequested)) {
		return
	}
	if !s.vetoUsed {
		e := &closingEvent{}
		s.closing.Invoke(s.logger, "closing", e)
		if e.cancel {
			s.vetoUsed = true
			s.state.Store(int32(Running))
			s.logger.Info("close request cancelled")
			return
		}
	}
	s.tearDown = true
}

func (s *screen) Resize(width, height uint32) {
	if width == 0 || height == 0 {
		return
	}
	s.resizeMu.Lock()
	defer s.resizeMu.Unlock()
	s.resize = &common.Size{Width: width, Height: height}
}

// applyResize recreates the size-dependent targets when a resize is pending.
func (s *screen) applyResize() error {
	s.resizeMu.Lock()
	pending := s.resize
	s.resize = nil
	s.resizeMu.Unlock()
	if pending == nil {
		return nil
	}
	size := *pending
	if err := s.r.Resize(size.Width, size.Height); err != nil {
		return fmt.Errorf("resize surface: %w", err)
	}
	if cur := s.DepthTexture(); cur.Width() != size.Width || cur.Height() != size.Height {
		depth, err := s.createDepth(size)
		if err != nil {
			return err
		}
		old := s.depth
		s.depth = depth
		old.Dispose()
	}
	if err := s.gb.Resize(size); err != nil {
		return err
	}
	s.camera.SetAspect(size.Aspect())
	return nil
}

func (s *screen) RunFrame(ctx context.Context) error {
	if s.State() == Closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.applyResize(); err != nil {
		s.logger.Error("resize", "error", err)
	}

	frame, err := s.r.AcquireFrame()
	switch {
	case errors.Is(err, renderer.ErrSurfaceUnavailable):
		s.logger.Debug("surface unavailable, skipping frame")
		return nil
	case errors.Is(err, renderer.ErrDeviceLost):
		return s.fatal(err)
	case err != nil:
		return err
	}

	now := s.now()
	if s.FrameNumber() == 0 && s.last.IsZero() {
		s.delta = firstFrameDelta
	} else {
		s.delta = now.Sub(s.last)
	}
	s.last = now

	s.created.DoQueuedEvents()
	s.registry.ApplyAdd()

	s.earlyUpdate.DoQueuedEvents()
	s.store.EarlyUpdate()
	s.registry.EarlyUpdate()

	s.update.DoQueuedEvents()
	s.store.Update()
	s.registry.Update()

	s.lateUpdate.DoQueuedEvents()
	s.store.LateUpdate()
	s.registry.LateUpdate()

	s.prepare.DoQueuedEvents()
	if err := s.store.PrepareForRender(); err != nil {
		s.logger.Error("prepare objects", "error", err)
	}
	if _, err := s.uniform.Flush(); err != nil {
		s.logger.Error("flush camera", "error", err)
	}
	if _, err := s.cascades.Update(s.camera); err != nil {
		s.logger.Error("update cascades", "error", err)
	}

	s.renderShadows(frame)
	s.registry.Execute(&operation.Context{
		Frame:       frame,
		DeltaTime:   s.delta,
		FrameNumber: s.FrameNumber(),
	})

	s.destroyed.DoQueuedEvents()
	s.registry.ApplyRemove()

	err = frame.Present()
	s.frameCount.Add(1)
	if s.profiler != nil {
		s.profiler.Tick()
	}
	if errors.Is(err, renderer.ErrDeviceLost) {
		return s.fatal(err)
	}
	if err != nil {
		s.logger.Warn("present", "error", err)
	}

	if s.tearDown {
		s.Close()
	}
	return nil
}

// renderShadows begins one depth pass per cascade and lets every shadow-casting operation draw into it.
func (s *screen) renderShadows(frame *renderer.Frame) {
	if !s.light.CastsShadows() {
		return
	}
	for i := range s.cascades.CascadeCount() {
		pass, err := frame.BeginPass(renderer.PassDescriptor{
			Label: fmt.Sprintf("shadow_%d", i),
			Depth: &renderer.DepthAttachment{
				Target:     s.cascades.DepthTexture(i),
				Load:       gputypes.LoadOpClear,
				Store:      gputypes.StoreOpStore,
				ClearDepth: 1,
			},
		})
		if err != nil {
			s.logger.Error("begin shadow pass", "cascade", i, "error", err)
			continue
		}
		pass.SetPipeline(s.cascades.Pipeline(i))
		pass.SetBindGroup(0, s.cascades.PassBindGroup(i))
		s.registry.RenderShadowMap(&operation.ShadowContext{
			Pass:    pass,
			Cascade: i,
			Frustum: s.cascades.Frustum(i),
		})
		if err := pass.End(); err != nil {
			s.logger.Error("shadow pass", "cascade", i, "error", err)
		}
	}
}

func (s *screen) fatal(err error) error {
	s.logger.Error("fatal render error, closing", "error", err)
	s.Close()
	return fmt.Errorf("screen: %w", err)
}

func (s *screen) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			s.Close()
			return err
		}
		err := s.RunFrame(ctx)
		switch {
		case errors.Is(err, ErrClosed):
			return nil
		case err != nil:
			s.Close()
			return err
		}
	}
}

func (s *screen) Close() {
	s.closeOnce.Do(func() {
		s.state.Store(int32(CloseRequested))
		s.registry.TerminateAll()
		s.store.TerminateAll()
		s.destroyed.DoQueuedEvents()
		s.registry.ApplyRemove()
		s.release()
		s.state.Store(int32(Closed))
		s.closed.Invoke(s.logger, "closed", s)
		s.closing.Clear()
		s.closed.Clear()
	})
}

// release frees everything the screen created. Safe on a partially constructed screen.
func (s *screen) release() {
	for _, q := range []timing.Queue{s.created, s.earlyUpdate, s.update, s.lateUpdate, s.prepare, s.destroyed} {
		q.Abort()
	}
	if s.store != nil {
		s.store.Close()
	}
	if s.cascades != nil {
		s.cascades.Close()
	}
	if s.gb != nil {
		s.gb.Close()
	}
	s.depth.Dispose()
	if s.uniform != nil {
		s.uniform.Close()
	}
}
