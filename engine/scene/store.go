// Package scene holds drawable frame objects and the store that drives their lifecycle.
//
// Objects are created from any goroutine and become visible to update hooks only after the store merges them
// at the start of a frame. Terminated objects are released when the store merges removals at the end of a
// frame, so an object never disappears while a phase is iterating.
package scene

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/hikari/common"
	"github.com/Carmen-Shannon/hikari/engine/operation"
	"github.com/Carmen-Shannon/hikari/engine/own"
	"github.com/Carmen-Shannon/hikari/engine/renderer"
	"github.com/Carmen-Shannon/hikari/engine/timing"
	"github.com/gogpu/gputypes"
)

// ErrStoreClosed is returned by Create after Close.
var ErrStoreClosed = errors.New("scene: store closed")

// store is the implementation of the Store interface.
type store struct {
	mu            *sync.Mutex
	live          []*frameObject
	pendingAdd    []*frameObject
	pendingRemove []*frameObject
	nextID        atomic.Uint64
	closed        atomic.Bool

	r            renderer.Renderer
	objectLayout own.Own[*renderer.BindGroupLayout]
	shadowLayout *renderer.BindGroupLayout

	created     timing.Queue
	destroyed   timing.Queue
	unsubscribe []func()

	added   common.Event[[]FrameObject]
	removed common.Event[[]FrameObject]

	logger *slog.Logger
}

// Store owns the frame objects of a screen.
//
// Create, Terminate (through FrameObject) and the read accessors may be called from any goroutine. The merge
// points and the phase methods belong to the main goroutine.
type Store interface {
	// Renderer returns the renderer objects are created against.
	Renderer() renderer.Renderer

	// ObjectLayout returns the layout of every object's BindGroup: the object uniform at binding 0, visible
	// to the vertex and fragment stages.
	ObjectLayout() *renderer.BindGroupLayout

	// Create builds an object around mesh and queues it for the next ApplyAdd.
	//
	// Parameters:
	//   - mesh: the geometry, owned (released with the object) or borrowed; none for an object without geometry
	//   - options: variadic list of FrameObjectBuilderOption functions to configure the object
	//
	// Returns:
	//   - FrameObject: the new object in state New
	//   - error: ErrStoreClosed or a *renderer.CreationError; an owned mesh is released on failure
	Create(mesh own.Maybe[*Mesh], options ...FrameObjectBuilderOption) (FrameObject, error)

	// ApplyAdd merges pending objects, turns them Alive and fires their Alive events, then the Added event.
	ApplyAdd()

	// ApplyRemove takes terminating objects out of the live list, turns them Dead and releases them, then
	// fires the Removed event.
	ApplyRemove()

	// EarlyUpdate fires the EarlyUpdate event of every live object that is not frozen.
	EarlyUpdate()

	// Update fires the Update event of every live object that is not frozen.
	Update()

	// LateUpdate fires the LateUpdate event of every live object that is not frozen.
	LateUpdate()

	// PrepareForRender writes the uniform of every live object whose transform or material changed. Frozen
	// objects are flushed too.
	//
	// Returns:
	//   - error: the joined buffer write errors
	PrepareForRender() error

	// Objects returns a snapshot of the live objects in insertion order.
	Objects() []FrameObject

	// Drawable returns the live, visible objects that have a mesh.
	Drawable() []FrameObject

	// ShadowCasters returns the live, visible shadow casters that have a mesh, frozen or not.
	ShadowCasters() []FrameObject

	// Get returns the live object with id, or nil.
	Get(id uint64) FrameObject

	// Len returns the number of live objects.
	Len() int

	// Pending returns the number of queued adds and removals.
	Pending() (adds, removes int)

	// TerminateAll terminates every live and pending object.
	//
	// Returns:
	//   - int: how many objects were terminated by this call
	TerminateAll() int

	OnAdded(fn func([]FrameObject)) func()
	OnRemoved(fn func([]FrameObject)) func()

	// Close terminates and releases every object and the object layout. Safe to call more than once.
	Close()
}

var _ Store = &store{}

// NewStore creates an empty Store.
//
// Parameters:
//   - r: the renderer context
//   - options: variadic list of StoreBuilderOption functions to configure the Store
//
// Returns:
//   - Store: the new store
//   - error: a *renderer.CreationError if the object layout could not be created
func NewStore(r renderer.Renderer, options ...StoreBuilderOption) (Store, error) {
	s := &store{
		mu:     &sync.Mutex{},
		r:      r,
		logger: slog.Default(),
	}
	for _, opt := range options {
		opt(s)
	}
	s.logger = s.logger.With("component", "scene")

	layout, err := r.CreateBindGroupLayout(renderer.BindGroupLayoutDescriptor{
		Label: "object",
		Entries: []gputypes.BindGroupLayoutEntry{{
			Binding:    0,
			Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
		}},
	})
	if err != nil {
		return nil, err
	}
	s.objectLayout = layout

	if s.created != nil {
		s.unsubscribe = append(s.unsubscribe, s.created.Subscribe(s.ApplyAdd))
	}
	if s.destroyed != nil {
		s.unsubscribe = append(s.unsubscribe, s.destroyed.Subscribe(s.ApplyRemove))
	}
	return s, nil
}

func (s *store) Renderer() renderer.Renderer {
	return s.r
}

func (s *store) ObjectLayout() *renderer.BindGroupLayout {
	return s.objectLayout.MustValue()
}

func (s *store) Create(mesh own.Maybe[*Mesh], options ...FrameObjectBuilderOption) (obj FrameObject, err error) {
	o := &frameObject{
		id:            s.nextID.Add(1),
		name:          "object",
		store:         s,
		mu:            &sync.Mutex{},
		mesh:          mesh,
		subscriptions: &Subscriptions{},
		transform: transformState{
			scale:    common.Vec3{1, 1, 1},
			albedo:   [4]float32{1, 1, 1, 1},
			material: [4]float32{0, 0.5, 1, 0},
		},
	}
	o.shadowCaster.Store(true)
	o.visible.Store(true)
	for _, opt := range options {
		opt(o)
	}
	o.logger = s.logger.With("object", o.name, "id", o.id)

	defer func() {
		if err != nil {
			o.shadowGroup.Dispose()
			o.group.Dispose()
			o.uniform.Dispose()
			o.mesh.Dispose()
		}
	}()
	if s.closed.Load() {
		return nil, fmt.Errorf("create %q: %w", o.name, ErrStoreClosed)
	}
	layout, err := s.objectLayout.AsValue()
	if err != nil {
		return nil, fmt.Errorf("create %q: %w", o.name, ErrStoreClosed)
	}

	o.model = common.ModelMatrix(o.transform.position, o.transform.rotation, o.transform.scale)
	initial := GPUObjectUniform{Model: o.model, Albedo: o.transform.albedo, Material: o.transform.material}
	if o.uniform, err = s.r.CreateBuffer(renderer.BufferDescriptor{
		Label:    o.name,
		Usage:    gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
		Contents: initial.Marshal(),
	}); err != nil {
		return nil, err
	}
	buffer := o.uniform.MustValue()

	if o.group, err = s.r.CreateBindGroup(renderer.BindGroupDescriptor{
		Label:   o.name,
		Layout:  layout,
		Entries: []renderer.BindGroupEntry{{Binding: 0, Buffer: buffer}},
	}); err != nil {
		return nil, err
	}
	if s.shadowLayout != nil {
		if o.shadowGroup, err = s.r.CreateBindGroup(renderer.BindGroupDescriptor{
			Label:   o.name + "_shadow",
			Layout:  s.shadowLayout,
			Entries: []renderer.BindGroupEntry{{Binding: 0, Buffer: buffer, Size: 64}},
		}); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	s.pendingAdd = append(s.pendingAdd, o)
	s.mu.Unlock()
	return o, nil
}

func (s *store) ApplyAdd() {
	s.mu.Lock()
	var added []*frameObject
	for _, o := range s.pendingAdd {
		if o.transition(operation.LifeStateNew, operation.LifeStateAlive) {
			added = append(added, o)
		}
	}
	clear(s.pendingAdd)
	s.pendingAdd = s.pendingAdd[:0]
	if len(added) > 0 {
		live := make([]*frameObject, 0, len(s.live)+len(added))
		s.live = append(append(live, s.live...), added...)
	}
	s.mu.Unlock()

	if len(added) == 0 {
		return
	}
	for _, o := range added {
		o.alive.Invoke(o.logger, "alive", o)
	}
	s.added.Invoke(s.logger, "added", asObjects(added))
}

// remove queues a Terminating object for the next ApplyRemove.
func (s *store) remove(o *frameObject) {
	s.mu.Lock()
	s.pendingRemove = append(s.pendingRemove, o)
	s.mu.Unlock()
}

func (s *store) ApplyRemove() {
	s.mu.Lock()
	var removed []*frameObject
	for _, o := range s.pendingRemove {
		if o.transition(operation.LifeStateTerminating, operation.LifeStateDead) {
			removed = append(removed, o)
		}
	}
	clear(s.pendingRemove)
	s.pendingRemove = s.pendingRemove[:0]
	if len(removed) > 0 {
		live := make([]*frameObject, 0, len(s.live))
		for _, o := range s.live {
			if o.LifeState() != operation.LifeStateDead {
				live = append(live, o)
			}
		}
		s.live = live
	}
	s.mu.Unlock()

	if len(removed) == 0 {
		return
	}
	for _, o := range removed {
		o.release()
	}
	s.removed.Invoke(s.logger, "removed", asObjects(removed))
}

func (s *store) EarlyUpdate() {
	s.each(func(o *frameObject) { o.earlyUpdate.Invoke(o.logger, "early_update", o) })
}

func (s *store) Update() {
	s.each(func(o *frameObject) { o.update.Invoke(o.logger, "update", o) })
}

func (s *store) LateUpdate() {
	s.each(func(o *frameObject) { o.lateUpdate.Invoke(o.logger, "late_update", o) })
}

// each fires an update event on every live object that is neither frozen nor terminating.
func (s *store) each(fire func(*frameObject)) {
	for _, o := range s.snapshot() {
		if !o.runs() || o.IsFrozen() {
			continue
		}
		fire(o)
	}
}

func (s *store) PrepareForRender() error {
	var errs []error
	for _, o := range s.snapshot() {
		if !o.runs() {
			continue
		}
		if _, err := o.flush(); err != nil {
			errs = append(errs, fmt.Errorf("object %q: %w", o.name, err))
		}
	}
	return errors.Join(errs...)
}

func (s *store) snapshot() []*frameObject {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live
}

func (s *store) Objects() []FrameObject {
	return asObjects(s.snapshot())
}

func (s *store) Drawable() []FrameObject {
	return s.filter(func(o *frameObject) bool { return true })
}

func (s *store) ShadowCasters() []FrameObject {
	return s.filter(func(o *frameObject) bool { return o.IsShadowCaster() })
}

func (s *store) filter(keep func(*frameObject) bool) []FrameObject {
	var out []FrameObject
	for _, o := range s.snapshot() {
		if o.runs() && o.IsVisible() && !o.mesh.IsNone() && keep(o) {
			out = append(out, o)
		}
	}
	return out
}

func (s *store) Get(id uint64) FrameObject {
	for _, o := range s.snapshot() {
		if o.id == id {
			return o
		}
	}
	return nil
}

func (s *store) Len() int {
	return len(s.snapshot())
}

func (s *store) Pending() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pendingAdd), len(s.pendingRemove)
}

func (s *store) TerminateAll() int {
	s.mu.Lock()
	objects := make([]*frameObject, 0, len(s.live)+len(s.pendingAdd))
	objects = append(append(objects, s.live...), s.pendingAdd...)
	s.mu.Unlock()

	n := 0
	for _, o := range objects {
		if o.Terminate() {
			n++
		}
	}
	return n
}

func (s *store) OnAdded(fn func([]FrameObject)) func() {
	return s.added.Subscribe(fn)
}

func (s *store) OnRemoved(fn func([]FrameObject)) func() {
	return s.removed.Subscribe(fn)
}

func (s *store) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	for _, unsubscribe := range s.unsubscribe {
		unsubscribe()
	}
	s.TerminateAll()
	s.ApplyRemove()
	s.objectLayout.Dispose()
	s.added.Clear()
	s.removed.Clear()
}

func asObjects(objects []*frameObject) []FrameObject {
	out := make([]FrameObject, len(objects))
	for i, o := range objects {
		out[i] = o
	}
	return out
}
