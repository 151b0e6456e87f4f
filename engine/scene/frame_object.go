package scene

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/hikari/common"
	"github.com/Carmen-Shannon/hikari/engine/operation"
	"github.com/Carmen-Shannon/hikari/engine/own"
	"github.com/Carmen-Shannon/hikari/engine/renderer"
	"github.com/chewxy/math32"
)

// ModelProvider produces the model matrix consumed by render hooks to fill per-object uniforms.
type ModelProvider interface {
	// ModelMatrix returns the column-major model-to-world matrix.
	ModelMatrix() [16]float32
}

// transformState is everything that ends up in the object uniform.
type transformState struct {
	position common.Vec3
	rotation common.Vec3
	scale    common.Vec3
	albedo   [4]float32
	material [4]float32
}

// frameObject is the implementation of the FrameObject interface.
type frameObject struct {
	id    uint64
	name  string
	store *store

	state        atomic.Int32
	frozen       atomic.Bool
	shadowCaster atomic.Bool
	visible      atomic.Bool

	mu        *sync.Mutex
	transform transformState
	model     common.Mat4
	version   uint64
	flushed   uint64

	mesh        own.Maybe[*Mesh]
	uniform     own.Own[*renderer.Buffer]
	group       own.Own[*renderer.BindGroup]
	shadowGroup own.Own[*renderer.BindGroup]

	subscriptions *Subscriptions

	alive       common.Event[FrameObject]
	terminated  common.Event[FrameObject]
	dead        common.Event[FrameObject]
	earlyUpdate common.Event[FrameObject]
	update      common.Event[FrameObject]
	lateUpdate  common.Event[FrameObject]

	logger *slog.Logger
}

// FrameObject is a drawable scene object with a lifecycle driven by its Store.
//
// An object is created New, turns Alive when the store merges it at the start of a frame, Terminating when
// Terminate is called, and Dead when the store merges the removal at the end of a frame. When it dies its
// subscription bag is disposed, its GPU resources and owned mesh are released, OnDead subscribers run, and
// every event is cleared.
//
// Setters and Terminate may be called from any goroutine.
type FrameObject interface {
	ModelProvider

	// ID returns the store-assigned identifier.
	ID() uint64

	// Name returns the object's name, used in logs.
	Name() string

	// LifeState returns the current lifecycle state.
	LifeState() operation.LifeState

	// IsFrozen reports whether update events are skipped.
	IsFrozen() bool

	// SetFrozen pauses or resumes the update events. A frozen object is still drawn and still casts shadows.
	SetFrozen(frozen bool)

	// IsShadowCaster reports whether the object is drawn into the shadow cascades.
	IsShadowCaster() bool

	// SetShadowCaster enables or disables shadow casting.
	SetShadowCaster(caster bool)

	// IsVisible reports whether the object is drawn at all.
	IsVisible() bool

	// SetVisible shows or hides the object.
	SetVisible(visible bool)

	Position() common.Vec3
	SetPosition(p common.Vec3)
	Rotation() common.Vec3

	// SetRotation sets Euler angles in radians.
	SetRotation(r common.Vec3)
	Scale() common.Vec3
	SetScale(s common.Vec3)

	// Albedo returns the RGBA base color.
	Albedo() [4]float32
	SetAlbedo(rgba [4]float32)

	// SetMaterial sets the PBR parameters, each clamped to [0, 1].
	//
	// Parameters:
	//   - metallic: 0 for dielectrics, 1 for metals
	//   - roughness: microfacet roughness
	SetMaterial(metallic, roughness float32)

	// Bounds returns the world-space bounding sphere, used to cull shadow casters per cascade.
	Bounds() common.Sphere

	// Mesh returns the drawn mesh, or nil for an object without geometry.
	Mesh() *Mesh

	// BindGroup returns the object uniform bind group for the geometry pipeline.
	BindGroup() *renderer.BindGroup

	// ShadowBindGroup returns the model bind group for the shadow depth pipelines, or nil when the store has
	// no shadow layout.
	ShadowBindGroup() *renderer.BindGroup

	// Subscriptions returns the bag disposed when the object dies. Unsubscribe funcs for events on other
	// objects belong here.
	Subscriptions() *Subscriptions

	// Terminate moves the object from Alive (or New, when it has not been merged yet) to Terminating and
	// queues its removal. Safe from any goroutine.
	//
	// Returns:
	//   - bool: false if the object was already terminating or dead
	Terminate() bool

	// OnAlive subscribes to the New to Alive transition.
	OnAlive(fn func(FrameObject)) func()

	// OnTerminated subscribes to a successful Terminate.
	OnTerminated(fn func(FrameObject)) func()

	// OnDead subscribes to the release of the object.
	OnDead(fn func(FrameObject)) func()

	OnEarlyUpdate(fn func(FrameObject)) func()
	OnUpdate(fn func(FrameObject)) func()
	OnLateUpdate(fn func(FrameObject)) func()
}

var _ FrameObject = &frameObject{}

func (o *frameObject) ID() uint64 {
	return o.id
}

func (o *frameObject) Name() string {
	return o.name
}

func (o *frameObject) LifeState() operation.LifeState {
	return operation.LifeState(o.state.Load())
}

func (o *frameObject) IsFrozen() bool {
	return o.frozen.Load()
}

func (o *frameObject) SetFrozen(frozen bool) {
	o.frozen.Store(frozen)
}

func (o *frameObject) IsShadowCaster() bool {
	return o.shadowCaster.Load()
}

func (o *frameObject) SetShadowCaster(caster bool) {
	o.shadowCaster.Store(caster)
}

func (o *frameObject) IsVisible() bool {
	return o.visible.Load()
}

func (o *frameObject) SetVisible(visible bool) {
	o.visible.Store(visible)
}

func (o *frameObject) Position() common.Vec3 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.transform.position
}

func (o *frameObject) SetPosition(p common.Vec3) {
	o.set(func(t *transformState) { t.position = p })
}

func (o *frameObject) Rotation() common.Vec3 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.transform.rotation
}

func (o *frameObject) SetRotation(r common.Vec3) {
	o.set(func(t *transformState) { t.rotation = r })
}

func (o *frameObject) Scale() common.Vec3 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.transform.scale
}

func (o *frameObject) SetScale(s common.Vec3) {
	o.set(func(t *transformState) { t.scale = s })
}

func (o *frameObject) Albedo() [4]float32 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.transform.albedo
}

func (o *frameObject) SetAlbedo(rgba [4]float32) {
	o.set(func(t *transformState) { t.albedo = rgba })
}

func (o *frameObject) SetMaterial(metallic, roughness float32) {
	o.set(func(t *transformState) {
		t.material[0] = clamp01(metallic)
		t.material[1] = clamp01(roughness)
	})
}

// set applies fn and bumps the version only if the state actually changed.
func (o *frameObject) set(fn func(*transformState)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	before := o.transform
	fn(&o.transform)
	if o.transform == before {
		return
	}
	o.model = common.ModelMatrix(o.transform.position, o.transform.rotation, o.transform.scale)
	o.version++
}

func (o *frameObject) ModelMatrix() [16]float32 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.model
}

func (o *frameObject) Bounds() common.Sphere {
	o.mu.Lock()
	model, scale := o.model, o.transform.scale
	o.mu.Unlock()

	m, ok := o.mesh.TryAsValue()
	if !ok {
		return common.Sphere{Center: common.Vec3{model[12], model[13], model[14]}}
	}
	local := m.Bounds()
	s := math32.Max(math32.Abs(scale[0]), math32.Max(math32.Abs(scale[1]), math32.Abs(scale[2])))
	return common.Sphere{
		Center: model.TransformPoint(local.Center),
		Radius: local.Radius * s,
	}
}

func (o *frameObject) Mesh() *Mesh {
	m, _ := o.mesh.TryAsValue()
	return m
}

func (o *frameObject) BindGroup() *renderer.BindGroup {
	return o.group.MustValue()
}

func (o *frameObject) ShadowBindGroup() *renderer.BindGroup {
	g, _ := o.shadowGroup.TryAsValue()
	return g
}

func (o *frameObject) Subscriptions() *Subscriptions {
	return o.subscriptions
}

func (o *frameObject) Terminate() bool {
	for {
		state := o.LifeState()
		if state != operation.LifeStateAlive && state != operation.LifeStateNew {
			return false
		}
		if o.transition(state, operation.LifeStateTerminating) {
			break
		}
	}
	o.store.remove(o)
	o.terminated.Invoke(o.logger, "terminated", o)
	return true
}

func (o *frameObject) OnAlive(fn func(FrameObject)) func() {
	return o.alive.Subscribe(fn)
}

func (o *frameObject) OnTerminated(fn func(FrameObject)) func() {
	return o.terminated.Subscribe(fn)
}

func (o *frameObject) OnDead(fn func(FrameObject)) func() {
	return o.dead.Subscribe(fn)
}

func (o *frameObject) OnEarlyUpdate(fn func(FrameObject)) func() {
	return o.earlyUpdate.Subscribe(fn)
}

func (o *frameObject) OnUpdate(fn func(FrameObject)) func() {
	return o.update.Subscribe(fn)
}

func (o *frameObject) OnLateUpdate(fn func(FrameObject)) func() {
	return o.lateUpdate.Subscribe(fn)
}

func (o *frameObject) transition(from, to operation.LifeState) bool {
	return o.state.CompareAndSwap(int32(from), int32(to))
}

// runs reports whether o takes part in the current phase.
func (o *frameObject) runs() bool {
	return o.LifeState() == operation.LifeStateAlive
}

// flush writes the object uniform if anything changed since the last write.
func (o *frameObject) flush() (bool, error) {
	o.mu.Lock()
	if o.version == o.flushed {
		o.mu.Unlock()
		return false, nil
	}
	version := o.version
	data := GPUObjectUniform{
		Model:    o.model,
		Albedo:   o.transform.albedo,
		Material: o.transform.material,
	}
	o.mu.Unlock()

	buffer, err := o.uniform.AsValue()
	if err != nil {
		return false, err
	}
	if err := buffer.Write(0, data.Marshal()); err != nil {
		return false, err
	}
	o.mu.Lock()
	o.flushed = version
	o.mu.Unlock()
	return true, nil
}

// release runs once, after the Terminating to Dead transition.
func (o *frameObject) release() {
	o.subscriptions.Dispose()
	o.shadowGroup.Dispose()
	o.group.Dispose()
	o.uniform.Dispose()
	o.mesh.Dispose()

	o.dead.Invoke(o.logger, "dead", o)
	o.alive.Clear()
	o.terminated.Clear()
	o.dead.Clear()
	o.earlyUpdate.Clear()
	o.update.Clear()
	o.lateUpdate.Clear()
}

func clamp01(v float32) float32 {
	return math32.Min(math32.Max(v, 0), 1)
}
