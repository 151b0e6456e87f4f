// Package operation holds the registry of per-frame render and update work.
//
// An Operation moves through New, Alive, Terminating and Dead. Structural changes are buffered and merged only at
// frame boundaries by ApplyAdd and ApplyRemove, so the live list never changes while a phase iterates it.
package operation

import (
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/hikari/common"
	"github.com/Carmen-Shannon/hikari/engine/renderer"
)

// LifeState is the lifecycle state of an Operation.
type LifeState int32

const (
	LifeStateNew LifeState = iota
	LifeStateAlive
	LifeStateTerminating
	LifeStateDead
)

func (s LifeState) String() string {
	switch s {
	case LifeStateNew:
		return "New"
	case LifeStateAlive:
		return "Alive"
	case LifeStateTerminating:
		return "Terminating"
	case LifeStateDead:
		return "Dead"
	}
	return "Unknown"
}

// Context is passed to Execute hooks. Each operation begins its own passes on Frame.
type Context struct {
	Frame       *renderer.Frame
	DeltaTime   time.Duration
	FrameNumber uint64
}

// ShadowContext is passed to RenderShadowMap hooks once per cascade. Pass is the open depth pass for the
// cascade and Frustum is the cascade's light-space culling volume.
type ShadowContext struct {
	Pass    *renderer.RenderPass
	Cascade int
	Frustum common.Frustum
}

// Visible reports whether a caster with bounding sphere s can land in this cascade.
func (c *ShadowContext) Visible(s common.Sphere) bool {
	return c.Frustum.IntersectsSphere(s)
}

// operation is the implementation of the Operation interface.
type operation struct {
	name         string
	sortOrder    int
	shadowCaster bool

	state      atomic.Int32
	frozen     atomic.Bool
	registered atomic.Bool

	frameInit   func(Operation)
	frameEnd    func(Operation)
	earlyUpdate func(Operation)
	update      func(Operation)
	lateUpdate  func(Operation)
	shadow      func(Operation, *ShadowContext)
	execute     func(Operation, *Context)
	release     func(Operation)

	ownedMu *sync.Mutex
	owned   []renderer.Disposer

	alive      common.Event[Operation]
	terminated common.Event[Operation]
	dead       common.Event[Operation]

	logger    *slog.Logger
	ownLogger bool
}

// Operation is a registered unit of per-frame work with a sort order and a lifecycle.
// Operations are built with NewOperation and driven by a Registry.
type Operation interface {
	// Name returns the operation's name, used in logs.
	Name() string

	// SortOrder returns the key the registry sorts by, ascending.
	SortOrder() int

	// LifeState returns the current lifecycle state.
	LifeState() LifeState

	// IsShadowCaster reports whether RenderShadowMap is invoked for this operation.
	IsShadowCaster() bool

	// IsFrozen reports whether update hooks are currently skipped.
	IsFrozen() bool

	// SetFrozen pauses or resumes the update hooks. Render and shadow hooks keep running while frozen.
	//
	// Parameters:
	//   - frozen: true to skip update hooks
	SetFrozen(frozen bool)

	// Own hands d to the operation. It is disposed when the operation is released, after the release hook,
	// in reverse order of registration. If the operation is already dead, d is disposed immediately.
	//
	// Parameters:
	//   - d: the resource to dispose with the operation
	Own(d renderer.Disposer)

	// OnAlive subscribes to the New to Alive transition.
	OnAlive(fn func(Operation)) func()

	// OnTerminated subscribes to a successful Terminate.
	OnTerminated(fn func(Operation)) func()

	// OnDead subscribes to the release of the operation.
	OnDead(fn func(Operation)) func()

	base() *operation
}

var _ Operation = &operation{}

// NewOperation creates an Operation in state New.
//
// Parameters:
//   - name: the operation name
//   - options: variadic list of OperationBuilderOption functions to configure the Operation
//
// Returns:
//   - Operation: the new operation, ready to be added to a Registry
func NewOperation(name string, options ...OperationBuilderOption) Operation {
	o := &operation{
		name:    name,
		ownedMu: &sync.Mutex{},
		logger:  slog.Default(),
	}
	for _, opt := range options {
		opt(o)
	}
	return o
}

func (o *operation) Name() string {
	return o.name
}

func (o *operation) SortOrder() int {
	return o.sortOrder
}

func (o *operation) LifeState() LifeState {
	return LifeState(o.state.Load())
}

func (o *operation) IsShadowCaster() bool {
	return o.shadowCaster
}

func (o *operation) IsFrozen() bool {
	return o.frozen.Load()
}

func (o *operation) SetFrozen(frozen bool) {
	o.frozen.Store(frozen)
}

func (o *operation) Own(d renderer.Disposer) {
	if d == nil {
		return
	}
	o.ownedMu.Lock()
	if o.LifeState() == LifeStateDead {
		o.ownedMu.Unlock()
		d.Dispose()
		return
	}
	o.owned = append(o.owned, d)
	o.ownedMu.Unlock()
}

func (o *operation) OnAlive(fn func(Operation)) func() {
	return o.alive.Subscribe(fn)
}

func (o *operation) OnTerminated(fn func(Operation)) func() {
	return o.terminated.Subscribe(fn)
}

func (o *operation) OnDead(fn func(Operation)) func() {
	return o.dead.Subscribe(fn)
}

func (o *operation) base() *operation {
	return o
}

func (o *operation) transition(from, to LifeState) bool {
	return o.state.CompareAndSwap(int32(from), int32(to))
}

// runs reports whether o takes part in the current phase.
func (o *operation) runs() bool {
	return o.LifeState() == LifeStateAlive
}

func (o *operation) invoke(phase string, hook func(Operation)) {
	if hook == nil {
		return
	}
	common.Guard(o.logger, phase, func() { hook(o) })
}

// releaseAll runs once, after the Terminating to Dead transition.
func (o *operation) releaseAll() {
	o.invoke("release", o.release)

	o.ownedMu.Lock()
	owned := o.owned
	o.owned = nil
	o.ownedMu.Unlock()
	for _, d := range slices.Backward(owned) {
		common.Guard(o.logger, "release", d.Dispose)
	}

	o.dead.Invoke(o.logger, "dead", o)
	o.alive.Clear()
	o.terminated.Clear()
	o.dead.Clear()
}
