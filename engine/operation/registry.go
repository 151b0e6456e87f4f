package operation

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/hikari/common"
)

var (
	// ErrNotNew is returned by Add for an operation that already left the New state.
	ErrNotNew = errors.New("operation: not in state New")

	// ErrAlreadyAdded is returned by Add for an operation that was added before.
	ErrAlreadyAdded = errors.New("operation: already added")
)

// registry is the implementation of the Registry interface.
type registry struct {
	mu            *sync.Mutex
	live          []Operation
	pendingAdd    []Operation
	pendingRemove []Operation

	added   common.Event[[]Operation]
	removed common.Event[[]Operation]

	logger *slog.Logger
}

// Registry is the authoritative set of live operations.
//
// Add, Remove and Terminate may be called from any goroutine. Everything else belongs to the main goroutine
// that drives the frame.
type Registry interface {
	// Add queues op for the next ApplyAdd.
	//
	// Parameters:
	//   - op: an operation in state New
	//
	// Returns:
	//   - error: ErrNotNew or ErrAlreadyAdded
	Add(op Operation) error

	// ApplyAdd merges the pending adds into the live list, keeps it stably sorted by SortOrder, turns the new
	// operations Alive and then runs FrameInit for every live operation. The Added event fires only if
	// something was merged.
	ApplyAdd()

	// Remove queues a Terminating operation for the next ApplyRemove.
	//
	// Returns:
	//   - bool: false if op is not Terminating
	Remove(op Operation) bool

	// ApplyRemove takes the pending removals out of the live list, turns them Dead and releases them, then runs
	// FrameEnd for every remaining live operation. The Removed event fires only if something was removed.
	ApplyRemove()

	// Terminate moves op from Alive (or New, when it has not been merged yet) to Terminating and queues its
	// removal.
	//
	// Returns:
	//   - bool: false if op was already terminating or dead
	Terminate(op Operation) bool

	// TerminateAll terminates every live and pending operation.
	//
	// Returns:
	//   - int: how many operations were terminated by this call
	TerminateAll() int

	EarlyUpdate()
	Update()
	LateUpdate()

	// RenderShadowMap invokes the shadow hook of every live shadow caster, frozen or not, for one cascade.
	RenderShadowMap(ctx *ShadowContext)

	// Execute invokes the main render hook of every live operation in sort order.
	Execute(ctx *Context)

	// Live returns a snapshot of the live list in sort order.
	Live() []Operation

	// Pending returns the number of queued adds and removals.
	Pending() (adds, removes int)

	OnAdded(fn func([]Operation)) func()
	OnRemoved(fn func([]Operation)) func()
}

var _ Registry = &registry{}

// NewRegistry creates an empty Registry.
//
// Parameters:
//   - options: variadic list of RegistryBuilderOption functions to configure the Registry
//
// Returns:
//   - Registry: the new registry
func NewRegistry(options ...RegistryBuilderOption) Registry {
	r := &registry{
		mu:     &sync.Mutex{},
		logger: slog.Default(),
	}
	for _, opt := range options {
		opt(r)
	}
	r.logger = r.logger.With("component", "operations")
	return r
}

func (r *registry) Add(op Operation) error {
	if op == nil {
		return fmt.Errorf("operation: add nil")
	}
	o := op.base()
	if o.LifeState() != LifeStateNew {
		return fmt.Errorf("%q is %s: %w", o.name, o.LifeState(), ErrNotNew)
	}
	if !o.registered.CompareAndSwap(false, true) {
		return fmt.Errorf("%q: %w", o.name, ErrAlreadyAdded)
	}
	if !o.ownLogger {
		o.logger = r.logger.With("operation", o.name)
	}
	r.mu.Lock()
	r.pendingAdd = append(r.pendingAdd, op)
	r.mu.Unlock()
	return nil
}

func (r *registry) ApplyAdd() {
	// user code can call Add from an Alive subscriber, so no hook runs under the lock
	r.mu.Lock()
	var added []Operation
	if len(r.pendingAdd) > 0 {
		for _, op := range r.pendingAdd {
			if op.base().transition(LifeStateNew, LifeStateAlive) {
				added = append(added, op)
			}
		}
		clear(r.pendingAdd)
		r.pendingAdd = r.pendingAdd[:0]
	}
	if len(added) > 0 {
		live := make([]Operation, 0, len(r.live)+len(added))
		live = append(append(live, r.live...), added...)
		slices.SortStableFunc(live, bySortOrder)
		r.live = live
	}
	live := r.live
	r.mu.Unlock()

	for _, op := range added {
		o := op.base()
		o.alive.Invoke(o.logger, "alive", op)
	}
	for _, op := range live {
		if o := op.base(); o.runs() {
			o.invoke("frame_init", o.frameInit)
		}
	}
	if len(added) > 0 {
		r.added.Invoke(r.logger, "added", added)
	}
}

func (r *registry) Remove(op Operation) bool {
	if op == nil || op.LifeState() != LifeStateTerminating {
		return false
	}
	r.mu.Lock()
	r.pendingRemove = append(r.pendingRemove, op)
	r.mu.Unlock()
	return true
}

func (r *registry) ApplyRemove() {
	r.mu.Lock()
	var removed []Operation
	for _, op := range r.pendingRemove {
		if op.base().transition(LifeStateTerminating, LifeStateDead) {
			removed = append(removed, op)
		}
	}
	clear(r.pendingRemove)
	r.pendingRemove = r.pendingRemove[:0]
	if len(removed) > 0 {
		live := make([]Operation, 0, len(r.live))
		for _, op := range r.live {
			if op.LifeState() != LifeStateDead {
				live = append(live, op)
			}
		}
		slices.SortStableFunc(live, bySortOrder)
		r.live = live
	}
	live := r.live
	r.mu.Unlock()

	for _, op := range removed {
		op.base().releaseAll()
	}
	for _, op := range live {
		if o := op.base(); o.runs() {
			o.invoke("frame_end", o.frameEnd)
		}
	}
	if len(removed) > 0 {
		r.removed.Invoke(r.logger, "removed", removed)
	}
}

func (r *registry) Terminate(op Operation) bool {
	if op == nil {
		return false
	}
	o := op.base()
	for {
		state := o.LifeState()
		if state != LifeStateAlive && state != LifeStateNew {
			return false
		}
		if o.transition(state, LifeStateTerminating) {
			break
		}
	}
	r.Remove(op)
	o.terminated.Invoke(o.logger, "terminated", op)
	return true
}

func (r *registry) TerminateAll() int {
	r.mu.Lock()
	ops := make([]Operation, 0, len(r.live)+len(r.pendingAdd))
	ops = append(append(ops, r.live...), r.pendingAdd...)
	r.mu.Unlock()

	n := 0
	for _, op := range ops {
		if r.Terminate(op) {
			n++
		}
	}
	return n
}

func (r *registry) EarlyUpdate() {
	r.each("early_update", func(o *operation) func(Operation) { return o.earlyUpdate })
}

func (r *registry) Update() {
	r.each("update", func(o *operation) func(Operation) { return o.update })
}

func (r *registry) LateUpdate() {
	r.each("late_update", func(o *operation) func(Operation) { return o.lateUpdate })
}

// each runs an update hook on every live operation that is neither frozen nor terminating.
func (r *registry) each(phase string, hook func(*operation) func(Operation)) {
	for _, op := range r.snapshot() {
		o := op.base()
		if !o.runs() || o.IsFrozen() {
			continue
		}
		o.invoke(phase, hook(o))
	}
}

func (r *registry) RenderShadowMap(ctx *ShadowContext) {
	for _, op := range r.snapshot() {
		o := op.base()
		if !o.runs() || !o.shadowCaster || o.shadow == nil {
			continue
		}
		common.Guard(o.logger, "shadow", func() { o.shadow(op, ctx) })
	}
}

func (r *registry) Execute(ctx *Context) {
	for _, op := range r.snapshot() {
		o := op.base()
		if !o.runs() || o.execute == nil {
			continue
		}
		common.Guard(o.logger, "execute", func() { o.execute(op, ctx) })
	}
}

func (r *registry) snapshot() []Operation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.live
}

func (r *registry) Live() []Operation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.live)
}

func (r *registry) Pending() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pendingAdd), len(r.pendingRemove)
}

func (r *registry) OnAdded(fn func([]Operation)) func() {
	return r.added.Subscribe(fn)
}

func (r *registry) OnRemoved(fn func([]Operation)) func() {
	return r.removed.Subscribe(fn)
}

func bySortOrder(a, b Operation) int {
	return cmp.Compare(a.SortOrder(), b.SortOrder())
}
