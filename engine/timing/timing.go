// Package timing implements the per-phase event queues the frame loop drains.
//
// Work posted to a Queue from any goroutine runs on the main goroutine the next time the queue is drained.
// Work posted while a drain is in progress runs on the following drain, never on the current one.
package timing

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Carmen-Shannon/hikari/common"
)

type workItem struct {
	fn      func()
	stateFn func(any)
	state   any
	// release runs instead of the item when the queue is aborted.
	release func()
}

func (w workItem) invoke() {
	if w.stateFn != nil {
		w.stateFn(w.state)
		return
	}
	w.fn()
}

type subscriber struct {
	id uint64
	fn func()
}

// queue is the implementation of the Queue interface.
type queue struct {
	mu   *sync.Mutex
	name string

	pending []workItem
	spare   []workItem

	subs   []subscriber
	nextID uint64

	delta  func() time.Duration
	logger *slog.Logger
}

// Queue is a FIFO of deferred callbacks plus a set of subscribers invoked on every drain.
type Queue interface {
	// Name returns the phase name the queue was created with.
	Name() string

	// Post enqueues fn to run on the next drain. A nil fn is ignored.
	//
	// Parameters:
	//   - fn: the callback to run
	Post(fn func())

	// PostState enqueues fn to run with state on the next drain. A nil fn is ignored.
	//
	// Parameters:
	//   - fn: the callback to run
	//   - state: the value passed to fn
	PostState(fn func(any), state any)

	// Subscribe registers fn to run at the start of every drain, before queued work.
	//
	// Parameters:
	//   - fn: the subscriber
	//
	// Returns:
	//   - func(): unsubscribes fn; safe to call more than once
	Subscribe(fn func()) func()

	// DoQueuedEvents runs the subscribers, then every item queued before the call. Panics are logged and
	// suppressed per item. Must be called from the main goroutine.
	DoQueuedEvents()

	// Switch returns a channel closed on the next drain, which lets a goroutine resume in step with the
	// frame loop. The channel is also closed if ctx is cancelled first or the queue is aborted; callers
	// check ctx after receiving.
	//
	// Parameters:
	//   - ctx: cancels the wait
	//
	// Returns:
	//   - <-chan struct{}: closed at the next drain, on cancellation, or on Abort
	Switch(ctx context.Context) <-chan struct{}

	// Await runs fn on the next drain unless ctx has been cancelled by then.
	//
	// Parameters:
	//   - ctx: checked when the continuation resumes
	//   - fn: the continuation
	Await(ctx context.Context, fn func())

	// Delay runs fn on the first drain after d of accumulated frame time has elapsed, unless ctx is
	// cancelled first. Frame time is read from the delta source given with WithDeltaTime.
	//
	// Parameters:
	//   - ctx: checked on every drain
	//   - d: the delay in frame time
	//   - fn: the continuation
	Delay(ctx context.Context, d time.Duration, fn func())

	// Abort drops every queued item without running it. Subscribers are kept. Channels handed out by
	// Switch that are still waiting are closed.
	Abort()

	// Len returns the number of items waiting for the next drain.
	Len() int
}

var _ Queue = &queue{}

// NewQueue creates an empty Queue.
//
// Parameters:
//   - name: the phase name, used in log records
//   - options: variadic list of QueueBuilderOption functions to configure the Queue
//
// Returns:
//   - Queue: the new queue
func NewQueue(name string, options ...QueueBuilderOption) Queue {
	q := &queue{
		mu:     &sync.Mutex{},
		name:   name,
		delta:  func() time.Duration { return 0 },
		logger: slog.Default(),
	}
	for _, opt := range options {
		opt(q)
	}
	q.logger = q.logger.With("component", "timing", "queue", name)
	return q
}

func (q *queue) Name() string {
	return q.name
}

func (q *queue) Post(fn func()) {
	if fn == nil {
		return
	}
	q.mu.Lock()
	q.pending = append(q.pending, workItem{fn: fn})
	q.mu.Unlock()
}

func (q *queue) PostState(fn func(any), state any) {
	if fn == nil {
		return
	}
	q.mu.Lock()
	q.pending = append(q.pending, workItem{stateFn: fn, state: state})
	q.mu.Unlock()
}

func (q *queue) Subscribe(fn func()) func() {
	if fn == nil {
		return func() {}
	}
	q.mu.Lock()
	q.nextID++
	id := q.nextID
	// copy-on-write so a drain can iterate a snapshot without holding the lock
	subs := make([]subscriber, len(q.subs), len(q.subs)+1)
	copy(subs, q.subs)
	q.subs = append(subs, subscriber{id: id, fn: fn})
	q.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			q.mu.Lock()
			defer q.mu.Unlock()
			subs := make([]subscriber, 0, len(q.subs))
			for _, s := range q.subs {
				if s.id != id {
					subs = append(subs, s)
				}
			}
			q.subs = subs
		})
	}
}

func (q *queue) DoQueuedEvents() {
	q.mu.Lock()
	subs := q.subs
	items := q.pending
	q.pending = q.spare[:0]
	q.mu.Unlock()

	for _, s := range subs {
		common.Guard(q.logger, q.name, s.fn)
	}
	for i := range items {
		common.Guard(q.logger, q.name, items[i].invoke)
		items[i] = workItem{}
	}

	q.mu.Lock()
	q.spare = items[:0]
	q.mu.Unlock()
}

func (q *queue) Switch(ctx context.Context) <-chan struct{} {
	ch := make(chan struct{})
	var once sync.Once
	resume := func() { once.Do(func() { close(ch) }) }
	q.mu.Lock()
	q.pending = append(q.pending, workItem{fn: resume, release: resume})
	q.mu.Unlock()
	if done := ctx.Done(); done != nil {
		go func() {
			select {
			case <-done:
				resume()
			case <-ch:
			}
		}()
	}
	return ch
}

func (q *queue) Await(ctx context.Context, fn func()) {
	if fn == nil {
		return
	}
	q.Post(func() {
		if ctx.Err() != nil {
			return
		}
		fn()
	})
}

func (q *queue) Delay(ctx context.Context, d time.Duration, fn func()) {
	if fn == nil {
		return
	}
	var elapsed time.Duration
	var step func()
	step = func() {
		if ctx.Err() != nil {
			return
		}
		if elapsed >= d {
			fn()
			return
		}
		elapsed += q.delta()
		q.Post(step)
	}
	q.Post(step)
}

func (q *queue) Abort() {
	q.mu.Lock()
	var released []func()
	for _, item := range q.pending {
		if item.release != nil {
			released = append(released, item.release)
		}
	}
	clear(q.pending)
	q.pending = q.pending[:0]
	q.mu.Unlock()

	for _, release := range released {
		release()
	}
}

func (q *queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
