package renderer

import (
	"fmt"
	"sync/atomic"
)

// resource is the state shared by every wrapper: the native handle, where it came from, and
// whether it has been released.
type resource struct {
	r        *renderer
	kind     ResourceKind
	label    string
	handle   Handle
	released atomic.Bool
}

func newResource(r *renderer, kind ResourceKind, label string, h Handle) resource {
	r.live.Add(1)
	return resource{r: r, kind: kind, label: label, handle: h}
}

// Handle returns the backend handle. It stays readable after release for diagnostics only.
func (res *resource) Handle() Handle {
	return res.handle
}

// Label returns the label given at creation.
func (res *resource) Label() string {
	return res.label
}

// Kind returns the resource kind.
func (res *resource) Kind() ResourceKind {
	return res.kind
}

// Released reports whether the native handle has been destroyed.
func (res *resource) Released() bool {
	return res.released.Load()
}

// Validate asserts that the native handle is still alive.
//
// Returns:
//   - error: an error wrapping ErrUseAfterFree if the handle was released
func (res *resource) Validate() error {
	if res.released.Load() || res.r.closed.Load() {
		return fmt.Errorf("%s %q: %w", res.kind, res.label, ErrUseAfterFree)
	}
	return nil
}

// MustValidate panics with the Validate error in debug mode and only logs it otherwise.
func (res *resource) MustValidate() {
	err := res.Validate()
	if err == nil {
		return
	}
	if res.r.debug {
		panic(err)
	}
	res.r.logger.Error("resource used after release", "kind", res.kind.String(), "label", res.label)
}

// destroy hands the native handle back to the backend. Only the first call reaches the backend, and
// none do once the renderer has been closed since Release already tore everything down.
func (res *resource) destroy() {
	if !res.released.CompareAndSwap(false, true) {
		return
	}
	if !res.r.closed.Load() {
		res.r.backend.Destroy(res.kind, res.handle)
	}
	res.r.live.Add(-1)
}
