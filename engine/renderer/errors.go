package renderer

import (
	"errors"
	"fmt"
)

var (
	// ErrUseAfterFree is returned by Validate when a resource's native handle has already been released.
	ErrUseAfterFree = errors.New("renderer: use after free")

	// ErrInvalidDescriptor is wrapped by CreationError when a descriptor is rejected before reaching the backend.
	ErrInvalidDescriptor = errors.New("renderer: invalid descriptor")

	// ErrSurfaceUnavailable is returned by AcquireFrame when no presentable texture could be acquired.
	// The frame should be skipped and retried on the next tick.
	ErrSurfaceUnavailable = errors.New("renderer: surface unavailable")

	// ErrDeviceLost is returned when the underlying GPU device is gone. It is not recoverable.
	ErrDeviceLost = errors.New("renderer: device lost")

	// ErrRendererActive is returned by NewRenderer while another renderer context is still open.
	ErrRendererActive = errors.New("renderer: a renderer context is already active in this process")

	// ErrRendererClosed is returned by every creation call after Close.
	ErrRendererClosed = errors.New("renderer: context closed")
)

// CreationError reports that a resource could not be created, either because the descriptor was
// invalid or because the backend rejected it.
type CreationError struct {
	Kind  ResourceKind
	Label string
	Err   error
}

func (e *CreationError) Error() string {
	return fmt.Sprintf("renderer: failed to create %s %q: %v", e.Kind, e.Label, e.Err)
}

func (e *CreationError) Unwrap() error {
	return e.Err
}

// invalid builds a CreationError wrapping ErrInvalidDescriptor with a reason.
func invalid(kind ResourceKind, label, format string, args ...any) error {
	return &CreationError{
		Kind:  kind,
		Label: label,
		Err:   fmt.Errorf("%w: %s", ErrInvalidDescriptor, fmt.Sprintf(format, args...)),
	}
}
