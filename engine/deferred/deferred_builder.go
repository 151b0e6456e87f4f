package deferred

import (
	"log/slog"

	"github.com/gogpu/gputypes"
)

// options collects the settings shared by the deferred operation constructors.
type options struct {
	logger     *slog.Logger
	clearColor gputypes.Color
	sortOffset int
}

// DeferredBuilderOption is a function that configures a deferred operation during construction.
type DeferredBuilderOption func(*options)

// WithLogger sets the structured logger of the operation.
//
// Parameters:
//   - logger: the logger to use
//
// Returns:
//   - DeferredBuilderOption: a function that sets the operation's logger
func WithLogger(logger *slog.Logger) DeferredBuilderOption {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClearColor sets the color the lighting pass clears the surface to. Texels the geometry pass never
// wrote keep this color.
//
// Parameters:
//   - c: the clear color
//
// Returns:
//   - DeferredBuilderOption: a function that sets the clear color
func WithClearColor(c gputypes.Color) DeferredBuilderOption {
	return func(o *options) {
		o.clearColor = c
	}
}

// WithSortOffset moves the operation inside its pass band.
func WithSortOffset(offset int) DeferredBuilderOption {
	return func(o *options) {
		o.sortOffset = offset
	}
}

func newOptions(component string, defaultOffset int, opts []DeferredBuilderOption) *options {
	o := &options{
		logger:     slog.Default(),
		clearColor: gputypes.Color{R: 0.02, G: 0.02, B: 0.03, A: 1},
		sortOffset: defaultOffset,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With("component", component)
	return o
}
