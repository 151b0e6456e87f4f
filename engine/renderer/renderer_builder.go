package renderer

import (
	"log/slog"

	"github.com/Carmen-Shannon/hikari/common"
)

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithLogger sets the structured logger. Defaults to slog.Default().
//
// Parameters:
//   - logger: the logger to use
//
// Returns:
//   - RendererBuilderOption: a function that applies the logger option to a renderer
func WithLogger(logger *slog.Logger) RendererBuilderOption {
	return func(r *renderer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithDebug enables debug validation: MustValidate panics instead of logging, and bind groups also
// validate every resource they bind.
//
// Parameters:
//   - debug: true to enable debug validation
//
// Returns:
//   - RendererBuilderOption: a function that applies the debug option to a renderer
func WithDebug(debug bool) RendererBuilderOption {
	return func(r *renderer) {
		r.debug = debug
	}
}

// WithShaderValidation compiles WGSL through naga before handing it to the backend, so malformed shaders
// fail at CreateShaderModule with a readable error.
//
// Parameters:
//   - validate: true to validate shaders
//
// Returns:
//   - RendererBuilderOption: a function that applies the shader validation option to a renderer
func WithShaderValidation(validate bool) RendererBuilderOption {
	return func(r *renderer) {
		r.validateShaders = validate
	}
}

// WithPresentMode sets the surface present mode which controls how frames are delivered to the display.
//
// Parameters:
//   - mode: the PresentMode to use (VSync or Uncapped)
//
// Returns:
//   - RendererBuilderOption: a function that applies the present mode option to a renderer
func WithPresentMode(mode PresentMode) RendererBuilderOption {
	return func(r *renderer) {
		r.presentMode = &mode
	}
}

// WithSurfaceSize configures the surface at construction.
//
// Parameters:
//   - width: the surface width in pixels
//   - height: the surface height in pixels
//
// Returns:
//   - RendererBuilderOption: a function that applies the surface size option to a renderer
func WithSurfaceSize(width, height uint32) RendererBuilderOption {
	return func(r *renderer) {
		r.size = common.Size{Width: width, Height: height}
	}
}
