package light

import (
	"log/slog"

	"github.com/gogpu/gputypes"
)

// CascadeSetBuilderOption is a function that configures a CascadeSet during construction.
type CascadeSetBuilderOption func(*cascadeSet)

// WithLogger sets the structured logger of the cascade set.
//
// Parameters:
//   - logger: the logger to use
//
// Returns:
//   - CascadeSetBuilderOption: a function that sets the cascade set's logger
func WithLogger(logger *slog.Logger) CascadeSetBuilderOption {
	return func(s *cascadeSet) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithWorkers sets how many workers fit cascades in parallel. Defaults to NumCPU - 1.
//
// Parameters:
//   - workers: the worker count, at least 1
//
// Returns:
//   - CascadeSetBuilderOption: a function that sets the worker count
func WithWorkers(workers int) CascadeSetBuilderOption {
	return func(s *cascadeSet) {
		s.workers = max(workers, 1)
	}
}

// WithCasterVertexLayout sets the vertex layout the depth pipelines read at slot 0. Location 0 must be
// a float32x3 position. Defaults to a tightly packed position-only layout.
func WithCasterVertexLayout(layout gputypes.VertexBufferLayout) CascadeSetBuilderOption {
	return func(s *cascadeSet) {
		s.casterVertexLayout = layout
	}
}

// WithDepthBias sets the rasterizer depth bias of the cascade depth pipelines.
//
// Parameters:
//   - constant: the constant bias in depth units
//   - slopeScale: the bias scale applied to the polygon's depth slope
//
// Returns:
//   - CascadeSetBuilderOption: a function that sets the depth bias
func WithDepthBias(constant int32, slopeScale float32) CascadeSetBuilderOption {
	return func(s *cascadeSet) {
		s.depthBias = constant
		s.depthBiasSlope = slopeScale
	}
}

// WithCasterPullback sets how far, in multiples of each cascade's depth extent, the light near plane is
// pulled back to catch casters outside the camera frustum.
func WithCasterPullback(pullback float32) CascadeSetBuilderOption {
	return func(s *cascadeSet) {
		if pullback >= 0 {
			s.pullback = pullback
		}
	}
}
