package screen

import (
	"log/slog"
	"time"

	"github.com/Carmen-Shannon/hikari/engine/camera"
	"github.com/Carmen-Shannon/hikari/engine/light"
	"github.com/Carmen-Shannon/hikari/engine/profiler"
	"github.com/gogpu/gputypes"
)

// ScreenBuilderOption is a function that configures a Screen during construction via NewScreen.
type ScreenBuilderOption func(*screen)

// WithLogger sets the structured logger of the screen and every component it creates.
//
// Parameters:
//   - logger: the logger to use
//
// Returns:
//   - ScreenBuilderOption: a function that sets the screen's logger
func WithLogger(logger *slog.Logger) ScreenBuilderOption {
	return func(s *screen) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCamera sets the camera the screen renders from. Its aspect ratio follows the surface.
func WithCamera(c camera.Camera) ScreenBuilderOption {
	return func(s *screen) {
		if c != nil {
			s.camera = c
		}
	}
}

// WithLight sets the directional light. Its cascade count and shadow map resolution size the cascade set.
func WithLight(l light.DirectionalLight) ScreenBuilderOption {
	return func(s *screen) {
		if l != nil {
			s.light = l
		}
	}
}

// WithGBufferFormats sets the G-buffer target formats. Defaults to gbuffer.DefaultFormats.
//
// Parameters:
//   - formats: one format per target
//
// Returns:
//   - ScreenBuilderOption: a function that sets the G-buffer formats
func WithGBufferFormats(formats []gputypes.TextureFormat) ScreenBuilderOption {
	return func(s *screen) {
		if len(formats) > 0 {
			s.formats = formats
		}
	}
}

// WithDepthFormat sets the format of the main depth target. Defaults to DefaultDepthFormat.
func WithDepthFormat(format gputypes.TextureFormat) ScreenBuilderOption {
	return func(s *screen) {
		s.depthFormat = format
	}
}

// WithCascadeOptions passes extra options to the cascade set, such as the worker count.
func WithCascadeOptions(options ...light.CascadeSetBuilderOption) ScreenBuilderOption {
	return func(s *screen) {
		s.cascadeOptions = append(s.cascadeOptions, options...)
	}
}

// WithProfiler ticks p once after every presented frame.
//
// Parameters:
//   - p: the profiler, or nil to disable profiling
//
// Returns:
//   - ScreenBuilderOption: a function that sets the profiler
func WithProfiler(p *profiler.Profiler) ScreenBuilderOption {
	return func(s *screen) {
		s.profiler = p
	}
}

// WithClock replaces the wall clock used for frame delta times.
//
// Parameters:
//   - now: returns the current time
//
// Returns:
//   - ScreenBuilderOption: a function that sets the clock
func WithClock(now func() time.Time) ScreenBuilderOption {
	return func(s *screen) {
		if now != nil {
			s.now = now
		}
	}
}
