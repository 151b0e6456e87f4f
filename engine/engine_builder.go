package engine

import (
	"log/slog"

	"github.com/Carmen-Shannon/hikari/engine/config"
	"github.com/Carmen-Shannon/hikari/engine/renderer"
	"github.com/Carmen-Shannon/hikari/engine/screen"
	"github.com/Carmen-Shannon/hikari/engine/window"
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine)

// WithConfig sets the configuration. Ignored when WithConfigFile is also given.
//
// Parameters:
//   - cfg: the configuration
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithConfig(cfg config.Config) EngineBuilderOption {
	return func(e *engine) {
		e.cfg = cfg
	}
}

// WithConfigFile loads the configuration from a TOML file and reloads shadow and log settings while Run is
// active whenever the file changes. A missing file yields the defaults.
//
// Parameters:
//   - path: the config file path
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithConfigFile(path string) EngineBuilderOption {
	return func(e *engine) {
		e.configPath = path
	}
}

// WithWindow sets a custom configured window for the engine to use rather than allowing the engine
// to create and manage one internally. The engine takes ownership and closes it.
//
// Parameters:
//   - w: a pre-configured Window instance
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWindow(w window.Window) EngineBuilderOption {
	return func(e *engine) {
		e.window = w
	}
}

// WithBackend replaces the WebGPU backend, for example with renderertest.Backend.
//
// Parameters:
//   - b: the backend
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithBackend(b renderer.Backend) EngineBuilderOption {
	return func(e *engine) {
		e.backend = b
	}
}

// WithLogger sets the logger shared by every engine component. By default the engine logs text to stderr
// at the configured level.
func WithLogger(logger *slog.Logger) EngineBuilderOption {
	return func(e *engine) {
		e.logger = logger
	}
}

// WithScreenOptions passes extra options to the screen, applied after the ones derived from the configuration.
//
// Parameters:
//   - options: the screen options
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithScreenOptions(options ...screen.ScreenBuilderOption) EngineBuilderOption {
	return func(e *engine) {
		e.screenOptions = append(e.screenOptions, options...)
	}
}
