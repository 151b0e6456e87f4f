// Package engine wires a window, a renderer and a screen into a runnable process.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/hikari/engine/config"
	"github.com/Carmen-Shannon/hikari/engine/deferred"
	"github.com/Carmen-Shannon/hikari/engine/light"
	"github.com/Carmen-Shannon/hikari/engine/profiler"
	"github.com/Carmen-Shannon/hikari/engine/renderer"
	"github.com/Carmen-Shannon/hikari/engine/screen"
	"github.com/Carmen-Shannon/hikari/engine/window"
)

// engine implements the Engine interface.
type engine struct {
	cfg        config.Config
	configPath string
	level      *slog.LevelVar
	logger     *slog.Logger

	window        window.Window
	backend       renderer.Backend
	renderer      renderer.Renderer
	screen        screen.Screen
	overlay       deferred.Overlay
	screenOptions []screen.ScreenBuilderOption

	quitOnce sync.Once
}

// Engine is the main entry point for the engine.
// It owns the window, the renderer context and the screen, and runs the frame loop on the calling goroutine.
type Engine interface {
	// Window returns the underlying window.
	Window() window.Window

	// Renderer returns the renderer context.
	Renderer() renderer.Renderer

	// Screen returns the screen. Add scene objects through Screen().Store() and custom render operations
	// through Screen().Registry().
	Screen() screen.Screen

	// Overlay returns the screen-space rectangle overlay drawn after lighting.
	Overlay() deferred.Overlay

	// Config returns the configuration currently in effect.
	Config() config.Config

	// Run runs frames until the window closes, the screen closes or ctx is cancelled, then releases the
	// renderer and the window. Must be called from the goroutine that created the engine.
	//
	// Parameters:
	//   - ctx: cancellation closes the screen without consulting its close subscribers
	//
	// Returns:
	//   - error: nil after a regular close, otherwise the fatal frame error or ctx.Err()
	Run(ctx context.Context) error

	// Quit requests the screen to close at the next frame. Safe to call from any goroutine.
	Quit()
}

var _ Engine = &engine{}

// NewEngine creates the window (unless one is supplied), the renderer backend and context, the screen and
// the deferred pipeline: shadow casters, geometry, lighting and overlay.
// Panics if the platform window cannot be created, as window.NewWindow does.
//
// Parameters:
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the newly created engine
//   - error: a configuration, renderer or pipeline creation error
func NewEngine(options ...EngineBuilderOption) (_ Engine, err error) {
	e := &engine{
		cfg:   config.Defaults(),
		level: new(slog.LevelVar),
	}
	for _, opt := range options {
		opt(e)
	}
	if e.configPath != "" {
		if e.cfg, err = config.Load(e.configPath); err != nil {
			return nil, err
		}
	}
	if err := e.cfg.Validate(); err != nil {
		return nil, err
	}
	level, _ := e.cfg.Level()
	e.level.Set(level)
	if e.logger == nil {
		e.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: e.level}))
	}

	defer func() {
		if err != nil {
			e.release()
		}
	}()

	if e.window == nil {
		e.window = window.NewWindow(
			window.WithTitle(e.cfg.Window.Title),
			window.WithSize(e.cfg.Window.Width, e.cfg.Window.Height),
			window.WithLogger(e.logger),
		)
	}
	if e.backend == nil {
		e.backend = renderer.NewWGPUBackend(e.window.SurfaceDescriptor(), false)
	}

	mode, _ := e.cfg.PresentMode()
	e.renderer, err = renderer.NewRenderer(e.backend,
		renderer.WithLogger(e.logger),
		renderer.WithSurfaceSize(uint32(max(e.window.Width(), 0)), uint32(max(e.window.Height(), 0))),
		renderer.WithPresentMode(mode),
		renderer.WithDebug(e.cfg.Renderer.Debug),
		renderer.WithShaderValidation(e.cfg.Renderer.ShaderValidation),
	)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	formats, _ := e.cfg.GBufferFormats()
	opts := []screen.ScreenBuilderOption{
		screen.WithLogger(e.logger),
		screen.WithGBufferFormats(formats),
		screen.WithLight(light.NewDirectionalLight(e.cfg.LightOptions()...)),
	}
	if e.cfg.Profiling {
		opts = append(opts, screen.WithProfiler(profiler.NewProfiler(profiler.WithLogger(e.logger))))
	}
	e.screen, err = screen.NewScreen(e.renderer, append(opts, e.screenOptions...)...)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	if err := e.addPipeline(); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	e.window.SetResizeCallback(func(width, height int) {
		e.screen.Resize(uint32(max(width, 0)), uint32(max(height, 0)))
	})
	e.window.SetCloseRequestCallback(e.screen.RequestClose)
	e.screen.OnClosed(func(screen.Screen) {
		if err := e.window.Close(); err != nil {
			e.logger.Warn("closing window", "error", err)
		}
	})
	return e, nil
}

// addPipeline registers the deferred operations with the screen's registry. Each operation is added as soon
// as it exists so a later failure still releases it when the screen closes.
func (e *engine) addPipeline() error {
	log := deferred.WithLogger(e.logger)
	reg := e.screen.Registry()

	if err := reg.Add(deferred.NewShadowCasterOperation(e.screen, log)); err != nil {
		return err
	}
	geometry, err := deferred.NewGeometryOperation(e.screen, log)
	if err != nil {
		return err
	}
	if err := reg.Add(geometry); err != nil {
		return err
	}
	lighting, err := deferred.NewLightingOperation(e.screen, log)
	if err != nil {
		return err
	}
	if err := reg.Add(lighting); err != nil {
		return err
	}
	if e.overlay, err = deferred.NewOverlay(e.renderer, log); err != nil {
		return err
	}
	return reg.Add(e.overlay.Operation())
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Renderer() renderer.Renderer {
	return e.renderer
}

func (e *engine) Screen() screen.Screen {
	return e.screen
}

func (e *engine) Overlay() deferred.Overlay {
	return e.overlay
}

func (e *engine) Config() config.Config {
	return e.cfg
}

func (e *engine) Run(ctx context.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer e.release()

	if e.configPath != "" {
		w, err := config.Watch(ctx, e.configPath, e.cfg, e.screen.Update(), e.applyConfig, config.WithLogger(e.logger))
		if err != nil {
			e.logger.Warn("config hot reload disabled", "error", err)
		} else {
			defer w.Close()
		}
	}

	e.window.SetRefreshCallback(func() {
		if err := e.screen.RunFrame(ctx); err != nil && !errors.Is(err, screen.ErrClosed) {
			e.logger.Warn("refresh frame", "error", err)
		}
	})

	for {
		if !e.window.PollEvents() {
			e.screen.Close()
			return nil
		}
		err := e.screen.RunFrame(ctx)
		switch {
		case err == nil:
		case errors.Is(err, screen.ErrClosed):
			return nil
		default:
			e.screen.Close()
			return err
		}
	}
}

func (e *engine) Quit() {
	e.quitOnce.Do(func() {
		if e.screen != nil {
			e.screen.RequestClose()
		}
	})
}

// applyConfig runs on the Update queue with a reloaded configuration. Window, present mode and G-buffer
// settings only apply at startup.
func (e *engine) applyConfig(cfg config.Config) {
	if level, err := cfg.Level(); err == nil {
		e.level.Set(level)
	}
	if err := cfg.ApplyShadows(e.screen.Cascades()); err != nil {
		e.logger.Error("applying shadow settings", "error", err)
		return
	}
	if cfg.Window != e.cfg.Window || cfg.Renderer.PresentMode != e.cfg.Renderer.PresentMode ||
		cfg.Profiling != e.cfg.Profiling {
		e.logger.Info("some settings take effect after a restart")
	}
	e.cfg.Shadows = cfg.Shadows
	e.cfg.LogLevel = cfg.LogLevel
}

// release closes whatever was created, in reverse order.
func (e *engine) release() {
	if e.screen != nil {
		e.screen.Close()
	}
	if e.renderer != nil {
		e.renderer.Close()
	}
	if e.window != nil {
		_ = e.window.Close()
	}
}
