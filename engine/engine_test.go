package engine

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/hikari/engine/config"
	"github.com/Carmen-Shannon/hikari/engine/deferred"
	"github.com/Carmen-Shannon/hikari/engine/renderer"
	"github.com/Carmen-Shannon/hikari/engine/renderer/renderertest"
	"github.com/Carmen-Shannon/hikari/engine/screen"
	"github.com/Carmen-Shannon/hikari/engine/window"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWindow is a headless window.Window; onPoll runs on every PollEvents with the poll count.
type fakeWindow struct {
	width, height  int
	polls          int
	closed         int
	onPoll         func(n int)
	onResize       func(width, height int)
	onCloseRequest func()
	onRefresh      func()
}

var _ window.Window = &fakeWindow{}

func (w *fakeWindow) SetResizeCallback(fn func(width, height int)) { w.onResize = fn }
func (w *fakeWindow) SetCloseRequestCallback(fn func())           { w.onCloseRequest = fn }
func (w *fakeWindow) SetRefreshCallback(fn func())                { w.onRefresh = fn }
func (w *fakeWindow) SurfaceDescriptor() window.SurfaceDescriptor { return nil }
func (w *fakeWindow) IsRunning() bool                             { return w.closed == 0 }
func (w *fakeWindow) Width() int                                  { return w.width }
func (w *fakeWindow) Height() int                                 { return w.height }

func (w *fakeWindow) PollEvents() bool {
	if !w.IsRunning() {
		return false
	}
	w.polls++
	if w.onPoll != nil {
		w.onPoll(w.polls)
	}
	return w.IsRunning()
}

func (w *fakeWindow) Close() error {
	w.closed++
	return nil
}

func testConfig() config.Config {
	cfg := config.Defaults()
	cfg.Shadows.Cascades = 2
	cfg.Shadows.Resolution = 64
	return cfg
}

func newTestEngine(t *testing.T, opts ...EngineBuilderOption) (*engine, *fakeWindow, *renderertest.Backend) {
	t.Helper()
	win := &fakeWindow{width: 64, height: 64}
	backend := renderertest.NewBackend()
	e, err := NewEngine(append([]EngineBuilderOption{
		WithConfig(testConfig()),
		WithWindow(win),
		WithBackend(backend),
		WithLogger(slog.New(slog.DiscardHandler)),
	}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(e.release)
	return e.(*engine), win, backend
}

func TestRunRendersUntilCloseRequest(t *testing.T) {
	e, win, backend := newTestEngine(t)
	win.onPoll = func(n int) {
		if n == 3 {
			win.onCloseRequest()
		}
	}

	require.NoError(t, e.Run(context.Background()))

	_, presented := backend.Frames()
	assert.Equal(t, 3, presented)
	assert.Equal(t, screen.Closed, e.Screen().State())
	assert.Positive(t, win.closed)
	assert.Zero(t, e.Renderer().LiveResources())
	assert.Empty(t, backend.DoubleDestroys())
}

func TestRunRecordsDeferredPipeline(t *testing.T) {
	e, win, backend := newTestEngine(t)
	e.Overlay().SetRects([]deferred.Rect{{X: 0, Y: 0, Width: 0.5, Height: 0.1, Color: [4]float32{1, 1, 1, 0.5}}})
	win.onPoll = func(n int) {
		if n == 2 {
			e.Quit()
		}
	}

	require.NoError(t, e.Run(context.Background()))

	labels := backend.PassLabels()
	require.GreaterOrEqual(t, len(labels), 5)
	assert.Equal(t, []string{"shadow_0", "shadow_1", "geometry", "lighting", "overlay"}, labels[:5])
}

func TestWindowResizeReachesSurface(t *testing.T) {
	e, win, backend := newTestEngine(t)
	win.onPoll = func(n int) {
		switch n {
		case 1:
			win.onResize(200, 100)
		case 2:
			win.onResize(0, 0)
		case 3:
			e.Quit()
		}
	}

	require.NoError(t, e.Run(context.Background()))

	w, h, _ := backend.SurfaceSize()
	assert.Equal(t, uint32(200), w)
	assert.Equal(t, uint32(100), h)
}

func TestRunStopsWhenWindowCloses(t *testing.T) {
	e, win, _ := newTestEngine(t)
	win.onPoll = func(n int) {
		if n == 2 {
			win.closed++
		}
	}

	require.NoError(t, e.Run(context.Background()))
	assert.Equal(t, screen.Closed, e.Screen().State())
}

func TestRunReturnsContextError(t *testing.T) {
	e, win, _ := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	win.onPoll = func(n int) {
		if n == 2 {
			cancel()
		}
	}

	assert.ErrorIs(t, e.Run(ctx), context.Canceled)
	assert.Equal(t, screen.Closed, e.Screen().State())
}

func TestRunReturnsDeviceLost(t *testing.T) {
	e, win, backend := newTestEngine(t)
	win.onPoll = func(n int) {
		if n == 2 {
			backend.SetSurfaceError(renderer.ErrDeviceLost)
		}
	}

	assert.ErrorIs(t, e.Run(context.Background()), renderer.ErrDeviceLost)
}

func TestApplyConfigReconfiguresShadows(t *testing.T) {
	e, _, _ := newTestEngine(t)

	cfg := testConfig()
	cfg.Shadows.Cascades = 3
	cfg.LogLevel = "debug"
	e.applyConfig(cfg)

	assert.Equal(t, 3, e.Screen().Cascades().CascadeCount())
	assert.Equal(t, slog.LevelDebug, e.level.Level())
	assert.Equal(t, 3, e.Config().Shadows.Cascades)
}

func TestNewEngineLoadsConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hikari.toml")
	require.NoError(t, os.WriteFile(path, []byte("[shadows]\ncascades = 1\nresolution = 32\n"), 0o644))

	e, _, _ := newTestEngine(t, WithConfigFile(path))

	assert.Equal(t, 1, e.Screen().Cascades().CascadeCount())
	assert.Equal(t, uint32(32), e.Screen().Cascades().Resolution())
	assert.Equal(t, 1, e.Config().Shadows.Cascades)
}

func TestNewEngineRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Shadows.Cascades = 0
	_, err := NewEngine(WithConfig(cfg), WithWindow(&fakeWindow{}), WithBackend(renderertest.NewBackend()))
	assert.ErrorIs(t, err, config.ErrInvalid)
}
