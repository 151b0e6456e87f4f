package config_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Carmen-Shannon/hikari/engine/camera"
	"github.com/Carmen-Shannon/hikari/engine/config"
	"github.com/Carmen-Shannon/hikari/engine/light"
	"github.com/Carmen-Shannon/hikari/engine/renderer"
	"github.com/Carmen-Shannon/hikari/engine/renderer/renderertest"
	"github.com/Carmen-Shannon/hikari/engine/timing"
	"github.com/gogpu/gputypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := config.Defaults()
	require.NoError(t, cfg.Validate())

	mode, err := cfg.PresentMode()
	require.NoError(t, err)
	assert.Equal(t, renderer.PresentModeVSync, mode)

	formats, err := cfg.GBufferFormats()
	require.NoError(t, err)
	assert.Equal(t, []gputypes.TextureFormat{
		gputypes.TextureFormatRGBA32Float,
		gputypes.TextureFormatRGBA16Float,
		gputypes.TextureFormatRGBA8Unorm,
		gputypes.TextureFormatRGBA8Unorm,
	}, formats)

	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)
}

func TestDecodeKeepsDefaultsForMissingKeys(t *testing.T) {
	cfg, err := config.Decode(strings.NewReader(`
log_level = "debug"

[shadows]
cascades = 2
pcf = false
`))
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Shadows.Cascades)
	assert.False(t, cfg.Shadows.PCF)
	assert.Equal(t, uint32(light.ShadowMapResolution), cfg.Shadows.Resolution)
	assert.Equal(t, config.Defaults().Window, cfg.Window)
	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestDecodeRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"too many cascades", "[shadows]\ncascades = 9"},
		{"no cascades", "[shadows]\ncascades = 0"},
		{"zero resolution", "[shadows]\nresolution = 0"},
		{"negative distance", "[shadows]\nmax_distance = -4.0"},
		{"present mode", "[renderer]\npresent_mode = \"mailbox\""},
		{"format", "[renderer]\ngbuffer_formats = [\"rgba32float\", \"rgba16float\", \"rgba8unorm\", \"depth\"]"},
		{"too few targets", "[renderer]\ngbuffer_formats = [\"rgba8unorm\"]"},
		{"window", "[window]\nwidth = 0"},
		{"log level", "log_level = \"loud\""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Decode(strings.NewReader(tt.src))
			assert.ErrorIs(t, err, config.ErrInvalid)
		})
	}
}

func TestDecodeRejectsUnknownKeys(t *testing.T) {
	_, err := config.Decode(strings.NewReader("[shadows]\ncascade = 2"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cascade")
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, config.Defaults(), cfg)
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hikari.toml")
	cfg := config.Defaults()
	cfg.Window.Title = "demo"
	cfg.Shadows.MaxDistance = 42
	cfg.Renderer.PresentMode = "uncapped"
	require.NoError(t, cfg.Save(path))

	loaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestApplyShadowsReconfiguresCascades(t *testing.T) {
	r, err := renderer.NewRenderer(renderertest.NewBackend())
	require.NoError(t, err)
	t.Cleanup(r.Close)
	s, err := light.NewCascadeSet(r, light.NewDirectionalLight(light.WithShadowMap(2, 64)), light.WithWorkers(1))
	require.NoError(t, err)
	t.Cleanup(s.Close)

	cfg := config.Defaults()
	cfg.Shadows.Cascades = 3
	cfg.Shadows.Resolution = 128
	cfg.Shadows.Enabled = false
	require.NoError(t, cfg.ApplyShadows(s))

	assert.Equal(t, 3, s.CascadeCount())
	assert.Equal(t, uint32(128), s.Resolution())
	assert.False(t, s.Light().CastsShadows())
	_, err = s.Update(camera.NewCamera())
	require.NoError(t, err)
}

func TestLightOptions(t *testing.T) {
	cfg := config.Defaults()
	cfg.Shadows.Cascades = 2
	cfg.Shadows.PCF = false
	l := light.NewDirectionalLight(cfg.LightOptions()...)

	assert.Equal(t, 2, l.CascadeCount())
	assert.False(t, l.PCF())
	assert.True(t, l.CastsShadows())
}

func TestWatchPostsReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hikari.toml")
	initial := config.Defaults()
	require.NoError(t, initial.Save(path))

	q := timing.NewQueue("update")
	var got []config.Config
	w, err := config.Watch(context.Background(), path, initial, q, func(c config.Config) { got = append(got, c) })
	require.NoError(t, err)
	t.Cleanup(w.Close)

	require.NoError(t, os.WriteFile(path, []byte("[shadows]\ncascades = 1\n"), 0o644))
	require.Eventually(t, func() bool { return q.Len() > 0 }, 5*time.Second, 10*time.Millisecond)

	// the callback only runs when the queue drains
	assert.Empty(t, got)
	q.DoQueuedEvents()
	require.NotEmpty(t, got)
	assert.Equal(t, 1, got[len(got)-1].Shadows.Cascades)
}

func TestWatchIgnoresInvalidAndUnchanged(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hikari.toml")
	initial := config.Defaults()
	require.NoError(t, initial.Save(path))

	q := timing.NewQueue("update")
	w, err := config.Watch(context.Background(), path, initial, q, func(config.Config) {})
	require.NoError(t, err)
	t.Cleanup(w.Close)

	require.NoError(t, os.WriteFile(path, []byte("[shadows]\ncascades = 42\n"), 0o644))
	require.NoError(t, initial.Save(path))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.toml"), []byte("log_level = \"warn\"\n"), 0o644))

	assert.Never(t, func() bool { return q.Len() > 0 }, 300*time.Millisecond, 20*time.Millisecond)
}

func TestWatchStopsOnClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hikari.toml")
	q := timing.NewQueue("update")
	w, err := config.Watch(context.Background(), path, config.Defaults(), q, func(config.Config) {})
	require.NoError(t, err)
	w.Close()
	w.Close()

	require.NoError(t, os.WriteFile(path, []byte("[shadows]\ncascades = 1\n"), 0o644))
	assert.Never(t, func() bool { return q.Len() > 0 }, 200*time.Millisecond, 20*time.Millisecond)
}
