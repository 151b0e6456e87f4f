// Package config holds the engine settings and loads them from TOML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/Carmen-Shannon/hikari/engine/gbuffer"
	"github.com/Carmen-Shannon/hikari/engine/light"
	"github.com/Carmen-Shannon/hikari/engine/renderer"
	"github.com/gogpu/gputypes"
	"github.com/pelletier/go-toml/v2"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("config: invalid value")

// Config is the complete engine configuration.
type Config struct {
	Window   WindowConfig   `toml:"window"`
	Renderer RendererConfig `toml:"renderer"`
	Shadows  ShadowConfig   `toml:"shadows"`

	// Profiling logs frame statistics once per second. Default false.
	Profiling bool `toml:"profiling"`
	// LogLevel is one of debug, info, warn, error. Default info.
	LogLevel string `toml:"log_level"`
}

// WindowConfig configures the platform window.
type WindowConfig struct {
	// Title defaults to "hikari".
	Title string `toml:"title"`
	// Width and Height are the initial client size in pixels. Default 1280x720.
	Width  int `toml:"width"`
	Height int `toml:"height"`
}

// RendererConfig configures the renderer context and render targets.
type RendererConfig struct {
	// PresentMode is vsync or uncapped. Default vsync.
	PresentMode string `toml:"present_mode"`
	// Debug turns use-after-free into panics and validates bound resources. Default false.
	Debug bool `toml:"debug"`
	// ShaderValidation compiles WGSL on the CPU before creating modules. Default true.
	ShaderValidation bool `toml:"shader_validation"`
	// GBufferFormats names one texture format per G-buffer target. Default
	// rgba32float, rgba16float, rgba8unorm, rgba8unorm.
	GBufferFormats []string `toml:"gbuffer_formats"`
}

// ShadowConfig configures the directional light's cascaded shadow maps.
type ShadowConfig struct {
	// Enabled records the shadow passes. Default true.
	Enabled bool `toml:"enabled"`
	// Cascades is the cascade count, 1 to light.MaxCascadeCount. Default 4.
	Cascades int `toml:"cascades"`
	// Resolution is the square size of each cascade map. Default 2048.
	Resolution uint32 `toml:"resolution"`
	// MaxDistance is the view distance the cascades cover. Default 100.
	MaxDistance float32 `toml:"max_distance"`
	// PCF enables 4x4 percentage-closer filtering. Default true.
	PCF bool `toml:"pcf"`
}

var formatNames = map[string]gputypes.TextureFormat{
	"rgba32float": gputypes.TextureFormatRGBA32Float,
	"rgba16float": gputypes.TextureFormatRGBA16Float,
	"rgba8unorm":  gputypes.TextureFormatRGBA8Unorm,
	"bgra8unorm":  gputypes.TextureFormatBGRA8Unorm,
	"r32float":    gputypes.TextureFormatR32Float,
}

var presentModes = map[string]renderer.PresentMode{
	"vsync":    renderer.PresentModeVSync,
	"uncapped": renderer.PresentModeUncapped,
}

// Defaults returns the default configuration.
func Defaults() Config {
	return Config{
		Window: WindowConfig{Title: "hikari", Width: 1280, Height: 720},
		Renderer: RendererConfig{
			PresentMode:      "vsync",
			ShaderValidation: true,
			GBufferFormats:   []string{"rgba32float", "rgba16float", "rgba8unorm", "rgba8unorm"},
		},
		Shadows: ShadowConfig{
			Enabled:     true,
			Cascades:    light.DefaultCascadeCount,
			Resolution:  light.ShadowMapResolution,
			MaxDistance: light.DefaultMaxShadowDistance,
			PCF:         true,
		},
		LogLevel: "info",
	}
}

// Decode reads TOML from r over the defaults, so absent keys keep their default, and validates the result.
//
// Parameters:
//   - r: the TOML source
//
// Returns:
//   - Config: the decoded configuration
//   - error: a decode error or an error wrapping ErrInvalid
func Decode(r io.Reader) (Config, error) {
	cfg := Defaults()
	dec := toml.NewDecoder(r).DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return Config{}, fmt.Errorf("config: %s", strict.String())
		}
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads and validates the TOML file at path. A missing file yields the defaults.
//
// Parameters:
//   - path: the file path
//
// Returns:
//   - Config: the loaded configuration
//   - error: a read, decode or validation error
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Defaults(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return Decode(bytes.NewReader(data))
}

// Save writes c to path as TOML.
//
// Parameters:
//   - path: the file path
//
// Returns:
//   - error: an encode or write error
func (c Config) Save(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks every field against its allowed range.
func (c Config) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		invalid("window size %dx%d", c.Window.Width, c.Window.Height)
	}
	if _, err := c.PresentMode(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.GBufferFormats(); err != nil {
		errs = append(errs, err)
	}
	if c.Shadows.Cascades < 1 || c.Shadows.Cascades > light.MaxCascadeCount {
		invalid("shadows.cascades %d not in [1, %d]", c.Shadows.Cascades, light.MaxCascadeCount)
	}
	if c.Shadows.Resolution == 0 {
		invalid("shadows.resolution must be positive")
	}
	if c.Shadows.MaxDistance <= 0 {
		invalid("shadows.max_distance %v must be positive", c.Shadows.MaxDistance)
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// PresentMode returns the configured present mode.
func (c Config) PresentMode() (renderer.PresentMode, error) {
	mode, ok := presentModes[strings.ToLower(c.Renderer.PresentMode)]
	if !ok {
		return 0, fmt.Errorf("%w: renderer.present_mode %q", ErrInvalid, c.Renderer.PresentMode)
	}
	return mode, nil
}

// GBufferFormats returns the configured G-buffer formats.
//
// Returns:
//   - []gputypes.TextureFormat: one format per target
//   - error: an error wrapping ErrInvalid for an unknown name or an empty list
func (c Config) GBufferFormats() ([]gputypes.TextureFormat, error) {
	if len(c.Renderer.GBufferFormats) == 0 {
		return nil, fmt.Errorf("%w: renderer.gbuffer_formats is empty", ErrInvalid)
	}
	if len(c.Renderer.GBufferFormats) < len(gbuffer.DefaultFormats) {
		return nil, fmt.Errorf("%w: renderer.gbuffer_formats needs at least %d targets", ErrInvalid, len(gbuffer.DefaultFormats))
	}
	out := make([]gputypes.TextureFormat, len(c.Renderer.GBufferFormats))
	for i, name := range c.Renderer.GBufferFormats {
		f, ok := formatNames[strings.ToLower(name)]
		if !ok {
			return nil, fmt.Errorf("%w: renderer.gbuffer_formats[%d] %q", ErrInvalid, i, name)
		}
		out[i] = f
	}
	return out, nil
}

// Level returns the configured log level.
func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("%w: log_level %q", ErrInvalid, c.LogLevel)
	}
	return level, nil
}

// LightOptions returns the light options matching the shadow settings.
func (c Config) LightOptions() []light.LightBuilderOption {
	return []light.LightBuilderOption{
		light.WithCastsShadows(c.Shadows.Enabled),
		light.WithShadowMap(c.Shadows.Cascades, c.Shadows.Resolution),
		light.WithMaxShadowDistance(c.Shadows.MaxDistance),
		light.WithPCF(c.Shadows.PCF),
	}
}

// ApplyShadows pushes the shadow settings into a live light and reconfigures the cascade set when the
// cascade count or resolution changed. Must run on the main goroutine.
//
// Parameters:
//   - cascades: the cascade set to update
//
// Returns:
//   - error: the Reconfigure error, if any
func (c Config) ApplyShadows(cascades light.CascadeSet) error {
	l := cascades.Light()
	l.SetCastsShadows(c.Shadows.Enabled)
	l.SetShadowMap(c.Shadows.Cascades, c.Shadows.Resolution)
	l.SetMaxShadowDistance(c.Shadows.MaxDistance)
	l.SetPCF(c.Shadows.PCF)
	return cascades.Reconfigure(l.CascadeCount(), l.ShadowMapResolution())
}
