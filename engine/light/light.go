package light

import (
	"sync"

	"github.com/Carmen-Shannon/hikari/common"
)

// directionalLightImpl is the implementation of the DirectionalLight interface.
type directionalLightImpl struct {
	mu *sync.Mutex

	direction    common.Vec3
	color        common.Vec3
	intensity    float32
	ambient      float32
	castsShadows bool

	cascadeCount        int
	shadowMapResolution uint32
	maxShadowDistance   float32
	pcf                 bool

	// version increments on every change that affects the light data or the cascade fitting.
	version uint64
}

// DirectionalLight defines the interface for the scene's sun light.
//
// A directional light has no position, only a direction, and lights every fragment uniformly. It is the only
// light that casts cascaded shadows. The cascade count and shadow map resolution stored here are read by
// NewCascadeSet; changing them afterwards requires CascadeSet.Reconfigure.
//
// Setters may be called from any goroutine.
type DirectionalLight interface {
	// Direction returns the normalized direction the light travels in.
	//
	// Returns:
	//   - common.Vec3: normalized direction as (x, y, z)
	Direction() common.Vec3

	// Color returns the RGB color of the light.
	//
	// Returns:
	//   - common.Vec3: color as (r, g, b)
	Color() common.Vec3

	// Intensity returns the scalar intensity multiplier for the light.
	//
	// Returns:
	//   - float32: the intensity value
	Intensity() float32

	// Ambient returns the ambient strength added to every lit fragment regardless of shadowing.
	Ambient() float32

	// CastsShadows returns whether the shadow passes are recorded for this light.
	//
	// Returns:
	//   - bool: true if the light casts shadows
	CastsShadows() bool

	// CascadeCount returns the number of shadow cascades.
	CascadeCount() int

	// ShadowMapResolution returns the width and height in texels of each cascade's depth texture.
	ShadowMapResolution() uint32

	// MaxShadowDistance returns the view distance at which the last cascade ends.
	MaxShadowDistance() float32

	// PCF reports whether shadow lookups use the 4x4 percentage-closer filter.
	PCF() bool

	// Version returns a counter that increases whenever the light changes.
	//
	// Returns:
	//   - uint64: the current version
	Version() uint64

	// SetDirection sets the direction of the light and normalizes it. A zero vector is ignored.
	//
	// Parameters:
	//   - x, y, z: direction components (will be normalized)
	SetDirection(x, y, z float32)

	// SetColor sets the RGB color of the light.
	//
	// Parameters:
	//   - r, g, b: color components
	SetColor(r, g, b float32)

	// SetIntensity sets the scalar intensity multiplier.
	//
	// Parameters:
	//   - intensity: the intensity value
	SetIntensity(intensity float32)

	// SetAmbient sets the ambient strength.
	SetAmbient(ambient float32)

	// SetCastsShadows sets whether the light is eligible for shadow mapping.
	//
	// Parameters:
	//   - castsShadows: true to enable shadow casting
	SetCastsShadows(castsShadows bool)

	// SetShadowMap sets the cascade count and per-cascade resolution. Values out of range are clamped.
	//
	// Parameters:
	//   - cascadeCount: number of cascades, 1 to MaxCascadeCount
	//   - resolution: depth texture size in texels
	SetShadowMap(cascadeCount int, resolution uint32)

	// SetMaxShadowDistance sets the view distance covered by the cascades. Non-positive values are ignored.
	SetMaxShadowDistance(distance float32)

	// SetPCF enables or disables percentage-closer filtering.
	SetPCF(pcf bool)
}

var _ DirectionalLight = &directionalLightImpl{}

// NewDirectionalLight creates a new DirectionalLight with sensible defaults and any provided options applied.
//
// The default light points straight down, is white, casts shadows over DefaultCascadeCount cascades of
// ShadowMapResolution texels and filters with PCF.
//
// Parameters:
//   - opts: variadic list of LightBuilderOption functions to configure the light
//
// Returns:
//   - DirectionalLight: a new DirectionalLight instance
func NewDirectionalLight(opts ...LightBuilderOption) DirectionalLight {
	l := &directionalLightImpl{
		mu:                  &sync.Mutex{},
		direction:           common.Vec3{0, -1, 0},
		color:               common.Vec3{1, 1, 1},
		intensity:           1.0,
		ambient:             DefaultAmbient,
		castsShadows:        true,
		cascadeCount:        DefaultCascadeCount,
		shadowMapResolution: ShadowMapResolution,
		maxShadowDistance:   DefaultMaxShadowDistance,
		pcf:                 true,
		version:             1,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *directionalLightImpl) Direction() common.Vec3 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.direction
}

func (l *directionalLightImpl) Color() common.Vec3 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.color
}

func (l *directionalLightImpl) Intensity() float32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.intensity
}

func (l *directionalLightImpl) Ambient() float32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ambient
}

func (l *directionalLightImpl) CastsShadows() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.castsShadows
}

func (l *directionalLightImpl) CascadeCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cascadeCount
}

func (l *directionalLightImpl) ShadowMapResolution() uint32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.shadowMapResolution
}

func (l *directionalLightImpl) MaxShadowDistance() float32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.maxShadowDistance
}

func (l *directionalLightImpl) PCF() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pcf
}

func (l *directionalLightImpl) Version() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.version
}

func (l *directionalLightImpl) SetDirection(x, y, z float32) {
	d := common.Vec3{x, y, z}.Normalize()
	if d == (common.Vec3{}) {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.set(func() { l.direction = d })
}

func (l *directionalLightImpl) SetColor(r, g, b float32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.set(func() { l.color = common.Vec3{r, g, b} })
}

func (l *directionalLightImpl) SetIntensity(intensity float32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.set(func() { l.intensity = intensity })
}

func (l *directionalLightImpl) SetAmbient(ambient float32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.set(func() { l.ambient = ambient })
}

func (l *directionalLightImpl) SetCastsShadows(castsShadows bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.set(func() { l.castsShadows = castsShadows })
}

func (l *directionalLightImpl) SetShadowMap(cascadeCount int, resolution uint32) {
	cascadeCount = clampCascadeCount(cascadeCount)
	resolution = common.Coalesce(resolution, ShadowMapResolution)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.set(func() {
		l.cascadeCount = cascadeCount
		l.shadowMapResolution = resolution
	})
}

func (l *directionalLightImpl) SetMaxShadowDistance(distance float32) {
	if distance <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.set(func() { l.maxShadowDistance = distance })
}

func (l *directionalLightImpl) SetPCF(pcf bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.set(func() { l.pcf = pcf })
}

// set applies fn and bumps the version if anything changed. Must be called with l.mu held.
func (l *directionalLightImpl) set(fn func()) {
	before := l.snapshot()
	fn()
	if l.snapshot() != before {
		l.version++
	}
}

type lightState struct {
	direction, color   common.Vec3
	intensity, ambient float32
	castsShadows, pcf  bool
	cascadeCount       int
	resolution         uint32
	maxShadowDistance  float32
}

func (l *directionalLightImpl) snapshot() lightState {
	return lightState{
		direction:         l.direction,
		color:             l.color,
		intensity:         l.intensity,
		ambient:           l.ambient,
		castsShadows:      l.castsShadows,
		pcf:               l.pcf,
		cascadeCount:      l.cascadeCount,
		resolution:        l.shadowMapResolution,
		maxShadowDistance: l.maxShadowDistance,
	}
}

func clampCascadeCount(n int) int {
	return min(max(n, 1), MaxCascadeCount)
}
