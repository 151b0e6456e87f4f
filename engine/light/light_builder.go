package light

import "github.com/Carmen-Shannon/hikari/common"

// LightBuilderOption is a function that configures a DirectionalLight instance during construction.
type LightBuilderOption func(*directionalLightImpl)

// WithDirection is an option builder that sets the direction of the light.
// The direction is normalized before storing; a zero vector leaves the default in place.
//
// Parameters:
//   - x: the x direction component
//   - y: the y direction component
//   - z: the z direction component
//
// Returns:
//   - LightBuilderOption: a function that applies the direction option to a directionalLightImpl
func WithDirection(x, y, z float32) LightBuilderOption {
	return func(l *directionalLightImpl) {
		if d := (common.Vec3{x, y, z}).Normalize(); d != (common.Vec3{}) {
			l.direction = d
		}
	}
}

// WithColor is an option builder that sets the RGB color of the light.
//
// Parameters:
//   - r: the red color component
//   - g: the green color component
//   - b: the blue color component
//
// Returns:
//   - LightBuilderOption: a function that applies the color option to a directionalLightImpl
func WithColor(r, g, b float32) LightBuilderOption {
	return func(l *directionalLightImpl) {
		l.color = common.Vec3{r, g, b}
	}
}

// WithIntensity is an option builder that sets the scalar intensity multiplier.
//
// Parameters:
//   - intensity: the intensity value
//
// Returns:
//   - LightBuilderOption: a function that applies the intensity option to a directionalLightImpl
func WithIntensity(intensity float32) LightBuilderOption {
	return func(l *directionalLightImpl) {
		l.intensity = intensity
	}
}

// WithAmbient is an option builder that sets the ambient strength.
func WithAmbient(ambient float32) LightBuilderOption {
	return func(l *directionalLightImpl) {
		l.ambient = ambient
	}
}

// WithCastsShadows is an option builder that sets whether the light is eligible for
// shadow map generation.
//
// Parameters:
//   - castsShadows: true to enable shadow casting
//
// Returns:
//   - LightBuilderOption: a function that applies the shadow casting option to a directionalLightImpl
func WithCastsShadows(castsShadows bool) LightBuilderOption {
	return func(l *directionalLightImpl) {
		l.castsShadows = castsShadows
	}
}

// WithShadowMap is an option builder that sets the cascade count and the per-cascade shadow map resolution.
// The count is clamped to [1, MaxCascadeCount]; a zero resolution keeps ShadowMapResolution.
//
// Parameters:
//   - cascadeCount: number of cascades
//   - resolution: width and height of each cascade's depth texture in texels
//
// Returns:
//   - LightBuilderOption: a function that applies the shadow map option to a directionalLightImpl
func WithShadowMap(cascadeCount int, resolution uint32) LightBuilderOption {
	return func(l *directionalLightImpl) {
		l.cascadeCount = clampCascadeCount(cascadeCount)
		l.shadowMapResolution = common.Coalesce(resolution, ShadowMapResolution)
	}
}

// WithMaxShadowDistance is an option builder that sets how far from the camera shadows are rendered.
func WithMaxShadowDistance(distance float32) LightBuilderOption {
	return func(l *directionalLightImpl) {
		if distance > 0 {
			l.maxShadowDistance = distance
		}
	}
}

// WithPCF is an option builder that enables or disables percentage-closer filtering.
func WithPCF(pcf bool) LightBuilderOption {
	return func(l *directionalLightImpl) {
		l.pcf = pcf
	}
}
