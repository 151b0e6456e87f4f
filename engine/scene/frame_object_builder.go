package scene

import "github.com/Carmen-Shannon/hikari/common"

// FrameObjectBuilderOption is a functional option applied to a frame object during construction via
// Store.Create.
type FrameObjectBuilderOption func(*frameObject)

// WithName sets the object name used in logs.
func WithName(name string) FrameObjectBuilderOption {
	return func(o *frameObject) {
		o.name = name
	}
}

// WithPosition sets the initial world position.
//
// Parameters:
//   - p: the position
//
// Returns:
//   - FrameObjectBuilderOption: a function that applies the position option to an object
func WithPosition(p common.Vec3) FrameObjectBuilderOption {
	return func(o *frameObject) {
		o.transform.position = p
	}
}

// WithRotation sets the initial Euler rotation in radians.
func WithRotation(r common.Vec3) FrameObjectBuilderOption {
	return func(o *frameObject) {
		o.transform.rotation = r
	}
}

// WithScale sets the initial scale. Defaults to (1, 1, 1).
func WithScale(s common.Vec3) FrameObjectBuilderOption {
	return func(o *frameObject) {
		o.transform.scale = s
	}
}

// WithAlbedo sets the RGBA base color. Defaults to opaque white.
func WithAlbedo(rgba [4]float32) FrameObjectBuilderOption {
	return func(o *frameObject) {
		o.transform.albedo = rgba
	}
}

// WithMaterial sets the metallic and roughness parameters, clamped to [0, 1].
//
// Parameters:
//   - metallic: 0 for dielectrics, 1 for metals
//   - roughness: microfacet roughness
//
// Returns:
//   - FrameObjectBuilderOption: a function that applies the material option to an object
func WithMaterial(metallic, roughness float32) FrameObjectBuilderOption {
	return func(o *frameObject) {
		o.transform.material[0] = clamp01(metallic)
		o.transform.material[1] = clamp01(roughness)
	}
}

// WithFrozen creates the object frozen.
func WithFrozen(frozen bool) FrameObjectBuilderOption {
	return func(o *frameObject) {
		o.frozen.Store(frozen)
	}
}

// WithShadowCaster sets whether the object casts shadows. Defaults to true.
func WithShadowCaster(caster bool) FrameObjectBuilderOption {
	return func(o *frameObject) {
		o.shadowCaster.Store(caster)
	}
}

// WithVisible sets whether the object is drawn. Defaults to true.
func WithVisible(visible bool) FrameObjectBuilderOption {
	return func(o *frameObject) {
		o.visible.Store(visible)
	}
}
