// Package deferred provides the render operations of the deferred pipeline: the shadow casters, the
// geometry pass filling the G-buffer, the lighting pass resolving it to the surface, and a screen-space
// overlay drawn on top.
package deferred

import (
	"github.com/Carmen-Shannon/hikari/engine/camera"
	"github.com/Carmen-Shannon/hikari/engine/gbuffer"
	"github.com/Carmen-Shannon/hikari/engine/light"
	"github.com/Carmen-Shannon/hikari/engine/renderer"
	"github.com/Carmen-Shannon/hikari/engine/scene"
)

// PassKind is a band of sort orders. Operations of a lower band always execute first.
type PassKind int

const (
	PassKindShadowMap PassKind = iota
	PassKindDeferred
	PassKindForward
	PassKindOverlay
)

// bandWidth is the number of sort orders reserved per PassKind.
const bandWidth = 10000

// Offsets inside the deferred band.
const (
	OffsetGeometry = 0
	OffsetLighting = 2000
)

func (k PassKind) String() string {
	switch k {
	case PassKindShadowMap:
		return "ShadowMap"
	case PassKindDeferred:
		return "Deferred"
	case PassKindForward:
		return "Forward"
	case PassKindOverlay:
		return "Overlay"
	}
	return "Unknown"
}

// SortOrder maps a pass kind and an offset inside its band to a registry sort order.
//
// Parameters:
//   - kind: the pass band
//   - offset: the position inside the band, clamped to [0, bandWidth)
//
// Returns:
//   - int: the sort order to pass to operation.WithSortOrder
func SortOrder(kind PassKind, offset int) int {
	return int(kind)*bandWidth + min(max(offset, 0), bandWidth-1)
}

// Host is the screen state the deferred operations render against. The returned resources are borrowed;
// operations fetch them every frame instead of caching them across a resize.
type Host interface {
	Renderer() renderer.Renderer
	Store() scene.Store
	Camera() camera.Uniform
	GBuffer() gbuffer.Provider

	// DepthTexture returns the current depth target, recreated on resize with the same format.
	DepthTexture() *renderer.Texture

	// Cascades returns the shadow cascades. The light's CastsShadows flag decides whether they are drawn.
	Cascades() light.CascadeSet
}

// unsubscriber adapts an unsubscribe func to renderer.Disposer so an operation can own it.
type unsubscriber func()

func (u unsubscriber) Dispose() {
	u()
}
