package deferred

import (
	"github.com/Carmen-Shannon/hikari/engine/operation"
	"github.com/Carmen-Shannon/hikari/engine/scene"
)

// NewShadowCasterOperation creates the operation drawing every shadow-casting object of the host's store into
// each cascade. The cascade depth pipeline and pass bind group are already set on the pass; this operation
// binds each object's model group at index 1 and draws its mesh. Objects whose bounds miss the cascade
// frustum are skipped.
//
// Parameters:
//   - h: the render host
//   - opts: variadic list of DeferredBuilderOption functions
//
// Returns:
//   - operation.Operation: the operation, ready to be added to a Registry
func NewShadowCasterOperation(h Host, opts ...DeferredBuilderOption) operation.Operation {
	o := newOptions("shadow_casters", 0, opts)
	return operation.NewOperation("shadow_casters",
		operation.WithSortOrder(SortOrder(PassKindShadowMap, o.sortOffset)),
		operation.WithOperationLogger(o.logger),
		operation.WithShadowCaster(func(_ operation.Operation, ctx *operation.ShadowContext) {
			drawCasters(h.Store().ShadowCasters(), ctx)
		}),
	)
}

func drawCasters(objects []scene.FrameObject, ctx *operation.ShadowContext) int {
	drawn := 0
	for _, obj := range objects {
		group := obj.ShadowBindGroup()
		if group == nil || !ctx.Visible(obj.Bounds()) {
			continue
		}
		ctx.Pass.SetBindGroup(1, group)
		obj.Mesh().Draw(ctx.Pass)
		drawn++
	}
	return drawn
}
