package scene

import (
	"log/slog"

	"github.com/Carmen-Shannon/hikari/engine/renderer"
	"github.com/Carmen-Shannon/hikari/engine/timing"
)

// StoreBuilderOption is a functional option applied to a store during construction via NewStore.
type StoreBuilderOption func(*store)

// WithLogger sets the logger used for suppressed callback panics. Defaults to slog.Default().
//
// Parameters:
//   - logger: the logger to use
//
// Returns:
//   - StoreBuilderOption: a function that applies the logger option to a store
func WithLogger(logger *slog.Logger) StoreBuilderOption {
	return func(s *store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithShadowLayout makes every object also create a bind group over layout for the shadow depth pipelines.
// The layout is borrowed and must outlive the store.
//
// Parameters:
//   - layout: a layout with one uniform buffer at binding 0 holding the model matrix
//
// Returns:
//   - StoreBuilderOption: a function that applies the shadow layout option to a store
func WithShadowLayout(layout *renderer.BindGroupLayout) StoreBuilderOption {
	return func(s *store) {
		s.shadowLayout = layout
	}
}

// WithQueues merges pending adds whenever created is drained and pending removals whenever destroyed is
// drained, instead of requiring explicit ApplyAdd and ApplyRemove calls.
//
// Parameters:
//   - created: the object-created queue
//   - destroyed: the object-destroyed queue
//
// Returns:
//   - StoreBuilderOption: a function that applies the queues option to a store
func WithQueues(created, destroyed timing.Queue) StoreBuilderOption {
	return func(s *store) {
		s.created = created
		s.destroyed = destroyed
	}
}
