package timing

import (
	"log/slog"
	"time"
)

// QueueBuilderOption is a functional option applied to a queue during construction via NewQueue.
type QueueBuilderOption func(*queue)

// WithLogger sets the logger used for suppressed callback panics. Defaults to slog.Default().
//
// Parameters:
//   - logger: the logger to use
//
// Returns:
//   - QueueBuilderOption: a function that applies the logger option to a queue
func WithLogger(logger *slog.Logger) QueueBuilderOption {
	return func(q *queue) {
		if logger != nil {
			q.logger = logger
		}
	}
}

// WithDeltaTime sets the source of per-frame elapsed time consumed by Delay.
//
// Parameters:
//   - delta: returns the duration of the last frame
//
// Returns:
//   - QueueBuilderOption: a function that applies the delta time option to a queue
func WithDeltaTime(delta func() time.Duration) QueueBuilderOption {
	return func(q *queue) {
		if delta != nil {
			q.delta = delta
		}
	}
}
