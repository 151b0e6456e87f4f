package operation

import "log/slog"

// OperationBuilderOption is a functional option applied to an operation during construction via NewOperation.
type OperationBuilderOption func(*operation)

// WithSortOrder sets the registry sort key. Operations with equal keys keep their insertion order.
//
// Parameters:
//   - order: the sort key
//
// Returns:
//   - OperationBuilderOption: a function that applies the sort order option to an operation
func WithSortOrder(order int) OperationBuilderOption {
	return func(o *operation) {
		o.sortOrder = order
	}
}

// WithShadowCaster marks the operation as a shadow caster and sets the hook drawing it into each cascade.
//
// Parameters:
//   - fn: the shadow hook, invoked once per cascade
//
// Returns:
//   - OperationBuilderOption: a function that applies the shadow caster option to an operation
func WithShadowCaster(fn func(Operation, *ShadowContext)) OperationBuilderOption {
	return func(o *operation) {
		o.shadowCaster = fn != nil
		o.shadow = fn
	}
}

// WithFrozen creates the operation frozen.
func WithFrozen(frozen bool) OperationBuilderOption {
	return func(o *operation) {
		o.frozen.Store(frozen)
	}
}

// WithExecute sets the main render hook.
//
// Parameters:
//   - fn: invoked once per frame in sort order
//
// Returns:
//   - OperationBuilderOption: a function that applies the execute option to an operation
func WithExecute(fn func(Operation, *Context)) OperationBuilderOption {
	return func(o *operation) {
		o.execute = fn
	}
}

// WithFrameInit sets the hook run for every live operation at the end of ApplyAdd.
func WithFrameInit(fn func(Operation)) OperationBuilderOption {
	return func(o *operation) {
		o.frameInit = fn
	}
}

// WithFrameEnd sets the hook run for every remaining live operation at the end of ApplyRemove.
func WithFrameEnd(fn func(Operation)) OperationBuilderOption {
	return func(o *operation) {
		o.frameEnd = fn
	}
}

// WithEarlyUpdate sets the early update hook.
func WithEarlyUpdate(fn func(Operation)) OperationBuilderOption {
	return func(o *operation) {
		o.earlyUpdate = fn
	}
}

// WithUpdate sets the update hook.
func WithUpdate(fn func(Operation)) OperationBuilderOption {
	return func(o *operation) {
		o.update = fn
	}
}

// WithLateUpdate sets the late update hook.
func WithLateUpdate(fn func(Operation)) OperationBuilderOption {
	return func(o *operation) {
		o.lateUpdate = fn
	}
}

// WithRelease sets the hook that releases the operation's resources. It runs exactly once, after the
// operation turns Dead and before anything handed to Own is disposed.
//
// Parameters:
//   - fn: the release hook
//
// Returns:
//   - OperationBuilderOption: a function that applies the release option to an operation
func WithRelease(fn func(Operation)) OperationBuilderOption {
	return func(o *operation) {
		o.release = fn
	}
}

// WithOperationLogger sets the logger used when a hook panics. A Registry replaces it with its own logger
// on Add unless set explicitly.
func WithOperationLogger(logger *slog.Logger) OperationBuilderOption {
	return func(o *operation) {
		if logger != nil {
			o.logger = logger
			o.ownLogger = true
		}
	}
}
