package common

import (
	"fmt"
	"log/slog"
	"runtime/debug"
)

// Coalesce returns the first non-zero value from the provided values, or the zero value if all are zero.
//
// Parameters:
//   - values: a variadic list of values to check for non-zero status
//
// Returns:
//   - T: the first non-zero value from the input, or the zero value if all are zero
func Coalesce[T comparable](values ...T) T {
	var zero T
	for _, v := range values {
		if v != zero {
			return v
		}
	}
	return zero
}

// Guard runs fn and turns a panic into an Error log record carrying the phase and the panic value.
//
// Parameters:
//   - logger: where the suppressed panic is logged
//   - phase: the frame phase or call site, logged as the "phase" attribute
//   - fn: the callback to run
//
// Returns:
//   - bool: false if fn panicked
func Guard(logger *slog.Logger, phase string, fn func()) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			ok = false
			logger.Error("suppressed panic in callback",
				"phase", phase,
				"panic", fmt.Sprint(rec),
				"stack", string(debug.Stack()),
			)
		}
	}()
	fn()
	return true
}
