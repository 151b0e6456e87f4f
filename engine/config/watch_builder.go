package config

import "log/slog"

// WatchBuilderOption configures a Watcher during construction.
type WatchBuilderOption func(*watcher)

// WithLogger sets the logger used for reload and watch errors.
//
// Parameters:
//   - logger: the logger; nil keeps slog.Default()
//
// Returns:
//   - WatchBuilderOption: a function that applies the logger option
func WithLogger(logger *slog.Logger) WatchBuilderOption {
	return func(w *watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}
