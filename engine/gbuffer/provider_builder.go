package gbuffer

import "log/slog"

// ProviderBuilderOption is a functional option applied to a provider during construction via NewProvider.
type ProviderBuilderOption func(*provider)

// WithLogger sets the provider's logger. Defaults to slog.Default().
//
// Parameters:
//   - logger: the logger to use
//
// Returns:
//   - ProviderBuilderOption: a function that applies the logger option to a provider
func WithLogger(logger *slog.Logger) ProviderBuilderOption {
	return func(p *provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}
