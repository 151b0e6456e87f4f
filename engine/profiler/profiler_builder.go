package profiler

import (
	"log/slog"
	"time"
)

// ProfilerBuilderOption is a function that configures a Profiler during construction.
type ProfilerBuilderOption func(*Profiler)

// WithLogger sets the logger reports are written to.
func WithLogger(logger *slog.Logger) ProfilerBuilderOption {
	return func(p *Profiler) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithInterval sets how often a report is produced.
//
// Parameters:
//   - interval: the report interval; non-positive values keep the default
//
// Returns:
//   - ProfilerBuilderOption: a function that sets the report interval
func WithInterval(interval time.Duration) ProfilerBuilderOption {
	return func(p *Profiler) {
		if interval > 0 {
			p.updateInterval = interval
		}
	}
}

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) ProfilerBuilderOption {
	return func(p *Profiler) {
		if now != nil {
			p.now = now
		}
	}
}

// WithReport registers fn to receive every report after it is logged.
func WithReport(fn func(Stats)) ProfilerBuilderOption {
	return func(p *Profiler) {
		p.onReport = fn
	}
}
