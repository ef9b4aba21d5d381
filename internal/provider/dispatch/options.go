// Package dispatch implements the per-kind subscriber registry shared by
// all feed providers.
package dispatch

import "github.com/gateclock/scoreboard/pkg/logger"

// Option applies a configuration option to the Hub.
type Option func(*Hub)

// WithStrict makes subscriber failures surface as provider errors instead
// of being swallowed after logging. Adapters use this where upstream
// correctness matters more than resilience.
func WithStrict() Option {
	return func(h *Hub) {
		h.core.strict = true
	}
}

// WithLogger sets a custom logger for the hub.
func WithLogger(l logger.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.core.logger = l
		}
	}
}
