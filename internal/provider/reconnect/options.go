// Package reconnect implements the exponential-backoff connection
// lifecycle shared by the network-backed feed providers.
package reconnect

import (
	"time"

	"github.com/gateclock/scoreboard/internal/provider"
	"github.com/gateclock/scoreboard/pkg/clock"
)

// Option applies a configuration option to the Controller.
type Option func(*Controller)

// WithInitialDelay sets the delay before the first reconnection attempt.
func WithInitialDelay(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.initial = d
		}
	}
}

// WithMaxDelay caps the backoff delay.
func WithMaxDelay(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.max = d
		}
	}
}

// WithAutoReconnect enables or disables automatic reconnection.
func WithAutoReconnect(enabled bool) Option {
	return func(c *Controller) {
		c.auto = enabled
	}
}

// WithClock substitutes the timer source, used by tests.
func WithClock(clk clock.Clock) Option {
	return func(c *Controller) {
		if clk != nil {
			c.clk = clk
		}
	}
}

// WithStatusFunc registers a callback invoked on every status transition.
func WithStatusFunc(fn func(provider.Status)) Option {
	return func(c *Controller) {
		c.onStatus = fn
	}
}
