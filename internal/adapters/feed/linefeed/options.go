// Package linefeed implements the feed provider for the line-oriented
// JSON transport.
package linefeed

import (
	"time"

	"github.com/gateclock/scoreboard/pkg/clock"
	"github.com/gateclock/scoreboard/pkg/logger"
)

// Option applies a configuration option to the Provider.
type Option func(*Provider)

// WithAutoReconnect enables or disables automatic reconnection.
func WithAutoReconnect(enabled bool) Option {
	return func(p *Provider) {
		p.autoReconnect = enabled
	}
}

// WithInitialReconnectDelay sets the first backoff delay.
func WithInitialReconnectDelay(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.initialDelay = d
		}
	}
}

// WithMaxReconnectDelay caps the backoff delay.
func WithMaxReconnectDelay(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.maxDelay = d
		}
	}
}

// WithDialTimeout bounds a single dial attempt.
func WithDialTimeout(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.dialTimeout = d
		}
	}
}

// WithClock substitutes the timer source, used by tests.
func WithClock(clk clock.Clock) Option {
	return func(p *Provider) {
		if clk != nil {
			p.clk = clk
		}
	}
}

// WithLogger sets a custom logger for the provider.
func WithLogger(l logger.Logger) Option {
	return func(p *Provider) {
		if l != nil {
			p.log = l
		}
	}
}

// WithStrictDispatch surfaces subscriber failures as provider errors.
func WithStrictDispatch() Option {
	return func(p *Provider) {
		p.strict = true
	}
}
