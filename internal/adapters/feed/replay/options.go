// Package replay implements the feed provider that turns a recorded
// session into a live-like stream.
package replay

import (
	"io"

	"github.com/gateclock/scoreboard/pkg/clock"
	"github.com/gateclock/scoreboard/pkg/logger"
)

// Option applies a configuration option to the Provider.
type Option func(*Provider)

// WithSpeed sets the initial playback speed multiplier.
func WithSpeed(multiplier float64) Option {
	return func(p *Provider) {
		if multiplier > 0 {
			p.speed = multiplier
		}
	}
}

// WithLoop restarts playback from the first message after the last.
func WithLoop(enabled bool) Option {
	return func(p *Provider) {
		p.loop = enabled
	}
}

// WithAutoPlay controls whether Connect starts playback immediately.
// Enabled by default so the provider behaves like a live transport.
func WithAutoPlay(enabled bool) Option {
	return func(p *Provider) {
		p.autoPlay = enabled
	}
}

// WithPauseAfter auto-pauses playback after exactly n dispatched
// messages. Used for deterministic test fixtures.
func WithPauseAfter(n int) Option {
	return func(p *Provider) {
		if n > 0 {
			p.pauseN = n
		}
	}
}

// WithReader feeds the recording from r instead of the file path.
func WithReader(r io.Reader) Option {
	return func(p *Provider) {
		p.source = r
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
