package scoreboard

import (
	"sync"

	"github.com/gateclock/scoreboard/internal/domain/model"
	"github.com/gateclock/scoreboard/internal/provider"
	"github.com/gateclock/scoreboard/pkg/logger"
)

// ChangeFunc receives each new snapshot after a fold.
type ChangeFunc func(State)

// Correlator serializes Reduce over a single State and exposes
// thread-safe snapshot access. All race-derived mutation goes through
// Apply; OnStatus handles the connection lifecycle.
type Correlator struct {
	mu       sync.Mutex
	cfg      Config
	state    State
	log      logger.Logger
	onChange ChangeFunc
}

// CorrelatorOption applies a configuration option to the Correlator.
type CorrelatorOption func(*Correlator)

// WithConfig overrides the correlation windows.
func WithConfig(cfg Config) CorrelatorOption {
	return func(c *Correlator) {
		c.cfg = cfg.withDefaults()
	}
}

// WithOnChange registers a callback invoked with each new snapshot.
// Called outside the correlator lock; the snapshot is a value copy.
func WithOnChange(fn ChangeFunc) CorrelatorOption {
	return func(c *Correlator) {
		c.onChange = fn
	}
}

// WithCorrelatorLogger sets a custom logger.
func WithCorrelatorLogger(l logger.Logger) CorrelatorOption {
	return func(c *Correlator) {
		if l != nil {
			c.log = l
		}
	}
}

// NewCorrelator creates a correlator with the initial state.
func NewCorrelator(opts ...CorrelatorOption) *Correlator {
	c := &Correlator{
		cfg:   DefaultConfig(),
		state: NewState(),
		log:   logger.Named("correlator"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Apply folds one envelope into the state.
func (c *Correlator) Apply(env model.Envelope) {
	c.mu.Lock()
	c.state = Reduce(c.cfg, c.state, env)
	next := c.state
	c.mu.Unlock()

	if c.onChange != nil {
		c.onChange(next)
	}
}

// OnStatus reacts to provider lifecycle changes. A reconnect in progress
// invalidates everything race-derived: the feed will resend snapshots,
// and stale on-course or highlight state must not survive into them.
func (c *Correlator) OnStatus(status provider.Status) {
	if status != provider.StatusReconnecting {
		return
	}

	c.mu.Lock()
	c.state = c.state.ResetRace()
	next := c.state
	c.mu.Unlock()

	if c.onChange != nil {
		c.onChange(next)
	}
}

// Snapshot returns the current state. The State value is safe to read
// concurrently as long as callers treat slices and pointers as
// immutable, which Reduce guarantees by never mutating prior snapshots.
func (c *Correlator) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Config returns the correlation windows in effect.
func (c *Correlator) Config() Config {
	return c.cfg
}
