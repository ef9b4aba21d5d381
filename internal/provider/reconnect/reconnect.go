// Package reconnect implements the exponential-backoff connection
// lifecycle shared by the network-backed feed providers.
//
// The controller owns the status state machine
// (disconnected -> connecting -> connected, with connected -> reconnecting
// -> connecting on transport loss) and schedules at most one reconnection
// attempt at a time. An operator Disconnect suppresses every future
// automatic attempt for the session.
package reconnect

import (
	"sync"
	"time"

	"github.com/gateclock/scoreboard/internal/provider"
	"github.com/gateclock/scoreboard/pkg/clock"
	"github.com/gateclock/scoreboard/pkg/metrics"
)

// Default backoff configuration.
const (
	DefaultInitialDelay = 1000 * time.Millisecond
	DefaultMaxDelay     = 30000 * time.Millisecond
)

// Controller drives the connection lifecycle for one provider instance.
// The attempt callback dials the transport; it must report the outcome
// back through Connected or Lost.
type Controller struct {
	mu sync.Mutex

	clk     clock.Clock
	initial time.Duration
	max     time.Duration
	auto    bool

	attempt  func()
	onStatus func(provider.Status)

	status     provider.Status
	nextDelay  time.Duration
	timer      clock.Timer
	suppressed bool
}

// New creates a controller that calls attempt whenever a scheduled
// reconnection fires. Defaults: auto-reconnect on, 1 s initial delay,
// 30 s cap, wall clock.
func New(attempt func(), opts ...Option) *Controller {
	c := &Controller{
		clk:     clock.NewWall(),
		initial: DefaultInitialDelay,
		max:     DefaultMaxDelay,
		auto:    true,
		attempt: attempt,
		status:  provider.StatusDisconnected,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.nextDelay = c.initial
	return c
}

// Status returns the current lifecycle status.
func (c *Controller) Status() provider.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Connecting marks the start of an operator-initiated connection attempt.
// It clears any suppression left by a previous Disconnect so the new
// session may auto-reconnect again.
func (c *Controller) Connecting() {
	c.mu.Lock()
	c.suppressed = false
	c.cancelLocked()
	c.mu.Unlock()
	c.setStatus(provider.StatusConnecting)
}

// Connected records a successful connection and resets the backoff delay
// to its initial value.
func (c *Controller) Connected() {
	c.mu.Lock()
	c.nextDelay = c.initial
	c.cancelLocked()
	c.mu.Unlock()
	c.setStatus(provider.StatusConnected)
}

// Lost records a transport loss or a failed connection attempt. When
// auto-reconnect applies, the next attempt is scheduled with the current
// backoff delay and the delay doubles (capped); otherwise the controller
// settles on disconnected.
func (c *Controller) Lost() {
	c.mu.Lock()
	if c.suppressed || !c.auto {
		c.cancelLocked()
		c.mu.Unlock()
		c.setStatus(provider.StatusDisconnected)
		return
	}

	delay := c.nextDelay
	c.nextDelay *= 2
	if c.nextDelay > c.max {
		c.nextDelay = c.max
	}

	// Only one pending attempt: a new schedule replaces the old one.
	c.cancelLocked()
	c.timer = c.clk.AfterFunc(delay, c.fire)
	c.mu.Unlock()

	metrics.RecordReconnectScheduled()
	c.setStatus(provider.StatusReconnecting)
}

// Disconnect is the operator-initiated teardown: it cancels any pending
// attempt and suppresses automatic reconnection until the next Connecting.
func (c *Controller) Disconnect() {
	c.mu.Lock()
	c.suppressed = true
	c.cancelLocked()
	c.mu.Unlock()
	c.setStatus(provider.StatusDisconnected)
}

// NextDelay reports the delay the next scheduled attempt would use.
func (c *Controller) NextDelay() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nextDelay
}

// fire runs when the backoff timer elapses.
func (c *Controller) fire() {
	c.mu.Lock()
	c.timer = nil
	if c.suppressed {
		c.mu.Unlock()
		return
	}
	attempt := c.attempt
	c.mu.Unlock()

	metrics.RecordReconnectAttempt()
	c.setStatus(provider.StatusConnecting)
	if attempt != nil {
		attempt()
	}
}

// cancelLocked stops a pending timer. Caller holds the lock.
func (c *Controller) cancelLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// setStatus updates the status and notifies outside the lock, so the
// callback may re-enter the controller.
func (c *Controller) setStatus(s provider.Status) {
	c.mu.Lock()
	if c.status == s {
		c.mu.Unlock()
		return
	}
	c.status = s
	notify := c.onStatus
	c.mu.Unlock()

	if notify != nil {
		notify(s)
	}
}
