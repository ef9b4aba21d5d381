// Package clock abstracts wall time and timers so scheduling components
// (reconnect backoff, replay dispatch, expiry transitions) can be driven
// deterministically in tests.
package clock

import (
	"sort"
	"sync"
	"time"
)

// Clock provides current time and cancelable one-shot timers.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc arranges for fn to be called once after d and returns a
	// handle to cancel it.
	AfterFunc(d time.Duration, fn func()) Timer
}

// Timer is a handle to a scheduled callback. Stop is idempotent and safe
// to call after the callback has run.
type Timer interface {
	// Stop cancels the callback. It reports whether the call prevented it
	// from running.
	Stop() bool
}

// Wall is the real-time clock backed by the time package.
type Wall struct{}

// NewWall returns the real-time clock.
func NewWall() Wall { return Wall{} }

// Now returns time.Now().
func (Wall) Now() time.Time { return time.Now() }

// AfterFunc wraps time.AfterFunc.
func (Wall) AfterFunc(d time.Duration, fn func()) Timer {
	return wallTimer{t: time.AfterFunc(d, fn)}
}

type wallTimer struct {
	t *time.Timer
}

func (w wallTimer) Stop() bool { return w.t.Stop() }

// Manual is a test clock whose time only moves when Advance or Set is
// called. Scheduled callbacks run synchronously inside Advance, in
// deadline order, with the clock positioned at their deadline.
type Manual struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
}

// NewManual creates a manual clock positioned at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now returns the manual clock's current position.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// AfterFunc registers fn to run when the clock passes now+d.
func (m *Manual) AfterFunc(d time.Duration, fn func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := &manualTimer{
		clock:    m,
		deadline: m.now.Add(d),
		fn:       fn,
	}
	m.timers = append(m.timers, t)
	return t
}

// Advance moves the clock forward by d, running due callbacks before
// returning. Callbacks may schedule further timers; those are honored
// within the same Advance if they fall due before the target time.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()
	m.Set(target)
}

// Set jumps the clock to t and runs all callbacks with deadlines at or
// before t, earliest first. Times earlier than the current position are
// ignored.
func (m *Manual) Set(t time.Time) {
	for {
		m.mu.Lock()
		var next *manualTimer
		for _, tm := range m.timers {
			if tm.deadline.After(t) {
				continue
			}
			if next == nil || tm.deadline.Before(next.deadline) {
				next = tm
			}
		}
		if next == nil {
			if t.After(m.now) {
				m.now = t
			}
			m.mu.Unlock()
			return
		}
		m.remove(next)
		if next.deadline.After(m.now) {
			m.now = next.deadline
		}
		m.mu.Unlock()

		next.run()
	}
}

// PendingTimers reports how many timers are armed. Useful for asserting a
// component canceled its work on teardown.
func (m *Manual) PendingTimers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

// NextDeadline returns the earliest armed deadline, or the zero time when
// nothing is scheduled.
func (m *Manual) NextDeadline() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	deadlines := make([]time.Time, 0, len(m.timers))
	for _, tm := range m.timers {
		deadlines = append(deadlines, tm.deadline)
	}
	if len(deadlines) == 0 {
		return time.Time{}
	}
	sort.Slice(deadlines, func(i, j int) bool { return deadlines[i].Before(deadlines[j]) })
	return deadlines[0]
}

// remove drops t from the armed list. Caller holds the lock.
func (m *Manual) remove(t *manualTimer) {
	for i, tm := range m.timers {
		if tm == t {
			m.timers = append(m.timers[:i], m.timers[i+1:]...)
			return
		}
	}
}

type manualTimer struct {
	clock    *Manual
	deadline time.Time
	fn       func()
	mu       sync.Mutex
	done     bool
}

func (t *manualTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true

	c := t.clock
	c.mu.Lock()
	c.remove(t)
	c.mu.Unlock()
	return true
}

func (t *manualTimer) run() {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return
	}
	t.done = true
	fn := t.fn
	t.mu.Unlock()
	fn()
}
