// Package replay implements the feed provider that turns a recorded
// session into a live-like stream.
//
// The recording is newline-delimited JSON (see the wire package). Lines
// are stably sorted by capture timestamp at load time, because upstream
// recordings are not guaranteed to be monotonic, and then dispatched
// against a virtual clock: elapsed = (wallNow - playStart) * speed.
// Playback is pausable, seekable, speed-scalable, and optionally looped.
package replay

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gateclock/scoreboard/internal/adapters/feed/wire"
	"github.com/gateclock/scoreboard/internal/domain/model"
	"github.com/gateclock/scoreboard/internal/provider"
	"github.com/gateclock/scoreboard/internal/provider/dispatch"
	"github.com/gateclock/scoreboard/pkg/clock"
	"github.com/gateclock/scoreboard/pkg/logger"
	"github.com/gateclock/scoreboard/pkg/metrics"
)

// State is the playback state of the scheduler.
type State string

// Playback states. Finished is terminal unless looping is enabled.
const (
	StateIdle     State = "idle"
	StatePlaying  State = "playing"
	StatePaused   State = "paused"
	StateFinished State = "finished"
)

// Default playback configuration.
const (
	DefaultSpeed = 1.0

	maxRecordingLineBytes = 1 << 20
)

// Provider replays a recorded session through the provider contract.
type Provider struct {
	*dispatch.Hub

	path     string
	source   io.Reader
	clk      clock.Clock
	log      logger.Logger
	loop     bool
	autoPlay bool
	pauseN   int
	strict   bool

	mu         sync.Mutex
	speed      float64
	msgs       []model.Envelope
	base       int64
	duration   int64
	loaded     bool
	status     provider.Status
	state      State
	idx        int
	position   int64 // virtual ms since base, frozen while not playing
	playStart  time.Time
	timer      clock.Timer
	dispatched int
}

// Compile-time contract check.
var _ provider.Provider = (*Provider)(nil)

// New creates a replay provider for a recording file. A WithReader option
// overrides the path, which tests use to feed recordings from memory.
func New(path string, opts ...Option) *Provider {
	p := &Provider{
		path:     path,
		clk:      clock.NewWall(),
		log:      logger.Named("replay"),
		speed:    DefaultSpeed,
		autoPlay: true,
		status:   provider.StatusDisconnected,
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(p)
	}

	hubOpts := []dispatch.Option{dispatch.WithLogger(p.log)}
	if p.strict {
		hubOpts = append(hubOpts, dispatch.WithStrict())
	}
	p.Hub = dispatch.NewHub(hubOpts...)
	return p
}

// Status returns the connection lifecycle status.
func (p *Provider) Status() provider.Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Connected reports whether the provider is connected.
func (p *Provider) Connected() bool { return p.Status() == provider.StatusConnected }

// State returns the playback state.
func (p *Provider) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Duration returns the virtual-time span of the loaded recording in
// milliseconds.
func (p *Provider) Duration() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.duration
}

// Position returns the current virtual position in milliseconds.
func (p *Provider) Position() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.positionLocked()
}

// Connect loads the recording on first use and, unless auto-play is
// disabled, starts playback. Idempotent while connected.
func (p *Provider) Connect(ctx context.Context) error {
	p.mu.Lock()
	if p.status == provider.StatusConnected || p.status == provider.StatusConnecting {
		p.mu.Unlock()
		return nil
	}
	p.status = provider.StatusConnecting
	p.mu.Unlock()
	p.PublishStatus(provider.StatusConnecting)

	if err := p.ensureLoaded(ctx); err != nil {
		p.mu.Lock()
		p.status = provider.StatusDisconnected
		p.mu.Unlock()
		p.PublishStatus(provider.StatusDisconnected)
		perr := provider.NewConnectionError("load recording", err)
		p.PublishError(perr)
		return perr
	}

	p.mu.Lock()
	p.status = provider.StatusConnected
	p.mu.Unlock()
	p.PublishStatus(provider.StatusConnected)

	if p.autoPlay {
		return p.Play()
	}
	return nil
}

// Disconnect cancels any pending dispatch; no further message is
// delivered even if its virtual time passes while disconnected. Playback
// position is preserved so a later Connect+Play resumes.
func (p *Provider) Disconnect() {
	p.mu.Lock()
	if p.state == StatePlaying {
		p.position = p.positionLocked()
		p.state = StatePaused
	}
	p.cancelLocked()
	changed := p.status != provider.StatusDisconnected
	p.status = provider.StatusDisconnected
	p.mu.Unlock()

	if changed {
		p.PublishStatus(provider.StatusDisconnected)
	}
}

// Play starts or resumes virtual-clock advancement from the current
// position. From finished it restarts only when looping is enabled.
func (p *Provider) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.status != provider.StatusConnected {
		return provider.ErrNotConnected
	}
	switch p.state {
	case StatePlaying:
		return nil
	case StateFinished:
		if !p.loop {
			return provider.ErrFinished
		}
		p.idx = 0
		p.position = 0
	}

	p.state = StatePlaying
	p.playStart = p.clk.Now()
	p.scheduleLocked()
	return nil
}

// Pause freezes the virtual clock without losing position.
func (p *Provider) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StatePlaying {
		return nil
	}
	p.position = p.positionLocked()
	p.state = StatePaused
	p.cancelLocked()
	return nil
}

// Seek repositions the virtual clock. Messages with timestamps at or
// before the target are treated as already delivered; playback resumes
// from the first later message. Seeking backward rewinds.
func (p *Provider) Seek(positionMillis int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.loaded {
		return provider.ErrNotConnected
	}

	if positionMillis < 0 {
		positionMillis = 0
	}
	if positionMillis > p.duration {
		positionMillis = p.duration
	}

	p.position = positionMillis
	p.idx = sort.Search(len(p.msgs), func(i int) bool {
		return p.msgs[i].TimestampMillis-p.base > positionMillis
	})
	metrics.UpdateReplayPosition(positionMillis)

	switch p.state {
	case StatePlaying:
		p.playStart = p.clk.Now()
		p.scheduleLocked()
	case StateFinished:
		// A rewind out of the terminal state leaves the scheduler paused.
		p.state = StatePaused
	}
	return nil
}

// SetSpeed changes the playback speed multiplier, taking effect
// immediately: the pending timer is recalculated without touching
// already-delivered history.
func (p *Provider) SetSpeed(multiplier float64) error {
	if multiplier <= 0 {
		return errors.New("speed multiplier must be positive")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StatePlaying {
		p.position = p.positionLocked()
		p.playStart = p.clk.Now()
	}
	p.speed = multiplier
	if p.state == StatePlaying {
		p.scheduleLocked()
	}
	return nil
}

// ensureLoaded parses and sorts the recording once. Parse failures are
// reported per line and do not abort the load.
func (p *Provider) ensureLoaded(ctx context.Context) error {
	p.mu.Lock()
	if p.loaded {
		p.mu.Unlock()
		return nil
	}
	source := p.source
	p.mu.Unlock()

	if source == nil {
		f, err := os.Open(p.path)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		source = f
	}

	var msgs []model.Envelope
	scanner := bufio.NewScanner(source)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRecordingLineBytes)
	seq := 0
	parsed := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		seq++
		env, skip, err := wire.ParseRecordingLine([]byte(line), seq)
		if err != nil {
			p.publishFeedError(err)
			continue
		}
		if skip {
			continue
		}
		msgs = append(msgs, env)
		parsed++
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	// Equal timestamps keep file order.
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].TimestampMillis < msgs[j].TimestampMillis
	})

	p.mu.Lock()
	p.msgs = msgs
	if len(msgs) > 0 {
		p.base = msgs[0].TimestampMillis
		p.duration = msgs[len(msgs)-1].TimestampMillis - p.base
	}
	p.loaded = true
	p.mu.Unlock()

	p.log.Info(ctx, "recording loaded",
		logger.Int("messages", parsed),
		logger.Int("lines", seq),
	)
	return nil
}

// positionLocked computes the current virtual position. Caller holds the
// lock.
func (p *Provider) positionLocked() int64 {
	if p.state != StatePlaying {
		return p.position
	}
	elapsed := p.clk.Now().Sub(p.playStart)
	return p.position + int64(float64(elapsed.Milliseconds())*p.speed)
}

// scheduleLocked arms the timer for the next undelivered message. Caller
// holds the lock and has set state to playing.
func (p *Provider) scheduleLocked() {
	p.cancelLocked()

	if p.idx >= len(p.msgs) {
		p.finishLocked()
		return
	}

	rel := p.msgs[p.idx].TimestampMillis - p.base
	pos := p.positionLocked()
	delayMs := float64(rel-pos) / p.speed
	if delayMs < 0 {
		delayMs = 0
	}
	p.timer = p.clk.AfterFunc(time.Duration(delayMs*float64(time.Millisecond)), p.fire)
}

// finishLocked handles running off the end of the recording. Caller
// holds the lock.
func (p *Provider) finishLocked() {
	if p.loop && len(p.msgs) > 0 {
		metrics.RecordReplayLoop()
		p.idx = 0
		p.position = 0
		p.playStart = p.clk.Now()
		p.scheduleLocked()
		return
	}
	p.state = StateFinished
	p.position = p.duration
	metrics.UpdateReplayPosition(p.duration)
}

// fire dispatches every message whose virtual time has arrived, one at a
// time so a callback may pause, seek, or disconnect mid-batch.
func (p *Provider) fire() {
	for {
		p.mu.Lock()
		if p.state != StatePlaying || p.status != provider.StatusConnected {
			p.mu.Unlock()
			return
		}
		if p.idx >= len(p.msgs) {
			p.finishLocked()
			p.mu.Unlock()
			return
		}

		env := p.msgs[p.idx]
		rel := env.TimestampMillis - p.base
		if rel > p.positionLocked() {
			p.scheduleLocked()
			p.mu.Unlock()
			return
		}

		p.idx++
		p.dispatched++
		metrics.UpdateReplayPosition(rel)

		// Development aid: auto-pause after exactly N dispatches.
		pausing := p.pauseN > 0 && p.dispatched == p.pauseN
		if pausing {
			p.position = rel
			p.state = StatePaused
			p.cancelLocked()
		}
		p.mu.Unlock()

		metrics.RecordReplayDispatch()
		p.PublishEnvelope(env)

		if pausing {
			return
		}
	}
}

// cancelLocked stops a pending timer. Caller holds the lock.
func (p *Provider) cancelLocked() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

// publishFeedError forwards a parse failure as a typed provider error.
func (p *Provider) publishFeedError(err error) {
	var perr *provider.Error
	if !errors.As(err, &perr) {
		perr = provider.NewParseError("recording line", err)
	}
	p.PublishError(perr)
}
