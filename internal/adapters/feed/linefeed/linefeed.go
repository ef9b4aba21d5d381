// Package linefeed implements the feed provider for the line-oriented
// JSON transport: one protocol message per line over a TCP connection.
package linefeed

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/gateclock/scoreboard/internal/adapters/feed/wire"
	"github.com/gateclock/scoreboard/internal/provider"
	"github.com/gateclock/scoreboard/internal/provider/dispatch"
	"github.com/gateclock/scoreboard/internal/provider/reconnect"
	"github.com/gateclock/scoreboard/pkg/clock"
	"github.com/gateclock/scoreboard/pkg/logger"
)

// Connection constants.
const (
	defaultDialTimeout = 10 * time.Second
	maxLineBytes       = 1 << 20
)

// Provider is the TCP line-feed implementation of the provider contract.
type Provider struct {
	*dispatch.Hub

	addr        string
	clk         clock.Clock
	log         logger.Logger
	dialTimeout time.Duration

	autoReconnect bool
	initialDelay  time.Duration
	maxDelay      time.Duration
	strict        bool

	ctrl *reconnect.Controller

	mu      sync.Mutex
	conn    net.Conn
	seq     int
	closing bool
}

// Compile-time contract check.
var _ provider.Provider = (*Provider)(nil)

// New creates a line-feed provider for a host:port target.
func New(addr string, opts ...Option) *Provider {
	p := &Provider{
		addr:          addr,
		clk:           clock.NewWall(),
		log:           logger.Named("linefeed"),
		dialTimeout:   defaultDialTimeout,
		autoReconnect: true,
		initialDelay:  reconnect.DefaultInitialDelay,
		maxDelay:      reconnect.DefaultMaxDelay,
	}
	for _, opt := range opts {
		opt(p)
	}

	hubOpts := []dispatch.Option{dispatch.WithLogger(p.log)}
	if p.strict {
		hubOpts = append(hubOpts, dispatch.WithStrict())
	}
	p.Hub = dispatch.NewHub(hubOpts...)

	p.ctrl = reconnect.New(p.redial,
		reconnect.WithAutoReconnect(p.autoReconnect),
		reconnect.WithInitialDelay(p.initialDelay),
		reconnect.WithMaxDelay(p.maxDelay),
		reconnect.WithClock(p.clk),
		reconnect.WithStatusFunc(p.PublishStatus),
	)
	return p
}

// Status returns the connection lifecycle status.
func (p *Provider) Status() provider.Status { return p.ctrl.Status() }

// Connected reports whether the transport is currently up.
func (p *Provider) Connected() bool { return p.ctrl.Status() == provider.StatusConnected }

// Connect dials the feed. It is a no-op while already connected or
// connecting; calling it after a Disconnect re-arms auto-reconnection.
func (p *Provider) Connect(ctx context.Context) error {
	switch p.ctrl.Status() {
	case provider.StatusConnected, provider.StatusConnecting:
		return nil
	}

	p.mu.Lock()
	p.closing = false
	p.mu.Unlock()

	p.ctrl.Connecting()
	return p.dial(ctx)
}

// Disconnect tears the connection down and suppresses reconnection. Safe
// to call repeatedly and from within a subscriber callback.
func (p *Provider) Disconnect() {
	p.mu.Lock()
	p.closing = true
	conn := p.conn
	p.conn = nil
	p.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	p.ctrl.Disconnect()
}

// dial opens the transport and hands it to the read loop.
func (p *Provider) dial(ctx context.Context) error {
	d := net.Dialer{Timeout: p.dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", p.addr)
	if err != nil {
		perr := provider.NewConnectionError("dial "+p.addr, err)
		p.PublishError(perr)
		p.ctrl.Lost()
		return perr
	}

	p.mu.Lock()
	if p.closing {
		// Disconnect superseded this attempt.
		p.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	p.conn = conn
	p.mu.Unlock()

	p.ctrl.Connected()
	p.log.Info(ctx, "feed connected", logger.String("addr", p.addr))
	go p.readLoop(conn)
	return nil
}

// redial is the reconnect controller's attempt callback.
func (p *Provider) redial() {
	_ = p.dial(context.Background())
}

// readLoop parses lines until the transport fails or Disconnect closes it.
func (p *Provider) readLoop(conn net.Conn) {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		p.mu.Lock()
		p.seq++
		seq := p.seq
		p.mu.Unlock()

		env, err := wire.ParseMessage(line, p.clk.Now().UnixMilli(), p.addr, seq)
		if err != nil {
			p.publishFeedError(err)
			continue
		}
		p.PublishEnvelope(env)
	}

	p.mu.Lock()
	closing := p.closing
	if p.conn == conn {
		p.conn = nil
	}
	p.mu.Unlock()
	_ = conn.Close()

	if closing {
		return
	}
	p.PublishError(provider.NewConnectionError("feed connection lost", scanner.Err()))
	p.ctrl.Lost()
}

// publishFeedError forwards a parse failure as a typed provider error.
func (p *Provider) publishFeedError(err error) {
	var perr *provider.Error
	if !errors.As(err, &perr) {
		perr = provider.NewParseError("feed line", err)
	}
	p.PublishError(perr)
}
