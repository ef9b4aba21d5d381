package xmlfeed

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gateclock/scoreboard/internal/provider"
	"github.com/gateclock/scoreboard/internal/provider/dispatch"
	"github.com/gateclock/scoreboard/internal/provider/reconnect"
	"github.com/gateclock/scoreboard/pkg/clock"
	"github.com/gateclock/scoreboard/pkg/logger"
)

// Connection constants.
const (
	defaultDialTimeout = 10 * time.Second
)

// Provider is the WebSocket XML-feed implementation of the provider
// contract. Each WebSocket message is one XML document that may fan out
// into several envelopes.
type Provider struct {
	*dispatch.Hub

	url         string
	clk         clock.Clock
	log         logger.Logger
	dialTimeout time.Duration

	autoReconnect bool
	initialDelay  time.Duration
	maxDelay      time.Duration
	strict        bool

	ctrl *reconnect.Controller

	mu      sync.Mutex
	conn    *websocket.Conn
	seq     int
	closing bool
}

// Compile-time contract check.
var _ provider.Provider = (*Provider)(nil)

// New creates an XML-feed provider for a ws:// or wss:// URL.
func New(url string, opts ...Option) *Provider {
	p := &Provider{
		url:           url,
		clk:           clock.NewWall(),
		log:           logger.Named("xmlfeed"),
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

// dial opens the WebSocket and hands it to the read loop.
func (p *Provider) dial(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, p.dialTimeout)
	defer cancel()

	conn, resp, err := websocket.DefaultDialer.DialContext(dialCtx, p.url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		perr := provider.NewConnectionError("dial "+p.url, err)
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
	p.log.Info(ctx, "feed connected", logger.String("url", p.url))
	go p.readLoop(conn)
	return nil
}

// redial is the reconnect controller's attempt callback.
func (p *Provider) redial() {
	_ = p.dial(context.Background())
}

// readLoop parses documents until the transport fails or Disconnect
// closes it.
func (p *Provider) readLoop(conn *websocket.Conn) {
	var readErr error
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			readErr = err
			break
		}
		if len(raw) == 0 {
			continue
		}

		p.mu.Lock()
		seq := p.seq
		p.mu.Unlock()

		envs, err := ParseDocument(raw, p.clk.Now().UnixMilli(), p.url, seq)
		if err != nil {
			p.publishFeedError(err)
			continue
		}

		p.mu.Lock()
		p.seq += len(envs)
		p.mu.Unlock()

		for _, env := range envs {
			p.PublishEnvelope(env)
		}
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
	p.PublishError(provider.NewConnectionError("feed connection lost", readErr))
	p.ctrl.Lost()
}

// publishFeedError forwards a parse or validation failure as a typed
// provider error.
func (p *Provider) publishFeedError(err error) {
	var perr *provider.Error
	if !errors.As(err, &perr) {
		perr = provider.NewParseError("xml document", err)
	}
	p.PublishError(perr)
}
