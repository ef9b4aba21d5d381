// Package service wires the feed provider, the envelope queue, and the
// scoreboard correlator into one lifecycle, and implements the
// dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gateclock/scoreboard/internal/adapters/feed/linefeed"
	"github.com/gateclock/scoreboard/internal/adapters/feed/replay"
	"github.com/gateclock/scoreboard/internal/adapters/feed/xmlfeed"
	"github.com/gateclock/scoreboard/internal/adapters/queue"
	"github.com/gateclock/scoreboard/internal/config"
	"github.com/gateclock/scoreboard/internal/domain/model"
	"github.com/gateclock/scoreboard/internal/domain/scoreboard"
	"github.com/gateclock/scoreboard/internal/provider"
	"github.com/gateclock/scoreboard/pkg/logger"
)

const defaultErrorHistory = 10

// ErrorRecord is one retained provider error.
type ErrorRecord struct {
	Code    string    `json:"code"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// ErrNotReplay is returned by playback controls on live sources.
var ErrNotReplay = fmt.Errorf("playback control requires the replay source")

// Playback is the subset of the replay scheduler exposed for control.
type Playback interface {
	Play() error
	Pause() error
	Seek(positionMillis int64) error
	SetSpeed(multiplier float64) error
	Position() int64
	Duration() int64
}

// Service owns the feed pipeline: provider -> queue -> correlator.
type Service struct {
	mu sync.RWMutex

	cfg          *config.Config
	prov         provider.Provider
	envQueue     queue.Queue
	correlator   *scoreboard.Correlator
	queueSize    int
	errorLimit   int
	errorHistory []ErrorRecord

	started bool
	cancel  context.CancelFunc
	done    chan struct{}
	unsubs  []provider.Unsubscribe

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithConfig supplies the process configuration the service builds its
// provider from.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg != nil {
			s.cfg = cfg
		}
	}
}

// WithProvider injects a prebuilt provider, bypassing source selection.
// Used by tests.
func WithProvider(p provider.Provider) Option {
	return func(s *Service) {
		s.prov = p
	}
}

// WithQueueSize sets the envelope queue capacity.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithCorrelator injects a prebuilt correlator.
func WithCorrelator(c *scoreboard.Correlator) Option {
	return func(s *Service) {
		if c != nil {
			s.correlator = c
		}
	}
}

// WithErrorHistorySize caps the retained provider error history.
func WithErrorHistorySize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.errorLimit = n
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		queueSize:  4096,
		errorLimit: defaultErrorHistory,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds the pipeline and connects the provider.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}

	if s.correlator == nil {
		s.correlator = scoreboard.NewCorrelator(
			scoreboard.WithConfig(s.correlationConfig()),
		)
	}
	if s.prov == nil {
		p, err := s.buildProvider()
		if err != nil {
			return err
		}
		s.prov = p
	}
	s.envQueue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.unsubs = append(s.unsubs,
		s.prov.OnEnvelope(func(env model.Envelope) {
			if !s.envQueue.Enqueue(runCtx, env) {
				s.logger.Warn(runCtx, "envelope dropped, queue full",
					logger.String("kind", string(env.Kind)),
				)
			}
		}),
		s.prov.OnConnectionChange(func(status provider.Status) {
			s.logger.Info(runCtx, "provider status changed",
				logger.String("status", string(status)),
			)
			s.correlator.OnStatus(status)
		}),
		s.prov.OnError(func(perr *provider.Error) {
			s.recordError(perr)
		}),
	)

	go s.foldLoop(runCtx)

	if err := s.prov.Connect(ctx); err != nil {
		s.logger.Error(ctx, "initial connect failed", logger.Error(err))
		// Live transports keep retrying through backoff; only replay
		// treats a failed load as fatal.
		if s.cfg != nil && s.cfg.Source == config.SourceReplay {
			cancel()
			return err
		}
	}

	s.started = true
	s.logger.Info(ctx, "scoreboard service started",
		logger.Int("queueSize", s.queueSize),
	)
	return nil
}

// Stop disconnects the provider and drains the pipeline.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping scoreboard service...")

	for _, unsub := range s.unsubs {
		unsub()
	}
	s.unsubs = nil

	if s.prov != nil {
		s.prov.Disconnect()
	}
	if s.envQueue != nil {
		_ = s.envQueue.Close()
	}
	if s.cancel != nil {
		s.cancel()
	}
	<-s.done

	s.started = false
	s.logger.Info(ctx, "scoreboard service stopped")
}

// Snapshot returns the current scoreboard state.
func (s *Service) Snapshot() scoreboard.State {
	s.mu.RLock()
	c := s.correlator
	s.mu.RUnlock()
	if c == nil {
		return scoreboard.NewState()
	}
	return c.Snapshot()
}

// CorrelationConfig returns the correlation windows in effect.
func (s *Service) CorrelationConfig() scoreboard.Config {
	s.mu.RLock()
	c := s.correlator
	s.mu.RUnlock()
	if c == nil {
		return scoreboard.DefaultConfig()
	}
	return c.Config()
}

// ProviderStatus returns the current connection status.
func (s *Service) ProviderStatus() provider.Status {
	s.mu.RLock()
	p := s.prov
	s.mu.RUnlock()
	if p == nil {
		return provider.StatusDisconnected
	}
	return p.Status()
}

// Errors returns the retained provider error history, newest last.
func (s *Service) Errors() []ErrorRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ErrorRecord, len(s.errorHistory))
	copy(out, s.errorHistory)
	return out
}

// ClearErrors drops the retained error history.
func (s *Service) ClearErrors() {
	s.mu.Lock()
	s.errorHistory = nil
	s.mu.Unlock()
}

// Playback returns the replay scheduler when the active source is a
// recording, or an error on live transports.
func (s *Service) Playback() (Playback, error) {
	s.mu.RLock()
	p := s.prov
	s.mu.RUnlock()
	if rp, ok := p.(*replay.Provider); ok {
		return rp, nil
	}
	return nil, ErrNotReplay
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started": s.started,
	}
	if s.prov != nil {
		stats["providerStatus"] = string(s.prov.Status())
	}
	if s.envQueue != nil {
		stats["queueLength"] = s.envQueue.Len()
	}
	if s.correlator != nil {
		snap := s.correlator.Snapshot()
		stats["onCourseCount"] = len(snap.OnCourse)
		stats["resultRows"] = len(snap.Results.Rows)
		stats["lastEventMillis"] = snap.LastEventMillis
	}
	stats["errorCount"] = len(s.errorHistory)
	return stats
}

// foldLoop consumes queued envelopes and folds them into the state.
func (s *Service) foldLoop(ctx context.Context) {
	defer close(s.done)
	for env := range s.envQueue.Dequeue(ctx) {
		s.correlator.Apply(env)
	}
}

func (s *Service) recordError(perr *provider.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.errorHistory = append(s.errorHistory, ErrorRecord{
		Code:    string(perr.Code),
		Message: perr.Message,
		At:      time.Now(),
	})
	if excess := len(s.errorHistory) - s.errorLimit; excess > 0 {
		s.errorHistory = s.errorHistory[excess:]
	}
}

// buildProvider selects the transport from configuration. Caller holds
// the lock.
func (s *Service) buildProvider() (provider.Provider, error) {
	cfg := s.cfg
	if cfg == nil {
		return nil, fmt.Errorf("no provider and no config supplied")
	}

	switch cfg.Source {
	case config.SourceReplay:
		return replay.New(cfg.Recording,
			replay.WithSpeed(cfg.Speed),
			replay.WithLoop(cfg.Loop),
			replay.WithLogger(s.logger),
		), nil
	case config.SourceLine:
		return linefeed.New(cfg.LineAddr,
			linefeed.WithAutoReconnect(cfg.AutoReconnect),
			linefeed.WithInitialReconnectDelay(cfg.InitialReconnectDelay()),
			linefeed.WithMaxReconnectDelay(cfg.MaxReconnectDelay()),
			linefeed.WithLogger(s.logger),
		), nil
	case config.SourceXML:
		return xmlfeed.New(cfg.XMLURL,
			xmlfeed.WithAutoReconnect(cfg.AutoReconnect),
			xmlfeed.WithInitialReconnectDelay(cfg.InitialReconnectDelay()),
			xmlfeed.WithMaxReconnectDelay(cfg.MaxReconnectDelay()),
			xmlfeed.WithLogger(s.logger),
		), nil
	default:
		return nil, fmt.Errorf("unknown feed source %q", cfg.Source)
	}
}

// correlationConfig converts configured window overrides. Caller holds
// the lock.
func (s *Service) correlationConfig() scoreboard.Config {
	var c scoreboard.Config
	if s.cfg == nil {
		return c
	}
	c.FinishGrace = time.Duration(s.cfg.FinishGraceMS) * time.Millisecond
	c.DepartingFor = time.Duration(s.cfg.DepartingForMS) * time.Millisecond
	c.PendingWindow = time.Duration(s.cfg.PendingWindowMS) * time.Millisecond
	c.HighlightFor = time.Duration(s.cfg.HighlightForMS) * time.Millisecond
	return c
}
