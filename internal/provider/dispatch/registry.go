// Package dispatch implements the per-kind subscriber registry shared by
// all feed providers. Each event kind holds an ordered list of callbacks;
// a failing callback never prevents delivery to the rest.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gateclock/scoreboard/internal/domain/model"
	"github.com/gateclock/scoreboard/internal/provider"
	"github.com/gateclock/scoreboard/pkg/logger"
	"github.com/gateclock/scoreboard/pkg/metrics"
)

// Hub fans events out to per-kind subscriber lists. Providers embed a Hub
// to satisfy the subscription half of the provider contract.
type Hub struct {
	core *core

	envelope   *list[model.Envelope]
	results    *list[model.ResultsSnapshot]
	onCourse   *list[model.OnCourseUpdate]
	visibility *list[model.Visibility]
	eventInfo  *list[model.EventInfo]
	config     *list[model.RaceConfig]
	connection *list[provider.Status]
	errs       *list[*provider.Error]
}

// core holds settings shared by all lists of one hub.
type core struct {
	strict bool
	logger logger.Logger

	// reportsTo receives subscriber failures in strict mode. Set lazily to
	// the hub's own error list; nil while constructing.
	report func(*provider.Error)
}

// NewHub creates a registry with the given options applied.
func NewHub(opts ...Option) *Hub {
	c := &core{logger: logger.Named("dispatch")}
	h := &Hub{
		core:       c,
		envelope:   newList[model.Envelope](c, "envelope"),
		results:    newList[model.ResultsSnapshot](c, "results"),
		onCourse:   newList[model.OnCourseUpdate](c, "oncourse"),
		visibility: newList[model.Visibility](c, "visibility"),
		eventInfo:  newList[model.EventInfo](c, "eventinfo"),
		config:     newList[model.RaceConfig](c, "config"),
		connection: newList[provider.Status](c, "connection"),
		errs:       newList[*provider.Error](c, "error"),
	}
	for _, opt := range opts {
		opt(h)
	}
	// Failures in the error list itself are only logged, never re-reported.
	h.errs.terminal = true
	c.report = func(e *provider.Error) { h.errs.publish(e) }
	return h
}

// PublishEnvelope delivers env to envelope subscribers and then to the
// subscribers of its kind.
func (h *Hub) PublishEnvelope(env model.Envelope) {
	start := time.Now()
	defer func() {
		metrics.RecordDispatchLatency(float64(time.Since(start).Microseconds()) / 1000.0)
	}()
	metrics.RecordEnvelope(string(env.Kind))

	h.envelope.publish(env)

	switch env.Kind {
	case model.KindResults:
		if env.Results != nil {
			h.results.publish(*env.Results)
		}
	case model.KindCompetitor, model.KindOnCourseList:
		if env.OnCourse != nil {
			h.onCourse.publish(*env.OnCourse)
		}
	case model.KindVisibility:
		if env.Visibility != nil {
			h.visibility.publish(*env.Visibility)
		}
	case model.KindEventInfo:
		if env.EventInfo != nil {
			h.eventInfo.publish(*env.EventInfo)
		}
	case model.KindConfig:
		if env.Config != nil {
			h.config.publish(*env.Config)
		}
	}
}

// PublishStatus delivers a connection status change.
func (h *Hub) PublishStatus(s provider.Status) {
	h.connection.publish(s)
}

// PublishError delivers a provider error.
func (h *Hub) PublishError(e *provider.Error) {
	metrics.RecordProviderError(string(e.Code))
	h.errs.publish(e)
}

// OnEnvelope subscribes to every normalized event.
func (h *Hub) OnEnvelope(fn func(model.Envelope)) provider.Unsubscribe {
	return h.envelope.subscribe(fn)
}

// OnResults subscribes to results snapshots.
func (h *Hub) OnResults(fn func(model.ResultsSnapshot)) provider.Unsubscribe {
	return h.results.subscribe(fn)
}

// OnOnCourse subscribes to on-course snapshots and partial updates.
func (h *Hub) OnOnCourse(fn func(model.OnCourseUpdate)) provider.Unsubscribe {
	return h.onCourse.subscribe(fn)
}

// OnVisibility subscribes to visibility instructions.
func (h *Hub) OnVisibility(fn func(model.Visibility)) provider.Unsubscribe {
	return h.visibility.subscribe(fn)
}

// OnEventInfo subscribes to event info updates.
func (h *Hub) OnEventInfo(fn func(model.EventInfo)) provider.Unsubscribe {
	return h.eventInfo.subscribe(fn)
}

// OnConfig subscribes to race config announcements.
func (h *Hub) OnConfig(fn func(model.RaceConfig)) provider.Unsubscribe {
	return h.config.subscribe(fn)
}

// OnConnectionChange subscribes to provider status transitions.
func (h *Hub) OnConnectionChange(fn func(provider.Status)) provider.Unsubscribe {
	return h.connection.subscribe(fn)
}

// OnError subscribes to provider errors.
func (h *Hub) OnError(fn func(*provider.Error)) provider.Unsubscribe {
	return h.errs.subscribe(fn)
}

// SubscriberCount reports registrations across all kinds. Used by tests
// and the stats endpoint.
func (h *Hub) SubscriberCount() int {
	return h.envelope.len() + h.results.len() + h.onCourse.len() +
		h.visibility.len() + h.eventInfo.len() + h.config.len() +
		h.connection.len() + h.errs.len()
}

// list is an ordered set of subscribers for one kind.
type list[T any] struct {
	core  *core
	topic string

	// terminal lists never forward their own subscriber failures.
	terminal bool

	mu   sync.RWMutex
	subs []subscription[T]
}

type subscription[T any] struct {
	id uuid.UUID
	fn func(T)
}

func newList[T any](c *core, topic string) *list[T] {
	return &list[T]{core: c, topic: topic}
}

// subscribe appends fn and returns an idempotent unsubscribe closure.
// Identity is a token, not the function value, so the same function can be
// registered twice and removed independently.
func (l *list[T]) subscribe(fn func(T)) provider.Unsubscribe {
	id := uuid.New()

	l.mu.Lock()
	l.subs = append(l.subs, subscription[T]{id: id, fn: fn})
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			for i, s := range l.subs {
				if s.id == id {
					l.subs = append(l.subs[:i], l.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// publish invokes every subscriber in registration order. Panics are
// recovered per subscriber so the remainder of the list still runs.
func (l *list[T]) publish(v T) {
	l.mu.RLock()
	subs := make([]subscription[T], len(l.subs))
	copy(subs, l.subs)
	l.mu.RUnlock()

	for _, s := range subs {
		l.invoke(s, v)
	}
}

func (l *list[T]) invoke(s subscription[T], v T) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		metrics.RecordSubscriberPanic(l.topic)
		l.core.logger.Error(context.Background(), "subscriber panicked",
			logger.String("topic", l.topic),
			logger.Any("panic", r),
		)
		if l.core.strict && !l.terminal && l.core.report != nil {
			l.core.report(&provider.Error{
				Code:    provider.CodeSubscriber,
				Message: fmt.Sprintf("%s subscriber failed: %v", l.topic, r),
			})
		}
	}()
	s.fn(v)
}

func (l *list[T]) len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.subs)
}
