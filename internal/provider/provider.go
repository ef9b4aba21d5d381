// Package provider defines the contract every feed source implements:
// connection lifecycle, status reporting, and per-kind subscriptions.
// The line-feed, XML-feed, and replay adapters each satisfy Provider so
// consumers never depend on transport identity.
package provider

import (
	"context"

	"github.com/gateclock/scoreboard/internal/domain/model"
)

// Status describes the connection lifecycle of a provider.
type Status string

// Provider statuses.
const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusReconnecting Status = "reconnecting"
)

// Unsubscribe removes exactly the registration that produced it. Calling
// it more than once is a no-op.
type Unsubscribe func()

// Provider is the common contract over all feed sources.
//
// Connect is idempotent while connected or connecting. Disconnect is
// idempotent, cancels all pending work, and suppresses automatic
// reconnection for the session; it is safe to call from within a callback
// the provider itself triggered. Subscribing after events have been
// emitted does not replay past events.
type Provider interface {
	Connect(ctx context.Context) error
	Disconnect()
	Status() Status
	Connected() bool

	// OnEnvelope delivers every normalized event with its ordering
	// metadata. The correlator consumes this stream.
	OnEnvelope(fn func(model.Envelope)) Unsubscribe

	OnResults(fn func(model.ResultsSnapshot)) Unsubscribe
	OnOnCourse(fn func(model.OnCourseUpdate)) Unsubscribe
	OnVisibility(fn func(model.Visibility)) Unsubscribe
	OnEventInfo(fn func(model.EventInfo)) Unsubscribe
	OnConfig(fn func(model.RaceConfig)) Unsubscribe
	OnConnectionChange(fn func(Status)) Unsubscribe
	OnError(fn func(*Error)) Unsubscribe
}
