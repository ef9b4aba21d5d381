// Package queue decouples feed dispatch from state folding.
//
// Provider callbacks must stay fast; the fold loop may momentarily lag
// behind a replay running at high speed. A bounded in-memory buffer in
// between absorbs the burst and makes overload explicit via drops.
package queue

import (
	"context"
	"sync"

	"github.com/gateclock/scoreboard/internal/domain/model"
	"github.com/gateclock/scoreboard/pkg/metrics"
)

const defaultCapacity = 4096

// Queue provides non-blocking enqueue and channel-based dequeue of feed
// envelopes.
type Queue interface {
	// Enqueue adds an envelope. Returns false when the queue is full or
	// closed; the envelope is dropped, never blocked on.
	Enqueue(ctx context.Context, env model.Envelope) bool

	// Dequeue returns a channel delivering envelopes in enqueue order.
	// The channel closes when the queue is closed and drained.
	Dequeue(ctx context.Context) <-chan model.Envelope

	// Len returns the current number of buffered envelopes.
	Len() int

	// Close stops accepting envelopes. Buffered envelopes remain
	// consumable.
	Close() error
}

// InMemoryQueue implements Queue on a buffered channel.
type InMemoryQueue struct {
	envelopes chan model.Envelope
	capacity  int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a bounded queue.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.envelopes = make(chan model.Envelope, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

// Enqueue adds an envelope to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, env model.Envelope) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueDrop()
		return false
	}

	select {
	case q.envelopes <- env:
		metrics.UpdateQueueSize(len(q.envelopes))
		return true
	case <-ctx.Done():
		metrics.RecordQueueDrop()
		return false
	default:
		metrics.RecordQueueDrop()
		return false
	}
}

// Dequeue returns a channel delivering envelopes in enqueue order.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan model.Envelope {
	out := make(chan model.Envelope)
	go func() {
		defer close(out)
		for env := range q.envelopes {
			select {
			case out <- env:
				metrics.UpdateQueueSize(len(q.envelopes))
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of buffered envelopes.
func (q *InMemoryQueue) Len() int {
	return len(q.envelopes)
}

// Close stops accepting envelopes. Idempotent.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.envelopes)
	q.closed = true
	return nil
}
