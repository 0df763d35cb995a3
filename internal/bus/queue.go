package bus

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"main/internal/model"
)

var (
	ErrQueueFull    = errors.New("fill queue full")
	ErrQueueClosed  = errors.New("fill queue closed")
	ErrQueueTimeout = errors.New("fill queue wait timed out")
)

// Queue is a bounded, ordered fill-event queue. Publishing never blocks
// the account feed; a full queue is reported to the caller instead.
type Queue struct {
	ch     chan model.FillEvent
	closed uint32
}

// NewQueue allocates a queue with the given capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{ch: make(chan model.FillEvent, capacity)}
}

// TryPublish enqueues an event without blocking.
func (q *Queue) TryPublish(e model.FillEvent) error {
	if atomic.LoadUint32(&q.closed) != 0 {
		return ErrQueueClosed
	}
	select {
	case q.ch <- e:
		return nil
	default:
		return ErrQueueFull
	}
}

// Next blocks until an event arrives, the wait elapses, or the context
// is done. A non-positive wait returns ErrQueueTimeout immediately
// unless an event is already buffered.
func (q *Queue) Next(ctx context.Context, wait time.Duration) (model.FillEvent, error) {
	if wait <= 0 {
		select {
		case e, ok := <-q.ch:
			if !ok {
				return model.FillEvent{}, ErrQueueClosed
			}
			return e, nil
		default:
			return model.FillEvent{}, ErrQueueTimeout
		}
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return model.FillEvent{}, ctx.Err()
	case <-timer.C:
		return model.FillEvent{}, ErrQueueTimeout
	case e, ok := <-q.ch:
		if !ok {
			return model.FillEvent{}, ErrQueueClosed
		}
		return e, nil
	}
}

// Drain discards any buffered events and returns how many were dropped.
func (q *Queue) Drain() int {
	n := 0
	for {
		select {
		case _, ok := <-q.ch:
			if !ok {
				return n
			}
			n++
		default:
			return n
		}
	}
}

// Close stops the queue from accepting new events.
func (q *Queue) Close() {
	if atomic.CompareAndSwapUint32(&q.closed, 0, 1) {
		close(q.ch)
	}
}
