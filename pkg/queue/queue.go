package queue

import (
	"context"
	"errors"

	"github.com/mailvec/mailvec/pkg/types"
)

// ErrFull is returned by TryPut when the queue is at capacity
var ErrFull = errors.New("queue is full")

// Queue is a bounded FIFO of batches. Producers block (with cancellation)
// when full, consumers block (with cancellation) when empty. A nil batch is
// the poison pill: each consumer observes exactly one and exits.
type Queue struct {
	ch       chan *types.Batch
	capacity int
}

// New creates a queue with the given capacity
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{
		ch:       make(chan *types.Batch, capacity),
		capacity: capacity,
	}
}

// Put enqueues a batch, blocking until space is available or ctx is done
func (q *Queue) Put(ctx context.Context, b *types.Batch) error {
	select {
	case q.ch <- b:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryPut enqueues a batch without blocking
func (q *Queue) TryPut(b *types.Batch) error {
	select {
	case q.ch <- b:
		return nil
	default:
		return ErrFull
	}
}

// Get dequeues the next batch, blocking until one is available or ctx is
// done. A nil batch with a nil error is a poison pill.
func (q *Queue) Get(ctx context.Context) (*types.Batch, error) {
	select {
	case b := <-q.ch:
		return b, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Poison enqueues one poison pill, blocking like Put
func (q *Queue) Poison(ctx context.Context) error {
	return q.Put(ctx, nil)
}

// Len returns the number of batches currently queued
func (q *Queue) Len() int {
	return len(q.ch)
}

// Cap returns the queue capacity
func (q *Queue) Cap() int {
	return q.capacity
}

// Remaining returns how many more batches fit right now
func (q *Queue) Remaining() int {
	return q.capacity - len(q.ch)
}
