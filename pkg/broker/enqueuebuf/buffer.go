// Package enqueuebuf implements the enqueue buffer (C5): an optional,
// mutex-guarded coalescing layer in front of the queue engine's enqueue
// path, grounded on the single-writer discipline of the WAL-mode SQLite
// queue example (one lock serializes every mutation) generalized to a
// per-queue batch boundary.
package enqueuebuf

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/eser/relayq/pkg/broker/brokererrors"
)

// Request is one buffered enqueue call, carrying everything
// engine.Engine.EnqueueBatch needs per item.
type Request struct {
	Type              *string
	Priority          int
	Payload           []byte
	ContentType       *string
	CustomMaxAttempts *int
	CustomAckTimeout  *time.Duration
}

// FlushFunc performs the actual bulk insert + activity record for one
// queue's accumulated batch; wired to engine.Engine.EnqueueBatch.
type FlushFunc func(ctx context.Context, queue string, reqs []Request) ([]string, error)

// Config controls whether buffering is active and its flush triggers.
type Config struct {
	Enabled   bool
	MaxSize   int
	MaxWaitMs int64
}

type enqueueRequest struct {
	req        Request
	enqueuedAt time.Time
	result     chan enqueueResult
}

type enqueueResult struct {
	id  string
	err error
}

type queueState struct {
	pending []*enqueueRequest
	timer   *time.Timer
}

// Buffer is C5. Zero value is not usable; construct with New.
type Buffer struct {
	mu     sync.Mutex
	cfg    Config
	flush  FlushFunc
	queues map[string]*queueState
	closed bool
}

// New constructs a Buffer. When cfg.Enabled is false, Enqueue always
// bypasses buffering and writes directly (spec.md §4.2 contract (a)/(b)).
func New(cfg Config, flush FlushFunc) *Buffer {
	return &Buffer{ //nolint:exhaustruct
		cfg:    cfg,
		flush:  flush,
		queues: make(map[string]*queueState),
	}
}

// Enqueue accepts one message into the buffer (or writes it directly if
// disabled) and returns its assigned id once the batch containing it has
// been durably flushed. A batch that reaches MaxSize is flushed at once;
// if a flush fails, every caller in that batch gets ErrBusy.
func (b *Buffer) Enqueue(ctx context.Context, queue string, req Request) (string, error) {
	if !b.cfg.Enabled {
		ids, err := b.flush(ctx, queue, []Request{req})
		if err != nil {
			return "", err
		}

		return ids[0], nil
	}

	entry := &enqueueRequest{
		req:        req,
		enqueuedAt: time.Now(),
		result:     make(chan enqueueResult, 1),
	}

	b.mu.Lock()

	if b.closed {
		b.mu.Unlock()

		return "", brokererrors.ErrClosed
	}

	qs, ok := b.queues[queue]
	if !ok {
		qs = &queueState{} //nolint:exhaustruct
		b.queues[queue] = qs
	}

	qs.pending = append(qs.pending, entry)

	flushNow := len(qs.pending) >= b.cfg.MaxSize

	if !flushNow && qs.timer == nil {
		qs.timer = time.AfterFunc(time.Duration(b.cfg.MaxWaitMs)*time.Millisecond, func() {
			b.flushQueue(context.Background(), queue)
		})
	}

	b.mu.Unlock()

	if flushNow {
		b.flushQueue(ctx, queue)
	}

	select {
	case res := <-entry.result:
		return res.id, res.err
	case <-ctx.Done():
		return "", ctx.Err() //nolint:wrapcheck
	}
}

// Flush forces an immediate flush of queue's pending batch, for explicit
// caller-triggered flushes (spec.md §4.2 "or the caller issues an
// explicit flush").
func (b *Buffer) Flush(ctx context.Context, queue string) {
	b.flushQueue(ctx, queue)
}

// flushQueue drains the queue's pending slice under the lock, then
// performs the actual I/O (and result dispatch) outside the lock so
// concurrent Enqueue calls for other queues are never blocked by one
// queue's flush.
func (b *Buffer) flushQueue(ctx context.Context, queue string) {
	b.mu.Lock()

	qs, ok := b.queues[queue]
	if !ok || len(qs.pending) == 0 {
		b.mu.Unlock()

		return
	}

	if qs.timer != nil {
		qs.timer.Stop()
		qs.timer = nil
	}

	batch := qs.pending
	qs.pending = nil

	b.mu.Unlock()

	reqs := make([]Request, len(batch))
	for i, e := range batch {
		reqs[i] = e.req
	}

	ids, err := b.flush(ctx, queue, reqs)
	if err != nil {
		// Partial success is never reported: every pending caller in this
		// batch observes the same failure (spec.md §4.2).
		wrapped := fmt.Errorf("%w: %w", brokererrors.ErrBusy, err)

		for _, e := range batch {
			e.result <- enqueueResult{id: "", err: wrapped} //nolint:exhaustruct
		}

		return
	}

	for i, e := range batch {
		e.result <- enqueueResult{id: ids[i], err: nil}
	}
}

// Close flushes every queue's remaining pending batch and then refuses
// further Enqueue calls with ErrClosed, matching the engine's own
// shutdown semantics (in-flight work finishes, new work is rejected).
func (b *Buffer) Close(ctx context.Context) {
	b.mu.Lock()
	queueNames := make([]string, 0, len(b.queues))

	for name := range b.queues {
		queueNames = append(queueNames, name)
	}

	b.mu.Unlock()

	for _, name := range queueNames {
		b.flushQueue(ctx, name)
	}

	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
}
