// Package eventbus implements the event bus (C6): a single database
// LISTEN connection fanning out to bounded per-subscriber channels, plus
// the per-queue signal used by the engine's dequeue long-poll.
//
// Grounded on pkg/ajan/connfx.Registry's mutex+map bookkeeping pattern,
// generalized from tracking connections to tracking live subscribers.
package eventbus

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eser/relayq/pkg/broker/storage"
)

// Event is the decoded, broadcastable form of storage.NotifyPayload.
type Event struct {
	Queue     string
	Action    string
	MessageID string
	Timestamp time.Time
}

// Subscriber is a bounded, per-client view onto the bus, created per
// caller (e.g. one per SSE HTTP connection).
type Subscriber struct {
	id     uint64
	events chan Event
	lagged chan struct{}
}

// Events returns the channel of delivered events. A subscriber only ever
// sees events delivered after it subscribed; missed events during a
// LISTEN reconnect are never replayed (spec.md §4.6).
func (s *Subscriber) Events() <-chan Event {
	return s.events
}

// Lagged signals (non-blocking, best-effort) that at least one event was
// dropped because this subscriber's buffer was full.
func (s *Subscriber) Lagged() <-chan struct{} {
	return s.lagged
}

// Bus is C6.
type Bus struct {
	mu            sync.RWMutex
	bufferSize    int
	subscribers   map[uint64]*Subscriber
	nextID        uint64
	queueWaiters  map[string][]chan struct{}
	listener      *storage.Listener
}

// New constructs a Bus whose subscriber channels hold at most
// bufferSize undelivered events before the oldest is dropped.
func New(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 64
	}

	return &Bus{ //nolint:exhaustruct
		bufferSize:   bufferSize,
		subscribers:  make(map[uint64]*Subscriber),
		queueWaiters: make(map[string][]chan struct{}),
	}
}

// Start opens the gateway's dedicated LISTEN connection and begins
// dispatching every NOTIFY payload it receives.
func (b *Bus) Start(ctx context.Context, gateway *storage.Gateway, dsn string) error {
	listener, err := gateway.Listen(ctx, dsn, func(p storage.NotifyPayload) {
		b.Dispatch(Event{
			Queue:     p.Queue,
			Action:    p.Action,
			MessageID: p.MessageID,
			Timestamp: p.Timestamp,
		})
	})
	if err != nil {
		return fmt.Errorf("failed to start event bus listener: %w", err)
	}

	b.listener = listener

	return nil
}

// Stop closes the dedicated LISTEN connection.
func (b *Bus) Stop() error {
	if b.listener == nil {
		return nil
	}

	return b.listener.Close() //nolint:wrapcheck
}

// Subscribe registers a new subscriber and returns it; callers must call
// Unsubscribe when done (e.g. when the SSE connection closes).
func (b *Bus) Subscribe() *Subscriber {
	id := atomic.AddUint64(&b.nextID, 1)

	s := &Subscriber{
		id:     id,
		events: make(chan Event, b.bufferSize),
		lagged: make(chan struct{}, 1),
	}

	b.mu.Lock()
	b.subscribers[id] = s
	b.mu.Unlock()

	return s
}

// Unsubscribe removes a subscriber from the fan-out set.
func (b *Bus) Unsubscribe(s *Subscriber) {
	b.mu.Lock()
	delete(b.subscribers, s.id)
	b.mu.Unlock()
}

// Dispatch broadcasts ev to every live subscriber (dropping the oldest
// buffered event and signaling Lagged on overflow) and, for enqueue
// events, wakes any dequeue long-poll waiting on this queue.
func (b *Bus) Dispatch(ev Event) {
	b.mu.RLock()
	subs := make([]*Subscriber, 0, len(b.subscribers))

	for _, s := range b.subscribers {
		subs = append(subs, s)
	}

	b.mu.RUnlock()

	for _, s := range subs {
		deliver(s, ev)
	}

	if ev.Action == "enqueue" {
		b.wakeWaiters(ev.Queue)
	}
}

func deliver(s *Subscriber, ev Event) {
	select {
	case s.events <- ev:
		return
	default:
	}

	// Buffer full: drop the oldest queued event, then retry once.
	select {
	case <-s.events:
	default:
	}

	select {
	case s.events <- ev:
	default:
	}

	select {
	case s.lagged <- struct{}{}:
	default:
	}
}

func (b *Bus) wakeWaiters(queue string) {
	b.mu.Lock()
	waiters := b.queueWaiters[queue]
	delete(b.queueWaiters, queue)
	b.mu.Unlock()

	for _, ch := range waiters {
		close(ch)
	}
}

// WaitForEnqueue blocks until an enqueue event is dispatched for queue,
// ctx is cancelled, or timeout elapses, returning true only in the first
// case. Used by engine.Engine.Dequeue's non-blocking-vs-long-poll branch
// (spec.md §4.3); never holds a DB transaction while waiting (spec.md §5).
func (b *Bus) WaitForEnqueue(ctx context.Context, queue string, timeout time.Duration) bool {
	if timeout <= 0 {
		return false
	}

	ch := make(chan struct{})

	b.mu.Lock()
	b.queueWaiters[queue] = append(b.queueWaiters[queue], ch)
	b.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ch:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}
