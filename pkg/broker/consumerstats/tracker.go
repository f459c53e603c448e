// Package consumerstats maintains the per-consumer dequeue-rate view the
// burst_dequeue detector reads (spec.md §3 "Consumer stats", §5 "may be
// served from a cache with bounded staleness"). A Redis-backed tracker is
// used when a "consumerstats" connection is registered; otherwise the
// engine falls back to an in-process tracker, trading cross-instance
// accuracy for zero extra infrastructure.
package consumerstats

import (
	"context"
	"sync"
	"time"

	"github.com/eser/relayq/pkg/broker/model"
)

// Tracker records a dequeue for consumerID and reports how many dequeues
// that consumer has made within the trailing window (inclusive of the one
// just recorded), the input the burst_dequeue detector reads off
// anomaly.Context.RecentDequeueCount.
type Tracker interface {
	RecordDequeue(ctx context.Context, consumerID string, window time.Duration) (int, error)
	Stats(ctx context.Context, consumerID string) (model.ConsumerStats, bool)
}

// InProcess is a mutex-guarded sliding-window tracker, the fallback used
// when no cache connection is configured.
type InProcess struct {
	mu    sync.Mutex
	byID  map[string][]time.Time
	stats map[string]model.ConsumerStats
	now   func() time.Time
}

// NewInProcess constructs an InProcess tracker.
func NewInProcess() *InProcess {
	return &InProcess{
		mu:    sync.Mutex{},
		byID:  make(map[string][]time.Time),
		stats: make(map[string]model.ConsumerStats),
		now:   time.Now,
	}
}

func (t *InProcess) RecordDequeue(_ context.Context, consumerID string, window time.Duration) (int, error) {
	if consumerID == "" {
		return 0, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now().UTC()
	cutoff := now.Add(-window)

	times := t.byID[consumerID]

	kept := times[:0]

	for _, ts := range times {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	kept = append(kept, now)
	t.byID[consumerID] = kept

	stats := t.stats[consumerID]
	stats.ConsumerID = consumerID
	stats.LastDequeueTS = now
	stats.DequeueCount++
	t.stats[consumerID] = stats

	return len(kept), nil
}

func (t *InProcess) Stats(_ context.Context, consumerID string) (model.ConsumerStats, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	stats, ok := t.stats[consumerID]

	return stats, ok
}
