package engine

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand/v2"
	"time"
)

// RunReaper runs the timeout reaper loop until ctx is cancelled, the
// grounding for the scheduled task spec.md §4.3's "timeout reaper"
// describes. Each tick claims every processing row whose lock has
// expired (FOR UPDATE SKIP LOCKED, so concurrent reaper instances never
// double-process the same row, per spec.md §8 invariant 6) and applies
// the same nack-shaped transition Nack uses. Meant to be started via
// processfx.Process.StartGoroutine from cmd/broker-serve.
func (e *Engine) RunReaper(ctx context.Context) error {
	interval := e.cfg.ReaperInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}

	for {
		sleep := interval
		if e.cfg.ReaperJitter > 0 {
			sleep += time.Duration(rand.Int64N(int64(e.cfg.ReaperJitter))) //nolint:gosec
		}

		select {
		case <-ctx.Done():
			return nil //nolint:nilerr
		case <-time.After(sleep):
		}

		if err := e.reapOnce(ctx); err != nil {
			e.logger.ErrorContext(ctx, "reaper tick failed", "error", err)
		}
	}
}

// reapOnce requeues (or dead-letters) every message whose processing
// lock has expired. Called once per reaper tick, and also usable
// directly from tests/admin tooling that want an on-demand sweep.
func (e *Engine) reapOnce(ctx context.Context) error {
	now := time.Now().UTC()

	type dlqEvent struct {
		queue     string
		messageID string
	}

	var dlqEvents []dlqEvent

	err := e.gateway.WithTxn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		expired, err := e.gateway.FindExpiredLocks(ctx, tx, now)
		if err != nil {
			return fmt.Errorf("reaper: failed to list expired locks: %w", err)
		}

		for _, m := range expired {
			q, err := e.gateway.GetQueue(ctx, tx, m.Queue)
			if err != nil {
				continue
			}

			msg := m

			willDLQ, err := e.reaperRequeue(ctx, tx, &msg, q.MaxAttempts, q.EffectiveAckTimeout())
			if err != nil {
				return fmt.Errorf("reaper: failed to requeue message %q: %w", m.ID, err)
			}

			if willDLQ {
				dlqEvents = append(dlqEvents, dlqEvent{queue: m.Queue, messageID: m.ID})
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	for _, ev := range dlqEvents {
		e.publishDLQRelay(ctx, true, ev.queue, ev.messageID)
	}

	return nil
}
