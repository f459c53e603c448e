package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/eser/relayq/pkg/broker/activity"
	"github.com/eser/relayq/pkg/broker/anomaly"
	"github.com/eser/relayq/pkg/broker/brokererrors"
	"github.com/eser/relayq/pkg/broker/model"
	"github.com/eser/relayq/pkg/broker/storage"
)

// DequeueOptions configures one Dequeue call (spec.md §4.3).
type DequeueOptions struct {
	Count             int
	TypeFilter        *string
	AckTimeoutOverride *time.Duration
	WaitTimeout       time.Duration // 0 = non-blocking
}

// Dequeued pairs a claimed message with its freshly minted lock token.
type Dequeued struct {
	Message   model.Message
	LockToken string
}

// Dequeue calls LockAndClaim; on an empty result it either returns
// immediately (WaitTimeout==0) or waits on the event bus for an enqueue
// notification on this queue, then retries exactly once more. Writes one
// activity entry per returned message (action=dequeue,
// time_in_queue_ms=now-created_at).
func (e *Engine) Dequeue(
	ctx context.Context,
	queue string,
	consumerID string,
	opts DequeueOptions,
) ([]Dequeued, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}

	if opts.Count <= 0 {
		opts.Count = 1
	}

	result, err := e.tryDequeue(ctx, queue, consumerID, opts)
	if err != nil {
		return nil, err
	}

	if len(result) > 0 || opts.WaitTimeout <= 0 {
		return result, nil
	}

	if !e.bus.WaitForEnqueue(ctx, queue, opts.WaitTimeout) {
		return nil, nil
	}

	return e.tryDequeue(ctx, queue, consumerID, opts)
}

func (e *Engine) tryDequeue(
	ctx context.Context,
	queue string,
	consumerID string,
	opts DequeueOptions,
) ([]Dequeued, error) {
	var result []Dequeued

	err := e.gateway.WithTxn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		q, err := e.gateway.GetQueue(ctx, tx, queue)
		if err != nil {
			if errors.Is(err, storage.ErrRowNotFound) {
				return fmt.Errorf("%w: %q", brokererrors.ErrUnknownQueue, queue)
			}

			return err
		}

		ackTimeout := q.EffectiveAckTimeout()
		if opts.AckTimeoutOverride != nil {
			ackTimeout = *opts.AckTimeoutOverride
		}

		claimed, err := e.gateway.LockAndClaim(
			ctx, tx, queue, opts.Count, consumerID, opts.TypeFilter, ackTimeout, e.idGen,
		)
		if err != nil {
			return err
		}

		result = make([]Dequeued, 0, len(claimed))

		for _, c := range claimed {
			timeInQueueMs := time.Since(c.Message.CreatedAt).Milliseconds()
			effectiveMax := c.Message.EffectiveMaxAttempts(q.MaxAttempts)
			attemptsRemaining := c.Message.AttemptsRemaining(effectiveMax)

			recentDequeueCount := 0

			if e.stats != nil {
				n, err := e.stats.RecordDequeue(ctx, consumerID, e.cfg.ConsumerStatsWindow)
				if err != nil {
					e.logger.WarnContext(ctx, "failed to record consumer dequeue stats", "error", err)
				} else {
					recentDequeueCount = n
				}
			}

			in := activity.RecordInput{ //nolint:exhaustruct
				Action:             model.ActivityActionDequeue,
				Queue:              queue,
				Message:            &c.Message,
				ConsumerID:         &consumerID,
				TimeInQueueMs:      ptrInt64(timeInQueueMs),
				AttemptsRemaining:  ptrInt(attemptsRemaining),
				MaxAttempts:        ptrInt(effectiveMax),
				TriggeredBy:        consumerID,
				DetectorEvent:      anomaly.EventKindDequeue,
				RecentDequeueCount: recentDequeueCount,
			}

			if _, err := e.activity.Record(ctx, tx, in); err != nil {
				return err
			}

			result = append(result, Dequeued{Message: c.Message, LockToken: c.LockToken})
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}
