package admin

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/eser/relayq/pkg/broker/brokererrors"
	"github.com/eser/relayq/pkg/broker/engine"
	"github.com/eser/relayq/pkg/broker/model"
	"github.com/eser/relayq/pkg/broker/storage"
)

// CreateQueueRequest carries the fields an operator supplies when
// defining a new queue; everything else (timestamps, type defaults) is
// filled in by the surface.
type CreateQueueRequest struct {
	Name              string
	Type              model.QueueType
	AckTimeoutSeconds int
	MaxAttempts       int
	PartitionInterval *model.PartitionInterval
	RetentionInterval *time.Duration
	Description       *string
}

// CreateQueue defines a new queue, applying the surface's defaults for
// any zero-valued timing field.
func (s *Surface) CreateQueue(ctx context.Context, req CreateQueueRequest) error {
	if req.Name == "" {
		return fmt.Errorf("%w: queue name must not be empty", brokererrors.ErrInvalidArgument)
	}

	ackTimeout := req.AckTimeoutSeconds
	if ackTimeout <= 0 {
		ackTimeout = int(s.cfg.DefaultAckTimeout.Seconds())
	}

	maxAttempts := req.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = s.cfg.DefaultMaxRetries
	}

	queueType := req.Type
	if queueType == "" {
		queueType = model.QueueTypeStandard
	}

	now := time.Now().UTC()

	q := model.Queue{
		Name:              req.Name,
		Type:              queueType,
		AckTimeoutSeconds: ackTimeout,
		MaxAttempts:       maxAttempts,
		PartitionInterval: req.PartitionInterval,
		RetentionInterval: req.RetentionInterval,
		Description:       req.Description,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	err := s.gateway.WithTxn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return s.gateway.CreateQueue(ctx, tx, q)
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "queue created", "queue", req.Name, "type", string(queueType))

	return nil
}

// QueueSummary is one row of listQueues: the queue definition plus its
// current per-status depth (spec.md §4.7 "with counts: message_count,
// processing_count, dead_count").
type QueueSummary struct {
	model.Queue

	MessageCount      int
	ProcessingCount   int
	DeadCount         int
	AcknowledgedCount int
	ArchivedCount     int
}

// ListQueues returns every queue definition annotated with its current
// message counts.
func (s *Surface) ListQueues(ctx context.Context) ([]QueueSummary, error) {
	var out []QueueSummary

	err := s.gateway.WithTxn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		queues, err := s.gateway.ListQueues(ctx, tx)
		if err != nil {
			return err
		}

		out = make([]QueueSummary, len(queues))

		for i, q := range queues {
			counts, err := s.gateway.CountsByQueue(ctx, tx, q.Name)
			if err != nil {
				return err
			}

			out[i] = QueueSummary{
				Queue:             q,
				MessageCount:      counts.Queued,
				ProcessingCount:   counts.Processing,
				DeadCount:         counts.Dead,
				AcknowledgedCount: counts.Acknowledged,
				ArchivedCount:     counts.Archived,
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// GetQueue fetches one queue's definition and current counts.
func (s *Surface) GetQueue(ctx context.Context, name string) (*QueueSummary, error) {
	var summary QueueSummary

	err := s.gateway.WithTxn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		q, err := s.gateway.GetQueue(ctx, tx, name)
		if err != nil {
			if errors.Is(err, storage.ErrRowNotFound) {
				return fmt.Errorf("%w: %q", brokererrors.ErrUnknownQueue, name)
			}

			return err
		}

		counts, err := s.gateway.CountsByQueue(ctx, tx, name)
		if err != nil {
			return err
		}

		summary = QueueSummary{
			Queue:             *q,
			MessageCount:      counts.Queued,
			ProcessingCount:   counts.Processing,
			DeadCount:         counts.Dead,
			AcknowledgedCount: counts.Acknowledged,
			ArchivedCount:     counts.Archived,
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &summary, nil
}

// UpdateQueueRequest carries the mutable-only fields (spec.md §3
// "mutable only in ack_timeout, max_attempts, description, name" —
// name itself changes through RenameQueue instead).
type UpdateQueueRequest struct {
	Name              string
	AckTimeoutSeconds *int
	MaxAttempts       *int
	Description       *string
}

// UpdateQueue patches the mutable fields of an existing queue.
func (s *Surface) UpdateQueue(ctx context.Context, req UpdateQueueRequest) error {
	return s.gateway.WithTxn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := s.gateway.GetQueue(ctx, tx, req.Name); err != nil {
			if errors.Is(err, storage.ErrRowNotFound) {
				return fmt.Errorf("%w: %q", brokererrors.ErrUnknownQueue, req.Name)
			}

			return err
		}

		return s.gateway.UpdateQueue(ctx, tx, storage.UpdateQueueParams{
			Name:              req.Name,
			AckTimeoutSeconds: req.AckTimeoutSeconds,
			MaxAttempts:       req.MaxAttempts,
			Description:       req.Description,
		})
	})
}

// RenameQueue atomically renames a queue and every denormalized
// reference to it (spec.md §4.7 "atomic update of name and all FK
// references ... a failure leaves the old name intact").
func (s *Surface) RenameQueue(ctx context.Context, oldName string, newName string) error {
	if newName == "" {
		return fmt.Errorf("%w: new queue name must not be empty", brokererrors.ErrInvalidArgument)
	}

	err := s.gateway.WithTxn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := s.gateway.GetQueue(ctx, tx, oldName); err != nil {
			if errors.Is(err, storage.ErrRowNotFound) {
				return fmt.Errorf("%w: %q", brokererrors.ErrUnknownQueue, oldName)
			}

			return err
		}

		return s.gateway.RenameQueue(ctx, tx, oldName, newName)
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "queue renamed", "from", oldName, "to", newName)

	return nil
}

// DeleteQueue removes a queue definition. It refuses when the queue
// still holds messages unless force is true, in which case every
// message is cleared first (spec.md §4.7). force always requires a
// valid actor token; with no actor-token secret configured, a forced
// delete is refused with ErrActorTokenRequired.
func (s *Surface) DeleteQueue(ctx context.Context, name string, force bool, actorToken string) error {
	var actor string

	if force {
		verified, err := s.verifyActor(actorToken)
		if err != nil {
			return err
		}

		actor = verified
	}

	summary, err := s.GetQueue(ctx, name)
	if err != nil {
		return err
	}

	total := summary.MessageCount + summary.ProcessingCount + summary.DeadCount +
		summary.AcknowledgedCount + summary.ArchivedCount

	if total > 0 && !force {
		return fmt.Errorf("%w: %q holds %d messages", brokererrors.ErrQueueNotEmpty, name, total)
	}

	if total > 0 {
		if _, err := s.engine.Clear(ctx, engine.ClearRequest{ //nolint:exhaustruct
			Queue:       name,
			TriggeredBy: actor,
			Reason:      "queue deleted with force=true",
		}); err != nil {
			return err
		}
	}

	err = s.gateway.WithTxn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return s.gateway.DeleteQueueDefinition(ctx, tx, name)
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "queue deleted", "queue", name, "force", force, "actor", actor)

	return nil
}

// PurgeQueue clears every message from a queue but keeps its
// definition, optionally restricted to one status (spec.md §4.7
// "clear all statuses but keep definition").
func (s *Surface) PurgeQueue(ctx context.Context, name string, status *model.MessageStatus, actorToken string) (int, error) {
	actor, err := s.verifyActor(actorToken)
	if err != nil {
		return 0, err
	}

	if _, err := s.GetQueue(ctx, name); err != nil {
		return 0, err
	}

	n, err := s.engine.Clear(ctx, engine.ClearRequest{
		Queue:       name,
		Status:      status,
		TriggeredBy: actor,
		Reason:      "purge",
	})
	if err != nil {
		return 0, err
	}

	s.logger.InfoContext(ctx, "queue purged", "queue", name, "cleared", n, "actor", actor)

	return n, nil
}
