package engine

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/eser/relayq/pkg/broker/activity"
	"github.com/eser/relayq/pkg/broker/anomaly"
	"github.com/eser/relayq/pkg/broker/brokererrors"
	"github.com/eser/relayq/pkg/broker/model"
	"github.com/eser/relayq/pkg/broker/storage"
)

// MoveRequest selects messages within Queue for a bulk status transition
// (spec.md §4.3 move: queued↔archived, dead→queued for replay, etc.).
// IDs takes precedence; when empty, every message matching Status (or
// every message in the queue, if Status is nil) is selected.
type MoveRequest struct {
	Queue        string
	IDs          []string
	Status       *model.MessageStatus
	TargetStatus model.MessageStatus
	TriggeredBy  string
	Reason       string
}

// Move transitions the selected messages to TargetStatus, clearing their
// lock fields, in one transaction. Writes one activity entry per message
// (action=move, source_status/dest_status set) plus a bulk_move anomaly
// when the affected count crosses the configured bulk threshold
// (spec.md §4.3 move, §4.5 bulk_move).
func (e *Engine) Move(ctx context.Context, req MoveRequest) (int, error) {
	if err := e.checkOpen(); err != nil {
		return 0, err
	}

	if req.TargetStatus == model.MessageStatusProcessing {
		return 0, fmt.Errorf("%w: invalid move target status %q", brokererrors.ErrInvalidArgument, req.TargetStatus)
	}

	affected := 0

	err := e.gateway.WithTxn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := e.gateway.GetQueue(ctx, tx, req.Queue); err != nil {
			return wrapUnknownQueue(err, req.Queue)
		}

		ids := req.IDs
		if len(ids) == 0 {
			msgs, err := e.gateway.ListMessages(ctx, tx, storage.ListMessagesFilter{ //nolint:exhaustruct
				Queue:  req.Queue,
				Status: req.Status,
				Limit:  1 << 30,
			})
			if err != nil {
				return err
			}

			for _, m := range msgs {
				ids = append(ids, m.ID)
			}
		}

		batchID := e.idGen()
		batchSize := len(ids)

		for _, id := range ids {
			m, err := e.gateway.GetMessage(ctx, tx, id)
			if err != nil {
				continue
			}

			sourceStatus := m.Status
			targetStatus := req.TargetStatus

			if err := e.gateway.UpdateMessageStatus(ctx, tx, storage.UpdateMessageStatusParams{ //nolint:exhaustruct
				ID:        id,
				Status:    targetStatus,
				ClearLock: true,
			}); err != nil {
				return err
			}

			in := activity.RecordInput{ //nolint:exhaustruct
				Action:            model.ActivityActionMove,
				Queue:             req.Queue,
				SourceStatus:      &sourceStatus,
				DestStatus:        &targetStatus,
				Message:           m,
				TriggeredBy:       req.TriggeredBy,
				Reason:            &req.Reason,
				BatchID:           &batchID,
				BatchSize:         &batchSize,
				BulkOperationType: "move",
				AffectedCount:     batchSize,
				DetectorEvent:     anomaly.EventKindBulkOperation,
			}

			if _, err := e.activity.Record(ctx, tx, in); err != nil {
				return err
			}

			affected++
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return affected, nil
}

// DeleteRequest selects messages to permanently remove.
type DeleteRequest struct {
	Queue       string
	IDs         []string
	Status      *model.MessageStatus
	TriggeredBy string
	Reason      string
}

// Delete permanently removes the selected messages, writing one activity
// entry per message (action=delete) plus a bulk_delete anomaly when the
// affected count crosses the configured threshold.
func (e *Engine) Delete(ctx context.Context, req DeleteRequest) (int, error) {
	if err := e.checkOpen(); err != nil {
		return 0, err
	}

	affected := 0

	err := e.gateway.WithTxn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		ids := req.IDs
		if len(ids) == 0 {
			msgs, err := e.gateway.ListMessages(ctx, tx, storage.ListMessagesFilter{ //nolint:exhaustruct
				Queue:  req.Queue,
				Status: req.Status,
				Limit:  1 << 30,
			})
			if err != nil {
				return err
			}

			for _, m := range msgs {
				ids = append(ids, m.ID)
			}
		}

		if len(ids) == 0 {
			return nil
		}

		snapshots := make(map[string]*model.Message, len(ids))

		for _, id := range ids {
			if m, err := e.gateway.GetMessage(ctx, tx, id); err == nil {
				snapshots[id] = m
			}
		}

		n, err := e.gateway.DeleteMessages(ctx, tx, ids)
		if err != nil {
			return err
		}

		affected = n

		batchID := e.idGen()
		batchSize := n

		for _, id := range ids {
			m := snapshots[id]

			in := activity.RecordInput{ //nolint:exhaustruct
				Action:            model.ActivityActionDelete,
				Queue:             req.Queue,
				Message:           m,
				TriggeredBy:       req.TriggeredBy,
				Reason:            &req.Reason,
				BatchID:           &batchID,
				BatchSize:         &batchSize,
				BulkOperationType: "delete",
				AffectedCount:     batchSize,
				DetectorEvent:     anomaly.EventKindBulkOperation,
			}

			if _, err := e.activity.Record(ctx, tx, in); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return affected, nil
}

// ClearRequest purges every message in a queue, optionally filtered to
// one status.
type ClearRequest struct {
	Queue       string
	Status      *model.MessageStatus
	TriggeredBy string
	Reason      string
}

// Clear purges the queue (or one status within it) in a single
// statement, writing one aggregate activity entry (action=clear) and a
// queue_cleared anomaly (spec.md §4.3 clear, §4.5 queue_cleared).
func (e *Engine) Clear(ctx context.Context, req ClearRequest) (int, error) {
	if err := e.checkOpen(); err != nil {
		return 0, err
	}

	var affected int

	err := e.gateway.WithTxn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		n, err := e.gateway.ClearQueue(ctx, tx, req.Queue, req.Status)
		if err != nil {
			return err
		}

		affected = n

		in := activity.RecordInput{ //nolint:exhaustruct
			Action:            model.ActivityActionClear,
			Queue:             req.Queue,
			TriggeredBy:       req.TriggeredBy,
			Reason:            &req.Reason,
			BulkOperationType: "clear",
			AffectedCount:     n,
			DetectorEvent:     anomaly.EventKindBulkOperation,
		}

		_, err = e.activity.Record(ctx, tx, in)

		return err
	})
	if err != nil {
		return 0, err
	}

	return affected, nil
}
