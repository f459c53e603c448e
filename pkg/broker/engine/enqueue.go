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

// EnqueueRequest is one message to insert.
type EnqueueRequest struct {
	Type              *string
	Priority          int
	Payload           []byte
	ContentType       *string
	CustomMaxAttempts *int
	CustomAckTimeout  *time.Duration
}

// Enqueue inserts one message and returns its id. It is a thin wrapper
// over EnqueueBatch (DESIGN.md Open Question 2: batch is the canonical
// path, single is a convenience wrapper).
func (e *Engine) Enqueue(ctx context.Context, queue string, req EnqueueRequest) (string, error) {
	ids, err := e.EnqueueBatch(ctx, queue, []EnqueueRequest{req})
	if err != nil {
		return "", err
	}

	return ids[0], nil
}

// EnqueueBatch validates the queue exists, inserts len(reqs) rows with
// status=queued (priority clamped to [0,9]), writes one activity entry
// (action=enqueue, batch_size=len(reqs) when >1), and returns the
// assigned ids in request order. Matches spec.md §4.3's enqueue contract
// and §4.2's flush contract (bulk insert + one activity record).
func (e *Engine) EnqueueBatch(ctx context.Context, queue string, reqs []EnqueueRequest) ([]string, error) {
	return e.enqueueBatchPreservingIDs(ctx, queue, reqs, nil)
}

// enqueueBatchPreservingIDs is EnqueueBatch's implementation, generalized
// to accept caller-supplied ids (used by ImportMessages to preserve the
// ids a previous ExportMessages call produced). A blank or missing id at
// index i gets a freshly minted one.
func (e *Engine) enqueueBatchPreservingIDs(
	ctx context.Context, queue string, reqs []EnqueueRequest, presetIDs []string,
) ([]string, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}

	if len(reqs) == 0 {
		return nil, nil
	}

	if e.cfg.MaxPayloadBytes > 0 {
		for _, r := range reqs {
			if len(r.Payload) > e.cfg.MaxPayloadBytes {
				return nil, fmt.Errorf("%w: payload of %d bytes exceeds cap of %d",
					brokererrors.ErrPayloadTooLarge, len(r.Payload), e.cfg.MaxPayloadBytes)
			}
		}
	}

	ids := make([]string, len(reqs))
	createdAt := time.Now().UTC()

	err := e.gateway.WithTxn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := e.gateway.GetQueue(ctx, tx, queue); err != nil {
			if errors.Is(err, storage.ErrRowNotFound) {
				return fmt.Errorf("%w: %q", brokererrors.ErrUnknownQueue, queue)
			}

			return err
		}

		rows := make([]storage.NewMessageRow, len(reqs))

		for i, r := range reqs {
			if i < len(presetIDs) && presetIDs[i] != "" {
				ids[i] = presetIDs[i]
			} else {
				ids[i] = e.idGen()
			}
			// created_at values are assigned at flush time, monotonically
			// within the batch (spec.md §4.2).
			rowCreatedAt := createdAt.Add(time.Duration(i) * time.Microsecond)

			rows[i] = storage.NewMessageRow{
				ID:                ids[i],
				Queue:             queue,
				Type:              r.Type,
				Priority:          r.Priority,
				Payload:           r.Payload,
				ContentType:       r.ContentType,
				CustomMaxAttempts: r.CustomMaxAttempts,
				CustomAckTimeout:  r.CustomAckTimeout,
				CreatedAt:         rowCreatedAt,
			}
		}

		if err := e.gateway.InsertMessages(ctx, tx, rows); err != nil {
			return err
		}

		in := activity.RecordInput{ //nolint:exhaustruct
			Action:      model.ActivityActionEnqueue,
			Queue:       queue,
			TriggeredBy: e.cfg.ManualActorName,
		}

		if len(reqs) > 1 {
			batchID := e.idGen()
			batchSize := len(reqs)
			in.BatchID = &batchID
			in.BatchSize = &batchSize
			in.BulkOperationType = "enqueue"
			in.AffectedCount = len(reqs)
			in.DetectorEvent = anomaly.EventKindBulkOperation
		} else {
			in.DetectorEvent = anomaly.EventKindEnqueue
			m := &model.Message{ //nolint:exhaustruct
				ID:          ids[0],
				Queue:       queue,
				Type:        reqs[0].Type,
				Priority:    model.ClampPriority(reqs[0].Priority),
				PayloadSize: len(reqs[0].Payload),
				CreatedAt:   createdAt,
			}
			in.Message = m
		}

		if _, err := e.activity.Record(ctx, tx, in); err != nil {
			return err
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return ids, nil
}
