package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/eser/relayq/pkg/broker/model"
)

const activityColumns = `
	log_id, message_id, action, timestamp, queue, source_queue, dest_queue,
	source_status, dest_status,
	priority, message_type, consumer_id, prev_consumer_id, lock_token, prev_lock_token,
	attempt_count, max_attempts, attempts_remaining,
	message_created_at, message_age_ms, time_in_queue_ms, processing_time_ms, total_processing_time_ms,
	payload_size_bytes, queue_depth, processing_depth, dlq_depth,
	error_reason, error_code, triggered_by, user_id, reason,
	batch_id, batch_size, prev_action, prev_timestamp, payload_snapshot, anomaly_id
`

// AppendActivity inserts one append-only audit row, matching
// activity.Logger.Record's single-insert contract (§4.4). Called inside
// the same *sql.Tx as the message mutation it documents.
func (g *Gateway) AppendActivity(ctx context.Context, tx *sql.Tx, e model.ActivityEntry) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO activity_log (`+activityColumns+`)
		VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9,
			$10, $11, $12, $13, $14, $15,
			$16, $17, $18,
			$19, $20, $21, $22, $23,
			$24, $25, $26, $27,
			$28, $29, $30, $31, $32,
			$33, $34, $35, $36, $37, $38
		)
	`,
		e.LogID, e.MessageID, e.Action, e.Timestamp, e.Queue, e.SourceQueue, e.DestQueue,
		e.SourceStatus, e.DestStatus,
		e.Priority, e.MessageType, e.ConsumerID, e.PrevConsumerID, e.LockToken, e.PrevLockToken,
		e.AttemptCount, e.MaxAttempts, e.AttemptsRemaining,
		e.MessageCreatedAt, e.MessageAgeMs, e.TimeInQueueMs, e.ProcessingTimeMs, e.TotalProcessingTimeMs,
		e.PayloadSizeBytes, e.QueueDepth, e.ProcessingDepth, e.DLQDepth,
		e.ErrorReason, e.ErrorCode, e.TriggeredBy, e.UserID, e.Reason,
		e.BatchID, e.BatchSize, e.PrevAction, e.PrevTimestamp, e.PayloadSnapshot, e.AnomalyID,
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTxFailed, err)
	}

	return nil
}

// ListActivityFilter selects rows for the admin/audit listing path.
type ListActivityFilter struct {
	Queue     *string
	MessageID *string
	Action    *model.ActivityAction
	Limit     int
	Offset    int
}

// ListActivity returns activity rows newest-first, matching
// listActivity(filter, pagination) in spec.md §4.1.
func (g *Gateway) ListActivity(ctx context.Context, db execer, filter ListActivityFilter) ([]model.ActivityEntry, error) {
	query := `SELECT ` + activityColumns + ` FROM activity_log WHERE 1=1`

	var args []any

	if filter.Queue != nil {
		args = append(args, *filter.Queue)
		query += fmt.Sprintf(" AND queue = $%d", len(args))
	}

	if filter.MessageID != nil {
		args = append(args, *filter.MessageID)
		query += fmt.Sprintf(" AND message_id = $%d", len(args))
	}

	if filter.Action != nil {
		args = append(args, *filter.Action)
		query += fmt.Sprintf(" AND action = $%d", len(args))
	}

	query += " ORDER BY timestamp DESC"

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTxFailed, err)
	}
	defer rows.Close()

	var result []model.ActivityEntry

	for rows.Next() {
		var e model.ActivityEntry

		err := rows.Scan(
			&e.LogID, &e.MessageID, &e.Action, &e.Timestamp, &e.Queue, &e.SourceQueue, &e.DestQueue,
			&e.SourceStatus, &e.DestStatus,
			&e.Priority, &e.MessageType, &e.ConsumerID, &e.PrevConsumerID, &e.LockToken, &e.PrevLockToken,
			&e.AttemptCount, &e.MaxAttempts, &e.AttemptsRemaining,
			&e.MessageCreatedAt, &e.MessageAgeMs, &e.TimeInQueueMs, &e.ProcessingTimeMs, &e.TotalProcessingTimeMs,
			&e.PayloadSizeBytes, &e.QueueDepth, &e.ProcessingDepth, &e.DLQDepth,
			&e.ErrorReason, &e.ErrorCode, &e.TriggeredBy, &e.UserID, &e.Reason,
			&e.BatchID, &e.BatchSize, &e.PrevAction, &e.PrevTimestamp, &e.PayloadSnapshot, &e.AnomalyID,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrTxFailed, err)
		}

		result = append(result, e)
	}

	return result, rows.Err() //nolint:wrapcheck
}

// AppendAnomaly inserts one anomaly row, referenced by its id from the
// activity entry that produced it (model.ActivityEntry.AnomalyID).
func (g *Gateway) AppendAnomaly(ctx context.Context, tx *sql.Tx, a model.Anomaly) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO anomalies (id, type, severity, message_id, consumer_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, a.ID, a.Type, a.Severity, a.MessageID, a.ConsumerID, anomalyDetailsJSON(a.Details), a.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTxFailed, err)
	}

	return nil
}
