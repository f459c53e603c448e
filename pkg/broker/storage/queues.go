package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/eser/relayq/pkg/broker/model"
)

const queueColumns = `
	name, type, ack_timeout_seconds, max_attempts, partition_interval,
	retention_interval_seconds, description, created_at, updated_at
`

// CreateQueue inserts a new queue definition. Fails with ErrTxFailed
// wrapping the driver's unique-constraint error if the name is already
// taken.
func (g *Gateway) CreateQueue(ctx context.Context, tx *sql.Tx, q model.Queue) error {
	var retentionSeconds *int64
	if q.RetentionInterval != nil {
		s := int64(q.RetentionInterval.Seconds())
		retentionSeconds = &s
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO queues (`+queueColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, q.Name, q.Type, q.AckTimeoutSeconds, q.MaxAttempts, q.PartitionInterval,
		retentionSeconds, q.Description, q.CreatedAt, q.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTxFailed, err)
	}

	return nil
}

// GetQueue fetches one queue definition by name.
func (g *Gateway) GetQueue(ctx context.Context, db execer, name string) (*model.Queue, error) {
	row := db.QueryRowContext(ctx, `SELECT `+queueColumns+` FROM queues WHERE name = $1`, name)

	q, err := scanQueue(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRowNotFound
		}

		return nil, fmt.Errorf("%w: %w", ErrTxFailed, err)
	}

	return &q, nil
}

// ListQueues returns every queue definition, ordered by name.
func (g *Gateway) ListQueues(ctx context.Context, db execer) ([]model.Queue, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+queueColumns+` FROM queues ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTxFailed, err)
	}
	defer rows.Close()

	var result []model.Queue

	for rows.Next() {
		q, err := scanQueue(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrTxFailed, err)
		}

		result = append(result, q)
	}

	return result, rows.Err() //nolint:wrapcheck
}

// UpdateQueueParams carries the mutable-only fields per spec.md §3
// ("mutable only in (ack_timeout, max_attempts, description, name)").
type UpdateQueueParams struct {
	Name              string
	AckTimeoutSeconds *int
	MaxAttempts       *int
	Description       *string
}

// UpdateQueue patches the mutable fields of an existing queue.
func (g *Gateway) UpdateQueue(ctx context.Context, tx *sql.Tx, p UpdateQueueParams) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE queues
		SET ack_timeout_seconds = COALESCE($1, ack_timeout_seconds),
			max_attempts = COALESCE($2, max_attempts),
			description = COALESCE($3, description),
			updated_at = $4
		WHERE name = $5
	`, p.AckTimeoutSeconds, p.MaxAttempts, p.Description, time.Now().UTC(), p.Name)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTxFailed, err)
	}

	return nil
}

// RenameQueue atomically updates the queue's name and every
// denormalized `queue` reference on messages and activity_log, matching
// spec.md §4.7's "single transaction, failure leaves old name intact".
func (g *Gateway) RenameQueue(ctx context.Context, tx *sql.Tx, oldName, newName string) error {
	stmts := []string{
		`UPDATE queues SET name = $1, updated_at = $3 WHERE name = $2`,
		`UPDATE messages SET queue = $1 WHERE queue = $2`,
		`UPDATE activity_log SET queue = $1 WHERE queue = $2`,
		`UPDATE activity_log SET source_queue = $1 WHERE source_queue = $2`,
		`UPDATE activity_log SET dest_queue = $1 WHERE dest_queue = $2`,
	}

	for i, stmt := range stmts {
		args := []any{newName, oldName}
		if i == 0 {
			args = append(args, time.Now().UTC())
		}

		if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
			return fmt.Errorf("%w: %w", ErrTxFailed, err)
		}
	}

	return nil
}

// DeleteQueueDefinition removes the queue row itself (not its messages;
// callers must clear messages first when force=true, per spec.md §4.7).
func (g *Gateway) DeleteQueueDefinition(ctx context.Context, tx *sql.Tx, name string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM queues WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTxFailed, err)
	}

	return nil
}

// ClearQueue deletes every message row for the queue, optionally
// filtered to one status (purgeQueue passes nil to clear all statuses).
func (g *Gateway) ClearQueue(ctx context.Context, tx *sql.Tx, queue string, status *model.MessageStatus) (int, error) {
	query := `DELETE FROM messages WHERE queue = $1`

	args := []any{queue}
	if status != nil {
		query += ` AND status = $2`
		args = append(args, *status)
	}

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrTxFailed, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrTxFailed, err)
	}

	return int(n), nil
}

func scanQueue(s scanner) (model.Queue, error) {
	var (
		q                 model.Queue
		partitionInterval sql.NullString
		retentionSeconds  sql.NullInt64
		description       sql.NullString
	)

	err := s.Scan(
		&q.Name, &q.Type, &q.AckTimeoutSeconds, &q.MaxAttempts, &partitionInterval,
		&retentionSeconds, &description, &q.CreatedAt, &q.UpdatedAt,
	)
	if err != nil {
		return model.Queue{}, err //nolint:wrapcheck
	}

	if partitionInterval.Valid {
		pi := model.PartitionInterval(partitionInterval.String)
		q.PartitionInterval = &pi
	}

	if retentionSeconds.Valid {
		d := time.Duration(retentionSeconds.Int64) * time.Second
		q.RetentionInterval = &d
	}

	if description.Valid {
		q.Description = &description.String
	}

	return q, nil
}
