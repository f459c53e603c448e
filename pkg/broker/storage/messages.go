package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/eser/relayq/pkg/broker/model"
)

const messageColumns = `
	id, queue, type, priority, payload, content_type, payload_size, status,
	attempt_count, custom_max_attempts, custom_ack_timeout_seconds,
	consumer_id, lock_token, locked_at, locked_until,
	created_at, acknowledged_at, error_reason, prev_consumer_id, prev_lock_token
`

// NewMessageRow is the set of fields the storage gateway accepts on
// insert; id/created_at are assigned by the caller (engine or enqueue
// buffer) so that batched flushes can assign created_at monotonically
// per spec.md §4.2.
type NewMessageRow struct {
	ID                string
	Queue             string
	Type              *string
	Priority          int
	Payload           []byte
	ContentType       *string
	CustomMaxAttempts *int
	CustomAckTimeout  *time.Duration
	CreatedAt         time.Time
}

// InsertMessage inserts a single queued message. It is a thin wrapper
// around InsertMessages for callers (e.g. the engine's non-batch
// enqueue) that only ever have one row.
func (g *Gateway) InsertMessage(ctx context.Context, tx *sql.Tx, row NewMessageRow) error {
	return g.InsertMessages(ctx, tx, []NewMessageRow{row})
}

// InsertMessages bulk-inserts rows in a single statement, matching the
// enqueue buffer's flush contract (one bulk insert per batch).
func (g *Gateway) InsertMessages(ctx context.Context, tx *sql.Tx, rows []NewMessageRow) error {
	if len(rows) == 0 {
		return nil
	}

	var (
		placeholders []string
		args         []any
	)

	for i, row := range rows {
		base := i * 11
		placeholders = append(placeholders, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, 'queued', 0, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8,
			base+9, base+10, base+11,
		))

		var customAckSeconds *int64
		if row.CustomAckTimeout != nil {
			s := int64(row.CustomAckTimeout.Seconds())
			customAckSeconds = &s
		}

		args = append(args,
			row.ID, row.Queue, row.Type, model.ClampPriority(row.Priority),
			row.Payload, row.ContentType, len(row.Payload), row.CreatedAt,
			row.CustomMaxAttempts, customAckSeconds, row.CreatedAt,
		)
	}

	query := fmt.Sprintf(
		`INSERT INTO messages (
			id, queue, type, priority, payload, content_type, payload_size, created_at,
			status, attempt_count, custom_max_attempts, custom_ack_timeout_seconds, updated_at
		) VALUES %s`,
		strings.Join(placeholders, ", "),
	)

	_, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTxFailed, err)
	}

	return nil
}

// ClaimedMessage pairs a dequeued message with the lock token minted for
// this dequeue, matching engine.dequeue's {message, lock_token} return.
type ClaimedMessage struct {
	Message   model.Message
	LockToken string
}

// LockAndClaim atomically selects up to count queued rows (optionally
// filtered by message type) ordered by (priority desc, created_at asc),
// transitions them to processing, and stamps consumer_id/lock_token/
// locked_until. Uses SELECT ... FOR UPDATE SKIP LOCKED so concurrent
// consumers never block on each other.
func (g *Gateway) LockAndClaim(
	ctx context.Context,
	tx *sql.Tx,
	queue string,
	count int,
	consumerID string,
	typeFilter *string,
	ackTimeout time.Duration,
	newLockToken func() string,
) ([]ClaimedMessage, error) {
	selectQuery := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE queue = $1 AND status = 'queued' AND ($2::text IS NULL OR type = $2)
		ORDER BY priority DESC, created_at ASC
		LIMIT $3
		FOR UPDATE SKIP LOCKED
	`

	rows, err := tx.QueryContext(ctx, selectQuery, queue, typeFilter, count)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTxFailed, err)
	}
	defer rows.Close()

	var candidates []model.Message

	for rows.Next() {
		m, scanErr := scanMessage(rows)
		if scanErr != nil {
			return nil, scanErr
		}

		candidates = append(candidates, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTxFailed, err)
	}

	claimed := make([]ClaimedMessage, 0, len(candidates))
	lockedAt := now()

	for _, m := range candidates {
		effectiveTimeout := ackTimeout
		if m.CustomAckTimeout != nil {
			effectiveTimeout = *m.CustomAckTimeout
		}

		lockedUntil := lockedAt.Add(effectiveTimeout)
		token := newLockToken()

		_, err := tx.ExecContext(ctx, `
			UPDATE messages
			SET status = 'processing', consumer_id = $1, lock_token = $2,
				locked_at = $3, locked_until = $4, updated_at = $3
			WHERE id = $5
		`, consumerID, token, lockedAt, lockedUntil, m.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrTxFailed, err)
		}

		m.Status = model.MessageStatusProcessing
		m.ConsumerID = &consumerID
		m.LockToken = &token
		m.LockedAt = &lockedAt
		m.LockedUntil = &lockedUntil

		claimed = append(claimed, ClaimedMessage{Message: m, LockToken: token})
	}

	return claimed, nil
}

// GetMessage fetches one message by id for lock-token validation and
// reaper/admin reads.
func (g *Gateway) GetMessage(ctx context.Context, tx *sql.Tx, id string) (*model.Message, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = $1 FOR UPDATE`, id)

	m, err := scanMessageRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRowNotFound
		}

		return nil, fmt.Errorf("%w: %w", ErrTxFailed, err)
	}

	return &m, nil
}

// UpdateMessageStatusParams carries the fields an engine transition may
// set; nil pointers leave a column untouched except where noted.
type UpdateMessageStatusParams struct {
	ID             string
	Status         model.MessageStatus
	ClearLock      bool
	ErrorReason    *string
	AcknowledgedAt *time.Time
	PrevConsumerID *string
	PrevLockToken  *string
}

// UpdateMessageStatus applies a lifecycle transition. Transitions into
// {acknowledged, dead, archived} clear consumer_id/lock_token/locked_at/
// locked_until per invariant (ii); transitions back to queued also clear
// the lock fields so the message becomes claimable again.
func (g *Gateway) UpdateMessageStatus(ctx context.Context, tx *sql.Tx, p UpdateMessageStatusParams) error {
	clearLock := p.ClearLock || p.Status != model.MessageStatusProcessing

	query := `
		UPDATE messages
		SET status = $1,
			error_reason = COALESCE($2, error_reason),
			acknowledged_at = COALESCE($3, acknowledged_at),
			prev_consumer_id = COALESCE($4, prev_consumer_id),
			prev_lock_token = COALESCE($5, prev_lock_token),
			updated_at = $6
	`

	args := []any{p.Status, p.ErrorReason, p.AcknowledgedAt, p.PrevConsumerID, p.PrevLockToken, now()}

	if clearLock {
		query += `, consumer_id = NULL, lock_token = NULL, locked_at = NULL, locked_until = NULL`
	}

	query += ` WHERE id = $7`
	args = append(args, p.ID)

	_, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTxFailed, err)
	}

	return nil
}

// BumpAttempt increments attempt_count and returns the new value,
// matching nack's "increment, then branch on effective_max_attempts".
func (g *Gateway) BumpAttempt(ctx context.Context, tx *sql.Tx, id string) (int, error) {
	row := tx.QueryRowContext(ctx, `
		UPDATE messages SET attempt_count = attempt_count + 1, updated_at = $2
		WHERE id = $1
		RETURNING attempt_count
	`, id, now())

	var attemptCount int

	if err := row.Scan(&attemptCount); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrTxFailed, err)
	}

	return attemptCount, nil
}

// FindExpiredLocks returns every processing row whose locked_until has
// passed, for the reaper. Locked FOR UPDATE SKIP LOCKED so two reaper
// instances running concurrently never double-process the same row
// (spec.md §8 invariant 6, reaper idempotence).
func (g *Gateway) FindExpiredLocks(ctx context.Context, tx *sql.Tx, asOf time.Time) ([]model.Message, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE status = 'processing' AND locked_until < $1
		ORDER BY locked_until ASC
		FOR UPDATE SKIP LOCKED
	`, asOf)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTxFailed, err)
	}
	defer rows.Close()

	var result []model.Message

	for rows.Next() {
		m, scanErr := scanMessage(rows)
		if scanErr != nil {
			return nil, scanErr
		}

		result = append(result, m)
	}

	return result, rows.Err() //nolint:wrapcheck
}

// DeleteMessages removes the given message ids, returning the count of
// rows actually removed.
func (g *Gateway) DeleteMessages(ctx context.Context, tx *sql.Tx, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))

	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	res, err := tx.ExecContext(ctx,
		`DELETE FROM messages WHERE id IN (`+strings.Join(placeholders, ",")+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrTxFailed, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrTxFailed, err)
	}

	return int(n), nil
}

// ListMessagesFilter selects messages for listMessages/exportMessages.
type ListMessagesFilter struct {
	Queue  string
	Status *model.MessageStatus
	Limit  int
	Offset int
}

// ListMessages returns a page of messages ordered by priority
// descending, then created_at ascending, for every status (the same
// order LockAndClaim uses for queued rows).
func (g *Gateway) ListMessages(ctx context.Context, db execer, filter ListMessagesFilter) ([]model.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE queue = $1`

	args := []any{filter.Queue}

	if filter.Status != nil {
		query += ` AND status = $2`
		args = append(args, *filter.Status)
	}

	query += fmt.Sprintf(` ORDER BY priority DESC, created_at ASC LIMIT %d OFFSET %d`, filter.Limit, filter.Offset)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTxFailed, err)
	}
	defer rows.Close()

	var result []model.Message

	for rows.Next() {
		m, scanErr := scanMessage(rows)
		if scanErr != nil {
			return nil, scanErr
		}

		result = append(result, m)
	}

	return result, rows.Err() //nolint:wrapcheck
}

// QueueCounts is the per-status depth snapshot used both by C3's
// queue_depth/processing_depth/dlq_depth fields and by C7's listQueues.
type QueueCounts struct {
	Queued       int
	Processing   int
	Dead         int
	Acknowledged int
	Archived     int
}

// CountsByQueue computes approximate per-status counts. Reads within the
// caller's transaction but issues a plain SELECT COUNT, never an
// exclusive lock, so it never serializes producers against consumers
// (spec.md §4.4).
func (g *Gateway) CountsByQueue(ctx context.Context, db execer, queue string) (QueueCounts, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM messages WHERE queue = $1 GROUP BY status
	`, queue)
	if err != nil {
		return QueueCounts{}, fmt.Errorf("%w: %w", ErrTxFailed, err)
	}
	defer rows.Close()

	var counts QueueCounts

	for rows.Next() {
		var status string

		var n int

		if err := rows.Scan(&status, &n); err != nil {
			return QueueCounts{}, fmt.Errorf("%w: %w", ErrTxFailed, err)
		}

		switch model.MessageStatus(status) {
		case model.MessageStatusQueued:
			counts.Queued = n
		case model.MessageStatusProcessing:
			counts.Processing = n
		case model.MessageStatusDead:
			counts.Dead = n
		case model.MessageStatusAcknowledged:
			counts.Acknowledged = n
		case model.MessageStatusArchived:
			counts.Archived = n
		}
	}

	return counts, rows.Err() //nolint:wrapcheck
}

// DistinctConsumers returns the consumer_id of every message currently
// in status=processing for the queue, the candidate set GetMetrics
// looks up per-consumer dequeue stats for.
func (g *Gateway) DistinctConsumers(ctx context.Context, db execer, queue string) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT DISTINCT consumer_id FROM messages
		WHERE queue = $1 AND status = $2 AND consumer_id IS NOT NULL
	`, queue, model.MessageStatusProcessing)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTxFailed, err)
	}
	defer rows.Close()

	var out []string

	for rows.Next() {
		var id string

		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrTxFailed, err)
		}

		out = append(out, id)
	}

	return out, rows.Err() //nolint:wrapcheck
}

func scanMessage(rows *sql.Rows) (model.Message, error) {
	return scanMessageInto(rows)
}

func scanMessageRow(row *sql.Row) (model.Message, error) {
	return scanMessageInto(row)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMessageInto(s scanner) (model.Message, error) {
	var (
		m                       model.Message
		typ                     sql.NullString
		contentType             sql.NullString
		customMaxAttempts       sql.NullInt64
		customAckTimeoutSeconds sql.NullInt64
		consumerID              sql.NullString
		lockToken               sql.NullString
		lockedAt                sql.NullTime
		lockedUntil             sql.NullTime
		acknowledgedAt          sql.NullTime
		errorReason             sql.NullString
		prevConsumerID          sql.NullString
		prevLockToken           sql.NullString
	)

	err := s.Scan(
		&m.ID, &m.Queue, &typ, &m.Priority, &m.Payload, &contentType, &m.PayloadSize, &m.Status,
		&m.AttemptCount, &customMaxAttempts, &customAckTimeoutSeconds,
		&consumerID, &lockToken, &lockedAt, &lockedUntil,
		&m.CreatedAt, &acknowledgedAt, &errorReason, &prevConsumerID, &prevLockToken,
	)
	if err != nil {
		return model.Message{}, err //nolint:wrapcheck
	}

	if typ.Valid {
		m.Type = &typ.String
	}

	if contentType.Valid {
		m.ContentType = &contentType.String
	}

	if customMaxAttempts.Valid {
		v := int(customMaxAttempts.Int64)
		m.CustomMaxAttempts = &v
	}

	if customAckTimeoutSeconds.Valid {
		d := time.Duration(customAckTimeoutSeconds.Int64) * time.Second
		m.CustomAckTimeout = &d
	}

	if consumerID.Valid {
		m.ConsumerID = &consumerID.String
	}

	if lockToken.Valid {
		m.LockToken = &lockToken.String
	}

	if lockedAt.Valid {
		m.LockedAt = &lockedAt.Time
	}

	if lockedUntil.Valid {
		m.LockedUntil = &lockedUntil.Time
	}

	if acknowledgedAt.Valid {
		m.AcknowledgedAt = &acknowledgedAt.Time
	}

	if errorReason.Valid {
		m.ErrorReason = &errorReason.String
	}

	if prevConsumerID.Valid {
		m.PrevConsumerID = &prevConsumerID.String
	}

	if prevLockToken.Valid {
		m.PrevLockToken = &prevLockToken.String
	}

	return m, nil
}
