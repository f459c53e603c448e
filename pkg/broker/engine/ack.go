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

// AckRequest identifies the message and the lock believed to hold it.
type AckRequest struct {
	ID         string
	LockToken  string
	ConsumerID string
}

// Acknowledge atomically transitions processing -> acknowledged only if
// the stored lock_token matches. A mismatch writes an activity entry
// (action=ack) plus a lock_stolen anomaly and returns ErrLockMismatch
// without mutating message state (spec.md §4.3, §7).
func (e *Engine) Acknowledge(ctx context.Context, req AckRequest) error {
	var ackedQueue string

	var lockMismatch bool

	err := e.gateway.WithTxn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		m, err := e.gateway.GetMessage(ctx, tx, req.ID)
		if err != nil {
			if errors.Is(err, storage.ErrRowNotFound) {
				return fmt.Errorf("%w: message %q", brokererrors.ErrUnknownQueue, req.ID)
			}

			return err
		}

		storedToken := ""
		if m.LockToken != nil {
			storedToken = *m.LockToken
		}

		processingTimeMs := int64(0)
		if m.LockedAt != nil {
			processingTimeMs = time.Since(*m.LockedAt).Milliseconds()
		}

		if storedToken != req.LockToken {
			in := activity.RecordInput{ //nolint:exhaustruct
				Action:            model.ActivityActionAck,
				Queue:             m.Queue,
				Message:           m,
				ConsumerID:        &req.ConsumerID,
				TriggeredBy:       req.ConsumerID,
				DetectorEvent:     anomaly.EventKindAck,
				ExpectedLockToken: storedToken,
				ReceivedLockToken: req.LockToken,
				ProcessingTimeMs:  ptrInt64(processingTimeMs),
			}

			if _, err := e.activity.Record(ctx, tx, in); err != nil {
				return err
			}

			lockMismatch = true

			return nil
		}

		now := time.Now().UTC()

		if err := e.gateway.UpdateMessageStatus(ctx, tx, storage.UpdateMessageStatusParams{ //nolint:exhaustruct
			ID:             req.ID,
			Status:         model.MessageStatusAcknowledged,
			AcknowledgedAt: &now,
		}); err != nil {
			return err
		}

		ackedQueue = m.Queue

		in := activity.RecordInput{ //nolint:exhaustruct
			Action:            model.ActivityActionAck,
			Queue:             m.Queue,
			Message:           m,
			ConsumerID:        &req.ConsumerID,
			TriggeredBy:       req.ConsumerID,
			DetectorEvent:     anomaly.EventKindAck,
			ExpectedLockToken: storedToken,
			ReceivedLockToken: req.LockToken,
			ProcessingTimeMs:  ptrInt64(processingTimeMs),
		}

		_, err = e.activity.Record(ctx, tx, in)

		return err
	})
	if err != nil {
		return err
	}

	if lockMismatch {
		return brokererrors.ErrLockMismatch
	}

	if e.relay != nil {
		if pubErr := e.relay.Publish(ctx, string(model.ActivityActionAck), ackedQueue, req.ID); pubErr != nil {
			e.logger.WarnContext(ctx, "relay publish failed", "action", "ack", "message_id", req.ID, "error", pubErr)
		}
	}

	return nil
}

// NackRequest identifies the message, the lock believed to hold it, and
// why it is being returned/failed.
type NackRequest struct {
	ID         string
	LockToken  string
	ConsumerID string
	Reason     string
}

// Nack increments attempt_count; if still under the effective max it
// requeues (status=queued, action=nack), otherwise it moves to
// status=dead (action=dlq) and reports a dlq_movement anomaly.
func (e *Engine) Nack(ctx context.Context, req NackRequest) error {
	var willDLQ bool

	var nackQueue string

	err := e.gateway.WithTxn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		m, err := e.gateway.GetMessage(ctx, tx, req.ID)
		if err != nil {
			if errors.Is(err, storage.ErrRowNotFound) {
				return fmt.Errorf("%w: message %q", brokererrors.ErrUnknownQueue, req.ID)
			}

			return err
		}

		storedToken := ""
		if m.LockToken != nil {
			storedToken = *m.LockToken
		}

		if storedToken != req.LockToken {
			return brokererrors.ErrLockMismatch
		}

		q, err := e.gateway.GetQueue(ctx, tx, m.Queue)
		if err != nil {
			return err
		}

		nackQueue = m.Queue

		willDLQ, err = e.transitionAfterFailure(ctx, tx, m, q.MaxAttempts, req.ConsumerID, req.Reason, model.ActivityActionNack, 0, 0)

		return err
	})
	if err != nil {
		return err
	}

	e.publishDLQRelay(ctx, willDLQ, nackQueue, req.ID)

	return nil
}

// reaperRequeue applies the same nack-shaped transition on behalf of the
// reaper for an expired lock, carrying the original consumer_id into
// prev_consumer_id (spec.md §4.3 "timeout reaper"), and reports how far
// past its deadline the lock was found so the zombie_message detector
// can compare it against the expected ack timeout.
func (e *Engine) reaperRequeue(ctx context.Context, tx *sql.Tx, m *model.Message, maxAttempts int, ackTimeout time.Duration) (bool, error) {
	prevConsumerID := ""
	if m.ConsumerID != nil {
		prevConsumerID = *m.ConsumerID
	}

	overdueMs := int64(0)
	if m.LockedUntil != nil {
		overdueMs = time.Since(*m.LockedUntil).Milliseconds()
	}

	return e.transitionAfterFailure(
		ctx, tx, m, maxAttempts, prevConsumerID, "timeout", model.ActivityActionTimeout,
		overdueMs, ackTimeout.Milliseconds(),
	)
}

func (e *Engine) transitionAfterFailure(
	ctx context.Context,
	tx *sql.Tx,
	m *model.Message,
	queueMaxAttempts int,
	consumerID string,
	reason string,
	requeueAction model.ActivityAction,
	overdueMs int64,
	expectedTimeoutMs int64,
) (bool, error) {
	effectiveMax := m.EffectiveMaxAttempts(queueMaxAttempts)

	attemptCount, err := e.gateway.BumpAttempt(ctx, tx, m.ID)
	if err != nil {
		return false, err
	}

	prevConsumerID := m.ConsumerID
	prevLockToken := m.LockToken

	willDLQ := attemptCount >= effectiveMax

	status := model.MessageStatusQueued
	action := requeueAction

	if willDLQ {
		status = model.MessageStatusDead
		action = model.ActivityActionDLQ
	}

	errReason := reason

	if err := e.gateway.UpdateMessageStatus(ctx, tx, storage.UpdateMessageStatusParams{ //nolint:exhaustruct
		ID:             m.ID,
		Status:         status,
		ClearLock:      true,
		ErrorReason:    &errReason,
		PrevConsumerID: prevConsumerID,
		PrevLockToken:  prevLockToken,
	}); err != nil {
		return false, err
	}

	attemptsRemaining := effectiveMax - attemptCount
	if attemptsRemaining < 0 {
		attemptsRemaining = 0
	}

	detectorEvent := anomaly.EventKindNack
	if requeueAction == model.ActivityActionTimeout {
		detectorEvent = anomaly.EventKindTimeoutRequeue
	}

	m.AttemptCount = attemptCount

	in := activity.RecordInput{ //nolint:exhaustruct
		Action:            action,
		Queue:             m.Queue,
		Message:           m,
		ConsumerID:        &consumerID,
		PrevConsumerID:    prevConsumerID,
		PrevLockToken:     prevLockToken,
		AttemptsRemaining: ptrInt(attemptsRemaining),
		MaxAttempts:       ptrInt(effectiveMax),
		ErrorReason:       &errReason,
		TriggeredBy:       consumerID,
		Reason:            &reason,
		DetectorEvent:     detectorEvent,
		OverdueMs:         overdueMs,
		ExpectedTimeoutMs: expectedTimeoutMs,
	}

	if _, err := e.activity.Record(ctx, tx, in); err != nil {
		return false, err
	}

	return willDLQ, nil
}

// publishDLQRelay fires the relay notification for a message that just
// moved to status=dead. Called after the enclosing transaction commits,
// so a rolled-back transition never publishes a phantom event.
func (e *Engine) publishDLQRelay(ctx context.Context, willDLQ bool, queue string, messageID string) {
	if !willDLQ || e.relay == nil {
		return
	}

	if pubErr := e.relay.Publish(ctx, string(model.ActivityActionDLQ), queue, messageID); pubErr != nil {
		e.logger.WarnContext(ctx, "relay publish failed", "action", "dlq", "message_id", messageID, "error", pubErr)
	}
}

// TouchRequest identifies the message/lock to extend.
type TouchRequest struct {
	ID        string
	LockToken string
}

// Touch extends locked_until by the message's effective ack_timeout.
// Fails with ErrLockMismatch if the token is wrong.
func (e *Engine) Touch(ctx context.Context, req TouchRequest) error {
	return e.gateway.WithTxn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		m, err := e.gateway.GetMessage(ctx, tx, req.ID)
		if err != nil {
			if errors.Is(err, storage.ErrRowNotFound) {
				return fmt.Errorf("%w: message %q", brokererrors.ErrUnknownQueue, req.ID)
			}

			return err
		}

		storedToken := ""
		if m.LockToken != nil {
			storedToken = *m.LockToken
		}

		if storedToken != req.LockToken {
			return brokererrors.ErrLockMismatch
		}

		q, err := e.gateway.GetQueue(ctx, tx, m.Queue)
		if err != nil {
			return err
		}

		ackTimeout := m.EffectiveAckTimeout(q.EffectiveAckTimeout())
		newLockedUntil := time.Now().UTC().Add(ackTimeout)

		if _, err := tx.ExecContext(ctx, `
			UPDATE messages SET locked_until = $1, updated_at = $1 WHERE id = $2
		`, newLockedUntil, req.ID); err != nil {
			return fmt.Errorf("failed to extend lock: %w", err)
		}

		in := activity.RecordInput{ //nolint:exhaustruct
			Action:      model.ActivityActionTouch,
			Queue:       m.Queue,
			Message:     m,
			ConsumerID:  m.ConsumerID,
			TriggeredBy: derefConsumerID(m.ConsumerID),
		}

		_, err = e.activity.Record(ctx, tx, in)

		return err
	})
}

func derefConsumerID(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}
