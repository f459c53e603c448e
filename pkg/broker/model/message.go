package model

import "time"

type MessageStatus string

const (
	MessageStatusQueued       MessageStatus = "queued"
	MessageStatusProcessing   MessageStatus = "processing"
	MessageStatusAcknowledged MessageStatus = "acknowledged"
	MessageStatusDead         MessageStatus = "dead"
	MessageStatusArchived     MessageStatus = "archived"
)

const (
	MinPriority     = 0
	MaxPriority     = 9
	DefaultPriority = 0
)

// Message is one unit of work owned by exactly one Queue.
//
// Invariants (enforced by pkg/broker/engine, not by this type):
//   - Status == MessageStatusProcessing implies ConsumerID, LockToken and
//     LockedUntil are all non-nil.
//   - Status in {Acknowledged, Dead, Archived} implies ConsumerID and
//     LockToken are nil.
//   - AttemptCount <= EffectiveMaxAttempts(queue).
type Message struct {
	ID                string  `json:"id"`
	Queue             string  `json:"queue"`
	Type              *string `json:"type,omitempty"`
	Priority          int     `json:"priority"`
	Payload           []byte  `json:"payload"`
	ContentType       *string `json:"content_type,omitempty"`
	PayloadSize       int     `json:"payload_size"`
	Status            MessageStatus `json:"status"`
	AttemptCount      int           `json:"attempt_count"`
	CustomMaxAttempts *int          `json:"custom_max_attempts,omitempty"`
	CustomAckTimeout  *time.Duration `json:"custom_ack_timeout,omitempty"`

	ConsumerID *string `json:"consumer_id,omitempty"`
	LockToken  *string `json:"lock_token,omitempty"`
	LockedAt   *time.Time `json:"locked_at,omitempty"`
	LockedUntil *time.Time `json:"locked_until,omitempty"`

	CreatedAt      time.Time  `json:"created_at"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`

	ErrorReason *string `json:"error_reason,omitempty"`

	PrevConsumerID *string `json:"prev_consumer_id,omitempty"`
	PrevLockToken  *string `json:"prev_lock_token,omitempty"`
}

// EffectiveMaxAttempts returns the message's custom override if set,
// otherwise the queue default.
func (m *Message) EffectiveMaxAttempts(queueMaxAttempts int) int {
	if m.CustomMaxAttempts != nil {
		return *m.CustomMaxAttempts
	}

	return queueMaxAttempts
}

// EffectiveAckTimeout returns the message's custom override if set,
// otherwise the queue default.
func (m *Message) EffectiveAckTimeout(queueAckTimeout time.Duration) time.Duration {
	if m.CustomAckTimeout != nil {
		return *m.CustomAckTimeout
	}

	return queueAckTimeout
}

// AttemptsRemaining returns how many attempts remain before the message
// moves to status=dead.
func (m *Message) AttemptsRemaining(effectiveMaxAttempts int) int {
	remaining := effectiveMaxAttempts - m.AttemptCount
	if remaining < 0 {
		return 0
	}

	return remaining
}

// ClampPriority clamps p to the valid [MinPriority, MaxPriority] range.
func ClampPriority(p int) int {
	if p < MinPriority {
		return MinPriority
	}

	if p > MaxPriority {
		return MaxPriority
	}

	return p
}
