package model

import "time"

type ActivityAction string

const (
	ActivityActionEnqueue ActivityAction = "enqueue"
	ActivityActionDequeue ActivityAction = "dequeue"
	ActivityActionAck     ActivityAction = "ack"
	ActivityActionNack    ActivityAction = "nack"
	ActivityActionMove    ActivityAction = "move"
	ActivityActionDelete  ActivityAction = "delete"
	ActivityActionClear   ActivityAction = "clear"
	ActivityActionTouch   ActivityAction = "touch"
	ActivityActionTimeout ActivityAction = "timeout"
	ActivityActionRequeue ActivityAction = "requeue"
	ActivityActionDLQ     ActivityAction = "dlq"
)

// ActivityEntry is one append-only audit row. It retains enough
// denormalized fields about the message and queue that it remains
// meaningful after the message row is deleted.
type ActivityEntry struct {
	LogID     string         `json:"log_id"`
	MessageID *string        `json:"message_id,omitempty"`
	Action    ActivityAction `json:"action"`
	Timestamp time.Time      `json:"timestamp"`

	Queue       string  `json:"queue"`
	SourceQueue *string `json:"source_queue,omitempty"`
	DestQueue   *string `json:"dest_queue,omitempty"`

	SourceStatus *MessageStatus `json:"source_status,omitempty"`
	DestStatus   *MessageStatus `json:"dest_status,omitempty"`

	Priority        *int    `json:"priority,omitempty"`
	MessageType     *string `json:"message_type,omitempty"`
	ConsumerID      *string `json:"consumer_id,omitempty"`
	PrevConsumerID  *string `json:"prev_consumer_id,omitempty"`
	LockToken       *string `json:"lock_token,omitempty"`
	PrevLockToken   *string `json:"prev_lock_token,omitempty"`

	AttemptCount      *int `json:"attempt_count,omitempty"`
	MaxAttempts       *int `json:"max_attempts,omitempty"`
	AttemptsRemaining *int `json:"attempts_remaining,omitempty"`

	MessageCreatedAt      *time.Time `json:"message_created_at,omitempty"`
	MessageAgeMs          *int64     `json:"message_age_ms,omitempty"`
	TimeInQueueMs         *int64     `json:"time_in_queue_ms,omitempty"`
	ProcessingTimeMs      *int64     `json:"processing_time_ms,omitempty"`
	TotalProcessingTimeMs *int64     `json:"total_processing_time_ms,omitempty"`

	PayloadSizeBytes *int `json:"payload_size_bytes,omitempty"`

	QueueDepth      *int `json:"queue_depth,omitempty"`
	ProcessingDepth *int `json:"processing_depth,omitempty"`
	DLQDepth        *int `json:"dlq_depth,omitempty"`

	ErrorReason *string `json:"error_reason,omitempty"`
	ErrorCode   *string `json:"error_code,omitempty"`

	TriggeredBy string  `json:"triggered_by"`
	UserID      *string `json:"user_id,omitempty"`
	Reason      *string `json:"reason,omitempty"`

	BatchID   *string `json:"batch_id,omitempty"`
	BatchSize *int    `json:"batch_size,omitempty"`

	PrevAction    *ActivityAction `json:"prev_action,omitempty"`
	PrevTimestamp *time.Time      `json:"prev_timestamp,omitempty"`

	PayloadSnapshot []byte `json:"payload_snapshot,omitempty"`

	AnomalyID *string `json:"anomaly_id,omitempty"`
}
