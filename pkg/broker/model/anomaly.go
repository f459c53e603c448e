package model

import "time"

type AnomalySeverity string

const (
	AnomalySeverityCritical AnomalySeverity = "critical"
	AnomalySeverityWarning  AnomalySeverity = "warning"
	AnomalySeverityInfo     AnomalySeverity = "info"
)

type AnomalyType string

const (
	AnomalyTypeFlashMessage   AnomalyType = "flash_message"
	AnomalyTypeLargePayload   AnomalyType = "large_payload"
	AnomalyTypeLongProcessing AnomalyType = "long_processing"
	AnomalyTypeLockStolen     AnomalyType = "lock_stolen"
	AnomalyTypeNearDLQ        AnomalyType = "near_dlq"
	AnomalyTypeDLQMovement    AnomalyType = "dlq_movement"
	AnomalyTypeZombieMessage  AnomalyType = "zombie_message"
	AnomalyTypeBurstDequeue   AnomalyType = "burst_dequeue"
	AnomalyTypeBulkEnqueue    AnomalyType = "bulk_enqueue"
	AnomalyTypeBulkDelete     AnomalyType = "bulk_delete"
	AnomalyTypeBulkMove       AnomalyType = "bulk_move"
	AnomalyTypeQueueCleared   AnomalyType = "queue_cleared"
)

// Anomaly is a classified observation attached to the activity log
// entry that produced it. It never alters message state.
type Anomaly struct {
	ID         string          `json:"id"`
	Type       AnomalyType     `json:"type"`
	Severity   AnomalySeverity `json:"severity"`
	MessageID  *string         `json:"message_id,omitempty"`
	ConsumerID *string         `json:"consumer_id,omitempty"`
	Details    map[string]any  `json:"details,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// ConsumerStats is the derived per-consumer view updated on each
// successful dequeue.
type ConsumerStats struct {
	ConsumerID    string    `json:"consumer_id"`
	LastDequeueTS time.Time `json:"last_dequeue_ts"`
	DequeueCount  int64     `json:"dequeue_count"`
}
