package model

import "time"

type QueueType string

const (
	QueueTypeStandard    QueueType = "standard"
	QueueTypeUnlogged    QueueType = "unlogged"
	QueueTypePartitioned QueueType = "partitioned"
)

type PartitionInterval string

const (
	PartitionIntervalHourly PartitionInterval = "hourly"
	PartitionIntervalDaily  PartitionInterval = "daily"
	PartitionIntervalWeekly PartitionInterval = "weekly"
)

// Queue is a named, independently configured message channel.
//
// Name is globally unique; renaming it must atomically update every
// foreign-key reference (messages, activity_log, anomalies).
type Queue struct {
	Name              string             `json:"name"`
	Type              QueueType          `json:"type"`
	AckTimeoutSeconds int                `json:"ack_timeout_seconds"`
	MaxAttempts       int                `json:"max_attempts"`
	PartitionInterval *PartitionInterval `json:"partition_interval,omitempty"`
	RetentionInterval *time.Duration     `json:"retention_interval,omitempty"`
	Description       *string            `json:"description,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// EffectiveAckTimeout returns the queue's ack_timeout as a duration.
func (q *Queue) EffectiveAckTimeout() time.Duration {
	return time.Duration(q.AckTimeoutSeconds) * time.Second
}
