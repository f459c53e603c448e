package anomaly

import (
	"github.com/eser/relayq/pkg/broker/model"
)

// BuiltinDetectors returns every detector named in spec.md §4.5's table,
// in the order the table lists them (registration order matters, per
// §4.5 "Invocation order is registration order").
func BuiltinDetectors(t Thresholds) []Detector {
	t = t.WithDefaults()

	return []Detector{
		flashMessageDetector{thresholds: t},
		largePayloadDetector{thresholds: t},
		longProcessingDetector{thresholds: t},
		lockStolenDetector{},
		nearDLQDetector{thresholds: t},
		dlqMovementDetector{},
		zombieMessageDetector{thresholds: t},
		burstDequeueDetector{thresholds: t},
		bulkOperationDetector{thresholds: t},
		queueClearedDetector{},
	}
}

func newAnomaly(typ model.AnomalyType, severity model.AnomalySeverity, ctx Context, details map[string]any) *model.Anomaly {
	var messageID *string
	if ctx.Message != nil {
		id := ctx.Message.ID
		messageID = &id
	}

	var consumerID *string
	if ctx.ConsumerID != "" {
		consumerID = &ctx.ConsumerID
	}

	return &model.Anomaly{ //nolint:exhaustruct
		Type:       typ,
		Severity:   severity,
		MessageID:  messageID,
		ConsumerID: consumerID,
		Details:    details,
	}
}

type flashMessageDetector struct {
	thresholds Thresholds
}

func (flashMessageDetector) Name() string        { return "flash_message" }
func (flashMessageDetector) Description() string  { return "message dequeued almost immediately after being enqueued" }
func (flashMessageDetector) Events() []EventKind  { return []EventKind{EventKindDequeue} }
func (flashMessageDetector) DefaultEnabled() bool { return true }

func (d flashMessageDetector) Detect(ctx Context) *model.Anomaly {
	if ctx.TimeInQueueMs < d.thresholds.FlashThresholdMs {
		return newAnomaly(model.AnomalyTypeFlashMessage, model.AnomalySeverityWarning, ctx, map[string]any{
			"time_in_queue_ms": ctx.TimeInQueueMs,
		})
	}

	return nil
}

type largePayloadDetector struct {
	thresholds Thresholds
}

func (largePayloadDetector) Name() string        { return "large_payload" }
func (largePayloadDetector) Description() string  { return "enqueued payload exceeds the configured size threshold" }
func (largePayloadDetector) Events() []EventKind  { return []EventKind{EventKindEnqueue} }
func (largePayloadDetector) DefaultEnabled() bool { return true }

func (d largePayloadDetector) Detect(ctx Context) *model.Anomaly {
	if ctx.Message == nil {
		return nil
	}

	if int64(ctx.Message.PayloadSize) > d.thresholds.LargePayloadBytes {
		return newAnomaly(model.AnomalyTypeLargePayload, model.AnomalySeverityInfo, ctx, map[string]any{
			"payload_size": ctx.Message.PayloadSize,
		})
	}

	return nil
}

type longProcessingDetector struct {
	thresholds Thresholds
}

func (longProcessingDetector) Name() string        { return "long_processing" }
func (longProcessingDetector) Description() string  { return "message took unusually long to be acknowledged" }
func (longProcessingDetector) Events() []EventKind  { return []EventKind{EventKindAck} }
func (longProcessingDetector) DefaultEnabled() bool { return true }

func (d longProcessingDetector) Detect(ctx Context) *model.Anomaly {
	if ctx.ProcessingTimeMs > d.thresholds.LongProcessingMs {
		return newAnomaly(model.AnomalyTypeLongProcessing, model.AnomalySeverityWarning, ctx, map[string]any{
			"processing_time_ms": ctx.ProcessingTimeMs,
		})
	}

	return nil
}

type lockStolenDetector struct{}

func (lockStolenDetector) Name() string        { return "lock_stolen" }
func (lockStolenDetector) Description() string  { return "ack/nack/touch presented a lock token that does not match the current holder" }
func (lockStolenDetector) Events() []EventKind  { return []EventKind{EventKindAck} }
func (lockStolenDetector) DefaultEnabled() bool { return true }

func (d lockStolenDetector) Detect(ctx Context) *model.Anomaly {
	if ctx.ExpectedLockToken != "" && ctx.ExpectedLockToken != ctx.ReceivedLockToken {
		return newAnomaly(model.AnomalyTypeLockStolen, model.AnomalySeverityCritical, ctx, map[string]any{
			"expected_lock_token": ctx.ExpectedLockToken,
			"received_lock_token": ctx.ReceivedLockToken,
		})
	}

	return nil
}

type nearDLQDetector struct {
	thresholds Thresholds
}

func (nearDLQDetector) Name() string        { return "near_dlq" }
func (nearDLQDetector) Description() string  { return "message is within one or few attempts of the dead-letter queue" }
func (nearDLQDetector) Events() []EventKind  { return []EventKind{EventKindDequeue} }
func (nearDLQDetector) DefaultEnabled() bool { return true }

func (d nearDLQDetector) Detect(ctx Context) *model.Anomaly {
	if ctx.AttemptsRemaining <= d.thresholds.NearDLQRemaining {
		return newAnomaly(model.AnomalyTypeNearDLQ, model.AnomalySeverityWarning, ctx, map[string]any{
			"attempts_remaining": ctx.AttemptsRemaining,
		})
	}

	return nil
}

type dlqMovementDetector struct{}

func (dlqMovementDetector) Name() string       { return "dlq_movement" }
func (dlqMovementDetector) Description() string { return "message exhausted its retry budget and moved to the dead-letter queue" }
func (dlqMovementDetector) Events() []EventKind {
	return []EventKind{EventKindNack, EventKindTimeoutRequeue}
}
func (dlqMovementDetector) DefaultEnabled() bool { return true }

func (d dlqMovementDetector) Detect(ctx Context) *model.Anomaly {
	if ctx.AttemptCount >= ctx.MaxAttempts {
		return newAnomaly(model.AnomalyTypeDLQMovement, model.AnomalySeverityWarning, ctx, map[string]any{
			"attempt_count": ctx.AttemptCount,
			"max_attempts":  ctx.MaxAttempts,
		})
	}

	return nil
}

type zombieMessageDetector struct {
	thresholds Thresholds
}

func (zombieMessageDetector) Name() string        { return "zombie_message" }
func (zombieMessageDetector) Description() string  { return "visibility timeout elapsed by far more than the expected margin" }
func (zombieMessageDetector) Events() []EventKind  { return []EventKind{EventKindTimeoutRequeue} }
func (zombieMessageDetector) DefaultEnabled() bool { return true }

func (d zombieMessageDetector) Detect(ctx Context) *model.Anomaly {
	if ctx.ExpectedTimeoutMs <= 0 {
		return nil
	}

	if float64(ctx.OverdueMs) > float64(ctx.ExpectedTimeoutMs)*d.thresholds.ZombieMultiplier {
		return newAnomaly(model.AnomalyTypeZombieMessage, model.AnomalySeverityCritical, ctx, map[string]any{
			"overdue_ms":          ctx.OverdueMs,
			"expected_timeout_ms": ctx.ExpectedTimeoutMs,
		})
	}

	return nil
}

type burstDequeueDetector struct {
	thresholds Thresholds
}

func (burstDequeueDetector) Name() string        { return "burst_dequeue" }
func (burstDequeueDetector) Description() string  { return "a consumer is pulling messages at an unusually high rate" }
func (burstDequeueDetector) Events() []EventKind  { return []EventKind{EventKindDequeue} }
func (burstDequeueDetector) DefaultEnabled() bool { return true }

func (d burstDequeueDetector) Detect(ctx Context) *model.Anomaly {
	if ctx.RecentDequeueCount >= d.thresholds.BurstCount {
		return newAnomaly(model.AnomalyTypeBurstDequeue, model.AnomalySeverityWarning, ctx, map[string]any{
			"recent_dequeue_count": ctx.RecentDequeueCount,
			"window_seconds":       d.thresholds.BurstWindowSeconds,
		})
	}

	return nil
}

type bulkOperationDetector struct {
	thresholds Thresholds
}

func (bulkOperationDetector) Name() string { return "bulk_operation" }
func (bulkOperationDetector) Description() string {
	return "a bulk enqueue/delete/move affected an unusually large number of messages"
}
func (bulkOperationDetector) Events() []EventKind  { return []EventKind{EventKindBulkOperation} }
func (bulkOperationDetector) DefaultEnabled() bool { return true }

func (d bulkOperationDetector) Detect(ctx Context) *model.Anomaly {
	if ctx.BulkOperationType == "clear" {
		// queue_cleared has its own detector and its own (lower) threshold.
		return nil
	}

	if ctx.AffectedCount < d.thresholds.BulkThreshold {
		return nil
	}

	var typ model.AnomalyType

	switch ctx.BulkOperationType {
	case "enqueue":
		typ = model.AnomalyTypeBulkEnqueue
	case "delete":
		typ = model.AnomalyTypeBulkDelete
	case "move":
		typ = model.AnomalyTypeBulkMove
	default:
		return nil
	}

	return newAnomaly(typ, model.AnomalySeverityInfo, ctx, map[string]any{
		"affected_count": ctx.AffectedCount,
		"operation":      ctx.BulkOperationType,
	})
}

type queueClearedDetector struct{}

func (queueClearedDetector) Name() string        { return "queue_cleared" }
func (queueClearedDetector) Description() string  { return "an entire queue status was cleared" }
func (queueClearedDetector) Events() []EventKind  { return []EventKind{EventKindBulkOperation} }
func (queueClearedDetector) DefaultEnabled() bool { return true }

func (d queueClearedDetector) Detect(ctx Context) *model.Anomaly {
	if ctx.BulkOperationType != "clear" || ctx.AffectedCount <= 0 {
		return nil
	}

	return newAnomaly(model.AnomalyTypeQueueCleared, model.AnomalySeverityWarning, ctx, map[string]any{
		"affected_count": ctx.AffectedCount,
	})
}
