// Package activity implements the activity logger (C3): the single
// record(...) entry point, called from inside the queue engine's
// transaction, that writes the audit row, invokes the detector
// registry, and arranges for the post-commit NOTIFY.
package activity

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/eser/relayq/pkg/ajan/logfx"
	"github.com/eser/relayq/pkg/broker/anomaly"
	"github.com/eser/relayq/pkg/broker/model"
	"github.com/eser/relayq/pkg/broker/storage"
)

// IDGenerator mints opaque unique ids, grounded on pkg/ajan/lib.IDsGenerateUnique.
type IDGenerator func() string

// Logger is C3. It depends one-way on a detector registry interface
// (spec.md §9 Design Note 2: "engine depends on logger; logger depends
// on a detector-registry interface; detectors never call back").
type Logger struct {
	gateway   *storage.Gateway
	detectors *anomaly.Registry
	logger    *logfx.Logger
	idGen     IDGenerator
}

// New constructs a Logger bound to a storage gateway and detector
// registry.
func New(logger *logfx.Logger, gateway *storage.Gateway, detectors *anomaly.Registry, idGen IDGenerator) *Logger {
	return &Logger{
		gateway:   gateway,
		detectors: detectors,
		logger:    logger,
		idGen:     idGen,
	}
}

// RecordInput carries everything the engine already knows about the
// event it is recording; Logger joins it with a queue-depth snapshot and
// the detector registry's verdict.
type RecordInput struct {
	Action  model.ActivityAction
	Queue   string
	Message *model.Message

	SourceQueue *string
	DestQueue   *string

	SourceStatus *model.MessageStatus
	DestStatus   *model.MessageStatus

	ConsumerID     *string
	PrevConsumerID *string
	PrevLockToken  *string

	AttemptsRemaining *int
	MaxAttempts       *int

	TimeInQueueMs         *int64
	ProcessingTimeMs      *int64
	TotalProcessingTimeMs *int64

	ErrorReason *string
	ErrorCode   *string

	TriggeredBy string
	UserID      *string
	Reason      *string

	BatchID   *string
	BatchSize *int

	PayloadSnapshot []byte

	DetectorEvent      anomaly.EventKind
	ExpectedLockToken   string
	ReceivedLockToken   string
	OverdueMs           int64
	ExpectedTimeoutMs   int64
	RecentDequeueCount  int
	BulkOperationType   string
	AffectedCount       int
	Thresholds          anomaly.Thresholds
}

// Record builds the activity row, runs the detector registry against
// the captured context, persists the first reported anomaly's reference
// on the row (and every reported anomaly in the anomalies table), and
// inserts the row — all inside tx. The NOTIFY is also issued on tx via
// Gateway.Notify; Postgres delivers it to LISTENers only once this
// transaction commits, and drops it if the transaction rolls back.
func (l *Logger) Record(ctx context.Context, tx *sql.Tx, in RecordInput) (*model.ActivityEntry, error) {
	ctx, span := l.logger.StartSpan(ctx, "activity.Record", "action", string(in.Action), "queue", in.Queue)
	defer span.End()

	counts, err := l.gateway.CountsByQueue(ctx, tx, in.Queue)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot queue depth: %w", err)
	}

	entry := model.ActivityEntry{ //nolint:exhaustruct
		LogID:                 l.idGen(),
		Action:                in.Action,
		Timestamp:             time.Now().UTC(),
		Queue:                 in.Queue,
		SourceQueue:           in.SourceQueue,
		DestQueue:             in.DestQueue,
		SourceStatus:          in.SourceStatus,
		DestStatus:            in.DestStatus,
		ConsumerID:            in.ConsumerID,
		PrevConsumerID:        in.PrevConsumerID,
		PrevLockToken:         in.PrevLockToken,
		AttemptsRemaining:     in.AttemptsRemaining,
		MaxAttempts:           in.MaxAttempts,
		TimeInQueueMs:         in.TimeInQueueMs,
		ProcessingTimeMs:      in.ProcessingTimeMs,
		TotalProcessingTimeMs: in.TotalProcessingTimeMs,
		ErrorReason:           in.ErrorReason,
		ErrorCode:             in.ErrorCode,
		TriggeredBy:           in.TriggeredBy,
		UserID:                in.UserID,
		Reason:                in.Reason,
		BatchID:               in.BatchID,
		BatchSize:             in.BatchSize,
		PayloadSnapshot:       in.PayloadSnapshot,
		QueueDepth:            intPtr(counts.Queued),
		ProcessingDepth:       intPtr(counts.Processing),
		DLQDepth:              intPtr(counts.Dead),
	}

	if in.Message != nil {
		entry.MessageID = &in.Message.ID
		entry.Priority = &in.Message.Priority
		entry.MessageType = in.Message.Type
		entry.AttemptCount = &in.Message.AttemptCount
		entry.PayloadSizeBytes = &in.Message.PayloadSize
		entry.MessageCreatedAt = &in.Message.CreatedAt
		entry.LockToken = in.Message.LockToken
	}

	detectorCtx := anomaly.Context{ //nolint:exhaustruct
		Event:              in.DetectorEvent,
		Queue:              in.Queue,
		Message:            in.Message,
		TimeInQueueMs:      derefInt64(in.TimeInQueueMs),
		ProcessingTimeMs:   derefInt64(in.ProcessingTimeMs),
		OverdueMs:          in.OverdueMs,
		ExpectedTimeoutMs:  in.ExpectedTimeoutMs,
		AttemptsRemaining:  derefInt(in.AttemptsRemaining),
		AttemptCount:       derefFromMessageAttemptCount(in.Message),
		MaxAttempts:        derefInt(in.MaxAttempts),
		ExpectedLockToken:  in.ExpectedLockToken,
		ReceivedLockToken:  in.ReceivedLockToken,
		BulkOperationType:  in.BulkOperationType,
		AffectedCount:      in.AffectedCount,
		RecentDequeueCount: in.RecentDequeueCount,
		Thresholds:         in.Thresholds,
	}

	if in.ConsumerID != nil {
		detectorCtx.ConsumerID = *in.ConsumerID
	}

	anomalies := l.detectors.Detect(detectorCtx)

	for i, a := range anomalies {
		a.ID = l.idGen()
		a.CreatedAt = entry.Timestamp

		if i == 0 {
			entry.AnomalyID = &a.ID
		}

		if err := l.gateway.AppendAnomaly(ctx, tx, *a); err != nil {
			return nil, fmt.Errorf("failed to persist anomaly: %w", err)
		}
	}

	if err := l.gateway.AppendActivity(ctx, tx, entry); err != nil {
		return nil, fmt.Errorf("failed to append activity: %w", err)
	}

	// pg_notify only delivers to LISTENers once this transaction commits,
	// so issuing it here already satisfies the "post-commit NOTIFY"
	// requirement without a separate commit hook.
	notifyPayload := storage.NotifyPayload{
		Queue:     in.Queue,
		Action:    string(in.Action),
		Timestamp: entry.Timestamp,
	}

	if in.Message != nil {
		notifyPayload.MessageID = in.Message.ID
	}

	if err := l.gateway.Notify(ctx, tx, notifyPayload); err != nil {
		return nil, fmt.Errorf("failed to notify event channel: %w", err)
	}

	return &entry, nil
}

func intPtr(v int) *int { return &v }

func derefInt64(v *int64) int64 {
	if v == nil {
		return 0
	}

	return *v
}

func derefInt(v *int) int {
	if v == nil {
		return 0
	}

	return *v
}

func derefFromMessageAttemptCount(m *model.Message) int {
	if m == nil {
		return 0
	}

	return m.AttemptCount
}
