package admin

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/eser/relayq/pkg/ajan/logfx"
	"github.com/eser/relayq/pkg/broker/model"
)

// surfaceMetrics mirrors every queue's depth into OTel gauges each time
// GetMetrics is called, the same fluent builder the teacher's services
// use for request counters (pkg/ajan/logfx.MetricsBuilder).
type surfaceMetrics struct {
	queueDepth      *logfx.GaugeMetric
	processingDepth *logfx.GaugeMetric
	deadDepth       *logfx.GaugeMetric
}

func newSurfaceMetrics(logger *logfx.Logger) *surfaceMetrics {
	builder := logger.NewMetricsBuilder("relayq.admin")

	queueDepth, err := builder.Gauge("relayq_queue_depth", "queued message count per queue").Build()
	if err != nil {
		queueDepth = nil
	}

	processingDepth, err := builder.Gauge("relayq_processing_depth", "processing message count per queue").Build()
	if err != nil {
		processingDepth = nil
	}

	deadDepth, err := builder.Gauge("relayq_dead_depth", "dead-lettered message count per queue").Build()
	if err != nil {
		deadDepth = nil
	}

	return &surfaceMetrics{
		queueDepth:      queueDepth,
		processingDepth: processingDepth,
		deadDepth:       deadDepth,
	}
}

func (m *surfaceMetrics) record(ctx context.Context, queue string, counts QueueSummary) {
	if m.queueDepth != nil {
		m.queueDepth.Set(ctx, int64(counts.MessageCount), "queue", queue)
	}

	if m.processingDepth != nil {
		m.processingDepth.Set(ctx, int64(counts.ProcessingCount), "queue", queue)
	}

	if m.deadDepth != nil {
		m.deadDepth.Set(ctx, int64(counts.DeadCount), "queue", queue)
	}
}

// QueueMetrics is one queue's aggregate depth snapshot plus the
// dequeue-rate stats of every consumer currently holding a lock there.
type QueueMetrics struct {
	Queue     QueueSummary
	Consumers []model.ConsumerStats
}

// Metrics is the full result of getMetrics: one entry per queue
// (spec.md §4.7 "getMetrics: aggregate counts plus per-consumer
// stats").
type Metrics struct {
	Queues []QueueMetrics
}

// GetMetrics aggregates per-queue counts and, when a consumer-stats
// tracker is configured, the dequeue-rate view for every consumer
// currently holding a processing lock in that queue.
func (s *Surface) GetMetrics(ctx context.Context) (*Metrics, error) {
	summaries, err := s.ListQueues(ctx)
	if err != nil {
		return nil, fmt.Errorf("get metrics: %w", err)
	}

	out := &Metrics{Queues: make([]QueueMetrics, len(summaries))}

	for i, summary := range summaries {
		s.metrics.record(ctx, summary.Name, summary)

		qm := QueueMetrics{Queue: summary}

		if s.stats != nil {
			var consumerIDs []string

			err := s.gateway.WithTxn(ctx, func(ctx context.Context, tx *sql.Tx) error {
				ids, err := s.gateway.DistinctConsumers(ctx, tx, summary.Name)
				consumerIDs = ids

				return err
			})
			if err != nil {
				return nil, fmt.Errorf("get metrics: %w", err)
			}

			for _, id := range consumerIDs {
				if stats, ok := s.stats.Stats(ctx, id); ok {
					qm.Consumers = append(qm.Consumers, stats)
				}
			}
		}

		out.Queues[i] = qm
	}

	return out, nil
}
