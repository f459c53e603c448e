// Package engine implements the queue engine (C4): the lifecycle state
// machine, dequeue selection, timeout reaper, and retry/DLQ logic.
// Every exported operation wraps the storage gateway in a single
// transaction that performs the state change and writes the activity
// entry, per spec.md §4.3.
package engine

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/eser/relayq/pkg/ajan/logfx"
	"github.com/eser/relayq/pkg/broker/activity"
	"github.com/eser/relayq/pkg/broker/anomaly"
	"github.com/eser/relayq/pkg/broker/brokererrors"
	"github.com/eser/relayq/pkg/broker/consumerstats"
	"github.com/eser/relayq/pkg/broker/eventbus"
	"github.com/eser/relayq/pkg/broker/storage"
)

// Config carries engine-wide defaults and actor names, per spec.md §6
// ("Actor names for 'relay' ... and 'manual' ... are configurable").
type Config struct {
	EventChannel        string
	MaxPayloadBytes     int
	RelayActorName      string
	ManualActorName     string
	ReaperInterval      time.Duration
	ReaperJitter        time.Duration
	BulkThreshold       int
	ZombieMultiplier    float64
	ConsumerStatsWindow time.Duration
}

// DefaultConfig documents the engine's out-of-the-box settings.
func DefaultConfig() Config {
	return Config{
		EventChannel:        "queue_events",
		MaxPayloadBytes:     0, // 0 = no cap enforced
		RelayActorName:      "relay",
		ManualActorName:     "manual",
		ReaperInterval:      5 * time.Second,
		ReaperJitter:        1 * time.Second,
		BulkThreshold:       100,
		ZombieMultiplier:    3.0,
		ConsumerStatsWindow: 10 * time.Second,
	}
}

// RelayPublisher is the optional fan-out to an external AMQP exchange
// (spec.md domain stack: "relay adapter"). nil disables it.
type RelayPublisher interface {
	Publish(ctx context.Context, action string, queue string, messageID string) error
}

// Engine is C4.
type Engine struct {
	gateway  *storage.Gateway
	activity *activity.Logger
	bus      *eventbus.Bus
	logger   *logfx.Logger
	idGen    func() string
	cfg      Config
	relay    RelayPublisher
	stats    consumerstats.Tracker

	closed atomic.Bool
}

// New constructs an Engine. relay may be nil. stats may be nil, in which
// case burst_dequeue detection is disabled (RecentDequeueCount stays 0).
func New(
	logger *logfx.Logger,
	gateway *storage.Gateway,
	activityLogger *activity.Logger,
	bus *eventbus.Bus,
	idGen func() string,
	cfg Config,
	relay RelayPublisher,
	stats consumerstats.Tracker,
) *Engine {
	return &Engine{
		gateway:  gateway,
		activity: activityLogger,
		bus:      bus,
		logger:   logger,
		idGen:    idGen,
		cfg:      cfg,
		relay:    relay,
		stats:    stats,
	} //nolint:exhaustruct
}

// Close marks the engine as shutting down: enqueue (and new dequeue long
// polls) start rejecting with ErrClosed; in-flight ack/nack/touch calls
// still complete (spec.md §7 Lifecycle).
func (e *Engine) Close() {
	e.closed.Store(true)
}

func (e *Engine) checkOpen() error {
	if e.closed.Load() {
		return brokererrors.ErrClosed
	}

	return nil
}

func detectorEventFor(action string) anomaly.EventKind {
	switch action {
	case "enqueue":
		return anomaly.EventKindEnqueue
	case "dequeue":
		return anomaly.EventKindDequeue
	case "ack":
		return anomaly.EventKindAck
	case "nack":
		return anomaly.EventKindNack
	case "timeout":
		return anomaly.EventKindTimeoutRequeue
	default:
		return anomaly.EventKindBulkOperation
	}
}
