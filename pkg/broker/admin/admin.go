// Package admin implements the administration surface (C7): queue
// CRUD, purge/delete, and aggregate metrics for operator tooling
// (cmd/broker-admin and any dashboard built on top of it). Create,
// update and rename each run inside a single transaction, so a failed
// rename leaves the old name intact. DeleteQueue reads the queue, clears
// its messages (force) and removes the definition in separate
// transactions, so a failure after the clear leaves the definition in
// place with its messages already removed. Grounded on the teacher's Repository/Service method shapes
// (pkg/api/business/stories/service.go).
package admin

import (
	"time"

	"github.com/eser/relayq/pkg/ajan/logfx"
	"github.com/eser/relayq/pkg/broker/consumerstats"
	"github.com/eser/relayq/pkg/broker/engine"
	"github.com/eser/relayq/pkg/broker/storage"
)

// Config carries defaults for queue creation and the actor-token secret
// used to authorize privileged operations (force-delete, purge).
type Config struct {
	DefaultAckTimeout time.Duration
	DefaultMaxRetries int
	ActorTokenSecret  []byte
}

// DefaultConfig documents the administration surface's out-of-the-box
// settings.
func DefaultConfig() Config {
	return Config{
		DefaultAckTimeout: 30 * time.Second,
		DefaultMaxRetries: 3,
		ActorTokenSecret:  nil,
	}
}

// Surface is C7.
type Surface struct {
	gateway *storage.Gateway
	engine  *engine.Engine
	stats   consumerstats.Tracker
	logger  *logfx.Logger
	idGen   func() string
	cfg     Config

	metrics *surfaceMetrics
}

// New constructs a Surface. stats may be nil, in which case GetMetrics
// reports queue counts only and omits per-consumer stats.
func New(
	logger *logfx.Logger,
	gateway *storage.Gateway,
	eng *engine.Engine,
	stats consumerstats.Tracker,
	idGen func() string,
	cfg Config,
) *Surface {
	return &Surface{
		gateway: gateway,
		engine:  eng,
		stats:   stats,
		logger:  logger,
		idGen:   idGen,
		cfg:     cfg,
		metrics: newSurfaceMetrics(logger),
	}
}
