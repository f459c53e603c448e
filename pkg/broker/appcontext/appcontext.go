// Package appcontext wires together the broker's adapters and domain
// services into one constructible unit, grounded on the teacher's
// pkg/api/adapters/appcontext.AppContext: a single New+Init pair that
// every cmd/broker-* binary shares instead of re-deriving wiring.
package appcontext

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/eser/relayq/pkg/ajan/configfx"
	"github.com/eser/relayq/pkg/ajan/connfx"
	"github.com/eser/relayq/pkg/ajan/lib"
	"github.com/eser/relayq/pkg/ajan/logfx"
	"github.com/eser/relayq/pkg/broker/activity"
	"github.com/eser/relayq/pkg/broker/admin"
	"github.com/eser/relayq/pkg/broker/anomaly"
	"github.com/eser/relayq/pkg/broker/consumerstats"
	"github.com/eser/relayq/pkg/broker/engine"
	"github.com/eser/relayq/pkg/broker/enqueuebuf"
	"github.com/eser/relayq/pkg/broker/eventbus"
	"github.com/eser/relayq/pkg/broker/relay"
	"github.com/eser/relayq/pkg/broker/storage"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

var ErrInitFailed = errors.New("failed to initialize app context")

// AppContext holds every constructed adapter and domain service, exactly
// one instance per process (cmd/broker-serve, cmd/broker-admin).
type AppContext struct {
	Config  *AppConfig
	Logger  *logfx.Logger
	Conns   *connfx.Registry

	Gateway  *storage.Gateway
	Registry *anomaly.Registry
	Activity *activity.Logger
	Bus      *eventbus.Bus
	Stats    consumerstats.Tracker
	Relay    engine.RelayPublisher

	EnqueueBuf *enqueuebuf.Buffer
	Engine     *engine.Engine
	Admin      *admin.Surface
}

// New returns a zero-value AppContext; call Init to populate it.
func New() *AppContext {
	return &AppContext{} //nolint:exhaustruct
}

// Init loads configuration, constructs every adapter in dependency order
// (C1 storage gateway, C2 detector registry, C3 activity logger,
// consumer stats tracker, relay publisher, C6 event bus, C4 engine, C5
// enqueue buffer, C7 admin surface), and returns
// once the broker is ready to serve operations. It does not start the
// event-bus LISTEN connection or the reaper loop; callers that need those
// (cmd/broker-serve) start them explicitly after Init returns.
func (a *AppContext) Init(ctx context.Context) error {
	// ----------------------------------------------------
	// Adapter: Config
	// ----------------------------------------------------
	cl := configfx.NewConfigManager()

	a.Config = &AppConfig{} //nolint:exhaustruct

	if err := cl.LoadDefaults(a.Config); err != nil {
		return fmt.Errorf("%w: %w", ErrInitFailed, err)
	}

	// ----------------------------------------------------
	// Adapter: Logger
	// ----------------------------------------------------
	var err error

	a.Logger = logfx.NewLogger(
		logfx.WithConfig(&a.Config.Log),
		logfx.WithWriter(os.Stdout),
	)

	a.Logger.InfoContext(
		ctx,
		"[AppContext] Initialization in progress",
		slog.String("module", "appcontext"),
		slog.String("name", a.Config.AppName),
		slog.String("environment", a.Config.AppEnv),
	)

	// ----------------------------------------------------
	// Adapter: Connections
	// ----------------------------------------------------
	a.Conns = connfx.NewRegistry()
	a.Conns.RegisterFactory(connfx.NewSQLConnectionFactory("postgres"))
	a.Conns.RegisterFactory(connfx.NewSQLConnectionFactory("sqlite"))
	a.Conns.RegisterFactory(connfx.NewRedisConnectionFactory("redis"))
	a.Conns.RegisterFactory(connfx.NewAMQPConnectionFactory("amqp"))

	if err := a.Conns.LoadFromConfig(ctx, &a.Config.Conn); err != nil {
		return fmt.Errorf("%w: %w", ErrInitFailed, err)
	}

	db, err := connfx.GetTypedConnection[*sql.DB](a.Conns, connfx.DefaultConnection)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInitFailed, err)
	}

	// ----------------------------------------------------
	// C1: Storage gateway
	// ----------------------------------------------------
	a.Gateway = storage.New(a.Logger, db, a.Config.Engine.EventChannel)

	// ----------------------------------------------------
	// C2: Anomaly detector registry
	// ----------------------------------------------------
	a.Registry = anomaly.NewDefaultRegistry(thresholdsFromConfig(a.Config.Thresholds).WithDefaults())

	// ----------------------------------------------------
	// C3: Activity logger
	// ----------------------------------------------------
	a.Activity = activity.New(a.Logger, a.Gateway, a.Registry, lib.IDsGenerateUnique)

	// ----------------------------------------------------
	// Consumer stats tracker (Redis-backed when configured, else
	// in-process fallback)
	// ----------------------------------------------------
	if redisConn := a.Conns.GetNamed(a.Config.ConsumerStats.ConnectionName); redisConn != nil {
		redisClient, rerr := connfx.GetTypedConnection[*redis.Client](a.Conns, a.Config.ConsumerStats.ConnectionName)
		if rerr != nil {
			return fmt.Errorf("%w: %w", ErrInitFailed, rerr)
		}

		a.Stats = consumerstats.NewRedis(redisClient, a.Config.ConsumerStats.TTL)
	} else {
		a.Stats = consumerstats.NewInProcess()
	}

	// ----------------------------------------------------
	// Relay publisher (optional AMQP fan-out)
	// ----------------------------------------------------
	if a.Config.Relay.Enabled {
		publisher, rerr := relay.NewAMQPPublisher(a.Conns, a.Config.Relay.ConnectionName, a.Config.Relay.QueueName)
		if rerr != nil {
			return fmt.Errorf("%w: %w", ErrInitFailed, rerr)
		}

		a.Relay = publisher
	}

	// ----------------------------------------------------
	// C6: Event bus (subscriber fan-out only; Start wires LISTEN)
	// ----------------------------------------------------
	a.Bus = eventbus.New(a.Config.EventBus.SubscriberBufferSize)

	// ----------------------------------------------------
	// C4: Queue engine
	// ----------------------------------------------------
	engineCfg := engine.Config{
		EventChannel:        a.Config.Engine.EventChannel,
		MaxPayloadBytes:     a.Config.Engine.MaxPayloadBytes,
		RelayActorName:      a.Config.Engine.RelayActorName,
		ManualActorName:     a.Config.Engine.ManualActorName,
		ReaperInterval:      a.Config.Engine.ReaperInterval,
		ReaperJitter:        a.Config.Engine.ReaperJitter,
		BulkThreshold:       a.Config.Engine.BulkThreshold,
		ZombieMultiplier:    a.Config.Engine.ZombieMultiplier,
		ConsumerStatsWindow: a.Config.Engine.ConsumerStatsWindow,
	}

	a.Engine = engine.New(
		a.Logger,
		a.Gateway,
		a.Activity,
		a.Bus,
		lib.IDsGenerateUnique,
		engineCfg,
		a.Relay,
		a.Stats,
	)

	// ----------------------------------------------------
	// C5: Enqueue buffer, fronting the engine's batch enqueue path
	// ----------------------------------------------------
	a.EnqueueBuf = enqueuebuf.New(
		enqueuebuf.Config{
			Enabled:   a.Config.EnqueueBuffer.Enabled,
			MaxSize:   a.Config.EnqueueBuffer.MaxSize,
			MaxWaitMs: a.Config.EnqueueBuffer.MaxWaitMs,
		},
		func(ctx context.Context, queue string, reqs []enqueuebuf.Request) ([]string, error) {
			batch := make([]engine.EnqueueRequest, len(reqs))
			for i, r := range reqs {
				batch[i] = engine.EnqueueRequest{
					Type:              r.Type,
					Priority:          r.Priority,
					Payload:           r.Payload,
					ContentType:       r.ContentType,
					CustomMaxAttempts: r.CustomMaxAttempts,
					CustomAckTimeout:  r.CustomAckTimeout,
				}
			}

			return a.Engine.EnqueueBatch(ctx, queue, batch)
		},
	)

	// ----------------------------------------------------
	// C7: Administration surface
	// ----------------------------------------------------
	a.Admin = admin.New(
		a.Logger,
		a.Gateway,
		a.Engine,
		a.Stats,
		lib.IDsGenerateUnique,
		adminConfigFrom(a.Config.Admin),
	)

	return nil
}

// StartEventBus opens the gateway's dedicated LISTEN connection against
// the default connection's DSN. Only meaningful for the postgres
// protocol; callers running entirely on the sqlite test adapter should
// skip this and rely on direct in-process notification only.
func (a *AppContext) StartEventBus(ctx context.Context) error {
	target, ok := a.Config.Conn.Targets[connfx.DefaultConnection]
	if !ok || target.DSN == "" {
		return nil
	}

	return a.Bus.Start(ctx, a.Gateway, target.DSN)
}

// Close releases the gateway's LISTEN connection and the enqueue
// buffer's pending timers, then closes every registered connection.
func (a *AppContext) Close(ctx context.Context) error {
	a.EnqueueBuf.Close(ctx)

	if err := a.Gateway.Close(ctx); err != nil {
		a.Logger.ErrorContext(ctx, "failed to close storage gateway", "error", err)
	}

	if err := a.Conns.Close(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrInitFailed, err)
	}

	return nil
}
