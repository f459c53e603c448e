package appcontext

import (
	"time"

	"github.com/eser/relayq/pkg/ajan"
	"github.com/eser/relayq/pkg/broker/admin"
	"github.com/eser/relayq/pkg/broker/anomaly"
)

// EngineConfig mirrors engine.Config as conf-tagged fields so it can be
// populated by configfx.ConfigManager, matching the shape of every other
// ajan-managed config struct in this module.
type EngineConfig struct {
	EventChannel        string        `conf:"event_channel"         default:"queue_events"`
	MaxPayloadBytes     int           `conf:"max_payload_bytes"     default:"0"`
	RelayActorName      string        `conf:"relay_actor_name"      default:"relay"`
	ManualActorName     string        `conf:"manual_actor_name"     default:"manual"`
	ReaperInterval      time.Duration `conf:"reaper_interval"       default:"5s"`
	ReaperJitter        time.Duration `conf:"reaper_jitter"         default:"1s"`
	BulkThreshold       int           `conf:"bulk_threshold"        default:"100"`
	ZombieMultiplier    float64       `conf:"zombie_multiplier"     default:"3.0"`
	ConsumerStatsWindow time.Duration `conf:"consumer_stats_window" default:"10s"`
}

// AdminConfig mirrors admin.Config.
type AdminConfig struct {
	DefaultAckTimeout time.Duration `conf:"default_ack_timeout" default:"30s"`
	DefaultMaxRetries int           `conf:"default_max_retries" default:"3"`
	ActorTokenSecret  string        `conf:"actor_token_secret"`
}

// ThresholdsConfig mirrors anomaly.Thresholds.
type ThresholdsConfig struct {
	FlashThresholdMs   int64   `conf:"flash_threshold_ms"   default:"50"`
	LargePayloadBytes  int64   `conf:"large_payload_bytes"  default:"262144"`
	LongProcessingMs   int64   `conf:"long_processing_ms"   default:"30000"`
	NearDLQRemaining   int     `conf:"near_dlq_remaining"   default:"1"`
	ZombieMultiplier   float64 `conf:"zombie_multiplier"    default:"3.0"`
	BurstCount         int     `conf:"burst_count"          default:"50"`
	BurstWindowSeconds int64   `conf:"burst_window_seconds" default:"10"`
	BulkThreshold      int     `conf:"bulk_threshold"       default:"100"`
}

// EnqueueBufferConfig mirrors enqueuebuf.Config.
type EnqueueBufferConfig struct {
	Enabled   bool  `conf:"enabled"     default:"false"`
	MaxSize   int   `conf:"max_size"    default:"100"`
	MaxWaitMs int64 `conf:"max_wait_ms" default:"25"`
}

// RelayConfig controls the optional AMQP fan-out publisher (domain stack:
// "relay adapter", pkg/broker/relay).
type RelayConfig struct {
	Enabled        bool   `conf:"enabled"         default:"false"`
	ConnectionName string `conf:"connection_name" default:"relay"`
	QueueName      string `conf:"queue_name"      default:"broker.dlq.relay"`
}

// ConsumerStatsConfig selects between the Redis-backed tracker and the
// in-process fallback (pkg/broker/consumerstats).
type ConsumerStatsConfig struct {
	ConnectionName string        `conf:"connection_name" default:"consumerstats"`
	TTL            time.Duration `conf:"ttl"              default:"1m"`
}

// EventBusConfig controls the in-process fan-out buffer (pkg/broker/eventbus).
type EventBusConfig struct {
	SubscriberBufferSize int `conf:"subscriber_buffer_size" default:"64"`
}

// AppConfig is the broker's root configuration, embedding ajan.BaseConfig
// for the ambient stack (conn/log/http/http_client) and adding the
// domain-stack sections above.
type AppConfig struct {
	ajan.BaseConfig

	Engine         EngineConfig        `conf:"engine"`
	Admin          AdminConfig         `conf:"admin"`
	Thresholds     ThresholdsConfig    `conf:"thresholds"`
	EnqueueBuffer  EnqueueBufferConfig `conf:"enqueue_buffer"`
	Relay          RelayConfig         `conf:"relay"`
	ConsumerStats  ConsumerStatsConfig `conf:"consumer_stats"`
	EventBus       EventBusConfig      `conf:"event_bus"`
}

func thresholdsFromConfig(c ThresholdsConfig) anomaly.Thresholds {
	return anomaly.Thresholds{
		FlashThresholdMs:   c.FlashThresholdMs,
		LargePayloadBytes:  c.LargePayloadBytes,
		LongProcessingMs:   c.LongProcessingMs,
		NearDLQRemaining:   c.NearDLQRemaining,
		ZombieMultiplier:   c.ZombieMultiplier,
		BurstCount:         c.BurstCount,
		BurstWindowSeconds: c.BurstWindowSeconds,
		BulkThreshold:      c.BulkThreshold,
	}
}

func adminConfigFrom(c AdminConfig) admin.Config {
	var secret []byte
	if c.ActorTokenSecret != "" {
		secret = []byte(c.ActorTokenSecret)
	}

	return admin.Config{
		DefaultAckTimeout: c.DefaultAckTimeout,
		DefaultMaxRetries: c.DefaultMaxRetries,
		ActorTokenSecret:  secret,
	}
}
