package consumerstats

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/eser/relayq/pkg/broker/model"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "relayq:consumerstats:"

// Redis is a sorted-set backed Tracker: one ZSET per consumer, scored by
// dequeue timestamp, trimmed to the caller's window on every call so
// ZCARD directly answers "how many dequeues in the trailing window".
// Grounded on the RedisAdapter exposed by connfx's redis connection
// (pkg/ajan/connfx/adapter_redis.go).
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis constructs a Redis tracker. ttl bounds how long a consumer's
// ZSET survives without activity (spec.md §5's "bounded staleness").
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func (t *Redis) RecordDequeue(ctx context.Context, consumerID string, window time.Duration) (int, error) {
	if consumerID == "" {
		return 0, nil
	}

	key := keyPrefix + consumerID
	now := time.Now().UTC()
	cutoff := now.Add(-window)

	pipe := t.client.TxPipeline()

	pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(cutoff.UnixNano(), 10))
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixNano()), Member: now.UnixNano()})
	card := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, t.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("consumerstats: redis pipeline failed: %w", err)
	}

	count, err := card.Result()
	if err != nil {
		return 0, fmt.Errorf("consumerstats: failed to read dequeue count: %w", err)
	}

	statsKey := keyPrefix + "meta:" + consumerID
	_ = t.client.HSet(ctx, statsKey, "last_dequeue_ts", now.Format(time.RFC3339Nano)).Err()
	_ = t.client.HIncrBy(ctx, statsKey, "dequeue_count", 1).Err()
	_ = t.client.Expire(ctx, statsKey, t.ttl).Err()

	return int(count), nil
}

func (t *Redis) Stats(ctx context.Context, consumerID string) (model.ConsumerStats, bool) {
	statsKey := keyPrefix + "meta:" + consumerID

	values, err := t.client.HGetAll(ctx, statsKey).Result()
	if err != nil || len(values) == 0 {
		return model.ConsumerStats{}, false //nolint:exhaustruct
	}

	stats := model.ConsumerStats{ConsumerID: consumerID} //nolint:exhaustruct

	if ts, err := time.Parse(time.RFC3339Nano, values["last_dequeue_ts"]); err == nil {
		stats.LastDequeueTS = ts
	}

	if n, err := strconv.ParseInt(values["dequeue_count"], 10, 64); err == nil {
		stats.DequeueCount = n
	}

	return stats, true
}
