package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"examgate/pkg/platform/circuit"
)

const redisKeyPrefix = "capacity:"

// RedisTier is tier 2: the regional key-value cache. Every operation runs
// under a short timeout so a slow or unreachable Redis degrades to the next
// tier instead of stalling the read. A circuit breaker skips Redis entirely
// after consecutive failures; Health probes keep recording outcomes, so a
// recovered Redis closes the circuit again.
type RedisTier struct {
	client  *redis.Client
	timeout time.Duration
	breaker *circuit.Breaker
	logger  *slog.Logger
}

// NewRedisTier constructs the tier 2 cache over an existing Redis client.
func NewRedisTier(client *redis.Client, timeout time.Duration, logger *slog.Logger) *RedisTier {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisTier{
		client:  client,
		timeout: timeout,
		breaker: circuit.New("redis"),
		logger:  logger,
	}
}

func (t *RedisTier) Name() string { return "redis" }

func (t *RedisTier) TryGet(ctx context.Context, key string) ([]byte, bool) {
	if t.breaker.IsOpen() {
		return nil, false
	}
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	val, err := t.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			t.breaker.RecordSuccess()
			return nil, false
		}
		t.recordFailure(ctx, "read", key, err)
		return nil, false
	}
	t.breaker.RecordSuccess()
	return val, true
}

func (t *RedisTier) TrySet(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if t.breaker.IsOpen() {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	if err := t.client.Set(ctx, redisKeyPrefix+key, value, ttl).Err(); err != nil {
		t.recordFailure(ctx, "write", key, err)
		return
	}
	t.breaker.RecordSuccess()
}

func (t *RedisTier) TryDelete(ctx context.Context, key string) {
	if t.breaker.IsOpen() {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	if err := t.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		t.recordFailure(ctx, "delete", key, err)
		return
	}
	t.breaker.RecordSuccess()
}

// Health pings Redis regardless of breaker state; successful probes are how
// an open circuit closes again.
func (t *RedisTier) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	if err := t.client.Ping(ctx).Err(); err != nil {
		t.breaker.RecordFailure()
		return err
	}
	if _, change := t.breaker.RecordSuccess(); change.Closed {
		t.logger.InfoContext(ctx, "redis tier circuit closed")
	}
	return nil
}

func (t *RedisTier) recordFailure(ctx context.Context, op, key string, err error) {
	if _, change := t.breaker.RecordFailure(); change.Opened {
		t.logger.WarnContext(ctx, "redis tier circuit opened", "op", op, "error", err)
		return
	}
	t.logger.WarnContext(ctx, "redis tier "+op+" failed", "key", key, "error", err)
}
