// Package cache implements the three-tier read path for capacity status
// queries: an in-process config snapshot, a regional Redis cache, and the
// origin (the ledger store). Tier failures degrade silently to the next
// tier; only an origin failure fails the read.
package cache

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"examgate/internal/capacity/metrics"
	"examgate/internal/capacity/ports"
)

// ComputeFn loads the authoritative payload on a full cache miss.
type ComputeFn func(ctx context.Context) ([]byte, error)

// Orchestrator walks an ordered tier chain and stops at the first hit.
type Orchestrator struct {
	tiers   []ports.CacheTier
	logger  *slog.Logger
	metrics *metrics.Metrics
	group   singleflight.Group
}

type Option func(*Orchestrator)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// New builds an orchestrator over the given tiers, ordered fastest first.
func New(tiers []ports.CacheTier, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		tiers:  tiers,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// GetOrCompute reads primaryKey/secondaryKey through the tier chain. On a
// full miss it invokes compute exactly once per in-flight key (concurrent
// callers share the result), then write-through caches the payload
// asynchronously at the given TTL. Only a compute failure is returned as an
// error.
func (o *Orchestrator) GetOrCompute(ctx context.Context, primaryKey, secondaryKey string, ttl time.Duration, compute ComputeFn) ([]byte, error) {
	key := primaryKey + ":" + secondaryKey

	for _, tier := range o.tiers {
		if val, ok := tier.TryGet(ctx, key); ok {
			o.recordHit(tier.Name())
			return val, nil
		}
		o.recordMiss(tier.Name())
	}

	val, err, _ := o.group.Do(key, func() (any, error) {
		start := time.Now()
		payload, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		if o.metrics != nil {
			o.metrics.OriginLoads.Inc()
			o.metrics.OriginDuration.Observe(time.Since(start).Seconds())
		}
		o.writeThrough(key, payload, ttl)
		return payload, nil
	})
	if err != nil {
		return nil, err
	}
	return val.([]byte), nil
}

// writeThrough populates the tiers in the background. Best-effort: failures
// are logged inside the tiers, never returned, and never block the response.
// Read-only tiers ignore the set.
func (o *Orchestrator) writeThrough(key string, payload []byte, ttl time.Duration) {
	tiers := o.tiers
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		for _, tier := range tiers {
			tier.TrySet(ctx, key, payload, ttl)
		}
	}()
}

// Invalidate removes the given primary/secondary keys from every writable
// tier. The config tier cannot be invalidated from here; its refresh cadence
// bounds its staleness.
func (o *Orchestrator) Invalidate(ctx context.Context, primaryKey string, secondaryKeys ...string) {
	for _, secondary := range secondaryKeys {
		key := primaryKey + ":" + secondary
		for _, tier := range o.tiers {
			tier.TryDelete(ctx, key)
		}
	}
}

// Health reports per-tier reachability, keyed by tier name.
func (o *Orchestrator) Health(ctx context.Context) map[string]error {
	out := make(map[string]error, len(o.tiers))
	for _, tier := range o.tiers {
		out[tier.Name()] = tier.Health(ctx)
	}
	return out
}

func (o *Orchestrator) recordHit(tier string) {
	if o.metrics != nil {
		o.metrics.RecordCacheHit(tier)
	}
}

func (o *Orchestrator) recordMiss(tier string) {
	if o.metrics != nil {
		o.metrics.RecordCacheMiss(tier)
	}
}
