package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"examgate/internal/capacity/metrics"
	"examgate/pkg/retry"
)

// WarmEntry names one high-traffic key to pre-populate during low-traffic
// windows: the package catalog, session templates, capacity config.
type WarmEntry struct {
	PrimaryKey   string
	SecondaryKey string
	TTL          time.Duration
	Compute      ComputeFn
}

// Warmer pre-populates the cache chain for a fixed set of critical keys.
type Warmer struct {
	orch    *Orchestrator
	entries []WarmEntry
	policy  retry.Policy
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewWarmer builds a warmer over the orchestrator. The retry policy bounds
// how hard a single warming pass pushes against a struggling origin.
func NewWarmer(orch *Orchestrator, entries []WarmEntry, policy retry.Policy, logger *slog.Logger, m *metrics.Metrics) *Warmer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Warmer{orch: orch, entries: entries, policy: policy, logger: logger, metrics: m}
}

// WarmCritical loads every entry concurrently, retrying transient origin
// failures per the policy. A single entry failing does not abort the others;
// the first failure is reported after all entries finish.
func (w *Warmer) WarmCritical(ctx context.Context) error {
	var g errgroup.Group
	for _, entry := range w.entries {
		g.Go(func() error {
			err := w.policy.Do(ctx, func(ctx context.Context) error {
				payload, err := entry.Compute(ctx)
				if err != nil {
					return err
				}
				key := entry.PrimaryKey + ":" + entry.SecondaryKey
				for _, tier := range w.orch.tiers {
					tier.TrySet(ctx, key, payload, entry.TTL)
				}
				return nil
			})
			if err != nil {
				w.logger.WarnContext(ctx, "cache warm entry failed",
					"primary_key", entry.PrimaryKey,
					"secondary_key", entry.SecondaryKey,
					"error", err,
				)
				return fmt.Errorf("warm %s:%s: %w", entry.PrimaryKey, entry.SecondaryKey, err)
			}
			return nil
		})
	}
	err := g.Wait()
	if err == nil && w.metrics != nil {
		w.metrics.WarmRuns.Inc()
	}
	return err
}

// StartSchedule runs WarmCritical on the given cadence until ctx is
// cancelled. Failures are logged and the schedule keeps going.
func (w *Warmer) StartSchedule(ctx context.Context, cadence time.Duration) {
	ticker := time.NewTicker(cadence)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.WarmCritical(ctx); err != nil {
				w.logger.WarnContext(ctx, "scheduled cache warming failed", "error", err)
			}
		}
	}
}
