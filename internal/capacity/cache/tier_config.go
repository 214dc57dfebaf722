package cache

import (
	"context"
	"sync/atomic"
	"time"

	"examgate/pkg/platform/sentinel"
)

// ConfigTier is tier 1: an in-process snapshot of near-static configuration
// (package catalog, session templates, capacity config) refreshed out-of-band
// on a cadence. The request path only ever reads the current snapshot; it is
// never written through or invalidated programmatically, so its staleness
// window equals the refresh cadence. That window is an accepted property of
// the tier, not a defect.
type ConfigTier struct {
	snapshot atomic.Pointer[map[string][]byte]
	loader   SnapshotLoader
}

// SnapshotLoader produces the full tier 1 payload set. It runs on the refresh
// cadence, outside any request.
type SnapshotLoader func(ctx context.Context) (map[string][]byte, error)

// NewConfigTier constructs an empty tier 1. Call Refresh (or StartRefresh)
// to populate it.
func NewConfigTier(loader SnapshotLoader) *ConfigTier {
	t := &ConfigTier{loader: loader}
	empty := map[string][]byte{}
	t.snapshot.Store(&empty)
	return t
}

func (t *ConfigTier) Name() string { return "config" }

func (t *ConfigTier) TryGet(_ context.Context, key string) ([]byte, bool) {
	snap := *t.snapshot.Load()
	v, ok := snap[key]
	return v, ok
}

// TrySet is a no-op: tier 1 is read-only from the request path.
func (t *ConfigTier) TrySet(context.Context, string, []byte, time.Duration) {}

// TryDelete is a no-op: tier 1 relies on its refresh cadence.
func (t *ConfigTier) TryDelete(context.Context, string) {}

func (t *ConfigTier) Health(context.Context) error {
	if t.snapshot.Load() == nil {
		return sentinel.ErrUnavailable
	}
	return nil
}

// Refresh replaces the snapshot wholesale from the loader. The swap is
// atomic; in-flight reads keep the old snapshot.
func (t *ConfigTier) Refresh(ctx context.Context) error {
	if t.loader == nil {
		return nil
	}
	snap, err := t.loader(ctx)
	if err != nil {
		return err
	}
	t.snapshot.Store(&snap)
	return nil
}

// StartRefresh refreshes on the given cadence until ctx is cancelled. Refresh
// failures keep the previous snapshot.
func (t *ConfigTier) StartRefresh(ctx context.Context, cadence time.Duration, onError func(error)) {
	ticker := time.NewTicker(cadence)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := t.Refresh(ctx); err != nil && onError != nil {
				onError(err)
			}
		}
	}
}
