// Package catalog produces the near-static tier 1 payloads: the package
// catalog and the session templates the registration UI renders before any
// per-session status is consulted.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"examgate/internal/capacity/cache"
	"examgate/internal/capacity/models"
)

// Cache keys served from the tier 1 snapshot.
const (
	KeyPackages = "catalog:packages"
	KeySessions = "catalog:sessions"
)

// Package describes one registration tier in the catalog.
type Package struct {
	Type        models.PackageType `json:"type"`
	DisplayName string             `json:"display_name"`
	Paid        bool               `json:"paid"`
}

// Session describes one fixed exam window.
type Session struct {
	Time      models.SessionTime `json:"time"`
	StartTime string             `json:"start_time"`
	EndTime   string             `json:"end_time"`
}

// Packages is the fixed two-tier catalog.
func Packages() []Package {
	return []Package{
		{Type: models.PackageFree, DisplayName: "Free", Paid: false},
		{Type: models.PackageAdvanced, DisplayName: "Advanced", Paid: true},
	}
}

// Sessions is the fixed two-window template for every exam date.
func Sessions() []Session {
	return []Session{
		{Time: models.SessionMorning, StartTime: "09:00", EndTime: "12:00"},
		{Time: models.SessionAfternoon, StartTime: "13:00", EndTime: "16:00"},
	}
}

// Reader serves catalog payloads through the cache chain, falling back to
// the compiled-in catalog when every tier misses.
type Reader struct {
	orch *cache.Orchestrator
	ttl  time.Duration
}

// NewReader builds a catalog reader over the cache chain.
func NewReader(orch *cache.Orchestrator, ttl time.Duration) *Reader {
	return &Reader{orch: orch, ttl: ttl}
}

// Packages returns the package catalog as a JSON payload.
func (r *Reader) Packages(ctx context.Context) ([]byte, error) {
	return r.orch.GetOrCompute(ctx, "catalog", "packages", r.ttl, func(context.Context) ([]byte, error) {
		return json.Marshal(Packages())
	})
}

// Sessions returns the session templates as a JSON payload.
func (r *Reader) Sessions(ctx context.Context) ([]byte, error) {
	return r.orch.GetOrCompute(ctx, "catalog", "sessions", r.ttl, func(context.Context) ([]byte, error) {
		return json.Marshal(Sessions())
	})
}

// WarmEntries exposes the catalog payloads to the cache warmer so tier 2
// serves them even before the first tier 1 refresh lands.
func WarmEntries(ttl time.Duration) []cache.WarmEntry {
	return []cache.WarmEntry{
		{
			PrimaryKey:   "catalog",
			SecondaryKey: "packages",
			TTL:          ttl,
			Compute: func(context.Context) ([]byte, error) {
				return json.Marshal(Packages())
			},
		},
		{
			PrimaryKey:   "catalog",
			SecondaryKey: "sessions",
			TTL:          ttl,
			Compute: func(context.Context) ([]byte, error) {
				return json.Marshal(Sessions())
			},
		},
	}
}

// SnapshotLoader builds the tier 1 snapshot. The catalog is compiled in, so
// the loader cannot fail against any backend; it still runs on the refresh
// cadence so a future store-backed catalog slots in without tier changes.
func SnapshotLoader() cache.SnapshotLoader {
	return func(context.Context) (map[string][]byte, error) {
		snap := make(map[string][]byte, 2)

		packages, err := json.Marshal(Packages())
		if err != nil {
			return nil, fmt.Errorf("marshal package catalog: %w", err)
		}
		snap[KeyPackages] = packages

		sessions, err := json.Marshal(Sessions())
		if err != nil {
			return nil, fmt.Errorf("marshal session templates: %w", err)
		}
		snap[KeySessions] = sessions

		return snap, nil
	}
}
