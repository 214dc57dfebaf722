// Package ports defines shared interfaces for the capacity module.
// Interfaces live here when consumed by multiple services to avoid duplication.
package ports

import (
	"context"
	"time"

	"examgate/internal/capacity/models"
)

// LedgerStore is the storage contract for capacity ledgers. Implementations
// must provide transactional isolation that serializes concurrent ApplyDelta
// calls against the same (session, date) row.
type LedgerStore interface {
	// Get returns the ledger for a key, or sentinel.ErrNotFound when no row
	// exists yet.
	Get(ctx context.Context, key models.SessionKey) (*models.Ledger, error)

	// CreateIfMissing returns the existing ledger or creates a zeroed row.
	// Creation is idempotent under concurrency.
	CreateIfMissing(ctx context.Context, key models.SessionKey) (*models.Ledger, error)

	// ApplyDelta atomically adds amount seats of the given package type. The
	// current row is re-read inside the transaction before invariants are
	// validated. Returns sentinel.ErrConflict when a concurrent writer won
	// (retryable) and a coded capacity error on invariant violation
	// (permanent).
	ApplyDelta(ctx context.Context, key models.SessionKey, pkg models.PackageType, amount int) (*models.Ledger, error)

	// Health reports whether the store is reachable.
	Health(ctx context.Context) error
}

// CacheTier is one layer of the read-path fallback chain. Tier failures are
// facts to log, not request failures: TryGet reports a miss on any error and
// TrySet/TryDelete are best-effort.
type CacheTier interface {
	// Name identifies the tier in logs and metrics ("config", "redis").
	Name() string

	// TryGet returns the cached payload and true on a hit. Errors and misses
	// both report false; the orchestrator falls through either way.
	TryGet(ctx context.Context, key string) ([]byte, bool)

	// TrySet stores a payload at the given TTL, best-effort. Read-only tiers
	// ignore the call.
	TrySet(ctx context.Context, key string, value []byte, ttl time.Duration)

	// TryDelete removes a key, best-effort.
	TryDelete(ctx context.Context, key string)

	// Health reports whether the tier is reachable.
	Health(ctx context.Context) error
}

// CacheInvalidator drops cached payloads for a session after a committed
// write. Implemented by the read-path services that own the cache keys.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, key models.SessionKey)
}

// EventPublisher emits admission events for downstream consumers (email,
// analytics). Emission is best-effort and must never fail a reservation.
type EventPublisher interface {
	Emit(ctx context.Context, event AdmissionEvent) error
}

// AdmissionEvent records one successfully committed seat reservation.
type AdmissionEvent struct {
	EventID     string                    `json:"event_id"`
	SessionTime models.SessionTime        `json:"session_time"`
	ExamDate    string                    `json:"exam_date"`
	PackageType models.PackageType        `json:"package_type"`
	Status      models.AvailabilityStatus `json:"availability_status"`
	AdmittedAt  time.Time                 `json:"admitted_at"`
	RequestID   string                    `json:"request_id,omitempty"`
}
