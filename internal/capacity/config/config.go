// Package config holds the immutable capacity configuration: hard ceilings,
// the warning threshold, cache TTLs by data volatility, and the reserve retry
// policy. Load it once at startup; thresholds never live inline in services.
package config

import (
	"time"

	"examgate/internal/capacity/models"
	"examgate/pkg/retry"
)

// Config is the capacity module configuration. Treat values as read-only
// after construction.
type Config struct {
	// Hard ceilings per (session, date) ledger row.
	MaxCapacity int
	FreeLimit   int

	// WarningThreshold is the occupancy ratio at which a session reports
	// LIMITED even while both tiers remain open.
	WarningThreshold float64

	// Cache TTLs by volatility.
	ConfigSnapshotTTL time.Duration // near-static config, tier 1 refresh cadence
	CatalogTTL        time.Duration // package catalog
	AvailabilityTTL   time.Duration // per-session status and capacity reads
	ResponseTTL       time.Duration // idempotent API response cache

	// TierTimeout bounds each cache tier call so a slow tier degrades to the
	// next one instead of stalling the read.
	TierTimeout time.Duration

	// ReserveRetry bounds the write path's conflict retries.
	ReserveRetry retry.Policy
}

// DefaultConfig returns the production capacity configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxCapacity:       300,
		FreeLimit:         150,
		WarningThreshold:  0.8,
		ConfigSnapshotTTL: 45 * time.Minute,
		CatalogTTL:        5 * time.Minute,
		AvailabilityTTL:   time.Minute,
		ResponseTTL:       5 * time.Minute,
		TierTimeout:       150 * time.Millisecond,
		ReserveRetry:      retry.DefaultPolicy(),
	}
}

// Limits returns the ledger validation limits.
func (c *Config) Limits() models.Limits {
	return models.Limits{MaxCapacity: c.MaxCapacity, FreeLimit: c.FreeLimit}
}
