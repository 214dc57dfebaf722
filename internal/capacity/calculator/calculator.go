// Package calculator derives availability from a ledger. Compute is a pure
// function of its inputs: no I/O, no clock, deterministic, trivially
// unit-testable.
package calculator

import (
	"examgate/internal/capacity/config"
	"examgate/internal/capacity/models"
)

// Calculator turns ledger counts into a numberless availability snapshot.
type Calculator struct {
	cfg *config.Config
}

// New builds a Calculator over the given configuration.
func New(cfg *config.Config) *Calculator {
	return &Calculator{cfg: cfg}
}

// Compute derives the availability snapshot for a ledger.
//
// Status rules, in priority order:
//  1. FULL when the global cap is reached.
//  2. LIMITED when the free tier is exhausted (advanced still open) or
//     occupancy crossed the warning threshold.
//  3. AVAILABLE otherwise.
func (c *Calculator) Compute(ledger *models.Ledger) models.Snapshot {
	isFull := ledger.TotalCount >= c.cfg.MaxCapacity
	freeExhausted := ledger.FreeCount >= c.cfg.FreeLimit

	snap := models.Snapshot{
		IsFull:                 isFull,
		FreeSlotsAvailable:     !isFull && !freeExhausted,
		AdvancedSlotsAvailable: !isFull,
	}

	switch {
	case isFull:
		snap.AvailabilityStatus = models.StatusFull
	case freeExhausted, c.occupancy(ledger) >= c.cfg.WarningThreshold:
		snap.AvailabilityStatus = models.StatusLimited
	default:
		snap.AvailabilityStatus = models.StatusAvailable
	}
	return snap
}

// Status is a convenience for persisting the derived status on the ledger row.
func (c *Calculator) Status(ledger *models.Ledger) models.AvailabilityStatus {
	return c.Compute(ledger).AvailabilityStatus
}

func (c *Calculator) occupancy(ledger *models.Ledger) float64 {
	if c.cfg.MaxCapacity == 0 {
		return 1
	}
	return float64(ledger.TotalCount) / float64(c.cfg.MaxCapacity)
}
