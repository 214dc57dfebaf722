// Package status serves the public availability read path: ledger counts in,
// numberless bilingual UI payload out, with the cache chain in front of the
// store.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"examgate/internal/capacity/cache"
	"examgate/internal/capacity/calculator"
	"examgate/internal/capacity/config"
	"examgate/internal/capacity/models"
	"examgate/internal/capacity/ports"
	"examgate/internal/capacity/projector"
	"examgate/pkg/platform/sentinel"
)

// cachePrimaryKey namespaces status payloads in the tier chain.
const cachePrimaryKey = "status"

type Service struct {
	store  ports.LedgerStore
	orch   *cache.Orchestrator
	calc   *calculator.Calculator
	cfg    *config.Config
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(store ports.LedgerStore, orch *cache.Orchestrator, cfg *config.Config, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("ledger store is required")
	}
	if orch == nil {
		return nil, fmt.Errorf("cache orchestrator is required")
	}
	if cfg == nil {
		return nil, fmt.Errorf("capacity config is required")
	}

	svc := &Service{
		store:  store,
		orch:   orch,
		calc:   calculator.New(cfg),
		cfg:    cfg,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(svc)
	}

	return svc, nil
}

// GetStatus returns the UI projection for a session, read through the cache
// chain. A failed origin load degrades to the conservative fallback payload
// instead of an error: the status page stays up even when the ledger store is
// down.
func (s *Service) GetStatus(ctx context.Context, key models.SessionKey) models.UIStatus {
	payload, err := s.orch.GetOrCompute(ctx, cachePrimaryKey, key.String(), s.cfg.AvailabilityTTL, s.load(key))
	if err != nil {
		s.logger.WarnContext(ctx, "status read degraded to fallback",
			"session_key", key.String(),
			"error", err,
		)
		return projector.Fallback()
	}

	var ui models.UIStatus
	if err := json.Unmarshal(payload, &ui); err != nil {
		s.logger.ErrorContext(ctx, "cached status payload is malformed",
			"session_key", key.String(),
			"error", err,
		)
		return projector.Fallback()
	}
	return ui
}

// Invalidate drops the cached payload for a session after a committed write.
func (s *Service) Invalidate(ctx context.Context, key models.SessionKey) {
	s.orch.Invalidate(ctx, cachePrimaryKey, key.String())
}

// WarmEntry exposes the status read as a warmable cache entry.
func (s *Service) WarmEntry(key models.SessionKey) cache.WarmEntry {
	return cache.WarmEntry{
		PrimaryKey:   cachePrimaryKey,
		SecondaryKey: key.String(),
		TTL:          s.cfg.AvailabilityTTL,
		Compute:      s.load(key),
	}
}

// load builds the origin ComputeFn for one session. A session with no ledger
// row yet projects as wide open.
func (s *Service) load(key models.SessionKey) cache.ComputeFn {
	return func(ctx context.Context) ([]byte, error) {
		ledger, err := s.store.Get(ctx, key)
		if err != nil {
			if !errors.Is(err, sentinel.ErrNotFound) {
				return nil, fmt.Errorf("load ledger %s: %w", key.String(), err)
			}
			ledger = &models.Ledger{SessionTime: key.SessionTime, ExamDate: key.ExamDate}
		}

		ui := projector.Project(s.calc.Compute(ledger))
		payload, err := json.Marshal(ui)
		if err != nil {
			return nil, fmt.Errorf("marshal status payload: %w", err)
		}
		return payload, nil
	}
}
