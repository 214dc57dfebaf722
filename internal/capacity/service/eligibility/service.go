// Package eligibility answers the advisory pre-registration check: may this
// package type still enter this session. The answer reflects a cached
// point-in-time snapshot; the reserve path re-validates at commit, so a stale
// "allowed" here can never overbook a session.
package eligibility

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
	"examgate/pkg/platform/sentinel"
)

// cachePrimaryKey namespaces capacity snapshots in the tier chain.
const cachePrimaryKey = "capacity"

// Rejection reasons surfaced to the registration flow. Numberless on purpose.
const (
	ReasonSessionFull   = "Session at maximum capacity"
	ReasonFreeExhausted = "Free package quota reached"
)

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

// Check reports whether the given package type may still register for the
// session. When the snapshot cannot be loaded at all, the check admits
// optimistically: the commit-time validation in the reserve path is the
// actual gate, and failing closed here would turn a cache outage into a
// registration outage.
func (s *Service) Check(ctx context.Context, key models.SessionKey, pkg models.PackageType) models.EligibilityResult {
	if !pkg.IsValid() {
		return models.EligibilityResult{Allowed: false, Reason: "unknown package type"}
	}

	snap, err := s.snapshot(ctx, key)
	if err != nil {
		s.logger.WarnContext(ctx, "eligibility snapshot unavailable, admitting optimistically",
			"session_key", key.String(),
			"package", pkg.String(),
			"error", err,
		)
		return models.EligibilityResult{
			Allowed:  true,
			Snapshot: models.Snapshot{FreeSlotsAvailable: true, AdvancedSlotsAvailable: true, AvailabilityStatus: models.StatusAvailable},
		}
	}

	result := models.EligibilityResult{Snapshot: snap}
	switch {
	case snap.IsFull:
		result.Reason = ReasonSessionFull
	case pkg == models.PackageFree && !snap.FreeSlotsAvailable:
		result.Reason = ReasonFreeExhausted
	default:
		result.Allowed = true
	}
	return result
}

// Invalidate drops the cached snapshot for a session after a committed write.
func (s *Service) Invalidate(ctx context.Context, key models.SessionKey) {
	s.orch.Invalidate(ctx, cachePrimaryKey, key.String())
}

func (s *Service) snapshot(ctx context.Context, key models.SessionKey) (models.Snapshot, error) {
	payload, err := s.orch.GetOrCompute(ctx, cachePrimaryKey, key.String(), s.cfg.AvailabilityTTL, s.load(key))
	if err != nil {
		return models.Snapshot{}, err
	}
	var snap models.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return models.Snapshot{}, fmt.Errorf("unmarshal capacity snapshot: %w", err)
	}
	return snap, nil
}

func (s *Service) load(key models.SessionKey) cache.ComputeFn {
	return func(ctx context.Context) ([]byte, error) {
		ledger, err := s.store.Get(ctx, key)
		if err != nil {
			if !errors.Is(err, sentinel.ErrNotFound) {
				return nil, fmt.Errorf("load ledger %s: %w", key.String(), err)
			}
			ledger = &models.Ledger{SessionTime: key.SessionTime, ExamDate: key.ExamDate}
		}
		payload, err := json.Marshal(s.calc.Compute(ledger))
		if err != nil {
			return nil, fmt.Errorf("marshal capacity snapshot: %w", err)
		}
		return payload, nil
	}
}
