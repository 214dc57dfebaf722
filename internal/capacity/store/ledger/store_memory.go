package ledger

import (
	"context"
	"sync"

	"examgate/internal/capacity/calculator"
	"examgate/internal/capacity/config"
	"examgate/internal/capacity/models"
	"examgate/pkg/platform/sentinel"
	"examgate/pkg/requestcontext"
)

// InMemoryStore keeps ledgers in a map guarded by a mutex. It enforces the
// same invariants as the Postgres store and can inject artificial write
// conflicts so the reserve retry path is testable without a database.
type InMemoryStore struct {
	mu      sync.RWMutex
	ledgers map[models.SessionKey]*models.Ledger
	calc    *calculator.Calculator
	limits  models.Limits

	// conflictBudget > 0 makes that many subsequent ApplyDelta calls fail
	// with sentinel.ErrConflict before any mutation.
	conflictBudget int
}

// NewInMemory constructs an in-memory ledger store.
func NewInMemory(cfg *config.Config) *InMemoryStore {
	return &InMemoryStore{
		ledgers: make(map[models.SessionKey]*models.Ledger),
		calc:    calculator.New(cfg),
		limits:  cfg.Limits(),
	}
}

// InjectConflicts makes the next n ApplyDelta calls fail with
// sentinel.ErrConflict. Test helper for exercising retry behavior.
func (s *InMemoryStore) InjectConflicts(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conflictBudget = n
}

func (s *InMemoryStore) Get(_ context.Context, key models.SessionKey) (*models.Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.ledgers[key]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (s *InMemoryStore) CreateIfMissing(ctx context.Context, key models.SessionKey) (*models.Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l, ok := s.ledgers[key]; ok {
		cp := *l
		return &cp, nil
	}
	l := &models.Ledger{
		SessionTime: key.SessionTime,
		ExamDate:    key.ExamDate,
		LastUpdated: requestcontext.Now(ctx).UTC(),
	}
	l.AvailabilityStatus = s.calc.Status(l)
	s.ledgers[key] = l
	cp := *l
	return &cp, nil
}

func (s *InMemoryStore) ApplyDelta(ctx context.Context, key models.SessionKey, pkg models.PackageType, amount int) (*models.Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conflictBudget > 0 {
		s.conflictBudget--
		return nil, sentinel.ErrConflict
	}

	current, ok := s.ledgers[key]
	if !ok {
		current = &models.Ledger{SessionTime: key.SessionTime, ExamDate: key.ExamDate}
		s.ledgers[key] = current
	}

	candidate := *current
	candidate.TotalCount += amount
	switch pkg {
	case models.PackageFree:
		candidate.FreeCount += amount
	case models.PackageAdvanced:
		candidate.AdvancedCount += amount
	}

	if err := candidate.CheckInvariants(s.limits); err != nil {
		return nil, err
	}

	candidate.AvailabilityStatus = s.calc.Status(&candidate)
	candidate.LastUpdated = requestcontext.Now(ctx).UTC()
	candidate.Version = current.Version + 1
	*current = candidate

	cp := candidate
	return &cp, nil
}

func (s *InMemoryStore) Health(context.Context) error { return nil }
