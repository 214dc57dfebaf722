// Package reserve commits seat reservations against the ledger. It is the
// write path's single entry point: every admission re-validates the caps
// inside the store transaction, retries transient conflicts with bounded
// backoff, and never reports success it did not commit.
package reserve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"examgate/internal/capacity/config"
	"examgate/internal/capacity/metrics"
	"examgate/internal/capacity/models"
	"examgate/internal/capacity/ports"
	dErrors "examgate/pkg/domain-errors"
	"examgate/pkg/platform/sentinel"
	"examgate/pkg/requestcontext"
	"examgate/pkg/retry"
)

type Service struct {
	store        ports.LedgerStore
	cfg          *config.Config
	invalidators []ports.CacheInvalidator
	publisher    ports.EventPublisher
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithCacheInvalidators registers read paths whose cached payloads must be
// dropped after a committed reservation.
func WithCacheInvalidators(invalidators ...ports.CacheInvalidator) Option {
	return func(s *Service) {
		s.invalidators = append(s.invalidators, invalidators...)
	}
}

func WithEventPublisher(publisher ports.EventPublisher) Option {
	return func(s *Service) {
		s.publisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(store ports.LedgerStore, cfg *config.Config, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("ledger store is required")
	}
	if cfg == nil {
		return nil, fmt.Errorf("capacity config is required")
	}
	if err := cfg.ReserveRetry.Validate(); err != nil {
		return nil, fmt.Errorf("reserve retry policy: %w", err)
	}

	svc := &Service{
		store:  store,
		cfg:    cfg,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(svc)
	}

	return svc, nil
}

// Reserve admits one seat of the given package type into the session. The
// delta is applied inside the store's transaction against the current row, so
// an earlier eligibility "allowed" that has gone stale is rejected here.
// Conflict losses are retried per the configured policy; cap violations are
// permanent and returned as a typed rejection, never an error. A non-nil
// error means the attempt itself could not run (store down, context
// cancelled).
func (s *Service) Reserve(ctx context.Context, key models.SessionKey, pkg models.PackageType) (*models.ReserveResult, error) {
	if !pkg.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "package type must be FREE or ADVANCED")
	}

	var updated *models.Ledger
	err := s.cfg.ReserveRetry.Do(ctx, func(ctx context.Context) error {
		ledger, err := s.store.ApplyDelta(ctx, key, pkg, 1)
		if err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				if s.metrics != nil {
					s.metrics.ReserveRetries.Inc()
				}
				return err
			}
			// Everything other than a write conflict is permanent: cap
			// violations stay violated and infrastructure failures are not
			// ours to hammer.
			return retry.Stop(err)
		}
		updated = ledger
		return nil
	})

	switch {
	case err == nil:
		s.afterCommit(ctx, key, pkg, updated)
		return s.success(pkg, updated), nil
	case errors.Is(err, models.ErrCapacityExceeded):
		return s.rejected(ctx, key, pkg, models.ReserveCapacityExceeded), nil
	case errors.Is(err, models.ErrFreeLimitExceeded):
		return s.rejected(ctx, key, pkg, models.ReserveFreeLimitExceeded), nil
	case errors.Is(err, retry.ErrExhausted):
		s.logger.WarnContext(ctx, "reservation retries exhausted",
			"session_key", key.String(),
			"package", pkg.String(),
			"error", err,
		)
		s.record(pkg, "transient_conflict")
		return &models.ReserveResult{Success: false, ErrorKind: models.ReserveTransientConflict}, nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "reservation cancelled")
	default:
		s.record(pkg, "error")
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to apply reservation")
	}
}

func (s *Service) success(pkg models.PackageType, ledger *models.Ledger) *models.ReserveResult {
	s.record(pkg, "success")
	return &models.ReserveResult{Success: true, Ledger: ledger}
}

func (s *Service) rejected(ctx context.Context, key models.SessionKey, pkg models.PackageType, kind models.ReserveErrorKind) *models.ReserveResult {
	s.logger.InfoContext(ctx, "reservation rejected",
		"session_key", key.String(),
		"package", pkg.String(),
		"kind", string(kind),
	)
	switch kind {
	case models.ReserveCapacityExceeded:
		s.record(pkg, "capacity_exceeded")
	case models.ReserveFreeLimitExceeded:
		s.record(pkg, "free_limit_exceeded")
	}
	return &models.ReserveResult{Success: false, ErrorKind: kind}
}

// afterCommit runs the post-commit side effects: cache invalidation and the
// admission event. Both are best-effort and detached from the request so a
// slow cache or broker never holds the reservation response.
func (s *Service) afterCommit(ctx context.Context, key models.SessionKey, pkg models.PackageType, ledger *models.Ledger) {
	requestID := requestcontext.RequestID(ctx)
	admittedAt := requestcontext.Now(ctx).UTC()
	invalidators := s.invalidators
	publisher := s.publisher
	logger := s.logger

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		for _, inv := range invalidators {
			inv.Invalidate(ctx, key)
		}

		if publisher == nil {
			return
		}
		event := ports.AdmissionEvent{
			EventID:     uuid.NewString(),
			SessionTime: key.SessionTime,
			ExamDate:    key.ExamDate.Format(models.DateFormat),
			PackageType: pkg,
			Status:      ledger.AvailabilityStatus,
			AdmittedAt:  admittedAt,
			RequestID:   requestID,
		}
		if err := publisher.Emit(ctx, event); err != nil {
			logger.WarnContext(ctx, "admission event emission failed",
				"event_id", event.EventID,
				"session_key", key.String(),
				"error", err,
			)
		}
	}()
}

func (s *Service) record(pkg models.PackageType, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordReservation(pkg.String(), outcome)
	}
}
