package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"examgate/internal/capacity/calculator"
	"examgate/internal/capacity/config"
	"examgate/internal/capacity/models"
	"examgate/pkg/platform/sentinel"
	"examgate/pkg/requestcontext"
)

// PostgresStore persists capacity ledgers in PostgreSQL. ApplyDelta runs a
// serializable transaction with a row lock, so concurrent writers to the same
// (session_time, exam_date) row either queue behind the lock or fail with a
// serialization error that surfaces as sentinel.ErrConflict for the caller's
// retry loop.
type PostgresStore struct {
	db     *sql.DB
	calc   *calculator.Calculator
	limits models.Limits
}

// NewPostgres constructs a PostgreSQL-backed ledger store.
func NewPostgres(db *sql.DB, cfg *config.Config) *PostgresStore {
	return &PostgresStore{
		db:     db,
		calc:   calculator.New(cfg),
		limits: cfg.Limits(),
	}
}

// Schema is the DDL for the ledger table. Uniqueness on the composite key is
// required; the counts columns double-check invariants at the storage layer.
const Schema = `
CREATE TABLE IF NOT EXISTS capacity_ledgers (
    session_time        TEXT        NOT NULL,
    exam_date           DATE        NOT NULL,
    total_count         INTEGER     NOT NULL DEFAULT 0 CHECK (total_count >= 0),
    free_count          INTEGER     NOT NULL DEFAULT 0 CHECK (free_count >= 0),
    advanced_count      INTEGER     NOT NULL DEFAULT 0 CHECK (advanced_count >= 0),
    availability_status TEXT        NOT NULL DEFAULT 'AVAILABLE',
    last_updated        TIMESTAMPTZ NOT NULL DEFAULT now(),
    version             BIGINT      NOT NULL DEFAULT 0,
    PRIMARY KEY (session_time, exam_date),
    CHECK (total_count = free_count + advanced_count)
)`

// EnsureSchema creates the ledger table when it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure ledger schema: %w", err)
	}
	return nil
}

const selectLedger = `
SELECT session_time, exam_date, total_count, free_count, advanced_count,
       availability_status, last_updated, version
FROM capacity_ledgers
WHERE session_time = $1 AND exam_date = $2`

func (s *PostgresStore) Get(ctx context.Context, key models.SessionKey) (*models.Ledger, error) {
	row := s.db.QueryRowContext(ctx, selectLedger, key.SessionTime.String(), key.ExamDate)
	l, err := scanLedger(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get ledger: %w", err)
	}
	return l, nil
}

func (s *PostgresStore) CreateIfMissing(ctx context.Context, key models.SessionKey) (*models.Ledger, error) {
	const insert = `
INSERT INTO capacity_ledgers (session_time, exam_date, availability_status, last_updated)
VALUES ($1, $2, $3, $4)
ON CONFLICT (session_time, exam_date) DO NOTHING`

	now := requestcontext.Now(ctx).UTC()
	empty := &models.Ledger{SessionTime: key.SessionTime, ExamDate: key.ExamDate}
	_, err := s.db.ExecContext(ctx, insert,
		key.SessionTime.String(), key.ExamDate, string(s.calc.Status(empty)), now)
	if err != nil {
		return nil, fmt.Errorf("create ledger: %w", err)
	}
	return s.Get(ctx, key)
}

func (s *PostgresStore) ApplyDelta(ctx context.Context, key models.SessionKey, pkg models.PackageType, amount int) (*models.Ledger, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, fmt.Errorf("begin ledger tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Re-read the current row inside the transaction, never from a cache.
	// FOR UPDATE serializes writers to the same row.
	row := tx.QueryRowContext(ctx, selectLedger+` FOR UPDATE`,
		key.SessionTime.String(), key.ExamDate)
	current, err := scanLedger(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			_ = tx.Rollback()
			if _, cerr := s.CreateIfMissing(ctx, key); cerr != nil {
				return nil, cerr
			}
			return nil, sentinel.ErrConflict
		}
		return nil, asConflict(fmt.Errorf("read ledger for update: %w", err))
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

	const update = `
UPDATE capacity_ledgers
SET total_count = $3, free_count = $4, advanced_count = $5,
    availability_status = $6, last_updated = $7, version = $8
WHERE session_time = $1 AND exam_date = $2 AND version = $9`

	res, err := tx.ExecContext(ctx, update,
		key.SessionTime.String(), key.ExamDate,
		candidate.TotalCount, candidate.FreeCount, candidate.AdvancedCount,
		string(candidate.AvailabilityStatus), candidate.LastUpdated,
		candidate.Version, current.Version)
	if err != nil {
		return nil, asConflict(fmt.Errorf("update ledger: %w", err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update ledger rows affected: %w", err)
	}
	if affected == 0 {
		return nil, sentinel.ErrConflict
	}

	if err := tx.Commit(); err != nil {
		return nil, asConflict(fmt.Errorf("commit ledger tx: %w", err))
	}
	return &candidate, nil
}

func (s *PostgresStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// asConflict maps Postgres serialization and deadlock failures to the
// retryable conflict sentinel; everything else passes through.
func asConflict(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return sentinel.ErrConflict
		}
	}
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLedger(row rowScanner) (*models.Ledger, error) {
	var l models.Ledger
	var sessionTime, status string
	if err := row.Scan(&sessionTime, &l.ExamDate, &l.TotalCount, &l.FreeCount,
		&l.AdvancedCount, &status, &l.LastUpdated, &l.Version); err != nil {
		return nil, err
	}
	l.SessionTime = models.SessionTime(sessionTime)
	l.AvailabilityStatus = models.AvailabilityStatus(status)
	return &l, nil
}
