// Package models defines the shared types of the capacity module: the ledger
// aggregate, the calculator snapshot, and the result types handed to
// collaborators (registration workflow, status UI).
package models

import (
	"fmt"
	"time"

	dErrors "examgate/pkg/domain-errors"
)

// SessionTime identifies one of the two fixed exam windows on a given date.
type SessionTime string

const (
	SessionMorning   SessionTime = "MORNING"
	SessionAfternoon SessionTime = "AFTERNOON"
)

// ParseSessionTime creates a SessionTime from a string, validating it.
func ParseSessionTime(s string) (SessionTime, error) {
	t := SessionTime(s)
	if !t.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "session time must be MORNING or AFTERNOON")
	}
	return t, nil
}

// IsValid checks if the session time is one of the supported enum values.
func (t SessionTime) IsValid() bool {
	return t == SessionMorning || t == SessionAfternoon
}

func (t SessionTime) String() string { return string(t) }

// PackageType identifies the registration tier competing for seats.
type PackageType string

const (
	PackageFree     PackageType = "FREE"
	PackageAdvanced PackageType = "ADVANCED"
)

// ParsePackageType creates a PackageType from a string, validating it.
func ParsePackageType(s string) (PackageType, error) {
	p := PackageType(s)
	if !p.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "package type must be FREE or ADVANCED")
	}
	return p, nil
}

// IsValid checks if the package type is one of the supported enum values.
func (p PackageType) IsValid() bool {
	return p == PackageFree || p == PackageAdvanced
}

func (p PackageType) String() string { return string(p) }

// AvailabilityStatus is the coarse occupancy state derived from the counts.
// It is stored on the ledger row so status reads never need arithmetic.
type AvailabilityStatus string

const (
	StatusAvailable AvailabilityStatus = "AVAILABLE"
	StatusLimited   AvailabilityStatus = "LIMITED"
	StatusFull      AvailabilityStatus = "FULL"
	StatusClosed    AvailabilityStatus = "CLOSED"
)

// IsValid checks if the availability status is one of the supported values.
func (s AvailabilityStatus) IsValid() bool {
	switch s {
	case StatusAvailable, StatusLimited, StatusFull, StatusClosed:
		return true
	}
	return false
}

// DateFormat is the wire and storage format for exam dates.
const DateFormat = "2006-01-02"

// SessionKey is the composite identity of a ledger row and the secondary key
// used for cache entries.
type SessionKey struct {
	SessionTime SessionTime
	ExamDate    time.Time // truncated to midnight UTC
}

// NewSessionKey builds a SessionKey, normalizing the date to midnight UTC.
func NewSessionKey(sessionTime SessionTime, examDate time.Time) SessionKey {
	y, m, d := examDate.UTC().Date()
	return SessionKey{
		SessionTime: sessionTime,
		ExamDate:    time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
	}
}

// String renders the cache key form, e.g. "2026-03-14:MORNING".
func (k SessionKey) String() string {
	return fmt.Sprintf("%s:%s", k.ExamDate.Format(DateFormat), k.SessionTime)
}

// Ledger is the authoritative per-session-date record of consumed seats.
// It is mutated only through the reserve service's transaction boundary;
// counts never decrease for the lifetime of a row.
type Ledger struct {
	SessionTime        SessionTime        `json:"session_time"`
	ExamDate           time.Time          `json:"exam_date"`
	TotalCount         int                `json:"total_count"`
	FreeCount          int                `json:"free_count"`
	AdvancedCount      int                `json:"advanced_count"`
	AvailabilityStatus AvailabilityStatus `json:"availability_status"`
	LastUpdated        time.Time          `json:"last_updated"`
	// Version increments on every committed mutation; the in-memory store
	// uses it to detect write conflicts the way Postgres detects
	// serialization failures.
	Version int64 `json:"version"`
}

// Key returns the composite identity of this ledger row.
func (l *Ledger) Key() SessionKey {
	return NewSessionKey(l.SessionTime, l.ExamDate)
}

// Limits carries the hard ceilings a ledger is validated against.
type Limits struct {
	MaxCapacity int
	FreeLimit   int
}

// Cap violations are package-level values so the reserve path can tell them
// apart with errors.Is instead of matching messages.
var (
	ErrCapacityExceeded  = dErrors.New(dErrors.CodeCapacityExceeded, "total capacity exceeded")
	ErrFreeLimitExceeded = dErrors.New(dErrors.CodeCapacityExceeded, "free package limit exceeded")
)

// CheckInvariants verifies the aggregate invariants against the given limits.
// Every mutation validates its candidate counts through this method before
// committing.
func (l *Ledger) CheckInvariants(limits Limits) error {
	if l.TotalCount < 0 || l.FreeCount < 0 || l.AdvancedCount < 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "seat counts must be non-negative")
	}
	if l.TotalCount != l.FreeCount+l.AdvancedCount {
		return dErrors.New(dErrors.CodeInvariantViolation,
			fmt.Sprintf("total count %d does not equal free %d + advanced %d", l.TotalCount, l.FreeCount, l.AdvancedCount))
	}
	if l.TotalCount > limits.MaxCapacity {
		return ErrCapacityExceeded
	}
	if l.FreeCount > limits.FreeLimit {
		return ErrFreeLimitExceeded
	}
	return nil
}

// Snapshot is the calculator's pure projection of a ledger. It carries no
// counts on purpose: everything downstream of the calculator is numberless.
type Snapshot struct {
	IsFull                 bool               `json:"is_full"`
	FreeSlotsAvailable     bool               `json:"free_slots_available"`
	AdvancedSlotsAvailable bool               `json:"advanced_slots_available"`
	AvailabilityStatus     AvailabilityStatus `json:"availability_status"`
}

// EligibilityResult is the advisory admission decision returned before the
// registration workflow collects payment details. It reflects a point-in-time
// snapshot and is re-validated at commit.
type EligibilityResult struct {
	Allowed  bool     `json:"allowed"`
	Reason   string   `json:"reason,omitempty"`
	Snapshot Snapshot `json:"snapshot"`
}

// ReserveErrorKind distinguishes permanent rejections from transient
// conflicts so callers can decide whether a retry makes sense.
type ReserveErrorKind string

const (
	// ReserveCapacityExceeded: the session's global cap is reached. Permanent.
	ReserveCapacityExceeded ReserveErrorKind = "CAPACITY_EXCEEDED"
	// ReserveFreeLimitExceeded: the free tier sub-cap is reached. Permanent.
	ReserveFreeLimitExceeded ReserveErrorKind = "FREE_LIMIT_EXCEEDED"
	// ReserveTransientConflict: write contention exhausted the retry budget.
	// The whole reservation attempt may be retried by the caller.
	ReserveTransientConflict ReserveErrorKind = "TRANSIENT_CONFLICT"
)

// ReserveResult is the admission decision at the point of final commitment.
type ReserveResult struct {
	Success   bool             `json:"success"`
	ErrorKind ReserveErrorKind `json:"error_kind,omitempty"`
	Ledger    *Ledger          `json:"-"` // updated ledger on success; internal consumers only
}

// UIStatus is the public-safe projection served to the status UI. It never
// carries raw counts, percentages, or capacity constants.
type UIStatus struct {
	AvailabilityStatus  AvailabilityStatus `json:"availability_status"`
	Message             string             `json:"message"`
	MessageEN           string             `json:"message_en"`
	CanRegisterFree     bool               `json:"can_register_free"`
	CanRegisterAdvanced bool               `json:"can_register_advanced"`
	ShowDisabledState   bool               `json:"show_disabled_state"`
}
