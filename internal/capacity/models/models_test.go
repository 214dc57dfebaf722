package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "examgate/pkg/domain-errors"
)

func TestParseSessionTime(t *testing.T) {
	st, err := ParseSessionTime("MORNING")
	require.NoError(t, err)
	assert.Equal(t, SessionMorning, st)

	_, err = ParseSessionTime("EVENING")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestParsePackageType(t *testing.T) {
	p, err := ParsePackageType("ADVANCED")
	require.NoError(t, err)
	assert.Equal(t, PackageAdvanced, p)

	_, err = ParsePackageType("premium")
	assert.Error(t, err, "package types are case-sensitive enum values")
}

func TestSessionKeyNormalizesDate(t *testing.T) {
	loc := time.FixedZone("ICT", 7*3600)
	afternoon := time.Date(2026, 3, 14, 15, 30, 0, 0, loc)

	key := NewSessionKey(SessionMorning, afternoon)
	assert.Equal(t, "2026-03-14:MORNING", key.String())
	assert.Equal(t, time.UTC, key.ExamDate.Location())
	assert.Zero(t, key.ExamDate.Hour())
}

func TestCheckInvariants(t *testing.T) {
	limits := Limits{MaxCapacity: 300, FreeLimit: 150}

	t.Run("consistent ledger passes", func(t *testing.T) {
		l := &Ledger{TotalCount: 200, FreeCount: 150, AdvancedCount: 50}
		assert.NoError(t, l.CheckInvariants(limits))
	})

	t.Run("count mismatch is an invariant violation", func(t *testing.T) {
		l := &Ledger{TotalCount: 10, FreeCount: 4, AdvancedCount: 5}
		err := l.CheckInvariants(limits)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("total over cap", func(t *testing.T) {
		l := &Ledger{TotalCount: 301, FreeCount: 150, AdvancedCount: 151}
		err := l.CheckInvariants(limits)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeCapacityExceeded))
	})

	t.Run("free over sub-cap even with global room", func(t *testing.T) {
		l := &Ledger{TotalCount: 151, FreeCount: 151, AdvancedCount: 0}
		err := l.CheckInvariants(limits)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeCapacityExceeded))
	})

	t.Run("negative counts rejected", func(t *testing.T) {
		l := &Ledger{TotalCount: -1, FreeCount: -1, AdvancedCount: 0}
		assert.Error(t, l.CheckInvariants(limits))
	})
}
