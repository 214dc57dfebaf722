package handler

import (
	"time"

	"examgate/internal/capacity/models"
	dErrors "examgate/pkg/domain-errors"
)

// PackageRequest carries the package type for eligibility checks and
// reservations.
type PackageRequest struct {
	PackageType string `json:"package_type"`
}

// InvalidateRequest names the session whose cached payloads should be
// dropped.
type InvalidateRequest struct {
	ExamDate    string `json:"exam_date"`
	SessionTime string `json:"session_time"`
}

// parseSessionKey builds a SessionKey from URL path parameters.
func parseSessionKey(date, session string) (models.SessionKey, error) {
	examDate, err := time.Parse(models.DateFormat, date)
	if err != nil {
		return models.SessionKey{}, dErrors.New(dErrors.CodeInvalidInput, "exam date must be YYYY-MM-DD")
	}
	sessionTime, err := models.ParseSessionTime(session)
	if err != nil {
		return models.SessionKey{}, err
	}
	return models.NewSessionKey(sessionTime, examDate), nil
}
