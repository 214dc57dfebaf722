package handler

import "examgate/internal/capacity/models"

// EligibilityResponse is the HTTP response for the eligibility check.
type EligibilityResponse struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// ReserveResponse is the HTTP response for a reservation attempt.
type ReserveResponse struct {
	Success   bool   `json:"success"`
	ErrorKind string `json:"error_kind,omitempty"`
}

// HealthResponse reports per-dependency reachability.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func fromEligibility(result models.EligibilityResult) EligibilityResponse {
	return EligibilityResponse{Allowed: result.Allowed, Reason: result.Reason}
}

func fromReserve(result *models.ReserveResult) ReserveResponse {
	return ReserveResponse{Success: result.Success, ErrorKind: string(result.ErrorKind)}
}
