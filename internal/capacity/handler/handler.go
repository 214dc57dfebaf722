// Package handler wires the capacity endpoints to the capacity services.
// Public routes serve the registration UI; admin routes drive cache
// operations and sit behind the admin token middleware.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"examgate/internal/capacity/models"
	dErrors "examgate/pkg/domain-errors"
	"examgate/pkg/platform/httputil"
	"examgate/pkg/requestcontext"
)

// StatusService serves the cached availability projection.
type StatusService interface {
	GetStatus(ctx context.Context, key models.SessionKey) models.UIStatus
	Invalidate(ctx context.Context, key models.SessionKey)
}

// EligibilityService answers the advisory pre-registration check.
type EligibilityService interface {
	Check(ctx context.Context, key models.SessionKey, pkg models.PackageType) models.EligibilityResult
	Invalidate(ctx context.Context, key models.SessionKey)
}

// ReserveService commits seat reservations.
type ReserveService interface {
	Reserve(ctx context.Context, key models.SessionKey, pkg models.PackageType) (*models.ReserveResult, error)
}

// CatalogReader serves the package and session catalogs through the cache
// chain.
type CatalogReader interface {
	Packages(ctx context.Context) ([]byte, error)
	Sessions(ctx context.Context) ([]byte, error)
}

// Warmer pre-populates the cache chain.
type Warmer interface {
	WarmCritical(ctx context.Context) error
}

// HealthChecker reports per-dependency reachability.
type HealthChecker interface {
	Health(ctx context.Context) map[string]error
}

// Handler wires capacity endpoints to the capacity services.
type Handler struct {
	status      StatusService
	eligibility EligibilityService
	reserve     ReserveService
	catalog     CatalogReader
	warmer      Warmer
	health      HealthChecker
	logger      *slog.Logger
}

// New constructs a capacity handler with its dependencies.
func New(status StatusService, eligibility EligibilityService, reserve ReserveService, catalog CatalogReader, warmer Warmer, health HealthChecker, logger *slog.Logger) *Handler {
	return &Handler{
		status:      status,
		eligibility: eligibility,
		reserve:     reserve,
		catalog:     catalog,
		warmer:      warmer,
		health:      health,
		logger:      logger,
	}
}

// Register mounts the public capacity endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/v1/catalog/packages", h.HandleCatalogPackages)
	r.Get("/v1/catalog/sessions", h.HandleCatalogSessions)
	r.Get("/v1/sessions/{date}/{session}/status", h.HandleStatus)
	r.Post("/v1/sessions/{date}/{session}/eligibility", h.HandleEligibility)
	r.Post("/v1/sessions/{date}/{session}/reservations", h.HandleReserve)
}

// RegisterAdmin mounts the operational endpoints. Callers apply the admin
// middleware to the router group.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/admin/cache/warm", h.HandleWarm)
	r.Post("/admin/cache/invalidate", h.HandleInvalidate)
}

// HandleCatalogPackages handles GET /v1/catalog/packages requests.
func (h *Handler) HandleCatalogPackages(w http.ResponseWriter, r *http.Request) {
	h.writeCatalog(w, r, h.catalog.Packages)
}

// HandleCatalogSessions handles GET /v1/catalog/sessions requests.
func (h *Handler) HandleCatalogSessions(w http.ResponseWriter, r *http.Request) {
	h.writeCatalog(w, r, h.catalog.Sessions)
}

func (h *Handler) writeCatalog(w http.ResponseWriter, r *http.Request, read func(context.Context) ([]byte, error)) {
	ctx := r.Context()

	payload, err := read(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "catalog read failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "catalog unavailable"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(payload)
}

// HandleStatus handles GET /v1/sessions/{date}/{session}/status requests.
// The response is always 200: a degraded read serves the fallback payload.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	key, err := parseSessionKey(chi.URLParam(r, "date"), chi.URLParam(r, "session"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, h.status.GetStatus(ctx, key))
}

// HandleEligibility handles POST /v1/sessions/{date}/{session}/eligibility.
func (h *Handler) HandleEligibility(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	key, err := parseSessionKey(chi.URLParam(r, "date"), chi.URLParam(r, "session"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, err := httputil.DecodeJSON[PackageRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	pkg, err := models.ParsePackageType(req.PackageType)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, fromEligibility(h.eligibility.Check(ctx, key, pkg)))
}

// HandleReserve handles POST /v1/sessions/{date}/{session}/reservations.
// Permanent cap rejections return 409; an exhausted conflict budget returns
// 503 so clients know a retry may succeed.
func (h *Handler) HandleReserve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	key, err := parseSessionKey(chi.URLParam(r, "date"), chi.URLParam(r, "session"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, err := httputil.DecodeJSON[PackageRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	pkg, err := models.ParsePackageType(req.PackageType)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.reserve.Reserve(ctx, key, pkg)
	if err != nil {
		h.logger.ErrorContext(ctx, "reservation failed",
			"request_id", requestID,
			"session_key", key.String(),
			"package", pkg.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "reservation handled",
		"request_id", requestID,
		"session_key", key.String(),
		"package", pkg.String(),
		"success", result.Success,
		"error_kind", string(result.ErrorKind),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	httputil.WriteJSON(w, reserveStatus(result), fromReserve(result))
}

func reserveStatus(result *models.ReserveResult) int {
	switch {
	case result.Success:
		return http.StatusCreated
	case result.ErrorKind == models.ReserveTransientConflict:
		return http.StatusServiceUnavailable
	default:
		return http.StatusConflict
	}
}

// HandleWarm handles POST /admin/cache/warm requests.
func (h *Handler) HandleWarm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.warmer.WarmCritical(ctx); err != nil {
		h.logger.ErrorContext(ctx, "cache warming failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "cache warming failed"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleInvalidate handles POST /admin/cache/invalidate requests.
func (h *Handler) HandleInvalidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := httputil.DecodeJSON[InvalidateRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	key, err := parseSessionKey(req.ExamDate, req.SessionTime)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.status.Invalidate(ctx, key)
	h.eligibility.Invalidate(ctx, key)

	h.logger.InfoContext(ctx, "cache invalidated",
		"request_id", requestcontext.RequestID(ctx),
		"session_key", key.String(),
	)
	w.WriteHeader(http.StatusNoContent)
}

// HandleHealthz handles GET /healthz requests.
func (h *Handler) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	checks := h.health.Health(r.Context())

	resp := HealthResponse{Status: "ok", Checks: make(map[string]string, len(checks))}
	status := http.StatusOK
	for name, err := range checks {
		if err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	httputil.WriteJSON(w, status, resp)
}
