package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"examgate/internal/capacity/cache"
	"examgate/internal/capacity/catalog"
	"examgate/internal/capacity/config"
	"examgate/internal/capacity/models"
	"examgate/internal/capacity/ports"
	"examgate/internal/capacity/service/eligibility"
	"examgate/internal/capacity/service/reserve"
	"examgate/internal/capacity/service/status"
	"examgate/internal/capacity/store/ledger"
	"examgate/pkg/testutil"
)

// HandlerSuite exercises the HTTP surface over real in-memory components.
type HandlerSuite struct {
	suite.Suite
	router http.Handler
	store  *ledger.InMemoryStore
	cfg    *config.Config
}

func (s *HandlerSuite) SetupTest() {
	s.cfg = config.DefaultConfig()
	s.cfg.MaxCapacity = 4
	s.cfg.FreeLimit = 2
	s.store = ledger.NewInMemory(s.cfg)

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	orch := cache.New([]ports.CacheTier{cache.NewMemoryTier()}, cache.WithLogger(logger))

	statusSvc, err := status.New(s.store, orch, s.cfg, status.WithLogger(logger))
	require.NoError(s.T(), err)
	eligibilitySvc, err := eligibility.New(s.store, orch, s.cfg, eligibility.WithLogger(logger))
	require.NoError(s.T(), err)
	reserveSvc, err := reserve.New(s.store, s.cfg,
		reserve.WithLogger(logger),
		reserve.WithCacheInvalidators(statusSvc, eligibilitySvc),
	)
	require.NoError(s.T(), err)
	warmer := cache.NewWarmer(orch, nil, s.cfg.ReserveRetry, logger, nil)

	h := New(statusSvc, eligibilitySvc, reserveSvc,
		catalog.NewReader(orch, s.cfg.CatalogTTL), warmer, orch, logger)

	r := chi.NewRouter()
	h.Register(r)
	h.RegisterAdmin(r)
	r.Get("/healthz", h.HandleHealthz)
	s.router = r
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(s.T(), err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) TestStatus_OpenSession() {
	rec := s.do(http.MethodGet, "/v1/sessions/2026-03-14/MORNING/status", nil)

	assert.Equal(s.T(), http.StatusOK, rec.Code)

	var ui models.UIStatus
	require.NoError(s.T(), json.NewDecoder(rec.Body).Decode(&ui))
	assert.Equal(s.T(), models.StatusAvailable, ui.AvailabilityStatus)
	assert.True(s.T(), ui.CanRegisterFree)
	assert.True(s.T(), ui.CanRegisterAdvanced)
	assert.NotEmpty(s.T(), ui.Message)
	assert.NotEmpty(s.T(), ui.MessageEN)
}

func (s *HandlerSuite) TestStatus_InvalidDate() {
	rec := s.do(http.MethodGet, "/v1/sessions/tomorrow/MORNING/status", nil)
	assert.Equal(s.T(), http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestStatus_InvalidSession() {
	rec := s.do(http.MethodGet, "/v1/sessions/2026-03-14/EVENING/status", nil)
	assert.Equal(s.T(), http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestEligibility_Allowed() {
	rec := s.do(http.MethodPost, "/v1/sessions/2026-03-14/MORNING/eligibility",
		PackageRequest{PackageType: "FREE"})

	assert.Equal(s.T(), http.StatusOK, rec.Code)

	var resp EligibilityResponse
	require.NoError(s.T(), json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(s.T(), resp.Allowed)
}

func (s *HandlerSuite) TestEligibility_UnknownPackage() {
	rec := s.do(http.MethodPost, "/v1/sessions/2026-03-14/MORNING/eligibility",
		PackageRequest{PackageType: "PREMIUM"})
	assert.Equal(s.T(), http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestEligibility_InvalidJSON() {
	req := httptest.NewRequest(http.MethodPost, "/v1/sessions/2026-03-14/MORNING/eligibility",
		bytes.NewReader([]byte("not json")))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(s.T(), http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestReserve_Success() {
	rec := s.do(http.MethodPost, "/v1/sessions/2026-03-14/MORNING/reservations",
		PackageRequest{PackageType: "ADVANCED"})

	assert.Equal(s.T(), http.StatusCreated, rec.Code)

	var resp ReserveResponse
	require.NoError(s.T(), json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(s.T(), resp.Success)
	assert.Empty(s.T(), resp.ErrorKind)
}

func (s *HandlerSuite) TestReserve_FreeLimitExceeded() {
	for i := 0; i < 2; i++ {
		rec := s.do(http.MethodPost, "/v1/sessions/2026-03-14/MORNING/reservations",
			PackageRequest{PackageType: "FREE"})
		require.Equal(s.T(), http.StatusCreated, rec.Code)
	}

	rec := s.do(http.MethodPost, "/v1/sessions/2026-03-14/MORNING/reservations",
		PackageRequest{PackageType: "FREE"})

	assert.Equal(s.T(), http.StatusConflict, rec.Code)

	var resp ReserveResponse
	require.NoError(s.T(), json.NewDecoder(rec.Body).Decode(&resp))
	assert.False(s.T(), resp.Success)
	assert.Equal(s.T(), string(models.ReserveFreeLimitExceeded), resp.ErrorKind)
}

func (s *HandlerSuite) TestReserve_CapacityExceeded() {
	for i := 0; i < 4; i++ {
		rec := s.do(http.MethodPost, "/v1/sessions/2026-03-14/MORNING/reservations",
			PackageRequest{PackageType: "ADVANCED"})
		require.Equal(s.T(), http.StatusCreated, rec.Code)
	}

	rec := s.do(http.MethodPost, "/v1/sessions/2026-03-14/MORNING/reservations",
		PackageRequest{PackageType: "ADVANCED"})

	assert.Equal(s.T(), http.StatusConflict, rec.Code)

	var resp ReserveResponse
	require.NoError(s.T(), json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(s.T(), string(models.ReserveCapacityExceeded), resp.ErrorKind)
}

func (s *HandlerSuite) TestReserve_TransientConflict() {
	s.store.InjectConflicts(10)

	rec := s.do(http.MethodPost, "/v1/sessions/2026-03-14/MORNING/reservations",
		PackageRequest{PackageType: "FREE"})

	assert.Equal(s.T(), http.StatusServiceUnavailable, rec.Code)

	var resp ReserveResponse
	require.NoError(s.T(), json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(s.T(), string(models.ReserveTransientConflict), resp.ErrorKind)
}

func (s *HandlerSuite) TestReserve_StatusReflectsCommit() {
	for i := 0; i < 2; i++ {
		rec := s.do(http.MethodPost, "/v1/sessions/2026-03-14/MORNING/reservations",
			PackageRequest{PackageType: "FREE"})
		require.Equal(s.T(), http.StatusCreated, rec.Code)
	}

	// Cache invalidation runs detached from the reservation response.
	require.Eventually(s.T(), func() bool {
		rec := s.do(http.MethodGet, "/v1/sessions/2026-03-14/MORNING/status", nil)
		var ui models.UIStatus
		if err := json.NewDecoder(rec.Body).Decode(&ui); err != nil {
			return false
		}
		return !ui.CanRegisterFree
	}, time.Second, 10*time.Millisecond)
}

func (s *HandlerSuite) TestAdminWarm() {
	rec := s.do(http.MethodPost, "/admin/cache/warm", nil)
	assert.Equal(s.T(), http.StatusNoContent, rec.Code)
}

func (s *HandlerSuite) TestAdminInvalidate() {
	rec := s.do(http.MethodPost, "/admin/cache/invalidate",
		InvalidateRequest{ExamDate: "2026-03-14", SessionTime: "AFTERNOON"})
	assert.Equal(s.T(), http.StatusNoContent, rec.Code)
}

func (s *HandlerSuite) TestAdminInvalidate_BadSession() {
	rec := s.do(http.MethodPost, "/admin/cache/invalidate",
		InvalidateRequest{ExamDate: "2026-03-14", SessionTime: "EVENING"})
	assert.Equal(s.T(), http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestHealthz() {
	rec := s.do(http.MethodGet, "/healthz", nil)
	assert.Equal(s.T(), http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(s.T(), json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(s.T(), "ok", resp.Status)
}

func (s *HandlerSuite) TestCatalog_Packages() {
	rec := s.do(http.MethodGet, "/v1/catalog/packages", nil)
	require.Equal(s.T(), http.StatusOK, rec.Code)
	assert.Equal(s.T(), "application/json", rec.Header().Get("Content-Type"))

	var packages []catalog.Package
	require.NoError(s.T(), json.NewDecoder(rec.Body).Decode(&packages))
	require.Len(s.T(), packages, 2)
	assert.Equal(s.T(), models.PackageFree, packages[0].Type)
}

func (s *HandlerSuite) TestCatalog_Sessions() {
	rec := s.do(http.MethodGet, "/v1/catalog/sessions", nil)
	require.Equal(s.T(), http.StatusOK, rec.Code)

	var sessions []catalog.Session
	require.NoError(s.T(), json.NewDecoder(rec.Body).Decode(&sessions))
	require.Len(s.T(), sessions, 2)
	assert.Equal(s.T(), models.SessionMorning, sessions[0].Time)
	assert.Equal(s.T(), models.SessionAfternoon, sessions[1].Time)
}

func (s *HandlerSuite) TestReserve_UsesRequestClock() {
	pinned := time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC)

	payload, err := json.Marshal(PackageRequest{PackageType: "ADVANCED"})
	require.NoError(s.T(), err)
	req := httptest.NewRequest(http.MethodPost,
		"/v1/sessions/2026-03-14/MORNING/reservations", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req = testutil.WithRequestID(req, "req-clock-test")
	req = testutil.WithRequestTime(req, pinned)

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(s.T(), http.StatusCreated, rec.Code)

	key := models.NewSessionKey(models.SessionMorning,
		time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC))
	l, err := s.store.Get(context.Background(), key)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), pinned, l.LastUpdated)
}
