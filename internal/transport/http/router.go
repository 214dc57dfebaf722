// Package httptransport assembles the HTTP router: public capacity routes,
// operational admin routes behind the admin token, and the observability
// endpoints.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"examgate/internal/capacity/handler"
	platformmetrics "examgate/internal/platform/metrics"
	"examgate/pkg/platform/middleware/admin"
	"examgate/pkg/platform/middleware/request"
)

// RouterConfig carries the router's dependencies.
type RouterConfig struct {
	Handler       *handler.Handler
	Metrics       *platformmetrics.Metrics
	JWTSigningKey []byte
	Logger        *slog.Logger
}

// NewRouter wires all endpoints. Request metadata runs first so every log
// line downstream carries the request ID.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(request.Metadata)
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Instrument)
	}

	cfg.Handler.Register(r)

	r.Group(func(r chi.Router) {
		r.Use(admin.RequireAdmin(cfg.JWTSigningKey, cfg.Logger))
		cfg.Handler.RegisterAdmin(r)
	})

	r.Get("/healthz", cfg.Handler.HandleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}
