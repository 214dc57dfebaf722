package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"examgate/internal/capacity/cache"
	"examgate/internal/capacity/catalog"
	capconfig "examgate/internal/capacity/config"
	"examgate/internal/capacity/events"
	"examgate/internal/capacity/handler"
	capmetrics "examgate/internal/capacity/metrics"
	"examgate/internal/capacity/models"
	"examgate/internal/capacity/ports"
	"examgate/internal/capacity/service/eligibility"
	"examgate/internal/capacity/service/reserve"
	"examgate/internal/capacity/service/status"
	"examgate/internal/capacity/store/ledger"
	"examgate/internal/platform/config"
	"examgate/internal/platform/httpserver"
	"examgate/internal/platform/logger"
	platformmetrics "examgate/internal/platform/metrics"
	platformredis "examgate/internal/platform/redis"
	httptransport "examgate/internal/transport/http"
	pstrings "examgate/pkg/platform/strings"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)

	capCfg := capconfig.DefaultConfig()
	capMetrics := capmetrics.New()
	httpMetrics := platformmetrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := buildStore(ctx, cfg, capCfg, log)
	if err != nil {
		log.Error("ledger store init failed", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	tiers, configTier, closeRedis, err := buildTiers(cfg, capCfg, log)
	if err != nil {
		log.Error("cache tiers init failed", "error", err)
		os.Exit(1)
	}
	defer closeRedis()

	orch := cache.New(tiers, cache.WithLogger(log), cache.WithMetrics(capMetrics))

	statusSvc, err := status.New(store, orch, capCfg, status.WithLogger(log))
	if err != nil {
		log.Error("status service init failed", "error", err)
		os.Exit(1)
	}
	eligibilitySvc, err := eligibility.New(store, orch, capCfg, eligibility.WithLogger(log))
	if err != nil {
		log.Error("eligibility service init failed", "error", err)
		os.Exit(1)
	}

	publisher, closePublisher := buildPublisher(ctx, cfg, log)
	defer closePublisher()

	reserveSvc, err := reserve.New(store, capCfg,
		reserve.WithLogger(log),
		reserve.WithMetrics(capMetrics),
		reserve.WithCacheInvalidators(statusSvc, eligibilitySvc),
		reserve.WithEventPublisher(publisher),
	)
	if err != nil {
		log.Error("reserve service init failed", "error", err)
		os.Exit(1)
	}

	warmer := cache.NewWarmer(orch, warmEntries(statusSvc, capCfg, log), capCfg.ReserveRetry, log, capMetrics)

	// Populate tier 1 and the critical keys before taking traffic; failures
	// degrade to cold reads, never abort startup.
	if err := configTier.Refresh(ctx); err != nil {
		log.Warn("config tier initial refresh failed", "error", err)
	}
	if err := warmer.WarmCritical(ctx); err != nil {
		log.Warn("initial cache warming incomplete", "error", err)
	}
	go configTier.StartRefresh(ctx, capCfg.ConfigSnapshotTTL, func(err error) {
		log.Warn("config tier refresh failed", "error", err)
	})
	go warmer.StartSchedule(ctx, capCfg.ResponseTTL)

	h := handler.New(statusSvc, eligibilitySvc, reserveSvc,
		catalog.NewReader(orch, capCfg.CatalogTTL), warmer,
		healthChecks{store: store, orch: orch}, log)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Handler:       h,
		Metrics:       httpMetrics,
		JWTSigningKey: []byte(cfg.JWTSigningKey),
		Logger:        log,
	})

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting examgate", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}

// buildStore picks Postgres when a DSN is configured, falling back to the
// in-memory store for single-instance deployments.
func buildStore(ctx context.Context, cfg config.Server, capCfg *capconfig.Config, log *slog.Logger) (ports.LedgerStore, func(), error) {
	if cfg.PostgresDSN == "" {
		log.Info("no postgres DSN configured, using in-memory ledger store")
		return ledger.NewInMemory(capCfg), func() {}, nil
	}

	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		return nil, nil, err
	}
	store := ledger.NewPostgres(db, capCfg)
	if err := store.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return store, func() { db.Close() }, nil
}

// buildTiers assembles the read chain: the config snapshot tier always, the
// Redis tier when configured.
func buildTiers(cfg config.Server, capCfg *capconfig.Config, log *slog.Logger) ([]ports.CacheTier, *cache.ConfigTier, func(), error) {
	configTier := cache.NewConfigTier(catalog.SnapshotLoader())
	tiers := []ports.CacheTier{configTier}
	closeRedis := func() {}

	client, err := platformredis.New(cfg.Redis)
	if err != nil {
		return nil, nil, nil, err
	}
	if client != nil {
		tiers = append(tiers, cache.NewRedisTier(client.Client, capCfg.TierTimeout, log))
		closeRedis = func() { _ = client.Close() }
	} else {
		log.Info("no redis URL configured, running without the regional cache tier")
	}
	return tiers, configTier, closeRedis, nil
}

func buildPublisher(ctx context.Context, cfg config.Server, log *slog.Logger) (ports.EventPublisher, func()) {
	if len(cfg.KafkaBrokers) == 0 {
		log.Info("no kafka brokers configured, admission events disabled")
		return events.NopPublisher{}, func() {}
	}
	publisher, err := events.NewKafkaPublisher(ctx, cfg.KafkaBrokers, events.WithLogger(log))
	if err != nil {
		log.Warn("kafka publisher init failed, admission events disabled", "error", err)
		return events.NopPublisher{}, func() {}
	}
	return publisher, publisher.Close
}

// warmEntries builds the catalog keys plus the critical status keys from
// EXAMGATE_EXAM_DATES so the first visitors after startup hit a warm cache.
func warmEntries(statusSvc *status.Service, capCfg *capconfig.Config, log *slog.Logger) []cache.WarmEntry {
	entries := catalog.WarmEntries(capCfg.CatalogTTL)

	raw := os.Getenv("EXAMGATE_EXAM_DATES")
	if raw == "" {
		return entries
	}
	for _, d := range pstrings.DedupeAndTrim(strings.Split(raw, ",")) {
		date, err := time.Parse(models.DateFormat, d)
		if err != nil {
			log.Warn("skipping invalid exam date in EXAMGATE_EXAM_DATES", "date", d)
			continue
		}
		for _, session := range []models.SessionTime{models.SessionMorning, models.SessionAfternoon} {
			entries = append(entries, statusSvc.WarmEntry(models.NewSessionKey(session, date)))
		}
	}
	return entries
}

// healthChecks aggregates store and cache tier reachability for /healthz.
type healthChecks struct {
	store ports.LedgerStore
	orch  *cache.Orchestrator
}

func (h healthChecks) Health(ctx context.Context) map[string]error {
	checks := h.orch.Health(ctx)
	checks["ledger"] = h.store.Health(ctx)
	return checks
}
