package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ReservationsTotal *prometheus.CounterVec
	ReserveRetries    prometheus.Counter
	CacheRequests     *prometheus.CounterVec
	OriginLoads       prometheus.Counter
	OriginDuration    prometheus.Histogram
	WarmRuns          prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		ReservationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "examgate_capacity_reservations_total",
			Help: "Seat reservation attempts by package type and outcome",
		}, []string{"package", "outcome"}),
		ReserveRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "examgate_capacity_reserve_retries_total",
			Help: "Ledger write retries caused by serialization conflicts",
		}),
		CacheRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "examgate_capacity_cache_requests_total",
			Help: "Cache tier lookups by tier and result (hit/miss)",
		}, []string{"tier", "result"}),
		OriginLoads: promauto.NewCounter(prometheus.CounterOpts{
			Name: "examgate_capacity_origin_loads_total",
			Help: "Reads that fell through every cache tier to the ledger",
		}),
		OriginDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "examgate_capacity_origin_duration_seconds",
			Help:    "Latency of origin loads on full cache miss",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		WarmRuns: promauto.NewCounter(prometheus.CounterOpts{
			Name: "examgate_capacity_cache_warm_runs_total",
			Help: "Completed cache warming passes",
		}),
	}
}

func (m *Metrics) RecordReservation(pkg, outcome string) {
	m.ReservationsTotal.WithLabelValues(pkg, outcome).Inc()
}

func (m *Metrics) RecordCacheHit(tier string) {
	m.CacheRequests.WithLabelValues(tier, "hit").Inc()
}

func (m *Metrics) RecordCacheMiss(tier string) {
	m.CacheRequests.WithLabelValues(tier, "miss").Inc()
}
