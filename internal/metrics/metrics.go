// Package metrics 同步服务的 Prometheus 指标，/metrics 路由暴露
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker/v2"
)

var (
	// 目录（IGDB）请求
	CatalogRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gamesync_catalog_requests_total",
			Help: "Catalog API requests by endpoint and result",
		},
		[]string{"endpoint", "result"}, // result: ok / error / rejected
	)

	CatalogRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gamesync_catalog_request_duration_seconds",
			Help:    "Catalog API request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gamesync_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gamesync_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// 同步任务
	SyncRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gamesync_sync_runs_total",
			Help: "Finished sync runs by platform and final status",
		},
		[]string{"platform", "status"},
	)

	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gamesync_sync_duration_seconds",
			Help:    "Duration of sync runs in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"platform"},
	)

	SyncQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gamesync_sync_queue_depth",
			Help: "Jobs waiting in the in-process sync queue",
		},
	)

	ReconcileRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gamesync_reconcile_records_total",
			Help: "Raw platform records by match outcome",
		},
		[]string{"platform", "outcome"}, // existing / pending / new / skipped / invalid
	)

	Merges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gamesync_merges_total",
			Help: "Canonical game merges by result",
		},
		[]string{"result"}, // merged / violation
	)
)

// BreakerStateValue gobreaker 状态映射为指标值
func BreakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
