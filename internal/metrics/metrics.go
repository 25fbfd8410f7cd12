package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Orchestrator
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vetting",
		Subsystem: "orchestrator",
		Name:      "runs_total",
		Help:      "Total check runs by chain and result",
	}, []string{"chain", "result"})

	RunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "vetting",
		Subsystem: "orchestrator",
		Name:      "run_duration_seconds",
		Help:      "Check run duration",
		Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
	}, []string{"chain"})

	CheckResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vetting",
		Subsystem: "orchestrator",
		Name:      "check_results_total",
		Help:      "Persisted check results by source and status",
	}, []string{"source", "status"})

	SourceErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vetting",
		Subsystem: "orchestrator",
		Name:      "source_errors_total",
		Help:      "Data source failures absorbed during a run",
	}, []string{"source"})

	// Providers
	ProviderRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vetting",
		Subsystem: "provider",
		Name:      "requests_total",
		Help:      "Upstream HTTP requests by provider and status class",
	}, []string{"provider", "status"})

	ProviderLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "vetting",
		Subsystem: "provider",
		Name:      "request_duration_seconds",
		Help:      "Upstream HTTP request duration",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"provider"})

	// Holder analysis
	WalletLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vetting",
		Subsystem: "holders",
		Name:      "wallet_lookups_total",
		Help:      "Per-wallet lookups by chain, kind and status",
	}, []string{"chain", "kind", "status"})

	CacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vetting",
		Subsystem: "holders",
		Name:      "cache_requests_total",
		Help:      "Wallet lookup cache requests by result",
	}, []string{"kind", "result"})

	// Worker
	WorkerProcessesClaimed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vetting",
		Subsystem: "worker",
		Name:      "processes_claimed_total",
		Help:      "Vetting processes claimed from the queue",
	})

	WorkerInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "vetting",
		Subsystem: "worker",
		Name:      "in_flight",
		Help:      "Vetting processes currently being checked",
	})
)
