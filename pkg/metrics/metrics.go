package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collectors for the experiment lifecycle, registered on the default
// registry so the embedding process can expose them however it likes
var (
	RunsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chaos",
		Name:      "experiment_runs_started_total",
		Help:      "Number of experiment runs that entered the running state",
	})

	RunsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chaos",
		Name:      "experiment_runs_finished_total",
		Help:      "Number of finalized experiment runs, partitioned by terminal status",
	}, []string{"status"})

	SafeguardBlocks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chaos",
		Name:      "safeguard_blocks_total",
		Help:      "Number of run attempts blocked by safeguard violations",
	})

	InjectionFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chaos",
		Name:      "injection_failures_total",
		Help:      "Number of per-target injection attempts that failed",
	})

	RollbackRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chaos",
		Name:      "rollback_retries_total",
		Help:      "Number of rollback action retries",
	})

	RollbackFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chaos",
		Name:      "rollback_failures_total",
		Help:      "Number of rollback actions that exhausted their retries",
	})

	ActiveRuns = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "chaos",
		Name:      "experiment_runs_active",
		Help:      "Number of experiment runs currently executing",
	})
)
