package impact

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/clients"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/environment"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/log"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/types"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
)

// Baseline is the pre-injection reference a run's impact is measured
// against, metric values are medians of a short sample window so a single
// noisy tick cannot skew the whole run
type Baseline struct {
	Metrics types.MetricsSnapshot
	Health  map[string]bool
}

// Monitor computes the live blast radius of a run and signals early abort
// when it crosses the configured thresholds
type Monitor struct {
	settings *environment.Settings
	clients  clients.ClientSets

	mu        sync.Mutex
	baselines map[string]Baseline
}

//NewMonitor creates the impact monitor
func NewMonitor(settings *environment.Settings, clients clients.ClientSets) *Monitor {
	return &Monitor{
		settings:  settings,
		clients:   clients,
		baselines: map[string]Baseline{},
	}
}

//CaptureBaseline samples the metrics provider a few times and stores the
// per-metric median alongside the current health view, keyed by run id
func (monitor *Monitor) CaptureBaseline(ctx context.Context, runID string) (Baseline, error) {
	samples := monitor.settings.BaselineSamples
	if samples < 1 {
		samples = 1
	}

	series := make([]types.MetricsSnapshot, 0, samples)
	for i := 0; i < samples; i++ {
		snapshot, err := monitor.clients.Metrics.CurrentMetrics(ctx)
		if err != nil {
			return Baseline{}, errors.Errorf("Unable to sample the baseline metrics, err: %v", err)
		}
		series = append(series, snapshot)
		if i+1 < samples {
			select {
			case <-ctx.Done():
				return Baseline{}, ctx.Err()
			case <-time.After(monitor.settings.BaselineInterval):
			}
		}
	}

	health, err := monitor.clients.Health.Checks(ctx)
	if err != nil {
		return Baseline{}, errors.Errorf("Unable to fetch the baseline health checks, err: %v", err)
	}

	baseline := Baseline{Metrics: medianSnapshot(series), Health: health}

	monitor.mu.Lock()
	monitor.baselines[runID] = baseline
	monitor.mu.Unlock()

	return baseline, nil
}

//ForgetBaseline drops the cached baseline once the run is finalized
func (monitor *Monitor) ForgetBaseline(runID string) {
	monitor.mu.Lock()
	delete(monitor.baselines, runID)
	monitor.mu.Unlock()
}

//Assess folds one observation into the running impact maxima and reports
// whether the blast radius breached the configured thresholds
func (monitor *Monitor) Assess(baseline Baseline, observation types.Observation, targets map[string]bool, impact *types.ImpactMetrics) bool {
	availability := percentDrop(baseline.Metrics.Throughput, observation.Metrics.Throughput)
	responseTime := percentRise(baseline.Metrics.ResponseTime, observation.Metrics.ResponseTime)
	errorRate := percentRise(baseline.Metrics.ErrorRate, observation.Metrics.ErrorRate)

	if availability > impact.AvailabilityImpact {
		impact.AvailabilityImpact = availability
	}
	if responseTime > impact.ResponseTimeImpact {
		impact.ResponseTimeImpact = responseTime
	}
	if errorRate > impact.ErrorRateIncrease {
		impact.ErrorRateIncrease = errorRate
	}

	for _, cascade := range cascadeFailures(baseline.Health, observation.Health, targets, impact.CascadeFailures) {
		log.Warnf("[Monitor]: Cascade failure detected, service '%v' turned unhealthy without being a target", cascade)
		impact.CascadeFailures = append(impact.CascadeFailures, cascade)
	}

	breached := availability > monitor.settings.AvailabilityThreshold || errorRate > monitor.settings.ErrorRateThreshold
	if breached {
		monitor.clients.Alerts.Raise("critical", "chaos experiment impact threshold breached",
			fmt.Sprintf("availability impact %.1f%%, error rate increase %.1f%%", availability, errorRate),
			map[string]string{"availability_threshold": fmt.Sprintf("%.0f", monitor.settings.AvailabilityThreshold)})
	}
	return breached
}

//Recovered reports whether every service that was healthy at baseline is
// healthy again
func Recovered(baseline Baseline, health map[string]bool) bool {
	for name, wasHealthy := range baseline.Health {
		if wasHealthy && !health[name] {
			return false
		}
	}
	return true
}

// cascadeFailures returns the services that transitioned healthy->unhealthy
// without being direct injection targets, already-known ones excluded
func cascadeFailures(baseline, current map[string]bool, targets map[string]bool, known []string) []string {
	seen := map[string]bool{}
	for _, name := range known {
		seen[name] = true
	}

	cascades := []string{}
	for name, wasHealthy := range baseline {
		if wasHealthy && !current[name] && !targets[name] && !seen[name] {
			cascades = append(cascades, name)
		}
	}
	return cascades
}

func medianSnapshot(series []types.MetricsSnapshot) types.MetricsSnapshot {
	pick := func(f func(types.MetricsSnapshot) float64) float64 {
		values := make([]float64, 0, len(series))
		for _, snapshot := range series {
			values = append(values, f(snapshot))
		}
		median, err := stats.Median(values)
		if err != nil {
			return 0
		}
		return median
	}

	return types.MetricsSnapshot{
		ErrorRate:    pick(func(s types.MetricsSnapshot) float64 { return s.ErrorRate }),
		ResponseTime: pick(func(s types.MetricsSnapshot) float64 { return s.ResponseTime }),
		Throughput:   pick(func(s types.MetricsSnapshot) float64 { return s.Throughput }),
		CPU:          pick(func(s types.MetricsSnapshot) float64 { return s.CPU }),
		Memory:       pick(func(s types.MetricsSnapshot) float64 { return s.Memory }),
	}
}

// percentDrop measures how far current fell below the baseline, in percent
func percentDrop(baseline, current float64) float64 {
	if baseline <= 0 {
		return 0
	}
	drop := (baseline - current) / baseline * 100
	if drop < 0 {
		return 0
	}
	return drop
}

// percentRise measures how far current rose above the baseline, in percent;
// a zero baseline with a non-zero current counts as a full rise
func percentRise(baseline, current float64) float64 {
	if baseline <= 0 {
		if current > 0 {
			return 100
		}
		return 0
	}
	rise := (current - baseline) / baseline * 100
	if rise < 0 {
		return 0
	}
	return rise
}
