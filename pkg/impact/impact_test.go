package impact

import (
	"context"
	"testing"
	"time"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/clients"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/environment"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/types"
	"github.com/stretchr/testify/assert"
)

type sequenceMetrics struct {
	snapshots []types.MetricsSnapshot
	index     int
}

func (s *sequenceMetrics) CurrentMetrics(ctx context.Context) (types.MetricsSnapshot, error) {
	snapshot := s.snapshots[s.index]
	if s.index+1 < len(s.snapshots) {
		s.index++
	}
	return snapshot, nil
}

type fixedHealth map[string]bool

func (h fixedHealth) Checks(ctx context.Context) (map[string]bool, error) {
	return h, nil
}

type recordingAlerts struct {
	raised int
}

func (a *recordingAlerts) Raise(severity, title, description string, tags map[string]string) {
	a.raised++
}

func monitorWith(metrics clients.MetricsProvider, health clients.HealthChecker) (*Monitor, *recordingAlerts) {
	alerts := &recordingAlerts{}
	settings := &environment.Settings{
		AvailabilityThreshold: 50,
		ErrorRateThreshold:    80,
		BaselineSamples:       3,
		BaselineInterval:      time.Millisecond,
	}
	return NewMonitor(settings, clients.ClientSets{Metrics: metrics, Health: health, Alerts: alerts}), alerts
}

func TestCaptureBaselineUsesMedian(t *testing.T) {
	metrics := &sequenceMetrics{snapshots: []types.MetricsSnapshot{
		{Throughput: 100, ResponseTime: 200, ErrorRate: 1},
		{Throughput: 900, ResponseTime: 210, ErrorRate: 2},
		{Throughput: 110, ResponseTime: 220, ErrorRate: 3},
	}}
	monitor, _ := monitorWith(metrics, fixedHealth{"api": true})

	baseline, err := monitor.CaptureBaseline(context.Background(), "run-1")
	assert.NoError(t, err)
	// the 900 outlier must not become the reference
	assert.Equal(t, float64(110), baseline.Metrics.Throughput)
	assert.Equal(t, float64(210), baseline.Metrics.ResponseTime)
}

func TestAssessUpdatesRunningMaxima(t *testing.T) {
	monitor, _ := monitorWith(nil, nil)
	baseline := Baseline{Metrics: types.MetricsSnapshot{Throughput: 100, ResponseTime: 100, ErrorRate: 10}}
	impact := types.ImpactMetrics{}

	monitor.Assess(baseline, types.Observation{Metrics: types.MetricsSnapshot{Throughput: 80, ResponseTime: 150, ErrorRate: 12}}, nil, &impact)
	assert.InDelta(t, 20, impact.AvailabilityImpact, 0.01)
	assert.InDelta(t, 50, impact.ResponseTimeImpact, 0.01)

	// a later calmer tick never lowers the maxima
	monitor.Assess(baseline, types.Observation{Metrics: types.MetricsSnapshot{Throughput: 95, ResponseTime: 110, ErrorRate: 10}}, nil, &impact)
	assert.InDelta(t, 20, impact.AvailabilityImpact, 0.01)
	assert.InDelta(t, 50, impact.ResponseTimeImpact, 0.01)
}

func TestAssessSignalsThresholdBreach(t *testing.T) {
	monitor, alerts := monitorWith(nil, nil)
	baseline := Baseline{Metrics: types.MetricsSnapshot{Throughput: 100}}
	impact := types.ImpactMetrics{}

	breached := monitor.Assess(baseline, types.Observation{Metrics: types.MetricsSnapshot{Throughput: 45}}, nil, &impact)
	assert.True(t, breached)
	assert.Equal(t, 1, alerts.raised)
}

func TestCascadeFailureDetection(t *testing.T) {
	monitor, _ := monitorWith(nil, nil)
	baseline := Baseline{
		Metrics: types.MetricsSnapshot{Throughput: 100},
		Health:  map[string]bool{"api": true, "db": true, "cache": true},
	}
	impact := types.ImpactMetrics{}
	observation := types.Observation{
		Metrics: types.MetricsSnapshot{Throughput: 100},
		Health:  map[string]bool{"api": false, "db": false, "cache": true},
	}

	monitor.Assess(baseline, observation, map[string]bool{"api": true}, &impact)
	// api was the direct target, only db is a cascade
	assert.Equal(t, []string{"db"}, impact.CascadeFailures)

	// the same cascade is not recorded twice
	monitor.Assess(baseline, observation, map[string]bool{"api": true}, &impact)
	assert.Equal(t, []string{"db"}, impact.CascadeFailures)
}

func TestRecovered(t *testing.T) {
	baseline := Baseline{Health: map[string]bool{"api": true, "batch": false}}
	assert.False(t, Recovered(baseline, map[string]bool{"api": false, "batch": false}))
	// a service already unhealthy at baseline does not block recovery
	assert.True(t, Recovered(baseline, map[string]bool{"api": true, "batch": false}))
}
