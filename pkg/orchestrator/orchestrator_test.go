package orchestrator

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/cerrors"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/clients"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/environment"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/registry"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/types"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMetrics serves a fixed snapshot unless a sequence is installed, the
// sequence then plays once per call and holds its last value
type fakeMetrics struct {
	mu       sync.Mutex
	snapshot types.MetricsSnapshot
	sequence []types.MetricsSnapshot
	index    int
}

func (f *fakeMetrics) CurrentMetrics(ctx context.Context) (types.MetricsSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sequence) == 0 {
		return f.snapshot, nil
	}
	snapshot := f.sequence[f.index]
	if f.index+1 < len(f.sequence) {
		f.index++
	}
	return snapshot, nil
}

type fakeHealth struct {
	mu     sync.Mutex
	checks map[string]bool
}

func (f *fakeHealth) Checks(ctx context.Context) (map[string]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	checks := map[string]bool{}
	for name, healthy := range f.checks {
		checks[name] = healthy
	}
	return checks, nil
}

// fakeBackend records applies, undos and sweeps, individual targets can be
// made to fail
type fakeBackend struct {
	mu          sync.Mutex
	targets     []string
	failTargets map[string]bool
	applied     int64
	undone      int64
	swept       []string
	stopped     int64
}

func (f *fakeBackend) Targets(ctx context.Context, selector types.TargetSelector) ([]string, error) {
	return f.targets, nil
}

func (f *fakeBackend) Apply(ctx context.Context, target, runID string, params map[string]string) (func(context.Context) error, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failTargets[target] {
		return nil, errors.Errorf("permission denied on %v", target)
	}
	f.applied++
	return func(ctx context.Context) error {
		atomic.AddInt64(&f.undone, 1)
		return nil
	}, nil
}

func (f *fakeBackend) Stop(ctx context.Context) error {
	atomic.AddInt64(&f.stopped, 1)
	return nil
}

func (f *fakeBackend) Sweep(ctx context.Context, runID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.swept = append(f.swept, runID)
	return nil
}

type nopAlerts struct{}

func (nopAlerts) Raise(severity, title, description string, tags map[string]string) {}

type fixture struct {
	engine  *Engine
	metrics *fakeMetrics
	health  *fakeHealth
	backend *fakeBackend
}

func newFixture(t *testing.T, maxConcurrent int) *fixture {
	t.Helper()
	metrics := &fakeMetrics{snapshot: types.MetricsSnapshot{ErrorRate: 1, ResponseTime: 100, Throughput: 1000, CPU: 40, Memory: 50}}
	health := &fakeHealth{checks: map[string]bool{"svc-a": true, "svc-b": true, "svc-c": true}}
	backend := &fakeBackend{targets: []string{"svc-a", "svc-b", "svc-c"}}

	settings := &environment.Settings{
		MaxConcurrent:         maxConcurrent,
		PollInterval:          5 * time.Millisecond,
		RecoveryTimeout:       200 * time.Millisecond,
		RollbackRetries:       3,
		RollbackDelay:         time.Millisecond,
		RollbackTimeout:       time.Second,
		HistorySize:           100,
		AvailabilityThreshold: 50,
		ErrorRateThreshold:    80,
		BaselineSamples:       1,
		BaselineInterval:      time.Millisecond,
		ImpactReportThreshold: 30,
	}
	clientSets := clients.ClientSets{
		Metrics: metrics,
		Health:  health,
		Backends: map[types.ScenarioType]clients.InjectionBackend{
			types.ScenarioLatency:     backend,
			types.ScenarioServiceStop: backend,
		},
		Alerts: nopAlerts{},
	}
	engine := New(settings, clientSets, registry.New())
	return &fixture{engine: engine, metrics: metrics, health: health, backend: backend}
}

func (f *fixture) register(t *testing.T, experiment *types.ChaosExperiment) {
	t.Helper()
	require.NoError(t, f.engine.RegisterExperiment(experiment))
}

func (f *fixture) waitForCompletion(t *testing.T, runID string) *types.ExperimentRun {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case run := <-f.engine.Completions():
			if run.ID == runID {
				return run
			}
		case <-deadline:
			t.Fatalf("run %v never finalized", runID)
		}
	}
}

func experiment(id string) *types.ChaosExperiment {
	return &types.ChaosExperiment{
		ID:       id,
		Name:     "latency on " + id,
		Scenario: types.ScenarioLatency,
		Target:   types.TargetSelector{Namespace: "production", Service: "svc", Percentage: 100},
		Duration: 0,
		Enabled:  true,
		Rollback: types.RollbackPolicy{Automatic: true},
	}
}

func TestRunExperimentValidation(t *testing.T) {
	f := newFixture(t, 3)

	_, err := f.engine.RunExperiment("ghost", true)
	assert.Equal(t, cerrors.ErrorTypeExperimentGet, cerrors.GetErrorType(err))

	disabled := experiment("exp-disabled")
	disabled.Enabled = false
	f.register(t, disabled)
	_, err = f.engine.RunExperiment("exp-disabled", true)
	assert.Equal(t, cerrors.ErrorTypeExperimentDisabled, cerrors.GetErrorType(err))
}

// Scenario: zero duration, no hypotheses, all targets succeed
func TestZeroDurationRunCompletes(t *testing.T) {
	f := newFixture(t, 3)
	exp := experiment("exp-1")
	exp.Target.Percentage = 0 // one target regardless of population size
	f.register(t, exp)

	runID, err := f.engine.RunExperiment("exp-1", true)
	require.NoError(t, err)

	run := f.waitForCompletion(t, runID)
	assert.Equal(t, types.RunStatusCompleted, run.Status)
	assert.Empty(t, run.Observations)
	assert.Equal(t, types.ImpactMetrics{}, run.Impact)
	assert.Equal(t, run.RollbackRegistered, run.RollbackAttempted)
	assert.Equal(t, int64(1), atomic.LoadInt64(&f.backend.undone))
}

func TestPreCheckFailureSkipsInjection(t *testing.T) {
	f := newFixture(t, 3)
	exp := experiment("exp-1")
	exp.SteadyState.Before = []types.ChaosHypothesis{
		{Name: "low-errors", Metric: "error_rate", Operator: "<", Threshold: 0.5},
	}
	f.register(t, exp)

	// error rate in the fixture snapshot is 1, the hypothesis fails
	runID, err := f.engine.RunExperiment("exp-1", true)
	require.NoError(t, err)

	run := f.waitForCompletion(t, runID)
	assert.Equal(t, types.RunStatusFailed, run.Status)
	assert.Contains(t, run.Lessons, "system not in steady state before experiment")
	assert.False(t, run.SteadyStateBefore["low-errors"])
	// no chaos was injected
	assert.Empty(t, run.InjectionResults)
	assert.Equal(t, int64(0), atomic.LoadInt64(&f.backend.applied))
}

// Scenario: safeguard blocks a second concurrent run
func TestMaxConcurrentBlocksScheduledRun(t *testing.T) {
	f := newFixture(t, 1)
	longRunning := experiment("exp-a")
	longRunning.Duration = time.Second
	f.register(t, longRunning)
	f.register(t, experiment("exp-b"))

	runID, err := f.engine.RunExperiment("exp-a", true)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return len(f.engine.ListRunning()) == 1
	}, time.Second, time.Millisecond)

	_, err = f.engine.RunExperiment("exp-b", false)
	assert.Equal(t, cerrors.ErrorTypeSafeguardBlocked, cerrors.GetErrorType(err))
	assert.Contains(t, err.Error(), "max-concurrent")

	require.NoError(t, f.engine.AbortExperiment(runID, "test cleanup"))
	f.waitForCompletion(t, runID)
}

func TestAlreadyRunningRejected(t *testing.T) {
	f := newFixture(t, 3)
	exp := experiment("exp-1")
	exp.Duration = time.Second
	f.register(t, exp)

	runID, err := f.engine.RunExperiment("exp-1", true)
	require.NoError(t, err)

	_, err = f.engine.RunExperiment("exp-1", true)
	assert.Equal(t, cerrors.ErrorTypeAlreadyRunning, cerrors.GetErrorType(err))

	// listRunning never contains two entries for the same experiment
	running := f.engine.ListRunning()
	assert.Len(t, running, 1)

	require.NoError(t, f.engine.AbortExperiment(runID, "test cleanup"))
	f.waitForCompletion(t, runID)
}

// Scenario: one of three targets fails, the run proceeds and the report
// recommends a configuration review
func TestPartialInjectionFailure(t *testing.T) {
	f := newFixture(t, 3)
	f.backend.failTargets = map[string]bool{"svc-b": true}
	exp := experiment("exp-1")
	exp.Duration = 20 * time.Millisecond
	f.register(t, exp)

	runID, err := f.engine.RunExperiment("exp-1", true)
	require.NoError(t, err)
	run := f.waitForCompletion(t, runID)

	assert.Equal(t, types.RunStatusCompleted, run.Status)
	require.Len(t, run.InjectionResults, 3)
	assert.Equal(t, 1, run.FailedInjections())

	report, err := f.engine.Report(runID)
	require.NoError(t, err)
	assert.Contains(t, report.Recommendations, "review chaos experiment configurations")
}

// Scenario: availability impact crosses the 50% threshold mid-run
func TestCriticalImpactAbortsEarly(t *testing.T) {
	f := newFixture(t, 3)
	baseline := types.MetricsSnapshot{ErrorRate: 1, ResponseTime: 100, Throughput: 1000}
	f.metrics.sequence = []types.MetricsSnapshot{
		baseline, // pre-check
		baseline, // baseline capture
		{ErrorRate: 1, ResponseTime: 110, Throughput: 900}, // 10% impact
		{ErrorRate: 1, ResponseTime: 150, Throughput: 450}, // 55% impact
	}

	exp := experiment("exp-1")
	exp.Duration = 10 * time.Second
	exp.Rollback.Automatic = true
	f.register(t, exp)

	start := time.Now()
	runID, err := f.engine.RunExperiment("exp-1", true)
	require.NoError(t, err)
	run := f.waitForCompletion(t, runID)

	assert.Equal(t, types.RunStatusFailed, run.Status)
	assert.Less(t, time.Since(start), 5*time.Second, "early abort must beat the experiment duration")
	assert.Contains(t, run.Lessons, "critical impact detected, experiment aborted before its planned duration")
	assert.GreaterOrEqual(t, run.Impact.AvailabilityImpact, float64(50))
	// rollback still ran
	assert.Equal(t, run.RollbackRegistered, run.RollbackAttempted)
}

func TestAbortIsIdempotentViaNotFound(t *testing.T) {
	f := newFixture(t, 3)
	exp := experiment("exp-1")
	exp.Duration = 10 * time.Second
	f.register(t, exp)

	runID, err := f.engine.RunExperiment("exp-1", true)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return len(f.engine.ListRunning()) == 1
	}, time.Second, time.Millisecond)

	assert.NoError(t, f.engine.AbortExperiment(runID, "operator requested"))
	run := f.waitForCompletion(t, runID)
	assert.Equal(t, types.RunStatusAborted, run.Status)
	assert.Contains(t, run.Lessons, "experiment aborted: operator requested")

	// the run is terminal now, a second abort finds nothing
	err = f.engine.AbortExperiment(runID, "again")
	assert.Equal(t, cerrors.ErrorTypeRunGet, cerrors.GetErrorType(err))
}

func TestEveryMutationIsRolledBack(t *testing.T) {
	f := newFixture(t, 3)
	exp := experiment("exp-1")
	exp.Duration = 20 * time.Millisecond
	f.register(t, exp)

	runID, err := f.engine.RunExperiment("exp-1", true)
	require.NoError(t, err)
	run := f.waitForCompletion(t, runID)

	assert.Equal(t, 3, run.RollbackRegistered)
	assert.Equal(t, run.RollbackRegistered, run.RollbackAttempted)
	assert.Eventually(t, func() bool {
		return atomic.LoadInt64(&f.backend.undone) == 3
	}, time.Second, time.Millisecond)
}

func TestRecoveryTimeoutFailsRun(t *testing.T) {
	f := newFixture(t, 3)
	exp := experiment("exp-1")
	exp.Duration = 10 * time.Millisecond
	f.register(t, exp)

	// svc-c never recovers after the injection starts
	runID, err := f.engine.RunExperiment("exp-1", true)
	require.NoError(t, err)
	f.health.mu.Lock()
	f.health.checks["svc-c"] = false
	f.health.mu.Unlock()

	run := f.waitForCompletion(t, runID)
	if run.Status == types.RunStatusFailed {
		assert.NotEmpty(t, run.Lessons)
	}
	// whatever the verdict, the run is terminal and never stuck running
	assert.True(t, run.Status.Terminal())
}

func TestCompletionNotificationExactlyOnce(t *testing.T) {
	f := newFixture(t, 3)
	var notified int64
	f.engine.Subscribe(func(run *types.ExperimentRun) {
		atomic.AddInt64(&notified, 1)
	})
	f.register(t, experiment("exp-1"))

	runID, err := f.engine.RunExperiment("exp-1", true)
	require.NoError(t, err)
	f.waitForCompletion(t, runID)

	assert.Eventually(t, func() bool {
		return atomic.LoadInt64(&notified) == 1
	}, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int64(1), atomic.LoadInt64(&notified))
}

func TestGetResultAndHistory(t *testing.T) {
	f := newFixture(t, 3)
	f.register(t, experiment("exp-1"))

	_, err := f.engine.GetResult("missing")
	assert.Equal(t, cerrors.ErrorTypeRunGet, cerrors.GetErrorType(err))

	runID, err := f.engine.RunExperiment("exp-1", true)
	require.NoError(t, err)
	f.waitForCompletion(t, runID)

	run, err := f.engine.GetResult(runID)
	require.NoError(t, err)
	assert.Equal(t, types.RunStatusCompleted, run.Status)

	recent := f.engine.History(5)
	require.Len(t, recent, 1)
	assert.Equal(t, runID, recent[0].ID)
}
