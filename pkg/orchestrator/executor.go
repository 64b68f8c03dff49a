package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/chaoslib"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/hypothesis"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/impact"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/log"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/metrics"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/telemetry"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/types"
)

// execute drives one run through every phase, the deferred block is the
// always-path: whatever a phase does, rollback and finalization happen
func (engine *Engine) execute(state *runState) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	state.mu.Lock()
	state.cancel = cancel
	if state.aborted {
		// the abort raced the goroutine start, honor it
		cancel()
	}
	state.run.StartedAt = engine.now()
	state.mu.Unlock()
	state.setStatus(types.RunStatusRunning)
	metrics.RunsStarted.Inc()

	defer func() {
		if r := recover(); r != nil {
			log.Errorf("Recovered from panic in run %v: %v", state.run.ID, r)
			state.fail(fmt.Sprintf("experiment crashed unexpectedly: %v", r))
			attempted := engine.coordinator.EmergencyRollback(ctx, state.run, state.takeActions())
			state.mu.Lock()
			state.run.RollbackAttempted += attempted
			state.mu.Unlock()
		} else {
			attempted := engine.coordinator.Rollback(ctx, state.takeActions())
			state.mu.Lock()
			state.run.RollbackAttempted += attempted
			state.mu.Unlock()
		}
		engine.finalize(state)
	}()

	engine.runPhases(ctx, state)
}

func (engine *Engine) runPhases(ctx context.Context, state *runState) {
	experiment := state.experiment
	run := state.run

	// Phase 1: pre-chaos steady state check
	phaseCtx, span := telemetry.StartPhaseSpan(ctx, types.PreChaosCheck, run.ID)
	log.Info("[Status]: Verify that the system is in steady state (pre-chaos)")
	snapshot, err := engine.clients.Metrics.CurrentMetrics(phaseCtx)
	if err != nil {
		span.End()
		state.fail(fmt.Sprintf("unable to sample metrics for the pre-chaos check: %v", err))
		return
	}
	before := engine.evaluator.EvaluateAll(experiment.SteadyState.Before, snapshot)
	state.mu.Lock()
	run.SteadyStateBefore = before
	state.mu.Unlock()
	span.End()
	if !hypothesis.AllPassed(before) {
		state.fail("system not in steady state before experiment")
		return
	}
	if state.interrupted() {
		return
	}

	// capture the reference the whole run is measured against
	baseline, err := engine.monitor.CaptureBaseline(ctx, run.ID)
	if err != nil {
		state.fail(fmt.Sprintf("unable to capture the impact baseline: %v", err))
		return
	}

	// Phase 2: chaos injection
	phaseCtx, span = telemetry.StartPhaseSpan(ctx, types.ChaosInject, run.ID)
	strategy, err := chaoslib.Resolve(experiment.Scenario, engine.clients)
	if err != nil {
		span.End()
		state.fail(fmt.Sprintf("unable to resolve the injection strategy: %v", err))
		return
	}
	actions, results := strategy.Inject(phaseCtx, experiment, run.ID)
	state.addActions(actions)
	state.mu.Lock()
	run.InjectionResults = results
	state.mu.Unlock()
	for _, result := range results {
		if !result.Success {
			metrics.InjectionFailures.Inc()
		}
	}
	span.End()
	if state.interrupted() {
		return
	}

	// Phase 3: live observation until the duration elapses or the impact
	// monitor pulls the brake
	engine.monitorPhase(ctx, state, baseline)

	// Phase 4: explicit end-of-injection signal
	_, span = telemetry.StartPhaseSpan(ctx, types.ChaosStop, run.ID)
	if err := strategy.Stop(context.WithoutCancel(ctx)); err != nil {
		log.Errorf("Unable to stop the injection strategy of run %v, err: %v", run.ID, err)
	}
	span.End()

	if state.interrupted() {
		return
	}

	// Phase 5: recovery wait
	if !engine.recoveryPhase(ctx, state, baseline) {
		return
	}

	// Phase 6: post-chaos steady state check, only reachable when the
	// pre-chaos check passed
	phaseCtx, span = telemetry.StartPhaseSpan(ctx, types.PostChaosCheck, run.ID)
	log.Info("[Status]: Verify that the system regained steady state (post-chaos)")
	snapshot, err = engine.clients.Metrics.CurrentMetrics(phaseCtx)
	if err != nil {
		span.End()
		state.fail(fmt.Sprintf("unable to sample metrics for the post-chaos check: %v", err))
		return
	}
	after := engine.evaluator.EvaluateAll(experiment.SteadyState.After, snapshot)
	state.mu.Lock()
	run.SteadyStateAfter = after
	state.mu.Unlock()
	span.End()

	if hypothesis.AllPassed(after) {
		state.setStatus(types.RunStatusCompleted)
		return
	}
	state.fail("steady state not restored after experiment")
}

// monitorPhase polls observations at the configured interval, it ends when
// the experiment duration elapses, the run is aborted or the blast radius
// breaches the thresholds with automatic rollback allowed
func (engine *Engine) monitorPhase(ctx context.Context, state *runState, baseline impact.Baseline) {
	experiment := state.experiment
	if experiment.Duration <= 0 {
		return
	}

	_, span := telemetry.StartPhaseSpan(ctx, types.ChaosMonitor, state.run.ID)
	defer span.End()

	targets := map[string]bool{}
	state.mu.Lock()
	for _, result := range state.run.InjectionResults {
		if result.Success {
			targets[result.Target] = true
		}
	}
	state.mu.Unlock()

	duration := time.NewTimer(experiment.Duration)
	defer duration.Stop()
	ticker := time.NewTicker(engine.settings.PollInterval)
	defer ticker.Stop()

	log.Infof("[Monitor]: Watching the blast radius for %v", experiment.Duration)
	for {
		select {
		case <-ctx.Done():
			return
		case <-duration.C:
			return
		case <-ticker.C:
			observation, err := engine.observe(ctx)
			if err != nil {
				log.Errorf("Unable to take an observation, err: %v", err)
				continue
			}

			state.mu.Lock()
			state.run.Observations = append(state.run.Observations, observation)
			breached := engine.monitor.Assess(baseline, observation, targets, &state.run.Impact)
			automatic := experiment.Rollback.Automatic
			state.mu.Unlock()

			if breached && automatic {
				log.Warnf("[Monitor]: Critical impact detected in run %v, aborting early", state.run.ID)
				state.mu.Lock()
				state.earlyAbort = true
				state.mu.Unlock()
				state.fail("critical impact detected, experiment aborted before its planned duration")
				return
			}
		}
	}
}

// recoveryPhase blocks until every service healthy at baseline is healthy
// again or the recovery timeout elapses, it reports whether the run may
// proceed to the post-chaos check
func (engine *Engine) recoveryPhase(ctx context.Context, state *runState, baseline impact.Baseline) bool {
	_, span := telemetry.StartPhaseSpan(ctx, types.RecoveryWait, state.run.ID)
	defer span.End()

	log.Info("[Wait]: Waiting for the system to recover")
	start := engine.now()
	for {
		health, err := engine.clients.Health.Checks(ctx)
		if err == nil && impact.Recovered(baseline, health) {
			latency := time.Since(start)
			state.mu.Lock()
			state.run.RecoveryLatency = latency
			state.mu.Unlock()
			log.Infof("[Wait]: System recovered after %v", latency)
			return true
		}
		if err != nil {
			log.Errorf("Unable to fetch the health checks during recovery, err: %v", err)
		}

		if time.Since(start) >= engine.settings.RecoveryTimeout {
			state.fail(fmt.Sprintf("system did not recover within %v", engine.settings.RecoveryTimeout))
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(engine.settings.PollInterval):
		}
	}
}

func (engine *Engine) observe(ctx context.Context) (types.Observation, error) {
	snapshot, err := engine.clients.Metrics.CurrentMetrics(ctx)
	if err != nil {
		return types.Observation{}, err
	}
	health, err := engine.clients.Health.Checks(ctx)
	if err != nil {
		return types.Observation{}, err
	}
	return types.Observation{Timestamp: engine.now(), Metrics: snapshot, Health: health}, nil
}
