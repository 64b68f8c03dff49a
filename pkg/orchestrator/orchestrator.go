// Package orchestrator drives chaos experiment runs through their phased
// lifecycle and guarantees every injected mutation is rolled back, whatever
// happens in between.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/cerrors"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/clients"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/environment"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/history"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/hypothesis"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/impact"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/log"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/metrics"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/registry"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/rollback"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/safeguard"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/types"
	"github.com/google/uuid"
)

// Observer receives exactly one notification per run, after finalization
type Observer func(run *types.ExperimentRun)

// Engine owns every live run, scheduled ticks and manual triggers both go
// through RunExperiment so there is no weaker code path
type Engine struct {
	settings    *environment.Settings
	clients     clients.ClientSets
	registry    *registry.Registry
	safeguards  *safeguard.Checker
	store       *history.Store
	coordinator *rollback.Coordinator
	monitor     *impact.Monitor
	evaluator   *hypothesis.Evaluator

	mu          sync.Mutex
	activeByExp map[string]*runState
	activeByRun map[string]*runState
	activeCount int64
	observers   []Observer
	completions chan *types.ExperimentRun
	now         func() time.Time
}

//New creates the orchestration engine and wires itself as the registry's
// scheduled trigger
func New(settings *environment.Settings, clientSets clients.ClientSets, reg *registry.Registry) *Engine {
	engine := &Engine{
		settings:    settings,
		clients:     clientSets,
		registry:    reg,
		store:       history.NewStore(settings.HistorySize),
		coordinator: rollback.NewCoordinator(settings, clientSets),
		monitor:     impact.NewMonitor(settings, clientSets),
		evaluator:   hypothesis.NewEvaluator(),
		activeByExp: map[string]*runState{},
		activeByRun: map[string]*runState{},
		completions: make(chan *types.ExperimentRun, 64),
		now:         time.Now,
	}
	engine.safeguards = safeguard.NewChecker(settings, clientSets.Health, func() int {
		return int(atomic.LoadInt64(&engine.activeCount))
	})
	reg.SetTrigger(func(id string) error {
		_, err := engine.RunExperiment(id, false)
		return err
	})
	return engine
}

//Safeguards exposes the checker so embedders can add custom preconditions
func (engine *Engine) Safeguards() *safeguard.Checker {
	return engine.safeguards
}

//Completions returns the channel carrying one notification per finalized run
func (engine *Engine) Completions() <-chan *types.ExperimentRun {
	return engine.completions
}

//Subscribe registers an observer called synchronously after finalization
func (engine *Engine) Subscribe(observer Observer) {
	engine.mu.Lock()
	engine.observers = append(engine.observers, observer)
	engine.mu.Unlock()
}

//RegisterExperiment stores a definition in the registry
func (engine *Engine) RegisterExperiment(experiment *types.ChaosExperiment) error {
	return engine.registry.Register(experiment)
}

//Unregister forgets a definition and disarms its schedule
func (engine *Engine) Unregister(id string) {
	engine.registry.Unregister(id)
}

//RunExperiment starts a run for the experiment id and returns the run id,
// the run itself proceeds asynchronously
func (engine *Engine) RunExperiment(id string, manual bool) (string, error) {
	experiment, err := engine.registry.Get(id)
	if err != nil {
		return "", err
	}
	if !experiment.Enabled {
		return "", cerrors.Error{
			ErrorCode: cerrors.ErrorTypeExperimentDisabled,
			Reason:    "experiment '" + id + "' is disabled",
		}
	}

	engine.mu.Lock()
	if _, running := engine.activeByExp[id]; running {
		engine.mu.Unlock()
		return "", cerrors.Error{
			ErrorCode: cerrors.ErrorTypeAlreadyRunning,
			Reason:    "experiment '" + id + "' already has an active run",
		}
	}

	violations := engine.safeguards.Check(context.Background())
	if blocking := safeguard.Blocking(violations, manual); len(blocking) > 0 {
		engine.mu.Unlock()
		metrics.SafeguardBlocks.Inc()
		return "", cerrors.Error{
			ErrorCode: cerrors.ErrorTypeSafeguardBlocked,
			Reason:    describeViolations(blocking),
		}
	}

	run := &types.ExperimentRun{
		ID:           uuid.New().String(),
		ExperimentID: id,
		Status:       types.RunStatusPending,
	}
	state := &runState{run: run, experiment: experiment}
	engine.activeByExp[id] = state
	engine.activeByRun[run.ID] = state
	atomic.AddInt64(&engine.activeCount, 1)
	metrics.ActiveRuns.Inc()
	engine.mu.Unlock()

	log.InfoWithValues("[PreReq]: Starting chaos experiment run", map[string]interface{}{
		"Experiment": experiment.Name,
		"Scenario":   experiment.Scenario,
		"Run ID":     run.ID,
		"Manual":     manual,
	})

	go engine.execute(state)
	return run.ID, nil
}

//AbortExperiment requests the externally triggered transition to aborted,
// valid at any point before finalization
func (engine *Engine) AbortExperiment(runID string, reason string) error {
	engine.mu.Lock()
	state, ok := engine.activeByRun[runID]
	engine.mu.Unlock()
	if !ok {
		return cerrors.Error{
			ErrorCode: cerrors.ErrorTypeRunGet,
			Reason:    "no active run with id '" + runID + "'",
		}
	}

	state.mu.Lock()
	state.aborted = true
	state.abortReason = reason
	cancel := state.cancel
	state.mu.Unlock()

	log.Warnf("[Abort]: Run %v abort requested: %v", runID, reason)
	if cancel != nil {
		cancel()
	}
	return nil
}

//GetResult returns the run with the given id, live runs are returned as a
// point-in-time snapshot
func (engine *Engine) GetResult(runID string) (*types.ExperimentRun, error) {
	engine.mu.Lock()
	state, ok := engine.activeByRun[runID]
	engine.mu.Unlock()
	if ok {
		return state.snapshot(), nil
	}
	return engine.store.Get(runID)
}

//ListRunning returns a snapshot of every active run
func (engine *Engine) ListRunning() []*types.ExperimentRun {
	engine.mu.Lock()
	states := make([]*runState, 0, len(engine.activeByRun))
	for _, state := range engine.activeByRun {
		states = append(states, state)
	}
	engine.mu.Unlock()

	runs := make([]*types.ExperimentRun, 0, len(states))
	for _, state := range states {
		runs = append(runs, state.snapshot())
	}
	return runs
}

//History returns up to limit finalized runs, most recent first
func (engine *Engine) History(limit int) []*types.ExperimentRun {
	return engine.store.History(limit)
}

//Report builds the digest of a finalized run
func (engine *Engine) Report(runID string) (history.Report, error) {
	run, err := engine.store.Get(runID)
	if err != nil {
		return history.Report{}, err
	}
	return history.BuildReport(run, engine.settings.ImpactReportThreshold), nil
}

// finalize closes out the run exactly once, on the normal path and on the
// panic path alike
func (engine *Engine) finalize(state *runState) {
	state.finalizeOnce.Do(func() {
		state.mu.Lock()
		if !state.run.Status.Terminal() {
			switch {
			case state.aborted:
				state.run.Status = types.RunStatusAborted
				state.run.Lessons = append(state.run.Lessons, "experiment aborted: "+state.abortReason)
			default:
				// reaching finalization without a verdict means a phase
				// broke out unexpectedly
				state.run.Status = types.RunStatusFailed
			}
		}
		state.run.EndedAt = engine.now()
		if failed := state.run.FailedInjections(); failed > 0 {
			state.run.Lessons = append(state.run.Lessons,
				fmt.Sprintf("%v of %v injection attempts failed, review backend permissions and configuration", failed, len(state.run.InjectionResults)))
		}
		if len(state.run.Impact.CascadeFailures) > 0 {
			state.run.Lessons = append(state.run.Lessons,
				fmt.Sprintf("failures cascaded into %v non-target services", len(state.run.Impact.CascadeFailures)))
		}
		run := state.run
		state.mu.Unlock()

		engine.monitor.ForgetBaseline(run.ID)
		engine.store.Append(run)

		engine.mu.Lock()
		delete(engine.activeByExp, run.ExperimentID)
		delete(engine.activeByRun, run.ID)
		observers := append([]Observer(nil), engine.observers...)
		engine.mu.Unlock()
		atomic.AddInt64(&engine.activeCount, -1)
		metrics.ActiveRuns.Dec()
		metrics.RunsFinished.WithLabelValues(string(run.Status)).Inc()

		log.InfoWithValues("[The End]: Chaos experiment run finalized", map[string]interface{}{
			"Run ID":  run.ID,
			"Verdict": run.Status,
			"Lessons": len(run.Lessons),
		})

		select {
		case engine.completions <- run:
		default:
			log.Warn("[Summary]: Completion channel is full, dropping notification")
		}
		for _, observer := range observers {
			observer(run)
		}
	})
}

func describeViolations(violations []types.SafeguardViolation) string {
	description := "blocked by safeguards:"
	for _, violation := range violations {
		description += fmt.Sprintf(" [%v/%v] %v;", violation.Type, violation.Severity, violation.Description)
	}
	return description
}
