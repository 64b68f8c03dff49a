package orchestrator

import (
	"sync"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/types"
)

// runState is the live execution state of one run, the executor goroutine
// is the only writer of the embedded run, everyone else reads snapshots
type runState struct {
	mu           sync.Mutex
	run          *types.ExperimentRun
	experiment   *types.ChaosExperiment
	cancel       func()
	aborted      bool
	abortReason  string
	earlyAbort   bool
	actions      []types.RollbackAction
	finalizeOnce sync.Once
}

// setStatus moves the run forward, a terminal status is never regressed
func (st *runState) setStatus(status types.RunStatus) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.run.Status.Terminal() {
		return
	}
	st.run.Status = status
}

func (st *runState) fail(lesson string) {
	st.setStatus(types.RunStatusFailed)
	if lesson != "" {
		st.addLesson(lesson)
	}
}

func (st *runState) addLesson(lesson string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.run.Lessons = append(st.run.Lessons, lesson)
}

func (st *runState) interrupted() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.aborted || st.earlyAbort
}

// takeActions hands the accumulated rollback actions to the cleanup phase,
// they are consumed exactly once
func (st *runState) takeActions() []types.RollbackAction {
	st.mu.Lock()
	defer st.mu.Unlock()
	actions := st.actions
	st.actions = nil
	return actions
}

func (st *runState) addActions(actions []types.RollbackAction) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.actions = append(st.actions, actions...)
	st.run.RollbackRegistered += len(actions)
}

// snapshot returns a copy of the run safe to hand to readers while the
// executor keeps mutating the original
func (st *runState) snapshot() *types.ExperimentRun {
	st.mu.Lock()
	defer st.mu.Unlock()

	run := *st.run
	run.Observations = append([]types.Observation(nil), st.run.Observations...)
	run.InjectionResults = append([]types.InjectionResult(nil), st.run.InjectionResults...)
	run.Lessons = append([]string(nil), st.run.Lessons...)
	run.Impact.CascadeFailures = append([]string(nil), st.run.Impact.CascadeFailures...)
	return &run
}
