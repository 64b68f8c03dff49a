package types

import (
	"context"
	"time"
)

const (
	// PreChaosCheck initial stage of experiment check for steady state before chaos injection
	PreChaosCheck string = "PreChaosCheck"
	// ChaosInject this stage refer to the main chaos injection
	ChaosInject string = "ChaosInject"
	// ChaosMonitor live observation stage while the fault is active
	ChaosMonitor string = "ChaosMonitor"
	// ChaosStop explicit end-of-injection signal to the strategies
	ChaosStop string = "ChaosStop"
	// RecoveryWait stage blocking until health observations recover
	RecoveryWait string = "RecoveryWait"
	// PostChaosCheck pre-final stage of experiment check for steady state after chaos injection
	PostChaosCheck string = "PostChaosCheck"
	// Cleanup rollback of every injected mutation, runs on every path
	Cleanup string = "Cleanup"
	// Summary final stage of experiment update the verdict
	Summary string = "Summary"
)

// ScenarioType enumerates the supported chaos scenarios
type ScenarioType string

const (
	ScenarioLatency           ScenarioType = "latency"
	ScenarioErrorRate         ScenarioType = "error-rate"
	ScenarioResourceStress    ScenarioType = "resource-stress"
	ScenarioNetworkPartition  ScenarioType = "network-partition"
	ScenarioServiceStop       ScenarioType = "service-stop"
	ScenarioDependencyFailure ScenarioType = "dependency-failure"
)

// RunStatus is the lifecycle status of an experiment run, transitions are
// monotonic: pending -> running -> {completed | failed | aborted}
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusAborted   RunStatus = "aborted"
)

// Terminal reports whether the status is final, terminal runs are immutable
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed, RunStatusAborted:
		return true
	}
	return false
}

// TargetSelector picks the population subset an injection acts on
type TargetSelector struct {
	Namespace  string `yaml:"namespace" validate:"required"`
	Service    string `yaml:"service"`
	Percentage int    `yaml:"percentage" validate:"min=0,max=100"`
}

// UndoDescriptor is the declarative form of a rollback step carried on the
// experiment definition, the strategies turn these into live closures
type UndoDescriptor struct {
	Kind   string            `yaml:"kind"`
	Params map[string]string `yaml:"params"`
}

// RollbackPolicy describes how a run is undone
type RollbackPolicy struct {
	Automatic bool             `yaml:"automatic"`
	Undo      []UndoDescriptor `yaml:"undo"`
}

// Schedule arms the registry ticker, every tick the experiment fires
// independently with the given probability
type Schedule struct {
	Interval    time.Duration `yaml:"interval" validate:"gt=0"`
	Probability float64       `yaml:"probability" validate:"gte=0,lte=1"`
}

// ChaosHypothesis is a structured steady-state condition, resolved from its
// legacy string form once at registration time and never re-parsed
type ChaosHypothesis struct {
	Name      string  `yaml:"name" validate:"required"`
	Metric    string  `yaml:"metric" validate:"required"`
	Operator  string  `yaml:"operator" validate:"oneof=< <= > >= == !="`
	Threshold float64 `yaml:"threshold"`
	Unit      string  `yaml:"unit"`
	Tolerance float64 `yaml:"tolerance" validate:"gte=0"`
}

// SteadyStateSpec holds the hypothesis lists checked around the injection
type SteadyStateSpec struct {
	Before []ChaosHypothesis `yaml:"before" validate:"dive"`
	After  []ChaosHypothesis `yaml:"after" validate:"dive"`
}

// ChaosExperiment is the immutable definition of an experiment
type ChaosExperiment struct {
	ID          string            `yaml:"id" validate:"required"`
	Name        string            `yaml:"name" validate:"required"`
	Scenario    ScenarioType      `yaml:"scenario" validate:"required,oneof=latency error-rate resource-stress network-partition service-stop dependency-failure"`
	Target      TargetSelector    `yaml:"target"`
	Duration    time.Duration     `yaml:"duration" validate:"gte=0"`
	SteadyState SteadyStateSpec   `yaml:"steadyState"`
	Rollback    RollbackPolicy    `yaml:"rollback"`
	Enabled     bool              `yaml:"enabled"`
	Schedule    *Schedule         `yaml:"schedule,omitempty"`
	Params      map[string]string `yaml:"params"`
}

// MetricsSnapshot is one telemetry sample from the MetricsProvider
type MetricsSnapshot struct {
	ErrorRate    float64
	ResponseTime float64
	Throughput   float64
	CPU          float64
	Memory       float64
}

// Observation couples a metrics sample with the health checks taken at the
// same monitor tick
type Observation struct {
	Timestamp time.Time
	Metrics   MetricsSnapshot
	Health    map[string]bool
}

// ImpactMetrics accumulates the running maxima of the measured blast radius
type ImpactMetrics struct {
	AvailabilityImpact float64
	ResponseTimeImpact float64
	ErrorRateIncrease  float64
	CascadeFailures    []string
}

// InjectionResult records one per-target apply attempt, failures are kept
// alongside successes and never abort the remaining targets
type InjectionResult struct {
	Target  string
	Success bool
	Reason  string
}

// RollbackAction is a closure capturing exactly how to undo one injected
// mutation, pushed by the strategy before Apply returns
type RollbackAction struct {
	ID          string
	RunID       string
	Description string
	Undo        func(ctx context.Context) error
}

// SafeguardViolationType enumerates the builtin safeguard checks
type SafeguardViolationType string

const (
	ViolationMaxConcurrent      SafeguardViolationType = "max-concurrent"
	ViolationScheduleWindow     SafeguardViolationType = "schedule-window"
	ViolationHealthPrecondition SafeguardViolationType = "health-precondition"
	ViolationCustom             SafeguardViolationType = "custom"
)

// SafeguardSeverity splits violations into advisory and blocking, a manual
// run may waive warnings but never criticals
type SafeguardSeverity string

const (
	SeverityWarning  SafeguardSeverity = "warning"
	SeverityCritical SafeguardSeverity = "critical"
)

// SafeguardViolation is one failed precondition reported by the checker
type SafeguardViolation struct {
	Type        SafeguardViolationType
	Description string
	Severity    SafeguardSeverity
}

// ExperimentRun is one execution attempt of an experiment, mutated only by
// the orchestrator that created it and frozen once the status is terminal
type ExperimentRun struct {
	ID                 string
	ExperimentID       string
	Status             RunStatus
	StartedAt          time.Time
	EndedAt            time.Time
	SteadyStateBefore  map[string]bool
	SteadyStateAfter   map[string]bool
	Observations       []Observation
	Impact             ImpactMetrics
	InjectionResults   []InjectionResult
	RecoveryLatency    time.Duration
	RollbackRegistered int
	RollbackAttempted  int
	Lessons            []string
}

// CascadeFailuresCopy returns a copy of the cascade failure set so that
// report consumers cannot mutate a terminal run
func (r *ExperimentRun) CascadeFailuresCopy() []string {
	if len(r.Impact.CascadeFailures) == 0 {
		return nil
	}
	cascades := make([]string, len(r.Impact.CascadeFailures))
	copy(cascades, r.Impact.CascadeFailures)
	return cascades
}

// FailedInjections counts the per-target apply attempts that did not succeed
func (r *ExperimentRun) FailedInjections() int {
	failed := 0
	for _, result := range r.InjectionResults {
		if !result.Success {
			failed++
		}
	}
	return failed
}
