package clients

import (
	"context"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/cerrors"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/types"
)

// MetricsProvider supplies live telemetry snapshots for hypothesis
// evaluation and impact measurement
type MetricsProvider interface {
	CurrentMetrics(ctx context.Context) (types.MetricsSnapshot, error)
}

// HealthChecker reports the per-service health view used for cascade
// detection, recovery wait and the health precondition safeguard
type HealthChecker interface {
	Checks(ctx context.Context) (map[string]bool, error)
}

// InjectionBackend is the environment-specific fault executor for one
// scenario type, the core only ever sees its apply/undo capability
type InjectionBackend interface {
	// Targets enumerates the population the selector resolves to
	Targets(ctx context.Context, selector types.TargetSelector) ([]string, error)
	// Apply injects the fault into a single target and returns the undo
	// closure reversing exactly what it did
	Apply(ctx context.Context, target string, runID string, params map[string]string) (func(context.Context) error, error)
	// Stop signals the backend to end self-expiring faults, a no-op for
	// faults that only end via rollback
	Stop(ctx context.Context) error
	// Sweep removes any leftover resource tagged with the run id, the
	// defense against a crash between mutate and rollback registration
	Sweep(ctx context.Context, runID string) error
}

// AlertSink receives notable run events, critical impact breaches included
type AlertSink interface {
	Raise(severity string, title string, description string, tags map[string]string)
}

// ClientSets is a collection of every external collaborator handle the
// orchestration core needs
type ClientSets struct {
	Metrics  MetricsProvider
	Health   HealthChecker
	Backends map[types.ScenarioType]InjectionBackend
	Alerts   AlertSink
}

// BackendFor returns the injection backend registered for the scenario
func (clients ClientSets) BackendFor(scenario types.ScenarioType) (InjectionBackend, error) {
	backend, ok := clients.Backends[scenario]
	if !ok {
		return nil, cerrors.Error{
			ErrorCode: cerrors.ErrorTypeChaosInjection,
			Reason:    "no injection backend registered for scenario '" + string(scenario) + "'",
		}
	}
	return backend, nil
}
