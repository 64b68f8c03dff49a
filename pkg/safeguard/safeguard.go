package safeguard

import (
	"context"
	"fmt"
	"time"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/clients"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/environment"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/log"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/types"
)

// CustomCheck is a pluggable precondition, it returns nil when satisfied
type CustomCheck func(ctx context.Context) *types.SafeguardViolation

// Checker evaluates the global preconditions gating every experiment run,
// scheduled and manual triggers go through the same instance
type Checker struct {
	settings     *environment.Settings
	health       clients.HealthChecker
	activeRuns   func() int
	customChecks []CustomCheck
	now          func() time.Time
}

//NewChecker creates the safeguard checker, activeRuns must report the
// registry's live count since it is the single point of truth
func NewChecker(settings *environment.Settings, health clients.HealthChecker, activeRuns func() int) *Checker {
	return &Checker{
		settings:   settings,
		health:     health,
		activeRuns: activeRuns,
		now:        time.Now,
	}
}

//AddCheck registers an additional custom precondition
func (checker *Checker) AddCheck(check CustomCheck) {
	checker.customChecks = append(checker.customChecks, check)
}

//Check evaluates every safeguard against the current global state, it is a
// pure read and never mutates anything
func (checker *Checker) Check(ctx context.Context) []types.SafeguardViolation {
	violations := []types.SafeguardViolation{}

	if active := checker.activeRuns(); active >= checker.settings.MaxConcurrent {
		violations = append(violations, types.SafeguardViolation{
			Type:        types.ViolationMaxConcurrent,
			Description: fmt.Sprintf("%v experiments already running, configured maximum is %v", active, checker.settings.MaxConcurrent),
			Severity:    types.SeverityCritical,
		})
	}

	if !checker.insideWindow() {
		violations = append(violations, types.SafeguardViolation{
			Type:        types.ViolationScheduleWindow,
			Description: fmt.Sprintf("current time is outside the allowed experiment window (%02d:00-%02d:00)", checker.settings.WindowStartHour, checker.settings.WindowEndHour),
			Severity:    types.SeverityWarning,
		})
	}

	if violation := checker.healthPrecondition(ctx); violation != nil {
		violations = append(violations, *violation)
	}

	for _, check := range checker.customChecks {
		if violation := check(ctx); violation != nil {
			violations = append(violations, *violation)
		}
	}

	return violations
}

// insideWindow checks the wall clock against the allowed window, a window
// spanning midnight (start > end) is supported
func (checker *Checker) insideWindow() bool {
	start, end := checker.settings.WindowStartHour, checker.settings.WindowEndHour
	if start == end {
		return true
	}
	hour := checker.now().Hour()
	if start < end {
		return hour >= start && hour < end
	}
	return hour >= start || hour < end
}

// healthPrecondition verifies every health check passes before chaos is
// allowed in, an erroring health checker blocks just like a failing one
func (checker *Checker) healthPrecondition(ctx context.Context) *types.SafeguardViolation {
	checks, err := checker.health.Checks(ctx)
	if err != nil {
		log.Errorf("Unable to fetch the health checks, err: %v", err)
		return &types.SafeguardViolation{
			Type:        types.ViolationHealthPrecondition,
			Description: fmt.Sprintf("health precondition check errored: %v", err),
			Severity:    types.SeverityCritical,
		}
	}
	for name, healthy := range checks {
		if !healthy {
			return &types.SafeguardViolation{
				Type:        types.ViolationHealthPrecondition,
				Description: fmt.Sprintf("service '%v' is unhealthy before the experiment", name),
				Severity:    types.SeverityCritical,
			}
		}
	}
	return nil
}

//Blocking filters the violations a run may not proceed past, a manual run
// waives warnings but never criticals
func Blocking(violations []types.SafeguardViolation, manual bool) []types.SafeguardViolation {
	blocking := []types.SafeguardViolation{}
	for _, violation := range violations {
		if violation.Severity == types.SeverityCritical || !manual {
			blocking = append(blocking, violation)
		}
	}
	return blocking
}
