package safeguard

import (
	"context"
	"testing"
	"time"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/environment"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/types"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

type stubHealth struct {
	checks map[string]bool
	err    error
}

func (s stubHealth) Checks(ctx context.Context) (map[string]bool, error) {
	return s.checks, s.err
}

func testSettings() *environment.Settings {
	return &environment.Settings{
		MaxConcurrent:   1,
		WindowStartHour: 9,
		WindowEndHour:   17,
	}
}

func atHour(hour int) func() time.Time {
	return func() time.Time {
		return time.Date(2025, 6, 2, hour, 30, 0, 0, time.UTC)
	}
}

func TestMaxConcurrentViolation(t *testing.T) {
	checker := NewChecker(testSettings(), stubHealth{checks: map[string]bool{"api": true}}, func() int { return 1 })
	checker.now = atHour(10)

	violations := checker.Check(context.Background())
	assert.Len(t, violations, 1)
	assert.Equal(t, types.ViolationMaxConcurrent, violations[0].Type)
	assert.Equal(t, types.SeverityCritical, violations[0].Severity)
}

func TestScheduleWindowViolationIsWarning(t *testing.T) {
	checker := NewChecker(testSettings(), stubHealth{checks: map[string]bool{"api": true}}, func() int { return 0 })
	checker.now = atHour(22)

	violations := checker.Check(context.Background())
	assert.Len(t, violations, 1)
	assert.Equal(t, types.ViolationScheduleWindow, violations[0].Type)
	assert.Equal(t, types.SeverityWarning, violations[0].Severity)
}

func TestHealthPrecondition(t *testing.T) {
	tests := []struct {
		name   string
		health stubHealth
	}{
		{"Unhealthy service blocks", stubHealth{checks: map[string]bool{"api": false}}},
		{"Erroring health checker blocks", stubHealth{err: errors.Errorf("telemetry down")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := NewChecker(testSettings(), tt.health, func() int { return 0 })
			checker.now = atHour(10)

			violations := checker.Check(context.Background())
			assert.Len(t, violations, 1)
			assert.Equal(t, types.ViolationHealthPrecondition, violations[0].Type)
			assert.Equal(t, types.SeverityCritical, violations[0].Severity)
		})
	}
}

func TestCustomCheck(t *testing.T) {
	checker := NewChecker(testSettings(), stubHealth{checks: map[string]bool{}}, func() int { return 0 })
	checker.now = atHour(10)
	checker.AddCheck(func(ctx context.Context) *types.SafeguardViolation {
		return &types.SafeguardViolation{Type: types.ViolationCustom, Description: "deploy freeze", Severity: types.SeverityWarning}
	})

	violations := checker.Check(context.Background())
	assert.Len(t, violations, 1)
	assert.Equal(t, types.ViolationCustom, violations[0].Type)
}

func TestBlockingWaivesWarningsForManualRuns(t *testing.T) {
	violations := []types.SafeguardViolation{
		{Type: types.ViolationScheduleWindow, Severity: types.SeverityWarning},
		{Type: types.ViolationMaxConcurrent, Severity: types.SeverityCritical},
	}

	assert.Len(t, Blocking(violations, false), 2)

	manual := Blocking(violations, true)
	assert.Len(t, manual, 1)
	assert.Equal(t, types.ViolationMaxConcurrent, manual[0].Type)
}
