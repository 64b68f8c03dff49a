package history

import (
	"fmt"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/types"
	"github.com/kyokomi/emoji"
)

// Report is the human readable digest of one finalized run
type Report struct {
	Summary         string
	AverageImpact   float64
	CascadeFailures []string
	Recommendations []string
}

// ReviewConfigurations is the recommendation attached whenever at least one
// injection attempt failed
const ReviewConfigurations = "review chaos experiment configurations"

//BuildReport derives the digest and the resilience recommendations from a
// finalized run, the rules are deliberately simple and deterministic
func BuildReport(run *types.ExperimentRun, impactThreshold float64) Report {
	report := Report{
		AverageImpact:   averageImpact(run.Impact),
		CascadeFailures: run.CascadeFailuresCopy(),
	}

	verdict := emoji.Sprint(":thumbsup:")
	if run.Status != types.RunStatusCompleted {
		verdict = emoji.Sprint(":thumbsdown:")
	}
	report.Summary = fmt.Sprintf("experiment %v run %v finished as %v%v (impact avg %.1f%%, %v observations, %v/%v injections succeeded)",
		run.ExperimentID, run.ID, run.Status, verdict, report.AverageImpact,
		len(run.Observations), len(run.InjectionResults)-run.FailedInjections(), len(run.InjectionResults))

	if report.AverageImpact > impactThreshold {
		report.Recommendations = append(report.Recommendations,
			"add circuit breakers around the impacted dependencies")
	}
	if len(report.CascadeFailures) > 0 {
		report.Recommendations = append(report.Recommendations,
			"introduce bulkhead isolation, failures cascaded beyond the injection targets")
	}
	if run.FailedInjections() > 0 {
		report.Recommendations = append(report.Recommendations, ReviewConfigurations)
	}
	return report
}

func averageImpact(impact types.ImpactMetrics) float64 {
	return (impact.AvailabilityImpact + impact.ResponseTimeImpact + impact.ErrorRateIncrease) / 3
}
