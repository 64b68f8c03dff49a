package hypothesis

import (
	"strconv"
	"strings"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/cerrors"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/log"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/types"
)

// Evaluator checks steady state hypotheses against metrics snapshots, an
// evaluation problem counts as not-passed and never escapes to the caller
type Evaluator struct{}

//NewEvaluator creates the steady state hypothesis evaluator
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

//Evaluate checks a single hypothesis against the snapshot, missing metrics
// and unknown criteria are logged and reported as failed
func (e *Evaluator) Evaluate(hypothesis types.ChaosHypothesis, snapshot types.MetricsSnapshot) bool {
	value, ok := metricValue(snapshot, hypothesis.Metric)
	if !ok {
		log.Warnf("[Status]: Hypothesis '%v' references unknown metric '%v', counting as failed", hypothesis.Name, hypothesis.Metric)
		return false
	}

	if err := FirstValue(value).
		SecondValue(hypothesis.Threshold).
		Criteria(hypothesis.Operator).
		Tolerance(hypothesis.Tolerance).
		Compare(); err != nil {
		log.Infof("[Status]: Hypothesis '%v' failed, %v", hypothesis.Name, err)
		return false
	}
	return true
}

//EvaluateAll checks every hypothesis, an empty list is vacuously satisfied
func (e *Evaluator) EvaluateAll(hypotheses []types.ChaosHypothesis, snapshot types.MetricsSnapshot) map[string]bool {
	results := map[string]bool{}
	for _, hypothesis := range hypotheses {
		results[hypothesis.Name] = e.Evaluate(hypothesis, snapshot)
	}
	return results
}

//AllPassed reports whether every evaluated hypothesis held
func AllPassed(results map[string]bool) bool {
	for _, passed := range results {
		if !passed {
			return false
		}
	}
	return true
}

// metricValue resolves the metric name of a hypothesis against the snapshot
func metricValue(snapshot types.MetricsSnapshot, name string) (float64, bool) {
	switch name {
	case "error_rate":
		return snapshot.ErrorRate, true
	case "response_time":
		return snapshot.ResponseTime, true
	case "throughput":
		return snapshot.Throughput, true
	case "cpu":
		return snapshot.CPU, true
	case "memory":
		return snapshot.Memory, true
	}
	return 0, false
}

//ParseCondition converts the legacy free text form "response_time < 500ms"
// into a structured hypothesis, it runs once at registration time so the
// evaluation path never parses strings
func ParseCondition(name, condition string) (types.ChaosHypothesis, error) {
	fields := strings.Fields(condition)
	if len(fields) != 3 {
		return types.ChaosHypothesis{}, cerrors.Error{
			ErrorCode: cerrors.ErrorTypeSteadyStateChecks,
			Reason:    "condition '" + condition + "' is not of the form '<metric> <operator> <threshold>'",
		}
	}

	rawThreshold := fields[2]
	unit := strings.TrimLeft(rawThreshold, "0123456789.+-")
	threshold, err := strconv.ParseFloat(strings.TrimSuffix(rawThreshold, unit), 64)
	if err != nil {
		return types.ChaosHypothesis{}, cerrors.Error{
			ErrorCode: cerrors.ErrorTypeSteadyStateChecks,
			Reason:    "threshold '" + rawThreshold + "' is not numeric",
		}
	}

	hypothesis := types.ChaosHypothesis{
		Name:      name,
		Metric:    fields[0],
		Operator:  fields[1],
		Threshold: threshold,
		Unit:      unit,
	}
	if _, ok := metricValue(types.MetricsSnapshot{}, hypothesis.Metric); !ok {
		return types.ChaosHypothesis{}, cerrors.Error{
			ErrorCode: cerrors.ErrorTypeSteadyStateChecks,
			Reason:    "metric '" + hypothesis.Metric + "' is not provided by the metrics provider",
		}
	}
	return hypothesis, nil
}
