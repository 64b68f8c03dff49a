package environment

import (
	"io/ioutil"
	"time"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/hypothesis"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/types"
	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"
)

// experimentRecord is the on-disk form of one experiment definition, the
// durations are human readable strings and parsed on load
type experimentRecord struct {
	ID          string               `yaml:"id"`
	Name        string               `yaml:"name"`
	Scenario    string               `yaml:"scenario"`
	Target      types.TargetSelector `yaml:"target"`
	Duration    string               `yaml:"duration"`
	SteadyState steadyStateRecord    `yaml:"steadyState"`
	Rollback    types.RollbackPolicy `yaml:"rollback"`
	Enabled     bool                 `yaml:"enabled"`
	Schedule    *scheduleRecord      `yaml:"schedule,omitempty"`
	Params      map[string]string    `yaml:"params"`
}

type steadyStateRecord struct {
	Before []hypothesisRecord `yaml:"before"`
	After  []hypothesisRecord `yaml:"after"`
}

// hypothesisRecord accepts either the structured fields or the legacy
// condition string ("response_time < 500ms"), resolved once on load
type hypothesisRecord struct {
	Name      string  `yaml:"name"`
	Condition string  `yaml:"condition,omitempty"`
	Metric    string  `yaml:"metric"`
	Operator  string  `yaml:"operator"`
	Threshold float64 `yaml:"threshold"`
	Unit      string  `yaml:"unit"`
	Tolerance float64 `yaml:"tolerance"`
}

type scheduleRecord struct {
	Interval    string  `yaml:"interval"`
	Probability float64 `yaml:"probability"`
}

type experimentFile struct {
	Experiments []experimentRecord `yaml:"experiments"`
}

//LoadExperiments reads experiment definitions from the given YAML file
func LoadExperiments(path string) ([]types.ChaosExperiment, error) {
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("Unable to read the experiment file, err: %v", err)
	}

	file := experimentFile{}
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, errors.Errorf("Unable to parse the experiment file, err: %v", err)
	}

	experiments := make([]types.ChaosExperiment, 0, len(file.Experiments))
	for _, record := range file.Experiments {
		experiment, err := record.toExperiment()
		if err != nil {
			return nil, err
		}
		experiments = append(experiments, experiment)
	}
	return experiments, nil
}

func (record experimentRecord) toExperiment() (types.ChaosExperiment, error) {
	experiment := types.ChaosExperiment{
		ID:       record.ID,
		Name:     record.Name,
		Scenario: types.ScenarioType(record.Scenario),
		Target:   record.Target,
		Rollback: record.Rollback,
		Enabled:  record.Enabled,
		Params:   record.Params,
	}

	before, err := toHypotheses(record.SteadyState.Before)
	if err != nil {
		return experiment, err
	}
	after, err := toHypotheses(record.SteadyState.After)
	if err != nil {
		return experiment, err
	}
	experiment.SteadyState = types.SteadyStateSpec{Before: before, After: after}

	if record.Duration != "" {
		duration, err := time.ParseDuration(record.Duration)
		if err != nil {
			return experiment, errors.Errorf("Unable to parse the duration of experiment '%v', err: %v", record.ID, err)
		}
		experiment.Duration = duration
	}
	if record.Schedule != nil {
		interval, err := time.ParseDuration(record.Schedule.Interval)
		if err != nil {
			return experiment, errors.Errorf("Unable to parse the schedule interval of experiment '%v', err: %v", record.ID, err)
		}
		experiment.Schedule = &types.Schedule{
			Interval:    interval,
			Probability: record.Schedule.Probability,
		}
	}
	return experiment, nil
}

func toHypotheses(records []hypothesisRecord) ([]types.ChaosHypothesis, error) {
	if len(records) == 0 {
		return nil, nil
	}
	hypotheses := make([]types.ChaosHypothesis, 0, len(records))
	for _, record := range records {
		if record.Condition != "" {
			parsed, err := hypothesis.ParseCondition(record.Name, record.Condition)
			if err != nil {
				return nil, err
			}
			hypotheses = append(hypotheses, parsed)
			continue
		}
		hypotheses = append(hypotheses, types.ChaosHypothesis{
			Name:      record.Name,
			Metric:    record.Metric,
			Operator:  record.Operator,
			Threshold: record.Threshold,
			Unit:      record.Unit,
			Tolerance: record.Tolerance,
		})
	}
	return hypotheses, nil
}
