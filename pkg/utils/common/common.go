package common

import (
	"math/rand"
	"time"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/cerrors"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/log"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/math"
)

//WaitForDuration waits for the given time duration
func WaitForDuration(duration time.Duration) {
	time.Sleep(duration)
}

//SelectTargets derives the subset of the population the chaos acts on,
// sized by the affected percentage and drawn as an unbiased random subset
func SelectTargets(population []string, percentage int) ([]string, error) {
	if len(population) == 0 {
		return nil, cerrors.Error{
			ErrorCode: cerrors.ErrorTypeTargetSelection,
			Reason:    "no targets found for the given selector",
		}
	}

	count := math.Maximum(1, math.Adjustment(percentage, len(population)))

	shuffled := make([]string, len(population))
	copy(shuffled, population)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	log.Infof("[Chaos]: Number of targets selected: %v", count)
	return shuffled[:count], nil
}

//GetParam reads a scenario parameter with a fallback default
func GetParam(params map[string]string, key string, defaultValue string) string {
	if value, ok := params[key]; ok && value != "" {
		return value
	}
	return defaultValue
}
