package environment

import (
	"os"
	"strconv"
	"time"
)

// Settings contains all the tunables of the orchestration core, each one
// env-overridable the same way experiment runners are configured
type Settings struct {
	MaxConcurrent         int
	WindowStartHour       int
	WindowEndHour         int
	PollInterval          time.Duration
	RecoveryTimeout       time.Duration
	RollbackRetries       uint
	RollbackDelay         time.Duration
	RollbackTimeout       time.Duration
	HistorySize           int
	AvailabilityThreshold float64
	ErrorRateThreshold    float64
	BaselineSamples       int
	BaselineInterval      time.Duration
	ImpactReportThreshold float64
}

//GetSettings fetches all the env variables of the orchestration core
func GetSettings() *Settings {
	settings := Settings{}
	settings.MaxConcurrent, _ = strconv.Atoi(Getenv("MAX_CONCURRENT_EXPERIMENTS", "3"))
	settings.WindowStartHour, _ = strconv.Atoi(Getenv("EXPERIMENT_WINDOW_START_HOUR", "0"))
	settings.WindowEndHour, _ = strconv.Atoi(Getenv("EXPERIMENT_WINDOW_END_HOUR", "24"))
	settings.PollInterval = getDuration("OBSERVATION_POLL_INTERVAL", "5s")
	settings.RecoveryTimeout = getDuration("RECOVERY_TIMEOUT", "120s")
	retries, _ := strconv.Atoi(Getenv("ROLLBACK_RETRIES", "3"))
	settings.RollbackRetries = uint(retries)
	settings.RollbackDelay = getDuration("ROLLBACK_RETRY_DELAY", "1s")
	settings.RollbackTimeout = getDuration("ROLLBACK_TIMEOUT", "60s")
	settings.HistorySize, _ = strconv.Atoi(Getenv("RESULT_HISTORY_SIZE", "100"))
	settings.AvailabilityThreshold, _ = strconv.ParseFloat(Getenv("AVAILABILITY_IMPACT_THRESHOLD", "50"), 64)
	settings.ErrorRateThreshold, _ = strconv.ParseFloat(Getenv("ERROR_RATE_IMPACT_THRESHOLD", "80"), 64)
	settings.BaselineSamples, _ = strconv.Atoi(Getenv("BASELINE_SAMPLE_COUNT", "3"))
	settings.BaselineInterval = getDuration("BASELINE_SAMPLE_INTERVAL", "1s")
	settings.ImpactReportThreshold, _ = strconv.ParseFloat(Getenv("IMPACT_REPORT_THRESHOLD", "30"), 64)
	return &settings
}

// Getenv fetch the env and set the default value, if env contains empty value
func Getenv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		value = defaultValue
	}
	return value
}

func getDuration(key string, defaultValue string) time.Duration {
	duration, err := time.ParseDuration(Getenv(key, defaultValue))
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}
	return duration
}
