package retry

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestTryStopsOnSuccess(t *testing.T) {
	attempts := 0
	err := Times(5).Try(func(attempt uint) error {
		attempts++
		if attempts < 3 {
			return errors.Errorf("not yet")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestTryExhaustsRetries(t *testing.T) {
	attempts := 0
	err := Times(3).Try(func(attempt uint) error {
		attempts++
		return errors.Errorf("always failing")
	})
	assert.Error(t, err)
	assert.Equal(t, 3, attempts)
}

func TestTryWithBackoff(t *testing.T) {
	attempts := 0
	start := time.Now()
	err := Times(3).Wait(10 * time.Millisecond).Backoff(2).Try(func(attempt uint) error {
		attempts++
		return errors.Errorf("always failing")
	})
	// waits are 10ms then 20ms, no wait after the final attempt
	assert.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestTryWithoutAction(t *testing.T) {
	err := Times(3).Try(nil)
	assert.Error(t, err)
}
