package retry

import (
	"fmt"
	"time"
)

// Action defines the prototype of action function, function as a value
type Action func(attempt uint) error

// Model defines the schema, contains all the attributes need for retry
type Model struct {
	retry    uint
	waitTime time.Duration
	backoff  float64
}

// Times is used to define the retry count
// it will run if the instance of model is not present before
func Times(retry uint) *Model {
	model := Model{}
	return model.Times(retry)
}

// Times is used to define the retry count
// it will run if the instance of model is already present
func (model *Model) Times(retry uint) *Model {
	model.retry = retry
	return model
}

// Wait is used to define the wait duration after each iteration of retry
// it will run if the instance of model is not present before
func Wait(waitTime time.Duration) *Model {
	model := Model{}
	return model.Wait(waitTime)
}

// Wait is used to define the wait duration after each iteration of retry
// it will run if the instance of model is already present
func (model *Model) Wait(waitTime time.Duration) *Model {
	model.waitTime = waitTime
	return model
}

// Backoff multiplies the wait duration by the given factor after every
// failed attempt, a factor <= 1 keeps the delay constant
func (model *Model) Backoff(factor float64) *Model {
	model.backoff = factor
	return model
}

// Try runs the action until it passes or the retry count is exhausted,
// it returns the error of the last attempt
func (model Model) Try(action Action) error {
	if action == nil {
		return fmt.Errorf("no action specified")
	}

	var err error
	wait := model.waitTime
	for attempt := uint(0); (attempt == 0 || err != nil) && attempt < model.retry; attempt++ {
		err = action(attempt)
		if err == nil {
			break
		}
		if wait > 0 && attempt+1 < model.retry {
			time.Sleep(wait)
			if model.backoff > 1 {
				wait = time.Duration(float64(wait) * model.backoff)
			}
		}
	}

	return err
}
