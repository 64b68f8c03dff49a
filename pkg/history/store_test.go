package history

import (
	"fmt"
	"testing"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/cerrors"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/types"
	"github.com/stretchr/testify/assert"
)

func terminalRun(id string) *types.ExperimentRun {
	return &types.ExperimentRun{ID: id, ExperimentID: "exp-1", Status: types.RunStatusCompleted}
}

func TestAppendEvictsOldestWhenFull(t *testing.T) {
	store := NewStore(100)
	for i := 1; i <= 100; i++ {
		store.Append(terminalRun(fmt.Sprintf("run-%03d", i)))
	}

	store.Append(terminalRun("run-101"))
	assert.Equal(t, 100, store.Len())

	_, err := store.Get("run-001")
	assert.Error(t, err)
	assert.Equal(t, cerrors.ErrorTypeRunGet, cerrors.GetErrorType(err))

	kept, err := store.Get("run-002")
	assert.NoError(t, err)
	assert.Equal(t, "run-002", kept.ID)
}

func TestAppendNeverEvictsRunningRun(t *testing.T) {
	store := NewStore(2)
	store.Append(&types.ExperimentRun{ID: "run-1", Status: types.RunStatusRunning})
	store.Append(terminalRun("run-2"))
	store.Append(terminalRun("run-3"))

	// run-2 was the oldest terminal entry, run-1 survives despite being older
	_, err := store.Get("run-1")
	assert.NoError(t, err)
	_, err = store.Get("run-2")
	assert.Error(t, err)
}

func TestHistoryMostRecentFirst(t *testing.T) {
	store := NewStore(10)
	for i := 1; i <= 8; i++ {
		store.Append(terminalRun(fmt.Sprintf("run-%d", i)))
	}

	recent := store.History(5)
	assert.Len(t, recent, 5)
	assert.Equal(t, "run-8", recent[0].ID)
	assert.Equal(t, "run-4", recent[4].ID)

	all := store.History(0)
	assert.Len(t, all, 8)
}
