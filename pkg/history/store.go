package history

import (
	"sync"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/cerrors"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/log"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/types"
)

// DefaultCapacity bounds the history when no explicit size is configured
const DefaultCapacity = 100

// Store is the bounded run history, insertion beyond capacity evicts the
// oldest terminal entry, a still-running run is never silently dropped
type Store struct {
	mu       sync.Mutex
	capacity int
	runs     []*types.ExperimentRun
}

//NewStore creates the result store with the given capacity
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{capacity: capacity}
}

//Append adds a finalized run to the history, evicting the oldest terminal
// entry when full
func (store *Store) Append(run *types.ExperimentRun) {
	store.mu.Lock()
	defer store.mu.Unlock()

	if len(store.runs) >= store.capacity {
		evicted := false
		for index, old := range store.runs {
			if old.Status.Terminal() {
				store.runs = append(store.runs[:index], store.runs[index+1:]...)
				evicted = true
				break
			}
		}
		if !evicted {
			// every stored run is still running, growing past the bound is
			// preferable to dropping one of them
			log.Warnf("[Summary]: Result history is over capacity (%v) with no evictable entry", store.capacity)
		}
	}
	store.runs = append(store.runs, run)
}

//Get returns the stored run with the given id
func (store *Store) Get(runID string) (*types.ExperimentRun, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	for _, run := range store.runs {
		if run.ID == runID {
			return run, nil
		}
	}
	return nil, cerrors.Error{
		ErrorCode: cerrors.ErrorTypeRunGet,
		Reason:    "no result found for run '" + runID + "'",
	}
}

//History returns up to limit runs, most recent first, limit <= 0 means all
func (store *Store) History(limit int) []*types.ExperimentRun {
	store.mu.Lock()
	defer store.mu.Unlock()

	if limit <= 0 || limit > len(store.runs) {
		limit = len(store.runs)
	}
	recent := make([]*types.ExperimentRun, 0, limit)
	for i := len(store.runs) - 1; i >= len(store.runs)-limit; i-- {
		recent = append(recent, store.runs[i])
	}
	return recent
}

//Len returns the number of stored runs
func (store *Store) Len() int {
	store.mu.Lock()
	defer store.mu.Unlock()
	return len(store.runs)
}
