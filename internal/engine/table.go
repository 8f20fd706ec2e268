package engine

import (
	"sync"
	"time"
)

// runTable is the mutex-guarded in-memory table of in-flight and retained
// runs, keyed by execution ID. It is owned by one Engine instance and torn
// down with it; nothing else serializes access, so all map operations lock.
type runTable struct {
	mu   sync.RWMutex
	runs map[string]*ExecutionState
}

func newRunTable() *runTable {
	return &runTable{runs: make(map[string]*ExecutionState)}
}

func (t *runTable) put(st *ExecutionState) {
	t.mu.Lock()
	t.runs[st.ID] = st
	t.mu.Unlock()
}

func (t *runTable) get(id string) (*ExecutionState, bool) {
	t.mu.RLock()
	st, ok := t.runs[id]
	t.mu.RUnlock()
	return st, ok
}

func (t *runTable) delete(id string) {
	t.mu.Lock()
	delete(t.runs, id)
	t.mu.Unlock()
}

func (t *runTable) len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.runs)
}

// sweep evicts runs whose last-touched timestamp is older than maxAge and
// returns the evicted states. A maxAge of zero evicts everything.
func (t *runTable) sweep(maxAge time.Duration) []*ExecutionState {
	now := time.Now().UTC()

	t.mu.Lock()
	defer t.mu.Unlock()

	var evicted []*ExecutionState
	for id, st := range t.runs {
		st.mu.Lock()
		age := now.Sub(st.UpdatedAt)
		st.mu.Unlock()
		if age >= maxAge {
			evicted = append(evicted, st)
			delete(t.runs, id)
		}
	}
	return evicted
}
