package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryArchive is an in-memory Archive used in tests and when no database
// path is configured.
type MemoryArchive struct {
	mu   sync.RWMutex
	runs map[string]*RunRecord
}

// NewMemoryArchive creates an empty in-memory archive.
func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{runs: make(map[string]*RunRecord)}
}

func (a *MemoryArchive) SaveRun(_ context.Context, record *RunRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	cp := *record
	a.runs[record.ID] = &cp
	return nil
}

func (a *MemoryArchive) GetRun(_ context.Context, id string) (*RunRecord, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	r, ok := a.runs[id]
	if !ok {
		return nil, archiveNotFound("run", id)
	}
	cp := *r
	return &cp, nil
}

func (a *MemoryArchive) ListRuns(_ context.Context, filter RunFilter) ([]*RunRecord, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var records []*RunRecord
	for _, r := range a.runs {
		if filter.FlowID != "" && r.FlowID != filter.FlowID {
			continue
		}
		if filter.Status != nil && r.Status != *filter.Status {
			continue
		}
		if filter.Since != nil && r.FinishedAt.Before(*filter.Since) {
			continue
		}
		cp := *r
		records = append(records, &cp)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].FinishedAt.After(records[j].FinishedAt)
	})
	if filter.Limit > 0 && len(records) > filter.Limit {
		records = records[:filter.Limit]
	}
	return records, nil
}

func (a *MemoryArchive) PurgeRunsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var purged int64
	for id, r := range a.runs {
		if r.FinishedAt.Before(cutoff) {
			delete(a.runs, id)
			purged++
		}
	}
	return purged, nil
}

func (a *MemoryArchive) Close() error { return nil }
