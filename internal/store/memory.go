// Package store persists the history of applied imports.
//
// PostgresStore is used when DATABASE_URL is configured; MemoryStore keeps
// history for the lifetime of the process otherwise.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/JonMunkholm/stocksync/internal/core"
)

// MemoryStore is a process-local core.HistoryStore.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string]core.ImportRun
}

// NewMemoryStore creates an empty history.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]core.ImportRun)}
}

func (m *MemoryStore) SaveRun(_ context.Context, run core.ImportRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run.Outcomes = cloneOutcomes(run.Outcomes)
	m.runs[run.ID] = run
	return nil
}

// ListRuns returns the newest runs first without their outcomes.
func (m *MemoryStore) ListRuns(_ context.Context, limit int) ([]core.ImportRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]core.ImportRun, 0, len(m.runs))
	for _, run := range m.runs {
		run.Outcomes = nil
		out = append(out, run)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) GetRun(_ context.Context, id string) (core.ImportRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[id]
	if !ok {
		return core.ImportRun{}, fmt.Errorf("history run %s: %w", id, core.ErrImportNotFound)
	}
	run.Outcomes = cloneOutcomes(run.Outcomes)
	return run, nil
}

// PruneRuns deletes runs started before the cutoff.
func (m *MemoryStore) PruneRuns(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, run := range m.runs {
		if run.StartedAt.Before(before) {
			delete(m.runs, id)
			n++
		}
	}
	return n, nil
}

func cloneOutcomes(in []core.ReconciliationOutcome) []core.ReconciliationOutcome {
	if in == nil {
		return nil
	}
	out := make([]core.ReconciliationOutcome, len(in))
	copy(out, in)
	return out
}
