// Package runs tracks the progress of pipeline runs in memory.
package runs

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/transcript-archiver/internal/types"
)

type entry struct {
	progress types.RunProgress
	version  uint64
}

// Registry is a concurrency-safe map of run ID to progress.
// Readers always receive copies.
type Registry struct {
	mu   sync.RWMutex
	runs map[string]*entry
	now  func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{runs: make(map[string]*entry), now: time.Now}
}

// Create registers a new pending run and returns its ID.
func (r *Registry) Create() string {
	id := uuid.New().String()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[id] = &entry{
		progress: types.RunProgress{ID: id, Status: types.RunPending, Items: []types.ItemResult{}, StartedAt: r.now()},
		version:  1,
	}
	return id
}

// Get returns a snapshot of the run and its version.
func (r *Registry) Get(id string) (types.RunProgress, uint64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.runs[id]
	if !ok {
		return types.RunProgress{}, 0, false
	}
	return e.progress.Clone(), e.version, true
}

// Update applies fn to a copy of the run and swaps it in. fn runs again if
// another writer got in first, so it must not have side effects outside p.
// It reports whether the run exists.
func (r *Registry) Update(id string, fn func(p *types.RunProgress)) bool {
	for {
		p, version, ok := r.Get(id)
		if !ok {
			return false
		}
		fn(&p)
		if r.CompareAndSwap(id, version, p) {
			return true
		}
	}
}

// CompareAndSwap replaces the run with next only if its version is still version.
// It fails when the run is gone.
func (r *Registry) CompareAndSwap(id string, version uint64, next types.RunProgress) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.runs[id]
	if !ok || e.version != version {
		return false
	}
	next.ID = id
	if next.Status.Terminal() && next.FinishedAt == nil {
		t := r.now()
		next.FinishedAt = &t
	}
	e.progress = next.Clone()
	e.version++
	return true
}

// List returns snapshots of all runs, newest first.
func (r *Registry) List() []types.RunProgress {
	r.mu.RLock()
	out := make([]types.RunProgress, 0, len(r.runs))
	for _, e := range r.runs {
		out = append(out, e.progress.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out
}

// Prune drops finished runs older than maxAge and returns how many were removed.
func (r *Registry) Prune(maxAge time.Duration) int {
	cutoff := r.now().Add(-maxAge)
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, e := range r.runs {
		if e.progress.FinishedAt != nil && e.progress.FinishedAt.Before(cutoff) {
			delete(r.runs, id)
			removed++
		}
	}
	return removed
}
