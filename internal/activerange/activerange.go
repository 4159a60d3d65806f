// Package activerange tracks the set of presentation-time ranges the
// caller still cares about. The scheduler consults it once per tick to
// decide which readers survive eviction. Modeled as a mutex-guarded
// slice, the same synchronization idiom internal/stream's Manager uses
// for its map — simplified here because ranges carry no identity of
// their own, only a whole-list replace.
package activerange

import (
	"sync"

	"github.com/rivermedia/flux/opentime"
)

// Tracker holds the current active-range set.
type Tracker struct {
	mu     sync.RWMutex
	ranges []opentime.TimeRange
}

// New returns an empty Tracker.
func New() *Tracker {
	return &Tracker{}
}

// Set replaces the whole active-range list. Calling Set with the same
// list twice has the same effect as calling it once.
func (t *Tracker) Set(ranges []opentime.TimeRange) {
	cp := make([]opentime.TimeRange, len(ranges))
	copy(cp, ranges)

	t.mu.Lock()
	t.ranges = cp
	t.mu.Unlock()
}

// Snapshot returns the current active-range list.
func (t *Tracker) Snapshot() []opentime.TimeRange {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]opentime.TimeRange, len(t.ranges))
	copy(out, t.ranges)
	return out
}

// Intersects reports whether r intersects any range currently active.
func (t *Tracker) Intersects(r opentime.TimeRange) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, a := range t.ranges {
		if r.Intersects(a) {
			return true
		}
	}
	return false
}
