package syncclient

import (
	"reflect"
	"sync"

	"github.com/xiaot623/negarena/internal/domain"
)

// View is a client-side replica of one session. Apply is idempotent, so the
// same snapshot may be applied any number of times and in any order relative
// to older ones.
type View struct {
	mu     sync.RWMutex
	meta   Snapshot
	events []Event
	seen   bool
}

// NewView creates an empty view.
func NewView() *View {
	return &View{}
}

// Apply merges a snapshot into the view and reports whether anything visible
// changed. Events are keyed by step: a known step is replaced, the next step
// is appended. Events past a gap are dropped; the next read with
// since = LastStep fetches them again. Status, progress, result and tournament
// tables are replaced wholesale unless the snapshot is older than the view.
func (v *View) Apply(snap *Snapshot) bool {
	if snap == nil {
		return false
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	changed := false
	for _, ev := range snap.Events {
		switch {
		case ev.Step <= 0:
			continue
		case ev.Step <= len(v.events):
			v.events[ev.Step-1] = ev
		case ev.Step == len(v.events)+1:
			v.events = append(v.events, ev)
			changed = true
		}
	}

	if v.seen && v.stale(snap) {
		return changed
	}
	if !v.seen || !v.sameMeta(snap) {
		changed = true
	}
	v.meta = *snap
	v.meta.Events = nil
	v.seen = true
	return changed
}

// stale reports whether snap was taken before the state the view already holds.
func (v *View) stale(snap *Snapshot) bool {
	if snap.CurrentStep < v.meta.CurrentStep {
		return true
	}
	if v.meta.Final && !snap.Final {
		return true
	}
	return v.meta.Status != domain.SessionStatusPending && snap.Status == domain.SessionStatusPending
}

func (v *View) sameMeta(snap *Snapshot) bool {
	return v.meta.Status == snap.Status &&
		v.meta.CurrentStep == snap.CurrentStep &&
		v.meta.Final == snap.Final &&
		v.meta.Error == snap.Error &&
		reflect.DeepEqual(v.meta.Result, snap.Result) &&
		reflect.DeepEqual(v.meta.Cells, snap.Cells) &&
		reflect.DeepEqual(v.meta.Leaderboard, snap.Leaderboard)
}

// LastStep is the number of contiguous events held, which is the since
// cursor for the next read.
func (v *View) LastStep() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.events)
}

// Status returns the last known lifecycle status.
func (v *View) Status() domain.SessionStatus {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.meta.Status
}

// Final reports whether the view holds the session's final state.
func (v *View) Final() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.meta.Final && len(v.events) >= v.meta.CurrentStep
}

// Events returns a copy of the replicated log.
func (v *View) Events() []Event {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]Event, len(v.events))
	copy(out, v.events)
	return out
}

// Snapshot returns the replicated state as a full snapshot from step zero.
func (v *View) Snapshot() Snapshot {
	v.mu.RLock()
	defer v.mu.RUnlock()
	snap := v.meta
	snap.SinceStep = 0
	snap.Events = make([]Event, len(v.events))
	copy(snap.Events, v.events)
	return snap
}
