// Package eventlog provides the append-only, per-session ordered event log.
//
// A Log has a single writer (the session's runner) and any number of readers.
// Appended events are never modified, so readers receive capacity-capped
// slices over the shared backing array instead of copies.
package eventlog

import (
	"sync"

	"github.com/xiaot623/negarena/internal/domain"
)

// Log is an append-only sequence of events with 1-indexed contiguous steps.
type Log struct {
	mu     sync.RWMutex
	events []domain.Event
	frozen bool
}

// New creates an empty log.
func New() *Log {
	return &Log{}
}

// Append stores ev under the next step number and returns the stored copy.
// It fails with domain.ErrLogFrozen once the log has been frozen.
func (l *Log) Append(ev domain.Event) (domain.Event, error) {
	l.mu.Lock()
	if l.frozen {
		l.mu.Unlock()
		return domain.Event{}, domain.ErrLogFrozen
	}
	ev.Step = len(l.events) + 1
	l.events = append(l.events, ev)
	l.mu.Unlock()
	return ev, nil
}

// View returns the events with Step > sinceStep as of the call.
func (l *Log) View(sinceStep int) []domain.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	n := len(l.events)
	if sinceStep < 0 {
		sinceStep = 0
	}
	if sinceStep >= n {
		return []domain.Event{}
	}
	return l.events[sinceStep:n:n]
}

// Len returns the number of appended events, which is also the last step.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

// Freeze stops further appends. Freezing twice is a no-op.
func (l *Log) Freeze() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.frozen = true
}

// Frozen reports whether the log has been frozen.
func (l *Log) Frozen() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.frozen
}
