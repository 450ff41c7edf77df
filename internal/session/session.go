// Package session holds the in-memory state of one negotiation or tournament:
// lifecycle, event log, tournament aggregation and pending control requests.
//
// Mutating methods (Fire, Fail, Append, RecordCompletion, SetResult,
// SetTotalSteps) belong to the session's runner alone. Readers and control
// requests may come from any goroutine. Every write to the log, the tournament
// cells and the status happens under the session lock, so State is one
// consistent read of all three.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/xiaot623/negarena/internal/domain"
	"github.com/xiaot623/negarena/internal/eventlog"
	"github.com/xiaot623/negarena/internal/lifecycle"
	"github.com/xiaot623/negarena/internal/tournament"
)

// Session is one tracked unit of background work.
type Session struct {
	ID        string
	Kind      domain.SessionKind
	Config    domain.SessionConfig
	CreatedAt time.Time

	log  *eventlog.Log
	plan *tournament.Plan
	agg  *tournament.Aggregator

	mu         sync.RWMutex
	machine    *lifecycle.Machine
	totalSteps *int
	errMsg     string
	result     *domain.Result

	pauseRequested  bool
	cancelRequested bool
	controlChanged  chan struct{}
	changed         chan struct{}
}

// New creates a PENDING session. Tournament configs are expanded here so an
// unplayable tournament is rejected before anything runs.
func New(id string, cfg domain.SessionConfig, now time.Time) (*Session, error) {
	s := &Session{
		ID:             id,
		Kind:           cfg.Kind,
		Config:         cfg,
		CreatedAt:      now,
		log:            eventlog.New(),
		machine:        lifecycle.New(),
		controlChanged: make(chan struct{}),
		changed:        make(chan struct{}),
	}

	switch cfg.Kind {
	case domain.SessionKindTournament:
		plan, err := tournament.NewPlan(cfg.Tournament)
		if err != nil {
			return nil, err
		}
		s.plan = plan
		s.agg = tournament.NewAggregator(plan)
		total := len(plan.Runs)
		s.totalSteps = &total
	case domain.SessionKindNegotiation:
		if cfg.Mechanism.NSteps > 0 {
			n := cfg.Mechanism.NSteps
			s.totalSteps = &n
		}
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", domain.ErrInvalidConfig, cfg.Kind)
	}
	return s, nil
}

// Log returns the session's event log.
func (s *Session) Log() *eventlog.Log { return s.log }

// Plan returns the tournament plan, nil for negotiations.
func (s *Session) Plan() *tournament.Plan { return s.plan }

// Aggregator returns the tournament aggregator, nil for negotiations.
func (s *Session) Aggregator() *tournament.Aggregator { return s.agg }

// Status returns the current lifecycle status.
func (s *Session) Status() domain.SessionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.machine.Status()
}

// Info returns a copy of the session metadata.
func (s *Session) Info() domain.SessionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.infoLocked()
}

// State is a consistent read of a session: metadata, the full log and, for
// tournaments, the cells and leaderboard, all taken under one lock.
type State struct {
	Info        domain.SessionInfo
	Events      []domain.Event
	Cells       []domain.Cell
	Leaderboard []domain.LeaderboardEntry
}

// State returns the session's state as of one instant.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := State{
		Info:   s.infoLocked(),
		Events: s.log.View(0),
	}
	if s.agg != nil {
		st.Cells = s.agg.Cells()
		st.Leaderboard = s.agg.Leaderboard()
	}
	return st
}

func (s *Session) infoLocked() domain.SessionInfo {
	info := domain.SessionInfo{
		ID:          s.ID,
		Kind:        s.Kind,
		Name:        s.Config.Name,
		Status:      s.machine.Status(),
		Config:      s.Config,
		CreatedAt:   s.CreatedAt,
		StartedAt:   s.machine.StartedAt(),
		EndedAt:     s.machine.EndedAt(),
		CurrentStep: s.log.Len(),
		Result:      s.result,
	}
	if info.Status == domain.SessionStatusFailed {
		info.Error = s.errMsg
	}
	if s.totalSteps != nil {
		n := *s.totalSteps
		info.TotalSteps = &n
	}
	return info
}

// Changed returns a channel closed by the next append, transition or result.
func (s *Session) Changed() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.changed
}

func (s *Session) notifyLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}

// Fire applies a lifecycle trigger. Reaching a terminal status freezes the log.
func (s *Session) Fire(trigger lifecycle.Trigger, now time.Time) (domain.SessionStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	status, err := s.machine.Fire(trigger, now)
	if err != nil {
		return status, err
	}
	if status.IsTerminal() {
		s.log.Freeze()
	}
	s.notifyLocked()
	return status, nil
}

// Fail moves a live session to FAILED with msg as its error. FAILED is only
// reachable from RUNNING, so a PENDING session is started and a PAUSED one
// resumed first, inside the same critical section; readers never see the
// intermediate status.
func (s *Session) Fail(msg string, now time.Time) (domain.SessionStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var route []lifecycle.Trigger
	switch s.machine.Status() {
	case domain.SessionStatusPending:
		route = []lifecycle.Trigger{lifecycle.TriggerStart}
	case domain.SessionStatusPaused:
		route = []lifecycle.Trigger{lifecycle.TriggerResume}
	}
	route = append(route, lifecycle.TriggerFail)

	if err := s.machine.Can(route[0]); err != nil {
		return s.machine.Status(), err
	}
	var status domain.SessionStatus
	for _, trigger := range route {
		var err error
		if status, err = s.machine.Fire(trigger, now); err != nil {
			return status, err
		}
	}
	s.errMsg = msg
	s.log.Freeze()
	s.notifyLocked()
	return status, nil
}

// Append adds an event to the log. Appending to a terminal session returns
// domain.ErrLogFrozen.
func (s *Session) Append(ev domain.Event) (domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.log.Append(ev)
	if err != nil {
		return stored, err
	}
	s.notifyLocked()
	return stored, nil
}

// RecordCompletion counts a finished tournament sub-run in the aggregator and
// appends its cell_completed event as one step, so no reader sees one without
// the other.
func (s *Session) RecordCompletion(c *domain.CellCompletion, ev domain.Event) (domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.agg == nil {
		return domain.Event{}, fmt.Errorf("session %s has no tournament", s.ID)
	}
	if s.log.Frozen() {
		return domain.Event{}, domain.ErrLogFrozen
	}
	if err := s.agg.RecordCompletion(c.Competitor, c.Opponent, c.Scenario, c.Outcome, c.Utilities); err != nil {
		return domain.Event{}, err
	}

	ev.Kind = domain.EventKindCellCompleted
	ev.Completion = c
	stored, err := s.log.Append(ev)
	if err != nil {
		return stored, err
	}
	s.notifyLocked()
	return stored, nil
}

// SetTotalSteps records the step bound reported by the engine.
func (s *Session) SetTotalSteps(n *int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n == nil {
		s.totalSteps = nil
		return
	}
	v := *n
	s.totalSteps = &v
}

// SetResult stores the final payload before the Complete transition.
func (s *Session) SetResult(r *domain.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result = r
	s.notifyLocked()
}
