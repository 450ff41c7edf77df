// Package lifecycle implements the session status state machine.
package lifecycle

import (
	"time"

	"github.com/xiaot623/negarena/internal/domain"
)

// Trigger is a request to move a session to another status.
type Trigger string

const (
	TriggerStart    Trigger = "start"
	TriggerPause    Trigger = "pause"
	TriggerResume   Trigger = "resume"
	TriggerComplete Trigger = "complete"
	TriggerFail     Trigger = "fail"
	TriggerCancel   Trigger = "cancel"
)

type edge struct {
	from    domain.SessionStatus
	trigger Trigger
}

var transitions = map[edge]domain.SessionStatus{
	{domain.SessionStatusPending, TriggerStart}:  domain.SessionStatusRunning,
	{domain.SessionStatusPending, TriggerCancel}: domain.SessionStatusCancelled,

	{domain.SessionStatusRunning, TriggerPause}:    domain.SessionStatusPaused,
	{domain.SessionStatusRunning, TriggerComplete}: domain.SessionStatusCompleted,
	{domain.SessionStatusRunning, TriggerFail}:     domain.SessionStatusFailed,
	{domain.SessionStatusRunning, TriggerCancel}:   domain.SessionStatusCancelled,

	{domain.SessionStatusPaused, TriggerResume}: domain.SessionStatusRunning,
	{domain.SessionStatusPaused, TriggerCancel}: domain.SessionStatusCancelled,
}

// Machine tracks the status of one session and the timestamps tied to it.
// It is not safe for concurrent use; the owning session guards it.
type Machine struct {
	status    domain.SessionStatus
	startedAt *time.Time
	endedAt   *time.Time
}

// New returns a machine in the PENDING status.
func New() *Machine {
	return &Machine{status: domain.SessionStatusPending}
}

// Status returns the current status.
func (m *Machine) Status() domain.SessionStatus {
	return m.status
}

// StartedAt returns when the session entered RUNNING the first time.
func (m *Machine) StartedAt() *time.Time {
	return m.startedAt
}

// EndedAt returns when the session reached its terminal status.
func (m *Machine) EndedAt() *time.Time {
	return m.endedAt
}

// Can validates trigger against the current status without mutating it.
func (m *Machine) Can(trigger Trigger) error {
	_, err := m.next(trigger)
	return err
}

// Fire applies trigger. An illegal transition returns a *domain.TransitionError
// and leaves the machine unchanged.
func (m *Machine) Fire(trigger Trigger, now time.Time) (domain.SessionStatus, error) {
	to, err := m.next(trigger)
	if err != nil {
		return m.status, err
	}

	m.status = to
	if trigger == TriggerStart && m.startedAt == nil {
		t := now
		m.startedAt = &t
	}
	if to.IsTerminal() && m.endedAt == nil {
		t := now
		m.endedAt = &t
	}
	return to, nil
}

func (m *Machine) next(trigger Trigger) (domain.SessionStatus, error) {
	to, ok := transitions[edge{m.status, trigger}]
	if !ok {
		return "", &domain.TransitionError{From: m.status, Trigger: string(trigger)}
	}
	return to, nil
}
