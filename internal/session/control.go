package session

import (
	"github.com/xiaot623/negarena/internal/domain"
	"github.com/xiaot623/negarena/internal/lifecycle"
)

// Control is the set of pending requests the runner consumes at its next
// checkpoint, together with a channel closed whenever they change.
type Control struct {
	Pause  bool
	Cancel bool
	Wake   <-chan struct{}
}

func (s *Session) wakeLocked() {
	close(s.controlChanged)
	s.controlChanged = make(chan struct{})
}

// PendingControl returns the requests the runner has to honour.
func (s *Session) PendingControl() Control {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Control{
		Pause:  s.pauseRequested,
		Cancel: s.cancelRequested,
		Wake:   s.controlChanged,
	}
}

// RequestPause asks the runner to pause at its next checkpoint. Only a RUNNING
// session can be paused; repeating a pending request is accepted. On a PAUSED
// session whose resume the runner has not consumed yet, it withdraws the resume.
func (s *Session) RequestPause() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := s.machine.Status()
	if s.cancelRequested {
		return &domain.TransitionError{From: status, Trigger: string(lifecycle.TriggerPause)}
	}
	if s.pauseRequested && status == domain.SessionStatusRunning {
		return nil
	}
	if !s.pauseRequested && status == domain.SessionStatusPaused {
		s.pauseRequested = true
		s.wakeLocked()
		return nil
	}
	if err := s.machine.Can(lifecycle.TriggerPause); err != nil {
		return err
	}
	s.pauseRequested = true
	s.wakeLocked()
	return nil
}

// RequestResume releases a paused session, or withdraws a pause request the
// runner has not consumed yet.
func (s *Session) RequestResume() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := s.machine.Status()
	pausing := status == domain.SessionStatusPaused ||
		(status == domain.SessionStatusRunning && s.pauseRequested)
	if s.cancelRequested || !pausing {
		return &domain.TransitionError{From: status, Trigger: string(lifecycle.TriggerResume)}
	}
	s.pauseRequested = false
	s.wakeLocked()
	return nil
}

// RequestCancel asks the runner to stop at its next checkpoint. It is a no-op
// for terminal sessions and returns the status observed.
func (s *Session) RequestCancel() domain.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := s.machine.Status()
	if status.IsTerminal() || s.cancelRequested {
		return status
	}
	s.cancelRequested = true
	s.wakeLocked()
	return status
}
