package service

import (
	"context"
	"fmt"
	"log"

	"github.com/xiaot623/negarena/internal/domain"
	"github.com/xiaot623/negarena/internal/metrics"
	"github.com/xiaot623/negarena/internal/session"
	"github.com/xiaot623/negarena/internal/snapshot"
	"github.com/xiaot623/negarena/internal/tournament"
	"github.com/xiaot623/negarena/policy"
)

// StartSession validates cfg, checks admission and starts the session.
func (s *Service) StartSession(ctx context.Context, cfg domain.SessionConfig) (*domain.StartSessionResponse, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	input := policy.Input{
		Kind:           string(cfg.Kind),
		Participants:   len(cfg.Participants),
		NSteps:         cfg.Mechanism.NSteps,
		ActiveSessions: s.registry.ActiveCount(),
		MaxActive:      s.config.MaxActiveSessions,
	}
	if t := cfg.Tournament; t != nil {
		input.Participants = len(t.Competitors) + len(t.Opponents)
		input.Repetitions = t.Repetitions
		input.SubRuns = tournament.CountSubRuns(t)
	}
	decision, err := s.policyEngine.Evaluate(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate admission policy: %w", err)
	}
	if !decision.Allow {
		log.Printf("WARN: session rejected by policy: %s", decision.Reason)
		return nil, fmt.Errorf("%w: %s", domain.ErrAdmissionDenied, decision.Reason)
	}

	sess, err := s.registry.Create(cfg)
	if err != nil {
		return nil, err
	}
	s.metrics.SessionStarted(string(sess.Kind))
	s.metrics.SetActive(s.registry.ActiveCount())
	log.Printf("INFO: session %s created (%s)", sess.ID, sess.Kind)

	return &domain.StartSessionResponse{
		ID:     sess.ID,
		Kind:   sess.Kind,
		Status: sess.Status(),
	}, nil
}

// GetSnapshot returns the state of a live session with the events after sinceStep.
func (s *Service) GetSnapshot(ctx context.Context, id string, sinceStep int) (*domain.Snapshot, error) {
	sess, err := s.registry.Get(id)
	if err != nil {
		return nil, err
	}
	snap := snapshot.Build(sess, sinceStep)
	s.metrics.SnapshotServed(metrics.SourcePoll)
	return &snap, nil
}

// PauseSession asks the session's runner to pause at its next step boundary.
func (s *Service) PauseSession(ctx context.Context, id string) (*domain.ControlResponse, error) {
	return s.control(id, func(sess *session.Session) error { return sess.RequestPause() })
}

// ResumeSession releases a paused session.
func (s *Service) ResumeSession(ctx context.Context, id string) (*domain.ControlResponse, error) {
	return s.control(id, func(sess *session.Session) error { return sess.RequestResume() })
}

// CancelSession asks the session's runner to stop. Cancelling a finished
// session is a no-op.
func (s *Service) CancelSession(ctx context.Context, id string) (*domain.ControlResponse, error) {
	return s.control(id, func(sess *session.Session) error {
		sess.RequestCancel()
		return nil
	})
}

func (s *Service) control(id string, request func(*session.Session) error) (*domain.ControlResponse, error) {
	sess, err := s.registry.Get(id)
	if err != nil {
		return nil, err
	}
	if err := request(sess); err != nil {
		return nil, err
	}
	return &domain.ControlResponse{OK: true, ID: sess.ID, Status: sess.Status()}, nil
}

// ListSessions lists live sessions, newest first.
func (s *Service) ListSessions(ctx context.Context, filter domain.SessionFilter) []domain.SessionSummary {
	infos := s.registry.List(filter)
	summaries := make([]domain.SessionSummary, len(infos))
	for i, info := range infos {
		summaries[i] = info.Summary()
	}
	return summaries
}

// DeleteSession drops a finished session from memory. Its archive stays.
func (s *Service) DeleteSession(ctx context.Context, id string) error {
	if err := s.registry.Remove(id); err != nil {
		return err
	}
	log.Printf("INFO: session %s deleted", id)
	return nil
}

func (s *Service) onAppend(_ *session.Session, ev domain.Event) {
	s.metrics.EventAppended(string(ev.Kind))
}

func (s *Service) onFinish(sess *session.Session) {
	status := sess.Status()
	s.metrics.SessionFinished(string(sess.Kind), string(status))
	s.metrics.SetActive(s.registry.ActiveCount())

	if err := s.archive(context.Background(), sess); err != nil {
		log.Printf("ERROR: failed to archive session %s: %v", sess.ID, err)
	}
}
