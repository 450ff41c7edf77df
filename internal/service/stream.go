package service

import (
	"context"

	"github.com/xiaot623/negarena/internal/domain"
	"github.com/xiaot623/negarena/internal/metrics"
	"github.com/xiaot623/negarena/internal/snapshot"
)

// WatchSession calls send with a snapshot of the events after sinceStep, then
// with a delta every time the session changes, until a final snapshot was
// sent, send fails or ctx is done.
func (s *Service) WatchSession(ctx context.Context, id string, sinceStep int, send func(*domain.Snapshot) error) error {
	sess, err := s.registry.Get(id)
	if err != nil {
		return err
	}

	cursor := sinceStep
	var lastStatus domain.SessionStatus
	first := true
	for {
		changed := sess.Changed()
		snap := snapshot.Build(sess, cursor)

		if first || len(snap.Events) > 0 || snap.Status != lastStatus || snap.Final {
			if err := send(&snap); err != nil {
				return err
			}
			s.metrics.SnapshotServed(metrics.SourceStream)
			first = false
			lastStatus = snap.Status
			cursor = snap.CurrentStep
		}
		if snap.Final {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}
