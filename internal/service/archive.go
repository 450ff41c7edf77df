package service

import (
	"context"
	"fmt"
	"time"

	"github.com/xiaot623/negarena/internal/domain"
	"github.com/xiaot623/negarena/internal/metrics"
	"github.com/xiaot623/negarena/internal/session"
	"github.com/xiaot623/negarena/internal/snapshot"
)

const archiveTimeout = 5 * time.Second

func (s *Service) archive(ctx context.Context, sess *session.Session) error {
	ctx, cancel := context.WithTimeout(ctx, archiveTimeout)
	defer cancel()

	snap := snapshot.Build(sess, 0)
	if !snap.Final {
		return fmt.Errorf("session %s is %s", sess.ID, snap.Status)
	}
	return s.store.SaveSnapshot(ctx, &snap)
}

// GetArchivedSnapshot returns the final snapshot of a finished session.
func (s *Service) GetArchivedSnapshot(ctx context.Context, id string) (*domain.Snapshot, error) {
	snap, err := s.store.GetSnapshot(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load archive: %w", err)
	}
	if snap == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	s.metrics.SnapshotServed(metrics.SourceArchive)
	return snap, nil
}

// ListArchived lists archived sessions, most recently ended first.
func (s *Service) ListArchived(ctx context.Context, limit int) ([]domain.SessionSummary, error) {
	summaries, err := s.store.ListSnapshots(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list archive: %w", err)
	}
	return summaries, nil
}
