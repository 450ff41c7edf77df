package service

import (
	"context"
	"log"
	"time"
)

// RunRetentionSweeper periodically drops finished sessions older than the
// retention period from memory, archiving any that are not archived yet.
func (s *Service) RunRetentionSweeper(ctx context.Context) {
	interval := s.config.RetentionSweep
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepExpiredSessions(ctx, time.Now())
		}
	}
}

func (s *Service) sweepExpiredSessions(ctx context.Context, now time.Time) int {
	removed := 0
	for _, sess := range s.registry.EndedBefore(now.Add(-s.config.SessionRetention)) {
		sweepCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		archived, err := s.store.GetSnapshot(sweepCtx, sess.ID)
		if err == nil && archived == nil {
			err = s.archive(sweepCtx, sess)
		}
		cancel()
		if err != nil {
			log.Printf("WARN: keeping session %s, archive failed: %v", sess.ID, err)
			continue
		}

		if err := s.registry.Remove(sess.ID); err != nil {
			log.Printf("WARN: failed to purge session %s: %v", sess.ID, err)
			continue
		}
		removed++
	}
	if removed > 0 {
		log.Printf("INFO: retention sweep purged %d sessions", removed)
	}
	return removed
}
