// Package store persists the final snapshots of finished sessions.
package store

import (
	"context"

	"github.com/xiaot623/negarena/internal/domain"
)

// Store defines the interface for archive persistence.
type Store interface {
	// SaveSnapshot stores the final snapshot of a session, replacing any
	// earlier copy.
	SaveSnapshot(ctx context.Context, snap *domain.Snapshot) error
	// GetSnapshot returns nil, nil when id was never archived.
	GetSnapshot(ctx context.Context, id string) (*domain.Snapshot, error)
	ListSnapshots(ctx context.Context, limit int) ([]domain.SessionSummary, error)
	Close() error
}
