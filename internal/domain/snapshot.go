package domain

import "time"

// Snapshot is a complete, self-contained read of a session's state.
// Events holds the log suffix after SinceStep.
type Snapshot struct {
	ID          string             `json:"id"`
	Kind        SessionKind        `json:"kind"`
	Name        string             `json:"name,omitempty"`
	Status      SessionStatus      `json:"status"`
	CurrentStep int                `json:"current_step"`
	TotalSteps  *int               `json:"total_steps,omitempty"`
	SinceStep   int                `json:"since_step"`
	Events      []Event            `json:"events"`
	Cells       []Cell             `json:"cells,omitempty"`
	Leaderboard []LeaderboardEntry `json:"leaderboard,omitempty"`
	Result      *Result            `json:"result,omitempty"`
	Error       string             `json:"error,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	StartedAt   *time.Time         `json:"started_at,omitempty"`
	EndedAt     *time.Time         `json:"ended_at,omitempty"`
	Final       bool               `json:"final"`
}

// Summary converts the snapshot to its list representation.
func (s *Snapshot) Summary() SessionSummary {
	return SessionSummary{
		ID:          s.ID,
		Kind:        s.Kind,
		Name:        s.Name,
		Status:      s.Status,
		CurrentStep: s.CurrentStep,
		TotalSteps:  s.TotalSteps,
		CreatedAt:   s.CreatedAt,
		EndedAt:     s.EndedAt,
		Error:       s.Error,
	}
}
