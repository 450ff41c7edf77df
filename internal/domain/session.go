package domain

import (
	"fmt"
	"time"
)

// ScenarioRef points at the negotiation domain a session runs on.
type ScenarioRef struct {
	Name   string `json:"name" yaml:"name"`
	Issues int    `json:"issues" yaml:"issues"`
	Seed   int64  `json:"seed,omitempty" yaml:"seed,omitempty"`
}

// ParticipantSpec describes one negotiator.
type ParticipantSpec struct {
	Name        string  `json:"name" yaml:"name"`
	Strategy    string  `json:"strategy" yaml:"strategy"`
	Reservation float64 `json:"reservation,omitempty" yaml:"reservation,omitempty"`
}

// MechanismParams are the protocol parameters handed to the mechanism engine.
type MechanismParams struct {
	NSteps      int `json:"n_steps,omitempty" yaml:"n_steps,omitempty"`
	TimeLimitMs int `json:"time_limit_ms,omitempty" yaml:"time_limit_ms,omitempty"`
	StepDelayMs int `json:"step_delay_ms,omitempty" yaml:"step_delay_ms,omitempty"`
}

// TournamentSpec expands into pairwise negotiations.
// An empty Opponents list means round robin among Competitors.
type TournamentSpec struct {
	Competitors []ParticipantSpec `json:"competitors" yaml:"competitors"`
	Opponents   []ParticipantSpec `json:"opponents,omitempty" yaml:"opponents,omitempty"`
	Scenarios   []ScenarioRef     `json:"scenarios" yaml:"scenarios"`
	Repetitions int               `json:"repetitions" yaml:"repetitions"`
	Parallelism int               `json:"parallelism,omitempty" yaml:"parallelism,omitempty"`
}

// SessionConfig is the immutable input used to start a session.
type SessionConfig struct {
	Kind          SessionKind       `json:"kind" yaml:"kind"`
	Name          string            `json:"name,omitempty" yaml:"name,omitempty"`
	Scenario      ScenarioRef       `json:"scenario,omitempty" yaml:"scenario,omitempty"`
	Participants  []ParticipantSpec `json:"participants,omitempty" yaml:"participants,omitempty"`
	Mechanism     MechanismParams   `json:"mechanism" yaml:"mechanism"`
	Tournament    *TournamentSpec   `json:"tournament,omitempty" yaml:"tournament,omitempty"`
	MaxDurationMs int               `json:"max_duration_ms,omitempty" yaml:"max_duration_ms,omitempty"`
}

// Validate checks the structural requirements of a config.
func (c *SessionConfig) Validate() error {
	if c.Mechanism.NSteps < 0 || c.Mechanism.TimeLimitMs < 0 || c.Mechanism.StepDelayMs < 0 {
		return fmt.Errorf("%w: mechanism parameters must not be negative", ErrInvalidConfig)
	}
	if c.Mechanism.NSteps == 0 && c.Mechanism.TimeLimitMs == 0 {
		return fmt.Errorf("%w: mechanism.n_steps or mechanism.time_limit_ms is required", ErrInvalidConfig)
	}
	if c.MaxDurationMs < 0 {
		return fmt.Errorf("%w: max_duration_ms must not be negative", ErrInvalidConfig)
	}

	switch c.Kind {
	case SessionKindNegotiation:
		if len(c.Participants) < 2 {
			return fmt.Errorf("%w: a negotiation needs at least 2 participants", ErrInvalidConfig)
		}
		if c.Scenario.Issues <= 0 {
			return fmt.Errorf("%w: scenario.issues must be positive", ErrInvalidConfig)
		}
		return validateParticipants(c.Participants)
	case SessionKindTournament:
		t := c.Tournament
		if t == nil {
			return fmt.Errorf("%w: tournament block is required", ErrInvalidConfig)
		}
		if len(t.Competitors) == 0 {
			return fmt.Errorf("%w: tournament.competitors is required", ErrInvalidConfig)
		}
		if len(t.Scenarios) == 0 {
			return fmt.Errorf("%w: tournament.scenarios is required", ErrInvalidConfig)
		}
		if t.Repetitions <= 0 {
			return fmt.Errorf("%w: tournament.repetitions must be positive", ErrInvalidConfig)
		}
		if t.Parallelism < 0 {
			return fmt.Errorf("%w: tournament.parallelism must not be negative", ErrInvalidConfig)
		}
		for _, s := range t.Scenarios {
			if s.Issues <= 0 {
				return fmt.Errorf("%w: scenario %q needs positive issues", ErrInvalidConfig, s.Name)
			}
		}
		if err := validateParticipants(t.Competitors); err != nil {
			return err
		}
		return validateParticipants(t.Opponents)
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidConfig, c.Kind)
	}
}

func validateParticipants(ps []ParticipantSpec) error {
	seen := make(map[string]bool, len(ps))
	for _, p := range ps {
		if p.Name == "" {
			return fmt.Errorf("%w: participant name is required", ErrInvalidConfig)
		}
		if seen[p.Name] {
			return fmt.Errorf("%w: duplicate participant %q", ErrInvalidConfig, p.Name)
		}
		seen[p.Name] = true
		if p.Reservation < 0 || p.Reservation > 1 {
			return fmt.Errorf("%w: reservation of %q must be within [0,1]", ErrInvalidConfig, p.Name)
		}
	}
	return nil
}

// Result is the final payload captured when a session completes.
type Result struct {
	EndReason   EndReason          `json:"end_reason"`
	Agreement   []float64          `json:"agreement,omitempty"`
	Utilities   []float64          `json:"utilities,omitempty"`
	Steps       int                `json:"steps"`
	SubRuns     int                `json:"sub_runs,omitempty"`
	Leaderboard []LeaderboardEntry `json:"leaderboard,omitempty"`
}

// SessionInfo is a point-in-time copy of a session's metadata.
type SessionInfo struct {
	ID          string        `json:"id"`
	Kind        SessionKind   `json:"kind"`
	Name        string        `json:"name,omitempty"`
	Status      SessionStatus `json:"status"`
	Config      SessionConfig `json:"config"`
	CreatedAt   time.Time     `json:"created_at"`
	StartedAt   *time.Time    `json:"started_at,omitempty"`
	EndedAt     *time.Time    `json:"ended_at,omitempty"`
	CurrentStep int           `json:"current_step"`
	TotalSteps  *int          `json:"total_steps,omitempty"`
	Error       string        `json:"error,omitempty"`
	Result      *Result       `json:"result,omitempty"`
}

// Summary converts the info to its list representation.
func (i SessionInfo) Summary() SessionSummary {
	return SessionSummary{
		ID:          i.ID,
		Kind:        i.Kind,
		Name:        i.Name,
		Status:      i.Status,
		CurrentStep: i.CurrentStep,
		TotalSteps:  i.TotalSteps,
		CreatedAt:   i.CreatedAt,
		EndedAt:     i.EndedAt,
		Error:       i.Error,
	}
}

// SessionSummary is one row of a session listing.
type SessionSummary struct {
	ID          string        `json:"id"`
	Kind        SessionKind   `json:"kind"`
	Name        string        `json:"name,omitempty"`
	Status      SessionStatus `json:"status"`
	CurrentStep int           `json:"current_step"`
	TotalSteps  *int          `json:"total_steps,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	EndedAt     *time.Time    `json:"ended_at,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// SessionFilter narrows a session listing.
type SessionFilter struct {
	Kind   SessionKind
	Status SessionStatus
	Limit  int
}

// Match reports whether info passes the filter (Limit is ignored).
func (f SessionFilter) Match(info SessionInfo) bool {
	if f.Kind != "" && info.Kind != f.Kind {
		return false
	}
	if f.Status != "" && info.Status != f.Status {
		return false
	}
	return true
}
