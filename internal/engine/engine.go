// Package engine defines the port to the mechanism engine that computes
// negotiation steps, plus a reference alternating-offers implementation.
package engine

import (
	"context"
	"fmt"

	"github.com/xiaot623/negarena/internal/domain"
)

// StepResult is what one engine step produced.
// Events carry Kind, RelativeTime and payload; the event log assigns steps.
type StepResult struct {
	Events []domain.Event
	Done   bool
	Result *domain.Result
}

// Mechanism is one opened negotiation.
type Mechanism interface {
	// Step advances the negotiation by one protocol round.
	Step(ctx context.Context) (StepResult, error)
	// TotalSteps returns the step bound, or nil when it is unknown.
	TotalSteps() *int
	// Close releases engine resources. It is safe to call more than once.
	Close() error
}

// Engine opens mechanisms for a scenario and a set of participants.
type Engine interface {
	Open(ctx context.Context, scenario domain.ScenarioRef, participants []domain.ParticipantSpec, params domain.MechanismParams) (Mechanism, error)
}

// RunToCompletion steps m until it reports Done, returning the final result and
// the number of steps taken. It does not close m.
func RunToCompletion(ctx context.Context, m Mechanism) (*domain.Result, int, error) {
	steps := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, steps, err
		}
		res, err := m.Step(ctx)
		if err != nil {
			return nil, steps, err
		}
		steps++
		if res.Done {
			if res.Result == nil {
				return nil, steps, fmt.Errorf("engine finished without a result")
			}
			return res.Result, steps, nil
		}
	}
}
