// Package enginetest provides a scriptable mechanism engine for tests.
package enginetest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/xiaot623/negarena/internal/domain"
	"github.com/xiaot623/negarena/internal/engine"
)

// ErrScripted is the error returned by a scripted failing step.
var ErrScripted = errors.New("scripted engine failure")

// Engine is a fake engine. Each opened mechanism emits one offer event per
// step and finishes after Steps steps (never when Steps is 0).
type Engine struct {
	Steps   int
	FailAt  int
	PanicAt int
	OpenErr error
	// Gate, when set, makes every step wait for one token.
	Gate chan struct{}
	// ResultFor overrides the final result. Returning an error fails the last step.
	ResultFor func(scenario domain.ScenarioRef, participants []domain.ParticipantSpec) (*domain.Result, error)

	opened atomic.Int64
	closed atomic.Int64
	mu     sync.Mutex
}

// Opened returns how many mechanisms have been opened.
func (e *Engine) Opened() int { return int(e.opened.Load()) }

// Closed returns how many mechanisms have been closed.
func (e *Engine) Closed() int { return int(e.closed.Load()) }

// Open implements engine.Engine.
func (e *Engine) Open(_ context.Context, scenario domain.ScenarioRef, participants []domain.ParticipantSpec, _ domain.MechanismParams) (engine.Mechanism, error) {
	if e.OpenErr != nil {
		return nil, e.OpenErr
	}
	e.opened.Add(1)
	return &mechanism{e: e, scenario: scenario, participants: participants}, nil
}

type mechanism struct {
	e            *Engine
	scenario     domain.ScenarioRef
	participants []domain.ParticipantSpec
	step         int
	closeOnce    sync.Once
}

func (m *mechanism) TotalSteps() *int {
	if m.e.Steps <= 0 {
		return nil
	}
	n := m.e.Steps
	return &n
}

func (m *mechanism) Close() error {
	m.closeOnce.Do(func() { m.e.closed.Add(1) })
	return nil
}

func (m *mechanism) Step(ctx context.Context) (engine.StepResult, error) {
	if m.e.Gate != nil {
		select {
		case <-ctx.Done():
			return engine.StepResult{}, ctx.Err()
		case <-m.e.Gate:
		}
	}

	m.step++
	if m.e.PanicAt > 0 && m.step == m.e.PanicAt {
		panic("scripted engine panic")
	}
	if m.e.FailAt > 0 && m.step == m.e.FailAt {
		return engine.StepResult{}, ErrScripted
	}

	n := len(m.participants)
	if n == 0 {
		n = 1
	}
	utilities := make([]float64, len(m.participants))
	for i := range utilities {
		utilities[i] = 0.5
	}
	rel := 0.0
	if m.e.Steps > 0 {
		rel = float64(m.step) / float64(m.e.Steps)
	}
	res := engine.StepResult{Events: []domain.Event{{
		Kind:         domain.EventKindOffer,
		RelativeTime: rel,
		Offer: &domain.Offer{
			ProposerIndex: (m.step - 1) % n,
			Values:        []float64{rel},
			Utilities:     utilities,
		},
	}}}

	if m.e.Steps > 0 && m.step >= m.e.Steps {
		res.Done = true
		if m.e.ResultFor != nil {
			m.e.mu.Lock()
			result, err := m.e.ResultFor(m.scenario, m.participants)
			m.e.mu.Unlock()
			if err != nil {
				return engine.StepResult{}, err
			}
			res.Result = result
		} else {
			res.Result = &domain.Result{
				EndReason: domain.EndReasonAgreement,
				Agreement: []float64{1},
				Utilities: utilities,
				Steps:     m.step,
			}
		}
	}
	return res, nil
}
