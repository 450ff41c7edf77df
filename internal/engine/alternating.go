package engine

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/xiaot623/negarena/internal/domain"
)

// Concession exponents of the time-dependent strategies.
var strategies = map[string]float64{
	"boulware":  0.2,
	"linear":    1,
	"conceder":  2,
	"hardliner": 0,
}

// Strategies lists the strategy names the reference engine understands.
func Strategies() []string {
	return []string{"boulware", "conceder", "hardliner", "linear"}
}

// Alternating is a stacked alternating-offers engine over linear additive
// utilities. Each issue takes a value in [0,1].
type Alternating struct {
	now func() time.Time
}

// NewAlternating creates the reference engine.
func NewAlternating() *Alternating {
	return &Alternating{now: time.Now}
}

// Open implements Engine.
func (a *Alternating) Open(_ context.Context, scenario domain.ScenarioRef, participants []domain.ParticipantSpec, params domain.MechanismParams) (Mechanism, error) {
	if len(participants) < 2 {
		return nil, fmt.Errorf("need at least 2 participants, got %d", len(participants))
	}
	if scenario.Issues <= 0 {
		return nil, fmt.Errorf("scenario %q has no issues", scenario.Name)
	}
	if params.NSteps <= 0 && params.TimeLimitMs <= 0 {
		return nil, fmt.Errorf("either n_steps or time_limit_ms must be set")
	}

	agents := make([]agent, len(participants))
	for i, p := range participants {
		exp, ok := strategies[p.Strategy]
		if !ok {
			return nil, fmt.Errorf("unknown strategy %q for %s", p.Strategy, p.Name)
		}
		agents[i] = newAgent(scenario, i, exp, p.Reservation)
	}

	return &alternatingMechanism{
		agents:  agents,
		params:  params,
		issues:  scenario.Issues,
		now:     a.now,
		started: a.now(),
	}, nil
}

type agent struct {
	weights     []float64
	prefersHigh []bool
	exponent    float64
	reservation float64
}

func newAgent(scenario domain.ScenarioRef, index int, exponent, reservation float64) agent {
	rng := rand.New(rand.NewPCG(uint64(scenario.Seed), uint64(index)+1))
	a := agent{
		weights:     make([]float64, scenario.Issues),
		prefersHigh: make([]bool, scenario.Issues),
		exponent:    exponent,
		reservation: reservation,
	}
	sum := 0.0
	for j := range a.weights {
		a.weights[j] = 0.1 + rng.Float64()
		sum += a.weights[j]
		a.prefersHigh[j] = rng.IntN(2) == 0
	}
	for j := range a.weights {
		a.weights[j] /= sum
	}
	return a
}

func (a agent) utility(offer []float64) float64 {
	u := 0.0
	for j, v := range offer {
		if a.prefersHigh[j] {
			u += a.weights[j] * v
		} else {
			u += a.weights[j] * (1 - v)
		}
	}
	return u
}

// target is the aspiration level at relative time t.
func (a agent) target(t float64) float64 {
	if a.exponent == 0 {
		return 1
	}
	t = math.Min(math.Max(t, 0), 1)
	return a.reservation + (1-a.reservation)*(1-math.Pow(t, 1/a.exponent))
}

// offerAt builds the outcome whose own utility equals level.
func (a agent) offerAt(level float64) []float64 {
	offer := make([]float64, len(a.weights))
	for j := range offer {
		if a.prefersHigh[j] {
			offer[j] = level
		} else {
			offer[j] = 1 - level
		}
	}
	return offer
}

type alternatingMechanism struct {
	agents  []agent
	params  domain.MechanismParams
	issues  int
	now     func() time.Time
	started time.Time
	step    int
	done    bool
}

func (m *alternatingMechanism) TotalSteps() *int {
	if m.params.NSteps <= 0 {
		return nil
	}
	n := m.params.NSteps
	return &n
}

func (m *alternatingMechanism) Close() error {
	m.done = true
	return nil
}

func (m *alternatingMechanism) relativeTime() float64 {
	t := 0.0
	if m.params.NSteps > 0 {
		t = float64(m.step) / float64(m.params.NSteps)
	}
	if m.params.TimeLimitMs > 0 {
		elapsed := m.now().Sub(m.started)
		t = math.Max(t, float64(elapsed)/float64(time.Duration(m.params.TimeLimitMs)*time.Millisecond))
	}
	return math.Min(t, 1)
}

func (m *alternatingMechanism) Step(ctx context.Context) (StepResult, error) {
	if m.done {
		return StepResult{}, fmt.Errorf("mechanism already finished")
	}
	if m.params.StepDelayMs > 0 {
		timer := time.NewTimer(time.Duration(m.params.StepDelayMs) * time.Millisecond)
		select {
		case <-ctx.Done():
			timer.Stop()
			return StepResult{}, ctx.Err()
		case <-timer.C:
		}
	}

	m.step++
	t := m.relativeTime()
	proposer := (m.step - 1) % len(m.agents)
	offer := m.agents[proposer].offerAt(m.agents[proposer].target(t))

	utilities := make([]float64, len(m.agents))
	accepted := true
	for i, a := range m.agents {
		utilities[i] = a.utility(offer)
		if i != proposer && utilities[i] < a.target(t) {
			accepted = false
		}
	}

	res := StepResult{Events: []domain.Event{{
		Kind:         domain.EventKindOffer,
		Ts:           m.now().UnixMilli(),
		RelativeTime: t,
		Offer: &domain.Offer{
			ProposerIndex: proposer,
			Values:        offer,
			Utilities:     utilities,
		},
	}}}

	switch {
	case accepted:
		res.Done = true
		res.Result = &domain.Result{
			EndReason: domain.EndReasonAgreement,
			Agreement: offer,
			Utilities: utilities,
			Steps:     m.step,
		}
	case m.params.NSteps > 0 && m.step >= m.params.NSteps:
		res.Done = true
		res.Result = m.disagreement(domain.EndReasonExhausted)
	case m.params.TimeLimitMs > 0 && t >= 1:
		res.Done = true
		res.Result = m.disagreement(domain.EndReasonTimeout)
	}
	if res.Done {
		m.done = true
	}
	return res, nil
}

func (m *alternatingMechanism) disagreement(reason domain.EndReason) *domain.Result {
	utilities := make([]float64, len(m.agents))
	for i, a := range m.agents {
		utilities[i] = a.reservation
	}
	return &domain.Result{EndReason: reason, Utilities: utilities, Steps: m.step}
}
