package tournament

import (
	"fmt"

	"github.com/xiaot623/negarena/internal/domain"
)

// SubRun is one pairwise negotiation of a tournament.
type SubRun struct {
	Competitor int
	Opponent   int
	Scenario   int
	Repetition int
}

// Key returns the cell the run contributes to.
func (r SubRun) Key() CellKey {
	return NewCellKey(r.Competitor, r.Opponent, r.Scenario)
}

// Plan is the expansion of a tournament spec.
type Plan struct {
	Participants []domain.ParticipantSpec
	Scenarios    []domain.ScenarioRef
	Runs         []SubRun
	Expected     map[CellKey]int
}

// NewPlan expands spec. Competitors come first in the roster; opponents that
// share a competitor's name reuse its index. A participant never meets itself.
func NewPlan(spec *domain.TournamentSpec) (*Plan, error) {
	if spec == nil {
		return nil, fmt.Errorf("%w: tournament block is required", domain.ErrInvalidConfig)
	}

	p := &Plan{
		Scenarios: spec.Scenarios,
		Expected:  make(map[CellKey]int),
	}
	index := make(map[string]int)
	add := func(ps domain.ParticipantSpec) int {
		if i, ok := index[ps.Name]; ok {
			return i
		}
		index[ps.Name] = len(p.Participants)
		p.Participants = append(p.Participants, ps)
		return index[ps.Name]
	}

	competitors := make([]int, len(spec.Competitors))
	for i, c := range spec.Competitors {
		competitors[i] = add(c)
	}
	opponents := competitors
	if len(spec.Opponents) > 0 {
		opponents = make([]int, len(spec.Opponents))
		for i, o := range spec.Opponents {
			opponents[i] = add(o)
		}
	}

	for s := range spec.Scenarios {
		for _, c := range competitors {
			for _, o := range opponents {
				if c == o {
					continue
				}
				for r := 0; r < spec.Repetitions; r++ {
					run := SubRun{Competitor: c, Opponent: o, Scenario: s, Repetition: r}
					p.Runs = append(p.Runs, run)
					p.Expected[run.Key()]++
				}
			}
		}
	}

	if len(p.Runs) == 0 {
		return nil, fmt.Errorf("%w: tournament has no pairings", domain.ErrInvalidConfig)
	}
	return p, nil
}

// ParticipantNames returns the roster names in index order.
func (p *Plan) ParticipantNames() []string {
	names := make([]string, len(p.Participants))
	for i, ps := range p.Participants {
		names[i] = ps.Name
	}
	return names
}

// ScenarioNames returns the scenario names in index order.
func (p *Plan) ScenarioNames() []string {
	names := make([]string, len(p.Scenarios))
	for i, s := range p.Scenarios {
		names[i] = s.Name
		if names[i] == "" {
			names[i] = fmt.Sprintf("scenario-%d", i)
		}
	}
	return names
}

// CountSubRuns returns how many pairwise runs spec expands to without
// building the plan.
func CountSubRuns(spec *domain.TournamentSpec) int {
	if spec == nil {
		return 0
	}
	names := make(map[string]bool)
	for _, c := range spec.Competitors {
		names[c.Name] = true
	}
	pairs := 0
	if len(spec.Opponents) == 0 {
		pairs = len(spec.Competitors) * (len(spec.Competitors) - 1)
	} else {
		for range spec.Competitors {
			pairs += len(spec.Opponents)
		}
		for _, o := range spec.Opponents {
			if names[o.Name] {
				pairs--
			}
		}
	}
	if pairs < 0 {
		pairs = 0
	}
	return pairs * len(spec.Scenarios) * spec.Repetitions
}
