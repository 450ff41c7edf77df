// Package tournament expands tournament configs into pairwise runs and
// aggregates their outcomes into cells and a leaderboard.
package tournament

import (
	"fmt"
	"strconv"
)

// CellKey identifies one (competitor, opponent, scenario) combination by
// roster and scenario index. Keys are canonical: Competitor <= Opponent, so
// both role assignments of a pair share one cell.
type CellKey struct {
	Competitor int
	Opponent   int
	Scenario   int
}

// NewCellKey returns the canonical key for a pairing.
func NewCellKey(competitor, opponent, scenario int) CellKey {
	if opponent < competitor {
		competitor, opponent = opponent, competitor
	}
	return CellKey{Competitor: competitor, Opponent: opponent, Scenario: scenario}
}

// String renders the key with indices, e.g. "0::2::1".
func (k CellKey) String() string {
	return strconv.Itoa(k.Competitor) + "::" + strconv.Itoa(k.Opponent) + "::" + strconv.Itoa(k.Scenario)
}

// Display resolves the key to "competitor::opponent::scenario" names.
// Out-of-range indices fall back to the numeric form.
func (k CellKey) Display(participants, scenarios []string) string {
	return name(participants, k.Competitor) + "::" + name(participants, k.Opponent) + "::" + name(scenarios, k.Scenario)
}

func name(names []string, i int) string {
	if i >= 0 && i < len(names) {
		return names[i]
	}
	return fmt.Sprintf("#%d", i)
}

// Less orders keys by scenario, then competitor, then opponent.
func (k CellKey) Less(o CellKey) bool {
	if k.Scenario != o.Scenario {
		return k.Scenario < o.Scenario
	}
	if k.Competitor != o.Competitor {
		return k.Competitor < o.Competitor
	}
	return k.Opponent < o.Opponent
}
