package tournament

import (
	"fmt"
	"sort"
	"sync"

	"github.com/xiaot623/negarena/internal/domain"
)

type cell struct {
	key        CellKey
	total      int
	completed  int
	agreements int
	timeouts   int
	errors     int
	running    int
}

func (c *cell) status() domain.CellStatus {
	switch {
	case c.completed == 0 && c.running == 0:
		return domain.CellStatusPending
	case c.running > 0 || c.completed < c.total:
		return domain.CellStatusRunning
	case c.errors > 0:
		return domain.CellStatusError
	case c.timeouts > 0:
		return domain.CellStatusTimeout
	default:
		return domain.CellStatusComplete
	}
}

type score struct {
	sum  float64
	runs int
}

// Aggregator maintains tournament cells and per-participant scores
// incrementally. It is safe for concurrent use.
type Aggregator struct {
	mu        sync.Mutex
	names     []string
	scenarios []string
	expected  map[CellKey]int
	cells     map[CellKey]*cell
	scores    []score

	completed int
	total     int

	board []domain.LeaderboardEntry
	dirty bool
}

// NewAggregator creates an aggregator for the plan's roster and expected totals.
func NewAggregator(plan *Plan) *Aggregator {
	names := plan.ParticipantNames()
	total := 0
	for _, n := range plan.Expected {
		total += n
	}
	return &Aggregator{
		names:     names,
		scenarios: plan.ScenarioNames(),
		expected:  plan.Expected,
		cells:     make(map[CellKey]*cell),
		scores:    make([]score, len(names)),
		total:     total,
		dirty:     true,
	}
}

func (a *Aggregator) cellLocked(key CellKey) *cell {
	c, ok := a.cells[key]
	if !ok {
		c = &cell{key: key, total: a.expected[key]}
		a.cells[key] = c
	}
	return c
}

// RecordStart marks one run of the pairing as in flight.
func (a *Aggregator) RecordStart(competitor, opponent, scenario int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cellLocked(NewCellKey(competitor, opponent, scenario)).running++
}

// RecordCompletion counts a finished run. utilities are indexed by role
// (competitor first) and may be nil for errored runs. A completion beyond the
// cell's total returns domain.ErrCellOverflow and changes nothing.
func (a *Aggregator) RecordCompletion(competitor, opponent, scenario int, outcome domain.Outcome, utilities []float64) error {
	key := NewCellKey(competitor, opponent, scenario)

	a.mu.Lock()
	defer a.mu.Unlock()

	c := a.cellLocked(key)
	if c.completed >= c.total {
		return fmt.Errorf("%w: cell %s at %d/%d", domain.ErrCellOverflow, key, c.completed, c.total)
	}

	switch outcome {
	case domain.OutcomeAgreement:
		c.agreements++
	case domain.OutcomeTimeout:
		c.timeouts++
	case domain.OutcomeError:
		c.errors++
	default:
		return fmt.Errorf("unknown outcome %q", outcome)
	}
	c.completed++
	a.completed++
	if c.running > 0 {
		c.running--
	}

	if len(utilities) >= 2 {
		a.addScoreLocked(competitor, utilities[0])
		a.addScoreLocked(opponent, utilities[1])
		a.dirty = true
	}
	return nil
}

func (a *Aggregator) addScoreLocked(participant int, u float64) {
	if participant < 0 || participant >= len(a.scores) {
		return
	}
	a.scores[participant].sum += u
	a.scores[participant].runs++
}

// Key resolves a pairing to its display key.
func (a *Aggregator) Key(competitor, opponent, scenario int) string {
	return NewCellKey(competitor, opponent, scenario).Display(a.names, a.scenarios)
}

// Cells returns a copy of every created cell ordered by scenario, competitor
// and opponent.
func (a *Aggregator) Cells() []domain.Cell {
	a.mu.Lock()
	defer a.mu.Unlock()

	keys := make([]CellKey, 0, len(a.cells))
	for k := range a.cells {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	out := make([]domain.Cell, len(keys))
	for i, k := range keys {
		c := a.cells[k]
		out[i] = domain.Cell{
			Key:          k.Display(a.names, a.scenarios),
			Competitor:   k.Competitor,
			Opponent:     k.Opponent,
			Scenario:     k.Scenario,
			Total:        c.total,
			Completed:    c.completed,
			Agreements:   c.agreements,
			Timeouts:     c.timeouts,
			Errors:       c.errors,
			RunningCount: c.running,
			Status:       c.status(),
		}
	}
	return out
}

// Leaderboard returns participants ranked by mean utility, ties broken by
// name. It is recomputed only when scores changed since the last call.
func (a *Aggregator) Leaderboard() []domain.LeaderboardEntry {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.dirty {
		board := make([]domain.LeaderboardEntry, 0, len(a.scores))
		for i, s := range a.scores {
			if s.runs == 0 {
				continue
			}
			board = append(board, domain.LeaderboardEntry{
				Participant: a.names[i],
				Score:       s.sum / float64(s.runs),
				Runs:        s.runs,
			})
		}
		sort.Slice(board, func(i, j int) bool {
			if board[i].Score != board[j].Score {
				return board[i].Score > board[j].Score
			}
			return board[i].Participant < board[j].Participant
		})
		a.board = board
		a.dirty = false
	}

	out := make([]domain.LeaderboardEntry, len(a.board))
	copy(out, a.board)
	return out
}

// Progress returns completed and expected run counts across all cells.
func (a *Aggregator) Progress() (completed, total int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.completed, a.total
}
