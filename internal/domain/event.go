package domain

// Offer is the payload of a negotiation step event.
type Offer struct {
	ProposerIndex int       `json:"proposer_index"`
	Values        []float64 `json:"values"`
	Utilities     []float64 `json:"utilities"`
}

// CellCompletion is the payload of a finished pairwise tournament run.
type CellCompletion struct {
	Cell       string    `json:"cell"`
	Competitor int       `json:"competitor"`
	Opponent   int       `json:"opponent"`
	Scenario   int       `json:"scenario"`
	Repetition int       `json:"repetition"`
	Outcome    Outcome   `json:"outcome"`
	Utilities  []float64 `json:"utilities,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Event is one immutable record of the per-session event log.
type Event struct {
	Step         int             `json:"step"`
	Kind         EventKind       `json:"kind"`
	Ts           int64           `json:"ts"` // Unix milliseconds
	RelativeTime float64         `json:"relative_time"`
	Offer        *Offer          `json:"offer,omitempty"`
	Completion   *CellCompletion `json:"completion,omitempty"`
}
