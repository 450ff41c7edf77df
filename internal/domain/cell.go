package domain

// Cell is the aggregated outcome record of one competitor/opponent/scenario
// combination within a tournament.
type Cell struct {
	Key          string     `json:"key"`
	Competitor   int        `json:"competitor"`
	Opponent     int        `json:"opponent"`
	Scenario     int        `json:"scenario"`
	Total        int        `json:"total"`
	Completed    int        `json:"completed"`
	Agreements   int        `json:"agreements"`
	Timeouts     int        `json:"timeouts"`
	Errors       int        `json:"errors"`
	RunningCount int        `json:"running_count"`
	Status       CellStatus `json:"status"`
}

// LeaderboardEntry ranks one participant by score.
type LeaderboardEntry struct {
	Participant string  `json:"participant"`
	Score       float64 `json:"score"`
	Runs        int     `json:"runs"`
}
