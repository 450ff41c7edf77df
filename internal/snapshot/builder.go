// Package snapshot builds self-contained reads of a session for pollers and
// the push stream.
package snapshot

import (
	"github.com/xiaot623/negarena/internal/domain"
	"github.com/xiaot623/negarena/internal/session"
)

// Build returns the state of sess with the events after sinceStep.
//
// Metadata, the log and the tournament tables come from one consistent read,
// so CurrentStep equals the number of events from step 0, a terminal status
// always comes with the complete log, and cell completions match the
// cell_completed events.
func Build(sess *session.Session, sinceStep int) domain.Snapshot {
	st := sess.State()
	info, all := st.Info, st.Events

	if sinceStep < 0 {
		sinceStep = 0
	}
	from := sinceStep
	if from > len(all) {
		from = len(all)
	}

	snap := domain.Snapshot{
		ID:          info.ID,
		Kind:        info.Kind,
		Name:        info.Name,
		Status:      info.Status,
		CurrentStep: len(all),
		TotalSteps:  info.TotalSteps,
		SinceStep:   sinceStep,
		Events:      all[from:],
		Cells:       st.Cells,
		Leaderboard: st.Leaderboard,
		Result:      info.Result,
		Error:       info.Error,
		CreatedAt:   info.CreatedAt,
		StartedAt:   info.StartedAt,
		EndedAt:     info.EndedAt,
		Final:       info.Status.IsTerminal(),
	}
	return snap
}
