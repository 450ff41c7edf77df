package runner

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/xiaot623/negarena/internal/domain"
	"github.com/xiaot623/negarena/internal/engine"
	"github.com/xiaot623/negarena/internal/lifecycle"
	"github.com/xiaot623/negarena/internal/tournament"
)

type subRunResult struct {
	run       tournament.SubRun
	outcome   domain.Outcome
	utilities []float64
	err       error
}

// runTournament dispatches pairwise sub-runs concurrently and folds their
// completions into the log and aggregator from this goroutine only. While
// paused nothing new is dispatched and no completion is consumed.
func (r *Runner) runTournament(ctx context.Context) {
	plan := r.sess.Plan()
	agg := r.sess.Aggregator()
	if plan == nil || agg == nil {
		r.fatal(fmt.Errorf("tournament session without plan"))
		return
	}
	total := len(plan.Runs)

	runCtx, cancelRuns := context.WithCancel(ctx)
	var g errgroup.Group
	g.SetLimit(r.opts.Parallelism)
	defer func() {
		cancelRuns()
		_ = g.Wait()
	}()

	results := make(chan subRunResult, r.opts.Parallelism)
	next, inflight, done := 0, 0, 0

	for {
		if r.checkpoint(ctx) {
			return
		}

		for next < total && inflight < r.opts.Parallelism {
			run := plan.Runs[next]
			// a finished worker may still hold its slot briefly, so Go may block
			g.Go(func() error {
				res := r.playSubRun(runCtx, plan, run)
				select {
				case results <- res:
				case <-runCtx.Done():
				}
				return nil
			})
			agg.RecordStart(run.Competitor, run.Opponent, run.Scenario)
			next++
			inflight++
		}

		if inflight == 0 && next == total {
			if got, want := agg.Progress(); got != done || want != total {
				r.fatal(fmt.Errorf("tournament finished with %d/%d completions recorded, %d consumed", got, want, done))
				return
			}
			r.sess.SetResult(&domain.Result{
				EndReason:   domain.EndReasonTournament,
				Steps:       r.sess.Log().Len(),
				SubRuns:     total,
				Leaderboard: agg.Leaderboard(),
			})
			r.transition(lifecycle.TriggerComplete)
			return
		}

		ctrl := r.sess.PendingControl()
		if ctrl.Pause || ctrl.Cancel {
			continue
		}

		select {
		case res := <-results:
			inflight--
			done++
			if !r.recordSubRun(res, done, total) {
				return
			}
		case <-ctrl.Wake:
		case <-ctx.Done():
		case <-r.deadlineCh:
		}
	}
}

// recordSubRun folds the done-th completion into the session.
func (r *Runner) recordSubRun(res subRunResult, done, total int) bool {
	run := res.run
	completion := &domain.CellCompletion{
		Cell:       r.sess.Aggregator().Key(run.Competitor, run.Opponent, run.Scenario),
		Competitor: run.Competitor,
		Opponent:   run.Opponent,
		Scenario:   run.Scenario,
		Repetition: run.Repetition,
		Outcome:    res.outcome,
		Utilities:  res.utilities,
	}
	if res.err != nil {
		completion.Error = res.err.Error()
	}
	return r.appended(r.sess.RecordCompletion(completion, domain.Event{
		Ts:           r.opts.Now().UnixMilli(),
		RelativeTime: float64(done) / float64(total),
	}))
}

// playSubRun runs one pairwise negotiation to completion. Engine errors and
// panics become an error outcome of the cell, not a session failure.
func (r *Runner) playSubRun(ctx context.Context, plan *tournament.Plan, run tournament.SubRun) (res subRunResult) {
	res.run = run
	defer func() {
		if p := recover(); p != nil {
			res.outcome = domain.OutcomeError
			res.utilities = nil
			res.err = fmt.Errorf("panic: %v", p)
		}
	}()

	participants := []domain.ParticipantSpec{plan.Participants[run.Competitor], plan.Participants[run.Opponent]}
	mech, err := r.engine.Open(ctx, plan.Scenarios[run.Scenario], participants, r.sess.Config.Mechanism)
	if err != nil {
		res.outcome = domain.OutcomeError
		res.err = err
		return res
	}
	defer mech.Close()

	result, _, err := engine.RunToCompletion(ctx, mech)
	if err != nil {
		res.outcome = domain.OutcomeError
		res.err = err
		return res
	}

	res.utilities = result.Utilities
	if result.EndReason == domain.EndReasonAgreement {
		res.outcome = domain.OutcomeAgreement
	} else {
		res.outcome = domain.OutcomeTimeout
	}
	return res
}
