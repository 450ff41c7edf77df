// Package runner drives one session's mechanism engine in a background
// goroutine, translating engine steps into event log appends and lifecycle
// transitions.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/xiaot623/negarena/internal/domain"
	"github.com/xiaot623/negarena/internal/engine"
	"github.com/xiaot623/negarena/internal/lifecycle"
	"github.com/xiaot623/negarena/internal/session"
)

// DefaultParallelism bounds concurrent tournament sub-runs when unset.
const DefaultParallelism = 4

var errFatal = errors.New("invariant violation")

// Options tune a runner.
type Options struct {
	// MaxDuration is the wall-clock ceiling of the whole session. Zero disables it.
	MaxDuration time.Duration
	// Parallelism bounds concurrent tournament sub-runs.
	Parallelism int
	// Strict makes invariant violations panic instead of failing the session.
	Strict bool
	// OnAppend is called after every appended event.
	OnAppend func(sess *session.Session, ev domain.Event)
	// OnFinish is called once the session reached its terminal status.
	OnFinish func(sess *session.Session)
	Now      func() time.Time
}

// Runner owns the execution of one session. It is the only writer of the
// session's status, log and result.
type Runner struct {
	sess   *session.Session
	engine engine.Engine
	opts   Options

	deadline   time.Time
	deadlineCh <-chan time.Time
}

// New creates a runner for sess.
func New(sess *session.Session, eng engine.Engine, opts Options) *Runner {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = DefaultParallelism
	}
	if sess.Config.MaxDurationMs > 0 {
		opts.MaxDuration = time.Duration(sess.Config.MaxDurationMs) * time.Millisecond
	}
	if t := sess.Config.Tournament; t != nil && t.Parallelism > 0 {
		opts.Parallelism = t.Parallelism
	}
	return &Runner{sess: sess, engine: eng, opts: opts}
}

// Run executes the session to a terminal status. Cancelling ctx cancels the
// session at the next checkpoint.
func (r *Runner) Run(ctx context.Context) {
	defer r.finish()

	if r.opts.MaxDuration > 0 {
		r.deadline = r.opts.Now().Add(r.opts.MaxDuration)
		timer := time.NewTimer(r.opts.MaxDuration)
		defer timer.Stop()
		r.deadlineCh = timer.C
	}

	if ctrl := r.sess.PendingControl(); ctrl.Cancel || ctx.Err() != nil {
		r.transition(lifecycle.TriggerCancel)
		return
	}
	if !r.transition(lifecycle.TriggerStart) {
		return
	}
	log.Printf("INFO: session %s started (%s)", r.sess.ID, r.sess.Kind)

	switch r.sess.Kind {
	case domain.SessionKindTournament:
		r.runTournament(ctx)
	default:
		r.runNegotiation(ctx)
	}
}

func (r *Runner) runNegotiation(ctx context.Context) {
	cfg := r.sess.Config
	mech, err := r.open(ctx, cfg.Scenario, cfg.Participants)
	if err != nil {
		r.fail(fmt.Sprintf("engine failure: %v", err))
		return
	}
	defer mech.Close()
	r.sess.SetTotalSteps(mech.TotalSteps())

	for {
		if r.checkpoint(ctx) {
			return
		}

		res, err := r.step(ctx, mech)
		if err != nil {
			if ctx.Err() != nil {
				r.transition(lifecycle.TriggerCancel)
				return
			}
			r.fail(fmt.Sprintf("engine failure: %v", err))
			return
		}

		for _, ev := range res.Events {
			if !r.append(ev) {
				return
			}
		}

		if res.Done {
			if res.Result == nil {
				r.fail("engine failure: finished without a result")
				return
			}
			if res.Result.Steps == 0 {
				res.Result.Steps = r.sess.Log().Len()
			}
			r.sess.SetResult(res.Result)
			r.transition(lifecycle.TriggerComplete)
			return
		}
	}
}

// checkpoint honours cancellation, the wall-clock ceiling and pause requests.
// It blocks while the session is paused and reports whether the run is over.
func (r *Runner) checkpoint(ctx context.Context) bool {
	for {
		if ctx.Err() != nil {
			r.transition(lifecycle.TriggerCancel)
			return true
		}
		if r.expired() {
			r.fail(fmt.Sprintf("timeout: session exceeded max duration of %s", r.opts.MaxDuration))
			return true
		}

		ctrl := r.sess.PendingControl()
		if ctrl.Cancel {
			r.transition(lifecycle.TriggerCancel)
			return true
		}

		status := r.sess.Status()
		if !ctrl.Pause {
			if status == domain.SessionStatusPaused {
				if !r.transition(lifecycle.TriggerResume) {
					return true
				}
				log.Printf("INFO: session %s resumed", r.sess.ID)
			}
			return false
		}

		if status == domain.SessionStatusRunning {
			if !r.transition(lifecycle.TriggerPause) {
				return true
			}
			log.Printf("INFO: session %s paused at step %d", r.sess.ID, r.sess.Log().Len())
		}

		select {
		case <-ctrl.Wake:
		case <-ctx.Done():
		case <-r.deadlineCh:
		}
	}
}

func (r *Runner) expired() bool {
	return !r.deadline.IsZero() && !r.opts.Now().Before(r.deadline)
}

func (r *Runner) open(ctx context.Context, scenario domain.ScenarioRef, participants []domain.ParticipantSpec) (m engine.Mechanism, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return r.engine.Open(ctx, scenario, participants, r.sess.Config.Mechanism)
}

func (r *Runner) step(ctx context.Context, m engine.Mechanism) (res engine.StepResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return m.Step(ctx)
}

func (r *Runner) append(ev domain.Event) bool {
	if ev.Ts == 0 {
		ev.Ts = r.opts.Now().UnixMilli()
	}
	return r.appended(r.sess.Append(ev))
}

func (r *Runner) appended(stored domain.Event, err error) bool {
	if err != nil {
		r.fatal(err)
		return false
	}
	if r.opts.OnAppend != nil {
		r.opts.OnAppend(r.sess, stored)
	}
	return true
}

// transition fires trigger and reports whether it was applied.
func (r *Runner) transition(trigger lifecycle.Trigger) bool {
	if _, err := r.sess.Fire(trigger, r.opts.Now()); err != nil {
		r.fatal(err)
		return false
	}
	return true
}

func (r *Runner) fail(msg string) {
	log.Printf("ERROR: session %s failed: %s", r.sess.ID, msg)
	if _, err := r.sess.Fail(msg, r.opts.Now()); err != nil {
		r.fatal(err)
	}
}

// fatal reports a core invariant violation. In strict mode it crashes;
// otherwise the session is failed if it is still live.
func (r *Runner) fatal(err error) {
	log.Printf("FATAL: session %s: %v", r.sess.ID, err)
	if r.opts.Strict {
		panic(fmt.Errorf("%w: session %s: %v", errFatal, r.sess.ID, err))
	}
	if r.sess.Status().IsTerminal() {
		return
	}
	if _, ferr := r.sess.Fail(fmt.Sprintf("internal error: %v", err), r.opts.Now()); ferr != nil {
		log.Printf("FATAL: session %s: cannot fail session: %v", r.sess.ID, ferr)
	}
}

func (r *Runner) finish() {
	info := r.sess.Info()
	if !info.Status.IsTerminal() {
		r.fatal(fmt.Errorf("runner exited in status %s", info.Status))
		info = r.sess.Info()
	}
	log.Printf("INFO: session %s finished: %s after %d steps", r.sess.ID, info.Status, info.CurrentStep)
	if r.opts.OnFinish != nil {
		r.opts.OnFinish(r.sess)
	}
}
