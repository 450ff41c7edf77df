package runner

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/negarena/internal/domain"
	"github.com/xiaot623/negarena/internal/engine/enginetest"
	"github.com/xiaot623/negarena/internal/session"
)

const waitFor = 2 * time.Second

func negotiation(nSteps int) domain.SessionConfig {
	return domain.SessionConfig{
		Kind:     domain.SessionKindNegotiation,
		Scenario: domain.ScenarioRef{Name: "s", Issues: 2},
		Participants: []domain.ParticipantSpec{
			{Name: "a", Strategy: "linear"},
			{Name: "b", Strategy: "linear"},
		},
		Mechanism: domain.MechanismParams{NSteps: nSteps},
	}
}

type harness struct {
	sess     *session.Session
	done     chan struct{}
	finished atomic.Int32
}

func start(t *testing.T, ctx context.Context, cfg domain.SessionConfig, eng *enginetest.Engine, opts Options) *harness {
	t.Helper()
	sess, err := session.New("ses_"+t.Name(), cfg, time.Now())
	require.NoError(t, err)

	h := &harness{sess: sess, done: make(chan struct{})}
	opts.OnFinish = func(*session.Session) { h.finished.Add(1) }
	r := New(sess, eng, opts)
	go func() {
		defer close(h.done)
		r.Run(ctx)
	}()
	return h
}

func (h *harness) wait(t *testing.T) domain.SessionInfo {
	t.Helper()
	select {
	case <-h.done:
	case <-time.After(waitFor):
		t.Fatal("runner did not finish")
	}
	assert.Equal(t, int32(1), h.finished.Load())
	return h.sess.Info()
}

func (h *harness) eventuallyStep(t *testing.T, step int) {
	t.Helper()
	require.Eventually(t, func() bool { return h.sess.Info().CurrentStep == step }, waitFor, time.Millisecond)
}

func (h *harness) eventuallyStatus(t *testing.T, status domain.SessionStatus) {
	t.Helper()
	require.Eventually(t, func() bool { return h.sess.Status() == status }, waitFor, time.Millisecond)
}

// offer hands the engine one step token if a step is waiting for it. A
// control request may be consumed before the next step starts, in which case
// nobody takes the token.
func (h *harness) offer(eng *enginetest.Engine) bool {
	select {
	case eng.Gate <- struct{}{}:
		return true
	case <-h.done:
		return false
	case <-time.After(50 * time.Millisecond):
		return false
	}
}

// feed hands out step tokens until the runner exits.
func (h *harness) feed(eng *enginetest.Engine) {
	for {
		select {
		case eng.Gate <- struct{}{}:
		case <-h.done:
			return
		}
	}
}

func assertContiguous(t *testing.T, sess *session.Session) {
	t.Helper()
	for i, ev := range sess.Log().View(0) {
		assert.Equal(t, i+1, ev.Step)
	}
}

func TestNegotiationStepsToCompletion(t *testing.T) {
	eng := &enginetest.Engine{Steps: 5, Gate: make(chan struct{})}
	h := start(t, context.Background(), negotiation(5), eng, Options{})

	for i := 1; i <= 5; i++ {
		eng.Gate <- struct{}{}
		h.eventuallyStep(t, i)
	}

	info := h.wait(t)
	assert.Equal(t, domain.SessionStatusCompleted, info.Status)
	assert.Equal(t, 5, info.CurrentStep)
	require.NotNil(t, info.Result)
	assert.Equal(t, domain.EndReasonAgreement, info.Result.EndReason)
	assert.NotNil(t, info.StartedAt)
	assert.NotNil(t, info.EndedAt)
	assert.Empty(t, info.Error)
	assert.True(t, h.sess.Log().Frozen())
	assert.Equal(t, 1, eng.Closed())
	assertContiguous(t, h.sess)
}

func TestPauseResumeRoundTrip(t *testing.T) {
	eng := &enginetest.Engine{Steps: 5, Gate: make(chan struct{})}
	h := start(t, context.Background(), negotiation(5), eng, Options{})

	eng.Gate <- struct{}{}
	eng.Gate <- struct{}{}
	h.eventuallyStep(t, 2)

	require.NoError(t, h.sess.RequestPause())
	// a step already in flight finishes before the pause takes effect
	h.offer(eng)
	h.eventuallyStatus(t, domain.SessionStatusPaused)
	paused := h.sess.Info().CurrentStep
	assert.GreaterOrEqual(t, paused, 2)
	assert.LessOrEqual(t, paused, 3)

	assert.False(t, h.offer(eng))
	assert.Equal(t, paused, h.sess.Info().CurrentStep)
	assert.ErrorIs(t, h.sess.RequestPause(), domain.ErrInvalidTransition)

	require.NoError(t, h.sess.RequestResume())
	h.eventuallyStatus(t, domain.SessionStatusRunning)
	assert.Equal(t, paused, h.sess.Info().CurrentStep)

	h.feed(eng)
	info := h.wait(t)
	assert.Equal(t, domain.SessionStatusCompleted, info.Status)
	assert.Equal(t, 5, info.CurrentStep)
	assertContiguous(t, h.sess)
}

func TestCancelStopsWithinOneStep(t *testing.T) {
	eng := &enginetest.Engine{Gate: make(chan struct{})}
	h := start(t, context.Background(), negotiation(0), eng, Options{})

	eng.Gate <- struct{}{}
	eng.Gate <- struct{}{}
	h.eventuallyStep(t, 2)

	assert.Equal(t, domain.SessionStatusRunning, h.sess.RequestCancel())
	h.offer(eng)

	info := h.wait(t)
	assert.Equal(t, domain.SessionStatusCancelled, info.Status)
	assert.GreaterOrEqual(t, info.CurrentStep, 2)
	assert.LessOrEqual(t, info.CurrentStep, 3)
	assert.Nil(t, info.Result)
	assert.Empty(t, info.Error)

	assert.False(t, h.offer(eng), "engine stepped after cancellation")
	assert.Equal(t, info.CurrentStep, h.sess.Log().Len())
}

func TestCancelWhilePaused(t *testing.T) {
	eng := &enginetest.Engine{Gate: make(chan struct{})}
	h := start(t, context.Background(), negotiation(0), eng, Options{})

	eng.Gate <- struct{}{}
	h.eventuallyStep(t, 1)
	require.NoError(t, h.sess.RequestPause())
	h.offer(eng)
	h.eventuallyStatus(t, domain.SessionStatusPaused)
	paused := h.sess.Info().CurrentStep

	h.sess.RequestCancel()
	info := h.wait(t)
	assert.Equal(t, domain.SessionStatusCancelled, info.Status)
	assert.Equal(t, paused, info.CurrentStep)
}

func TestCancelBeforeStart(t *testing.T) {
	sess, err := session.New("ses_pending", negotiation(5), time.Now())
	require.NoError(t, err)
	sess.RequestCancel()

	eng := &enginetest.Engine{Steps: 5}
	New(sess, eng, Options{}).Run(context.Background())

	info := sess.Info()
	assert.Equal(t, domain.SessionStatusCancelled, info.Status)
	assert.Nil(t, info.StartedAt)
	assert.NotNil(t, info.EndedAt)
	assert.Zero(t, info.CurrentStep)
	assert.Zero(t, eng.Opened())
}

func TestShutdownContextCancels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	eng := &enginetest.Engine{Gate: make(chan struct{})}
	h := start(t, ctx, negotiation(0), eng, Options{})

	eng.Gate <- struct{}{}
	h.eventuallyStep(t, 1)
	cancel()

	info := h.wait(t)
	assert.Equal(t, domain.SessionStatusCancelled, info.Status)
	assert.Equal(t, 1, info.CurrentStep)
}

func TestEngineFailures(t *testing.T) {
	tests := []struct {
		name     string
		eng      *enginetest.Engine
		steps    int
		contains string
	}{
		{"step error", &enginetest.Engine{Steps: 5, FailAt: 3}, 2, enginetest.ErrScripted.Error()},
		{"step panic", &enginetest.Engine{Steps: 5, PanicAt: 2}, 1, "panic"},
		{"open error", &enginetest.Engine{OpenErr: errors.New("no such scenario")}, 0, "no such scenario"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := start(t, context.Background(), negotiation(5), tt.eng, Options{})
			info := h.wait(t)
			assert.Equal(t, domain.SessionStatusFailed, info.Status)
			assert.Contains(t, info.Error, tt.contains)
			assert.Equal(t, tt.steps, info.CurrentStep)
			assert.Nil(t, info.Result)
			assert.NotNil(t, info.EndedAt)
		})
	}
}

func TestHardTimeoutWhilePaused(t *testing.T) {
	eng := &enginetest.Engine{Gate: make(chan struct{})}
	h := start(t, context.Background(), negotiation(0), eng, Options{MaxDuration: 300 * time.Millisecond})

	eng.Gate <- struct{}{}
	h.eventuallyStep(t, 1)
	require.NoError(t, h.sess.RequestPause())
	h.offer(eng)
	h.eventuallyStatus(t, domain.SessionStatusPaused)
	paused := h.sess.Info().CurrentStep

	info := h.wait(t)
	assert.Equal(t, domain.SessionStatusFailed, info.Status)
	assert.Contains(t, info.Error, "timeout")
	assert.Equal(t, paused, info.CurrentStep)
}

func TestConfigMaxDurationOverridesDefault(t *testing.T) {
	cfg := negotiation(0)
	cfg.MaxDurationMs = 30
	eng := &enginetest.Engine{Gate: make(chan struct{})}
	h := start(t, context.Background(), cfg, eng, Options{MaxDuration: time.Hour})

	h.offer(eng)
	time.Sleep(50 * time.Millisecond)
	h.offer(eng)

	info := h.wait(t)
	assert.Equal(t, domain.SessionStatusFailed, info.Status)
	assert.Contains(t, info.Error, "timeout")
}

func TestOnAppendSeesEveryEvent(t *testing.T) {
	sess, err := session.New("ses_append", negotiation(4), time.Now())
	require.NoError(t, err)

	var steps []int
	New(sess, &enginetest.Engine{Steps: 4}, Options{
		OnAppend: func(_ *session.Session, ev domain.Event) { steps = append(steps, ev.Step) },
	}).Run(context.Background())

	assert.Equal(t, []int{1, 2, 3, 4}, steps)
	for _, ev := range sess.Log().View(0) {
		assert.NotZero(t, ev.Ts)
	}
}

func tournamentConfig(competitors, opponents []string, scenarios []string, reps, parallelism int) domain.SessionConfig {
	spec := &domain.TournamentSpec{Repetitions: reps, Parallelism: parallelism}
	for _, n := range competitors {
		spec.Competitors = append(spec.Competitors, domain.ParticipantSpec{Name: n, Strategy: "linear"})
	}
	for _, n := range opponents {
		spec.Opponents = append(spec.Opponents, domain.ParticipantSpec{Name: n, Strategy: "linear"})
	}
	for _, n := range scenarios {
		spec.Scenarios = append(spec.Scenarios, domain.ScenarioRef{Name: n, Issues: 2})
	}
	return domain.SessionConfig{
		Kind:       domain.SessionKindTournament,
		Mechanism:  domain.MechanismParams{NSteps: 1},
		Tournament: spec,
	}
}

func TestTournamentSingleCell(t *testing.T) {
	cfg := tournamentConfig([]string{"A", "B"}, []string{"B"}, []string{"s1"}, 3, 2)
	h := start(t, context.Background(), cfg, &enginetest.Engine{Steps: 1}, Options{})

	info := h.wait(t)
	require.Equal(t, domain.SessionStatusCompleted, info.Status)
	assert.Equal(t, 3, info.CurrentStep)
	require.NotNil(t, info.TotalSteps)
	assert.Equal(t, 3, *info.TotalSteps)

	cells := h.sess.Aggregator().Cells()
	require.Len(t, cells, 1)
	assert.Equal(t, "A::B::s1", cells[0].Key)
	assert.Equal(t, 3, cells[0].Total)
	assert.Equal(t, 3, cells[0].Completed)
	assert.Equal(t, 3, cells[0].Agreements)
	assert.Zero(t, cells[0].RunningCount)
	assert.Equal(t, domain.CellStatusComplete, cells[0].Status)

	events := h.sess.Log().View(0)
	for _, ev := range events {
		assert.Equal(t, domain.EventKindCellCompleted, ev.Kind)
		require.NotNil(t, ev.Completion)
		assert.Equal(t, "A::B::s1", ev.Completion.Cell)
	}
	assert.InDelta(t, 1.0, events[len(events)-1].RelativeTime, 1e-9)
	assertContiguous(t, h.sess)

	require.NotNil(t, info.Result)
	assert.Equal(t, domain.EndReasonTournament, info.Result.EndReason)
	assert.Equal(t, 3, info.Result.SubRuns)
	require.Len(t, info.Result.Leaderboard, 2)
	assert.Equal(t, "A", info.Result.Leaderboard[0].Participant)
	assert.Equal(t, 3, info.Result.Leaderboard[0].Runs)
}

func TestTournamentErroredRunsMarkCell(t *testing.T) {
	eng := &enginetest.Engine{
		Steps: 1,
		ResultFor: func(scenario domain.ScenarioRef, _ []domain.ParticipantSpec) (*domain.Result, error) {
			if scenario.Name == "bad" {
				return nil, errors.New("scenario cannot be loaded")
			}
			return &domain.Result{EndReason: domain.EndReasonAgreement, Utilities: []float64{0.8, 0.4}}, nil
		},
	}
	cfg := tournamentConfig([]string{"A", "B"}, []string{"B"}, []string{"ok", "bad"}, 2, 4)
	h := start(t, context.Background(), cfg, eng, Options{})

	info := h.wait(t)
	require.Equal(t, domain.SessionStatusCompleted, info.Status)
	assert.Equal(t, 4, info.CurrentStep)

	cells := h.sess.Aggregator().Cells()
	require.Len(t, cells, 2)
	assert.Equal(t, domain.CellStatusComplete, cells[0].Status)
	assert.Equal(t, domain.CellStatusError, cells[1].Status)
	assert.Equal(t, 2, cells[1].Errors)

	for _, ev := range h.sess.Log().View(0) {
		if ev.Completion.Scenario == 1 {
			assert.Equal(t, domain.OutcomeError, ev.Completion.Outcome)
			assert.Contains(t, ev.Completion.Error, "cannot be loaded")
		}
	}

	board := info.Result.Leaderboard
	require.Len(t, board, 2)
	assert.Equal(t, "A", board[0].Participant)
	assert.InDelta(t, 0.8, board[0].Score, 1e-9)
	assert.Equal(t, 2, board[0].Runs)
}

func TestTournamentPauseHoldsCompletions(t *testing.T) {
	eng := &enginetest.Engine{Steps: 1, Gate: make(chan struct{})}
	cfg := tournamentConfig([]string{"A", "B"}, nil, []string{"s1"}, 3, 1)
	h := start(t, context.Background(), cfg, eng, Options{})

	eng.Gate <- struct{}{}
	h.eventuallyStep(t, 1)

	require.NoError(t, h.sess.RequestPause())
	h.eventuallyStatus(t, domain.SessionStatusPaused)

	// an in-flight sub-run may finish but is not recorded while paused
	h.offer(eng)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, h.sess.Info().CurrentStep)

	require.NoError(t, h.sess.RequestResume())
	h.feed(eng)
	info := h.wait(t)
	assert.Equal(t, domain.SessionStatusCompleted, info.Status)
	assert.Equal(t, 6, info.CurrentStep)

	cells := h.sess.Aggregator().Cells()
	require.Len(t, cells, 1)
	assert.Equal(t, 6, cells[0].Completed)
	assert.Equal(t, domain.CellStatusComplete, cells[0].Status)
}

func TestTournamentCancelStopsDispatch(t *testing.T) {
	eng := &enginetest.Engine{Steps: 1, Gate: make(chan struct{})}
	cfg := tournamentConfig([]string{"A", "B", "C"}, nil, []string{"s1"}, 2, 2)
	h := start(t, context.Background(), cfg, eng, Options{})

	eng.Gate <- struct{}{}
	h.eventuallyStep(t, 1)

	h.sess.RequestCancel()
	info := h.wait(t)
	assert.Equal(t, domain.SessionStatusCancelled, info.Status)
	assert.Equal(t, 1, info.CurrentStep)
	assert.Nil(t, info.Result)
	assert.Equal(t, eng.Opened(), eng.Closed())
}
