package syncclient

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xiaot623/negarena/internal/config"
	"github.com/xiaot623/negarena/internal/domain"
	"github.com/xiaot623/negarena/internal/engine/enginetest"
	"github.com/xiaot623/negarena/internal/metrics"
	"github.com/xiaot623/negarena/internal/service"
	handler "github.com/xiaot623/negarena/internal/transport/http"
	"github.com/xiaot623/negarena/policy"
	"github.com/xiaot623/negarena/tests/helpers"
)

func newTestServer(t *testing.T, eng *enginetest.Engine) *Client {
	t.Helper()
	policyEngine, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	require.NoError(t, err)
	m := metrics.New()
	svc := service.New(eng, helpers.NewTestSQLiteStore(t), &config.Config{}, policyEngine, m)

	srv := httptest.NewServer(handler.NewServer(svc, m, 50*time.Millisecond))
	t.Cleanup(func() {
		srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = svc.Shutdown(ctx)
	})
	return NewClient(srv.URL)
}

func negotiation(nSteps int) SessionConfig {
	return SessionConfig{
		Kind:     domain.SessionKindNegotiation,
		Name:     "sync",
		Scenario: domain.ScenarioRef{Name: "s", Issues: 1},
		Participants: []domain.ParticipantSpec{
			{Name: "a", Strategy: "linear"},
			{Name: "b", Strategy: "linear"},
		},
		Mechanism: domain.MechanismParams{NSteps: nSteps},
	}
}

func tournament() SessionConfig {
	return SessionConfig{
		Kind:      domain.SessionKindTournament,
		Mechanism: domain.MechanismParams{NSteps: 1},
		Tournament: &domain.TournamentSpec{
			Competitors: []domain.ParticipantSpec{{Name: "A"}, {Name: "B"}},
			Opponents:   []domain.ParticipantSpec{{Name: "B"}},
			Scenarios:   []domain.ScenarioRef{{Name: "s1", Issues: 1}},
			Repetitions: 3,
		},
	}
}

func requireContiguous(t *testing.T, events []Event) {
	t.Helper()
	for i, ev := range events {
		require.Equal(t, i+1, ev.Step, "event %d out of order", i)
	}
}
