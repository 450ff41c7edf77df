package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()
	m.SetActive(2)

	m.SessionStarted("negotiation")
	m.SessionStarted("negotiation")
	m.SessionFinished("negotiation", "COMPLETED")
	m.EventAppended("offer")
	m.SnapshotServed(SourcePoll)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.sessionsStarted.WithLabelValues("negotiation")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessionsFinished.WithLabelValues("negotiation", "COMPLETED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.eventsAppended.WithLabelValues("offer")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.snapshots.WithLabelValues(SourcePoll)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.active))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.SetActive(3)
	m.SessionStarted("tournament")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `negarena_sessions_started_total{kind="tournament"} 1`)
	assert.Contains(t, string(body), "negarena_active_sessions 3")
}
