package syncclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/negarena/internal/domain"
	"github.com/xiaot623/negarena/internal/engine/enginetest"
)

// feedGate releases gated engine steps every interval until the test ends.
func feedGate(t *testing.T, eng *enginetest.Engine, interval time.Duration) {
	t.Helper()
	done := make(chan struct{})
	t.Cleanup(func() { close(done) })
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				select {
				case eng.Gate <- struct{}{}:
				case <-done:
					return
				default:
				}
			}
		}
	}()
}

func waitForStatus(t *testing.T, c *Client, id string, want domain.SessionStatus) *Snapshot {
	t.Helper()
	var snap *Snapshot
	require.Eventually(t, func() bool {
		var err error
		snap, err = c.Get(context.Background(), id, 0)
		return err == nil && snap.Status == want
	}, 3*time.Second, 10*time.Millisecond, "session %s never reached %s", id, want)
	return snap
}

func TestClientLifecycle(t *testing.T) {
	ctx := context.Background()
	c := newTestServer(t, &enginetest.Engine{Steps: 5})

	resp, err := c.Start(ctx, negotiation(5))
	require.NoError(t, err)
	require.NotEmpty(t, resp.ID)
	assert.Equal(t, domain.SessionKindNegotiation, resp.Kind)

	snap := waitForStatus(t, c, resp.ID, domain.SessionStatusCompleted)
	assert.True(t, snap.Final)
	assert.Equal(t, 5, snap.CurrentStep)
	requireContiguous(t, snap.Events)

	delta, err := c.Get(ctx, resp.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, delta.SinceStep)
	require.Len(t, delta.Events, 2)
	assert.Equal(t, 4, delta.Events[0].Step)

	sessions, err := c.List(ctx, SessionFilter{Kind: domain.SessionKindNegotiation})
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, resp.ID, sessions[0].ID)

	require.Eventually(t, func() bool {
		_, err := c.Archived(ctx, resp.ID)
		return err == nil
	}, 3*time.Second, 10*time.Millisecond)
	archived, err := c.ListArchived(ctx, 10)
	require.NoError(t, err)
	require.Len(t, archived, 1)

	require.NoError(t, c.Delete(ctx, resp.ID))
	_, err = c.Get(ctx, resp.ID, 0)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	fromArchive, err := c.Archived(ctx, resp.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusCompleted, fromArchive.Status)
	assert.Len(t, fromArchive.Events, 0)
}

func TestClientControl(t *testing.T) {
	ctx := context.Background()
	eng := &enginetest.Engine{Gate: make(chan struct{})}
	c := newTestServer(t, eng)

	resp, err := c.Start(ctx, negotiation(1000))
	require.NoError(t, err)
	waitForStatus(t, c, resp.ID, domain.SessionStatusRunning)
	feedGate(t, eng, 2*time.Millisecond)

	ack, err := c.Pause(ctx, resp.ID)
	require.NoError(t, err)
	assert.True(t, ack.OK)
	paused := waitForStatus(t, c, resp.ID, domain.SessionStatusPaused)

	time.Sleep(30 * time.Millisecond)
	still, err := c.Get(ctx, resp.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, paused.CurrentStep, still.CurrentStep)

	_, err = c.Pause(ctx, resp.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = c.Resume(ctx, resp.ID)
	require.NoError(t, err)
	waitForStatus(t, c, resp.ID, domain.SessionStatusRunning)

	err = c.Delete(ctx, resp.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = c.Cancel(ctx, resp.ID)
	require.NoError(t, err)
	final := waitForStatus(t, c, resp.ID, domain.SessionStatusCancelled)
	assert.True(t, final.Final)

	ack, err = c.Cancel(ctx, resp.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusCancelled, ack.Status)
}

func TestClientErrors(t *testing.T) {
	ctx := context.Background()
	c := newTestServer(t, &enginetest.Engine{Steps: 1})

	_, err := c.Get(ctx, "ses_missing", 0)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 404, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "session not found")

	cfg := negotiation(0)
	_, err = c.Start(ctx, cfg)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)

	_, err = c.Pause(ctx, "ses_missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}
