package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, time.Hour, cfg.SessionMaxDuration)
	assert.Equal(t, 15*time.Minute, cfg.SessionRetention)
	assert.Equal(t, 4, cfg.TournamentParallelism)
	assert.False(t, cfg.StrictInvariants)
	assert.Empty(t, cfg.PolicyFile)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("SESSION_MAX_DURATION_MS", "2500")
	t.Setenv("MAX_ACTIVE_SESSIONS", "3")
	t.Setenv("STRICT_INVARIANTS", "true")
	t.Setenv("STREAM_PING_MS", "100")
	t.Setenv("TOURNAMENT_PARALLELISM", "not-a-number")

	cfg := Load()
	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.Equal(t, 2500*time.Millisecond, cfg.SessionMaxDuration)
	assert.Equal(t, 3, cfg.MaxActiveSessions)
	assert.True(t, cfg.StrictInvariants)
	assert.Equal(t, 100*time.Millisecond, cfg.StreamPing)
	assert.Equal(t, 4, cfg.TournamentParallelism)
}
