package main

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xiaot623/negarena/internal/config"
	"github.com/xiaot623/negarena/internal/domain"
	"github.com/xiaot623/negarena/internal/engine/enginetest"
	"github.com/xiaot623/negarena/internal/metrics"
	"github.com/xiaot623/negarena/internal/service"
	handler "github.com/xiaot623/negarena/internal/transport/http"
	"github.com/xiaot623/negarena/policy"
	"github.com/xiaot623/negarena/tests/helpers"
)

const negotiationYAML = `kind: negotiation
name: cli-demo
scenario:
  name: laptop
  issues: 2
participants:
  - name: buyer
    strategy: boulware
  - name: seller
    strategy: conceder
mechanism:
  n_steps: 4
`

const tournamentYAML = `kind: tournament
mechanism:
  n_steps: 1
tournament:
  competitors:
    - name: A
    - name: B
  opponents:
    - name: B
  scenarios:
    - name: s1
      issues: 1
  repetitions: 2
`

func newTestServer(t *testing.T) string {
	t.Helper()
	policyEngine, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	m := metrics.New()
	svc := service.New(&enginetest.Engine{Steps: 4}, helpers.NewTestSQLiteStore(t), &config.Config{}, policyEngine, m)
	srv := httptest.NewServer(handler.NewServer(svc, m, 50*time.Millisecond))
	t.Cleanup(func() {
		srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = svc.Shutdown(ctx)
	})
	return srv.URL
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func run(t *testing.T, server string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out strings.Builder
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--server", server}, args...))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestLoadSessionConfig(t *testing.T) {
	cfg, err := loadSessionConfig(writeConfig(t, tournamentYAML))
	if err != nil {
		t.Fatalf("loadSessionConfig: %v", err)
	}
	if cfg.Kind != domain.SessionKindTournament {
		t.Fatalf("expected tournament, got %q", cfg.Kind)
	}
	if cfg.Tournament == nil || len(cfg.Tournament.Competitors) != 2 || cfg.Tournament.Repetitions != 2 {
		t.Fatalf("unexpected tournament block: %+v", cfg.Tournament)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	if _, err := loadSessionConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestStartAndWatch(t *testing.T) {
	server := newTestServer(t)
	path := writeConfig(t, negotiationYAML)

	for _, stream := range []bool{false, true} {
		args := []string{"start", "-f", path, "--watch"}
		if stream {
			args = append(args, "--stream")
		}
		out, err := run(t, server, args...)
		if err != nil {
			t.Fatalf("start (stream=%v): %v\n%s", stream, err, out)
		}
		if !strings.Contains(out, "Started negotiation ses_") {
			t.Errorf("expected start confirmation, got: %s", out)
		}
		if !strings.Contains(out, "finished: COMPLETED") {
			t.Errorf("expected final status, got: %s", out)
		}
		if !strings.Contains(out, "[4] offer") {
			t.Errorf("expected the last offer to be printed, got: %s", out)
		}
	}
}

func TestTournamentWatchPrintsTables(t *testing.T) {
	server := newTestServer(t)
	out, err := run(t, server, "start", "-f", writeConfig(t, tournamentYAML), "--watch")
	if err != nil {
		t.Fatalf("start: %v\n%s", err, out)
	}
	if !strings.Contains(out, "A::B::s1") {
		t.Errorf("expected the cell table, got: %s", out)
	}
	if !strings.Contains(out, "PARTICIPANT") {
		t.Errorf("expected the leaderboard, got: %s", out)
	}
}

func TestGetAndListJSON(t *testing.T) {
	server := newTestServer(t)
	out, err := run(t, server, "-o", "json", "start", "-f", writeConfig(t, negotiationYAML))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	var started domain.StartSessionResponse
	if err := json.Unmarshal([]byte(out), &started); err != nil {
		t.Fatalf("decode start output: %v\n%s", err, out)
	}

	out, err = run(t, server, "-o", "json", "get", started.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var snap domain.Snapshot
	if err := json.Unmarshal([]byte(out), &snap); err != nil {
		t.Fatalf("decode get output: %v\n%s", err, out)
	}
	if snap.ID != started.ID {
		t.Errorf("expected snapshot of %s, got %s", started.ID, snap.ID)
	}

	out, err = run(t, server, "list", "--kind", "negotiation")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, started.ID) {
		t.Errorf("expected %s in listing, got: %s", started.ID, out)
	}
}

func TestCommandErrors(t *testing.T) {
	server := newTestServer(t)

	if _, err := run(t, server, "pause", "ses_missing"); err == nil || !strings.Contains(err.Error(), "404") {
		t.Errorf("expected 404 error, got %v", err)
	}
	if _, err := run(t, server, "-o", "yaml", "list"); err == nil {
		t.Errorf("expected error for unknown output format")
	}
	if _, err := run(t, server, "start"); err == nil {
		t.Errorf("expected error when --file is missing")
	}
	if _, err := run(t, server, "get"); err == nil {
		t.Errorf("expected error when id is missing")
	}
}
