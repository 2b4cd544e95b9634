package swarm

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/generativebots/swarm/internal/core"
)

const scenarioYAML = `
id: facade-smoke
seed: 42
n_epochs: 2
steps_per_epoch: 4
scheduling_mode: round_robin
agents:
  - archetype: honest
    count: 3
payoff:
  s_plus: 1.0
  s_minus: 0.5
  h: 0.2
  theta: 0.5
  w_rep: 0.1
  rho_a: 0.1
  rho_b: 0.1
governance:
  reputation_decay: 0.2
  initial_reputation: 0.5
tasks_per_epoch: 1
`

func TestParseAndRun(t *testing.T) {
	cfg, err := ParseScenario([]byte(scenarioYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	result, err := Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(result.Metrics) != 2 {
		t.Fatalf("expected 2 epochs of metrics, got %d", len(result.Metrics))
	}
	if result.Manifest.FinalStatus != core.RunCompleted {
		t.Fatalf("expected a completed run, got %s", result.Manifest.FinalStatus)
	}
	if len(result.Events) == 0 {
		t.Fatalf("expected a non-empty event log")
	}
}

func TestRunToDirPersists(t *testing.T) {
	cfg, err := ParseScenario([]byte(scenarioYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	dir := filepath.Join(t.TempDir(), "run")
	if _, err := RunToDir(context.Background(), cfg, dir); err != nil {
		t.Fatalf("run to dir: %v", err)
	}
	for _, name := range []string{"events.jsonl", "metrics.csv", "manifest.json"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("missing artifact %s: %v", name, err)
		}
	}
}

func TestRunsAreReproducible(t *testing.T) {
	cfg, err := ParseScenario([]byte(scenarioYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	a, err := Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	b, err := Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(a.Events) != len(b.Events) {
		t.Fatalf("event counts diverged: %d vs %d", len(a.Events), len(b.Events))
	}
	for i := range a.Events {
		if a.Events[i].Type != b.Events[i].Type || a.Events[i].Seq != b.Events[i].Seq {
			t.Fatalf("event streams diverged at %d", i)
		}
	}
	for i := range a.Metrics {
		if a.Metrics[i] != b.Metrics[i] {
			t.Fatalf("metrics diverged at epoch %d", i)
		}
	}
}
