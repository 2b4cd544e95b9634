package kernelconfig

import (
	"path/filepath"
	"testing"

	"github.com/generativebots/swarm/internal/core"
)

func TestLoadFixture(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "baseline.yaml"))
	if err != nil {
		t.Fatalf("load fixture: %v", err)
	}
	if cfg.ID != "baseline-deterministic" || cfg.Seed != 42 {
		t.Fatalf("identity fields mismatch: %+v", cfg)
	}
	if cfg.NEpochs != 3 || cfg.StepsPerEpoch != 5 {
		t.Fatalf("loop bounds mismatch: %+v", cfg)
	}
	if len(cfg.Agents) != 1 || cfg.Agents[0].Archetype != core.ArchetypeHonest || cfg.Agents[0].Count != 3 {
		t.Fatalf("agents mismatch: %+v", cfg.Agents)
	}
	if cfg.Payoff.SPlus != 1.0 || cfg.Payoff.Theta != 0.5 {
		t.Fatalf("payoff mismatch: %+v", cfg.Payoff)
	}
	if cfg.Governance.ReputationDecay != 0.2 {
		t.Fatalf("governance mismatch: %+v", cfg.Governance)
	}
	if len(cfg.RateLimits) != 1 || cfg.RateLimits[0].Action != core.ActionPost || cfg.RateLimits[0].BurstPerEpoch != 8 {
		t.Fatalf("rate limits mismatch: %+v", cfg.RateLimits)
	}
	// Omitted optional knobs pick up their defaults.
	if cfg.SigmoidK != 3.0 {
		t.Fatalf("sigmoid_k default not applied: %v", cfg.SigmoidK)
	}
	if cfg.ProxyWeights != core.DefaultProxyWeights() {
		t.Fatalf("proxy weight defaults not applied: %+v", cfg.ProxyWeights)
	}
}

func TestParseRejectsUnknownField(t *testing.T) {
	_, err := Parse([]byte("id: x\nn_epochs: 1\nsteps_per_epoch: 1\nturbo_mode: true\n"))
	if err == nil {
		t.Fatalf("unknown field must be rejected")
	}
	if _, ok := err.(*core.ConfigError); !ok {
		t.Fatalf("expected *core.ConfigError, got %T", err)
	}
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	if _, err := Parse([]byte("id: [unclosed")); err == nil {
		t.Fatalf("malformed yaml must be rejected")
	}
}

func validConfig() core.ScenarioConfig {
	cfg := core.ScenarioConfig{
		ID:            "v",
		NEpochs:       1,
		StepsPerEpoch: 1,
		Agents:        []core.AgentSpec{{Archetype: core.ArchetypeHonest, Count: 2}},
	}
	ApplyDefaults(&cfg)
	return cfg
}

func TestValidateAcceptsDefaults(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*core.ScenarioConfig)
	}{
		{"empty id", func(c *core.ScenarioConfig) { c.ID = "" }},
		{"negative epochs", func(c *core.ScenarioConfig) { c.NEpochs = -1 }},
		{"negative steps", func(c *core.ScenarioConfig) { c.StepsPerEpoch = -1 }},
		{"unknown scheduling mode", func(c *core.ScenarioConfig) { c.SchedulingMode = "chaotic" }},
		{"unknown archetype", func(c *core.ScenarioConfig) { c.Agents[0].Archetype = "saboteur" }},
		{"negative count", func(c *core.ScenarioConfig) { c.Agents[0].Count = -1 }},
		{"theta above one", func(c *core.ScenarioConfig) { c.Payoff.Theta = 1.5 }},
		{"tax above one", func(c *core.ScenarioConfig) { c.Governance.TaxRate = 1.5 }},
		{"audit probability negative", func(c *core.ScenarioConfig) { c.Governance.AuditProbability = -0.1 }},
		{"decay at one", func(c *core.ScenarioConfig) { c.Governance.ReputationDecay = 1.0 }},
		{"negative staking requirement", func(c *core.ScenarioConfig) { c.Governance.StakingRequirement = -1 }},
		{"slash above one", func(c *core.ScenarioConfig) { c.Governance.StakeSlashRate = 2 }},
		{"correlation out of range", func(c *core.ScenarioConfig) { c.Governance.CollusionCorrelationThreshold = 1.5 }},
		{"zero sigmoid k", func(c *core.ScenarioConfig) { c.SigmoidK = 0 }},
		{"negative tasks per epoch", func(c *core.ScenarioConfig) { c.TasksPerEpoch = -1 }},
		{"rate limit unknown archetype", func(c *core.ScenarioConfig) {
			c.RateLimits = []core.RateLimitSpec{{Archetype: "saboteur", Action: core.ActionPost, MaxPerEpoch: 1}}
		}},
	}
	for _, tc := range cases {
		cfg := validConfig()
		tc.mutate(&cfg)
		if err := Validate(cfg); err == nil {
			t.Errorf("%s: expected rejection", tc.name)
		} else if _, ok := err.(*core.ConfigError); !ok {
			t.Errorf("%s: expected *core.ConfigError, got %T", tc.name, err)
		}
	}
}

func TestZeroEpochsAndStepsAreValid(t *testing.T) {
	cfg := validConfig()
	cfg.NEpochs = 0
	cfg.StepsPerEpoch = 0
	if err := Validate(cfg); err != nil {
		t.Fatalf("zero-length runs are legal boundary cases: %v", err)
	}
}
