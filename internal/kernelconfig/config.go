// Package kernelconfig defines the YAML wire shape of a scenario and the
// numeric-range validation the kernel performs on entry. The full scenario loader is an external collaborator;
// this package exists so the loader and the kernel agree on field names,
// and so tests can load fixture scenarios from testdata.
//
// Unknown fields are rejected at parse time rather than silently skipped,
// so a typoed knob fails loudly instead of running with a default.
package kernelconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/generativebots/swarm/internal/core"
)

// ScenarioFile is the on-disk YAML shape of a scenario.
type ScenarioFile struct {
	ID             string            `yaml:"id"`
	Seed           int64             `yaml:"seed"`
	NEpochs        int               `yaml:"n_epochs"`
	StepsPerEpoch  int               `yaml:"steps_per_epoch"`
	SchedulingMode string            `yaml:"scheduling_mode"`
	Agents         []AgentSpecFile   `yaml:"agents"`
	Payoff         PayoffFile        `yaml:"payoff"`
	Governance     GovernanceFile    `yaml:"governance"`
	RateLimits     []RateLimitFile   `yaml:"rate_limits"`
	ProxyWeights   *ProxyWeightsFile `yaml:"proxy_weights"`
	SigmoidK       float64           `yaml:"sigmoid_k"`
	TasksPerEpoch  int               `yaml:"tasks_per_epoch"`
	TaskReward     float64           `yaml:"task_reward"`

	HonestErrorBound float64 `yaml:"honest_error_bound"`
}

type AgentSpecFile struct {
	Archetype string                 `yaml:"archetype"`
	Count     int                    `yaml:"count"`
	Params    map[string]interface{} `yaml:"params"`
}

type PayoffFile struct {
	SPlus  float64 `yaml:"s_plus"`
	SMinus float64 `yaml:"s_minus"`
	H      float64 `yaml:"h"`
	Theta  float64 `yaml:"theta"`
	Tau    float64 `yaml:"tau"`
	WRep   float64 `yaml:"w_rep"`
	RhoA   float64 `yaml:"rho_a"`
	RhoB   float64 `yaml:"rho_b"`
}

type GovernanceFile struct {
	TaxRate                       float64 `yaml:"tax_rate"`
	ReputationDecay               float64 `yaml:"reputation_decay"`
	InitialReputation             float64 `yaml:"initial_reputation"`
	AuditProbability              float64 `yaml:"audit_probability"`
	AuditPenalty                  float64 `yaml:"audit_penalty"`
	CircuitBreakerThreshold       float64 `yaml:"circuit_breaker_threshold"`
	CircuitBreakerWindow          int     `yaml:"circuit_breaker_window"`
	CircuitBreakerCooldown        int     `yaml:"circuit_breaker_cooldown"`
	StakingRequirement            float64 `yaml:"staking_requirement"`
	StakeSlashRate                float64 `yaml:"stake_slash_rate"`
	CollusionEnabled              bool    `yaml:"collusion_enabled"`
	CollusionWindow               int     `yaml:"collusion_window"`
	CollusionCorrelationThreshold float64 `yaml:"collusion_correlation_threshold"`
}

type RateLimitFile struct {
	Archetype     string `yaml:"archetype"`
	Action        string `yaml:"action"`
	MaxPerEpoch   int    `yaml:"max_per_epoch"`
	BurstPerEpoch int    `yaml:"burst_per_epoch"`
}

type ProxyWeightsFile struct {
	Progress   float64 `yaml:"progress"`
	Rework     float64 `yaml:"rework"`
	Rejections float64 `yaml:"rejections"`
	Engagement float64 `yaml:"engagement"`
}

// Load reads and parses a scenario file, applies defaults, converts to
// the kernel's core.ScenarioConfig, and validates it.
func Load(path string) (core.ScenarioConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return core.ScenarioConfig{}, fmt.Errorf("read scenario %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses scenario YAML. Unknown fields are a ConfigError, not a
// silent skip.
func Parse(data []byte) (core.ScenarioConfig, error) {
	var f ScenarioFile
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return core.ScenarioConfig{}, &core.ConfigError{Field: "scenario", Reason: err.Error()}
	}
	cfg := f.ToCore()
	if err := Validate(cfg); err != nil {
		return core.ScenarioConfig{}, err
	}
	return cfg, nil
}

// ToCore converts the wire shape to the kernel's config struct, applying
// the documented defaults for omitted optional sections.
func (f ScenarioFile) ToCore() core.ScenarioConfig {
	cfg := core.ScenarioConfig{
		ID:               f.ID,
		Seed:             f.Seed,
		NEpochs:          f.NEpochs,
		StepsPerEpoch:    f.StepsPerEpoch,
		SchedulingMode:   core.SchedulingMode(f.SchedulingMode),
		Payoff:           core.PayoffConfig(f.Payoff),
		Governance:       core.GovernanceConfig(f.Governance),
		SigmoidK:         f.SigmoidK,
		TasksPerEpoch:    f.TasksPerEpoch,
		TaskReward:       f.TaskReward,
		HonestErrorBound: f.HonestErrorBound,
	}
	for _, a := range f.Agents {
		cfg.Agents = append(cfg.Agents, core.AgentSpec{
			Archetype: core.Archetype(a.Archetype),
			Count:     a.Count,
			Params:    a.Params,
		})
	}
	for _, rl := range f.RateLimits {
		cfg.RateLimits = append(cfg.RateLimits, core.RateLimitSpec{
			Archetype:     core.Archetype(rl.Archetype),
			Action:        core.ActionKind(rl.Action),
			MaxPerEpoch:   rl.MaxPerEpoch,
			BurstPerEpoch: rl.BurstPerEpoch,
		})
	}
	if f.ProxyWeights != nil {
		cfg.ProxyWeights = core.ProxyWeights(*f.ProxyWeights)
	}
	ApplyDefaults(&cfg)
	return cfg
}

// ApplyDefaults fills the documented default for every omitted optional
// knob: sigmoid k=3.0, proxy weights 0.4/0.2/0.2/0.2, round-robin
// scheduling, honest error bound 0.1.
func ApplyDefaults(cfg *core.ScenarioConfig) {
	if cfg.SigmoidK == 0 {
		cfg.SigmoidK = 3.0
	}
	zero := core.ProxyWeights{}
	if cfg.ProxyWeights == zero {
		cfg.ProxyWeights = core.DefaultProxyWeights()
	}
	if cfg.SchedulingMode == "" {
		cfg.SchedulingMode = core.SchedulingRoundRobin
	}
	if cfg.HonestErrorBound == 0 {
		cfg.HonestErrorBound = 0.1
	}
	if cfg.TaskReward == 0 {
		cfg.TaskReward = 1.0
	}
}
