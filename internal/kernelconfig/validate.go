package kernelconfig

import (
	"math"
	"strconv"

	"github.com/generativebots/swarm/internal/core"
)

var knownArchetypes = map[core.Archetype]bool{
	core.ArchetypeHonest:        true,
	core.ArchetypeOpportunistic: true,
	core.ArchetypeDeceptive:     true,
	core.ArchetypeAdversarial:   true,
	core.ArchetypeExternal:      true,
}

var knownSchedulingModes = map[core.SchedulingMode]bool{
	core.SchedulingRoundRobin: true,
	core.SchedulingRandom:     true,
	core.SchedulingPriority:   true,
}

// Validate enforces the numeric-range contract the kernel owns on entry:
// every violation is a *core.ConfigError naming the field.
func Validate(cfg core.ScenarioConfig) error {
	if cfg.ID == "" {
		return &core.ConfigError{Field: "id", Reason: "must be non-empty"}
	}
	if cfg.NEpochs < 0 {
		return &core.ConfigError{Field: "n_epochs", Reason: "must be >= 0"}
	}
	if cfg.StepsPerEpoch < 0 {
		return &core.ConfigError{Field: "steps_per_epoch", Reason: "must be >= 0"}
	}
	if !knownSchedulingModes[cfg.SchedulingMode] {
		return &core.ConfigError{Field: "scheduling_mode", Reason: "unknown mode " + string(cfg.SchedulingMode)}
	}
	for i, a := range cfg.Agents {
		if !knownArchetypes[a.Archetype] {
			return &core.ConfigError{Field: "agents", Reason: "unknown archetype " + string(a.Archetype)}
		}
		if a.Count < 0 {
			return &core.ConfigError{Field: "agents", Reason: "negative count at index " + strconv.Itoa(i)}
		}
	}

	p := cfg.Payoff
	if p.Theta < 0 || p.Theta > 1 || math.IsNaN(p.Theta) {
		return &core.ConfigError{Field: "payoff.theta", Reason: "must be in [0,1]"}
	}
	for _, pair := range []struct {
		name string
		v    float64
	}{
		{"payoff.s_plus", p.SPlus}, {"payoff.s_minus", p.SMinus}, {"payoff.h", p.H},
		{"payoff.tau", p.Tau}, {"payoff.w_rep", p.WRep}, {"payoff.rho_a", p.RhoA}, {"payoff.rho_b", p.RhoB},
	} {
		if math.IsNaN(pair.v) || math.IsInf(pair.v, 0) {
			return &core.ConfigError{Field: pair.name, Reason: "must be finite"}
		}
	}

	g := cfg.Governance
	for _, pair := range []struct {
		name string
		v    float64
	}{
		{"governance.tax_rate", g.TaxRate},
		{"governance.audit_probability", g.AuditProbability},
		{"governance.reputation_decay", g.ReputationDecay},
	} {
		if pair.v < 0 || pair.v > 1 || math.IsNaN(pair.v) {
			return &core.ConfigError{Field: pair.name, Reason: "must be in [0,1]"}
		}
	}
	if g.ReputationDecay >= 1 {
		return &core.ConfigError{Field: "governance.reputation_decay", Reason: "must be < 1 (gamma must stay positive)"}
	}
	if g.InitialReputation < 0 || math.IsNaN(g.InitialReputation) {
		return &core.ConfigError{Field: "governance.initial_reputation", Reason: "must be >= 0"}
	}
	if g.AuditPenalty < 0 {
		return &core.ConfigError{Field: "governance.audit_penalty", Reason: "must be >= 0"}
	}
	if g.CircuitBreakerThreshold < 0 || g.CircuitBreakerThreshold > 1 {
		return &core.ConfigError{Field: "governance.circuit_breaker_threshold", Reason: "must be in [0,1]"}
	}
	if g.CircuitBreakerWindow < 0 || g.CircuitBreakerCooldown < 0 {
		return &core.ConfigError{Field: "governance.circuit_breaker", Reason: "window and cooldown must be >= 0"}
	}
	if g.StakingRequirement < 0 {
		return &core.ConfigError{Field: "governance.staking_requirement", Reason: "must be >= 0"}
	}
	if g.StakeSlashRate < 0 || g.StakeSlashRate > 1 {
		return &core.ConfigError{Field: "governance.stake_slash_rate", Reason: "must be in [0,1]"}
	}
	if g.CollusionWindow < 0 {
		return &core.ConfigError{Field: "governance.collusion_window", Reason: "must be >= 0"}
	}
	if g.CollusionCorrelationThreshold < -1 || g.CollusionCorrelationThreshold > 1 {
		return &core.ConfigError{Field: "governance.collusion_correlation_threshold", Reason: "must be in [-1,1]"}
	}

	for _, rl := range cfg.RateLimits {
		if !knownArchetypes[rl.Archetype] {
			return &core.ConfigError{Field: "rate_limits", Reason: "unknown archetype " + string(rl.Archetype)}
		}
		if rl.MaxPerEpoch < 0 || rl.BurstPerEpoch < 0 {
			return &core.ConfigError{Field: "rate_limits", Reason: "quotas must be >= 0"}
		}
	}

	if cfg.SigmoidK <= 0 || math.IsNaN(cfg.SigmoidK) {
		return &core.ConfigError{Field: "sigmoid_k", Reason: "must be > 0"}
	}
	w := cfg.ProxyWeights
	for _, pair := range []struct {
		name string
		v    float64
	}{
		{"proxy_weights.progress", w.Progress}, {"proxy_weights.rework", w.Rework},
		{"proxy_weights.rejections", w.Rejections}, {"proxy_weights.engagement", w.Engagement},
	} {
		if math.IsNaN(pair.v) || math.IsInf(pair.v, 0) {
			return &core.ConfigError{Field: pair.name, Reason: "must be finite"}
		}
	}
	if cfg.TasksPerEpoch < 0 {
		return &core.ConfigError{Field: "tasks_per_epoch", Reason: "must be >= 0"}
	}
	if cfg.HonestErrorBound < 0 || cfg.HonestErrorBound > 1 {
		return &core.ConfigError{Field: "honest_error_bound", Reason: "must be in [0,1]"}
	}
	return nil
}

