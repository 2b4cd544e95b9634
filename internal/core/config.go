package core

import "time"

// SchedulingMode selects how the Orchestrator visits agents within a step.
type SchedulingMode string

const (
	SchedulingRoundRobin SchedulingMode = "round_robin"
	SchedulingRandom     SchedulingMode = "random"
	SchedulingPriority   SchedulingMode = "priority"
)

// AgentSpec describes one population cohort in a ScenarioConfig.
type AgentSpec struct {
	Archetype Archetype
	Count     int
	Params    map[string]interface{}
}

// RateLimitSpec is the per-archetype, per-action quota. Window is epoch-scoped, not wall-clock.
type RateLimitSpec struct {
	Archetype     Archetype
	Action        ActionKind
	MaxPerEpoch   int
	BurstPerEpoch int
}

// PayoffConfig parameterizes the payoff engine.
type PayoffConfig struct {
	SPlus  float64 // s+
	SMinus float64 // s-
	H      float64 // externality scale
	Theta  float64 // split of soft surplus to initiator, in [0,1]
	Tau    float64 // side payment from b to a
	WRep   float64 // reputation bonus weight
	RhoA   float64 // initiator externality exposure
	RhoB   float64 // counterparty externality exposure
}

// GovernanceConfig parameterizes the governance engine.
type GovernanceConfig struct {
	TaxRate                      float64
	ReputationDecay              float64 // 1 - γ
	InitialReputation            float64
	AuditProbability             float64
	AuditPenalty                 float64
	CircuitBreakerThreshold      float64
	CircuitBreakerWindow         int
	CircuitBreakerCooldown       int
	StakingRequirement           float64
	StakeSlashRate               float64
	CollusionEnabled             bool
	CollusionWindow              int
	CollusionCorrelationThreshold float64
}

// ScenarioConfig is the validated input the kernel consumes from an
// external scenario loader. Unknown-archetype rejection and
// YAML parsing happen upstream; the kernel validates numeric ranges.
type ScenarioConfig struct {
	ID             string
	Seed           int64
	NEpochs        int
	StepsPerEpoch  int
	Agents         []AgentSpec
	Payoff         PayoffConfig
	Governance     GovernanceConfig
	RateLimits     []RateLimitSpec
	SchedulingMode SchedulingMode

	ProxyWeights ProxyWeights
	SigmoidK     float64

	// TasksPerEpoch tasks, each worth TaskReward, are seeded into the pool
	// at every epoch start so the claim/submit/verify loop has material to
	// work with. Zero disables the task pool.
	TasksPerEpoch int
	TaskReward    float64

	// HonestErrorBound is the 0.1-default ceiling used by testable
	// property 8 (pure-honest populations stay below it).
	HonestErrorBound float64
}

// ProxyWeights are the sigmoid/proxy layer's linear-combination weights.
// Defaults: 0.4/0.2/0.2/0.2.
type ProxyWeights struct {
	Progress   float64
	Rework     float64
	Rejections float64
	Engagement float64
}

// DefaultProxyWeights returns the documented default weighting.
func DefaultProxyWeights() ProxyWeights {
	return ProxyWeights{Progress: 0.4, Rework: 0.2, Rejections: 0.2, Engagement: 0.2}
}

// RunStatus is the terminal state of a run manifest.
type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	RunCancelled RunStatus = "cancelled"
	RunCrashed   RunStatus = "crashed"
)

// RunManifest is the summary artifact emitted alongside the event log and
// metrics stream. The Orchestrator updates it incrementally
//  so a cancelled or crashed run still carries an accurate
// partial record.
type RunManifest struct {
	ScenarioID       string    `json:"scenario_id"`
	Seed             int64     `json:"seed"`
	StartTime        time.Time `json:"start_time"`
	EndTime          time.Time `json:"end_time"`
	NEpochsCompleted int       `json:"n_epochs_completed"`
	FinalStatus      RunStatus `json:"final_status"`
}
