// Package governance implements the stateful governance engine: transaction
// tax, reputation decay, random audits, the circuit breaker, staking, and
// collusion detection. Every resolved interaction passes
// through Engine.Evaluate in a fixed order: tax, audit, circuit-breaker
// update, stake check, collusion update. That order is part of the
// engine's contract, not an implementation detail.
//
// All windows here are epoch-counted, never wall-clock: the kernel has no
// real clock, and every governance decision must replay identically from
// the same seed.
package governance

import (
	"log"
	"sync"

	"github.com/generativebots/swarm/internal/core"
	"github.com/generativebots/swarm/internal/eventlog"
	"github.com/generativebots/swarm/internal/envstate"
	"github.com/generativebots/swarm/internal/rng"
)

// Engine is the kernel's governance coordinator. It is owned exclusively by
// the Orchestrator, the same way envstate.Environment is.
type Engine struct {
	mu sync.Mutex

	cfg      core.GovernanceConfig
	sigmoidK float64
	rng      *rng.RNG
	log      *eventlog.Log

	logger *log.Logger

	// epochP accumulates each agent's p samples for the current epoch,
	// feeding the once-per-epoch reputation decay.
	epochP map[string][]float64

	breaker   *breaker
	collusion *collusionDetector

	forcedQuarantine map[string]bool
}

// NewEngine builds a governance engine from a validated GovernanceConfig.
// sigmoidK is the scenario's sigmoid calibration slope, needed by the
// random-audit path to recompute a ground-truth p from TrueVHat.
func NewEngine(cfg core.GovernanceConfig, sigmoidK float64, r *rng.RNG, l *eventlog.Log) *Engine {
	return &Engine{
		cfg:              cfg,
		sigmoidK:         sigmoidK,
		rng:              r,
		log:              l,
		logger:           log.New(log.Writer(), "[GOVERNANCE] ", log.LstdFlags),
		epochP:           make(map[string][]float64),
		breaker:          newBreaker(cfg.CircuitBreakerWindow),
		collusion:        newCollusionDetector(cfg.CollusionWindow, cfg.CollusionCorrelationThreshold),
		forcedQuarantine: make(map[string]bool),
	}
}

// OnEpochStart clears the per-epoch p accumulator used by reputation
// decay. The circuit-breaker and collusion windows roll across epochs;
// they read a trailing window of interactions, not an epoch-scoped one.
func (e *Engine) OnEpochStart(env *envstate.Environment, epoch int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.epochP = make(map[string][]float64)
}

// CanInitiate reports whether agentID may initiate a new interaction this
// step: staking agents below the configured requirement are blocked from
// initiating.
func (e *Engine) CanInitiate(a *core.Agent) bool {
	if a.IsQuarantined() {
		return false
	}
	if e.cfg.StakingRequirement <= 0 {
		return true
	}
	return a.Stake >= e.cfg.StakingRequirement
}

// Evaluate runs the fixed governance pipeline over a resolved interaction:
// tax, then audit, then circuit-breaker update, then stake check, then
// collusion update. It mutates env transactionally and appends events to
// the log. si is mutated in place (TaxedAmount, Audited, AuditVerdict,
// PayoffA/B are finalized by the time Evaluate returns).
func (e *Engine) Evaluate(env *envstate.Environment, epoch, step int, si *core.SoftInteraction) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.applyTax(si)

	if si.Accepted {
		e.epochP[si.Initiator] = append(e.epochP[si.Initiator], si.P)
		e.epochP[si.Counterparty] = append(e.epochP[si.Counterparty], si.P)
	}

	if err := e.runAudit(env, epoch, step, si); err != nil {
		return err
	}

	e.updateCircuitBreaker(env, epoch, step, si)

	if err := e.checkStakeExhaustion(env, epoch, step, si); err != nil {
		return err
	}

	if e.cfg.CollusionEnabled {
		e.updateCollusion(env, epoch, step, si)
	}

	return nil
}

// OnEpochEnd applies reputation decay to every agent with at least one
// interaction this epoch  and
// advances circuit-breaker cooldowns.
func (e *Engine) OnEpochEnd(env *envstate.Environment, epoch int, metrics core.EpochMetrics) {
	e.mu.Lock()
	defer e.mu.Unlock()

	gamma := 1 - e.cfg.ReputationDecay
	for agentID, samples := range e.epochP {
		if len(samples) == 0 {
			continue
		}
		pBar := mean(samples)
		env.MutateAgent(agentID, func(a *core.Agent) {
			a.Reputation = gamma*a.Reputation + (1-gamma)*pBar
			if a.Reputation < 0 {
				a.Reputation = 0
			}
		})
	}

	e.breaker.onEpochEnd(env, epoch, e.log, e.logger)
}

// ReputationBreakdown exposes the raw inputs behind the last decay update
// for agentID, for observability.
type ReputationBreakdown struct {
	AgentID        string
	PreviousRep    float64
	MeanP          float64
	Gamma          float64
	ResultingRep   float64
}

// Breakdown computes what the next OnEpochEnd would produce for agentID
// without mutating state, given the agent's current reputation.
func (e *Engine) Breakdown(a *core.Agent) ReputationBreakdown {
	e.mu.Lock()
	defer e.mu.Unlock()
	gamma := 1 - e.cfg.ReputationDecay
	samples := e.epochP[a.ID]
	pBar := mean(samples)
	return ReputationBreakdown{
		AgentID:      a.ID,
		PreviousRep:  a.Reputation,
		MeanP:        pBar,
		Gamma:        gamma,
		ResultingRep: gamma*a.Reputation + (1-gamma)*pBar,
	}
}

// ForceQuarantine is an operator-triggered kill switch independent of the
// automatic stake/circuit-breaker triggers. Not driven by any scenario
// config knob.
func (e *Engine) ForceQuarantine(env *envstate.Environment, agentID string, epoch int) {
	e.mu.Lock()
	e.forcedQuarantine[agentID] = true
	e.mu.Unlock()
	env.MutateAgent(agentID, func(a *core.Agent) {
		a.Lifecycle = core.LifecycleQuarantined
		a.QuarantinedAt = epoch
	})
}

// Revive lifts a forced quarantine and returns the agent to active.
func (e *Engine) Revive(env *envstate.Environment, agentID string) {
	e.mu.Lock()
	delete(e.forcedQuarantine, agentID)
	e.mu.Unlock()
	env.MutateAgent(agentID, func(a *core.Agent) {
		if a.Lifecycle == core.LifecycleQuarantined {
			a.Lifecycle = core.LifecycleActive
		}
	})
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// FlaggedPairCount reports how many distinct pairs have been flagged for
// collusion so far in the run; the Orchestrator folds it into each epoch's
// EpochMetrics snapshot.
func (e *Engine) FlaggedPairCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.collusion.flaggedOnce)
}
