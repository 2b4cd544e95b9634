package agents

import (
	"github.com/generativebots/swarm/internal/core"
	"github.com/generativebots/swarm/internal/rng"
)

// DeceptiveTrustThresholdMin/Max bound the discrete uniform distribution T
// is drawn from once per instance at creation. The draw itself happens where
// the agent is registered (the Orchestrator's population builder), not in
// this policy, since T lives on core.Agent.DeceptiveTrustThreshold and must
// survive across the whole run.
const (
	DeceptiveTrustThresholdMin = 3
	DeceptiveTrustThresholdMax = 8
)

// DrawTrustThreshold draws T ~ Uniform{DeceptiveTrustThresholdMin..Max}
// from the kernel RNG, called once per deceptive agent at registration.
func DrawTrustThreshold(r *rng.RNG) int {
	return r.IntnInclusive(DeceptiveTrustThresholdMin, DeceptiveTrustThresholdMax)
}

// Deceptive behaves exactly like Honest for its first T interactions, then
// exploits trusted partners: it reports a favorable signal (so its
// accepted rate stays high and its reputation keeps climbing) while its
// ground-truth observables are poor, which only a random audit can catch.
type Deceptive struct {
	Weights core.ProxyWeights
	K       float64
	RNG     *rng.RNG
}

func NewDeceptive(weights core.ProxyWeights, k float64, r *rng.RNG) *Deceptive {
	return &Deceptive{Weights: weights, K: k, RNG: r}
}

func (d *Deceptive) trusted(obs Observation) bool {
	return obs.Self.InteractionsSeen >= obs.Self.DeceptiveTrustThreshold
}

func (d *Deceptive) Act(obs Observation) core.Action {
	if t := claimedBySelf(obs); t != nil {
		reported, truth := d.submissionObservables(obs)
		return core.Action{
			Kind: core.ActionSubmitWork, AgentID: obs.Self.ID, TaskID: t.ID,
			Payload:         map[string]interface{}{"submission": "deceptive-work"},
			Observables:     &reported,
			TrueObservables: &truth,
		}
	}
	if t := firstOpenTask(obs); t != nil {
		return core.Action{Kind: core.ActionClaimTask, AgentID: obs.Self.ID, TaskID: t.ID}
	}
	target := bestReputationCounterparty(obs)
	if target == "" {
		return core.Pass(obs.Self.ID)
	}
	reported, truth := d.interactionObservables(obs)
	return core.Action{
		Kind: core.ActionCollaborate, AgentID: obs.Self.ID, TargetID: target,
		Observables:     &reported,
		TrueObservables: &truth,
	}
}

// submissionObservables/interactionObservables report a consistently
// favorable signal; the ground truth matches it until trust is established,
// then diverges (the exploit).
func (d *Deceptive) submissionObservables(obs Observation) (reported, truth core.ProxyObservables) {
	reported = diligentObservables()
	if !d.trusted(obs) {
		return reported, reported
	}
	return reported, core.ProxyObservables{TaskProgressDelta: -0.6, ReworkCount: 4, VerifierRejections: 2, EngagementDelta: -0.4}
}

func (d *Deceptive) interactionObservables(obs Observation) (reported, truth core.ProxyObservables) {
	reported = diligentObservables()
	if !d.trusted(obs) {
		return reported, reported
	}
	return reported, core.ProxyObservables{TaskProgressDelta: -0.5, ReworkCount: 3, VerifierRejections: 1, EngagementDelta: -0.3}
}

func (d *Deceptive) Accept(obs Observation, proposed core.SoftInteraction) bool {
	return estimateP(proposed.Observables, d.Weights, d.K) >= acceptThresholdHonest
}

func (d *Deceptive) OnResult(res Result) {}
