package agents

import (
	"github.com/generativebots/swarm/internal/core"
	"github.com/generativebots/swarm/internal/rng"
)

// Adversarial targets high-reputation (typically honest) agents with
// reported-good, truth-bad interactions. When it shares a latent GroupID
// with other adversarials it preferentially votes for its group peers
// instead, manufacturing the correlated pair behavior the collusion
// detector looks for.
type Adversarial struct {
	Weights core.ProxyWeights
	K       float64
	RNG     *rng.RNG

	// GroupPeers are the other agent ids sharing this agent's GroupID,
	// resolved once at population setup.
	GroupPeers []string

	// collusionBias is the probability a group peer is preferred over the
	// best-reputation target on any given turn, when at least one peer is
	// visible.
	collusionBias float64
}

func NewAdversarial(weights core.ProxyWeights, k float64, r *rng.RNG, groupPeers []string) *Adversarial {
	return &Adversarial{Weights: weights, K: k, RNG: r, GroupPeers: groupPeers, collusionBias: 0.8}
}

func (a *Adversarial) visiblePeer(obs Observation) string {
	for _, id := range a.GroupPeers {
		if id == obs.Self.ID {
			continue
		}
		if _, ok := obs.Reputations[id]; ok {
			return id
		}
	}
	return ""
}

func (a *Adversarial) Act(obs Observation) core.Action {
	if t := claimedBySelf(obs); t != nil {
		reported, truth := a.poisonedObservables()
		return core.Action{
			Kind: core.ActionSubmitWork, AgentID: obs.Self.ID, TaskID: t.ID,
			Payload:         map[string]interface{}{"submission": "adversarial-work"},
			Observables:     &reported,
			TrueObservables: &truth,
		}
	}
	if t := firstOpenTask(obs); t != nil {
		return core.Action{Kind: core.ActionClaimTask, AgentID: obs.Self.ID, TaskID: t.ID}
	}

	if peer := a.visiblePeer(obs); peer != "" && a.RNG.Bool(a.collusionBias) {
		// Collude: report and deliver a consistently favorable signal to
		// the group peer, running up their mutual positive-outcome rate.
		o := diligentObservables()
		return core.Action{
			Kind: core.ActionVote, AgentID: obs.Self.ID, TargetID: peer,
			Observables:     &o,
			TrueObservables: &o,
		}
	}

	target := bestReputationCounterparty(obs)
	if target == "" {
		return core.Pass(obs.Self.ID)
	}
	reported, truth := a.poisonedObservables()
	return core.Action{
		Kind: core.ActionCollaborate, AgentID: obs.Self.ID, TargetID: target,
		Observables:     &reported,
		TrueObservables: &truth,
	}
}

// poisonedObservables reports a favorable signal (to clear the target's
// acceptance threshold) while the ground truth is deliberately harmful.
func (a *Adversarial) poisonedObservables() (reported, truth core.ProxyObservables) {
	reported = diligentObservables()
	truth = core.ProxyObservables{TaskProgressDelta: -0.8, ReworkCount: 5, VerifierRejections: 3, EngagementDelta: -0.6}
	return
}

func (a *Adversarial) Accept(obs Observation, proposed core.SoftInteraction) bool {
	// Adversarials accept everything: refusing an interaction would
	// forgo an opportunity to poison it.
	return true
}

func (a *Adversarial) OnResult(res Result) {}
