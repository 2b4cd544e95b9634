package agents

import "github.com/generativebots/swarm/internal/core"

// acceptThresholdHonest is the minimum estimated p an honest agent requires
// to accept a proposed interaction.
const acceptThresholdHonest = 0.4

// Honest chooses cooperative actions, accepts interactions when estimated
// p >= 0.4, and submits claimed tasks diligently. It never
// biases its reported observables away from ground truth.
type Honest struct {
	Weights core.ProxyWeights
	K       float64
}

func NewHonest(weights core.ProxyWeights, k float64) *Honest {
	return &Honest{Weights: weights, K: k}
}

func (h *Honest) Act(obs Observation) core.Action {
	if t := claimedBySelf(obs); t != nil {
		o := diligentObservables()
		return core.Action{
			Kind: core.ActionSubmitWork, AgentID: obs.Self.ID, TaskID: t.ID,
			Payload:         map[string]interface{}{"submission": "diligent-work"},
			Observables:     &o,
			TrueObservables: &o,
		}
	}
	if t := firstOpenTask(obs); t != nil {
		return core.Action{Kind: core.ActionClaimTask, AgentID: obs.Self.ID, TaskID: t.ID}
	}
	if target := bestReputationCounterparty(obs); target != "" {
		o := diligentObservables()
		return core.Action{
			Kind: core.ActionCollaborate, AgentID: obs.Self.ID, TargetID: target,
			Observables:     &o,
			TrueObservables: &o,
		}
	}
	return core.Pass(obs.Self.ID)
}

func (h *Honest) Accept(obs Observation, proposed core.SoftInteraction) bool {
	return estimateP(proposed.Observables, h.Weights, h.K) >= acceptThresholdHonest
}

func (h *Honest) OnResult(res Result) {}
