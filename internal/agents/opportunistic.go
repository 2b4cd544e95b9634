package agents

import (
	"github.com/generativebots/swarm/internal/core"
	"github.com/generativebots/swarm/internal/rng"
)

// acceptThresholdOpportunistic and randomAcceptRate: accept when the
// estimated p clears 0.2, or with 30% probability regardless.
const (
	acceptThresholdOpportunistic = 0.2
	randomAcceptRate             = 0.3
	defectRate                   = 0.35 // chance a submission is delivered defectively
)

// Opportunistic cherry-picks high-reputation partners, accepts readily, and
// sometimes defects on task submissions rather than delivering diligently.
type Opportunistic struct {
	Weights core.ProxyWeights
	K       float64
	RNG     *rng.RNG
}

func NewOpportunistic(weights core.ProxyWeights, k float64, r *rng.RNG) *Opportunistic {
	return &Opportunistic{Weights: weights, K: k, RNG: r}
}

func (o *Opportunistic) Act(obs Observation) core.Action {
	if t := claimedBySelf(obs); t != nil {
		obsv := o.submissionObservables()
		return core.Action{
			Kind: core.ActionSubmitWork, AgentID: obs.Self.ID, TaskID: t.ID,
			Payload:         map[string]interface{}{"submission": "opportunistic-work"},
			Observables:     &obsv,
			TrueObservables: &obsv,
		}
	}
	if t := firstOpenTask(obs); t != nil {
		return core.Action{Kind: core.ActionClaimTask, AgentID: obs.Self.ID, TaskID: t.ID}
	}
	if target := bestReputationCounterparty(obs); target != "" {
		obsv := diligentObservables()
		return core.Action{
			Kind: core.ActionCollaborate, AgentID: obs.Self.ID, TargetID: target,
			Observables:     &obsv,
			TrueObservables: &obsv,
		}
	}
	return core.Pass(obs.Self.ID)
}

// submissionObservables cherry-picks between a diligent submission and a
// defecting (heavy rework, low progress) one.
func (o *Opportunistic) submissionObservables() core.ProxyObservables {
	if o.RNG.Bool(defectRate) {
		return core.ProxyObservables{TaskProgressDelta: -0.2, ReworkCount: 3, EngagementDelta: -0.1}
	}
	return diligentObservables()
}

func (o *Opportunistic) Accept(obs Observation, proposed core.SoftInteraction) bool {
	p := estimateP(proposed.Observables, o.Weights, o.K)
	if p >= acceptThresholdOpportunistic {
		return true
	}
	return o.RNG.Bool(randomAcceptRate)
}

func (o *Opportunistic) OnResult(res Result) {}
