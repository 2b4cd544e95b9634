package agents

import (
	"github.com/generativebots/swarm/internal/core"
	"github.com/generativebots/swarm/internal/proxy"
	"github.com/generativebots/swarm/internal/rng"
)

// estimateP runs the observation's self-reported behavior through the
// sigmoid/proxy layer using the scenario's configured weights and k, the
// same estimate every archetype's acceptance threshold is compared
// against.
func estimateP(obs core.ProxyObservables, weights core.ProxyWeights, k float64) float64 {
	_, p := proxy.Compute(obs, weights, k)
	return p
}

// bestReputationCounterparty picks the agent with the highest reported
// reputation from obs.Reputations, excluding self. Returns "" if no
// candidate exists. Ties break on the lexicographically smaller id for
// determinism.
func bestReputationCounterparty(obs Observation) string {
	best := ""
	bestRep := -1.0
	for id, rep := range obs.Reputations {
		if id == obs.Self.ID {
			continue
		}
		if rep > bestRep || (rep == bestRep && id < best) {
			best = id
			bestRep = rep
		}
	}
	return best
}

// anyCounterparty deterministically picks a candidate counterparty from
// obs.Reputations (ascending id order) using the kernel RNG to choose
// among them, excluding self.
func anyCounterparty(obs Observation, r *rng.RNG) string {
	var ids []string
	for id := range obs.Reputations {
		if id != obs.Self.ID {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return ""
	}
	sortStrings(ids)
	return ids[r.IntnInclusive(0, len(ids)-1)]
}

func sortStrings(ids []string) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j] < ids[j-1]; j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
}

// firstOpenTask returns the first claimable task, or nil.
func firstOpenTask(obs Observation) *core.Task {
	for _, t := range obs.AvailableTasks {
		if t.Claimer == "" {
			return t
		}
	}
	return nil
}

// claimedBySelf returns a task self has claimed but not yet submitted, or
// nil.
func claimedBySelf(obs Observation) *core.Task {
	for _, t := range obs.AvailableTasks {
		if t.Claimer == obs.Self.ID && t.Submission == "" {
			return t
		}
	}
	return nil
}

// diligentObservables is the honest, undistorted signal an honest or
// opportunistic agent reports: a solid forward step with no rework.
func diligentObservables() core.ProxyObservables {
	return core.ProxyObservables{TaskProgressDelta: 0.7, EngagementDelta: 0.5}
}
