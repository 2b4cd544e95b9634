package orchestrator

import (
	"context"
	"fmt"

	"github.com/generativebots/swarm/internal/agents"
	"github.com/generativebots/swarm/internal/core"
)

// buildPopulation instantiates every agent cohort in the scenario, in spec
// order, drawing per-instance stochastic parameters (the deceptive trust
// threshold) from the kernel RNG so the population itself is part of the
// deterministic replay surface. Emits one AGENT_REGISTERED event per agent.
func (o *Orchestrator) buildPopulation() error {
	type built struct {
		agent *core.Agent
		spec  core.AgentSpec
	}
	var all []built

	counts := make(map[core.Archetype]int)
	for _, spec := range o.cfg.Agents {
		for i := 0; i < spec.Count; i++ {
			counts[spec.Archetype]++
			a := &core.Agent{
				ID:         fmt.Sprintf("%s-%d", spec.Archetype, counts[spec.Archetype]),
				Archetype:  spec.Archetype,
				Lifecycle:  core.LifecycleActive,
				Reputation: o.cfg.Governance.InitialReputation,
				Resources:  paramFloat(spec.Params, "initial_resources", 10),
				Stake:      paramFloat(spec.Params, "initial_stake", o.cfg.Governance.StakingRequirement),
				CreatedAt:  o.manifest.StartTime,
			}
			if spec.Archetype == core.ArchetypeAdversarial {
				// Coordination is opt-in: only cohorts that declare a
				// group_id collude; ungrouped adversarials act alone.
				a.GroupID = paramString(spec.Params, "group_id", "")
			}
			if spec.Archetype == core.ArchetypeDeceptive {
				a.DeceptiveTrustThreshold = agents.DrawTrustThreshold(o.rng)
			}
			all = append(all, built{agent: a, spec: spec})
		}
	}

	// Group peers resolve after the whole population exists, since a
	// colluding group may span several cohort entries.
	groupMembers := make(map[string][]string)
	for _, b := range all {
		if b.agent.GroupID != "" {
			groupMembers[b.agent.GroupID] = append(groupMembers[b.agent.GroupID], b.agent.ID)
		}
	}

	for _, b := range all {
		o.env.RegisterAgent(b.agent)
		o.policies[b.agent.ID] = o.buildPolicy(b.agent, groupMembers[b.agent.GroupID])

		payload := map[string]interface{}{
			"agent_id":  b.agent.ID,
			"archetype": string(b.agent.Archetype),
		}
		if b.agent.GroupID != "" {
			payload["group_id"] = b.agent.GroupID
		}
		if _, err := o.log.Append(0, 0, core.EventAgentRegistered, payload); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) buildPolicy(a *core.Agent, groupPeers []string) agents.Policy {
	if a.Archetype == core.ArchetypeExternal {
		cb := o.externalCallback
		if cb == nil {
			cb = func(ctx context.Context, obs agents.Observation) (core.Action, error) {
				return core.Pass(obs.Self.ID), nil
			}
		}
		return agents.NewExternalProxy(cb, o.externalTimeout)
	}
	return agents.New(a.Archetype, o.cfg.ProxyWeights, o.cfg.SigmoidK, o.rng, groupPeers)
}

func paramFloat(params map[string]interface{}, key string, fallback float64) float64 {
	v, ok := params[key]
	if !ok {
		return fallback
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return fallback
	}
}

func paramString(params map[string]interface{}, key, fallback string) string {
	if s, ok := params[key].(string); ok && s != "" {
		return s
	}
	return fallback
}
