package orchestrator

import (
	"github.com/generativebots/swarm/internal/agents"
	"github.com/generativebots/swarm/internal/core"
)

// buildObservation assembles the read-only view an agent's policy sees
// for its turn: its own snapshot, a trailing feed slice, the tasks it can
// act on, everyone's current reputation, and its recent interaction
// outcomes. Nothing in the Observation aliases live ledger
// state.
func (o *Orchestrator) buildObservation(a *core.Agent, epoch, step int) agents.Observation {
	reputations := make(map[string]float64)
	for _, other := range o.env.Agents() {
		reputations[other.ID] = other.Reputation
	}

	outcomes := o.recentOutcomes[a.ID]
	recent := make([]core.SoftInteraction, len(outcomes))
	copy(recent, outcomes)

	return agents.Observation{
		Self:           a,
		VisibleFeed:    o.env.Feed(feedWindow),
		AvailableTasks: o.env.TasksVisibleTo(a.ID),
		Reputations:    reputations,
		RecentOutcomes: recent,
		Epoch:          epoch,
		Step:           step,
	}
}

// recordOutcome appends a resolved interaction to both parties' trailing
// outcome windows, which feed the next turns' Observations.
func (o *Orchestrator) recordOutcome(si core.SoftInteraction) {
	for _, id := range []string{si.Initiator, si.Counterparty} {
		buf := append(o.recentOutcomes[id], si)
		if len(buf) > recentOutcomeWindow {
			buf = buf[len(buf)-recentOutcomeWindow:]
		}
		o.recentOutcomes[id] = buf
	}
}
