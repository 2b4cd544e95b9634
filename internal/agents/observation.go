// Package agents implements the five archetype policies: honest,
// opportunistic, deceptive, adversarial, and external-proxy. Each
// is a capability-interface implementation over Observation -> Action, with
// no implementation inheritance between archetypes.
package agents

import (
	"github.com/generativebots/swarm/internal/core"
	"github.com/generativebots/swarm/internal/envstate"
)

// Observation is everything a policy's Act call may read: self state, a
// feed slice, open tasks, (possibly noisy) reputations of other agents,
// recent outcomes, and the current epoch/step.
type Observation struct {
	Self                *core.Agent
	VisibleFeed         []envstate.Post
	AvailableTasks      []*core.Task
	Reputations         map[string]float64
	RecentOutcomes      []core.SoftInteraction
	Epoch               int
	Step                int

	// PublishedFindings is an optional channel for reflexivity
	// experiments: agents publish findings which other agents may read
	// back. nil unless the scenario enables it.
	PublishedFindings []string
}

// Result is what an agent policy's OnResult callback receives after its
// action has been executed: the action it emitted, the outcome (a
// resolved interaction when applicable), and a failure reason when the
// environment rejected the action transactionally.
type Result struct {
	Action      core.Action
	Interaction *core.SoftInteraction // nil unless the action resolved into one
	Failure     core.FailureReason    // core.FailureNone on success
}

// Policy is the capability interface every archetype implements.
//
// Accept is the counterparty half of interaction resolution: the
// Orchestrator's same-step resolution sweep calls Accept on the
// counterparty's policy, which applies the same estimated-p threshold the
// archetype uses everywhere else, rather than re-invoking Act, since
// accepting is a narrower decision than a full turn.
type Policy interface {
	Act(obs Observation) core.Action
	Accept(obs Observation, proposed core.SoftInteraction) bool
	OnResult(res Result)
}
