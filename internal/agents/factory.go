package agents

import (
	"github.com/generativebots/swarm/internal/core"
	"github.com/generativebots/swarm/internal/rng"
)

// New constructs the Policy implementation for an archetype. groupPeers is
// only meaningful for ArchetypeAdversarial. External archetypes must be
// wired by the caller via NewExternalProxy directly, since they need a
// Callback the scenario config cannot express.
func New(archetype core.Archetype, weights core.ProxyWeights, k float64, r *rng.RNG, groupPeers []string) Policy {
	switch archetype {
	case core.ArchetypeHonest:
		return NewHonest(weights, k)
	case core.ArchetypeOpportunistic:
		return NewOpportunistic(weights, k, r)
	case core.ArchetypeDeceptive:
		return NewDeceptive(weights, k, r)
	case core.ArchetypeAdversarial:
		return NewAdversarial(weights, k, r, groupPeers)
	default:
		return NewHonest(weights, k)
	}
}
