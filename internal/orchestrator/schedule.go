package orchestrator

import (
	"sort"

	"github.com/generativebots/swarm/internal/core"
)

// schedule produces the step's visitation order. All three
// modes start from the registration-order id list so the base order never
// depends on map iteration:
//
//   - round_robin rotates the start position one agent per step, so no
//     agent permanently enjoys first-mover advantage within an epoch.
//   - random applies a Fisher-Yates shuffle drawn from the kernel RNG.
//   - priority orders by current reputation, highest first, breaking ties
//     on the lexicographically smaller id.
func (o *Orchestrator) schedule(epoch, step int) []string {
	ids := o.env.AgentIDs()
	if len(ids) == 0 {
		return ids
	}

	switch o.cfg.SchedulingMode {
	case core.SchedulingRandom:
		o.rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
		return ids

	case core.SchedulingPriority:
		reps := make(map[string]float64, len(ids))
		for _, a := range o.env.Agents() {
			reps[a.ID] = a.Reputation
		}
		sort.SliceStable(ids, func(i, j int) bool {
			if reps[ids[i]] != reps[ids[j]] {
				return reps[ids[i]] > reps[ids[j]]
			}
			return ids[i] < ids[j]
		})
		return ids

	default: // round_robin
		offset := o.rrOffset % len(ids)
		o.rrOffset++
		rotated := make([]string, 0, len(ids))
		rotated = append(rotated, ids[offset:]...)
		rotated = append(rotated, ids[:offset]...)
		return rotated
	}
}
