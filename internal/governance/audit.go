package governance

import (
	"math"

	"github.com/generativebots/swarm/internal/core"
	"github.com/generativebots/swarm/internal/envstate"
	"github.com/generativebots/swarm/internal/proxy"
)

// auditDivergenceThreshold is the fixed tolerance between an interaction's
// reported p and the ground-truth p (recomputed from TrueObservables) past
// which an audit counts as a mismatch. Fixed at 0.15 and kept stable
// across versions, the same way internal/proxy fixes its decay constants,
// so audit outcomes stay reproducible.
const auditDivergenceThreshold = 0.15

// runAudit independently samples each resolved interaction with
// probability AuditProbability. A sampled audit recomputes p from the
// interaction's ground-truth observables (carried on the pending
// interaction by the Orchestrator when the proposing policy supplied
// TrueObservables) and compares it against the reported p. A divergence
// past the threshold debits the initiator's reputation and resources and,
// if staking is enabled, slashes stake.
func (e *Engine) runAudit(env *envstate.Environment, epoch, step int, si *core.SoftInteraction) error {
	if !si.Accepted || e.cfg.AuditProbability <= 0 {
		return nil
	}
	if !e.rng.Bool(e.cfg.AuditProbability) {
		return nil
	}

	si.Audited = true

	trueP := proxy.Sigmoid(si.TrueVHat, e.sigmoidK)
	divergence := math.Abs(si.P - trueP)
	penalized := divergence > auditDivergenceThreshold

	verdict := &core.AuditVerdict{
		Divergence: divergence,
		Penalized:  penalized,
	}
	if penalized {
		verdict.Reason = "reported p diverges from ground-truth p beyond threshold"
	} else {
		verdict.Reason = "reported p within tolerance of ground-truth p"
	}
	si.AuditVerdict = verdict

	payload := map[string]interface{}{
		"interaction_id": si.ID,
		"agent_id":       si.Initiator,
		"divergence":     divergence,
		"penalized":      penalized,
		"reason":         verdict.Reason,
	}
	if _, err := e.log.Append(epoch, step, core.EventAuditExecuted, payload); err != nil {
		return err
	}

	if !penalized || e.cfg.AuditPenalty <= 0 {
		return nil
	}

	penalty := e.cfg.AuditPenalty
	var slashed float64
	env.MutateAgent(si.Initiator, func(a *core.Agent) {
		a.Reputation -= penalty
		if a.Reputation < 0 {
			a.Reputation = 0
		}
		a.Resources -= penalty
		if e.cfg.StakeSlashRate > 0 && a.Stake > 0 {
			slashed = e.cfg.StakeSlashRate * a.Stake
			a.Stake -= slashed
			if a.Stake < 0 {
				a.Stake = 0
			}
		}
	})

	if slashed > 0 {
		e.logger.Printf("stake slashed: agent=%s amount=%.4f interaction=%s", si.Initiator, slashed, si.ID)
		if _, err := e.log.Append(epoch, step, core.EventStakeSlashed, map[string]interface{}{
			"agent_id":       si.Initiator,
			"interaction_id": si.ID,
			"amount":         slashed,
		}); err != nil {
			return err
		}
	}

	return nil
}
