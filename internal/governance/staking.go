package governance

import (
	"github.com/generativebots/swarm/internal/core"
	"github.com/generativebots/swarm/internal/envstate"
)

// checkStakeExhaustion transitions an agent whose stake has reached zero
// (via an audit slash, or any other debit) to quarantined, where it may
// only observe. This runs after the audit step in the fixed
// governance order, since an audit slash is the most common way stake gets
// exhausted mid-run.
func (e *Engine) checkStakeExhaustion(env *envstate.Environment, epoch, step int, si *core.SoftInteraction) error {
	if e.cfg.StakingRequirement <= 0 {
		return nil
	}
	for _, agentID := range []string{si.Initiator, si.Counterparty} {
		a := env.Agent(agentID)
		if a == nil || a.Lifecycle == core.LifecycleQuarantined || a.Stake > 0 {
			continue
		}
		env.MutateAgent(agentID, func(ag *core.Agent) {
			if ag.Stake <= 0 {
				ag.Lifecycle = core.LifecycleQuarantined
				ag.QuarantinedAt = epoch
			}
		})
		e.logger.Printf("stake exhausted: agent=%s quarantined", agentID)
		if _, err := e.log.Append(epoch, step, core.EventAgentQuarantined, map[string]interface{}{
			"agent_id": agentID,
			"reason":   "stake_exhausted",
		}); err != nil {
			return err
		}
	}
	return nil
}
