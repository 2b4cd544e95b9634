package governance

import (
	"log"

	"github.com/generativebots/swarm/internal/core"
	"github.com/generativebots/swarm/internal/envstate"
	"github.com/generativebots/swarm/internal/eventlog"
)

// breaker tracks one toxicity window per agent and trips active -> frozen
// when the rolling mean of (1-p) exceeds the configured threshold,
// unfreezing after the configured cooldown. There is no half-open probe
// state: an agent's "request" is a whole interaction the Orchestrator
// already decided to resolve, not a single call the breaker can intercept,
// so the lifecycle collapses to active/frozen with an epoch-counted
// cooldown in place of a wall-clock timeout.
type breaker struct {
	window  int
	windows map[string]*window
}

func newBreaker(windowSize int) *breaker {
	return &breaker{
		window:  windowSize,
		windows: make(map[string]*window),
	}
}

func (b *breaker) windowFor(agentID string) *window {
	w, ok := b.windows[agentID]
	if !ok {
		w = newWindow(b.window)
		b.windows[agentID] = w
	}
	return w
}

// updateCircuitBreaker appends the interaction's toxicity sample for both
// parties and trips either one into frozen if its rolling mean breaches
// the threshold.
func (e *Engine) updateCircuitBreaker(env *envstate.Environment, epoch, step int, si *core.SoftInteraction) {
	if !si.Accepted || e.cfg.CircuitBreakerThreshold <= 0 || e.cfg.CircuitBreakerWindow <= 0 {
		return
	}
	toxicity := 1 - si.P
	for _, agentID := range []string{si.Initiator, si.Counterparty} {
		w := e.breaker.windowFor(agentID)
		w.Add(toxicity)
		if !w.Full() {
			continue
		}
		if w.Mean() <= e.cfg.CircuitBreakerThreshold {
			continue
		}
		e.trip(env, epoch, step, agentID, w.Mean())
	}
}

func (e *Engine) trip(env *envstate.Environment, epoch, step int, agentID string, toxicityMean float64) {
	var alreadyFrozen bool
	env.MutateAgent(agentID, func(a *core.Agent) {
		if a.Lifecycle == core.LifecycleFrozen && epoch < a.FrozenUntil {
			alreadyFrozen = true
			return
		}
		a.Lifecycle = core.LifecycleFrozen
		a.FrozenUntil = epoch + e.cfg.CircuitBreakerCooldown
	})
	if alreadyFrozen {
		return
	}
	e.logger.Printf("circuit breaker tripped: agent=%s toxicity_mean=%.4f threshold=%.4f cooldown_until=%d",
		agentID, toxicityMean, e.cfg.CircuitBreakerThreshold, epoch+e.cfg.CircuitBreakerCooldown)
	e.log.Append(epoch, step, core.EventAgentFrozen, map[string]interface{}{
		"agent_id":      agentID,
		"toxicity_mean": toxicityMean,
		"threshold":     e.cfg.CircuitBreakerThreshold,
		"frozen_until":  epoch + e.cfg.CircuitBreakerCooldown,
	})
}

// onEpochEnd unfreezes every agent whose cooldown has expired as of the
// epoch boundary just completed.
func (b *breaker) onEpochEnd(env *envstate.Environment, epoch int, l *eventlog.Log, logger *log.Logger) {
	nextEpoch := epoch + 1
	for _, a := range env.Agents() {
		if a.Lifecycle != core.LifecycleFrozen {
			continue
		}
		if nextEpoch < a.FrozenUntil {
			continue
		}
		id := a.ID
		env.MutateAgent(id, func(ag *core.Agent) {
			if ag.Lifecycle == core.LifecycleFrozen && nextEpoch >= ag.FrozenUntil {
				ag.Lifecycle = core.LifecycleActive
			}
		})
		logger.Printf("circuit breaker reset: agent=%s epoch=%d", id, nextEpoch)
		l.Append(nextEpoch, 0, core.EventAgentUnfrozen, map[string]interface{}{
			"agent_id": id,
		})
	}
}
