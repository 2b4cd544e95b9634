package orchestrator

import (
	"github.com/generativebots/swarm/internal/agents"
	"github.com/generativebots/swarm/internal/core"
	"github.com/generativebots/swarm/internal/payoff"
	"github.com/generativebots/swarm/internal/proxy"
)

// execute carries out one agent's action against the environment. Every
// transient failure (rate limit, frozen agent, stake, invalid target) is
// logged and converted to a PASS without aborting the run; only
// StateErrors propagate.
func (o *Orchestrator) execute(epoch, step int, a *core.Agent, action core.Action) (agents.Result, error) {
	if action.Kind == "" {
		action.Kind = core.ActionPass
	}
	action.AgentID = a.ID

	// Governance may have frozen or quarantined this agent earlier in the
	// same step (a prior agent's interaction resolution); an action
	// attempted in that state is dropped with its own event.
	live := o.env.Agent(a.ID)
	if live == nil {
		return agents.Result{Action: action, Failure: core.FailureNoSuchAgent}, nil
	}
	if live.IsFrozen(epoch) || live.IsQuarantined() {
		if _, err := o.log.Append(epoch, step, core.EventFrozenActionDropped, map[string]interface{}{
			"agent_id": a.ID,
			"kind":     string(action.Kind),
		}); err != nil {
			return agents.Result{}, err
		}
		return agents.Result{Action: action, Failure: core.FailureFrozenAgent}, nil
	}

	if action.Kind != core.ActionPass && !o.env.AllowAction(a.ID, a.Archetype, action.Kind, epoch) {
		return o.dropAction(epoch, step, action, core.FailureRateLimited)
	}

	switch action.Kind {
	case core.ActionPass, core.ActionBridge:
		return o.emitPlainAction(epoch, step, action)

	case core.ActionPost, core.ActionReply:
		postID := o.env.AddPost(a.ID, action.TargetID, action.Payload)
		if _, err := o.log.Append(epoch, step, core.EventActionEmitted, map[string]interface{}{
			"agent_id": a.ID,
			"kind":     string(action.Kind),
			"post_id":  postID,
		}); err != nil {
			return agents.Result{}, err
		}
		return agents.Result{Action: action}, nil

	case core.ActionClaimTask:
		if reason := o.env.ClaimTask(a.ID, action.TaskID); reason != core.FailureNone {
			return o.dropAction(epoch, step, action, reason)
		}
		if _, err := o.log.Append(epoch, step, core.EventActionEmitted, map[string]interface{}{
			"agent_id": a.ID,
			"kind":     string(action.Kind),
			"task_id":  action.TaskID,
		}); err != nil {
			return agents.Result{}, err
		}
		return agents.Result{Action: action}, nil

	case core.ActionSubmitWork:
		return o.executeSubmitWork(epoch, step, live, action)

	case core.ActionVerify:
		return o.executeVerify(epoch, step, live, action)

	case core.ActionVote, core.ActionCollaborate, core.ActionTradePropose:
		return o.executeProposal(epoch, step, live, action)

	case core.ActionTradeAccept:
		return o.executeTradeAccept(epoch, step, live, action)

	default:
		return o.dropAction(epoch, step, action, core.FailureInvalidTaskTarget)
	}
}

// dropAction logs a transient failure and records the action as a PASS,
// preserving what was attempted and why it fell through.
func (o *Orchestrator) dropAction(epoch, step int, action core.Action, reason core.FailureReason) (agents.Result, error) {
	o.logger.Printf("action dropped: agent=%s kind=%s reason=%s", action.AgentID, action.Kind, reason)
	if _, err := o.log.Append(epoch, step, core.EventActionEmitted, map[string]interface{}{
		"agent_id":       action.AgentID,
		"kind":           string(core.ActionPass),
		"attempted_kind": string(action.Kind),
		"failure":        string(reason),
	}); err != nil {
		return agents.Result{}, err
	}
	return agents.Result{Action: action, Failure: reason}, nil
}

func (o *Orchestrator) emitPlainAction(epoch, step int, action core.Action) (agents.Result, error) {
	payload := map[string]interface{}{
		"agent_id": action.AgentID,
		"kind":     string(action.Kind),
	}
	if action.Kind == core.ActionBridge && action.Payload != nil {
		payload["bridge_payload"] = action.Payload
	}
	if _, err := o.log.Append(epoch, step, core.EventActionEmitted, payload); err != nil {
		return agents.Result{}, err
	}
	return agents.Result{Action: action}, nil
}

// executeProposal handles VOTE / COLLABORATE / TRADE_PROPOSE: a staked,
// valid-target initiator registers a pending interaction, which resolves
// immediately if the counterparty has already had its turn this step and
// otherwise waits for the end-of-step sweep.
func (o *Orchestrator) executeProposal(epoch, step int, a *core.Agent, action core.Action) (agents.Result, error) {
	if !o.gov.CanInitiate(a) {
		return o.dropAction(epoch, step, action, core.FailureStakeInsufficient)
	}
	target := o.env.Agent(action.TargetID)
	if target == nil || action.TargetID == a.ID {
		return o.dropAction(epoch, step, action, core.FailureNoSuchAgent)
	}

	reported, truth := actionObservables(action)
	trueVHat := proxy.VHat(truth, o.cfg.ProxyWeights)

	kind := interactionKindFor(action.Kind)
	id := o.env.ProposeInteraction(epoch, step, kind, a.ID, action.TargetID, recordedObservables(reported, truth), trueVHat)

	if _, err := o.log.Append(epoch, step, core.EventActionEmitted, map[string]interface{}{
		"agent_id":  a.ID,
		"kind":      string(action.Kind),
		"target_id": action.TargetID,
	}); err != nil {
		return agents.Result{}, err
	}
	if _, err := o.log.Append(epoch, step, core.EventInteractionProposed, map[string]interface{}{
		"interaction_id": id,
		"initiator":      a.ID,
		"counterparty":   action.TargetID,
		"kind":           string(kind),
	}); err != nil {
		return agents.Result{}, err
	}

	if o.actedThisStep[action.TargetID] {
		resolved, err := o.resolveInteraction(epoch, step, o.env.PendingInteraction(id), false)
		if err != nil {
			return agents.Result{}, err
		}
		return agents.Result{Action: action, Interaction: resolved}, nil
	}
	return agents.Result{Action: action}, nil
}

func (o *Orchestrator) executeSubmitWork(epoch, step int, a *core.Agent, action core.Action) (agents.Result, error) {
	submission, _ := action.Payload["submission"].(string)
	if submission == "" {
		submission = "submission"
	}
	if reason := o.env.SubmitWork(a.ID, action.TaskID, submission); reason != core.FailureNone {
		return o.dropAction(epoch, step, action, reason)
	}

	if _, err := o.log.Append(epoch, step, core.EventActionEmitted, map[string]interface{}{
		"agent_id": a.ID,
		"kind":     string(action.Kind),
		"task_id":  action.TaskID,
	}); err != nil {
		return agents.Result{}, err
	}

	verifier := o.chooseVerifier(epoch, a.ID)
	if verifier == "" {
		return agents.Result{Action: action}, nil
	}

	reported, truth := actionObservables(action)
	id := o.env.ProposeInteraction(epoch, step, core.InteractionTaskVerify, a.ID, verifier, recordedObservables(reported, truth), proxy.VHat(truth, o.cfg.ProxyWeights))
	o.interactionTask[id] = action.TaskID

	if _, err := o.log.Append(epoch, step, core.EventInteractionProposed, map[string]interface{}{
		"interaction_id": id,
		"initiator":      a.ID,
		"counterparty":   verifier,
		"kind":           string(core.InteractionTaskVerify),
		"task_id":        action.TaskID,
	}); err != nil {
		return agents.Result{}, err
	}

	if o.actedThisStep[verifier] {
		resolved, err := o.resolveInteraction(epoch, step, o.env.PendingInteraction(id), false)
		if err != nil {
			return agents.Result{}, err
		}
		return agents.Result{Action: action, Interaction: resolved}, nil
	}
	return agents.Result{Action: action}, nil
}

// executeVerify lets an agent verify a submitted task directly. The
// claimer consented to verification by submitting, so the interaction
// resolves immediately with the verifier as initiator.
func (o *Orchestrator) executeVerify(epoch, step int, a *core.Agent, action core.Action) (agents.Result, error) {
	task := o.env.Task(action.TaskID)
	if task == nil {
		return o.dropAction(epoch, step, action, core.FailureNoSuchTask)
	}
	if task.Submission == "" {
		return o.dropAction(epoch, step, action, core.FailureNoSubmission)
	}
	if task.Claimer == a.ID {
		return o.dropAction(epoch, step, action, core.FailureInvalidTaskTarget)
	}

	reported, truth := actionObservables(action)
	id := o.env.ProposeInteraction(epoch, step, core.InteractionTaskVerify, a.ID, task.Claimer, recordedObservables(reported, truth), proxy.VHat(truth, o.cfg.ProxyWeights))
	o.interactionTask[id] = action.TaskID

	if _, err := o.log.Append(epoch, step, core.EventActionEmitted, map[string]interface{}{
		"agent_id": a.ID,
		"kind":     string(action.Kind),
		"task_id":  action.TaskID,
	}); err != nil {
		return agents.Result{}, err
	}
	if _, err := o.log.Append(epoch, step, core.EventInteractionProposed, map[string]interface{}{
		"interaction_id": id,
		"initiator":      a.ID,
		"counterparty":   task.Claimer,
		"kind":           string(core.InteractionTaskVerify),
		"task_id":        action.TaskID,
	}); err != nil {
		return agents.Result{}, err
	}

	resolved, err := o.resolveInteraction(epoch, step, o.env.PendingInteraction(id), true)
	if err != nil {
		return agents.Result{}, err
	}
	return agents.Result{Action: action, Interaction: resolved}, nil
}

// executeTradeAccept resolves the oldest pending TRADE interaction
// directed at this agent; accepting IS the counterparty's decision, so the
// policy's Accept hook is bypassed.
func (o *Orchestrator) executeTradeAccept(epoch, step int, a *core.Agent, action core.Action) (agents.Result, error) {
	var target *core.SoftInteraction
	for _, si := range o.env.PendingInteractions() {
		if si.Kind == core.InteractionTrade && si.Counterparty == a.ID {
			target = si
			break
		}
	}
	if target == nil {
		return o.dropAction(epoch, step, action, core.FailureNoSuchInteraction)
	}

	if _, err := o.log.Append(epoch, step, core.EventActionEmitted, map[string]interface{}{
		"agent_id":       a.ID,
		"kind":           string(action.Kind),
		"interaction_id": target.ID,
	}); err != nil {
		return agents.Result{}, err
	}

	resolved, err := o.resolveInteraction(epoch, step, target, true)
	if err != nil {
		return agents.Result{}, err
	}
	return agents.Result{Action: action, Interaction: resolved}, nil
}

// resolveInteraction finalizes one pending interaction: acceptance
// decision, sigmoid pipeline, payoff computation, the fixed governance
// pipeline, resource settlement, and the INTERACTION_RESOLVED event. A nil
// return with nil error means the interaction was abandoned (counterparty
// unable to participate).
func (o *Orchestrator) resolveInteraction(epoch, step int, si *core.SoftInteraction, forceAccept bool) (*core.SoftInteraction, error) {
	if si == nil {
		return nil, &core.StateError{Invariant: "pending_interaction_exists", Detail: "resolution requested for unknown interaction"}
	}

	counterparty := o.env.Agent(si.Counterparty)
	if counterparty == nil || counterparty.IsFrozen(epoch) || counterparty.IsQuarantined() {
		o.env.AbandonInteraction(si.ID)
		delete(o.interactionTask, si.ID)
		if _, err := o.log.Append(epoch, step, core.EventInteractionAbandoned, map[string]interface{}{
			"interaction_id": si.ID,
			"initiator":      si.Initiator,
			"counterparty":   si.Counterparty,
		}); err != nil {
			return nil, err
		}
		return nil, nil
	}

	si.VHat, si.P = proxy.Compute(si.Observables, o.cfg.ProxyWeights, o.cfg.SigmoidK)

	accepted := forceAccept
	if !accepted {
		obs := o.buildObservation(counterparty, epoch, step)
		accepted = o.policies[si.Counterparty].Accept(obs, *si)
	}
	si.Accepted = accepted

	if accepted {
		initiator := o.env.Agent(si.Initiator)
		piA, piB, err := payoff.Compute(*si, o.cfg.Payoff, initiator.Reputation, counterparty.Reputation)
		if err != nil {
			return nil, &core.StateError{Invariant: "finite_payoffs", Detail: err.Error()}
		}
		si.PayoffA, si.PayoffB = piA, piB
	}

	if reason := o.env.ResolveInteraction(si.ID); reason != core.FailureNone {
		return nil, &core.StateError{Invariant: "resolution_matches_proposal", Detail: string(reason) + " for " + si.ID}
	}

	if err := o.gov.Evaluate(o.env, epoch, step, si); err != nil {
		return nil, err
	}

	if si.Accepted {
		o.env.MutateAgent(si.Initiator, func(ag *core.Agent) { ag.Resources += si.PayoffA })
		o.env.MutateAgent(si.Counterparty, func(ag *core.Agent) { ag.Resources += si.PayoffB })
	}
	for _, id := range []string{si.Initiator, si.Counterparty} {
		o.env.MutateAgent(id, func(ag *core.Agent) { ag.InteractionsSeen++ })
	}

	if err := o.settleTaskVerification(si); err != nil {
		return nil, err
	}

	if err := o.emitResolved(epoch, step, si); err != nil {
		return nil, err
	}

	o.recordOutcome(*si)
	o.epochInteractions = append(o.epochInteractions, *si)
	if o.telemetry != nil {
		o.telemetry.ObserveInteraction(o.cfg.ID, si)
	}
	return si, nil
}

// settleTaskVerification applies a TASK_VERIFY resolution back to the task
// pool: an accepted, non-toxic verification marks the task verified and
// pays the claimer its reward.
func (o *Orchestrator) settleTaskVerification(si *core.SoftInteraction) error {
	if si.Kind != core.InteractionTaskVerify {
		return nil
	}
	taskID := o.interactionTask[si.ID]
	delete(o.interactionTask, si.ID)
	if taskID == "" || !si.Accepted {
		return nil
	}

	verdict := si.P >= 0.5
	if reason := o.env.VerifyTask(taskID, verdict); reason != core.FailureNone {
		o.logger.Printf("verification settle skipped: task=%s reason=%s", taskID, reason)
		return nil
	}
	if verdict {
		task := o.env.Task(taskID)
		if task != nil && task.Claimer != "" {
			o.env.MutateAgent(task.Claimer, func(ag *core.Agent) { ag.Resources += task.Reward })
		}
	}
	return nil
}

func (o *Orchestrator) emitResolved(epoch, step int, si *core.SoftInteraction) error {
	_, err := o.log.Append(epoch, step, core.EventInteractionResolved, map[string]interface{}{
		"id":                      si.ID,
		"epoch":                   si.Epoch,
		"step":                    si.Step,
		"initiator":               si.Initiator,
		"counterparty":            si.Counterparty,
		"kind":                    string(si.Kind),
		"accepted":                si.Accepted,
		"v_hat":                   si.VHat,
		"p":                       si.P,
		"taxed_amount":            si.TaxedAmount,
		"payoff_a":                si.PayoffA,
		"payoff_b":                si.PayoffB,
		"audited":                 si.Audited,
		"obs_task_progress_delta": si.Observables.TaskProgressDelta,
		"obs_rework_count":        si.Observables.ReworkCount,
		"obs_verifier_rejections": si.Observables.VerifierRejections,
		"obs_engagement_delta":    si.Observables.EngagementDelta,
	})
	return err
}

// actionObservables extracts the policy's reported and ground-truth
// signal bundles from an action. A policy that reports no bias (honest,
// opportunistic) sets both identically; a missing bundle defaults to the
// other so a half-specified action still resolves.
func actionObservables(action core.Action) (reported, truth core.ProxyObservables) {
	if action.Observables != nil {
		reported = *action.Observables
	}
	truth = reported
	if action.TrueObservables != nil {
		truth = *action.TrueObservables
		if action.Observables == nil {
			reported = truth
		}
	}
	return reported, truth
}

// recordedObservables is what the environment actually measures for an
// interaction. The analog deltas (task progress, engagement) come from the
// initiator's own report, which a deceptive or adversarial policy can
// spin; the count fields (rework, verifier rejections) are tallied by the
// environment itself and cannot be misreported. Only a random audit, which
// reveals the full ground-truth v̂, can expose the spun half of the signal.
func recordedObservables(reported, truth core.ProxyObservables) core.ProxyObservables {
	return core.ProxyObservables{
		TaskProgressDelta:  reported.TaskProgressDelta,
		EngagementDelta:    reported.EngagementDelta,
		ReworkCount:        truth.ReworkCount,
		VerifierRejections: truth.VerifierRejections,
	}
}

func interactionKindFor(kind core.ActionKind) core.InteractionKind {
	switch kind {
	case core.ActionVote:
		return core.InteractionVote
	case core.ActionTradePropose, core.ActionTradeAccept:
		return core.InteractionTrade
	case core.ActionSubmitWork, core.ActionVerify:
		return core.InteractionTaskVerify
	default:
		return core.InteractionCollaborate
	}
}

// chooseVerifier picks the first agent in registration order that is able
// to verify: not the submitter, not frozen, not quarantined. Deterministic
// by construction.
func (o *Orchestrator) chooseVerifier(epoch int, submitter string) string {
	for _, a := range o.env.Agents() {
		if a.ID == submitter || a.IsFrozen(epoch) || a.IsQuarantined() {
			continue
		}
		return a.ID
	}
	return ""
}
