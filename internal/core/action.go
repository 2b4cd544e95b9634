package core

// ActionKind is the tagged variant for everything an agent policy can emit.
type ActionKind string

const (
	ActionPost           ActionKind = "POST"
	ActionReply          ActionKind = "REPLY"
	ActionVote           ActionKind = "VOTE"
	ActionClaimTask      ActionKind = "CLAIM_TASK"
	ActionSubmitWork     ActionKind = "SUBMIT_WORK"
	ActionVerify         ActionKind = "VERIFY"
	ActionCollaborate    ActionKind = "COLLABORATE"
	ActionTradePropose   ActionKind = "TRADE_PROPOSE"
	ActionTradeAccept    ActionKind = "TRADE_ACCEPT"
	ActionPass           ActionKind = "PASS"
	// ActionBridge is reserved for external-proxy/bridge-specific tags;
	// the kernel schedules it identically to a local action but never
	// interprets its Payload itself.
	ActionBridge ActionKind = "BRIDGE"
)

// Action is the tagged variant every agent policy returns from Act().
// Only the fields relevant to Kind are populated; the rest are zero.
type Action struct {
	Kind     ActionKind
	AgentID  string
	TargetID string // counterparty agent id, for VOTE/COLLABORATE/TRADE_*
	TaskID   string
	Payload  map[string]interface{}

	// Observables is attached by the issuing policy for any action that
	// proposes or resolves a soft interaction (COLLABORATE, TRADE_*,
	// SUBMIT_WORK, VERIFY). It is the *reported* signal, which a deceptive
	// or adversarial policy may bias away from the ground truth the
	// Environment separately tracks for auditing.
	Observables *ProxyObservables

	// TrueObservables is the ground-truth signal behind Observables. It is
	// never part of the public SoftInteraction record; only the audit path
	// reads it. Honest and opportunistic policies set it equal to
	// Observables.
	TrueObservables *ProxyObservables
}

// Pass is the zero-cost no-op action every archetype can fall back to.
func Pass(agentID string) Action {
	return Action{Kind: ActionPass, AgentID: agentID}
}
