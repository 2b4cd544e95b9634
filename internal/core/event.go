package core

// EventType enumerates the typed, append-only event log entries.
type EventType string

const (
	EventAgentRegistered       EventType = "AGENT_REGISTERED"
	EventActionEmitted         EventType = "ACTION_EMITTED"
	EventInteractionProposed   EventType = "INTERACTION_PROPOSED"
	EventInteractionResolved   EventType = "INTERACTION_RESOLVED"
	EventInteractionAbandoned  EventType = "INTERACTION_ABANDONED"
	EventAuditExecuted         EventType = "AUDIT_EXECUTED"
	EventAgentFrozen           EventType = "AGENT_FROZEN"
	EventAgentUnfrozen         EventType = "AGENT_UNFROZEN"
	EventAgentQuarantined      EventType = "AGENT_QUARANTINED"
	EventStakeSlashed          EventType = "STAKE_SLASHED"
	EventCollusionFlagged      EventType = "COLLUSION_FLAGGED"
	EventEpochMetrics          EventType = "EPOCH_METRICS"
	EventAgentSkipped          EventType = "AGENT_SKIPPED"
	EventFrozenActionDropped   EventType = "FROZEN_ACTION_DROPPED"
	EventRunCancelled          EventType = "RUN_CANCELLED"
	EventRunCrashed            EventType = "RUN_CRASHED"
)

// Event is a single sequence-numbered, typed log entry. TimestampLogical
// is a monotonic counter derived from Seq, never wall-clock.
type Event struct {
	Seq              uint64                 `json:"seq"`
	TimestampLogical uint64                 `json:"timestamp_logical"`
	Epoch            int                    `json:"epoch"`
	Step             int                    `json:"step"`
	Type             EventType              `json:"type"`
	Payload          map[string]interface{} `json:"payload"`
}
