package eventlog

import (
	"fmt"

	"github.com/generativebots/swarm/internal/core"
)

// Replay yields events in sequence order. Since Log.Events() already
// returns them in sequence order, Replay exists as a named entry point
// for callers that want to iterate without holding the Log's internal
// buffer, e.g. a log loaded from a persisted events.jsonl file, which
// would construct a []core.Event and call Replay directly.
func Replay(events []core.Event) []core.Event {
	out := make([]core.Event, len(events))
	copy(out, events)
	return out
}

// ToInteractions reconstructs the resolved-interaction set from a replayed
// event stream. Every INTERACTION_RESOLVED
// event's payload carries the full SoftInteraction fields under well-known
// keys; this is the inverse of how the Orchestrator serializes them when
// emitting the event (internal/orchestrator/execute.go).
func ToInteractions(events []core.Event) ([]core.SoftInteraction, error) {
	var out []core.SoftInteraction
	for _, e := range events {
		if e.Type != core.EventInteractionResolved {
			continue
		}
		si, err := interactionFromPayload(e.Payload)
		if err != nil {
			return nil, fmt.Errorf("seq %d: %w", e.Seq, err)
		}
		out = append(out, si)
	}
	return out, nil
}

func interactionFromPayload(p map[string]interface{}) (core.SoftInteraction, error) {
	var si core.SoftInteraction

	id, _ := p["id"].(string)
	si.ID = id
	si.Epoch = toInt(p["epoch"])
	si.Step = toInt(p["step"])
	si.Initiator, _ = p["initiator"].(string)
	si.Counterparty, _ = p["counterparty"].(string)
	si.Kind = core.InteractionKind(toString(p["kind"]))
	si.Accepted, _ = p["accepted"].(bool)
	si.VHat = toFloat(p["v_hat"])
	si.P = toFloat(p["p"])
	si.TaxedAmount = toFloat(p["taxed_amount"])
	si.PayoffA = toFloat(p["payoff_a"])
	si.PayoffB = toFloat(p["payoff_b"])
	si.Audited, _ = p["audited"].(bool)

	si.Observables = core.ProxyObservables{
		TaskProgressDelta:  toFloat(p["obs_task_progress_delta"]),
		ReworkCount:        int(toFloat(p["obs_rework_count"])),
		VerifierRejections: int(toFloat(p["obs_verifier_rejections"])),
		EngagementDelta:    toFloat(p["obs_engagement_delta"]),
	}

	if si.ID == "" {
		return si, fmt.Errorf("missing interaction id in payload")
	}
	return si, nil
}

func toInt(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}

func toString(v interface{}) string {
	s, _ := v.(string)
	return s
}
