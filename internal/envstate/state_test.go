package envstate

import (
	"testing"
	"time"

	"github.com/generativebots/swarm/internal/core"
)

func newTestAgent(id string) *core.Agent {
	return &core.Agent{
		ID:         id,
		Archetype:  core.ArchetypeHonest,
		CreatedAt:  time.Time{},
		Reputation: 0.5,
		Resources:  10,
	}
}

func TestClaimTaskAtomicity(t *testing.T) {
	env := New("test", nil)
	taskID := env.AddTask(5)

	if reason := env.ClaimTask("agent-a", taskID); reason != core.FailureNone {
		t.Fatalf("expected first claim to succeed, got %s", reason)
	}
	if reason := env.ClaimTask("agent-b", taskID); reason != core.FailureTaskAlreadyClaimed {
		t.Fatalf("expected TASK_ALREADY_CLAIMED, got %s", reason)
	}
}

func TestClaimTaskUnknownID(t *testing.T) {
	env := New("test", nil)
	if reason := env.ClaimTask("agent-a", "does-not-exist"); reason != core.FailureNoSuchTask {
		t.Fatalf("expected NO_SUCH_TASK, got %s", reason)
	}
}

func TestSubmitWorkRequiresClaim(t *testing.T) {
	env := New("test", nil)
	taskID := env.AddTask(5)
	if reason := env.SubmitWork("agent-a", taskID, "payload"); reason != core.FailureInvalidTaskTarget {
		t.Fatalf("expected INVALID_TASK_TARGET, got %s", reason)
	}

	env.ClaimTask("agent-a", taskID)
	if reason := env.SubmitWork("agent-a", taskID, "payload"); reason != core.FailureNone {
		t.Fatalf("expected submit to succeed, got %s", reason)
	}
}

func TestVerifyTaskRequiresSubmission(t *testing.T) {
	env := New("test", nil)
	taskID := env.AddTask(5)
	env.ClaimTask("agent-a", taskID)

	if reason := env.VerifyTask(taskID, true); reason != core.FailureNoSubmission {
		t.Fatalf("expected NO_SUBMISSION, got %s", reason)
	}

	env.SubmitWork("agent-a", taskID, "payload")
	if reason := env.VerifyTask(taskID, true); reason != core.FailureNone {
		t.Fatalf("expected verify to succeed, got %s", reason)
	}
	task := env.Task(taskID)
	if task.Verified == nil || !*task.Verified {
		t.Fatalf("expected task to be verified true, got %+v", task)
	}
}

func TestResolveInteractionUnknownID(t *testing.T) {
	env := New("test", nil)
	if reason := env.ResolveInteraction("does-not-exist"); reason != core.FailureNoSuchInteraction {
		t.Fatalf("expected NO_SUCH_INTERACTION, got %s", reason)
	}
}

func TestProposeAndResolveInteraction(t *testing.T) {
	env := New("test", nil)
	id := env.ProposeInteraction(0, 0, core.InteractionCollaborate, "a", "b", core.ProxyObservables{}, 0)

	pending := env.PendingInteractions()
	if len(pending) != 1 || pending[0].ID != id {
		t.Fatalf("expected one pending interaction with id %s, got %+v", id, pending)
	}

	if reason := env.ResolveInteraction(id); reason != core.FailureNone {
		t.Fatalf("expected resolve to succeed, got %s", reason)
	}
	if len(env.PendingInteractions()) != 0 {
		t.Fatalf("expected no pending interactions after resolve")
	}
}

func TestGeneratedIDsAreDeterministic(t *testing.T) {
	a := New("same-scenario", nil)
	b := New("same-scenario", nil)
	taskA, taskB := a.AddTask(1), b.AddTask(1)
	if taskA != taskB {
		t.Fatalf("task ids diverged between identically-seeded environments")
	}
	idA := a.ProposeInteraction(0, 0, core.InteractionVote, "x", "y", core.ProxyObservables{}, 0)
	idB := b.ProposeInteraction(0, 0, core.InteractionVote, "x", "y", core.ProxyObservables{}, 0)
	if idA != idB {
		t.Fatalf("interaction ids diverged: %s vs %s", idA, idB)
	}

	c := New("other-scenario", nil)
	if c.AddTask(1) == taskA {
		t.Fatalf("expected distinct scenarios to namespace ids apart")
	}
}

func TestPendingInteractionsKeepProposalOrder(t *testing.T) {
	env := New("test", nil)
	var ids []string
	for i := 0; i < 10; i++ {
		ids = append(ids, env.ProposeInteraction(0, 0, core.InteractionVote, "a", "b", core.ProxyObservables{}, 0))
	}
	pending := env.PendingInteractions()
	for i, si := range pending {
		if si.ID != ids[i] {
			t.Fatalf("pending order diverged from proposal order at %d", i)
		}
	}
}

func TestMutateAgentUnknown(t *testing.T) {
	env := New("test", nil)
	reason := env.MutateAgent("ghost", func(a *core.Agent) { a.Resources += 1 })
	if reason != core.FailureNoSuchAgent {
		t.Fatalf("expected NO_SUCH_AGENT, got %s", reason)
	}
}

func TestMutateAgentAppliesUnderLock(t *testing.T) {
	env := New("test", nil)
	env.RegisterAgent(newTestAgent("a"))

	reason := env.MutateAgent("a", func(a *core.Agent) { a.Resources += 5 })
	if reason != core.FailureNone {
		t.Fatalf("expected mutation to succeed, got %s", reason)
	}
	if got := env.Agent("a").Resources; got != 15 {
		t.Fatalf("expected resources 15, got %v", got)
	}
}

func TestCheckInvariantsNegativeStake(t *testing.T) {
	env := New("test", nil)
	agent := newTestAgent("a")
	env.RegisterAgent(agent)
	env.MutateAgent("a", func(a *core.Agent) { a.Stake = -1 })

	err := env.CheckInvariants()
	if err == nil {
		t.Fatalf("expected a StateError for negative stake")
	}
	if _, ok := err.(*core.StateError); !ok {
		t.Fatalf("expected *core.StateError, got %T", err)
	}
}

func TestRateLimiterEpochWindowPerAgent(t *testing.T) {
	specs := []core.RateLimitSpec{
		{Archetype: core.ArchetypeOpportunistic, Action: core.ActionTradePropose, MaxPerEpoch: 2, BurstPerEpoch: 3},
	}
	env := New("test", specs)

	allowed := 0
	for i := 0; i < 5; i++ {
		if env.AllowAction("a", core.ArchetypeOpportunistic, core.ActionTradePropose, 0) {
			allowed++
		}
	}
	if allowed != 3 {
		t.Fatalf("expected burst ceiling of 3 allowed calls in epoch 0, got %d", allowed)
	}

	// Another agent of the same archetype has its own counter.
	if !env.AllowAction("b", core.ArchetypeOpportunistic, core.ActionTradePropose, 0) {
		t.Fatalf("expected agent b to have its own window")
	}

	// A new epoch resets the window.
	if !env.AllowAction("a", core.ArchetypeOpportunistic, core.ActionTradePropose, 1) {
		t.Fatalf("expected epoch 1 to start with a fresh window")
	}
}

func TestRateLimiterUnconfiguredActionUnlimited(t *testing.T) {
	env := New("test", nil)
	for i := 0; i < 100; i++ {
		if !env.AllowAction("a", core.ArchetypeHonest, core.ActionPost, 0) {
			t.Fatalf("expected unconfigured action to always be allowed, failed at i=%d", i)
		}
	}
}

func TestTasksVisibleToIncludesOwnClaims(t *testing.T) {
	env := New("test", nil)
	open := env.AddTask(1)
	mine := env.AddTask(2)
	theirs := env.AddTask(3)
	env.ClaimTask("me", mine)
	env.ClaimTask("them", theirs)

	visible := env.TasksVisibleTo("me")
	if len(visible) != 2 {
		t.Fatalf("expected 2 visible tasks, got %d", len(visible))
	}
	if visible[0].ID != open || visible[1].ID != mine {
		t.Fatalf("expected creation-ordered [open, mine], got %+v", visible)
	}
}
