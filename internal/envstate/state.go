// Package envstate owns the mutable simulation ledger: the agent
// registry, the task pool, pending (proposed but unresolved) interactions,
// and the post feed. Every mutation goes through a method that either
// succeeds atomically or leaves state unchanged and returns a typed
// core.FailureReason.
//
// All collections are id-keyed maps guarded by a single mutex, with
// explicit order indexes where iteration order matters.
package envstate

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/generativebots/swarm/internal/core"
)

// Post is a lightweight feed record left by ActionPost/ActionReply; the
// kernel does not interpret post content beyond recording it for the
// event log.
type Post struct {
	ID       string
	AgentID  string
	TargetID string // "" for a top-level POST, parent post id for REPLY
	Payload  map[string]interface{}
}

// Environment is the kernel's mutable world state. The Orchestrator is the
// only caller that holds a *Environment; agent policies only ever see
// read-only snapshots (core.Agent.Clone, Task copies) passed in via
// Observation.
//
// Every collection that is iterated keeps an explicit insertion-order
// index alongside its map: Go map iteration order is randomized, and any
// order-dependent read here would leak into the visitation/resolution
// order and break byte-identical replay.
type Environment struct {
	mu sync.Mutex

	agents     map[string]*core.Agent
	agentOrder []string

	tasks     map[string]*core.Task
	taskOrder []string

	pending      map[string]*core.SoftInteraction
	pendingOrder []string

	posts []Post

	rateLimiter *RateLimiter

	// idNamespace seeds deterministic SHA1 UUIDs for tasks, posts and
	// interactions. The ids appear verbatim in the event log, so they must
	// be a pure function of (scenario id, creation ordinal), never random.
	idNamespace uuid.UUID

	nextTaskSeq  int
	nextPostSeq  int
	nextInterSeq int
}

// New constructs an empty Environment wired to the scenario's rate-limit
// specs. scenarioID namespaces every generated id so two scenarios never
// collide in downstream run databases. Agents are registered afterward via
// RegisterAgent.
func New(scenarioID string, rateLimits []core.RateLimitSpec) *Environment {
	return &Environment{
		agents:      make(map[string]*core.Agent),
		tasks:       make(map[string]*core.Task),
		pending:     make(map[string]*core.SoftInteraction),
		rateLimiter: NewRateLimiter(rateLimits),
		idNamespace: uuid.NewSHA1(uuid.NameSpaceOID, []byte("swarm/"+scenarioID)),
	}
}

func (e *Environment) newID(kind string, seq int) string {
	return uuid.NewSHA1(e.idNamespace, []byte(fmt.Sprintf("%s-%d", kind, seq))).String()
}

// RegisterAgent adds a new agent to the registry. Called once per agent at
// scenario setup, before any epoch runs.
func (e *Environment) RegisterAgent(a *core.Agent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.agents[a.ID]; !ok {
		e.agentOrder = append(e.agentOrder, a.ID)
	}
	e.agents[a.ID] = a
}

// Agent returns a read-only snapshot of the agent, or nil if unknown.
func (e *Environment) Agent(id string) *core.Agent {
	e.mu.Lock()
	defer e.mu.Unlock()
	a, ok := e.agents[id]
	if !ok {
		return nil
	}
	return a.Clone()
}

// Agents returns a read-only snapshot slice of every registered agent in
// registration order, the stable base order every scheduling mode starts
// from.
func (e *Environment) Agents() []*core.Agent {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*core.Agent, 0, len(e.agentOrder))
	for _, id := range e.agentOrder {
		out = append(out, e.agents[id].Clone())
	}
	return out
}

// AgentIDs returns every registered agent id in registration order.
func (e *Environment) AgentIDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.agentOrder))
	copy(out, e.agentOrder)
	return out
}

// MutateAgent applies fn to the live agent under the Environment's lock.
// fn must not retain the pointer past its call. This is the single choke
// point every governance/payoff mutation passes through, keeping
// Reputation/Resources/Stake/lifecycle changes race-free.
func (e *Environment) MutateAgent(id string, fn func(*core.Agent)) core.FailureReason {
	e.mu.Lock()
	defer e.mu.Unlock()
	a, ok := e.agents[id]
	if !ok {
		return core.FailureNoSuchAgent
	}
	fn(a)
	return core.FailureNone
}

// CheckInvariants scans the ledger for states that must never emerge
// mid-run (negative stake, NaN reputation) and returns a StateError on
// the first violation.
func (e *Environment) CheckInvariants() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, id := range e.agentOrder {
		a := e.agents[id]
		if a.Stake < 0 {
			return &core.StateError{Invariant: "non_negative_stake", Detail: fmt.Sprintf("agent %s stake %v", id, a.Stake)}
		}
		if a.Reputation != a.Reputation { // NaN
			return &core.StateError{Invariant: "finite_reputation", Detail: fmt.Sprintf("agent %s reputation is NaN", id)}
		}
	}
	return nil
}

// AddTask inserts a new unclaimed task into the pool, returning its id.
func (e *Environment) AddTask(reward float64) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextTaskSeq++
	id := e.newID("task", e.nextTaskSeq)
	e.tasks[id] = &core.Task{ID: id, Reward: reward}
	e.taskOrder = append(e.taskOrder, id)
	return id
}

// Task returns a copy of the task, or nil if unknown.
func (e *Environment) Task(id string) *core.Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.tasks[id]
	if !ok {
		return nil
	}
	cp := *t
	return &cp
}

// TasksVisibleTo returns copies of every task agentID can act on, in
// creation order: open unclaimed tasks plus tasks it has claimed itself.
func (e *Environment) TasksVisibleTo(agentID string) []*core.Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []*core.Task
	for _, id := range e.taskOrder {
		t := e.tasks[id]
		if t.Claimer == "" || t.Claimer == agentID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out
}

// ClaimTask atomically assigns an unclaimed task to agentID. Fails with
// NoSuchTask if the id is unknown, TaskAlreadyClaimed if another agent
// already holds it.
func (e *Environment) ClaimTask(agentID, taskID string) core.FailureReason {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, ok := e.tasks[taskID]
	if !ok {
		return core.FailureNoSuchTask
	}
	if t.Claimer != "" {
		return core.FailureTaskAlreadyClaimed
	}
	t.Claimer = agentID
	return core.FailureNone
}

// SubmitWork records a submission against a task the agent has claimed.
// Fails with InvalidTaskTarget if the agent is not the claimer.
func (e *Environment) SubmitWork(agentID, taskID, submission string) core.FailureReason {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, ok := e.tasks[taskID]
	if !ok {
		return core.FailureNoSuchTask
	}
	if t.Claimer != agentID {
		return core.FailureInvalidTaskTarget
	}
	t.Submission = submission
	return core.FailureNone
}

// VerifyTask records a verifier's true/false verdict against a submitted
// task. Fails with NoSubmission if nothing has been submitted yet.
func (e *Environment) VerifyTask(taskID string, verdict bool) core.FailureReason {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, ok := e.tasks[taskID]
	if !ok {
		return core.FailureNoSuchTask
	}
	if t.Submission == "" {
		return core.FailureNoSubmission
	}
	t.Verified = &verdict
	return core.FailureNone
}

// AddPost appends a post/reply to the feed and returns its id.
func (e *Environment) AddPost(agentID, targetID string, payload map[string]interface{}) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextPostSeq++
	id := e.newID("post", e.nextPostSeq)
	e.posts = append(e.posts, Post{ID: id, AgentID: agentID, TargetID: targetID, Payload: payload})
	return id
}

// Feed returns the trailing n posts, oldest first. n <= 0 returns the
// whole feed.
func (e *Environment) Feed(n int) []Post {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := 0
	if n > 0 && len(e.posts) > n {
		start = len(e.posts) - n
	}
	out := make([]Post, len(e.posts)-start)
	copy(out, e.posts[start:])
	return out
}

// ProposeInteraction registers a not-yet-resolved interaction (a
// COLLABORATE/TRADE/VOTE/TASK_VERIFY pairing awaiting the counterparty's
// acceptance) and returns its id.
func (e *Environment) ProposeInteraction(epoch, step int, kind core.InteractionKind, initiator, counterparty string, obs core.ProxyObservables, trueVHat float64) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextInterSeq++
	id := e.newID("interaction", e.nextInterSeq)
	e.pending[id] = &core.SoftInteraction{
		ID:           id,
		Epoch:        epoch,
		Step:         step,
		Initiator:    initiator,
		Counterparty: counterparty,
		Kind:         kind,
		Observables:  obs,
		TrueVHat:     trueVHat,
	}
	e.pendingOrder = append(e.pendingOrder, id)
	return id
}

// PendingInteraction returns a copy of a pending interaction, or nil.
func (e *Environment) PendingInteraction(id string) *core.SoftInteraction {
	e.mu.Lock()
	defer e.mu.Unlock()
	si, ok := e.pending[id]
	if !ok {
		return nil
	}
	cp := *si
	return &cp
}

// PendingInteractions returns every interaction proposed but not yet
// resolved, in proposal order, for the Orchestrator's deferred same-step
// resolution sweep.
func (e *Environment) PendingInteractions() []*core.SoftInteraction {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*core.SoftInteraction, 0, len(e.pendingOrder))
	for _, id := range e.pendingOrder {
		if si, ok := e.pending[id]; ok {
			cp := *si
			out = append(out, &cp)
		}
	}
	return out
}

// ResolveInteraction removes a pending interaction from the unresolved set.
// The caller (governance/payoff) constructs the finalized SoftInteraction
// record separately and emits it via the event log; Environment itself
// only tracks which interactions remain unresolved. Fails with
// NoSuchInteraction if the id is unknown, which the orchestrator treats as
// an invariant violation (a StateError), since every resolution must trace
// back to a proposal made this same step.
func (e *Environment) ResolveInteraction(id string) core.FailureReason {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.pending[id]; !ok {
		return core.FailureNoSuchInteraction
	}
	e.removePendingLocked(id)
	return core.FailureNone
}

// AbandonInteraction drops a pending interaction without payoff (the
// counterparty never got a turn this step, or declined to exist at all).
func (e *Environment) AbandonInteraction(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.removePendingLocked(id)
}

func (e *Environment) removePendingLocked(id string) {
	delete(e.pending, id)
	for i, pid := range e.pendingOrder {
		if pid == id {
			e.pendingOrder = append(e.pendingOrder[:i], e.pendingOrder[i+1:]...)
			break
		}
	}
}

// AllowAction consults the epoch-windowed rate limiter for this agent's
// (archetype, action) quota.
func (e *Environment) AllowAction(agentID string, archetype core.Archetype, action core.ActionKind, epoch int) bool {
	return e.rateLimiter.Allow(agentID, archetype, action, epoch)
}
