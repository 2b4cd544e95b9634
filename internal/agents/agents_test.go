package agents

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/generativebots/swarm/internal/core"
	"github.com/generativebots/swarm/internal/proxy"
	"github.com/generativebots/swarm/internal/rng"
)

func baseObservation(selfID string, reps map[string]float64) Observation {
	return Observation{
		Self:        &core.Agent{ID: selfID, Lifecycle: core.LifecycleActive},
		Reputations: reps,
	}
}

func proposal(p float64, k float64) core.SoftInteraction {
	// Build observables whose estimated p lands near the requested value
	// by inverting the sigmoid into a pure progress signal.
	vHat := proxy.InverseSigmoid(p, k)
	return core.SoftInteraction{
		Observables: core.ProxyObservables{
			TaskProgressDelta: vHat / 0.4, // only the progress weight is exercised
			ReworkCount:       0,
			EngagementDelta:   0,
		},
	}
}

func TestHonestAcceptThreshold(t *testing.T) {
	w := core.ProxyWeights{Progress: 1} // isolate the progress channel
	h := NewHonest(w, 3.0)
	obs := baseObservation("h-1", nil)

	low := core.SoftInteraction{Observables: core.ProxyObservables{TaskProgressDelta: -0.5, ReworkCount: 1, VerifierRejections: 1}}
	if h.Accept(obs, low) {
		t.Fatalf("honest agent must reject a low-p proposal")
	}
	high := core.SoftInteraction{Observables: core.ProxyObservables{TaskProgressDelta: 0.8}}
	if !h.Accept(obs, high) {
		t.Fatalf("honest agent must accept a high-p proposal")
	}
}

func TestHonestPrefersSubmittingClaimedTask(t *testing.T) {
	h := NewHonest(core.DefaultProxyWeights(), 3.0)
	obs := baseObservation("h-1", map[string]float64{"h-2": 0.5})
	obs.AvailableTasks = []*core.Task{{ID: "t-1", Claimer: "h-1"}}

	act := h.Act(obs)
	if act.Kind != core.ActionSubmitWork || act.TaskID != "t-1" {
		t.Fatalf("expected SUBMIT_WORK for claimed task, got %+v", act)
	}
	if act.Observables == nil || act.TrueObservables == nil || *act.Observables != *act.TrueObservables {
		t.Fatalf("honest submissions must report ground truth unchanged")
	}
}

func TestHonestClaimsOpenTask(t *testing.T) {
	h := NewHonest(core.DefaultProxyWeights(), 3.0)
	obs := baseObservation("h-1", nil)
	obs.AvailableTasks = []*core.Task{{ID: "t-1"}}

	act := h.Act(obs)
	if act.Kind != core.ActionClaimTask || act.TaskID != "t-1" {
		t.Fatalf("expected CLAIM_TASK, got %+v", act)
	}
}

func TestHonestPassesWhenAlone(t *testing.T) {
	h := NewHonest(core.DefaultProxyWeights(), 3.0)
	obs := baseObservation("h-1", map[string]float64{"h-1": 0.5})
	if act := h.Act(obs); act.Kind != core.ActionPass {
		t.Fatalf("expected PASS with no counterparties, got %+v", act)
	}
}

func TestOpportunisticRandomAcceptance(t *testing.T) {
	o := NewOpportunistic(core.DefaultProxyWeights(), 3.0, rng.New(42))
	obs := baseObservation("o-1", nil)

	// A proposal far below the 0.2 threshold: acceptance happens only via
	// the 30% random branch. Over many trials, some accept and some not.
	bad := core.SoftInteraction{Observables: core.ProxyObservables{TaskProgressDelta: -1, ReworkCount: 10, VerifierRejections: 10, EngagementDelta: -1}}
	accepts := 0
	for i := 0; i < 200; i++ {
		if o.Accept(obs, bad) {
			accepts++
		}
	}
	if accepts == 0 || accepts == 200 {
		t.Fatalf("random acceptance branch looks broken: %d/200", accepts)
	}
	if accepts < 30 || accepts > 90 {
		t.Fatalf("acceptance rate should hover near 30%%, got %d/200", accepts)
	}
}

func TestDeceptiveHonestDuringTrustPhase(t *testing.T) {
	d := NewDeceptive(core.DefaultProxyWeights(), 3.0, rng.New(1))
	obs := baseObservation("d-1", map[string]float64{"h-1": 0.9})
	obs.Self.DeceptiveTrustThreshold = 5
	obs.Self.InteractionsSeen = 2 // still below T

	act := d.Act(obs)
	if act.Kind != core.ActionCollaborate {
		t.Fatalf("expected COLLABORATE, got %+v", act)
	}
	if *act.Observables != *act.TrueObservables {
		t.Fatalf("deceptive agent must report truthfully before T is reached")
	}
}

func TestDeceptiveExploitsAfterTrustPhase(t *testing.T) {
	d := NewDeceptive(core.DefaultProxyWeights(), 3.0, rng.New(1))
	obs := baseObservation("d-1", map[string]float64{"h-1": 0.9})
	obs.Self.DeceptiveTrustThreshold = 5
	obs.Self.InteractionsSeen = 5 // T reached

	act := d.Act(obs)
	if act.Kind != core.ActionCollaborate {
		t.Fatalf("expected COLLABORATE, got %+v", act)
	}
	if *act.Observables == *act.TrueObservables {
		t.Fatalf("deceptive agent must diverge from ground truth after T")
	}
	reportedV := proxy.VHat(*act.Observables, core.DefaultProxyWeights())
	trueV := proxy.VHat(*act.TrueObservables, core.DefaultProxyWeights())
	if trueV >= reportedV {
		t.Fatalf("exploit must report better than truth: reported %v true %v", reportedV, trueV)
	}
}

func TestDrawTrustThresholdBoundedAndVaried(t *testing.T) {
	seen := make(map[int]bool)
	for seed := int64(0); seed < 50; seed++ {
		v := DrawTrustThreshold(rng.New(seed))
		if v < DeceptiveTrustThresholdMin || v > DeceptiveTrustThresholdMax {
			t.Fatalf("threshold %d out of bounds", v)
		}
		seen[v] = true
	}
	if len(seen) < 3 {
		t.Fatalf("threshold must be drawn, not constant; saw only %d distinct values", len(seen))
	}
}

func TestAdversarialPrefersGroupPeer(t *testing.T) {
	r := rng.New(7)
	a := NewAdversarial(core.DefaultProxyWeights(), 3.0, r, []string{"adv-2"})
	obs := baseObservation("adv-1", map[string]float64{"adv-2": 0.5, "h-1": 0.9})

	votes, attacks := 0, 0
	for i := 0; i < 100; i++ {
		act := a.Act(obs)
		switch {
		case act.Kind == core.ActionVote && act.TargetID == "adv-2":
			votes++
		case act.Kind == core.ActionCollaborate:
			attacks++
		}
	}
	if votes == 0 {
		t.Fatalf("adversarial never voted for its group peer")
	}
	if attacks == 0 {
		t.Fatalf("adversarial never attacked outside its group")
	}
	if votes < attacks {
		t.Fatalf("peer votes should dominate with bias 0.8: votes=%d attacks=%d", votes, attacks)
	}
}

func TestAdversarialTargetsBestReputation(t *testing.T) {
	a := NewAdversarial(core.DefaultProxyWeights(), 3.0, rng.New(7), nil)
	obs := baseObservation("adv-1", map[string]float64{"h-1": 0.9, "h-2": 0.3})

	act := a.Act(obs)
	if act.Kind != core.ActionCollaborate || act.TargetID != "h-1" {
		t.Fatalf("expected attack on highest-reputation agent, got %+v", act)
	}
	reportedV := proxy.VHat(*act.Observables, core.DefaultProxyWeights())
	trueV := proxy.VHat(*act.TrueObservables, core.DefaultProxyWeights())
	if trueV >= reportedV {
		t.Fatalf("poisoned interaction must report better than truth")
	}
}

func TestAdversarialAcceptsEverything(t *testing.T) {
	a := NewAdversarial(core.DefaultProxyWeights(), 3.0, rng.New(7), nil)
	obs := baseObservation("adv-1", nil)
	terrible := core.SoftInteraction{Observables: core.ProxyObservables{TaskProgressDelta: -1, ReworkCount: 10}}
	if !a.Accept(obs, terrible) {
		t.Fatalf("adversarial should accept even terrible proposals")
	}
}

func TestExternalProxyDelegates(t *testing.T) {
	want := core.Action{Kind: core.ActionPost, AgentID: "x-1"}
	p := NewExternalProxy(func(ctx context.Context, obs Observation) (core.Action, error) {
		return want, nil
	}, time.Second)

	got := p.Act(baseObservation("x-1", nil))
	if got.Kind != want.Kind {
		t.Fatalf("expected delegated action, got %+v", got)
	}
}

func TestExternalProxyTimeoutReturnsPass(t *testing.T) {
	p := NewExternalProxy(func(ctx context.Context, obs Observation) (core.Action, error) {
		<-ctx.Done()
		return core.Action{Kind: core.ActionPost}, ctx.Err()
	}, 10*time.Millisecond)

	got := p.Act(baseObservation("x-1", nil))
	if got.Kind != core.ActionPass {
		t.Fatalf("timeout must return PASS, got %+v", got)
	}
	if !p.ShouldQuarantine(1) {
		t.Fatalf("timeout must count as a failure")
	}
}

func TestExternalProxyErrorReturnsPass(t *testing.T) {
	p := NewExternalProxy(func(ctx context.Context, obs Observation) (core.Action, error) {
		return core.Action{}, errors.New("malformed response")
	}, time.Second)

	if got := p.Act(baseObservation("x-1", nil)); got.Kind != core.ActionPass {
		t.Fatalf("callback error must return PASS, got %+v", got)
	}
}

func TestExternalProxyQuarantineThreshold(t *testing.T) {
	p := NewExternalProxy(func(ctx context.Context, obs Observation) (core.Action, error) {
		return core.Action{}, errors.New("boom")
	}, time.Second)

	obs := baseObservation("x-1", nil)
	for i := 0; i < DefaultQuarantineThreshold-1; i++ {
		p.Act(obs)
		if p.ShouldQuarantine(0) {
			t.Fatalf("quarantine tripped too early at failure %d", i+1)
		}
	}
	p.Act(obs)
	if !p.ShouldQuarantine(0) {
		t.Fatalf("quarantine should trip at the default threshold")
	}
}

func TestExternalProxySuccessResetsFailures(t *testing.T) {
	fail := true
	p := NewExternalProxy(func(ctx context.Context, obs Observation) (core.Action, error) {
		if fail {
			return core.Action{}, errors.New("boom")
		}
		return core.Pass(obs.Self.ID), nil
	}, time.Second)

	obs := baseObservation("x-1", nil)
	p.Act(obs)
	p.Act(obs)
	fail = false
	p.Act(obs)
	if p.ShouldQuarantine(1) {
		t.Fatalf("a success must reset the consecutive-failure counter")
	}
}

func TestFactoryCoversLocalArchetypes(t *testing.T) {
	r := rng.New(1)
	w := core.DefaultProxyWeights()
	for _, arch := range []core.Archetype{
		core.ArchetypeHonest, core.ArchetypeOpportunistic,
		core.ArchetypeDeceptive, core.ArchetypeAdversarial,
	} {
		if New(arch, w, 3.0, r, nil) == nil {
			t.Fatalf("factory returned nil for %s", arch)
		}
	}
}
