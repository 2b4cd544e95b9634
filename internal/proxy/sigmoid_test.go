package proxy

import (
	"math"
	"testing"

	"github.com/generativebots/swarm/internal/core"
)

const tolerance = 1e-12

func TestSigmoidMidpoint(t *testing.T) {
	if p := Sigmoid(0, 3.0); math.Abs(p-0.5) > tolerance {
		t.Fatalf("sigmoid(0) = %v, want 0.5", p)
	}
}

func TestSigmoidMonotonic(t *testing.T) {
	prev := -1.0
	for v := -1.0; v <= 1.0; v += 0.01 {
		p := Sigmoid(v, 3.0)
		if p <= prev {
			t.Fatalf("sigmoid not strictly increasing at v=%v", v)
		}
		prev = p
	}
}

func TestSigmoidInverseRoundtrip(t *testing.T) {
	for _, v := range []float64{-1, -0.5, -0.1, 0, 0.1, 0.5, 1} {
		p := Sigmoid(v, 3.0)
		back := InverseSigmoid(p, 3.0)
		if math.Abs(back-v) > 1e-9 {
			t.Fatalf("roundtrip v=%v -> p=%v -> %v", v, p, back)
		}
	}
}

func TestLargeKApproachesStepFunction(t *testing.T) {
	if p := Sigmoid(0.1, 1e6); p < 1-1e-9 {
		t.Fatalf("large k positive v̂ should saturate to 1, got %v", p)
	}
	if p := Sigmoid(-0.1, 1e6); p > 1e-9 {
		t.Fatalf("large k negative v̂ should saturate to 0, got %v", p)
	}
}

func TestVHatClamped(t *testing.T) {
	w := core.ProxyWeights{Progress: 10, Rework: 10, Rejections: 10, Engagement: 10}
	obs := core.ProxyObservables{TaskProgressDelta: 1, EngagementDelta: 1}
	if v := VHat(obs, w); v != 1 {
		t.Fatalf("v̂ should clamp to 1, got %v", v)
	}
	obs = core.ProxyObservables{TaskProgressDelta: -1, EngagementDelta: -1, ReworkCount: 50, VerifierRejections: 50}
	if v := VHat(obs, w); v != -1 {
		t.Fatalf("v̂ should clamp to -1, got %v", v)
	}
}

func TestFeaturesCleanWorkIsPositiveEvidence(t *testing.T) {
	_, rework, rejections, _ := Features(core.ProxyObservables{})
	if rework != 1 || rejections != 1 {
		t.Fatalf("zero counts should contribute +1, got rework=%v rejections=%v", rework, rejections)
	}
}

func TestFeaturesCountDecayBounded(t *testing.T) {
	prev := 2.0
	for count := 0; count <= 100; count++ {
		_, rework, _, _ := Features(core.ProxyObservables{ReworkCount: count})
		if rework <= -1 || rework > 1 {
			t.Fatalf("rework feature out of (-1,1] at count=%d: %v", count, rework)
		}
		if rework >= prev {
			t.Fatalf("rework feature not strictly decreasing at count=%d", count)
		}
		prev = rework
	}
}

func TestFeaturesClampAnalogInputs(t *testing.T) {
	progress, _, _, engagement := Features(core.ProxyObservables{TaskProgressDelta: 7, EngagementDelta: -7})
	if progress != 1 || engagement != -1 {
		t.Fatalf("analog deltas should clamp to [-1,1], got %v / %v", progress, engagement)
	}
}

func TestComputeDeterministic(t *testing.T) {
	obs := core.ProxyObservables{TaskProgressDelta: 0.7, ReworkCount: 2, VerifierRejections: 1, EngagementDelta: 0.5}
	w := core.DefaultProxyWeights()
	v1, p1 := Compute(obs, w, 3.0)
	v2, p2 := Compute(obs, w, 3.0)
	if v1 != v2 || p1 != p2 {
		t.Fatalf("pipeline not deterministic: (%v,%v) vs (%v,%v)", v1, p1, v2, p2)
	}
	if math.Abs(p1-Sigmoid(v1, 3.0)) > tolerance {
		t.Fatalf("p must equal sigmoid(k·v̂): p=%v sigmoid=%v", p1, Sigmoid(v1, 3.0))
	}
}

func TestDefaultWeightsSumToOne(t *testing.T) {
	w := core.DefaultProxyWeights()
	sum := w.Progress + w.Rework + w.Rejections + w.Engagement
	if math.Abs(sum-1.0) > tolerance {
		t.Fatalf("default weights sum to %v, want 1.0", sum)
	}
}

func TestDiligentSignalClearsHonestBound(t *testing.T) {
	// A clean, high-progress interaction must come out well above
	// p=0.9 so an all-honest population's mean toxicity stays under 0.1.
	obs := core.ProxyObservables{TaskProgressDelta: 0.7, EngagementDelta: 0.5}
	_, p := Compute(obs, core.DefaultProxyWeights(), DefaultK)
	if p < 0.9 {
		t.Fatalf("diligent signal p=%v, want >= 0.9", p)
	}
}
