// Package proxy implements the pure, stateless sigmoid/proxy layer:
// ProxyObservables -> (v̂, p) via a weighted linear combination followed by
// a calibrated sigmoid.
//
// Every function here is deterministic and free of floating-point
// dependence beyond IEEE-754, per the layer's contract.
package proxy

import (
	"math"

	"github.com/generativebots/swarm/internal/core"
)

// DefaultK is the sigmoid's calibration slope, p = 1/(1+exp(-k·v̂)).
const DefaultK = 3.0

// reworkDecayConstant and rejectionDecayConstant parameterize the bounded
// decay transform applied to count fields before weighting. The constants
// are pinned so reruns across versions reproduce identical labels.
const (
	reworkDecayConstant    = 0.35
	rejectionDecayConstant = 0.5
)

// boundedCountDecay maps a non-negative count to a signal in (-1, 1] via
// 1 - 2·(1 - exp(-c·count)): a zero count is full positive evidence (the
// work needed no rework / drew no rejections), and the signal decays
// smoothly toward -1 as counts grow, saturating rather than growing
// unboundedly.
func boundedCountDecay(count int, c float64) float64 {
	if count <= 0 {
		return 1
	}
	return 1 - 2*(1-math.Exp(-c*float64(count)))
}

// Features turns raw observables into the four bounded signals the weights
// combine linearly: progress and engagement pass through as-is (already in
// [-1,1] by contract); rework and rejections become bounded-decay signals
// that start at +1 for clean work and fall toward -1 as counts accumulate.
func Features(obs core.ProxyObservables) (progress, rework, rejections, engagement float64) {
	progress = clamp(obs.TaskProgressDelta, -1, 1)
	engagement = clamp(obs.EngagementDelta, -1, 1)
	rework = boundedCountDecay(obs.ReworkCount, reworkDecayConstant)
	rejections = boundedCountDecay(obs.VerifierRejections, rejectionDecayConstant)
	return
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// VHat computes v̂ = clamp(W·features(obs), -1, 1).
func VHat(obs core.ProxyObservables, w core.ProxyWeights) float64 {
	progress, rework, rejections, engagement := Features(obs)
	raw := w.Progress*progress + w.Rework*rework + w.Rejections*rejections + w.Engagement*engagement
	return clamp(raw, -1, 1)
}

// Sigmoid computes p = 1/(1+exp(-k·v̂)).
func Sigmoid(vHat, k float64) float64 {
	return 1.0 / (1.0 + math.Exp(-k*vHat))
}

// InverseSigmoid recovers v̂ from p for calibration purposes:
// v̂ = -ln(1/p - 1) / k.
func InverseSigmoid(p, k float64) float64 {
	p = clamp(p, 1e-12, 1-1e-12)
	return -math.Log(1/p-1) / k
}

// Compute runs the full observables -> (v̂, p) pipeline.
func Compute(obs core.ProxyObservables, w core.ProxyWeights, k float64) (vHat, p float64) {
	vHat = VHat(obs, w)
	p = Sigmoid(vHat, k)
	return
}
