// Package metrics computes the per-epoch EpochMetrics snapshot as pure
// functions over a set of resolved interactions and the agent ledger.
// Nothing here mutates state; everything is recomputable from the event
// log and agent ledger alone.
//
// The mean and variance of p and the incoherence benchmark and dispersion
// go through gonum/stat; the other averages (toxicity, payoffs, Brier, ECE)
// are plain sums.
package metrics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/generativebots/swarm/internal/core"
)

// eceBinCount is the number of equal-width bins used for expected
// calibration error.
const eceBinCount = 10

// Compute derives the epoch's EpochMetrics snapshot from its resolved
// interaction set and the agent ledger as of epoch end.
func Compute(epoch int, interactions []core.SoftInteraction, agents []*core.Agent) core.EpochMetrics {
	m := core.EpochMetrics{Epoch: epoch}

	var accepted, rejected []core.SoftInteraction
	for _, si := range interactions {
		if si.Accepted {
			accepted = append(accepted, si)
		} else {
			rejected = append(rejected, si)
		}
	}
	m.AcceptedCount = len(accepted)
	m.RejectedCount = len(rejected)

	m.ToxicityRate = toxicityRate(accepted)
	m.QualityGap = qualityGap(accepted, rejected)
	m.ConditionalLoss = conditionalLoss(accepted, interactions)

	allP := pValues(interactions)
	m.MeanP, m.VarianceP = meanVariance(allP)

	m.Brier = brier(interactions)
	m.ECE = ece(interactions)
	// Incoherence requires shadow runs across multiple seeds; this kernel
	// computes it post-hoc (see ComputeIncoherence), so a single live run
	// reports 0 here.

	m.TotalWelfare, m.GiniPayoffs = welfareAndGini(accepted)
	m.FrozenAgentCount = frozenCount(agents, epoch)
	// FlaggedPairCount is populated by the Orchestrator from the
	// governance engine's running collusion-flag count, since metrics has
	// no visibility into governance's internal pair map.

	return m
}

func toxicityRate(accepted []core.SoftInteraction) float64 {
	if len(accepted) == 0 {
		return 0
	}
	sum := 0.0
	for _, si := range accepted {
		sum += 1 - si.P
	}
	return sum / float64(len(accepted))
}

// qualityGap is mean(p | accepted) - mean(p | rejected), defined as 0
// when either bucket is empty.
func qualityGap(accepted, rejected []core.SoftInteraction) float64 {
	if len(accepted) == 0 || len(rejected) == 0 {
		return 0
	}
	return meanP(accepted) - meanP(rejected)
}

func meanP(xs []core.SoftInteraction) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x.P
	}
	return sum / float64(len(xs))
}

// conditionalLoss is mean(payoff | accepted) - mean(payoff | all), using
// total payoff (A+B) per interaction as the welfare proxy.
func conditionalLoss(accepted, all []core.SoftInteraction) float64 {
	if len(accepted) == 0 || len(all) == 0 {
		return 0
	}
	return meanPayoff(accepted) - meanPayoff(all)
}

func meanPayoff(xs []core.SoftInteraction) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x.PayoffA + x.PayoffB
	}
	return sum / float64(len(xs))
}

func pValues(xs []core.SoftInteraction) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = x.P
	}
	return out
}

func meanVariance(xs []float64) (mean, variance float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	mean = stat.Mean(xs, nil)
	if len(xs) < 2 {
		return mean, 0
	}
	variance = stat.Variance(xs, nil)
	return mean, variance
}

// hardLabel is the observed v in {0,1} used by Brier/ECE: accepted and
// non-toxic (p >= 0.5) counts as a positive outcome. Sandbox runs have no
// external ground-truth channel beyond the interaction's own accept/p
// signal, so the hard label is derived from it.
func hardLabel(si core.SoftInteraction) float64 {
	if si.Accepted && si.P >= 0.5 {
		return 1
	}
	return 0
}

func brier(interactions []core.SoftInteraction) float64 {
	if len(interactions) == 0 {
		return 0
	}
	sum := 0.0
	for _, si := range interactions {
		d := si.P - hardLabel(si)
		sum += d * d
	}
	return sum / float64(len(interactions))
}

// ece bins p into eceBinCount equal-width bins and computes the weighted
// mean absolute gap between each bin's average confidence and its average
// accuracy.
func ece(interactions []core.SoftInteraction) float64 {
	if len(interactions) == 0 {
		return 0
	}
	type bin struct {
		sumP, sumLabel float64
		count          int
	}
	bins := make([]bin, eceBinCount)
	for _, si := range interactions {
		idx := int(si.P * float64(eceBinCount))
		if idx >= eceBinCount {
			idx = eceBinCount - 1
		}
		if idx < 0 {
			idx = 0
		}
		b := &bins[idx]
		b.sumP += si.P
		b.sumLabel += hardLabel(si)
		b.count++
	}
	total := float64(len(interactions))
	sum := 0.0
	for _, b := range bins {
		if b.count == 0 {
			continue
		}
		avgP := b.sumP / float64(b.count)
		avgLabel := b.sumLabel / float64(b.count)
		sum += (float64(b.count) / total) * math.Abs(avgP-avgLabel)
	}
	return sum
}

func welfareAndGini(accepted []core.SoftInteraction) (welfare, gini float64) {
	if len(accepted) == 0 {
		return 0, 0
	}
	payoffs := make([]float64, 0, len(accepted)*2)
	for _, si := range accepted {
		welfare += si.PayoffA + si.PayoffB
		payoffs = append(payoffs, si.PayoffA, si.PayoffB)
	}
	return welfare, giniCoefficient(payoffs)
}

// giniCoefficient computes the Gini coefficient over a set of payoffs,
// shifting by the minimum so negative payoffs don't break the standard
// non-negative-income formulation.
func giniCoefficient(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	shifted := make([]float64, n)
	minV := values[0]
	for _, v := range values {
		if v < minV {
			minV = v
		}
	}
	offset := 0.0
	if minV < 0 {
		offset = -minV
	}
	sum := 0.0
	for i, v := range values {
		shifted[i] = v + offset
		sum += shifted[i]
	}
	if sum == 0 {
		return 0
	}
	sort.Float64s(shifted)
	var weightedSum float64
	for i, v := range shifted {
		weightedSum += float64(i+1) * v
	}
	return (2*weightedSum)/(float64(n)*sum) - float64(n+1)/float64(n)
}

func frozenCount(agents []*core.Agent, epoch int) int {
	count := 0
	for _, a := range agents {
		if a.IsFrozen(epoch) {
			count++
		}
	}
	return count
}
