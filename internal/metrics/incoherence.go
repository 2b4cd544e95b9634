package metrics

import "gonum.org/v1/gonum/stat"

// ShadowRun is one replicate of the same scenario under a different seed,
// reduced to its per-epoch mean p, the minimal signal incoherence needs.
type ShadowRun struct {
	MeanPByEpoch []float64
}

// ComputeIncoherence implements I = D / (E + epsilon), where D is the
// Fisher dispersion (variance) of mean-p across shadow replicates for a
// given epoch, and E is the mean absolute error of the live run's mean p
// against the cross-replicate mean (the "benchmark"). This is a post-hoc
// computation over multiple seeds, not a per-epoch live computation.
func ComputeIncoherence(epoch int, liveMeanP float64, shadows []ShadowRun) float64 {
	const epsilon = 1e-9

	var samples []float64
	for _, s := range shadows {
		if epoch < len(s.MeanPByEpoch) {
			samples = append(samples, s.MeanPByEpoch[epoch])
		}
	}
	if len(samples) == 0 {
		return 0
	}

	benchmark := stat.Mean(samples, nil)
	dispersion := 0.0
	if len(samples) > 1 {
		dispersion = stat.Variance(samples, nil)
	}
	errorVsBenchmark := abs(liveMeanP - benchmark)

	return dispersion / (errorVsBenchmark + epsilon)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
