package governance

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/generativebots/swarm/internal/core"
	"github.com/generativebots/swarm/internal/envstate"
)

// collusionDetector tracks, per unordered pair (a, b), how often their
// direct interactions are mutual positive votes or task co-completions,
// plus each individual agent's own running outcome history. A pair is
// flagged once its behavior deviates from the population baseline via
// either of two independent branches, OR-combined:
//
//   - frequency branch: the pair's rate of mutual positive votes and task
//     co-completions (over all interactions directly between a and b)
//     exceeds the population mean rate plus two standard deviations.
//     Ordinary collaborations do not count toward the numerator, so two
//     agents that merely work together often are never flagged; a vote
//     ring is what stands out against a baseline of collaborators.
//   - correlation branch: the Pearson correlation of a's and b's own
//     outcome histories (each agent's trailing p sequence over the
//     interactions it participated in, capped at the collusion window and
//     trimmed to equal trailing length)
//     exceeds CollusionCorrelationThreshold: two agents whose fortunes
//     move together across the run, not merely two agents who happen to
//     interact with each other often.
type collusionDetector struct {
	windowCap  int
	corrThresh float64

	pairs         map[pairKey]*pairStats
	agentOutcomes map[string][]float64
	flaggedOnce   map[pairKey]bool
}

type pairKey struct{ a, b string }

func newPairKey(a, b string) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{a, b}
}

type pairStats struct {
	positives int // mutual positive votes + verified task co-completions
	total     int // all direct interactions between the pair
}

func newCollusionDetector(windowCap int, corrThreshold float64) *collusionDetector {
	if windowCap <= 0 {
		windowCap = 20
	}
	return &collusionDetector{
		windowCap:     windowCap,
		corrThresh:    corrThreshold,
		pairs:         make(map[pairKey]*pairStats),
		agentOutcomes: make(map[string][]float64),
		flaggedOnce:   make(map[pairKey]bool),
	}
}

func (d *collusionDetector) statsFor(key pairKey) *pairStats {
	s, ok := d.pairs[key]
	if !ok {
		s = &pairStats{}
		d.pairs[key] = s
	}
	return s
}

// mutualPositive reports whether the interaction counts toward the
// frequency branch's numerator: a favorable vote, or a task verification
// that passed.
func mutualPositive(si *core.SoftInteraction) bool {
	if si.P < 0.5 {
		return false
	}
	return si.Kind == core.InteractionVote || si.Kind == core.InteractionTaskVerify
}

// updateCollusion records this interaction's outcome against the
// initiator/counterparty pair and each agent's own history, then checks
// the frequency and correlation branches once enough history and enough
// pairs exist for a meaningful baseline.
func (e *Engine) updateCollusion(env *envstate.Environment, epoch, step int, si *core.SoftInteraction) {
	if !si.Accepted {
		return
	}
	d := e.collusion

	key := newPairKey(si.Initiator, si.Counterparty)
	s := d.statsFor(key)
	s.total++
	if mutualPositive(si) {
		s.positives++
	}

	d.agentOutcomes[si.Initiator] = appendCapped(d.agentOutcomes[si.Initiator], si.P, d.windowCap)
	d.agentOutcomes[si.Counterparty] = appendCapped(d.agentOutcomes[si.Counterparty], si.P, d.windowCap)

	if d.flaggedOnce[key] {
		return
	}
	if s.total < 5 || len(d.pairs) < 3 {
		return
	}

	freq := float64(s.positives) / float64(s.total)
	baselineMean, baselineStd := d.populationFrequencyStats(key)
	freqFlag := baselineStd >= 0 && freq > baselineMean+2*baselineStd

	corr, corrFlag := d.correlationFlag(key)

	if !freqFlag && !corrFlag {
		return
	}

	d.flaggedOnce[key] = true
	e.logger.Printf("collusion flagged: pair=(%s,%s) freq=%.3f baseline_mean=%.3f baseline_std=%.3f corr=%.3f threshold=%.3f",
		key.a, key.b, freq, baselineMean, baselineStd, corr, d.corrThresh)
	e.log.Append(epoch, step, core.EventCollusionFlagged, map[string]interface{}{
		"agent_a":       key.a,
		"agent_b":       key.b,
		"frequency":     freq,
		"baseline_mean": baselineMean,
		"baseline_std":  baselineStd,
		"correlation":   corr,
		"freq_flag":     freqFlag,
		"corr_flag":     corrFlag,
	})
}

// correlationFlag computes the Pearson correlation between a's and b's own
// outcome histories, trimmed to their common trailing length.
func (d *collusionDetector) correlationFlag(key pairKey) (corr float64, flagged bool) {
	oa, ob := d.agentOutcomes[key.a], d.agentOutcomes[key.b]
	n := min(len(oa), len(ob))
	if n < 3 {
		return 0, false
	}
	xa := oa[len(oa)-n:]
	xb := ob[len(ob)-n:]
	if stat.Variance(xa, nil) == 0 || stat.Variance(xb, nil) == 0 {
		return 0, false
	}
	corr = stat.Correlation(xa, xb, nil)
	return corr, corr > d.corrThresh
}

// populationFrequencyStats computes the mean and standard deviation of
// mutual-positive frequency across every other tracked pair, excluding the
// pair under test (its own behavior should not pull up its own baseline).
// Pairs are visited in sorted key order so the float accumulation order is
// identical on every run.
func (d *collusionDetector) populationFrequencyStats(exclude pairKey) (mean, std float64) {
	keys := make([]pairKey, 0, len(d.pairs))
	for k := range d.pairs {
		if k == exclude {
			continue
		}
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].a != keys[j].a {
			return keys[i].a < keys[j].a
		}
		return keys[i].b < keys[j].b
	})

	var freqs []float64
	for _, k := range keys {
		s := d.pairs[k]
		if s.total == 0 {
			continue
		}
		freqs = append(freqs, float64(s.positives)/float64(s.total))
	}
	if len(freqs) == 0 {
		return 0, -1
	}
	mean = stat.Mean(freqs, nil)
	if len(freqs) > 1 {
		std = stat.StdDev(freqs, nil)
	}
	return mean, std
}

func appendCapped(xs []float64, v float64, cap int) []float64 {
	xs = append(xs, v)
	if len(xs) > cap {
		xs = xs[len(xs)-cap:]
	}
	return xs
}
