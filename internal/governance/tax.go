package governance

import "github.com/generativebots/swarm/internal/core"

// applyTax deducts a flat amount (cfg.TaxRate) from the pair's combined
// payoff and records it on the interaction. The flat amount
// is split between the two parties proportionally to their share of the
// pair's gross payoff magnitude, falling back to an even split when both
// payoffs are zero. Recording the flat amount (rather than a rate times
// each payoff) keeps the ledger auditable: the sum of taxed_amount across
// an epoch's accepted interactions equals tax_rate times their count,
// exactly. Only resolved, accepted interactions are taxed;
// rejected ones carry zero tax by construction (their payoffs are (0, 0)).
func (e *Engine) applyTax(si *core.SoftInteraction) {
	if !si.Accepted || e.cfg.TaxRate <= 0 {
		si.TaxedAmount = 0
		return
	}

	wA, wB := abs(si.PayoffA), abs(si.PayoffB)
	shareA := 0.5
	if total := wA + wB; total > 0 {
		shareA = wA / total
	}

	flat := e.cfg.TaxRate
	si.PayoffA -= flat * shareA
	si.PayoffB -= flat * (1 - shareA)
	si.TaxedAmount = flat
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
