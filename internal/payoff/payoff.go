// Package payoff implements the soft payoff engine: a pure function from
// an accepted SoftInteraction plus PayoffConfig and reputations to a
// payoff pair. Strictly pure: no logger, no store, no side effects.
package payoff

import (
	"math"

	"github.com/generativebots/swarm/internal/core"
)

// ValidateConfig enforces the payoff engine's load-time contract: θ ∈ [0,1]
// and no weight is NaN. Returns *core.InvalidPayoffConfigError on failure.
func ValidateConfig(cfg core.PayoffConfig) error {
	if cfg.Theta < 0 || cfg.Theta > 1 || math.IsNaN(cfg.Theta) {
		return &core.InvalidPayoffConfigError{Reason: "theta must be in [0,1]"}
	}
	weights := []float64{cfg.SPlus, cfg.SMinus, cfg.H, cfg.Tau, cfg.WRep, cfg.RhoA, cfg.RhoB}
	for _, w := range weights {
		if math.IsNaN(w) {
			return &core.InvalidPayoffConfigError{Reason: "a payoff weight is NaN"}
		}
	}
	return nil
}

// Compute implements:
//
//	S_soft = p·s+ - (1-p)·s-
//	E_soft = (1-p)·h
//	π_a = θ·S_soft - τ - c_a - ρ_a·E_soft + w_rep·r_a
//	π_b = (1-θ)·S_soft + τ - c_b - ρ_b·E_soft + w_rep·r_b
//
// Rejected interactions (accepted=false) always yield (0, 0). c_a and c_b
// are per-interaction costs; this kernel has no separate cost input, so
// c_a = c_b = 0 unless a future PayoffConfig extension supplies one. The
// formula still names them so the terms line up with the published payoff
// definition.
func Compute(interaction core.SoftInteraction, cfg core.PayoffConfig, repA, repB float64) (piA, piB float64, err error) {
	if err := ValidateConfig(cfg); err != nil {
		return 0, 0, err
	}
	if !interaction.Accepted {
		return 0, 0, nil
	}

	p := interaction.P
	sSoft := p*cfg.SPlus - (1-p)*cfg.SMinus
	eSoft := (1 - p) * cfg.H

	const cA, cB = 0.0, 0.0

	piA = cfg.Theta*sSoft - cfg.Tau - cA - cfg.RhoA*eSoft + cfg.WRep*repA
	piB = (1-cfg.Theta)*sSoft + cfg.Tau - cB - cfg.RhoB*eSoft + cfg.WRep*repB

	if math.IsNaN(piA) || math.IsInf(piA, 0) || math.IsNaN(piB) || math.IsInf(piB, 0) {
		return 0, 0, &core.InvalidPayoffConfigError{Reason: "payoff computation produced a non-finite value"}
	}
	return piA, piB, nil
}
