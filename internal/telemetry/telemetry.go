// Package telemetry publishes live run metrics to Prometheus collectors:
// a Metrics struct of promauto-built vectors, labeled per scenario and
// observed by the owning Orchestrator.
// Telemetry is strictly optional: the kernel's determinism contract never
// depends on it, and no simulation data flows back from it.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/generativebots/swarm/internal/core"
)

// Metrics holds all Prometheus collectors for a simulation run.
type Metrics struct {
	ToxicityRate *prometheus.GaugeVec
	QualityGap   *prometheus.GaugeVec
	MeanP        *prometheus.GaugeVec
	TotalWelfare *prometheus.GaugeVec
	GiniPayoffs  *prometheus.GaugeVec
	FrozenAgents *prometheus.GaugeVec
	FlaggedPairs *prometheus.GaugeVec

	InteractionsTotal *prometheus.CounterVec
	AuditsTotal       *prometheus.CounterVec
	TaxCollected      *prometheus.CounterVec
}

// NewMetrics creates and registers all collectors against reg. Pass
// prometheus.DefaultRegisterer for the process-wide registry, or a fresh
// prometheus.NewRegistry() in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ToxicityRate: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "swarm_toxicity_rate",
				Help: "Mean (1-p) over the epoch's accepted interactions",
			},
			[]string{"scenario_id"},
		),
		QualityGap: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "swarm_quality_gap",
				Help: "Mean p of accepted minus mean p of rejected interactions",
			},
			[]string{"scenario_id"},
		),
		MeanP: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "swarm_mean_p",
				Help: "Mean soft label across the epoch's interactions",
			},
			[]string{"scenario_id"},
		),
		TotalWelfare: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "swarm_total_welfare",
				Help: "Sum of payoffs over the epoch's accepted interactions",
			},
			[]string{"scenario_id"},
		),
		GiniPayoffs: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "swarm_gini_payoffs",
				Help: "Gini coefficient of the epoch's payoff distribution",
			},
			[]string{"scenario_id"},
		),
		FrozenAgents: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "swarm_frozen_agents",
				Help: "Agents frozen by the circuit breaker as of epoch end",
			},
			[]string{"scenario_id"},
		),
		FlaggedPairs: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "swarm_flagged_pairs",
				Help: "Distinct pairs flagged for collusion so far in the run",
			},
			[]string{"scenario_id"},
		),
		InteractionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "swarm_interactions_total",
				Help: "Resolved interactions processed by the kernel",
			},
			[]string{"scenario_id", "kind", "accepted"},
		),
		AuditsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "swarm_audits_total",
				Help: "Random audits executed against resolved interactions",
			},
			[]string{"scenario_id", "penalized"},
		),
		TaxCollected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "swarm_tax_collected_total",
				Help: "Total transaction tax deducted from payoffs",
			},
			[]string{"scenario_id"},
		),
	}
}

// ObserveEpoch publishes one epoch's metrics snapshot.
func (m *Metrics) ObserveEpoch(scenarioID string, em core.EpochMetrics) {
	labels := prometheus.Labels{"scenario_id": scenarioID}
	m.ToxicityRate.With(labels).Set(em.ToxicityRate)
	m.QualityGap.With(labels).Set(em.QualityGap)
	m.MeanP.With(labels).Set(em.MeanP)
	m.TotalWelfare.With(labels).Set(em.TotalWelfare)
	m.GiniPayoffs.With(labels).Set(em.GiniPayoffs)
	m.FrozenAgents.With(labels).Set(float64(em.FrozenAgentCount))
	m.FlaggedPairs.With(labels).Set(float64(em.FlaggedPairCount))
}

// ObserveInteraction counts one resolved interaction and its governance
// side effects.
func (m *Metrics) ObserveInteraction(scenarioID string, si *core.SoftInteraction) {
	m.InteractionsTotal.With(prometheus.Labels{
		"scenario_id": scenarioID,
		"kind":        string(si.Kind),
		"accepted":    boolLabel(si.Accepted),
	}).Inc()
	if si.Audited && si.AuditVerdict != nil {
		m.AuditsTotal.With(prometheus.Labels{
			"scenario_id": scenarioID,
			"penalized":   boolLabel(si.AuditVerdict.Penalized),
		}).Inc()
	}
	if si.TaxedAmount > 0 {
		m.TaxCollected.With(prometheus.Labels{"scenario_id": scenarioID}).Add(si.TaxedAmount)
	}
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
