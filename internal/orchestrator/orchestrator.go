// Package orchestrator implements the kernel's outer control loop: per
// epoch, per step, per agent, it builds observations, invokes policies,
// executes actions through the environment's transactional methods, runs
// the same-step interaction resolution sweep, applies governance hooks,
// and emits per-epoch metrics.
//
// The Orchestrator is the single owner of the environment ledger, the RNG,
// the governance engine and the event log; nothing else mutates them. All
// scheduling is single-threaded and deterministic.
package orchestrator

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/generativebots/swarm/internal/agents"
	"github.com/generativebots/swarm/internal/core"
	"github.com/generativebots/swarm/internal/envstate"
	"github.com/generativebots/swarm/internal/eventlog"
	"github.com/generativebots/swarm/internal/governance"
	"github.com/generativebots/swarm/internal/kernelconfig"
	"github.com/generativebots/swarm/internal/metrics"
	"github.com/generativebots/swarm/internal/payoff"
	"github.com/generativebots/swarm/internal/rng"
	"github.com/generativebots/swarm/internal/telemetry"
)

// feedWindow is how many trailing posts an Observation's VisibleFeed
// carries; recentOutcomeWindow bounds each agent's RecentOutcomes slice.
const (
	feedWindow          = 20
	recentOutcomeWindow = 10
)

// Orchestrator drives one run of one scenario. It is not reusable: build a
// fresh instance per run.
type Orchestrator struct {
	cfg core.ScenarioConfig

	rng *rng.RNG
	env *envstate.Environment
	gov *governance.Engine
	log *eventlog.Log

	policies map[string]agents.Policy
	logger   *log.Logger

	externalCallback  agents.Callback
	externalTimeout   time.Duration
	externalThreshold int

	telemetry *telemetry.Metrics

	manifest          core.RunManifest
	epochInteractions []core.SoftInteraction
	allMetrics        []core.EpochMetrics
	recentOutcomes    map[string][]core.SoftInteraction
	actedThisStep     map[string]bool
	interactionTask   map[string]string // interaction id -> task id, TASK_VERIFY only
	rrOffset          int
}

// Option customizes an Orchestrator at construction time.
type Option func(*Orchestrator)

// WithSink routes the event log through the given sink (typically a
// RunWriter's events.jsonl encoder). Default is an in-memory-only log.
func WithSink(s eventlog.Sink) Option {
	return func(o *Orchestrator) { o.log = eventlog.New(s) }
}

// WithExternalCallback wires the decision function external-proxy agents
// delegate to, with its hard timeout. Without this
// option, external agents always PASS.
func WithExternalCallback(cb agents.Callback, timeout time.Duration) Option {
	return func(o *Orchestrator) {
		o.externalCallback = cb
		o.externalTimeout = timeout
	}
}

// WithExternalFailureThreshold overrides the consecutive-failure count
// at which a proxy is quarantined for the rest of the run.
func WithExternalFailureThreshold(n int) Option {
	return func(o *Orchestrator) { o.externalThreshold = n }
}

// WithTelemetry publishes per-epoch metrics and governance counters to
// the given Prometheus collectors as the run progresses.
func WithTelemetry(m *telemetry.Metrics) Option {
	return func(o *Orchestrator) { o.telemetry = m }
}

// New validates the scenario and builds a ready-to-run Orchestrator.
// Returns a *core.ConfigError or *core.InvalidPayoffConfigError if the
// config is out of range.
func New(cfg core.ScenarioConfig, opts ...Option) (*Orchestrator, error) {
	kernelconfig.ApplyDefaults(&cfg)
	if err := kernelconfig.Validate(cfg); err != nil {
		return nil, err
	}
	if err := payoff.ValidateConfig(cfg.Payoff); err != nil {
		return nil, err
	}

	o := &Orchestrator{
		cfg:               cfg,
		rng:               rng.New(cfg.Seed),
		env:               envstate.New(cfg.ID, cfg.RateLimits),
		policies:          make(map[string]agents.Policy),
		logger:            log.New(log.Writer(), "[ORCHESTRATOR] ", log.LstdFlags),
		externalTimeout:   agents.DefaultProxyTimeout,
		externalThreshold: agents.DefaultQuarantineThreshold,
		recentOutcomes:    make(map[string][]core.SoftInteraction),
		interactionTask:   make(map[string]string),
		manifest: core.RunManifest{
			ScenarioID: cfg.ID,
			Seed:       cfg.Seed,
		},
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.log == nil {
		o.log = eventlog.New(eventlog.NopSink{})
	}
	o.gov = governance.NewEngine(cfg.Governance, cfg.SigmoidK, o.rng, o.log)
	return o, nil
}

// Manifest returns the run manifest in its current state; final after Run
// returns.
func (o *Orchestrator) Manifest() core.RunManifest { return o.manifest }

// Events exposes the full event stream appended so far.
func (o *Orchestrator) Events() []core.Event { return o.log.Events() }

// Environment exposes the ledger for post-run inspection. Callers must
// treat it as read-only once Run has returned.
func (o *Orchestrator) Environment() *envstate.Environment { return o.env }

// Governance exposes the governance engine, primarily for the operator
// kill-switch surface (ForceQuarantine/Revive).
func (o *Orchestrator) Governance() *governance.Engine { return o.gov }

// Run executes the scenario to completion, cancellation, or crash, and
// returns the per-epoch metrics stream. Cancellation (ctx) is honored at
// step boundaries only; a StateError aborts with a RUN_CRASHED terminator
// and a non-nil error.
func (o *Orchestrator) Run(ctx context.Context) ([]core.EpochMetrics, error) {
	o.manifest.StartTime = time.Now().UTC()
	o.manifest.FinalStatus = ""

	if err := o.buildPopulation(); err != nil {
		return nil, o.crash(0, 0, err)
	}

	for epoch := 0; epoch < o.cfg.NEpochs; epoch++ {
		o.gov.OnEpochStart(o.env, epoch)
		o.seedTasks()

		for step := 0; step < o.cfg.StepsPerEpoch; step++ {
			if ctx.Err() != nil {
				return o.cancel(epoch, step)
			}
			if err := o.runStep(epoch, step); err != nil {
				return o.allMetrics, o.crash(epoch, step, err)
			}
		}

		m := o.computeEpochMetrics(epoch)
		o.gov.OnEpochEnd(o.env, epoch, m)
		if err := o.emitEpochMetrics(m); err != nil {
			return o.allMetrics, o.crash(epoch, 0, err)
		}
		o.allMetrics = append(o.allMetrics, m)
		o.epochInteractions = nil
		o.manifest.NEpochsCompleted = epoch + 1
	}

	o.manifest.EndTime = time.Now().UTC()
	o.manifest.FinalStatus = core.RunCompleted
	return o.allMetrics, nil
}

func (o *Orchestrator) runStep(epoch, step int) error {
	visitation := o.schedule(epoch, step)
	o.actedThisStep = make(map[string]bool, len(visitation))

	for _, agentID := range visitation {
		a := o.env.Agent(agentID)
		if a == nil {
			continue
		}
		if a.IsFrozen(epoch) || a.IsQuarantined() {
			if _, err := o.log.Append(epoch, step, core.EventAgentSkipped, map[string]interface{}{
				"agent_id":  agentID,
				"lifecycle": string(a.Lifecycle),
			}); err != nil {
				return err
			}
			continue
		}

		obs := o.buildObservation(a, epoch, step)
		action := o.policies[agentID].Act(obs)
		o.noteExternalOutcome(agentID, epoch, step)

		result, err := o.execute(epoch, step, a, action)
		if err != nil {
			return err
		}
		o.policies[agentID].OnResult(result)
		o.actedThisStep[agentID] = true

		if err := o.env.CheckInvariants(); err != nil {
			return err
		}
	}

	return o.resolutionSweep(epoch, step)
}

// resolutionSweep resolves every interaction still pending at the end of
// the step: proposals whose counterparty had not yet had its turn when
// they were made. Anything that still cannot resolve (counterparty frozen,
// quarantined, or gone) is dropped with INTERACTION_ABANDONED.
func (o *Orchestrator) resolutionSweep(epoch, step int) error {
	for _, si := range o.env.PendingInteractions() {
		if _, err := o.resolveInteraction(epoch, step, si, false); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) computeEpochMetrics(epoch int) core.EpochMetrics {
	m := metrics.Compute(epoch, o.epochInteractions, o.env.Agents())
	m.FlaggedPairCount = o.gov.FlaggedPairCount()
	return m
}

func (o *Orchestrator) emitEpochMetrics(m core.EpochMetrics) error {
	if o.telemetry != nil {
		o.telemetry.ObserveEpoch(o.cfg.ID, m)
	}
	_, err := o.log.Append(m.Epoch, 0, core.EventEpochMetrics, map[string]interface{}{
		"epoch":              m.Epoch,
		"accepted_count":     m.AcceptedCount,
		"rejected_count":     m.RejectedCount,
		"toxicity_rate":      m.ToxicityRate,
		"quality_gap":        m.QualityGap,
		"conditional_loss":   m.ConditionalLoss,
		"mean_p":             m.MeanP,
		"variance_p":         m.VarianceP,
		"brier":              m.Brier,
		"ece":                m.ECE,
		"total_welfare":      m.TotalWelfare,
		"gini_payoffs":       m.GiniPayoffs,
		"frozen_agent_count": m.FrozenAgentCount,
		"flagged_pair_count": m.FlaggedPairCount,
	})
	return err
}

// cancel emits the RUN_CANCELLED terminator plus partial metrics for the
// interactions resolved so far in the interrupted epoch.
func (o *Orchestrator) cancel(epoch, step int) ([]core.EpochMetrics, error) {
	o.logger.Printf("run cancelled: scenario=%s epoch=%d step=%d", o.cfg.ID, epoch, step)
	if _, err := o.log.Append(epoch, step, core.EventRunCancelled, map[string]interface{}{
		"epoch": epoch,
		"step":  step,
	}); err != nil {
		return o.allMetrics, err
	}
	if len(o.epochInteractions) > 0 {
		m := o.computeEpochMetrics(epoch)
		if err := o.emitEpochMetrics(m); err != nil {
			return o.allMetrics, err
		}
		o.allMetrics = append(o.allMetrics, m)
	}
	o.manifest.EndTime = time.Now().UTC()
	o.manifest.FinalStatus = core.RunCancelled
	return o.allMetrics, nil
}

// crash emits the RUN_CRASHED terminator with a diagnostic payload and
// finalizes the manifest; the original error is returned to the caller.
func (o *Orchestrator) crash(epoch, step int, cause error) error {
	o.logger.Printf("run crashed: scenario=%s epoch=%d step=%d err=%v", o.cfg.ID, epoch, step, cause)
	payload := map[string]interface{}{
		"epoch": epoch,
		"step":  step,
		"error": cause.Error(),
	}
	var se *core.StateError
	if errors.As(cause, &se) {
		payload["invariant"] = se.Invariant
	}
	// Best-effort terminator: if the sink itself is the failure, the
	// in-memory buffer still records the crash for post-mortem reads.
	o.log.Append(epoch, step, core.EventRunCrashed, payload)
	o.manifest.EndTime = time.Now().UTC()
	o.manifest.FinalStatus = core.RunCrashed
	return cause
}

func (o *Orchestrator) seedTasks() {
	for i := 0; i < o.cfg.TasksPerEpoch; i++ {
		o.env.AddTask(o.cfg.TaskReward)
	}
}

// noteExternalOutcome quarantines an external proxy whose consecutive
// failures have reached the threshold.
func (o *Orchestrator) noteExternalOutcome(agentID string, epoch, step int) {
	p, ok := o.policies[agentID].(*agents.ExternalProxy)
	if !ok {
		return
	}
	if !p.ShouldQuarantine(o.externalThreshold) {
		return
	}
	a := o.env.Agent(agentID)
	if a == nil || a.IsQuarantined() {
		return
	}
	o.logger.Printf("external proxy quarantined after repeated failures: agent=%s", agentID)
	o.gov.ForceQuarantine(o.env, agentID, epoch)
	o.log.Append(epoch, step, core.EventAgentQuarantined, map[string]interface{}{
		"agent_id": agentID,
		"reason":   "external_proxy_failures",
	})
}
