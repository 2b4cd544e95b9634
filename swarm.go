// Package swarm is the public surface of the simulation kernel: load a
// validated scenario, run it deterministically, and collect the event
// log, per-epoch metrics and run manifest. The heavy lifting lives in the
// internal packages; this package only re-exports the types downstream
// tooling needs and wires the run loop to the per-run artifact writer.
package swarm

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/generativebots/swarm/internal/agents"
	"github.com/generativebots/swarm/internal/core"
	"github.com/generativebots/swarm/internal/kernelconfig"
	"github.com/generativebots/swarm/internal/metrics"
	"github.com/generativebots/swarm/internal/orchestrator"
	"github.com/generativebots/swarm/internal/telemetry"
)

// Re-exported kernel types, so callers never import internal packages.
type (
	ScenarioConfig   = core.ScenarioConfig
	PayoffConfig     = core.PayoffConfig
	GovernanceConfig = core.GovernanceConfig
	EpochMetrics     = core.EpochMetrics
	Event            = core.Event
	RunManifest      = core.RunManifest
	Observation      = agents.Observation
	Action           = core.Action

	// Callback is the decision function an external-proxy agent delegates
	// to, bounded by a hard timeout.
	Callback = agents.Callback

	// ShadowRun feeds the post-hoc incoherence computation.
	ShadowRun = metrics.ShadowRun

	// Telemetry is the optional Prometheus collector set.
	Telemetry = telemetry.Metrics
)

// LoadScenario reads, defaults and validates a scenario YAML file.
func LoadScenario(path string) (ScenarioConfig, error) {
	return kernelconfig.Load(path)
}

// ParseScenario parses scenario YAML from memory.
func ParseScenario(data []byte) (ScenarioConfig, error) {
	return kernelconfig.Parse(data)
}

// Result bundles everything a completed (or cancelled, or crashed) run
// produced.
type Result struct {
	Metrics  []EpochMetrics
	Events   []Event
	Manifest RunManifest
}

// Option configures a run.
type Option = orchestrator.Option

// WithExternalCallback wires the external-agent proxy decision function
// and its hard timeout.
func WithExternalCallback(cb Callback, timeout time.Duration) Option {
	return orchestrator.WithExternalCallback(cb, timeout)
}

// WithTelemetry publishes live run metrics to the given collectors.
func WithTelemetry(t *Telemetry) Option {
	return orchestrator.WithTelemetry(t)
}

// Run executes one scenario in memory and returns its full output. The
// context cancels the run at the next step boundary.
func Run(ctx context.Context, cfg ScenarioConfig, opts ...Option) (Result, error) {
	o, err := orchestrator.New(cfg, opts...)
	if err != nil {
		return Result{}, err
	}
	ms, err := o.Run(ctx)
	return Result{Metrics: ms, Events: o.Events(), Manifest: o.Manifest()}, err
}

// RunToDir executes one scenario and persists events.jsonl, metrics.csv
// and manifest.json into dir. The artifacts are written even when the run
// is cancelled or crashes, so a partial run still leaves an accurate
// record.
func RunToDir(ctx context.Context, cfg ScenarioConfig, dir string, opts ...Option) (Result, error) {
	w, err := orchestrator.NewRunWriter(dir)
	if err != nil {
		return Result{}, err
	}
	defer w.Close()

	o, err := orchestrator.New(cfg, append(opts, orchestrator.WithSink(w.Sink()))...)
	if err != nil {
		return Result{}, err
	}

	ms, runErr := o.Run(ctx)
	result := Result{Metrics: ms, Events: o.Events(), Manifest: o.Manifest()}

	if err := w.WriteMetrics(ms); err != nil {
		return result, err
	}
	if err := w.WriteManifest(o.Manifest()); err != nil {
		return result, err
	}
	return result, runErr
}

// ComputeIncoherence derives the dispersion-over-error incoherence score
// for one epoch from a live run's mean p and a set of shadow replicates
// run under different seeds.
func ComputeIncoherence(epoch int, liveMeanP float64, shadows []ShadowRun) float64 {
	return metrics.ComputeIncoherence(epoch, liveMeanP, shadows)
}

// NewTelemetry builds the Prometheus collector set against reg. Pass
// prometheus.DefaultRegisterer to publish into the process-wide registry.
func NewTelemetry(reg prometheus.Registerer) *Telemetry {
	return telemetry.NewMetrics(reg)
}
