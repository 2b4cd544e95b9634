package orchestrator

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/generativebots/swarm/internal/core"
	"github.com/generativebots/swarm/internal/eventlog"
)

// RunWriter owns a per-run output directory with the three artifacts the
// kernel persists: events.jsonl, metrics.csv, manifest.json.
// Construct one, pass Sink() to WithSink, and call WriteMetrics /
// WriteManifest after Run returns.
type RunWriter struct {
	dir        string
	eventsFile *os.File
	sink       *eventlog.JSONLSink
}

// NewRunWriter creates dir (and parents) and opens events.jsonl for
// appending from the start of the run.
func NewRunWriter(dir string) (*RunWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create run dir %s: %w", dir, err)
	}
	f, err := os.Create(filepath.Join(dir, "events.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("create events.jsonl: %w", err)
	}
	return &RunWriter{dir: dir, eventsFile: f, sink: eventlog.NewJSONLSink(f)}, nil
}

// Sink returns the event sink backed by events.jsonl.
func (w *RunWriter) Sink() eventlog.Sink { return w.sink }

// Dir returns the run directory path.
func (w *RunWriter) Dir() string { return w.dir }

var metricsHeader = []string{
	"epoch", "accepted_count", "rejected_count", "toxicity_rate", "quality_gap",
	"conditional_loss", "mean_p", "variance_p", "brier", "ece", "incoherence",
	"total_welfare", "gini_payoffs", "frozen_agent_count", "flagged_pair_count",
}

// WriteMetrics writes the whole epoch-metrics stream as metrics.csv.
func (w *RunWriter) WriteMetrics(ms []core.EpochMetrics) error {
	f, err := os.Create(filepath.Join(w.dir, "metrics.csv"))
	if err != nil {
		return fmt.Errorf("create metrics.csv: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(metricsHeader); err != nil {
		return err
	}
	for _, m := range ms {
		row := []string{
			strconv.Itoa(m.Epoch),
			strconv.Itoa(m.AcceptedCount),
			strconv.Itoa(m.RejectedCount),
			formatFloat(m.ToxicityRate),
			formatFloat(m.QualityGap),
			formatFloat(m.ConditionalLoss),
			formatFloat(m.MeanP),
			formatFloat(m.VarianceP),
			formatFloat(m.Brier),
			formatFloat(m.ECE),
			formatFloat(m.Incoherence),
			formatFloat(m.TotalWelfare),
			formatFloat(m.GiniPayoffs),
			strconv.Itoa(m.FrozenAgentCount),
			strconv.Itoa(m.FlaggedPairCount),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteManifest writes manifest.json.
func (w *RunWriter) WriteManifest(m core.RunManifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(w.dir, "manifest.json"), data, 0o644)
}

// Close flushes and closes events.jsonl.
func (w *RunWriter) Close() error {
	return w.eventsFile.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
