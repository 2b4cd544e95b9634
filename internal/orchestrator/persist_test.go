package orchestrator

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/generativebots/swarm/internal/core"
)

func TestRunWriterProducesAllArtifacts(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run-001")
	w, err := NewRunWriter(dir)
	require.NoError(t, err)

	o, err := New(honestOnly("persisted", 42), WithSink(w.Sink()))
	require.NoError(t, err)
	ms, err := o.Run(context.Background())
	require.NoError(t, err)

	require.NoError(t, w.WriteMetrics(ms))
	require.NoError(t, w.WriteManifest(o.Manifest()))
	require.NoError(t, w.Close())

	// events.jsonl carries one valid JSON record per appended event.
	f, err := os.Open(filepath.Join(dir, "events.jsonl"))
	require.NoError(t, err)
	defer f.Close()
	lines := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		var e core.Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		require.Equal(t, uint64(lines), e.Seq)
		lines++
	}
	require.NoError(t, scanner.Err())
	require.Equal(t, len(o.Events()), lines)

	// metrics.csv has a header plus one row per epoch.
	mf, err := os.Open(filepath.Join(dir, "metrics.csv"))
	require.NoError(t, err)
	defer mf.Close()
	rows, err := csv.NewReader(mf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, len(ms)+1)
	require.Equal(t, metricsHeader, rows[0])

	// manifest.json decodes back to the final manifest.
	data, err := os.ReadFile(filepath.Join(dir, "manifest.json"))
	require.NoError(t, err)
	var manifest core.RunManifest
	require.NoError(t, json.Unmarshal(data, &manifest))
	require.Equal(t, "persisted", manifest.ScenarioID)
	require.Equal(t, int64(42), manifest.Seed)
	require.Equal(t, core.RunCompleted, manifest.FinalStatus)
	require.Equal(t, 3, manifest.NEpochsCompleted)
}
