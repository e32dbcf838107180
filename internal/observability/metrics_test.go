package observability

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	m := NewMetrics("")

	m.RecordCacheHit()
	m.RecordFetchError(true)
	m.RecordFetchError(false)
	m.RecordExtraction("ACTUAL", 12, 2)
	m.RecordExtraction("ACTUAL", 12, 1)
	m.RecordComparison(80, 8, 10, 2)
	m.RecordPersistError("postgres")
	m.ObserveStage(StageTraceFetch, 150*time.Millisecond)
	m.RecordRun("ok", time.Unix(1_700_000_000, 0))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHits))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.FetchErrors))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheFallbacks))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.TransfersExtracted.WithLabelValues("ACTUAL")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.LogsSkipped.WithLabelValues("ACTUAL")))
	assert.Equal(t, 80.0, testutil.ToFloat64(m.AlignmentScore))
	assert.Equal(t, 8.0, testutil.ToFloat64(m.ChecksMatched))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.ChecksTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Discrepancies))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PersistErrors.WithLabelValues("postgres")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("ok")))
	assert.Equal(t, 1_700_000_000.0, testutil.ToFloat64(m.LastRun))
	assert.Equal(t, 1, testutil.CollectAndCount(m.StageDuration))
}

func TestMetrics_FailedRunKeepsLastRun(t *testing.T) {
	m := NewMetrics("")
	m.RecordRun("failed", time.Unix(1_700_000_000, 0))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.LastRun))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("failed")))
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	a := NewMetrics("")
	b := NewMetrics("")
	a.RecordCacheHit()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.CacheHits))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordCacheHit()
	m.RecordFetchError(true)
	m.RecordExtraction("LOCAL", 1, 1)
	m.RecordComparison(100, 1, 1, 0)
	m.RecordPersistError("file")
	m.ObserveStage(StagePersist, time.Second)
	m.RecordRun("ok", time.Now())
	assert.Nil(t, m.Registry())
	assert.NoError(t, m.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")))
}

func TestMetrics_WriteTextfile(t *testing.T) {
	m := NewMetrics("")
	m.RecordComparison(80, 8, 10, 2)

	path := filepath.Join(t.TempDir(), "textfile", "txrecon.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "txrecon_comparison_alignment_score 80")
	assert.Contains(t, string(data), "# HELP txrecon_comparison_checks_matched")
}
