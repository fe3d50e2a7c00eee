package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudshuttle/cqlbulk/pkg/config"
	"github.com/cloudshuttle/cqlbulk/pkg/statement"
)

func TestParseThresholdAbsolute(t *testing.T) {
	l := config.LogSettings{MaxErrors: "0"}
	th, err := l.ParseThreshold()
	require.NoError(t, err)
	assert.Equal(t, statement.Absolute(0), th)
}

func TestParseThresholdRatio(t *testing.T) {
	l := config.LogSettings{MaxErrors: "1%", MaxErrorsMinSample: 100}
	th, err := l.ParseThreshold()
	require.NoError(t, err)
	assert.Equal(t, statement.RatioThreshold(0.01, 100), th)
}

func TestParseThresholdEmptyIsUnlimited(t *testing.T) {
	l := config.LogSettings{}
	th, err := l.ParseThreshold()
	require.NoError(t, err)
	assert.Equal(t, statement.Unlimited(), th)
}

func TestResolveExecutionIDExpandsTimestamp(t *testing.T) {
	s := config.Settings{Engine: config.EngineSettings{ExecutionID: "LOAD_%1$s"}}
	start := time.Date(2026, 8, 6, 12, 30, 0, 0, time.UTC)
	assert.Equal(t, "LOAD_20260806_123000", s.ResolveExecutionID(start))
}

func TestLoadAppliesDefaultsAndFileAndOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log:
  maxErrors: "5"
schema:
  keyspace: ks1
  table: tbl1
`), 0o644))

	settings, err := config.Load(path, map[string]string{"schema.table": "tbl2"})
	require.NoError(t, err)

	assert.Equal(t, "5", settings.Log.MaxErrors)
	assert.Equal(t, "ks1", settings.Schema.Keyspace)
	assert.Equal(t, "tbl2", settings.Schema.Table)
	// Untouched defaults survive the merge.
	assert.Equal(t, "PARTITION_KEY", settings.Batch.Mode)
	assert.Equal(t, 32, settings.Batch.MaxBatchStatements)
}

func TestLoadWithNoFileUsesDefaults(t *testing.T) {
	settings, err := config.Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "100", settings.Log.MaxErrors)
	assert.Equal(t, 128, settings.Executor.MaxInFlight)
}
