package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_MatchesReferenceConstants(t *testing.T) {
	c := Default()
	assert.Equal(t, 1000, c.EventHistorySize)
	assert.Equal(t, 4, c.Webhook.Workers)
	assert.Equal(t, 5, c.Webhook.Breaker.FailureThreshold)
	assert.Equal(t, 3, c.DLQ.MaxRetries)
	assert.Equal(t, "@every 1h", c.DLQ.SweepCron)
	assert.Equal(t, 7*24*time.Hour, c.DLQ.RetentionPeriod)
}

func TestLoad_OverlaysOntoDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "runtime.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
event_history_size: 500
webhook:
  workers: 8
`), 0o644))

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 500, c.EventHistorySize, "file value overrides the default")
	assert.Equal(t, 8, c.Webhook.Workers, "file value overrides the default")
	assert.Equal(t, 3, c.DLQ.MaxRetries, "field omitted from the file keeps the reference default")
}

func TestLoad_MissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidYAMLErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("not: [valid: yaml"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
