package configs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeBase(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	base := `
app:
  name: stockorder-api
  http_addr: ":8080"
mysql:
  dsn: "user:pass@tcp(localhost:3306)/stockorder?parseTime=true"
` + extra
	require.NoError(t, os.WriteFile(filepath.Join(dir, "base.yaml"), []byte(base), 0644))
	return dir
}

func TestLoadAppliesPlacementDefaults(t *testing.T) {
	dir := writeBase(t, "")
	cfg, err := Load(dir, "dev")
	require.NoError(t, err)

	assert.Equal(t, "serializable", cfg.Placement.Mode)
	assert.Equal(t, 3, cfg.Placement.MaxAttempts)
	assert.Equal(t, 25*time.Millisecond, cfg.Placement.RetryBackoff)
	assert.Equal(t, time.Second, cfg.Outbox.Interval)
	assert.Equal(t, 100, cfg.Outbox.BatchSize)
}

func TestLoadHonorsExplicitPlacement(t *testing.T) {
	dir := writeBase(t, `
placement:
  mode: optimistic
  max_attempts: 5
  retry_backoff: 100ms
`)
	cfg, err := Load(dir, "dev")
	require.NoError(t, err)
	assert.Equal(t, "optimistic", cfg.Placement.Mode)
	assert.Equal(t, 5, cfg.Placement.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, cfg.Placement.RetryBackoff)
}

func TestLoadRejectsUnknownMode(t *testing.T) {
	dir := writeBase(t, `
placement:
  mode: hopeful
`)
	_, err := Load(dir, "dev")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "placement.mode")
}

func TestLoadRequiresDSN(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "base.yaml"), []byte(`
app:
  http_addr: ":8080"
`), 0644))
	_, err := Load(dir, "dev")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mysql.dsn")
}

func TestEnvOverlayWins(t *testing.T) {
	dir := writeBase(t, "")
	t.Setenv("STOCKORDER_APP__HTTP_ADDR", ":9999")

	cfg, err := Load(dir, "dev")
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.App.HTTPAddr)
}
