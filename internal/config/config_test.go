package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_AppliesDefaultsOverPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := []byte(`
version: "1"
game:
  start_time: "2090-01-01T00:00:00Z"
bank:
  starting_balance: 5000
server:
  addr: ":9090"
`)
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 5000, cfg.Bank.StartingBalance)
	assert.Equal(t, []int{1, 10, 100}, cfg.Game.AllowedSpeeds)
	assert.Equal(t, -10000, cfg.Bank.BankruptcyBalance)
	assert.Equal(t, int64(3000), cfg.Game.VerifyDelayMs)
	assert.Equal(t, 5, cfg.Reputation.StartingTier)

	start, err := cfg.Game.Start()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2090, 1, 1, 0, 0, 0, 0, time.UTC), start)
}

func TestFromEnv_OverridesDefaults(t *testing.T) {
	t.Setenv("SOURCENET_ADDR", ":7070")
	t.Setenv("SOURCENET_STARTING_TIER", "7")
	t.Setenv("SOURCENET_VERIFY_DELAY_MS", "5000")
	t.Setenv("SOURCENET_LEDGER_ARCHIVE", "true")

	cfg := FromEnv()
	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, 7, cfg.Reputation.StartingTier)
	assert.Equal(t, int64(5000), cfg.Game.VerifyDelayMs)
	assert.True(t, cfg.Data.LedgerArchive)
	assert.Equal(t, "data/saves.db", cfg.Data.SaveDBPath)
}
