package config

import (
	"os"
	"strconv"
)

// FromEnv loads configuration from environment variables on top of the
// defaults. Used by the server entrypoint together with a .env file.
func FromEnv() *Config {
	cfg := Default()

	if v := os.Getenv("SOURCENET_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("SOURCENET_SAVE_DB"); v != "" {
		cfg.Data.SaveDBPath = v
	}
	if v := os.Getenv("SOURCENET_LEDGER_DB"); v != "" {
		cfg.Data.LedgerDBPath = v
	}
	if v := os.Getenv("SOURCENET_BACKUP_DIR"); v != "" {
		cfg.Data.BackupDir = v
	}
	if v := os.Getenv("SOURCENET_LEDGER_ARCHIVE"); v != "" {
		cfg.Data.LedgerArchive = v == "1" || v == "true"
	}
	if v := os.Getenv("SOURCENET_START_TIME"); v != "" {
		cfg.Game.StartTime = v
	}
	if val := getEnvInt("SOURCENET_VERIFY_DELAY_MS"); val > 0 {
		cfg.Game.VerifyDelayMs = int64(val)
	}
	if val := getEnvInt("SOURCENET_STARTING_BALANCE"); val != 0 {
		cfg.Bank.StartingBalance = val
	}
	if val := getEnvInt("SOURCENET_STARTING_TIER"); val > 0 {
		cfg.Reputation.StartingTier = val
	}
	if val := getEnvInt("SOURCENET_ADAPTER_MBPS"); val > 0 {
		cfg.Network.AdapterMbps = float64(val)
	}
	if val := getEnvInt("SOURCENET_CONNECTION_MBPS"); val > 0 {
		cfg.Network.ConnectionMbps = float64(val)
	}

	return cfg
}

func getEnvInt(key string) int {
	val := os.Getenv(key)
	if val == "" {
		return 0
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0
	}
	return n
}
