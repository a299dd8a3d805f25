package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Version    string           `yaml:"version" json:"version"`
	Game       GameConfig       `yaml:"game" json:"game"`
	Bank       BankConfig       `yaml:"bank" json:"bank"`
	Reputation ReputationConfig `yaml:"reputation" json:"reputation"`
	Network    NetworkConfig    `yaml:"network" json:"network"`
	Data       DataConfig       `yaml:"data" json:"data"`
	Server     ServerConfig     `yaml:"server" json:"server"`
}

type GameConfig struct {
	StartTime     string `yaml:"start_time" json:"start_time"`
	AllowedSpeeds []int  `yaml:"allowed_speeds" json:"allowed_speeds"`
	VerifyDelayMs int64  `yaml:"verify_delay_ms" json:"verify_delay_ms"`
}

type BankConfig struct {
	OverdraftWarningBalance int `yaml:"overdraft_warning_balance" json:"overdraft_warning_balance"`
	BankruptcyBalance       int `yaml:"bankruptcy_balance" json:"bankruptcy_balance"`
	BankruptcyWindowS       int `yaml:"bankruptcy_window_s" json:"bankruptcy_window_s"`
	StartingBalance         int `yaml:"starting_balance" json:"starting_balance"`
}

type ReputationConfig struct {
	StartingTier       int `yaml:"starting_tier" json:"starting_tier"`
	TerminationWindowS int `yaml:"termination_window_s" json:"termination_window_s"`
}

type NetworkConfig struct {
	AdapterMbps    float64 `yaml:"adapter_mbps" json:"adapter_mbps"`
	ConnectionMbps float64 `yaml:"connection_mbps" json:"connection_mbps"`
}

type DataConfig struct {
	SaveDBPath    string `yaml:"save_db_path" json:"save_db_path"`
	LedgerDBPath  string `yaml:"ledger_db_path" json:"ledger_db_path"`
	LedgerArchive bool   `yaml:"ledger_archive" json:"ledger_archive"`
	BackupDir     string `yaml:"backup_dir" json:"backup_dir"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

func (g *GameConfig) ApplyDefaults() {
	if g.StartTime == "" {
		g.StartTime = "2087-03-14T09:00:00Z"
	}
	if len(g.AllowedSpeeds) == 0 {
		g.AllowedSpeeds = []int{1, 10, 100}
	}
	if g.VerifyDelayMs == 0 {
		g.VerifyDelayMs = 3000
	}
}

// Start parses the configured simulated start time.
func (g *GameConfig) Start() (time.Time, error) {
	t, err := time.Parse(time.RFC3339, g.StartTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse game start_time: %w", err)
	}
	return t, nil
}

func (b *BankConfig) ApplyDefaults() {
	if b.OverdraftWarningBalance == 0 {
		b.OverdraftWarningBalance = -8000
	}
	if b.BankruptcyBalance == 0 {
		b.BankruptcyBalance = -10000
	}
	if b.BankruptcyWindowS == 0 {
		b.BankruptcyWindowS = 300
	}
	if b.StartingBalance == 0 {
		b.StartingBalance = 2500
	}
}

func (r *ReputationConfig) ApplyDefaults() {
	if r.StartingTier == 0 {
		r.StartingTier = 5
	}
	if r.TerminationWindowS == 0 {
		r.TerminationWindowS = 600
	}
}

func (n *NetworkConfig) ApplyDefaults() {
	if n.AdapterMbps == 0 {
		n.AdapterMbps = 80
	}
	if n.ConnectionMbps == 0 {
		n.ConnectionMbps = 40
	}
}

func (d *DataConfig) ApplyDefaults() {
	if d.SaveDBPath == "" {
		d.SaveDBPath = "data/saves.db"
	}
	if d.LedgerDBPath == "" {
		d.LedgerDBPath = "data/ledger.db"
	}
	if d.BackupDir == "" {
		d.BackupDir = "backups"
	}
}

func (s *ServerConfig) ApplyDefaults() {
	if s.Addr == "" {
		s.Addr = ":8080"
	}
}

func (c *Config) ApplyDefaults() {
	c.Game.ApplyDefaults()
	c.Bank.ApplyDefaults()
	c.Reputation.ApplyDefaults()
	c.Network.ApplyDefaults()
	c.Data.ApplyDefaults()
	c.Server.ApplyDefaults()
}

// Default returns a config with every default applied, for running without
// a config file.
func Default() *Config {
	var c Config
	c.ApplyDefaults()
	return &c
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r Config
	if err := yaml.Unmarshal(b, &r); err != nil {
		return nil, err
	}
	r.ApplyDefaults()
	return &r, nil
}
