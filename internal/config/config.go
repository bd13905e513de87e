package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Simulation methods.
const (
	MethodHistorical   = "historical"
	MethodRegimeIID    = "regime_iid"
	MethodRegimeMarkov = "regime_markov"
	MethodBlock        = "block"
)

// Simulation configures the Monte Carlo harness.
type Simulation struct {
	Runs           int    `yaml:"runs"`
	MaxYears       int    `yaml:"max_years"`
	Method         string `yaml:"method"`
	BlockSize      int    `yaml:"block_size"`
	Seed           int64  `yaml:"seed"`
	Workers        int    `yaml:"workers"`
	ChunkSize      int    `yaml:"chunk_size"`
	StressPreset   string `yaml:"stress_preset"`
	CapeSampling   bool   `yaml:"cape_sampling"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	HistoryFile    string `yaml:"history_file"`
}

// Config holds all application configuration.
type Config struct {
	Engine Engine `yaml:"engine"`

	Household struct {
		InputFile string `yaml:"input_file"`
	} `yaml:"household"`
	Simulation Simulation `yaml:"simulation"`
	Schedule   struct {
		DecisionCron   string `yaml:"decision_cron"`
		SimulationCron string `yaml:"simulation_cron"`
	} `yaml:"schedule"`
	State struct {
		File string `yaml:"file"`
	} `yaml:"state"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies .env and environment
// variable overrides, then defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{Engine: DefaultEngine()}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	_ = godotenv.Load()

	// Environment variable overrides
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("STATE_FILE"); v != "" {
		cfg.State.File = v
	}
	if v := os.Getenv("HOUSEHOLD_FILE"); v != "" {
		cfg.Household.InputFile = v
	}
	if v := os.Getenv("HISTORY_FILE"); v != "" {
		cfg.Simulation.HistoryFile = v
	}
	if v := os.Getenv("SIM_METHOD"); v != "" {
		cfg.Simulation.Method = v
	}
	if v := os.Getenv("SIM_STRESS"); v != "" {
		cfg.Simulation.StressPreset = v
	}
	if v := os.Getenv("SIM_RUNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Simulation.Runs = n
		}
	}
	if v := os.Getenv("SIM_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Simulation.Workers = n
		}
	}
	if v := os.Getenv("SIM_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Simulation.Seed = n
		}
	}
	if v := os.Getenv("CRON_DECISION"); v != "" {
		cfg.Schedule.DecisionCron = v
	}
	if v := os.Getenv("CRON_SIMULATION"); v != "" {
		cfg.Schedule.SimulationCron = v
	}

	// Defaults
	if cfg.Household.InputFile == "" {
		cfg.Household.InputFile = "configs/household.yaml"
	}
	if cfg.Simulation.Runs == 0 {
		cfg.Simulation.Runs = 1000
	}
	if cfg.Simulation.MaxYears == 0 {
		cfg.Simulation.MaxYears = 50
	}
	if cfg.Simulation.Method == "" {
		cfg.Simulation.Method = MethodRegimeMarkov
	}
	if cfg.Simulation.BlockSize == 0 {
		cfg.Simulation.BlockSize = 5
	}
	if cfg.Simulation.Seed == 0 {
		cfg.Simulation.Seed = 12345
	}
	if cfg.Simulation.ChunkSize == 0 {
		cfg.Simulation.ChunkSize = 250
	}
	if cfg.Simulation.StressPreset == "" {
		cfg.Simulation.StressPreset = "NONE"
	}
	if cfg.Schedule.DecisionCron == "" {
		cfg.Schedule.DecisionCron = "0 0 9 2 1 *"
	}
	if cfg.Schedule.SimulationCron == "" {
		cfg.Schedule.SimulationCron = "0 30 2 * * *"
	}
	if cfg.State.File == "" {
		cfg.State.File = "data/household_state.json"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/retire_sentinel.db"
	}

	return cfg, nil
}

// Validate checks the configuration once at startup.
func (c *Config) Validate() error {
	if err := c.Engine.Validate(); err != nil {
		return err
	}
	if err := c.Simulation.Validate(); err != nil {
		return err
	}
	return nil
}

// Validate checks the harness settings.
func (s Simulation) Validate() error {
	switch s.Method {
	case MethodHistorical, MethodRegimeIID, MethodRegimeMarkov, MethodBlock:
	default:
		return fmt.Errorf("simulation.method %q is not supported", s.Method)
	}
	if s.Runs <= 0 {
		return fmt.Errorf("simulation.runs must be positive")
	}
	if s.MaxYears <= 0 || s.MaxYears > 100 {
		return fmt.Errorf("simulation.max_years must be in [1, 100]")
	}
	if s.Method == MethodBlock && s.BlockSize <= 0 {
		return fmt.Errorf("simulation.block_size must be positive")
	}
	if s.Workers < 0 {
		return fmt.Errorf("simulation.workers must not be negative")
	}
	if s.TimeoutSeconds < 0 {
		return fmt.Errorf("simulation.timeout_seconds must not be negative")
	}
	if s.ChunkSize < 0 {
		return fmt.Errorf("simulation.chunk_size must not be negative")
	}
	return nil
}

// NotifierEnabled reports whether Telegram delivery is configured.
func (c *Config) NotifierEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}
