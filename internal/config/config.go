// Package config loads the simulator's configuration: a structured YAML
// file for the rich option surface of spec §6, overlaid with environment
// variables (via godotenv) for secrets — DB DSN, feed credentials. This is
// the same split the teacher uses (.env for secrets, code for structured
// defaults), generalized to a YAML file since this system's option surface
// does not fit flat env vars.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

func init() {
	_ = godotenv.Load()
}

// Simulation holds the trade-execution knobs of spec §6.
type Simulation struct {
	InitialSolBalance         float64 `yaml:"initial_sol_balance"`
	PositionSizeSol           float64 `yaml:"position_size_sol"`
	ExecutionDelayMs          int     `yaml:"execution_delay_ms"`
	BaseSlippageBps           float64 `yaml:"base_slippage_bps"`
	PriceImpactFactor         float64 `yaml:"price_impact_factor"`
	MaxSlippageBps            float64 `yaml:"max_slippage_bps"`
	MaxTradesPerWalletPerMin  int     `yaml:"max_trades_per_wallet_per_minute"`
	SnapshotIntervalSeconds   int     `yaml:"snapshot_interval_seconds"`
	SkipMigratedTokens        bool    `yaml:"skip_migrated_tokens"`
}

// WebSocket holds the feed connection knobs of spec §6.
type WebSocket struct {
	URL                   string  `yaml:"url"`
	ReconnectBaseDelayMs  int     `yaml:"reconnect_base_delay_ms"`
	ReconnectMaxDelayMs   int     `yaml:"reconnect_max_delay_ms"`
	ReconnectJitterFactor float64 `yaml:"reconnect_jitter_factor"`
	ReceiveBufferSize     int     `yaml:"receive_buffer_size"`
	DedupBufferSize       int     `yaml:"dedup_buffer_size"`
}

// WalletTracking maps a wallet id to a display alias; membership is what
// subscribes the wallet (spec §6).
type WalletTracking map[string]string

// Replay holds the replay-mode knobs of spec §6.
type Replay struct {
	Enabled       bool     `yaml:"enabled"`
	From          string   `yaml:"from"`
	To            string   `yaml:"to"`
	FilterWallets []string `yaml:"filter_wallets"`
	BatchSize     int      `yaml:"batch_size"`
}

// Config is the root of the loaded configuration file.
type Config struct {
	Simulation     Simulation     `yaml:"simulation"`
	WebSocket      WebSocket      `yaml:"websocket"`
	WalletTracking WalletTracking `yaml:"wallet_tracking"`
	Replay         Replay         `yaml:"replay"`

	// DatabaseDSN and FeedAuthToken come from the environment, never from
	// the YAML file (spec.md's secrets/structured-config split).
	DatabaseDSN  string `yaml:"-"`
	FeedAuthToken string `yaml:"-"`
}

// Load reads the YAML config named by $MIRRORCURVE_CONFIG (default
// ./config.yaml), overlays secrets from the environment, validates every
// numeric bound in spec §6, and returns the assembled Config. Any
// out-of-range value is a fatal startup error (spec §7).
func Load() (*Config, error) {
	path := getEnv("MIRRORCURVE_CONFIG", "./config.yaml")

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.DatabaseDSN = getEnv("MIRRORCURVE_DATABASE_DSN", "")
	cfg.FeedAuthToken = getEnv("MIRRORCURVE_FEED_TOKEN", "")

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	s := c.Simulation
	if err := boundsFloat("simulation.initial_sol_balance", s.InitialSolBalance, 0.01, 10000); err != nil {
		return err
	}
	if err := boundsFloat("simulation.position_size_sol", s.PositionSizeSol, 0.001, 1000); err != nil {
		return err
	}
	if err := boundsInt("simulation.execution_delay_ms", s.ExecutionDelayMs, 0, 30000); err != nil {
		return err
	}
	if err := boundsFloat("simulation.base_slippage_bps", s.BaseSlippageBps, 0, 5000); err != nil {
		return err
	}
	if err := boundsFloat("simulation.price_impact_factor", s.PriceImpactFactor, 0, 100); err != nil {
		return err
	}
	if err := boundsFloat("simulation.max_slippage_bps", s.MaxSlippageBps, 0, 10000); err != nil {
		return err
	}
	if err := boundsInt("simulation.max_trades_per_wallet_per_minute", s.MaxTradesPerWalletPerMin, 1, 1000); err != nil {
		return err
	}
	if err := boundsInt("simulation.snapshot_interval_seconds", s.SnapshotIntervalSeconds, 10, 3600); err != nil {
		return err
	}

	w := c.WebSocket
	if err := boundsFloat("websocket.reconnect_jitter_factor", w.ReconnectJitterFactor, 0.0, 1.0); err != nil {
		return err
	}
	if w.URL == "" {
		return fmt.Errorf("websocket.url must not be empty")
	}

	if c.Replay.Enabled {
		if c.Replay.From == "" || c.Replay.To == "" {
			return fmt.Errorf("replay.from and replay.to are required when replay.enabled is true")
		}
	}

	return nil
}

func boundsFloat(field string, v, lo, hi float64) error {
	if v < lo || v > hi {
		return fmt.Errorf("%s = %v out of range [%v, %v]", field, v, lo, hi)
	}
	return nil
}

func boundsInt(field string, v, lo, hi int) error {
	if v < lo || v > hi {
		return fmt.Errorf("%s = %v out of range [%v, %v]", field, v, lo, hi)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// ReplayWindow parses Replay.From/To as RFC3339 timestamps. A missing or
// malformed endpoint while replay is enabled is a fatal startup error (spec
// §7).
func (r Replay) ReplayWindow() (from, to time.Time, err error) {
	from, err = time.Parse(time.RFC3339, r.From)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("replay.from: %w", err)
	}
	to, err = time.Parse(time.RFC3339, r.To)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("replay.to: %w", err)
	}
	return from, to, nil
}
