package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validYAML = `
simulation:
  initial_sol_balance: 10.0
  position_size_sol: 1.0
  execution_delay_ms: 200
  base_slippage_bps: 100
  price_impact_factor: 1.0
  max_slippage_bps: 2000
  max_trades_per_wallet_per_minute: 10
  snapshot_interval_seconds: 60
  skip_migrated_tokens: true
websocket:
  url: "wss://example.invalid/feed"
  reconnect_base_delay_ms: 500
  reconnect_max_delay_ms: 30000
  reconnect_jitter_factor: 0.2
  receive_buffer_size: 256
  dedup_buffer_size: 10000
wallet_tracking:
  walletA: "alpha"
replay:
  enabled: false
`

func writeConfig(t *testing.T, body string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MIRRORCURVE_CONFIG", path)
}

func TestLoadValidConfig(t *testing.T) {
	writeConfig(t, validYAML)
	t.Setenv("MIRRORCURVE_DATABASE_DSN", "postgres://localhost/test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Simulation.InitialSolBalance != 10.0 {
		t.Errorf("initial_sol_balance = %v, want 10.0", cfg.Simulation.InitialSolBalance)
	}
	if cfg.WalletTracking["walletA"] != "alpha" {
		t.Errorf("wallet_tracking[walletA] = %q, want alpha", cfg.WalletTracking["walletA"])
	}
	if cfg.DatabaseDSN != "postgres://localhost/test" {
		t.Errorf("database dsn = %q, not picked up from env", cfg.DatabaseDSN)
	}
}

func TestLoadRejectsOutOfRangeValue(t *testing.T) {
	bad := `
simulation:
  initial_sol_balance: 99999
  position_size_sol: 1.0
  execution_delay_ms: 200
  base_slippage_bps: 100
  price_impact_factor: 1.0
  max_slippage_bps: 2000
  max_trades_per_wallet_per_minute: 10
  snapshot_interval_seconds: 60
websocket:
  url: "wss://example.invalid/feed"
  reconnect_jitter_factor: 0.2
`
	writeConfig(t, bad)
	if _, err := Load(); err == nil {
		t.Fatal("expected validation error for out-of-range initial_sol_balance")
	}
}

func TestLoadRejectsEmptyWebSocketURL(t *testing.T) {
	bad := `
simulation:
  initial_sol_balance: 10.0
  position_size_sol: 1.0
  execution_delay_ms: 200
  base_slippage_bps: 100
  price_impact_factor: 1.0
  max_slippage_bps: 2000
  max_trades_per_wallet_per_minute: 10
  snapshot_interval_seconds: 60
websocket:
  reconnect_jitter_factor: 0.2
`
	writeConfig(t, bad)
	if _, err := Load(); err == nil {
		t.Fatal("expected validation error for empty websocket.url")
	}
}

func TestLoadRejectsReplayEnabledWithoutWindow(t *testing.T) {
	bad := strings.Replace(validYAML, "enabled: false", "enabled: true", 1)
	writeConfig(t, bad)
	if _, err := Load(); err == nil {
		t.Fatal("expected validation error for replay enabled without from/to")
	}
}

func TestReplayWindowParsesRFC3339(t *testing.T) {
	r := Replay{Enabled: true, From: "2026-01-01T00:00:00Z", To: "2026-01-02T00:00:00Z"}
	from, to, err := r.ReplayWindow()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !to.After(from) {
		t.Error("expected to > from")
	}
}

func TestReplayWindowRejectsMalformedTimestamp(t *testing.T) {
	r := Replay{From: "not-a-time", To: "2026-01-02T00:00:00Z"}
	if _, _, err := r.ReplayWindow(); err == nil {
		t.Fatal("expected parse error")
	}
}
