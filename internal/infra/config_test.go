package infra

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const baseConfig = `
trading:
  mode: paper
  symbol: BTCUSDT
grid:
  lower_price: 100
  upper_price: 200
  levels: 5
  order_size: 0.1
  max_position_size: 0.5
`

func TestLoadConfig_GridTimersAndLogCap(t *testing.T) {
	path := writeConfig(t, baseConfig+`
  mode: geometric
  refresh_interval_ms: 250
  deferred_timeout_ms: 5000
  suppression_ttl_ms: 4000
  placement_cooldown_ms: 1500
  max_log_entries: 50
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Grid.Mode != "geometric" {
		t.Errorf("grid mode = %q, want geometric", cfg.Grid.Mode)
	}
	if got := cfg.RefreshInterval(); got != 250*time.Millisecond {
		t.Errorf("refresh interval = %v, want 250ms", got)
	}
	if got := cfg.DeferredTimeout(); got != 5*time.Second {
		t.Errorf("deferred timeout = %v, want 5s", got)
	}
	if got := cfg.SuppressionTTL(); got != 4*time.Second {
		t.Errorf("suppression ttl = %v, want 4s", got)
	}
	if got := cfg.PlacementCooldown(); got != 1500*time.Millisecond {
		t.Errorf("placement cooldown = %v, want 1.5s", got)
	}
	if cfg.Grid.MaxLogEntries != 50 {
		t.Errorf("max log entries = %d, want 50", cfg.Grid.MaxLogEntries)
	}
}

func TestLoadConfig_TimerDefaultsAreZero(t *testing.T) {
	// Unset timers stay zero so the engine applies its own defaults.
	cfg, err := LoadConfig(writeConfig(t, baseConfig))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if got := cfg.DeferredTimeout(); got != 0 {
		t.Errorf("deferred timeout = %v, want 0", got)
	}
	if got := cfg.SuppressionTTL(); got != 0 {
		t.Errorf("suppression ttl = %v, want 0", got)
	}
	if got := cfg.PlacementCooldown(); got != 0 {
		t.Errorf("placement cooldown = %v, want 0", got)
	}
	if got := cfg.RefreshInterval(); got != 500*time.Millisecond {
		t.Errorf("refresh interval default = %v, want 500ms", got)
	}
}

func TestLoadConfig_RejectsBadMode(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `
trading:
  mode: replay
  symbol: BTCUSDT
grid:
  lower_price: 100
  upper_price: 200
  levels: 5
  order_size: 0.1
  max_position_size: 0.5
`))
	if err == nil {
		t.Fatal("expected error for unknown trading mode")
	}
}
