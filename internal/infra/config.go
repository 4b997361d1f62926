package infra

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Trading modes.
const (
	ModePaper = "paper"
	ModeLive  = "live"
)

// Config holds the whole application configuration. Secrets may be
// overridden from environment variables after loading.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Trading struct {
		Mode   string `yaml:"mode"` // paper | live
		Symbol string `yaml:"symbol"`
		// CancelOnExit wipes resting orders during graceful shutdown.
		CancelOnExit bool `yaml:"cancel_on_exit"`
	} `yaml:"trading"`

	Grid struct {
		LowerPrice           float64 `yaml:"lower_price"`
		UpperPrice           float64 `yaml:"upper_price"`
		Levels               int     `yaml:"levels"`
		Mode                 string  `yaml:"mode"` // geometric
		OrderSize            float64 `yaml:"order_size"`
		MaxPositionSize      float64 `yaml:"max_position_size"`
		StopLossPct          float64 `yaml:"stop_loss_pct"`
		RestartTriggerPct    float64 `yaml:"restart_trigger_pct"`
		AutoRestart          bool    `yaml:"auto_restart"`
		Direction            string  `yaml:"direction"` // both | long | short
		MaxPriceDeviationPct float64 `yaml:"max_price_deviation_pct"`
		RefreshIntervalMS    int     `yaml:"refresh_interval_ms"`
		DeferredTimeoutMS    int     `yaml:"deferred_timeout_ms"`
		SuppressionTTLMS     int     `yaml:"suppression_ttl_ms"`
		PlacementCooldownMS  int     `yaml:"placement_cooldown_ms"`
		MaxLogEntries        int     `yaml:"max_log_entries"`
		PriceTick            float64 `yaml:"price_tick"`
		QtyStep              float64 `yaml:"qty_step"`
	} `yaml:"grid"`

	API struct {
		Aster struct {
			RestURL   string `yaml:"rest_url"`
			WSURL     string `yaml:"ws_url"`
			APIKey    string `yaml:"api_key"`
			APISecret string `yaml:"api_secret"`
		} `yaml:"aster"`
	} `yaml:"api"`

	Paper struct {
		InitialBalance float64 `yaml:"initial_balance"`
	} `yaml:"paper"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the configuration file, applies
// environment overrides and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Trading.Mode) {
	case ModePaper, ModeLive:
	default:
		return fmt.Errorf("trading mode must be %q or %q, got %q", ModePaper, ModeLive, c.Trading.Mode)
	}
	if c.Trading.Symbol == "" {
		return fmt.Errorf("trading symbol is required")
	}
	if c.Grid.Levels < 2 {
		return fmt.Errorf("grid levels must be >= 2, got %d", c.Grid.Levels)
	}
	if c.Grid.LowerPrice <= 0 || c.Grid.UpperPrice <= c.Grid.LowerPrice {
		return fmt.Errorf("grid bounds invalid: lower=%v upper=%v", c.Grid.LowerPrice, c.Grid.UpperPrice)
	}
	if c.Grid.OrderSize <= 0 || c.Grid.MaxPositionSize <= 0 {
		return fmt.Errorf("grid order sizes must be positive")
	}

	if strings.ToLower(c.Trading.Mode) == ModeLive {
		if c.API.Aster.RestURL == "" {
			return fmt.Errorf("aster rest_url is required in live mode")
		}
		ws := c.API.Aster.WSURL
		if ws == "" || (!strings.HasPrefix(ws, "ws://") && !strings.HasPrefix(ws, "wss://")) {
			return fmt.Errorf("invalid aster WS URL: %s", ws)
		}
		if c.API.Aster.APIKey == "" || c.API.Aster.APISecret == "" {
			return fmt.Errorf("aster API credentials are required in live mode")
		}
	}
	return nil
}

// RefreshInterval returns the engine tick interval with the default applied.
func (c *Config) RefreshInterval() time.Duration {
	if c.Grid.RefreshIntervalMS <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(c.Grid.RefreshIntervalMS) * time.Millisecond
}

// Reconciliation timers. Zero means "use the engine default"; the engine
// fills those in itself.

func (c *Config) DeferredTimeout() time.Duration {
	return time.Duration(c.Grid.DeferredTimeoutMS) * time.Millisecond
}

func (c *Config) SuppressionTTL() time.Duration {
	return time.Duration(c.Grid.SuppressionTTLMS) * time.Millisecond
}

func (c *Config) PlacementCooldown() time.Duration {
	return time.Duration(c.Grid.PlacementCooldownMS) * time.Millisecond
}

// overrideWithEnv applies environment variables over file values.
// Environment wins so secrets can stay out of the config file.
func overrideWithEnv(cfg *Config) {
	if cfg.API.Aster.APISecret != "" {
		fmt.Println("WARNING: API secret found in config file.")
		fmt.Println("  Prefer environment variables: GRIDBOT_API_KEY, GRIDBOT_API_SECRET")
	}

	if key := os.Getenv("GRIDBOT_API_KEY"); key != "" {
		cfg.API.Aster.APIKey = key
	}
	if secret := os.Getenv("GRIDBOT_API_SECRET"); secret != "" {
		cfg.API.Aster.APISecret = secret
	}
	if mode := os.Getenv("GRIDBOT_MODE"); mode != "" {
		cfg.Trading.Mode = mode
	}
}
