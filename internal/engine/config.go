package engine

import (
	"fmt"
	"time"
)

// GridModeGeometric is the only supported level spacing.
const GridModeGeometric = "geometric"

// Direction restricts which entry sides the grid may open.
type Direction string

const (
	DirectionBoth  Direction = "both"
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// Config is the engine's strategy configuration.
type Config struct {
	Symbol     string
	LowerPrice float64
	UpperPrice float64
	GridLevels int
	GridMode   string

	OrderSize       float64
	MaxPositionSize float64

	StopLossPct       float64
	RestartTriggerPct float64
	AutoRestart       bool

	RefreshInterval time.Duration
	PriceTick       float64
	QtyStep         float64
	Direction       Direction

	// MaxPriceDeviationPct feeds the coordinator's mark-price guard.
	MaxPriceDeviationPct float64

	MaxLogEntries int

	// DeferredTimeout bounds how long a level stays blocked on an
	// ambiguous order disappearance before it is treated as a no-op.
	DeferredTimeout time.Duration
	// SuppressionTTL is the re-attempt block per (side, price, intent).
	SuppressionTTL time.Duration
	// PlacementCooldown throttles placements when the order snapshot has
	// not advanced since the last attempt.
	PlacementCooldown time.Duration
}

func (c *Config) applyDefaults() {
	if c.GridMode == "" {
		c.GridMode = GridModeGeometric
	}
	if c.Direction == "" {
		c.Direction = DirectionBoth
	}
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = 500 * time.Millisecond
	}
	if c.PriceTick <= 0 {
		c.PriceTick = 0.00001
	}
	if c.QtyStep <= 0 {
		c.QtyStep = 0.001
	}
	if c.MaxLogEntries <= 0 {
		c.MaxLogEntries = 200
	}
	if c.DeferredTimeout <= 0 {
		c.DeferredTimeout = 8 * time.Second
	}
	if c.SuppressionTTL <= 0 {
		c.SuppressionTTL = 10 * time.Second
	}
	if c.PlacementCooldown <= 0 {
		c.PlacementCooldown = 3 * time.Second
	}
	if c.MaxPriceDeviationPct < 0 {
		c.MaxPriceDeviationPct = 0
	}
}

// Validate rejects configurations the grid cannot run on.
func (c *Config) Validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if c.GridMode != GridModeGeometric {
		return fmt.Errorf("unsupported grid mode %q (only %q)", c.GridMode, GridModeGeometric)
	}
	if c.GridLevels < 2 {
		return fmt.Errorf("gridLevels must be >= 2, got %d", c.GridLevels)
	}
	if c.LowerPrice <= 0 || c.UpperPrice <= c.LowerPrice {
		return fmt.Errorf("price bounds invalid: lower=%v upper=%v", c.LowerPrice, c.UpperPrice)
	}
	if c.OrderSize <= 0 {
		return fmt.Errorf("orderSize must be positive")
	}
	if c.MaxPositionSize <= 0 {
		return fmt.Errorf("maxPositionSize must be positive")
	}
	switch c.Direction {
	case DirectionBoth, DirectionLong, DirectionShort:
	default:
		return fmt.Errorf("unknown direction %q", c.Direction)
	}
	return nil
}
