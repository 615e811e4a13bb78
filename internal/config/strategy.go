package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// StrategyConfig holds the tunable parameters of one strategy instance.
// Parameter sweeps mutate copies of this struct; regime sweeps share one.
type StrategyConfig struct {
	Policy         string  `toml:"policy"` // base, enhanced, optimized
	InitialCapital float64 `toml:"initial_capital"`
	EntryThreshold float64 `toml:"entry_threshold"`
	LookbackPeriod int     `toml:"lookback_period"`

	KellyFraction   float64 `toml:"kelly_fraction"`
	MinPositionSize float64 `toml:"min_position_size"`
	MaxPositionSize float64 `toml:"max_position_size"`
	MaxPositions    int     `toml:"max_positions"`

	MaxVar              float64 `toml:"max_var"` // fraction of capital at risk per trade
	VolRegimeMultiplier float64 `toml:"vol_regime_multiplier"`
	VolatilityScaling   bool    `toml:"volatility_scaling"`

	ProfitTarget    float64 `toml:"profit_target"`
	StopLoss        float64 `toml:"stop_loss"`
	TrailingStopPct float64 `toml:"trailing_stop_pct"`

	DynamicThresholds bool `toml:"dynamic_thresholds"`
}

// DefaultStrategyConfig returns the moderate baseline parameters.
func DefaultStrategyConfig() StrategyConfig {
	return StrategyConfig{
		Policy:              "base",
		InitialCapital:      100000,
		EntryThreshold:      0.05,
		LookbackPeriod:      60,
		KellyFraction:       0.25,
		MinPositionSize:     0.02,
		MaxPositionSize:     0.15,
		MaxPositions:        5,
		MaxVar:              0.10,
		VolRegimeMultiplier: 1.4,
		VolatilityScaling:   true,
		ProfitTarget:        0.50,
		StopLoss:            -0.30,
		TrailingStopPct:     0.10,
		DynamicThresholds:   false,
	}
}

// Validate rejects out-of-domain parameters. These are caller bugs, not
// market conditions, so they surface as errors.
func (c StrategyConfig) Validate() error {
	switch c.Policy {
	case "base", "enhanced", "optimized":
	default:
		return fmt.Errorf("unknown policy %q", c.Policy)
	}
	if c.InitialCapital <= 0 {
		return fmt.Errorf("initial_capital must be positive, got %v", c.InitialCapital)
	}
	if c.EntryThreshold <= 0 {
		return fmt.Errorf("entry_threshold must be positive, got %v", c.EntryThreshold)
	}
	if c.LookbackPeriod <= 0 {
		return fmt.Errorf("lookback_period must be positive, got %d", c.LookbackPeriod)
	}
	if c.KellyFraction <= 0 || c.KellyFraction > 1 {
		return fmt.Errorf("kelly_fraction must be in (0, 1], got %v", c.KellyFraction)
	}
	if c.MinPositionSize <= 0 || c.MaxPositionSize <= 0 || c.MinPositionSize > c.MaxPositionSize {
		return fmt.Errorf("position size bounds inverted: min %v, max %v", c.MinPositionSize, c.MaxPositionSize)
	}
	if c.MaxPositions <= 0 {
		return fmt.Errorf("max_positions must be positive, got %d", c.MaxPositions)
	}
	if c.MaxVar <= 0 || c.MaxVar > 1 {
		return fmt.Errorf("max_var must be in (0, 1], got %v", c.MaxVar)
	}
	if c.VolRegimeMultiplier <= 0 {
		return fmt.Errorf("vol_regime_multiplier must be positive, got %v", c.VolRegimeMultiplier)
	}
	if c.ProfitTarget <= 0 {
		return fmt.Errorf("profit_target must be positive, got %v", c.ProfitTarget)
	}
	if c.StopLoss >= 0 {
		return fmt.Errorf("stop_loss must be negative, got %v", c.StopLoss)
	}
	if c.TrailingStopPct <= 0 {
		return fmt.Errorf("trailing_stop_pct must be positive, got %v", c.TrailingStopPct)
	}
	return nil
}

// LoadStrategyConfig reads a strategy TOML file, applying defaults for
// omitted keys.
func LoadStrategyConfig(path string) (StrategyConfig, error) {
	cfg := DefaultStrategyConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, fmt.Errorf("strategy config not found: %s", path)
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse strategy config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
