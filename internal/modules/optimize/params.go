package optimize

import (
	"fmt"
	"math"

	"github.com/quantlab/volarb/internal/config"
)

// ApplyParams copies a base strategy configuration and overrides the named
// parameters. Integer fields are rounded. Unknown parameter names are errors
// so a mistyped grid fails loudly instead of sweeping a no-op.
func ApplyParams(base config.StrategyConfig, params map[string]float64) (config.StrategyConfig, error) {
	cfg := base
	for name, value := range params {
		switch name {
		case "entry_threshold":
			cfg.EntryThreshold = value
		case "lookback_period":
			cfg.LookbackPeriod = int(math.Round(value))
		case "kelly_fraction":
			cfg.KellyFraction = value
		case "min_position_size":
			cfg.MinPositionSize = value
		case "max_position_size":
			cfg.MaxPositionSize = value
		case "max_positions":
			cfg.MaxPositions = int(math.Round(value))
		case "max_var":
			cfg.MaxVar = value
		case "vol_regime_multiplier":
			cfg.VolRegimeMultiplier = value
		case "volatility_scaling":
			cfg.VolatilityScaling = value != 0
		case "profit_target":
			cfg.ProfitTarget = value
		case "stop_loss":
			cfg.StopLoss = value
		case "trailing_stop_pct":
			cfg.TrailingStopPct = value
		default:
			return cfg, fmt.Errorf("unknown sweep parameter %q", name)
		}
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
