// Package strategy composes the decision core: a Policy scores and sizes
// trades, a Strategy drives one policy across a market-data window and owns
// the capital ledger.
//
// Policies are flat compositions, not an inheritance chain: each variant
// wires the same generator, gate and exit machinery with different
// parameters.
package strategy

import (
	"github.com/rs/zerolog"

	"github.com/quantlab/volarb/internal/config"
	"github.com/quantlab/volarb/internal/marketdata"
	"github.com/quantlab/volarb/internal/modules/forecast"
	"github.com/quantlab/volarb/internal/modules/position"
	"github.com/quantlab/volarb/internal/modules/risk"
	"github.com/quantlab/volarb/internal/modules/signal"
)

// Policy is the strategy-variant contract: how entries are gated, scored and
// sized, and which exit rules the position manager enforces.
type Policy interface {
	Name() string

	// EntryThreshold returns the effective threshold for the current market
	// state. Static policies ignore the inputs.
	EntryThreshold(frame *marketdata.Frame, recentPnLs []float64) float64

	// GenerateSignal evaluates the latest tick. ok=false means no actionable
	// edge, the common case.
	GenerateSignal(frame *marketdata.Frame, threshold float64) (signal.Signal, bool)

	// SizePosition gates and sizes a candidate signal.
	SizePosition(sig signal.Signal, cond risk.Conditions) risk.Decision

	// ExitRules returns the exit chain configuration the position manager
	// evaluates each tick.
	ExitRules() position.ExitConfig
}

// volArbPolicy is the single concrete policy; the three variants differ only
// in wiring.
type volArbPolicy struct {
	name          string
	baseThreshold float64
	generator     *signal.Generator
	gate          *risk.Gate
	adjuster      *signal.Adjuster // nil for static thresholds
	exitRules     position.ExitConfig
}

func (p *volArbPolicy) Name() string { return p.name }

func (p *volArbPolicy) EntryThreshold(frame *marketdata.Frame, recentPnLs []float64) float64 {
	if p.adjuster == nil {
		return p.baseThreshold
	}
	adjusted, _ := p.adjuster.Adjust(p.baseThreshold, frame, recentPnLs)
	return adjusted
}

func (p *volArbPolicy) GenerateSignal(frame *marketdata.Frame, threshold float64) (signal.Signal, bool) {
	return p.generator.Generate(frame, threshold)
}

func (p *volArbPolicy) SizePosition(sig signal.Signal, cond risk.Conditions) risk.Decision {
	return p.gate.Evaluate(sig, cond)
}

func (p *volArbPolicy) ExitRules() position.ExitConfig {
	return p.exitRules
}

// applyGateConfig lays the tunable strategy parameters over a gate profile.
// The regime risk ceilings keep their default proportions to max_var.
func applyGateConfig(gateCfg *risk.GateConfig, cfg config.StrategyConfig) {
	gateCfg.KellyFraction = cfg.KellyFraction
	gateCfg.MinPositionSize = cfg.MinPositionSize
	gateCfg.MaxPositionSize = cfg.MaxPositionSize
	gateCfg.MaxPositions = cfg.MaxPositions
	gateCfg.BaseRiskCeiling = cfg.MaxVar
	gateCfg.HighVolRiskCeiling = cfg.MaxVar * 1.2
	gateCfg.LowVolRiskCeiling = cfg.MaxVar * 0.6
	gateCfg.VolRegimeMultiplier = cfg.VolRegimeMultiplier
	gateCfg.VolatilityScaling = cfg.VolatilityScaling
}

// NewPolicy builds the policy variant named by cfg.Policy. Config validation
// rejects unknown names before this point; anything unrecognized here gets
// the base wiring.
func NewPolicy(log zerolog.Logger, cfg config.StrategyConfig) Policy {
	forecaster := forecast.NewWithParams(log, 0.00001, 0.1, 0.85, cfg.LookbackPeriod)

	gateCfg := risk.DefaultGateConfig()
	applyGateConfig(&gateCfg, cfg)

	exitCfg := position.DefaultExitConfig()
	exitCfg.ProfitTarget = cfg.ProfitTarget
	exitCfg.StopLoss = cfg.StopLoss

	switch cfg.Policy {
	case "enhanced":
		full := position.FullExitConfig()
		full.ProfitTarget = cfg.ProfitTarget
		full.StopLoss = cfg.StopLoss
		full.TrailingDistance = cfg.TrailingStopPct

		var adjuster *signal.Adjuster
		if cfg.DynamicThresholds {
			adjuster = signal.NewAdjuster(log, signal.DefaultAdjusterConfig())
		}

		return &volArbPolicy{
			name:          "enhanced",
			baseThreshold: cfg.EntryThreshold,
			generator:     signal.NewGenerator(log, forecaster, signal.Options{RegimeAlignment: true, WideStrikes: true}),
			gate:          risk.NewGate(log, gateCfg),
			adjuster:      adjuster,
			exitRules:     full,
		}

	case "optimized":
		conservative := risk.ConservativeGateConfig()
		applyGateConfig(&conservative, cfg)

		full := position.FullExitConfig()
		full.ProfitTarget = cfg.ProfitTarget
		full.StopLoss = cfg.StopLoss
		full.TrailingDistance = cfg.TrailingStopPct
		full.CloseWindowDays = 5
		full.TrailingActivation = 0.15

		var adjuster *signal.Adjuster
		if cfg.DynamicThresholds {
			adjuster = signal.NewAdjuster(log, signal.TightAdjusterConfig())
		}

		return &volArbPolicy{
			name:          "optimized",
			baseThreshold: cfg.EntryThreshold,
			generator:     signal.NewGenerator(log, forecaster, signal.Options{RegimeAlignment: true, WideStrikes: true}),
			gate:          risk.NewGate(log, conservative),
			adjuster:      adjuster,
			exitRules:     full,
		}

	default:
		return &volArbPolicy{
			name:          "base",
			baseThreshold: cfg.EntryThreshold,
			generator:     signal.NewGenerator(log, forecaster, signal.Options{}),
			gate:          risk.NewGate(log, gateCfg),
			exitRules:     exitCfg,
		}
	}
}
