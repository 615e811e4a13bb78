package backtest

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/quantlab/volarb/internal/config"
	"github.com/quantlab/volarb/internal/marketdata"
	"github.com/quantlab/volarb/internal/modules/strategy"
)

// Engine replays a frame tick by tick through a fresh strategy instance.
type Engine struct {
	log zerolog.Logger
}

// NewEngine creates a backtest Engine.
func NewEngine(log zerolog.Logger) *Engine {
	return &Engine{log: log.With().Str("component", "backtest_engine").Logger()}
}

// Run backtests cfg over the frame. The first lookback ticks are warmup:
// positions may only be opened once the forecaster has a full window. The
// context aborts long runs between ticks.
func (e *Engine) Run(ctx context.Context, cfg config.StrategyConfig, frame *marketdata.Frame) (*Result, error) {
	if err := frame.Validate(); err != nil {
		return nil, fmt.Errorf("invalid market data: %w", err)
	}
	if frame.Len() <= cfg.LookbackPeriod {
		return nil, fmt.Errorf("window too short: %d ticks for lookback %d", frame.Len(), cfg.LookbackPeriod)
	}

	strat, err := strategy.New(e.log, cfg)
	if err != nil {
		return nil, err
	}

	curve := make([]EquityPoint, 0, frame.Len()-cfg.LookbackPeriod)
	for i := cfg.LookbackPeriod + 1; i <= frame.Len(); i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		view := frame.Prefix(i)
		strat.OnTick(view)
		curve = append(curve, EquityPoint{Date: view.Last().Date, Value: strat.Equity()})
	}

	strat.Finish(frame)
	// Final point reflects the forced closes.
	curve[len(curve)-1].Value = strat.Equity()

	trades := strat.Trades()
	result := &Result{
		InitialCapital: cfg.InitialCapital,
		EquityCurve:    curve,
		Trades:         trades,
		Metrics:        ComputeMetrics(cfg.InitialCapital, curve, trades),
	}

	e.log.Info().
		Str("policy", strat.PolicyName()).
		Int("ticks", len(curve)).
		Int("trades", len(trades)).
		Float64("total_return", result.Metrics.TotalReturn).
		Msg("backtest complete")

	return result, nil
}
