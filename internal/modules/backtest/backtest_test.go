package backtest

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantlab/volarb/internal/config"
	"github.com/quantlab/volarb/internal/marketdata"
	"github.com/quantlab/volarb/internal/modules/position"
	"github.com/quantlab/volarb/internal/modules/signal"
)

func day(offset int) time.Time {
	return time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
}

func curveOf(values ...float64) []EquityPoint {
	curve := make([]EquityPoint, len(values))
	for i, v := range values {
		curve[i] = EquityPoint{Date: day(i), Value: v}
	}
	return curve
}

func trade(pnl, returnPct float64) position.TradeRecord {
	return position.TradeRecord{
		Type:      signal.TypeBuyVol,
		PnL:       pnl,
		ReturnPct: returnPct,
	}
}

func TestComputeMetricsBasics(t *testing.T) {
	curve := curveOf(100000, 101000, 100500, 102000)
	trades := []position.TradeRecord{trade(1500, 0.15), trade(-500, -0.05), trade(1000, 0.10)}

	m := ComputeMetrics(100000, curve, trades)

	assert.InDelta(t, 0.02, m.TotalReturn, 1e-9)
	assert.Equal(t, 102000.0, m.FinalCapital)
	assert.Equal(t, 3, m.TradeCount)
	assert.InDelta(t, 2.0/3.0, m.WinRate, 1e-9)
	assert.InDelta(t, 2500.0/500.0, m.ProfitFactor, 1e-9)
	assert.InDelta(t, 0.15, m.BestTrade, 1e-9)
	assert.InDelta(t, -0.05, m.WorstTrade, 1e-9)
	assert.InDelta(t, (0.15-0.05+0.10)/3, m.AvgTradeReturn, 1e-9)
	assert.Greater(t, m.MaxDrawdown, 0.0)
	// The curve recovers past the 101000 peak on the final day.
	assert.Equal(t, 0, m.DaysInDrawdown)
	assert.NotZero(t, m.SharpeRatio)
}

func TestComputeMetricsZeroTrades(t *testing.T) {
	m := ComputeMetrics(100000, curveOf(100000, 100000, 100000), nil)

	assert.Equal(t, 0, m.TradeCount)
	assert.Equal(t, 0.0, m.WinRate)
	assert.Equal(t, 0.0, m.ProfitFactor)
	assert.Equal(t, 0.0, m.TotalReturn)
	// Flat curve has no dispersion, so ratios stay zero rather than NaN.
	assert.Equal(t, 0.0, m.SharpeRatio)
	assert.False(t, math.IsNaN(m.SortinoRatio))
}

func TestComputeMetricsTracksTimeUnderWater(t *testing.T) {
	m := ComputeMetrics(100000, curveOf(100000, 102000, 101000, 100500), nil)

	assert.InDelta(t, 1500.0/102000.0, m.MaxDrawdown, 1e-9)
	assert.Equal(t, 2, m.DaysInDrawdown, "two days since the 102000 peak")
}

func TestProfitFactorNoLosses(t *testing.T) {
	m := ComputeMetrics(100000, curveOf(100000, 101000), []position.TradeRecord{trade(500, 0.05)})
	assert.True(t, math.IsInf(m.ProfitFactor, 1))

	m = ComputeMetrics(100000, curveOf(100000, 99000), []position.TradeRecord{trade(-500, -0.05)})
	assert.Equal(t, 0.0, m.ProfitFactor)
}

func TestObjectiveExtraction(t *testing.T) {
	m := Metrics{SharpeRatio: 1.5, TotalReturn: 0.3, MaxDrawdown: 0.2, ProfitFactor: 2}

	got, ok := m.Objective("sharpe_ratio")
	require.True(t, ok)
	assert.Equal(t, 1.5, got)

	got, ok = m.Objective("max_drawdown")
	require.True(t, ok)
	assert.Equal(t, -0.2, got, "drawdown objective is negated for maximizers")

	_, ok = m.Objective("nonsense")
	assert.False(t, ok)

	got, ok = m.Objective("composite")
	require.True(t, ok)
	assert.False(t, math.IsNaN(got))
}

// engineFrame yields a persistent forecast-over-implied edge after warmup.
func engineFrame(n int) *marketdata.Frame {
	ticks := make([]marketdata.Tick, n)
	for i := range ticks {
		ret := 0.01
		if i%2 == 1 {
			ret = -0.01
		}
		ticks[i] = marketdata.Tick{
			Date:        day(i),
			Close:       100,
			Return:      ret,
			RealizedVol: 0.2,
			ImpliedVol:  0.10,
		}
	}
	return marketdata.NewFrame(ticks)
}

func TestEngineRun(t *testing.T) {
	engine := NewEngine(zerolog.Nop())
	cfg := config.DefaultStrategyConfig()

	result, err := engine.Run(context.Background(), cfg, engineFrame(160))
	require.NoError(t, err)

	assert.Len(t, result.EquityCurve, 160-cfg.LookbackPeriod)
	assert.Equal(t, cfg.InitialCapital, result.InitialCapital)
	assert.NotEmpty(t, result.Trades, "a persistent edge should trade")
	assert.Equal(t, len(result.Trades), result.Metrics.TradeCount)

	// Curve ends at the realized final capital after forced closes.
	last := result.EquityCurve[len(result.EquityCurve)-1]
	assert.Equal(t, result.Metrics.FinalCapital, last.Value)
}

func TestEngineRunDeterministic(t *testing.T) {
	engine := NewEngine(zerolog.Nop())
	cfg := config.DefaultStrategyConfig()
	cfg.Policy = "enhanced"

	a, err := engine.Run(context.Background(), cfg, engineFrame(160))
	require.NoError(t, err)
	b, err := engine.Run(context.Background(), cfg, engineFrame(160))
	require.NoError(t, err)

	assert.Equal(t, a.Metrics, b.Metrics)
	assert.Equal(t, len(a.Trades), len(b.Trades))
}

func TestEngineRejectsShortWindow(t *testing.T) {
	engine := NewEngine(zerolog.Nop())
	_, err := engine.Run(context.Background(), config.DefaultStrategyConfig(), engineFrame(30))
	assert.Error(t, err)
}

func TestEngineRejectsInvalidFrame(t *testing.T) {
	engine := NewEngine(zerolog.Nop())
	ticks := []marketdata.Tick{{Date: day(0), Close: -5, ImpliedVol: 0.2}}
	_, err := engine.Run(context.Background(), config.DefaultStrategyConfig(), marketdata.NewFrame(ticks))
	assert.Error(t, err)
}

func TestEngineHonorsContext(t *testing.T) {
	engine := NewEngine(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Run(ctx, config.DefaultStrategyConfig(), engineFrame(160))
	assert.ErrorIs(t, err, context.Canceled)
}
