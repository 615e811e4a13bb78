// Package backtest runs a strategy over a market-data window and reduces the
// outcome to summary metrics.
package backtest

import (
	"encoding/json"
	"math"
	"time"

	"github.com/quantlab/volarb/internal/modules/position"
	"github.com/quantlab/volarb/pkg/formulas"
)

// EquityPoint is one day of the equity curve: realized capital plus the
// marks of open positions.
type EquityPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// Metrics summarizes a completed run. Ratios that need dispersion are zero
// when the curve is too flat or short to define them.
type Metrics struct {
	TotalReturn      float64 `json:"total_return"`
	AnnualizedReturn float64 `json:"annualized_return"`
	Volatility       float64 `json:"volatility"`
	SharpeRatio      float64 `json:"sharpe_ratio"`
	SortinoRatio     float64 `json:"sortino_ratio"`
	MaxDrawdown      float64 `json:"max_drawdown"`
	DaysInDrawdown   int     `json:"days_in_drawdown"`
	WinRate          float64 `json:"win_rate"`
	ProfitFactor     float64 `json:"profit_factor"`
	TradeCount       int     `json:"trade_count"`
	AvgTradeReturn   float64 `json:"avg_trade_return"`
	BestTrade        float64 `json:"best_trade"`
	WorstTrade       float64 `json:"worst_trade"`
	FinalCapital     float64 `json:"final_capital"`
}

// MarshalJSON emits null for a non-finite profit factor, which encoding/json
// otherwise rejects.
func (m Metrics) MarshalJSON() ([]byte, error) {
	type alias Metrics
	return json.Marshal(struct {
		alias
		ProfitFactor interface{} `json:"profit_factor"`
	}{alias(m), finiteOrNil(m.ProfitFactor)})
}

func finiteOrNil(v float64) interface{} {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return v
}

// Result is the full artifact of one run.
type Result struct {
	InitialCapital float64                `json:"initial_capital"`
	EquityCurve    []EquityPoint          `json:"equity_curve"`
	Trades         []position.TradeRecord `json:"trades"`
	Metrics        Metrics                `json:"metrics"`
}

// ComputeMetrics reduces an equity curve and trade log to summary metrics.
// A zero-trade run is valid and produces zeroed trade statistics.
func ComputeMetrics(initialCapital float64, curve []EquityPoint, trades []position.TradeRecord) Metrics {
	m := Metrics{TradeCount: len(trades)}

	if len(curve) > 0 {
		final := curve[len(curve)-1].Value
		m.FinalCapital = final
		if initialCapital > 0 {
			m.TotalReturn = (final - initialCapital) / initialCapital
		}

		days := int(curve[len(curve)-1].Date.Sub(curve[0].Date).Hours()/24) + 1
		m.AnnualizedReturn = formulas.CalculateAnnualizedReturn(m.TotalReturn, days)
	}

	values := make([]float64, len(curve))
	for i, p := range curve {
		values[i] = p.Value
	}
	dailyReturns := formulas.CalculateReturns(values)
	m.Volatility = formulas.AnnualizedVolatility(dailyReturns)

	if sharpe := formulas.CalculateSharpeRatio(dailyReturns, 0, 252); sharpe != nil {
		m.SharpeRatio = *sharpe
	}
	if sortino := formulas.CalculateSortinoRatio(dailyReturns, 0, 0, 252); sortino != nil {
		m.SortinoRatio = *sortino
	}
	if dd := formulas.CalculateDrawdownMetrics(values); dd != nil {
		m.MaxDrawdown = dd.MaxDrawdown
		m.DaysInDrawdown = dd.DaysInDrawdown
	}

	if len(trades) == 0 {
		return m
	}

	var wins int
	var grossProfit, grossLoss, returnSum float64
	m.BestTrade = math.Inf(-1)
	m.WorstTrade = math.Inf(1)

	for _, t := range trades {
		returnSum += t.ReturnPct
		if t.PnL > 0 {
			wins++
			grossProfit += t.PnL
		} else {
			grossLoss += -t.PnL
		}
		if t.ReturnPct > m.BestTrade {
			m.BestTrade = t.ReturnPct
		}
		if t.ReturnPct < m.WorstTrade {
			m.WorstTrade = t.ReturnPct
		}
	}

	m.WinRate = float64(wins) / float64(len(trades))
	m.AvgTradeReturn = returnSum / float64(len(trades))

	switch {
	case grossLoss > 0:
		m.ProfitFactor = grossProfit / grossLoss
	case grossProfit > 0:
		m.ProfitFactor = math.Inf(1)
	default:
		m.ProfitFactor = 0
	}

	return m
}

// Objective extracts a named metric for optimization. The boolean is false
// for unknown names.
func (m Metrics) Objective(name string) (float64, bool) {
	switch name {
	case "sharpe_ratio":
		return m.SharpeRatio, true
	case "sortino_ratio":
		return m.SortinoRatio, true
	case "total_return":
		return m.TotalReturn, true
	case "annualized_return":
		return m.AnnualizedReturn, true
	case "profit_factor":
		return m.ProfitFactor, true
	case "win_rate":
		return m.WinRate, true
	case "max_drawdown":
		// Smaller drawdowns are better; negate so maximizers work unchanged.
		return -m.MaxDrawdown, true
	case "composite":
		return m.composite(), true
	}
	return 0, false
}

// composite blends risk-adjusted return, drawdown and consistency into one
// score for sweeps that should not chase Sharpe alone.
func (m Metrics) composite() float64 {
	pf := m.ProfitFactor
	if math.IsInf(pf, 1) {
		pf = 10
	}
	return 0.5*m.SharpeRatio + 0.2*m.AnnualizedReturn*10 - 0.2*m.MaxDrawdown*10 + 0.1*pf
}
