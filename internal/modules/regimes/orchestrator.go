package regimes

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/quantlab/volarb/internal/config"
	"github.com/quantlab/volarb/internal/marketdata"
	"github.com/quantlab/volarb/internal/modules/backtest"
)

// Result is one regime's outcome. Err is set when that window could not be
// backtested (for example, too few ticks); other regimes are unaffected.
type Result struct {
	Regime   Regime
	Backtest *backtest.Result
	Err      error
}

// Orchestrator fans a strategy configuration out over regime windows. Each
// regime gets a fresh strategy instance; no state crosses windows.
type Orchestrator struct {
	engine *backtest.Engine
	log    zerolog.Logger
}

// NewOrchestrator creates a regime sweep Orchestrator.
func NewOrchestrator(log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		engine: backtest.NewEngine(log),
		log:    log.With().Str("component", "regime_orchestrator").Logger(),
	}
}

// Run backtests cfg over every regime window concurrently and returns
// results ordered by regime name. The ordering is independent of goroutine
// completion order, so consolidated tables are reproducible.
func (o *Orchestrator) Run(ctx context.Context, cfg config.StrategyConfig, frame *marketdata.Frame, regimeList []Regime) ([]Result, error) {
	if len(regimeList) == 0 {
		return nil, fmt.Errorf("no regimes to run")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid strategy config: %w", err)
	}

	results := make([]Result, len(regimeList))
	var wg sync.WaitGroup

	for i, regime := range regimeList {
		wg.Add(1)
		go func(i int, regime Regime) {
			defer wg.Done()
			results[i] = o.runOne(ctx, cfg, frame, regime)
		}(i, regime)
	}
	wg.Wait()

	sort.Slice(results, func(a, b int) bool {
		return results[a].Regime.Name < results[b].Regime.Name
	})

	return results, nil
}

func (o *Orchestrator) runOne(ctx context.Context, cfg config.StrategyConfig, frame *marketdata.Frame, regime Regime) Result {
	if err := regime.Validate(); err != nil {
		return Result{Regime: regime, Err: err}
	}

	start, _ := regime.Start()
	end, _ := regime.End()
	window := frame.Window(start, end)

	res, err := o.engine.Run(ctx, cfg, window)
	if err != nil {
		o.log.Warn().
			Str("regime", regime.Name).
			Err(err).
			Msg("regime window failed")
		return Result{Regime: regime, Err: fmt.Errorf("regime %s: %w", regime.Name, err)}
	}

	o.log.Info().
		Str("regime", regime.Name).
		Int("trades", res.Metrics.TradeCount).
		Float64("total_return", res.Metrics.TotalReturn).
		Msg("regime complete")

	return Result{Regime: regime, Backtest: res}
}

// Summary is one row of the consolidated table.
type Summary struct {
	Regime           string  `json:"regime"`
	StartDate        string  `json:"start_date"`
	EndDate          string  `json:"end_date"`
	TotalReturn      float64 `json:"total_return"`
	AnnualizedReturn float64 `json:"annualized_return"`
	SharpeRatio      float64 `json:"sharpe_ratio"`
	SortinoRatio     float64 `json:"sortino_ratio"`
	MaxDrawdown      float64 `json:"max_drawdown"`
	WinRate          float64 `json:"win_rate"`
	ProfitFactor     float64 `json:"profit_factor"`
	TradeCount       int     `json:"trade_count"`
	FinalCapital     float64 `json:"final_capital"`
	Error            string  `json:"error,omitempty"`
}

// MarshalJSON emits null for a non-finite profit factor, which encoding/json
// otherwise rejects.
func (s Summary) MarshalJSON() ([]byte, error) {
	type alias Summary
	pf := interface{}(s.ProfitFactor)
	if math.IsInf(s.ProfitFactor, 0) || math.IsNaN(s.ProfitFactor) {
		pf = nil
	}
	return json.Marshal(struct {
		alias
		ProfitFactor interface{} `json:"profit_factor"`
	}{alias(s), pf})
}

// Consolidate flattens results into the canonical table, one row per regime,
// ordered as the results are (by name). Failed regimes keep their row with
// the error recorded.
func Consolidate(results []Result) []Summary {
	table := make([]Summary, 0, len(results))
	for _, r := range results {
		row := Summary{
			Regime:    r.Regime.Name,
			StartDate: r.Regime.StartDate,
			EndDate:   r.Regime.EndDate,
		}
		if r.Err != nil {
			row.Error = r.Err.Error()
		} else if r.Backtest != nil {
			m := r.Backtest.Metrics
			row.TotalReturn = m.TotalReturn
			row.AnnualizedReturn = m.AnnualizedReturn
			row.SharpeRatio = m.SharpeRatio
			row.SortinoRatio = m.SortinoRatio
			row.MaxDrawdown = m.MaxDrawdown
			row.WinRate = m.WinRate
			row.ProfitFactor = m.ProfitFactor
			row.TradeCount = m.TradeCount
			row.FinalCapital = m.FinalCapital
		}
		table = append(table, row)
	}
	return table
}
