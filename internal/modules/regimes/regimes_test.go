package regimes

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantlab/volarb/internal/config"
	"github.com/quantlab/volarb/internal/database"
	"github.com/quantlab/volarb/internal/marketdata"
)

func writeRegimesFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "regimes.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadRegimes(t *testing.T) {
	path := writeRegimesFile(t, `
[[regimes]]
name = "covid_crash"
start_date = "2020-02-01"
end_date = "2020-06-30"
description = "Pandemic selloff and rebound"
characteristics = ["high_vol", "fast_reversal"]

[[regimes]]
name = "low_vol_2017"
start_date = "2017-01-01"
end_date = "2017-12-31"
`)

	regimeList, err := LoadRegimes(path)
	require.NoError(t, err)
	require.Len(t, regimeList, 2)
	assert.Equal(t, "covid_crash", regimeList[0].Name)
	assert.Equal(t, []string{"high_vol", "fast_reversal"}, regimeList[0].Characteristics)

	start, err := regimeList[0].Start()
	require.NoError(t, err)
	assert.Equal(t, 2020, start.Year())
}

func TestLoadRegimesRejectsDuplicates(t *testing.T) {
	path := writeRegimesFile(t, `
[[regimes]]
name = "twice"
start_date = "2020-01-01"
end_date = "2020-06-30"

[[regimes]]
name = "twice"
start_date = "2021-01-01"
end_date = "2021-06-30"
`)

	_, err := LoadRegimes(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestLoadRegimesRejectsBadWindows(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing name", "[[regimes]]\nstart_date = \"2020-01-01\"\nend_date = \"2020-06-30\"\n"},
		{"bad date", "[[regimes]]\nname = \"x\"\nstart_date = \"not-a-date\"\nend_date = \"2020-06-30\"\n"},
		{"inverted window", "[[regimes]]\nname = \"x\"\nstart_date = \"2021-01-01\"\nend_date = \"2020-06-30\"\n"},
		{"empty file", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadRegimes(writeRegimesFile(t, tt.content))
			assert.Error(t, err)
		})
	}
}

// sweepFrame spans 2020 with a persistent edge in the first half and no edge
// in the second.
func sweepFrame() *marketdata.Frame {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	n := 360
	ticks := make([]marketdata.Tick, n)
	for i := 0; i < n; i++ {
		ret := 0.01
		if i%2 == 1 {
			ret = -0.01
		}
		implied := 0.10 // cheap vol: forecast wins
		if i >= 180 {
			implied = 0.18 // fair vol: no edge
		}
		ticks[i] = marketdata.Tick{
			Date:        start.AddDate(0, 0, i),
			Close:       100,
			Return:      ret,
			RealizedVol: 0.2,
			ImpliedVol:  implied,
		}
	}
	return marketdata.NewFrame(ticks)
}

func testRegimes() []Regime {
	return []Regime{
		{Name: "edge_half", StartDate: "2020-01-01", EndDate: "2020-06-25"},
		{Name: "quiet_half", StartDate: "2020-07-01", EndDate: "2020-12-20"},
	}
}

func TestOrchestratorRun(t *testing.T) {
	o := NewOrchestrator(zerolog.Nop())
	results, err := o.Run(context.Background(), config.DefaultStrategyConfig(), sweepFrame(), testRegimes())
	require.NoError(t, err)
	require.Len(t, results, 2)

	// Ordered by name regardless of completion order.
	assert.Equal(t, "edge_half", results[0].Regime.Name)
	assert.Equal(t, "quiet_half", results[1].Regime.Name)

	require.NoError(t, results[0].Err)
	require.NoError(t, results[1].Err)
	assert.NotEmpty(t, results[0].Backtest.Trades)
	// A regime with no qualifying entries is a valid result, not an error.
	assert.Empty(t, results[1].Backtest.Trades)
	assert.Equal(t, 0.0, results[1].Backtest.Metrics.TotalReturn)
}

func TestOrchestratorRegimeIndependence(t *testing.T) {
	o := NewOrchestrator(zerolog.Nop())

	// The same window listed under two names must produce identical metrics:
	// nothing carries over between regime runs.
	regimeList := []Regime{
		{Name: "a_window", StartDate: "2020-01-01", EndDate: "2020-06-25"},
		{Name: "b_window", StartDate: "2020-01-01", EndDate: "2020-06-25"},
	}

	results, err := o.Run(context.Background(), config.DefaultStrategyConfig(), sweepFrame(), regimeList)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.NoError(t, results[0].Err)
	require.NoError(t, results[1].Err)

	assert.Equal(t, results[0].Backtest.Metrics, results[1].Backtest.Metrics)
}

func TestOrchestratorIsolatesFailures(t *testing.T) {
	o := NewOrchestrator(zerolog.Nop())
	regimeList := append(testRegimes(),
		Regime{Name: "too_short", StartDate: "2020-03-01", EndDate: "2020-03-10"})

	results, err := o.Run(context.Background(), config.DefaultStrategyConfig(), sweepFrame(), regimeList)
	require.NoError(t, err)
	require.Len(t, results, 3)

	byName := map[string]Result{}
	for _, r := range results {
		byName[r.Regime.Name] = r
	}
	assert.Error(t, byName["too_short"].Err)
	assert.NoError(t, byName["edge_half"].Err)
	assert.NoError(t, byName["quiet_half"].Err)
}

func TestConsolidate(t *testing.T) {
	o := NewOrchestrator(zerolog.Nop())
	results, err := o.Run(context.Background(), config.DefaultStrategyConfig(), sweepFrame(), testRegimes())
	require.NoError(t, err)

	table := Consolidate(results)
	require.Len(t, table, 2)
	assert.Equal(t, "edge_half", table[0].Regime)
	assert.NotZero(t, table[0].TradeCount)
	assert.Empty(t, table[0].Error)
	assert.Equal(t, 0, table[1].TradeCount)
}

func TestRepositoryRoundTrip(t *testing.T) {
	db, err := database.New(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	defer db.Close()

	o := NewOrchestrator(zerolog.Nop())
	results, err := o.Run(context.Background(), config.DefaultStrategyConfig(), sweepFrame(), testRegimes())
	require.NoError(t, err)

	repo := NewRepository(db, zerolog.Nop())
	runID, err := repo.SaveRun("base", "synthetic", results)
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	runs, err := repo.ListRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, runID, runs[0].ID)
	assert.Equal(t, "base", runs[0].Policy)

	table, err := repo.GetSummaries(runID)
	require.NoError(t, err)
	assert.Equal(t, Consolidate(results), table)

	trades, err := repo.GetTrades(runID)
	require.NoError(t, err)
	assert.Len(t, trades, len(results[0].Backtest.Trades))
}
