package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantlab/volarb/internal/config"
	"github.com/quantlab/volarb/internal/database"
	"github.com/quantlab/volarb/internal/marketdata"
	"github.com/quantlab/volarb/internal/modules/backtest"
	"github.com/quantlab/volarb/internal/modules/optimize"
	"github.com/quantlab/volarb/internal/modules/regimes"
)

func testServer(t *testing.T) (*Server, string, string) {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	regimeRepo := regimes.NewRepository(db, zerolog.Nop())
	optimizeRepo := optimize.NewRepository(db, zerolog.Nop())

	sweepID := seedSweepRun(t, regimeRepo)
	optimizationID := seedOptimizationRun(t, optimizeRepo)

	s := New(Config{
		Port:     0,
		Log:      zerolog.Nop(),
		Regimes:  regimeRepo,
		Optimize: optimizeRepo,
		DevMode:  true,
	})
	return s, sweepID, optimizationID
}

func seedSweepRun(t *testing.T, repo *regimes.Repository) string {
	t.Helper()

	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	ticks := make([]marketdata.Tick, 180)
	for i := range ticks {
		ret := 0.01
		if i%2 == 1 {
			ret = -0.01
		}
		ticks[i] = marketdata.Tick{
			Date:        start.AddDate(0, 0, i),
			Close:       100,
			Return:      ret,
			RealizedVol: 0.2,
			ImpliedVol:  0.10,
		}
	}
	frame := marketdata.NewFrame(ticks)

	o := regimes.NewOrchestrator(zerolog.Nop())
	results, err := o.Run(context.Background(), config.DefaultStrategyConfig(), frame, []regimes.Regime{
		{Name: "edge_window", StartDate: "2020-01-01", EndDate: "2020-06-25"},
	})
	require.NoError(t, err)

	runID, err := repo.SaveRun("base", "synthetic.csv", results)
	require.NoError(t, err)
	return runID
}

func seedOptimizationRun(t *testing.T, repo *optimize.Repository) string {
	t.Helper()

	evaluate := func(ctx context.Context, params map[string]float64) (backtest.Metrics, error) {
		if params["a"] == 1 {
			return backtest.Metrics{}, fmt.Errorf("no data")
		}
		return backtest.Metrics{SharpeRatio: params["a"]}, nil
	}
	o, err := optimize.NewOptimizer(zerolog.Nop(), "sharpe_ratio", 1, evaluate)
	require.NoError(t, err)

	report, err := o.Grid(context.Background(), map[string][]float64{"a": {1, 2}})
	require.NoError(t, err)

	runID, err := repo.SaveReport("base", "grid:synthetic", report)
	require.NoError(t, err)
	return runID
}

func get(t *testing.T, s *Server, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestHealthEndpoint(t *testing.T) {
	s, _, _ := testServer(t)

	rec, body := get(t, s, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
}

func TestListRuns(t *testing.T) {
	s, _, _ := testServer(t)

	rec, body := get(t, s, "/api/runs/")
	assert.Equal(t, http.StatusOK, rec.Code)
	runs := body["runs"].([]interface{})
	assert.Len(t, runs, 2)
}

func TestListRunsRejectsBadLimit(t *testing.T) {
	s, _, _ := testServer(t)

	rec, _ := get(t, s, "/api/runs/?limit=zero")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunRegimes(t *testing.T) {
	s, sweepID, _ := testServer(t)

	rec, body := get(t, s, "/api/runs/"+sweepID+"/regimes")
	require.Equal(t, http.StatusOK, rec.Code)

	table := body["regimes"].([]interface{})
	require.Len(t, table, 1)
	row := table[0].(map[string]interface{})
	assert.Equal(t, "edge_window", row["regime"])
	assert.NotZero(t, row["trade_count"])
}

func TestRunRegimesNotFound(t *testing.T) {
	s, _, _ := testServer(t)

	rec, _ := get(t, s, "/api/runs/no-such-run/regimes")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRunTrades(t *testing.T) {
	s, sweepID, _ := testServer(t)

	rec, body := get(t, s, "/api/runs/"+sweepID+"/trades")
	require.Equal(t, http.StatusOK, rec.Code)
	trades := body["trades"].([]interface{})
	assert.NotEmpty(t, trades)
}

func TestRunOptimization(t *testing.T) {
	s, _, optimizationID := testServer(t)

	rec, body := get(t, s, "/api/runs/"+optimizationID+"/optimization")
	require.Equal(t, http.StatusOK, rec.Code)

	ranked := body["evaluations"].([]interface{})
	require.Len(t, ranked, 2)

	best := ranked[0].(map[string]interface{})
	assert.Equal(t, 2.0, best["value"])

	// The failed combination round-trips with a null value.
	failed := ranked[1].(map[string]interface{})
	assert.Equal(t, true, failed["failed"])
	assert.Nil(t, failed["value"])
}
