package regimes

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/quantlab/volarb/internal/database"
)

// Repository persists sweep runs: the consolidated regime table and the
// trade-level records behind it.
type Repository struct {
	db  *database.DB
	log zerolog.Logger
}

// NewRepository creates a regimes Repository.
func NewRepository(db *database.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "regimes").Logger(),
	}
}

// SaveRun persists a completed sweep under a fresh run id and returns it.
func (r *Repository) SaveRun(policy, dataset string, results []Result) (string, error) {
	runID := uuid.New().String()

	tx, err := r.db.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO sweep_runs (id, created_at, policy, dataset) VALUES (?, ?, ?, ?)`,
		runID, time.Now().UTC().Format(time.RFC3339), policy, dataset,
	); err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	for _, row := range Consolidate(results) {
		if _, err := tx.Exec(
			`INSERT INTO regime_results (
				run_id, regime, start_date, end_date,
				total_return, annualized_return, sharpe_ratio, sortino_ratio,
				max_drawdown, win_rate, profit_factor, trade_count, final_capital, error
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, row.Regime, row.StartDate, row.EndDate,
			row.TotalReturn, row.AnnualizedReturn, row.SharpeRatio, row.SortinoRatio,
			row.MaxDrawdown, row.WinRate, row.ProfitFactor, row.TradeCount, row.FinalCapital,
			nullable(row.Error),
		); err != nil {
			return "", fmt.Errorf("failed to insert regime row: %w", err)
		}
	}

	for _, res := range results {
		if res.Backtest == nil {
			continue
		}
		for _, t := range res.Backtest.Trades {
			if _, err := tx.Exec(
				`INSERT INTO trades (
					run_id, regime, position_id, type, entry_time, exit_time,
					days_held, pnl, return_pct, vol_spread, exit_reason
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				runID, res.Regime.Name, t.PositionID, string(t.Type),
				t.EntryTime.Format(time.RFC3339), t.ExitTime.Format(time.RFC3339),
				t.DaysHeld, t.PnL, t.ReturnPct, t.VolSpread, t.ExitReason,
			); err != nil {
				return "", fmt.Errorf("failed to insert trade: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit run: %w", err)
	}

	r.log.Info().Str("run_id", runID).Int("regimes", len(results)).Msg("sweep run saved")
	return runID, nil
}

// RunInfo describes one persisted sweep.
type RunInfo struct {
	ID        string `json:"id"`
	CreatedAt string `json:"created_at"`
	Policy    string `json:"policy"`
	Dataset   string `json:"dataset"`
}

// ListRuns returns persisted sweeps, newest first.
func (r *Repository) ListRuns(limit int) ([]RunInfo, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(
		`SELECT id, created_at, policy, dataset FROM sweep_runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunInfo
	for rows.Next() {
		var info RunInfo
		if err := rows.Scan(&info.ID, &info.CreatedAt, &info.Policy, &info.Dataset); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, info)
	}
	return runs, rows.Err()
}

// GetSummaries returns the consolidated table of a run, ordered by regime
// name.
func (r *Repository) GetSummaries(runID string) ([]Summary, error) {
	rows, err := r.db.Query(
		`SELECT regime, start_date, end_date, total_return, annualized_return,
			sharpe_ratio, sortino_ratio, max_drawdown, win_rate, profit_factor,
			trade_count, final_capital, COALESCE(error, '')
		FROM regime_results WHERE run_id = ? ORDER BY regime`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query summaries: %w", err)
	}
	defer rows.Close()

	var table []Summary
	for rows.Next() {
		var s Summary
		if err := rows.Scan(
			&s.Regime, &s.StartDate, &s.EndDate, &s.TotalReturn, &s.AnnualizedReturn,
			&s.SharpeRatio, &s.SortinoRatio, &s.MaxDrawdown, &s.WinRate, &s.ProfitFactor,
			&s.TradeCount, &s.FinalCapital, &s.Error,
		); err != nil {
			return nil, fmt.Errorf("failed to scan summary: %w", err)
		}
		table = append(table, s)
	}
	return table, rows.Err()
}

// TradeRow is one persisted trade.
type TradeRow struct {
	Regime     string  `json:"regime"`
	PositionID int     `json:"position_id"`
	Type       string  `json:"type"`
	EntryTime  string  `json:"entry_time"`
	ExitTime   string  `json:"exit_time"`
	DaysHeld   int     `json:"days_held"`
	PnL        float64 `json:"pnl"`
	ReturnPct  float64 `json:"return_pct"`
	VolSpread  float64 `json:"vol_spread"`
	ExitReason string  `json:"exit_reason"`
}

// GetTrades returns the trade-level records of a run.
func (r *Repository) GetTrades(runID string) ([]TradeRow, error) {
	rows, err := r.db.Query(
		`SELECT regime, position_id, type, entry_time, exit_time, days_held,
			pnl, return_pct, vol_spread, exit_reason
		FROM trades WHERE run_id = ? ORDER BY regime, entry_time`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var trades []TradeRow
	for rows.Next() {
		var t TradeRow
		if err := rows.Scan(
			&t.Regime, &t.PositionID, &t.Type, &t.EntryTime, &t.ExitTime,
			&t.DaysHeld, &t.PnL, &t.ReturnPct, &t.VolSpread, &t.ExitReason,
		); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
