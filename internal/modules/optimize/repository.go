package optimize

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/quantlab/volarb/internal/database"
)

// Repository persists sweep reports, one row per evaluation, ranked best
// first.
type Repository struct {
	db  *database.DB
	log zerolog.Logger
}

// NewRepository creates an optimize Repository.
func NewRepository(db *database.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "optimize").Logger(),
	}
}

// SaveReport persists a sweep report under a fresh run id and returns it.
// Sweep runs and regime runs share the runs table, distinguished by dataset.
func (r *Repository) SaveReport(policy, dataset string, report *Report) (string, error) {
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

	for rank, eval := range report.Evaluations {
		params, err := json.Marshal(eval.Params)
		if err != nil {
			return "", fmt.Errorf("failed to encode params: %w", err)
		}
		if _, err := tx.Exec(
			`INSERT INTO optimization_results (run_id, rank, params, objective, value, failed)
			VALUES (?, ?, ?, ?, ?, ?)`,
			runID, rank+1, string(params), report.Objective, eval.Value, eval.Failed,
		); err != nil {
			return "", fmt.Errorf("failed to insert evaluation: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit report: %w", err)
	}

	r.log.Info().
		Str("run_id", runID).
		Int("evaluations", len(report.Evaluations)).
		Msg("optimization report saved")
	return runID, nil
}

// RankedRow is one persisted evaluation.
type RankedRow struct {
	Rank      int     `json:"rank"`
	Params    string  `json:"params"`
	Objective string  `json:"objective"`
	Value     float64 `json:"value"`
	Failed    bool    `json:"failed"`
}

// MarshalJSON emits null for the negative-infinity value of a failed row.
func (r RankedRow) MarshalJSON() ([]byte, error) {
	type alias RankedRow
	return json.Marshal(struct {
		alias
		Value interface{} `json:"value"`
	}{alias(r), finiteOrNil(r.Value)})
}

// GetReport returns the persisted evaluations of a run, best first.
func (r *Repository) GetReport(runID string) ([]RankedRow, error) {
	rows, err := r.db.Query(
		`SELECT rank, params, objective, value, failed
		FROM optimization_results WHERE run_id = ? ORDER BY rank`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query report: %w", err)
	}
	defer rows.Close()

	var ranked []RankedRow
	for rows.Next() {
		var row RankedRow
		if err := rows.Scan(&row.Rank, &row.Params, &row.Objective, &row.Value, &row.Failed); err != nil {
			return nil, fmt.Errorf("failed to scan evaluation: %w", err)
		}
		ranked = append(ranked, row)
	}
	return ranked, rows.Err()
}
