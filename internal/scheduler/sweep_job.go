package scheduler

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantlab/volarb/internal/config"
	"github.com/quantlab/volarb/internal/marketdata"
	"github.com/quantlab/volarb/internal/modules/regimes"
)

const sweepTimeout = 30 * time.Minute

// SweepJob re-runs the full regime sweep against the configured dataset and
// persists the results. Config files are re-read on every run so edits take
// effect without a restart.
type SweepJob struct {
	cfg  *config.Config
	repo *regimes.Repository
	log  zerolog.Logger
}

// NewSweepJob creates a sweep job.
func NewSweepJob(cfg *config.Config, repo *regimes.Repository, log zerolog.Logger) *SweepJob {
	return &SweepJob{
		cfg:  cfg,
		repo: repo,
		log:  log.With().Str("job", "regime_sweep").Logger(),
	}
}

// Name returns the job name.
func (j *SweepJob) Name() string {
	return "regime_sweep"
}

// Run loads the dataset and configs, sweeps every regime and saves the run.
func (j *SweepJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	strategyCfg, err := config.LoadStrategyConfig(j.cfg.StrategyPath)
	if err != nil {
		return fmt.Errorf("failed to load strategy config: %w", err)
	}

	regimeList, err := regimes.LoadRegimes(j.cfg.RegimesPath)
	if err != nil {
		return fmt.Errorf("failed to load regimes: %w", err)
	}

	frame, err := marketdata.LoadCSV(j.cfg.DatasetPath)
	if err != nil {
		return fmt.Errorf("failed to load dataset: %w", err)
	}

	orchestrator := regimes.NewOrchestrator(j.log)
	results, err := orchestrator.Run(ctx, strategyCfg, frame, regimeList)
	if err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}

	dataset := filepath.Base(j.cfg.DatasetPath)
	runID, err := j.repo.SaveRun(strategyCfg.Policy, dataset, results)
	if err != nil {
		return fmt.Errorf("failed to save sweep run: %w", err)
	}

	j.log.Info().
		Str("run_id", runID).
		Int("regimes", len(results)).
		Msg("scheduled sweep complete")
	return nil
}
