package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/quantlab/volarb/internal/config"
	"github.com/quantlab/volarb/internal/database"
	"github.com/quantlab/volarb/internal/marketdata"
	"github.com/quantlab/volarb/internal/modules/backtest"
	"github.com/quantlab/volarb/internal/modules/optimize"
)

func newOptimizeCmd() *cobra.Command {
	var (
		specPath     string
		strategyPath string
		datasetPath  string
		workers      int
		save         bool
	)

	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Sweep strategy parameters and rank them by objective",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			if strategyPath == "" {
				strategyPath = cfg.StrategyPath
			}
			if datasetPath == "" {
				datasetPath = cfg.DatasetPath
			}

			spec, err := optimize.LoadSpec(specPath)
			if err != nil {
				return err
			}
			baseCfg, err := config.LoadStrategyConfig(strategyPath)
			if err != nil {
				return fmt.Errorf("failed to load strategy config: %w", err)
			}
			frame, err := marketdata.LoadCSV(datasetPath)
			if err != nil {
				return fmt.Errorf("failed to load dataset: %w", err)
			}

			engine := backtest.NewEngine(log)
			evaluate := func(ctx context.Context, params map[string]float64) (backtest.Metrics, error) {
				candidate, err := optimize.ApplyParams(baseCfg, params)
				if err != nil {
					return backtest.Metrics{}, err
				}
				res, err := engine.Run(ctx, candidate, frame)
				if err != nil {
					return backtest.Metrics{}, err
				}
				return res.Metrics, nil
			}

			optimizer, err := optimize.NewOptimizer(log, spec.Objective, workers, evaluate)
			if err != nil {
				return err
			}

			var report *optimize.Report
			switch spec.Mode {
			case "grid":
				report, err = optimizer.Grid(cmd.Context(), spec.Grid)
			case "continuous":
				report, err = optimizer.Continuous(cmd.Context(), spec.BoundsMap(), spec.Budget, nil)
			}
			if err != nil {
				return err
			}

			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(report); err != nil {
				return err
			}

			if !save {
				return nil
			}

			db, err := database.New(cfg.DatabasePath)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer db.Close()

			repo := optimize.NewRepository(db, log)
			dataset := fmt.Sprintf("%s:%s", spec.Mode, filepath.Base(datasetPath))
			runID, err := repo.SaveReport(baseCfg.Policy, dataset, report)
			if err != nil {
				return err
			}
			log.Info().Str("run_id", runID).Msg("optimization saved")
			return nil
		},
	}

	cmd.Flags().StringVar(&specPath, "spec", "./config/sweep.toml", "sweep spec TOML")
	cmd.Flags().StringVar(&strategyPath, "strategy", "", "strategy TOML (default from STRATEGY_PATH)")
	cmd.Flags().StringVar(&datasetPath, "dataset", "", "market data CSV (default from DATASET_PATH)")
	cmd.Flags().IntVar(&workers, "workers", 4, "concurrent evaluations")
	cmd.Flags().BoolVar(&save, "save", true, "persist the report to the results database")
	return cmd
}
