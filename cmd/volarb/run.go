package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/quantlab/volarb/internal/config"
	"github.com/quantlab/volarb/internal/database"
	"github.com/quantlab/volarb/internal/marketdata"
	"github.com/quantlab/volarb/internal/modules/regimes"
)

func newRunCmd() *cobra.Command {
	var (
		strategyPath string
		regimesPath  string
		datasetPath  string
		save         bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the regime sweep and print the consolidated table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			if strategyPath == "" {
				strategyPath = cfg.StrategyPath
			}
			if regimesPath == "" {
				regimesPath = cfg.RegimesPath
			}
			if datasetPath == "" {
				datasetPath = cfg.DatasetPath
			}

			strategyCfg, err := config.LoadStrategyConfig(strategyPath)
			if err != nil {
				return fmt.Errorf("failed to load strategy config: %w", err)
			}
			regimeList, err := regimes.LoadRegimes(regimesPath)
			if err != nil {
				return fmt.Errorf("failed to load regimes: %w", err)
			}
			frame, err := marketdata.LoadCSV(datasetPath)
			if err != nil {
				return fmt.Errorf("failed to load dataset: %w", err)
			}

			orchestrator := regimes.NewOrchestrator(log)
			results, err := orchestrator.Run(cmd.Context(), strategyCfg, frame, regimeList)
			if err != nil {
				return err
			}

			table := regimes.Consolidate(results)
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(table); err != nil {
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

			repo := regimes.NewRepository(db, log)
			runID, err := repo.SaveRun(strategyCfg.Policy, filepath.Base(datasetPath), results)
			if err != nil {
				return err
			}
			log.Info().Str("run_id", runID).Msg("sweep saved")
			return nil
		},
	}

	cmd.Flags().StringVar(&strategyPath, "strategy", "", "strategy TOML (default from STRATEGY_PATH)")
	cmd.Flags().StringVar(&regimesPath, "regimes", "", "regimes TOML (default from REGIMES_PATH)")
	cmd.Flags().StringVar(&datasetPath, "dataset", "", "market data CSV (default from DATASET_PATH)")
	cmd.Flags().BoolVar(&save, "save", true, "persist the run to the results database")
	return cmd
}
