package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/quantlab/volarb/internal/config"
	"github.com/quantlab/volarb/pkg/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "volarb",
		Short: "Volatility arbitrage backtesting",
		Long: `Backtests volatility arbitrage strategies over historical market data:
single regime sweeps, parameter optimization, and an HTTP server over
persisted results.`,
		SilenceUsage: true,
	}

	root.AddCommand(newRunCmd())
	root.AddCommand(newOptimizeCmd())
	root.AddCommand(newServeCmd())
	return root
}

// setup loads runtime configuration and builds the root logger shared by all
// subcommands.
func setup() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	return cfg, log, nil
}
