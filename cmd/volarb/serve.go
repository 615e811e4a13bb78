package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantlab/volarb/internal/database"
	"github.com/quantlab/volarb/internal/modules/optimize"
	"github.com/quantlab/volarb/internal/modules/regimes"
	"github.com/quantlab/volarb/internal/scheduler"
	"github.com/quantlab/volarb/internal/server"
)

func newServeCmd() *cobra.Command {
	var sweepOnStart bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve persisted results over HTTP and run scheduled sweeps",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}

			log.Info().Msg("Starting volarb")

			db, err := database.New(cfg.DatabasePath)
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to initialize database")
			}
			defer db.Close()

			regimeRepo := regimes.NewRepository(db, log)
			optimizeRepo := optimize.NewRepository(db, log)

			sched := scheduler.New(log)
			sweepJob := scheduler.NewSweepJob(cfg, regimeRepo, log)
			if err := sched.AddJob(cfg.SweepSchedule, sweepJob); err != nil {
				log.Fatal().Err(err).Msg("Failed to register sweep job")
			}
			sched.Start()
			defer sched.Stop()

			if sweepOnStart {
				if err := sched.RunNow(sweepJob); err != nil {
					log.Error().Err(err).Msg("Initial sweep failed")
				}
			}

			srv := server.New(server.Config{
				Port:     cfg.Port,
				Log:      log,
				Regimes:  regimeRepo,
				Optimize: optimizeRepo,
				DevMode:  cfg.DevMode,
			})

			go func() {
				if err := srv.Start(); err != nil && err != http.ErrServerClosed {
					log.Fatal().Err(err).Msg("Failed to start server")
				}
			}()

			log.Info().Int("port", cfg.Port).Msg("Server started successfully")

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit

			log.Info().Msg("Shutting down server...")

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				log.Error().Err(err).Msg("Server forced to shutdown")
			}

			log.Info().Msg("Server stopped")
			return nil
		},
	}

	cmd.Flags().BoolVar(&sweepOnStart, "sweep-on-start", false, "run a sweep immediately on startup")
	return cmd
}
