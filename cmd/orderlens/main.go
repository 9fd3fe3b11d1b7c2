package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/rxops/orderlens/internal/config"
	"github.com/rxops/orderlens/internal/database"
	"github.com/rxops/orderlens/internal/history"
	"github.com/rxops/orderlens/internal/logging"
	"github.com/rxops/orderlens/internal/queries"
	"github.com/rxops/orderlens/internal/report"
	"github.com/rxops/orderlens/internal/scheduler"
	"github.com/rxops/orderlens/internal/web"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// CLI flags
var (
	cfg       config.Config
	verbosity int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "orderlens",
		Short: "Orderlens - forecast vs purchase-order reconciliation",
		Long:  `Orderlens compares yesterday's forecasted drug-order quantities against the purchase orders actually placed, per site, and serves a color-coded reconciliation dashboard.`,
		RunE:  run,
	}

	rootCmd.Flags().StringVar(&cfg.Server, "server", "", "SQL server hostname (or set ORDERLENS_SQL_SERVER)")
	rootCmd.Flags().StringVar(&cfg.Driver, "driver", "sqlserver", "SQL driver name")
	rootCmd.Flags().StringVar(&cfg.IntegrationDB, "integration-db", "", "forecast/site database name (or set ORDERLENS_INTEGRATION_DB)")
	rootCmd.Flags().StringVar(&cfg.OrderDB, "order-db", "", "purchase-order database name (or set ORDERLENS_ORDER_DB)")
	rootCmd.Flags().StringVar(&cfg.RunMode, "run-mode", "platform", "authentication mode: platform (managed identity) or local (access token)")
	rootCmd.Flags().IntVarP(&cfg.Port, "port", "p", 0, "HTTP server port (required, or set PORT env var)")
	rootCmd.Flags().StringVarP(&cfg.Bind, "bind", "b", "", "IP address to bind to (e.g., 127.0.0.1, 0.0.0.0)")
	rootCmd.Flags().StringVar(&cfg.HistoryPath, "history", "./orderlens.db", "SQLite run-history path")
	rootCmd.Flags().StringVar(&cfg.QueryDir, "query-dir", "", "directory of .sql files overriding the built-in queries")
	rootCmd.Flags().StringVar(&cfg.LogFile, "log-file", "", "rotating log file path (console only when empty)")
	rootCmd.Flags().StringVar(&cfg.Schedule, "schedule", "", "cron spec for scheduled sweeps of all sites (disabled when empty)")
	rootCmd.Flags().CountVarP(&verbosity, "verbose", "v", "Increase verbosity (-v debug, -vv trace)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("orderlens %s (commit: %s, built: %s)\n", version, commit, date)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return err
	}

	logging.Setup(verbosity, cfg.LogFile)

	log.Info().
		Str("version", version).
		Str("server", cfg.Server).
		Str("integration_db", cfg.IntegrationDB).
		Str("order_db", cfg.OrderDB).
		Str("run_mode", cfg.RunMode).
		Int("port", cfg.Port).
		Msg("Starting Orderlens")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Query texts (embedded defaults + optional overrides).
	querySet, err := queries.Load(cfg.QueryDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load queries")
	}
	defer querySet.Close()
	if err := querySet.Watch(); err != nil {
		log.Warn().Err(err).Msg("Failed to watch query directory")
	}

	// One connection per logical database.
	integ, err := database.Open(ctx, cfg.IntegrationConfig())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to integration database")
	}
	defer integ.Close()

	orders, err := database.Open(ctx, cfg.OrderConfig())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to order database")
	}
	defer orders.Close()

	// Local run history.
	store, err := history.Open(cfg.HistoryPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open history database")
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate history database")
	}

	pipeline := report.New(integ, orders, querySet)

	sched := scheduler.New(pipeline, store, cfg.Schedule)
	if err := sched.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start scheduler")
	}
	defer sched.Stop()

	server := web.NewServer(pipeline, store, cfg.Port, cfg.Bind)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server error")
	}

	log.Info().Msg("Orderlens stopped")
	return nil
}
