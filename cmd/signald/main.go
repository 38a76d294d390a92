package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tradesignal/internal/db"

	_ "tradesignal/docs"
)

type rootOptions struct {
	configPath string
	envOnly    bool
}

func main() {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:          "signald",
		Short:        "Hourly trading signal service",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", defaultConfigPath(), "config file (env TS_CONFIG)")
	root.PersistentFlags().BoolVar(&opts.envOnly, "env-only", envBool("TS_ENV_ONLY"), "ignore the config file and read TS_* env only")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API and the pipeline schedule",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runServe(cmd.Context(), opts)
			},
		},
		newRunOnceCommand(opts),
		&cobra.Command{
			Use:   "migrate",
			Short: "Create or update the database schema",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runMigrate(cmd.Context(), opts)
			},
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRunOnceCommand(opts *rootOptions) *cobra.Command {
	var memoryStore bool
	cmd := &cobra.Command{
		Use:   "run-once",
		Short: "Run the pipeline a single time and print the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts, appOptions{memoryStore: memoryStore})
			if err != nil {
				return err
			}
			defer a.Close()
			if err := db.AutoMigrate(a.db); err != nil {
				return fmt.Errorf("auto-migrate: %w", err)
			}

			res, err := a.orchestrator.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s (predicted %s, close %s, fallback %t)\n",
				res.Signal.Timestamp.Format(time.RFC3339),
				res.Signal.Symbol,
				res.Signal.Signal,
				res.Signal.PredictedPrice.String(),
				res.Signal.CurrentPrice.String(),
				res.PredictionFallback,
			)
			return nil
		},
	}
	cmd.Flags().BoolVar(&memoryStore, "memory", false, "keep candles and signals in memory instead of Postgres")
	return cmd
}

func runMigrate(ctx context.Context, opts *rootOptions) error {
	a, err := newApp(ctx, opts, appOptions{migrateOnly: true})
	if err != nil {
		return err
	}
	defer a.Close()
	if err := db.AutoMigrate(a.db); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	a.logger.Info("schema migrated")
	return nil
}

func defaultConfigPath() string {
	if p := os.Getenv("TS_CONFIG"); p != "" {
		return p
	}
	return "config/config.yaml"
}

func envBool(key string) bool {
	raw := os.Getenv(key)
	return strings.EqualFold(raw, "true") || raw == "1"
}
