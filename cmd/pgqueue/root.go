package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/unionlabs/pg-queue/store/postgres"
)

var (
	cfgPath string
	dsnFlag string
	cfg     *Config
	st      *postgres.Store
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "pgqueue",
	Short:         "A persistent FIFO work queue backed by Postgres.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		var err error
		cfg, err = LoadConfig(cfgPath)
		if err != nil {
			return err
		}
		if dsnFlag != "" {
			cfg.DSN = dsnFlag
		}

		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: cfg.logLevel(),
		}))

		st, err = postgres.New(context.Background(), cfg.DSN, postgres.WithLogger(logger))
		return err
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		if st != nil {
			_ = st.Close()
		}
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to YAML config (default $HOME/.pgqueue/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dsnFlag, "dsn", "", "Postgres connection URL (overrides config)")
}
