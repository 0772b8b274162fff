package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ethpandaops/ingestoor/pkg/api"
	"github.com/ethpandaops/ingestoor/pkg/archive"
	"github.com/ethpandaops/ingestoor/pkg/config"
	"github.com/ethpandaops/ingestoor/pkg/ingest"
	"github.com/ethpandaops/ingestoor/pkg/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the ingestion API server",
	Long:  `Start the HTTP server receiving execution archives and serving execution queries.`,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	st := store.NewStore(log, &cfg.Database)
	if err := st.Start(ctx); err != nil {
		return fmt.Errorf("starting store: %w", err)
	}

	backend, err := archive.NewBackend(log, &cfg.Archive)
	if err != nil {
		return fmt.Errorf("creating archive backend: %w", err)
	}

	if backend != nil {
		if err := backend.Start(ctx); err != nil {
			return fmt.Errorf("starting archive backend: %w", err)
		}
	}

	svc := ingest.NewService(log, cfg, st, backend)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("starting ingestion service: %w", err)
	}

	srv := api.NewServer(log, cfg, st, svc)
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("starting api server: %w", err)
	}

	sig := <-sigCh
	log.WithField("signal", sig).Info("Shutting down")
	cancel()

	if err := srv.Stop(); err != nil {
		log.WithError(err).Warn("API server stop error")
	}

	if err := svc.Stop(); err != nil {
		log.WithError(err).Warn("Ingestion service stop error")
	}

	if backend != nil {
		if err := backend.Stop(); err != nil {
			log.WithError(err).Warn("Archive backend stop error")
		}
	}

	if err := st.Stop(); err != nil {
		return fmt.Errorf("stopping store: %w", err)
	}

	return nil
}

func loadConfig() (*config.Config, error) {
	if cfgFile == "" {
		return nil, fmt.Errorf("config file is required (use --config)")
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	if cfg.Global.LogLevel != "" && !rootCmd.PersistentFlags().Changed("log-level") {
		level, err := logrus.ParseLevel(cfg.Global.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Global.LogLevel, err)
		}

		log.SetLevel(level)
	}

	return cfg, nil
}
