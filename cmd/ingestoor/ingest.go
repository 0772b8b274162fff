package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ethpandaops/ingestoor/pkg/ingest"
	"github.com/ethpandaops/ingestoor/pkg/store"
)

var (
	ingestBranch string
	ingestCycle  string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <project> <dir>",
	Short: "Index one extracted execution directory",
	Long: `Index an already extracted execution directory without going through the
HTTP API. Useful for replaying retained archives or local debugging.`,
	Args: cobra.ExactArgs(2),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestBranch, "branch", "", "branch of the execution")
	ingestCmd.Flags().StringVar(&ingestCycle, "cycle", "", "cycle name of the execution")

	_ = ingestCmd.MarkFlagRequired("branch")
	_ = ingestCmd.MarkFlagRequired("cycle")

	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	st := store.NewStore(log, &cfg.Database)
	if err := st.Start(ctx); err != nil {
		return fmt.Errorf("starting store: %w", err)
	}

	defer func() {
		if err := st.Stop(); err != nil {
			log.WithError(err).Warn("Store stop error")
		}
	}()

	svc := ingest.NewService(log, cfg, st, nil)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("starting ingestion service: %w", err)
	}

	if err := svc.IngestDirectory(ctx, args[0], ingestBranch, ingestCycle, args[1]); err != nil {
		return fmt.Errorf("ingesting directory: %w", err)
	}

	return nil
}
