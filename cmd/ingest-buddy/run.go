package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kirillkom/ingest-buddy/internal/bootstrap"
	"github.com/kirillkom/ingest-buddy/internal/core/domain"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one ingestion pass over the source folder (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIngest(cmd, opts)
		},
	}
}

func runIngest(cmd *cobra.Command, opts *rootOptions) error {
	cfg, logger, err := opts.load(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer app.Close()

	summary, runErr := app.IngestUC.Run(ctx)
	if err := app.FlushMetrics(); err != nil {
		logger.Warn("metrics_flush_failed", "error", err)
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}

	printSummary(cmd, summary)
	return nil
}

func printSummary(cmd *cobra.Command, s domain.RunSummary) {
	if s.Scanned == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No files to process.")
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(),
		"Scanned %d files: %d ingested, %d exact duplicates, %d metadata duplicates, %d excluded, %d failed, %d fuzzy matches logged.\n",
		s.Scanned, s.Ingested, s.ExactDuplicates, s.MetadataDuplicates, s.Excluded, s.Failed, s.FuzzySuspects,
	)
}
