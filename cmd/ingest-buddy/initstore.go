package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kirillkom/ingest-buddy/internal/bootstrap"
	"github.com/kirillkom/ingest-buddy/internal/config"
)

func newInitStoreCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init-store",
		Short: "Create the record store and its schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if err := bootstrap.InitStore(cmd.Context(), cfg); err != nil {
				return err
			}

			target := cfg.StorePath
			if cfg.StoreDriver == config.DriverPostgres {
				target = "postgres"
			}
			logger.Info("store_initialized", "driver", cfg.StoreDriver, "target", target)
			fmt.Fprintf(cmd.OutOrStdout(), "Record store ready: %s\n", target)
			return nil
		},
	}
}
