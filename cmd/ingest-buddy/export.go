package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kirillkom/ingest-buddy/internal/bootstrap"
	"github.com/kirillkom/ingest-buddy/internal/infrastructure/report/xlsx"
)

func newExportCmd(opts *rootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every stored book record to an XLSX report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.load(cmd)
			if err != nil {
				return err
			}

			records, closeStore, err := bootstrap.OpenStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			all, err := records.ListAll(cmd.Context())
			if err != nil {
				return fmt.Errorf("list records: %w", err)
			}

			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("create report: %w", err)
			}
			if err := xlsx.Write(f, all); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("close report: %w", err)
			}

			logger.Info("report_written", "path", output, "records", len(all))
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d records to %s\n", len(all), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "books.xlsx", "report file path")
	return cmd
}
