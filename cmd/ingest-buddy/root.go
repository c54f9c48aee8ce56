package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/kirillkom/ingest-buddy/internal/bootstrap"
	"github.com/kirillkom/ingest-buddy/internal/config"
	"github.com/kirillkom/ingest-buddy/internal/observability/logging"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

// load reads the configuration; --log-level wins over LOG_LEVEL.
func (o *rootOptions) load(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	logger := logging.NewJSONLoggerTo(cmd.ErrOrStderr(), bootstrap.ServiceName, cfg.LogLevel)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "ingest-buddy",
		Short: "Copy new books into the library ingest folder, skipping duplicates",
		Long: `ingest-buddy scans a source folder of ebooks and copies every book it has
not seen before into the ingest folder. Files are compared by name, content
hash and embedded title/author; near-identical text is reported in the
failure log without blocking the copy.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIngest(cmd, opts)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", config.DefaultPath, "path to the KEY=value config file")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(newRunCmd(opts))
	rootCmd.AddCommand(newInitStoreCmd(opts))
	rootCmd.AddCommand(newExportCmd(opts))

	return rootCmd
}
