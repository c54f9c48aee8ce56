package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/ingest-buddy/internal/config"
	"github.com/kirillkom/ingest-buddy/internal/core/ports"
	"github.com/kirillkom/ingest-buddy/internal/core/usecase"
	"github.com/kirillkom/ingest-buddy/internal/infrastructure/extractor"
	"github.com/kirillkom/ingest-buddy/internal/infrastructure/extractor/calibre"
	"github.com/kirillkom/ingest-buddy/internal/infrastructure/extractor/epub"
	"github.com/kirillkom/ingest-buddy/internal/infrastructure/extractor/htmltext"
	"github.com/kirillkom/ingest-buddy/internal/infrastructure/extractor/pdf"
	"github.com/kirillkom/ingest-buddy/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/ingest-buddy/internal/infrastructure/fingerprint"
	"github.com/kirillkom/ingest-buddy/internal/infrastructure/journal"
	"github.com/kirillkom/ingest-buddy/internal/infrastructure/queue/nats"
	"github.com/kirillkom/ingest-buddy/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/ingest-buddy/internal/infrastructure/repository/sqlite"
	"github.com/kirillkom/ingest-buddy/internal/infrastructure/resilience"
	"github.com/kirillkom/ingest-buddy/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/ingest-buddy/internal/observability/metrics"
)

const ServiceName = "ingest-buddy"

type App struct {
	Config config.Config
	Logger *slog.Logger

	Records  ports.RecordStore
	IngestUC ports.BookIngestor
	Metrics  *metrics.IngestMetrics

	closeFn func()
}

// store is what both record store drivers provide on top of ports.RecordStore.
type store interface {
	ports.RecordStore
	EnsureSchema(ctx context.Context) error
	Verify(ctx context.Context) error
}

// New wires one ingestion run. The record store must already exist.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	records, closeDB, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	closers := []func(){closeDB}
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	library, err := localfs.New(cfg.IngestPath)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("init library: %w", err)
	}
	if stale, err := library.RemoveStale(); err != nil {
		logger.Warn("stale_staged_cleanup_failed", "error", err)
	} else if len(stale) > 0 {
		logger.Warn("stale_staged_copies_removed", "files", stale)
	}

	failures, err := journal.Open(cfg.FailureLog)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("open failure log: %w", err)
	}
	closers = append(closers, func() { _ = failures.Close() })

	toolExec := resilience.NewExecutor(resilience.ExternalToolConfig(), logger)
	tools := calibre.New(calibre.Options{
		MetaBin:    cfg.EbookMetaBin,
		ConvertBin: cfg.EbookConvertBin,
		Timeout:    cfg.ToolTimeout,
		Executor:   toolExec,
	})
	pdfReader := pdf.NewReader()
	epubReader := epub.NewReader()
	htmlReader := htmltext.NewExtractor()

	ingestMetrics := metrics.NewIngestMetrics(ServiceName)

	deps := usecase.IngestDeps{
		Source:     localfs.NewSource(cfg.SourceDir),
		Library:    library,
		Workspace:  localfs.NewScratch(cfg.TempDir),
		Hasher:     fingerprint.NewSHA256(),
		Metadata:   extractor.NewMetadataChain(logger, tools, epubReader, pdfReader, htmlReader),
		Converter:  extractor.NewConverterChain(logger, tools, epubReader, pdfReader, htmlReader, plaintext.NewExtractor(nil)),
		Records:    records,
		Classifier: usecase.NewDuplicateClassifier(records, cfg.FuzzyThreshold),
		Journal:    failures,
		Metrics:    ingestMetrics,
		Logger:     logger,
	}

	if cfg.NATSURL != "" {
		notifier, err := nats.New(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor: resilience.NewExecutor(resilience.DefaultConfig(), logger),
			Logger:             logger,
		})
		if err != nil {
			// notifications are optional; the run proceeds without them
			logger.Warn("nats_unavailable", "error", err)
		} else {
			deps.Notifier = notifier
			closers = append(closers, notifier.Close)
		}
	}

	ingestUC := usecase.NewIngestBooksUseCase(deps, usecase.IngestOptions{
		MaxFilenameLength:  cfg.MaxFilenameLength,
		ExcludedNames:      cfg.ExcludeFiles,
		ExcludedExtensions: cfg.ExcludeExts,
		SampleWindow:       cfg.SampleWindow,
		SampleMarkers:      cfg.SampleMarkers,
	})

	return &App{
		Config:   cfg,
		Logger:   logger,
		Records:  records,
		IngestUC: ingestUC,
		Metrics:  ingestMetrics,
		closeFn:  cleanup,
	}, nil
}

// FlushMetrics writes the metrics textfile when one is configured.
func (a *App) FlushMetrics() error {
	if a.Metrics == nil || a.Config.MetricsTextfile == "" {
		return nil
	}
	a.Metrics.MarkRunCompleted(time.Now())
	return a.Metrics.WriteTextfile(a.Config.MetricsTextfile)
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

// OpenStore opens the configured record store and checks that its schema exists.
func OpenStore(ctx context.Context, cfg config.Config) (ports.RecordStore, func(), error) {
	s, db, err := openStore(cfg, false)
	if err != nil {
		return nil, nil, err
	}
	if err := s.Verify(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return s, func() { _ = db.Close() }, nil
}

// InitStore creates the record store and its schema.
func InitStore(ctx context.Context, cfg config.Config) error {
	s, db, err := openStore(cfg, true)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := s.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func openStore(cfg config.Config, create bool) (store, *sql.DB, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		return postgres.NewBookRepository(db), db, nil
	default:
		open := sqlite.OpenDB
		if create {
			open = sqlite.CreateDB
		}
		db, err := open(cfg.StorePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite %s: %w", cfg.StorePath, err)
		}
		return sqlite.NewBookRepository(db), db, nil
	}
}
