package ports

import (
	"context"

	"github.com/kirillkom/ingest-buddy/internal/core/domain"
)

// BookIngestor is the inbound contract for one ingestion pass over the source directory.
type BookIngestor interface {
	Run(ctx context.Context) (domain.RunSummary, error)
}

// DuplicateChecker is the inbound contract of the layered duplicate classifier.
type DuplicateChecker interface {
	Classify(ctx context.Context, fp domain.Fingerprint, loadMetadata func(context.Context) domain.Metadata) (domain.Decision, error)
	FindSuspects(ctx context.Context, filename, sample string) ([]domain.FuzzySuspect, error)
}
