package ports

import (
	"context"
	"time"

	"github.com/kirillkom/ingest-buddy/internal/core/domain"
)

// RecordLookup is the read side of the record store. Find methods return
// domain.ErrRecordNotFound when nothing matches.
type RecordLookup interface {
	FindExact(ctx context.Context, fp domain.Fingerprint) (*domain.BookRecord, error)
	FindByMetadata(ctx context.Context, title, author string) (*domain.BookRecord, error)
	ListWithSamples(ctx context.Context) ([]domain.BookRecord, error)
}

// RecordStore persists ingestion records.
type RecordStore interface {
	RecordLookup
	// Append inserts rec and runs finalize before committing. A finalize
	// error rolls the insertion back.
	Append(ctx context.Context, rec domain.BookRecord, finalize func(context.Context) error) error
	ListAll(ctx context.Context) ([]domain.BookRecord, error)
}

// CandidateSource enumerates files awaiting ingestion.
type CandidateSource interface {
	List(ctx context.Context) ([]domain.Candidate, error)
}

// Library is the curated destination folder.
type Library interface {
	Stage(ctx context.Context, sourcePath, name string) (StagedFile, error)
}

// StagedFile is a copy waiting next to its final destination.
type StagedFile interface {
	Commit() error
	// Discard removes the staged copy, or the placed file after Commit.
	Discard() error
}

// Workspace hands out scratch directories. release removes the directory and everything in it.
type Workspace interface {
	Acquire(parent, pattern string) (dir string, release func(), err error)
}

// ContentHasher computes the content fingerprint of a file.
type ContentHasher interface {
	Hash(ctx context.Context, path string) (string, error)
}

// MetadataExtractor never fails: any failure yields empty metadata.
type MetadataExtractor interface {
	Extract(ctx context.Context, path string) domain.Metadata
}

// TextConverter converts a document to plain text. workDir is a scratch
// directory owned by the caller.
type TextConverter interface {
	ConvertToText(ctx context.Context, path, workDir string) (string, error)
}

// EventJournal appends durable events to the failure log.
type EventJournal interface {
	Record(ctx context.Context, event domain.JournalEvent) error
}

// IngestNotifier announces newly ingested books.
type IngestNotifier interface {
	PublishBookIngested(ctx context.Context, rec domain.BookRecord) error
}

// RunMetrics observes per-file outcomes.
type RunMetrics interface {
	ObserveFile(outcome domain.Outcome, duration time.Duration)
	AddFuzzySuspects(n int)
}
