package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/ingest-buddy/internal/core/domain"
	"github.com/kirillkom/ingest-buddy/internal/core/ports"
)

type IngestDeps struct {
	Source     ports.CandidateSource
	Library    ports.Library
	Workspace  ports.Workspace
	Hasher     ports.ContentHasher
	Metadata   ports.MetadataExtractor
	Converter  ports.TextConverter
	Records    ports.RecordStore
	Classifier ports.DuplicateChecker
	Journal    ports.EventJournal

	// Optional.
	Notifier ports.IngestNotifier
	Metrics  ports.RunMetrics
	Logger   *slog.Logger
}

type IngestOptions struct {
	MaxFilenameLength  int
	ExcludedNames      []string
	ExcludedExtensions []string
	SampleWindow       int
	SampleMarkers      []string
}

// IngestBooksUseCase drives one pass over the source directory. Files are
// processed one at a time and a failure on one file never stops the others.
type IngestBooksUseCase struct {
	deps       IngestDeps
	skip       *SkipFilter
	sampler    *SampleExtractor
	maxNameLen int
	logger     *slog.Logger
}

func NewIngestBooksUseCase(deps IngestDeps, opts IngestOptions) *IngestBooksUseCase {
	if deps.Classifier == nil {
		deps.Classifier = NewDuplicateClassifier(deps.Records, DefaultFuzzyThreshold)
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxLen := opts.MaxFilenameLength
	if maxLen <= 0 {
		maxLen = DefaultMaxFilenameLength
	}
	return &IngestBooksUseCase{
		deps:       deps,
		skip:       NewSkipFilter(opts.ExcludedNames, opts.ExcludedExtensions),
		sampler:    NewSampleExtractor(opts.SampleWindow, opts.SampleMarkers),
		maxNameLen: maxLen,
		logger:     logger,
	}
}

func (uc *IngestBooksUseCase) Run(ctx context.Context) (domain.RunSummary, error) {
	started := time.Now()
	summary := domain.RunSummary{RunID: uuid.NewString()}
	logger := uc.logger.With("run_id", summary.RunID)

	candidates, err := uc.deps.Source.List(ctx)
	if err != nil {
		return summary, fmt.Errorf("list candidates: %w", err)
	}
	if len(candidates) == 0 {
		logger.Info("no_files_to_process")
		return summary, nil
	}

	runDir, release, err := uc.deps.Workspace.Acquire("", "run-*")
	if err != nil {
		return summary, fmt.Errorf("acquire run workspace: %w", err)
	}
	defer release()

	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			summary.Duration = time.Since(started)
			logger.Warn("ingest_run_interrupted", "processed", summary.Scanned, "error", err)
			return summary, err
		}
		summary.Scanned++

		fileStarted := time.Now()
		outcome, suspects := uc.processFile(ctx, logger.With("file", candidate.Name), summary.RunID, runDir, candidate)
		if outcome == domain.OutcomeInterrupted {
			summary.Scanned--
			summary.Duration = time.Since(started)
			logger.Warn("ingest_run_interrupted", "processed", summary.Scanned, "file", candidate.Name, "error", ctx.Err())
			return summary, ctx.Err()
		}
		summary.Count(outcome)
		summary.FuzzySuspects += suspects
		if uc.deps.Metrics != nil {
			uc.deps.Metrics.ObserveFile(outcome, time.Since(fileStarted))
			uc.deps.Metrics.AddFuzzySuspects(suspects)
		}
	}

	summary.Duration = time.Since(started)
	logger.Info("ingest_run_finished",
		"scanned", summary.Scanned,
		"excluded", summary.Excluded,
		"ingested", summary.Ingested,
		"exact_duplicates", summary.ExactDuplicates,
		"metadata_duplicates", summary.MetadataDuplicates,
		"fuzzy_suspects", summary.FuzzySuspects,
		"failed", summary.Failed,
		"duration_ms", summary.Duration.Milliseconds(),
	)
	return summary, nil
}

func (uc *IngestBooksUseCase) processFile(
	ctx context.Context,
	logger *slog.Logger,
	runID string,
	runDir string,
	candidate domain.Candidate,
) (domain.Outcome, int) {
	if uc.skip.Skip(candidate.Name) {
		logger.Debug("skip_excluded")
		return domain.OutcomeExcluded, 0
	}

	hash, err := uc.deps.Hasher.Hash(ctx, candidate.Path)
	if err != nil {
		if ctx.Err() != nil {
			return domain.OutcomeInterrupted, 0
		}
		logger.Error("hash_failed", "error", err)
		return domain.OutcomeFailed, 0
	}

	fp := domain.Fingerprint{
		OriginalFilename:  candidate.Name,
		TruncatedFilename: TruncateFilename(candidate.Name, uc.maxNameLen),
		FileHash:          hash,
	}
	decision, err := uc.deps.Classifier.Classify(ctx, fp, func(ctx context.Context) domain.Metadata {
		return uc.deps.Metadata.Extract(ctx, candidate.Path)
	})
	if err != nil {
		if ctx.Err() != nil {
			return domain.OutcomeInterrupted, 0
		}
		logger.Error("classify_failed", "error", err)
		return domain.OutcomeFailed, 0
	}

	switch decision.Verdict {
	case domain.VerdictExactDuplicate:
		logger.Info("skip_exact_duplicate", "matched", matchedName(decision))
		return domain.OutcomeExactDuplicate, 0
	case domain.VerdictMetadataDuplicate:
		logger.Info("skip_metadata_duplicate",
			"matched", matchedName(decision),
			"title", decision.Metadata.Title,
			"author", decision.Metadata.Author,
		)
		uc.journal(ctx, logger, domain.JournalEvent{
			RunID:    runID,
			Kind:     domain.EventMetadataDuplicate,
			Filename: candidate.Name,
			Matched:  matchedName(decision),
			Title:    decision.Metadata.Title,
			Author:   decision.Metadata.Author,
		})
		return domain.OutcomeMetadataDuplicate, 0
	}

	sample, err := uc.extractSample(ctx, runDir, candidate.Path)
	if ctx.Err() != nil {
		return domain.OutcomeInterrupted, 0
	}
	if err != nil {
		logger.Warn("conversion_failed", "error", err)
		uc.journal(ctx, logger, domain.JournalEvent{
			RunID:    runID,
			Kind:     domain.EventConversionFailed,
			Filename: candidate.Name,
			Err:      err,
		})
	}

	suspects := uc.reportSuspects(ctx, logger, runID, candidate.Name, sample)
	if ctx.Err() != nil {
		return domain.OutcomeInterrupted, suspects
	}

	rec := domain.BookRecord{
		OriginalFilename:  fp.OriginalFilename,
		TruncatedFilename: fp.TruncatedFilename,
		FileHash:          fp.FileHash,
		SampleText:        sample,
		MetadataTitle:     decision.Metadata.Title,
		MetadataAuthor:    decision.Metadata.Author,
	}
	if err := uc.place(ctx, logger, candidate, rec); err != nil {
		if ctx.Err() != nil {
			logger.Warn("ingest_abandoned", "error", err)
			return domain.OutcomeInterrupted, suspects
		}
		kind := domain.EventCopyFailed
		if domain.IsKind(err, domain.ErrRecordInsert) {
			kind = domain.EventRecordFailed
		}
		logger.Error("ingest_failed", "event", string(kind), "error", err)
		uc.journal(ctx, logger, domain.JournalEvent{
			RunID:    runID,
			Kind:     kind,
			Filename: candidate.Name,
			Err:      err,
		})
		return domain.OutcomeFailed, suspects
	}
	logger.Info("ingested", "destination", rec.TruncatedFilename, "hash", rec.FileHash)

	if uc.deps.Notifier != nil {
		if err := uc.deps.Notifier.PublishBookIngested(ctx, rec); err != nil {
			logger.Warn("notify_failed", "error", err)
		}
	}
	return domain.OutcomeIngested, suspects
}

// extractSample converts the file inside its own scratch directory, which is
// removed before returning.
func (uc *IngestBooksUseCase) extractSample(ctx context.Context, runDir, path string) (string, error) {
	workDir, release, err := uc.deps.Workspace.Acquire(runDir, "book-*")
	if err != nil {
		return "", fmt.Errorf("acquire file workspace: %w", err)
	}
	defer release()

	text, err := uc.deps.Converter.ConvertToText(ctx, path, workDir)
	if err != nil {
		return "", err
	}
	return uc.sampler.Extract(text), nil
}

func (uc *IngestBooksUseCase) reportSuspects(ctx context.Context, logger *slog.Logger, runID, filename, sample string) int {
	if sample == "" {
		return 0
	}
	suspects, err := uc.deps.Classifier.FindSuspects(ctx, filename, sample)
	if err != nil {
		logger.Warn("fuzzy_check_failed", "error", err)
	}
	for _, s := range suspects {
		logger.Warn("fuzzy_suspect", "matched", s.MatchedFilename, "score", s.Score)
		uc.journal(ctx, logger, domain.JournalEvent{
			RunID:    runID,
			Kind:     domain.EventFuzzySuspect,
			Filename: filename,
			Matched:  s.MatchedFilename,
			Score:    s.Score,
		})
	}
	return len(suspects)
}

// place copies the file next to its destination and records it in one step:
// the staged copy is renamed into place inside the record transaction.
func (uc *IngestBooksUseCase) place(ctx context.Context, logger *slog.Logger, candidate domain.Candidate, rec domain.BookRecord) error {
	staged, err := uc.deps.Library.Stage(ctx, candidate.Path, rec.TruncatedFilename)
	if err != nil {
		return domain.WrapError(domain.ErrCopyFailure, "stage copy", err)
	}

	err = uc.deps.Records.Append(ctx, rec, func(context.Context) error {
		return staged.Commit()
	})
	if err != nil {
		if discardErr := staged.Discard(); discardErr != nil {
			logger.Error("discard_staged_copy_failed", "error", discardErr)
		}
		if !domain.IsKind(err, domain.ErrCopyFailure) && !domain.IsKind(err, domain.ErrRecordInsert) {
			err = domain.WrapError(domain.ErrRecordInsert, "append record", err)
		}
		return err
	}
	return nil
}

func (uc *IngestBooksUseCase) journal(ctx context.Context, logger *slog.Logger, event domain.JournalEvent) {
	if err := uc.deps.Journal.Record(ctx, event); err != nil {
		logger.Error("journal_write_failed", "event", string(event.Kind), "error", err)
	}
}

func matchedName(d domain.Decision) string {
	if d.Match == nil {
		return ""
	}
	return d.Match.OriginalFilename
}
