package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/ingest-buddy/internal/core/domain"
	"github.com/kirillkom/ingest-buddy/internal/core/ports"
)

type recordStoreFake struct {
	records   []domain.BookRecord
	insertErr error
	lookupErr error
}

func (f *recordStoreFake) FindExact(_ context.Context, fp domain.Fingerprint) (*domain.BookRecord, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	for i := range f.records {
		rec := f.records[i]
		if rec.OriginalFilename == fp.OriginalFilename ||
			rec.TruncatedFilename == fp.OriginalFilename ||
			rec.TruncatedFilename == fp.TruncatedFilename ||
			rec.FileHash == fp.FileHash {
			return &rec, nil
		}
	}
	return nil, domain.ErrRecordNotFound
}

func (f *recordStoreFake) FindByMetadata(_ context.Context, title, author string) (*domain.BookRecord, error) {
	for i := range f.records {
		rec := f.records[i]
		if rec.MetadataTitle == title && rec.MetadataAuthor == author {
			return &rec, nil
		}
	}
	return nil, domain.ErrRecordNotFound
}

func (f *recordStoreFake) ListWithSamples(context.Context) ([]domain.BookRecord, error) {
	var out []domain.BookRecord
	for _, rec := range f.records {
		if rec.SampleText != "" {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *recordStoreFake) Append(ctx context.Context, rec domain.BookRecord, finalize func(context.Context) error) error {
	if f.insertErr != nil {
		return domain.WrapError(domain.ErrRecordInsert, "insert record", f.insertErr)
	}
	if finalize != nil {
		if err := finalize(ctx); err != nil {
			return domain.WrapError(domain.ErrCopyFailure, "finalize record", err)
		}
	}
	f.records = append(f.records, rec)
	return nil
}

func (f *recordStoreFake) ListAll(context.Context) ([]domain.BookRecord, error) {
	return append([]domain.BookRecord(nil), f.records...), nil
}

type sourceFake struct {
	candidates []domain.Candidate
}

func (f *sourceFake) List(context.Context) ([]domain.Candidate, error) {
	return f.candidates, nil
}

type hasherFake struct {
	hashes map[string]string
}

func (f *hasherFake) Hash(_ context.Context, path string) (string, error) {
	h, ok := f.hashes[path]
	if !ok {
		return "", domain.WrapError(domain.ErrFileRead, "hash file", fmt.Errorf("open %s: no such file", path))
	}
	return h, nil
}

type metadataFake struct {
	byPath map[string]domain.Metadata
	calls  int
}

func (f *metadataFake) Extract(_ context.Context, path string) domain.Metadata {
	f.calls++
	return f.byPath[path]
}

type converterFake struct {
	texts     map[string]string
	fail      map[string]bool
	dirs      []string
	interrupt map[string]context.CancelFunc
}

func (f *converterFake) ConvertToText(ctx context.Context, path, workDir string) (string, error) {
	f.dirs = append(f.dirs, workDir)
	if cancel, ok := f.interrupt[path]; ok {
		cancel()
		return "", domain.WrapError(domain.ErrExternalTool, "ebook-convert", ctx.Err())
	}
	if f.fail[path] {
		return "", domain.WrapError(domain.ErrExternalTool, "ebook-convert", errors.New("exit status 1"))
	}
	return f.texts[path], nil
}

type libraryFake struct {
	failStage  map[string]bool
	failCommit map[string]bool
	placed     []string
	discarded  []string
	interrupt  map[string]context.CancelFunc
}

func (f *libraryFake) Stage(ctx context.Context, _ string, name string) (ports.StagedFile, error) {
	if cancel, ok := f.interrupt[name]; ok {
		cancel()
		return nil, fmt.Errorf("copy %s: %w", name, ctx.Err())
	}
	if f.failStage[name] {
		return nil, errors.New("no space left on device")
	}
	return &stagedFake{lib: f, name: name}, nil
}

type stagedFake struct {
	lib  *libraryFake
	name string
}

func (s *stagedFake) Commit() error {
	if s.lib.failCommit[s.name] {
		return errors.New("rename failed")
	}
	s.lib.placed = append(s.lib.placed, s.name)
	return nil
}

func (s *stagedFake) Discard() error {
	s.lib.discarded = append(s.lib.discarded, s.name)
	return nil
}

type workspaceFake struct {
	acquired int
	released int
}

func (f *workspaceFake) Acquire(parent, pattern string) (string, func(), error) {
	f.acquired++
	dir := fmt.Sprintf("%s/%s-%d", parent, pattern, f.acquired)
	return dir, func() { f.released++ }, nil
}

type journalFake struct {
	events []domain.JournalEvent
}

func (f *journalFake) Record(_ context.Context, event domain.JournalEvent) error {
	f.events = append(f.events, event)
	return nil
}

func (f *journalFake) kinds() []domain.EventKind {
	out := make([]domain.EventKind, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.Kind)
	}
	return out
}

type notifierFake struct {
	published []string
}

func (f *notifierFake) PublishBookIngested(_ context.Context, rec domain.BookRecord) error {
	f.published = append(f.published, rec.OriginalFilename)
	return nil
}

type metricsFake struct {
	outcomes map[domain.Outcome]int
	suspects int
}

func (f *metricsFake) ObserveFile(outcome domain.Outcome, _ time.Duration) {
	if f.outcomes == nil {
		f.outcomes = make(map[domain.Outcome]int)
	}
	f.outcomes[outcome]++
}

func (f *metricsFake) AddFuzzySuspects(n int) {
	f.suspects += n
}
