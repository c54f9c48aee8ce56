package journal

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/kirillkom/ingest-buddy/internal/core/domain"
)

// Journal is the durable failure log: one JSON object per line, appended
// across runs.
type Journal struct {
	mu     sync.Mutex
	out    *trackingWriter
	logger zerolog.Logger
	closer io.Closer
}

// Open appends to path, creating the file and its directory when missing.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, domain.WrapError(domain.ErrFileRead, "open journal", err)
	}
	j := New(f)
	j.closer = f
	return j, nil
}

func New(w io.Writer) *Journal {
	out := &trackingWriter{w: w}
	return &Journal{
		out:    out,
		logger: zerolog.New(out).With().Timestamp().Logger(),
	}
}

func (j *Journal) Close() error {
	if j.closer == nil {
		return nil
	}
	return j.closer.Close()
}

func (j *Journal) Record(_ context.Context, event domain.JournalEvent) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.out.err = nil
	e := j.logger.Log().
		Str("event", string(event.Kind)).
		Str("file", event.Filename)
	if event.RunID != "" {
		e = e.Str("run_id", event.RunID)
	}
	if event.Matched != "" {
		e = e.Str("matched", event.Matched)
	}
	if event.Kind == domain.EventFuzzySuspect {
		e = e.Float64("score", event.Score)
	}
	if event.Title != "" {
		e = e.Str("title", event.Title)
	}
	if event.Author != "" {
		e = e.Str("author", event.Author)
	}
	if event.Err != nil {
		e = e.Str("error", event.Err.Error())
	}
	e.Msg(Message(event))

	if j.out.err != nil {
		return fmt.Errorf("write journal entry: %w", j.out.err)
	}
	return nil
}

// Message renders the human-readable line for event.
func Message(event domain.JournalEvent) string {
	switch event.Kind {
	case domain.EventFuzzySuspect:
		return fmt.Sprintf("%s - potential duplicate found (fuzzy match with %s, score=%s)",
			event.Filename, event.Matched, strconv.FormatFloat(event.Score, 'f', -1, 64))
	case domain.EventMetadataDuplicate:
		return fmt.Sprintf("%s - definite duplicate by metadata match", event.Filename)
	case domain.EventConversionFailed:
		return fmt.Sprintf("%s - conversion failed", event.Filename)
	case domain.EventCopyFailed:
		return fmt.Sprintf("%s - copy failed: %v", event.Filename, event.Err)
	case domain.EventRecordFailed:
		return fmt.Sprintf("%s - record insert failed: %v", event.Filename, event.Err)
	default:
		return fmt.Sprintf("%s - %s", event.Filename, event.Kind)
	}
}

// zerolog reports write errors through a global handler; this keeps the
// last one so Record can return it.
type trackingWriter struct {
	w   io.Writer
	err error
}

func (t *trackingWriter) Write(p []byte) (int, error) {
	n, err := t.w.Write(p)
	if err != nil {
		t.err = err
	}
	return n, err
}
