package calibre

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/kirillkom/ingest-buddy/internal/core/domain"
	"github.com/kirillkom/ingest-buddy/internal/infrastructure/resilience"
)

const (
	DefaultMetaBin    = "ebook-meta"
	DefaultConvertBin = "ebook-convert"
	DefaultTimeout    = 5 * time.Minute

	opMeta    = "calibre.ebook-meta"
	opConvert = "calibre.ebook-convert"
)

type Options struct {
	MetaBin    string
	ConvertBin string
	Timeout    time.Duration
	Executor   *resilience.Executor
}

// Tools runs the calibre command line utilities.
type Tools struct {
	metaBin    string
	convertBin string
	timeout    time.Duration
	executor   *resilience.Executor
}

func New(opts Options) *Tools {
	t := &Tools{
		metaBin:    strings.TrimSpace(opts.MetaBin),
		convertBin: strings.TrimSpace(opts.ConvertBin),
		timeout:    opts.Timeout,
		executor:   opts.Executor,
	}
	if t.metaBin == "" {
		t.metaBin = DefaultMetaBin
	}
	if t.convertBin == "" {
		t.convertBin = DefaultConvertBin
	}
	if t.timeout <= 0 {
		t.timeout = DefaultTimeout
	}
	return t
}

func (t *Tools) Name() string { return "calibre" }

// Supports reports true for every file; calibre reads most ebook formats.
func (t *Tools) Supports(string) bool { return true }

func (t *Tools) ReadMetadata(ctx context.Context, path string) (domain.Metadata, error) {
	var out []byte
	err := t.execute(ctx, opMeta, func(ctx context.Context) error {
		var runErr error
		out, runErr = t.run(ctx, t.metaBin, path)
		return runErr
	})
	if err != nil {
		return domain.Metadata{}, err
	}
	return ParseMetadata(out), nil
}

// ConvertToText converts path into a .txt file inside workDir and returns
// its content.
func (t *Tools) ConvertToText(ctx context.Context, path, workDir string) (string, error) {
	target := filepath.Join(workDir, "converted.txt")
	err := t.execute(ctx, opConvert, func(ctx context.Context) error {
		_, runErr := t.run(ctx, t.convertBin, path, target)
		return runErr
	})
	if err != nil {
		return "", err
	}

	raw, err := os.ReadFile(target)
	if err != nil {
		return "", domain.WrapError(domain.ErrExternalTool, "read converted text", err)
	}
	return strings.ToValidUTF8(string(raw), ""), nil
}

func (t *Tools) execute(ctx context.Context, operation string, fn func(context.Context) error) error {
	var err error
	if t.executor != nil {
		err = t.executor.Execute(ctx, operation, fn, classifyToolError)
	} else {
		err = fn(ctx)
	}
	if err == nil {
		return nil
	}
	if domain.IsKind(err, domain.ErrExternalTool) {
		return err
	}
	return domain.WrapError(domain.ErrExternalTool, operation, err)
}

func (t *Tools) run(ctx context.Context, bin string, args ...string) ([]byte, error) {
	runCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, bin, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = 2 * time.Second
	if err := cmd.Run(); err != nil {
		if runCtx.Err() != nil && ctx.Err() == nil {
			return nil, fmt.Errorf("%s timed out after %s: %w", filepath.Base(bin), t.timeout, runCtx.Err())
		}
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", filepath.Base(bin), err, firstLine(msg))
		}
		return nil, fmt.Errorf("%s: %w", filepath.Base(bin), err)
	}
	return stdout.Bytes(), nil
}

// ParseMetadata reads the "Title" and "Author(s)" fields of ebook-meta output.
func ParseMetadata(out []byte) domain.Metadata {
	var md domain.Metadata
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), ":")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "Title":
			md.Title = strings.TrimSpace(value)
		case "Author(s)":
			md.Author = strings.TrimSpace(value)
		}
	}
	return md
}

func classifyToolError(err error) resilience.ErrorClassification {
	switch {
	case errors.Is(err, context.Canceled):
		return resilience.ErrorClassification{}
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, context.DeadlineExceeded):
		return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// a non-zero exit is usually the file, not the tool
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
