package plaintext

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/ingest-buddy/internal/core/domain"
)

// DefaultExtensions are formats whose bytes already are the text.
var DefaultExtensions = []string{".md", ".markdown", ".rst", ".org", ".text", ".asc"}

const maxTextBytes = 32 << 20

type Extractor struct {
	extensions map[string]struct{}
}

func NewExtractor(extensions []string) *Extractor {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	set := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = struct{}{}
	}
	return &Extractor{extensions: set}
}

func (e *Extractor) Name() string { return "plaintext" }

func (e *Extractor) Supports(path string) bool {
	_, ok := e.extensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

func (e *Extractor) ConvertToText(_ context.Context, path, _ string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", domain.WrapError(domain.ErrFileRead, "open source document", err)
	}
	defer f.Close()

	raw, err := io.ReadAll(io.LimitReader(f, maxTextBytes))
	if err != nil {
		return "", domain.WrapError(domain.ErrFileRead, "read source document", err)
	}

	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(raw) || bytes.IndexByte(raw, 0) >= 0 {
		return "", fmt.Errorf("not utf-8 text: %s", filepath.Base(path))
	}

	return strings.TrimSpace(string(raw)), nil
}
