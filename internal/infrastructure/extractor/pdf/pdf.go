// Package pdf reads text and document info from PDF files without external tools.
package pdf

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	pdfreader "github.com/ledongthuc/pdf"

	"github.com/kirillkom/ingest-buddy/internal/core/domain"
)

type Reader struct{}

func NewReader() *Reader {
	return &Reader{}
}

func (r *Reader) Name() string { return "pdf" }

func (r *Reader) Supports(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

// ReadMetadata returns the Title and Author entries of the document info dictionary.
func (r *Reader) ReadMetadata(_ context.Context, path string) (md domain.Metadata, err error) {
	defer recoverParse(&err)

	f, doc, err := pdfreader.Open(path)
	if err != nil {
		return domain.Metadata{}, domain.WrapError(domain.ErrFileRead, "open pdf", err)
	}
	defer f.Close()

	info := doc.Trailer().Key("Info")
	if info.IsNull() {
		return domain.Metadata{}, nil
	}
	return domain.Metadata{
		Title:  strings.TrimSpace(info.Key("Title").Text()),
		Author: strings.TrimSpace(info.Key("Author").Text()),
	}, nil
}

// ConvertToText concatenates the plain text of every readable page.
func (r *Reader) ConvertToText(ctx context.Context, path, _ string) (text string, err error) {
	defer recoverParse(&err)

	f, doc, err := pdfreader.Open(path)
	if err != nil {
		return "", domain.WrapError(domain.ErrFileRead, "open pdf", err)
	}
	defer f.Close()

	var b strings.Builder
	for i := 1; i <= doc.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := doc.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue // skip unreadable pages
		}
		pageText = strings.TrimSpace(pageText)
		if pageText == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(pageText)
	}
	if b.Len() == 0 {
		return "", domain.WrapError(domain.ErrExternalTool, "pdf text", fmt.Errorf("no extractable text in %s", filepath.Base(path)))
	}
	return b.String(), nil
}

// The parser panics on some malformed files.
func recoverParse(err *error) {
	if r := recover(); r != nil {
		*err = domain.WrapError(domain.ErrExternalTool, "parse pdf", fmt.Errorf("%v", r))
	}
}
