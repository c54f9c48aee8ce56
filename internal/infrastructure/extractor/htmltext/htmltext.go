// Package htmltext turns HTML and XHTML documents into plain text and reads
// title/byline metadata from HTML books.
package htmltext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/kirillkom/ingest-buddy/internal/core/domain"
)

var DefaultExtensions = []string{".html", ".htm", ".xhtml"}

const maxHTMLBytes = 64 << 20

type Extractor struct {
	extensions map[string]struct{}
}

func NewExtractor() *Extractor {
	set := make(map[string]struct{}, len(DefaultExtensions))
	for _, ext := range DefaultExtensions {
		set[ext] = struct{}{}
	}
	return &Extractor{extensions: set}
}

func (e *Extractor) Name() string { return "html" }

func (e *Extractor) Supports(path string) bool {
	_, ok := e.extensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

func (e *Extractor) ConvertToText(ctx context.Context, path, _ string) (string, error) {
	raw, err := readFile(path)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text, err := PlainText(bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", fmt.Errorf("no text in %s", filepath.Base(path))
	}
	return text, nil
}

// ReadMetadata uses the document title and byline as detected by readability.
func (e *Extractor) ReadMetadata(_ context.Context, path string) (domain.Metadata, error) {
	raw, err := readFile(path)
	if err != nil {
		return domain.Metadata{}, err
	}
	article, err := readability.FromReader(bytes.NewReader(raw), &url.URL{Scheme: "file", Path: filepath.ToSlash(path)})
	if err != nil {
		return domain.Metadata{}, fmt.Errorf("readability: %w", err)
	}
	return domain.Metadata{
		Title:  strings.TrimSpace(article.Title),
		Author: strings.TrimSpace(article.Byline),
	}, nil
}

func readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, domain.WrapError(domain.ErrFileRead, "open html", err)
	}
	defer f.Close()

	raw, err := io.ReadAll(io.LimitReader(f, maxHTMLBytes))
	if err != nil {
		return nil, domain.WrapError(domain.ErrFileRead, "read html", err)
	}
	return raw, nil
}

// PlainText returns the visible text of an HTML document, one line per block element.
func PlainText(r io.Reader) (string, error) {
	z := html.NewTokenizer(r)
	var (
		b         strings.Builder
		line      strings.Builder
		skipDepth int
	)
	flush := func() {
		s := strings.Join(strings.Fields(line.String()), " ")
		line.Reset()
		if s == "" {
			return
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(s)
	}

	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); !errors.Is(err, io.EOF) {
				return "", fmt.Errorf("tokenize html: %w", err)
			}
			flush()
			return b.String(), nil
		case html.StartTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if skipped(a) {
				skipDepth++
			}
			if block(a) {
				flush()
			}
		case html.SelfClosingTagToken:
			name, _ := z.TagName()
			if block(atom.Lookup(name)) {
				flush()
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if skipped(a) && skipDepth > 0 {
				skipDepth--
			}
			if block(a) {
				flush()
			}
		case html.TextToken:
			if skipDepth == 0 {
				line.Write(z.Text())
				line.WriteByte(' ')
			}
		}
	}
}

func skipped(a atom.Atom) bool {
	switch a {
	case atom.Script, atom.Style, atom.Head, atom.Noscript, atom.Template:
		return true
	}
	return false
}

func block(a atom.Atom) bool {
	switch a {
	case atom.P, atom.Div, atom.Br, atom.Li, atom.Tr, atom.Section, atom.Article,
		atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6,
		atom.Blockquote, atom.Pre, atom.Hr, atom.Body:
		return true
	}
	return false
}
