package epub

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/beevik/etree"

	"github.com/kirillkom/ingest-buddy/internal/core/domain"
	"github.com/kirillkom/ingest-buddy/internal/infrastructure/extractor/htmltext"
)

const (
	containerPath = "META-INF/container.xml"
	maxEntryBytes = 16 << 20
)

// Reader reads EPUB files natively: Dublin Core metadata from the package
// document and text from the spine.
type Reader struct{}

func NewReader() *Reader {
	return &Reader{}
}

func (r *Reader) Name() string { return "epub" }

func (r *Reader) Supports(p string) bool {
	return strings.EqualFold(filepath.Ext(p), ".epub")
}

func (r *Reader) ReadMetadata(_ context.Context, p string) (domain.Metadata, error) {
	zr, err := zip.OpenReader(p)
	if err != nil {
		return domain.Metadata{}, domain.WrapError(domain.ErrFileRead, "open epub", err)
	}
	defer zr.Close()

	opf, _, err := openPackage(&zr.Reader)
	if err != nil {
		return domain.Metadata{}, err
	}
	return parsePackage(opf), nil
}

// ConvertToText concatenates the text of the spine documents in reading order.
func (r *Reader) ConvertToText(ctx context.Context, p, _ string) (string, error) {
	zr, err := zip.OpenReader(p)
	if err != nil {
		return "", domain.WrapError(domain.ErrFileRead, "open epub", err)
	}
	defer zr.Close()

	opf, opfPath, err := openPackage(&zr.Reader)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, href := range spineDocuments(opf, path.Dir(opfPath)) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		raw, err := readEntry(&zr.Reader, href)
		if err != nil {
			continue // broken manifest entries are common
		}
		text, err := htmltext.PlainText(bytes.NewReader(raw))
		if err != nil || text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(text)
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("epub: no readable spine documents")
	}
	return b.String(), nil
}

func openPackage(zr *zip.Reader) (*etree.Document, string, error) {
	container, err := readXML(zr, containerPath)
	if err != nil {
		return nil, "", err
	}
	rootfile := container.FindElement("//rootfile")
	if rootfile == nil {
		return nil, "", fmt.Errorf("epub: no rootfile in %s", containerPath)
	}
	opfPath := rootfile.SelectAttrValue("full-path", "")
	if opfPath == "" {
		return nil, "", fmt.Errorf("epub: empty rootfile path")
	}

	opf, err := readXML(zr, opfPath)
	if err != nil {
		return nil, "", err
	}
	return opf, opfPath, nil
}

// spineDocuments resolves spine itemrefs to archive paths via the manifest.
func spineDocuments(opf *etree.Document, baseDir string) []string {
	manifest := make(map[string]string)
	for _, item := range opf.FindElements("//manifest/item") {
		id := item.SelectAttrValue("id", "")
		href := item.SelectAttrValue("href", "")
		if id == "" || href == "" {
			continue
		}
		if unescaped, err := url.PathUnescape(href); err == nil {
			href = unescaped
		}
		manifest[id] = path.Join(baseDir, href)
	}

	var docs []string
	for _, ref := range opf.FindElements("//spine/itemref") {
		if href, ok := manifest[ref.SelectAttrValue("idref", "")]; ok {
			docs = append(docs, href)
		}
	}
	return docs
}

func parsePackage(opf *etree.Document) domain.Metadata {
	var md domain.Metadata
	if title := opf.FindElement("//metadata/title"); title != nil {
		md.Title = strings.TrimSpace(title.Text())
	}

	// multiple creators are joined like calibre does: "A & B"
	var authors []string
	for _, creator := range opf.FindElements("//metadata/creator") {
		role := creator.SelectAttrValue("opf:role", creator.SelectAttrValue("role", "aut"))
		if role != "aut" {
			continue
		}
		if name := strings.TrimSpace(creator.Text()); name != "" {
			authors = append(authors, name)
		}
	}
	md.Author = strings.Join(authors, " & ")
	return md
}

func readXML(zr *zip.Reader, name string) (*etree.Document, error) {
	raw, err := readEntry(zr, name)
	if err != nil {
		return nil, err
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	return doc, nil
}

func readEntry(zr *zip.Reader, name string) ([]byte, error) {
	name = path.Clean(strings.TrimPrefix(name, "/"))
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		defer rc.Close()

		raw, err := io.ReadAll(io.LimitReader(rc, maxEntryBytes))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		return raw, nil
	}
	return nil, fmt.Errorf("epub: missing %s", name)
}
