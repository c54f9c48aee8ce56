package epub

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"
)

const testContainer = `<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

const testPackage = `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="2.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:opf="http://www.idpf.org/2007/opf">
    <dc:title> Dune </dc:title>
    <dc:creator opf:role="aut">Frank Herbert</dc:creator>
    <dc:creator opf:role="ill">John Schoenherr</dc:creator>
  </metadata>
  <manifest>
    <item id="c2" href="text/ch%202.xhtml" media-type="application/xhtml+xml"/>
    <item id="c1" href="text/ch1.xhtml" media-type="application/xhtml+xml"/>
    <item id="css" href="style.css" media-type="text/css"/>
  </manifest>
  <spine>
    <itemref idref="c1"/>
    <itemref idref="c2"/>
  </spine>
</package>`

func writeEPUB(t *testing.T, files map[string]string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "book.epub")
	f, err := os.Create(p)
	if err != nil {
		t.Fatalf("create epub: %v", err)
	}
	zw := zip.NewWriter(f)
	for name, body := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("file close: %v", err)
	}
	return p
}

func TestReadMetadata(t *testing.T) {
	p := writeEPUB(t, map[string]string{
		"META-INF/container.xml": testContainer,
		"OEBPS/content.opf":      testPackage,
	})

	md, err := NewReader().ReadMetadata(context.Background(), p)
	if err != nil {
		t.Fatalf("ReadMetadata() error = %v", err)
	}
	if md.Title != "Dune" || md.Author != "Frank Herbert" {
		t.Fatalf("unexpected metadata %+v", md)
	}
}

func TestConvertToTextFollowsSpine(t *testing.T) {
	p := writeEPUB(t, map[string]string{
		"META-INF/container.xml": testContainer,
		"OEBPS/content.opf":      testPackage,
		"OEBPS/text/ch1.xhtml":   `<html><body><h1>Prologue</h1><p>Sand.</p></body></html>`,
		"OEBPS/text/ch 2.xhtml":  `<html><body><h1>Chapter 1</h1><p>Spice.</p></body></html>`,
	})

	text, err := NewReader().ConvertToText(context.Background(), p, "")
	if err != nil {
		t.Fatalf("ConvertToText() error = %v", err)
	}
	want := "Prologue\nSand.\n\nChapter 1\nSpice."
	if text != want {
		t.Fatalf("ConvertToText() = %q, want %q", text, want)
	}
}

func TestReadMetadataMissingPackage(t *testing.T) {
	p := writeEPUB(t, map[string]string{"META-INF/container.xml": testContainer})

	if _, err := NewReader().ReadMetadata(context.Background(), p); err == nil {
		t.Fatalf("expected error for missing package document")
	}
}

func TestReadMetadataNotZip(t *testing.T) {
	p := filepath.Join(t.TempDir(), "fake.epub")
	if err := os.WriteFile(p, []byte("plain"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := NewReader().ReadMetadata(context.Background(), p); err == nil {
		t.Fatalf("expected error for non-zip file")
	}
}

func TestSupports(t *testing.T) {
	if !NewReader().Supports("a.EPUB") || NewReader().Supports("a.mobi") {
		t.Fatalf("unexpected Supports result")
	}
}
