package localfs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeSource(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o640); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return path
}

func TestStageIsInvisibleUntilCommit(t *testing.T) {
	srcDir, libDir := t.TempDir(), t.TempDir()
	src := writeSource(t, srcDir, "book.epub", "epub bytes")
	mtime := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	if err := os.Chtimes(src, mtime, mtime); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	lib, err := New(libDir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	staged, err := lib.Stage(context.Background(), src, "book.epub")
	if err != nil {
		t.Fatalf("Stage() error = %v", err)
	}
	final := filepath.Join(libDir, "book.epub")
	if _, err := os.Stat(final); !os.IsNotExist(err) {
		t.Fatalf("destination must not exist before commit, err=%v", err)
	}

	if err := staged.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	raw, err := os.ReadFile(final)
	if err != nil {
		t.Fatalf("read destination: %v", err)
	}
	if string(raw) != "epub bytes" {
		t.Fatalf("unexpected content %q", raw)
	}
	info, _ := os.Stat(final)
	if !info.ModTime().Equal(mtime) {
		t.Fatalf("expected mtime %v, got %v", mtime, info.ModTime())
	}
	entries, _ := os.ReadDir(libDir)
	if len(entries) != 1 {
		t.Fatalf("expected only the placed file in library, got %d entries", len(entries))
	}
}

func TestDiscardBeforeAndAfterCommit(t *testing.T) {
	srcDir, libDir := t.TempDir(), t.TempDir()
	src := writeSource(t, srcDir, "a.pdf", "pdf")
	lib, _ := New(libDir)

	staged, err := lib.Stage(context.Background(), src, "a.pdf")
	if err != nil {
		t.Fatalf("Stage() error = %v", err)
	}
	if err := staged.Discard(); err != nil {
		t.Fatalf("Discard() error = %v", err)
	}
	if entries, _ := os.ReadDir(libDir); len(entries) != 0 {
		t.Fatalf("expected empty library after discard")
	}

	staged, _ = lib.Stage(context.Background(), src, "a.pdf")
	if err := staged.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if err := staged.Discard(); err != nil {
		t.Fatalf("Discard() after commit error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(libDir, "a.pdf")); !os.IsNotExist(err) {
		t.Fatalf("placed file must be removed by discard after commit")
	}
}

func TestStageRejectsPathNames(t *testing.T) {
	srcDir, libDir := t.TempDir(), t.TempDir()
	src := writeSource(t, srcDir, "a.pdf", "pdf")
	lib, _ := New(libDir)
	if _, err := lib.Stage(context.Background(), src, "../escape.pdf"); err == nil {
		t.Fatalf("expected error for name with path separators")
	}
}

func TestStageMissingSource(t *testing.T) {
	lib, _ := New(t.TempDir())
	if _, err := lib.Stage(context.Background(), "/does/not/exist.epub", "exist.epub"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestSourceListsRegularFilesOnly(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "b.epub", "b")
	writeSource(t, dir, "a.pdf", "a")
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	got, err := NewSource(dir).List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 2 || got[0].Name != "a.pdf" || got[1].Name != "b.epub" {
		t.Fatalf("unexpected candidates: %+v", got)
	}
	if got[0].Path != filepath.Join(dir, "a.pdf") || got[0].Size != 1 {
		t.Fatalf("unexpected candidate fields: %+v", got[0])
	}
}

func TestScratchReleaseRemovesEverything(t *testing.T) {
	root := filepath.Join(t.TempDir(), "temp-books")
	s := NewScratch(root)

	runDir, releaseRun, err := s.Acquire("", "run-*")
	if err != nil {
		t.Fatalf("Acquire(run) error = %v", err)
	}
	fileDir, releaseFile, err := s.Acquire(runDir, "book-*")
	if err != nil {
		t.Fatalf("Acquire(file) error = %v", err)
	}
	writeSource(t, fileDir, "book.txt", "converted")

	releaseFile()
	if _, err := os.Stat(fileDir); !os.IsNotExist(err) {
		t.Fatalf("file scratch dir must be removed")
	}
	releaseRun()
	if _, err := os.Stat(root); !os.IsNotExist(err) {
		t.Fatalf("scratch root created by Acquire must be removed, err=%v", err)
	}
}

func TestStagedCopyUsesPartSuffix(t *testing.T) {
	srcDir, libDir := t.TempDir(), t.TempDir()
	src := writeSource(t, srcDir, "book.epub", "epub bytes")
	lib, err := New(libDir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	staged, err := lib.Stage(context.Background(), src, "book.epub")
	if err != nil {
		t.Fatalf("Stage() error = %v", err)
	}
	defer staged.Discard()

	entries, _ := os.ReadDir(libDir)
	if len(entries) != 1 || !strings.HasSuffix(entries[0].Name(), ".part") || !strings.HasPrefix(entries[0].Name(), ".ingest-") {
		t.Fatalf("unexpected staged entries %v", entries)
	}
}

func TestRemoveStaleDeletesLeftoverStagedCopies(t *testing.T) {
	libDir := t.TempDir()
	for _, name := range []string{".ingest-123.part", ".ingest-456.partial", "book.epub", "other.part"} {
		writeSource(t, libDir, name, "x")
	}
	lib, err := New(libDir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	removed, err := lib.RemoveStale()
	if err != nil {
		t.Fatalf("RemoveStale() error = %v", err)
	}
	if len(removed) != 2 {
		t.Fatalf("expected 2 stale copies removed, got %v", removed)
	}
	entries, _ := os.ReadDir(libDir)
	var left []string
	for _, e := range entries {
		left = append(left, e.Name())
	}
	if len(left) != 2 || left[0] != "book.epub" || left[1] != "other.part" {
		t.Fatalf("unexpected library contents %v", left)
	}
}
