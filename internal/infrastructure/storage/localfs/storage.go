package localfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kirillkom/ingest-buddy/internal/core/ports"
)

// Staged copies use a ".part" suffix, which library watchers treat as an
// unfinished download.
const (
	stagedPrefix = ".ingest-"
	stagedSuffix = ".part"
)

// Storage is the destination library folder.
type Storage struct {
	basePath string
}

func New(basePath string) (*Storage, error) {
	if basePath == "" {
		return nil, errors.New("library path is empty")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create library dir: %w", err)
	}
	return &Storage{basePath: basePath}, nil
}

// Stage copies sourcePath into a hidden temporary file inside the library.
// Nothing is visible under name until Commit.
func (s *Storage) Stage(ctx context.Context, sourcePath, name string) (ports.StagedFile, error) {
	if name == "" || name != filepath.Base(name) {
		return nil, fmt.Errorf("invalid destination name %q", name)
	}
	src, err := os.Open(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat source: %w", err)
	}

	tmp, err := os.CreateTemp(s.basePath, stagedPrefix+"*"+stagedSuffix)
	if err != nil {
		return nil, fmt.Errorf("create staged file: %w", err)
	}
	staged := &stagedFile{
		tmpPath:   tmp.Name(),
		finalPath: filepath.Join(s.basePath, name),
		modTime:   info.ModTime(),
	}

	if _, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: src}); err != nil {
		_ = tmp.Close()
		_ = os.Remove(staged.tmpPath)
		return nil, fmt.Errorf("write staged file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(staged.tmpPath)
		return nil, fmt.Errorf("sync staged file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(staged.tmpPath)
		return nil, fmt.Errorf("close staged file: %w", err)
	}
	if err := os.Chmod(staged.tmpPath, info.Mode().Perm()); err != nil {
		_ = os.Remove(staged.tmpPath)
		return nil, fmt.Errorf("chmod staged file: %w", err)
	}
	return staged, nil
}

// RemoveStale deletes staged copies left behind by a process that died
// between Stage and Commit, and returns their names.
func (s *Storage) RemoveStale() ([]string, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, fmt.Errorf("read library dir: %w", err)
	}
	var removed []string
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || !isStaged(name) {
			continue
		}
		if err := os.Remove(filepath.Join(s.basePath, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, fmt.Errorf("remove stale %s: %w", name, err)
		}
		removed = append(removed, name)
	}
	return removed, nil
}

func isStaged(name string) bool {
	if !strings.HasPrefix(name, stagedPrefix) {
		return false
	}
	// .partial was used by earlier releases
	return strings.HasSuffix(name, stagedSuffix) || strings.HasSuffix(name, ".partial")
}

type stagedFile struct {
	tmpPath   string
	finalPath string
	modTime   time.Time
	committed bool
}

// Commit renames the staged copy into place, replacing an existing file of
// the same name, and keeps the source modification time.
func (f *stagedFile) Commit() error {
	if f.committed {
		return nil
	}
	if err := os.Chtimes(f.tmpPath, f.modTime, f.modTime); err != nil {
		return fmt.Errorf("preserve mtime: %w", err)
	}
	if err := os.Rename(f.tmpPath, f.finalPath); err != nil {
		return fmt.Errorf("move into library: %w", err)
	}
	f.committed = true
	return nil
}

func (f *stagedFile) Discard() error {
	path := f.tmpPath
	if f.committed {
		path = f.finalPath
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
