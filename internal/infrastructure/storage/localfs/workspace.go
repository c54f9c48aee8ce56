package localfs

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
)

// Scratch hands out temporary directories below root.
type Scratch struct {
	root string
}

func NewScratch(root string) *Scratch {
	if root == "" {
		root = os.TempDir()
	}
	return &Scratch{root: root}
}

// Acquire creates a directory under parent, or under the scratch root when
// parent is empty. The returned release removes it recursively, and removes
// the root too when Acquire created it and nothing else is left inside.
func (s *Scratch) Acquire(parent, pattern string) (string, func(), error) {
	createdRoot := false
	if parent == "" {
		parent = s.root
		if _, err := os.Stat(parent); errors.Is(err, os.ErrNotExist) {
			createdRoot = true
		}
		if err := os.MkdirAll(parent, 0o755); err != nil {
			return "", nil, fmt.Errorf("create scratch root: %w", err)
		}
	}
	dir, err := os.MkdirTemp(parent, pattern)
	if err != nil {
		return "", nil, fmt.Errorf("create scratch dir: %w", err)
	}
	release := func() {
		if err := os.RemoveAll(dir); err != nil {
			slog.Warn("scratch_cleanup_failed", "dir", dir, "error", err)
		}
		if createdRoot {
			_ = os.Remove(parent)
		}
	}
	return dir, release, nil
}
