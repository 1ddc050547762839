package filemanager

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	serrors "github.com/conneroisu/tplsync/internal/errors"
)

// vcsPrefix marks build root entries that survive a clean (.git, .gitignore, ...).
const vcsPrefix = ".git"

// DeleteBuild empties the build directory. The directory itself and any
// root entry whose name starts with .git are kept.
func (m *Manager) DeleteBuild() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := Clean(m.buildDir); err != nil {
		m.handler.Handle(context.Background(), err)
		return err
	}
	m.index = nil
	m.logger.Info(context.Background(), "Destination directory cleaned", "dir", m.buildDir)
	return nil
}

// Clean empties dir the way DeleteBuild does. A missing dir is not an error.
func Clean(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return serrors.WrapIO(err, serrors.ErrCodeDeleteFailed, "cannot read build directory", dir)
	}

	collector := serrors.NewCollector()
	for _, entry := range entries {
		if protected(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			collector.Add(serrors.WrapIO(err, serrors.ErrCodeDeleteFailed, "cannot remove build entry", path))
		}
	}
	return collector.Join()
}

// protected reports whether a build-relative path starts at a .git* root entry.
func protected(rel string) bool {
	first := strings.SplitN(filepath.ToSlash(rel), "/", 2)[0]
	return strings.HasPrefix(first, vcsPrefix)
}
