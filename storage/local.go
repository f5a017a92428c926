package storage

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Local lists files on the local filesystem. It backs the "file" scheme and
// is the default in single-node deployments and tests.
type Local struct{}

// NewLocal creates a local filesystem storage.
func NewLocal() *Local {
	return &Local{}
}

func (l *Local) Scheme() Scheme {
	return SchemeLocal
}

// ListPaths walks the directory at prefix and returns the regular files
// under it. A prefix naming a single file returns that file. Hidden files
// are skipped.
func (l *Local) ListPaths(prefix string) ([]string, error) {
	info, err := os.Stat(prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
	}
	if !info.IsDir() {
		return []string{prefix}, nil
	}
	var paths []string
	err = filepath.WalkDir(prefix, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
	}
	sort.Strings(paths)
	return paths, nil
}
