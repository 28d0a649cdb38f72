package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var errBrokenSymlink = errors.New("path crosses a broken symlink")

// Contains reports whether target equals root or lies beneath it. The check
// compares path components, so /home/u/DesktopEvil is not inside /home/u/Desktop.
// Both arguments must be absolute and clean.
func Contains(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

// canonicalize resolves symlinks in an absolute, clean path. Components that do
// not exist yet are appended to the canonical form of their deepest existing
// ancestor, so a file about to be created resolves the same way it will once
// it exists.
func canonicalize(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err == nil {
		return resolved, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}

	existing := path
	var missing []string
	for {
		parent := filepath.Dir(existing)
		if parent == existing {
			return "", fmt.Errorf("no existing ancestor for %s", path)
		}
		missing = append(missing, filepath.Base(existing))
		existing = parent
		if _, err := os.Stat(existing); err == nil {
			break
		}
	}

	// The first missing component may still exist as a dangling link; following
	// it later would land wherever the link points.
	first := missing[len(missing)-1]
	if info, err := os.Lstat(filepath.Join(existing, first)); err == nil && info.Mode()&fs.ModeSymlink != 0 {
		return "", errBrokenSymlink
	}

	base, err := filepath.EvalSymlinks(existing)
	if err != nil {
		return "", err
	}
	parts := make([]string, 0, len(missing)+1)
	parts = append(parts, base)
	for i := len(missing) - 1; i >= 0; i-- {
		parts = append(parts, missing[i])
	}
	return filepath.Join(parts...), nil
}
