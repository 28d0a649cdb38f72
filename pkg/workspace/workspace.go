// Package workspace confines list/create/append operations to a single root
// directory. Every caller supplied path goes through Resolve, which returns the
// canonical absolute path or an access_denied error when the path escapes the
// root.
package workspace

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/afero"

	"github.com/wilhg/deskfs/pkg/errmodel"
)

// Permissions passed to mkdir/open; the process umask applies on top.
const (
	dirPerm  fs.FileMode = 0o777
	filePerm fs.FileMode = 0o666
)

// Entry is one direct child of the root directory.
type Entry struct {
	Name  string `json:"name"`
	IsDir bool   `json:"is_dir"`
}

// Workspace holds the immutable root directory and the filesystem the
// operations act on. It is safe for concurrent use.
type Workspace struct {
	root string
	fs   afero.Fs
}

// Option configures a Workspace at construction time.
type Option func(*Workspace)

// WithReadOnly rejects every mutation at the filesystem layer.
func WithReadOnly() Option {
	return func(w *Workspace) {
		w.fs = afero.NewReadOnlyFs(w.fs)
	}
}

// New canonicalizes root and returns a Workspace bound to it. The root does not
// have to exist yet; List reports an io_error until it does.
func New(root string, opts ...Option) (*Workspace, error) {
	if root == "" {
		return nil, errors.New("workspace: root is empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	canonical, err := canonicalize(abs)
	if err != nil {
		return nil, err
	}
	w := &Workspace{root: canonical, fs: afero.NewOsFs()}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Root returns the canonical root directory.
func (w *Workspace) Root() string { return w.root }

// Resolve maps a path relative to the root onto its canonical absolute path.
// Absolute inputs are taken as-is and accepted only if they lie inside the root.
func (w *Workspace) Resolve(rel string) (string, error) {
	canonical, err := canonicalize(w.lexical(rel))
	if err != nil {
		if errors.Is(err, errBrokenSymlink) {
			return "", errmodel.AccessDenied(rel)
		}
		return "", errmodel.IO("resolve", rel, err)
	}
	if !Contains(w.root, canonical) {
		return "", errmodel.AccessDenied(rel)
	}
	return canonical, nil
}

// lexical joins rel onto the root without touching the filesystem.
func (w *Workspace) lexical(rel string) string {
	if filepath.IsAbs(rel) {
		return filepath.Clean(rel)
	}
	return filepath.Join(w.root, rel)
}

// List returns the direct children of the root, sorted by name.
// Symlinks report the kind of their target.
func (w *Workspace) List(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	infos, err := afero.ReadDir(w.fs, w.root)
	if err != nil {
		return nil, errmodel.IO("list", w.root, err)
	}
	entries := make([]Entry, 0, len(infos))
	for _, info := range infos {
		isDir := info.IsDir()
		if info.Mode()&fs.ModeSymlink != 0 {
			if st, err := w.fs.Stat(filepath.Join(w.root, info.Name())); err == nil {
				isDir = st.IsDir()
			}
		}
		entries = append(entries, Entry{Name: info.Name(), IsDir: isDir})
	}
	return entries, nil
}

// Create makes a directory (with parents) when isDir is set, otherwise an empty
// file under freshly created parents. Both forms are idempotent; an existing
// file keeps its content and only has its modification time bumped.
func (w *Workspace) Create(ctx context.Context, rel string, isDir bool) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	target, err := w.Resolve(rel)
	if err != nil {
		return "", err
	}
	if isDir {
		if err := w.fs.MkdirAll(target, dirPerm); err != nil {
			return "", errmodel.IO("mkdir", target, err)
		}
		return target, nil
	}

	if info, err := w.fs.Stat(target); err == nil && info.IsDir() {
		return "", errmodel.IsADirectory(target)
	}
	if err := w.fs.MkdirAll(filepath.Dir(target), dirPerm); err != nil {
		return "", errmodel.IO("mkdir", filepath.Dir(target), err)
	}
	f, err := w.fs.OpenFile(target, os.O_CREATE|os.O_WRONLY, filePerm)
	if err != nil {
		return "", errmodel.IO("create", target, err)
	}
	if err := f.Close(); err != nil {
		return "", errmodel.IO("create", target, err)
	}
	now := time.Now()
	if err := w.fs.Chtimes(target, now, now); err != nil {
		return "", errmodel.IO("touch", target, err)
	}
	return target, nil
}

// Append writes content at the end of an existing regular file. A path that
// runs through a regular file (f.txt/x) does not exist and is file_not_found.
func (w *Workspace) Append(ctx context.Context, rel, content string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	target, err := w.Resolve(rel)
	if errors.Is(err, syscall.ENOTDIR) {
		return "", w.notDirError(rel)
	}
	if err != nil {
		return "", err
	}
	info, err := w.fs.Stat(target)
	switch {
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, syscall.ENOTDIR):
		return "", errmodel.FileNotFound(target)
	case err != nil:
		return "", errmodel.IO("stat", target, err)
	case info.IsDir():
		return "", errmodel.IsADirectory(target)
	}

	f, err := w.fs.OpenFile(target, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		return "", errmodel.IO("append", target, err)
	}
	if _, err := f.WriteString(content); err != nil {
		_ = f.Close()
		return "", errmodel.IO("append", target, err)
	}
	if err := f.Close(); err != nil {
		return "", errmodel.IO("append", target, err)
	}
	return target, nil
}

// notDirError classifies a path that runs through a regular file. The nearest
// ancestor that resolves decides: inside the root it is file_not_found,
// otherwise (a link to a file elsewhere) access_denied.
func (w *Workspace) notDirError(rel string) error {
	lex := w.lexical(rel)
	for p := filepath.Dir(lex); ; p = filepath.Dir(p) {
		if canonical, err := canonicalize(p); err == nil {
			if !Contains(w.root, canonical) {
				return errmodel.AccessDenied(rel)
			}
			return errmodel.FileNotFound(lex)
		}
		if filepath.Dir(p) == p {
			return errmodel.AccessDenied(rel)
		}
	}
}
