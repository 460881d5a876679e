// Package scratch manages the temporary files a crop session creates: staged
// picks and export outputs. Every file is owned by a Dir until it is either
// removed or released to the caller, and removal happens at most once.
package scratch

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// Dir is a directory of uniquely named, owned temp files.
type Dir struct {
	fs     afero.Fs
	root   string
	logger *slog.Logger

	mu    sync.Mutex
	owned map[string]struct{}
}

// Remover deletes a file a session no longer needs. Implementations must be
// safe to call more than once for the same path.
type Remover interface {
	Remove(path string) bool
}

// New creates a Dir rooted at root on fs. An empty root creates a fresh
// "mediacrop-" directory under the OS temp dir.
func New(fs afero.Fs, root string, logger *slog.Logger) (*Dir, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if root == "" {
		dir, err := afero.TempDir(fs, "", "mediacrop-")
		if err != nil {
			return nil, fmt.Errorf("create temp dir: %w", err)
		}
		root = dir
	} else if err := fs.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create scratch dir %s: %w", root, err)
	}
	return &Dir{
		fs:     fs,
		root:   root,
		logger: logger.With("component", "scratch"),
		owned:  make(map[string]struct{}),
	}, nil
}

// NewOS is New on the real filesystem.
func NewOS(root string, logger *slog.Logger) (*Dir, error) {
	return New(afero.NewOsFs(), root, logger)
}

// Fs returns the filesystem the Dir writes to.
func (d *Dir) Fs() afero.Fs { return d.fs }

// Root returns the directory path.
func (d *Dir) Root() string { return d.root }

// Create opens a new uniquely named file with the given extension (".mov",
// "mov" or ""). The caller closes it; the Dir owns the path.
func (d *Dir) Create(ext string) (afero.File, error) {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	path := filepath.Join(d.root, uuid.NewString()+ext)
	f, err := d.fs.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create scratch file: %w", err)
	}
	d.mu.Lock()
	d.owned[path] = struct{}{}
	d.mu.Unlock()
	return f, nil
}

// CreateEmpty creates an empty owned file and returns its path.
func (d *Dir) CreateEmpty(ext string) (string, error) {
	f, err := d.Create(ext)
	if err != nil {
		return "", err
	}
	path := f.Name()
	if err := f.Close(); err != nil {
		d.Remove(path)
		return "", fmt.Errorf("close scratch file: %w", err)
	}
	return path, nil
}

// Owns reports whether path is still owned by the Dir.
func (d *Dir) Owns(path string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.owned[path]
	return ok
}

// Remove deletes an owned file. It returns false if the path was not owned
// (already removed or released). Delete errors are logged, not returned.
func (d *Dir) Remove(path string) bool {
	d.mu.Lock()
	_, ok := d.owned[path]
	delete(d.owned, path)
	d.mu.Unlock()
	if !ok {
		return false
	}

	var size int64
	if info, err := d.fs.Stat(path); err == nil {
		size = info.Size()
	}
	if err := d.fs.Remove(path); err != nil && !os.IsNotExist(err) {
		d.logger.Warn("failed to remove temp file", "path", path, "error", err)
		return true
	}
	d.logger.Debug("removed temp file", "path", path, "size", humanize.Bytes(uint64(size)))
	return true
}

// Release hands ownership of path to the caller; the Dir will not delete it.
func (d *Dir) Release(path string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.owned[path]
	delete(d.owned, path)
	return ok
}

// Cleanup removes every file still owned.
func (d *Dir) Cleanup() {
	d.mu.Lock()
	paths := make([]string, 0, len(d.owned))
	for p := range d.owned {
		paths = append(paths, p)
	}
	d.mu.Unlock()

	for _, p := range paths {
		d.Remove(p)
	}
}
