package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/sdejongh/mirrorsync/pkg/logging"
)

// tempSuffix marks partially written files; they are renamed into place once
// the copy succeeds.
const tempSuffix = ".mirrorsync-tmp"

// Local is a filesystem backend on top of an afero.Fs
type Local struct {
	fs     afero.Fs
	logger logging.Logger
}

// NewLocal creates a backend on the real operating system filesystem
func NewLocal() *Local {
	return NewLocalFs(afero.NewOsFs())
}

// NewLocalFs creates a backend on an arbitrary afero filesystem
func NewLocalFs(fs afero.Fs) *Local {
	return &Local{fs: fs, logger: logging.OrNull(nil)}
}

// WithLogger sets the logger that receives non-fatal metadata failures
func (l *Local) WithLogger(logger logging.Logger) *Local {
	l.logger = logging.OrNull(logger)
	return l
}

// Walk visits root recursively. When root itself is a symlink its target is
// walked, but paths are still reported below root.
func (l *Local) Walk(ctx context.Context, root string, fn filepath.WalkFunc) error {
	resolved := l.resolveRoot(root)
	return afero.Walk(l.fs, resolved, func(p string, info os.FileInfo, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if resolved != root {
			if rel, relErr := filepath.Rel(resolved, p); relErr == nil {
				p = filepath.Join(root, rel)
			}
		}
		return fn(p, info, err)
	})
}

// maxLinkHops bounds symlink chains, like the kernel's ELOOP limit
const maxLinkHops = 40

// resolveRoot follows symlinks on root itself. Filesystems without link
// support return root unchanged.
func (l *Local) resolveRoot(root string) string {
	lstater, ok := l.fs.(afero.Lstater)
	if !ok {
		return root
	}
	reader, ok := l.fs.(afero.LinkReader)
	if !ok {
		return root
	}

	for i := 0; i < maxLinkHops; i++ {
		info, _, err := lstater.LstatIfPossible(root)
		if err != nil || info.Mode()&os.ModeSymlink == 0 {
			return root
		}
		target, err := reader.ReadlinkIfPossible(root)
		if err != nil {
			return root
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(root), target)
		}
		root = target
	}
	return root
}

// Stat returns file metadata
func (l *Local) Stat(path string) (os.FileInfo, error) {
	info, err := l.fs.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	return info, nil
}

// Exists checks if a file or directory exists
func (l *Local) Exists(path string) (bool, error) {
	ok, err := afero.Exists(l.fs, path)
	if err != nil {
		return false, fmt.Errorf("failed to check existence: %w", err)
	}
	return ok, nil
}

// Open opens a file for reading
func (l *Local) Open(path string) (io.ReadCloser, error) {
	file, err := l.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

// MkdirAll creates a directory and all necessary parents
func (l *Local) MkdirAll(path string) error {
	if err := l.fs.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return nil
}

// Write copies r into a temporary sibling of path and renames it into place
func (l *Local) Write(path string, r io.Reader, meta os.FileInfo) (int64, error) {
	tmp := path + tempSuffix

	file, err := l.fs.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}

	written, copyErr := io.Copy(file, r)
	syncErr := file.Sync()
	closeErr := file.Close()

	for _, err := range []error{copyErr, syncErr, closeErr} {
		if err != nil {
			_ = l.fs.Remove(tmp)
			return written, fmt.Errorf("failed to write file: %w", err)
		}
	}

	if err := l.fs.Rename(tmp, path); err != nil {
		_ = l.fs.Remove(tmp)
		return written, fmt.Errorf("failed to rename into place: %w", err)
	}

	if meta != nil {
		if mtime := meta.ModTime(); !mtime.IsZero() {
			if err := l.fs.Chtimes(path, mtime, mtime); err != nil {
				return written, fmt.Errorf("failed to set modification time: %w", err)
			}
		}
		// FAT and some network mounts refuse chmod; the content is in place
		if perm := meta.Mode().Perm(); perm != 0 {
			if err := l.fs.Chmod(path, perm); err != nil {
				l.logger.Warn(context.Background(), "Failed to set permissions", logging.Fields{
					"path":  path,
					"error": err.Error(),
				})
			}
		}
	}

	return written, nil
}
