package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
)

// Backend defines the filesystem operations used by the scanner and the
// backup executor. Paths are absolute; a single backend serves every source
// root and the target base.
type Backend interface {
	// Walk visits root and everything below it in lexical order. A symlinked
	// root is followed; links below it are not. The walk stops early when ctx
	// is cancelled.
	Walk(ctx context.Context, root string, fn filepath.WalkFunc) error

	// Stat returns file metadata, following symlinks
	Stat(path string) (os.FileInfo, error)

	// Exists checks if a file or directory exists
	Exists(path string) (bool, error)

	// Open opens a file for reading
	Open(path string) (io.ReadCloser, error)

	// MkdirAll creates a directory and all necessary parents
	MkdirAll(path string) error

	// Write atomically replaces path with the content of r and applies the
	// modification time and permission bits of meta when it is non-nil.
	// It returns the number of bytes written.
	Write(path string, r io.Reader, meta os.FileInfo) (int64, error)
}
