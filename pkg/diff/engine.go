// Package diff walks source trees and classifies every file against its
// mirrored copy under the target base.
package diff

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sdejongh/mirrorsync/pkg/compare"
	"github.com/sdejongh/mirrorsync/pkg/exclude"
	"github.com/sdejongh/mirrorsync/pkg/logging"
	"github.com/sdejongh/mirrorsync/pkg/models"
	"github.com/sdejongh/mirrorsync/pkg/storage"
)

// Reason strings used for ERROR entries
const (
	ReasonPermissionDenied = "permission denied"
	reasonSourceNotFound   = "source not found"
)

// ProgressFunc receives the path of each file as soon as it is classified
type ProgressFunc func(path string)

// Engine classifies source files against the target mirror
type Engine struct {
	backend    storage.Backend
	comparator compare.Comparator
	matcher    *exclude.Matcher
	logger     logging.Logger
}

// NewEngine creates a diff engine. matcher and logger may be nil.
func NewEngine(backend storage.Backend, comparator compare.Comparator, matcher *exclude.Matcher, logger logging.Logger) *Engine {
	return &Engine{
		backend:    backend,
		comparator: comparator,
		matcher:    matcher,
		logger:     logging.OrNull(logger),
	}
}

// Scan walks every source root and returns one entry per regular file in
// visiting order. Single-file failures become ERROR entries and never abort
// the scan. The only error returned is ctx.Err(), together with the entries
// collected so far.
func (e *Engine) Scan(ctx context.Context, sources []string, targetBase string, progress ProgressFunc) ([]models.FileEntry, error) {
	var entries []models.FileEntry

	e.logger.Info(ctx, "Starting scan", logging.Fields{
		"sources":    sources,
		"target":     targetBase,
		"comparison": e.comparator.Name(),
		"exclude":    e.matcher.Patterns(),
	})

	for _, src := range sources {
		root := filepath.Clean(src)
		rootName := filepath.Base(root)

		exists, err := e.backend.Exists(root)
		if err != nil || !exists {
			e.logger.Warn(ctx, "Source not found", logging.Fields{"source": src})
			entries = append(entries, models.FileEntry{
				SourcePath:   root,
				TargetPath:   targetBase,
				RelativePath: rootName,
				Action:       models.ActionError,
				Reason:       reasonSourceNotFound + ": " + src,
			})
			continue
		}

		walkErr := e.backend.Walk(ctx, root, func(p string, info os.FileInfo, err error) error {
			if err != nil {
				// Unreadable directory or vanished file: report and keep going
				entries = append(entries, e.errorEntry(ctx, root, rootName, p, targetBase, err))
				return nil
			}
			if !info.Mode().IsRegular() {
				return nil
			}
			if e.matcher.Excluded(p, root) {
				return nil
			}

			entries = append(entries, e.classify(ctx, root, rootName, p, targetBase))
			if progress != nil {
				progress(p)
			}
			return nil
		})

		if walkErr != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				e.logger.Warn(ctx, "Scan interrupted", logging.Fields{"entries": len(entries)})
				return entries, ctxErr
			}
			entries = append(entries, e.errorEntry(ctx, root, rootName, root, targetBase, walkErr))
		}
	}

	counts := models.CountByAction(entries)
	e.logger.Info(ctx, "Scan complete", logging.Fields{
		"entries": len(entries),
		"new":     counts[models.ActionNew],
		"updated": counts[models.ActionUpdated],
		"skipped": counts[models.ActionSkipped],
		"errors":  counts[models.ActionError],
	})

	return entries, nil
}

// classify stats the file, computes its mirror location and compares it
func (e *Engine) classify(ctx context.Context, root, rootName, p, targetBase string) models.FileEntry {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return e.errorEntry(ctx, root, rootName, p, targetBase, err)
	}
	relPath := filepath.Join(rootName, rel)
	target := filepath.Join(targetBase, relPath)

	info, err := e.backend.Stat(p)
	if err != nil {
		return e.errorEntry(ctx, root, rootName, p, targetBase, err)
	}
	if err := e.checkReadable(p); err != nil {
		return e.errorEntry(ctx, root, rootName, p, targetBase, err)
	}

	action, err := e.comparator.Compare(ctx, p, target, info)
	if err != nil {
		return e.errorEntry(ctx, root, rootName, p, targetBase, err)
	}

	return models.FileEntry{
		SourcePath:    p,
		TargetPath:    target,
		RelativePath:  relPath,
		Action:        action,
		SourceSize:    info.Size(),
		SourceModTime: info.ModTime(),
	}
}

// checkReadable opens and closes the file so unreadable sources are reported
// by the scan instead of failing later during the copy
func (e *Engine) checkReadable(p string) error {
	file, err := e.backend.Open(p)
	if err != nil {
		return err
	}
	return file.Close()
}

// errorEntry builds an ERROR entry. Its relative path keeps the root prefix
// and its target is the target base, since no mirror location is known.
func (e *Engine) errorEntry(ctx context.Context, root, rootName, p, targetBase string, err error) models.FileEntry {
	relPath := filepath.Join(rootName, filepath.Base(p))
	if rel, relErr := filepath.Rel(root, p); relErr == nil {
		relPath = filepath.Join(rootName, rel)
	}

	reason := err.Error()
	if errors.Is(err, fs.ErrPermission) {
		reason = ReasonPermissionDenied
	}

	e.logger.Warn(ctx, "Cannot classify file", logging.Fields{
		"path":   p,
		"reason": reason,
	})

	return models.FileEntry{
		SourcePath:   p,
		TargetPath:   targetBase,
		RelativePath: relPath,
		Action:       models.ActionError,
		Reason:       reason,
	}
}
