// Package watch reports changes below a set of source roots.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"

	"github.com/sdejongh/mirrorsync/pkg/exclude"
	"github.com/sdejongh/mirrorsync/pkg/logging"
)

// Watcher coalesces filesystem events under the source roots into a single
// "something changed" signal
type Watcher struct {
	fs      afero.Fs
	watcher *fsnotify.Watcher
	roots   []string
	matcher *exclude.Matcher
	logger  logging.Logger
	changes chan struct{}
}

// New watches every directory below roots. fsnotify is not recursive, so
// directories created later are added as they appear. Paths rejected by
// matcher are neither watched nor reported.
func New(roots []string, matcher *exclude.Matcher, logger logging.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	w := &Watcher{
		fs:      afero.NewOsFs(),
		watcher: fw,
		roots:   roots,
		matcher: matcher,
		logger:  logging.OrNull(logger),
		changes: make(chan struct{}, 1),
	}

	for _, root := range roots {
		if err := w.addTree(root, root); err != nil {
			// Release the handles of the roots already added
			if cerr := fw.Close(); cerr != nil {
				w.logger.Warn(context.Background(), "Failed to close file watcher", logging.Fields{"error": cerr.Error()})
			}
			return nil, fmt.Errorf("failed to watch %q: %w", root, err)
		}
	}

	go w.loop()
	return w, nil
}

// Changes fires at least once after any number of changes
func (w *Watcher) Changes() <-chan struct{} {
	return w.changes
}

// Close stops watching
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// addTree adds dir and every directory below it
func (w *Watcher) addTree(root, dir string) error {
	return afero.Walk(w.fs, dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			// Unreadable subdirectories are skipped; the scan reports them
			if p == dir {
				return err
			}
			return filepath.SkipDir
		}
		if !info.IsDir() {
			return nil
		}
		if p != root && w.matcher.Excluded(p, root) {
			return filepath.SkipDir
		}
		return w.watcher.Add(p)
	})
}

func (w *Watcher) loop() {
	ctx := context.Background()
	errs := w.watcher.Errors
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				close(w.changes)
				return
			}
			w.handle(ctx, ev)

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			w.logger.Warn(ctx, "File watcher error", logging.Fields{"error": err.Error()})
		}
	}
}

func (w *Watcher) handle(ctx context.Context, ev fsnotify.Event) {
	root := w.rootOf(ev.Name)
	if root == "" || w.matcher.Excluded(ev.Name, root) {
		return
	}

	if ev.Op.Has(fsnotify.Create) {
		if info, err := w.fs.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addTree(root, ev.Name); err != nil {
				w.logger.Warn(ctx, "Failed to watch new directory", logging.Fields{"path": ev.Name, "error": err.Error()})
			}
		}
	}

	w.logger.Debug(ctx, "Change detected", logging.Fields{"path": ev.Name, "op": ev.Op.String()})
	select {
	case w.changes <- struct{}{}:
	default:
	}
}

// rootOf returns the watched root containing p
func (w *Watcher) rootOf(p string) string {
	for _, root := range w.roots {
		if p == root || strings.HasPrefix(p, root+string(filepath.Separator)) {
			return root
		}
	}
	return ""
}

// Debounce forwards one signal once quiet has passed without a new signal
// on in. The returned channel is closed when in is closed or ctx is done.
func Debounce(ctx context.Context, in <-chan struct{}, quiet time.Duration) <-chan struct{} {
	out := make(chan struct{}, 1)
	go func() {
		defer close(out)

		var fire <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-in:
				if !ok {
					return
				}
				fire = time.After(quiet)
			case <-fire:
				fire = nil
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out
}
