package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// DefaultDebounce is the quiet period after the last change before a re-run.
const DefaultDebounce = 2 * time.Second

// ChangeHandler is invoked after the watched sources changed.
type ChangeHandler func(ctx context.Context) error

// WatchRepo monitors root for changes to analysis inputs and calls onChange
// once per batch of changes whose content fingerprint differs from the last
// run. Handler errors are logged, not returned. Blocks until ctx is
// cancelled and then returns ctx.Err().
func WatchRepo(ctx context.Context, root string, debounce time.Duration, onChange ChangeHandler) error {
	matcher, err := NewIgnoreMatcher(root)
	if err != nil {
		return fmt.Errorf("loading ignore rules: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := addWatchDirs(watcher, root, root, matcher); err != nil {
		return fmt.Errorf("setting up watcher: %w", err)
	}

	entries, err := WalkSources(root)
	if err != nil {
		return fmt.Errorf("walking sources: %w", err)
	}
	lastFingerprint := Fingerprint(entries)

	batchTimer := time.NewTimer(debounce)
	batchTimer.Stop()
	pending := 0

	slog.Debug("watching for changes", "root", root)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if shouldSkipDir(info.Name(), event.Name, root, matcher) {
						continue
					}
					// A directory moved in arrives as a single event for
					// the directory, with its files already in place.
					_ = addWatchDirs(watcher, event.Name, root, matcher)
					pending++
					batchTimer.Reset(debounce)
					continue
				}
			}

			if !shouldWatchFile(event.Name, root, matcher) && !isRemoval(event, root, matcher) {
				continue
			}
			pending++
			batchTimer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch error", "error", err)

		case <-batchTimer.C:
			if pending == 0 {
				continue
			}
			slog.Debug("processing change batch", "events", pending)
			pending = 0

			entries, err := WalkSources(root)
			if err != nil {
				slog.Warn("walking sources", "error", err)
				continue
			}
			fingerprint := Fingerprint(entries)
			if fingerprint == lastFingerprint {
				slog.Debug("sources unchanged")
				continue
			}
			lastFingerprint = fingerprint
			slog.Info("sources changed, re-running analysis", "files", len(entries))

			if err := onChange(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("re-analysis failed", "error", err)
			}
		}
	}
}

// addWatchDirs adds dir and every non-ignored directory below it.
func addWatchDirs(watcher *fsnotify.Watcher, dir, root string, matcher gitignore.Matcher) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && shouldSkipDir(d.Name(), path, root, matcher) {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

// shouldWatchFile checks if a changed path is a non-ignored analysis input.
func shouldWatchFile(path, root string, matcher gitignore.Matcher) bool {
	relPath, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	if matcher != nil && matcher.Match(splitPath(relPath), false) {
		return false
	}
	return isInputFile(filepath.Base(path))
}

// isRemoval reports whether event removes or renames a non-ignored path.
// The path no longer exists, so it may have been a directory of inputs.
func isRemoval(event fsnotify.Event, root string, matcher gitignore.Matcher) bool {
	if !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	relPath, err := filepath.Rel(root, event.Name)
	if err != nil || relPath == "." {
		return false
	}
	if matcher == nil {
		return true
	}
	parts := splitPath(relPath)
	return !matcher.Match(parts, false) && !matcher.Match(parts, true)
}
