package catalog

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/modelstore/internal/parser"
)

// EventCallback is called after a watcher-driven catalog change.
// kind is one of "created", "updated", "deleted".
type EventCallback func(kind string, path string)

const reconcileDelay = 200 * time.Millisecond

// Watch starts an fsnotify watcher on the schema root and re-indexes sources
// until ctx is cancelled. It calls cb (if non-nil) after each successful
// change.
//
// New directories are added to the watch list. Rename events trigger a
// reconciliation pass against the directory listing.
func (l *Loader) Watch(ctx context.Context, root string, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	l.logger.Info("watcher: started", slog.String("root", root))

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(reconcileDelay)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(reconcileDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			l.logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			l.reconcile(cb)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			l.handleEvent(w, root, ev, cb, scheduleReconcile)

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			l.logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func (l *Loader) handleEvent(w *fsnotify.Watcher, root string, ev fsnotify.Event, cb EventCallback, scheduleReconcile func()) {
	absPath := ev.Name

	if ev.Op&fsnotify.Create != 0 {
		if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
			if addErr := addDirsRecursive(w, absPath); addErr != nil {
				l.logger.Warn("watcher: add new dir failed",
					slog.String("path", absPath),
					slog.String("error", addErr.Error()))
			}
			l.indexNewDir(root, absPath, cb)
			return
		}
	}

	name := filepath.Base(absPath)
	if name == "" || name[0] == '.' || !parser.IsSchemaSource(name) {
		return
	}
	rel, relErr := filepath.Rel(root, absPath)
	if relErr != nil {
		return
	}
	rel = filepath.ToSlash(rel)

	switch {
	case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
		names, err := l.indexFromDisk(rel)
		if err != nil {
			l.logger.Warn("watcher: index failed", slog.String("path", rel), slog.String("error", err.Error()))
			return
		}
		kind := "updated"
		if ev.Op&fsnotify.Create != 0 {
			kind = "created"
		}
		l.logger.Debug("watcher: indexed", slog.String("path", rel), slog.String("op", kind), slog.Any("models", names))
		if cb != nil {
			cb(kind, rel)
		}

	case ev.Op&fsnotify.Remove != 0:
		if err := l.RemoveSource(rel); err != nil {
			l.logger.Warn("watcher: delete failed", slog.String("path", rel), slog.String("error", err.Error()))
			return
		}
		l.logger.Debug("watcher: deleted", slog.String("path", rel))
		if cb != nil {
			cb("deleted", rel)
		}

	case ev.Op&fsnotify.Rename != 0:
		// Rename fires on the old path only; the new path arrives as Create.
		if err := l.RemoveSource(rel); err != nil {
			l.logger.Warn("watcher: rename delete failed", slog.String("path", rel), slog.String("error", err.Error()))
		} else if cb != nil {
			cb("deleted", rel)
		}
		scheduleReconcile()
	}
}

// reconcile removes catalogued sources that are gone from disk and indexes
// sources whose checksum changed.
func (l *Loader) reconcile(cb EventCallback) {
	checksums, err := l.db.SourceChecksums()
	if err != nil {
		l.logger.Warn("reconcile: source checksums failed", slog.String("error", err.Error()))
		return
	}
	metas, err := l.src.List("")
	if err != nil {
		l.logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]string, len(metas))
	for _, m := range metas {
		disk[m.Path] = m.Checksum
	}

	for p := range checksums {
		if _, ok := disk[p]; ok {
			continue
		}
		if err := l.RemoveSource(p); err == nil && cb != nil {
			cb("deleted", p)
		}
	}
	for p, cs := range disk {
		if checksums[p] == cs {
			continue
		}
		if _, err := l.indexFromDisk(p); err == nil && cb != nil {
			cb("created", p)
		}
	}
}

// indexNewDir indexes the schema sources found in a newly created directory.
func (l *Loader) indexNewDir(root, dirPath string, cb EventCallback) {
	_ = filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !parser.IsSchemaSource(path) {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if _, err := l.indexFromDisk(rel); err == nil && cb != nil {
			cb("created", rel)
		}
		return nil
	})
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
