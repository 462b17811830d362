package recordstore

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/moodlog/internal/models"
	"github.com/starford/moodlog/internal/storage"
)

// reconcileDelay debounces the reconciliation pass after renames.
const reconcileDelay = 200 * time.Millisecond

// EventCallback is called after a watcher-driven change to file rows.
// kind is models.EventFileDeleted.
type EventCallback func(kind string, key string)

// Watch starts an fsnotify watcher on the attachments directory and removes
// file rows whose blob disappears, until ctx is cancelled. It calls cb (if
// non-nil) for every key whose rows were removed.
//
// Rename events fire on the old name only, so they also schedule a short
// reconciliation pass over the whole directory.
func Watch(ctx context.Context, db Store, blobs storage.Provider, root string, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

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
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			removed, syncErr := SyncFiles(ctx, db, blobs, logger)
			if syncErr != nil {
				logger.Warn("reconcile: sync failed", slog.String("error", syncErr.Error()))
				continue
			}
			for _, k := range removed {
				if cb != nil {
					cb(models.EventFileDeleted, k)
				}
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			key := filepath.Base(ev.Name)
			if strings.HasPrefix(key, ".") {
				continue
			}

			switch {
			case ev.Op&fsnotify.Create != 0:
				logger.Debug("watcher: blob added", slog.String("key", key))

			case ev.Op&fsnotify.Remove != 0:
				forget(ctx, db, key, logger, cb)

			case ev.Op&fsnotify.Rename != 0:
				forget(ctx, db, key, logger, cb)
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// forget drops the file rows of a blob that left the directory.
func forget(ctx context.Context, db Store, key string, logger *slog.Logger, cb EventCallback) {
	n, err := db.DeleteFilesByKey(ctx, key)
	if err != nil {
		logger.Warn("watcher: delete failed", slog.String("key", key), slog.String("error", err.Error()))
		return
	}
	if n == 0 {
		return
	}
	logger.Debug("watcher: file rows removed", slog.String("key", key), slog.Int64("rows", n))
	if cb != nil {
		cb(models.EventFileDeleted, key)
	}
}
