package recordstore

import (
	"context"
	"log/slog"

	"github.com/starford/moodlog/internal/storage"
)

// SyncFiles brings file rows in line with the attachments directory: rows
// whose blob no longer exists on disk are deleted. It returns the removed keys.
func SyncFiles(ctx context.Context, db Store, blobs storage.Provider, logger *slog.Logger) ([]string, error) {
	metas, err := blobs.List()
	if err != nil {
		return nil, err
	}
	keys, err := db.FileKeys(ctx)
	if err != nil {
		return nil, err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Key] = struct{}{}
	}

	var removed []string
	for k := range keys {
		if _, ok := disk[k]; ok {
			continue
		}
		n, err := db.DeleteFilesByKey(ctx, k)
		if err != nil {
			logger.Warn("sync: delete failed", slog.String("key", k), slog.String("error", err.Error()))
			continue
		}
		logger.Debug("sync: removed stale", slog.String("key", k), slog.Int64("rows", n))
		removed = append(removed, k)
	}
	return removed, nil
}
