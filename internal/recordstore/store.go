package recordstore

import (
	"context"

	"github.com/starford/moodlog/internal/models"
)

// Store defines the journal persistence operations.
// Consumers should depend on this interface rather than the concrete *DB type
// so the SQLite and Postgres backends stay interchangeable.
type Store interface {
	CreateRecord(ctx context.Context, r *models.Record) error
	GetRecord(ctx context.Context, id int64) (*models.Record, error)
	ListRecords(ctx context.Context, userID int64) ([]models.Record, error)
	UpdateRecord(ctx context.Context, id int64, p models.RecordPatch) (*models.Record, error)
	DeleteRecord(ctx context.Context, id int64) ([]models.File, error)
	AddActivities(ctx context.Context, recordID int64, activityIDs []int64) ([]models.ActivityTag, error)
	AddFile(ctx context.Context, f *models.File) error

	FindRecords(ctx context.Context, q models.RecordQuery) ([]models.Record, error)
	ActivityIDsForUser(ctx context.Context, userID int64) ([]int64, error)
	ActivityNames(ctx context.Context, ids []int64) (map[int64]string, error)
	UpsertActivity(ctx context.Context, a models.Activity) error
	ListActivities(ctx context.Context) ([]models.Activity, error)

	Search(ctx context.Context, userID int64, query string, limit int) ([]models.SearchHit, error)

	FileKeys(ctx context.Context) (map[string]struct{}, error)
	DeleteFilesByKey(ctx context.Context, key string) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}

// Verify *DB satisfies Store at compile time.
var _ Store = (*DB)(nil)
