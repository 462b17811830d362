//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/starford/moodlog/internal/apperr"
	"github.com/starford/moodlog/internal/models"
)

func newRepository(t *testing.T) *Repository {
	t.Helper()
	ctx := context.Background()

	pg, err := postgrescontainer.Run(ctx, "postgres:16-alpine",
		postgrescontainer.WithDatabase("moodlog"),
		postgrescontainer.WithUsername("moodlog"),
		postgrescontainer.WithPassword("moodlog"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, waitForDatabase(ctx, connStr))

	repo, err := Connect(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	// A second run must be a no-op.
	require.NoError(t, repo.Migrate(ctx))
	return repo
}

func TestRepository_RecordLifecycle(t *testing.T) {
	repo := newRepository(t)
	ctx := context.Background()

	mood := int64(2)
	rec := models.Record{
		UserID:      10,
		MoodID:      &mood,
		Date:        time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC),
		Title:       "Morning",
		Content:     "Quiet walk by the river",
		ActivityIDs: []int64{5, 1, 5},
		Files:       []models.File{{Name: "river.jpg", Key: "river.jpg", Size: 3}},
	}
	require.NoError(t, repo.CreateRecord(ctx, &rec))
	require.NotZero(t, rec.ID)
	require.Equal(t, []int64{5, 1}, rec.ActivityIDs)

	got, err := repo.GetRecord(ctx, rec.ID)
	require.NoError(t, err)
	require.True(t, got.Date.Equal(rec.Date))
	require.Equal(t, []int64{5, 1}, got.ActivityIDs)
	require.Len(t, got.Files, 1)

	added, err := repo.AddActivities(ctx, rec.ID, []int64{1, 7})
	require.NoError(t, err)
	require.Len(t, added, 1)
	require.Equal(t, int64(7), added[0].ActivityID)

	title := "Renamed"
	updated, err := repo.UpdateRecord(ctx, rec.ID, models.RecordPatch{Title: &title, ActivityIDs: []int64{3}})
	require.NoError(t, err)
	require.Equal(t, "Renamed", updated.Title)
	require.Equal(t, []int64{3}, updated.ActivityIDs)

	hits, err := repo.Search(ctx, 10, "river", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	files, err := repo.DeleteRecord(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, files, 1)

	_, err = repo.GetRecord(ctx, rec.ID)
	require.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestRepository_FindRecordsAndCatalog(t *testing.T) {
	repo := newRepository(t)
	ctx := context.Background()

	from := time.Date(2024, 2, 29, 17, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 31, 17, 0, 0, 0, time.UTC)
	for _, r := range []models.Record{
		{UserID: 1, Date: from, ActivityIDs: []int64{4}},
		{UserID: 1, Date: to},
		{UserID: 1, Date: to.Add(-time.Second), ActivityIDs: []int64{2, 4}},
		{UserID: 2, Date: from, ActivityIDs: []int64{9}},
	} {
		r := r
		require.NoError(t, repo.CreateRecord(ctx, &r))
	}

	recs, err := repo.FindRecords(ctx, models.RecordQuery{UserID: 1, From: from, To: to, IncludeActivities: true})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.True(t, recs[0].Date.After(recs[1].Date))
	require.Equal(t, []int64{2, 4}, recs[0].ActivityIDs)

	ids, err := repo.ActivityIDsForUser(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, []int64{2, 4}, ids)

	require.NoError(t, repo.UpsertActivity(ctx, models.Activity{ID: 4, Name: "Yoga"}))
	names, err := repo.ActivityNames(ctx, ids)
	require.NoError(t, err)
	require.Equal(t, map[int64]string{4: "Yoga"}, names)
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}
