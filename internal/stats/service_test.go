package stats

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/starford/moodlog/internal/apperr"
	"github.com/starford/moodlog/internal/calendar"
	"github.com/starford/moodlog/internal/models"
)

// fakeStore filters an in-memory record list the way the real stores do.
type fakeStore struct {
	mu      sync.Mutex
	records []models.Record
	queries []models.RecordQuery
	err     error
	block   bool

	catalog    []int64
	catalogErr error
	names      map[int64]string
}

func (f *fakeStore) FindRecords(ctx context.Context, q models.RecordQuery) ([]models.Record, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	var out []models.Record
	for _, r := range f.records {
		if r.UserID == q.UserID && !r.Date.Before(q.From) && r.Date.Before(q.To) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) ActivityIDsForUser(_ context.Context, _ int64) ([]int64, error) {
	return f.catalog, f.catalogErr
}

func (f *fakeStore) ActivityNames(_ context.Context, ids []int64) (map[int64]string, error) {
	out := make(map[int64]string)
	for _, id := range ids {
		if n, ok := f.names[id]; ok {
			out[id] = n
		}
	}
	return out, nil
}

func userRec(userID int64, at string, moodID *int64, activities ...int64) models.Record {
	r := rec(at, moodID, activities...)
	r.UserID = userID
	return r
}

func fixedClock(at string) func() time.Time {
	ts, err := time.Parse(time.RFC3339, at)
	if err != nil {
		panic(err)
	}
	return func() time.Time { return ts }
}

func zone(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := calendar.LoadZone(name)
	require.NoError(t, err)
	return loc
}

func TestMoodStatistics_LocalMonthBoundary(t *testing.T) {
	store := &fakeStore{records: []models.Record{
		userRec(1, "2024-02-29T18:00:00Z", mood(4)),
		userRec(1, "2024-02-10T05:00:00Z", mood(2)),
	}}
	svc := NewService(store, WithClock(fixedClock("2024-03-05T12:00:00Z")))
	loc := zone(t, "Asia/Ho_Chi_Minh")

	feb, err := svc.MoodStatistics(context.Background(), Request{UserID: 1, Location: loc, Year: 2024, Month: time.February})
	require.NoError(t, err)
	require.Equal(t, 1, feb.Monthly.TotalRecords)
	require.Equal(t, int64(2), *feb.Monthly.MostFrequentMood.MoodID)
	require.Len(t, feb.Monthly.DailyMoodStats, 29)
	require.Equal(t, 2, feb.Monthly.Month)
	require.Equal(t, 2024, feb.Monthly.Year)

	mar, err := svc.MoodStatistics(context.Background(), Request{UserID: 1, Location: loc, Year: 2024, Month: time.March})
	require.NoError(t, err)
	require.Equal(t, 1, mar.Monthly.TotalRecords)
	require.Equal(t, int64(4), *mar.Monthly.MostFrequentMood.MoodID)
	require.Equal(t, "2024-03-01", mar.Monthly.DailyMoodStats[0].Date)
	require.Equal(t, 1, mar.Monthly.DailyMoodStats[0].TotalRecords)
}

func TestMoodStatistics_MonthStartsAtSkippedMidnight(t *testing.T) {
	// Asuncion jumped from 00:00 to 01:00 on 1 October 2023, so 23:30 on
	// 30 September local (03:30Z) still belongs to September.
	store := &fakeStore{records: []models.Record{
		userRec(1, "2023-10-01T03:30:00Z", mood(7)),
	}}
	svc := NewService(store, WithClock(fixedClock("2023-10-20T12:00:00Z")))
	loc := zone(t, "America/Asuncion")

	oct, err := svc.MoodStatistics(context.Background(), Request{UserID: 1, Location: loc, Year: 2023, Month: time.October})
	require.NoError(t, err)
	require.Zero(t, oct.Monthly.TotalRecords)
	require.Empty(t, oct.Monthly.MoodStats)

	sep, err := svc.MoodStatistics(context.Background(), Request{UserID: 1, Location: loc, Year: 2023, Month: time.September})
	require.NoError(t, err)
	require.Equal(t, 1, sep.Monthly.TotalRecords)
	daily := 0
	for _, d := range sep.Monthly.DailyMoodStats {
		daily += d.TotalRecords
	}
	require.Equal(t, sep.Monthly.TotalRecords, daily)
	last := sep.Monthly.DailyMoodStats[len(sep.Monthly.DailyMoodStats)-1]
	require.Equal(t, "2023-09-30", last.Date)
	require.Equal(t, 1, last.TotalRecords)
}

func TestMoodStatistics_HalfOpenWindow(t *testing.T) {
	loc := zone(t, "America/New_York")
	start, end := calendar.MonthWindow(2024, time.March, loc)
	store := &fakeStore{records: []models.Record{
		{UserID: 3, Date: start, MoodID: mood(1)},
		{UserID: 3, Date: end, MoodID: mood(2)},
		{UserID: 3, Date: end.Add(-time.Nanosecond), MoodID: mood(1)},
	}}
	svc := NewService(store, WithClock(fixedClock("2024-05-01T00:00:00Z")))

	got, err := svc.MoodStatistics(context.Background(), Request{UserID: 3, Location: loc, Year: 2024, Month: time.March})
	require.NoError(t, err)
	require.Equal(t, 2, got.Monthly.TotalRecords)
	require.Len(t, got.Monthly.MoodStats, 1)
	require.Equal(t, int64(1), got.Monthly.MoodStats[0].MoodID)

	require.Len(t, store.queries, 1)
	require.True(t, store.queries[0].From.Equal(start))
	require.True(t, store.queries[0].To.Equal(end))
}

func TestMoodStatistics_EmptyPeriod(t *testing.T) {
	svc := NewService(&fakeStore{}, WithClock(fixedClock("2024-06-15T12:00:00Z")))
	got, err := svc.MoodStatistics(context.Background(), Request{UserID: 9, Location: time.UTC})
	require.NoError(t, err)

	require.Equal(t, 6, got.Monthly.Month)
	require.Equal(t, 2024, got.Monthly.Year)
	require.NotNil(t, got.Monthly.MoodStats)
	require.Empty(t, got.Monthly.MoodStats)
	require.Nil(t, got.Monthly.MostFrequentMood.MoodID)
	require.Zero(t, got.Monthly.MostFrequentMood.Count)
	require.Nil(t, got.Weekly.MostFrequentMood.MoodID)
	require.Zero(t, got.Weekly.TotalRecords)

	require.Len(t, got.Monthly.DailyMoodStats, 30)
	for _, d := range got.Monthly.DailyMoodStats {
		require.Empty(t, d.MoodStats)
		require.Zero(t, d.TotalRecords)
	}
}

func TestMoodStatistics_CurrentPeriodFollowsZone(t *testing.T) {
	// 2024-03-31T20:00Z is already April in Ho Chi Minh City.
	svc := NewService(&fakeStore{}, WithClock(fixedClock("2024-03-31T20:00:00Z")))

	got, err := svc.MoodStatistics(context.Background(), Request{UserID: 1, Location: zone(t, "Asia/Ho_Chi_Minh")})
	require.NoError(t, err)
	require.Equal(t, 4, got.Monthly.Month)

	got, err = svc.MoodStatistics(context.Background(), Request{UserID: 1, Location: time.UTC})
	require.NoError(t, err)
	require.Equal(t, 3, got.Monthly.Month)
}

func TestMoodStatistics_WeeklyPartition(t *testing.T) {
	// Wednesday 2024-03-13; the week opened on Sunday 2024-03-10.
	store := &fakeStore{records: []models.Record{
		userRec(1, "2024-03-09T23:59:59Z", mood(1)),
		userRec(1, "2024-03-10T00:00:00Z", mood(2)),
		userRec(1, "2024-03-12T08:00:00Z", mood(2)),
		userRec(1, "2024-03-02T08:00:00Z", mood(1)),
	}}
	svc := NewService(store, WithClock(fixedClock("2024-03-13T09:00:00Z")))

	got, err := svc.MoodStatistics(context.Background(), Request{UserID: 1, Location: time.UTC})
	require.NoError(t, err)
	require.Equal(t, 2, got.Weekly.TotalRecords)
	require.Len(t, got.Weekly.MoodStats, 1)
	require.Equal(t, int64(2), *got.Weekly.MostFrequentMood.MoodID)
	require.Equal(t, 4, got.Monthly.TotalRecords)
}

func TestMoodStatistics_TiedMoods(t *testing.T) {
	var records []models.Record
	for i := 0; i < 3; i++ {
		records = append(records,
			userRec(1, "2024-03-0"+string(rune('1'+i))+"T10:00:00Z", mood(6)),
			userRec(1, "2024-03-0"+string(rune('1'+i))+"T11:00:00Z", mood(3)),
		)
	}
	svc := NewService(&fakeStore{records: records}, WithClock(fixedClock("2024-03-20T00:00:00Z")))
	got, err := svc.MoodStatistics(context.Background(), Request{UserID: 1, Location: time.UTC})
	require.NoError(t, err)
	require.Len(t, got.Monthly.MoodStats, 2)
	require.Equal(t, int64(6), got.Monthly.MoodStats[0].MoodID)
	require.Equal(t, int64(3), got.Monthly.MoodStats[1].MoodID)
	require.InDelta(t, 50, got.Monthly.MoodStats[0].Percentage, 1e-9)
}

func TestMoodStatistics_StoreFailure(t *testing.T) {
	boom := errors.New("connection refused")
	svc := NewService(&fakeStore{err: boom})
	_, err := svc.MoodStatistics(context.Background(), Request{UserID: 1, Location: time.UTC})
	require.Error(t, err)

	var se *apperr.StoreError
	require.True(t, errors.As(err, &se))
	require.ErrorIs(t, err, boom)
	require.False(t, se.Timeout())
	require.False(t, apperr.IsClientError(err))
}

func TestMoodStatistics_Timeout(t *testing.T) {
	svc := NewService(&fakeStore{block: true}, WithQueryTimeout(20*time.Millisecond))
	_, err := svc.MoodStatistics(context.Background(), Request{UserID: 1, Location: time.UTC})

	var se *apperr.StoreError
	require.True(t, errors.As(err, &se))
	require.True(t, se.Timeout())
}

func TestMoodStatistics_MissingLocation(t *testing.T) {
	svc := NewService(&fakeStore{})
	_, err := svc.MoodStatistics(context.Background(), Request{UserID: 1})
	require.True(t, apperr.IsClientError(err))
}

func TestActivityStatistics(t *testing.T) {
	store := &fakeStore{
		records: []models.Record{
			userRec(5, "2024-02-01T10:00:00Z", mood(1), 2, 3),
			userRec(5, "2024-02-01T12:00:00Z", mood(1), 2),
			userRec(5, "2024-02-29T12:00:00Z", nil, 3),
			userRec(6, "2024-02-02T12:00:00Z", nil, 9),
		},
		catalog: []int64{3, 11},
		names:   map[int64]string{2: "Running"},
	}
	svc := NewService(store, WithCatalog(store), WithClock(fixedClock("2024-03-01T00:00:00Z")))

	got, err := svc.ActivityStatistics(context.Background(), Request{UserID: 5, Location: time.UTC, Year: 2024, Month: time.February})
	require.NoError(t, err)
	m := got.Monthly
	require.Equal(t, 2, m.Month)
	require.Equal(t, 2024, m.Year)
	require.Equal(t, 3, m.TotalRecords)
	require.Len(t, m.Dates, 29)
	require.Equal(t, "2024-02-01", m.Dates[0])
	require.Equal(t, []int64{2, 3, 11}, m.ActivityIDs)

	for _, id := range m.ActivityIDs {
		require.Len(t, m.ActivityData[id], len(m.Dates))
	}
	require.Equal(t, 2, m.ActivityData[2][0])
	require.Equal(t, 1, m.ActivityData[3][0])
	require.Equal(t, 1, m.ActivityData[3][28])
	require.Equal(t, make([]int, 29), m.ActivityData[11])

	require.Equal(t, "Running", m.ActivityNames[2])
	require.Equal(t, "Activity 3", m.ActivityNames[3])
	require.Equal(t, "Activity 11", m.ActivityNames[11])

	require.True(t, store.queries[0].IncludeActivities)
}

func TestActivityStatistics_WithoutCatalog(t *testing.T) {
	store := &fakeStore{records: []models.Record{userRec(1, "2024-07-04T10:00:00Z", nil, 4)}}
	svc := NewService(store, WithClock(fixedClock("2024-07-10T00:00:00Z")))

	got, err := svc.ActivityStatistics(context.Background(), Request{UserID: 1, Location: time.UTC})
	require.NoError(t, err)
	require.Equal(t, []int64{4}, got.Monthly.ActivityIDs)
	require.Equal(t, "Activity 4", got.Monthly.ActivityNames[4])
	require.Len(t, got.Monthly.Dates, 31)
}

func TestActivityStatistics_CatalogFailure(t *testing.T) {
	store := &fakeStore{catalogErr: errors.New("catalog offline")}
	svc := NewService(store, WithCatalog(store))

	report, err := svc.ActivityStatistics(context.Background(), Request{UserID: 1, Location: time.UTC})
	require.Nil(t, report)
	var se *apperr.StoreError
	require.True(t, errors.As(err, &se))
}
