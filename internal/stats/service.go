// Package stats builds timezone-aware mood and activity reports from journal records.
package stats

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/moodlog/internal/apperr"
	"github.com/starford/moodlog/internal/calendar"
	"github.com/starford/moodlog/internal/models"
	"github.com/starford/moodlog/internal/observability"
)

// WeekStart is the first day of the weekly window.
const WeekStart = time.Sunday

// DefaultQueryTimeout bounds the store read of one report.
const DefaultQueryTimeout = 5 * time.Second

// RecordStore is the read side of the record repository.
type RecordStore interface {
	FindRecords(ctx context.Context, q models.RecordQuery) ([]models.Record, error)
}

// ActivityCatalog lists the activities a user has ever tagged and their names.
type ActivityCatalog interface {
	ActivityIDsForUser(ctx context.Context, userID int64) ([]int64, error)
	ActivityNames(ctx context.Context, ids []int64) (map[int64]string, error)
}

// Service computes statistics reports. It holds no per-request state and is
// safe for concurrent use.
type Service struct {
	records RecordStore
	catalog ActivityCatalog
	now     func() time.Time
	timeout time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithCatalog sets the catalog used to zero-fill and name activities.
func WithCatalog(c ActivityCatalog) Option {
	return func(s *Service) { s.catalog = c }
}

// WithClock overrides the source of "now".
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithQueryTimeout bounds each store read. Non-positive values keep the default.
func WithQueryTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewService creates a statistics service reading from records.
func NewService(records RecordStore, opts ...Option) *Service {
	s := &Service{
		records: records,
		now:     time.Now,
		timeout: DefaultQueryTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MoodReport is the response of the mood statistics operation.
type MoodReport struct {
	Weekly  WeeklyMood  `json:"weekly"`
	Monthly MonthlyMood `json:"monthly"`
}

// WeeklyMood summarises the current week.
type WeeklyMood struct {
	MoodStats        []MoodStatEntry  `json:"moodStats"`
	MostFrequentMood MostFrequentMood `json:"mostFrequentMood"`
	TotalRecords     int              `json:"totalRecords"`
}

// MonthlyMood summarises the target month.
type MonthlyMood struct {
	MoodStats        []MoodStatEntry  `json:"moodStats"`
	DailyMoodStats   []DailyMoodStat  `json:"dailyMoodStats"`
	MostFrequentMood MostFrequentMood `json:"mostFrequentMood"`
	TotalRecords     int              `json:"totalRecords"`
	Month            int              `json:"month"`
	Year             int              `json:"year"`
}

// ActivityReport is the response of the activity statistics operation.
type ActivityReport struct {
	Monthly MonthlyActivity `json:"monthly"`
}

// MonthlyActivity holds per-day activity counts aligned to Dates.
type MonthlyActivity struct {
	ActivityData  map[int64][]int  `json:"activityData"`
	ActivityIDs   []int64          `json:"activityIds"`
	ActivityNames map[int64]string `json:"activityNames"`
	Dates         []string         `json:"dates"`
	Month         int              `json:"month"`
	Year          int              `json:"year"`
	TotalRecords  int              `json:"totalRecords"`
}

// period is a resolved local month plus its UTC boundaries.
type period struct {
	loc       *time.Location
	year      int
	month     time.Month
	start     time.Time
	end       time.Time
	weekStart time.Time
}

func (s *Service) resolve(req Request) (period, error) {
	if req.Location == nil {
		return period{}, &apperr.ConfigurationError{Setting: "timezone", Value: "", Err: errors.New("no location resolved")}
	}
	now := s.now()
	local := calendar.ToLocal(now, req.Location)

	p := period{loc: req.Location, year: req.Year, month: req.Month}
	if p.year == 0 {
		p.year = local.Year
	}
	if p.month == 0 {
		p.month = local.Month
	}
	p.start, p.end = calendar.MonthWindow(p.year, p.month, p.loc)
	p.weekStart = calendar.StartOfWeek(now, p.loc, WeekStart)
	return p, nil
}

func (s *Service) fetch(ctx context.Context, q models.RecordQuery) ([]models.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	recs, err := s.records.FindRecords(ctx, q)
	if err != nil {
		return nil, &apperr.StoreError{Op: "find records", Err: err}
	}
	return recs, nil
}

// MoodStatistics builds the weekly and monthly mood report of req.
func (s *Service) MoodStatistics(ctx context.Context, req Request) (report *MoodReport, err error) {
	defer observe("mood", time.Now(), &err)

	p, err := s.resolve(req)
	if err != nil {
		return nil, err
	}
	monthly, err := s.fetch(ctx, models.RecordQuery{UserID: req.UserID, From: p.start, To: p.end})
	if err != nil {
		return nil, err
	}
	weekly := since(monthly, p.weekStart)

	weeklyStats := AggregateMood(weekly)
	monthlyStats := AggregateMood(monthly)
	grid := calendar.DaysOfMonth(p.year, p.month, p.loc)

	return &MoodReport{
		Weekly: WeeklyMood{
			MoodStats:        weeklyStats,
			MostFrequentMood: MostFrequent(weeklyStats),
			TotalRecords:     len(weekly),
		},
		Monthly: MonthlyMood{
			MoodStats:        monthlyStats,
			DailyMoodStats:   AggregateDailyMood(monthly, grid, p.loc),
			MostFrequentMood: MostFrequent(monthlyStats),
			TotalRecords:     len(monthly),
			Month:            int(p.month),
			Year:             p.year,
		},
	}, nil
}

// ActivityStatistics builds the monthly activity report of req. The record
// read and the catalog read run concurrently; either failing fails the report.
func (s *Service) ActivityStatistics(ctx context.Context, req Request) (report *ActivityReport, err error) {
	defer observe("activity", time.Now(), &err)

	p, err := s.resolve(req)
	if err != nil {
		return nil, err
	}

	var (
		records    []models.Record
		catalogIDs []int64
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		records, err = s.fetch(gCtx, models.RecordQuery{UserID: req.UserID, From: p.start, To: p.end, IncludeActivities: true})
		return err
	})
	if s.catalog != nil {
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(gCtx, s.timeout)
			defer cancel()
			ids, err := s.catalog.ActivityIDsForUser(ctx, req.UserID)
			if err != nil {
				return &apperr.StoreError{Op: "list user activities", Err: err}
			}
			catalogIDs = ids
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	grid := calendar.DaysOfMonth(p.year, p.month, p.loc)
	data := AggregateActivities(records, grid, p.loc)
	ZeroFill(data, catalogIDs, grid.Len())

	ids := make([]int64, 0, len(data))
	for id := range data {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	names, err := s.activityNames(ctx, ids)
	if err != nil {
		return nil, err
	}

	return &ActivityReport{
		Monthly: MonthlyActivity{
			ActivityData:  data,
			ActivityIDs:   ids,
			ActivityNames: names,
			Dates:         grid.Days(),
			Month:         int(p.month),
			Year:          p.year,
			TotalRecords:  len(records),
		},
	}, nil
}

func (s *Service) activityNames(ctx context.Context, ids []int64) (map[int64]string, error) {
	names := make(map[int64]string, len(ids))
	if s.catalog != nil && len(ids) > 0 {
		ctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		known, err := s.catalog.ActivityNames(ctx, ids)
		if err != nil {
			return nil, &apperr.StoreError{Op: "activity names", Err: err}
		}
		for id, name := range known {
			names[id] = name
		}
	}
	for _, id := range ids {
		if names[id] == "" {
			names[id] = fmt.Sprintf("Activity %d", id)
		}
	}
	return names, nil
}

// since returns the records dated at or after from, keeping their order.
func since(records []models.Record, from time.Time) []models.Record {
	out := make([]models.Record, 0, len(records))
	for _, r := range records {
		if !r.Date.Before(from) {
			out = append(out, r)
		}
	}
	return out
}

func observe(kind string, started time.Time, errp *error) {
	outcome := observability.OutcomeOK
	switch {
	case *errp == nil:
	case apperr.IsClientError(*errp):
		outcome = observability.OutcomeClientError
	default:
		outcome = observability.OutcomeStoreError
	}
	observability.ObserveStatistics(kind, outcome, time.Since(started))
}
