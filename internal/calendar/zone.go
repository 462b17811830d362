// Package calendar converts between stored UTC instants and a user's local
// calendar, and builds the per-month day grids statistics are aligned to.
package calendar

import (
	"errors"
	"time"
	_ "time/tzdata" // zone database for hosts without /usr/share/zoneinfo

	"github.com/starford/moodlog/internal/apperr"
)

// DayLayout is the key format of a local calendar day.
const DayLayout = "2006-01-02"

// WallClock is an instant as observed on a clock in some timezone.
type WallClock struct {
	Year    int
	Month   time.Month
	Day     int
	Hour    int
	Minute  int
	Second  int
	Weekday time.Weekday
}

// LoadZone resolves an IANA timezone name. An empty name means UTC.
// "Local" is rejected since it depends on the server.
func LoadZone(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	if name == "Local" {
		return nil, &apperr.ConfigurationError{Setting: "timezone", Value: name, Err: errors.New("server-local zone is not allowed")}
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, &apperr.ConfigurationError{Setting: "timezone", Value: name, Err: err}
	}
	return loc, nil
}

// ToLocal returns the wall-clock components of instant in loc.
func ToLocal(instant time.Time, loc *time.Location) WallClock {
	t := instant.In(loc)
	return WallClock{
		Year:    t.Year(),
		Month:   t.Month(),
		Day:     t.Day(),
		Hour:    t.Hour(),
		Minute:  t.Minute(),
		Second:  t.Second(),
		Weekday: t.Weekday(),
	}
}

// LocalToUTC returns the UTC instant shown as the given wall clock in loc.
// The offset in effect on that date is used, so DST transitions are honoured.
// Out-of-range values normalise the way time.Date does (month 13 is January
// of the following year).
func LocalToUTC(year int, month time.Month, day, hour, minute, second int, loc *time.Location) time.Time {
	return time.Date(year, month, day, hour, minute, second, 0, loc).UTC()
}

// FormatLocalDate returns the YYYY-MM-DD key of the local day containing instant.
func FormatLocalDate(instant time.Time, loc *time.Location) string {
	return instant.In(loc).Format(DayLayout)
}

// StartOfDay returns, in UTC, the first instant of the local day (year,
// month, day) in loc. When a DST change skips local midnight, the day starts
// at the transition instead of an hour early on the previous day.
func StartOfDay(year int, month time.Month, day int, loc *time.Location) time.Time {
	t := time.Date(year, month, day, 0, 0, 0, 0, loc)
	want := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	y, m, d := t.Date()
	if time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Before(want) {
		if _, end := t.ZoneBounds(); !end.IsZero() {
			t = end
		}
	}
	return t.UTC()
}

// StartOfWeek returns, in UTC, the local midnight opening the week that
// contains instant. Weeks begin on weekStart.
func StartOfWeek(instant time.Time, loc *time.Location, weekStart time.Weekday) time.Time {
	local := instant.In(loc)
	back := (int(local.Weekday()) - int(weekStart) + 7) % 7
	y, m, d := local.Date()
	return StartOfDay(y, m, d-back, loc)
}

// MonthWindow returns the half-open UTC window [start, end) covering the
// local month in loc.
func MonthWindow(year int, month time.Month, loc *time.Location) (start, end time.Time) {
	return StartOfDay(year, month, 1, loc), StartOfDay(year, month+1, 1, loc)
}
