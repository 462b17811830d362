package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDaysOfMonth_Lengths(t *testing.T) {
	cases := []struct {
		year  int
		month time.Month
		zone  string
		want  int
	}{
		{2024, time.February, "UTC", 29},
		{2023, time.February, "UTC", 28},
		{2024, time.April, "Asia/Ho_Chi_Minh", 30},
		{2024, time.March, "America/New_York", 31},
		{2024, time.November, "America/New_York", 30},
		{1900, time.February, "UTC", 28},
		{2000, time.February, "Pacific/Kiritimati", 29},
	}
	for _, tc := range cases {
		g := DaysOfMonth(tc.year, tc.month, mustZone(t, tc.zone))
		require.Equal(t, tc.want, g.Len(), "%d-%02d %s", tc.year, tc.month, tc.zone)
	}
}

func TestDaysOfMonth_OrderedAndGapless(t *testing.T) {
	g := DaysOfMonth(2024, time.March, mustZone(t, "Europe/London"))
	days := g.Days()
	require.Equal(t, "2024-03-01", days[0])
	require.Equal(t, "2024-03-31", days[len(days)-1])
	for i := 1; i < len(days); i++ {
		prev, err := time.Parse(DayLayout, days[i-1])
		require.NoError(t, err)
		cur, err := time.Parse(DayLayout, days[i])
		require.NoError(t, err)
		require.Equal(t, 24*time.Hour, cur.Sub(prev), "gap between %s and %s", days[i-1], days[i])
	}
}

func TestDaysOfMonth_Index(t *testing.T) {
	g := DaysOfMonth(2024, time.February, time.UTC)
	i, ok := g.Index("2024-02-29")
	require.True(t, ok)
	require.Equal(t, 28, i)

	_, ok = g.Index("2024-03-01")
	require.False(t, ok)
}

func TestDaysOfMonth_DaysIsACopy(t *testing.T) {
	g := DaysOfMonth(2024, time.January, time.UTC)
	days := g.Days()
	days[0] = "mutated"
	require.Equal(t, "2024-01-01", g.Days()[0])
}

func TestDaysOfMonth_Idempotent(t *testing.T) {
	loc := mustZone(t, "America/Sao_Paulo")
	require.Equal(t, DaysOfMonth(2023, time.October, loc).Days(), DaysOfMonth(2023, time.October, loc).Days())
}

func TestDaysOfMonth_SkippedCivilDay(t *testing.T) {
	// Samoa jumped from 29 to 31 December 2011.
	g := DaysOfMonth(2011, time.December, mustZone(t, "Pacific/Apia"))
	require.Equal(t, 30, g.Len())
	_, ok := g.Index("2011-12-30")
	require.False(t, ok)
	_, ok = g.Index("2011-12-31")
	require.True(t, ok)
}
