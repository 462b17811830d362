package stats

import (
	"sort"
	"time"

	"github.com/starford/moodlog/internal/calendar"
	"github.com/starford/moodlog/internal/models"
)

// MoodStatEntry is how often one mood occurred in a set of records.
type MoodStatEntry struct {
	MoodID     int64   `json:"moodId"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// DailyMoodStat is the mood breakdown of one local day.
type DailyMoodStat struct {
	Date         string          `json:"date"`
	MoodStats    []MoodStatEntry `json:"moodStats"`
	TotalRecords int             `json:"totalRecords"`
}

// MostFrequentMood is the top entry of a ranked mood table.
// MoodID is nil when there was nothing to rank.
type MostFrequentMood struct {
	MoodID *int64 `json:"moodId"`
	Count  int    `json:"count"`
}

// moodTally counts moods in first-encountered order.
type moodTally struct {
	entries []MoodStatEntry
	pos     map[int64]int
	total   int
}

func newMoodTally() *moodTally {
	return &moodTally{pos: make(map[int64]int)}
}

func (t *moodTally) add(moodID int64) {
	i, ok := t.pos[moodID]
	if !ok {
		i = len(t.entries)
		t.pos[moodID] = i
		t.entries = append(t.entries, MoodStatEntry{MoodID: moodID})
	}
	t.entries[i].Count++
	t.total++
}

// ranked returns the entries with percentages, most frequent first.
// Equal counts keep the order in which the moods were first seen.
func (t *moodTally) ranked() []MoodStatEntry {
	out := make([]MoodStatEntry, len(t.entries))
	copy(out, t.entries)
	if t.total == 0 {
		return out
	}
	for i := range out {
		out[i].Percentage = float64(out[i].Count) / float64(t.total) * 100
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

// AggregateMood ranks the moods of records. Records without a mood are ignored,
// and percentages are relative to the mood-tagged records only.
func AggregateMood(records []models.Record) []MoodStatEntry {
	t := newMoodTally()
	for _, r := range records {
		if r.MoodID != nil {
			t.add(*r.MoodID)
		}
	}
	return t.ranked()
}

// AggregateDailyMood ranks moods per local day of grid. Every grid day is
// present in the result, in grid order; records falling outside the grid
// are ignored.
func AggregateDailyMood(records []models.Record, grid calendar.Grid, loc *time.Location) []DailyMoodStat {
	tallies := make([]*moodTally, grid.Len())
	for i := range tallies {
		tallies[i] = newMoodTally()
	}
	for _, r := range records {
		if r.MoodID == nil {
			continue
		}
		i, ok := grid.Index(calendar.FormatLocalDate(r.Date, loc))
		if !ok {
			continue
		}
		tallies[i].add(*r.MoodID)
	}

	days := grid.Days()
	out := make([]DailyMoodStat, len(days))
	for i, day := range days {
		out[i] = DailyMoodStat{
			Date:         day,
			MoodStats:    tallies[i].ranked(),
			TotalRecords: tallies[i].total,
		}
	}
	return out
}

// MostFrequent returns the head of a ranked table, or a nil mood with count 0.
func MostFrequent(entries []MoodStatEntry) MostFrequentMood {
	if len(entries) == 0 {
		return MostFrequentMood{}
	}
	id := entries[0].MoodID
	return MostFrequentMood{MoodID: &id, Count: entries[0].Count}
}
