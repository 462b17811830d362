package stats

import (
	"time"

	"github.com/starford/moodlog/internal/calendar"
	"github.com/starford/moodlog/internal/models"
)

// AggregateActivities counts, per activity, how many tagged records fall on
// each local day of grid. Every vector has grid.Len() entries and position i
// is grid day i. Only activities present in records appear in the result.
func AggregateActivities(records []models.Record, grid calendar.Grid, loc *time.Location) map[int64][]int {
	out := make(map[int64][]int)
	for _, r := range records {
		if len(r.ActivityIDs) == 0 {
			continue
		}
		i, ok := grid.Index(calendar.FormatLocalDate(r.Date, loc))
		if !ok {
			continue
		}
		for _, id := range r.ActivityIDs {
			v, seen := out[id]
			if !seen {
				v = make([]int, grid.Len())
				out[id] = v
			}
			v[i]++
		}
	}
	return out
}

// ZeroFill adds an all-zero vector of length n for every id missing from data.
func ZeroFill(data map[int64][]int, ids []int64, n int) {
	for _, id := range ids {
		if _, ok := data[id]; !ok {
			data[id] = make([]int, n)
		}
	}
}
