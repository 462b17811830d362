package calendar

import "time"

// Grid is the ordered, gapless list of local day keys of one month.
type Grid struct {
	days  []string
	index map[string]int
}

// DaysOfMonth builds the grid for the local month (year, month) in loc.
//
// Each day is probed at local noon and formatted in loc, so the keys follow
// the zone's civil calendar rather than UTC date arithmetic. A day the zone
// skipped entirely has no key, so Len is then smaller than the month's
// calendar length (30 for Samoa's December 2011).
func DaysOfMonth(year int, month time.Month, loc *time.Location) Grid {
	first := time.Date(year, month, 1, 12, 0, 0, 0, loc)
	y, m, _ := first.Date()

	g := Grid{
		days:  make([]string, 0, 31),
		index: make(map[string]int, 31),
	}
	for d := 1; ; d++ {
		t := time.Date(y, m, d, 12, 0, 0, 0, loc)
		if t.Year() != y || t.Month() != m {
			break
		}
		key := t.Format(DayLayout)
		if _, dup := g.index[key]; dup {
			continue
		}
		g.index[key] = len(g.days)
		g.days = append(g.days, key)
	}
	return g
}

// Len returns the number of days in the grid.
func (g Grid) Len() int { return len(g.days) }

// Days returns a copy of the day keys in ascending order.
func (g Grid) Days() []string {
	out := make([]string, len(g.days))
	copy(out, g.days)
	return out
}

// Index returns the position of day in the grid.
func (g Grid) Index(day string) (int, bool) {
	i, ok := g.index[day]
	return i, ok
}
