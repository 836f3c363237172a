package reservation

import "time"

// CandidateDates returns every date in [start, end] (both inclusive) whose
// weekday appears in days. The result is strictly increasing and does not
// depend on the order of days. An empty result is valid; callers treat it as
// a configuration warning, not an error.
func CandidateDates(start, end time.Time, days []string) []time.Time {
	wanted := make(map[time.Weekday]bool, len(days))
	for _, d := range days {
		if wd, ok := Weekdays[d]; ok {
			wanted[wd] = true
		}
	}

	var out []time.Time
	for cur := truncateDay(start); !cur.After(truncateDay(end)); cur = cur.AddDate(0, 0, 1) {
		if wanted[cur.Weekday()] {
			out = append(out, cur)
		}
	}
	return out
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
