package reservation

import (
	"fmt"
	"strconv"
	"strings"
)

// ChooseSlotStrict returns the first slot matching the preferred "HH:MM"
// times in priority order. Matching is exact hour/minute equality. When two
// slots share a time, the first one seen wins; the order of the slot list
// never changes which preference is satisfied.
func ChooseSlotStrict(preferred []string, available []Slot) (Slot, bool) {
	if len(available) == 0 || len(preferred) == 0 {
		return Slot{}, false
	}

	byTime := make(map[string]Slot, len(available))
	for _, s := range available {
		k := fmt.Sprintf("%02d:%02d", s.Start.Hour(), s.Start.Minute())
		if _, ok := byTime[k]; !ok {
			byTime[k] = s
		}
	}
	for _, p := range preferred {
		if s, ok := byTime[p]; ok {
			return s, true
		}
	}
	return Slot{}, false
}

// ChooseSlotNearest returns the slot closest to centerMinutes (minutes past
// midnight) whose offset is within radiusMinutes, inclusive. Ties keep the
// first-seen slot.
func ChooseSlotNearest(centerMinutes, radiusMinutes int, available []Slot) (Slot, bool) {
	var best Slot
	bestDist := radiusMinutes + 1
	found := false

	for _, s := range available {
		total := s.Start.Hour()*60 + s.Start.Minute()
		dist := total - centerMinutes
		if dist < 0 {
			dist = -dist
		}
		if dist <= radiusMinutes && dist < bestDist {
			bestDist = dist
			best = s
			found = true
		}
	}
	return best, found
}

// ClockMinutes parses "HH:MM" into minutes past midnight.
func ClockMinutes(hhmm string) (int, error) {
	parts := strings.Split(strings.TrimSpace(hhmm), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", hhmm)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", hhmm)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", hhmm)
	}
	return h*60 + m, nil
}
