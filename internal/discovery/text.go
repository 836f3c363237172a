package discovery

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Free-text extraction over venue descriptions ("reservations open 30 days
// in advance at 9am"). Heuristic by nature: the pattern tables below are the
// whole contract, and everything here is pure text-in/value-out so new
// phrasings can be added without touching scheduling code.

// windowPatterns are tried in order; the first match wins.
var windowPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d+)\s+days\s+in\s+advance`),
	regexp.MustCompile(`(\d+)\s+days\s+ahead`),
	regexp.MustCompile(`(\d+)\s+days\s+before`),
	regexp.MustCompile(`up\s+to\s+(\d+)\s+days`),
	regexp.MustCompile(`books\s+(\d+)\s+days`),
}

// releaseVerbs introduce a release-time phrase, e.g. "opens at 10am".
const releaseVerbs = `(?:opens|releases|available|drops)`

var (
	midnightPattern = regexp.MustCompile(releaseVerbs + `\s+at\s+midnight`)
	noonPattern     = regexp.MustCompile(releaseVerbs + `\s+at\s+noon`)
	clockPattern    = regexp.MustCompile(releaseVerbs + `\s+at\s+(\d{1,2})(?::(\d{2}))?\s*(am|pm)`)
)

// ExtractWindowDays scans text for a booking-window phrase and returns the
// day count.
func ExtractWindowDays(text string) (int, bool) {
	text = strings.ToLower(text)
	for _, p := range windowPatterns {
		if m := p.FindStringSubmatch(text); m != nil {
			n, err := strconv.Atoi(m[1])
			if err != nil || n < 0 {
				continue
			}
			return n, true
		}
	}
	return 0, false
}

// ExtractReleaseTime scans text for a release time-of-day phrase and returns
// it in 24-hour "HH:MM" form.
func ExtractReleaseTime(text string) (string, bool) {
	text = strings.ToLower(text)
	if midnightPattern.MatchString(text) {
		return "00:00", true
	}
	if noonPattern.MatchString(text) {
		return "12:00", true
	}
	m := clockPattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	hour, err := strconv.Atoi(m[1])
	if err != nil || hour < 1 || hour > 12 {
		return "", false
	}
	minute := 0
	if m[2] != "" {
		minute, err = strconv.Atoi(m[2])
		if err != nil || minute > 59 {
			return "", false
		}
	}
	switch {
	case m[3] == "am" && hour == 12:
		hour = 0
	case m[3] == "pm" && hour != 12:
		hour += 12
	}
	return fmt.Sprintf("%02d:%02d", hour, minute), true
}
