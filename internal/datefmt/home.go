package datefmt

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var (
	homeNumericDate = regexp.MustCompile(`(\d{1,2})[/.\- ](\d{1,2})[/.\- ](\d{2,4})`)
	homeTextDate    = regexp.MustCompile(`(\d{1,2})\s+(\p{L}+)\s+(\d{4})`)

	homeTimePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:à|de)\s*(\d{1,2})\s*h\s*(\d{2})`),
		regexp.MustCompile(`(?i)(?:à|de)\s*(\d{1,2})\s*h(?:\D|$)`),
		regexp.MustCompile(`\b(\d{1,2}):(\d{2})\b`),
		regexp.MustCompile(`(?i)\b(\d{1,2})h(\d{2})\b`),
	}
)

// FormatHome formats a visit date for the listing cards:
// "samedi 13 septembre 2025 à 14:30". The weekday is only known once day, month
// and year are all resolved; otherwise raw is returned untouched.
func FormatHome(raw string) string {
	s := collapse(raw)

	day, month, year, ok := homeDate(s)
	if !ok {
		return raw
	}

	d := time.Date(year, time.Month(month+1), day, 0, 0, 0, 0, time.Local)
	out := fmt.Sprintf("%s %d %s %d", weekdayNames[d.Weekday()], day, monthNames[month], year)
	if hour, minute, ok := homeTime(s); ok {
		out += fmt.Sprintf(" à %02d:%02d", hour, minute)
	}
	return out
}

// homeDate returns day, 0-based month and year.
func homeDate(s string) (int, int, int, bool) {
	if m := homeNumericDate.FindStringSubmatch(s); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if year < 100 {
			year += 2000
		}
		return day, min(max(month-1, 0), 11), year, true
	}

	if m := homeTextDate.FindStringSubmatch(s); m != nil {
		month, ok := monthIndex(m[2])
		if !ok {
			return 0, 0, 0, false
		}
		day, _ := strconv.Atoi(m[1])
		year, _ := strconv.Atoi(m[3])
		return day, month, year, true
	}

	return 0, 0, 0, false
}

// homeTime stops at the first pattern that matches, even when the hour it
// captured is out of range.
func homeTime(s string) (int, int, bool) {
	for _, re := range homeTimePatterns {
		m := re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		hour, err := strconv.Atoi(m[1])
		if err != nil || hour < 0 || hour > 23 {
			return 0, 0, false
		}
		minute := 0
		if len(m) > 2 && m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		return hour, minute, true
	}
	return 0, 0, false
}
