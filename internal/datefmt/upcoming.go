package datefmt

import (
	"regexp"
	"strconv"
	"time"
)

var saleDate = regexp.MustCompile(`(\d{1,2})[/\-. ](\d{1,2}|\p{L}+)[/\-. ](\d{2,4})`)

// ParseDay extracts the calendar day of a sale or visit fragment. Month may be
// numeric or a French month name. The returned time is midnight in loc.
func ParseDay(raw string, loc *time.Location) (time.Time, bool) {
	m := saleDate.FindStringSubmatch(collapse(raw))
	if m == nil {
		return time.Time{}, false
	}

	day, err := strconv.Atoi(m[1])
	if err != nil || day < 1 || day > 31 {
		return time.Time{}, false
	}

	month, err := strconv.Atoi(m[2])
	if err != nil {
		idx, ok := monthIndex(m[2])
		if !ok {
			return time.Time{}, false
		}
		month = idx + 1
	}
	if month < 1 || month > 12 {
		return time.Time{}, false
	}

	year, err := strconv.Atoi(m[3])
	if err != nil {
		return time.Time{}, false
	}
	year = expandYear(year, len(m[3]))

	if loc == nil {
		loc = time.Local
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc), true
}

// IsUpcoming reports whether the date in raw has not fully passed at now. The
// whole day counts, so a sale dated today is still upcoming until midnight.
// Fragments without a recognisable date are treated as upcoming.
func IsUpcoming(raw string, now time.Time) bool {
	day, ok := ParseDay(raw, now.Location())
	if !ok {
		return true
	}
	y, m, d := day.Date()
	endOfDay := time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), day.Location())
	return !endOfDay.Before(now)
}
