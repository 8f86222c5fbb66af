package datefmt

import (
	"fmt"
	"regexp"
	"strconv"
)

var (
	detailNumericDate = regexp.MustCompile(`\b(\d{1,2})[/\-.\s](\d{1,2})[/\-.\s](\d{2,4})\b`)
	detailTextDate    = regexp.MustCompile(`\b(\d{1,2})\s+(janvier|fevrier|mars|avril|mai|juin|juillet|aout|septembre|octobre|novembre|decembre)\s+(\d{4})\b`)

	// Explicit "à"/"de" forms come first so "de 10h à 12h" yields the start time.
	detailTimePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:^|\s)(?:à|de)\s*(\d{1,2})\s*h\s*(\d{0,2})`),
		regexp.MustCompile(`(?i)(?:^|\s)(?:à|de)\s*(\d{1,2}):(\d{2})`),
		regexp.MustCompile(`(?i)(\d{1,2})\s*h\s*(\d{0,2})`),
		regexp.MustCompile(`(\d{1,2}):(\d{2})`),
	}
)

// Normalized is the parsed form of a visit date fragment.
type Normalized struct {
	// Label is "13 septembre 2025" or "13/09/2025"; empty when no date was found.
	Label string
	// Time is "HH:MM"; empty when no time was found.
	Time string
	// Input is the whitespace-collapsed fragment.
	Input string
}

// String renders the normalized value the way the detail page shows it.
func (n Normalized) String() string {
	switch {
	case n.Label != "" && n.Time != "":
		return n.Label + " à " + n.Time
	case n.Label != "":
		return n.Label
	case n.Time != "":
		return n.Time
	default:
		return n.Input
	}
}

// NormalizeDetail extracts the date label and the time from raw.
func NormalizeDetail(raw string) Normalized {
	s := collapse(raw)
	n := Normalized{Input: s}
	if s == "" {
		return n
	}

	if m := detailNumericDate.FindStringSubmatch(s); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		year = expandYear(year, len(m[3]))
		n.Label = fmt.Sprintf("%02d/%02d/%d", day, month, year)
	} else if m := detailTextDate.FindStringSubmatch(fold(s)); m != nil {
		if name, ok := foldedMonths[m[2]]; ok {
			day, _ := strconv.Atoi(m[1])
			n.Label = fmt.Sprintf("%d %s %s", day, name, m[3])
		}
	}

	n.Time = detailTime(s)
	return n
}

// FormatDetail formats a visit date for the listing detail page:
// "13 septembre 2025 à 14:30", "13/09/2025", "14:30" or, when nothing parses,
// the trimmed input.
func FormatDetail(raw string) string {
	return NormalizeDetail(raw).String()
}

func detailTime(s string) string {
	for _, re := range detailTimePatterns {
		m := re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		hour, err := strconv.Atoi(m[1])
		if err != nil || hour < 0 || hour > 23 {
			continue
		}
		minutes := m[2]
		switch len(minutes) {
		case 0:
			minutes = "00"
		case 1:
			minutes = "0" + minutes
		}
		return fmt.Sprintf("%02d:%s", hour, minutes)
	}
	return ""
}
