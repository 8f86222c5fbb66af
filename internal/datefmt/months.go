// Package datefmt turns the free-text visit and sale dates scraped from auction
// listings into display strings.
//
// Scraped fragments look like "13/09/2025", "Visite le 13 septembre 2025 de 14h30
// à 15h30" or "mardi 2-9-25 à 10:00". Nothing here returns an error: when a
// fragment cannot be understood the caller gets the original text back.
package datefmt

import (
	"strings"

	"github.com/baxromumarov/immo-encheres/internal/textutil"
)

// monthNames holds the canonical French month names, January first.
var monthNames = [12]string{
	"janvier", "février", "mars", "avril", "mai", "juin",
	"juillet", "août", "septembre", "octobre", "novembre", "décembre",
}

// weekdayNames is indexed by time.Weekday (Sunday first).
var weekdayNames = [7]string{
	"dimanche", "lundi", "mardi", "mercredi", "jeudi", "vendredi", "samedi",
}

// monthPrefixes identifies a folded month word by its leading letters.
// juin and juillet share "jui", so both need a fourth letter.
var monthPrefixes = [12]string{
	"jan", "fev", "mar", "avr", "mai", "juin",
	"juil", "aou", "sep", "oct", "nov", "dec",
}

// foldedMonths maps a folded full month name to its canonical spelling.
var foldedMonths = func() map[string]string {
	out := make(map[string]string, len(monthNames))
	for _, name := range monthNames {
		out[fold(name)] = name
	}
	return out
}()

func fold(s string) string {
	return textutil.Fold(s)
}

// monthIndex returns the 0-based month for a French month word, matched by
// prefix after folding. "Sept.", "févr" and "AOUT" all resolve.
func monthIndex(word string) (int, bool) {
	w := fold(strings.TrimSpace(word))
	if w == "" {
		return 0, false
	}
	for i, prefix := range monthPrefixes {
		if strings.HasPrefix(w, prefix) {
			return i, true
		}
	}
	return 0, false
}

func collapse(raw string) string {
	return textutil.Collapse(raw)
}

// expandYear applies the two-digit year pivot: above 50 is the 1900s.
func expandYear(y int, digits int) int {
	if digits != 2 {
		return y
	}
	if y > 50 {
		return 1900 + y
	}
	return 2000 + y
}
