package listing

import (
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// ParsePrice keeps the digits of a scraped price ("150 000 €" -> 150000).
func ParsePrice(raw string) (int, bool) {
	var sb strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}
	if sb.Len() == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(sb.String())
	if err != nil {
		return 0, false
	}
	return n, true
}

// FormatPrice renders a price with French digit grouping and a euro sign.
// Values without digits are returned as they came.
func FormatPrice(raw string) string {
	n, ok := ParsePrice(raw)
	if !ok {
		return raw
	}
	return FormatEuros(n)
}

// FormatEuros renders n with French digit grouping and a euro sign.
func FormatEuros(n int) string {
	p := message.NewPrinter(language.French)
	return p.Sprintf("%d", n) + " €"
}
