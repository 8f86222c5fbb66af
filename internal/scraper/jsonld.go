package scraper

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// jsonLDCoords returns the first schema.org geo found in the page's JSON-LD
// blocks, walking @graph and arrays.
func jsonLDCoords(root *goquery.Selection) (string, string, bool) {
	var lat, lng string
	var found bool
	root.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return true
		}
		var payload any
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return true
		}
		lat, lng, found = findGeo(payload)
		return !found
	})
	return lat, lng, found
}

func findGeo(payload any) (string, string, bool) {
	switch t := payload.(type) {
	case map[string]any:
		if geo, ok := t["geo"].(map[string]any); ok {
			if lat, lng, ok := formatPair(jsonNumber(geo["latitude"]), jsonNumber(geo["longitude"])); ok {
				return lat, lng, true
			}
		}
		for _, key := range []string{"@graph", "location", "containsPlace"} {
			if lat, lng, ok := findGeo(t[key]); ok {
				return lat, lng, true
			}
		}
	case []any:
		for _, item := range t {
			if lat, lng, ok := findGeo(item); ok {
				return lat, lng, true
			}
		}
	}
	return "", "", false
}

func jsonNumber(v any) string {
	switch n := v.(type) {
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case string:
		return n
	}
	return ""
}
