package scraper

import (
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/baxromumarov/immo-encheres/internal/urlutil"
)

var (
	jsonLDGeo   = regexp.MustCompile(`(?is)"geo"\s*:\s*\{[^}]*?"latitude"\s*:\s*([\-\d.]+)[^}]*?"longitude"\s*:\s*([\-\d.]+)`)
	atLatLng    = regexp.MustCompile(`@\s*(-?\d{1,3}\.\d+)\s*,\s*(-?\d{1,3}\.\d+)`)
	pairLatLng  = regexp.MustCompile(`(-?\d{1,3}\.\d+)\s*,\s*(-?\d{1,3}\.\d+)`)
	leafletView = regexp.MustCompile(`setView\(\s*\[\s*(-?\d{1,3}\.\d+)\s*,\s*(-?\d{1,3}\.\d+)\s*\]`)
	googleLL    = regexp.MustCompile(`LatLng\(\s*(-?\d{1,3}\.\d+)\s*,\s*(-?\d{1,3}\.\d+)\s*\)`)
	sousLotText = regexp.MustCompile(`(?i)Sous\s*-?lot\s*:?\s*([^\n\r<]+)`)

	spaceBeforeNewline = regexp.MustCompile(`[ \t]+\n`)
	manyNewlines       = regexp.MustCompile(`\n{3,}`)
)

var mapHosts = []string{"google.com/maps", "maps.google.", "openstreetmap.org", "osm.org"}

var fullTextSelectors = []string{
	".Text", ".Description", ".Resume", ".AdText", ".MainText",
	".ContentText", ".texte", ".description", ".Designation", ".Consistance",
}

var additionalSelectors = []string{".AdditionalText", ".Additional", ".Complement", ".Compl", ".ComplementText", ".TextAdd"}

const (
	sousLotSelector = ".SousLot, .SubLot, .Lot, .Lots .Lot"
	trustSelector   = ".Trusts, .Trust, .Avocat, .Avocats, .Lawyer, .Lawyers, .Cabinet, .Regisseur, .Regisseurs"
)

// DetailFields is what a listing detail page adds to its result card.
type DetailFields struct {
	Adresse        string
	PhotoURL       string
	DateVisite     string
	DateVente      string
	Latitude       string
	Longitude      string
	Texte          string
	AdditionalText string
	Court          string
	SousLot        string
	FirstSousLot   string
	Trusts         string
	Number         string
	Lien           string
}

// ParseDetail extracts every field of a detail page. rawHTML is the page
// source, used by the regex-based fallbacks.
func ParseDetail(doc *goquery.Document, rawHTML, detailURL string) DetailFields {
	root := doc.Selection
	base, _ := url.Parse(detailURL)

	d := DetailFields{
		Adresse:   JoinedText(root.Find(".Street").First(), " "),
		DateVente: JoinedText(root.Find(".Date").First(), " "),
		Texte:     ExtractFullText(root),
		Number:    urlutil.ListingNumber(detailURL),
		Lien:      detailURL,
	}
	if src, ok := root.Find(".MainPhoto img").First().Attr("src"); ok {
		d.PhotoURL = urlutil.Resolve(base, src)
	}
	d.DateVisite = visitText(root)
	d.Latitude, d.Longitude = ExtractCoords(root, rawHTML)

	d.AdditionalText = firstText(root, additionalSelectors)
	d.Court = courtText(root)

	lots := collectTexts(root.Find(sousLotSelector))
	if len(lots) == 0 {
		for _, m := range sousLotText.FindAllStringSubmatch(rawHTML, -1) {
			lots = append(lots, strings.TrimSpace(m[1]))
		}
	}
	if len(lots) > 0 {
		d.FirstSousLot = lots[0]
	}
	d.SousLot = strings.Join(uniqueNonEmpty(lots), " | ")

	trusts := collectTexts(root.Find(trustSelector))
	if len(trusts) == 0 {
		trusts = parentTexts(root, func(s string) bool { return strings.Contains(s, "Maître") })
	}
	d.Trusts = strings.Join(uniqueNonEmpty(trusts), " | ")
	return d
}

// ExtractCoords tries, in order: JSON-LD geo, map links and iframes, a Leaflet
// setView call, a google.maps.LatLng call, and data-lat/data-lng attributes.
// Coordinates are formatted with six decimals; ("", "") when none is found.
func ExtractCoords(root *goquery.Selection, rawHTML string) (string, string) {
	if lat, lng, ok := jsonLDCoords(root); ok {
		return lat, lng
	}
	// malformed JSON-LD still often carries a readable geo object
	if m := jsonLDGeo.FindStringSubmatch(rawHTML); m != nil {
		if lat, lng, ok := formatPair(m[1], m[2]); ok {
			return lat, lng
		}
	}

	var lat, lng string
	root.Find("iframe, a").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src := s.AttrOr("src", "")
		if src == "" {
			src = s.AttrOr("href", "")
		}
		if src == "" || !isMapLink(src) {
			return true
		}
		var ok bool
		lat, lng, ok = coordsFromMapLink(src)
		return !ok
	})
	if lat != "" {
		return lat, lng
	}

	for _, re := range []*regexp.Regexp{leafletView, googleLL} {
		if m := re.FindStringSubmatch(rawHTML); m != nil {
			if lat, lng, ok := formatPair(m[1], m[2]); ok {
				return lat, lng
			}
		}
	}

	root.Find("*").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		dlat := firstAttr(s, "data-lat", "data-latitude")
		dlng := firstAttr(s, "data-lng", "data-longitude", "data-lon")
		if dlat == "" || dlng == "" {
			return true
		}
		la, lo, ok := formatPair(dlat, dlng)
		if ok {
			lat, lng = la, lo
		}
		return false
	})
	return lat, lng
}

func isMapLink(src string) bool {
	lower := strings.ToLower(src)
	return slices.ContainsFunc(mapHosts, func(h string) bool { return strings.Contains(lower, h) })
}

func coordsFromMapLink(src string) (string, string, bool) {
	if m := atLatLng.FindStringSubmatch(src); m != nil {
		return formatPair(m[1], m[2])
	}
	u, err := url.Parse(src)
	if err != nil {
		return "", "", false
	}
	q := u.Query()
	for _, key := range []string{"q", "ll", "center"} {
		if v := q.Get(key); v != "" {
			if m := pairLatLng.FindStringSubmatch(v); m != nil {
				return formatPair(m[1], m[2])
			}
		}
	}
	for _, keys := range [][2]string{{"mlat", "mlon"}, {"lat", "lon"}, {"lat", "lng"}} {
		if q.Has(keys[0]) && q.Has(keys[1]) {
			return formatPair(q.Get(keys[0]), q.Get(keys[1]))
		}
	}
	return "", "", false
}

func formatPair(rawLat, rawLng string) (string, string, bool) {
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(rawLat), 64)
	lng, err2 := strconv.ParseFloat(strings.TrimSpace(rawLng), 64)
	if err1 != nil || err2 != nil {
		return "", "", false
	}
	return strconv.FormatFloat(lat, 'f', 6, 64), strconv.FormatFloat(lng, 'f', 6, 64), true
}

func firstAttr(s *goquery.Selection, names ...string) string {
	for _, name := range names {
		if v, ok := s.Attr(name); ok && v != "" {
			return v
		}
	}
	return ""
}

// ExtractFullText picks the longest descriptive block on the page, falling
// back to the long paragraphs.
func ExtractFullText(root *goquery.Selection) string {
	var candidates []string
	for _, sel := range fullTextSelectors {
		root.Find(sel).Each(func(_ int, s *goquery.Selection) {
			if t := JoinedText(s, "\n"); t != "" {
				candidates = append(candidates, t)
			}
		})
	}
	if len(candidates) == 0 {
		var ps []string
		root.Find("p").Each(func(_ int, s *goquery.Selection) {
			if t := JoinedText(s, "\n"); len([]rune(t)) > 50 {
				ps = append(ps, t)
			}
		})
		if len(ps) > 0 {
			candidates = append(candidates, strings.Join(ps, "\n\n"))
		}
	}
	if len(candidates) == 0 {
		return ""
	}

	full := candidates[0]
	for _, c := range candidates[1:] {
		if len([]rune(c)) > len([]rune(full)) {
			full = c
		}
	}
	full = spaceBeforeNewline.ReplaceAllString(full, "\n")
	full = manyNewlines.ReplaceAllString(full, "\n\n")
	return strings.TrimSpace(full)
}

func visitText(root *goquery.Selection) string {
	for _, n := range root.Nodes {
		if t := findText(n, func(s string) bool { return strings.Contains(s, "Visite") }); t != nil {
			return strings.TrimSpace(t.Data)
		}
	}
	return ""
}

func courtText(root *goquery.Selection) string {
	if t := JoinedText(root.Find(".Court").First(), " "); t != "" {
		return t
	}
	for _, n := range root.Nodes {
		if t := findText(n, func(s string) bool { return strings.Contains(s, "Tribunal") }); t != nil && t.Parent != nil {
			return nodeText(t.Parent)
		}
	}
	return ""
}

func parentTexts(root *goquery.Selection, match func(string) bool) []string {
	var nodes []*html.Node
	for _, n := range root.Nodes {
		findTextAll(n, match, &nodes)
	}
	var out []string
	for _, n := range nodes {
		if n.Parent == nil {
			continue
		}
		if t := nodeText(n.Parent); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func nodeText(n *html.Node) string {
	var parts []string
	textParts(n, &parts)
	return strings.Join(parts, " ")
}

func firstText(root *goquery.Selection, selectors []string) string {
	for _, sel := range selectors {
		if t := JoinedText(root.Find(sel).First(), " "); t != "" {
			return t
		}
	}
	return ""
}

func collectTexts(sel *goquery.Selection) []string {
	var out []string
	sel.Each(func(_ int, s *goquery.Selection) {
		if t := JoinedText(s, " "); t != "" {
			out = append(out, t)
		}
	})
	return out
}

func uniqueNonEmpty(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
