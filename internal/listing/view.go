package listing

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/baxromumarov/immo-encheres/internal/datefmt"
	"github.com/baxromumarov/immo-encheres/internal/geo"
	"github.com/baxromumarov/immo-encheres/internal/textutil"
)

const (
	defaultFov      = 80
	slideSize       = "960x540"
	thumbAngleStep  = 30
	slidesWithPhoto = 4
	slidesNoPhoto   = 6
)

var (
	consignationRe   = regexp.MustCompile(`(?i)Consignation\s+pour\s+ench[ée]rir[^\n]*`)
	spaceBeforePunct = regexp.MustCompile(`\s+([,;:.])`)
)

// Card is what the home page shows for one listing.
type Card struct {
	ID           int    `json:"id"`
	Ville        string `json:"ville"`
	Description  string `json:"description"`
	PrixLabel    string `json:"prix_label"`
	VisiteLabel  string `json:"visite_label"`
	DateVente    string `json:"date_vente"`
	Photo        string `json:"photo"`
	FirstSousLot string `json:"first_sous_lot,omitempty"`
	IsFavorite   bool   `json:"is_favorite"`
}

// Slide is one image of the detail page carousel.
type Slide struct {
	Src  string `json:"src"`
	Href string `json:"href,omitempty"`
	Alt  string `json:"alt"`
}

// Links groups the Google Maps URLs of a listing with coordinates.
type Links struct {
	StreetViewEmbed string `json:"street_view_embed"`
	StreetView      string `json:"street_view"`
	GoogleMaps      string `json:"google_maps"`
	MapEmbed        string `json:"map_embed"`
}

// Detail is the full view of one listing.
type Detail struct {
	Annonce
	PrixLabel    string   `json:"prix_label"`
	VisiteLabel  string   `json:"visite_label"`
	Resume       string   `json:"resume"`
	TrustItems   []string `json:"trust_items"`
	SousLots     []string `json:"sous_lots"`
	Consignation string   `json:"consignation,omitempty"`
	Links        *Links   `json:"links,omitempty"`
	Slides       []Slide  `json:"slides"`
	IsFavorite   bool     `json:"is_favorite"`
}

func BuildCard(a Annonce, isFav bool) Card {
	return Card{
		ID:           a.ID,
		Ville:        a.Ville,
		Description:  a.Description,
		PrixLabel:    FormatPrice(a.MiseAPrix),
		VisiteLabel:  datefmt.FormatHome(a.DateVisite),
		DateVente:    a.DateVente,
		Photo:        normalizePhoto(a.Photo),
		FirstSousLot: a.FirstSousLot,
		IsFavorite:   isFav,
	}
}

// BuildDetail assembles the detail view. vp, when non-nil, is a point on the
// nearest road: it replaces the listing coordinates for Street View and
// supplies the heading when the listing has none.
func BuildDetail(a Annonce, vp *geo.Viewpoint, isFav bool) Detail {
	d := Detail{
		Annonce:     a,
		PrixLabel:   FormatPrice(a.MiseAPrix),
		VisiteLabel: datefmt.FormatDetail(a.DateVisite),
		Resume:      FirstLines(a.Texte, 6),
		TrustItems:  nonNil(textutil.SplitPipe(a.Trusts)),
		Slides:      []Slide{},
		IsFavorite:  isFav,
	}
	if d.VisiteLabel == "" {
		d.VisiteLabel = "—"
	}
	d.SousLots, d.Consignation = extractConsignation(textutil.SplitPipe(a.SousLot))

	photo := normalizePhoto(a.Photo)
	if photo != "" {
		d.Slides = append(d.Slides, Slide{Src: photo, Alt: "Photo de " + a.Ville})
	}

	lat, lon, ok := a.Coordinates()
	if !ok {
		return d
	}

	heading := 0.0
	if vp != nil {
		lat, lon = vp.Lat, vp.Lon
		heading = vp.Heading
	}
	if a.Heading != nil {
		heading = *a.Heading
	}
	pitch := 0.0
	if a.Pitch != nil {
		pitch = *a.Pitch
	}
	fov := float64(defaultFov)
	if a.Fov != nil {
		fov = *a.Fov
	}

	latStr := strconv.FormatFloat(lat, 'f', 6, 64)
	lonStr := strconv.FormatFloat(lon, 'f', 6, 64)
	h, p, f := num(heading), num(pitch), num(fov)

	d.Links = &Links{
		StreetViewEmbed: fmt.Sprintf("https://www.google.com/maps?q=&layer=c&cbll=%s,%s&cbp=0,%s,%s,0,%s&hl=fr&ll=%s,%s&z=18&output=embed",
			latStr, lonStr, h, p, f, latStr, lonStr),
		StreetView: fmt.Sprintf("https://www.google.com/maps/@?api=1&map_action=pano&viewpoint=%s,%s&heading=%s&pitch=%s&fov=%s",
			latStr, lonStr, h, p, f),
		GoogleMaps: fmt.Sprintf("https://www.google.com/maps?q=%s,%s&z=16", latStr, lonStr),
		MapEmbed:   fmt.Sprintf("https://www.google.com/maps?q=%s,%s&z=15&hl=fr&output=embed", latStr, lonStr),
	}

	count := slidesNoPhoto
	if photo != "" {
		count = slidesWithPhoto
	}
	for i := range count {
		angle := heading
		if i > 0 {
			angle = mod360(heading + float64(i*thumbAngleStep))
		}
		d.Slides = append(d.Slides, Slide{
			Src: fmt.Sprintf("/api/streetview?location=%s,%s&heading=%s&pitch=%s&fov=%d&size=%s",
				latStr, lonStr, num(angle), p, defaultFov, slideSize),
			Href: d.Links.StreetView,
			Alt:  fmt.Sprintf("Street View %d", i+1),
		})
	}
	return d
}

// Coordinates parses the scraped latitude and longitude. Both must be present
// and numeric.
func (a Annonce) Coordinates() (float64, float64, bool) {
	if strings.TrimSpace(a.Latitude) == "" || strings.TrimSpace(a.Longitude) == "" {
		return 0, 0, false
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(a.Latitude), 64)
	if err != nil {
		return 0, 0, false
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(a.Longitude), 64)
	if err != nil {
		return 0, 0, false
	}
	return lat, lon, true
}

// FirstLines returns the first n non-blank lines of text, trimmed.
func FirstLines(text string, n int) string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, line)
		if len(out) == n {
			break
		}
	}
	return strings.Join(out, "\n")
}

// extractConsignation pulls the "Consignation pour enchérir" notice out of the
// sous-lots. The first notice found is returned once; every occurrence is
// removed from the lots.
func extractConsignation(lots []string) ([]string, string) {
	cleaned := make([]string, 0, len(lots))
	notice := ""
	for _, lot := range lots {
		if notice == "" {
			if m := consignationRe.FindString(lot); m != "" {
				notice = textutil.Collapse(m)
			}
		}
		out := consignationRe.ReplaceAllString(lot, " ")
		out = textutil.Collapse(out)
		out = spaceBeforePunct.ReplaceAllString(out, "$1")
		cleaned = append(cleaned, out)
	}
	return cleaned, notice
}

func normalizePhoto(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}

func mod360(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	r := math.Mod(v, 360)
	if r < 0 {
		r += 360
	}
	return r
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
