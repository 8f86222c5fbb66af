package listing

import (
	"slices"
	"strings"
	"time"

	"github.com/baxromumarov/immo-encheres/internal/datefmt"
	"github.com/baxromumarov/immo-encheres/internal/textutil"
)

// Filter selects listings for the home page.
type Filter struct {
	Ville         string
	Search        string
	MinPrix       *int
	MaxPrix       *int
	FavoritesOnly bool
	Favorites     []int
}

// Match reports whether a passes every criterion. Listings whose visit date is
// already past are always excluded.
func (f Filter) Match(a Annonce, now time.Time) bool {
	if f.Ville != "" && a.Ville != f.Ville {
		return false
	}
	if f.Search != "" {
		if !strings.Contains(textutil.Fold(a.Ville), textutil.Fold(f.Search)) {
			return false
		}
	}
	if f.MinPrix != nil || f.MaxPrix != nil {
		prix, ok := ParsePrice(a.MiseAPrix)
		if !ok {
			return false
		}
		if f.MinPrix != nil && prix < *f.MinPrix {
			return false
		}
		if f.MaxPrix != nil && prix > *f.MaxPrix {
			return false
		}
	}
	if f.FavoritesOnly && !slices.Contains(f.Favorites, a.ID) {
		return false
	}
	return datefmt.IsUpcoming(a.DateVisite, now)
}

// Apply returns the listings matching f, in their original order.
func (f Filter) Apply(list []Annonce, now time.Time) []Annonce {
	out := make([]Annonce, 0, len(list))
	for _, a := range list {
		if f.Match(a, now) {
			out = append(out, a)
		}
	}
	return out
}

// Cities lists the distinct non-empty villes in first-seen order.
func Cities(list []Annonce) []string {
	seen := make(map[string]struct{}, len(list))
	out := []string{}
	for _, a := range list {
		if a.Ville == "" {
			continue
		}
		if _, ok := seen[a.Ville]; ok {
			continue
		}
		seen[a.Ville] = struct{}{}
		out = append(out, a.Ville)
	}
	return out
}

// Page is one slice of a filtered result.
type Page struct {
	Items      []Annonce
	Page       int
	PerPage    int
	Total      int
	TotalPages int
}

// Paginate slices list into perPage-sized pages. page is clamped to the valid
// range, so asking for page 0 or page 99 returns the first or last page.
func Paginate(list []Annonce, page, perPage int) Page {
	if perPage <= 0 {
		perPage = 7
	}
	total := len(list)
	totalPages := (total + perPage - 1) / perPage
	if page > totalPages {
		page = totalPages
	}
	if page < 1 {
		page = 1
	}

	start := (page - 1) * perPage
	end := min(start+perPage, total)
	items := []Annonce{}
	if start < end {
		items = list[start:end]
	}
	return Page{
		Items:      items,
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	}
}
