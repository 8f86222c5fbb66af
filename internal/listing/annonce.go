package listing

import (
	"strings"
)

// Annonce is one auction listing as exported by the scraper. JSON names follow
// the licitor_samples.json feed consumed by the front end.
type Annonce struct {
	ID             int      `json:"id"`
	Ville          string   `json:"ville"`
	Description    string   `json:"description"`
	Texte          string   `json:"texte"`
	MiseAPrix      string   `json:"mise_a_prix"`
	Photo          string   `json:"photo"`
	DateVisite     string   `json:"date_visite"`
	DateVente      string   `json:"date_vente"`
	Adresse        string   `json:"adresse"`
	Latitude       string   `json:"latitude"`
	Longitude      string   `json:"longitude"`
	Heading        *float64 `json:"heading,omitempty"`
	Pitch          *float64 `json:"pitch,omitempty"`
	Fov            *float64 `json:"fov,omitempty"`
	AdditionalText string   `json:"AdditionalText"`
	Court          string   `json:"Court"`
	SousLot        string   `json:"SousLot"`
	FirstSousLot   string   `json:"FirstSousLot"`
	Trusts         string   `json:"Trusts"`
	Number         string   `json:"Number"`
	Lien           string   `json:"lien"`
}

// DedupeKey identifies a listing across scrapes: the licitor number first,
// then the detail URL, then ville|adresse|prix.
func (a Annonce) DedupeKey() string {
	if num := strings.TrimSpace(a.Number); num != "" {
		return "NUM:" + num
	}
	if lien := strings.TrimSpace(a.Lien); lien != "" {
		return "URL:" + lien
	}
	ville := strings.ToLower(strings.TrimSpace(a.Ville))
	adr := strings.ToLower(strings.TrimSpace(a.Adresse))
	prix := strings.TrimSpace(a.MiseAPrix)
	return "FALL:" + ville + "|" + adr + "|" + prix
}

// Merge folds fresh into base: empty fields of base are filled from fresh, and
// the longer of the two descriptions wins. The ID of base is kept.
func Merge(base, fresh Annonce) Annonce {
	out := base
	fill := func(dst *string, src string) {
		if *dst == "" && src != "" {
			*dst = src
		}
	}
	fill(&out.Ville, fresh.Ville)
	fill(&out.Description, fresh.Description)
	fill(&out.MiseAPrix, fresh.MiseAPrix)
	fill(&out.Photo, fresh.Photo)
	fill(&out.DateVisite, fresh.DateVisite)
	fill(&out.DateVente, fresh.DateVente)
	fill(&out.Adresse, fresh.Adresse)
	fill(&out.Latitude, fresh.Latitude)
	fill(&out.Longitude, fresh.Longitude)
	fill(&out.Court, fresh.Court)
	fill(&out.SousLot, fresh.SousLot)
	fill(&out.FirstSousLot, fresh.FirstSousLot)
	fill(&out.Trusts, fresh.Trusts)
	fill(&out.Number, fresh.Number)
	fill(&out.Lien, fresh.Lien)

	if len(fresh.Texte) > len(out.Texte) {
		out.Texte = fresh.Texte
	}
	if len(fresh.AdditionalText) > len(out.AdditionalText) {
		out.AdditionalText = fresh.AdditionalText
	}

	if out.Heading == nil {
		out.Heading = fresh.Heading
	}
	if out.Pitch == nil {
		out.Pitch = fresh.Pitch
	}
	if out.Fov == nil {
		out.Fov = fresh.Fov
	}
	return out
}

// MergeAll indexes existing by dedupe key and folds every fresh listing into
// it. Existing order is preserved; new listings are appended in scrape order.
func MergeAll(existing, fresh []Annonce) []Annonce {
	index := make(map[string]int, len(existing)+len(fresh))
	out := make([]Annonce, 0, len(existing)+len(fresh))

	add := func(a Annonce) {
		key := a.DedupeKey()
		if i, ok := index[key]; ok {
			out[i] = Merge(out[i], a)
			return
		}
		index[key] = len(out)
		out = append(out, a)
	}

	for _, a := range existing {
		add(a)
	}
	for _, a := range fresh {
		add(a)
	}
	return out
}
