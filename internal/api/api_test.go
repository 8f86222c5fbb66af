package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/baxromumarov/immo-encheres/internal/contact"
	"github.com/baxromumarov/immo-encheres/internal/favorites"
	"github.com/baxromumarov/immo-encheres/internal/geo"
	"github.com/baxromumarov/immo-encheres/internal/listing"
)

type staticCatalog []listing.Annonce

func (c staticCatalog) All(context.Context) ([]listing.Annonce, error) { return c, nil }

// rowCatalog serves single listings through GetListing, like the Postgres store.
type rowCatalog struct {
	staticCatalog
	gets int
	err  error
}

func (c *rowCatalog) GetListing(_ context.Context, id int) (listing.Annonce, error) {
	c.gets++
	if c.err != nil {
		return listing.Annonce{}, c.err
	}
	a, ok := listing.Find(c.staticCatalog, id)
	if !ok {
		return listing.Annonce{}, listing.ErrNotFound
	}
	return a, nil
}

type fakeContacts struct {
	saved []contact.Submission
	err   error
}

func (f *fakeContacts) SaveContact(_ context.Context, s contact.Submission) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.saved = append(f.saved, s)
	return int64(len(f.saved)), nil
}

type countingContacts struct {
	fakeContacts
	countErr error
}

func (c *countingContacts) CountContacts(context.Context) (int64, error) {
	return int64(len(c.saved)), c.countErr
}

type fakeNotifier struct {
	sent []contact.Submission
	err  error
}

func (f *fakeNotifier) Notify(s contact.Submission) error {
	f.sent = append(f.sent, s)
	return f.err
}

type fakeViewpoints struct {
	vp    geo.Viewpoint
	err   error
	calls int
}

func (f *fakeViewpoints) NearestViewpoint(context.Context, float64, float64) (geo.Viewpoint, bool, error) {
	f.calls++
	return f.vp, f.err == nil, f.err
}

func testCatalog() staticCatalog {
	list := staticCatalog{
		{Ville: "Paris", Description: "Appartement", MiseAPrix: "150000", DateVisite: "Visite le mardi 20 octobre 2026 de 10h à 11h", Latitude: "48.8566", Longitude: "2.3522"},
		{Ville: "Évry", Description: "Maison", MiseAPrix: "80 000 €", DateVisite: "lundi 2 novembre 2026 à 14h"},
		{Ville: "Créteil", Description: "Parking", MiseAPrix: "5 000 €", DateVisite: "12 septembre 2026"},
		{Ville: "Paris", Description: "Studio", MiseAPrix: "60 000 €"},
	}
	for i := range list {
		list[i].ID = i
	}
	return list
}

func newTestServer(opts Options) *Server {
	s := NewServer(testCatalog(), opts)
	s.now = func() time.Time { return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC) }
	return s
}

func do(t *testing.T, s *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

type listResponse struct {
	Items      []listing.Card `json:"items"`
	Page       int            `json:"page"`
	PerPage    int            `json:"per_page"`
	Total      int            `json:"total"`
	TotalPages int            `json:"total_pages"`
	Villes     []string       `json:"villes"`
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestServer(Options{}), httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Fatalf("health = %d %q", rec.Code, rec.Body.String())
	}
}

func TestListAnnonces(t *testing.T) {
	s := newTestServer(Options{PerPage: 2})

	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/annonces", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp listResponse
	decode(t, rec, &resp)
	// the Créteil visit is past
	if resp.Total != 3 || resp.TotalPages != 2 || len(resp.Items) != 2 || resp.PerPage != 2 {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.Items[0].PrixLabel != listing.FormatPrice("150000") || resp.Items[0].VisiteLabel != "mardi 20 octobre 2026 à 10:00" {
		t.Fatalf("card = %+v", resp.Items[0])
	}
	if strings.Join(resp.Villes, ",") != "Paris,Évry,Créteil" {
		t.Fatalf("villes = %v", resp.Villes)
	}

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/annonces?search=evry", nil))
	decode(t, rec, &resp)
	if resp.Total != 1 || resp.Items[0].Ville != "Évry" {
		t.Fatalf("search: %+v", resp)
	}

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/annonces?min_prix=70000&max_prix=100000", nil))
	decode(t, rec, &resp)
	if resp.Total != 1 || resp.Items[0].ID != 1 {
		t.Fatalf("price: %+v", resp)
	}

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/annonces?page=9", nil))
	decode(t, rec, &resp)
	if resp.Page != 2 || len(resp.Items) != 1 {
		t.Fatalf("clamped page: %+v", resp)
	}
}

func TestListAnnoncesFavoritesOnly(t *testing.T) {
	s := newTestServer(Options{})
	req := httptest.NewRequest(http.MethodGet, "/api/annonces?favs=1", nil)
	req.AddCookie(&http.Cookie{Name: favorites.CookieName, Value: "[3,1]"})

	var resp listResponse
	decode(t, do(t, s, req), &resp)
	if resp.Total != 2 {
		t.Fatalf("favorites: %+v", resp)
	}
	for _, c := range resp.Items {
		if !c.IsFavorite {
			t.Fatalf("card %d should be a favorite", c.ID)
		}
	}
}

func TestGetAnnonce(t *testing.T) {
	vps := &fakeViewpoints{vp: geo.Viewpoint{Lat: 48.8567, Lon: 2.3523, Heading: 120}}
	s := newTestServer(Options{Viewpoints: vps})

	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/annonces/0", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var d listing.Detail
	decode(t, rec, &d)
	if d.VisiteLabel != "20 octobre 2026 à 10:00" {
		t.Fatalf("visite = %q", d.VisiteLabel)
	}
	if d.Links == nil || !strings.Contains(d.Links.StreetView, "viewpoint=48.856700,2.352300&heading=120") {
		t.Fatalf("links = %+v", d.Links)
	}
	if len(d.Slides) != 6 {
		t.Fatalf("slides = %d", len(d.Slides))
	}
	if vps.calls != 1 {
		t.Fatalf("viewpoint calls = %d", vps.calls)
	}

	// listings without coordinates never hit Overpass
	do(t, s, httptest.NewRequest(http.MethodGet, "/api/annonces/1", nil))
	if vps.calls != 1 {
		t.Fatalf("viewpoint looked up without coordinates")
	}

	for _, path := range []string{"/api/annonces/42", "/api/annonces/abc"} {
		rec := do(t, s, httptest.NewRequest(http.MethodGet, path, nil))
		var body map[string]string
		decode(t, rec, &body)
		if rec.Code != http.StatusNotFound || body["error"] != "Annonce introuvable" {
			t.Fatalf("%s: %d %v", path, rec.Code, body)
		}
	}
}

func TestGetAnnonceSingleRowCatalog(t *testing.T) {
	cat := &rowCatalog{staticCatalog: testCatalog()}
	s := NewServer(cat, Options{})

	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/annonces/1", nil))
	var d listing.Detail
	decode(t, rec, &d)
	if rec.Code != http.StatusOK || d.ID != 1 {
		t.Fatalf("status = %d, detail = %+v", rec.Code, d)
	}

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/annonces/42", nil))
	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), "Annonce introuvable") {
		t.Fatalf("missing row: %d %s", rec.Code, rec.Body.String())
	}
	if cat.gets != 2 {
		t.Fatalf("GetListing calls = %d, want 2", cat.gets)
	}

	cat.err = errors.New("connection reset")
	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/annonces/1", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("store failure: %d %s", rec.Code, rec.Body.String())
	}
}

func TestStats(t *testing.T) {
	cases := []struct {
		name     string
		contacts ContactStore
		want     *int64
	}{
		{"no counter", &fakeContacts{}, nil},
		{"counter", &countingContacts{fakeContacts: fakeContacts{saved: make([]contact.Submission, 3)}}, ptr(int64(3))},
		{"counter fails", &countingContacts{countErr: errors.New("db down")}, nil},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rec := do(t, newTestServer(Options{Contacts: c.contacts}), httptest.NewRequest(http.MethodGet, "/stats", nil))
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			var body map[string]any
			decode(t, rec, &body)
			if _, ok := body["pages_crawled"]; !ok {
				t.Fatalf("snapshot fields missing: %v", body)
			}
			got, ok := body["contacts_stored"]
			if c.want == nil {
				if ok {
					t.Fatalf("contacts_stored = %v, want absent", got)
				}
				return
			}
			if got != float64(*c.want) {
				t.Fatalf("contacts_stored = %v, want %d", got, *c.want)
			}
		})
	}
}

func ptr[T any](v T) *T { return &v }

func TestGetAnnonceViewpointFailure(t *testing.T) {
	s := newTestServer(Options{Viewpoints: &fakeViewpoints{err: errors.New("timeout")}})
	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/annonces/0", nil))
	var d listing.Detail
	decode(t, rec, &d)
	if rec.Code != http.StatusOK || d.Links == nil || !strings.Contains(d.Links.GoogleMaps, "q=48.856600,2.352200") {
		t.Fatalf("fallback to listing position failed: %d %+v", rec.Code, d.Links)
	}
}

func TestFavorites(t *testing.T) {
	s := newTestServer(Options{})

	req := httptest.NewRequest(http.MethodPost, "/api/favorites", strings.NewReader(`{"id": 2, "action": "add"}`))
	req.AddCookie(&http.Cookie{Name: favorites.CookieName, Value: "[1]"})
	rec := do(t, s, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Favorites  []int `json:"favorites"`
		IsFavorite bool  `json:"isFavorite"`
	}
	decode(t, rec, &resp)
	if len(resp.Favorites) != 2 || !resp.IsFavorite {
		t.Fatalf("resp = %+v", resp)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != favorites.CookieName || !cookies[0].HttpOnly {
		t.Fatalf("cookies = %+v", cookies)
	}
	if got := favorites.Decode(cookies[0].Value); len(got) != 2 {
		t.Fatalf("cookie value = %q", cookies[0].Value)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/favorites", strings.NewReader(`{"id": "1"}`))
	req.AddCookie(&http.Cookie{Name: favorites.CookieName, Value: "[1]"})
	decode(t, do(t, s, req), &resp)
	if len(resp.Favorites) != 0 || resp.IsFavorite {
		t.Fatalf("toggle off: %+v", resp)
	}

	cases := []struct {
		body string
		want string
	}{
		{`{"id": 1.5}`, "invalid id"},
		{`{"id": 1e20}`, "invalid id"},
		{`{"id": -1e20, "action": "add"}`, "invalid id"},
		{`{"id": "x"}`, "invalid id"},
		{`{"action": "add"}`, "invalid id"},
		{`{"id": 1, "action": "star"}`, "invalid action"},
		{`{`, "bad request"},
	}
	for _, c := range cases {
		rec := do(t, s, httptest.NewRequest(http.MethodPost, "/api/favorites", strings.NewReader(c.body)))
		var body map[string]string
		decode(t, rec, &body)
		if rec.Code != http.StatusBadRequest || body["error"] != c.want {
			t.Fatalf("%s: %d %v", c.body, rec.Code, body)
		}
	}

	req = httptest.NewRequest(http.MethodGet, "/api/favorites", nil)
	req.AddCookie(&http.Cookie{Name: favorites.CookieName, Value: "not json"})
	var got struct {
		Favorites []int `json:"favorites"`
	}
	decode(t, do(t, s, req), &got)
	if got.Favorites == nil || len(got.Favorites) != 0 {
		t.Fatalf("malformed cookie should read as empty: %+v", got)
	}
}

func TestContact(t *testing.T) {
	contacts := &fakeContacts{}
	notifier := &fakeNotifier{err: errors.New("smtp down")}
	s := newTestServer(Options{Contacts: contacts, Notifier: notifier})

	body := `{"dejaAchete":"oui","dejaVisite":"non","nom":"Jeanne","avocat":"oui","budget":250000,"email":"j@e.fr","phone":"0601020304"}`
	rec := do(t, s, httptest.NewRequest(http.MethodPost, "/api/contact", strings.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		OK bool  `json:"ok"`
		ID int64 `json:"id"`
	}
	decode(t, rec, &resp)
	if !resp.OK || resp.ID != 1 {
		t.Fatalf("resp = %+v", resp)
	}
	if len(contacts.saved) != 1 || !contacts.saved[0].DejaAchete || contacts.saved[0].Budget != 250000 {
		t.Fatalf("saved = %+v", contacts.saved)
	}
	if len(notifier.sent) != 1 || notifier.sent[0].ID != 1 {
		t.Fatalf("notified = %+v", notifier.sent)
	}

	for _, bad := range []string{`[1,2]`, `"x"`, `{`} {
		rec := do(t, s, httptest.NewRequest(http.MethodPost, "/api/contact", strings.NewReader(bad)))
		if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "Bad request") {
			t.Fatalf("%s: %d %s", bad, rec.Code, rec.Body.String())
		}
	}

	contacts.err = errors.New("db down")
	rec = do(t, s, httptest.NewRequest(http.MethodPost, "/api/contact", strings.NewReader(`{"nom":"X"}`)))
	if rec.Code != http.StatusInternalServerError || !strings.Contains(rec.Body.String(), "Server error") {
		t.Fatalf("save failure: %d %s", rec.Code, rec.Body.String())
	}
}

func TestValidateContact(t *testing.T) {
	s := newTestServer(Options{})
	full := `{"dejaAchete":"oui","dejaVisite":"non","nom":"Jeanne","avocat":"non","budget":"250 000","email":"j@e.fr","phone":"06 01 02 03 04"}`

	cases := []struct {
		name      string
		query     string
		body      string
		wantCode  int
		wantField string
		wantStep  int
	}{
		{"complete", "", full, http.StatusOK, "", 0},
		{"first step ok", "?step=0", `{"dejaAchete":"non"}`, http.StatusOK, "", 0},
		{"first step missing", "?step=0", `{}`, http.StatusUnprocessableEntity, "dejaAchete", 0},
		{"short name", "?step=2", `{"nom":" J "}`, http.StatusUnprocessableEntity, "nom", 2},
		{"budget letters", "?step=4", `{"budget":"beaucoup"}`, http.StatusUnprocessableEntity, "budget", 4},
		{"bad phone", "?step=5", `{"email":"j@e.fr","phone":"abc"}`, http.StatusUnprocessableEntity, "phone", 5},
		{"recap", "?step=6", `{}`, http.StatusOK, "", 0},
		{"whole form stops at first step", "", `{"dejaAchete":"oui"}`, http.StatusUnprocessableEntity, "dejaVisite", 1},
		{"step out of range", "?step=7", `{}`, http.StatusBadRequest, "", 0},
		{"step not a number", "?step=x", `{}`, http.StatusBadRequest, "", 0},
		{"bad json", "", `{`, http.StatusBadRequest, "", 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rec := do(t, s, httptest.NewRequest(http.MethodPost, "/api/contact/validate"+c.query, strings.NewReader(c.body)))
			if rec.Code != c.wantCode {
				t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
			}
			if c.wantCode != http.StatusUnprocessableEntity {
				return
			}
			var resp struct {
				Error string `json:"error"`
				Step  int    `json:"step"`
				Field string `json:"field"`
			}
			decode(t, rec, &resp)
			if resp.Field != c.wantField || resp.Step != c.wantStep || resp.Error == "" {
				t.Fatalf("resp = %+v", resp)
			}
		})
	}

	rec := do(t, s, httptest.NewRequest(http.MethodPost, "/api/contact/validate", strings.NewReader(full)))
	var ok struct {
		OK     bool `json:"ok"`
		Budget int  `json:"budget"`
	}
	decode(t, rec, &ok)
	if !ok.OK || ok.Budget != 250000 {
		t.Fatalf("resp = %+v", ok)
	}
}

func TestStreetViewRoute(t *testing.T) {
	s := newTestServer(Options{})
	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/streetview?location=48.85,2.35", nil))
	if rec.Code != http.StatusInternalServerError || !strings.Contains(rec.Body.String(), "Missing GOOGLE_MAPS_API_KEY") {
		t.Fatalf("streetview without key: %d %s", rec.Code, rec.Body.String())
	}
}

func TestStaticFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>Immo</h1>"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := newTestServer(Options{StaticDir: dir})
	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/index.html", nil))
	// http.FileServer redirects /index.html to /
	if rec.Code != http.StatusMovedPermanently {
		t.Fatalf("status = %d", rec.Code)
	}
	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Immo") {
		t.Fatalf("index: %d %s", rec.Code, rec.Body.String())
	}
}
