package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/baxromumarov/immo-encheres/internal/contact"
	"github.com/baxromumarov/immo-encheres/internal/favorites"
	"github.com/baxromumarov/immo-encheres/internal/geo"
	"github.com/baxromumarov/immo-encheres/internal/listing"
	"github.com/baxromumarov/immo-encheres/internal/observability"
)

type statsResponse struct {
	observability.StatsSnapshot
	ContactsStored *int64 `json:"contacts_stored,omitempty"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	resp := statsResponse{StatsSnapshot: observability.Snapshot()}
	if counter, ok := s.opts.Contacts.(ContactCounter); ok {
		n, err := counter.CountContacts(r.Context())
		if err != nil {
			observability.IncError(observability.ErrorStore, "api_stats")
			slog.Warn("contact count failed", "error", err)
		} else {
			resp.ContactsStored = &n
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListAnnonces(w http.ResponseWriter, r *http.Request) {
	page, perPage := parsePagination(r, s.opts.PerPage)

	list, err := s.catalog.All(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to load listings: "+err.Error())
		return
	}

	q := r.URL.Query()
	favs := favorites.Read(r)
	filter := listing.Filter{
		Ville:         strings.TrimSpace(q.Get("ville")),
		Search:        strings.TrimSpace(q.Get("search")),
		MinPrix:       priceParam(q.Get("min_prix")),
		MaxPrix:       priceParam(q.Get("max_prix")),
		FavoritesOnly: q.Get("favs") == "1",
		Favorites:     favs,
	}
	result := listing.Paginate(filter.Apply(list, s.now()), page, perPage)

	cards := make([]listing.Card, 0, len(result.Items))
	for _, a := range result.Items {
		cards = append(cards, listing.BuildCard(a, slices.Contains(favs, a.ID)))
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"items":       cards,
		"page":        result.Page,
		"per_page":    result.PerPage,
		"total":       result.Total,
		"total_pages": result.TotalPages,
		"villes":      listing.Cities(list),
	})
}

func (s *Server) handleGetAnnonce(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusNotFound, "Annonce introuvable")
		return
	}

	a, err := s.findAnnonce(r.Context(), id)
	if errors.Is(err, listing.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Annonce introuvable")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to load listings: "+err.Error())
		return
	}

	isFav := slices.Contains(favorites.Read(r), a.ID)
	respondJSON(w, http.StatusOK, listing.BuildDetail(a, s.viewpoint(r.Context(), a), isFav))
}

// findAnnonce asks the catalog for a single row when it supports that and
// falls back to scanning the full list.
func (s *Server) findAnnonce(ctx context.Context, id int) (listing.Annonce, error) {
	if g, ok := s.catalog.(ListingGetter); ok {
		return g.GetListing(ctx, id)
	}
	list, err := s.catalog.All(ctx)
	if err != nil {
		return listing.Annonce{}, err
	}
	a, ok := listing.Find(list, id)
	if !ok {
		return listing.Annonce{}, listing.ErrNotFound
	}
	return a, nil
}

// viewpoint looks up the nearest road for a listing with coordinates. Any
// failure falls back to the listing's own position.
func (s *Server) viewpoint(ctx context.Context, a listing.Annonce) *geo.Viewpoint {
	if s.opts.Viewpoints == nil {
		return nil
	}
	lat, lon, ok := a.Coordinates()
	if !ok {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.vpBudget)
	defer cancel()

	vp, found, err := s.opts.Viewpoints.NearestViewpoint(ctx, lat, lon)
	if err != nil {
		observability.IncError(observability.ClassifyFetchError(err), "api_viewpoint")
		slog.Warn("viewpoint lookup failed", "id", a.ID, "error", err)
		return nil
	}
	if !found {
		return nil
	}
	return &vp
}

func (s *Server) handleGetFavorites(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"favorites": favorites.Read(r)})
}

type FavoriteRequest struct {
	ID     any    `json:"id"`
	Action string `json:"action"`
}

func (s *Server) handleUpdateFavorites(w http.ResponseWriter, r *http.Request) {
	var req FavoriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "bad request")
		return
	}
	id, ok := favorites.ParseID(req.ID)
	if !ok {
		respondError(w, http.StatusBadRequest, favorites.ErrInvalidID.Error())
		return
	}

	favs, err := favorites.Apply(favorites.Read(r), id, req.Action)
	if errors.Is(err, favorites.ErrInvalidAction) {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	favorites.Write(w, favs, s.opts.SecureCookies)
	respondJSON(w, http.StatusOK, map[string]any{
		"favorites":  favs,
		"isFavorite": slices.Contains(favs, id),
	})
}

func (s *Server) handleContact(w http.ResponseWriter, r *http.Request) {
	var body any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Bad request")
		return
	}
	payload, ok := body.(map[string]any)
	if !ok {
		respondError(w, http.StatusBadRequest, "Bad request")
		return
	}
	observability.IncContactReceived()

	sub := contact.Normalize(payload)
	if s.opts.Contacts == nil {
		respondError(w, http.StatusInternalServerError, "Server error")
		return
	}
	id, err := s.opts.Contacts.SaveContact(r.Context(), sub)
	if err != nil {
		observability.IncError(observability.ErrorStore, "api_contact")
		slog.Error("contact save failed", "error", err)
		respondError(w, http.StatusInternalServerError, "Server error")
		return
	}
	sub.ID = id

	if s.opts.Notifier != nil {
		if err := s.opts.Notifier.Notify(sub); err != nil {
			slog.Error("contact email failed", "id", id, "error", err)
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{"ok": true, "id": id})
}

// handleValidateContact checks questionnaire answers without storing them.
// With ?step=N only that step is checked; otherwise every step is.
func (s *Server) handleValidateContact(w http.ResponseWriter, r *http.Request) {
	var a contact.Answers
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		respondError(w, http.StatusBadRequest, "Bad request")
		return
	}

	var err error
	if v := r.URL.Query().Get("step"); v != "" {
		step, convErr := strconv.Atoi(v)
		if convErr != nil || step < 0 || step > contact.LastStep {
			respondError(w, http.StatusBadRequest, "invalid step")
			return
		}
		err = a.ValidateStep(step)
	} else {
		err = a.Validate()
	}

	var verr *contact.ValidationError
	if errors.As(err, &verr) {
		respondJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error": verr.Message,
			"step":  verr.Step,
			"field": verr.Field,
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"ok": true, "budget": a.BudgetValue()})
}

// parsePagination reads page and per_page. Out of range pages are clamped
// later by listing.Paginate.
func parsePagination(r *http.Request, defaultPerPage int) (int, int) {
	q := r.URL.Query()
	page := 1
	perPage := defaultPerPage

	if v := q.Get("page"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			page = parsed
		}
	}

	if v := q.Get("per_page"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			perPage = parsed
		}
	}

	if perPage <= 0 || perPage > 100 {
		perPage = defaultPerPage
	}
	return page, perPage
}

func priceParam(v string) *int {
	n, ok := listing.ParsePrice(v)
	if !ok {
		return nil
	}
	return &n
}
