package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/baxromumarov/immo-encheres/internal/contact"
	"github.com/baxromumarov/immo-encheres/internal/geo"
	"github.com/baxromumarov/immo-encheres/internal/listing"
	"github.com/baxromumarov/immo-encheres/internal/streetview"
)

// ContactStore persists questionnaire submissions.
type ContactStore interface {
	SaveContact(ctx context.Context, s contact.Submission) (int64, error)
}

// ContactCounter is implemented by contact stores that can report how many
// submissions they hold.
type ContactCounter interface {
	CountContacts(ctx context.Context) (int64, error)
}

// ListingGetter is implemented by catalogs that can load one listing by id
// without reading the whole feed.
type ListingGetter interface {
	GetListing(ctx context.Context, id int) (listing.Annonce, error)
}

// ViewpointFinder locates the road point a Street View camera should use.
type ViewpointFinder interface {
	NearestViewpoint(ctx context.Context, lat, lon float64) (geo.Viewpoint, bool, error)
}

type Notifier interface {
	Notify(s contact.Submission) error
}

type Options struct {
	StaticDir     string
	PerPage       int
	SecureCookies bool

	Contacts   ContactStore
	Notifier   Notifier
	Viewpoints ViewpointFinder
	StreetView http.Handler
}

type Server struct {
	router   *chi.Mux
	catalog  listing.Catalog
	opts     Options
	now      func() time.Time
	vpBudget time.Duration
}

func NewServer(catalog listing.Catalog, opts Options) *Server {
	if opts.PerPage <= 0 {
		opts.PerPage = 7
	}
	if opts.StreetView == nil {
		opts.StreetView = streetview.New("")
	}
	s := &Server{
		router:   chi.NewRouter(),
		catalog:  catalog,
		opts:     opts,
		now:      time.Now,
		vpBudget: 8 * time.Second,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	s.router.Get("/health", s.handleHealth)
	s.router.Get("/stats", s.handleStats)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/annonces", s.handleListAnnonces)
		r.Get("/annonces/{id}", s.handleGetAnnonce)
		r.Get("/favorites", s.handleGetFavorites)
		r.Post("/favorites", s.handleUpdateFavorites)
		r.Post("/contact", s.handleContact)
		r.Post("/contact/validate", s.handleValidateContact)
		r.Method(http.MethodGet, "/streetview", s.opts.StreetView)
	})

	if s.opts.StaticDir != "" {
		FileServer(s.router, "/", http.Dir(s.opts.StaticDir))
	}
}

func FileServer(r chi.Router, path string, root http.FileSystem) {
	if strings.ContainsAny(path, "{}*") {
		panic("FileServer does not permit any URL parameters.")
	}

	if path != "/" && path[len(path)-1] != '/' {
		r.Get(path, http.RedirectHandler(path+"/", 301).ServeHTTP)
		path += "/"
	}
	path += "*"

	r.Get(path, func(w http.ResponseWriter, r *http.Request) {
		rctx := chi.RouteContext(r.Context())
		pathPrefix := strings.TrimSuffix(rctx.RoutePattern(), "/*")
		fs := http.StripPrefix(pathPrefix, http.FileServer(root))
		fs.ServeHTTP(w, r)
	})
}

func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(response)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
