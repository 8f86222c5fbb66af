package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/baxromumarov/immo-encheres/internal/api"
	"github.com/baxromumarov/immo-encheres/internal/config"
	"github.com/baxromumarov/immo-encheres/internal/contact"
	"github.com/baxromumarov/immo-encheres/internal/core"
	"github.com/baxromumarov/immo-encheres/internal/geo"
	"github.com/baxromumarov/immo-encheres/internal/listing"
	"github.com/baxromumarov/immo-encheres/internal/observability"
	"github.com/baxromumarov/immo-encheres/internal/scraper"
	"github.com/baxromumarov/immo-encheres/internal/store"
	"github.com/baxromumarov/immo-encheres/internal/streetview"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	geoCache, err := geo.LoadCache(cfg.GeoCachePath)
	if err != nil {
		slog.Warn("geo cache unreadable, starting empty", "path", cfg.GeoCachePath, "error", err)
		geoCache = geo.NewCache()
	}

	opts := api.Options{
		StaticDir:     cfg.StaticDir,
		PerPage:       cfg.PerPage,
		SecureCookies: !cfg.IsDevelopment(),
		Notifier: contact.NewNotifier(contact.MailConfig{
			Host: cfg.SMTPHost,
			Port: cfg.SMTPPort,
			User: cfg.SMTPUser,
			Pass: cfg.SMTPPass,
			From: cfg.MailFrom,
			To:   cfg.MailTo,
		}),
		Viewpoints: geo.NewOverpass(
			geo.WithOverpassURL(cfg.OverpassURL),
			geo.WithOverpassCache(geoCache),
		),
		StreetView: streetview.New(cfg.GoogleMapsAPIKey,
			streetview.WithRate(10, 20),
			streetview.WithServeHook(observability.ObserveStreetView),
		),
	}

	// The JSON feed and a file of contacts stand in when postgres is down.
	var catalog listing.Catalog = listing.NewFileCatalog(cfg.ListingsJSON)
	var listings core.ListingStore
	opts.Contacts = contact.NewFileStore(cfg.ContactsFile)

	dbStore, err := store.NewStore(cfg.DatabaseURL)
	if err != nil {
		slog.Warn("database unavailable, serving the JSON feed", "error", err)
	} else {
		defer dbStore.Close()

		workDir, _ := os.Getwd()
		schemaPath := filepath.Join(workDir, "internal", "store", "schema.sql")
		if err := dbStore.RunMigrations(schemaPath); err != nil {
			slog.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		catalog = dbStore
		listings = dbStore
		opts.Contacts = dbStore
	}

	if cfg.MailEnabled() {
		slog.Info("contact notifications enabled", "recipients", len(cfg.MailTo))
	}

	var ingestion *core.IngestionService
	if cfg.ScrapeIntervalMin > 0 {
		ingestion = core.NewIngestionService(scraper.FromConfig(cfg, geoCache), listings, cfg.ListingsJSON, cfg.MaxPage)
	}
	scheduler := core.NewSchedulerService(ingestion, listings, time.Duration(cfg.ScrapeIntervalMin)*time.Minute)
	scheduler.Start(ctx)

	srv := api.NewServer(catalog, opts)
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown failed", "error", err)
		}
	}()

	slog.Info("starting server", "port", cfg.Port, "static_dir", cfg.StaticDir)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}

	if err := geo.SaveCache(cfg.GeoCachePath, geoCache); err != nil {
		slog.Warn("failed to save geo cache", "error", err)
	}
}
