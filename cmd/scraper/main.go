package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/baxromumarov/immo-encheres/internal/config"
	"github.com/baxromumarov/immo-encheres/internal/core"
	"github.com/baxromumarov/immo-encheres/internal/geo"
	"github.com/baxromumarov/immo-encheres/internal/scraper"
	"github.com/baxromumarov/immo-encheres/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := config.Load()

	pages := pflag.IntP("pages", "p", cfg.MaxPage, "number of result pages to walk")
	jsonPath := pflag.String("json", cfg.ListingsJSON, "JSON feed to merge into")
	noDB := pflag.Bool("no-db", false, "skip the postgres upsert")
	cleanup := pflag.Bool("cleanup", false, "delete stored listings whose sale date has passed, then exit")
	pflag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var listings core.ListingStore
	if !*noDB {
		dbStore, err := store.NewStore(cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to store", "error", err)
			os.Exit(1)
		}
		defer dbStore.Close()
		workDir, _ := os.Getwd()
		if err := dbStore.RunMigrations(filepath.Join(workDir, "internal", "store", "schema.sql")); err != nil {
			slog.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		listings = dbStore
	}

	if *cleanup {
		n, err := core.NewSchedulerService(nil, listings, 0).Cleanup(ctx)
		if err != nil {
			slog.Error("cleanup failed", "error", err)
			os.Exit(1)
		}
		slog.Info("cleanup done", "deleted", n)
		return
	}

	geoCache, err := geo.LoadCache(cfg.GeoCachePath)
	if err != nil {
		slog.Warn("geo cache unreadable, starting empty", "path", cfg.GeoCachePath, "error", err)
		geoCache = geo.NewCache()
	}
	defer func() {
		if err := geo.SaveCache(cfg.GeoCachePath, geoCache); err != nil {
			slog.Warn("failed to save geo cache", "error", err)
		}
	}()

	ingestion := core.NewIngestionService(scraper.FromConfig(cfg, geoCache), listings, *jsonPath, *pages)
	res, err := ingestion.Run(ctx)
	if err != nil {
		slog.Error("scrape failed", "error", err)
		os.Exit(1)
	}
	slog.Info("scrape done", "scraped", res.Scraped, "feed_total", res.Total, "saved", res.Upserted, "json", *jsonPath)
}
