package core

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/baxromumarov/immo-encheres/internal/listing"
	"github.com/baxromumarov/immo-encheres/internal/observability"
)

// Scraper produces the listings currently on sale.
type Scraper interface {
	Scrape(ctx context.Context, maxPage int) ([]listing.Annonce, error)
}

// ListingStore is the persistence the ingestion and the cleanup need.
type ListingStore interface {
	UpsertListing(ctx context.Context, a listing.Annonce) (int, error)
	ListListings(ctx context.Context) ([]listing.Annonce, error)
	DeleteListings(ctx context.Context, ids []int) (int64, error)
}

// RunResult summarises one ingestion run.
type RunResult struct {
	Scraped  int
	Total    int
	Upserted int
}

type IngestionService struct {
	scraper  Scraper
	store    ListingStore
	jsonPath string
	maxPage  int
}

// NewIngestionService wires a scraper to the JSON feed at jsonPath and, when
// store is non-nil, to postgres.
func NewIngestionService(scraper Scraper, store ListingStore, jsonPath string, maxPage int) *IngestionService {
	return &IngestionService{
		scraper:  scraper,
		store:    store,
		jsonPath: jsonPath,
		maxPage:  max(maxPage, 1),
	}
}

// Run scrapes once, merges the result into the JSON feed and upserts every
// listing. A scrape that returned nothing leaves the feed untouched.
func (s *IngestionService) Run(ctx context.Context) (RunResult, error) {
	start := time.Now()
	var res RunResult

	fresh, err := s.scraper.Scrape(ctx, s.maxPage)
	if err != nil && len(fresh) == 0 {
		return res, fmt.Errorf("scrape: %w", err)
	}
	if err != nil {
		log.Printf("Ingestion: scrape interrupted after %d listings: %v", len(fresh), err)
	}
	res.Scraped = len(fresh)
	if len(fresh) == 0 {
		log.Printf("Ingestion: no listing scraped, keeping %s", s.jsonPath)
		return res, nil
	}

	existing, err := listing.ReadFile(s.jsonPath)
	if err != nil {
		observability.IncError(observability.ClassifyScrapeError(err), "ingestion")
		return res, err
	}
	merged := listing.MergeAll(existing, fresh)
	for i := range merged {
		merged[i].ID = i
	}
	if err := listing.WriteFile(s.jsonPath, merged); err != nil {
		return res, fmt.Errorf("write %s: %w", s.jsonPath, err)
	}
	res.Total = len(merged)

	if s.store != nil {
		for _, a := range merged {
			if _, err := s.store.UpsertListing(ctx, a); err != nil {
				observability.IncError(observability.ErrorStore, "ingestion")
				log.Printf("Ingestion: failed to save listing %s: %v", a.DedupeKey(), err)
				continue
			}
			res.Upserted++
		}
	}

	observability.ObserveScrape(time.Since(start), time.Now())
	log.Printf("Ingestion: %d scraped, %d in feed, %d saved", res.Scraped, res.Total, res.Upserted)
	return res, nil
}
