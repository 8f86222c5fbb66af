package core

import (
	"context"
	"log"
	"time"

	"github.com/baxromumarov/immo-encheres/internal/datefmt"
	"github.com/baxromumarov/immo-encheres/internal/observability"
)

type SchedulerService struct {
	ingestion   *IngestionService
	store       ListingStore
	scrapeEvery time.Duration
	now         func() time.Time
}

// NewSchedulerService runs ingestion every scrapeEvery (never when zero) and
// prunes past sales from store once a day.
func NewSchedulerService(ingestion *IngestionService, store ListingStore, scrapeEvery time.Duration) *SchedulerService {
	return &SchedulerService{
		ingestion:   ingestion,
		store:       store,
		scrapeEvery: scrapeEvery,
		now:         time.Now,
	}
}

func (s *SchedulerService) Start(ctx context.Context) {
	if s.ingestion != nil && s.scrapeEvery > 0 {
		go s.scrapeLoop(ctx)
	}
	if s.store != nil {
		go s.runRetentionPolicy(ctx)
	}
}

func (s *SchedulerService) scrapeLoop(ctx context.Context) {
	ticker := time.NewTicker(s.scrapeEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.ingestion.Run(ctx); err != nil {
				log.Printf("Scheduler: scrape failed: %v", err)
			}
		}
	}
}

func (s *SchedulerService) runRetentionPolicy(ctx context.Context) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	s.cleanupAndLog(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cleanupAndLog(ctx)
		}
	}
}

func (s *SchedulerService) cleanupAndLog(ctx context.Context) {
	count, err := s.Cleanup(ctx)
	if err != nil {
		log.Printf("Retention Policy: Failed to cleanup past sales: %v", err)
		return
	}
	log.Printf("Retention Policy: Deleted %d past sales", count)
}

// Cleanup deletes the stored listings whose sale date has passed. Listings
// without a readable date are kept.
func (s *SchedulerService) Cleanup(ctx context.Context) (int64, error) {
	if s.store == nil {
		return 0, nil
	}
	list, err := s.store.ListListings(ctx)
	if err != nil {
		observability.IncError(observability.ErrorStore, "cleanup")
		return 0, err
	}
	now := s.now()
	var ids []int
	for _, a := range list {
		if !datefmt.IsUpcoming(a.DateVente, now) {
			ids = append(ids, a.ID)
		}
	}
	n, err := s.store.DeleteListings(ctx, ids)
	if err != nil {
		observability.IncError(observability.ErrorStore, "cleanup")
		return 0, err
	}
	observability.AddListingsRemoved(n)
	return n, nil
}
