package core

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/baxromumarov/immo-encheres/internal/listing"
)

type fakeScraper struct {
	list []listing.Annonce
	err  error
	max  int
}

func (f *fakeScraper) Scrape(_ context.Context, maxPage int) ([]listing.Annonce, error) {
	f.max = maxPage
	return f.list, f.err
}

type fakeStore struct {
	saved   []listing.Annonce
	stored  []listing.Annonce
	deleted []int
	failOn  string
}

func (f *fakeStore) UpsertListing(_ context.Context, a listing.Annonce) (int, error) {
	if a.Number != "" && a.Number == f.failOn {
		return 0, errors.New("boom")
	}
	f.saved = append(f.saved, a)
	return len(f.saved), nil
}

func (f *fakeStore) ListListings(context.Context) ([]listing.Annonce, error) {
	return f.stored, nil
}

func (f *fakeStore) DeleteListings(_ context.Context, ids []int) (int64, error) {
	f.deleted = append(f.deleted, ids...)
	return int64(len(ids)), nil
}

func TestIngestionMergesIntoFeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.json")
	existing := []listing.Annonce{
		{Number: "1", Ville: "Paris", Texte: "court"},
		{Number: "2", Ville: "Évry"},
	}
	if err := listing.WriteFile(path, existing); err != nil {
		t.Fatal(err)
	}

	scr := &fakeScraper{list: []listing.Annonce{
		{Number: "1", Texte: "un texte bien plus long", Adresse: "1 rue X"},
		{Number: "3", Ville: "Créteil"},
	}}
	st := &fakeStore{failOn: "3"}
	svc := NewIngestionService(scr, st, path, 0)

	res, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if scr.max != 1 {
		t.Fatalf("maxPage should be at least 1, got %d", scr.max)
	}
	if res.Scraped != 2 || res.Total != 3 || res.Upserted != 2 {
		t.Fatalf("result = %+v", res)
	}

	feed, err := listing.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(feed) != 3 {
		t.Fatalf("feed has %d listings", len(feed))
	}
	first := feed[0]
	if first.Ville != "Paris" || first.Texte != "un texte bien plus long" || first.Adresse != "1 rue X" {
		t.Fatalf("merged = %+v", first)
	}
	if feed[2].ID != 2 || feed[2].Ville != "Créteil" {
		t.Fatalf("appended = %+v", feed[2])
	}
}

func TestIngestionKeepsFeedOnEmptyScrape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.json")
	if err := listing.WriteFile(path, []listing.Annonce{{Number: "1"}}); err != nil {
		t.Fatal(err)
	}
	svc := NewIngestionService(&fakeScraper{err: errors.New("offline")}, nil, path, 3)
	if _, err := svc.Run(context.Background()); err == nil {
		t.Fatal("expected the scrape error")
	}

	svc = NewIngestionService(&fakeScraper{}, nil, path, 3)
	res, err := svc.Run(context.Background())
	if err != nil || res.Scraped != 0 {
		t.Fatalf("Run = %+v, %v", res, err)
	}
	feed, _ := listing.ReadFile(path)
	if len(feed) != 1 {
		t.Fatalf("feed should be untouched, got %d listings", len(feed))
	}
}

func TestCleanupDeletesPastSales(t *testing.T) {
	st := &fakeStore{stored: []listing.Annonce{
		{ID: 1, DateVente: "jeudi 16 octobre 2026 à 14h"},
		{ID: 2, DateVente: "lundi 19 octobre 2026 à 14h"},
		{ID: 3, DateVente: "date à préciser"},
		{ID: 4, DateVente: "12/01/2025"},
		{ID: 5, DateVente: "3 novembre 2026"},
	}}
	s := NewSchedulerService(nil, st, 0)
	s.now = func() time.Time { return time.Date(2026, 10, 19, 18, 0, 0, 0, time.UTC) }

	n, err := s.Cleanup(context.Background())
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if n != 2 || !slices.Equal(st.deleted, []int{1, 4}) {
		t.Fatalf("deleted %d: %v", n, st.deleted)
	}
}

func TestCleanupWithoutStore(t *testing.T) {
	s := NewSchedulerService(nil, nil, time.Minute)
	if n, err := s.Cleanup(context.Background()); n != 0 || err != nil {
		t.Fatalf("Cleanup = %d, %v", n, err)
	}
}
