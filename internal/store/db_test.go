package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/baxromumarov/immo-encheres/internal/contact"
	"github.com/baxromumarov/immo-encheres/internal/listing"
)

// openTestStore connects to TEST_DATABASE_URL and applies the schema. Tests
// are skipped when it is not set.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	s, err := NewStore(dsn)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	_, file, _, _ := runtime.Caller(0)
	if err := s.RunMigrations(filepath.Join(filepath.Dir(file), "schema.sql")); err != nil {
		t.Fatalf("RunMigrations: %v", err)
	}
	if _, err := s.db.Exec(`TRUNCATE listings, contact_submissions RESTART IDENTITY`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return s
}

func TestUpsertListingMerges(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.UpsertListing(ctx, listing.Annonce{
		Number: "104512", Ville: "Paris", Texte: "court", MiseAPrix: "150 000 €",
		DateVente: "mardi 2 décembre 2025 à 14h", Trusts: "Maître A | Maître B",
	})
	if err != nil {
		t.Fatalf("UpsertListing: %v", err)
	}
	again, err := s.UpsertListing(ctx, listing.Annonce{
		Number: "104512", Ville: "Ignorée", Texte: "un texte bien plus long", Adresse: "12 rue de Rivoli",
	})
	if err != nil {
		t.Fatalf("UpsertListing: %v", err)
	}
	if again != id {
		t.Fatalf("dedupe key not honoured: %d != %d", again, id)
	}

	a, err := s.GetListing(ctx, id)
	if err != nil {
		t.Fatalf("GetListing: %v", err)
	}
	if a.Ville != "Paris" || a.Texte != "un texte bien plus long" || a.Adresse != "12 rue de Rivoli" {
		t.Fatalf("merged = %+v", a)
	}
	if a.Trusts != "Maître A | Maître B" {
		t.Fatalf("trusts = %q", a.Trusts)
	}

	n, err := s.DeleteListings(ctx, []int{id, id + 100})
	if err != nil || n != 1 {
		t.Fatalf("DeleteListings = %d, %v", n, err)
	}
	if _, err := s.GetListing(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveContact(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.SaveContact(ctx, contact.Submission{Nom: "Jeanne", Budget: 250000, Source: "questionnaire"})
	if err != nil {
		t.Fatalf("SaveContact: %v", err)
	}
	if id <= 0 {
		t.Fatalf("id = %d", id)
	}
	if n, err := s.CountContacts(ctx); err != nil || n != 1 {
		t.Fatalf("CountContacts = %d, %v", n, err)
	}
}
