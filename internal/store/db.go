package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/baxromumarov/immo-encheres/internal/contact"
	"github.com/baxromumarov/immo-encheres/internal/datefmt"
	"github.com/baxromumarov/immo-encheres/internal/listing"
	"github.com/baxromumarov/immo-encheres/internal/textutil"
)

var ErrNotFound = listing.ErrNotFound

type Store struct {
	db *sql.DB
}

func NewStore(connStr string) (*Store, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) RunMigrations(schemaPath string) error {
	content, err := os.ReadFile(schemaPath)
	if err != nil {
		return fmt.Errorf("failed to read schema file: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	return nil
}

const listingColumns = `
    id,
    number,
    lien,
    ville,
    description,
    texte,
    mise_a_prix,
    photo,
    date_visite,
    date_vente,
    adresse,
    latitude,
    longitude,
    heading,
    pitch,
    fov,
    additional_text,
    court,
    sous_lot,
    first_sous_lot,
    trusts`

type scanner interface {
	Scan(dest ...any) error
}

func scanListing(row scanner) (listing.Annonce, error) {
	var (
		a                   listing.Annonce
		heading, pitch, fov sql.NullFloat64
		trusts              pq.StringArray
	)
	if err := row.Scan(
		&a.ID,
		&a.Number,
		&a.Lien,
		&a.Ville,
		&a.Description,
		&a.Texte,
		&a.MiseAPrix,
		&a.Photo,
		&a.DateVisite,
		&a.DateVente,
		&a.Adresse,
		&a.Latitude,
		&a.Longitude,
		&heading,
		&pitch,
		&fov,
		&a.AdditionalText,
		&a.Court,
		&a.SousLot,
		&a.FirstSousLot,
		&trusts,
	); err != nil {
		return listing.Annonce{}, err
	}
	a.Heading = nullFloat(heading)
	a.Pitch = nullFloat(pitch)
	a.Fov = nullFloat(fov)
	a.Trusts = strings.Join(trusts, " | ")
	return a, nil
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

// All lists every stored listing in insertion order.
func (s *Store) All(ctx context.Context) ([]listing.Annonce, error) {
	return s.ListListings(ctx)
}

func (s *Store) ListListings(ctx context.Context) ([]listing.Annonce, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT`+listingColumns+`
FROM listings
ORDER BY id ASC
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []listing.Annonce{}
	for rows.Next() {
		a, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

func (s *Store) GetListing(ctx context.Context, id int) (listing.Annonce, error) {
	row := s.db.QueryRowContext(ctx, `SELECT`+listingColumns+`
FROM listings
WHERE id = $1
`, id)
	a, err := scanListing(row)
	if errors.Is(err, sql.ErrNoRows) {
		return listing.Annonce{}, ErrNotFound
	}
	return a, err
}

// UpsertListing stores a by its dedupe key. On conflict the longer texts win
// and empty columns are filled, mirroring listing.Merge.
func (s *Store) UpsertListing(ctx context.Context, a listing.Annonce) (int, error) {
	var prix sql.NullInt64
	if n, ok := listing.ParsePrice(a.MiseAPrix); ok {
		prix = sql.NullInt64{Int64: int64(n), Valid: true}
	}
	var saleDay sql.NullTime
	if d, ok := datefmt.ParseDay(a.DateVente, time.UTC); ok {
		saleDay = sql.NullTime{Time: d, Valid: true}
	}

	trusts := textutil.SplitPipe(a.Trusts)
	if trusts == nil {
		trusts = []string{}
	}

	var id int
	err := s.db.QueryRowContext(ctx, `
INSERT INTO listings (
    dedupe_key, number, lien, ville, description, texte, mise_a_prix, prix, photo,
    date_visite, date_vente, sale_day, adresse, latitude, longitude, heading, pitch, fov,
    additional_text, court, sous_lot, first_sous_lot, trusts
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
ON CONFLICT (dedupe_key) DO UPDATE SET
    number = COALESCE(NULLIF(listings.number, ''), EXCLUDED.number),
    lien = COALESCE(NULLIF(listings.lien, ''), EXCLUDED.lien),
    ville = COALESCE(NULLIF(listings.ville, ''), EXCLUDED.ville),
    description = COALESCE(NULLIF(listings.description, ''), EXCLUDED.description),
    texte = CASE WHEN length(EXCLUDED.texte) > length(listings.texte) THEN EXCLUDED.texte ELSE listings.texte END,
    mise_a_prix = COALESCE(NULLIF(listings.mise_a_prix, ''), EXCLUDED.mise_a_prix),
    prix = COALESCE(listings.prix, EXCLUDED.prix),
    photo = COALESCE(NULLIF(listings.photo, ''), EXCLUDED.photo),
    date_visite = COALESCE(NULLIF(listings.date_visite, ''), EXCLUDED.date_visite),
    date_vente = COALESCE(NULLIF(listings.date_vente, ''), EXCLUDED.date_vente),
    sale_day = COALESCE(listings.sale_day, EXCLUDED.sale_day),
    adresse = COALESCE(NULLIF(listings.adresse, ''), EXCLUDED.adresse),
    latitude = COALESCE(NULLIF(listings.latitude, ''), EXCLUDED.latitude),
    longitude = COALESCE(NULLIF(listings.longitude, ''), EXCLUDED.longitude),
    heading = COALESCE(listings.heading, EXCLUDED.heading),
    pitch = COALESCE(listings.pitch, EXCLUDED.pitch),
    fov = COALESCE(listings.fov, EXCLUDED.fov),
    additional_text = CASE WHEN length(EXCLUDED.additional_text) > length(listings.additional_text) THEN EXCLUDED.additional_text ELSE listings.additional_text END,
    court = COALESCE(NULLIF(listings.court, ''), EXCLUDED.court),
    sous_lot = COALESCE(NULLIF(listings.sous_lot, ''), EXCLUDED.sous_lot),
    first_sous_lot = COALESCE(NULLIF(listings.first_sous_lot, ''), EXCLUDED.first_sous_lot),
    trusts = CASE WHEN cardinality(listings.trusts) = 0 THEN EXCLUDED.trusts ELSE listings.trusts END,
    updated_at = NOW()
RETURNING id
`,
		a.DedupeKey(), a.Number, a.Lien, a.Ville, a.Description, a.Texte, a.MiseAPrix, prix, a.Photo,
		a.DateVisite, a.DateVente, saleDay, a.Adresse, a.Latitude, a.Longitude, a.Heading, a.Pitch, a.Fov,
		a.AdditionalText, a.Court, a.SousLot, a.FirstSousLot, pq.Array(trusts),
	).Scan(&id)
	return id, err
}

// DeleteListings removes the given ids and reports how many rows went.
func (s *Store) DeleteListings(ctx context.Context, ids []int) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	ids64 := make([]int64, len(ids))
	for i, id := range ids {
		ids64[i] = int64(id)
	}
	res, err := s.db.ExecContext(ctx, `
DELETE FROM listings
WHERE id = ANY($1)
`, pq.Array(ids64))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) SaveContact(ctx context.Context, sub contact.Submission) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
INSERT INTO contact_submissions (deja_achete, deja_visite, nom, avocat, budget, email, phone, source, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
RETURNING id
`, sub.DejaAchete, sub.DejaVisite, sub.Nom, sub.Avocat, sub.Budget, sub.Email, sub.Phone, sub.Source).Scan(&id)
	return id, err
}

func (s *Store) CountContacts(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contact_submissions`).Scan(&n)
	return n, err
}
