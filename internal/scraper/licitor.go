package scraper

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/baxromumarov/immo-encheres/internal/geo"
	"github.com/baxromumarov/immo-encheres/internal/httpx"
	"github.com/baxromumarov/immo-encheres/internal/listing"
	"github.com/baxromumarov/immo-encheres/internal/observability"
	"github.com/baxromumarov/immo-encheres/internal/textutil"
	"github.com/baxromumarov/immo-encheres/internal/urlutil"
)

// Card is one entry of a results page.
type Card struct {
	Ville       string
	Description string
	Texte       string
	MiseAPrix   string
	Link        string
}

// Licitor scrapes the upcoming sales of licitor.com.
type Licitor struct {
	BaseURL string

	fetcher  *httpx.Fetcher
	photos   *httpx.PoliteClient
	photoDir string
	// photoPrefix is the public URL path of photoDir.
	photoPrefix string
	geocoder    *geo.Resolver
}

type Option func(*Licitor)

func WithBaseURL(base string) Option {
	return func(l *Licitor) {
		if base != "" {
			l.BaseURL = strings.TrimRight(base, "/")
		}
	}
}

// WithPhotoDownloads stores main photos under dir, served at prefix.
func WithPhotoDownloads(client *httpx.PoliteClient, dir, prefix string) Option {
	return func(l *Licitor) {
		l.photos = client
		l.photoDir = dir
		l.photoPrefix = strings.TrimRight(prefix, "/")
	}
}

// WithGeocoder fills missing coordinates from the address.
func WithGeocoder(r *geo.Resolver) Option {
	return func(l *Licitor) { l.geocoder = r }
}

func NewLicitor(fetcher *httpx.Fetcher, opts ...Option) *Licitor {
	l := &Licitor{
		BaseURL: urlutil.LicitorBase,
		fetcher: fetcher,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// FetchPage returns the cards of results page n.
func (l *Licitor) FetchPage(ctx context.Context, n int) ([]Card, error) {
	pageURL := urlutil.ResultsPage(l.BaseURL, n)
	base, _ := url.Parse(pageURL)

	var cards []Card
	_, err := l.fetcher.FetchHTML(ctx, pageURL, map[string]colly.HTMLCallback{
		"ul.AdResults > li": func(e *colly.HTMLElement) {
			card := Card{
				Ville:       textutil.CityName(JoinedText(e.DOM.Find(".City").First(), " ")),
				Description: JoinedText(e.DOM.Find(".Name").First(), " "),
				Texte:       JoinedText(e.DOM.Find(".Text").First(), " "),
				MiseAPrix:   JoinedText(e.DOM.Find(".PriceNumber").First(), " "),
			}
			if href, ok := e.DOM.Find("a.Ad").First().Attr("href"); ok {
				card.Link = urlutil.Resolve(base, href)
			}
			cards = append(cards, card)
		},
	})
	if err != nil {
		observability.IncError(observability.ClassifyFetchError(err), "scraper_licitor")
		return nil, fmt.Errorf("results page %d: %w", n, err)
	}
	observability.IncPagesCrawled()
	return cards, nil
}

// FetchDetail downloads and parses one detail page.
func (l *Licitor) FetchDetail(ctx context.Context, detailURL string) (DetailFields, error) {
	body, _, err := l.fetcher.FetchBytes(ctx, detailURL)
	if err != nil {
		observability.IncError(observability.ClassifyFetchError(err), "scraper_licitor")
		return DetailFields{Lien: detailURL}, err
	}
	observability.IncPagesCrawled()

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		observability.IncError(observability.ErrorParsing, "scraper_licitor")
		return DetailFields{Lien: detailURL}, fmt.Errorf("parse failed for %s: %w", detailURL, err)
	}
	return ParseDetail(doc, string(body), detailURL), nil
}

// Scrape walks results pages 1..maxPage and returns one listing per card.
// Failed pages and detail pages are logged and skipped. The walk stops early on
// the first empty page.
func (l *Licitor) Scrape(ctx context.Context, maxPage int) ([]listing.Annonce, error) {
	var out []listing.Annonce
	for page := 1; page <= max(maxPage, 1); page++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		cards, err := l.FetchPage(ctx, page)
		if err != nil {
			log.Printf("Scraper: %v", err)
			continue
		}
		if len(cards) == 0 {
			log.Printf("Scraper: page %d is empty, stopping", page)
			break
		}
		for _, card := range cards {
			out = append(out, l.buildAnnonce(ctx, card))
		}
		observability.AddListingsScraped(len(cards))
		log.Printf("Scraper: page %d done, %d listings", page, len(cards))
	}
	return out, nil
}

func (l *Licitor) buildAnnonce(ctx context.Context, card Card) listing.Annonce {
	a := listing.Annonce{
		Ville:       card.Ville,
		Description: card.Description,
		Texte:       card.Texte,
		MiseAPrix:   card.MiseAPrix,
		Lien:        card.Link,
	}
	if !urlutil.IsListingDetail(card.Link) {
		return a
	}

	d, err := l.FetchDetail(ctx, card.Link)
	if err != nil {
		log.Printf("Scraper: detail page %s: %v", card.Link, err)
		return a
	}

	a.Adresse = d.Adresse
	a.DateVisite = d.DateVisite
	a.DateVente = d.DateVente
	a.Latitude, a.Longitude = d.Latitude, d.Longitude
	if d.Texte != "" {
		a.Texte = d.Texte
	}
	a.AdditionalText = d.AdditionalText
	a.Court = d.Court
	a.SousLot = d.SousLot
	a.FirstSousLot = d.FirstSousLot
	a.Trusts = d.Trusts
	a.Number = d.Number
	a.Photo = l.photo(ctx, d.PhotoURL, d.Number)

	if a.Latitude == "" && a.Longitude == "" {
		l.geocode(ctx, &a)
	}
	return a
}

// photo downloads the main photo when downloads are enabled. On failure the
// remote URL is kept.
func (l *Licitor) photo(ctx context.Context, remote, number string) string {
	if remote == "" || l.photos == nil || l.photoDir == "" {
		return remote
	}
	// only images served by the auction site itself are mirrored
	if !urlutil.SameSite(hostOf(remote), hostOf(l.BaseURL)) || !urlutil.IsImage(remote) {
		return remote
	}
	name := number
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(remote), filepath.Ext(remote))
	}
	path, err := l.photos.Download(ctx, remote, l.photoDir, name)
	if err != nil {
		observability.IncError(observability.ClassifyFetchError(err), "scraper_photo")
		log.Printf("Scraper: photo %s: %v", remote, err)
		return remote
	}
	return l.photoPrefix + "/" + filepath.Base(path)
}

func (l *Licitor) geocode(ctx context.Context, a *listing.Annonce) {
	if l.geocoder == nil || strings.TrimSpace(a.Adresse) == "" {
		return
	}
	query := a.Adresse
	if a.Ville != "" && !strings.Contains(textutil.Fold(a.Adresse), textutil.Fold(a.Ville)) {
		query += ", " + a.Ville
	}
	res, cached, err := l.geocoder.Resolve(ctx, query)
	if !cached {
		observability.IncGeocodeLookup()
	}
	if err != nil {
		observability.IncError(observability.ClassifyFetchError(err), "scraper_geocode")
		log.Printf("Scraper: geocode %q: %v", query, err)
		return
	}
	if !res.Found {
		return
	}
	a.Latitude = fmt.Sprintf("%.6f", res.Lat)
	a.Longitude = fmt.Sprintf("%.6f", res.Lng)
}
