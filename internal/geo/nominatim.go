package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

const DefaultNominatimURL = "https://nominatim.openstreetmap.org"

type Result struct {
	Lat   float64
	Lng   float64
	Found bool
}

type Geocoder interface {
	Geocode(ctx context.Context, query string) (Result, error)
}

type Nominatim struct {
	baseURL     string
	httpClient  *http.Client
	userAgent   string
	minInterval time.Duration
	mu          sync.Mutex
	lastRequest time.Time
}

type NominatimOption func(*Nominatim)

func WithBaseURL(baseURL string) NominatimOption {
	return func(n *Nominatim) {
		if strings.TrimSpace(baseURL) != "" {
			n.baseURL = baseURL
		}
	}
}

func WithHTTPClient(client *http.Client) NominatimOption {
	return func(n *Nominatim) {
		if client != nil {
			n.httpClient = client
		}
	}
}

func WithUserAgent(userAgent string) NominatimOption {
	return func(n *Nominatim) {
		n.userAgent = userAgent
	}
}

func WithMinInterval(interval time.Duration) NominatimOption {
	return func(n *Nominatim) {
		n.minInterval = interval
	}
}

func NewNominatim(opts ...NominatimOption) *Nominatim {
	n := &Nominatim{
		baseURL:     DefaultNominatimURL,
		httpClient:  http.DefaultClient,
		userAgent:   "immo-encheres-geocoder/1.0",
		minInterval: 1 * time.Second,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Geocode resolves a free-form French address, restricted to France.
func (n *Nominatim) Geocode(ctx context.Context, query string) (Result, error) {
	if strings.TrimSpace(query) == "" {
		return Result{Found: false}, nil
	}
	if n == nil {
		return Result{}, errors.New("geo: nominatim is nil")
	}

	if err := n.waitRateLimit(ctx); err != nil {
		return Result{}, err
	}

	endpoint := strings.TrimRight(n.baseURL, "/") + "/search"
	params := url.Values{}
	params.Set("format", "json")
	params.Set("limit", "1")
	params.Set("countrycodes", "fr")
	params.Set("q", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Result{}, err
	}
	req.URL.RawQuery = params.Encode()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", "fr")
	if strings.TrimSpace(n.userAgent) != "" {
		req.Header.Set("User-Agent", n.userAgent)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("geocode: status %d", resp.StatusCode)
	}

	var results []struct {
		Lat string `json:"lat"`
		Lon string `json:"lon"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return Result{}, err
	}
	if len(results) == 0 {
		return Result{Found: false}, nil
	}
	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return Result{}, err
	}
	lng, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return Result{}, err
	}
	return Result{Lat: lat, Lng: lng, Found: true}, nil
}

func (n *Nominatim) waitRateLimit(ctx context.Context) error {
	if n.minInterval <= 0 {
		return nil
	}
	n.mu.Lock()
	now := time.Now()
	next := n.lastRequest.Add(n.minInterval)
	if !next.After(now) {
		n.lastRequest = now
		n.mu.Unlock()
		return nil
	}
	n.lastRequest = next
	n.mu.Unlock()
	timer := time.NewTimer(time.Until(next))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Resolver puts a Cache in front of a Geocoder.
type Resolver struct {
	geocoder Geocoder
	cache    *Cache
	now      func() time.Time
}

func NewResolver(geocoder Geocoder, cache *Cache) *Resolver {
	return &Resolver{
		geocoder: geocoder,
		cache:    cache,
		now:      time.Now,
	}
}

// Resolve returns the cached result when present; cached reports which path was taken.
func (r *Resolver) Resolve(ctx context.Context, query string) (result Result, cached bool, err error) {
	if r == nil || r.geocoder == nil {
		return Result{Found: false}, false, nil
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return Result{Found: false}, false, nil
	}
	key := "geocode:" + query
	if entry, ok := r.cache.Get(key); ok {
		return Result{Lat: entry.Lat, Lng: entry.Lng, Found: entry.Found}, true, nil
	}
	result, err = r.geocoder.Geocode(ctx, query)
	if err != nil {
		return Result{}, false, err
	}
	r.cache.Set(key, CacheEntry{
		Lat:       result.Lat,
		Lng:       result.Lng,
		Found:     result.Found,
		UpdatedAt: r.now(),
	})
	return result, false, nil
}
