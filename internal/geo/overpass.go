package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultOverpassURL = "https://overpass-api.de/api/interpreter"
	// roadRadius is how far around a listing to look for a road, in meters.
	roadRadius = 60
	// negativeTTL bounds how long a "no road nearby" answer is reused.
	negativeTTL = 24 * time.Hour
)

// Viewpoint is a spot on the nearest road from which to look at a listing.
type Viewpoint struct {
	Lat     float64
	Lon     float64
	Heading float64
}

type Overpass struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
	timeout    time.Duration
	cache      *Cache
	now        func() time.Time
}

type OverpassOption func(*Overpass)

func WithOverpassURL(baseURL string) OverpassOption {
	return func(o *Overpass) {
		if strings.TrimSpace(baseURL) != "" {
			o.baseURL = baseURL
		}
	}
}

func WithOverpassClient(client *http.Client) OverpassOption {
	return func(o *Overpass) {
		if client != nil {
			o.httpClient = client
		}
	}
}

func WithOverpassCache(cache *Cache) OverpassOption {
	return func(o *Overpass) {
		o.cache = cache
	}
}

func WithOverpassTimeout(d time.Duration) OverpassOption {
	return func(o *Overpass) {
		if d > 0 {
			o.timeout = d
		}
	}
}

func NewOverpass(opts ...OverpassOption) *Overpass {
	o := &Overpass{
		baseURL:    DefaultOverpassURL,
		httpClient: http.DefaultClient,
		userAgent:  "immo-encheres/1.0",
		timeout:    8 * time.Second,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type overpassResponse struct {
	Elements []struct {
		Type  string  `json:"type"`
		ID    int64   `json:"id"`
		Lat   float64 `json:"lat"`
		Lon   float64 `json:"lon"`
		Nodes []int64 `json:"nodes"`
	} `json:"elements"`
}

// NearestViewpoint looks for highway segments around (lat, lon) and returns the
// midpoint of the closest one, facing along the segment. found is false when
// no road is mapped nearby.
func (o *Overpass) NearestViewpoint(ctx context.Context, lat, lon float64) (Viewpoint, bool, error) {
	if o == nil {
		return Viewpoint{}, false, errors.New("geo: overpass is nil")
	}
	key := fmt.Sprintf("viewpoint:%.6f,%.6f", lat, lon)
	if entry, ok := o.cache.Get(key); ok && (entry.Found || o.now().Sub(entry.UpdatedAt) < negativeTTL) {
		return Viewpoint{Lat: entry.Lat, Lon: entry.Lng, Heading: entry.Heading}, entry.Found, nil
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	q := fmt.Sprintf(`[out:json];way(around:%d,%f,%f)["highway"];(._;>;);out body;`, roadRadius, lat, lon)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL, nil)
	if err != nil {
		return Viewpoint{}, false, err
	}
	req.URL.RawQuery = url.Values{"data": {q}}.Encode()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", o.userAgent)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return Viewpoint{}, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Viewpoint{}, false, fmt.Errorf("overpass: status %d", resp.StatusCode)
	}

	var payload overpassResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Viewpoint{}, false, fmt.Errorf("overpass: decode failed: %w", err)
	}

	vp, found := nearestSegment(payload, lat, lon)
	o.cache.Set(key, CacheEntry{
		Lat:       vp.Lat,
		Lng:       vp.Lon,
		Heading:   vp.Heading,
		Found:     found,
		UpdatedAt: o.now(),
	})
	return vp, found, nil
}

func nearestSegment(payload overpassResponse, lat, lon float64) (Viewpoint, bool) {
	type point struct{ lat, lon float64 }
	nodes := make(map[int64]point)
	for _, el := range payload.Elements {
		if el.Type == "node" {
			nodes[el.ID] = point{el.Lat, el.Lon}
		}
	}

	best := math.Inf(1)
	var vp Viewpoint
	found := false
	for _, el := range payload.Elements {
		if el.Type != "way" {
			continue
		}
		for i := 0; i+1 < len(el.Nodes); i++ {
			n1, ok1 := nodes[el.Nodes[i]]
			n2, ok2 := nodes[el.Nodes[i+1]]
			if !ok1 || !ok2 {
				continue
			}
			midLat := (n1.lat + n2.lat) / 2
			midLon := (n1.lon + n2.lon) / 2
			if d := Dist2(lat, lon, midLat, midLon); d < best {
				best = d
				vp = Viewpoint{
					Lat:     midLat,
					Lon:     midLon,
					Heading: math.Round(Bearing(n1.lat, n1.lon, n2.lat, n2.lon)),
				}
				found = true
			}
		}
	}
	if !found {
		return Viewpoint{Lat: lat, Lon: lon}, false
	}
	return vp, true
}
