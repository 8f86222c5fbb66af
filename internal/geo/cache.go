package geo

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

type CacheEntry struct {
	Query     string    `json:"query"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Heading   float64   `json:"heading,omitempty"`
	Found     bool      `json:"found"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Cache remembers geocoding and viewpoint lookups between runs. It is safe for
// concurrent use.
type Cache struct {
	mu      sync.Mutex
	Entries map[string]CacheEntry `json:"entries"`
}

func NewCache() *Cache {
	return &Cache{Entries: map[string]CacheEntry{}}
}

func LoadCache(path string) (*Cache, error) {
	if strings.TrimSpace(path) == "" {
		return NewCache(), nil
	}
	payload, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewCache(), nil
		}
		return nil, err
	}
	cache := NewCache()
	if err := json.Unmarshal(payload, cache); err != nil {
		return nil, err
	}
	if cache.Entries == nil {
		cache.Entries = map[string]CacheEntry{}
	}
	return cache, nil
}

func SaveCache(path string, cache *Cache) error {
	if cache == nil || strings.TrimSpace(path) == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	cache.mu.Lock()
	payload, err := json.Marshal(cache)
	cache.mu.Unlock()
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(payload, '\n'), 0o644)
}

func (c *Cache) Get(query string) (CacheEntry, bool) {
	if c == nil {
		return CacheEntry{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.Entries[normalizeQuery(query)]
	return entry, ok
}

func (c *Cache) Set(query string, entry CacheEntry) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Entries == nil {
		c.Entries = map[string]CacheEntry{}
	}
	entry.Query = query
	c.Entries[normalizeQuery(query)] = entry
}

func normalizeQuery(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}
