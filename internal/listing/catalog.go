package listing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ErrNotFound is returned when a listing id is unknown.
var ErrNotFound = errors.New("listing not found")

// Catalog is where the server reads listings from.
type Catalog interface {
	All(ctx context.Context) ([]Annonce, error)
}

// FileCatalog serves the JSON feed written by the scraper. The file is re-read
// when its modification time changes. IDs are positions in the feed.
type FileCatalog struct {
	path string

	mu      sync.Mutex
	modTime time.Time
	cached  []Annonce
}

func NewFileCatalog(path string) *FileCatalog {
	return &FileCatalog{path: path}
}

func (c *FileCatalog) Path() string { return c.path }

func (c *FileCatalog) All(ctx context.Context) ([]Annonce, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info, err := os.Stat(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Annonce{}, nil
		}
		return nil, fmt.Errorf("stat %s: %w", c.path, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cached != nil && info.ModTime().Equal(c.modTime) {
		return c.cached, nil
	}

	list, err := ReadFile(c.path)
	if err != nil {
		return nil, err
	}
	c.cached = list
	c.modTime = info.ModTime()
	return list, nil
}

// Find returns the listing with the given id.
func Find(list []Annonce, id int) (Annonce, bool) {
	for _, a := range list {
		if a.ID == id {
			return a, true
		}
	}
	return Annonce{}, false
}

// ReadFile decodes a JSON feed and numbers its entries.
func ReadFile(path string) ([]Annonce, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Annonce{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var list []Annonce
	if err := json.Unmarshal(payload, &list); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	for i := range list {
		list[i].ID = i
	}
	if list == nil {
		list = []Annonce{}
	}
	return list, nil
}

// WriteFile stores list as an indented JSON feed, replacing path atomically.
func WriteFile(path string, list []Annonce) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	payload, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
