package contact

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileStore appends submissions as JSON lines. The server uses it when no
// database is configured.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// SaveContact appends s and returns its 1-based line number as id.
func (fs *FileStore) SaveContact(ctx context.Context, s Submission) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(fs.path), 0o755); err != nil {
		return 0, err
	}
	n, err := fs.countLocked()
	if err != nil {
		return 0, err
	}
	s.ID = n + 1
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	line, err := json.Marshal(s)
	if err != nil {
		return 0, err
	}

	f, err := os.OpenFile(fs.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", fs.path, err)
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return 0, err
	}
	return s.ID, nil
}

// CountContacts reports how many submissions the file holds.
func (fs *FileStore) CountContacts(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.countLocked()
}

func (fs *FileStore) countLocked() (int64, error) {
	f, err := os.Open(fs.path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var n int64
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	for sc.Scan() {
		if len(sc.Bytes()) > 0 {
			n++
		}
	}
	return n, sc.Err()
}
