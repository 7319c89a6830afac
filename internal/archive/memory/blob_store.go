// Package memory keeps archived pages in-memory for development and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/JakeFAU/salmon-harvest-scraper/internal/harvest"
)

// BlobStore holds one page per PageKey and returns memory:// URIs.
type BlobStore struct {
	prefix string
	mu     sync.RWMutex
	pages  map[string][]byte
}

// NewBlobStore creates an empty archive keying pages under prefix.
func NewBlobStore(prefix string) *BlobStore {
	return &BlobStore{prefix: prefix, pages: make(map[string][]byte)}
}

// PutPage stores html for rec, replacing any earlier page for the date.
func (s *BlobStore) PutPage(_ context.Context, rec harvest.DailyHarvestRecord, html string) (string, error) {
	key, err := harvest.PageKey(s.prefix, rec)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[key] = []byte(html)
	return "memory://" + key, nil
}

// Get returns the page stored under key.
func (s *BlobStore) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.pages[key]
	return data, ok
}

// Paths lists stored keys in lexical order.
func (s *BlobStore) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.pages))
	for p := range s.pages {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
