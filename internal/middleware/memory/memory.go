// Package memory contains in-memory ttl storage for cached responses.
package memory

import (
	"sync"
	"time"
)

type item struct {
	content    []byte
	expiration time.Time
}

// Storage ...
type Storage struct {
	mu    sync.RWMutex
	items map[string]item
	now   func() time.Time
}

// NewStorage ...
func NewStorage() *Storage {
	return &Storage{
		items: map[string]item{},
		now:   time.Now,
	}
}

// Get returns nil if key is missing or expired.
func (s *Storage) Get(key string) []byte {
	s.mu.RLock()
	v, ok := s.items[key]
	s.mu.RUnlock()

	if !ok {
		return nil
	}

	if s.now().After(v.expiration) {
		s.mu.Lock()
		delete(s.items, key)
		s.mu.Unlock()
		return nil
	}

	return v.content
}

// Set ...
func (s *Storage) Set(key string, content []byte, duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[key] = item{
		content:    content,
		expiration: s.now().Add(duration),
	}
}
