// Package cache holds computed contour sets for the lifetime of the process.
package cache

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/couchcryptid/ocean-contour-service/internal/domain"
)

// Store is a write-once map from key to contour set. Entries are never
// replaced or removed, so a pointer read from the store can be shared
// without copying. It is safe for concurrent use.
type Store struct {
	entries sync.Map // domain.Key -> *domain.ContourSet
	size    atomic.Int64
}

// New creates an empty store.
func New() *Store {
	return &Store{}
}

// Insert stores set under its key unless the key is already present. It
// returns the entry that is stored after the call and whether set was the
// one inserted.
func (s *Store) Insert(set *domain.ContourSet) (*domain.ContourSet, bool) {
	actual, loaded := s.entries.LoadOrStore(set.Key, set)
	if !loaded {
		s.size.Add(1)
	}
	return actual.(*domain.ContourSet), !loaded
}

// Get returns the entry for key.
func (s *Store) Get(key domain.Key) (*domain.ContourSet, bool) {
	v, ok := s.entries.Load(key)
	if !ok {
		return nil, false
	}
	return v.(*domain.ContourSet), true
}

// Len returns the number of entries.
func (s *Store) Len() int { return int(s.size.Load()) }

// Sets returns every entry ordered by key.
func (s *Store) Sets() []*domain.ContourSet {
	var out []*domain.ContourSet
	s.entries.Range(func(_, v any) bool {
		out = append(out, v.(*domain.ContourSet))
		return true
	})
	slices.SortFunc(out, func(a, b *domain.ContourSet) int {
		switch {
		case a.Key.Less(b.Key):
			return -1
		case b.Key.Less(a.Key):
			return 1
		}
		return 0
	})
	return out
}
