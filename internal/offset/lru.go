package offset

import (
	"fmt"
	"math"

	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog/log"
)

// DefaultCapacity is the number of logical files tracked before the least
// recently used offsets are evicted.
const DefaultCapacity = math.MaxUint16

// LRUStore implements Store on top of a bounded LRU cache.
// Both Get and Set count as a use of the key.
type LRUStore struct {
	cache    *lru.Cache
	capacity int
}

var _ Store = (*LRUStore)(nil)

// NewLRUStore creates a store holding at most capacity offsets
func NewLRUStore(capacity int) (*LRUStore, error) {
	cache, err := lru.NewWithEvict(capacity, func(key, value interface{}) {
		log.Debug().
			Interface("key", key).
			Interface("offset", value).
			Msg("Offset evicted")
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create offset cache (capacity %d): %w", capacity, err)
	}

	log.Debug().
		Int("capacity", capacity).
		Msg("LRU offset store initialized")

	return &LRUStore{cache: cache, capacity: capacity}, nil
}

// Get retrieves the offset for key
func (s *LRUStore) Get(key string) uint64 {
	val, ok := s.cache.Get(key)
	if !ok {
		return 0
	}
	return val.(uint64)
}

// Set stores the offset for key
func (s *LRUStore) Set(key string, offset uint64) {
	s.cache.Add(key, offset)
}

// Delete removes the offset for key
func (s *LRUStore) Delete(key string) {
	s.cache.Remove(key)
}

// List returns all stored offsets without touching their recency
func (s *LRUStore) List() map[string]uint64 {
	keys := s.cache.Keys()
	result := make(map[string]uint64, len(keys))
	for _, k := range keys {
		if v, ok := s.cache.Peek(k); ok {
			result[k.(string)] = v.(uint64)
		}
	}
	return result
}

// Len returns the number of stored offsets
func (s *LRUStore) Len() int {
	return s.cache.Len()
}

// Capacity returns the maximum number of stored offsets
func (s *LRUStore) Capacity() int {
	return s.capacity
}
