// Package sharded provides a string set that many goroutines can update
// without contending on a single lock. The archive builder uses it to
// remember which staging directories already exist.
package sharded

import "sync"

// DefaultShards is the shard count used by NewSet callers that have no better estimate.
const DefaultShards = 64

type setShard struct {
	mu    sync.RWMutex
	items map[string]struct{}
}

// Set is a concurrent set of strings.
type Set struct {
	shards []*setShard
}

// NewSet creates a Set with numShards shards. numShards must be a power of two.
func NewSet(numShards int) *Set {
	if !isPowerOfTwo(numShards) {
		panic("num shards must be a power of 2")
	}
	s := &Set{shards: make([]*setShard, numShards)}
	for i := range numShards {
		s.shards[i] = &setShard{items: make(map[string]struct{})}
	}
	return s
}

func (s *Set) shard(key string) *setShard {
	return s.shards[shardIndex(key, len(s.shards))]
}

// Store adds key to the set.
func (s *Set) Store(key string) {
	sh := s.shard(key)
	sh.mu.Lock()
	sh.items[key] = struct{}{}
	sh.mu.Unlock()
}

// Has reports whether key is in the set.
func (s *Set) Has(key string) bool {
	sh := s.shard(key)
	sh.mu.RLock()
	_, ok := sh.items[key]
	sh.mu.RUnlock()
	return ok
}

// LoadOrStore adds key and reports whether it was already present.
func (s *Set) LoadOrStore(key string) (loaded bool) {
	sh := s.shard(key)
	sh.mu.Lock()
	_, loaded = sh.items[key]
	if !loaded {
		sh.items[key] = struct{}{}
	}
	sh.mu.Unlock()
	return loaded
}

// Count returns the number of keys in the set.
func (s *Set) Count() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.items)
		sh.mu.RUnlock()
	}
	return n
}
