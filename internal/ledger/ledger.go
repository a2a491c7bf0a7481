// Package ledger provides a process-wide concurrent key-presence set used to
// guarantee at-most-once emission of each natural key within a phase run.
package ledger

import (
	"hash/fnv"
	"sync"
)

const shardCount = 32

// Set is a sharded concurrent string set. One Set exists per entity kind per
// phase run; it is never persisted.
type Set struct {
	shards [shardCount]shard
}

type shard struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

// NewSet creates an empty ledger.
func NewSet() *Set {
	s := &Set{}
	for i := range s.shards {
		s.shards[i].keys = make(map[string]struct{})
	}
	return s
}

// TryClaim atomically records the key if unseen, returning true exactly once
// per key across all goroutines.
func (s *Set) TryClaim(key string) bool {
	sh := &s.shards[shardIndex(key)]
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, seen := sh.keys[key]; seen {
		return false
	}
	sh.keys[key] = struct{}{}
	return true
}

// Len reports the number of claimed keys.
func (s *Set) Len() int {
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		n += len(sh.keys)
		sh.mu.Unlock()
	}
	return n
}

func shardIndex(key string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(key)) //nolint:errcheck
	return h.Sum32() % shardCount
}
