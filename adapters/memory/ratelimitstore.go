// Package memory provides in-memory implementations of storage ports.
// Used in tests and single-node deployments.
package memory

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/texlify/texlify/domain/ratelimit"
	"github.com/texlify/texlify/ports"
)

// rateLimitShard is a single shard of the rate limit store.
type rateLimitShard struct {
	mu      sync.Mutex
	entries map[string]limiterEntry
}

type limiterEntry struct {
	state    ratelimit.State
	lastSeen time.Time
}

// RateLimitStore is a sharded in-memory implementation of
// ports.RateLimitStore. Sharding reduces lock contention: updates for a
// single entry key serialize on one shard mutex, which makes
// CheckAndConsume linearizable per key.
type RateLimitStore struct {
	shards    []*rateLimitShard
	numShards int
}

// NewRateLimitStore creates a new in-memory rate limit store.
func NewRateLimitStore(numShards int) *RateLimitStore {
	if numShards <= 0 {
		numShards = 32
	}
	s := &RateLimitStore{
		shards:    make([]*rateLimitShard, numShards),
		numShards: numShards,
	}
	for i := range s.shards {
		s.shards[i] = &rateLimitShard{entries: make(map[string]limiterEntry)}
	}
	return s
}

// getShard returns the shard for a given entry key using consistent hashing.
func (s *RateLimitStore) getShard(entryKey string) *rateLimitShard {
	h := fnv.New32a()
	h.Write([]byte(entryKey))
	return s.shards[h.Sum32()%uint32(s.numShards)]
}

// CheckAndConsume atomically applies one ratelimit.Decide step.
func (s *RateLimitStore) CheckAndConsume(ctx context.Context, entryKey string, cfg ratelimit.Config, req ratelimit.Request, now time.Time) (ratelimit.Result, error) {
	shard := s.getShard(entryKey)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	entry := shard.entries[entryKey]
	result, newState := ratelimit.Decide(entry.state, cfg, req, now)
	shard.entries[entryKey] = limiterEntry{state: newState, lastSeen: now}

	return result, nil
}

// Reset removes an entry. Idempotent.
func (s *RateLimitStore) Reset(ctx context.Context, entryKey string) error {
	shard := s.getShard(entryKey)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	delete(shard.entries, entryKey)
	return nil
}

// Cleanup removes entries not touched since before the given time.
func (s *RateLimitStore) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	var removed int64
	for _, shard := range s.shards {
		shard.mu.Lock()
		for key, entry := range shard.entries {
			if entry.lastSeen.Before(before) {
				delete(shard.entries, key)
				removed++
			}
		}
		shard.mu.Unlock()
	}
	return removed, nil
}

// State returns the stored state for an entry (for testing).
func (s *RateLimitStore) State(entryKey string) (ratelimit.State, bool) {
	shard := s.getShard(entryKey)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	entry, ok := shard.entries[entryKey]
	return entry.state, ok
}

// Len returns the total number of entries across all shards (for testing).
func (s *RateLimitStore) Len() int {
	total := 0
	for _, shard := range s.shards {
		shard.mu.Lock()
		total += len(shard.entries)
		shard.mu.Unlock()
	}
	return total
}

// Ensure interface compliance.
var _ ports.RateLimitStore = (*RateLimitStore)(nil)
