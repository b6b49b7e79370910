// Package app provides application services that orchestrate domain logic.
package app

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/texlify/texlify/domain/ratelimit"
	"github.com/texlify/texlify/ports"
)

// Limiter names used by the admission controller. Configuration may
// override their parameters but not their identity.
const (
	LimiterAnonymousConversions     = "anonymous_conversions"
	LimiterAuthenticatedConversions = "authenticated_conversions"
	LimiterAnonymousFiles           = "anonymous_file_conversions"
	LimiterAuthenticatedFiles       = "authenticated_file_conversions"
	LimiterSaveConversion           = "save_conversion"
	LimiterToggleFavorite           = "toggle_favorite"
	LimiterGlobalConversion         = "global_conversion"
	LimiterGlobalFiles              = "global_file_conversion"
)

// DefaultLimiters returns the built-in limiter registry. Per-identity
// limiters are token buckets; the global limiters are sharded fixed
// windows keeping one hot counter from serializing all traffic.
func DefaultLimiters() map[string]ratelimit.Config {
	minute := time.Minute
	return map[string]ratelimit.Config{
		LimiterAnonymousConversions:     {Kind: ratelimit.TokenBucket, Rate: 10, Period: minute, Capacity: 15},
		LimiterAuthenticatedConversions: {Kind: ratelimit.TokenBucket, Rate: 20, Period: minute, Capacity: 30},
		LimiterAnonymousFiles:           {Kind: ratelimit.TokenBucket, Rate: 5, Period: minute, Capacity: 8},
		LimiterAuthenticatedFiles:       {Kind: ratelimit.TokenBucket, Rate: 10, Period: minute, Capacity: 15},
		LimiterSaveConversion:           {Kind: ratelimit.TokenBucket, Rate: 40, Period: minute, Capacity: 60},
		LimiterToggleFavorite:           {Kind: ratelimit.TokenBucket, Rate: 20, Period: minute, Capacity: 30},
		LimiterGlobalConversion:         {Kind: ratelimit.FixedWindow, Rate: 400, Period: minute, Shards: 5},
		LimiterGlobalFiles:              {Kind: ratelimit.FixedWindow, Rate: 150, Period: minute, Shards: 5},
	}
}

// RateLimiterEngine evaluates named limiters against a backend store.
// The registry is an immutable snapshot swapped atomically on reload;
// in-flight checks keep the snapshot they started with.
type RateLimiterEngine struct {
	store ports.RateLimitStore

	configs atomic.Pointer[map[string]ratelimit.Config]
}

// NewRateLimiterEngine creates a new engine over the given backend.
func NewRateLimiterEngine(store ports.RateLimitStore, configs map[string]ratelimit.Config) *RateLimiterEngine {
	e := &RateLimiterEngine{store: store}
	e.UpdateConfigs(configs)
	return e
}

// UpdateConfigs swaps the limiter registry. Thread-safe; existing
// limiter state carries over since entry keys do not change.
func (e *RateLimiterEngine) UpdateConfigs(configs map[string]ratelimit.Config) {
	normalized := make(map[string]ratelimit.Config, len(configs))
	for name, cfg := range configs {
		normalized[name] = cfg.Normalize()
	}
	e.configs.Store(&normalized)
}

// Config returns the registered configuration for a limiter.
func (e *RateLimiterEngine) Config(name string) (ratelimit.Config, bool) {
	cfg, ok := (*e.configs.Load())[name]
	return cfg, ok
}

// Check runs one check-and-consume against a named limiter. For a
// sharded limiter one shard is picked at random and enforces the
// per-shard share of the rate.
func (e *RateLimiterEngine) Check(ctx context.Context, name, key string, req ratelimit.Request, now time.Time) (ratelimit.Result, error) {
	cfg, ok := e.Config(name)
	if !ok {
		return ratelimit.Result{}, fmt.Errorf("unknown limiter %q", name)
	}

	shard := 0
	if cfg.Shards > 1 {
		shard = rand.Intn(cfg.Shards)
	}

	return e.store.CheckAndConsume(ctx, entryKey(name, key, shard), cfg.PerShard(), req, now)
}

// Reset clears all shards of one (limiter, key) pair. Missing entries
// are skipped, so resetting an idle key is a no-op.
func (e *RateLimiterEngine) Reset(ctx context.Context, name, key string) error {
	cfg, ok := e.Config(name)
	if !ok {
		return fmt.Errorf("unknown limiter %q", name)
	}
	for shard := 0; shard < cfg.Shards; shard++ {
		if err := e.store.Reset(ctx, entryKey(name, key, shard)); err != nil {
			return err
		}
	}
	return nil
}

// Cleanup removes limiter entries idle since before the given time.
func (e *RateLimiterEngine) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	return e.store.Cleanup(ctx, before)
}

func entryKey(name, key string, shard int) string {
	return fmt.Sprintf("%s/%s/%d", name, key, shard)
}
