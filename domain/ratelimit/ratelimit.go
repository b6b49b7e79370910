// Package ratelimit provides pure rate limiting algorithms.
// All functions are deterministic - same input always produces same output.
package ratelimit

import (
	"time"
)

// Kind names a limiting algorithm.
type Kind string

const (
	// TokenBucket regenerates capacity continuously at Rate per Period.
	TokenBucket Kind = "token_bucket"
	// FixedWindow resets a counter at Period boundaries.
	FixedWindow Kind = "fixed_window"
)

// Config holds the configuration of a single named limiter (value type).
type Config struct {
	Kind        Kind
	Rate        float64       // Units admitted per Period
	Period      time.Duration // Refill/window period
	Capacity    float64       // Token bucket maximum; defaults to Rate
	MaxReserved float64       // Token bucket borrow allowance (reserve requests only)
	Shards      int           // Fixed window shard fan-out; <= 1 means unsharded
}

// Normalize fills in defaulted fields.
func (c Config) Normalize() Config {
	if c.Kind == "" {
		c.Kind = TokenBucket
	}
	if c.Period <= 0 {
		c.Period = time.Minute
	}
	if c.Capacity <= 0 {
		c.Capacity = c.Rate
	}
	if c.Shards < 1 {
		c.Shards = 1
	}
	return c
}

// PerShard returns the configuration a single shard enforces. A sharded
// fixed window divides its rate across shards; each shard is then an
// independent unsharded window. The aggregate cap can be exceeded by at
// most Shards-1 admits at a window boundary, a deliberate trade against
// a single hot counter.
func (c Config) PerShard() Config {
	c = c.Normalize()
	if c.Shards <= 1 {
		return c
	}
	n := float64(c.Shards)
	c.Rate = c.Rate / n
	c.Capacity = c.Capacity / n
	c.Shards = 1
	return c
}

// State is the persisted state of one (limiter, key, shard) entry
// (value type). Token bucket and fixed window use disjoint fields; the
// zero value is a fresh entry for either algorithm.
type State struct {
	// Token bucket
	Tokens     float64
	LastRefill time.Time

	// Fixed window
	WindowStart time.Time
	Count       float64
}

// Request describes a single check-and-consume attempt (value type).
type Request struct {
	Cost    float64 // Units to consume; callers default this to 1
	Reserve bool    // Allow borrowing against future refill (token bucket only)
}

// Result reports the outcome of a check (value type).
type Result struct {
	Allowed    bool
	Remaining  float64       // Units left after this request (never negative)
	RetryAfter time.Duration // On deny: wait before retrying. On reserved admit: mandatory wait.
	ResetAt    time.Time     // When capacity next becomes available
}

// Decide runs one check-and-consume step. This is a PURE function: the
// caller owns making the read-modify-write atomic (see ports.RateLimitStore).
//
// Returns the decision and the successor state. On deny the state is
// returned with refill/window rollover applied but nothing consumed.
func Decide(state State, cfg Config, req Request, now time.Time) (Result, State) {
	cfg = cfg.Normalize()
	if req.Cost <= 0 {
		req.Cost = 1
	}

	switch cfg.Kind {
	case FixedWindow:
		return decideWindow(state, cfg, req, now)
	default:
		return decideBucket(state, cfg, req, now)
	}
}

func decideBucket(state State, cfg Config, req Request, now time.Time) (Result, State) {
	// A never-seen key starts full.
	if state.LastRefill.IsZero() {
		state.Tokens = cfg.Capacity
		state.LastRefill = now
	}

	// Continuous refill since the last observation, capped at capacity.
	if elapsed := now.Sub(state.LastRefill); elapsed > 0 {
		state.Tokens += elapsed.Seconds() * cfg.Rate / cfg.Period.Seconds()
		if state.Tokens > cfg.Capacity {
			state.Tokens = cfg.Capacity
		}
	}
	state.LastRefill = now

	if state.Tokens >= req.Cost {
		state.Tokens -= req.Cost
		return Result{
			Allowed:   true,
			Remaining: state.Tokens,
			ResetAt:   now,
		}, state
	}

	deficit := req.Cost - state.Tokens
	wait := refillWait(deficit, cfg)

	// Borrow against future refill, committing the caller to wait. Never
	// used on admission paths that must fail fast.
	if req.Reserve && deficit <= cfg.MaxReserved {
		state.Tokens -= req.Cost
		return Result{
			Allowed:    true,
			Remaining:  0,
			RetryAfter: wait,
			ResetAt:    now.Add(wait),
		}, state
	}

	return Result{
		Allowed:    false,
		Remaining:  0,
		RetryAfter: wait,
		ResetAt:    now.Add(wait),
	}, state
}

func decideWindow(state State, cfg Config, req Request, now time.Time) (Result, State) {
	windowStart := now.Truncate(cfg.Period)

	// Adopt the current window. Idempotent: concurrent callers converge
	// on the same windowStart.
	if !state.WindowStart.Equal(windowStart) {
		state.WindowStart = windowStart
		state.Count = 0
	}

	resetAt := windowStart.Add(cfg.Period)

	if state.Count+req.Cost <= cfg.Rate {
		state.Count += req.Cost
		return Result{
			Allowed:   true,
			Remaining: cfg.Rate - state.Count,
			ResetAt:   resetAt,
		}, state
	}

	return Result{
		Allowed:    false,
		Remaining:  0,
		RetryAfter: resetAt.Sub(now),
		ResetAt:    resetAt,
	}, state
}

// refillWait converts a token deficit into the wait until refill covers it.
func refillWait(deficit float64, cfg Config) time.Duration {
	if cfg.Rate <= 0 {
		return cfg.Period
	}
	return time.Duration(deficit / cfg.Rate * float64(cfg.Period))
}
