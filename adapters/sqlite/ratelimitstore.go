package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/texlify/texlify/domain/ratelimit"
	"github.com/texlify/texlify/ports"
)

// RateLimitStore implements ports.RateLimitStore using SQLite. The
// check-and-consume runs inside a write transaction, so concurrent
// callers against the same entry serialize on the database write lock.
type RateLimitStore struct {
	db *DB
}

// NewRateLimitStore creates a new SQLite rate limit store.
func NewRateLimitStore(db *DB) *RateLimitStore {
	return &RateLimitStore{db: db}
}

// CheckAndConsume atomically applies one ratelimit.Decide step.
func (s *RateLimitStore) CheckAndConsume(ctx context.Context, entryKey string, cfg ratelimit.Config, req ratelimit.Request, now time.Time) (ratelimit.Result, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ratelimit.Result{}, fmt.Errorf("%w: begin: %v", ports.ErrStorageUnavailable, err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT tokens, last_refill, window_start, count
		FROM rate_limit_state
		WHERE entry_key = ?
	`, entryKey)

	var state ratelimit.State
	var lastRefill, windowStart sql.NullTime
	err = row.Scan(&state.Tokens, &lastRefill, &windowStart, &state.Count)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return ratelimit.Result{}, fmt.Errorf("%w: load state: %v", ports.ErrStorageUnavailable, err)
	}
	if lastRefill.Valid {
		state.LastRefill = lastRefill.Time
	}
	if windowStart.Valid {
		state.WindowStart = windowStart.Time
	}

	result, newState := ratelimit.Decide(state, cfg, req, now)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO rate_limit_state (entry_key, tokens, last_refill, window_start, count, last_seen)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(entry_key) DO UPDATE SET
			tokens = excluded.tokens,
			last_refill = excluded.last_refill,
			window_start = excluded.window_start,
			count = excluded.count,
			last_seen = excluded.last_seen
	`, entryKey, newState.Tokens, nullTime(newState.LastRefill), nullTime(newState.WindowStart), newState.Count, now.UTC())
	if err != nil {
		return ratelimit.Result{}, fmt.Errorf("%w: store state: %v", ports.ErrStorageUnavailable, err)
	}

	if err := tx.Commit(); err != nil {
		return ratelimit.Result{}, fmt.Errorf("%w: commit: %v", ports.ErrStorageUnavailable, err)
	}
	return result, nil
}

// Reset removes an entry. Idempotent.
func (s *RateLimitStore) Reset(ctx context.Context, entryKey string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM rate_limit_state WHERE entry_key = ?`, entryKey)
	if err != nil {
		return fmt.Errorf("%w: reset: %v", ports.ErrStorageUnavailable, err)
	}
	return nil
}

// Cleanup removes entries idle since before the given time.
func (s *RateLimitStore) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM rate_limit_state WHERE last_seen < ?`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("%w: cleanup: %v", ports.ErrStorageUnavailable, err)
	}
	return result.RowsAffected()
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}

// Ensure interface compliance.
var _ ports.RateLimitStore = (*RateLimitStore)(nil)
