package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/texlify/texlify/domain/conversion"
	"github.com/texlify/texlify/domain/quota"
	"github.com/texlify/texlify/ports"
)

// UsageStore implements ports.UsageStore using SQLite.
type UsageStore struct {
	db *DB
}

// NewUsageStore creates a new SQLite usage store.
func NewUsageStore(db *DB) *UsageStore {
	return &UsageStore{db: db}
}

// Daily returns the stored daily counter. A missing row reads as zero.
func (s *UsageStore) Daily(ctx context.Context, identityKey string) (quota.Daily, error) {
	var d quota.Daily
	err := s.db.QueryRowContext(ctx, `
		SELECT count, day FROM daily_usage WHERE identity_key = ?
	`, identityKey).Scan(&d.Count, &d.Day)
	if errors.Is(err, sql.ErrNoRows) {
		return quota.Daily{}, nil
	}
	if err != nil {
		return quota.Daily{}, fmt.Errorf("%w: daily: %v", ports.ErrStorageUnavailable, err)
	}
	return d, nil
}

// IncrementDaily counts one conversion at now, adopting a new day when
// the stored day is stale. The upsert carries the rollover rule so
// concurrent increments never lose an update.
func (s *UsageStore) IncrementDaily(ctx context.Context, identityKey string, now time.Time) (quota.Daily, error) {
	today := quota.Day(now)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_usage (identity_key, count, day)
		VALUES (?, 1, ?)
		ON CONFLICT(identity_key) DO UPDATE SET
			count = CASE WHEN day = excluded.day THEN count + 1 ELSE 1 END,
			day = excluded.day
	`, identityKey, today)
	if err != nil {
		return quota.Daily{}, fmt.Errorf("%w: increment daily: %v", ports.ErrStorageUnavailable, err)
	}
	return s.Daily(ctx, identityKey)
}

// ToolCount returns how many tool conversions the identity made since
// dayStart.
func (s *UsageStore) ToolCount(ctx context.Context, identityKey string, tool conversion.Tool, dayStart time.Time) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `
		SELECT count FROM tool_usage
		WHERE identity_key = ? AND tool = ? AND day = ?
	`, identityKey, string(tool), quota.Day(dayStart)).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: tool count: %v", ports.ErrStorageUnavailable, err)
	}
	return count, nil
}

// RecordTool counts one tool conversion at the given time.
func (s *UsageStore) RecordTool(ctx context.Context, identityKey string, tool conversion.Tool, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tool_usage (identity_key, tool, day, count)
		VALUES (?, ?, ?, 1)
		ON CONFLICT(identity_key, tool, day) DO UPDATE SET count = count + 1
	`, identityKey, string(tool), quota.Day(at))
	if err != nil {
		return fmt.Errorf("%w: record tool: %v", ports.ErrStorageUnavailable, err)
	}
	return nil
}

// ClearBefore removes tool usage rows older than the given time.
func (s *UsageStore) ClearBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM tool_usage WHERE day < ?`, quota.Day(before))
	if err != nil {
		return 0, fmt.Errorf("%w: clear: %v", ports.ErrStorageUnavailable, err)
	}
	return result.RowsAffected()
}

var _ ports.UsageStore = (*UsageStore)(nil)
