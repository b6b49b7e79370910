package memory

import (
	"context"
	"sync"
	"time"

	"github.com/texlify/texlify/domain/conversion"
	"github.com/texlify/texlify/domain/quota"
	"github.com/texlify/texlify/ports"
)

// UsageStore is an in-memory implementation of ports.UsageStore.
type UsageStore struct {
	mu    sync.Mutex
	daily map[string]quota.Daily
	// tool usage keyed by identity, then tool, then UTC day string
	tools map[string]map[conversion.Tool]map[string]int64
}

// NewUsageStore creates a new in-memory usage store.
func NewUsageStore() *UsageStore {
	return &UsageStore{
		daily: make(map[string]quota.Daily),
		tools: make(map[string]map[conversion.Tool]map[string]int64),
	}
}

// Daily returns the stored daily counter; a missing row reads as zero.
func (s *UsageStore) Daily(ctx context.Context, identityKey string) (quota.Daily, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.daily[identityKey], nil
}

// IncrementDaily atomically counts one conversion at now.
func (s *UsageStore) IncrementDaily(ctx context.Context, identityKey string, now time.Time) (quota.Daily, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := quota.Rollover(s.daily[identityKey], now)
	s.daily[identityKey] = next
	return next, nil
}

// ToolCount returns tool conversions made since dayStart.
func (s *UsageStore) ToolCount(ctx context.Context, identityKey string, tool conversion.Tool, dayStart time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byTool, ok := s.tools[identityKey]
	if !ok {
		return 0, nil
	}
	return byTool[tool][quota.Day(dayStart)], nil
}

// RecordTool counts one tool conversion at the given time.
func (s *UsageStore) RecordTool(ctx context.Context, identityKey string, tool conversion.Tool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byTool, ok := s.tools[identityKey]
	if !ok {
		byTool = make(map[conversion.Tool]map[string]int64)
		s.tools[identityKey] = byTool
	}
	byDay, ok := byTool[tool]
	if !ok {
		byDay = make(map[string]int64)
		byTool[tool] = byDay
	}
	byDay[quota.Day(at)]++
	return nil
}

// ClearBefore removes tool usage rows for days older than before.
func (s *UsageStore) ClearBefore(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := quota.Day(before)
	var removed int64
	for _, byTool := range s.tools {
		for _, byDay := range byTool {
			for day := range byDay {
				if day < cutoff {
					delete(byDay, day)
					removed++
				}
			}
		}
	}
	return removed, nil
}

// Ensure interface compliance.
var _ ports.UsageStore = (*UsageStore)(nil)
