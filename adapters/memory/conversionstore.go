package memory

import (
	"context"
	"sync"
	"time"

	"github.com/texlify/texlify/domain/conversion"
	"github.com/texlify/texlify/ports"
)

// ConversionStore is an in-memory implementation of ports.ConversionStore.
type ConversionStore struct {
	mu        sync.Mutex
	records   []conversion.Record
	files     []conversion.FileRecord
	favorites map[string]conversion.Favorite // userID + "\x00" + conversionID
}

// NewConversionStore creates a new in-memory conversion store.
func NewConversionStore() *ConversionStore {
	return &ConversionStore{
		favorites: make(map[string]conversion.Favorite),
	}
}

func identityKeyOf(rec conversion.Record) string {
	if rec.UserID != "" {
		return "user:" + rec.UserID
	}
	return "anon:" + rec.SessionKey
}

// SaveRecord stores a completed text conversion.
func (s *ConversionStore) SaveRecord(ctx context.Context, rec conversion.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

// History returns the most recent conversions for an identity key.
func (s *ConversionStore) History(ctx context.Context, identityKey string, limit int) ([]conversion.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []conversion.Record
	for i := len(s.records) - 1; i >= 0 && len(out) < limit; i-- {
		if identityKeyOf(s.records[i]) == identityKey {
			out = append(out, s.records[i])
		}
	}
	return out, nil
}

// SaveFile stores a new file conversion record.
func (s *ConversionStore) SaveFile(ctx context.Context, rec conversion.FileRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = append(s.files, rec)
	return nil
}

// UpdateFile updates the lifecycle fields of a file conversion.
func (s *ConversionStore) UpdateFile(ctx context.Context, rec conversion.FileRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.files {
		if s.files[i].ID == rec.ID {
			s.files[i].Status = rec.Status
			s.files[i].OutputText = rec.OutputText
			s.files[i].ErrorMessage = rec.ErrorMessage
			s.files[i].LatencyMs = rec.LatencyMs
			s.files[i].CostUSD = rec.CostUSD
			s.files[i].UpdatedAt = rec.UpdatedAt
			return nil
		}
	}
	return ports.ErrNotFound
}

// FileHistory returns recent file conversions, optionally filtered by tool.
func (s *ConversionStore) FileHistory(ctx context.Context, identityKey string, tool conversion.Tool, limit int) ([]conversion.FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []conversion.FileRecord
	for i := len(s.files) - 1; i >= 0 && len(out) < limit; i-- {
		f := s.files[i]
		key := "anon:" + f.SessionKey
		if f.UserID != "" {
			key = "user:" + f.UserID
		}
		if key != identityKey {
			continue
		}
		if tool != "" && f.Tool != tool {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

// ToggleFavorite flips the favorite mark; returns the new state.
func (s *ConversionStore) ToggleFavorite(ctx context.Context, userID, conversionID, favoriteID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := userID + "\x00" + conversionID
	if _, ok := s.favorites[key]; ok {
		delete(s.favorites, key)
		return false, nil
	}
	s.favorites[key] = conversion.Favorite{
		ID:           favoriteID,
		UserID:       userID,
		ConversionID: conversionID,
		CreatedAt:    at,
	}
	return true, nil
}

// Favorites returns the user's favorited conversions.
func (s *ConversionStore) Favorites(ctx context.Context, userID string, limit int) ([]conversion.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []conversion.Record
	for i := len(s.records) - 1; i >= 0 && len(out) < limit; i-- {
		rec := s.records[i]
		if _, ok := s.favorites[userID+"\x00"+rec.ID]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

// IsFavorite reports whether the user favorited the conversion.
func (s *ConversionStore) IsFavorite(ctx context.Context, userID, conversionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.favorites[userID+"\x00"+conversionID]
	return ok, nil
}

// ClearBefore removes conversion rows older than the given time.
func (s *ConversionStore) ClearBefore(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var kept []conversion.Record
	var removed int64
	for _, rec := range s.records {
		if rec.CreatedAt.Before(before) {
			removed++
			continue
		}
		kept = append(kept, rec)
	}
	s.records = kept

	var keptFiles []conversion.FileRecord
	for _, f := range s.files {
		if f.CreatedAt.Before(before) {
			removed++
			continue
		}
		keptFiles = append(keptFiles, f)
	}
	s.files = keptFiles

	return removed, nil
}

// Ensure interface compliance.
var _ ports.ConversionStore = (*ConversionStore)(nil)
