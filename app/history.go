package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/texlify/texlify/domain/conversion"
	"github.com/texlify/texlify/domain/identity"
	"github.com/texlify/texlify/ports"
)

// ErrRateLimited is returned by history actions when their limiter
// denies. Carries no wait hint; history actions are cheap to retry.
var ErrRateLimited = errors.New("rate limited")

// ErrAuthRequired is returned for account-scoped actions attempted
// anonymously.
var ErrAuthRequired = errors.New("authentication required")

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 50
)

// HistoryService manages saved conversions and favorites. Writes go
// through their own action limiters so a scripted client cannot flood
// the store even while under the conversion caps.
type HistoryService struct {
	admission   *AdmissionController
	conversions ports.ConversionStore
	clock       ports.Clock
	idGen       ports.IDGenerator
	logger      zerolog.Logger
}

// NewHistoryService creates a new history service.
func NewHistoryService(
	admission *AdmissionController,
	conversions ports.ConversionStore,
	clock ports.Clock,
	idGen ports.IDGenerator,
	logger zerolog.Logger,
) *HistoryService {
	return &HistoryService{
		admission:   admission,
		conversions: conversions,
		clock:       clock,
		idGen:       idGen,
		logger:      logger,
	}
}

// Save stores a conversion the client composed locally (offline edits,
// imports). Server-run conversions are saved by ConversionService.
func (s *HistoryService) Save(ctx context.Context, id identity.Identity, input, output string) (conversion.Record, error) {
	result, err := s.admission.CheckActionLimiter(ctx, LimiterSaveConversion, id)
	if err != nil {
		return conversion.Record{}, fmt.Errorf("save limiter: %w", err)
	}
	if !result.Allowed {
		return conversion.Record{}, ErrRateLimited
	}

	rec := conversion.Record{
		ID:         s.idGen.New(),
		UserID:     id.UserID,
		SessionKey: id.SessionKey,
		Input:      input,
		Output:     output,
		Anonymous:  !id.IsAuthenticated(),
		CreatedAt:  s.clock.Now(),
	}
	if err := s.conversions.SaveRecord(ctx, rec); err != nil {
		return conversion.Record{}, fmt.Errorf("save conversion: %w", err)
	}
	return rec, nil
}

// History lists the identity's recent conversions.
func (s *HistoryService) History(ctx context.Context, id identity.Identity, limit int) ([]conversion.Record, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return s.conversions.History(ctx, id.Key(), limit)
}

// FileHistory lists the identity's recent file conversions.
func (s *HistoryService) FileHistory(ctx context.Context, id identity.Identity, tool conversion.Tool, limit int) ([]conversion.FileRecord, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return s.conversions.FileHistory(ctx, id.Key(), tool, limit)
}

// ToggleFavorite flips the favorite mark on a conversion. Favorites are
// account-scoped; anonymous identities cannot hold them.
func (s *HistoryService) ToggleFavorite(ctx context.Context, id identity.Identity, conversionID string) (bool, error) {
	if !id.IsAuthenticated() {
		return false, ErrAuthRequired
	}

	result, err := s.admission.CheckActionLimiter(ctx, LimiterToggleFavorite, id)
	if err != nil {
		return false, fmt.Errorf("favorite limiter: %w", err)
	}
	if !result.Allowed {
		return false, ErrRateLimited
	}

	return s.conversions.ToggleFavorite(ctx, id.UserID, conversionID, s.idGen.New(), s.clock.Now())
}

// Favorites lists the user's favorited conversions.
func (s *HistoryService) Favorites(ctx context.Context, id identity.Identity, limit int) ([]conversion.Record, error) {
	if !id.IsAuthenticated() {
		return nil, ErrAuthRequired
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return s.conversions.Favorites(ctx, id.UserID, limit)
}
