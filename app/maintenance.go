package app

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/texlify/texlify/ports"
)

// MaintenanceConfig controls the periodic cleanup jobs.
type MaintenanceConfig struct {
	// LimiterIdle is how long a limiter entry may sit untouched before
	// cleanup removes it. Removal is safe: a fresh entry readmits at
	// worst one burst.
	LimiterIdle time.Duration

	// UsageRetention is how long historical tool usage rows are kept.
	UsageRetention time.Duration

	// ConversionRetention is how long anonymous conversion history is
	// kept. Zero disables conversion pruning.
	ConversionRetention time.Duration
}

// Normalize fills in defaulted fields.
func (c MaintenanceConfig) Normalize() MaintenanceConfig {
	if c.LimiterIdle <= 0 {
		c.LimiterIdle = time.Hour
	}
	if c.UsageRetention <= 0 {
		c.UsageRetention = 30 * 24 * time.Hour
	}
	return c
}

// MaintenanceService runs scheduled cleanup of limiter state and
// historical usage.
type MaintenanceService struct {
	limiter     *RateLimiterEngine
	usage       ports.UsageStore
	conversions ports.ConversionStore
	clock       ports.Clock
	cfg         MaintenanceConfig
	logger      zerolog.Logger

	cron *cron.Cron
}

// NewMaintenanceService creates a new maintenance service.
func NewMaintenanceService(
	limiter *RateLimiterEngine,
	usage ports.UsageStore,
	conversions ports.ConversionStore,
	clock ports.Clock,
	cfg MaintenanceConfig,
	logger zerolog.Logger,
) *MaintenanceService {
	return &MaintenanceService{
		limiter:     limiter,
		usage:       usage,
		conversions: conversions,
		clock:       clock,
		cfg:         cfg.Normalize(),
		logger:      logger,
	}
}

// Start schedules the cleanup jobs. Limiter state is swept every ten
// minutes, usage and conversion history once a day.
func (s *MaintenanceService) Start() error {
	s.cron = cron.New()

	if _, err := s.cron.AddFunc("*/10 * * * *", s.sweepLimiters); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("30 3 * * *", s.pruneHistory); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info().Msg("maintenance jobs scheduled")
	return nil
}

// Stop halts the scheduler, waiting for running jobs.
func (s *MaintenanceService) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

func (s *MaintenanceService) sweepLimiters() {
	ctx := context.Background()
	removed, err := s.limiter.Cleanup(ctx, s.clock.Now().Add(-s.cfg.LimiterIdle))
	if err != nil {
		s.logger.Error().Err(err).Msg("limiter cleanup failed")
		return
	}
	if removed > 0 {
		s.logger.Info().Int64("removed", removed).Msg("swept idle limiter entries")
	}
}

func (s *MaintenanceService) pruneHistory() {
	ctx := context.Background()
	now := s.clock.Now()

	removed, err := s.usage.ClearBefore(ctx, now.Add(-s.cfg.UsageRetention))
	if err != nil {
		s.logger.Error().Err(err).Msg("usage pruning failed")
	} else if removed > 0 {
		s.logger.Info().Int64("removed", removed).Msg("pruned historical tool usage")
	}

	if s.cfg.ConversionRetention > 0 {
		removed, err := s.conversions.ClearBefore(ctx, now.Add(-s.cfg.ConversionRetention))
		if err != nil {
			s.logger.Error().Err(err).Msg("conversion pruning failed")
		} else if removed > 0 {
			s.logger.Info().Int64("removed", removed).Msg("pruned old conversion records")
		}
	}
}
