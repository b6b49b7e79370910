package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/texlify/texlify/adapters/metrics"
	"github.com/texlify/texlify/domain/conversion"
	"github.com/texlify/texlify/domain/identity"
	"github.com/texlify/texlify/ports"
)

// ErrDenied wraps an admission denial so callers can distinguish it
// from converter failures. The typed reason travels alongside in
// ConvertResult.Decision.
var ErrDenied = errors.New("conversion denied")

// ConvertResult is the outcome of one conversion attempt.
type ConvertResult struct {
	Decision Decision
	Output   conversion.Output
	RecordID string
}

// ConversionService runs admitted conversions and persists their
// records. Quota is only consumed after the converter confirmed
// success: a model failure costs the caller nothing but the burst
// tokens already spent.
type ConversionService struct {
	admission   *AdmissionController
	converter   ports.Converter
	conversions ports.ConversionStore
	clock       ports.Clock
	idGen       ports.IDGenerator
	metrics     *metrics.Collector
	logger      zerolog.Logger
}

// NewConversionService creates a new conversion service.
func NewConversionService(
	admission *AdmissionController,
	converter ports.Converter,
	conversions ports.ConversionStore,
	clock ports.Clock,
	idGen ports.IDGenerator,
	collector *metrics.Collector,
	logger zerolog.Logger,
) *ConversionService {
	return &ConversionService{
		admission:   admission,
		converter:   converter,
		conversions: conversions,
		clock:       clock,
		idGen:       idGen,
		metrics:     collector,
		logger:      logger,
	}
}

// ConvertText admits, runs and records a general text conversion.
func (s *ConversionService) ConvertText(ctx context.Context, id identity.Identity, text string) (ConvertResult, error) {
	op := conversion.General(len(text))

	decision, err := s.admission.Admit(ctx, id, op)
	if err != nil {
		return ConvertResult{}, err
	}
	if !decision.Allowed {
		return ConvertResult{Decision: decision}, ErrDenied
	}

	start := s.clock.Now()
	out, err := s.converter.ConvertText(ctx, text)
	if err != nil {
		s.metrics.ConversionErrors.WithLabelValues("text").Inc()
		s.logger.Error().Err(err).Msg("text conversion failed")
		return ConvertResult{Decision: decision}, fmt.Errorf("convert: %w", err)
	}
	s.observeOutput("text", out, s.clock.Now().Sub(start))

	rec := conversion.Record{
		ID:         s.idGen.New(),
		UserID:     id.UserID,
		SessionKey: id.SessionKey,
		Input:      text,
		Output:     out.LaTeX,
		Anonymous:  !id.IsAuthenticated(),
		CreatedAt:  s.clock.Now(),
	}
	if err := s.conversions.SaveRecord(ctx, rec); err != nil {
		// The caller got their LaTeX; a history write failure is logged,
		// not surfaced.
		s.logger.Error().Err(err).Str("conversion_id", rec.ID).Msg("failed to save conversion record")
	}

	if err := s.admission.RecordSuccess(ctx, id, op); err != nil {
		s.logger.Error().Err(err).Str("identity", id.Key()).Msg("failed to record usage")
	}

	return ConvertResult{Decision: decision, Output: out, RecordID: rec.ID}, nil
}

// ConvertTool admits and runs a tool conversion with its persisted
// lifecycle: a pending record is written before the model call and
// moved to success or failed after.
func (s *ConversionService) ConvertTool(ctx context.Context, id identity.Identity, tool conversion.Tool, input, idempotencyKey string) (ConvertResult, error) {
	op := conversion.ToolOp(tool, len(input))

	decision, err := s.admission.Admit(ctx, id, op)
	if err != nil {
		return ConvertResult{}, err
	}
	if !decision.Allowed {
		return ConvertResult{Decision: decision}, ErrDenied
	}

	now := s.clock.Now()
	rec := conversion.FileRecord{
		ID:             s.idGen.New(),
		UserID:         id.UserID,
		SessionKey:     id.SessionKey,
		Tool:           tool,
		InputText:      input,
		Status:         conversion.StatusProcessing,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.conversions.SaveFile(ctx, rec); err != nil {
		return ConvertResult{}, fmt.Errorf("save file record: %w", err)
	}

	start := s.clock.Now()
	out, err := s.converter.ConvertTool(ctx, tool, input)
	elapsed := s.clock.Now().Sub(start)
	if err != nil {
		s.metrics.ConversionErrors.WithLabelValues(string(tool)).Inc()
		rec.Status = conversion.StatusFailed
		rec.ErrorMessage = err.Error()
		rec.UpdatedAt = s.clock.Now()
		if uerr := s.conversions.UpdateFile(ctx, rec); uerr != nil {
			s.logger.Error().Err(uerr).Str("conversion_id", rec.ID).Msg("failed to mark conversion failed")
		}
		return ConvertResult{Decision: decision}, fmt.Errorf("convert %s: %w", tool, err)
	}
	s.observeOutput(string(tool), out, elapsed)

	rec.Status = conversion.StatusSuccess
	rec.OutputText = out.LaTeX
	rec.LatencyMs = out.LatencyMs
	rec.CostUSD = out.CostUSD
	rec.UpdatedAt = s.clock.Now()
	if err := s.conversions.UpdateFile(ctx, rec); err != nil {
		s.logger.Error().Err(err).Str("conversion_id", rec.ID).Msg("failed to finalize conversion record")
	}

	if err := s.admission.RecordSuccess(ctx, id, op); err != nil {
		s.logger.Error().Err(err).Str("identity", id.Key()).Msg("failed to record usage")
	}

	return ConvertResult{Decision: decision, Output: out, RecordID: rec.ID}, nil
}

func (s *ConversionService) observeOutput(label string, out conversion.Output, elapsed time.Duration) {
	s.metrics.ConversionDuration.WithLabelValues(label).Observe(elapsed.Seconds())
	if out.InputTokens > 0 {
		s.metrics.ConversionTokens.WithLabelValues(label, "input").Add(float64(out.InputTokens))
	}
	if out.OutputTokens > 0 {
		s.metrics.ConversionTokens.WithLabelValues(label, "output").Add(float64(out.OutputTokens))
	}
}
