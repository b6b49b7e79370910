package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/texlify/texlify/adapters/clock"
	"github.com/texlify/texlify/adapters/idgen"
	"github.com/texlify/texlify/adapters/memory"
	"github.com/texlify/texlify/adapters/metrics"
	"github.com/texlify/texlify/app"
	"github.com/texlify/texlify/domain/conversion"
	"github.com/texlify/texlify/domain/identity"
	"github.com/texlify/texlify/domain/tier"
)

// fakeConverter returns canned output, or fails when broken.
type fakeConverter struct {
	broken bool
	calls  int
}

func (f *fakeConverter) ConvertText(ctx context.Context, text string) (conversion.Output, error) {
	return f.convert()
}

func (f *fakeConverter) ConvertTool(ctx context.Context, tool conversion.Tool, input string) (conversion.Output, error) {
	return f.convert()
}

func (f *fakeConverter) convert() (conversion.Output, error) {
	f.calls++
	if f.broken {
		return conversion.Output{}, errors.New("model unavailable")
	}
	return conversion.Output{
		LaTeX:        "$x^2$",
		Model:        "test-model",
		InputTokens:  10,
		OutputTokens: 5,
		LatencyMs:    12,
	}, nil
}

type convertFixture struct {
	service     *app.ConversionService
	admission   *app.AdmissionController
	converter   *fakeConverter
	conversions *memory.ConversionStore
	usage       *memory.UsageStore
	clock       *clock.Fake
}

func newConvertFixture(t *testing.T) *convertFixture {
	t.Helper()
	fake := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	logger := zerolog.Nop()
	collector := metrics.NewWithRegistry(prometheus.NewRegistry())
	engine := app.NewRateLimiterEngine(memory.NewRateLimitStore(8), app.DefaultLimiters())
	usage := memory.NewUsageStore()
	tiers := app.NewTierResolver(memory.NewUserStore(), fake, tier.Defaults(), logger)
	admission := app.NewAdmissionController(engine, tiers, usage, fake, collector, logger)
	converter := &fakeConverter{}
	conversions := memory.NewConversionStore()
	service := app.NewConversionService(admission, converter, conversions, fake, idgen.NewSequential("conv"), collector, logger)

	return &convertFixture{
		service:     service,
		admission:   admission,
		converter:   converter,
		conversions: conversions,
		usage:       usage,
		clock:       fake,
	}
}

func TestConvertText_Success(t *testing.T) {
	f := newConvertFixture(t)
	ctx := context.Background()
	id := identity.Anonymous("sess-1")

	result, err := f.service.ConvertText(ctx, id, "x squared")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if result.Output.LaTeX != "$x^2$" {
		t.Fatalf("unexpected output: %+v", result.Output)
	}

	// Usage counted after success.
	daily, _ := f.usage.Daily(ctx, id.Key())
	if daily.Count != 1 {
		t.Fatalf("expected 1 counted conversion, got %d", daily.Count)
	}

	// History persisted.
	history, err := f.conversions.History(ctx, id.Key(), 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].Output != "$x^2$" {
		t.Fatalf("unexpected history: %+v", history)
	}
}

func TestConvertText_FailureConsumesNoQuota(t *testing.T) {
	f := newConvertFixture(t)
	f.converter.broken = true
	ctx := context.Background()
	id := identity.Anonymous("sess-1")

	_, err := f.service.ConvertText(ctx, id, "x squared")
	if err == nil {
		t.Fatal("expected converter failure")
	}

	daily, _ := f.usage.Daily(ctx, id.Key())
	if daily.Count != 0 {
		t.Fatalf("failed conversion must not consume quota, got %d", daily.Count)
	}
}

func TestConvertText_DeniedSkipsConverter(t *testing.T) {
	f := newConvertFixture(t)
	ctx := context.Background()
	id := identity.Anonymous("sess-1")

	// Oversized input denies before the model is ever called.
	result, err := f.service.ConvertText(ctx, id, string(make([]byte, 10_001)))
	if !errors.Is(err, app.ErrDenied) {
		t.Fatalf("expected ErrDenied, got %v", err)
	}
	if _, ok := result.Decision.Deny.(app.InputTooLong); !ok {
		t.Fatalf("expected InputTooLong, got %+v", result.Decision.Deny)
	}
	if f.converter.calls != 0 {
		t.Fatalf("converter called %d times on denied request", f.converter.calls)
	}
}

func TestConvertTool_Lifecycle(t *testing.T) {
	f := newConvertFixture(t)
	ctx := context.Background()
	id := identity.Anonymous("sess-1")

	result, err := f.service.ConvertTool(ctx, id, conversion.ToolImageToLatex, "sqrt(2)", "")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if result.Output.LaTeX == "" {
		t.Fatal("expected output")
	}

	files, err := f.conversions.FileHistory(ctx, id.Key(), conversion.ToolImageToLatex, 10)
	if err != nil {
		t.Fatalf("file history: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected 1 file record, got %d", len(files))
	}
	if files[0].Status != conversion.StatusSuccess {
		t.Fatalf("expected success status, got %s", files[0].Status)
	}

	used, _ := f.usage.ToolCount(ctx, id.Key(), conversion.ToolImageToLatex, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	if used != 1 {
		t.Fatalf("expected 1 tool use, got %d", used)
	}
}

func TestConvertTool_FailureRecordedAsFailed(t *testing.T) {
	f := newConvertFixture(t)
	f.converter.broken = true
	ctx := context.Background()
	id := identity.Anonymous("sess-1")

	_, err := f.service.ConvertTool(ctx, id, conversion.ToolImageToLatex, "sqrt(2)", "")
	if err == nil {
		t.Fatal("expected failure")
	}

	files, _ := f.conversions.FileHistory(ctx, id.Key(), conversion.ToolImageToLatex, 10)
	if len(files) != 1 {
		t.Fatalf("expected 1 file record, got %d", len(files))
	}
	if files[0].Status != conversion.StatusFailed {
		t.Fatalf("expected failed status, got %s", files[0].Status)
	}
	if files[0].ErrorMessage == "" {
		t.Fatal("expected error message on failed record")
	}

	used, _ := f.usage.ToolCount(ctx, id.Key(), conversion.ToolImageToLatex, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	if used != 0 {
		t.Fatalf("failed tool conversion must not consume quota, got %d", used)
	}
}
