package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/texlify/texlify/adapters/clock"
	"github.com/texlify/texlify/adapters/memory"
	"github.com/texlify/texlify/adapters/metrics"
	"github.com/texlify/texlify/app"
	"github.com/texlify/texlify/domain/conversion"
	"github.com/texlify/texlify/domain/identity"
	"github.com/texlify/texlify/domain/ratelimit"
	"github.com/texlify/texlify/domain/tier"
	"github.com/texlify/texlify/ports"
)

type fixture struct {
	admission *app.AdmissionController
	engine    *app.RateLimiterEngine
	usage     *memory.UsageStore
	users     *memory.UserStore
	clock     *clock.Fake
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fake := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	engine := app.NewRateLimiterEngine(memory.NewRateLimitStore(8), app.DefaultLimiters())
	usage := memory.NewUsageStore()
	users := memory.NewUserStore()
	logger := zerolog.Nop()
	collector := metrics.NewWithRegistry(prometheus.NewRegistry())
	tiers := app.NewTierResolver(users, fake, tier.Defaults(), logger)

	return &fixture{
		admission: app.NewAdmissionController(engine, tiers, usage, fake, collector, logger),
		engine:    engine,
		usage:     usage,
		users:     users,
		clock:     fake,
	}
}

func (f *fixture) makePro(t *testing.T, userID string) {
	t.Helper()
	ctx := context.Background()
	now := f.clock.Now()
	if err := f.users.Upsert(ctx, ports.User{ID: userID, CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	err := f.users.UpdateSubscription(ctx, userID, tier.Subscription{
		Tier: "pro", Status: "active", PeriodEnd: now.AddDate(0, 1, 0),
	}, "sub_1", now)
	if err != nil {
		t.Fatalf("update subscription: %v", err)
	}
}

func TestAdmit_AnonymousWithinLimits(t *testing.T) {
	f := newFixture(t)
	id := identity.Anonymous("sess-1")

	d, err := f.admission.Admit(context.Background(), id, conversion.General(100))
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	if !d.Allowed {
		t.Fatalf("expected allow, got %+v", d.Deny)
	}
	if d.Tier.Name != tier.Anonymous {
		t.Fatalf("expected anonymous tier, got %s", d.Tier.Name)
	}
}

func TestAdmit_BurstLimiterDenies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := identity.Anonymous("sess-burst")

	// Anonymous bucket capacity is 15; drain it without recording
	// successes so the daily quota stays untouched.
	denied := 0
	var lastDeny app.DenyReason
	for i := 0; i < 20; i++ {
		d, err := f.admission.Admit(ctx, id, conversion.General(10))
		if err != nil {
			t.Fatalf("admit %d: %v", i, err)
		}
		if !d.Allowed {
			denied++
			lastDeny = d.Deny
		}
	}
	if denied != 5 {
		t.Fatalf("expected 5 denials after draining a 15-token bucket, got %d", denied)
	}
	rl, ok := lastDeny.(app.RateLimited)
	if !ok {
		t.Fatalf("expected RateLimited, got %T", lastDeny)
	}
	if rl.RetryAfter <= 0 {
		t.Fatalf("expected positive RetryAfter, got %v", rl.RetryAfter)
	}
}

func TestAdmit_DailyQuotaExhausted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := identity.Anonymous("sess-daily")
	op := conversion.General(10)

	// Use the full anonymous daily quota, spacing calls so the burst
	// bucket refills.
	for i := 0; i < 10; i++ {
		d, err := f.admission.Admit(ctx, id, op)
		if err != nil {
			t.Fatalf("admit %d: %v", i, err)
		}
		if !d.Allowed {
			t.Fatalf("admit %d: unexpected deny %+v", i, d.Deny)
		}
		if err := f.admission.RecordSuccess(ctx, id, op); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
		f.clock.Advance(30 * time.Second)
	}

	d, err := f.admission.Admit(ctx, id, op)
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	if d.Allowed {
		t.Fatal("expected daily quota denial")
	}
	dq, ok := d.Deny.(app.DailyQuotaExceeded)
	if !ok {
		t.Fatalf("expected DailyQuotaExceeded, got %T", d.Deny)
	}
	if dq.Used != 10 || dq.Limit != 10 {
		t.Fatalf("expected {10 10}, got %+v", dq)
	}
}

func TestAdmit_DailyQuotaRollsOverAtMidnight(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := identity.Anonymous("sess-roll")
	op := conversion.General(10)

	for i := 0; i < 10; i++ {
		if _, err := f.admission.Admit(ctx, id, op); err != nil {
			t.Fatalf("admit: %v", err)
		}
		if err := f.admission.RecordSuccess(ctx, id, op); err != nil {
			t.Fatalf("record: %v", err)
		}
		f.clock.Advance(30 * time.Second)
	}

	d, _ := f.admission.Admit(ctx, id, op)
	if d.Allowed {
		t.Fatal("quota should be spent")
	}

	// Crossing midnight UTC resets the effective count lazily.
	f.clock.Set(time.Date(2025, 6, 2, 0, 0, 1, 0, time.UTC))
	d, err := f.admission.Admit(ctx, id, op)
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	if !d.Allowed {
		t.Fatalf("expected allow after rollover, got %+v", d.Deny)
	}
}

func TestAdmit_ProSkipsDailyQuota(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.makePro(t, "u-pro")
	id := identity.Authenticated("u-pro")
	op := conversion.General(10)

	for i := 0; i < 25; i++ {
		d, err := f.admission.Admit(ctx, id, op)
		if err != nil {
			t.Fatalf("admit %d: %v", i, err)
		}
		if !d.Allowed {
			t.Fatalf("admit %d: unexpected deny %+v", i, d.Deny)
		}
		if err := f.admission.RecordSuccess(ctx, id, op); err != nil {
			t.Fatalf("record: %v", err)
		}
		f.clock.Advance(5 * time.Second)
	}

	// The pro counter never moved.
	daily, err := f.usage.Daily(ctx, id.Key())
	if err != nil {
		t.Fatalf("daily: %v", err)
	}
	if daily.Count != 0 {
		t.Fatalf("pro usage should not be counted, got %d", daily.Count)
	}
}

func TestAdmit_ToolQuota(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := identity.Anonymous("sess-tool")
	op := conversion.ToolOp(conversion.ToolPDFToLatex, 10)

	// pdf-to-latex allows 3 per day for anonymous callers.
	for i := 0; i < 3; i++ {
		d, err := f.admission.Admit(ctx, id, op)
		if err != nil {
			t.Fatalf("admit %d: %v", i, err)
		}
		if !d.Allowed {
			t.Fatalf("admit %d: unexpected deny %+v", i, d.Deny)
		}
		if err := f.admission.RecordSuccess(ctx, id, op); err != nil {
			t.Fatalf("record: %v", err)
		}
		f.clock.Advance(30 * time.Second)
	}

	d, err := f.admission.Admit(ctx, id, op)
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	tq, ok := d.Deny.(app.ToolQuotaExceeded)
	if !ok {
		t.Fatalf("expected ToolQuotaExceeded, got %+v", d)
	}
	if tq.Tool != conversion.ToolPDFToLatex || tq.Used != 3 || tq.Limit != 3 {
		t.Fatalf("unexpected denial: %+v", tq)
	}
}

func TestAdmit_ToolRequiresAuth(t *testing.T) {
	f := newFixture(t)
	id := identity.Anonymous("sess-x")

	d, err := f.admission.Admit(context.Background(), id, conversion.ToolOp(conversion.ToolLatexToWord, 10))
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	if _, ok := d.Deny.(app.Unauthenticated); !ok {
		t.Fatalf("expected Unauthenticated, got %+v", d)
	}
}

func TestAdmit_InputTooLong(t *testing.T) {
	f := newFixture(t)
	id := identity.Anonymous("sess-long")

	d, err := f.admission.Admit(context.Background(), id, conversion.General(10_001))
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	itl, ok := d.Deny.(app.InputTooLong)
	if !ok {
		t.Fatalf("expected InputTooLong, got %+v", d)
	}
	if itl.Max != 10_000 {
		t.Fatalf("expected max 10000, got %d", itl.Max)
	}
}

func TestAdmit_ProAcceptsLongerInput(t *testing.T) {
	f := newFixture(t)
	f.makePro(t, "u-pro")

	d, err := f.admission.Admit(context.Background(), identity.Authenticated("u-pro"), conversion.General(50_000))
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	if !d.Allowed {
		t.Fatalf("expected allow for pro at 50k chars, got %+v", d.Deny)
	}
}

func TestAdmit_StorageFailureIsNotADenial(t *testing.T) {
	fake := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	engine := app.NewRateLimiterEngine(failingRateLimitStore{}, app.DefaultLimiters())
	logger := zerolog.Nop()
	collector := metrics.NewWithRegistry(prometheus.NewRegistry())
	tiers := app.NewTierResolver(memory.NewUserStore(), fake, tier.Defaults(), logger)
	admission := app.NewAdmissionController(engine, tiers, memory.NewUsageStore(), fake, collector, logger)

	_, err := admission.Admit(context.Background(), identity.Anonymous("s"), conversion.General(10))
	if !errors.Is(err, ports.ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
}

func TestUsageReport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := identity.Anonymous("sess-u")

	for i := 0; i < 2; i++ {
		if err := f.admission.RecordSuccess(ctx, id, conversion.General(10)); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if err := f.admission.RecordSuccess(ctx, id, conversion.ToolOp(conversion.ToolImageToLatex, 10)); err != nil {
		t.Fatalf("record tool: %v", err)
	}

	report, err := f.admission.Usage(ctx, id)
	if err != nil {
		t.Fatalf("usage: %v", err)
	}
	if report.DailyUsed != 3 {
		t.Fatalf("expected 3 used, got %d", report.DailyUsed)
	}
	if report.Day != "2025-06-01" {
		t.Fatalf("unexpected day %s", report.Day)
	}
	img := report.Tools[conversion.ToolImageToLatex]
	if img.Used != 1 || img.Limit != 5 {
		t.Fatalf("unexpected tool usage: %+v", img)
	}
}

type failingRateLimitStore struct{}

func (failingRateLimitStore) CheckAndConsume(ctx context.Context, entryKey string, cfg ratelimit.Config, req ratelimit.Request, now time.Time) (ratelimit.Result, error) {
	return ratelimit.Result{}, ports.ErrStorageUnavailable
}

func (failingRateLimitStore) Reset(ctx context.Context, entryKey string) error {
	return ports.ErrStorageUnavailable
}

func (failingRateLimitStore) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	return 0, ports.ErrStorageUnavailable
}
