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
	"github.com/texlify/texlify/domain/identity"
	"github.com/texlify/texlify/domain/tier"
)

func newHistoryService(t *testing.T) (*app.HistoryService, *clock.Fake) {
	t.Helper()
	fake := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	logger := zerolog.Nop()
	collector := metrics.NewWithRegistry(prometheus.NewRegistry())
	engine := app.NewRateLimiterEngine(memory.NewRateLimitStore(8), app.DefaultLimiters())
	tiers := app.NewTierResolver(memory.NewUserStore(), fake, tier.Defaults(), logger)
	admission := app.NewAdmissionController(engine, tiers, memory.NewUsageStore(), fake, collector, logger)
	return app.NewHistoryService(admission, memory.NewConversionStore(), fake, idgen.NewSequential("rec"), logger), fake
}

func TestHistoryService_SaveAndList(t *testing.T) {
	s, _ := newHistoryService(t)
	ctx := context.Background()
	id := identity.Authenticated("u1")

	rec, err := s.Save(ctx, id, "input", "$output$")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if rec.ID == "" || rec.Anonymous {
		t.Fatalf("unexpected record: %+v", rec)
	}

	history, err := s.History(ctx, id, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 record, got %d", len(history))
	}
}

func TestHistoryService_SaveLimiter(t *testing.T) {
	s, _ := newHistoryService(t)
	ctx := context.Background()
	id := identity.Authenticated("u1")

	// save_conversion bucket capacity is 60.
	denied := 0
	for i := 0; i < 70; i++ {
		_, err := s.Save(ctx, id, "in", "out")
		if errors.Is(err, app.ErrRateLimited) {
			denied++
		} else if err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}
	if denied != 10 {
		t.Fatalf("expected 10 limiter denials, got %d", denied)
	}
}

func TestHistoryService_ToggleFavorite(t *testing.T) {
	s, _ := newHistoryService(t)
	ctx := context.Background()
	id := identity.Authenticated("u1")

	rec, err := s.Save(ctx, id, "in", "out")
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	favorited, err := s.ToggleFavorite(ctx, id, rec.ID)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !favorited {
		t.Fatal("expected favorited")
	}

	favs, err := s.Favorites(ctx, id, 0)
	if err != nil {
		t.Fatalf("favorites: %v", err)
	}
	if len(favs) != 1 || favs[0].ID != rec.ID {
		t.Fatalf("unexpected favorites: %+v", favs)
	}

	favorited, err = s.ToggleFavorite(ctx, id, rec.ID)
	if err != nil {
		t.Fatalf("toggle back: %v", err)
	}
	if favorited {
		t.Fatal("expected unfavorited")
	}
}

func TestHistoryService_FavoritesRequireAuth(t *testing.T) {
	s, _ := newHistoryService(t)
	ctx := context.Background()
	anon := identity.Anonymous("sess")

	if _, err := s.ToggleFavorite(ctx, anon, "c1"); !errors.Is(err, app.ErrAuthRequired) {
		t.Fatalf("expected ErrAuthRequired, got %v", err)
	}
	if _, err := s.Favorites(ctx, anon, 0); !errors.Is(err, app.ErrAuthRequired) {
		t.Fatalf("expected ErrAuthRequired, got %v", err)
	}
}
