package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/texlify/texlify/adapters/clock"
	"github.com/texlify/texlify/adapters/memory"
	"github.com/texlify/texlify/app"
	"github.com/texlify/texlify/domain/identity"
	"github.com/texlify/texlify/domain/tier"
	"github.com/texlify/texlify/ports"
)

func TestTierResolver(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	fake := clock.NewFake(now)
	users := memory.NewUserStore()
	resolver := app.NewTierResolver(users, fake, tier.Defaults(), zerolog.Nop())

	if err := users.Upsert(ctx, ports.User{ID: "u-pro", CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	err := users.UpdateSubscription(ctx, "u-pro", tier.Subscription{
		Tier: "pro", Status: "active", PeriodEnd: now.AddDate(0, 1, 0),
	}, "sub_1", now)
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	tests := []struct {
		name string
		id   identity.Identity
		want tier.Name
	}{
		{"anonymous session", identity.Anonymous("sess"), tier.Anonymous},
		{"unknown user is free", identity.Authenticated("u-new"), tier.Free},
		{"active pro subscription", identity.Authenticated("u-pro"), tier.Pro},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolver.Resolve(ctx, tt.id)
			if got.Name != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, got.Name)
			}
		})
	}
}

func TestTierResolver_ExpiredProIsFree(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	fake := clock.NewFake(now)
	users := memory.NewUserStore()
	resolver := app.NewTierResolver(users, fake, tier.Defaults(), zerolog.Nop())

	if err := users.Upsert(ctx, ports.User{ID: "u1", CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	err := users.UpdateSubscription(ctx, "u1", tier.Subscription{
		Tier: "pro", Status: "active", PeriodEnd: now.AddDate(0, 1, 0),
	}, "sub_1", now)
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	if got := resolver.Resolve(ctx, identity.Authenticated("u1")); got.Name != tier.Pro {
		t.Fatalf("expected pro, got %s", got.Name)
	}

	// The billing period lapses; resolution picks it up immediately.
	fake.Set(now.AddDate(0, 2, 0))
	if got := resolver.Resolve(ctx, identity.Authenticated("u1")); got.Name != tier.Free {
		t.Fatalf("expected free after period end, got %s", got.Name)
	}
}

func TestTierResolver_UpdateLimits(t *testing.T) {
	ctx := context.Background()
	fake := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	resolver := app.NewTierResolver(memory.NewUserStore(), fake, tier.Defaults(), zerolog.Nop())

	custom := tier.Defaults()
	anon := custom[tier.Anonymous]
	anon.DailyConversions = 3
	custom[tier.Anonymous] = anon
	resolver.UpdateLimits(custom)

	got := resolver.Resolve(ctx, identity.Anonymous("s"))
	if got.Limits.DailyConversions != 3 {
		t.Fatalf("expected overridden limit 3, got %d", got.Limits.DailyConversions)
	}
}
