package tier_test

import (
	"testing"
	"time"

	"github.com/texlify/texlify/domain/conversion"
	"github.com/texlify/texlify/domain/quota"
	"github.com/texlify/texlify/domain/tier"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func TestIsPro(t *testing.T) {
	tests := []struct {
		name string
		sub  tier.Subscription
		want bool
	}{
		{"active pro", tier.Subscription{Tier: "pro", Status: "active"}, true},
		{"active pro with future period end", tier.Subscription{Tier: "pro", Status: "active", PeriodEnd: now.Add(24 * time.Hour)}, true},
		{"expired period", tier.Subscription{Tier: "pro", Status: "active", PeriodEnd: now.Add(-time.Hour)}, false},
		{"period end exactly now", tier.Subscription{Tier: "pro", Status: "active", PeriodEnd: now}, false},
		{"cancelled", tier.Subscription{Tier: "pro", Status: "cancelled"}, false},
		{"past due", tier.Subscription{Tier: "pro", Status: "past_due"}, false},
		{"free tier active", tier.Subscription{Tier: "free", Status: "active"}, false},
		{"empty", tier.Subscription{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tier.IsPro(tt.sub, now); got != tt.want {
				t.Errorf("IsPro(%+v) = %v, want %v", tt.sub, got, tt.want)
			}
		})
	}
}

func TestToolLimit_UnknownToolIsClosed(t *testing.T) {
	limits := tier.Defaults()[tier.Free]

	if got := limits.ToolLimit(conversion.Tool("made-up")); got != 0 {
		t.Errorf("limit = %d, want 0 for unknown tool", got)
	}
}

func TestDefaults(t *testing.T) {
	defaults := tier.Defaults()

	anon := defaults[tier.Anonymous]
	if anon.DailyConversions != 10 || anon.MaxInputLength != 10_000 {
		t.Errorf("anonymous limits = %+v", anon)
	}

	free := defaults[tier.Free]
	if free.DailyConversions != 60 {
		t.Errorf("free daily = %d, want 60", free.DailyConversions)
	}
	if free.ToolLimit(conversion.ToolLatexToWord) != 0 {
		t.Error("latex-to-word must be closed for free tier")
	}

	pro := defaults[tier.Pro]
	if quota.Bounded(pro.DailyConversions) {
		t.Error("pro daily cap must be unlimited")
	}
	if pro.MaxInputLength != 100_000 {
		t.Errorf("pro max input = %d, want 100000", pro.MaxInputLength)
	}
	if (tier.Descriptor{Name: tier.Pro, Limits: pro}).Unlimited() != true {
		t.Error("pro descriptor must report unlimited")
	}
}
