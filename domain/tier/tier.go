// Package tier provides subscription tier value types and pure functions.
package tier

import (
	"time"

	"github.com/texlify/texlify/domain/conversion"
	"github.com/texlify/texlify/domain/quota"
)

// Name is a subscription level.
type Name string

const (
	Anonymous Name = "anonymous"
	Free      Name = "free"
	Pro       Name = "pro"
)

// Limits holds the caps a tier attaches to conversions (value type).
type Limits struct {
	DailyConversions int64 // quota.Unlimited = no cap
	MaxInputLength   int
	ToolDaily        map[conversion.Tool]int64 // per-tool daily caps
}

// Descriptor is a resolved tier with its limits (immutable value type).
// Resolved per request, never cached: subscription state can change
// between requests via the billing webhook.
type Descriptor struct {
	Name   Name
	Limits Limits
}

// Subscription is the externally synced billing state of a user.
type Subscription struct {
	Tier      string
	Status    string
	PeriodEnd time.Time // zero = no period end recorded
}

// IsPro reports whether a subscription currently grants the pro tier.
// This is a PURE function.
func IsPro(sub Subscription, now time.Time) bool {
	if sub.Tier != "pro" {
		return false
	}
	if sub.Status != "active" {
		return false
	}
	if !sub.PeriodEnd.IsZero() && !sub.PeriodEnd.After(now) {
		return false
	}
	return true
}

// ToolLimit returns the tier's daily cap for a tool. Tools absent from
// the map are closed (limit 0), not open.
func (l Limits) ToolLimit(tool conversion.Tool) int64 {
	limit, ok := l.ToolDaily[tool]
	if !ok {
		return 0
	}
	return limit
}

// Unlimited reports whether the tier has no daily conversion cap.
func (d Descriptor) Unlimited() bool {
	return !quota.Bounded(d.Limits.DailyConversions)
}

// Defaults returns the built-in limits per tier, matching the product's
// published plans. Configuration may override these.
func Defaults() map[Name]Limits {
	return map[Name]Limits{
		Anonymous: {
			DailyConversions: 10,
			MaxInputLength:   10_000,
			ToolDaily: map[conversion.Tool]int64{
				conversion.ToolImageToLatex: 5,
				conversion.ToolPDFToLatex:   3,
				conversion.ToolLatexToImage: 10,
				conversion.ToolLatexToWord:  0,
			},
		},
		Free: {
			DailyConversions: 60,
			MaxInputLength:   10_000,
			ToolDaily: map[conversion.Tool]int64{
				conversion.ToolImageToLatex: 5,
				conversion.ToolPDFToLatex:   3,
				conversion.ToolLatexToImage: 10,
				conversion.ToolLatexToWord:  0,
			},
		},
		Pro: {
			DailyConversions: quota.Unlimited,
			MaxInputLength:   100_000,
			ToolDaily: map[conversion.Tool]int64{
				conversion.ToolImageToLatex: quota.Unlimited,
				conversion.ToolPDFToLatex:   quota.Unlimited,
				conversion.ToolLatexToImage: quota.Unlimited,
				conversion.ToolLatexToWord:  quota.Unlimited,
			},
		},
	}
}
