package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/texlify/texlify/adapters/metrics"
	"github.com/texlify/texlify/domain/conversion"
	"github.com/texlify/texlify/domain/identity"
	"github.com/texlify/texlify/domain/quota"
	"github.com/texlify/texlify/domain/ratelimit"
	"github.com/texlify/texlify/domain/tier"
	"github.com/texlify/texlify/ports"
)

// DenyReason is a typed admission denial. Exactly one concrete type per
// failure mode; callers switch on the type to build their response.
type DenyReason interface {
	Reason() string
}

// RateLimited denies with a wait hint.
type RateLimited struct {
	Limiter    string
	RetryAfter time.Duration
}

func (RateLimited) Reason() string { return "rate_limited" }

// DailyQuotaExceeded denies when the identity's daily conversion cap is
// spent.
type DailyQuotaExceeded struct {
	Used  int64
	Limit int64
}

func (DailyQuotaExceeded) Reason() string { return "daily_quota_exceeded" }

// ToolQuotaExceeded denies when a per-tool daily cap is spent.
type ToolQuotaExceeded struct {
	Tool  conversion.Tool
	Used  int64
	Limit int64
}

func (ToolQuotaExceeded) Reason() string { return "tool_quota_exceeded" }

// InputTooLong denies oversized input for the caller's tier.
type InputTooLong struct {
	Length int
	Max    int
}

func (InputTooLong) Reason() string { return "input_too_long" }

// Unauthenticated denies tools that require a signed-in account.
type Unauthenticated struct {
	Tool conversion.Tool
}

func (Unauthenticated) Reason() string { return "unauthenticated" }

// Decision is the admission outcome (value type). When Allowed is
// false, Deny carries the typed reason. Tier is always populated so
// callers can report remaining quota.
type Decision struct {
	Allowed bool
	Tier    tier.Descriptor
	Deny    DenyReason
}

func allow(t tier.Descriptor) Decision {
	return Decision{Allowed: true, Tier: t}
}

func deny(t tier.Descriptor, reason DenyReason) Decision {
	return Decision{Tier: t, Deny: reason}
}

// AdmissionController decides whether a conversion may run. Checks are
// ordered cheapest-reversible first: burst limiter, global limiter,
// daily quota, tool quota, input size. Consumed rate limiter tokens are
// not refunded on a later denial; quota counters only move after a
// confirmed success via RecordSuccess.
type AdmissionController struct {
	limiter *RateLimiterEngine
	tiers   *TierResolver
	usage   ports.UsageStore
	clock   ports.Clock
	metrics *metrics.Collector
	logger  zerolog.Logger
}

// NewAdmissionController creates a new admission controller.
func NewAdmissionController(
	limiter *RateLimiterEngine,
	tiers *TierResolver,
	usage ports.UsageStore,
	clock ports.Clock,
	collector *metrics.Collector,
	logger zerolog.Logger,
) *AdmissionController {
	return &AdmissionController{
		limiter: limiter,
		tiers:   tiers,
		usage:   usage,
		clock:   clock,
		metrics: collector,
		logger:  logger,
	}
}

// Admit runs the full admission pipeline for one operation. A non-nil
// error means the decision could not be evaluated (storage failure),
// which is distinct from a deny.
func (c *AdmissionController) Admit(ctx context.Context, id identity.Identity, op conversion.Operation) (Decision, error) {
	now := c.clock.Now()
	t := c.tiers.Resolve(ctx, id)

	decision, err := c.admit(ctx, id, op, t, now)
	if err != nil {
		return Decision{}, err
	}
	c.observe(decision, t)
	return decision, nil
}

func (c *AdmissionController) admit(ctx context.Context, id identity.Identity, op conversion.Operation, t tier.Descriptor, now time.Time) (Decision, error) {
	// Tools gated to signed-in accounts fail before consuming anything.
	if op.IsTool() && op.Tool.RequiresAuth() && !id.IsAuthenticated() {
		return deny(t, Unauthenticated{Tool: op.Tool}), nil
	}

	// 1. Per-identity burst limiter.
	burst := c.burstLimiter(id, op)
	result, err := c.limiter.Check(ctx, burst, id.Key(), ratelimit.Request{Cost: 1}, now)
	if err != nil {
		return Decision{}, fmt.Errorf("burst limiter: %w", err)
	}
	if !result.Allowed {
		c.metrics.LimiterDenials.WithLabelValues(burst).Inc()
		return deny(t, RateLimited{Limiter: burst, RetryAfter: result.RetryAfter}), nil
	}

	// 2. Global throughput limiter.
	global := LimiterGlobalConversion
	if op.IsTool() {
		global = LimiterGlobalFiles
	}
	result, err = c.limiter.Check(ctx, global, "global", ratelimit.Request{Cost: 1}, now)
	if err != nil {
		return Decision{}, fmt.Errorf("global limiter: %w", err)
	}
	if !result.Allowed {
		c.metrics.LimiterDenials.WithLabelValues(global).Inc()
		return deny(t, RateLimited{Limiter: global, RetryAfter: result.RetryAfter}), nil
	}

	// 3. Daily conversion quota. Unlimited tiers skip the read entirely.
	if !t.Unlimited() {
		daily, err := c.usage.Daily(ctx, id.Key())
		if err != nil {
			return Decision{}, fmt.Errorf("daily quota: %w", err)
		}
		check := quota.Check(quota.Effective(daily, now), t.Limits.DailyConversions)
		if !check.Allowed {
			return deny(t, DailyQuotaExceeded{Used: check.Used, Limit: check.Limit}), nil
		}
	}

	// 4. Per-tool daily quota.
	if op.IsTool() {
		limit := t.Limits.ToolLimit(op.Tool)
		if quota.Bounded(limit) {
			used, err := c.usage.ToolCount(ctx, id.Key(), op.Tool, quota.DayStart(now))
			if err != nil {
				return Decision{}, fmt.Errorf("tool quota: %w", err)
			}
			if check := quota.Check(used, limit); !check.Allowed {
				return deny(t, ToolQuotaExceeded{Tool: op.Tool, Used: check.Used, Limit: check.Limit}), nil
			}
		}
	}

	// 5. Input size.
	if op.InputLength > t.Limits.MaxInputLength {
		return deny(t, InputTooLong{Length: op.InputLength, Max: t.Limits.MaxInputLength}), nil
	}

	return allow(t), nil
}

// RecordSuccess counts a completed conversion against the identity's
// quotas. Called only after the conversion succeeded: a failed or
// denied conversion never consumes quota.
func (c *AdmissionController) RecordSuccess(ctx context.Context, id identity.Identity, op conversion.Operation) error {
	now := c.clock.Now()

	t := c.tiers.Resolve(ctx, id)
	if !t.Unlimited() {
		if _, err := c.usage.IncrementDaily(ctx, id.Key(), now); err != nil {
			return fmt.Errorf("increment daily: %w", err)
		}
	}
	if op.IsTool() {
		if err := c.usage.RecordTool(ctx, id.Key(), op.Tool, now); err != nil {
			return fmt.Errorf("record tool: %w", err)
		}
	}
	return nil
}

// CheckActionLimiter applies a non-conversion action limiter (saving,
// favoriting). Returns the limiter result; callers deny on !Allowed.
func (c *AdmissionController) CheckActionLimiter(ctx context.Context, name string, id identity.Identity) (ratelimit.Result, error) {
	result, err := c.limiter.Check(ctx, name, id.Key(), ratelimit.Request{Cost: 1}, c.clock.Now())
	if err != nil {
		return ratelimit.Result{}, err
	}
	if !result.Allowed {
		c.metrics.LimiterDenials.WithLabelValues(name).Inc()
	}
	return result, nil
}

// ResetRateLimit clears one (limiter, identity) pair. Administrative.
func (c *AdmissionController) ResetRateLimit(ctx context.Context, name, key string) error {
	return c.limiter.Reset(ctx, name, key)
}

// ClearUsageBefore removes historical tool usage rows. Administrative;
// today's counters are untouched when before is in the past.
func (c *AdmissionController) ClearUsageBefore(ctx context.Context, before time.Time) (int64, error) {
	return c.usage.ClearBefore(ctx, before)
}

// Usage reports the identity's consumption against its tier, for the
// usage endpoint. Reads only; nothing is consumed.
func (c *AdmissionController) Usage(ctx context.Context, id identity.Identity) (UsageReport, error) {
	now := c.clock.Now()
	t := c.tiers.Resolve(ctx, id)

	report := UsageReport{Tier: t, Day: quota.Day(now)}

	daily, err := c.usage.Daily(ctx, id.Key())
	if err != nil {
		return UsageReport{}, err
	}
	report.DailyUsed = quota.Effective(daily, now)

	report.Tools = make(map[conversion.Tool]ToolUsage)
	for _, tool := range conversion.Tools() {
		used, err := c.usage.ToolCount(ctx, id.Key(), tool, quota.DayStart(now))
		if err != nil {
			return UsageReport{}, err
		}
		report.Tools[tool] = ToolUsage{Used: used, Limit: t.Limits.ToolLimit(tool)}
	}
	return report, nil
}

// UsageReport summarizes an identity's consumption for one UTC day.
type UsageReport struct {
	Tier      tier.Descriptor
	Day       string
	DailyUsed int64
	Tools     map[conversion.Tool]ToolUsage
}

// ToolUsage is one tool's consumption against its cap.
type ToolUsage struct {
	Used  int64
	Limit int64
}

func (c *AdmissionController) burstLimiter(id identity.Identity, op conversion.Operation) string {
	switch {
	case op.IsTool() && id.IsAuthenticated():
		return LimiterAuthenticatedFiles
	case op.IsTool():
		return LimiterAnonymousFiles
	case id.IsAuthenticated():
		return LimiterAuthenticatedConversions
	default:
		return LimiterAnonymousConversions
	}
}

func (c *AdmissionController) observe(d Decision, t tier.Descriptor) {
	if d.Allowed {
		c.metrics.AdmissionDecisions.WithLabelValues("allow", "", string(t.Name)).Inc()
		return
	}
	c.metrics.AdmissionDecisions.WithLabelValues("deny", d.Deny.Reason(), string(t.Name)).Inc()
	c.logger.Debug().
		Str("reason", d.Deny.Reason()).
		Str("tier", string(t.Name)).
		Msg("conversion denied")
}
