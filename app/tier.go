package app

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/texlify/texlify/domain/identity"
	"github.com/texlify/texlify/domain/tier"
	"github.com/texlify/texlify/ports"
)

// TierResolver maps an identity to its tier descriptor. Resolution is
// per request and never cached: a billing webhook can flip a user
// between free and pro at any time.
type TierResolver struct {
	subscriptions ports.SubscriptionProvider
	clock         ports.Clock
	logger        zerolog.Logger

	limits atomic.Pointer[map[tier.Name]tier.Limits]
}

// NewTierResolver creates a new tier resolver.
func NewTierResolver(subscriptions ports.SubscriptionProvider, clock ports.Clock, limits map[tier.Name]tier.Limits, logger zerolog.Logger) *TierResolver {
	r := &TierResolver{
		subscriptions: subscriptions,
		clock:         clock,
		logger:        logger,
	}
	r.UpdateLimits(limits)
	return r
}

// UpdateLimits swaps the per-tier limit table. Thread-safe.
func (r *TierResolver) UpdateLimits(limits map[tier.Name]tier.Limits) {
	copied := make(map[tier.Name]tier.Limits, len(limits))
	for name, l := range limits {
		copied[name] = l
	}
	r.limits.Store(&copied)
}

// Resolve returns the descriptor for an identity. Anonymous callers get
// the anonymous tier without any lookup. A subscription read failure
// degrades to free rather than failing the request: tier resolution is
// advisory, admission is not.
func (r *TierResolver) Resolve(ctx context.Context, id identity.Identity) tier.Descriptor {
	if !id.IsAuthenticated() {
		return r.descriptor(tier.Anonymous)
	}

	sub, err := r.subscriptions.Subscription(ctx, id.UserID)
	if err != nil {
		r.logger.Warn().Err(err).Str("user_id", id.UserID).Msg("subscription lookup failed, defaulting to free")
		return r.descriptor(tier.Free)
	}

	if tier.IsPro(sub, r.clock.Now()) {
		return r.descriptor(tier.Pro)
	}
	return r.descriptor(tier.Free)
}

func (r *TierResolver) descriptor(name tier.Name) tier.Descriptor {
	limits := *r.limits.Load()
	l, ok := limits[name]
	if !ok {
		l = tier.Defaults()[name]
	}
	return tier.Descriptor{Name: name, Limits: l}
}
