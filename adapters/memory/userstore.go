package memory

import (
	"context"
	"sync"
	"time"

	"github.com/texlify/texlify/domain/tier"
	"github.com/texlify/texlify/ports"
)

// UserStore is an in-memory implementation of ports.UserStore and
// ports.SubscriptionProvider.
type UserStore struct {
	mu    sync.RWMutex
	users map[string]ports.User
}

// NewUserStore creates a new in-memory user store.
func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]ports.User)}
}

// Get retrieves a user by ID.
func (s *UserStore) Get(ctx context.Context, id string) (ports.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return ports.User{}, ports.ErrNotFound
	}
	return u, nil
}

// GetByStripeCustomer retrieves a user by Stripe customer ID.
func (s *UserStore) GetByStripeCustomer(ctx context.Context, customerID string) (ports.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.StripeCustomerID == customerID {
			return u, nil
		}
	}
	return ports.User{}, ports.ErrNotFound
}

// Upsert creates or updates a user.
func (s *UserStore) Upsert(ctx context.Context, u ports.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
	return nil
}

// UpdateSubscription writes the billing-synced subscription fields.
func (s *UserStore) UpdateSubscription(ctx context.Context, userID string, sub tier.Subscription, stripeSubscriptionID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return ports.ErrNotFound
	}
	u.SubscriptionTier = sub.Tier
	u.SubscriptionStatus = sub.Status
	u.SubscriptionPeriodEnd = sub.PeriodEnd
	if stripeSubscriptionID != "" {
		u.StripeSubscriptionID = stripeSubscriptionID
	}
	u.UpdatedAt = at
	s.users[userID] = u
	return nil
}

// Subscription implements ports.SubscriptionProvider. Users with no
// record resolve to the zero subscription (free tier).
func (s *UserStore) Subscription(ctx context.Context, userID string) (tier.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return tier.Subscription{}, nil
	}
	return tier.Subscription{
		Tier:      u.SubscriptionTier,
		Status:    u.SubscriptionStatus,
		PeriodEnd: u.SubscriptionPeriodEnd,
	}, nil
}

// Ensure interface compliance.
var (
	_ ports.UserStore            = (*UserStore)(nil)
	_ ports.SubscriptionProvider = (*UserStore)(nil)
)
