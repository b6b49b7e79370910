package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/texlify/texlify/domain/tier"
	"github.com/texlify/texlify/ports"
)

// UserStore implements ports.UserStore and ports.SubscriptionProvider
// using SQLite.
type UserStore struct {
	db *DB
}

// NewUserStore creates a new SQLite user store.
func NewUserStore(db *DB) *UserStore {
	return &UserStore{db: db}
}

const userColumns = `id, email, subscription_tier, subscription_status,
	subscription_period_end, stripe_customer_id, stripe_subscription_id,
	created_at, updated_at`

// Get retrieves a user by ID.
func (s *UserStore) Get(ctx context.Context, id string) (ports.User, error) {
	return s.getBy(ctx, "id", id)
}

// GetByStripeCustomer retrieves a user by Stripe customer ID.
func (s *UserStore) GetByStripeCustomer(ctx context.Context, customerID string) (ports.User, error) {
	return s.getBy(ctx, "stripe_customer_id", customerID)
}

func (s *UserStore) getBy(ctx context.Context, column, value string) (ports.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+column+` = ?`, value)

	var u ports.User
	var periodEnd sql.NullTime
	err := row.Scan(&u.ID, &u.Email, &u.SubscriptionTier, &u.SubscriptionStatus,
		&periodEnd, &u.StripeCustomerID, &u.StripeSubscriptionID, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ports.User{}, ports.ErrNotFound
	}
	if err != nil {
		return ports.User{}, fmt.Errorf("%w: get user: %v", ports.ErrStorageUnavailable, err)
	}
	if periodEnd.Valid {
		u.SubscriptionPeriodEnd = periodEnd.Time
	}
	return u, nil
}

// Upsert creates or updates a user.
func (s *UserStore) Upsert(ctx context.Context, u ports.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email = excluded.email,
			subscription_tier = excluded.subscription_tier,
			subscription_status = excluded.subscription_status,
			subscription_period_end = excluded.subscription_period_end,
			stripe_customer_id = excluded.stripe_customer_id,
			stripe_subscription_id = excluded.stripe_subscription_id,
			updated_at = excluded.updated_at
	`, u.ID, u.Email, u.SubscriptionTier, u.SubscriptionStatus,
		nullTime(u.SubscriptionPeriodEnd), u.StripeCustomerID, u.StripeSubscriptionID,
		u.CreatedAt.UTC(), u.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("%w: upsert user: %v", ports.ErrStorageUnavailable, err)
	}
	return nil
}

// UpdateSubscription writes the billing-synced subscription fields.
func (s *UserStore) UpdateSubscription(ctx context.Context, userID string, sub tier.Subscription, stripeSubscriptionID string, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET subscription_tier = ?, subscription_status = ?,
		    subscription_period_end = ?, stripe_subscription_id = ?, updated_at = ?
		WHERE id = ?
	`, sub.Tier, sub.Status, nullTime(sub.PeriodEnd), stripeSubscriptionID, at.UTC(), userID)
	if err != nil {
		return fmt.Errorf("%w: update subscription: %v", ports.ErrStorageUnavailable, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: update subscription: %v", ports.ErrStorageUnavailable, err)
	}
	if n == 0 {
		return ports.ErrNotFound
	}
	return nil
}

// Subscription returns the user's current billing state. A user with no
// record resolves to the zero Subscription (free tier).
func (s *UserStore) Subscription(ctx context.Context, userID string) (tier.Subscription, error) {
	u, err := s.Get(ctx, userID)
	if errors.Is(err, ports.ErrNotFound) {
		return tier.Subscription{}, nil
	}
	if err != nil {
		return tier.Subscription{}, err
	}
	return tier.Subscription{
		Tier:      u.SubscriptionTier,
		Status:    u.SubscriptionStatus,
		PeriodEnd: u.SubscriptionPeriodEnd,
	}, nil
}

var (
	_ ports.UserStore            = (*UserStore)(nil)
	_ ports.SubscriptionProvider = (*UserStore)(nil)
)
