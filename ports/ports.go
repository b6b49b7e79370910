// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"errors"
	"time"

	"github.com/texlify/texlify/domain/conversion"
	"github.com/texlify/texlify/domain/quota"
	"github.com/texlify/texlify/domain/ratelimit"
	"github.com/texlify/texlify/domain/tier"
)

// ErrNotFound is returned by stores when an entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrStorageUnavailable wraps transient storage failures. Callers must
// be able to tell "you are over quota" apart from "your quota could not
// be evaluated"; adapters wrap I/O errors with this sentinel so the
// distinction survives to the HTTP layer.
var ErrStorageUnavailable = errors.New("storage unavailable")

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// Hasher provides password/token hashing.
type Hasher interface {
	// Hash generates a hash from a plaintext value.
	Hash(plaintext string) ([]byte, error)

	// Compare checks if plaintext matches hash.
	Compare(hash []byte, plaintext string) bool
}

// -----------------------------------------------------------------------------
// Rate Limiter Backend
// -----------------------------------------------------------------------------

// RateLimitStore persists limiter state and serializes updates to it.
//
// CheckAndConsume runs the pure ratelimit.Decide under the store's own
// atomicity boundary (a shard mutex in memory, a transaction in SQLite):
// for any single entry key all calls are linearizable, so a bucket with
// one token left admits exactly one of two concurrent callers. The store
// never blocks callers beyond the read-modify-write itself.
type RateLimitStore interface {
	// CheckAndConsume atomically loads the entry, applies one
	// ratelimit.Decide step and persists the successor state.
	CheckAndConsume(ctx context.Context, entryKey string, cfg ratelimit.Config, req ratelimit.Request, now time.Time) (ratelimit.Result, error)

	// Reset removes an entry. Resetting a missing entry is a no-op, so
	// the operation is idempotent.
	Reset(ctx context.Context, entryKey string) error

	// Cleanup removes entries idle since before the given time.
	Cleanup(ctx context.Context, before time.Time) (int64, error)
}

// -----------------------------------------------------------------------------
// Usage / Quota Ports
// -----------------------------------------------------------------------------

// UsageStore persists per-identity daily counters and per-tool usage.
// Identities are addressed by identity.Identity.Key().
type UsageStore interface {
	// Daily returns the stored daily counter. Lazy rollover is the
	// caller's concern (quota.Effective); a missing row reads as zero.
	Daily(ctx context.Context, identityKey string) (quota.Daily, error)

	// IncrementDaily atomically counts one conversion at now: a
	// same-day increment, or day adoption with count 1.
	IncrementDaily(ctx context.Context, identityKey string, now time.Time) (quota.Daily, error)

	// ToolCount returns how many tool conversions the identity made
	// since dayStart.
	ToolCount(ctx context.Context, identityKey string, tool conversion.Tool, dayStart time.Time) (int64, error)

	// RecordTool counts one tool conversion at the given time.
	RecordTool(ctx context.Context, identityKey string, tool conversion.Tool, at time.Time) error

	// ClearBefore removes tool usage rows older than the given time.
	// Administrative; historical rows are audit data, not needed for
	// today's decisions.
	ClearBefore(ctx context.Context, before time.Time) (int64, error)
}

// -----------------------------------------------------------------------------
// Conversion Content Ports
// -----------------------------------------------------------------------------

// ConversionStore persists conversion history, file conversions and
// favorites.
type ConversionStore interface {
	// SaveRecord stores a completed text conversion.
	SaveRecord(ctx context.Context, rec conversion.Record) error

	// History returns the most recent conversions for an identity key.
	History(ctx context.Context, identityKey string, limit int) ([]conversion.Record, error)

	// SaveFile stores a new file conversion record.
	SaveFile(ctx context.Context, rec conversion.FileRecord) error

	// UpdateFile updates the lifecycle fields of a file conversion.
	UpdateFile(ctx context.Context, rec conversion.FileRecord) error

	// FileHistory returns recent file conversions for an identity key,
	// optionally filtered by tool (empty = all).
	FileHistory(ctx context.Context, identityKey string, tool conversion.Tool, limit int) ([]conversion.FileRecord, error)

	// ToggleFavorite flips the favorite mark; returns the new state.
	// favoriteID is used when the toggle creates a new favorite row.
	ToggleFavorite(ctx context.Context, userID, conversionID, favoriteID string, at time.Time) (bool, error)

	// Favorites returns the user's favorited conversions.
	Favorites(ctx context.Context, userID string, limit int) ([]conversion.Record, error)

	// IsFavorite reports whether the user favorited the conversion.
	IsFavorite(ctx context.Context, userID, conversionID string) (bool, error)

	// ClearBefore removes conversion rows older than the given time.
	ClearBefore(ctx context.Context, before time.Time) (int64, error)
}

// -----------------------------------------------------------------------------
// User / Subscription Ports
// -----------------------------------------------------------------------------

// User is a synced account record. Subscription fields are written by
// the billing webhook and only read here.
type User struct {
	ID                    string
	Email                 string
	SubscriptionTier      string // "free" or "pro"
	SubscriptionStatus    string // "active", "cancelled", "past_due"
	SubscriptionPeriodEnd time.Time
	StripeCustomerID      string
	StripeSubscriptionID  string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// UserStore persists user accounts.
type UserStore interface {
	// Get retrieves a user by ID.
	Get(ctx context.Context, id string) (User, error)

	// GetByStripeCustomer retrieves a user by Stripe customer ID.
	GetByStripeCustomer(ctx context.Context, customerID string) (User, error)

	// Upsert creates or updates a user.
	Upsert(ctx context.Context, u User) error

	// UpdateSubscription writes the billing-synced subscription fields.
	UpdateSubscription(ctx context.Context, userID string, sub tier.Subscription, stripeSubscriptionID string, at time.Time) error
}

// SubscriptionProvider reads the subscription state the tier resolver
// consults. Updated asynchronously by the billing webhook; never
// written from the admission path.
type SubscriptionProvider interface {
	// Subscription returns the user's current billing state. A user
	// with no record resolves to the zero Subscription (free tier).
	Subscription(ctx context.Context, userID string) (tier.Subscription, error)
}

// -----------------------------------------------------------------------------
// External Service Ports
// -----------------------------------------------------------------------------

// IdentityProvider verifies request credentials. The engine never
// checks credentials itself; the production adapter delegates to the
// hosted auth provider.
type IdentityProvider interface {
	// Identify resolves a bearer token to a user ID. Returns
	// ErrNotFound for tokens that do not resolve; callers treat that
	// as anonymous, not as a failure.
	Identify(ctx context.Context, token string) (userID string, err error)
}

// Converter performs the expensive conversion. Invoked only after
// admission; the engine knows nothing about its internals.
type Converter interface {
	// ConvertText converts plain text to LaTeX.
	ConvertText(ctx context.Context, text string) (conversion.Output, error)

	// ConvertTool runs a named tool conversion over its input.
	ConvertTool(ctx context.Context, tool conversion.Tool, input string) (conversion.Output, error)
}

// PaymentWebhookParser validates and decodes payment provider webhooks.
type PaymentWebhookParser interface {
	// ParseWebhook verifies the signature and returns the event type
	// and payload.
	ParseWebhook(payload []byte, signature string) (eventType string, data map[string]any, err error)
}
