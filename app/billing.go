package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/texlify/texlify/domain/tier"
	"github.com/texlify/texlify/ports"
)

// BillingService syncs payment provider webhooks into the user store.
// The admission path never talks to the provider; it only reads the
// subscription fields this service writes.
type BillingService struct {
	parser ports.PaymentWebhookParser
	users  ports.UserStore
	clock  ports.Clock
	logger zerolog.Logger
}

// NewBillingService creates a new billing service.
func NewBillingService(parser ports.PaymentWebhookParser, users ports.UserStore, clock ports.Clock, logger zerolog.Logger) *BillingService {
	return &BillingService{
		parser: parser,
		users:  users,
		clock:  clock,
		logger: logger,
	}
}

// HandleWebhook verifies and applies one provider webhook. Unhandled
// event types are acknowledged without effect so the provider does not
// retry them forever.
func (s *BillingService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	eventType, data, err := s.parser.ParseWebhook(payload, signature)
	if err != nil {
		return fmt.Errorf("parse webhook: %w", err)
	}

	s.logger.Info().Str("event_type", eventType).Msg("handling payment webhook")

	switch eventType {
	case "checkout.session.completed":
		return s.handleCheckoutCompleted(ctx, data)
	case "customer.subscription.updated":
		return s.handleSubscriptionUpdated(ctx, data)
	case "customer.subscription.deleted":
		return s.handleSubscriptionDeleted(ctx, data)
	default:
		s.logger.Debug().Str("event_type", eventType).Msg("ignoring unhandled webhook event")
		return nil
	}
}

func (s *BillingService) handleCheckoutCompleted(ctx context.Context, data map[string]any) error {
	customerID, _ := data["customer"].(string)
	subscriptionID, _ := data["subscription"].(string)
	if customerID == "" {
		return fmt.Errorf("checkout event missing customer")
	}

	user, err := s.users.GetByStripeCustomer(ctx, customerID)
	if err != nil {
		s.logger.Error().Err(err).Str("customer_id", customerID).Msg("no user for checkout customer")
		return err
	}

	now := s.clock.Now()
	sub := tier.Subscription{
		Tier:      "pro",
		Status:    "active",
		PeriodEnd: now.AddDate(0, 1, 0),
	}
	if err := s.users.UpdateSubscription(ctx, user.ID, sub, subscriptionID, now); err != nil {
		return fmt.Errorf("sync checkout: %w", err)
	}

	s.logger.Info().Str("user_id", user.ID).Str("subscription_id", subscriptionID).Msg("checkout completed, user upgraded to pro")
	return nil
}

func (s *BillingService) handleSubscriptionUpdated(ctx context.Context, data map[string]any) error {
	customerID, _ := data["customer"].(string)
	subscriptionID, _ := data["id"].(string)
	status, _ := data["status"].(string)
	if customerID == "" {
		return fmt.Errorf("subscription event missing customer")
	}

	user, err := s.users.GetByStripeCustomer(ctx, customerID)
	if err != nil {
		s.logger.Error().Err(err).Str("customer_id", customerID).Msg("no user for subscription customer")
		return err
	}

	sub := tier.Subscription{
		Tier:      "pro",
		Status:    mapProviderStatus(status),
		PeriodEnd: periodEnd(data),
	}
	if err := s.users.UpdateSubscription(ctx, user.ID, sub, subscriptionID, s.clock.Now()); err != nil {
		return fmt.Errorf("sync subscription: %w", err)
	}

	s.logger.Info().
		Str("user_id", user.ID).
		Str("status", sub.Status).
		Time("period_end", sub.PeriodEnd).
		Msg("subscription updated")
	return nil
}

func (s *BillingService) handleSubscriptionDeleted(ctx context.Context, data map[string]any) error {
	customerID, _ := data["customer"].(string)
	if customerID == "" {
		return fmt.Errorf("subscription event missing customer")
	}

	user, err := s.users.GetByStripeCustomer(ctx, customerID)
	if err != nil {
		s.logger.Error().Err(err).Str("customer_id", customerID).Msg("no user for subscription customer")
		return err
	}

	now := s.clock.Now()
	sub := tier.Subscription{Tier: "free", Status: "cancelled"}
	if err := s.users.UpdateSubscription(ctx, user.ID, sub, "", now); err != nil {
		return fmt.Errorf("sync cancellation: %w", err)
	}

	s.logger.Info().Str("user_id", user.ID).Msg("subscription cancelled, user downgraded to free")
	return nil
}

func mapProviderStatus(status string) string {
	switch status {
	case "active", "trialing":
		return "active"
	case "past_due", "unpaid":
		return "past_due"
	case "canceled", "incomplete_expired":
		return "cancelled"
	default:
		return status
	}
}

func periodEnd(data map[string]any) time.Time {
	// Stripe sends epoch seconds; JSON decoding yields float64.
	if v, ok := data["current_period_end"].(float64); ok && v > 0 {
		return time.Unix(int64(v), 0).UTC()
	}
	return time.Time{}
}
