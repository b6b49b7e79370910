package app_test

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/texlify/texlify/adapters/clock"
	"github.com/texlify/texlify/adapters/memory"
	"github.com/texlify/texlify/adapters/payment"
	"github.com/texlify/texlify/app"
	"github.com/texlify/texlify/domain/tier"
	"github.com/texlify/texlify/ports"
)

func newBillingFixture(t *testing.T) (*app.BillingService, *memory.UserStore, *clock.Fake) {
	t.Helper()
	fake := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	users := memory.NewUserStore()
	service := app.NewBillingService(payment.NewDummyParser(), users, fake, zerolog.Nop())

	err := users.Upsert(context.Background(), ports.User{
		ID:               "u1",
		StripeCustomerID: "cus_123",
		CreatedAt:        fake.Now(),
		UpdatedAt:        fake.Now(),
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	return service, users, fake
}

func TestBilling_CheckoutCompleted(t *testing.T) {
	service, users, fake := newBillingFixture(t)
	ctx := context.Background()

	payload := []byte(`{"type":"checkout.session.completed","data":{"customer":"cus_123","subscription":"sub_9"}}`)
	if err := service.HandleWebhook(ctx, payload, ""); err != nil {
		t.Fatalf("webhook: %v", err)
	}

	sub, err := users.Subscription(ctx, "u1")
	if err != nil {
		t.Fatalf("subscription: %v", err)
	}
	if !tier.IsPro(sub, fake.Now()) {
		t.Fatalf("expected pro after checkout, got %+v", sub)
	}

	u, _ := users.Get(ctx, "u1")
	if u.StripeSubscriptionID != "sub_9" {
		t.Fatalf("expected sub_9 recorded, got %q", u.StripeSubscriptionID)
	}
}

func TestBilling_SubscriptionUpdated(t *testing.T) {
	service, users, fake := newBillingFixture(t)
	ctx := context.Background()

	periodEnd := fake.Now().AddDate(0, 1, 0).Unix()
	payload := []byte(`{"type":"customer.subscription.updated","data":{"id":"sub_9","customer":"cus_123","status":"past_due","current_period_end":` +
		strconv.FormatInt(periodEnd, 10) + `}}`)
	if err := service.HandleWebhook(ctx, payload, ""); err != nil {
		t.Fatalf("webhook: %v", err)
	}

	sub, _ := users.Subscription(ctx, "u1")
	if sub.Status != "past_due" {
		t.Fatalf("expected past_due, got %q", sub.Status)
	}
	if tier.IsPro(sub, fake.Now()) {
		t.Fatal("past_due must not grant pro")
	}
}

func TestBilling_SubscriptionDeleted(t *testing.T) {
	service, users, fake := newBillingFixture(t)
	ctx := context.Background()

	// Upgrade, then cancel.
	up := []byte(`{"type":"checkout.session.completed","data":{"customer":"cus_123","subscription":"sub_9"}}`)
	if err := service.HandleWebhook(ctx, up, ""); err != nil {
		t.Fatalf("checkout: %v", err)
	}
	down := []byte(`{"type":"customer.subscription.deleted","data":{"customer":"cus_123"}}`)
	if err := service.HandleWebhook(ctx, down, ""); err != nil {
		t.Fatalf("delete: %v", err)
	}

	sub, _ := users.Subscription(ctx, "u1")
	if tier.IsPro(sub, fake.Now()) {
		t.Fatalf("expected downgrade, got %+v", sub)
	}
	if sub.Tier != "free" || sub.Status != "cancelled" {
		t.Fatalf("unexpected subscription: %+v", sub)
	}
}

func TestBilling_UnknownEventIgnored(t *testing.T) {
	service, _, _ := newBillingFixture(t)

	payload := []byte(`{"type":"invoice.paid","data":{}}`)
	if err := service.HandleWebhook(context.Background(), payload, ""); err != nil {
		t.Fatalf("unhandled events must be acknowledged: %v", err)
	}
}

func TestBilling_UnknownCustomer(t *testing.T) {
	service, _, _ := newBillingFixture(t)

	payload := []byte(`{"type":"checkout.session.completed","data":{"customer":"cus_unknown"}}`)
	if err := service.HandleWebhook(context.Background(), payload, ""); err == nil {
		t.Fatal("expected error for unknown customer")
	}
}
