package billing

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stripe/stripe-go/v78"
)

func stripeEvent(eventType string, payload string) stripe.Event {
	return stripe.Event{
		Type: stripe.EventType(eventType),
		Data: &stripe.EventData{Raw: json.RawMessage(payload)},
	}
}

func TestParseStripeEventCheckoutCompleted(t *testing.T) {
	ev := stripeEvent("checkout.session.completed", `{
		"mode": "subscription",
		"customer": {"id": "cus_123"},
		"subscription": {"id": "sub_456"}
	}`)

	parsed, err := ParseStripeEvent(ev)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	checkout, ok := parsed.(*CheckoutCompleted)
	if !ok {
		t.Fatalf("expected *CheckoutCompleted, got %T", parsed)
	}
	if checkout.Customer != "cus_123" || checkout.Subscription != "sub_456" {
		t.Fatalf("unexpected refs: %+v", checkout)
	}
}

func TestParseStripeEventCheckoutPaymentModeIgnored(t *testing.T) {
	ev := stripeEvent("checkout.session.completed", `{
		"mode": "payment",
		"customer": {"id": "cus_123"}
	}`)

	parsed, err := ParseStripeEvent(ev)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed != nil {
		t.Fatalf("expected nil event for payment-mode checkout, got %T", parsed)
	}
}

func TestParseStripeEventCheckoutMissingSubscription(t *testing.T) {
	ev := stripeEvent("checkout.session.completed", `{
		"mode": "subscription",
		"customer": {"id": "cus_123"}
	}`)

	_, err := ParseStripeEvent(ev)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if verr.Kind != KindCheckoutCompleted {
		t.Fatalf("unexpected kind: %s", verr.Kind)
	}
}

func TestParseStripeEventInvoices(t *testing.T) {
	tests := []struct {
		eventType string
		wantPaid  bool
	}{
		{"invoice.payment_succeeded", true},
		{"invoice.payment_failed", false},
	}
	for _, tt := range tests {
		ev := stripeEvent(tt.eventType, `{"id": "in_1", "customer": {"id": "cus_9"}}`)
		parsed, err := ParseStripeEvent(ev)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.eventType, err)
		}
		if tt.wantPaid {
			paid, ok := parsed.(*InvoicePaid)
			if !ok || paid.Customer != "cus_9" || paid.Invoice != "in_1" {
				t.Fatalf("%s: unexpected event: %+v", tt.eventType, parsed)
			}
		} else {
			failed, ok := parsed.(*InvoicePaymentFailed)
			if !ok || failed.Customer != "cus_9" || failed.Invoice != "in_1" {
				t.Fatalf("%s: unexpected event: %+v", tt.eventType, parsed)
			}
		}
	}
}

func TestParseStripeEventInvoiceMissingCustomer(t *testing.T) {
	ev := stripeEvent("invoice.payment_failed", `{"id": "in_1"}`)
	_, err := ParseStripeEvent(ev)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
}

func TestParseStripeEventSubscriptionUpdated(t *testing.T) {
	ev := stripeEvent("customer.subscription.updated", `{
		"id": "sub_1",
		"customer": {"id": "cus_1"},
		"status": "past_due",
		"cancel_at_period_end": true,
		"current_period_start": 1700000000,
		"current_period_end": 1702592000,
		"trial_end": 0,
		"items": {"data": [{"price": {"id": "price_basic"}}]}
	}`)

	parsed, err := ParseStripeEvent(ev)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	upd, ok := parsed.(*SubscriptionUpdated)
	if !ok {
		t.Fatalf("expected *SubscriptionUpdated, got %T", parsed)
	}
	if upd.Customer != "cus_1" {
		t.Fatalf("unexpected customer: %s", upd.Customer)
	}
	if upd.State.Status != "past_due" {
		t.Fatalf("unexpected status: %s", upd.State.Status)
	}
	if upd.State.PlanRef != "price_basic" {
		t.Fatalf("unexpected plan: %s", upd.State.PlanRef)
	}
	if !upd.State.CancelAtPeriodEnd {
		t.Fatal("expected cancel_at_period_end to survive")
	}
	if upd.State.PeriodStart == nil || upd.State.PeriodStart.Unix() != 1700000000 {
		t.Fatalf("unexpected period start: %v", upd.State.PeriodStart)
	}
	if upd.State.TrialEnd != nil {
		t.Fatalf("expected nil trial end, got %v", upd.State.TrialEnd)
	}
}

func TestParseStripeEventSubscriptionUpdatedMissingItems(t *testing.T) {
	ev := stripeEvent("customer.subscription.updated", `{
		"id": "sub_1",
		"customer": {"id": "cus_1"},
		"status": "active",
		"items": {"data": []}
	}`)

	_, err := ParseStripeEvent(ev)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if verr.Kind != KindSubscriptionUpdated {
		t.Fatalf("unexpected kind: %s", verr.Kind)
	}
}

func TestParseStripeEventSubscriptionDeleted(t *testing.T) {
	ev := stripeEvent("customer.subscription.deleted", `{
		"id": "sub_1",
		"customer": {"id": "cus_1"},
		"status": "canceled"
	}`)

	parsed, err := ParseStripeEvent(ev)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	del, ok := parsed.(*SubscriptionDeleted)
	if !ok || del.Customer != "cus_1" || del.Subscription != "sub_1" {
		t.Fatalf("unexpected event: %+v", parsed)
	}
}

func TestParseStripeEventTrialWillEnd(t *testing.T) {
	ev := stripeEvent("customer.subscription.trial_will_end", `{
		"id": "sub_1",
		"customer": {"id": "cus_1"},
		"trial_end": 1702592000
	}`)

	parsed, err := ParseStripeEvent(ev)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	trial, ok := parsed.(*TrialWillEnd)
	if !ok {
		t.Fatalf("expected *TrialWillEnd, got %T", parsed)
	}
	if trial.TrialEnd == nil || trial.TrialEnd.Unix() != 1702592000 {
		t.Fatalf("unexpected trial end: %v", trial.TrialEnd)
	}
}

func TestParseStripeEventCustomerUpdated(t *testing.T) {
	ev := stripeEvent("customer.updated", `{
		"id": "cus_1",
		"name": "Jane Farmer",
		"email": "jane@example.com"
	}`)

	parsed, err := ParseStripeEvent(ev)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cust, ok := parsed.(*CustomerUpdated)
	if !ok {
		t.Fatalf("expected *CustomerUpdated, got %T", parsed)
	}
	if cust.Name != "Jane Farmer" || cust.Email != "jane@example.com" {
		t.Fatalf("unexpected fields: %+v", cust)
	}
}

func TestParseStripeEventUnknownTypeIgnored(t *testing.T) {
	ev := stripeEvent("payment_intent.succeeded", `{"id": "pi_1"}`)
	parsed, err := ParseStripeEvent(ev)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed != nil {
		t.Fatalf("expected nil event, got %T", parsed)
	}
}

func TestParseStripeEventMalformedJSON(t *testing.T) {
	ev := stripeEvent("customer.subscription.updated", `{not json`)
	_, err := ParseStripeEvent(ev)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
}
