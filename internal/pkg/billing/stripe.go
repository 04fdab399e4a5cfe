package billing

import (
	"context"
	"errors"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"github.com/stripe/stripe-go/v78/webhook"

	"github.com/naturesense/naturesense/internal/pkg/env"
)

// ErrStripeNotConfigured is returned when Stripe credentials are absent.
var ErrStripeNotConfigured = errors.New("stripe is not configured")

// SubscriptionProvider fetches live subscription state from the billing
// provider. The reconciler depends on this interface so tests can substitute
// a fake.
type SubscriptionProvider interface {
	RetrieveSubscription(ctx context.Context, subscriptionRef string) (*stripe.Subscription, error)
}

// StripeClient wraps the Stripe SDK for subscription retrieval, customer
// creation and checkout session creation.
type StripeClient struct {
	sc            *client.API
	webhookSecret string
	successURL    string
	cancelURL     string
}

// NewStripeClientFromEnv builds a Stripe client from environment settings.
// Returns nil when STRIPE_SECRET_KEY is unset so callers can disable the
// billing surface cleanly.
func NewStripeClientFromEnv() *StripeClient {
	key := env.GetEnv("STRIPE_SECRET_KEY", "")
	if key == "" {
		return nil
	}
	sc := &client.API{}
	sc.Init(key, nil)
	return &StripeClient{
		sc:            sc,
		webhookSecret: env.GetEnv("STRIPE_WEBHOOK_SECRET", ""),
		successURL:    env.GetEnv("STRIPE_SUCCESS_URL", "http://localhost:3000/subscription/success"),
		cancelURL:     env.GetEnv("STRIPE_CANCEL_URL", "http://localhost:3000/subscription/cancel"),
	}
}

func (c *StripeClient) RetrieveSubscription(ctx context.Context, subscriptionRef string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	return c.sc.Subscriptions.Get(subscriptionRef, params)
}

// VerifyWebhookEvent checks the Stripe-Signature header against the raw body
// and returns the parsed event. The payload is never inspected before the
// signature verifies.
func (c *StripeClient) VerifyWebhookEvent(payload []byte, signatureHeader string) (stripe.Event, error) {
	return webhook.ConstructEvent(payload, signatureHeader, c.webhookSecret)
}

// EnsureCustomer creates a Stripe customer for the user when none is linked
// yet and returns the customer reference.
func (c *StripeClient) EnsureCustomer(ctx context.Context, customerRef, name, email, clientReferenceID string) (string, error) {
	if customerRef != "" {
		return customerRef, nil
	}
	params := &stripe.CustomerParams{
		Name:  stripe.String(name),
		Email: stripe.String(email),
	}
	params.Context = ctx
	params.AddMetadata("client_reference_id", clientReferenceID)
	cust, err := c.sc.Customers.New(params)
	if err != nil {
		return "", err
	}
	return cust.ID, nil
}

// CreateCheckoutSession opens a subscription-mode checkout for the given
// price and returns the hosted URL to redirect the user to.
func (c *StripeClient) CreateCheckoutSession(ctx context.Context, customerRef, priceRef, clientReferenceID string) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer: stripe.String(customerRef),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceRef),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(c.successURL),
		CancelURL:         stripe.String(c.cancelURL),
		ClientReferenceID: stripe.String(clientReferenceID),
	}
	params.Context = ctx
	sess, err := c.sc.CheckoutSessions.New(params)
	if err != nil {
		return "", err
	}
	return sess.URL, nil
}
