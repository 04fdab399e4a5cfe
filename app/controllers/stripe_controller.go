package controllers

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/naturesense/naturesense/app/repository"
	"github.com/naturesense/naturesense/internal/pkg/billing"
	"github.com/naturesense/naturesense/internal/pkg/database"
	"github.com/naturesense/naturesense/internal/pkg/usercontext"
)

// stripeClient is initialized at startup; nil when Stripe is not configured.
var stripeClient *billing.StripeClient

// SetupStripe wires the Stripe client used by the billing endpoints.
func SetupStripe(client *billing.StripeClient) {
	stripeClient = client
}

// HandleStripeWebhook receives provider webhook deliveries. The signature is
// verified before the payload is touched; deliveries that were already
// processed successfully are acknowledged without reprocessing, while a
// redelivery of a failed event runs the full dispatch again.
func HandleStripeWebhook(c *fiber.Ctx) error {
	if stripeClient == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "billing_disabled"})
	}

	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := c.Get("Stripe-Signature")

	stripeEvent, err := stripeClient.VerifyWebhookEvent(rawBody, signature)
	if err != nil {
		log.Printf("webhook signature verification failed: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_signature"})
	}

	svc := billing.NewServiceFromDB(database.GetDB(), stripeClient)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	outcome, err := svc.ProcessWebhook(ctx, stripeEvent, rawBody)
	if err != nil {
		log.Printf("webhook event %s not processed: %v", stripeEvent.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "event_not_processed"})
	}

	switch outcome {
	case billing.WebhookDuplicate:
		return c.JSON(fiber.Map{"received": true, "duplicate": true})
	case billing.WebhookIgnored:
		return c.JSON(fiber.Map{"received": true, "ignored": true})
	default:
		return c.JSON(fiber.Map{"received": true})
	}
}

// HandleCreateCheckoutSession opens a subscription checkout for the
// authenticated user and returns the hosted checkout URL.
func HandleCreateCheckoutSession(c *fiber.Ctx) error {
	if stripeClient == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "billing_disabled"})
	}

	userCtx := usercontext.GetUserContext(c)

	var req struct {
		PriceID string `json:"priceId"`
	}
	if err := c.BodyParser(&req); err != nil || req.PriceID == "" {
		return jsonError(c, fiber.StatusBadRequest, "priceId is required")
	}

	repo := repository.GetGlobalFactory().GetUserRepository()
	user, err := repo.GetByID(userCtx.UserID)
	if err != nil {
		return internalError(c, "Error creating checkout session")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	customerRef, err := stripeClient.EnsureCustomer(ctx, user.StripeCustomerID, user.Name, user.Email, user.ClientReferenceID)
	if err != nil {
		log.Printf("create customer failed for user %d: %v", user.ID, err)
		return internalError(c, "Error creating checkout session")
	}
	if user.StripeCustomerID == "" {
		user.StripeCustomerID = customerRef
		if err := repo.Update(user); err != nil {
			log.Printf("persist customer ref for user %d failed: %v", user.ID, err)
			return internalError(c, "Error creating checkout session")
		}
	}

	url, err := stripeClient.CreateCheckoutSession(ctx, customerRef, req.PriceID, user.ClientReferenceID)
	if err != nil {
		log.Printf("create checkout session failed for user %d: %v", user.ID, err)
		return internalError(c, "Error creating checkout session")
	}

	return c.JSON(fiber.Map{"url": url})
}
