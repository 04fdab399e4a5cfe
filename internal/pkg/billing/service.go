package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"
	"gorm.io/gorm"

	"github.com/naturesense/naturesense/app/models"
)

// Service reconciles billing events against local user records. Every apply
// action is idempotent so provider redeliveries converge on the same state.
type Service struct {
	repo     Repository
	provider SubscriptionProvider
	now      func() time.Time
}

// NewService creates a billing service from an injected repository and
// subscription provider.
func NewService(repo Repository, provider SubscriptionProvider) *Service {
	return &Service{repo: repo, provider: provider, now: time.Now}
}

// NewServiceFromDB creates a billing service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, provider SubscriptionProvider) *Service {
	return NewService(NewRepository(db), provider)
}

// Apply dispatches a billing event to its reconciliation action. Events for
// customers with no local user record are logged and dropped; persistence
// failures surface as *WriteError so the caller can signal the provider to
// redeliver.
func (s *Service) Apply(ctx context.Context, event Event) error {
	switch e := event.(type) {
	case *CheckoutCompleted:
		sub, err := s.provider.RetrieveSubscription(ctx, e.Subscription)
		if err != nil {
			return fmt.Errorf("retrieve subscription %s: %w", e.Subscription, err)
		}
		state, err := StateFromSubscription(sub, KindCheckoutCompleted)
		if err != nil {
			return err
		}
		return s.applyState(e.Customer, state)

	case *InvoicePaid:
		return s.applyStatus(e.Customer, models.SubscriptionStatusActive)

	case *InvoicePaymentFailed:
		return s.applyStatus(e.Customer, models.SubscriptionStatusPastDue)

	case *SubscriptionUpdated:
		return s.applyState(e.Customer, e.State)

	case *SubscriptionDeleted:
		return s.applyDeleted(e.Customer)

	case *TrialWillEnd:
		// Informational only. A notification hook can attach here later.
		log.Printf("[Billing] trial ending soon for customer %s", e.Customer)
		return nil

	case *CustomerUpdated:
		return s.applyCustomerProfile(e)

	default:
		return fmt.Errorf("unhandled billing event kind %T", event)
	}
}

// applyState stamps the full provider subscription snapshot onto the user.
func (s *Service) applyState(customerRef string, state SubscriptionState) error {
	user, ok, err := s.findUser(customerRef)
	if err != nil || !ok {
		return err
	}

	user.SubscriptionStatus = state.Status
	user.SubscriptionPlanID = state.PlanRef
	user.SubscriptionStart = state.PeriodStart
	user.SubscriptionEnd = state.PeriodEnd
	user.TrialEnd = state.TrialEnd
	user.CancelAtPeriodEnd = state.CancelAtPeriodEnd
	return s.saveUser(user, "apply subscription state")
}

// applyStatus updates only the subscription status, leaving period fields as
// the last full snapshot left them.
func (s *Service) applyStatus(customerRef, status string) error {
	user, ok, err := s.findUser(customerRef)
	if err != nil || !ok {
		return err
	}
	if user.SubscriptionStatus == status {
		return nil
	}
	user.SubscriptionStatus = status
	return s.saveUser(user, "apply subscription status")
}

// applyDeleted marks the subscription canceled. The end timestamp is stamped
// once; a redelivered deletion keeps the earlier timestamp.
func (s *Service) applyDeleted(customerRef string) error {
	user, ok, err := s.findUser(customerRef)
	if err != nil || !ok {
		return err
	}
	if user.SubscriptionStatus == models.SubscriptionStatusCanceled {
		return nil
	}
	now := s.now().UTC()
	user.SubscriptionStatus = models.SubscriptionStatusCanceled
	user.SubscriptionEnd = &now
	user.CancelAtPeriodEnd = false
	return s.saveUser(user, "apply subscription deletion")
}

func (s *Service) applyCustomerProfile(e *CustomerUpdated) error {
	user, ok, err := s.findUser(e.Customer)
	if err != nil || !ok {
		return err
	}
	changed := false
	if e.Name != "" && e.Name != user.Name {
		user.Name = e.Name
		changed = true
	}
	if e.Email != "" && e.Email != user.Email {
		user.Email = e.Email
		changed = true
	}
	if !changed {
		return nil
	}
	return s.saveUser(user, "apply customer profile")
}

func (s *Service) findUser(customerRef string) (*models.User, bool, error) {
	user, err := s.repo.FindUserByCustomerRef(customerRef)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("[Billing] no local user for customer %s, dropping event", customerRef)
			return nil, false, nil
		}
		return nil, false, &WriteError{Op: "find user by customer ref", Err: err}
	}
	return user, true, nil
}

func (s *Service) saveUser(user *models.User, op string) error {
	if err := s.repo.SaveUser(user); err != nil {
		return &WriteError{Op: op, Err: err}
	}
	return nil
}

// WebhookEventInput carries a raw webhook delivery for idempotent persistence.
type WebhookEventInput struct {
	ProviderEventID string
	EventType       string
	PayloadJSON     string
}

// RecordWebhookEvent persists webhook payloads idempotently. Deliveries
// without an event ID are deduplicated by payload hash.
func (s *Service) RecordWebhookEvent(ctx context.Context, in WebhookEventInput) (bool, *models.BillingWebhookEvent, error) {
	_ = ctx
	eventID := strings.TrimSpace(in.ProviderEventID)
	if eventID == "" {
		sum := sha256.Sum256([]byte(in.PayloadJSON))
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	event := &models.BillingWebhookEvent{
		ProviderEventID: eventID,
		EventType:       strings.TrimSpace(in.EventType),
		PayloadJSON:     in.PayloadJSON,
	}
	return s.repo.CreateWebhookEventIfNotExists(event)
}

// WebhookOutcome classifies how one webhook delivery was handled.
type WebhookOutcome int

const (
	// WebhookApplied means the event mutated local state (or converged on it).
	WebhookApplied WebhookOutcome = iota
	// WebhookDuplicate means the event was already processed successfully.
	WebhookDuplicate
	// WebhookIgnored means the event was acknowledged without a state change:
	// unknown kind, malformed payload, or no matching local record.
	WebhookIgnored
	// WebhookFailed means the event was not durably processed; the caller must
	// signal the provider to redeliver.
	WebhookFailed
)

// ProcessWebhook records and reconciles one signature-verified delivery.
// Deliveries are deduplicated by provider event ID, but only successfully
// processed events short-circuit: a redelivery of an event whose earlier
// attempt failed runs the full dispatch again, so the provider's redelivery
// loop remains the retry path for transient storage failures.
func (s *Service) ProcessWebhook(ctx context.Context, stripeEvent stripe.Event, payload []byte) (WebhookOutcome, error) {
	created, stored, err := s.RecordWebhookEvent(ctx, WebhookEventInput{
		ProviderEventID: stripeEvent.ID,
		EventType:       string(stripeEvent.Type),
		PayloadJSON:     string(payload),
	})
	if err != nil {
		return WebhookFailed, &WriteError{Op: "record webhook event", Err: err}
	}
	if !created {
		if stored.ProcessedAt != nil && stored.ProcessingError == "" {
			return WebhookDuplicate, nil
		}
		log.Printf("[Billing] reprocessing webhook event %s after earlier failure", stored.ProviderEventID)
	}

	event, err := ParseStripeEvent(stripeEvent)
	if err != nil {
		if markErr := s.MarkWebhookProcessed(ctx, stored.ID, err); markErr != nil {
			log.Printf("[Billing] mark processed failed for %s: %v", stored.ProviderEventID, markErr)
		}
		var verr *ValidationError
		if errors.As(err, &verr) {
			// A payload that fails validation will fail identically on every
			// redelivery; acknowledge it so the provider stops resending.
			log.Printf("[Billing] dropping invalid %s payload: %s", verr.Kind, verr.Reason)
			return WebhookIgnored, nil
		}
		return WebhookFailed, err
	}
	if event == nil {
		if markErr := s.MarkWebhookProcessed(ctx, stored.ID, nil); markErr != nil {
			log.Printf("[Billing] mark processed failed for %s: %v", stored.ProviderEventID, markErr)
		}
		return WebhookIgnored, nil
	}

	if applyErr := s.Apply(ctx, event); applyErr != nil {
		if markErr := s.MarkWebhookProcessed(ctx, stored.ID, applyErr); markErr != nil {
			log.Printf("[Billing] mark processed failed for %s: %v", stored.ProviderEventID, markErr)
		}
		var verr *ValidationError
		if errors.As(applyErr, &verr) {
			log.Printf("[Billing] dropping invalid %s payload: %s", verr.Kind, verr.Reason)
			return WebhookIgnored, nil
		}
		return WebhookFailed, applyErr
	}

	if markErr := s.MarkWebhookProcessed(ctx, stored.ID, nil); markErr != nil {
		log.Printf("[Billing] mark processed failed for %s: %v", stored.ProviderEventID, markErr)
	}
	return WebhookApplied, nil
}

// MarkWebhookProcessed marks an event as processed and stores an optional error.
func (s *Service) MarkWebhookProcessed(ctx context.Context, webhookEventID uint, processingErr error) error {
	_ = ctx
	if webhookEventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.repo.MarkWebhookProcessed(webhookEventID, errMsg)
}
