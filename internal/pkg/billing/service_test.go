package billing

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v78"
	"gorm.io/gorm"

	"github.com/naturesense/naturesense/app/models"
)

type fakeRepo struct {
	users     map[string]*models.User
	saveCount int
	saveErr   error
	events    map[string]*models.BillingWebhookEvent
	nextID    uint
	createErr error
	processed map[uint]string
}

func newFakeRepo(users ...*models.User) *fakeRepo {
	r := &fakeRepo{
		users:     make(map[string]*models.User),
		events:    make(map[string]*models.BillingWebhookEvent),
		processed: make(map[uint]string),
	}
	for _, u := range users {
		r.users[u.StripeCustomerID] = u
	}
	return r
}

func (r *fakeRepo) FindUserByCustomerRef(customerRef string) (*models.User, error) {
	u, ok := r.users[customerRef]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *u
	return &copied, nil
}

func (r *fakeRepo) SaveUser(user *models.User) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.saveCount++
	copied := *user
	r.users[user.StripeCustomerID] = &copied
	return nil
}

func (r *fakeRepo) CreateWebhookEventIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	if r.createErr != nil {
		return false, nil, r.createErr
	}
	if existing, ok := r.events[event.ProviderEventID]; ok {
		return false, existing, nil
	}
	r.nextID++
	event.ID = r.nextID
	r.events[event.ProviderEventID] = event
	return true, event, nil
}

func (r *fakeRepo) MarkWebhookProcessed(id uint, processingError string) error {
	r.processed[id] = processingError
	for _, ev := range r.events {
		if ev.ID == id {
			now := time.Now()
			ev.ProcessedAt = &now
			ev.ProcessingError = processingError
		}
	}
	return nil
}

type fakeProvider struct {
	sub *stripe.Subscription
	err error
}

func (p *fakeProvider) RetrieveSubscription(ctx context.Context, subscriptionRef string) (*stripe.Subscription, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.sub, nil
}

func activeStripeSubscription() *stripe.Subscription {
	return &stripe.Subscription{
		ID:                 "sub_1",
		Status:             stripe.SubscriptionStatusActive,
		CurrentPeriodStart: 1700000000,
		CurrentPeriodEnd:   1702592000,
		CancelAtPeriodEnd:  false,
		Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{
				{Price: &stripe.Price{ID: "price_pro"}},
			},
		},
	}
}

func farmer(customerRef, status string) *models.User {
	return &models.User{
		Name:               "Test Farmer",
		Email:              "farmer@example.com",
		Role:               models.ROLE_FARMER,
		StripeCustomerID:   customerRef,
		SubscriptionStatus: status,
	}
}

func TestApplySubscriptionUpdatedStampsFullState(t *testing.T) {
	repo := newFakeRepo(farmer("cus_1", models.SubscriptionStatusInactive))
	svc := NewService(repo, &fakeProvider{})

	start := time.Unix(1700000000, 0).UTC()
	end := time.Unix(1702592000, 0).UTC()
	err := svc.Apply(context.Background(), &SubscriptionUpdated{
		Customer: "cus_1",
		State: SubscriptionState{
			Status:            models.SubscriptionStatusTrialing,
			PlanRef:           "price_pro",
			PeriodStart:       &start,
			PeriodEnd:         &end,
			CancelAtPeriodEnd: true,
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	u := repo.users["cus_1"]
	if u.SubscriptionStatus != models.SubscriptionStatusTrialing {
		t.Fatalf("unexpected status: %s", u.SubscriptionStatus)
	}
	if u.SubscriptionPlanID != "price_pro" {
		t.Fatalf("unexpected plan: %s", u.SubscriptionPlanID)
	}
	if u.SubscriptionStart == nil || !u.SubscriptionStart.Equal(start) {
		t.Fatalf("unexpected start: %v", u.SubscriptionStart)
	}
	if !u.CancelAtPeriodEnd {
		t.Fatal("expected cancel_at_period_end to be stamped")
	}
}

func TestApplyInvoicePaymentFailedAlwaysPastDue(t *testing.T) {
	for _, from := range []string{
		models.SubscriptionStatusActive,
		models.SubscriptionStatusTrialing,
		models.SubscriptionStatusInactive,
	} {
		repo := newFakeRepo(farmer("cus_1", from))
		svc := NewService(repo, &fakeProvider{})
		if err := svc.Apply(context.Background(), &InvoicePaymentFailed{Customer: "cus_1", Invoice: "in_1"}); err != nil {
			t.Fatalf("from %s: unexpected error: %v", from, err)
		}
		if got := repo.users["cus_1"].SubscriptionStatus; got != models.SubscriptionStatusPastDue {
			t.Fatalf("from %s: got status %s", from, got)
		}
	}
}

func TestApplyInvoicePaidIdempotent(t *testing.T) {
	repo := newFakeRepo(farmer("cus_1", models.SubscriptionStatusPastDue))
	svc := NewService(repo, &fakeProvider{})

	ev := &InvoicePaid{Customer: "cus_1", Invoice: "in_1"}
	if err := svc.Apply(context.Background(), ev); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	writesAfterFirst := repo.saveCount
	if err := svc.Apply(context.Background(), ev); err != nil {
		t.Fatalf("second apply: %v", err)
	}
	if repo.users["cus_1"].SubscriptionStatus != models.SubscriptionStatusActive {
		t.Fatalf("unexpected status: %s", repo.users["cus_1"].SubscriptionStatus)
	}
	if repo.saveCount != writesAfterFirst {
		t.Fatal("redelivery should not issue another write")
	}
}

func TestApplySubscriptionDeletedStampsEndOnce(t *testing.T) {
	repo := newFakeRepo(farmer("cus_1", models.SubscriptionStatusActive))
	svc := NewService(repo, &fakeProvider{})

	first := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return first }
	if err := svc.Apply(context.Background(), &SubscriptionDeleted{Customer: "cus_1", Subscription: "sub_1"}); err != nil {
		t.Fatalf("first apply: %v", err)
	}

	u := repo.users["cus_1"]
	if u.SubscriptionStatus != models.SubscriptionStatusCanceled {
		t.Fatalf("unexpected status: %s", u.SubscriptionStatus)
	}
	if u.SubscriptionEnd == nil || !u.SubscriptionEnd.Equal(first) {
		t.Fatalf("unexpected end: %v", u.SubscriptionEnd)
	}

	// Redelivery an hour later must keep the earlier end timestamp.
	svc.now = func() time.Time { return first.Add(time.Hour) }
	if err := svc.Apply(context.Background(), &SubscriptionDeleted{Customer: "cus_1", Subscription: "sub_1"}); err != nil {
		t.Fatalf("second apply: %v", err)
	}
	if !repo.users["cus_1"].SubscriptionEnd.Equal(first) {
		t.Fatalf("end restamped on redelivery: %v", repo.users["cus_1"].SubscriptionEnd)
	}
}

func TestApplyUnknownCustomerIsNoOp(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, &fakeProvider{})

	if err := svc.Apply(context.Background(), &InvoicePaid{Customer: "cus_ghost", Invoice: "in_1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.users) != 0 {
		t.Fatal("no user record may be created for an unknown customer")
	}
	if repo.saveCount != 0 {
		t.Fatal("no write expected for an unknown customer")
	}
}

func TestApplySaveFailureIsWriteError(t *testing.T) {
	repo := newFakeRepo(farmer("cus_1", models.SubscriptionStatusInactive))
	repo.saveErr = errors.New("connection reset")
	svc := NewService(repo, &fakeProvider{})

	err := svc.Apply(context.Background(), &InvoicePaid{Customer: "cus_1", Invoice: "in_1"})
	var werr *WriteError
	if !errors.As(err, &werr) {
		t.Fatalf("expected *WriteError, got %v", err)
	}
	if !strings.Contains(werr.Error(), "connection reset") {
		t.Fatalf("cause not preserved: %v", werr)
	}
}

func TestApplyCheckoutCompletedFetchesLiveState(t *testing.T) {
	repo := newFakeRepo(farmer("cus_1", models.SubscriptionStatusInactive))
	svc := NewService(repo, &fakeProvider{sub: activeStripeSubscription()})

	err := svc.Apply(context.Background(), &CheckoutCompleted{Customer: "cus_1", Subscription: "sub_1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	u := repo.users["cus_1"]
	if u.SubscriptionStatus != models.SubscriptionStatusActive {
		t.Fatalf("unexpected status: %s", u.SubscriptionStatus)
	}
	if u.SubscriptionPlanID != "price_pro" {
		t.Fatalf("unexpected plan: %s", u.SubscriptionPlanID)
	}
	if u.SubscriptionEnd == nil || u.SubscriptionEnd.Unix() != 1702592000 {
		t.Fatalf("unexpected end: %v", u.SubscriptionEnd)
	}
}

func TestApplyCheckoutCompletedProviderFailure(t *testing.T) {
	repo := newFakeRepo(farmer("cus_1", models.SubscriptionStatusInactive))
	svc := NewService(repo, &fakeProvider{err: errors.New("stripe unavailable")})

	err := svc.Apply(context.Background(), &CheckoutCompleted{Customer: "cus_1", Subscription: "sub_1"})
	if err == nil {
		t.Fatal("expected error when provider fetch fails")
	}
	if repo.saveCount != 0 {
		t.Fatal("no write expected when provider fetch fails")
	}
}

func TestApplyCheckoutCompletedMissingItems(t *testing.T) {
	sub := activeStripeSubscription()
	sub.Items = &stripe.SubscriptionItemList{}
	repo := newFakeRepo(farmer("cus_1", models.SubscriptionStatusInactive))
	svc := NewService(repo, &fakeProvider{sub: sub})

	err := svc.Apply(context.Background(), &CheckoutCompleted{Customer: "cus_1", Subscription: "sub_1"})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
}

func TestApplyCustomerUpdatedMirrorsProfile(t *testing.T) {
	repo := newFakeRepo(farmer("cus_1", models.SubscriptionStatusActive))
	svc := NewService(repo, &fakeProvider{})

	err := svc.Apply(context.Background(), &CustomerUpdated{
		Customer: "cus_1",
		Name:     "Renamed Farmer",
		Email:    "renamed@example.com",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	u := repo.users["cus_1"]
	if u.Name != "Renamed Farmer" || u.Email != "renamed@example.com" {
		t.Fatalf("profile not mirrored: %+v", u)
	}

	// Empty provider fields never blank out local values.
	if err := svc.Apply(context.Background(), &CustomerUpdated{Customer: "cus_1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.users["cus_1"].Email != "renamed@example.com" {
		t.Fatal("empty email overwrote local value")
	}
}

func TestApplyTrialWillEndDoesNotMutate(t *testing.T) {
	repo := newFakeRepo(farmer("cus_1", models.SubscriptionStatusTrialing))
	svc := NewService(repo, &fakeProvider{})

	end := time.Now().Add(72 * time.Hour)
	if err := svc.Apply(context.Background(), &TrialWillEnd{Customer: "cus_1", Subscription: "sub_1", TrialEnd: &end}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.saveCount != 0 {
		t.Fatal("trial notice must not write")
	}
}

func TestRecordWebhookEventDeduplicates(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, &fakeProvider{})
	ctx := context.Background()

	created, stored, err := svc.RecordWebhookEvent(ctx, WebhookEventInput{
		ProviderEventID: "evt_1",
		EventType:       "invoice.payment_succeeded",
		PayloadJSON:     `{"id":"evt_1"}`,
	})
	if err != nil || !created || stored.ID == 0 {
		t.Fatalf("first record: created=%v stored=%+v err=%v", created, stored, err)
	}

	created, _, err = svc.RecordWebhookEvent(ctx, WebhookEventInput{
		ProviderEventID: "evt_1",
		EventType:       "invoice.payment_succeeded",
		PayloadJSON:     `{"id":"evt_1"}`,
	})
	if err != nil {
		t.Fatalf("second record: %v", err)
	}
	if created {
		t.Fatal("duplicate delivery must not create a second row")
	}
}

func webhookDelivery(id, eventType, payload string) stripe.Event {
	ev := stripeEvent(eventType, payload)
	ev.ID = id
	return ev
}

func TestProcessWebhookAppliesAndMarksProcessed(t *testing.T) {
	repo := newFakeRepo(farmer("cus_1", models.SubscriptionStatusPastDue))
	svc := NewService(repo, &fakeProvider{})

	payload := `{"id":"in_1","customer":{"id":"cus_1"}}`
	ev := webhookDelivery("evt_1", "invoice.payment_succeeded", payload)

	outcome, err := svc.ProcessWebhook(context.Background(), ev, []byte(payload))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != WebhookApplied {
		t.Fatalf("unexpected outcome: %v", outcome)
	}
	if got := repo.users["cus_1"].SubscriptionStatus; got != models.SubscriptionStatusActive {
		t.Fatalf("unexpected status: %s", got)
	}
	stored := repo.events["evt_1"]
	if stored.ProcessedAt == nil || stored.ProcessingError != "" {
		t.Fatalf("event not marked processed: %+v", stored)
	}
}

func TestProcessWebhookDuplicateAfterSuccess(t *testing.T) {
	repo := newFakeRepo(farmer("cus_1", models.SubscriptionStatusPastDue))
	svc := NewService(repo, &fakeProvider{})

	payload := `{"id":"in_1","customer":{"id":"cus_1"}}`
	ev := webhookDelivery("evt_1", "invoice.payment_succeeded", payload)
	ctx := context.Background()

	if outcome, err := svc.ProcessWebhook(ctx, ev, []byte(payload)); err != nil || outcome != WebhookApplied {
		t.Fatalf("first delivery: outcome=%v err=%v", outcome, err)
	}
	writesAfterFirst := repo.saveCount

	outcome, err := svc.ProcessWebhook(ctx, ev, []byte(payload))
	if err != nil {
		t.Fatalf("second delivery: %v", err)
	}
	if outcome != WebhookDuplicate {
		t.Fatalf("expected duplicate outcome, got %v", outcome)
	}
	if repo.saveCount != writesAfterFirst {
		t.Fatal("duplicate delivery must not issue another write")
	}
}

func TestProcessWebhookRedeliveryRetriesFailedEvent(t *testing.T) {
	repo := newFakeRepo(farmer("cus_1", models.SubscriptionStatusInactive))
	svc := NewService(repo, &fakeProvider{})

	payload := `{"id":"in_1","customer":{"id":"cus_1"}}`
	ev := webhookDelivery("evt_1", "invoice.payment_succeeded", payload)
	ctx := context.Background()

	// First delivery hits a storage failure; the caller returns 500 and the
	// provider redelivers the same event ID later.
	repo.saveErr = errors.New("connection reset")
	outcome, err := svc.ProcessWebhook(ctx, ev, []byte(payload))
	var werr *WriteError
	if !errors.As(err, &werr) {
		t.Fatalf("expected *WriteError, got %v", err)
	}
	if outcome != WebhookFailed {
		t.Fatalf("unexpected outcome: %v", outcome)
	}
	if got := repo.users["cus_1"].SubscriptionStatus; got != models.SubscriptionStatusInactive {
		t.Fatalf("status mutated despite failed write: %s", got)
	}

	// The redelivered event must not short-circuit as a duplicate: the stored
	// row carries a processing error, so the dispatch runs again.
	repo.saveErr = nil
	outcome, err = svc.ProcessWebhook(ctx, ev, []byte(payload))
	if err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if outcome != WebhookApplied {
		t.Fatalf("redelivery of a failed event must reprocess, got %v", outcome)
	}
	if got := repo.users["cus_1"].SubscriptionStatus; got != models.SubscriptionStatusActive {
		t.Fatalf("update lost after redelivery: %s", got)
	}
	stored := repo.events["evt_1"]
	if stored.ProcessedAt == nil || stored.ProcessingError != "" {
		t.Fatalf("event not cleanly marked after retry: %+v", stored)
	}
}

func TestProcessWebhookUnknownTypeIgnored(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, &fakeProvider{})

	payload := `{"id":"ch_1"}`
	ev := webhookDelivery("evt_1", "charge.refunded", payload)

	outcome, err := svc.ProcessWebhook(context.Background(), ev, []byte(payload))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != WebhookIgnored {
		t.Fatalf("unexpected outcome: %v", outcome)
	}
	if repo.events["evt_1"].ProcessedAt == nil {
		t.Fatal("ignored event must still be marked processed")
	}
}

func TestProcessWebhookInvalidPayloadAcknowledged(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, &fakeProvider{})

	// Declared invoice type without a customer reference: recorded, marked
	// with the validation error, acknowledged so the provider stops resending.
	payload := `{"id":"in_1"}`
	ev := webhookDelivery("evt_1", "invoice.payment_succeeded", payload)

	outcome, err := svc.ProcessWebhook(context.Background(), ev, []byte(payload))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != WebhookIgnored {
		t.Fatalf("unexpected outcome: %v", outcome)
	}
	stored := repo.events["evt_1"]
	if stored.ProcessedAt == nil || stored.ProcessingError == "" {
		t.Fatalf("validation failure not recorded on event: %+v", stored)
	}
}

func TestProcessWebhookRecordFailure(t *testing.T) {
	repo := newFakeRepo(farmer("cus_1", models.SubscriptionStatusInactive))
	repo.createErr = errors.New("disk full")
	svc := NewService(repo, &fakeProvider{})

	payload := `{"id":"in_1","customer":{"id":"cus_1"}}`
	ev := webhookDelivery("evt_1", "invoice.payment_succeeded", payload)

	outcome, err := svc.ProcessWebhook(context.Background(), ev, []byte(payload))
	var werr *WriteError
	if !errors.As(err, &werr) {
		t.Fatalf("expected *WriteError, got %v", err)
	}
	if outcome != WebhookFailed {
		t.Fatalf("unexpected outcome: %v", outcome)
	}
	if repo.saveCount != 0 {
		t.Fatal("no user write expected when the event cannot be recorded")
	}
}

func TestRecordWebhookEventHashesMissingID(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, &fakeProvider{})

	_, stored, err := svc.RecordWebhookEvent(context.Background(), WebhookEventInput{
		EventType:   "customer.updated",
		PayloadJSON: `{"id":"cus_1"}`,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(stored.ProviderEventID, "hash:") {
		t.Fatalf("expected hashed event id, got %s", stored.ProviderEventID)
	}
}
