package billing

import (
	"encoding/json"
	"time"

	"github.com/stripe/stripe-go/v78"
)

// EventKind discriminates the closed set of billing events this service
// reconciles. Anything else a provider delivers is acknowledged and ignored.
type EventKind string

const (
	KindCheckoutCompleted    EventKind = "checkout_completed"
	KindInvoicePaid          EventKind = "invoice_paid"
	KindInvoicePaymentFailed EventKind = "invoice_payment_failed"
	KindSubscriptionUpdated  EventKind = "subscription_updated"
	KindSubscriptionDeleted  EventKind = "subscription_deleted"
	KindTrialWillEnd         EventKind = "subscription_trial_ending"
	KindCustomerUpdated      EventKind = "customer_updated"
)

// Event is the closed tagged-variant type for billing events. One struct per
// kind; the reconciler matches exhaustively so an unhandled kind is visible
// in the dispatch switch rather than hidden in a default branch.
type Event interface {
	Kind() EventKind
	// CustomerRef is the billing customer reference joining the event to a
	// local user record.
	CustomerRef() string
}

// CheckoutCompleted signals a finished subscription-mode checkout. The live
// subscription state is fetched from the provider before any write.
type CheckoutCompleted struct {
	Customer     string
	Subscription string
}

// InvoicePaid signals a successfully settled invoice.
type InvoicePaid struct {
	Customer string
	Invoice  string
}

// InvoicePaymentFailed signals a failed invoice payment attempt.
type InvoicePaymentFailed struct {
	Customer string
	Invoice  string
}

// SubscriptionUpdated carries the provider's full updated subscription state.
type SubscriptionUpdated struct {
	Customer string
	State    SubscriptionState
}

// SubscriptionDeleted signals a terminated subscription.
type SubscriptionDeleted struct {
	Customer     string
	Subscription string
}

// TrialWillEnd is informational; reconciliation never mutates state for it.
type TrialWillEnd struct {
	Customer     string
	Subscription string
	TrialEnd     *time.Time
}

// CustomerUpdated carries mirrored profile fields from the provider.
type CustomerUpdated struct {
	Customer string
	Name     string
	Email    string
}

func (e *CheckoutCompleted) Kind() EventKind    { return KindCheckoutCompleted }
func (e *InvoicePaid) Kind() EventKind          { return KindInvoicePaid }
func (e *InvoicePaymentFailed) Kind() EventKind { return KindInvoicePaymentFailed }
func (e *SubscriptionUpdated) Kind() EventKind  { return KindSubscriptionUpdated }
func (e *SubscriptionDeleted) Kind() EventKind  { return KindSubscriptionDeleted }
func (e *TrialWillEnd) Kind() EventKind         { return KindTrialWillEnd }
func (e *CustomerUpdated) Kind() EventKind      { return KindCustomerUpdated }

func (e *CheckoutCompleted) CustomerRef() string    { return e.Customer }
func (e *InvoicePaid) CustomerRef() string          { return e.Customer }
func (e *InvoicePaymentFailed) CustomerRef() string { return e.Customer }
func (e *SubscriptionUpdated) CustomerRef() string  { return e.Customer }
func (e *SubscriptionDeleted) CustomerRef() string  { return e.Customer }
func (e *TrialWillEnd) CustomerRef() string         { return e.Customer }
func (e *CustomerUpdated) CustomerRef() string      { return e.Customer }

// SubscriptionState is the provider-reported subscription snapshot applied to
// a user record. Status is already normalized to the local enum.
type SubscriptionState struct {
	Status            string
	PlanRef           string
	PeriodStart       *time.Time
	PeriodEnd         *time.Time
	TrialEnd          *time.Time
	CancelAtPeriodEnd bool
}

// ParseStripeEvent maps a verified Stripe event onto the closed Event type.
// Event types outside the handled set return (nil, nil); a payload missing a
// field required for its declared type returns a *ValidationError.
func ParseStripeEvent(ev stripe.Event) (Event, error) {
	switch ev.Type {
	case "checkout.session.completed":
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &cs); err != nil {
			return nil, &ValidationError{Kind: KindCheckoutCompleted, Reason: "unparseable checkout session"}
		}
		if cs.Mode != stripe.CheckoutSessionModeSubscription {
			// One-off payments carry no subscription state to reconcile.
			return nil, nil
		}
		if cs.Customer == nil || cs.Customer.ID == "" {
			return nil, &ValidationError{Kind: KindCheckoutCompleted, Reason: "missing customer"}
		}
		if cs.Subscription == nil || cs.Subscription.ID == "" {
			return nil, &ValidationError{Kind: KindCheckoutCompleted, Reason: "missing subscription"}
		}
		return &CheckoutCompleted{Customer: cs.Customer.ID, Subscription: cs.Subscription.ID}, nil

	case "invoice.payment_succeeded":
		inv, err := parseInvoice(ev.Data.Raw, KindInvoicePaid)
		if err != nil {
			return nil, err
		}
		return &InvoicePaid{Customer: inv.Customer.ID, Invoice: inv.ID}, nil

	case "invoice.payment_failed":
		inv, err := parseInvoice(ev.Data.Raw, KindInvoicePaymentFailed)
		if err != nil {
			return nil, err
		}
		return &InvoicePaymentFailed{Customer: inv.Customer.ID, Invoice: inv.ID}, nil

	case "customer.subscription.updated":
		var sub stripe.Subscription
		if err := json.Unmarshal(ev.Data.Raw, &sub); err != nil {
			return nil, &ValidationError{Kind: KindSubscriptionUpdated, Reason: "unparseable subscription"}
		}
		if sub.Customer == nil || sub.Customer.ID == "" {
			return nil, &ValidationError{Kind: KindSubscriptionUpdated, Reason: "missing customer"}
		}
		state, err := StateFromSubscription(&sub, KindSubscriptionUpdated)
		if err != nil {
			return nil, err
		}
		return &SubscriptionUpdated{Customer: sub.Customer.ID, State: state}, nil

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(ev.Data.Raw, &sub); err != nil {
			return nil, &ValidationError{Kind: KindSubscriptionDeleted, Reason: "unparseable subscription"}
		}
		if sub.Customer == nil || sub.Customer.ID == "" {
			return nil, &ValidationError{Kind: KindSubscriptionDeleted, Reason: "missing customer"}
		}
		return &SubscriptionDeleted{Customer: sub.Customer.ID, Subscription: sub.ID}, nil

	case "customer.subscription.trial_will_end":
		var sub stripe.Subscription
		if err := json.Unmarshal(ev.Data.Raw, &sub); err != nil {
			return nil, &ValidationError{Kind: KindTrialWillEnd, Reason: "unparseable subscription"}
		}
		if sub.Customer == nil || sub.Customer.ID == "" {
			return nil, &ValidationError{Kind: KindTrialWillEnd, Reason: "missing customer"}
		}
		return &TrialWillEnd{
			Customer:     sub.Customer.ID,
			Subscription: sub.ID,
			TrialEnd:     unixTime(sub.TrialEnd),
		}, nil

	case "customer.updated":
		var cust stripe.Customer
		if err := json.Unmarshal(ev.Data.Raw, &cust); err != nil {
			return nil, &ValidationError{Kind: KindCustomerUpdated, Reason: "unparseable customer"}
		}
		if cust.ID == "" {
			return nil, &ValidationError{Kind: KindCustomerUpdated, Reason: "missing customer id"}
		}
		return &CustomerUpdated{Customer: cust.ID, Name: cust.Name, Email: cust.Email}, nil

	default:
		return nil, nil
	}
}

// StateFromSubscription converts a provider subscription into the local
// snapshot, validating that the plan reference is derivable.
func StateFromSubscription(sub *stripe.Subscription, kind EventKind) (SubscriptionState, error) {
	if sub.Items == nil || len(sub.Items.Data) == 0 || sub.Items.Data[0].Price == nil {
		return SubscriptionState{}, &ValidationError{Kind: kind, Reason: "missing line items"}
	}
	return SubscriptionState{
		Status:            NormalizeStatus(string(sub.Status)),
		PlanRef:           sub.Items.Data[0].Price.ID,
		PeriodStart:       unixTime(sub.CurrentPeriodStart),
		PeriodEnd:         unixTime(sub.CurrentPeriodEnd),
		TrialEnd:          unixTime(sub.TrialEnd),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}, nil
}

func parseInvoice(raw json.RawMessage, kind EventKind) (*stripe.Invoice, error) {
	var inv stripe.Invoice
	if err := json.Unmarshal(raw, &inv); err != nil {
		return nil, &ValidationError{Kind: kind, Reason: "unparseable invoice"}
	}
	if inv.Customer == nil || inv.Customer.ID == "" {
		return nil, &ValidationError{Kind: kind, Reason: "missing customer"}
	}
	return &inv, nil
}

func unixTime(sec int64) *time.Time {
	if sec == 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}
