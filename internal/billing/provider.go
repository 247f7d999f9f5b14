// Package billing abstracts the payment provider. The provider doubles as
// the service's only durable store: subscriptions and usage metadata live on
// the provider's customer records, and the process can always re-derive
// entitlement from it on a cold start.
package billing

import (
	"context"
	"errors"
	"time"
)

// ErrNoCustomer is returned when no billing customer exists for an identity.
var ErrNoCustomer = errors.New("no billing customer for identity")

// Customer is a billing-provider customer record. Metadata is used as a
// key-value store for usage counters and the viewed-video set.
type Customer struct {
	ID       string
	Email    string
	Metadata map[string]string
}

// Subscription is an active recurring subscription on the provider.
type Subscription struct {
	ID                 string
	PriceID            string
	Status             string
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
}

// Payment is a past payment intent on the provider.
type Payment struct {
	ID        string
	Created   time.Time
	Succeeded bool
	Metadata  map[string]string
}

// CheckoutParams describe a hosted-checkout session to create.
type CheckoutParams struct {
	PriceID           string
	PlanID            string
	CustomerEmail     string
	ClientReferenceID string
	SuccessURL        string
	CancelURL         string
}

// CheckoutSession is a hosted-checkout session on the provider.
type CheckoutSession struct {
	ID                string
	URL               string
	Status            string
	Paid              bool
	PlanID            string
	ClientReferenceID string
	CustomerEmail     string
}

// IntentParams describe a payment intent to create.
type IntentParams struct {
	AmountCents int64
	Description string
	Metadata    map[string]string
}

// PaymentIntent is a payment intent on the provider.
type PaymentIntent struct {
	ID           string
	ClientSecret string
	Succeeded    bool
	Created      time.Time
	Metadata     map[string]string
}

// Provider is the billing collaborator. Every method may fail; callers in
// the entitlement path must treat failures as "no entitlement information",
// never as a request-fatal error.
type Provider interface {
	// CustomerByEmail looks up a customer; ErrNoCustomer when none exists.
	CustomerByEmail(ctx context.Context, email string) (*Customer, error)
	// EnsureCustomer looks up a customer, creating one when absent.
	EnsureCustomer(ctx context.Context, email string) (*Customer, error)
	// ActiveSubscription returns the customer's active subscription, or nil.
	ActiveSubscription(ctx context.Context, customerID string) (*Subscription, error)
	// Payments lists the customer's most recent payments, newest first.
	Payments(ctx context.Context, customerID string) ([]Payment, error)
	// UpdateCustomerMetadata merges the given keys into the customer metadata.
	UpdateCustomerMetadata(ctx context.Context, customerID string, metadata map[string]string) error

	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error)
	CheckoutSession(ctx context.Context, id string) (*CheckoutSession, error)
	CreatePaymentIntent(ctx context.Context, params IntentParams) (*PaymentIntent, error)
	PaymentIntent(ctx context.Context, id string) (*PaymentIntent, error)
}
