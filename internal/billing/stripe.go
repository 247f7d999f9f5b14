package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
)

// maxPaymentLookback bounds how many payment intents a one-time-payment
// entitlement check will scan.
const maxPaymentLookback = 20

// StripeProvider implements Provider against the Stripe API.
type StripeProvider struct {
	api *client.API
}

// NewStripeProvider creates a Stripe-backed billing provider.
func NewStripeProvider(secretKey string) *StripeProvider {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeProvider{api: api}
}

// CustomerByEmail looks up the Stripe customer for an email address.
func (p *StripeProvider) CustomerByEmail(ctx context.Context, email string) (*Customer, error) {
	params := &stripe.CustomerListParams{Email: stripe.String(email)}
	params.Context = ctx
	params.Limit = stripe.Int64(1)

	iter := p.api.Customers.List(params)
	if iter.Next() {
		return customerFromStripe(iter.Customer()), nil
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	return nil, ErrNoCustomer
}

// EnsureCustomer looks up the customer for an email, creating one when absent.
func (p *StripeProvider) EnsureCustomer(ctx context.Context, email string) (*Customer, error) {
	cust, err := p.CustomerByEmail(ctx, email)
	if err == nil {
		return cust, nil
	}
	if err != ErrNoCustomer {
		return nil, err
	}

	params := &stripe.CustomerParams{Email: stripe.String(email)}
	params.Context = ctx
	created, err := p.api.Customers.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}
	return customerFromStripe(created), nil
}

// ActiveSubscription returns the customer's active subscription, or nil.
func (p *StripeProvider) ActiveSubscription(ctx context.Context, customerID string) (*Subscription, error) {
	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String(string(stripe.SubscriptionStatusActive)),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(1)

	iter := p.api.Subscriptions.List(params)
	if iter.Next() {
		sub := iter.Subscription()
		priceID := ""
		if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
			priceID = sub.Items.Data[0].Price.ID
		}
		return &Subscription{
			ID:                 sub.ID,
			PriceID:            priceID,
			Status:             string(sub.Status),
			CurrentPeriodStart: time.Unix(sub.CurrentPeriodStart, 0),
			CurrentPeriodEnd:   time.Unix(sub.CurrentPeriodEnd, 0),
		}, nil
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	return nil, nil
}

// Payments lists the customer's most recent payment intents, newest first.
func (p *StripeProvider) Payments(ctx context.Context, customerID string) ([]Payment, error) {
	params := &stripe.PaymentIntentListParams{Customer: stripe.String(customerID)}
	params.Context = ctx
	params.Limit = stripe.Int64(maxPaymentLookback)

	var payments []Payment
	iter := p.api.PaymentIntents.List(params)
	for iter.Next() {
		pi := iter.PaymentIntent()
		payments = append(payments, Payment{
			ID:        pi.ID,
			Created:   time.Unix(pi.Created, 0),
			Succeeded: pi.Status == stripe.PaymentIntentStatusSucceeded,
			Metadata:  pi.Metadata,
		})
		if len(payments) >= maxPaymentLookback {
			break
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, nil
}

// UpdateCustomerMetadata merges the given keys into the customer metadata.
func (p *StripeProvider) UpdateCustomerMetadata(ctx context.Context, customerID string, metadata map[string]string) error {
	params := &stripe.CustomerParams{}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	if _, err := p.api.Customers.Update(customerID, params); err != nil {
		return fmt.Errorf("failed to update customer metadata: %w", err)
	}
	return nil
}

// CreateCheckoutSession creates a hosted-checkout session for a plan.
func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, cp CheckoutParams) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL: stripe.String(cp.SuccessURL),
		CancelURL:  stripe.String(cp.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(cp.PriceID), Quantity: stripe.Int64(1)},
		},
	}
	params.Context = ctx
	if cp.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(cp.CustomerEmail)
	}
	if cp.ClientReferenceID != "" {
		params.ClientReferenceID = stripe.String(cp.ClientReferenceID)
	}
	params.AddMetadata("planId", cp.PlanID)

	sess, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}
	return sessionFromStripe(sess), nil
}

// CheckoutSession retrieves a hosted-checkout session.
func (p *StripeProvider) CheckoutSession(ctx context.Context, id string) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	sess, err := p.api.CheckoutSessions.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve checkout session: %w", err)
	}
	return sessionFromStripe(sess), nil
}

// CreatePaymentIntent creates a payment intent for the card-element flow.
func (p *StripeProvider) CreatePaymentIntent(ctx context.Context, ip IntentParams) (*PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(ip.AmountCents),
		Currency:    stripe.String(string(stripe.CurrencyUSD)),
		Description: stripe.String(ip.Description),
	}
	params.Context = ctx
	for k, v := range ip.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := p.api.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}
	return intentFromStripe(pi), nil
}

// PaymentIntent retrieves a payment intent.
func (p *StripeProvider) PaymentIntent(ctx context.Context, id string) (*PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := p.api.PaymentIntents.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve payment intent: %w", err)
	}
	return intentFromStripe(pi), nil
}

func customerFromStripe(c *stripe.Customer) *Customer {
	return &Customer{ID: c.ID, Email: c.Email, Metadata: c.Metadata}
}

func sessionFromStripe(s *stripe.CheckoutSession) *CheckoutSession {
	email := s.CustomerEmail
	if email == "" && s.CustomerDetails != nil {
		email = s.CustomerDetails.Email
	}
	return &CheckoutSession{
		ID:     s.ID,
		URL:    s.URL,
		Status: string(s.Status),
		Paid: s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid ||
			s.PaymentStatus == stripe.CheckoutSessionPaymentStatusNoPaymentRequired,
		PlanID:            s.Metadata["planId"],
		ClientReferenceID: s.ClientReferenceID,
		CustomerEmail:     email,
	}
}

func intentFromStripe(pi *stripe.PaymentIntent) *PaymentIntent {
	return &PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Succeeded:    pi.Status == stripe.PaymentIntentStatusSucceeded,
		Created:      time.Unix(pi.Created, 0),
		Metadata:     pi.Metadata,
	}
}
