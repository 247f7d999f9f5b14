package billing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryProvider is an in-memory Provider used by tests and by deployments
// running without billing credentials. State does not survive a restart.
type MemoryProvider struct {
	mu            sync.Mutex
	customers     map[string]*Customer // keyed by customer ID
	byEmail       map[string]string    // email -> customer ID
	subscriptions map[string]*Subscription
	payments      map[string][]Payment
	sessions      map[string]*CheckoutSession
	intents       map[string]*PaymentIntent

	now func() time.Time
}

// NewMemoryProvider creates an empty in-memory billing provider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		customers:     make(map[string]*Customer),
		byEmail:       make(map[string]string),
		subscriptions: make(map[string]*Subscription),
		payments:      make(map[string][]Payment),
		sessions:      make(map[string]*CheckoutSession),
		intents:       make(map[string]*PaymentIntent),
		now:           time.Now,
	}
}

// CustomerByEmail looks up a customer; ErrNoCustomer when none exists.
func (p *MemoryProvider) CustomerByEmail(_ context.Context, email string) (*Customer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id, ok := p.byEmail[email]
	if !ok {
		return nil, ErrNoCustomer
	}
	return copyCustomer(p.customers[id]), nil
}

// EnsureCustomer looks up a customer, creating one when absent.
func (p *MemoryProvider) EnsureCustomer(_ context.Context, email string) (*Customer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if id, ok := p.byEmail[email]; ok {
		return copyCustomer(p.customers[id]), nil
	}
	cust := &Customer{
		ID:       "cus_" + uuid.NewString(),
		Email:    email,
		Metadata: make(map[string]string),
	}
	p.customers[cust.ID] = cust
	p.byEmail[email] = cust.ID
	return copyCustomer(cust), nil
}

// ActiveSubscription returns the customer's active subscription, or nil.
func (p *MemoryProvider) ActiveSubscription(_ context.Context, customerID string) (*Subscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	sub, ok := p.subscriptions[customerID]
	if !ok {
		return nil, nil
	}
	cp := *sub
	return &cp, nil
}

// Payments lists the customer's payments, newest first.
func (p *MemoryProvider) Payments(_ context.Context, customerID string) ([]Payment, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	src := p.payments[customerID]
	out := make([]Payment, len(src))
	copy(out, src)
	return out, nil
}

// UpdateCustomerMetadata merges the given keys into the customer metadata.
func (p *MemoryProvider) UpdateCustomerMetadata(_ context.Context, customerID string, metadata map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	cust, ok := p.customers[customerID]
	if !ok {
		return fmt.Errorf("unknown customer %q", customerID)
	}
	if cust.Metadata == nil {
		cust.Metadata = make(map[string]string)
	}
	for k, v := range metadata {
		cust.Metadata[k] = v
	}
	return nil
}

// CreateCheckoutSession records a fake hosted-checkout session.
func (p *MemoryProvider) CreateCheckoutSession(_ context.Context, cp CheckoutParams) (*CheckoutSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	sess := &CheckoutSession{
		ID:                "cs_" + uuid.NewString(),
		Status:            "open",
		PlanID:            cp.PlanID,
		ClientReferenceID: cp.ClientReferenceID,
		CustomerEmail:     cp.CustomerEmail,
	}
	sess.URL = "https://checkout.example.com/pay/" + sess.ID
	p.sessions[sess.ID] = sess
	cpSess := *sess
	return &cpSess, nil
}

// CheckoutSession retrieves a recorded session.
func (p *MemoryProvider) CheckoutSession(_ context.Context, id string) (*CheckoutSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	sess, ok := p.sessions[id]
	if !ok {
		return nil, fmt.Errorf("unknown checkout session %q", id)
	}
	cp := *sess
	return &cp, nil
}

// CreatePaymentIntent records a fake payment intent.
func (p *MemoryProvider) CreatePaymentIntent(_ context.Context, ip IntentParams) (*PaymentIntent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pi := &PaymentIntent{
		ID:       "pi_" + uuid.NewString(),
		Created:  p.now(),
		Metadata: ip.Metadata,
	}
	pi.ClientSecret = pi.ID + "_secret_" + uuid.NewString()
	p.intents[pi.ID] = pi
	cp := *pi
	return &cp, nil
}

// PaymentIntent retrieves a recorded payment intent.
func (p *MemoryProvider) PaymentIntent(_ context.Context, id string) (*PaymentIntent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pi, ok := p.intents[id]
	if !ok {
		return nil, fmt.Errorf("unknown payment intent %q", id)
	}
	cp := *pi
	return &cp, nil
}

// SetSubscription installs an active subscription for a customer (test helper).
func (p *MemoryProvider) SetSubscription(customerID string, sub *Subscription) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscriptions[customerID] = sub
}

// AddPayment prepends a payment for a customer (test helper).
func (p *MemoryProvider) AddPayment(customerID string, payment Payment) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payments[customerID] = append([]Payment{payment}, p.payments[customerID]...)
}

// MarkSessionPaid marks a recorded session complete and paid (test helper).
func (p *MemoryProvider) MarkSessionPaid(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if sess, ok := p.sessions[id]; ok {
		sess.Status = "complete"
		sess.Paid = true
	}
}

// MarkIntentSucceeded marks a recorded payment intent succeeded (test helper).
func (p *MemoryProvider) MarkIntentSucceeded(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pi, ok := p.intents[id]; ok {
		pi.Succeeded = true
	}
}

func copyCustomer(c *Customer) *Customer {
	cp := *c
	cp.Metadata = make(map[string]string, len(c.Metadata))
	for k, v := range c.Metadata {
		cp.Metadata[k] = v
	}
	return &cp
}
