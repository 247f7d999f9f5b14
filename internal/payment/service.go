// Package payment implements the checkout and subscription-activation flows
// at the billing-provider boundary.
package payment

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/kwan772/Youtube-TLDR/internal/billing"
	"github.com/kwan772/Youtube-TLDR/internal/entitlement"
	"github.com/kwan772/Youtube-TLDR/internal/models"
)

// ErrUnknownPlan is returned for plan IDs outside the catalogue.
var ErrUnknownPlan = errors.New("unknown plan")

// ErrPaymentIncomplete is returned when a session or intent has not been
// paid yet.
var ErrPaymentIncomplete = errors.New("payment not completed")

// CheckoutResult is the outcome of starting a payment. Hosted-checkout
// deployments get a session ID and redirect URL; card-element deployments
// get a client secret and intent ID.
type CheckoutResult struct {
	SessionID       string `json:"sessionId,omitempty"`
	URL             string `json:"url,omitempty"`
	ClientSecret    string `json:"clientSecret,omitempty"`
	PaymentIntentID string `json:"paymentIntentId,omitempty"`
}

// Service drives checkout sessions and reconciles their results back into
// the entitlement resolver's view.
type Service struct {
	provider billing.Provider
	resolver *entitlement.Resolver

	// baseURL is the public base URL redirect URLs are built from.
	baseURL string
	// priceIDs maps plan IDs to billing-provider price IDs. Plans without a
	// price ID fall back to the payment-intent flow.
	priceIDs map[string]string

	now func() time.Time
}

// NewService creates a payment service.
func NewService(provider billing.Provider, resolver *entitlement.Resolver, baseURL string, priceIDs map[string]string) *Service {
	return &Service{
		provider: provider,
		resolver: resolver,
		baseURL:  baseURL,
		priceIDs: priceIDs,
		now:      time.Now,
	}
}

// StartCheckout begins a payment for a plan. identity is the caller's email
// or user ID; clientRef travels through the provider redirect unreadable to
// intermediaries.
func (s *Service) StartCheckout(ctx context.Context, identity, planID, clientRef string) (*CheckoutResult, error) {
	plan, ok := models.Plans[planID]
	if !ok {
		return nil, ErrUnknownPlan
	}

	if priceID := s.priceIDs[planID]; priceID != "" {
		successURL := s.baseURL + "/payment-result?session_id={CHECKOUT_SESSION_ID}&plan=" + url.QueryEscape(planID)
		cancelURL := s.baseURL + "/payment?userId=" + url.QueryEscape(identity)

		sess, err := s.provider.CreateCheckoutSession(ctx, billing.CheckoutParams{
			PriceID:           priceID,
			PlanID:            planID,
			CustomerEmail:     identity,
			ClientReferenceID: clientRef,
			SuccessURL:        successURL,
			CancelURL:         cancelURL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to start checkout: %w", err)
		}
		return &CheckoutResult{SessionID: sess.ID, URL: sess.URL}, nil
	}

	intent, err := s.provider.CreatePaymentIntent(ctx, billing.IntentParams{
		AmountCents: plan.PriceCents,
		Description: fmt.Sprintf("YouTube TLDR %s subscription", plan.Name),
		Metadata:    map[string]string{"userId": identity, "planId": planID},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}
	return &CheckoutResult{ClientSecret: intent.ClientSecret, PaymentIntentID: intent.ID}, nil
}

// VerifySession retrieves a checkout session and requires it to be paid.
func (s *Service) VerifySession(ctx context.Context, sessionID string) (*billing.CheckoutSession, error) {
	sess, err := s.provider.CheckoutSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to verify session: %w", err)
	}
	if !sess.Paid {
		return nil, ErrPaymentIncomplete
	}
	return sess, nil
}

// Activate installs a verified subscription for an identity and returns the
// local mirror record.
func (s *Service) Activate(ctx context.Context, identity, planID, source string) (*models.Subscription, error) {
	plan, ok := models.Plans[planID]
	if !ok {
		return nil, ErrUnknownPlan
	}

	expiresAt := s.now().Add(plan.Duration)
	s.resolver.Activate(ctx, identity, planID, expiresAt, source)
	return &models.Subscription{
		Plan:      planID,
		Status:    "active",
		Source:    source,
		ExpiresAt: expiresAt,
	}, nil
}

// ActivateFromPaymentIntent verifies a payment intent succeeded and
// activates the plan named in its metadata.
func (s *Service) ActivateFromPaymentIntent(ctx context.Context, identity, paymentID string) (*models.Subscription, error) {
	intent, err := s.provider.PaymentIntent(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to verify payment: %w", err)
	}
	if !intent.Succeeded {
		return nil, ErrPaymentIncomplete
	}
	return s.Activate(ctx, identity, intent.Metadata["planId"], models.SourceOneTimePayment)
}
