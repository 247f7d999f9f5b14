// Package models defines the domain types shared across the service:
// subscription plans, subscriptions, client-supplied claims and usage records.
package models

import (
	"errors"
	"strings"
	"time"
)

// Known subscription plans
const (
	PlanPro     = "pro"
	PlanPremium = "premium"
)

// Per-plan monthly summary limits
const (
	PremiumPlanLimit = 1500
	PaidPlanLimit    = 400
)

// Subscription sources
const (
	SourceSubscription   = "subscription"
	SourceOneTimePayment = "one_time_payment"
	SourceClientClaim    = "client_claim"
)

// Sentinel errors mapped onto HTTP statuses at the API boundary.
var (
	ErrRateLimited     = errors.New("rate limit exceeded")
	ErrPaymentRequired = errors.New("free tier limit reached")
	ErrNotFound        = errors.New("not found")
)

// Plan describes a purchasable subscription plan.
type Plan struct {
	ID           string
	Name         string
	PriceCents   int64
	Duration     time.Duration
	SummaryLimit int
	Features     []string
}

// Plans is the plan catalogue.
var Plans = map[string]Plan{
	PlanPro: {
		ID:           PlanPro,
		Name:         "Pro Plan",
		PriceCents:   499,
		Duration:     30 * 24 * time.Hour,
		SummaryLimit: PaidPlanLimit,
		Features:     []string{"Unlimited summaries", "Enhanced AI model", "Priority support"},
	},
	PlanPremium: {
		ID:           PlanPremium,
		Name:         "Premium Plan",
		PriceCents:   999,
		Duration:     30 * 24 * time.Hour,
		SummaryLimit: PremiumPlanLimit,
		Features: []string{"Unlimited summaries", "Enhanced AI model", "Custom summary length",
			"Download summaries", "YouTube Channel analysis"},
	},
}

// PlanLimit returns the monthly summary limit for a paid plan.
// Unrecognized paid plans get the base paid limit.
func PlanLimit(plan string) int {
	if plan == PlanPremium {
		return PremiumPlanLimit
	}
	return PaidPlanLimit
}

// ValidPlan reports whether the plan ID names a purchasable plan.
func ValidPlan(plan string) bool {
	_, ok := Plans[plan]
	return ok
}

// Subscription is the local mirror of a billing-provider subscription.
// It is authoritative only for the lifetime of the process; the provider
// remains the durable source of truth.
type Subscription struct {
	Plan       string    `json:"plan"`
	Status     string    `json:"status,omitempty"`
	Source     string    `json:"source,omitempty"`
	CustomerID string    `json:"customerId,omitempty"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// Active reports whether the subscription is unexpired at the given time.
func (s *Subscription) Active(now time.Time) bool {
	return s != nil && now.Before(s.ExpiresAt)
}

// SubscriptionClaim is an untrusted, caller-supplied subscription assertion.
// The extension sends {plan, expiryDate}; expiresAt is accepted as an alias.
type SubscriptionClaim struct {
	Plan       string `json:"plan"`
	ExpiryDate string `json:"expiryDate,omitempty"`
	ExpiresAt  string `json:"expiresAt,omitempty"`
}

// Expiry parses the claim's expiry timestamp.
func (c *SubscriptionClaim) Expiry() (time.Time, error) {
	raw := c.ExpiryDate
	if raw == "" {
		raw = c.ExpiresAt
	}
	return time.Parse(time.RFC3339, raw)
}

// Valid reports whether the claim names a plan and carries a parseable
// expiry strictly in the future. Invalid claims are ignored, never rejected.
func (c *SubscriptionClaim) Valid(now time.Time) (time.Time, bool) {
	if c == nil || c.Plan == "" {
		return time.Time{}, false
	}
	expiry, err := c.Expiry()
	if err != nil {
		return time.Time{}, false
	}
	if !now.Before(expiry) {
		return time.Time{}, false
	}
	return expiry, true
}

// Usage is a caller's summary usage within the current 30-day window.
type Usage struct {
	Count   int       `json:"count"`
	Videos  []string  `json:"videos,omitempty"`
	ResetAt time.Time `json:"resetAt,omitempty"`
}

// NormalizeIdentity canonicalizes a caller identity (email or user ID) so
// billing lookups and ledger rows agree on a single key.
func NormalizeIdentity(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}
