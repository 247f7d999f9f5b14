package entitlement

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kwan772/Youtube-TLDR/internal/billing"
	"github.com/kwan772/Youtube-TLDR/internal/models"
)

func newTestResolver(provider billing.Provider, freeLimit int) (*Resolver, *MemoryUsageStore, time.Time) {
	store := NewMemoryUsageStore()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	r := NewResolver(provider, store, freeLimit, map[string]string{
		"price_pro":     models.PlanPro,
		"price_premium": models.PlanPremium,
	})
	r.now = func() time.Time { return now }
	return r, store, now
}

func TestResolver_ClaimWins(t *testing.T) {
	// No billing record exists for the identity; a valid claim still entitles.
	r, _, now := newTestResolver(billing.NewMemoryProvider(), 2)

	claim := &models.SubscriptionClaim{
		Plan:       models.PlanPremium,
		ExpiryDate: now.Add(24 * time.Hour).Format(time.RFC3339),
	}

	d := r.Resolve(context.Background(), "user@example.com", claim)
	assert.True(t, d.Entitled)
	assert.Equal(t, models.PlanPremium, d.Plan)
	assert.Equal(t, models.PremiumPlanLimit, d.Limit)
	assert.False(t, d.HasReachedLimit)
}

func TestResolver_ClaimPersistsToMirror(t *testing.T) {
	r, _, now := newTestResolver(billing.NewMemoryProvider(), 2)

	claim := &models.SubscriptionClaim{
		Plan:       models.PlanPro,
		ExpiryDate: now.Add(24 * time.Hour).Format(time.RFC3339),
	}
	r.Resolve(context.Background(), "user@example.com", claim)

	// Subsequent resolution without the claim still finds the mirror entry.
	d := r.Resolve(context.Background(), "user@example.com", nil)
	assert.True(t, d.Entitled)
	assert.Equal(t, models.PlanPro, d.Plan)
	assert.Equal(t, models.PaidPlanLimit, d.Limit)
}

func TestResolver_ExpiredClaimFallsThrough(t *testing.T) {
	provider := billing.NewMemoryProvider()
	r, _, now := newTestResolver(provider, 2)

	claim := &models.SubscriptionClaim{
		Plan:       models.PlanPremium,
		ExpiryDate: now.Add(-time.Hour).Format(time.RFC3339),
	}

	d := r.Resolve(context.Background(), "user@example.com", claim)
	assert.False(t, d.Entitled, "an expired claim is ignored")
	assert.Equal(t, 2, d.Limit, "falls through to the free tier")
}

func TestResolver_MalformedClaimIgnored(t *testing.T) {
	r, _, _ := newTestResolver(billing.NewMemoryProvider(), 2)

	claim := &models.SubscriptionClaim{Plan: models.PlanPro, ExpiryDate: "not-a-date"}

	d := r.Resolve(context.Background(), "user@example.com", claim)
	assert.False(t, d.Entitled)
}

func TestResolver_ProviderSubscription(t *testing.T) {
	provider := billing.NewMemoryProvider()
	r, _, now := newTestResolver(provider, 2)
	ctx := context.Background()

	cust, err := provider.EnsureCustomer(ctx, "sub@example.com")
	require.NoError(t, err)
	provider.SetSubscription(cust.ID, &billing.Subscription{
		ID:                 "sub_1",
		PriceID:            "price_premium",
		Status:             "active",
		CurrentPeriodStart: now.Add(-10 * 24 * time.Hour),
		CurrentPeriodEnd:   now.Add(20 * 24 * time.Hour),
	})

	d := r.Resolve(ctx, "sub@example.com", nil)
	assert.True(t, d.Entitled)
	assert.Equal(t, models.PlanPremium, d.Plan)
	assert.Equal(t, models.PremiumPlanLimit, d.Limit)
	assert.Equal(t, now.Add(20*24*time.Hour), d.ExpiresAt)
}

func TestResolver_OneTimePaymentInsideDuration(t *testing.T) {
	provider := billing.NewMemoryProvider()
	r, _, now := newTestResolver(provider, 0)
	ctx := context.Background()

	cust, err := provider.EnsureCustomer(ctx, "otp@example.com")
	require.NoError(t, err)
	provider.AddPayment(cust.ID, billing.Payment{
		ID:        "pi_1",
		Created:   now.Add(-10 * 24 * time.Hour),
		Succeeded: true,
		Metadata:  map[string]string{"planId": models.PlanPro},
	})

	d := r.Resolve(ctx, "otp@example.com", nil)
	assert.True(t, d.Entitled)
	assert.Equal(t, models.PlanPro, d.Plan)
}

func TestResolver_ExpiredOneTimePayment(t *testing.T) {
	provider := billing.NewMemoryProvider()
	r, _, now := newTestResolver(provider, 0)
	ctx := context.Background()

	cust, err := provider.EnsureCustomer(ctx, "old@example.com")
	require.NoError(t, err)
	provider.AddPayment(cust.ID, billing.Payment{
		ID:        "pi_old",
		Created:   now.Add(-40 * 24 * time.Hour),
		Succeeded: true,
		Metadata:  map[string]string{"planId": models.PlanPro},
	})

	d := r.Resolve(ctx, "old@example.com", nil)
	assert.False(t, d.Entitled, "payment older than the plan duration has lapsed")
}

func TestResolver_FreeTierBoundary(t *testing.T) {
	tests := []struct {
		name        string
		usageCount  int
		wantReached bool
	}{
		{"under the limit", 1, false},
		{"at the limit", 2, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, store, _ := newTestResolver(billing.NewMemoryProvider(), 2)
			ctx := context.Background()

			for i := 0; i < tt.usageCount; i++ {
				_, err := store.Record(ctx, "free@example.com", string(rune('a'+i)))
				require.NoError(t, err)
			}

			d := r.Resolve(ctx, "free@example.com", nil)
			assert.False(t, d.Entitled)
			assert.Equal(t, tt.usageCount, d.CurrentUsage)
			assert.Equal(t, tt.wantReached, d.HasReachedLimit)
		})
	}
}

func TestResolver_ZeroFreeLimitNeverReportsReached(t *testing.T) {
	// FREE_TIER_LIMIT=0 means no free access; the orchestrator treats an
	// unentitled caller with limit 0 as payment-required, but the usage
	// report itself never flips hasReachedLimit without a positive limit.
	r, store, _ := newTestResolver(billing.NewMemoryProvider(), 0)
	ctx := context.Background()

	_, err := store.Record(ctx, "id", "v")
	require.NoError(t, err)

	d := r.Resolve(ctx, "id", nil)
	assert.False(t, d.Entitled)
	assert.Equal(t, 0, d.Limit)
	assert.False(t, d.HasReachedLimit)
}

type failingProvider struct{ billing.Provider }

func (f *failingProvider) CustomerByEmail(context.Context, string) (*billing.Customer, error) {
	return nil, errors.New("billing provider unavailable")
}

func TestResolver_ProviderFailureDegrades(t *testing.T) {
	r, _, _ := newTestResolver(&failingProvider{}, 3)

	d := r.Resolve(context.Background(), "user@example.com", nil)
	assert.False(t, d.Entitled, "provider failure means no entitlement info")
	assert.Equal(t, 3, d.Limit, "and the free tier still applies")
}

func TestResolver_AnonymousCaller(t *testing.T) {
	r, _, _ := newTestResolver(billing.NewMemoryProvider(), 5)

	d := r.Resolve(context.Background(), "", nil)
	assert.False(t, d.Entitled)
	assert.Equal(t, 0, d.CurrentUsage)
	assert.Equal(t, 5, d.Limit)
}
