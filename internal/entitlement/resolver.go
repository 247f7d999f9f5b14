package entitlement

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/kwan772/Youtube-TLDR/internal/billing"
	"github.com/kwan772/Youtube-TLDR/internal/models"
)

// Decision is the outcome of resolving an identity's entitlement.
type Decision struct {
	Entitled        bool
	Plan            string
	Limit           int
	CurrentUsage    int
	HasReachedLimit bool
	ExpiresAt       time.Time
	ResetsAt        time.Time
}

// Resolver decides whether an identity may consume the summarization
// capability right now. Three sources of truth are consulted in strict
// precedence order: the caller-supplied claim, the in-process subscription
// mirror, then the billing provider. Provider failures degrade to "no
// entitlement information" and fall through to the free-tier check.
//
// A structurally valid, unexpired client claim is trusted and written
// through to the mirror without provider-side verification. That trust
// model is inherited from the original service; it is confined to this
// method so a verifying variant can replace it.
type Resolver struct {
	provider  billing.Provider
	usage     UsageStore
	freeLimit int

	// priceToPlan maps billing-provider price IDs to plan IDs.
	priceToPlan map[string]string

	mu     sync.RWMutex
	mirror map[string]*models.Subscription

	now func() time.Time
}

// NewResolver creates a resolver. provider may be nil, in which case only
// claims, the mirror and the free tier apply.
func NewResolver(provider billing.Provider, usage UsageStore, freeLimit int, priceToPlan map[string]string) *Resolver {
	return &Resolver{
		provider:    provider,
		usage:       usage,
		freeLimit:   freeLimit,
		priceToPlan: priceToPlan,
		mirror:      make(map[string]*models.Subscription),
		now:         time.Now,
	}
}

// Resolve determines entitlement and remaining quota for an identity.
// identity may be empty (anonymous caller); claim may be nil.
func (r *Resolver) Resolve(ctx context.Context, identity string, claim *models.SubscriptionClaim) Decision {
	now := r.now()

	sub := r.fromClaim(identity, claim, now)
	if sub == nil {
		sub = r.fromMirror(identity, now)
	}
	var periodStart time.Time
	if sub == nil {
		sub, periodStart = r.fromProvider(ctx, identity, now)
	}

	decision := Decision{}
	if sub != nil {
		decision.Entitled = true
		decision.Plan = sub.Plan
		decision.Limit = models.PlanLimit(sub.Plan)
		decision.ExpiresAt = sub.ExpiresAt
	} else {
		decision.Limit = r.freeLimit
	}

	usage := r.lookupUsage(ctx, identity, periodStart)
	decision.CurrentUsage = usage.Count
	decision.ResetsAt = usage.ResetAt
	if !decision.Entitled && r.freeLimit > 0 && usage.Count >= r.freeLimit {
		decision.HasReachedLimit = true
	}
	return decision
}

// Activate installs a subscription in the mirror, e.g. after a verified
// checkout. When the provider is available the plan is also written to the
// customer's metadata so entitlement survives a restart.
func (r *Resolver) Activate(ctx context.Context, identity, plan string, expiresAt time.Time, source string) {
	sub := &models.Subscription{Plan: plan, Status: "active", Source: source, ExpiresAt: expiresAt}

	r.mu.Lock()
	r.mirror[identity] = sub
	r.mu.Unlock()

	if r.provider == nil || identity == "" {
		return
	}
	cust, err := r.provider.EnsureCustomer(ctx, identity)
	if err != nil {
		log.Printf("[entitlement] activation write-through failed for %s: %v", identity, err)
		return
	}
	err = r.provider.UpdateCustomerMetadata(ctx, cust.ID, map[string]string{
		"plan":            plan,
		"plan_expires_at": expiresAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		log.Printf("[entitlement] activation write-through failed for %s: %v", identity, err)
	}
}

// fromClaim validates a caller-supplied claim and persists it to the mirror.
func (r *Resolver) fromClaim(identity string, claim *models.SubscriptionClaim, now time.Time) *models.Subscription {
	expiry, ok := claim.Valid(now)
	if !ok {
		return nil
	}
	sub := &models.Subscription{
		Plan:      claim.Plan,
		Status:    "active",
		Source:    models.SourceClientClaim,
		ExpiresAt: expiry,
	}
	if identity != "" {
		r.mu.Lock()
		r.mirror[identity] = sub
		r.mu.Unlock()
	}
	return sub
}

func (r *Resolver) fromMirror(identity string, now time.Time) *models.Subscription {
	if identity == "" {
		return nil
	}
	r.mu.RLock()
	sub := r.mirror[identity]
	r.mu.RUnlock()
	if sub.Active(now) {
		return sub
	}
	return nil
}

// fromProvider consults the billing provider: an active subscription first,
// then a one-time payment still inside its plan duration. Returns the
// subscription period start when one exists, so usage can be aligned to the
// billing cycle.
func (r *Resolver) fromProvider(ctx context.Context, identity string, now time.Time) (*models.Subscription, time.Time) {
	if r.provider == nil || identity == "" {
		return nil, time.Time{}
	}

	cust, err := r.provider.CustomerByEmail(ctx, identity)
	if err == billing.ErrNoCustomer {
		return nil, time.Time{}
	}
	if err != nil {
		log.Printf("[entitlement] customer lookup failed for %s: %v", identity, err)
		return nil, time.Time{}
	}

	provSub, err := r.provider.ActiveSubscription(ctx, cust.ID)
	if err != nil {
		log.Printf("[entitlement] subscription lookup failed for %s: %v", identity, err)
	} else if provSub != nil {
		plan, ok := r.priceToPlan[provSub.PriceID]
		if !ok {
			plan = models.PlanPro
		}
		sub := &models.Subscription{
			Plan:       plan,
			Status:     provSub.Status,
			Source:     models.SourceSubscription,
			CustomerID: cust.ID,
			ExpiresAt:  provSub.CurrentPeriodEnd,
		}
		r.remember(identity, sub)
		return sub, provSub.CurrentPeriodStart
	}

	payments, err := r.provider.Payments(ctx, cust.ID)
	if err != nil {
		log.Printf("[entitlement] payment lookup failed for %s: %v", identity, err)
		return nil, time.Time{}
	}
	for _, payment := range payments {
		if !payment.Succeeded {
			continue
		}
		plan, ok := models.Plans[payment.Metadata["planId"]]
		if !ok {
			continue
		}
		expiresAt := payment.Created.Add(plan.Duration)
		if !now.Before(expiresAt) {
			continue
		}
		sub := &models.Subscription{
			Plan:       plan.ID,
			Status:     "active",
			Source:     models.SourceOneTimePayment,
			CustomerID: cust.ID,
			ExpiresAt:  expiresAt,
		}
		r.remember(identity, sub)
		return sub, time.Time{}
	}
	return nil, time.Time{}
}

func (r *Resolver) remember(identity string, sub *models.Subscription) {
	r.mu.Lock()
	r.mirror[identity] = sub
	r.mu.Unlock()
}

// lookupUsage reads usage for the identity, aligning to the billing period
// when one is known. Ledger failures degrade to zero usage.
func (r *Resolver) lookupUsage(ctx context.Context, identity string, periodStart time.Time) models.Usage {
	if identity == "" {
		return models.Usage{}
	}

	var usage models.Usage
	var err error
	if !periodStart.IsZero() {
		usage, err = r.usage.AlignWindow(ctx, identity, periodStart)
	} else {
		usage, err = r.usage.Usage(ctx, identity)
	}
	if err != nil {
		log.Printf("[entitlement] usage lookup failed for %s: %v", identity, err)
		return models.Usage{}
	}
	return usage
}
