package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/kwan772/Youtube-TLDR/internal/api/request"
	"github.com/kwan772/Youtube-TLDR/internal/api/response"
	"github.com/kwan772/Youtube-TLDR/internal/entitlement"
	"github.com/kwan772/Youtube-TLDR/internal/models"
)

// UsageHandler serves the extension's quota checks.
type UsageHandler struct {
	resolver *entitlement.Resolver
	ledger   entitlement.UsageStore
}

// NewUsageHandler creates a usage handler.
func NewUsageHandler(resolver *entitlement.Resolver, ledger entitlement.UsageStore) *UsageHandler {
	return &UsageHandler{resolver: resolver, ledger: ledger}
}

type usageCounts struct {
	Current int `json:"current"`
	Limit   int `json:"limit"`
}

type subscriptionView struct {
	Plan      string `json:"plan"`
	ExpiresAt string `json:"expiresAt,omitempty"`
}

type usageResponse struct {
	HasReachedLimit bool              `json:"hasReachedLimit"`
	Usage           usageCounts       `json:"usage"`
	Subscription    *subscriptionView `json:"subscription,omitempty"`
}

// identityFromQuery reads email or userId from the query string.
func identityFromQuery(r *http.Request) string {
	identity := request.GetQueryString(r, "email", "")
	if identity == "" {
		identity = request.GetQueryString(r, "userId", "")
	}
	return models.NormalizeIdentity(identity)
}

// claimFromRequest reads an optional subscription claim from the
// X-Subscription header or the subscription query parameter. Malformed
// claims are dropped, not rejected.
func claimFromRequest(r *http.Request) *models.SubscriptionClaim {
	raw := r.Header.Get("X-Subscription")
	if raw == "" {
		raw = request.GetQueryString(r, "subscription", "")
	}
	if raw == "" {
		return nil
	}

	var claim models.SubscriptionClaim
	if err := json.Unmarshal([]byte(raw), &claim); err != nil {
		log.Printf("[usage] ignoring malformed subscription claim: %v", err)
		return nil
	}
	return &claim
}

func buildUsageResponse(decision entitlement.Decision) usageResponse {
	resp := usageResponse{
		HasReachedLimit: decision.HasReachedLimit,
		Usage:           usageCounts{Current: decision.CurrentUsage, Limit: decision.Limit},
	}
	if decision.Entitled {
		sub := &subscriptionView{Plan: decision.Plan}
		if !decision.ExpiresAt.IsZero() {
			sub.ExpiresAt = decision.ExpiresAt.UTC().Format(time.RFC3339)
		}
		resp.Subscription = sub
	}
	return resp
}

// Get handles GET /usage.
func (h *UsageHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity := identityFromQuery(r)
	if identity == "" {
		response.BadRequest(w, "email or userId is required")
		return
	}

	decision := h.resolver.Resolve(r.Context(), identity, claimFromRequest(r))
	response.JSON(w, http.StatusOK, buildUsageResponse(decision))
}

type recordUsageRequest struct {
	Email        string                    `json:"email"`
	UserID       string                    `json:"userId"`
	VideoID      string                    `json:"videoId"`
	Subscription *models.SubscriptionClaim `json:"subscription"`
}

type recordUsageResponse struct {
	Success         bool              `json:"success"`
	HasReachedLimit bool              `json:"hasReachedLimit"`
	Usage           usageCounts       `json:"usage"`
	Subscription    *subscriptionView `json:"subscription,omitempty"`
}

// Record handles POST /usage.
func (h *UsageHandler) Record(w http.ResponseWriter, r *http.Request) {
	var req recordUsageRequest
	if err := request.DecodeJSON(r, &req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	identity := models.NormalizeIdentity(req.Email)
	if identity == "" {
		identity = models.NormalizeIdentity(req.UserID)
	}
	if identity == "" || req.VideoID == "" {
		response.BadRequest(w, "email or userId and videoId are required")
		return
	}

	if _, err := h.ledger.Record(r.Context(), identity, req.VideoID); err != nil {
		log.Printf("[usage] record failed for %s: %v", identity, err)
		response.InternalError(w, "failed to record usage")
		return
	}

	decision := h.resolver.Resolve(r.Context(), identity, req.Subscription)
	base := buildUsageResponse(decision)
	response.JSON(w, http.StatusOK, recordUsageResponse{
		Success:         true,
		HasReachedLimit: base.HasReachedLimit,
		Usage:           base.Usage,
		Subscription:    base.Subscription,
	})
}
