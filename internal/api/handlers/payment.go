package handlers

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/kwan772/Youtube-TLDR/internal/api/request"
	"github.com/kwan772/Youtube-TLDR/internal/api/response"
	"github.com/kwan772/Youtube-TLDR/internal/clientref"
	"github.com/kwan772/Youtube-TLDR/internal/middleware"
	"github.com/kwan772/Youtube-TLDR/internal/models"
	"github.com/kwan772/Youtube-TLDR/internal/payment"
)

// PaymentHandler serves the checkout pages and payment endpoints.
type PaymentHandler struct {
	payments *payment.Service
	codec    *clientref.Codec
	registry *clientref.Registry
}

// NewPaymentHandler creates a payment handler.
func NewPaymentHandler(payments *payment.Service, codec *clientref.Codec, registry *clientref.Registry) *PaymentHandler {
	return &PaymentHandler{payments: payments, codec: codec, registry: registry}
}

// Checkout handles GET /payment. Without a plan it renders the selection
// page; with one it starts checkout and redirects to the hosted page.
func (h *PaymentHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	identity := identityFromQuery(r)
	if identity == "" {
		response.BadRequest(w, "userId is required")
		return
	}

	planID := request.GetQueryString(r, "plan", "")
	if planID == "" {
		if err := payment.RenderPlansPage(w, identity); err != nil {
			log.Printf("[payment] failed to render plans page: %v", err)
		}
		return
	}
	if !models.ValidPlan(planID) {
		response.BadRequest(w, "unknown plan")
		return
	}

	token := h.issueClientRef(identity, planID)

	result, err := h.payments.StartCheckout(r.Context(), identity, planID, token)
	if err != nil {
		log.Printf("[%s] checkout for %s failed: %v", middleware.GetRequestID(r.Context()), identity, err)
		response.InternalError(w, "failed to start checkout")
		return
	}

	if result.URL != "" {
		http.Redirect(w, r, result.URL, http.StatusSeeOther)
		return
	}
	response.JSON(w, http.StatusOK, result)
}

// Result handles GET /payment-result, the hosted-checkout return URL.
func (h *PaymentHandler) Result(w http.ResponseWriter, r *http.Request) {
	sessionID := request.GetQueryString(r, "session_id", "")
	if sessionID == "" {
		response.BadRequest(w, "session_id is required")
		return
	}

	sess, err := h.payments.VerifySession(r.Context(), sessionID)
	if err != nil {
		message := "We could not verify your payment. You have not been charged."
		if errors.Is(err, payment.ErrPaymentIncomplete) {
			message = "Your payment was not completed. You have not been charged."
		}
		log.Printf("[payment] session %s verification failed: %v", sessionID, err)
		renderResult(w, false, "", message)
		return
	}

	identity := h.identityFromSession(sess.ClientReferenceID, sess.CustomerEmail)
	if identity == "" {
		identity = models.NormalizeIdentity(request.GetQueryString(r, "user_email", ""))
	}
	if identity == "" {
		renderResult(w, false, "", "Payment received, but we could not link it to your account. Contact support.")
		return
	}

	planID := sess.PlanID
	if planID == "" {
		planID = request.GetQueryString(r, "plan", "")
	}

	sub, err := h.payments.Activate(r.Context(), identity, planID, models.SourceSubscription)
	if err != nil {
		log.Printf("[payment] activation for %s failed: %v", identity, err)
		renderResult(w, false, "", "Payment received, but activation failed. Contact support.")
		return
	}
	renderResult(w, true, sub.Plan, "")
}

type createIntentRequest struct {
	Email  string `json:"email"`
	UserID string `json:"userId"`
	PlanID string `json:"planId"`
}

// CreateIntent handles POST /create-payment-intent.
func (h *PaymentHandler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	var req createIntentRequest
	if err := request.DecodeJSON(r, &req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	identity := models.NormalizeIdentity(req.Email)
	if identity == "" {
		identity = models.NormalizeIdentity(req.UserID)
	}
	if identity == "" {
		response.BadRequest(w, "email or userId is required")
		return
	}

	result, err := h.payments.StartCheckout(r.Context(), identity, req.PlanID, h.issueClientRef(identity, req.PlanID))
	if err != nil {
		if errors.Is(err, payment.ErrUnknownPlan) {
			response.BadRequest(w, "unknown plan")
			return
		}
		log.Printf("[%s] payment intent for %s failed: %v", middleware.GetRequestID(r.Context()), identity, err)
		response.InternalError(w, "failed to create payment")
		return
	}
	response.JSON(w, http.StatusOK, result)
}

type activateRequest struct {
	Email     string `json:"email"`
	UserID    string `json:"userId"`
	PaymentID string `json:"paymentId"`
}

type activateResponse struct {
	Success      bool              `json:"success"`
	Subscription *subscriptionView `json:"subscription"`
}

// Activate handles POST /payment/activate, the card-element completion call.
func (h *PaymentHandler) Activate(w http.ResponseWriter, r *http.Request) {
	var req activateRequest
	if err := request.DecodeJSON(r, &req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	identity := models.NormalizeIdentity(req.Email)
	if identity == "" {
		identity = models.NormalizeIdentity(req.UserID)
	}
	if identity == "" || req.PaymentID == "" {
		response.BadRequest(w, "email or userId and paymentId are required")
		return
	}

	sub, err := h.payments.ActivateFromPaymentIntent(r.Context(), identity, req.PaymentID)
	if err != nil {
		switch {
		case errors.Is(err, payment.ErrPaymentIncomplete):
			response.BadRequest(w, "payment not completed")
		case errors.Is(err, payment.ErrUnknownPlan):
			response.BadRequest(w, "payment is missing plan information")
		default:
			log.Printf("[%s] activation for %s failed: %v", middleware.GetRequestID(r.Context()), identity, err)
			response.InternalError(w, "failed to activate subscription")
		}
		return
	}

	response.JSON(w, http.StatusOK, activateResponse{
		Success: true,
		Subscription: &subscriptionView{
			Plan:      sub.Plan,
			ExpiresAt: sub.ExpiresAt.UTC().Format(time.RFC3339),
		},
	})
}

// issueClientRef seals the identity into a reference token, falling back to
// the raw identity if sealing fails.
func (h *PaymentHandler) issueClientRef(identity, planID string) string {
	ref := clientref.Reference{IssuedAt: time.Now().UTC(), Email: identity, Plan: planID}
	token, err := h.codec.Encode(ref)
	if err != nil {
		log.Printf("[payment] failed to seal client reference: %v", err)
		return identity
	}
	h.registry.Put(token, ref)
	return token
}

// identityFromSession recovers the buyer's identity from a checkout session.
func (h *PaymentHandler) identityFromSession(clientRef, customerEmail string) string {
	if clientRef != "" {
		if ref, ok := h.registry.Get(clientRef); ok {
			return models.NormalizeIdentity(ref.Email)
		}
		if ref, err := h.codec.Decode(clientRef); err == nil {
			return models.NormalizeIdentity(ref.Email)
		}
	}
	return models.NormalizeIdentity(customerEmail)
}

func renderResult(w http.ResponseWriter, success bool, plan, message string) {
	if err := payment.RenderResultPage(w, success, plan, message); err != nil {
		log.Printf("[payment] failed to render result page: %v", err)
	}
}
