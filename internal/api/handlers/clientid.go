package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/kwan772/Youtube-TLDR/internal/api/request"
	"github.com/kwan772/Youtube-TLDR/internal/api/response"
	"github.com/kwan772/Youtube-TLDR/internal/clientref"
	"github.com/kwan772/Youtube-TLDR/internal/models"
)

// ClientIDHandler issues encrypted client reference tokens for checkout.
type ClientIDHandler struct {
	codec    *clientref.Codec
	registry *clientref.Registry
}

// NewClientIDHandler creates a client ID handler.
func NewClientIDHandler(codec *clientref.Codec, registry *clientref.Registry) *ClientIDHandler {
	return &ClientIDHandler{codec: codec, registry: registry}
}

type clientIDRequest struct {
	Email string `json:"email"`
	Plan  string `json:"plan"`
}

// Generate handles POST /generate-client-id.
func (h *ClientIDHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req clientIDRequest
	if err := request.DecodeJSON(r, &req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	email := models.NormalizeIdentity(req.Email)
	if email == "" {
		response.BadRequest(w, "email is required")
		return
	}

	ref := clientref.Reference{IssuedAt: time.Now().UTC(), Email: email, Plan: req.Plan}
	token, err := h.codec.Encode(ref)
	if err != nil {
		log.Printf("[clientid] failed to seal reference: %v", err)
		response.InternalError(w, "failed to generate client ID")
		return
	}
	h.registry.Put(token, ref)

	response.JSON(w, http.StatusOK, map[string]string{"clientId": token})
}
