package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/kwan772/Youtube-TLDR/internal/api/request"
	"github.com/kwan772/Youtube-TLDR/internal/api/response"
	"github.com/kwan772/Youtube-TLDR/internal/middleware"
	"github.com/kwan772/Youtube-TLDR/internal/models"
	"github.com/kwan772/Youtube-TLDR/internal/summarize"
	"github.com/kwan772/Youtube-TLDR/internal/transcript"
)

// SummaryHandler serves the streaming summary endpoint.
type SummaryHandler struct {
	service *summarize.Service
}

// NewSummaryHandler creates a summary handler.
func NewSummaryHandler(service *summarize.Service) *SummaryHandler {
	return &SummaryHandler{service: service}
}

type summaryRequest struct {
	VideoID      string                    `json:"videoId"`
	Transcript   []transcript.Segment      `json:"transcript"`
	Email        string                    `json:"email"`
	UserID       string                    `json:"userId"`
	Subscription *models.SubscriptionClaim `json:"subscription"`
}

// Stream handles POST /summary. The response is newline-delimited JSON:
// {chunk, done} lines, ending with an empty chunk marked done. Cached videos
// emit a single {cached, summary} line before the done marker.
//
// Denials are decided before the first line is written, so they go out as
// plain status-coded JSON errors. Once streaming has begun the status is
// committed; a mid-stream failure simply ends the body without a done marker.
func (h *SummaryHandler) Stream(w http.ResponseWriter, r *http.Request) {
	var req summaryRequest
	if err := request.DecodeJSON(r, &req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if req.VideoID == "" {
		response.BadRequest(w, "videoId is required")
		return
	}

	identity := models.NormalizeIdentity(req.Email)
	if identity == "" {
		identity = models.NormalizeIdentity(req.UserID)
	}

	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)
	streaming := false

	emit := func(ev summarize.Event) error {
		if !streaming {
			w.Header().Set("Content-Type", "application/x-ndjson")
			w.Header().Set("Cache-Control", "no-cache")
			w.Header().Set("X-Accel-Buffering", "no")
			w.WriteHeader(http.StatusOK)
			streaming = true
		}
		if err := enc.Encode(ev); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	}

	err := h.service.Summarize(r.Context(), summarize.Request{
		VideoID:    req.VideoID,
		Transcript: req.Transcript,
		Identity:   identity,
		Claim:      req.Subscription,
		CallerKey:  request.ClientIP(r),
	}, emit)
	if err == nil {
		return
	}

	requestID := middleware.GetRequestID(r.Context())
	if streaming {
		// Status is already committed; the truncated body is the signal.
		log.Printf("[%s] summary stream for %s aborted: %v", requestID, req.VideoID, err)
		return
	}

	switch {
	case errors.Is(err, models.ErrRateLimited):
		response.TooManyRequests(w, "Rate limit exceeded. Please try again later.")
	case errors.Is(err, models.ErrPaymentRequired):
		response.PaymentRequired(w, "Free tier limit reached", "Upgrade to continue summarizing videos.")
	default:
		log.Printf("[%s] summary for %s failed: %v", requestID, req.VideoID, err)
		response.InternalError(w, "failed to generate summary")
	}
}
