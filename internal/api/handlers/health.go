// Package handlers implements the HTTP handlers for the API surface.
package handlers

import (
	"net/http"

	"github.com/kwan772/Youtube-TLDR/internal/api/response"
)

// HealthHandler serves the root status endpoint the extension pings.
type HealthHandler struct {
	version string
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{version: version}
}

// Status handles GET / and HEAD /.
func (h *HealthHandler) Status(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}
	response.JSON(w, http.StatusOK, map[string]string{
		"status":  "online",
		"message": "YouTube TLDR API is running",
		"version": h.version,
	})
}
