// Package response writes the API's JSON responses. Shapes are flat because
// the browser extension consumes them directly.
package response

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the error body shared by all endpoints.
type ErrorResponse struct {
	Error           string `json:"error"`
	Details         string `json:"details,omitempty"`
	RequiresPayment bool   `json:"requiresPayment,omitempty"`
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already out; nothing useful left to write.
			return
		}
	}
}

// Error writes an error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorResponse{Error: message})
}

// BadRequest writes a 400 bad request response.
func BadRequest(w http.ResponseWriter, message string) {
	if message == "" {
		message = "Bad request"
	}
	Error(w, http.StatusBadRequest, message)
}

// NotFound writes a 404 not found response.
func NotFound(w http.ResponseWriter, message string) {
	if message == "" {
		message = "Resource not found"
	}
	Error(w, http.StatusNotFound, message)
}

// InternalError writes a 500 internal server error response.
func InternalError(w http.ResponseWriter, message string) {
	if message == "" {
		message = "Internal server error"
	}
	Error(w, http.StatusInternalServerError, message)
}

// TooManyRequests writes a 429 rate limit exceeded response.
func TooManyRequests(w http.ResponseWriter, message string) {
	if message == "" {
		message = "Rate limit exceeded"
	}
	Error(w, http.StatusTooManyRequests, message)
}

// PaymentRequired writes a 402 response flagged for the extension's
// upgrade prompt.
func PaymentRequired(w http.ResponseWriter, message, details string) {
	if message == "" {
		message = "Free tier limit reached"
	}
	JSON(w, http.StatusPaymentRequired, ErrorResponse{
		Error:           message,
		Details:         details,
		RequiresPayment: true,
	})
}
