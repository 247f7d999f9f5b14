package middleware

import (
	"log"
	"net/http"
	"runtime/debug"

	"github.com/kwan772/Youtube-TLDR/internal/api/response"
)

// Recoverer converts handler panics into a 500 response.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				requestID := GetRequestID(r.Context())
				log.Printf("[%s] PANIC: %v\n%s", requestID, rec, debug.Stack())
				response.InternalError(w, "An unexpected error occurred")
			}
		}()

		next.ServeHTTP(w, r)
	})
}
