// Package api wires the HTTP surface: router, middleware and handlers.
package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/kwan772/Youtube-TLDR/internal/api/handlers"
	"github.com/kwan772/Youtube-TLDR/internal/clientref"
	"github.com/kwan772/Youtube-TLDR/internal/config"
	"github.com/kwan772/Youtube-TLDR/internal/entitlement"
	"github.com/kwan772/Youtube-TLDR/internal/middleware"
	"github.com/kwan772/Youtube-TLDR/internal/payment"
	"github.com/kwan772/Youtube-TLDR/internal/summarize"
)

// Version reported by the status endpoint.
const Version = "1.0.0"

// Deps carries the constructed services the router binds handlers to.
type Deps struct {
	Config    *config.Config
	Summaries *summarize.Service
	Resolver  *entitlement.Resolver
	Ledger    entitlement.UsageStore
	Payments  *payment.Service
	Codec     *clientref.Codec
	Registry  *clientref.Registry
}

// NewRouter creates and configures the main router.
func NewRouter(d Deps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Timing)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.CORS(d.Config.CORSOrigins))

	healthHandler := handlers.NewHealthHandler(Version)
	usageHandler := handlers.NewUsageHandler(d.Resolver, d.Ledger)
	summaryHandler := handlers.NewSummaryHandler(d.Summaries)
	paymentHandler := handlers.NewPaymentHandler(d.Payments, d.Codec, d.Registry)
	clientIDHandler := handlers.NewClientIDHandler(d.Codec, d.Registry)

	r.Get("/", healthHandler.Status)
	r.Head("/", healthHandler.Status)

	r.Get("/usage", usageHandler.Get)
	r.Post("/usage", usageHandler.Record)

	r.Post("/summary", summaryHandler.Stream)

	r.Get("/payment", paymentHandler.Checkout)
	r.Get("/payment-result", paymentHandler.Result)
	r.Post("/create-payment-intent", paymentHandler.CreateIntent)
	r.Post("/payment/activate", paymentHandler.Activate)

	r.Post("/generate-client-id", clientIDHandler.Generate)

	return r
}
