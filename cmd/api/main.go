package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kwan772/Youtube-TLDR/internal/api"
	"github.com/kwan772/Youtube-TLDR/internal/billing"
	"github.com/kwan772/Youtube-TLDR/internal/cache"
	"github.com/kwan772/Youtube-TLDR/internal/clientref"
	"github.com/kwan772/Youtube-TLDR/internal/config"
	"github.com/kwan772/Youtube-TLDR/internal/entitlement"
	"github.com/kwan772/Youtube-TLDR/internal/genai"
	"github.com/kwan772/Youtube-TLDR/internal/models"
	"github.com/kwan772/Youtube-TLDR/internal/payment"
	"github.com/kwan772/Youtube-TLDR/internal/ratelimit"
	"github.com/kwan772/Youtube-TLDR/internal/summarize"
	"github.com/kwan772/Youtube-TLDR/internal/transcript"
)

func main() {
	cfg := config.Load()

	log.Printf("[main] Starting YouTube TLDR API (env=%s)", cfg.Env)

	// Redis is optional. Without it the in-memory limiter and summary cache
	// serve a single-instance deployment.
	var redisCache *cache.Redis
	if cfg.RedisURL != "" {
		var err error
		redisCache, err = cache.NewRedisFromURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("[main] Failed to connect to Redis: %v", err)
		}
		defer redisCache.Close()
	}

	var limiter ratelimit.Limiter
	var summaryCache cache.SummaryCache
	if redisCache != nil {
		limiter = ratelimit.NewRedisLimiter(redisCache, cfg.RateLimit, cfg.RateWindow)
		summaryCache = cache.NewRedisSummaryCache(redisCache, cfg.CacheTTL)
	} else {
		memLimiter := ratelimit.NewMemoryLimiter(cfg.RateLimit, cfg.RateWindow)
		defer memLimiter.Close()
		memCache := cache.NewMemorySummaryCache(cfg.CacheTTL)
		defer memCache.Close()
		limiter = memLimiter
		summaryCache = memCache
	}

	// Without Stripe credentials the in-memory provider keeps the service
	// functional for development.
	var provider billing.Provider
	if cfg.StripeSecretKey != "" {
		provider = billing.NewStripeProvider(cfg.StripeSecretKey)
	} else {
		log.Println("[main] STRIPE_SECRET_KEY not set, using in-memory billing provider")
		provider = billing.NewMemoryProvider()
	}

	priceToPlan := map[string]string{}
	if cfg.StripeProPriceID != "" {
		priceToPlan[cfg.StripeProPriceID] = models.PlanPro
	}
	if cfg.StripePremiumPriceID != "" {
		priceToPlan[cfg.StripePremiumPriceID] = models.PlanPremium
	}
	priceIDs := map[string]string{}
	if cfg.StripeProPriceID != "" {
		priceIDs[models.PlanPro] = cfg.StripeProPriceID
	}
	if cfg.StripePremiumPriceID != "" {
		priceIDs[models.PlanPremium] = cfg.StripePremiumPriceID
	}

	ledger := entitlement.NewProviderUsageStore(provider)
	resolver := entitlement.NewResolver(provider, ledger, cfg.FreeTierLimit, priceToPlan)

	generator := genai.NewClient(cfg.GeminiAPIKey, cfg.GeminiBaseURL, cfg.ModelSummary)
	transcripts := transcript.NewClient()

	summaries := summarize.NewService(limiter, resolver, ledger, summaryCache, transcripts, generator)

	codec, err := clientref.NewCodec(clientRefKey(cfg.ClientRefKey))
	if err != nil {
		log.Fatalf("[main] Failed to initialize client reference codec: %v", err)
	}
	registry := clientref.NewRegistry()

	payments := payment.NewService(provider, resolver, cfg.PublicBaseURL, priceIDs)

	router := api.NewRouter(api.Deps{
		Config:    cfg,
		Summaries: summaries,
		Resolver:  resolver,
		Ledger:    ledger,
		Payments:  payments,
		Codec:     codec,
		Registry:  registry,
	})

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// Summary streams can run for minutes on long videos.
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("[main] Server listening on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[main] Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[main] Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[main] Server forced to shutdown: %v", err)
	}

	log.Println("[main] Server stopped")
}

// clientRefKey decodes the configured hex key, generating an ephemeral one
// when unset. Ephemeral keys invalidate outstanding tokens on restart, which
// matches the rest of the in-process state.
func clientRefKey(hexKey string) []byte {
	if hexKey != "" {
		key, err := hex.DecodeString(hexKey)
		if err != nil || len(key) != 32 {
			log.Fatalf("[main] CLIENT_REF_KEY must be 64 hex characters")
		}
		return key
	}

	log.Println("[main] CLIENT_REF_KEY not set, generating an ephemeral key")
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		log.Fatalf("[main] Failed to generate key: %v", err)
	}
	return key
}
