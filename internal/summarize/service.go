// Package summarize orchestrates the summarization pipeline: throttling,
// entitlement, cache, transcript compaction, streamed generation, and the
// cache/ledger writes that follow a completed stream.
package summarize

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/kwan772/Youtube-TLDR/internal/cache"
	"github.com/kwan772/Youtube-TLDR/internal/entitlement"
	"github.com/kwan772/Youtube-TLDR/internal/genai"
	"github.com/kwan772/Youtube-TLDR/internal/models"
	"github.com/kwan772/Youtube-TLDR/internal/ratelimit"
	"github.com/kwan772/Youtube-TLDR/internal/transcript"
)

// TranscriptFetcher retrieves a transcript when the caller supplied none.
type TranscriptFetcher interface {
	Fetch(ctx context.Context, videoID string) ([]transcript.Segment, error)
}

// Generator streams generated text fragments for a prompt.
type Generator interface {
	StreamChat(ctx context.Context, messages []genai.ChatMessage, emit func(content string) error) error
}

// Event is one element of the summary stream sent to the caller.
type Event struct {
	Chunk   string `json:"chunk"`
	Done    bool   `json:"done"`
	Cached  bool   `json:"cached,omitempty"`
	Summary string `json:"summary,omitempty"`
}

// Emitter receives stream events in order. An emitter error aborts the
// stream (the caller has gone away).
type Emitter func(Event) error

// Request is a summarization request after boundary validation.
type Request struct {
	VideoID    string
	Transcript []transcript.Segment
	Identity   string
	Claim      *models.SubscriptionClaim
	CallerKey  string
}

// Service runs the summarization pipeline.
type Service struct {
	limiter     ratelimit.Limiter
	resolver    *entitlement.Resolver
	ledger      entitlement.UsageStore
	cache       cache.SummaryCache
	transcripts TranscriptFetcher
	generator   Generator
}

// NewService creates a summarization service.
func NewService(
	limiter ratelimit.Limiter,
	resolver *entitlement.Resolver,
	ledger entitlement.UsageStore,
	summaryCache cache.SummaryCache,
	transcripts TranscriptFetcher,
	generator Generator,
) *Service {
	return &Service{
		limiter:     limiter,
		resolver:    resolver,
		ledger:      ledger,
		cache:       summaryCache,
		transcripts: transcripts,
		generator:   generator,
	}
}

// Summarize runs the pipeline for one request, forwarding stream events to
// emit. Pre-stream denials are returned as sentinel errors before anything
// is emitted: models.ErrRateLimited, models.ErrPaymentRequired.
//
// A stream that completes cleanly is followed by a cache write, a usage
// record (when the caller is identified), and a terminal done event. A
// stream that fails midway ends with none of those, so partial output is
// never cached or billed.
func (s *Service) Summarize(ctx context.Context, req Request, emit Emitter) error {
	allowed, err := s.limiter.Allow(ctx, req.CallerKey)
	if err != nil {
		return fmt.Errorf("rate limit check failed: %w", err)
	}
	if !allowed {
		return models.ErrRateLimited
	}

	decision := s.resolver.Resolve(ctx, req.Identity, req.Claim)
	if !decision.Entitled && (decision.Limit == 0 || decision.HasReachedLimit) {
		return models.ErrPaymentRequired
	}

	// A cache hit is free: no generation, no usage charge.
	if cached, ok, err := s.cache.Get(ctx, req.VideoID); err != nil {
		log.Printf("[summarize] cache read failed for %s: %v", req.VideoID, err)
	} else if ok {
		if err := emit(Event{Cached: true, Summary: cached}); err != nil {
			return err
		}
		return emit(Event{Done: true})
	}

	segments := req.Transcript
	if len(segments) == 0 {
		fetched, err := s.transcripts.Fetch(ctx, req.VideoID)
		if err != nil {
			// Non-fatal: generation proceeds with whatever we have.
			log.Printf("[summarize] transcript fetch failed for %s: %v", req.VideoID, err)
		} else {
			segments = fetched
		}
	}

	entries := transcript.Compact(segments, transcript.DefaultMergeGap)
	lastStart := 0.0
	if len(segments) > 0 {
		lastStart = segments[len(segments)-1].Start
	}

	prompt, err := RenderPrompt(entries, lastStart)
	if err != nil {
		return fmt.Errorf("failed to render prompt: %w", err)
	}
	messages := []genai.ChatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: prompt},
	}

	var summary strings.Builder
	err = s.generator.StreamChat(ctx, messages, func(content string) error {
		summary.WriteString(content)
		return emit(Event{Chunk: content})
	})
	if err != nil {
		return fmt.Errorf("generation stream failed: %w", err)
	}

	if err := s.cache.Put(ctx, req.VideoID, summary.String()); err != nil {
		log.Printf("[summarize] cache write failed for %s: %v", req.VideoID, err)
	}
	if req.Identity != "" {
		if _, err := s.ledger.Record(ctx, req.Identity, req.VideoID); err != nil {
			log.Printf("[summarize] usage record failed for %s: %v", req.Identity, err)
		}
	}

	return emit(Event{Done: true})
}
