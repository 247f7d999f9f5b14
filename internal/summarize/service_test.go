package summarize

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kwan772/Youtube-TLDR/internal/billing"
	"github.com/kwan772/Youtube-TLDR/internal/cache"
	"github.com/kwan772/Youtube-TLDR/internal/entitlement"
	"github.com/kwan772/Youtube-TLDR/internal/genai"
	"github.com/kwan772/Youtube-TLDR/internal/models"
	"github.com/kwan772/Youtube-TLDR/internal/transcript"
)

type fakeLimiter struct{ allow bool }

func (f *fakeLimiter) Allow(context.Context, string) (bool, error) { return f.allow, nil }

type fakeFetcher struct {
	segments []transcript.Segment
	err      error
	calls    int
}

func (f *fakeFetcher) Fetch(context.Context, string) ([]transcript.Segment, error) {
	f.calls++
	return f.segments, f.err
}

type fakeGenerator struct {
	fragments []string
	failAfter int // -1 means never fail
	calls     int
}

func (f *fakeGenerator) StreamChat(_ context.Context, _ []genai.ChatMessage, emit func(string) error) error {
	f.calls++
	for i, frag := range f.fragments {
		if f.failAfter >= 0 && i == f.failAfter {
			return errors.New("upstream reset")
		}
		if err := emit(frag); err != nil {
			return err
		}
	}
	return nil
}

type env struct {
	service   *Service
	ledger    *entitlement.MemoryUsageStore
	cache     *cache.MemorySummaryCache
	generator *fakeGenerator
	fetcher   *fakeFetcher
}

func newTestEnv(t *testing.T, freeLimit int, allow bool) *env {
	t.Helper()

	ledger := entitlement.NewMemoryUsageStore()
	resolver := entitlement.NewResolver(billing.NewMemoryProvider(), ledger, freeLimit, nil)
	summaryCache := cache.NewMemorySummaryCache(24 * time.Hour)
	summaryCache.Close()
	generator := &fakeGenerator{fragments: []string{"Main ", "Point"}, failAfter: -1}
	fetcher := &fakeFetcher{}

	return &env{
		service:   NewService(&fakeLimiter{allow: allow}, resolver, ledger, summaryCache, fetcher, generator),
		ledger:    ledger,
		cache:     summaryCache,
		generator: generator,
		fetcher:   fetcher,
	}
}

func collect(events *[]Event) Emitter {
	return func(ev Event) error {
		*events = append(*events, ev)
		return nil
	}
}

func TestSummarize_StreamsAndRecords(t *testing.T) {
	e := newTestEnv(t, 5, true)
	ctx := context.Background()

	var events []Event
	err := e.service.Summarize(ctx, Request{
		VideoID:    "abc",
		Transcript: []transcript.Segment{{Text: "hello", Start: 0}, {Text: "world", Start: 3}},
		Identity:   "user@example.com",
		CallerKey:  "1.2.3.4",
	}, collect(&events))
	require.NoError(t, err)

	require.Len(t, events, 3)
	assert.Equal(t, "Main ", events[0].Chunk)
	assert.Equal(t, "Point", events[1].Chunk)
	assert.True(t, events[2].Done, "stream ends with exactly one done marker")
	assert.Empty(t, events[2].Chunk)

	cached, ok, err := e.cache.Get(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Main Point", cached)

	usage, err := e.ledger.Usage(ctx, "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, usage.Count)
}

func TestSummarize_CacheHitSkipsGeneration(t *testing.T) {
	e := newTestEnv(t, 5, true)
	ctx := context.Background()
	req := Request{
		VideoID:    "abc",
		Transcript: []transcript.Segment{{Text: "hello", Start: 0}},
		Identity:   "user@example.com",
		CallerKey:  "ip",
	}

	var first []Event
	require.NoError(t, e.service.Summarize(ctx, req, collect(&first)))
	require.Equal(t, 1, e.generator.calls)

	var second []Event
	require.NoError(t, e.service.Summarize(ctx, req, collect(&second)))
	assert.Equal(t, 1, e.generator.calls, "cache hit must not invoke the generator again")

	require.Len(t, second, 2)
	assert.True(t, second[0].Cached)
	assert.Equal(t, "Main Point", second[0].Summary)
	assert.True(t, second[1].Done)

	usage, err := e.ledger.Usage(ctx, "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, usage.Count, "a cache hit costs no quota")
}

func TestSummarize_RateLimited(t *testing.T) {
	e := newTestEnv(t, 5, false)

	var events []Event
	err := e.service.Summarize(context.Background(), Request{VideoID: "abc", CallerKey: "ip"}, collect(&events))
	assert.ErrorIs(t, err, models.ErrRateLimited)
	assert.Empty(t, events, "denials happen before anything is streamed")
}

func TestSummarize_PaymentRequiredWhenLimitExhausted(t *testing.T) {
	e := newTestEnv(t, 1, true)
	ctx := context.Background()

	_, err := e.ledger.Record(ctx, "user@example.com", "earlier-video")
	require.NoError(t, err)

	var events []Event
	err = e.service.Summarize(ctx, Request{
		VideoID:   "abc",
		Identity:  "user@example.com",
		CallerKey: "ip",
	}, collect(&events))
	assert.ErrorIs(t, err, models.ErrPaymentRequired)
	assert.Empty(t, events)
}

func TestSummarize_NoFreeTierDeniesUnentitled(t *testing.T) {
	e := newTestEnv(t, 0, true)

	var events []Event
	err := e.service.Summarize(context.Background(), Request{
		VideoID:   "abc",
		Identity:  "user@example.com",
		CallerKey: "ip",
	}, collect(&events))
	assert.ErrorIs(t, err, models.ErrPaymentRequired)
}

func TestSummarize_EntitledClaimBypassesFreeTier(t *testing.T) {
	e := newTestEnv(t, 0, true)

	var events []Event
	err := e.service.Summarize(context.Background(), Request{
		VideoID:    "abc",
		Transcript: []transcript.Segment{{Text: "hi", Start: 0}},
		Identity:   "user@example.com",
		CallerKey:  "ip",
		Claim: &models.SubscriptionClaim{
			Plan:       models.PlanPremium,
			ExpiryDate: time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
		},
	}, collect(&events))
	require.NoError(t, err)
	assert.True(t, events[len(events)-1].Done)
}

func TestSummarize_FetchesTranscriptWhenMissing(t *testing.T) {
	e := newTestEnv(t, 5, true)
	e.fetcher.segments = []transcript.Segment{{Text: "fetched", Start: 0}}

	var events []Event
	err := e.service.Summarize(context.Background(), Request{
		VideoID:   "abc",
		CallerKey: "ip",
	}, collect(&events))
	require.NoError(t, err)
	assert.Equal(t, 1, e.fetcher.calls)
}

func TestSummarize_TranscriptFetchFailureIsNonFatal(t *testing.T) {
	e := newTestEnv(t, 5, true)
	e.fetcher.err = transcript.ErrNoTranscript

	var events []Event
	err := e.service.Summarize(context.Background(), Request{
		VideoID:   "abc",
		CallerKey: "ip",
	}, collect(&events))
	require.NoError(t, err, "generation proceeds with an empty transcript")
	assert.True(t, events[len(events)-1].Done)
}

func TestSummarize_MidStreamFailure(t *testing.T) {
	e := newTestEnv(t, 5, true)
	e.generator.fragments = []string{"partial ", "output"}
	e.generator.failAfter = 1
	ctx := context.Background()

	var events []Event
	err := e.service.Summarize(ctx, Request{
		VideoID:    "abc",
		Transcript: []transcript.Segment{{Text: "hi", Start: 0}},
		Identity:   "user@example.com",
		CallerKey:  "ip",
	}, collect(&events))
	require.Error(t, err)

	// Partial output was delivered, but there is no done marker, no cache
	// entry, and no usage charge.
	require.Len(t, events, 1)
	assert.Equal(t, "partial ", events[0].Chunk)
	assert.False(t, events[0].Done)

	_, ok, cacheErr := e.cache.Get(ctx, "abc")
	require.NoError(t, cacheErr)
	assert.False(t, ok)

	usage, usageErr := e.ledger.Usage(ctx, "user@example.com")
	require.NoError(t, usageErr)
	assert.Equal(t, 0, usage.Count)
}
