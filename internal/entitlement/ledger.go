// Package entitlement decides whether a caller may consume the summarization
// capability and tracks per-identity usage against the free tier and plan
// limits.
package entitlement

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/kwan772/Youtube-TLDR/internal/billing"
	"github.com/kwan772/Youtube-TLDR/internal/models"
)

// ResetWindow is the usage window length. When the window rolls over the
// counter and viewed-video set are zeroed and a new window starts.
const ResetWindow = 30 * 24 * time.Hour

// Customer metadata keys used when the billing provider backs the ledger.
const (
	metaUsageCount   = "usage_count"
	metaUsageVideos  = "usage_videos"
	metaUsageResetAt = "usage_reset_at"
)

// UsageStore is the usage ledger. Record is atomic per (identity, videoID):
// the membership check and the increment happen inside one store operation,
// so two racing requests for the same pair count once.
type UsageStore interface {
	// Record marks videoID as summarized for identity and returns the new
	// count. Recording an already-recorded video returns the count unchanged.
	Record(ctx context.Context, identity, videoID string) (int, error)
	// Usage returns the identity's usage in the current window, applying the
	// window reset when it has rolled over.
	Usage(ctx context.Context, identity string) (models.Usage, error)
	// AlignWindow reconciles the window with a provider-reported billing
	// period start: a window that began before periodStart is zeroed and
	// re-anchored.
	AlignWindow(ctx context.Context, identity string, periodStart time.Time) (models.Usage, error)
}

type usageRecord struct {
	count   int
	videos  map[string]struct{}
	resetAt time.Time
}

// MemoryUsageStore is an in-process ledger for tests and deployments without
// billing credentials.
type MemoryUsageStore struct {
	mu      sync.Mutex
	records map[string]*usageRecord
	now     func() time.Time
}

// NewMemoryUsageStore creates an empty in-memory ledger.
func NewMemoryUsageStore() *MemoryUsageStore {
	return &MemoryUsageStore{
		records: make(map[string]*usageRecord),
		now:     time.Now,
	}
}

// Record marks videoID summarized for identity, deduplicated per video.
func (s *MemoryUsageStore) Record(_ context.Context, identity, videoID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.get(identity)
	if _, seen := rec.videos[videoID]; seen {
		return rec.count, nil
	}
	rec.videos[videoID] = struct{}{}
	rec.count++
	return rec.count, nil
}

// Usage returns the identity's current-window usage.
func (s *MemoryUsageStore) Usage(_ context.Context, identity string) (models.Usage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.get(identity)
	return usageFromRecord(rec), nil
}

// AlignWindow zeroes usage whose window began before periodStart.
func (s *MemoryUsageStore) AlignWindow(_ context.Context, identity string, periodStart time.Time) (models.Usage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.get(identity)
	if rec.resetAt.Add(-ResetWindow).Before(periodStart) {
		rec.count = 0
		rec.videos = make(map[string]struct{})
		rec.resetAt = periodStart.Add(ResetWindow)
	}
	return usageFromRecord(rec), nil
}

// get returns the identity's record, creating or resetting it as needed.
// Callers hold s.mu.
func (s *MemoryUsageStore) get(identity string) *usageRecord {
	now := s.now()
	rec, ok := s.records[identity]
	if !ok {
		rec = &usageRecord{videos: make(map[string]struct{}), resetAt: now.Add(ResetWindow)}
		s.records[identity] = rec
		return rec
	}
	if now.After(rec.resetAt) {
		rec.count = 0
		rec.videos = make(map[string]struct{})
		rec.resetAt = now.Add(ResetWindow)
	}
	return rec
}

func usageFromRecord(rec *usageRecord) models.Usage {
	videos := make([]string, 0, len(rec.videos))
	for v := range rec.videos {
		videos = append(videos, v)
	}
	return models.Usage{Count: rec.count, Videos: videos, ResetAt: rec.resetAt}
}

// ProviderUsageStore persists the ledger in billing-provider customer
// metadata. The provider has no conditional-update primitive, so the
// read-modify-write runs under a per-identity lock; that serializes racing
// requests within one process, which is the only writer for its callers.
type ProviderUsageStore struct {
	provider billing.Provider

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	now func() time.Time
}

// NewProviderUsageStore creates a ledger backed by provider metadata.
func NewProviderUsageStore(provider billing.Provider) *ProviderUsageStore {
	return &ProviderUsageStore{
		provider: provider,
		locks:    make(map[string]*sync.Mutex),
		now:      time.Now,
	}
}

func (s *ProviderUsageStore) lock(identity string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[identity]
	if !ok {
		l = &sync.Mutex{}
		s.locks[identity] = l
	}
	return l
}

// Record marks videoID summarized for identity, writing through to the
// provider's metadata store.
func (s *ProviderUsageStore) Record(ctx context.Context, identity, videoID string) (int, error) {
	l := s.lock(identity)
	l.Lock()
	defer l.Unlock()

	cust, err := s.provider.EnsureCustomer(ctx, identity)
	if err != nil {
		return 0, err
	}

	usage := decodeUsage(cust.Metadata, s.now())
	for _, v := range usage.Videos {
		if v == videoID {
			return usage.Count, nil
		}
	}
	usage.Videos = append(usage.Videos, videoID)
	usage.Count++

	if err := s.provider.UpdateCustomerMetadata(ctx, cust.ID, encodeUsage(usage)); err != nil {
		return 0, err
	}
	return usage.Count, nil
}

// Usage returns the identity's current-window usage from provider metadata.
// Identities without a billing customer have zero usage.
func (s *ProviderUsageStore) Usage(ctx context.Context, identity string) (models.Usage, error) {
	l := s.lock(identity)
	l.Lock()
	defer l.Unlock()

	now := s.now()
	cust, err := s.provider.CustomerByEmail(ctx, identity)
	if err == billing.ErrNoCustomer {
		return models.Usage{ResetAt: now.Add(ResetWindow)}, nil
	}
	if err != nil {
		return models.Usage{}, err
	}

	usage := decodeUsage(cust.Metadata, now)
	if rolledOver(cust.Metadata, usage) {
		if err := s.provider.UpdateCustomerMetadata(ctx, cust.ID, encodeUsage(usage)); err != nil {
			return models.Usage{}, err
		}
	}
	return usage, nil
}

// AlignWindow zeroes usage whose window began before periodStart.
func (s *ProviderUsageStore) AlignWindow(ctx context.Context, identity string, periodStart time.Time) (models.Usage, error) {
	l := s.lock(identity)
	l.Lock()
	defer l.Unlock()

	cust, err := s.provider.CustomerByEmail(ctx, identity)
	if err == billing.ErrNoCustomer {
		return models.Usage{ResetAt: periodStart.Add(ResetWindow)}, nil
	}
	if err != nil {
		return models.Usage{}, err
	}

	usage := decodeUsage(cust.Metadata, s.now())
	if usage.ResetAt.Add(-ResetWindow).Before(periodStart) {
		usage = models.Usage{ResetAt: periodStart.Add(ResetWindow)}
		if err := s.provider.UpdateCustomerMetadata(ctx, cust.ID, encodeUsage(usage)); err != nil {
			return models.Usage{}, err
		}
	}
	return usage, nil
}

// decodeUsage reads the usage fields out of customer metadata, applying the
// window reset when the stored window has elapsed.
func decodeUsage(metadata map[string]string, now time.Time) models.Usage {
	usage := models.Usage{}
	if v, err := strconv.Atoi(metadata[metaUsageCount]); err == nil {
		usage.Count = v
	}
	if raw := metadata[metaUsageVideos]; raw != "" {
		_ = json.Unmarshal([]byte(raw), &usage.Videos)
	}
	if t, err := time.Parse(time.RFC3339, metadata[metaUsageResetAt]); err == nil {
		usage.ResetAt = t
	}

	if usage.ResetAt.IsZero() || now.After(usage.ResetAt) {
		usage = models.Usage{ResetAt: now.Add(ResetWindow)}
	}
	return usage
}

// rolledOver reports whether decodeUsage discarded the stored window.
func rolledOver(metadata map[string]string, decoded models.Usage) bool {
	stored, err := time.Parse(time.RFC3339, metadata[metaUsageResetAt])
	if err != nil {
		return true
	}
	return !stored.Equal(decoded.ResetAt)
}

func encodeUsage(usage models.Usage) map[string]string {
	videos, _ := json.Marshal(usage.Videos)
	return map[string]string{
		metaUsageCount:   strconv.Itoa(usage.Count),
		metaUsageVideos:  string(videos),
		metaUsageResetAt: usage.ResetAt.UTC().Format(time.RFC3339),
	}
}
