package entitlement

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kwan772/Youtube-TLDR/internal/billing"
)

func TestMemoryUsageStore_RecordDeduplicatesPerVideo(t *testing.T) {
	s := NewMemoryUsageStore()
	ctx := context.Background()

	count, err := s.Record(ctx, "user@example.com", "vid1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = s.Record(ctx, "user@example.com", "vid1")
	require.NoError(t, err)
	assert.Equal(t, 1, count, "same video twice increments at most once")

	count, err = s.Record(ctx, "user@example.com", "vid2")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestMemoryUsageStore_WindowReset(t *testing.T) {
	s := NewMemoryUsageStore()
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	_, err := s.Record(ctx, "id", "v1")
	require.NoError(t, err)
	_, err = s.Record(ctx, "id", "v2")
	require.NoError(t, err)

	now = now.Add(ResetWindow + time.Hour)

	usage, err := s.Usage(ctx, "id")
	require.NoError(t, err)
	assert.Equal(t, 0, usage.Count, "count zeroes once the window rolls over")
	assert.Equal(t, now.Add(ResetWindow), usage.ResetAt, "a fresh window starts")

	count, err := s.Record(ctx, "id", "v1")
	require.NoError(t, err)
	assert.Equal(t, 1, count, "the viewed set is cleared too")
}

func TestProviderUsageStore_RecordWritesThrough(t *testing.T) {
	provider := billing.NewMemoryProvider()
	s := NewProviderUsageStore(provider)
	ctx := context.Background()

	count, err := s.Record(ctx, "user@example.com", "vid1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = s.Record(ctx, "user@example.com", "vid1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	cust, err := provider.CustomerByEmail(ctx, "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, "1", cust.Metadata["usage_count"])
	assert.JSONEq(t, `["vid1"]`, cust.Metadata["usage_videos"])
	assert.NotEmpty(t, cust.Metadata["usage_reset_at"])
}

func TestProviderUsageStore_UsageWithoutCustomer(t *testing.T) {
	s := NewProviderUsageStore(billing.NewMemoryProvider())

	usage, err := s.Usage(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	assert.Equal(t, 0, usage.Count)
	assert.False(t, usage.ResetAt.IsZero())
}

func TestProviderUsageStore_AlignWindowZeroesStaleWindow(t *testing.T) {
	provider := billing.NewMemoryProvider()
	s := NewProviderUsageStore(provider)
	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	_, err := s.Record(ctx, "sub@example.com", "v1")
	require.NoError(t, err)

	// Billing period started after the usage window was anchored.
	periodStart := now.Add(time.Hour)
	usage, err := s.AlignWindow(ctx, "sub@example.com", periodStart)
	require.NoError(t, err)
	assert.Equal(t, 0, usage.Count)
	assert.Equal(t, periodStart.Add(ResetWindow), usage.ResetAt)
}
