package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(ttl time.Duration) (*MemorySummaryCache, *time.Time) {
	c := NewMemorySummaryCache(ttl)
	c.Close()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestMemorySummaryCache_RoundTrip(t *testing.T) {
	c, _ := newTestCache(24 * time.Hour)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "abc", "S"))

	got, ok, err := c.Get(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "S", got)
}

func TestMemorySummaryCache_ExpiresAfterTTL(t *testing.T) {
	c, now := newTestCache(24 * time.Hour)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "abc", "S"))

	*now = now.Add(24*time.Hour + time.Second)

	_, ok, err := c.Get(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, ok, "entry older than TTL must not be served")
}

func TestMemorySummaryCache_OverwriteRestartsTTL(t *testing.T) {
	c, now := newTestCache(24 * time.Hour)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "abc", "old"))
	*now = now.Add(23 * time.Hour)
	require.NoError(t, c.Put(ctx, "abc", "new"))
	*now = now.Add(2 * time.Hour)

	got, ok, err := c.Get(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, ok, "overwrite restarts the TTL")
	assert.Equal(t, "new", got)
}

func TestMemorySummaryCache_MissingKey(t *testing.T) {
	c, _ := newTestCache(time.Hour)

	_, ok, err := c.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}
