package cache

import (
	"context"
	"sync"
	"time"
)

// SummaryCache maps a video ID to a previously generated summary for a fixed
// TTL. A hit means the caller gets the stored text with no provider or
// generation call, and no usage charge.
type SummaryCache interface {
	Get(ctx context.Context, videoID string) (string, bool, error)
	Put(ctx context.Context, videoID, summary string) error
}

type memoryEntry struct {
	summary    string
	insertedAt time.Time
}

// MemorySummaryCache is an in-process summary cache. Expiry is an insertion
// timestamp checked on read rather than a deferred per-entry timer, so an
// overwrite can never race a stale eviction. A janitor sweep reclaims memory
// from entries nobody reads again.
type MemorySummaryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration

	now  func() time.Time
	stop chan struct{}
	once sync.Once
}

// NewMemorySummaryCache creates a cache whose entries expire after ttl.
func NewMemorySummaryCache(ttl time.Duration) *MemorySummaryCache {
	c := &MemorySummaryCache{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go c.janitor()
	return c
}

// Get returns the cached summary for the video, if present and unexpired.
func (c *MemorySummaryCache) Get(_ context.Context, videoID string) (string, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[videoID]
	c.mu.RUnlock()

	if !ok {
		return "", false, nil
	}
	if c.now().Sub(entry.insertedAt) >= c.ttl {
		c.mu.Lock()
		// Re-check under the write lock: the entry may have been replaced.
		if current, ok := c.entries[videoID]; ok && current.insertedAt.Equal(entry.insertedAt) {
			delete(c.entries, videoID)
		}
		c.mu.Unlock()
		return "", false, nil
	}
	return entry.summary, true, nil
}

// Put stores the summary, restarting the TTL for the video.
func (c *MemorySummaryCache) Put(_ context.Context, videoID, summary string) error {
	c.mu.Lock()
	c.entries[videoID] = memoryEntry{summary: summary, insertedAt: c.now()}
	c.mu.Unlock()
	return nil
}

// Close stops the janitor.
func (c *MemorySummaryCache) Close() {
	c.once.Do(func() { close(c.stop) })
}

func (c *MemorySummaryCache) janitor() {
	interval := c.ttl / 2
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			now := c.now()
			c.mu.Lock()
			for id, entry := range c.entries {
				if now.Sub(entry.insertedAt) >= c.ttl {
					delete(c.entries, id)
				}
			}
			c.mu.Unlock()
		}
	}
}
