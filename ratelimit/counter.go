// Package ratelimit provides best-effort submission counters keyed by
// (client IP, site). The counter is an abuse deterrent, not a correctness
// resource: an under-count under concurrent load is acceptable, and no
// strict locking is allowed to add latency to the submission hot path.
package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-leads/core"
)

const DefaultWindow = time.Hour

func normalizeKey(key core.RateLimitKey) core.RateLimitKey {
	return core.RateLimitKey{
		IP:     strings.TrimSpace(key.IP),
		SiteID: strings.TrimSpace(key.SiteID),
	}
}

func validateKey(key core.RateLimitKey) error {
	if key.IP == "" {
		return fmt.Errorf("ratelimit: client ip is required")
	}
	if key.SiteID == "" {
		return fmt.Errorf("ratelimit: site id is required")
	}
	return nil
}

type memoryEntry struct {
	count     int
	expiresAt time.Time
}

// MemoryCounter is a process-local counter with per-key TTL windows. It
// backs tests and single-node deployments.
type MemoryCounter struct {
	mu      sync.Mutex
	window  time.Duration
	entries map[core.RateLimitKey]memoryEntry
	now     func() time.Time
}

func NewMemoryCounter(window time.Duration) *MemoryCounter {
	if window <= 0 {
		window = DefaultWindow
	}
	return &MemoryCounter{
		window:  window,
		entries: map[core.RateLimitKey]memoryEntry{},
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (c *MemoryCounter) Peek(_ context.Context, key core.RateLimitKey) (int, error) {
	if c == nil {
		return 0, fmt.Errorf("ratelimit: counter is not configured")
	}
	key = normalizeKey(key)
	if err := validateKey(key); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok || c.now().After(entry.expiresAt) {
		delete(c.entries, key)
		return 0, nil
	}
	return entry.count, nil
}

func (c *MemoryCounter) Incr(_ context.Context, key core.RateLimitKey) error {
	if c == nil {
		return fmt.Errorf("ratelimit: counter is not configured")
	}
	key = normalizeKey(key)
	if err := validateKey(key); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	entry, ok := c.entries[key]
	if !ok || now.After(entry.expiresAt) {
		// First submission in the window starts a fresh TTL.
		c.entries[key] = memoryEntry{count: 1, expiresAt: now.Add(c.window)}
		return nil
	}
	entry.count++
	c.entries[key] = entry
	return nil
}

var _ core.RateLimitCounter = (*MemoryCounter)(nil)
