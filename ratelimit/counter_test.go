package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-leads/core"
)

func TestMemoryCounter_IncrementsWithinWindow(t *testing.T) {
	ctx := context.Background()
	counter := NewMemoryCounter(time.Hour)
	key := core.RateLimitKey{IP: "203.0.113.7", SiteID: "site-1"}

	count, err := counter.Peek(ctx, key)
	if err != nil {
		t.Fatalf("peek empty counter: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected zero count, got %d", count)
	}

	for i := 0; i < 3; i++ {
		if err := counter.Incr(ctx, key); err != nil {
			t.Fatalf("increment %d: %v", i, err)
		}
	}

	count, err = counter.Peek(ctx, key)
	if err != nil {
		t.Fatalf("peek counter: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected count 3, got %d", count)
	}
}

func TestMemoryCounter_ExpiresAfterWindow(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	counter := NewMemoryCounter(time.Hour)
	counter.now = func() time.Time { return now }
	key := core.RateLimitKey{IP: "203.0.113.7", SiteID: "site-1"}

	if err := counter.Incr(ctx, key); err != nil {
		t.Fatalf("increment: %v", err)
	}

	now = now.Add(61 * time.Minute)
	count, err := counter.Peek(ctx, key)
	if err != nil {
		t.Fatalf("peek after expiry: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected expired counter to read zero, got %d", count)
	}

	// A fresh increment after expiry restarts the window at one.
	if err := counter.Incr(ctx, key); err != nil {
		t.Fatalf("increment after expiry: %v", err)
	}
	count, _ = counter.Peek(ctx, key)
	if count != 1 {
		t.Fatalf("expected restarted count 1, got %d", count)
	}
}

func TestMemoryCounter_KeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	counter := NewMemoryCounter(time.Hour)

	if err := counter.Incr(ctx, core.RateLimitKey{IP: "203.0.113.7", SiteID: "site-1"}); err != nil {
		t.Fatalf("increment: %v", err)
	}
	count, err := counter.Peek(ctx, core.RateLimitKey{IP: "203.0.113.7", SiteID: "site-2"})
	if err != nil {
		t.Fatalf("peek other site: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected independent keys, got %d", count)
	}
}

func TestMemoryCounter_RequiresKeyFields(t *testing.T) {
	ctx := context.Background()
	counter := NewMemoryCounter(time.Hour)

	if _, err := counter.Peek(ctx, core.RateLimitKey{SiteID: "site-1"}); err == nil {
		t.Fatalf("expected missing ip error")
	}
	if err := counter.Incr(ctx, core.RateLimitKey{IP: "203.0.113.7"}); err == nil {
		t.Fatalf("expected missing site error")
	}
}

func TestCounterKey_EscapesSegments(t *testing.T) {
	key, err := CounterKey(core.RateLimitKey{IP: "2001:db8::1", SiteID: "site one"})
	if err != nil {
		t.Fatalf("build counter key: %v", err)
	}
	expected := "go-leads::ratelimit::v1::site%20one::2001:db8::1"
	if key != expected {
		t.Fatalf("expected %q, got %q", expected, key)
	}
}
