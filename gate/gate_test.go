package gate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-leads/core"
	"github.com/goliatone/go-leads/ratelimit"
)

func testGate(t *testing.T, now time.Time) (*SpamGate, *core.TimingTokenSigner) {
	t.Helper()
	signer := core.NewTimingTokenSigner("gate-secret", time.Hour)
	signer.Now = func() time.Time { return now }
	return NewSpamGate(ratelimit.NewMemoryCounter(time.Hour), signer), signer
}

func defaultGateConfig() Config {
	return Config{
		HoneypotField:    "website",
		RateLimitPerHour: 5,
		MinSeconds:       3,
	}
}

func TestSpamGate_AcceptsCleanSubmission(t *testing.T) {
	issued := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	gate, signer := testGate(t, issued)

	token, err := signer.Generate()
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	signer.Now = func() time.Time { return issued.Add(10 * time.Second) }

	req := core.SubmitRequest{
		SiteID:      "site-1",
		ClientIP:    "203.0.113.7",
		TimingToken: token,
	}
	if err := gate.Check(context.Background(), req, defaultGateConfig()); err != nil {
		t.Fatalf("expected clean submission to pass, got %v", err)
	}
}

func TestSpamGate_RejectsPopulatedHoneypot(t *testing.T) {
	gate, _ := testGate(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))

	req := core.SubmitRequest{
		SiteID:        "site-1",
		ClientIP:      "203.0.113.7",
		HoneypotValue: "   ",
	}
	err := gate.Check(context.Background(), req, defaultGateConfig())
	var spamErr SpamRejectedError
	if !errors.As(err, &spamErr) {
		t.Fatalf("expected spam rejection, got %v", err)
	}
}

func TestSpamGate_RateLimitIsDistinctFromSpam(t *testing.T) {
	ctx := context.Background()
	gate, _ := testGate(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	cfg := defaultGateConfig()

	req := core.SubmitRequest{SiteID: "site-1", ClientIP: "203.0.113.7"}
	for i := 0; i < cfg.RateLimitPerHour; i++ {
		if err := gate.RecordAccepted(ctx, req); err != nil {
			t.Fatalf("record accepted %d: %v", i, err)
		}
	}

	err := gate.Check(ctx, req, cfg)
	var limitedErr RateLimitedError
	if !errors.As(err, &limitedErr) {
		t.Fatalf("expected rate-limit rejection, got %v", err)
	}
	var spamErr SpamRejectedError
	if errors.As(err, &spamErr) {
		t.Fatalf("rate limiting must not be classified as spam")
	}
	if limitedErr.ToServiceError().Code != 429 {
		t.Fatalf("expected 429 envelope, got %d", limitedErr.ToServiceError().Code)
	}
}

func TestSpamGate_RejectsFastSubmission(t *testing.T) {
	issued := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	gate, signer := testGate(t, issued)

	token, err := signer.Generate()
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	signer.Now = func() time.Time { return issued.Add(time.Second) }

	req := core.SubmitRequest{SiteID: "site-1", ClientIP: "203.0.113.7", TimingToken: token}
	err = gate.Check(context.Background(), req, defaultGateConfig())
	var spamErr SpamRejectedError
	if !errors.As(err, &spamErr) {
		t.Fatalf("expected timing rejection classified as spam, got %v", err)
	}
}

func TestSpamGate_MissingTokenFailsOpen(t *testing.T) {
	gate, _ := testGate(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))

	req := core.SubmitRequest{SiteID: "site-1", ClientIP: "203.0.113.7"}
	if err := gate.Check(context.Background(), req, defaultGateConfig()); err != nil {
		t.Fatalf("expected missing token to pass, got %v", err)
	}
}

func TestSpamGate_CheckDoesNotConsumeQuota(t *testing.T) {
	ctx := context.Background()
	counter := ratelimit.NewMemoryCounter(time.Hour)
	gate := NewSpamGate(counter, nil)
	cfg := defaultGateConfig()

	req := core.SubmitRequest{SiteID: "site-1", ClientIP: "203.0.113.7"}
	for i := 0; i < 10; i++ {
		if err := gate.Check(ctx, req, cfg); err != nil {
			t.Fatalf("check %d: %v", i, err)
		}
	}
	count, err := counter.Peek(ctx, core.RateLimitKey{IP: req.ClientIP, SiteID: req.SiteID})
	if err != nil {
		t.Fatalf("peek counter: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected checks to leave the counter untouched, got %d", count)
	}
}
