// Package gate screens inbound submissions before anything is persisted.
// Checks run cheapest first and short-circuit: honeypot, rate limit, timing
// token. The gate never increments the rate counter; that happens only after
// a submission is fully accepted, so invalid attempts do not consume quota.
package gate

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-leads/core"
)

// SpamRejectedError covers honeypot and timing failures. Callers surface it
// as a generic validation failure so automated clients cannot distinguish
// detection from a field error.
type SpamRejectedError struct {
	Reason string
}

func (e SpamRejectedError) Error() string {
	return fmt.Sprintf("gate: submission rejected as spam: %s", e.Reason)
}

func (e SpamRejectedError) ToServiceError() *goerrors.Error {
	return goerrors.New(e.Error(), goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.LeadErrorSpamRejected).
		WithMetadata(map[string]any{"reason": e.Reason})
}

// RateLimitedError is deliberately distinct from SpamRejectedError so the
// transport can answer 429 instead of 400.
type RateLimitedError struct {
	Key   core.RateLimitKey
	Count int
	Limit int
}

func (e RateLimitedError) Error() string {
	return fmt.Sprintf(
		"gate: submission rate limit exceeded for site %q (%d/%d)",
		strings.TrimSpace(e.Key.SiteID),
		e.Count,
		e.Limit,
	)
}

func (e RateLimitedError) ToServiceError() *goerrors.Error {
	return goerrors.New(e.Error(), goerrors.CategoryRateLimit).
		WithCode(http.StatusTooManyRequests).
		WithTextCode(core.LeadErrorRateLimited).
		WithMetadata(map[string]any{
			"site_id": strings.TrimSpace(e.Key.SiteID),
			"count":   e.Count,
			"limit":   e.Limit,
		})
}

type Config struct {
	HoneypotField    string
	RateLimitPerHour int
	MinSeconds       int
}

type SpamGate struct {
	Counter core.RateLimitCounter
	Tokens  *core.TimingTokenSigner
}

func NewSpamGate(counter core.RateLimitCounter, tokens *core.TimingTokenSigner) *SpamGate {
	return &SpamGate{Counter: counter, Tokens: tokens}
}

// Check evaluates the gate for one submission. A nil return means the
// submission may proceed to the lead store.
func (g *SpamGate) Check(ctx context.Context, req core.SubmitRequest, cfg Config) error {
	if g == nil {
		return fmt.Errorf("gate: spam gate is not configured")
	}

	// Honeypot first: free to evaluate, and a non-empty value (whitespace
	// included) is a certain automation signal.
	if cfg.HoneypotField != "" && req.HoneypotValue != "" {
		return SpamRejectedError{Reason: "honeypot field was populated"}
	}

	if g.Counter != nil && cfg.RateLimitPerHour > 0 {
		key := core.RateLimitKey{IP: req.ClientIP, SiteID: req.SiteID}
		count, err := g.Counter.Peek(ctx, key)
		if err != nil {
			return err
		}
		if count >= cfg.RateLimitPerHour {
			return RateLimitedError{Key: key, Count: count, Limit: cfg.RateLimitPerHour}
		}
	}

	if g.Tokens != nil {
		verdict := g.Tokens.Verify(req.TimingToken, time.Duration(cfg.MinSeconds)*time.Second)
		if !verdict.Pass {
			return SpamRejectedError{Reason: "timing token " + verdict.Reason}
		}
	}

	return nil
}

// RecordAccepted bumps the rate counter after a submission has committed.
func (g *SpamGate) RecordAccepted(ctx context.Context, req core.SubmitRequest) error {
	if g == nil || g.Counter == nil {
		return nil
	}
	return g.Counter.Incr(ctx, core.RateLimitKey{IP: req.ClientIP, SiteID: req.SiteID})
}
