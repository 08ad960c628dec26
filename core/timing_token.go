package core

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const DefaultTokenLifetime = time.Hour

const (
	TokenRejectInvalidFormat    = "invalid format"
	TokenRejectInvalidSignature = "invalid signature"
	TokenRejectInvalidTimestamp = "invalid timestamp"
	TokenRejectExpired          = "expired"
	TokenRejectTooQuick         = "submitted too quickly"
)

// TokenVerdict is the outcome of verifying a timing token. A missing token
// passes: clients without the anti-bot script (scripting disabled) must not
// be blocked. Tightening that fail-open policy is a product decision, not a
// code fix.
type TokenVerdict struct {
	Pass   bool
	Reason string
}

// TimingTokenSigner issues and verifies stateless freshness tokens of the
// form "<unix_ts>:<hex(HMAC-SHA256(secret, unix_ts))>".
type TimingTokenSigner struct {
	Secret   string
	Lifetime time.Duration
	Now      func() time.Time
}

func NewTimingTokenSigner(secret string, lifetime time.Duration) *TimingTokenSigner {
	if lifetime <= 0 {
		lifetime = DefaultTokenLifetime
	}
	return &TimingTokenSigner{
		Secret:   strings.TrimSpace(secret),
		Lifetime: lifetime,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (s *TimingTokenSigner) Generate() (string, error) {
	if s == nil {
		return "", fmt.Errorf("core: timing token signer is not configured")
	}
	if strings.TrimSpace(s.Secret) == "" {
		return "", fmt.Errorf("core: timing token secret is required")
	}
	timestamp := strconv.FormatInt(s.now().Unix(), 10)
	return timestamp + ":" + s.sign(timestamp), nil
}

// Verify checks a submitted token against the signer's secret and clock.
// minElapsed is the per-site minimum time a human plausibly needs between
// page load and submit.
func (s *TimingTokenSigner) Verify(token string, minElapsed time.Duration) TokenVerdict {
	if s == nil {
		return TokenVerdict{Pass: false, Reason: TokenRejectInvalidSignature}
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return TokenVerdict{Pass: true}
	}

	parts := strings.Split(token, ":")
	if len(parts) != 2 {
		return TokenVerdict{Pass: false, Reason: TokenRejectInvalidFormat}
	}
	timestamp, signature := parts[0], parts[1]

	expected := s.sign(timestamp)
	if subtle.ConstantTimeCompare([]byte(signature), []byte(expected)) != 1 {
		return TokenVerdict{Pass: false, Reason: TokenRejectInvalidSignature}
	}

	issued, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return TokenVerdict{Pass: false, Reason: TokenRejectInvalidTimestamp}
	}

	elapsed := s.now().Sub(time.Unix(issued, 0))
	if elapsed > s.lifetime() {
		return TokenVerdict{Pass: false, Reason: TokenRejectExpired}
	}
	if minElapsed > 0 && elapsed < minElapsed {
		return TokenVerdict{Pass: false, Reason: TokenRejectTooQuick}
	}
	return TokenVerdict{Pass: true}
}

func (s *TimingTokenSigner) sign(timestamp string) string {
	mac := hmac.New(sha256.New, []byte(s.Secret))
	_, _ = mac.Write([]byte(timestamp))
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *TimingTokenSigner) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *TimingTokenSigner) lifetime() time.Duration {
	if s.Lifetime > 0 {
		return s.Lifetime
	}
	return DefaultTokenLifetime
}
