package core

import (
	"errors"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestLeadErrorMapper_ClassifiesByMessage(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		code     int
		textCode string
	}{
		{"spam", errors.New("gate: honeypot field was populated, rejecting as spam"), http.StatusBadRequest, LeadErrorSpamRejected},
		{"rate limited", errors.New("gate: submission rate limit exceeded"), http.StatusTooManyRequests, LeadErrorRateLimited},
		{"ssrf", errors.New("security: blocked url resolves to loopback address"), http.StatusForbidden, LeadErrorSSRFBlocked},
		{"validation", errors.New("core: email is required"), http.StatusBadRequest, LeadErrorValidationFailed},
		{"not found", errors.New("sqlstore: lead not found"), http.StatusNotFound, LeadErrorNotFound},
	}
	for _, tc := range cases {
		mapped := leadErrorMapper(tc.err)
		if mapped == nil {
			t.Fatalf("%s: expected mapped error", tc.name)
		}
		if mapped.Code != tc.code {
			t.Fatalf("%s: expected code %d, got %d", tc.name, tc.code, mapped.Code)
		}
		if mapped.TextCode != tc.textCode {
			t.Fatalf("%s: expected text code %q, got %q", tc.name, tc.textCode, mapped.TextCode)
		}
	}
}

func TestLeadErrorMapper_PreservesRichErrors(t *testing.T) {
	original := goerrors.New("already enveloped", goerrors.CategoryRateLimit).
		WithCode(http.StatusTooManyRequests).
		WithTextCode(LeadErrorRateLimited)

	mapped := leadErrorMapper(original)
	if mapped != original {
		t.Fatalf("expected rich error passed through unchanged")
	}
}

func TestEnsureLeadErrorEnvelope_FillsDefaults(t *testing.T) {
	err := goerrors.New("", goerrors.CategoryInternal)
	err.Code = 0
	err.TextCode = ""

	enveloped := ensureLeadErrorEnvelope(err)
	if enveloped.Code != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", enveloped.Code)
	}
	if enveloped.TextCode != LeadErrorInternal {
		t.Fatalf("expected %q, got %q", LeadErrorInternal, enveloped.TextCode)
	}
	if enveloped.Message == "" {
		t.Fatalf("expected default internal message")
	}
}
