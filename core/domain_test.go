package core

import (
	"strings"
	"testing"
)

func TestAttributionRule_Matches(t *testing.T) {
	cases := []struct {
		name     string
		rule     AttributionRule
		source   string
		medium   string
		referrer string
		want     bool
	}{
		{
			name:   "exact source and medium",
			rule:   AttributionRule{UTMSource: "Google", UTMMedium: "CPC"},
			source: "google",
			medium: "cpc",
			want:   true,
		},
		{
			name:   "source mismatch",
			rule:   AttributionRule{UTMSource: "google"},
			source: "bing",
			want:   false,
		},
		{
			name:     "referrer substring",
			rule:     AttributionRule{ReferrerContains: "partner.example"},
			referrer: "https://partner.example.com/page",
			want:     true,
		},
		{
			name: "no predicates never matches",
			rule: AttributionRule{},
			want: false,
		},
		{
			name:     "all predicates must hold",
			rule:     AttributionRule{UTMSource: "google", ReferrerContains: "partner"},
			source:   "google",
			referrer: "https://other.example.com",
			want:     false,
		},
	}
	for _, tc := range cases {
		got := tc.rule.Matches(tc.source, tc.medium, tc.referrer)
		if got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestTerminalDeliveryStatus(t *testing.T) {
	for _, status := range []string{DeliveryStatusSent, DeliveryStatusFailed, DeliveryStatusDisabled} {
		if !TerminalDeliveryStatus(status) {
			t.Fatalf("expected %q to be terminal", status)
		}
	}
	for _, status := range []string{DeliveryStatusPending, DeliveryStatusInProgress, ""} {
		if TerminalDeliveryStatus(status) {
			t.Fatalf("expected %q not to be terminal", status)
		}
	}
}

func TestTruncateDeliveryError(t *testing.T) {
	long := strings.Repeat("x", MaxDeliveryErrorLength+100)
	truncated := TruncateDeliveryError(long)
	if len(truncated) != MaxDeliveryErrorLength {
		t.Fatalf("expected %d chars, got %d", MaxDeliveryErrorLength, len(truncated))
	}
	if TruncateDeliveryError("  short  ") != "short" {
		t.Fatalf("expected trimmed short message")
	}
}

func TestCloneLead_IsolatesMutableFields(t *testing.T) {
	lead := Lead{
		ID:       "lead-1",
		FormData: map[string]string{"budget": "10k"},
		Deliveries: map[Channel]ChannelDelivery{
			ChannelWebhook: {LeadID: "lead-1", Channel: ChannelWebhook, Status: DeliveryStatusPending},
		},
	}
	cloned := CloneLead(lead)
	cloned.FormData["budget"] = "changed"
	delivery := cloned.Deliveries[ChannelWebhook]
	delivery.Status = DeliveryStatusSent
	cloned.Deliveries[ChannelWebhook] = delivery

	if lead.FormData["budget"] != "10k" {
		t.Fatalf("expected original form data untouched")
	}
	if lead.Deliveries[ChannelWebhook].Status != DeliveryStatusPending {
		t.Fatalf("expected original delivery untouched")
	}
}

func TestLeadStatus_Valid(t *testing.T) {
	for _, status := range []LeadStatus{LeadStatusNew, LeadStatusContacted, LeadStatusQuoted, LeadStatusWon, LeadStatusLost} {
		if !status.Valid() {
			t.Fatalf("expected %q valid", status)
		}
	}
	if LeadStatus("archived").Valid() {
		t.Fatalf("expected unknown status invalid")
	}
}
