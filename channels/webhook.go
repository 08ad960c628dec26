package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-leads/core"
	"github.com/goliatone/go-leads/dispatch"
	"github.com/goliatone/go-leads/security"
)

// WebhookSender posts a structured form.submitted event to a site-configured
// URL. The URL is validated by the SSRF guard before any HTTP call is made.
type WebhookSender struct {
	Client core.HTTPDoer
	Guard  *security.URLGuard
	Now    func() time.Time
}

func NewWebhookSender(client core.HTTPDoer, guard *security.URLGuard) *WebhookSender {
	return &WebhookSender{Client: client, Guard: guard}
}

func (s *WebhookSender) Name() core.Channel { return core.ChannelWebhook }

func (s *WebhookSender) Configured(settings core.SiteSettings) bool {
	return settings.Webhook.Enabled && strings.TrimSpace(settings.Webhook.URL) != ""
}

func (s *WebhookSender) Send(ctx context.Context, lead core.Lead, settings core.SiteSettings) (dispatch.SendReceipt, error) {
	if s == nil || s.Client == nil || s.Guard == nil {
		return dispatch.SendReceipt{}, fmt.Errorf("channels: webhook sender is not configured")
	}
	targetURL := strings.TrimSpace(settings.Webhook.URL)
	if targetURL == "" {
		return dispatch.SendReceipt{}, dispatch.ErrNotConfigured
	}
	if err := s.Guard.Validate(ctx, targetURL); err != nil {
		return dispatch.SendReceipt{}, err
	}
	return postJSON(ctx, s.Client, targetURL, s.payload(lead, settings))
}

func (s *WebhookSender) payload(lead core.Lead, settings core.SiteSettings) map[string]any {
	return map[string]any{
		"event":     "form.submitted",
		"timestamp": s.now().Format(time.RFC3339),
		"form": map[string]any{
			"id":   settings.Form.ID,
			"name": settings.Form.Name,
			"slug": settings.Form.Slug,
		},
		"submission": map[string]any{
			"id":         lead.ID,
			"data":       submissionData(lead),
			"created_at": lead.CreatedAt.Format(time.RFC3339),
		},
		"attribution": map[string]any{
			"utm_source":   lead.UTMSource,
			"utm_medium":   lead.UTMMedium,
			"utm_campaign": lead.UTMCampaign,
			"utm_term":     lead.UTMTerm,
			"utm_content":  lead.UTMContent,
			"source_url":   lead.ReferrerURL,
			"landing_page": lead.LandingPageURL,
		},
	}
}

func (s *WebhookSender) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func submissionData(lead core.Lead) map[string]string {
	data := map[string]string{
		"name":    lead.Name,
		"email":   lead.Email,
		"phone":   lead.Phone,
		"message": lead.Message,
	}
	for key, value := range lead.FormData {
		if _, reserved := data[key]; reserved {
			continue
		}
		data[key] = value
	}
	return data
}

// postJSON performs the webhook POST and always reports the upstream status
// code when a response was received, success or not.
func postJSON(ctx context.Context, client core.HTTPDoer, url string, payload any) (dispatch.SendReceipt, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return dispatch.SendReceipt{}, fmt.Errorf("channels: encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return dispatch.SendReceipt{}, fmt.Errorf("channels: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return dispatch.SendReceipt{}, fmt.Errorf("channels: post %s: %w", url, err)
	}
	defer resp.Body.Close()

	code := resp.StatusCode
	receipt := dispatch.SendReceipt{StatusCode: &code}
	if code < 200 || code > 299 {
		return receipt, fmt.Errorf("channels: post %s: unexpected status %d", url, code)
	}
	return receipt, nil
}

var _ dispatch.Sender = (*WebhookSender)(nil)
