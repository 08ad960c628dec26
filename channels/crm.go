package channels

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-leads/core"
	"github.com/goliatone/go-leads/dispatch"
	"github.com/goliatone/go-leads/security"
)

// CRMSender posts a flat, Zapier-friendly payload to the site's CRM
// integration URL. Flat keys keep field mapping trivial on the receiving end.
type CRMSender struct {
	Client core.HTTPDoer
	Guard  *security.URLGuard
}

func NewCRMSender(client core.HTTPDoer, guard *security.URLGuard) *CRMSender {
	return &CRMSender{Client: client, Guard: guard}
}

func (s *CRMSender) Name() core.Channel { return core.ChannelCRM }

func (s *CRMSender) Configured(settings core.SiteSettings) bool {
	return settings.CRM.Enabled && strings.TrimSpace(settings.CRM.URL) != ""
}

func (s *CRMSender) Send(ctx context.Context, lead core.Lead, settings core.SiteSettings) (dispatch.SendReceipt, error) {
	if s == nil || s.Client == nil || s.Guard == nil {
		return dispatch.SendReceipt{}, fmt.Errorf("channels: crm sender is not configured")
	}
	targetURL := strings.TrimSpace(settings.CRM.URL)
	if targetURL == "" {
		return dispatch.SendReceipt{}, dispatch.ErrNotConfigured
	}
	if err := s.Guard.Validate(ctx, targetURL); err != nil {
		return dispatch.SendReceipt{}, err
	}

	payload := map[string]any{
		"lead_id":            lead.ID,
		"site_id":            lead.SiteID,
		"site_name":          settings.SiteName,
		"form_type":          lead.FormType,
		"name":               lead.Name,
		"email":              lead.Email,
		"phone":              lead.Phone,
		"message":            lead.Message,
		"utm_source":         lead.UTMSource,
		"utm_medium":         lead.UTMMedium,
		"utm_campaign":       lead.UTMCampaign,
		"utm_term":           lead.UTMTerm,
		"utm_content":        lead.UTMContent,
		"landing_page":       lead.LandingPageURL,
		"page_url":           lead.PageURL,
		"referrer_url":       lead.ReferrerURL,
		"lead_source":        lead.LeadSource,
		"lead_source_detail": lead.LeadSourceDetail,
		"submitted_at":       lead.CreatedAt.Format(time.RFC3339),
	}
	return postJSON(ctx, s.Client, targetURL, payload)
}

var _ dispatch.Sender = (*CRMSender)(nil)
