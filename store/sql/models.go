package sqlstore

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-leads/core"
)

type leadRecord struct {
	bun.BaseModel `bun:"table:leads,alias:l"`

	ID       string `bun:"id,pk"`
	SiteID   string `bun:"site_id,notnull"`
	FormType string `bun:"form_type"`

	Name    string `bun:"name"`
	Email   string `bun:"email,notnull"`
	Phone   string `bun:"phone"`
	Message string `bun:"message"`

	FormData map[string]string `bun:"form_data,type:jsonb,notnull"`

	UTMSource      string `bun:"utm_source"`
	UTMMedium      string `bun:"utm_medium"`
	UTMCampaign    string `bun:"utm_campaign"`
	UTMTerm        string `bun:"utm_term"`
	UTMContent     string `bun:"utm_content"`
	LandingPageURL string `bun:"landing_page_url"`
	PageURL        string `bun:"page_url"`
	ReferrerURL    string `bun:"referrer_url"`

	LeadSource       string `bun:"lead_source"`
	LeadSourceDetail string `bun:"lead_source_detail"`

	Status string `bun:"status,notnull"`

	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (r *leadRecord) toDomain() core.Lead {
	if r == nil {
		return core.Lead{}
	}
	return core.Lead{
		ID:               r.ID,
		SiteID:           r.SiteID,
		FormType:         r.FormType,
		Name:             r.Name,
		Email:            r.Email,
		Phone:            r.Phone,
		Message:          r.Message,
		FormData:         copyStringMap(r.FormData),
		UTMSource:        r.UTMSource,
		UTMMedium:        r.UTMMedium,
		UTMCampaign:      r.UTMCampaign,
		UTMTerm:          r.UTMTerm,
		UTMContent:       r.UTMContent,
		LandingPageURL:   r.LandingPageURL,
		PageURL:          r.PageURL,
		ReferrerURL:      r.ReferrerURL,
		LeadSource:       r.LeadSource,
		LeadSourceDetail: r.LeadSourceDetail,
		Status:           core.LeadStatus(r.Status),
		Deliveries:       map[core.Channel]core.ChannelDelivery{},
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

type leadDeliveryRecord struct {
	bun.BaseModel `bun:"table:lead_channel_deliveries,alias:lcd"`

	ID             string     `bun:"id,pk"`
	LeadID         string     `bun:"lead_id,notnull"`
	Channel        string     `bun:"channel,notnull"`
	Status         string     `bun:"status,notnull"`
	Attempts       int        `bun:"attempts,notnull"`
	SentAt         *time.Time `bun:"sent_at,nullzero"`
	LastError      string     `bun:"last_error"`
	LastStatusCode *int       `bun:"last_status_code,nullzero"`
	CreatedAt      time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (r *leadDeliveryRecord) toDomain() core.ChannelDelivery {
	if r == nil {
		return core.ChannelDelivery{}
	}
	delivery := core.ChannelDelivery{
		LeadID:    r.LeadID,
		Channel:   core.Channel(r.Channel),
		Status:    r.Status,
		Attempts:  r.Attempts,
		LastError: r.LastError,
		UpdatedAt: r.UpdatedAt,
	}
	if r.SentAt != nil {
		value := *r.SentAt
		delivery.SentAt = &value
	}
	if r.LastStatusCode != nil {
		value := *r.LastStatusCode
		delivery.LastStatusCode = &value
	}
	return delivery
}

func (r *leadDeliveryRecord) applyDomain(delivery core.ChannelDelivery) {
	r.Status = delivery.Status
	r.Attempts = delivery.Attempts
	r.LastError = delivery.LastError
	r.SentAt = nil
	if delivery.SentAt != nil {
		value := delivery.SentAt.UTC()
		r.SentAt = &value
	}
	r.LastStatusCode = nil
	if delivery.LastStatusCode != nil {
		value := *delivery.LastStatusCode
		r.LastStatusCode = &value
	}
}

type attributionRuleRecord struct {
	bun.BaseModel `bun:"table:lead_attribution_rules,alias:lar"`

	ID                  string    `bun:"id,pk"`
	UTMSource           string    `bun:"utm_source"`
	UTMMedium           string    `bun:"utm_medium"`
	ReferrerContains    string    `bun:"referrer_contains"`
	DerivedSource       string    `bun:"derived_source,notnull"`
	DerivedSourceDetail string    `bun:"derived_source_detail"`
	Priority            int       `bun:"priority,notnull"`
	IsActive            bool      `bun:"is_active,notnull"`
	CreatedAt           time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt           time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (r *attributionRuleRecord) toDomain() core.AttributionRule {
	if r == nil {
		return core.AttributionRule{}
	}
	return core.AttributionRule{
		ID:                  r.ID,
		UTMSource:           r.UTMSource,
		UTMMedium:           r.UTMMedium,
		ReferrerContains:    r.ReferrerContains,
		DerivedSource:       r.DerivedSource,
		DerivedSourceDetail: r.DerivedSourceDetail,
		Priority:            r.Priority,
		IsActive:            r.IsActive,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
}

func newAttributionRuleRecord(rule core.AttributionRule, now time.Time) *attributionRuleRecord {
	record := &attributionRuleRecord{
		ID:                  rule.ID,
		UTMSource:           rule.UTMSource,
		UTMMedium:           rule.UTMMedium,
		ReferrerContains:    rule.ReferrerContains,
		DerivedSource:       rule.DerivedSource,
		DerivedSourceDetail: rule.DerivedSourceDetail,
		Priority:            rule.Priority,
		IsActive:            rule.IsActive,
		CreatedAt:           rule.CreatedAt,
		UpdatedAt:           now,
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	return record
}

func copyStringMap(in map[string]string) map[string]string {
	if len(in) == 0 {
		return map[string]string{}
	}
	out := make(map[string]string, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
