package core

import (
	"strings"
	"time"
)

type LeadStatus string

const (
	LeadStatusNew       LeadStatus = "new"
	LeadStatusContacted LeadStatus = "contacted"
	LeadStatusQuoted    LeadStatus = "quoted"
	LeadStatusWon       LeadStatus = "won"
	LeadStatusLost      LeadStatus = "lost"
)

func (s LeadStatus) Valid() bool {
	switch s {
	case LeadStatusNew, LeadStatusContacted, LeadStatusQuoted, LeadStatusWon, LeadStatusLost:
		return true
	}
	return false
}

type Channel string

const (
	ChannelAdminEmail Channel = "admin_email"
	ChannelAutoReply  Channel = "auto_reply"
	ChannelWebhook    Channel = "webhook"
	ChannelCRM        Channel = "crm"
)

// Channels lists every delivery channel in dispatch order.
func Channels() []Channel {
	return []Channel{ChannelAdminEmail, ChannelAutoReply, ChannelWebhook, ChannelCRM}
}

func (c Channel) Valid() bool {
	switch c {
	case ChannelAdminEmail, ChannelAutoReply, ChannelWebhook, ChannelCRM:
		return true
	}
	return false
}

const (
	DeliveryStatusPending    = "pending"
	DeliveryStatusInProgress = "in_progress"
	DeliveryStatusSent       = "sent"
	DeliveryStatusFailed     = "failed"
	DeliveryStatusDisabled   = "disabled"
)

// TerminalDeliveryStatus reports whether a channel delivery can never
// transition again. Terminal states are the idempotency anchor: a worker
// that observes one returns without side effects.
func TerminalDeliveryStatus(status string) bool {
	switch status {
	case DeliveryStatusSent, DeliveryStatusFailed, DeliveryStatusDisabled:
		return true
	}
	return false
}

// MaxDeliveryErrorLength bounds persisted delivery error text.
const MaxDeliveryErrorLength = 500

type ChannelDelivery struct {
	LeadID         string
	Channel        Channel
	Status         string
	Attempts       int
	SentAt         *time.Time
	LastError      string
	LastStatusCode *int
	UpdatedAt      time.Time
}

// Lead is the durable record of one accepted submission. Identity, contact,
// and attribution fields never change after Create; only the workflow status
// and per-channel deliveries mutate.
type Lead struct {
	ID       string
	SiteID   string
	FormType string

	Name    string
	Email   string
	Phone   string
	Message string

	FormData map[string]string

	UTMSource      string
	UTMMedium      string
	UTMCampaign    string
	UTMTerm        string
	UTMContent     string
	LandingPageURL string
	PageURL        string
	ReferrerURL    string

	LeadSource       string
	LeadSourceDetail string

	Status     LeadStatus
	Deliveries map[Channel]ChannelDelivery

	CreatedAt time.Time
	UpdatedAt time.Time
}

type CreateLeadInput struct {
	SiteID   string
	FormType string

	Name    string
	Email   string
	Phone   string
	Message string

	FormData map[string]string

	UTMSource      string
	UTMMedium      string
	UTMCampaign    string
	UTMTerm        string
	UTMContent     string
	LandingPageURL string
	PageURL        string
	ReferrerURL    string

	LeadSource       string
	LeadSourceDetail string
}

// AttributionRule maps submission attribution inputs to a derived source.
// Rules are configuration data; the pipeline only ever reads them.
type AttributionRule struct {
	ID                  string
	UTMSource           string
	UTMMedium           string
	ReferrerContains    string
	DerivedSource       string
	DerivedSourceDetail string
	Priority            int
	IsActive            bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Matches reports whether every non-empty predicate matches the normalized
// inputs. Referrer matching is substring, the rest exact.
func (r AttributionRule) Matches(utmSource, utmMedium, referrer string) bool {
	matched := false
	if source := normalizeAttributionValue(r.UTMSource); source != "" {
		if source != utmSource {
			return false
		}
		matched = true
	}
	if medium := normalizeAttributionValue(r.UTMMedium); medium != "" {
		if medium != utmMedium {
			return false
		}
		matched = true
	}
	if fragment := normalizeAttributionValue(r.ReferrerContains); fragment != "" {
		if !strings.Contains(referrer, fragment) {
			return false
		}
		matched = true
	}
	return matched
}

func normalizeAttributionValue(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

type EmailChannelSettings struct {
	Enabled    bool     `koanf:"enabled" mapstructure:"enabled"`
	Recipients []string `koanf:"recipients" mapstructure:"recipients"`
	Subject    string   `koanf:"subject" mapstructure:"subject"`
}

type AutoReplySettings struct {
	Enabled     bool   `koanf:"enabled" mapstructure:"enabled"`
	FromAddress string `koanf:"from_address" mapstructure:"from_address"`
	Subject     string `koanf:"subject" mapstructure:"subject"`
	Body        string `koanf:"body" mapstructure:"body"`
}

type WebhookChannelSettings struct {
	Enabled bool   `koanf:"enabled" mapstructure:"enabled"`
	URL     string `koanf:"url" mapstructure:"url"`
}

type FormIdentity struct {
	ID   string `koanf:"id" mapstructure:"id"`
	Name string `koanf:"name" mapstructure:"name"`
	Slug string `koanf:"slug" mapstructure:"slug"`
}

// SiteSettings is the per-site configuration consumed by the gate and the
// delivery channels. It is provided by the host application and treated as
// read-only; passing it explicitly keeps multi-tenant tests trivial.
type SiteSettings struct {
	SiteID   string `koanf:"site_id" mapstructure:"site_id"`
	SiteName string `koanf:"site_name" mapstructure:"site_name"`

	HoneypotField    string `koanf:"honeypot_field" mapstructure:"honeypot_field"`
	RateLimitPerHour int    `koanf:"rate_limit_per_hour" mapstructure:"rate_limit_per_hour"`
	MinSeconds       int    `koanf:"min_seconds" mapstructure:"min_seconds"`

	Form FormIdentity `koanf:"form" mapstructure:"form"`

	AdminEmail EmailChannelSettings   `koanf:"admin_email" mapstructure:"admin_email"`
	AutoReply  AutoReplySettings      `koanf:"auto_reply" mapstructure:"auto_reply"`
	Webhook    WebhookChannelSettings `koanf:"webhook" mapstructure:"webhook"`
	CRM        WebhookChannelSettings `koanf:"crm" mapstructure:"crm"`
}

// SubmitRequest carries one inbound form submission through the gate.
type SubmitRequest struct {
	SiteID   string
	FormType string
	ClientIP string

	Name    string
	Email   string
	Phone   string
	Message string

	TimingToken   string
	HoneypotValue string

	FormData map[string]string

	UTMSource      string
	UTMMedium      string
	UTMCampaign    string
	UTMTerm        string
	UTMContent     string
	LandingPageURL string
	PageURL        string
	ReferrerURL    string
}

type SubmitResult struct {
	LeadID   string
	Lead     Lead
	Dispatch DispatchStats
}

// DispatchStats summarizes a per-channel enqueue pass.
type DispatchStats struct {
	Enqueued int
	Failed   int
}

func CloneLead(lead Lead) Lead {
	cloned := lead
	cloned.FormData = copyStringMap(lead.FormData)
	if lead.Deliveries != nil {
		cloned.Deliveries = make(map[Channel]ChannelDelivery, len(lead.Deliveries))
		for channel, delivery := range lead.Deliveries {
			cloned.Deliveries[channel] = CloneChannelDelivery(delivery)
		}
	}
	return cloned
}

func CloneChannelDelivery(delivery ChannelDelivery) ChannelDelivery {
	cloned := delivery
	if delivery.SentAt != nil {
		value := *delivery.SentAt
		cloned.SentAt = &value
	}
	if delivery.LastStatusCode != nil {
		value := *delivery.LastStatusCode
		cloned.LastStatusCode = &value
	}
	return cloned
}

// TruncateDeliveryError bounds error text before it is persisted on a lead.
func TruncateDeliveryError(message string) string {
	message = strings.TrimSpace(message)
	if len(message) <= MaxDeliveryErrorLength {
		return message
	}
	return message[:MaxDeliveryErrorLength]
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
