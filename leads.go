package leads

import "github.com/goliatone/go-leads/core"

type Config = core.Config

type RetryConfig = core.RetryConfig

type Lead = core.Lead
type ChannelDelivery = core.ChannelDelivery
type AttributionRule = core.AttributionRule
type SiteSettings = core.SiteSettings

type SubmitRequest = core.SubmitRequest
type SubmitResult = core.SubmitResult
type DispatchStats = core.DispatchStats

type LeadStore = core.LeadStore
type RuleSource = core.RuleSource
type SettingsProvider = core.SettingsProvider
type RateLimitCounter = core.RateLimitCounter
type SecretProvider = core.SecretProvider
type Mailer = core.Mailer
type HTTPDoer = core.HTTPDoer
type JobEnqueuer = core.JobEnqueuer

type Channel = core.Channel

const (
	ChannelAdminEmail = core.ChannelAdminEmail
	ChannelAutoReply  = core.ChannelAutoReply
	ChannelWebhook    = core.ChannelWebhook
	ChannelCRM        = core.ChannelCRM
)

type LeadStatus = core.LeadStatus

const (
	LeadStatusNew       = core.LeadStatusNew
	LeadStatusContacted = core.LeadStatusContacted
	LeadStatusQuoted    = core.LeadStatusQuoted
	LeadStatusWon       = core.LeadStatusWon
	LeadStatusLost      = core.LeadStatusLost
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}
