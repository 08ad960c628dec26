package core

import (
	"context"
	"net/http"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

// LeadStore is the durable source of truth for accepted submissions. Once
// Create returns, everything downstream may fail without losing the lead.
type LeadStore interface {
	Create(ctx context.Context, input CreateLeadInput) (Lead, error)
	Get(ctx context.Context, id string) (Lead, error)
	UpdateWorkflowStatus(ctx context.Context, id string, status LeadStatus) error
	GetChannelDelivery(ctx context.Context, leadID string, channel Channel) (ChannelDelivery, error)
	// WithChannelLock runs fn while holding an exclusive lock on the
	// (lead, channel) delivery row. fn returns the delivery to persist and
	// whether to persist it; returning persist=false leaves the row
	// untouched. Transitions for a (lead, channel) pair are linearized by
	// this lock; nothing else is ordered.
	WithChannelLock(
		ctx context.Context,
		leadID string,
		channel Channel,
		fn func(ctx context.Context, lead Lead, delivery ChannelDelivery) (ChannelDelivery, bool, error),
	) error
}

// RuleSource yields active attribution rules ordered by (priority asc, id asc).
type RuleSource interface {
	ActiveRules(ctx context.Context) ([]AttributionRule, error)
}

// RateLimitKey identifies one submission-rate bucket.
type RateLimitKey struct {
	IP     string
	SiteID string
}

// RateLimitCounter is a deliberately best-effort abuse counter. Races that
// under-count are acceptable; it must never add locking latency to the
// submission hot path.
type RateLimitCounter interface {
	Peek(ctx context.Context, key RateLimitKey) (int, error)
	Incr(ctx context.Context, key RateLimitKey) error
}

// SettingsProvider resolves read-only per-site configuration.
type SettingsProvider interface {
	Settings(ctx context.Context, siteID string) (SiteSettings, error)
}

// Mailer is the provided email transport; not implemented here.
type Mailer interface {
	Send(ctx context.Context, msg MailMessage) error
}

type MailMessage struct {
	From    string
	To      []string
	ReplyTo string
	Subject string
	Body    string
}

// HTTPDoer is the provided outbound HTTP client; not implemented here.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type JobExecutionMessage struct {
	JobID          string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

type JobWorkerHook interface {
	OnStart(ctx context.Context, event JobWorkerEvent)
	OnSuccess(ctx context.Context, event JobWorkerEvent)
	OnFailure(ctx context.Context, event JobWorkerEvent)
	OnRetry(ctx context.Context, event JobWorkerEvent)
}

type JobWorkerEvent struct {
	Message   *JobExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

// SecretProvider resolves named secrets, e.g. the timing-token signing key.
type SecretProvider interface {
	Secret(ctx context.Context, name string) (string, error)
}

// StoreProvider exposes the persistence-backed stores a wired deployment
// needs. The sqlstore repository factory implements it.
type StoreProvider interface {
	LeadStore() LeadStore
	AttributionRuleStore() RuleSource
}
