package leads

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-leads/attribution"
	"github.com/goliatone/go-leads/channels"
	"github.com/goliatone/go-leads/core"
	"github.com/goliatone/go-leads/dispatch"
	"github.com/goliatone/go-leads/gate"
	"github.com/goliatone/go-leads/ratelimit"
	"github.com/goliatone/go-leads/security"
)

// TimingTokenSecretName is the secret-provider key consulted for the HMAC
// signing key when the config does not carry one.
const TimingTokenSecretName = "leads.timing_token_secret"

const defaultRateLimitWindow = time.Hour

// RepositoryStoreFactory builds durable stores from a persistence client,
// matching the sqlstore factory shape.
type RepositoryStoreFactory interface {
	BuildStores(persistenceClient any) (core.StoreProvider, error)
}

// Service orchestrates the lead pipeline: gate, attribution, durable create,
// fan-out enqueue on the submit side and the per-channel delivery workers on
// the queue side.
type Service struct {
	config          core.Config
	logger          core.Logger
	loggerProvider  core.LoggerProvider
	metricsRecorder core.MetricsRecorder
	errorMapper     core.ErrorMapper
	configProvider  core.ConfigProvider
	optionsResolver core.OptionsResolver

	persistenceClient any
	repositoryFactory any

	store    core.LeadStore
	rules    core.RuleSource
	settings core.SettingsProvider
	counter  core.RateLimitCounter
	secrets  core.SecretProvider
	tokens   *core.TimingTokenSigner

	spamGate *gate.SpamGate
	resolver *attribution.Resolver

	enqueuer   core.JobEnqueuer
	dispatcher *dispatch.Dispatcher
	workers    map[core.Channel]*dispatch.Worker

	mailer     core.Mailer
	httpClient core.HTTPDoer
	urlGuard   *security.URLGuard

	now func() time.Time
}

type ServiceDependencies struct {
	Logger            core.Logger
	LoggerProvider    core.LoggerProvider
	MetricsRecorder   core.MetricsRecorder
	ErrorMapper       core.ErrorMapper
	ConfigProvider    core.ConfigProvider
	OptionsResolver   core.OptionsResolver
	PersistenceClient any
	RepositoryFactory any
	LeadStore         core.LeadStore
	RuleSource        core.RuleSource
	Settings          core.SettingsProvider
	RateLimitCounter  core.RateLimitCounter
	SecretProvider    core.SecretProvider
	TimingTokens      *core.TimingTokenSigner
	Enqueuer          core.JobEnqueuer
	Mailer            core.Mailer
	HTTPClient        core.HTTPDoer
	URLGuard          *security.URLGuard
}

type serviceBuilder struct {
	runtimeConfig   core.Config
	logger          core.Logger
	loggerProvider  core.LoggerProvider
	metricsRecorder core.MetricsRecorder
	errorMapper     core.ErrorMapper
	configProvider  core.ConfigProvider
	optionsResolver core.OptionsResolver

	persistenceClient any
	repositoryFactory any

	store    core.LeadStore
	rules    core.RuleSource
	settings core.SettingsProvider
	counter  core.RateLimitCounter
	secrets  core.SecretProvider
	tokens   *core.TimingTokenSigner

	enqueuer   core.JobEnqueuer
	mailer     core.Mailer
	httpClient core.HTTPDoer
	urlGuard   *security.URLGuard

	adminFromAddress string
	now              func() time.Time
}

type Option func(*serviceBuilder)

func WithLogger(logger core.Logger) Option {
	return func(b *serviceBuilder) { b.logger = logger }
}

func WithLoggerProvider(provider core.LoggerProvider) Option {
	return func(b *serviceBuilder) { b.loggerProvider = provider }
}

func WithMetricsRecorder(recorder core.MetricsRecorder) Option {
	return func(b *serviceBuilder) { b.metricsRecorder = recorder }
}

func WithErrorMapper(mapper core.ErrorMapper) Option {
	return func(b *serviceBuilder) { b.errorMapper = mapper }
}

func WithConfigProvider(provider core.ConfigProvider) Option {
	return func(b *serviceBuilder) { b.configProvider = provider }
}

func WithOptionsResolver(resolver core.OptionsResolver) Option {
	return func(b *serviceBuilder) { b.optionsResolver = resolver }
}

func WithPersistenceClient(client any) Option {
	return func(b *serviceBuilder) { b.persistenceClient = client }
}

func WithRepositoryFactory(factory any) Option {
	return func(b *serviceBuilder) { b.repositoryFactory = factory }
}

func WithLeadStore(store core.LeadStore) Option {
	return func(b *serviceBuilder) { b.store = store }
}

func WithRuleSource(rules core.RuleSource) Option {
	return func(b *serviceBuilder) { b.rules = rules }
}

func WithSettingsProvider(settings core.SettingsProvider) Option {
	return func(b *serviceBuilder) { b.settings = settings }
}

func WithRateLimitCounter(counter core.RateLimitCounter) Option {
	return func(b *serviceBuilder) { b.counter = counter }
}

func WithSecretProvider(secrets core.SecretProvider) Option {
	return func(b *serviceBuilder) { b.secrets = secrets }
}

func WithTimingTokens(tokens *core.TimingTokenSigner) Option {
	return func(b *serviceBuilder) { b.tokens = tokens }
}

func WithEnqueuer(enqueuer core.JobEnqueuer) Option {
	return func(b *serviceBuilder) { b.enqueuer = enqueuer }
}

func WithMailer(mailer core.Mailer) Option {
	return func(b *serviceBuilder) { b.mailer = mailer }
}

func WithHTTPClient(client core.HTTPDoer) Option {
	return func(b *serviceBuilder) { b.httpClient = client }
}

func WithURLGuard(guard *security.URLGuard) Option {
	return func(b *serviceBuilder) { b.urlGuard = guard }
}

// WithAdminFromAddress sets the envelope sender for operator notifications.
func WithAdminFromAddress(from string) Option {
	return func(b *serviceBuilder) { b.adminFromAddress = from }
}

func WithNowFunc(now func() time.Time) Option {
	return func(b *serviceBuilder) { b.now = now }
}

func defaultServiceBuilder(cfg core.Config) serviceBuilder {
	return serviceBuilder{runtimeConfig: cfg}
}

func NewService(cfg core.Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("leads", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("leads"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.metricsRecorder == nil {
		builder.metricsRecorder = core.NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = core.DefaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = core.NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = core.GoOptionsResolver{}
	}
	if builder.now == nil {
		builder.now = func() time.Time { return time.Now().UTC() }
	}

	defaults := core.DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if (builder.store == nil || builder.rules == nil) && builder.repositoryFactory != nil {
		if factory, ok := builder.repositoryFactory.(RepositoryStoreFactory); ok {
			storeProvider, buildErr := factory.BuildStores(builder.persistenceClient)
			if buildErr != nil {
				return nil, mapBuildError(builder.errorMapper, buildErr)
			}
			if storeProvider != nil {
				if builder.store == nil {
					builder.store = storeProvider.LeadStore()
				}
				if builder.rules == nil {
					builder.rules = storeProvider.AttributionRuleStore()
				}
			}
		} else if storeProvider, ok := builder.repositoryFactory.(core.StoreProvider); ok {
			if builder.store == nil {
				builder.store = storeProvider.LeadStore()
			}
			if builder.rules == nil {
				builder.rules = storeProvider.AttributionRuleStore()
			}
		}
	}
	if builder.store == nil {
		builder.store = core.NewMemoryLeadStore()
	}
	if builder.settings == nil {
		builder.settings = core.NewStaticSettingsProvider(nil)
	}
	if builder.counter == nil {
		builder.counter = ratelimit.NewMemoryCounter(defaultRateLimitWindow)
	}
	if builder.urlGuard == nil {
		builder.urlGuard = security.NewURLGuard()
	}
	if builder.httpClient == nil {
		builder.httpClient = http.DefaultClient
	}
	if builder.tokens == nil {
		secret := strings.TrimSpace(finalConfig.Token.Secret)
		if builder.secrets != nil {
			if value, secretErr := builder.secrets.Secret(context.Background(), TimingTokenSecretName); secretErr == nil {
				if trimmed := strings.TrimSpace(value); trimmed != "" {
					secret = trimmed
				}
			}
		}
		builder.tokens = core.NewTimingTokenSigner(
			secret,
			time.Duration(finalConfig.Token.LifetimeSeconds)*time.Second,
		)
	}

	service := &Service{
		config:            finalConfig,
		logger:            logger,
		loggerProvider:    provider,
		metricsRecorder:   builder.metricsRecorder,
		errorMapper:       builder.errorMapper,
		configProvider:    builder.configProvider,
		optionsResolver:   builder.optionsResolver,
		persistenceClient: builder.persistenceClient,
		repositoryFactory: builder.repositoryFactory,
		store:             builder.store,
		rules:             builder.rules,
		settings:          builder.settings,
		counter:           builder.counter,
		secrets:           builder.secrets,
		tokens:            builder.tokens,
		spamGate:          gate.NewSpamGate(builder.counter, builder.tokens),
		resolver:          attribution.NewResolver(builder.rules),
		enqueuer:          builder.enqueuer,
		mailer:            builder.mailer,
		httpClient:        builder.httpClient,
		urlGuard:          builder.urlGuard,
		now:               builder.now,
	}

	dispatcher := dispatch.NewDispatcher(builder.store, builder.enqueuer)
	dispatcher.Logger = logger
	service.dispatcher = dispatcher

	service.workers = map[core.Channel]*dispatch.Worker{}
	senders := []dispatch.Sender{
		channels.NewAdminEmailSender(builder.mailer, builder.adminFromAddress),
		channels.NewAutoReplySender(builder.mailer),
		channels.NewWebhookSender(builder.httpClient, builder.urlGuard),
		channels.NewCRMSender(builder.httpClient, builder.urlGuard),
	}
	for _, sender := range senders {
		worker := dispatch.NewWorker(
			builder.store,
			builder.settings,
			sender,
			dispatch.PolicyFor(finalConfig.Delivery.RetryFor(sender.Name())),
		)
		worker.Logger = logger
		worker.Now = builder.now
		service.workers[sender.Name()] = worker
	}

	return service, nil
}

func Setup(cfg core.Config, opts ...Option) (*Service, error) {
	return NewService(cfg, opts...)
}

func mapBuildError(mapper core.ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() core.Config {
	if s == nil {
		return core.Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:            s.logger,
		LoggerProvider:    s.loggerProvider,
		MetricsRecorder:   s.metricsRecorder,
		ErrorMapper:       s.errorMapper,
		ConfigProvider:    s.configProvider,
		OptionsResolver:   s.optionsResolver,
		PersistenceClient: s.persistenceClient,
		RepositoryFactory: s.repositoryFactory,
		LeadStore:         s.store,
		RuleSource:        s.rules,
		Settings:          s.settings,
		RateLimitCounter:  s.counter,
		SecretProvider:    s.secrets,
		TimingTokens:      s.tokens,
		Enqueuer:          s.enqueuer,
		Mailer:            s.mailer,
		HTTPClient:        s.httpClient,
		URLGuard:          s.urlGuard,
	}
}

// GenerateTimingToken issues a fresh token for embedding in a rendered form.
func (s *Service) GenerateTimingToken() (string, error) {
	if s == nil || s.tokens == nil {
		return "", fmt.Errorf("leads: timing token signer is not configured")
	}
	return s.tokens.Generate()
}

// Submit runs one inbound submission through the gate and, when accepted,
// persists the lead and fans out delivery jobs. The returned result is final
// from the caller's perspective: post-commit failures are captured on the
// lead's own delivery rows, never surfaced here.
func (s *Service) Submit(ctx context.Context, req core.SubmitRequest) (core.SubmitResult, error) {
	startedAt := s.clock()()
	if s == nil || s.store == nil {
		return core.SubmitResult{}, fmt.Errorf("leads: service is not configured")
	}

	req = normalizeSubmitRequest(req)
	if err := validateSubmitRequest(req); err != nil {
		s.observeSubmitRejected(ctx, req, "validation")
		return core.SubmitResult{}, err
	}

	settings, err := s.settings.Settings(ctx, req.SiteID)
	if err != nil {
		return core.SubmitResult{}, s.mapError(err)
	}

	gateCfg := gate.Config{
		HoneypotField:    settings.HoneypotField,
		RateLimitPerHour: settings.RateLimitPerHour,
		MinSeconds:       settings.MinSeconds,
	}
	if gateCfg.MinSeconds <= 0 {
		gateCfg.MinSeconds = s.config.Token.MinSeconds
	}
	if err := s.spamGate.Check(ctx, req, gateCfg); err != nil {
		reason := "spam"
		var limited gate.RateLimitedError
		if errors.As(err, &limited) {
			reason = "rate_limited"
		}
		s.observeSubmitRejected(ctx, req, reason)
		return core.SubmitResult{}, s.mapError(err)
	}

	derived, err := s.resolver.Derive(ctx, attribution.Input{
		UTMSource:   req.UTMSource,
		UTMMedium:   req.UTMMedium,
		UTMCampaign: req.UTMCampaign,
		ReferrerURL: req.ReferrerURL,
	})
	if err != nil {
		return core.SubmitResult{}, s.mapError(err)
	}

	lead, err := s.store.Create(ctx, core.CreateLeadInput{
		SiteID:   req.SiteID,
		FormType: req.FormType,

		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Message: req.Message,

		FormData: req.FormData,

		UTMSource:      req.UTMSource,
		UTMMedium:      req.UTMMedium,
		UTMCampaign:    req.UTMCampaign,
		UTMTerm:        req.UTMTerm,
		UTMContent:     req.UTMContent,
		LandingPageURL: req.LandingPageURL,
		PageURL:        req.PageURL,
		ReferrerURL:    req.ReferrerURL,

		LeadSource:       derived.Source,
		LeadSourceDetail: derived.Detail,
	})
	if err != nil {
		return core.SubmitResult{}, s.mapError(err)
	}

	// The lead is durable from here on. Quota accounting and enqueueing are
	// best effort and never unwind past this point.
	if err := s.spamGate.RecordAccepted(ctx, req); err != nil {
		s.logger.Warn("rate counter increment failed",
			"lead_id", lead.ID, "site_id", lead.SiteID, "error", err.Error())
	}

	stats := s.dispatcher.Dispatch(ctx, lead)
	if stats.Failed > 0 {
		s.metricsRecorder.IncCounter(ctx, "leads.dispatch.enqueue_failed", int64(stats.Failed), map[string]string{
			"site_id": lead.SiteID,
		})
	}

	s.metricsRecorder.IncCounter(ctx, "leads.submit.accepted", 1, map[string]string{
		"site_id":     lead.SiteID,
		"form_type":   lead.FormType,
		"lead_source": lead.LeadSource,
	})
	s.metricsRecorder.ObserveHistogram(ctx, "leads.submit.duration_ms",
		float64(s.clock()().Sub(startedAt).Milliseconds()),
		map[string]string{"site_id": lead.SiteID},
	)
	s.logger.Info("lead accepted", logFields(map[string]any{
		"lead_id":     lead.ID,
		"site_id":     lead.SiteID,
		"form_type":   lead.FormType,
		"lead_source": lead.LeadSource,
		"email":       lead.Email,
		"enqueued":    stats.Enqueued,
		"failed":      stats.Failed,
	})...)

	return core.SubmitResult{LeadID: lead.ID, Lead: lead, Dispatch: stats}, nil
}

// ProcessDelivery advances one channel delivery. It is the queue-consumer
// entry point, invoked once per job delivery.
func (s *Service) ProcessDelivery(ctx context.Context, leadID string, channel core.Channel) (dispatch.Outcome, error) {
	if s == nil {
		return dispatch.Outcome{}, fmt.Errorf("leads: service is not configured")
	}
	worker, ok := s.workers[channel]
	if !ok || worker == nil {
		return dispatch.Outcome{}, fmt.Errorf("leads: no delivery worker for channel %q", channel)
	}
	outcome, err := worker.Process(ctx, leadID)
	if err != nil {
		return outcome, s.mapError(err)
	}
	s.metricsRecorder.IncCounter(ctx, "leads.delivery.processed", 1, map[string]string{
		"channel": string(channel),
		"status":  outcome.Status,
		"retry":   fmt.Sprintf("%t", outcome.Retry),
	})
	return outcome, nil
}

// UpdateLeadStatus applies an operator workflow transition.
func (s *Service) UpdateLeadStatus(ctx context.Context, leadID string, status core.LeadStatus) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("leads: service is not configured")
	}
	leadID = strings.TrimSpace(leadID)
	if leadID == "" {
		return s.mapError(fmt.Errorf("leads: lead id is required"))
	}
	if !status.Valid() {
		return s.mapError(fmt.Errorf("leads: invalid lead status %q", status))
	}
	if err := s.store.UpdateWorkflowStatus(ctx, leadID, status); err != nil {
		return s.mapError(err)
	}
	s.logger.Info("lead status updated", "lead_id", leadID, "status", string(status))
	return nil
}

// Lead fetches one lead with its delivery rows.
func (s *Service) Lead(ctx context.Context, id string) (core.Lead, error) {
	if s == nil || s.store == nil {
		return core.Lead{}, fmt.Errorf("leads: service is not configured")
	}
	lead, err := s.store.Get(ctx, strings.TrimSpace(id))
	if err != nil {
		return core.Lead{}, s.mapError(err)
	}
	return lead, nil
}

func (s *Service) observeSubmitRejected(ctx context.Context, req core.SubmitRequest, reason string) {
	s.metricsRecorder.IncCounter(ctx, "leads.submit.rejected", 1, map[string]string{
		"site_id": req.SiteID,
		"reason":  reason,
	})
	s.logger.Debug("submission rejected", logFields(map[string]any{
		"site_id":   req.SiteID,
		"form_type": req.FormType,
		"email":     req.Email,
		"reason":    reason,
	})...)
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) clock() func() time.Time {
	if s != nil && s.now != nil {
		return s.now
	}
	return func() time.Time { return time.Now().UTC() }
}

func normalizeSubmitRequest(req core.SubmitRequest) core.SubmitRequest {
	req.SiteID = strings.TrimSpace(req.SiteID)
	req.FormType = strings.TrimSpace(req.FormType)
	req.ClientIP = strings.TrimSpace(req.ClientIP)
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)
	req.Message = strings.TrimSpace(req.Message)
	req.TimingToken = strings.TrimSpace(req.TimingToken)
	return req
}

func validateSubmitRequest(req core.SubmitRequest) error {
	fields := []goerrors.FieldError{}
	if req.SiteID == "" {
		fields = append(fields, goerrors.FieldError{Field: "site_id", Message: "site id is required"})
	}
	if req.Name == "" {
		fields = append(fields, goerrors.FieldError{Field: "name", Message: "name is required"})
	}
	if req.Email == "" {
		fields = append(fields, goerrors.FieldError{Field: "email", Message: "email is required"})
	}
	if req.Message == "" {
		fields = append(fields, goerrors.FieldError{Field: "message", Message: "message is required"})
	}
	if len(fields) == 0 {
		return nil
	}
	return goerrors.NewValidation("leads: submission validation failed", fields...).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.LeadErrorValidationFailed)
}

// logFields flattens a redacted field map into the logger's key/value form.
func logFields(fields map[string]any) []any {
	redacted := core.RedactSensitiveMap(fields)
	out := make([]any, 0, len(redacted)*2)
	for key, value := range redacted {
		out = append(out, key, value)
	}
	return out
}
