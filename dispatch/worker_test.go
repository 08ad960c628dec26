package dispatch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-leads/core"
	"github.com/goliatone/go-leads/security"
)

type fakeSender struct {
	mu         sync.Mutex
	name       core.Channel
	configured bool
	err        error
	receipt    SendReceipt
	delay      time.Duration
	calls      int
}

func (s *fakeSender) Name() core.Channel { return s.name }

func (s *fakeSender) Configured(core.SiteSettings) bool { return s.configured }

func (s *fakeSender) Send(context.Context, core.Lead, core.SiteSettings) (SendReceipt, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return s.receipt, s.err
}

func (s *fakeSender) sendCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newWorkerFixture(t *testing.T, sender *fakeSender, retry RetryPolicy) (*Worker, *core.MemoryLeadStore, core.Lead) {
	t.Helper()
	store := core.NewMemoryLeadStore()
	lead, err := store.Create(context.Background(), core.CreateLeadInput{
		SiteID: "site-1",
		Email:  "ana@example.com",
		Name:   "Ana",
	})
	if err != nil {
		t.Fatalf("create lead: %v", err)
	}
	settings := core.NewStaticSettingsProvider(map[string]core.SiteSettings{
		"site-1": {SiteID: "site-1"},
	})
	worker := NewWorker(store, settings, sender, retry)
	worker.Now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return worker, store, lead
}

func TestWorker_SuccessfulSend(t *testing.T) {
	code := 200
	sender := &fakeSender{name: core.ChannelWebhook, configured: true, receipt: SendReceipt{StatusCode: &code}}
	worker, store, lead := newWorkerFixture(t, sender, RetryPolicy{BaseDelay: time.Minute, MaxDelay: 5 * time.Minute, MaxAttempts: 3})

	outcome, err := worker.Process(context.Background(), lead.ID)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if outcome.Retry || outcome.Status != core.DeliveryStatusSent {
		t.Fatalf("expected terminal sent outcome, got %+v", outcome)
	}

	delivery, err := store.GetChannelDelivery(context.Background(), lead.ID, core.ChannelWebhook)
	if err != nil {
		t.Fatalf("get delivery: %v", err)
	}
	if delivery.Status != core.DeliveryStatusSent {
		t.Fatalf("expected sent status, got %q", delivery.Status)
	}
	if delivery.Attempts != 1 {
		t.Fatalf("expected one attempt, got %d", delivery.Attempts)
	}
	if delivery.SentAt == nil {
		t.Fatalf("expected sent_at to be set")
	}
	if delivery.LastError != "" {
		t.Fatalf("expected empty last error, got %q", delivery.LastError)
	}
	if delivery.LastStatusCode == nil || *delivery.LastStatusCode != 200 {
		t.Fatalf("expected status code 200, got %v", delivery.LastStatusCode)
	}
}

func TestWorker_SentDeliveryIsNotRepeated(t *testing.T) {
	sender := &fakeSender{name: core.ChannelAdminEmail, configured: true}
	worker, store, lead := newWorkerFixture(t, sender, RetryPolicy{BaseDelay: time.Minute, MaxDelay: 5 * time.Minute, MaxAttempts: 3})

	if _, err := worker.Process(context.Background(), lead.ID); err != nil {
		t.Fatalf("first process: %v", err)
	}
	before, err := store.GetChannelDelivery(context.Background(), lead.ID, core.ChannelAdminEmail)
	if err != nil {
		t.Fatalf("get delivery: %v", err)
	}

	outcome, err := worker.Process(context.Background(), lead.ID)
	if err != nil {
		t.Fatalf("second process: %v", err)
	}
	if outcome.Retry || outcome.Status != core.DeliveryStatusSent {
		t.Fatalf("expected terminal sent outcome, got %+v", outcome)
	}
	if sender.sendCount() != 1 {
		t.Fatalf("expected one send, got %d", sender.sendCount())
	}

	after, err := store.GetChannelDelivery(context.Background(), lead.ID, core.ChannelAdminEmail)
	if err != nil {
		t.Fatalf("get delivery: %v", err)
	}
	if after.Attempts != before.Attempts || after.Status != before.Status || !after.UpdatedAt.Equal(before.UpdatedAt) {
		t.Fatalf("expected delivery unchanged, before=%+v after=%+v", before, after)
	}
}

func TestWorker_RetryableFailureSchedulesBackoff(t *testing.T) {
	sender := &fakeSender{name: core.ChannelWebhook, configured: true, err: errors.New("upstream 503")}
	worker, store, lead := newWorkerFixture(t, sender, RetryPolicy{BaseDelay: time.Minute, MaxDelay: 5 * time.Minute, MaxAttempts: 3})

	outcome, err := worker.Process(context.Background(), lead.ID)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !outcome.Retry {
		t.Fatalf("expected retry outcome, got %+v", outcome)
	}
	if outcome.Delay != time.Minute {
		t.Fatalf("expected first retry after base delay, got %s", outcome.Delay)
	}

	outcome, err = worker.Process(context.Background(), lead.ID)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !outcome.Retry || outcome.Delay != 2*time.Minute {
		t.Fatalf("expected doubled delay on second retry, got %+v", outcome)
	}

	delivery, err := store.GetChannelDelivery(context.Background(), lead.ID, core.ChannelWebhook)
	if err != nil {
		t.Fatalf("get delivery: %v", err)
	}
	if delivery.Status != core.DeliveryStatusPending {
		t.Fatalf("expected pending between retries, got %q", delivery.Status)
	}
	if delivery.Attempts != 2 {
		t.Fatalf("expected two attempts, got %d", delivery.Attempts)
	}
	if !strings.Contains(delivery.LastError, "upstream 503") {
		t.Fatalf("expected last error recorded, got %q", delivery.LastError)
	}
}

func TestWorker_ExhaustedRetriesFail(t *testing.T) {
	sender := &fakeSender{name: core.ChannelWebhook, configured: true, err: errors.New("upstream down")}
	worker, store, lead := newWorkerFixture(t, sender, RetryPolicy{BaseDelay: time.Minute, MaxDelay: 5 * time.Minute, MaxAttempts: 3})

	var outcome Outcome
	var err error
	for i := 0; i < 3; i++ {
		outcome, err = worker.Process(context.Background(), lead.ID)
		if err != nil {
			t.Fatalf("process %d: %v", i, err)
		}
	}
	if outcome.Retry || outcome.Status != core.DeliveryStatusFailed {
		t.Fatalf("expected terminal failed outcome, got %+v", outcome)
	}

	delivery, err := store.GetChannelDelivery(context.Background(), lead.ID, core.ChannelWebhook)
	if err != nil {
		t.Fatalf("get delivery: %v", err)
	}
	if delivery.Status != core.DeliveryStatusFailed {
		t.Fatalf("expected failed status, got %q", delivery.Status)
	}
	if delivery.Attempts != 3 {
		t.Fatalf("expected three attempts, got %d", delivery.Attempts)
	}
	if sender.sendCount() != 3 {
		t.Fatalf("expected three sends, got %d", sender.sendCount())
	}
}

func TestWorker_ZeroMaxAttemptsFailsAfterOneAttempt(t *testing.T) {
	sender := &fakeSender{name: core.ChannelCRM, configured: true, err: errors.New("boom")}
	worker, store, lead := newWorkerFixture(t, sender, RetryPolicy{BaseDelay: time.Minute, MaxDelay: 10 * time.Minute, MaxAttempts: 0})

	outcome, err := worker.Process(context.Background(), lead.ID)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if outcome.Retry || outcome.Status != core.DeliveryStatusFailed {
		t.Fatalf("expected terminal failed outcome, got %+v", outcome)
	}

	delivery, err := store.GetChannelDelivery(context.Background(), lead.ID, core.ChannelCRM)
	if err != nil {
		t.Fatalf("get delivery: %v", err)
	}
	if delivery.Attempts != 1 {
		t.Fatalf("expected exactly one attempt, got %d", delivery.Attempts)
	}
	if delivery.Status != core.DeliveryStatusFailed {
		t.Fatalf("expected failed status, got %q", delivery.Status)
	}
}

func TestWorker_BlockedURLIsNeverRetried(t *testing.T) {
	sender := &fakeSender{
		name:       core.ChannelWebhook,
		configured: true,
		err:        security.BlockedURLError{URL: "http://127.0.0.1/x", Reason: "resolves to loopback address 127.0.0.1"},
	}
	worker, store, lead := newWorkerFixture(t, sender, RetryPolicy{BaseDelay: time.Minute, MaxDelay: 5 * time.Minute, MaxAttempts: 3})

	outcome, err := worker.Process(context.Background(), lead.ID)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if outcome.Retry || outcome.Status != core.DeliveryStatusFailed {
		t.Fatalf("expected terminal failed outcome, got %+v", outcome)
	}

	delivery, err := store.GetChannelDelivery(context.Background(), lead.ID, core.ChannelWebhook)
	if err != nil {
		t.Fatalf("get delivery: %v", err)
	}
	if delivery.Attempts != 1 {
		t.Fatalf("expected one attempt, got %d", delivery.Attempts)
	}
	if !strings.Contains(delivery.LastError, "loopback") {
		t.Fatalf("expected blocked reason in last error, got %q", delivery.LastError)
	}

	if _, err := worker.Process(context.Background(), lead.ID); err != nil {
		t.Fatalf("process after terminal: %v", err)
	}
	if sender.sendCount() != 1 {
		t.Fatalf("expected no further sends, got %d", sender.sendCount())
	}
}

func TestWorker_UnconfiguredChannelIsDisabled(t *testing.T) {
	sender := &fakeSender{name: core.ChannelAutoReply, configured: false}
	worker, store, lead := newWorkerFixture(t, sender, RetryPolicy{BaseDelay: time.Minute, MaxDelay: 5 * time.Minute, MaxAttempts: 3})

	outcome, err := worker.Process(context.Background(), lead.ID)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if outcome.Retry || outcome.Status != core.DeliveryStatusDisabled {
		t.Fatalf("expected terminal disabled outcome, got %+v", outcome)
	}
	if sender.sendCount() != 0 {
		t.Fatalf("expected no send for disabled channel, got %d", sender.sendCount())
	}

	delivery, err := store.GetChannelDelivery(context.Background(), lead.ID, core.ChannelAutoReply)
	if err != nil {
		t.Fatalf("get delivery: %v", err)
	}
	if delivery.Status != core.DeliveryStatusDisabled {
		t.Fatalf("expected disabled status, got %q", delivery.Status)
	}
	if delivery.Attempts != 0 {
		t.Fatalf("expected no attempts, got %d", delivery.Attempts)
	}
}

func TestWorker_NotConfiguredSendErrorDisables(t *testing.T) {
	sender := &fakeSender{name: core.ChannelAdminEmail, configured: true, err: ErrNotConfigured}
	worker, store, lead := newWorkerFixture(t, sender, RetryPolicy{BaseDelay: time.Minute, MaxDelay: 5 * time.Minute, MaxAttempts: 3})

	outcome, err := worker.Process(context.Background(), lead.ID)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if outcome.Retry || outcome.Status != core.DeliveryStatusDisabled {
		t.Fatalf("expected terminal disabled outcome, got %+v", outcome)
	}

	delivery, err := store.GetChannelDelivery(context.Background(), lead.ID, core.ChannelAdminEmail)
	if err != nil {
		t.Fatalf("get delivery: %v", err)
	}
	if delivery.Status != core.DeliveryStatusDisabled {
		t.Fatalf("expected disabled status, got %q", delivery.Status)
	}
}

func TestWorker_ConcurrentAttemptsSendOnce(t *testing.T) {
	sender := &fakeSender{name: core.ChannelWebhook, configured: true, delay: 20 * time.Millisecond}
	worker, store, lead := newWorkerFixture(t, sender, RetryPolicy{BaseDelay: time.Minute, MaxDelay: 5 * time.Minute, MaxAttempts: 3})

	var wg sync.WaitGroup
	outcomes := make([]Outcome, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i], errs[i] = worker.Process(context.Background(), lead.ID)
		}(i)
	}
	wg.Wait()

	for i := 0; i < 2; i++ {
		if errs[i] != nil {
			t.Fatalf("process %d: %v", i, errs[i])
		}
		if outcomes[i].Retry || outcomes[i].Status != core.DeliveryStatusSent {
			t.Fatalf("process %d: expected terminal sent outcome, got %+v", i, outcomes[i])
		}
	}
	if sender.sendCount() != 1 {
		t.Fatalf("expected exactly one send across concurrent attempts, got %d", sender.sendCount())
	}

	delivery, err := store.GetChannelDelivery(context.Background(), lead.ID, core.ChannelWebhook)
	if err != nil {
		t.Fatalf("get delivery: %v", err)
	}
	if delivery.Attempts != 1 {
		t.Fatalf("expected one attempt, got %d", delivery.Attempts)
	}
}

func TestRetryPolicy_DelayCapsAtMax(t *testing.T) {
	policy := RetryPolicy{BaseDelay: time.Minute, MaxDelay: 5 * time.Minute, MaxAttempts: 10}

	cases := []struct {
		attempts int
		want     time.Duration
	}{
		{1, time.Minute},
		{2, 2 * time.Minute},
		{3, 4 * time.Minute},
		{4, 5 * time.Minute},
		{8, 5 * time.Minute},
	}
	for _, tc := range cases {
		if got := policy.Delay(tc.attempts); got != tc.want {
			t.Fatalf("attempts=%d: expected %s, got %s", tc.attempts, tc.want, got)
		}
	}
}
