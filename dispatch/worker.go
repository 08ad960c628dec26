// Package dispatch moves accepted leads through the notification pipeline:
// the Dispatcher enqueues one job per channel after a lead is persisted, and
// the Worker executes a single channel attempt under the delivery row lock.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-leads/core"
	"github.com/goliatone/go-leads/security"
)

// ErrNotConfigured is returned by a channel sender when the per-site
// configuration leaves the channel off or incomplete. The worker maps it to
// a disabled delivery rather than a failure.
var ErrNotConfigured = errors.New("dispatch: channel is not configured")

// SendReceipt carries transport metadata from a successful or failed send.
type SendReceipt struct {
	StatusCode *int
}

// Sender performs the actual delivery for one channel.
type Sender interface {
	Name() core.Channel
	// Configured reports whether the site has this channel switched on with
	// enough settings to attempt a send.
	Configured(settings core.SiteSettings) bool
	Send(ctx context.Context, lead core.Lead, settings core.SiteSettings) (SendReceipt, error)
}

// Outcome tells the queue runtime what to do with the job that triggered an
// attempt: redeliver after a delay, or stop with a final delivery status.
type Outcome struct {
	Retry  bool
	Delay  time.Duration
	Status string
}

func RetryAfter(delay time.Duration) Outcome {
	return Outcome{Retry: true, Delay: delay}
}

func Terminal(status string) Outcome {
	return Outcome{Status: status}
}

// Worker runs one delivery attempt for one channel. Every attempt executes
// under the (lead, channel) row lock, so concurrent redeliveries of the same
// job serialize and the loser observes the winner's terminal state.
type Worker struct {
	Store    core.LeadStore
	Settings core.SettingsProvider
	Sender   Sender
	Retry    RetryPolicy
	Logger   core.Logger
	Now      func() time.Time
}

func NewWorker(store core.LeadStore, settings core.SettingsProvider, sender Sender, retry RetryPolicy) *Worker {
	return &Worker{
		Store:    store,
		Settings: settings,
		Sender:   sender,
		Retry:    retry,
	}
}

// Process executes one attempt for the worker's channel against the given
// lead. A non-nil error means infrastructure trouble (store or settings
// lookup); the attempt did not run and the job should be redelivered as-is.
func (w *Worker) Process(ctx context.Context, leadID string) (Outcome, error) {
	if w == nil || w.Store == nil || w.Settings == nil || w.Sender == nil {
		return Outcome{}, fmt.Errorf("dispatch: worker is not configured")
	}

	channel := w.Sender.Name()
	outcome := Terminal(core.DeliveryStatusFailed)

	err := w.Store.WithChannelLock(ctx, leadID, channel,
		func(ctx context.Context, lead core.Lead, delivery core.ChannelDelivery) (core.ChannelDelivery, bool, error) {
			if core.TerminalDeliveryStatus(delivery.Status) {
				outcome = Terminal(delivery.Status)
				return delivery, false, nil
			}

			settings, err := w.Settings.Settings(ctx, lead.SiteID)
			if err != nil {
				return delivery, false, fmt.Errorf("dispatch: resolve settings for site %q: %w", lead.SiteID, err)
			}

			if !w.Sender.Configured(settings) {
				delivery.Status = core.DeliveryStatusDisabled
				delivery.LastError = ""
				outcome = Terminal(core.DeliveryStatusDisabled)
				return delivery, true, nil
			}

			delivery.Status = core.DeliveryStatusInProgress
			delivery.Attempts++

			receipt, sendErr := w.Sender.Send(ctx, lead, settings)
			if receipt.StatusCode != nil {
				code := *receipt.StatusCode
				delivery.LastStatusCode = &code
			}

			if sendErr == nil {
				sentAt := w.now()
				delivery.Status = core.DeliveryStatusSent
				delivery.SentAt = &sentAt
				delivery.LastError = ""
				outcome = Terminal(core.DeliveryStatusSent)
				w.logger().Debug("channel delivery sent",
					"lead_id", lead.ID, "channel", string(channel), "attempts", delivery.Attempts)
				return delivery, true, nil
			}

			delivery.LastError = core.TruncateDeliveryError(sendErr.Error())

			if errors.Is(sendErr, ErrNotConfigured) {
				delivery.Status = core.DeliveryStatusDisabled
				outcome = Terminal(core.DeliveryStatusDisabled)
				return delivery, true, nil
			}

			// Security rejections are structural. Retrying a blocked URL
			// cannot change the verdict, so the delivery fails immediately.
			var blocked security.BlockedURLError
			if errors.As(sendErr, &blocked) {
				delivery.Status = core.DeliveryStatusFailed
				outcome = Terminal(core.DeliveryStatusFailed)
				w.logger().Warn("channel delivery blocked",
					"lead_id", lead.ID, "channel", string(channel), "reason", blocked.Reason)
				return delivery, true, nil
			}

			if w.Retry.ShouldRetry(delivery.Attempts) {
				delay := w.Retry.Delay(delivery.Attempts)
				delivery.Status = core.DeliveryStatusPending
				outcome = RetryAfter(delay)
				w.logger().Info("channel delivery retry scheduled",
					"lead_id", lead.ID, "channel", string(channel),
					"attempts", delivery.Attempts, "delay", delay.String(), "error", delivery.LastError)
				return delivery, true, nil
			}

			delivery.Status = core.DeliveryStatusFailed
			outcome = Terminal(core.DeliveryStatusFailed)
			w.logger().Error("channel delivery failed",
				"lead_id", lead.ID, "channel", string(channel),
				"attempts", delivery.Attempts, "error", delivery.LastError)
			return delivery, true, nil
		})
	if err != nil {
		return Outcome{}, err
	}
	return outcome, nil
}

func (w *Worker) now() time.Time {
	if w.Now != nil {
		return w.Now().UTC()
	}
	return time.Now().UTC()
}

func (w *Worker) logger() core.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return glog.Nop()
}
