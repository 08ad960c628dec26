package dispatch

import (
	"context"
	"fmt"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-leads/core"
)

// Job identifiers, one per delivery channel.
const (
	JobIDAdminEmail = "leads.delivery.admin_email"
	JobIDAutoReply  = "leads.delivery.auto_reply"
	JobIDWebhook    = "leads.delivery.webhook"
	JobIDCRM        = "leads.delivery.crm"

	jobIDPrefix = "leads.delivery."
)

// JobIDFor maps a channel to its queue job identifier.
func JobIDFor(channel core.Channel) string {
	return jobIDPrefix + string(channel)
}

// ChannelForJobID is the inverse of JobIDFor. The second return is false for
// unrecognized job IDs.
func ChannelForJobID(jobID string) (core.Channel, bool) {
	if len(jobID) <= len(jobIDPrefix) || jobID[:len(jobIDPrefix)] != jobIDPrefix {
		return "", false
	}
	channel := core.Channel(jobID[len(jobIDPrefix):])
	if !channel.Valid() {
		return "", false
	}
	return channel, true
}

// Dispatcher fans an accepted lead out to the delivery queue, one job per
// channel. Enqueue failures are isolated: a channel that cannot be enqueued
// is marked failed on the lead and the remaining channels still go out.
type Dispatcher struct {
	Store    core.LeadStore
	Enqueuer core.JobEnqueuer
	Logger   core.Logger
}

func NewDispatcher(store core.LeadStore, enqueuer core.JobEnqueuer) *Dispatcher {
	return &Dispatcher{Store: store, Enqueuer: enqueuer}
}

// Dispatch enqueues one delivery job per channel for the given lead. It
// never returns an error: the lead is already durable and the caller has
// nothing useful to do with a partial enqueue failure beyond the stats.
func (d *Dispatcher) Dispatch(ctx context.Context, lead core.Lead) core.DispatchStats {
	stats := core.DispatchStats{}
	if d == nil || d.Enqueuer == nil {
		return stats
	}

	for _, channel := range core.Channels() {
		msg := &core.JobExecutionMessage{
			JobID: JobIDFor(channel),
			Parameters: map[string]any{
				"lead_id": lead.ID,
				"channel": string(channel),
			},
			IdempotencyKey: lead.ID + ":" + string(channel),
		}

		if err := d.Enqueuer.Enqueue(ctx, msg); err != nil {
			stats.Failed++
			d.logger().Error("delivery enqueue failed",
				"lead_id", lead.ID, "channel", string(channel), "error", err.Error())
			d.markEnqueueFailed(ctx, lead.ID, channel, err)
			continue
		}
		stats.Enqueued++
	}
	return stats
}

// markEnqueueFailed records a failed enqueue on the delivery row so the lead
// surfaces the broken channel. Already-terminal rows are left alone.
func (d *Dispatcher) markEnqueueFailed(ctx context.Context, leadID string, channel core.Channel, cause error) {
	if d.Store == nil {
		return
	}
	err := d.Store.WithChannelLock(ctx, leadID, channel,
		func(_ context.Context, _ core.Lead, delivery core.ChannelDelivery) (core.ChannelDelivery, bool, error) {
			if core.TerminalDeliveryStatus(delivery.Status) {
				return delivery, false, nil
			}
			delivery.Status = core.DeliveryStatusFailed
			delivery.LastError = core.TruncateDeliveryError(fmt.Sprintf("enqueue failed: %v", cause))
			return delivery, true, nil
		})
	if err != nil {
		d.logger().Error("could not record enqueue failure",
			"lead_id", leadID, "channel", string(channel), "error", err.Error())
	}
}

func (d *Dispatcher) logger() core.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return glog.Nop()
}
