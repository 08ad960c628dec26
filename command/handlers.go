package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-leads/core"
	"github.com/goliatone/go-leads/dispatch"
)

type MutatingService interface {
	Submit(ctx context.Context, req core.SubmitRequest) (core.SubmitResult, error)
	ProcessDelivery(ctx context.Context, leadID string, channel core.Channel) (dispatch.Outcome, error)
	UpdateLeadStatus(ctx context.Context, leadID string, status core.LeadStatus) error
}

type SubmitLeadCommand struct {
	service MutatingService
}

func NewSubmitLeadCommand(service MutatingService) *SubmitLeadCommand {
	return &SubmitLeadCommand{service: service}
}

func (c *SubmitLeadCommand) Execute(ctx context.Context, msg SubmitLeadMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: submit service is required")
	}
	out, err := c.service.Submit(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DeliverChannelCommand struct {
	service MutatingService
}

func NewDeliverChannelCommand(service MutatingService) *DeliverChannelCommand {
	return &DeliverChannelCommand{service: service}
}

func (c *DeliverChannelCommand) Execute(ctx context.Context, msg DeliverChannelMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: delivery service is required")
	}
	out, err := c.service.ProcessDelivery(ctx, msg.LeadID, msg.Channel)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type UpdateLeadStatusCommand struct {
	service MutatingService
}

func NewUpdateLeadStatusCommand(service MutatingService) *UpdateLeadStatusCommand {
	return &UpdateLeadStatusCommand{service: service}
}

func (c *UpdateLeadStatusCommand) Execute(ctx context.Context, msg UpdateLeadStatusMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: status service is required")
	}
	return c.service.UpdateLeadStatus(ctx, msg.LeadID, msg.Status)
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
