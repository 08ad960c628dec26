package command

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-leads/core"
)

const (
	TypeSubmitLead       = "leads.command.submit"
	TypeDeliverChannel   = "leads.command.delivery.process"
	TypeUpdateLeadStatus = "leads.command.status.update"
)

type SubmitLeadMessage struct {
	Request core.SubmitRequest
}

func (SubmitLeadMessage) Type() string { return TypeSubmitLead }

func (m SubmitLeadMessage) Validate() error {
	if strings.TrimSpace(m.Request.SiteID) == "" {
		return fmt.Errorf("command: site id is required")
	}
	if strings.TrimSpace(m.Request.Email) == "" {
		return fmt.Errorf("command: email is required")
	}
	return nil
}

type DeliverChannelMessage struct {
	LeadID  string
	Channel core.Channel
}

func (DeliverChannelMessage) Type() string { return TypeDeliverChannel }

func (m DeliverChannelMessage) Validate() error {
	if strings.TrimSpace(m.LeadID) == "" {
		return fmt.Errorf("command: lead id is required")
	}
	if !m.Channel.Valid() {
		return fmt.Errorf("command: invalid delivery channel %q", m.Channel)
	}
	return nil
}

type UpdateLeadStatusMessage struct {
	LeadID string
	Status core.LeadStatus
}

func (UpdateLeadStatusMessage) Type() string { return TypeUpdateLeadStatus }

func (m UpdateLeadStatusMessage) Validate() error {
	if strings.TrimSpace(m.LeadID) == "" {
		return fmt.Errorf("command: lead id is required")
	}
	if !m.Status.Valid() {
		return fmt.Errorf("command: invalid lead status %q", m.Status)
	}
	return nil
}
