package leads

import (
	"fmt"

	leadscommand "github.com/goliatone/go-leads/command"
)

// Commands bundles the go-command handlers a host application registers on
// its dispatcher.
type Commands struct {
	SubmitLead       *leadscommand.SubmitLeadCommand
	DeliverChannel   *leadscommand.DeliverChannelCommand
	UpdateLeadStatus *leadscommand.UpdateLeadStatusCommand
}

type Facade struct {
	service  leadscommand.MutatingService
	commands Commands
}

func NewFacade(service leadscommand.MutatingService) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("leads: mutating service is required")
	}
	return &Facade{
		service: service,
		commands: Commands{
			SubmitLead:       leadscommand.NewSubmitLeadCommand(service),
			DeliverChannel:   leadscommand.NewDeliverChannelCommand(service),
			UpdateLeadStatus: leadscommand.NewUpdateLeadStatusCommand(service),
		},
	}, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Service() leadscommand.MutatingService {
	if f == nil {
		return nil
	}
	return f.service
}

var _ leadscommand.MutatingService = (*Service)(nil)
