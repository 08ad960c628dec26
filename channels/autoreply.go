package channels

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-leads/core"
	"github.com/goliatone/go-leads/dispatch"
)

const (
	defaultAutoReplySubject = "Thanks for reaching out, {{name}}"
	defaultAutoReplyBody    = "Hi {{name}},\n\nWe received your message and will get back to you shortly.\n"
)

// AutoReplySender confirms receipt to the person who submitted the form.
type AutoReplySender struct {
	Mailer core.Mailer
}

func NewAutoReplySender(mailer core.Mailer) *AutoReplySender {
	return &AutoReplySender{Mailer: mailer}
}

func (s *AutoReplySender) Name() core.Channel { return core.ChannelAutoReply }

func (s *AutoReplySender) Configured(settings core.SiteSettings) bool {
	return settings.AutoReply.Enabled && strings.TrimSpace(settings.AutoReply.FromAddress) != ""
}

func (s *AutoReplySender) Send(ctx context.Context, lead core.Lead, settings core.SiteSettings) (dispatch.SendReceipt, error) {
	if s == nil || s.Mailer == nil {
		return dispatch.SendReceipt{}, fmt.Errorf("channels: auto reply mailer is not configured")
	}
	from := strings.TrimSpace(settings.AutoReply.FromAddress)
	if from == "" {
		return dispatch.SendReceipt{}, dispatch.ErrNotConfigured
	}
	// A lead without an email address has nowhere to reply to.
	if strings.TrimSpace(lead.Email) == "" {
		return dispatch.SendReceipt{}, dispatch.ErrNotConfigured
	}

	subject := strings.TrimSpace(settings.AutoReply.Subject)
	if subject == "" {
		subject = defaultAutoReplySubject
	}
	body := settings.AutoReply.Body
	if strings.TrimSpace(body) == "" {
		body = defaultAutoReplyBody
	}

	context := core.LeadRenderContext(lead)
	context["site_name"] = settings.SiteName

	msg := core.MailMessage{
		From:    from,
		To:      []string{lead.Email},
		Subject: core.Render(subject, context),
		Body:    core.Render(body, context),
	}
	if err := s.Mailer.Send(ctx, msg); err != nil {
		return dispatch.SendReceipt{}, fmt.Errorf("channels: auto reply send: %w", err)
	}
	return dispatch.SendReceipt{}, nil
}

var _ dispatch.Sender = (*AutoReplySender)(nil)
