// Package channels implements the four delivery paths a lead fans out to:
// admin notification email, submitter auto-reply, generic webhook, and CRM
// webhook. Each type satisfies dispatch.Sender and stays free of retry and
// state-machine concerns, which live in the dispatch worker.
package channels

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/goliatone/go-leads/core"
	"github.com/goliatone/go-leads/dispatch"
)

const defaultAdminSubject = "New {{form_type}} lead: {{name}}"

// AdminEmailSender notifies the site operators about a new lead.
type AdminEmailSender struct {
	Mailer core.Mailer
	// From is the envelope sender for operator notifications, set at wiring
	// time from deployment config.
	From string
}

func NewAdminEmailSender(mailer core.Mailer, from string) *AdminEmailSender {
	return &AdminEmailSender{Mailer: mailer, From: strings.TrimSpace(from)}
}

func (s *AdminEmailSender) Name() core.Channel { return core.ChannelAdminEmail }

func (s *AdminEmailSender) Configured(settings core.SiteSettings) bool {
	if !settings.AdminEmail.Enabled {
		return false
	}
	return len(cleanRecipients(settings.AdminEmail.Recipients)) > 0
}

func (s *AdminEmailSender) Send(ctx context.Context, lead core.Lead, settings core.SiteSettings) (dispatch.SendReceipt, error) {
	if s == nil || s.Mailer == nil {
		return dispatch.SendReceipt{}, fmt.Errorf("channels: admin email mailer is not configured")
	}
	recipients := cleanRecipients(settings.AdminEmail.Recipients)
	if len(recipients) == 0 {
		return dispatch.SendReceipt{}, dispatch.ErrNotConfigured
	}

	subject := strings.TrimSpace(settings.AdminEmail.Subject)
	if subject == "" {
		subject = defaultAdminSubject
	}
	context := core.LeadRenderContext(lead)
	context["site_name"] = settings.SiteName

	msg := core.MailMessage{
		From:    s.From,
		To:      recipients,
		ReplyTo: lead.Email,
		Subject: core.Render(subject, context),
		Body:    adminEmailBody(lead),
	}
	if err := s.Mailer.Send(ctx, msg); err != nil {
		return dispatch.SendReceipt{}, fmt.Errorf("channels: admin email send: %w", err)
	}
	return dispatch.SendReceipt{}, nil
}

func adminEmailBody(lead core.Lead) string {
	var b strings.Builder
	writeLine := func(label, value string) {
		if strings.TrimSpace(value) == "" {
			return
		}
		b.WriteString(label)
		b.WriteString(": ")
		b.WriteString(value)
		b.WriteString("\n")
	}
	writeLine("Name", lead.Name)
	writeLine("Email", lead.Email)
	writeLine("Phone", lead.Phone)
	writeLine("Form", lead.FormType)
	writeLine("Source", lead.LeadSource)
	writeLine("Source detail", lead.LeadSourceDetail)
	writeLine("Page", lead.PageURL)
	if strings.TrimSpace(lead.Message) != "" {
		b.WriteString("\n")
		b.WriteString(lead.Message)
		b.WriteString("\n")
	}
	keys := make([]string, 0, len(lead.FormData))
	for key := range lead.FormData {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		writeLine(key, lead.FormData[key])
	}
	return b.String()
}

func cleanRecipients(in []string) []string {
	out := make([]string, 0, len(in))
	for _, addr := range in {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		out = append(out, addr)
	}
	return out
}

var _ dispatch.Sender = (*AdminEmailSender)(nil)
