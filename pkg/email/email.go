// Package email sends a copy of each lead to the sales inbox.
//
// Services depend on the notifier method set, not on Resend; a different
// provider only needs a new constructor here.
package email

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/resend/resend-go/v3"

	"github.com/uyjoy/site/models"
	"github.com/uyjoy/site/pkg/i18n"
)

// resendSender delivers lead e-mails through the Resend API.
type resendSender struct {
	client    *resend.Client
	fromEmail string // must be on a domain verified in Resend
	fromName  string
	to        []string
	locale    string
}

// LeadNotifier is the lead channel the lead service fans out to.
type LeadNotifier interface {
	Name() string
	NotifyLead(ctx context.Context, lead *models.Lead, propertyURL string) error
}

// NewResendSender returns a notifier that mails every lead to recipients.
//
// apiKey: Resend API key (re_xxxxxxxx).
// recipients: comma separated list.
func NewResendSender(apiKey, fromEmail, siteName, recipients, locale string) LeadNotifier {
	return &resendSender{
		client:    resend.NewClient(apiKey),
		fromEmail: fromEmail,
		fromName:  siteName,
		to:        splitRecipients(recipients),
		locale:    locale,
	}
}

func (s *resendSender) Name() string { return "email" }

// NotifyLead sends one e-mail per lead. The reply-to is left empty: leads
// carry a phone number, not an address.
func (s *resendSender) NotifyLead(ctx context.Context, lead *models.Lead, propertyURL string) error {
	loc := i18n.NewLocalizer(s.locale)
	subject, body := RenderLead(lead, propertyURL, loc)

	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail),
		To:      s.to,
		Subject: subject,
		Html:    body,
		Text:    strings.Join(plainLines(lead, propertyURL, loc), "\n"),
	}

	if _, err := s.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("failed to send lead email: %w", err)
	}
	return nil
}

// RenderLead builds the subject and HTML body.
func RenderLead(lead *models.Lead, propertyURL string, loc *i18n.Localizer) (subject, body string) {
	subject = fmt.Sprintf("%s: %s", loc.T("lead.title"), lead.Name)

	var rows strings.Builder
	row := func(label, value string) {
		if value == "" {
			return
		}
		fmt.Fprintf(&rows, `<tr><td style="padding:4px 12px 4px 0;color:#64748b;">%s</td><td style="padding:4px 0;color:#0f172a;">%s</td></tr>`,
			html.EscapeString(label), value)
	}

	row(loc.T("lead.name"), html.EscapeString(lead.Name))
	row(loc.T("lead.phone"), fmt.Sprintf(`<a href="tel:%s">%s</a>`, html.EscapeString(lead.Phone), html.EscapeString(lead.Phone)))
	if lead.PropertyID != nil {
		ref := fmt.Sprintf("#%d", *lead.PropertyID)
		if propertyURL != "" {
			ref = fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(propertyURL), ref)
		}
		row(loc.T("lead.property"), ref)
	}
	row(loc.T("lead.locale"), html.EscapeString(lead.Locale))
	row(loc.T("lead.page"), html.EscapeString(lead.PageURL))
	row(loc.T("lead.message"), strings.ReplaceAll(html.EscapeString(lead.Message), "\n", "<br>"))

	body = fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="margin:0;padding:24px;background-color:#f8fafc;font-family:Arial,Helvetica,sans-serif;">
  <h2 style="color:#0f766e;font-size:18px;margin:0 0 16px 0;">%s</h2>
  <table cellpadding="0" cellspacing="0" style="font-size:14px;line-height:1.5;">%s</table>
</body>
</html>`, html.EscapeString(loc.T("lead.title")), rows.String())

	return subject, body
}

func plainLines(lead *models.Lead, propertyURL string, loc *i18n.Localizer) []string {
	lines := []string{
		loc.T("lead.name") + ": " + lead.Name,
		loc.T("lead.phone") + ": " + lead.Phone,
	}
	if propertyURL != "" {
		lines = append(lines, loc.T("lead.property")+": "+propertyURL)
	}
	if lead.Message != "" {
		lines = append(lines, "", lead.Message)
	}
	return lines
}

func splitRecipients(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
