package mailer

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/farellandr/ticketgate/internal/apperr"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type SendGrid struct {
	key     string
	host    string
	from    *mail.Email
	replyTo string
}

func NewSendGrid(cfg Config) *SendGrid {
	return &SendGrid{
		key:     cfg.SendGridKey,
		host:    cfg.SendGridHost,
		from:    mail.NewEmail(cfg.FromName, cfg.From),
		replyTo: cfg.ReplyTo,
	}
}

func (s *SendGrid) Enabled() bool { return true }

func (s *SendGrid) SendTicket(ctx context.Context, msg TicketEmail) error {
	if err := validate(msg); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrEmail, err)
	}
	body, err := render(msg)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrEmail, err)
	}

	m := mail.NewV3Mail()
	m.SetFrom(s.from)
	m.Subject = body.Subject

	p := mail.NewPersonalization()
	p.AddTos(mail.NewEmail(msg.Name, msg.To))
	m.AddPersonalizations(p)
	m.AddContent(mail.NewContent("text/plain", body.Text), mail.NewContent("text/html", body.HTML))

	if len(msg.QRPNG) > 0 {
		encoded := base64.StdEncoding.EncodeToString(msg.QRPNG)
		inline := mail.NewAttachment().
			SetContent(encoded).
			SetType("image/png").
			SetFilename(body.Filename).
			SetDisposition("inline").
			SetContentID(qrContentID)
		attached := mail.NewAttachment().
			SetContent(encoded).
			SetType("image/png").
			SetFilename(body.Filename).
			SetDisposition("attachment")
		m.AddAttachment(inline, attached)
	}

	if s.replyTo != "" {
		m.SetReplyTo(mail.NewEmail("", s.replyTo))
	}

	tracking := mail.NewTrackingSettings().
		SetClickTracking(mail.NewClickTrackingSetting().SetEnable(false).SetEnableText(false)).
		SetOpenTracking(mail.NewOpenTrackingSetting().SetEnable(false))
	m.SetTrackingSettings(tracking)

	request := sendgrid.GetRequest(s.key, "/v3/mail/send", s.host)
	request.Method = rest.Post
	request.Body = mail.GetRequestBody(m)

	response, err := sendgrid.MakeRequestWithContext(ctx, request)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrEmail, err)
	}
	if response.StatusCode < 200 || response.StatusCode > 299 {
		return fmt.Errorf("%w: sendgrid status %d: %s", apperr.ErrEmail, response.StatusCode, truncate(response.Body, 200))
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
