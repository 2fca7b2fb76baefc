// Package mailer delivers ticket emails with the QR image inline.
package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"github.com/farellandr/ticketgate/internal/qr"
)

var ErrMailDisabled = errors.New("email not configured")

const qrContentID = "qr-image"

type TicketEmail struct {
	To        string
	Name      string
	EventName string
	Code      string
	TicketURL string
	QRURL     string
	QRPNG     []byte
}

type Sender interface {
	SendTicket(ctx context.Context, msg TicketEmail) error
	Enabled() bool
}

type Config struct {
	SendGridKey  string
	SendGridHost string
	SMTPAddr     string
	SMTPUser     string
	SMTPPassword string
	From         string
	FromName     string
	ReplyTo      string
}

// New picks SendGrid when an API key is set, SMTP when a server is set,
// and a disabled sender otherwise.
func New(cfg Config) Sender {
	switch {
	case cfg.From == "":
		return Disabled{}
	case cfg.SendGridKey != "":
		return NewSendGrid(cfg)
	case cfg.SMTPAddr != "":
		return NewSMTP(cfg)
	default:
		return Disabled{}
	}
}

type Disabled struct{}

func (Disabled) SendTicket(context.Context, TicketEmail) error { return ErrMailDisabled }
func (Disabled) Enabled() bool                                 { return false }

var (
	textBody = texttemplate.Must(texttemplate.New("text").Parse(`Hi {{.Name}},

Thanks for registering for {{.EventName}}.
Your registration code: {{.Code}}.
{{if .Link}}Open this link to view your QR: {{.Link}}
{{end}}
Present this at entry.
`))

	htmlBody = htmltemplate.Must(htmltemplate.New("html").Parse(`<p>Hi {{.Name}},</p>
<p>Thanks for registering for <b>{{.EventName}}</b>.</p>
<p>Your registration code: <b>{{.Code}}</b></p>
{{if .HasImage}}<p><img src="cid:qr-image" alt="QR" style="max-width:320px"/></p>{{end}}
<p>Present this QR at the entry. Keep this email handy on event day.</p>
{{if .Link}}<p>If the image doesn't load, your ticket is available at: <a href="{{.Link}}">{{.Link}}</a></p>{{end}}
`))
)

type rendered struct {
	Subject  string
	Text     string
	HTML     string
	Filename string
}

func render(msg TicketEmail) (*rendered, error) {
	name := strings.TrimSpace(msg.Name)
	if name == "" {
		name = "Participant"
	}
	link := msg.QRURL
	if link == "" {
		link = msg.TicketURL
	}
	data := struct {
		Name, EventName, Code, Link string
		HasImage                    bool
	}{name, msg.EventName, msg.Code, link, len(msg.QRPNG) > 0}

	var text, html bytes.Buffer
	if err := textBody.Execute(&text, data); err != nil {
		return nil, fmt.Errorf("render text: %w", err)
	}
	if err := htmlBody.Execute(&html, data); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}

	return &rendered{
		Subject:  "Your Ticket - " + msg.Code,
		Text:     text.String(),
		HTML:     html.String(),
		Filename: qr.Sanitize(msg.Code) + ".png",
	}, nil
}

func validate(msg TicketEmail) error {
	if strings.TrimSpace(msg.To) == "" {
		return fmt.Errorf("missing recipient")
	}
	if msg.Code == "" {
		return fmt.Errorf("missing registration code")
	}
	return nil
}
