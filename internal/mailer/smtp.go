package mailer

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"

	"github.com/farellandr/ticketgate/internal/apperr"
)

// SMTP sends the same ticket email through a plain SMTP relay.
type SMTP struct {
	addr     string
	user     string
	password string
	from     string
	fromName string
	replyTo  string
	send     func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTP(cfg Config) *SMTP {
	return &SMTP{
		addr:     cfg.SMTPAddr,
		user:     cfg.SMTPUser,
		password: cfg.SMTPPassword,
		from:     cfg.From,
		fromName: cfg.FromName,
		replyTo:  cfg.ReplyTo,
		send:     smtp.SendMail,
	}
}

func (s *SMTP) Enabled() bool { return true }

func (s *SMTP) SendTicket(ctx context.Context, msg TicketEmail) error {
	if err := validate(msg); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrEmail, err)
	}
	raw, err := s.build(msg)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrEmail, err)
	}

	var auth smtp.Auth
	if s.user != "" {
		host, _, _ := net.SplitHostPort(s.addr)
		auth = smtp.PlainAuth("", s.user, s.password, host)
	}

	if err := s.send(s.addr, auth, s.from, []string{msg.To}, raw); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrEmail, err)
	}
	return nil
}

func (s *SMTP) build(msg TicketEmail) ([]byte, error) {
	body, err := render(msg)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	from := s.from
	if s.fromName != "" {
		from = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", s.fromName), s.from)
	}
	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", msg.To)
	if s.replyTo != "" {
		fmt.Fprintf(&buf, "Reply-To: %s\r\n", s.replyTo)
	}
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", body.Subject))
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/related; boundary=%s\r\n\r\n", w.Boundary())

	parts := []struct {
		contentType string
		content     string
	}{
		{"text/plain; charset=utf-8", body.Text},
		{"text/html; charset=utf-8", body.HTML},
	}
	for _, p := range parts {
		pw, err := w.CreatePart(textproto.MIMEHeader{"Content-Type": {p.contentType}})
		if err != nil {
			return nil, err
		}
		if _, err := pw.Write([]byte(p.content)); err != nil {
			return nil, err
		}
	}

	if len(msg.QRPNG) > 0 {
		pw, err := w.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {"image/png"},
			"Content-Transfer-Encoding": {"base64"},
			"Content-ID":                {"<" + qrContentID + ">"},
			"Content-Disposition":       {fmt.Sprintf("inline; filename=%q", body.Filename)},
		})
		if err != nil {
			return nil, err
		}
		if _, err := pw.Write([]byte(base64.StdEncoding.EncodeToString(msg.QRPNG))); err != nil {
			return nil, err
		}
	}

	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
