package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"testing"

	"github.com/farellandr/ticketgate/internal/apperr"
)

func sampleTicket() TicketEmail {
	return TicketEmail{
		To:        "asha@example.com",
		Name:      "Asha",
		EventName: "Pitch Night",
		Code:      "SEM-7KQ2MX9A",
		QRURL:     "https://tickets.example.edu/files/registrations/2026/SEM-7KQ2MX9A.png",
		QRPNG:     []byte("\x89PNG fake"),
	}
}

func TestNew_PicksSender(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"nothing", Config{}, "mailer.Disabled"},
		{"key without from", Config{SendGridKey: "SG.x"}, "mailer.Disabled"},
		{"sendgrid", Config{SendGridKey: "SG.x", From: "tickets@x.edu"}, "*mailer.SendGrid"},
		{"smtp", Config{SMTPAddr: "smtp.x.edu:587", From: "tickets@x.edu"}, "*mailer.SMTP"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := New(tt.cfg)
			if typeName(got) != tt.want {
				t.Errorf("New = %s, want %s", typeName(got), tt.want)
			}
		})
	}

	if err := (Disabled{}).SendTicket(context.Background(), sampleTicket()); !errors.Is(err, ErrMailDisabled) {
		t.Errorf("Disabled err = %v", err)
	}
}

func typeName(s Sender) string {
	switch s.(type) {
	case Disabled:
		return "mailer.Disabled"
	case *SendGrid:
		return "*mailer.SendGrid"
	case *SMTP:
		return "*mailer.SMTP"
	}
	return "unknown"
}

func TestSendGrid_SendTicket(t *testing.T) {
	var payload map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v3/mail/send" || r.Method != http.MethodPost {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer SG.test" {
			t.Errorf("Authorization = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s := NewSendGrid(Config{SendGridKey: "SG.test", SendGridHost: srv.URL, From: "tickets@x.edu", FromName: "Incubator", ReplyTo: "help@x.edu"})
	if err := s.SendTicket(context.Background(), sampleTicket()); err != nil {
		t.Fatalf("SendTicket: %v", err)
	}

	if payload["subject"] != "Your Ticket - SEM-7KQ2MX9A" {
		t.Errorf("subject = %v", payload["subject"])
	}
	attachments, _ := payload["attachments"].([]interface{})
	if len(attachments) != 2 {
		t.Fatalf("attachments = %v", payload["attachments"])
	}
	inline := attachments[0].(map[string]interface{})
	if inline["content_id"] != "qr-image" || inline["disposition"] != "inline" {
		t.Errorf("inline attachment = %v", inline)
	}
	tracking := payload["tracking_settings"].(map[string]interface{})
	click := tracking["click_tracking"].(map[string]interface{})
	if click["enable"] != false {
		t.Errorf("click tracking = %v", click)
	}
	if reply := payload["reply_to"].(map[string]interface{}); reply["email"] != "help@x.edu" {
		t.Errorf("reply_to = %v", reply)
	}
}

func TestSendGrid_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"errors":[{"message":"bad key"}]}`))
	}))
	defer srv.Close()

	s := NewSendGrid(Config{SendGridKey: "SG.bad", SendGridHost: srv.URL, From: "tickets@x.edu"})
	err := s.SendTicket(context.Background(), sampleTicket())
	if !errors.Is(err, apperr.ErrEmail) {
		t.Fatalf("err = %v, want ErrEmail", err)
	}
}

func TestSendGrid_MissingRecipient(t *testing.T) {
	s := NewSendGrid(Config{SendGridKey: "SG.x", SendGridHost: "http://127.0.0.1:1", From: "tickets@x.edu"})
	msg := sampleTicket()
	msg.To = ""
	if err := s.SendTicket(context.Background(), msg); !errors.Is(err, apperr.ErrEmail) {
		t.Fatalf("err = %v, want ErrEmail", err)
	}
}

func TestSMTP_BuildsInlineImage(t *testing.T) {
	s := NewSMTP(Config{SMTPAddr: "smtp.x.edu:587", SMTPUser: "u", SMTPPassword: "p", From: "tickets@x.edu", FromName: "Incubator"})

	var sent []byte
	var rcpt []string
	s.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		if a == nil {
			t.Error("expected auth when user is set")
		}
		rcpt = to
		sent = msg
		return nil
	}

	if err := s.SendTicket(context.Background(), sampleTicket()); err != nil {
		t.Fatalf("SendTicket: %v", err)
	}
	if len(rcpt) != 1 || rcpt[0] != "asha@example.com" {
		t.Errorf("rcpt = %v", rcpt)
	}
	raw := string(sent)
	for _, want := range []string{"multipart/related", "Content-ID: <qr-image>", "cid:qr-image", "SEM-7KQ2MX9A"} {
		if !strings.Contains(raw, want) {
			t.Errorf("message missing %q", want)
		}
	}
}

func TestRender_FallsBackToTicketURL(t *testing.T) {
	msg := sampleTicket()
	msg.QRURL = ""
	msg.QRPNG = nil
	msg.Name = ""
	msg.TicketURL = "https://x.edu/ticket?code=SEM-7KQ2MX9A"

	body, err := render(msg)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(body.Text, "Hi Participant") || !strings.Contains(body.Text, msg.TicketURL) {
		t.Errorf("text = %s", body.Text)
	}
	if strings.Contains(body.HTML, "cid:qr-image") {
		t.Error("html references missing inline image")
	}
}
