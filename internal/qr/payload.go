// Package qr builds and reads the payload encoded in ticket QR codes.
package qr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/farellandr/ticketgate/internal/models"
	"github.com/skip2/go-qrcode"
)

const (
	FormURL  = "url"
	FormJSON = "json"
)

var ErrUnreadable = errors.New("qr payload not recognized")

// Payload is what a ticket QR carries. The concrete form is fixed by configuration.
type Payload interface {
	Content() string
}

// URLForm points a phone camera at the web ticket view.
type URLForm struct {
	Base string
	Code string
	ID   uint64
}

func (p URLForm) Content() string {
	q := url.Values{}
	q.Set("code", p.Code)
	if p.ID != 0 {
		q.Set("id", strconv.FormatUint(p.ID, 10))
	}
	sep := "?"
	if strings.Contains(p.Base, "?") {
		sep = "&"
	}
	return p.Base + sep + q.Encode()
}

// JSONForm embeds the attendee details for scanner apps.
type JSONForm struct {
	ID    uint64 `json:"id"`
	Code  string `json:"code"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (p JSONForm) Content() string {
	b, _ := json.Marshal(p)
	return string(b)
}

// Builder picks the payload form once and applies it to every registration.
type Builder struct {
	form string
	base string
}

func NewBuilder(form, verifyBaseURL string) (*Builder, error) {
	form = strings.ToLower(strings.TrimSpace(form))
	switch form {
	case "", FormURL:
		if verifyBaseURL == "" {
			return nil, fmt.Errorf("qr url form needs a verify base url")
		}
		return &Builder{form: FormURL, base: verifyBaseURL}, nil
	case FormJSON:
		return &Builder{form: FormJSON}, nil
	default:
		return nil, fmt.Errorf("unknown qr payload form %q", form)
	}
}

func (b *Builder) For(reg *models.Registration) Payload {
	if b.form == FormJSON {
		return JSONForm{ID: reg.ID, Code: reg.RegistrationCode, Name: reg.StudentName, Email: reg.StudentEmail}
	}
	return URLForm{Base: b.base, Code: reg.RegistrationCode, ID: reg.ID}
}

// Encode renders the payload as a PNG.
func Encode(p Payload, size int) ([]byte, error) {
	if size <= 0 {
		size = 512
	}
	png, err := qrcode.Encode(p.Content(), qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}

// Parse extracts the registration code and id (0 when absent) from any form
// a ticket QR may carry, including a bare code typed at the door.
func Parse(scanned string) (code string, id uint64, err error) {
	s := strings.TrimSpace(scanned)
	if s == "" {
		return "", 0, ErrUnreadable
	}

	if strings.HasPrefix(s, "{") {
		var p struct {
			ID   json.Number `json:"id"`
			Code string      `json:"code"`
		}
		if err := json.Unmarshal([]byte(s), &p); err != nil {
			return "", 0, fmt.Errorf("%w: %v", ErrUnreadable, err)
		}
		if p.ID != "" {
			id, _ = strconv.ParseUint(p.ID.String(), 10, 64)
		}
		if p.Code == "" && id == 0 {
			return "", 0, ErrUnreadable
		}
		return strings.TrimSpace(p.Code), id, nil
	}

	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return "", 0, fmt.Errorf("%w: %v", ErrUnreadable, err)
		}
		q := u.Query()
		code = strings.TrimSpace(q.Get("code"))
		if raw := q.Get("id"); raw != "" {
			id, _ = strconv.ParseUint(raw, 10, 64)
		}
		if code == "" && id == 0 {
			return "", 0, ErrUnreadable
		}
		return code, id, nil
	}

	if strings.ContainsAny(s, " \t\n") {
		return "", 0, ErrUnreadable
	}
	return s, 0, nil
}
