package ticket

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/farellandr/ticketgate/internal/apperr"
	"github.com/farellandr/ticketgate/internal/mailer"
	"github.com/farellandr/ticketgate/internal/models"
	"github.com/farellandr/ticketgate/internal/qr"
	"github.com/farellandr/ticketgate/internal/storage"
)

// emailClaimLease bounds how long a crashed sender blocks the next attempt.
const emailClaimLease = 5 * time.Minute

// Fulfillment reports what one delivery attempt achieved. Failures are recorded here
// and on the row; they never undo the registration.
type Fulfillment struct {
	Registration *models.Registration
	QRIssued     bool
	Emailed      bool
	QRErr        error
	EmailErr     error
}

func (f *Fulfillment) Err() error {
	return errors.Join(f.QRErr, f.EmailErr)
}

// Fulfill uploads the QR image if it is missing and emails the ticket if it has not been
// sent. With force the signed link is refreshed and the email is sent again.
func (i *Issuer) Fulfill(ctx context.Context, id uint64, force bool) (*Fulfillment, error) {
	reg, err := i.regs.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	log := i.log.With().Uint64("registration_id", reg.ID).Str("event_slug", reg.EventSlug).Logger()
	res := &Fulfillment{}

	png, err := qr.Encode(i.qr.For(reg), i.opts.QRSize)
	if err != nil {
		res.QRErr = err
	}

	qrURL := ""
	switch {
	case res.QRErr != nil:
	case !reg.QRGenerated:
		qrURL, res.QRErr = i.uploadQR(ctx, reg, png)
		res.QRIssued = res.QRErr == nil
	case reg.QRPath != nil:
		qrURL = i.linkFor(*reg.QRPath)
		if force {
			if err := i.regs.RefreshQRURL(ctx, reg.ID, qrURL); err != nil {
				log.Warn().Err(err).Msg("failed to refresh qr url")
			}
		}
	case reg.QRURL != nil:
		qrURL = *reg.QRURL
	}

	if force || !reg.Emailed {
		switch {
		case !i.mail.Enabled():
			if force {
				res.EmailErr = mailer.ErrMailDisabled
			}
		case force:
			res.EmailErr = i.sendEmail(ctx, reg, qrURL, png)
			res.Emailed = res.EmailErr == nil
		default:
			claimed, err := i.regs.ClaimEmail(ctx, reg.ID, emailClaimLease)
			if err != nil {
				res.EmailErr = err
				break
			}
			if !claimed {
				log.Debug().Msg("ticket email already claimed")
				break
			}
			res.EmailErr = i.sendEmail(ctx, reg, qrURL, png)
			res.Emailed = res.EmailErr == nil
			if res.EmailErr != nil {
				if err := i.regs.ReleaseEmailClaim(ctx, reg.ID); err != nil {
					log.Warn().Err(err).Msg("failed to release email claim")
				}
			}
		}
	}

	if res.Emailed {
		if err := i.regs.MarkEmailed(ctx, reg.ID); err != nil {
			log.Warn().Err(err).Msg("failed to mark registration emailed")
		}
	}
	emailErr := res.EmailErr
	if errors.Is(emailErr, mailer.ErrMailDisabled) {
		emailErr = nil
	}
	if failure := errors.Join(res.QRErr, emailErr); failure != nil {
		if err := i.regs.RecordFulfillmentFailure(ctx, reg.ID, failure); err != nil {
			log.Warn().Err(err).Msg("failed to record fulfillment failure")
		}
		log.Warn().Err(failure).Bool("qr_issued", res.QRIssued).Bool("emailed", res.Emailed).Msg("fulfillment incomplete")
	} else {
		log.Info().Bool("qr_issued", res.QRIssued).Bool("emailed", res.Emailed).Msg("fulfillment done")
	}

	if fresh, err := i.regs.Get(ctx, reg.ID); err == nil {
		reg = fresh
	}
	res.Registration = reg
	return res, nil
}

// Resend re-issues a missing QR, refreshes its link and always sends the email again.
func (i *Issuer) Resend(ctx context.Context, id uint64) (*Fulfillment, error) {
	return i.Fulfill(ctx, id, true)
}

func (i *Issuer) uploadQR(ctx context.Context, reg *models.Registration, png []byte) (string, error) {
	objectPath := qr.ObjectPath(reg.CreatedAt.Year(), reg.RegistrationCode)

	if err := i.bucket.Put(ctx, objectPath, png, "image/png"); err != nil {
		return "", fmt.Errorf("%w: upload qr: %v", apperr.ErrStorage, err)
	}

	url := i.linkFor(objectPath)
	if err := i.regs.MarkQRIssued(ctx, reg.ID, objectPath, url); err != nil {
		return "", fmt.Errorf("%w: mark qr issued: %v", apperr.ErrStorage, err)
	}
	return url, nil
}

// linkFor prefers a signed link and falls back to the public one.
func (i *Issuer) linkFor(objectPath string) string {
	url, err := i.bucket.SignedURL(objectPath, i.opts.SignedURLTTL)
	if err != nil {
		if !errors.Is(err, storage.ErrSigningUnavailable) {
			i.log.Warn().Err(err).Str("path", objectPath).Msg("signing qr url failed")
		}
		return i.bucket.PublicURL(objectPath)
	}
	return url
}

// QRLink returns a fresh link to the stored QR image, or "" when none was stored.
func (i *Issuer) QRLink(reg *models.Registration) string {
	if reg.QRPath != nil && *reg.QRPath != "" {
		return i.linkFor(*reg.QRPath)
	}
	if reg.QRURL != nil {
		return *reg.QRURL
	}
	return ""
}

// QRImage renders the ticket QR without touching storage.
func (i *Issuer) QRImage(reg *models.Registration) ([]byte, error) {
	return qr.Encode(i.qr.For(reg), i.opts.QRSize)
}

func (i *Issuer) sendEmail(ctx context.Context, reg *models.Registration, qrURL string, png []byte) error {
	eventName := reg.EventSlug
	if ev, err := i.events.Get(ctx, reg.EventSlug); err == nil && ev.Name != "" {
		eventName = ev.Name
	}

	return i.mail.SendTicket(ctx, mailer.TicketEmail{
		To:        reg.StudentEmail,
		Name:      reg.StudentName,
		EventName: eventName,
		Code:      reg.RegistrationCode,
		TicketURL: i.ticketURL(reg),
		QRURL:     qrURL,
		QRPNG:     png,
	})
}

func (i *Issuer) ticketURL(reg *models.Registration) string {
	if i.opts.TicketURL == "" {
		return ""
	}
	return qr.URLForm{Base: i.opts.TicketURL, Code: reg.RegistrationCode, ID: reg.ID}.Content()
}
