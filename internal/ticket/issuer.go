// Package ticket turns verified payments and free sign-ups into registrations and
// delivers their QR tickets.
package ticket

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/farellandr/ticketgate/internal/apperr"
	"github.com/farellandr/ticketgate/internal/mailer"
	"github.com/farellandr/ticketgate/internal/models"
	"github.com/farellandr/ticketgate/internal/payments"
	"github.com/farellandr/ticketgate/internal/qr"
	"github.com/farellandr/ticketgate/internal/registrations"
	"github.com/farellandr/ticketgate/internal/storage"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
)

type RegistrationStore interface {
	InsertOrFetch(ctx context.Context, reg *models.Registration) (*models.Registration, bool, error)
	Get(ctx context.Context, id uint64) (*models.Registration, error)
	GetByPaymentID(ctx context.Context, paymentID string) (*models.Registration, error)
	MarkQRIssued(ctx context.Context, id uint64, path, url string) error
	RefreshQRURL(ctx context.Context, id uint64, url string) error
	MarkEmailed(ctx context.Context, id uint64) error
	ClaimEmail(ctx context.Context, id uint64, lease time.Duration) (bool, error)
	ReleaseEmailClaim(ctx context.Context, id uint64) error
	RecordFulfillmentFailure(ctx context.Context, id uint64, cause error) error
	PendingFulfillment(ctx context.Context, q registrations.PendingQuery) ([]models.Registration, error)
}

type EventStore interface {
	Get(ctx context.Context, slug string) (*models.Event, error)
}

type PaymentVerifier interface {
	CheckSignature(orderID, paymentID, signature string) error
	Verify(ctx context.Context, orderID, paymentID, signature string) (*payments.Capture, error)
}

// Dispatcher schedules fulfillment of a freshly inserted registration.
type Dispatcher interface {
	Dispatch(ctx context.Context, registrationID uint64) error
}

type Registrant struct {
	Name    string `json:"name" binding:"required,max=200"`
	Email   string `json:"email" binding:"required,email"`
	Phone   string `json:"phone" binding:"max=32"`
	College string `json:"college" binding:"max=200"`
	Year    string `json:"year" binding:"max=32"`
}

type PaidRequest struct {
	OrderID    string
	PaymentID  string
	Signature  string
	EventSlug  string
	Registrant Registrant
}

type FreeRequest struct {
	EventSlug  string
	Registrant Registrant
}

type Result struct {
	Registration *models.Registration
	Created      bool
}

type Options struct {
	SignedURLTTL     time.Duration
	QRSize           int
	TicketURL        string
	DefaultEventSlug string
}

type Issuer struct {
	regs       RegistrationStore
	events     EventStore
	verifier   PaymentVerifier
	bucket     storage.Bucket
	mail       mailer.Sender
	qr         *qr.Builder
	dispatcher Dispatcher
	opts       Options
	log        zerolog.Logger
}

func NewIssuer(regs RegistrationStore, events EventStore, verifier PaymentVerifier, bucket storage.Bucket,
	mail mailer.Sender, builder *qr.Builder, opts Options, log zerolog.Logger) *Issuer {
	if opts.SignedURLTTL <= 0 {
		opts.SignedURLTTL = 7 * 24 * time.Hour
	}
	if opts.QRSize <= 0 {
		opts.QRSize = 512
	}
	if mail == nil {
		mail = mailer.Disabled{}
	}

	i := &Issuer{
		regs:     regs,
		events:   events,
		verifier: verifier,
		bucket:   bucket,
		mail:     mail,
		qr:       builder,
		opts:     opts,
		log:      log.With().Str("component", "ticket").Logger(),
	}
	i.dispatcher = Inline{issuer: i}
	return i
}

// SetDispatcher replaces the default inline fulfillment, e.g. with a queue publisher.
func (i *Issuer) SetDispatcher(d Dispatcher) {
	if d != nil {
		i.dispatcher = d
	}
}

// IssuePaid registers an attendee for a captured payment. Nothing is written unless the
// signature checks out and the gateway confirms the capture; repeated callbacks for the
// same payment return the first registration.
func (i *Issuer) IssuePaid(ctx context.Context, req PaidRequest) (*Result, error) {
	req.OrderID = strings.TrimSpace(req.OrderID)
	req.PaymentID = strings.TrimSpace(req.PaymentID)
	if req.OrderID == "" || req.PaymentID == "" || strings.TrimSpace(req.Signature) == "" {
		return nil, fmt.Errorf("%w: missing payment parameters", apperr.ErrValidation)
	}
	if err := validateRegistrant(req.Registrant); err != nil {
		return nil, err
	}
	slug := i.eventSlug(req.EventSlug)

	log := i.log.With().Str("payment_id", req.PaymentID).Str("event_slug", slug).Logger()

	if err := i.verifier.CheckSignature(req.OrderID, req.PaymentID, req.Signature); err != nil {
		log.Warn().Str("reason", "signature").Msg("payment callback rejected")
		return nil, err
	}

	existing, err := i.regs.GetByPaymentID(ctx, req.PaymentID)
	if err == nil {
		if existing.GatewayOrderID != nil && *existing.GatewayOrderID != req.OrderID {
			return nil, fmt.Errorf("%w: payment already used for another order", apperr.ErrPaymentRejected)
		}
		log.Info().Uint64("registration_id", existing.ID).Msg("payment already registered")
		i.dispatchIfPending(ctx, existing)
		return &Result{Registration: existing}, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	capture, err := i.verifier.Verify(ctx, req.OrderID, req.PaymentID, req.Signature)
	if err != nil {
		log.Warn().Err(err).Str("reason", "verification").Msg("payment callback not accepted")
		return nil, err
	}
	if err := i.checkPaidAmount(ctx, slug, capture); err != nil {
		log.Error().Err(err).Int64("captured", capture.AmountMinor).Str("order_id", req.OrderID).
			Msg("captured amount does not cover the event price")
		return nil, err
	}

	orderID, paymentID, signature := req.OrderID, req.PaymentID, strings.TrimSpace(req.Signature)
	reg := newRegistration(req.Registrant, slug)
	reg.IdempotencyKey = models.PaidKey(paymentID)
	reg.Status = models.StatusPaid
	reg.AmountMinor = capture.AmountMinor
	reg.Currency = capture.Currency
	reg.GatewayOrderID = &orderID
	reg.GatewayPaymentID = &paymentID
	reg.GatewaySignature = &signature
	if len(capture.Raw) > 0 {
		reg.GatewayPayload = datatypes.JSON(capture.Raw)
	}

	row, created, err := i.regs.InsertOrFetch(ctx, reg)
	if err != nil {
		log.Error().Err(err).Msg("failed to store paid registration")
		return nil, err
	}

	log.Info().Uint64("registration_id", row.ID).Bool("created", created).Int64("amount", row.AmountMinor).
		Msg("paid registration issued")
	i.dispatchIfPending(ctx, row)

	return &Result{Registration: row, Created: created}, nil
}

// IssueFree registers an attendee for an active zero-price event. One registration per
// email and event; repeats return the existing one.
func (i *Issuer) IssueFree(ctx context.Context, req FreeRequest) (*Result, error) {
	if err := validateRegistrant(req.Registrant); err != nil {
		return nil, err
	}
	slug := i.eventSlug(req.EventSlug)
	if slug == "" {
		return nil, fmt.Errorf("%w: missing event", apperr.ErrValidation)
	}

	ev, err := i.events.Get(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !ev.Active {
		return nil, fmt.Errorf("%w: event %s is closed", apperr.ErrValidation, slug)
	}
	if !ev.IsFree() {
		return nil, fmt.Errorf("%w: event %s requires payment", apperr.ErrValidation, slug)
	}

	reg := newRegistration(req.Registrant, slug)
	reg.IdempotencyKey = models.FreeKey(slug, req.Registrant.Email)
	reg.Status = models.StatusFree

	row, created, err := i.regs.InsertOrFetch(ctx, reg)
	if err != nil {
		i.log.Error().Err(err).Str("event_slug", slug).Msg("failed to store free registration")
		return nil, err
	}

	i.log.Info().Uint64("registration_id", row.ID).Str("event_slug", slug).Bool("created", created).
		Msg("free registration issued")
	i.dispatchIfPending(ctx, row)

	return &Result{Registration: row, Created: created}, nil
}

// checkPaidAmount requires the captured amount to cover the event's current price.
// Callbacks for a slug with no event row carry no price to compare and are kept.
func (i *Issuer) checkPaidAmount(ctx context.Context, slug string, capture *payments.Capture) error {
	ev, err := i.events.Get(ctx, slug)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			i.log.Warn().Str("event_slug", slug).Str("payment_id", capture.PaymentID).
				Msg("paid callback for unknown event")
			return nil
		}
		return fmt.Errorf("%w: load event %s: %v", apperr.ErrVerificationUnavailable, slug, err)
	}
	if capture.AmountMinor < ev.PriceMinor {
		return fmt.Errorf("%w: captured %d below price %d for %s", apperr.ErrPaymentRejected,
			capture.AmountMinor, ev.PriceMinor, slug)
	}
	return nil
}

func (i *Issuer) dispatchIfPending(ctx context.Context, reg *models.Registration) {
	if reg.QRGenerated && (reg.Emailed || !i.mail.Enabled()) {
		return
	}
	if err := i.dispatcher.Dispatch(ctx, reg.ID); err != nil {
		// The sweeper picks the row up later.
		i.log.Warn().Err(err).Uint64("registration_id", reg.ID).Msg("fulfillment dispatch failed")
	}
}

func (i *Issuer) eventSlug(slug string) string {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return i.opts.DefaultEventSlug
	}
	return slug
}

func newRegistration(r Registrant, slug string) *models.Registration {
	return &models.Registration{
		EventSlug:    slug,
		StudentName:  strings.TrimSpace(r.Name),
		StudentEmail: models.NormalizeEmail(r.Email),
		StudentPhone: optional(r.Phone),
		College:      optional(r.College),
		Year:         optional(r.Year),
	}
}

func validateRegistrant(r Registrant) error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: missing name", apperr.ErrValidation)
	}
	email := strings.TrimSpace(r.Email)
	if email == "" || !strings.Contains(email, "@") {
		return fmt.Errorf("%w: invalid email", apperr.ErrValidation)
	}
	return nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// Inline fulfills in the caller's goroutine.
type Inline struct {
	issuer *Issuer
}

func (d Inline) Dispatch(ctx context.Context, registrationID uint64) error {
	_, err := d.issuer.Fulfill(ctx, registrationID, false)
	return err
}
