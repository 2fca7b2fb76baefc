// Package checkin admits ticket holders at the door, at most once per ticket.
package checkin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/farellandr/ticketgate/internal/apperr"
	"github.com/farellandr/ticketgate/internal/models"
	"github.com/farellandr/ticketgate/internal/qr"
	"github.com/rs/zerolog"
)

type Status string

const (
	StatusSuccess     Status = "success"
	StatusAlreadyUsed Status = "already_used"
	StatusWrongEvent  Status = "wrong_event"
	StatusNotFound    Status = "not_found"
)

// Scan identifies a ticket at the door. ID wins over Code when both are set.
// EventSlug, when set, restricts admission to that event.
type Scan struct {
	Code      string
	ID        uint64
	EventSlug string
}

// ScanFromPayload reads whatever the scanner decoded from a ticket QR.
func ScanFromPayload(raw, eventSlug string) (Scan, error) {
	code, id, err := qr.Parse(raw)
	if err != nil {
		return Scan{}, fmt.Errorf("%w: %v", apperr.ErrValidation, err)
	}
	return Scan{Code: code, ID: id, EventSlug: eventSlug}, nil
}

type Result struct {
	Status       Status
	Registration *models.Registration
}

type Store interface {
	Get(ctx context.Context, id uint64) (*models.Registration, error)
	GetByCode(ctx context.Context, code string) (*models.Registration, error)
	CheckIn(ctx context.Context, id uint64, operator, eventSlug string) (bool, error)
}

type Gate struct {
	store Store
	log   zerolog.Logger
}

func NewGate(store Store, log zerolog.Logger) *Gate {
	return &Gate{store: store, log: log.With().Str("component", "checkin").Logger()}
}

// CheckIn admits the scanned ticket. AlreadyUsed, WrongEvent and NotFound are
// outcomes, not errors; only storage failures and bad input return an error.
func (g *Gate) CheckIn(ctx context.Context, scan Scan, operator string) (*Result, error) {
	scan.Code = strings.ToUpper(strings.TrimSpace(scan.Code))
	scan.EventSlug = strings.TrimSpace(scan.EventSlug)
	if scan.ID == 0 && scan.Code == "" {
		return nil, fmt.Errorf("%w: missing code or id", apperr.ErrValidation)
	}

	reg, err := g.lookup(ctx, scan)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			g.log.Info().Str("code", scan.Code).Uint64("registration_id", scan.ID).Msg("check-in: ticket not found")
			return &Result{Status: StatusNotFound}, nil
		}
		return nil, err
	}

	log := g.log.With().Uint64("registration_id", reg.ID).Str("event_slug", reg.EventSlug).Str("operator", operator).Logger()

	if scan.EventSlug != "" && reg.EventSlug != scan.EventSlug {
		log.Warn().Str("reason", "wrong_event").Str("scanned_for", scan.EventSlug).Msg("check-in refused")
		return &Result{Status: StatusWrongEvent, Registration: reg}, nil
	}

	ok, err := g.store.CheckIn(ctx, reg.ID, operator, scan.EventSlug)
	if err != nil {
		return nil, err
	}

	fresh, err := g.store.Get(ctx, reg.ID)
	if err != nil {
		return nil, err
	}

	if !ok {
		log.Info().Str("reason", "already_used").Msg("check-in refused")
		return &Result{Status: StatusAlreadyUsed, Registration: fresh}, nil
	}

	log.Info().Msg("checked in")
	return &Result{Status: StatusSuccess, Registration: fresh}, nil
}

func (g *Gate) lookup(ctx context.Context, scan Scan) (*models.Registration, error) {
	if scan.ID != 0 {
		return g.store.Get(ctx, scan.ID)
	}
	return g.store.GetByCode(ctx, scan.Code)
}
