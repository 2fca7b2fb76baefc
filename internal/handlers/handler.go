package handlers

import (
	"context"
	"time"

	"github.com/farellandr/ticketgate/internal/auth"
	"github.com/farellandr/ticketgate/internal/checkin"
	"github.com/farellandr/ticketgate/internal/events"
	"github.com/farellandr/ticketgate/internal/models"
	"github.com/farellandr/ticketgate/internal/payments"
	"github.com/farellandr/ticketgate/internal/registrations"
	"github.com/farellandr/ticketgate/internal/storage"
	"github.com/farellandr/ticketgate/internal/ticket"
	"github.com/rs/zerolog"
)

type EventStore interface {
	Get(ctx context.Context, slug string) (*models.Event, error)
	List(ctx context.Context, opts events.ListOptions) ([]models.Event, error)
	Upsert(ctx context.Context, slug string, patch events.Patch) (*models.Event, error)
	SetImage(ctx context.Context, slug, url string) (*models.Event, error)
}

type OrderCreator interface {
	CreateOrder(ctx context.Context, req payments.OrderRequest) (*payments.OrderResult, error)
}

type TicketIssuer interface {
	IssuePaid(ctx context.Context, req ticket.PaidRequest) (*ticket.Result, error)
	IssueFree(ctx context.Context, req ticket.FreeRequest) (*ticket.Result, error)
	Resend(ctx context.Context, id uint64) (*ticket.Fulfillment, error)
	QRLink(reg *models.Registration) string
	QRImage(reg *models.Registration) ([]byte, error)
}

type RegistrationReader interface {
	Get(ctx context.Context, id uint64) (*models.Registration, error)
	GetByCode(ctx context.Context, code string) (*models.Registration, error)
	Search(ctx context.Context, q registrations.SearchQuery) ([]models.Registration, error)
	StatsByEvent(ctx context.Context) ([]registrations.EventStats, error)
	Ping(ctx context.Context) error
}

type CheckinGate interface {
	CheckIn(ctx context.Context, scan checkin.Scan, operator string) (*checkin.Result, error)
}

type OperatorAuthenticator interface {
	Authenticate(ctx context.Context, email, password string) (*models.Operator, error)
}

type TokenIssuer interface {
	Issue(email string) (string, time.Time, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type FileAuthorizer interface {
	Authorize(objectPath, exp, sig string) error
}

type Deps struct {
	Events        EventStore
	Orders        OrderCreator
	Issuer        TicketIssuer
	Registrations RegistrationReader
	Gate          CheckinGate
	Operators     OperatorAuthenticator
	Tokens        TokenIssuer
	Gateway       Pinger
	Bucket        storage.Bucket
	Files         FileAuthorizer
	Admins        auth.AllowList
	Managers      auth.AllowList
	Release       string
	Log           zerolog.Logger
}

type Handler struct {
	Deps
}

func New(d Deps) *Handler {
	return &Handler{Deps: d}
}
