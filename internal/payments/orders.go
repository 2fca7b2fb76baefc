package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/farellandr/ticketgate/internal/apperr"
	"github.com/farellandr/ticketgate/internal/models"
)

// OrderRequest names the event being paid for. AmountMinor is the client's quote and is
// never charged; the order amount is always the event's current price.
type OrderRequest struct {
	AmountMinor int64
	ReceiptID   string
	EventSlug   string
}

type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type OrderResult struct {
	Order            Order  `json:"order"`
	GatewayPublicKey string `json:"gatewayPublicKey"`
}

type EventGetter interface {
	Get(ctx context.Context, slug string) (*models.Event, error)
}

type OrderGateway interface {
	CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*GatewayOrder, error)
	KeyID() string
}

// OrderService opens gateway orders. It persists nothing.
type OrderService struct {
	gateway     OrderGateway
	events      EventGetter
	currency    string
	defaultSlug string
	node        *snowflake.Node
}

// NewOrderService builds the service. Requests without an event slug are priced
// against defaultSlug.
func NewOrderService(gateway OrderGateway, events EventGetter, currency, defaultSlug string, node *snowflake.Node) *OrderService {
	if currency == "" {
		currency = "INR"
	}
	return &OrderService{gateway: gateway, events: events, currency: currency, defaultSlug: defaultSlug, node: node}
}

func (s *OrderService) CreateOrder(ctx context.Context, req OrderRequest) (*OrderResult, error) {
	slug := strings.TrimSpace(req.EventSlug)
	if slug == "" {
		slug = s.defaultSlug
	}
	if slug == "" {
		return nil, fmt.Errorf("%w: missing event", apperr.ErrValidation)
	}

	ev, err := s.events.Get(ctx, slug)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown event %s", apperr.ErrValidation, slug)
		}
		return nil, err
	}
	if !ev.Active {
		return nil, fmt.Errorf("%w: event %s is closed", apperr.ErrValidation, slug)
	}
	if ev.IsFree() {
		return nil, fmt.Errorf("%w: free event, use free registration", apperr.ErrValidation)
	}
	amount := ev.PriceMinor
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", apperr.ErrValidation)
	}

	receipt := strings.TrimSpace(req.ReceiptID)
	if receipt == "" {
		receipt = "sem-" + s.node.Generate().String()
	}
	if len(receipt) > 40 {
		return nil, fmt.Errorf("%w: receipt id longer than 40 characters", apperr.ErrValidation)
	}

	order, err := s.gateway.CreateOrder(ctx, amount, s.currency, receipt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrOrderCreation, err)
	}

	currency := order.Currency
	if currency == "" {
		currency = s.currency
	}
	return &OrderResult{
		Order:            Order{ID: order.ID, Amount: order.Amount, Currency: currency},
		GatewayPublicKey: s.gateway.KeyID(),
	}, nil
}
